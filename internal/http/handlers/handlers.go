// Package handlers implements the public and admin endpoints of the
// institutional complexity index API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cei-unisinos/ici-backend/internal/cache"
	"github.com/cei-unisinos/ici-backend/internal/download"
	"github.com/cei-unisinos/ici-backend/internal/email"
	"github.com/cei-unisinos/ici-backend/internal/mirror"
	"github.com/cei-unisinos/ici-backend/internal/store/core"
)

// Deps wires the API handlers to the rest of the service.
type Deps struct {
	Repo     core.Repository
	Cache    cache.Client
	CacheTTL time.Duration

	Email  *email.Service
	Signer *download.Signer
	Mirror *mirror.Mirror // nil when the mirror is disabled

	// MaxRows caps a single export. 0 means unlimited.
	MaxRows int

	// PublicBaseURL prefixes the signed fallback download links,
	// e.g. https://api.ici.example.org
	PublicBaseURL string
}

// API holds the handler set.
type API struct {
	Deps
}

func New(deps Deps) *API {
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = time.Hour
	}
	return &API{Deps: deps}
}

// local JSON helpers; the envelope matches the middleware package's.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, desc string, errCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             code,
		"error_description": desc,
		"error_code":        errCode,
		"request_id":        rid,
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		writeErr(w, http.StatusBadRequest, "invalid_json", "Content-Type must be application/json", 1102)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		writeErr(w, http.StatusBadRequest, "invalid_json", "malformed json body", 1102)
		return false
	}
	return true
}
