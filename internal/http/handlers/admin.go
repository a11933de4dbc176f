package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cei-unisinos/ici-backend/internal/email"
	"github.com/cei-unisinos/ici-backend/internal/metrics"
	"github.com/cei-unisinos/ici-backend/internal/observability/logger"
	"github.com/cei-unisinos/ici-backend/internal/store/core"
	"github.com/cei-unisinos/ici-backend/internal/validation"
)

type emailTestIn struct {
	To string `json:"to"`
}

// AdminEmailTest handles POST /v1/admin/email/test: send a diagnostic
// message and report the failure class, so a misconfigured app password
// shows up as "auth" instead of a generic 500.
func (a *API) AdminEmailTest(w http.ResponseWriter, r *http.Request) {
	var in emailTestIn
	if !readJSON(w, r, &in) {
		return
	}
	in.To = validation.NormalizeEmail(in.To)
	if !validation.ValidEmail(in.To) {
		writeErr(w, http.StatusBadRequest, "invalid_form", "to: not a valid address", 1001)
		return
	}
	if a.Email == nil {
		writeErr(w, http.StatusServiceUnavailable, "smtp_unconfigured", "SMTP is not configured", 1503)
		return
	}

	diag, err := a.Email.TestSMTP(r.Context(), in.To)
	if err != nil {
		metrics.RecordEmailSent("test", "failed")
		if errors.Is(err, email.ErrNoSMTPConfig) {
			writeErr(w, http.StatusServiceUnavailable, "smtp_unconfigured", "SMTP is not configured", 1503)
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status":      "failed",
			"diag_code":   diag.Code,
			"temporary":   diag.Temporary,
			"retry_after": int(diag.RetryAfter.Seconds()),
		})
		return
	}
	metrics.RecordEmailSent("test", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"status": "sent", "to": in.To})
}

// AdminListDownloads handles GET /v1/admin/downloads.
func (a *API) AdminListDownloads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeErr(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", 1008)
			return
		}
		limit = n
	}

	reqs, err := a.Repo.ListDownloadRequests(r.Context(), limit)
	if err != nil {
		logger.From(r.Context()).Error("download list failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not list requests", 1500)
		return
	}
	if reqs == nil {
		reqs = []core.DownloadRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(reqs), "requests": reqs})
}

// AdminSync handles POST /v1/admin/sync: run a mirror replication now.
func (a *API) AdminSync(w http.ResponseWriter, r *http.Request) {
	if a.Mirror == nil {
		writeErr(w, http.StatusServiceUnavailable, "mirror_disabled", "the mirror is not configured", 1504)
		return
	}

	rep, err := a.Mirror.Sync(r.Context())
	if err != nil {
		metrics.RecordMirrorSync("failed", 0)
		if errors.Is(err, core.ErrEmptyDataset) {
			writeErr(w, http.StatusNotFound, "empty_dataset", "no data to mirror", 1404)
			return
		}
		logger.From(r.Context()).Error("mirror sync failed", logger.Err(err))
		writeErr(w, http.StatusBadGateway, "sync_failed", "mirror sync failed", 1505)
		return
	}
	metrics.RecordMirrorSync("ok", rep.Duration)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rows":        rep.Rows,
		"batches":     rep.Batches,
		"duration_ms": rep.Duration.Milliseconds(),
	})
}

// Readyz reports storage (and cache) reachability.
func (a *API) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := a.Repo.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unready", "reason": "database unreachable"})
		return
	}
	if a.Cache != nil {
		if err := a.Cache.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unready", "reason": "cache unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
