package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cei-unisinos/ici-backend/internal/download"
	"github.com/cei-unisinos/ici-backend/internal/email"
	"github.com/cei-unisinos/ici-backend/internal/export"
	"github.com/cei-unisinos/ici-backend/internal/metrics"
	"github.com/cei-unisinos/ici-backend/internal/observability/logger"
	"github.com/cei-unisinos/ici-backend/internal/store/core"
	"github.com/cei-unisinos/ici-backend/internal/util"
	"github.com/cei-unisinos/ici-backend/internal/validation"
)

type downloadRequestIn struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Institution string   `json:"institution"`
	Purpose     string   `json:"purpose"`
	Countries   []string `json:"countries,omitempty"`
	YearFrom    int      `json:"year_from"`
	YearTo      int      `json:"year_to"`
	Format      string   `json:"format"`
}

type downloadRequestOut struct {
	RequestID   string `json:"request_id"`
	Status      string `json:"status"` // sent | fallback
	RowCount    int    `json:"row_count"`
	Filename    string `json:"filename"`
	SentTo      string `json:"sent_to,omitempty"` // set when status is "sent"
	FallbackURL string `json:"fallback_url,omitempty"`
}

// CreateDownload handles POST /v1/downloads: render the requested slice of
// the dataset and email it to the requester. When SMTP fails the response
// carries a signed direct-download link instead.
func (a *API) CreateDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx)

	var in downloadRequestIn
	if !readJSON(w, r, &in) {
		return
	}
	in.Email = validation.NormalizeEmail(in.Email)

	form := validation.DownloadForm{
		Name:        in.Name,
		Email:       in.Email,
		Institution: in.Institution,
		Purpose:     in.Purpose,
	}
	if err := form.Validate(); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_form", err.Error(), 1001)
		return
	}

	format, err := export.ParseFormat(in.Format)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_format", "format must be csv or xlsx", 1002)
		return
	}

	minYear, maxYear, err := a.Repo.YearRange(ctx)
	if err != nil {
		if errors.Is(err, core.ErrEmptyDataset) {
			writeErr(w, http.StatusNotFound, "empty_dataset", "no data loaded", 1404)
			return
		}
		log.Error("year range read failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not read dataset", 1500)
		return
	}
	// unset bounds widen to the whole dataset
	if in.YearFrom == 0 {
		in.YearFrom = minYear
	}
	if in.YearTo == 0 {
		in.YearTo = maxYear
	}
	if err := validation.YearRange(in.YearFrom, in.YearTo, minYear, maxYear); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_years", err.Error(), 1003)
		return
	}

	filter := core.IndexFilter{Countries: in.Countries, YearFrom: in.YearFrom, YearTo: in.YearTo}
	rows, err := a.Repo.LoadIndex(ctx, filter)
	if err != nil {
		log.Error("dataset read failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not read dataset", 1500)
		return
	}
	if len(rows) == 0 {
		writeErr(w, http.StatusNotFound, "no_rows", "no rows match the requested filter", 1405)
		return
	}
	if a.MaxRows > 0 && len(rows) > a.MaxRows {
		writeErr(w, http.StatusBadRequest, "too_many_rows",
			fmt.Sprintf("request matches %d rows, the limit is %d", len(rows), a.MaxRows), 1004)
		return
	}

	data, err := export.Render(rows, format)
	if err != nil {
		log.Error("export render failed", logger.Format(string(format)), logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not render export", 1500)
		return
	}
	metrics.RecordExport(string(format))
	filename := export.Filename(in.YearFrom, in.YearTo, format)

	req := core.DownloadRequest{
		Name:        in.Name,
		Email:       in.Email,
		Institution: in.Institution,
		Purpose:     in.Purpose,
		Countries:   in.Countries,
		YearFrom:    in.YearFrom,
		YearTo:      in.YearTo,
		Format:      string(format),
		RowCount:    len(rows),
	}
	if err := a.Repo.InsertDownloadRequest(ctx, &req); err != nil {
		log.Error("download request insert failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not record request", 1500)
		return
	}

	mail := a.Email != nil && a.Email.Configured()
	out := downloadRequestOut{
		RequestID: req.ID,
		RowCount:  len(rows),
		Filename:  filename,
	}

	if mail {
		err = a.Email.SendDownload(ctx, downloadEmail(in, req, filename, format, data, ""))
		if err == nil {
			metrics.RecordEmailSent("download", "ok")
			if mkErr := a.Repo.MarkDelivered(ctx, req.ID); mkErr != nil {
				log.Warn("mark delivered failed", logger.ID(req.ID), logger.Err(mkErr))
			}
			// admin notification is best-effort
			if nErr := a.Email.NotifyAdminDownload(ctx, downloadEmail(in, req, filename, format, nil, "")); nErr != nil {
				metrics.RecordEmailSent("download_admin", "failed")
				log.Warn("admin notification failed", logger.Err(nErr))
			} else {
				metrics.RecordEmailSent("download_admin", "ok")
			}
			out.Status = "sent"
			out.SentTo = in.Email
			writeJSON(w, http.StatusAccepted, out)
			return
		}
		metrics.RecordEmailSent("download", "failed")
		log.Warn("download delivery failed, falling back to signed link",
			logger.Email(util.MaskEmail(in.Email)), logger.Err(err))
	}

	// SMTP missing or failed: hand out a signed link
	fallbackURL, fbErr := a.fallbackURL(req.ID, filter, string(format))
	if fbErr != nil {
		log.Error("fallback link failed", logger.Err(fbErr))
		writeErr(w, http.StatusBadGateway, "email_failed",
			"could not deliver the file and no fallback is available", 1502)
		return
	}
	if mail {
		// tell the requester by email too, without the attachment
		if fErr := a.Email.SendDownload(ctx, downloadEmail(in, req, filename, format, nil, fallbackURL)); fErr != nil {
			log.Warn("fallback email failed", logger.Err(fErr))
		}
	}
	out.Status = "fallback"
	out.FallbackURL = fallbackURL
	writeJSON(w, http.StatusAccepted, out)
}

func downloadEmail(in downloadRequestIn, stored core.DownloadRequest, filename string, format export.Format, data []byte, fallbackURL string) email.DownloadEmail {
	return email.DownloadEmail{
		To:          in.Email,
		Name:        in.Name,
		Institution: in.Institution,
		Purpose:     in.Purpose,
		Countries:   in.Countries,
		YearFrom:    stored.YearFrom,
		YearTo:      stored.YearTo,
		Format:      string(format),
		RowCount:    stored.RowCount,
		Filename:    filename,
		ContentType: format.ContentType(),
		Data:        data,
		FallbackURL: fallbackURL,
	}
}

func (a *API) fallbackURL(requestID string, f core.IndexFilter, format string) (string, error) {
	if a.Signer == nil {
		return "", errors.New("no download signer configured")
	}
	token, err := a.Signer.Sign(requestID, f, format)
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(a.PublicBaseURL, "/")
	return base + "/v1/downloads/file?token=" + url.QueryEscape(token), nil
}

// DownloadFile handles GET /v1/downloads/file?token=...: redeem a signed
// link by re-rendering the export it describes.
func (a *API) DownloadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if a.Signer == nil {
		writeErr(w, http.StatusNotFound, "not_found", "direct downloads disabled", 1404)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writeErr(w, http.StatusBadRequest, "missing_token", "token query parameter is required", 1005)
		return
	}

	claims, err := a.Signer.Verify(token)
	if err != nil {
		if errors.Is(err, download.ErrTokenExpired) {
			writeErr(w, http.StatusGone, "token_expired", "the download link has expired", 1006)
			return
		}
		writeErr(w, http.StatusUnauthorized, "invalid_token", "the download link is not valid", 1007)
		return
	}

	format, err := export.ParseFormat(claims.Format)
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "invalid_token", "the download link is not valid", 1007)
		return
	}

	rows, err := a.Repo.LoadIndex(ctx, claims.Filter())
	if err != nil {
		logger.From(ctx).Error("dataset read failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not read dataset", 1500)
		return
	}
	if len(rows) == 0 {
		writeErr(w, http.StatusNotFound, "no_rows", "no rows match the requested filter", 1405)
		return
	}

	data, err := export.Render(rows, format)
	if err != nil {
		logger.From(ctx).Error("export render failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not render export", 1500)
		return
	}
	metrics.RecordExport(string(format))

	if err := a.Repo.MarkDelivered(ctx, claims.Subject); err != nil && !errors.Is(err, core.ErrNotFound) {
		logger.From(ctx).Warn("mark delivered failed", logger.ID(claims.Subject), logger.Err(err))
	}

	filename := export.Filename(claims.YearFrom, claims.YearTo, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
