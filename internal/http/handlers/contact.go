package handlers

import (
	"net/http"

	"github.com/cei-unisinos/ici-backend/internal/email"
	"github.com/cei-unisinos/ici-backend/internal/metrics"
	"github.com/cei-unisinos/ici-backend/internal/observability/logger"
	"github.com/cei-unisinos/ici-backend/internal/store/core"
	"github.com/cei-unisinos/ici-backend/internal/util"
	"github.com/cei-unisinos/ici-backend/internal/validation"
)

type contactIn struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Contact handles POST /v1/contact: store the message, forward it to the
// admin address, and confirm receipt to the sender.
func (a *API) Contact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx)

	var in contactIn
	if !readJSON(w, r, &in) {
		return
	}
	in.Email = validation.NormalizeEmail(in.Email)

	form := validation.ContactForm{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	}
	if err := form.Validate(); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_form", err.Error(), 1001)
		return
	}

	msg := core.ContactMessage{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	}
	if err := a.Repo.InsertContactMessage(ctx, &msg); err != nil {
		log.Error("contact insert failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not record message", 1500)
		return
	}

	if a.Email == nil || !a.Email.Configured() {
		// the message is stored either way
		writeJSON(w, http.StatusAccepted, map[string]any{"id": msg.ID, "status": "stored"})
		return
	}

	notif := email.ContactEmail{Name: in.Name, Email: in.Email, Subject: in.Subject, Message: in.Message}
	if err := a.Email.SendContactNotification(ctx, notif); err != nil {
		metrics.RecordEmailSent("contact_admin", "failed")
		log.Error("contact notification failed",
			logger.Email(util.MaskEmail(in.Email)), logger.Err(err))
		writeErr(w, http.StatusBadGateway, "email_failed", "the message was stored but could not be forwarded", 1502)
		return
	}
	metrics.RecordEmailSent("contact_admin", "ok")

	// confirmation is best-effort
	if err := a.Email.SendContactConfirmation(ctx, notif); err != nil {
		metrics.RecordEmailSent("contact_confirm", "failed")
		log.Warn("contact confirmation failed", logger.Err(err))
	} else {
		metrics.RecordEmailSent("contact_confirm", "ok")
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"id": msg.ID, "status": "sent"})
}
