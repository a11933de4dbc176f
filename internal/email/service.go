package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/cei-unisinos/ici-backend/internal/observability/logger"
)

// Service renders and sends the application's message kinds.
type Service struct {
	sender   Sender
	tmpl     *templates
	adminTo  string
	teamName string
	prefix   string
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Sender        Sender // nil means SMTP is not configured
	AdminAddress  string
	TeamName      string
	SubjectPrefix string // e.g. "[ICI]"
}

// NewService compiles all templates up front so a broken template fails at
// startup, not on the first request.
func NewService(cfg ServiceConfig) (*Service, error) {
	tmpl, err := compileTemplates()
	if err != nil {
		return nil, fmt.Errorf("email: compile templates: %w", err)
	}
	teamName := cfg.TeamName
	if teamName == "" {
		teamName = "Institutional Complexity Index Team"
	}
	return &Service{
		sender:   cfg.Sender,
		tmpl:     tmpl,
		adminTo:  cfg.AdminAddress,
		teamName: teamName,
		prefix:   cfg.SubjectPrefix,
	}, nil
}

// Configured reports whether a sender is wired.
func (s *Service) Configured() bool { return s.sender != nil }

func (s *Service) subject(sub string) string {
	if s.prefix == "" {
		return sub
	}
	return s.prefix + " " + sub
}

// DownloadEmail carries everything needed to deliver a dataset export.
type DownloadEmail struct {
	To          string
	Name        string
	Institution string
	Purpose     string
	Countries   []string
	YearFrom    int
	YearTo      int
	Format      string
	RowCount    int
	Filename    string
	ContentType string
	// Data is the rendered file. Left nil for the fallback-link variant.
	Data        []byte
	FallbackURL string
}

func countriesLabel(countries []string) string {
	if len(countries) == 0 {
		return "all countries"
	}
	return strings.Join(countries, ", ")
}

// SendDownload delivers the export to the requester, attached when Data is
// present or as a signed link otherwise.
func (s *Service) SendDownload(ctx context.Context, req DownloadEmail) error {
	if s.sender == nil {
		return ErrNoSMTPConfig
	}
	vars := DownloadVars{
		Name:        req.Name,
		Countries:   countriesLabel(req.Countries),
		YearFrom:    req.YearFrom,
		YearTo:      req.YearTo,
		Format:      req.Format,
		RowCount:    req.RowCount,
		Filename:    req.Filename,
		TeamName:    s.teamName,
		FallbackURL: req.FallbackURL,
	}
	html, err := renderHTML(s.tmpl.downloadHTML, vars)
	if err != nil {
		return err
	}
	text, err := renderText(s.tmpl.downloadText, vars)
	if err != nil {
		return err
	}

	msg := Message{
		To:       req.To,
		Subject:  s.subject("Your Institutional Complexity Index data"),
		HTMLBody: html,
		TextBody: text,
	}
	if len(req.Data) > 0 {
		msg.Attachment = &Attachment{
			Filename:    req.Filename,
			ContentType: req.ContentType,
			Data:        req.Data,
		}
	}

	logger.From(ctx).Info("sending download delivery",
		logger.Email(req.To),
		logger.Format(req.Format),
		logger.Rows(req.RowCount),
	)
	return s.sender.Send(msg)
}

// NotifyAdminDownload tells the admin address about a download request.
// A missing admin address is not an error; the notification is skipped.
func (s *Service) NotifyAdminDownload(ctx context.Context, req DownloadEmail) error {
	if s.sender == nil {
		return ErrNoSMTPConfig
	}
	if s.adminTo == "" {
		logger.From(ctx).Debug("no admin address, skipping download notification")
		return nil
	}
	vars := DownloadAdminVars{
		Name:        req.Name,
		Email:       req.To,
		Institution: req.Institution,
		Purpose:     req.Purpose,
		Countries:   countriesLabel(req.Countries),
		YearFrom:    req.YearFrom,
		YearTo:      req.YearTo,
		Format:      req.Format,
		RowCount:    req.RowCount,
	}
	html, err := renderHTML(s.tmpl.downloadAdminHTML, vars)
	if err != nil {
		return err
	}
	text, err := renderText(s.tmpl.downloadAdminText, vars)
	if err != nil {
		return err
	}
	return s.sender.Send(Message{
		To:       s.adminTo,
		ReplyTo:  req.To,
		Subject:  s.subject("New data download request"),
		HTMLBody: html,
		TextBody: text,
	})
}

// ContactEmail is a contact form submission to forward and confirm.
type ContactEmail struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// SendContactNotification forwards the message to the admin address with the
// user's address as Reply-To.
func (s *Service) SendContactNotification(ctx context.Context, req ContactEmail) error {
	if s.sender == nil {
		return ErrNoSMTPConfig
	}
	if s.adminTo == "" {
		return fmt.Errorf("%w: admin address not set", ErrNoSMTPConfig)
	}
	vars := ContactAdminVars{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}
	html, err := renderHTML(s.tmpl.contactAdminHTML, vars)
	if err != nil {
		return err
	}
	text, err := renderText(s.tmpl.contactAdminText, vars)
	if err != nil {
		return err
	}
	logger.From(ctx).Info("forwarding contact message", logger.Email(req.Email))
	return s.sender.Send(Message{
		To:       s.adminTo,
		ReplyTo:  req.Email,
		Subject:  s.subject("Contact: " + req.Subject),
		HTMLBody: html,
		TextBody: text,
	})
}

// SendContactConfirmation acknowledges the submission to the user.
func (s *Service) SendContactConfirmation(ctx context.Context, req ContactEmail) error {
	if s.sender == nil {
		return ErrNoSMTPConfig
	}
	vars := ContactConfirmVars{
		Name:     req.Name,
		Subject:  req.Subject,
		TeamName: s.teamName,
	}
	html, err := renderHTML(s.tmpl.contactConfirmHTML, vars)
	if err != nil {
		return err
	}
	text, err := renderText(s.tmpl.contactConfirmText, vars)
	if err != nil {
		return err
	}
	return s.sender.Send(Message{
		To:       req.Email,
		Subject:  s.subject("We received your message"),
		HTMLBody: html,
		TextBody: text,
	})
}

// TestSMTP sends a short diagnostic message and classifies any failure.
func (s *Service) TestSMTP(ctx context.Context, to string) (SMTPDiag, error) {
	if s.sender == nil {
		return SMTPDiag{Code: "unconfigured"}, ErrNoSMTPConfig
	}
	err := s.sender.Send(Message{
		To:       to,
		Subject:  s.subject("SMTP test"),
		TextBody: "This is a test message confirming the SMTP configuration works.",
	})
	if err != nil {
		diag := DiagnoseSMTP(err)
		logger.From(ctx).Warn("smtp test failed",
			logger.Email(to),
			logger.String("diag_code", diag.Code),
			logger.Err(err),
		)
		return diag, err
	}
	return SMTPDiag{Code: "ok"}, nil
}
