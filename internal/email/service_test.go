package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []Message
	err  error
}

func (f *fakeSender) Send(msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestService(t *testing.T, sender Sender) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Sender:        sender,
		AdminAddress:  "admin@example.org",
		TeamName:      "CEI Team",
		SubjectPrefix: "[ICI]",
	})
	require.NoError(t, err)
	return svc
}

func TestSendDownload_WithAttachment(t *testing.T) {
	fs := &fakeSender{}
	svc := newTestService(t, fs)

	err := svc.SendDownload(context.Background(), DownloadEmail{
		To:          "user@example.org",
		Name:        "Ana",
		Countries:   []string{"Brazil", "Chile"},
		YearFrom:    2010,
		YearTo:      2020,
		Format:      "csv",
		RowCount:    22,
		Filename:    "institutional_complexity_index_2010_2020.csv",
		ContentType: "text/csv",
		Data:        []byte("Country Name,Year\n"),
	})
	require.NoError(t, err)
	require.Len(t, fs.sent, 1)

	msg := fs.sent[0]
	assert.Equal(t, "user@example.org", msg.To)
	assert.Equal(t, "[ICI] Your Institutional Complexity Index data", msg.Subject)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "institutional_complexity_index_2010_2020.csv", msg.Attachment.Filename)
	assert.Contains(t, msg.TextBody, "Brazil, Chile")
	assert.Contains(t, msg.TextBody, "attached to this email")
	assert.Contains(t, msg.HTMLBody, "Ana")
}

func TestSendDownload_FallbackLink(t *testing.T) {
	fs := &fakeSender{}
	svc := newTestService(t, fs)

	err := svc.SendDownload(context.Background(), DownloadEmail{
		To:          "user@example.org",
		Name:        "Ana",
		YearFrom:    2015,
		YearTo:      2015,
		Format:      "xlsx",
		RowCount:    190,
		Filename:    "institutional_complexity_index_2015_2015.xlsx",
		FallbackURL: "https://ici.example.org/v1/downloads/file?token=abc",
	})
	require.NoError(t, err)
	require.Len(t, fs.sent, 1)

	msg := fs.sent[0]
	assert.Nil(t, msg.Attachment)
	assert.Contains(t, msg.TextBody, "https://ici.example.org/v1/downloads/file?token=abc")
	assert.Contains(t, msg.TextBody, "all countries")
}

func TestNotifyAdminDownload(t *testing.T) {
	fs := &fakeSender{}
	svc := newTestService(t, fs)

	err := svc.NotifyAdminDownload(context.Background(), DownloadEmail{
		To:          "user@example.org",
		Name:        "Ana",
		Institution: "Unisinos",
		Purpose:     "research",
		Format:      "csv",
		YearFrom:    2010,
		YearTo:      2023,
		RowCount:    100,
	})
	require.NoError(t, err)
	require.Len(t, fs.sent, 1)

	msg := fs.sent[0]
	assert.Equal(t, "admin@example.org", msg.To)
	assert.Equal(t, "user@example.org", msg.ReplyTo)
	assert.Contains(t, msg.TextBody, "Unisinos")
}

func TestNotifyAdminDownload_NoAdminAddressSkips(t *testing.T) {
	fs := &fakeSender{}
	svc, err := NewService(ServiceConfig{Sender: fs})
	require.NoError(t, err)

	err = svc.NotifyAdminDownload(context.Background(), DownloadEmail{To: "u@example.org"})
	require.NoError(t, err)
	assert.Empty(t, fs.sent)
}

func TestContactFlow(t *testing.T) {
	fs := &fakeSender{}
	svc := newTestService(t, fs)
	req := ContactEmail{
		Name:    "Bruno",
		Email:   "bruno@example.org",
		Subject: "Data question",
		Message: "How is the total index computed?",
	}

	require.NoError(t, svc.SendContactNotification(context.Background(), req))
	require.NoError(t, svc.SendContactConfirmation(context.Background(), req))
	require.Len(t, fs.sent, 2)

	assert.Equal(t, "admin@example.org", fs.sent[0].To)
	assert.Equal(t, "bruno@example.org", fs.sent[0].ReplyTo)
	assert.Equal(t, "[ICI] Contact: Data question", fs.sent[0].Subject)

	assert.Equal(t, "bruno@example.org", fs.sent[1].To)
	assert.Contains(t, fs.sent[1].TextBody, "We received your message")
}

func TestUnconfiguredService(t *testing.T) {
	svc, err := NewService(ServiceConfig{})
	require.NoError(t, err)
	assert.False(t, svc.Configured())

	err = svc.SendDownload(context.Background(), DownloadEmail{To: "u@example.org"})
	assert.ErrorIs(t, err, ErrNoSMTPConfig)

	_, err = svc.TestSMTP(context.Background(), "u@example.org")
	assert.ErrorIs(t, err, ErrNoSMTPConfig)
}

func TestTestSMTP_ClassifiesAuthFailure(t *testing.T) {
	fs := &fakeSender{err: errors.New("535 5.7.8 Username and Password not accepted")}
	svc := newTestService(t, fs)

	diag, err := svc.TestSMTP(context.Background(), "admin@example.org")
	require.Error(t, err)
	assert.Equal(t, "auth", diag.Code)
	assert.False(t, diag.Temporary)
}

func TestDiagnoseSMTP(t *testing.T) {
	cases := []struct {
		err  string
		code string
		temp bool
	}{
		{"dial tcp 1.2.3.4:587: connection refused", "dial", true},
		{"i/o timeout", "timeout", true},
		{"x509: certificate signed by unknown authority", "tls", false},
		{"554 5.7.1 message rejected", "rejected", false},
		{"550 5.1.1 user unknown", "invalid_recipient", false},
		{"421 try again later", "rate_limited", true},
	}
	for _, tc := range cases {
		got := DiagnoseSMTP(errors.New(tc.err))
		assert.Equal(t, tc.code, got.Code, tc.err)
		assert.Equal(t, tc.temp, got.Temporary, tc.err)
	}
}
