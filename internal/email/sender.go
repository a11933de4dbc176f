// Package email sends the transactional mail behind the data download and
// contact flows: dataset deliveries with the file attached, admin
// notifications, and user confirmations.
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/cei-unisinos/ici-backend/internal/observability/logger"
)

// Attachment is an in-memory file shipped with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a fully rendered outbound email.
type Message struct {
	To         string
	ReplyTo    string
	Subject    string
	HTMLBody   string
	TextBody   string
	Attachment *Attachment
}

// Sender delivers rendered messages.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender implements Sender over SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// NewSMTPSender builds a sender with TLS negotiation left to the dialer.
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		TLSMode: "auto",
	}
}

// Send delivers msg as multipart/alternative (text + html).
func (s *SMTPSender) Send(msg Message) error {
	log := logger.L().With(
		logger.Component("SMTPSender"),
		logger.String("host", s.Host),
		logger.Int("port", s.Port),
		logger.String("to", msg.To),
	)

	log.Debug("sending email",
		logger.String("from", s.From),
		logger.String("subject", msg.Subject),
		logger.String("tls_mode", s.TLSMode),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}

	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		if msg.TextBody == "" {
			m.SetBody("text/html", msg.HTMLBody)
		} else {
			m.AddAlternative("text/html", msg.HTMLBody)
		}
	}

	if a := msg.Attachment; a != nil {
		settings := []mail.FileSetting{}
		if a.ContentType != "" {
			settings = append(settings, mail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType},
			}))
		}
		m.AttachReader(a.Filename, bytes.NewReader(a.Data), settings...)
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // dev only
	}

	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// "auto"/"starttls": the dialer negotiates STARTTLS when offered
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		if DiagnoseSMTP(err).Code == "auth" {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	log.Info("email sent")
	return nil
}
