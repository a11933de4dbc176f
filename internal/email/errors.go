package email

import "errors"

var (
	// ErrNoSMTPConfig means the server was started without the SMTP
	// environment contract (SMTP_SERVER, SENDER_EMAIL, SENDER_PASSWORD).
	ErrNoSMTPConfig = errors.New("email: SMTP not configured")

	// ErrAuthFailed covers 535 / "username and password not accepted"
	// responses. With Gmail this almost always means the account needs a
	// 16-character app password instead of the login password.
	ErrAuthFailed = errors.New("email: SMTP authentication failed")

	// ErrSendFailed is any other delivery failure.
	ErrSendFailed = errors.New("email: send failed")

	// ErrTemplateRender means a message body could not be rendered.
	ErrTemplateRender = errors.New("email: template render failed")
)
