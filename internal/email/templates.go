package email

import (
	"bytes"
	"fmt"
	htemplate "html/template"
	ttemplate "text/template"
)

// Template variables for the four message kinds.

// DownloadVars renders the delivery email sent to the requester.
type DownloadVars struct {
	Name      string
	Countries string // "all countries" when the filter was empty
	YearFrom  int
	YearTo    int
	Format    string
	RowCount  int
	Filename  string
	TeamName  string
	// FallbackURL is set only when the attachment could not be sent and a
	// signed direct-download link is offered instead.
	FallbackURL string
}

// DownloadAdminVars renders the notification sent to the admin address.
type DownloadAdminVars struct {
	Name        string
	Email       string
	Institution string
	Purpose     string
	Countries   string
	YearFrom    int
	YearTo      int
	Format      string
	RowCount    int
}

// ContactAdminVars renders the contact form forwarded to the admin address.
type ContactAdminVars struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ContactConfirmVars renders the confirmation sent back to the user.
type ContactConfirmVars struct {
	Name     string
	Subject  string
	TeamName string
}

const downloadHTML = `<html><body>
<p>Hello {{.Name}},</p>
<p>Thank you for your interest in the Institutional Complexity Index.</p>
{{if .FallbackURL}}
<p>We could not attach the file to this message. You can download your data directly here (the link expires):</p>
<p><a href="{{.FallbackURL}}">Download {{.Filename}}</a></p>
{{else}}
<p>Your requested data is attached to this email as <b>{{.Filename}}</b>.</p>
{{end}}
<p>Request summary:</p>
<ul>
<li>Countries: {{.Countries}}</li>
<li>Period: {{.YearFrom}}&ndash;{{.YearTo}}</li>
<li>Format: {{.Format}}</li>
<li>Rows: {{.RowCount}}</li>
</ul>
<p>Best regards,<br>{{.TeamName}}</p>
</body></html>`

const downloadText = `Hello {{.Name}},

Thank you for your interest in the Institutional Complexity Index.
{{if .FallbackURL}}
We could not attach the file to this message. Download your data directly
here (the link expires):

{{.FallbackURL}}
{{else}}
Your requested data is attached to this email as {{.Filename}}.
{{end}}
Request summary:
  Countries: {{.Countries}}
  Period:    {{.YearFrom}}-{{.YearTo}}
  Format:    {{.Format}}
  Rows:      {{.RowCount}}

Best regards,
{{.TeamName}}`

const downloadAdminHTML = `<html><body>
<p>New data download request:</p>
<ul>
<li>Name: {{.Name}}</li>
<li>Email: {{.Email}}</li>
<li>Institution: {{.Institution}}</li>
<li>Purpose: {{.Purpose}}</li>
<li>Countries: {{.Countries}}</li>
<li>Period: {{.YearFrom}}&ndash;{{.YearTo}}</li>
<li>Format: {{.Format}}</li>
<li>Rows: {{.RowCount}}</li>
</ul>
</body></html>`

const downloadAdminText = `New data download request:

  Name:        {{.Name}}
  Email:       {{.Email}}
  Institution: {{.Institution}}
  Purpose:     {{.Purpose}}
  Countries:   {{.Countries}}
  Period:      {{.YearFrom}}-{{.YearTo}}
  Format:      {{.Format}}
  Rows:        {{.RowCount}}`

const contactAdminHTML = `<html><body>
<p>New contact form message:</p>
<ul>
<li>Name: {{.Name}}</li>
<li>Email: {{.Email}}</li>
<li>Subject: {{.Subject}}</li>
</ul>
<p>{{.Message}}</p>
</body></html>`

const contactAdminText = `New contact form message:

  Name:    {{.Name}}
  Email:   {{.Email}}
  Subject: {{.Subject}}

{{.Message}}`

const contactConfirmHTML = `<html><body>
<p>Hello {{.Name}},</p>
<p>We received your message ("{{.Subject}}") and will get back to you soon.</p>
<p>Best regards,<br>{{.TeamName}}</p>
</body></html>`

const contactConfirmText = `Hello {{.Name}},

We received your message ("{{.Subject}}") and will get back to you soon.

Best regards,
{{.TeamName}}`

// templates holds every message kind pre-compiled.
type templates struct {
	downloadHTML       *htemplate.Template
	downloadText       *ttemplate.Template
	downloadAdminHTML  *htemplate.Template
	downloadAdminText  *ttemplate.Template
	contactAdminHTML   *htemplate.Template
	contactAdminText   *ttemplate.Template
	contactConfirmHTML *htemplate.Template
	contactConfirmText *ttemplate.Template
}

func compileTemplates() (*templates, error) {
	t := &templates{}
	var err error
	if t.downloadHTML, err = htemplate.New("download_html").Parse(downloadHTML); err != nil {
		return nil, err
	}
	if t.downloadText, err = ttemplate.New("download_txt").Parse(downloadText); err != nil {
		return nil, err
	}
	if t.downloadAdminHTML, err = htemplate.New("download_admin_html").Parse(downloadAdminHTML); err != nil {
		return nil, err
	}
	if t.downloadAdminText, err = ttemplate.New("download_admin_txt").Parse(downloadAdminText); err != nil {
		return nil, err
	}
	if t.contactAdminHTML, err = htemplate.New("contact_admin_html").Parse(contactAdminHTML); err != nil {
		return nil, err
	}
	if t.contactAdminText, err = ttemplate.New("contact_admin_txt").Parse(contactAdminText); err != nil {
		return nil, err
	}
	if t.contactConfirmHTML, err = htemplate.New("contact_confirm_html").Parse(contactConfirmHTML); err != nil {
		return nil, err
	}
	if t.contactConfirmText, err = ttemplate.New("contact_confirm_txt").Parse(contactConfirmText); err != nil {
		return nil, err
	}
	return t, nil
}

func renderHTML(t *htemplate.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

func renderText(t *ttemplate.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}
