// Package validation checks the public form inputs (download and contact)
// before they reach storage or SMTP.
package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// FieldError ties a validation failure to the offending field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Reason }

// Errors aggregates every failed field so the caller can report them all
// at once instead of one per round trip.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail parses the address per RFC 5322 and rejects display names
// ("Ana <ana@x>" is not acceptable form input).
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == s
}

func required(errs Errors, field, value string, max int) Errors {
	v := strings.TrimSpace(value)
	if v == "" {
		return append(errs, FieldError{Field: field, Reason: "required"})
	}
	if utf8.RuneCountInString(v) > max {
		return append(errs, FieldError{Field: field, Reason: fmt.Sprintf("longer than %d characters", max)})
	}
	return errs
}

// DownloadForm is the data download request form.
type DownloadForm struct {
	Name        string
	Email       string
	Institution string
	Purpose     string
}

// Validate returns nil or an Errors listing every invalid field.
func (f DownloadForm) Validate() error {
	var errs Errors
	errs = required(errs, "name", f.Name, 200)
	errs = required(errs, "institution", f.Institution, 200)
	errs = required(errs, "purpose", f.Purpose, 2000)
	if strings.TrimSpace(f.Email) == "" {
		errs = append(errs, FieldError{Field: "email", Reason: "required"})
	} else if !ValidEmail(NormalizeEmail(f.Email)) {
		errs = append(errs, FieldError{Field: "email", Reason: "not a valid address"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ContactForm is the contact form.
type ContactForm struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// Validate returns nil or an Errors listing every invalid field.
func (f ContactForm) Validate() error {
	var errs Errors
	errs = required(errs, "name", f.Name, 200)
	errs = required(errs, "subject", f.Subject, 300)
	errs = required(errs, "message", f.Message, 5000)
	if strings.TrimSpace(f.Email) == "" {
		errs = append(errs, FieldError{Field: "email", Reason: "required"})
	} else if !ValidEmail(NormalizeEmail(f.Email)) {
		errs = append(errs, FieldError{Field: "email", Reason: "not a valid address"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// YearRange checks from <= to and both within the dataset bounds.
func YearRange(from, to, min, max int) error {
	var errs Errors
	if from > to {
		errs = append(errs, FieldError{Field: "year_from", Reason: "after year_to"})
	}
	if from < min || from > max {
		errs = append(errs, FieldError{Field: "year_from", Reason: fmt.Sprintf("outside %d-%d", min, max)})
	}
	if to < min || to > max {
		errs = append(errs, FieldError{Field: "year_to", Reason: fmt.Sprintf("outside %d-%d", min, max)})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
