package validation

import (
	"strings"
	"testing"
)

func TestValidEmail(t *testing.T) {
	valids := []string{
		"ana@example.org",
		"a.b+tag@sub.example.co",
		"x@unisinos.br",
	}
	for _, v := range valids {
		if !ValidEmail(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}

	invalids := []string{
		"",
		"plainaddress",
		"@example.org",
		"user@",
		"Ana <ana@example.org>",
		"two@at@signs",
	}
	for _, v := range invalids {
		if ValidEmail(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ana@Example.ORG "); got != "ana@example.org" {
		t.Fatalf("got %q", got)
	}
}

func TestDownloadFormValidate(t *testing.T) {
	ok := DownloadForm{Name: "Ana", Email: "ana@example.org", Institution: "Unisinos", Purpose: "research"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}

	bad := DownloadForm{Email: "nope"}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	errs, okCast := err.(Errors)
	if !okCast {
		t.Fatalf("expected Errors, got %T", err)
	}
	// all four fields reported in a single pass
	if len(errs) != 4 {
		t.Fatalf("expected 4 field errors, got %d: %v", len(errs), errs)
	}
}

func TestContactFormValidate(t *testing.T) {
	ok := ContactForm{Name: "Bruno", Email: "b@example.org", Subject: "hi", Message: "hello"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}

	long := ContactForm{
		Name:    "Bruno",
		Email:   "b@example.org",
		Subject: "hi",
		Message: strings.Repeat("x", 5001),
	}
	if err := long.Validate(); err == nil {
		t.Fatal("expected length error")
	}
}

func TestYearRange(t *testing.T) {
	if err := YearRange(2010, 2020, 2000, 2023); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := YearRange(2021, 2020, 2000, 2023); err == nil {
		t.Fatal("expected inverted range error")
	}
	if err := YearRange(1990, 2020, 2000, 2023); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}
