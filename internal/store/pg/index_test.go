package pg

import (
	"strings"
	"testing"

	"github.com/cei-unisinos/ici-backend/internal/store/core"
)

func TestBuildIndexQuery_NoFilter(t *testing.T) {
	q, args := buildIndexQuery(defaultTable, core.IndexFilter{})
	if len(args) != 0 {
		t.Fatalf("args = %v", args)
	}
	if strings.Contains(q, "WHERE") {
		t.Fatalf("unexpected WHERE: %s", q)
	}
	if !strings.HasSuffix(q, "ORDER BY country_name, year") {
		t.Fatalf("missing order: %s", q)
	}
}

func TestBuildIndexQuery_AllFilters(t *testing.T) {
	f := core.IndexFilter{
		Countries: []string{"Brazil", "Chile"},
		YearFrom:  2018,
		YearTo:    2021,
	}
	q, args := buildIndexQuery(defaultTable, f)
	if len(args) != 3 {
		t.Fatalf("want 3 args, got %v", args)
	}
	for _, want := range []string{"country_name = ANY($1)", "year >= $2", "year <= $3"} {
		if !strings.Contains(q, want) {
			t.Fatalf("query missing %q: %s", want, q)
		}
	}
}

func TestBuildIndexQuery_YearOnly(t *testing.T) {
	q, args := buildIndexQuery(defaultTable, core.IndexFilter{YearFrom: 2015})
	if len(args) != 1 {
		t.Fatalf("args = %v", args)
	}
	if !strings.Contains(q, "year >= $1") || strings.Contains(q, "ANY") {
		t.Fatalf("bad query: %s", q)
	}
}

func TestPgIdentifier(t *testing.T) {
	cases := map[string]string{
		"indice_complexidade_institucional":  "indice_complexidade_institucional",
		" Indice_Total ":                     "indice_total",
		"bad; DROP TABLE x":                  "baddroptablex",
		"":                                   "",
	}
	for in, want := range cases {
		if got := pgIdentifier(in); got != want {
			t.Fatalf("pgIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}
