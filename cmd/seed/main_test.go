package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook builds a fixture in the shape the research team exports:
// legacy header spellings, an ici_all5 column the loader must drop, NA
// cells and a blank trailing row.
func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	path := filepath.Join(t.TempDir(), "dataset.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func fixtureHeader() []any {
	return []any{
		"Country", "iso3", "Ano",
		"indice_socio_cultural", "indice_mercados_negocios", "indice_empreendedorismo",
		"indice_eficiencia_governo", "indice_ambiente_juridico",
		"n_dims_ok", "ici", "ici_all5",
	}
}

func TestLoadWorkbook_AliasesAndNulls(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		fixtureHeader(),
		{"Brazil", "bra", 2020, 40.5, 50.5, 60.5, 70.5, 80.5, 5, 60.5, 61.0},
		{"Chile", "CHL", 2020, "NA", 55.0, 65.0, 75.0, 85.0, 4, 70.0, nil},
		{"", "", nil, nil, nil, nil, nil, nil, nil, nil, nil}, // trailing blank
	})

	recs, err := loadWorkbook(path, "")
	require.NoError(t, err)
	require.Len(t, recs, 2, "blank trailing row must be skipped")

	br := recs[0]
	assert.Equal(t, "Brazil", br.CountryName)
	assert.Equal(t, "BRA", br.CountryCode, "codes are uppercased")
	assert.Equal(t, 2020, br.Year)
	require.NotNil(t, br.Total)
	assert.InDelta(t, 60.5, *br.Total, 1e-9, "ici column maps to the total")
	require.NotNil(t, br.NDimsOK)
	assert.Equal(t, 5, *br.NDimsOK)

	cl := recs[1]
	assert.Nil(t, cl.SocioCultural, "NA cell becomes NULL")
	require.NotNil(t, cl.MarketsBusiness)
	assert.InDelta(t, 55.0, *cl.MarketsBusiness, 1e-9)
}

// The dataset contract: every index value sits in 0-100 and the total is
// the mean of the components that have data.
func TestLoadWorkbook_RangeAndMeanInvariant(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		fixtureHeader(),
		{"Brazil", "BRA", 2020, 40.5, 50.5, 60.5, 70.5, 80.5, 5, 60.5, nil},
		{"Chile", "CHL", 2020, nil, 55.0, 65.0, 75.0, 85.0, 4, 70.0, nil},
		{"Uruguay", "URY", 2021, 0.0, 100.0, 50.0, 25.0, 75.0, 5, 50.0, nil},
	})

	recs, err := loadWorkbook(path, "")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	for _, rec := range recs {
		components := []*float64{
			rec.SocioCultural, rec.MarketsBusiness, rec.Entrepreneurship,
			rec.GovernmentEfficiency, rec.LegalEnvironment,
		}
		var sum float64
		var n int
		for _, c := range components {
			if c == nil {
				continue
			}
			assert.GreaterOrEqual(t, *c, 0.0, "%s %d", rec.CountryName, rec.Year)
			assert.LessOrEqual(t, *c, 100.0, "%s %d", rec.CountryName, rec.Year)
			sum += *c
			n++
		}
		require.NotNil(t, rec.NDimsOK)
		assert.Equal(t, n, *rec.NDimsOK)
		require.NotNil(t, rec.Total)
		assert.InDelta(t, sum/float64(n), *rec.Total, 1e-9,
			"%s %d: total must be the mean of the available components", rec.CountryName, rec.Year)
	}
}

func TestLoadWorkbook_MissingRequiredColumn(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Country", "Ano", "ici"}, // no country code column
		{"Brazil", 2020, 60.5},
	})
	_, err := loadWorkbook(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country_cod")
}

func TestLoadWorkbook_BadYear(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		fixtureHeader(),
		{"Brazil", "BRA", "soon", 40.0, 50.0, 60.0, 70.0, 80.0, 5, 60.0, nil},
	})
	_, err := loadWorkbook(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "year")
}

func TestMapHeader_DuplicateAlias(t *testing.T) {
	// "ici" and "indice_total" resolve to the same canonical column.
	_, err := mapHeader([]string{"country_name", "country_cod", "year", "ici", "indice_total"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestParseFloatCell(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want *float64
		ok   bool
	}{
		{"46.2", ptr(46.2), true},
		{"46,2", ptr(46.2), true}, // decimal comma
		{"", nil, true},
		{"NA", nil, true},
		{"nan", nil, true},
		{"null", nil, true},
		{"abc", nil, false},
	} {
		got, err := parseFloatCell(tc.in)
		if !tc.ok {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "input %q", tc.in)
		} else {
			require.NotNil(t, got, "input %q", tc.in)
			assert.InDelta(t, *tc.want, *got, 1e-9)
		}
	}
}

func ptr(v float64) *float64 { return &v }
