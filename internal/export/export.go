// Package export renders dataset rows as downloadable CSV or XLSX files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/cei-unisinos/ici-backend/internal/store/core"
)

// Format identifies an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat normalizes a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "csv", "CSV":
		return FormatCSV, nil
	case "xlsx", "XLSX", "excel", "Excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", s)
	}
}

// ContentType returns the MIME type served with the file.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string { return string(f) }

// headers are the published column names, in file order. The internal
// n_dims_ok bookkeeping column is not exported.
var headers = []string{
	"Country Name",
	"Country Code",
	"Year",
	"Socio-Cultural Index",
	"Markets & Business Index",
	"Entrepreneurship Index",
	"Government Efficiency Index",
	"Legal Environment Index",
	"Total Complexity Index",
}

const sheetName = "Complexity Index"

// Filename builds the canonical download name for a year range,
// e.g. institutional_complexity_index_2010_2023.csv.
func Filename(yearFrom, yearTo int, f Format) string {
	return fmt.Sprintf("institutional_complexity_index_%d_%d.%s", yearFrom, yearTo, f.Extension())
}

// Render serializes rows in the requested format.
func Render(rows []core.IndexRecord, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return renderCSV(rows)
	case FormatXLSX:
		return renderXLSX(rows)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", f)
	}
}

func renderCSV(rows []core.IndexRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("export: write header: %w", err)
	}
	rec := make([]string, len(headers))
	for _, r := range rows {
		rec[0] = r.CountryName
		rec[1] = r.CountryCode
		rec[2] = strconv.Itoa(r.Year)
		rec[3] = floatCell(r.SocioCultural)
		rec[4] = floatCell(r.MarketsBusiness)
		rec[5] = floatCell(r.Entrepreneurship)
		rec[6] = floatCell(r.GovernmentEfficiency)
		rec[7] = floatCell(r.LegalEnvironment)
		rec[8] = floatCell(r.Total)
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("export: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: flush: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(rows []core.IndexRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("export: new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("export: delete default sheet: %w", err)
	}

	head := make([]any, len(headers))
	for i, h := range headers {
		head[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &head); err != nil {
		return nil, fmt.Errorf("export: write header: %w", err)
	}

	for i, r := range rows {
		row := []any{
			r.CountryName,
			r.CountryCode,
			r.Year,
			floatValue(r.SocioCultural),
			floatValue(r.MarketsBusiness),
			floatValue(r.Entrepreneurship),
			floatValue(r.GovernmentEfficiency),
			floatValue(r.LegalEnvironment),
			floatValue(r.Total),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("export: cell name: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("export: write row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// floatValue keeps NULL components as empty cells instead of zeros.
func floatValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
