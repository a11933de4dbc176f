// Command seed loads the institutional complexity dataset from the
// research team's XLSX workbook into Postgres, replacing whatever the
// table held before.
//
// The workbook carries one header row. The loader maps columns by
// header name, renames the legacy "ici" column to indice_total and
// drops "ici_all5" (a strict five-dimension variant the API does not
// serve). Blank cells become NULLs.
//
// Usage:
//
//	seed -file dados/indice.xlsx [-sheet Sheet1] [-config configs/config.yaml] [-dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"

	"github.com/cei-unisinos/ici-backend/internal/config"
	"github.com/cei-unisinos/ici-backend/internal/store/core"
	"github.com/cei-unisinos/ici-backend/internal/store/pg"
)

// columnAliases maps every header spelling seen in the team's files
// to the canonical column.
var columnAliases = map[string]string{
	"country_name":              "country_name",
	"country":                   "country_name",
	"country_cod":               "country_cod",
	"country_code":              "country_cod",
	"iso3":                      "country_cod",
	"year":                      "year",
	"ano":                       "year",
	"indice_socio_cultural":     "indice_socio_cultural",
	"indice_mercados_negocios":  "indice_mercados_negocios",
	"indice_empreendedorismo":   "indice_empreendedorismo",
	"indice_eficiencia_governo": "indice_eficiencia_governo",
	"indice_ambiente_juridico":  "indice_ambiente_juridico",
	"n_dims_ok":                 "n_dims_ok",
	"ici":                       "indice_total",
	"indice_total":              "indice_total",
	// dropped on purpose
	"ici_all5": "",
}

func main() {
	var (
		file       = flag.String("file", "", "XLSX workbook with the dataset (required)")
		sheet      = flag.String("sheet", "", "Sheet name (default: first sheet)")
		configPath = flag.String("config", "configs/config.yaml", "Path to YAML config")
		dryRun     = flag.Bool("dry-run", false, "Parse and report, do not write to the database")
	)
	flag.Parse()

	if *file == "" {
		log.Fatal("missing -file: path to the dataset workbook")
	}

	recs, err := loadWorkbook(*file, *sheet)
	if err != nil {
		log.Fatalf("load %s: %v", *file, err)
	}
	if len(recs) == 0 {
		log.Fatal("workbook has no data rows")
	}
	log.Printf("parsed %d rows from %s", len(recs), *file)

	if *dryRun {
		log.Println("dry run, not writing")
		return
	}

	_ = godotenv.Load(".env")

	dsn := strings.TrimSpace(os.Getenv("STORAGE_DSN"))
	table := strings.TrimSpace(os.Getenv("DATASET_TABLE"))
	if dsn == "" || table == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load: %v (set STORAGE_DSN to skip the YAML)", err)
		}
		if dsn == "" {
			dsn = cfg.Storage.DSN
		}
		if table == "" {
			table = cfg.Dataset.Table
		}
	}
	if dsn == "" {
		log.Fatal("no DSN (STORAGE_DSN or storage.dsn in the config)")
	}

	ctx := context.Background()
	store, err := pg.New(ctx, dsn, pg.Config{Table: table})
	if err != nil {
		log.Fatalf("store open: %v", err)
	}
	defer store.Close()

	if err := store.ReplaceAll(ctx, recs); err != nil {
		log.Fatalf("replace dataset: %v", err)
	}
	log.Printf("dataset replaced: %d rows in %s", len(recs), table)
}

// loadWorkbook reads and validates the dataset sheet.
func loadWorkbook(path, sheet string) ([]core.IndexRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q: need a header row plus data", sheet)
	}

	cols, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	var out []core.IndexRecord
	for i, row := range rows[1:] {
		rec, skip, err := parseRow(cols, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if skip {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// mapHeader resolves each canonical column to its position. Unknown
// headers are ignored, missing required ones are an error.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		canon, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok || canon == "" {
			continue
		}
		if _, dup := cols[canon]; dup {
			return nil, fmt.Errorf("duplicate column %q in header", canon)
		}
		cols[canon] = i
	}
	for _, required := range []string{"country_name", "country_cod", "year"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q in header", required)
		}
	}
	return cols, nil
}

func parseRow(cols map[string]int, row []string) (core.IndexRecord, bool, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rec core.IndexRecord
	rec.CountryName = cell("country_name")
	rec.CountryCode = strings.ToUpper(cell("country_cod"))
	if rec.CountryName == "" && rec.CountryCode == "" {
		// trailing blank row
		return rec, true, nil
	}
	if rec.CountryName == "" || rec.CountryCode == "" {
		return rec, false, fmt.Errorf("country name/code missing")
	}

	year, err := strconv.Atoi(cell("year"))
	if err != nil {
		return rec, false, fmt.Errorf("year: %w", err)
	}
	rec.Year = year

	for name, dst := range map[string]**float64{
		"indice_socio_cultural":     &rec.SocioCultural,
		"indice_mercados_negocios":  &rec.MarketsBusiness,
		"indice_empreendedorismo":   &rec.Entrepreneurship,
		"indice_eficiencia_governo": &rec.GovernmentEfficiency,
		"indice_ambiente_juridico":  &rec.LegalEnvironment,
		"indice_total":              &rec.Total,
	} {
		v, err := parseFloatCell(cell(name))
		if err != nil {
			return rec, false, fmt.Errorf("%s: %w", name, err)
		}
		*dst = v
	}

	if s := cell("n_dims_ok"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return rec, false, fmt.Errorf("n_dims_ok: %w", err)
		}
		rec.NDimsOK = &n
	}
	return rec, false, nil
}

// parseFloatCell treats empty, "NA" and NaN cells as NULL.
func parseFloatCell(s string) (*float64, error) {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, nil
	}
	return &v, nil
}
