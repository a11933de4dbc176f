package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/cei-unisinos/ici-backend/internal/store/core"
	"github.com/jackc/pgx/v5"
)

const defaultTable = "indice_complexidade_institucional"

const indexColumns = `country_name, country_cod, year,
	indice_socio_cultural, indice_mercados_negocios, indice_empreendedorismo,
	indice_eficiencia_governo, indice_ambiente_juridico, n_dims_ok, indice_total`

// pgIdentifier keeps only characters valid in an unquoted identifier.
// The table name comes from config, never from a request.
func pgIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// buildIndexQuery assembles the filtered read. Parameterized throughout:
// the original dashboard interpolated country names into SQL, which is an
// injection hazard this port does not reproduce.
func buildIndexQuery(table string, f core.IndexFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.Countries) > 0 {
		args = append(args, f.Countries)
		conds = append(conds, fmt.Sprintf("country_name = ANY($%d)", len(args)))
	}
	if f.YearFrom > 0 {
		args = append(args, f.YearFrom)
		conds = append(conds, fmt.Sprintf("year >= $%d", len(args)))
	}
	if f.YearTo > 0 {
		args = append(args, f.YearTo)
		conds = append(conds, fmt.Sprintf("year <= $%d", len(args)))
	}

	q := "SELECT " + indexColumns + " FROM " + table
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY country_name, year"
	return q, args
}

func scanIndexRows(rows pgx.Rows) ([]core.IndexRecord, error) {
	defer rows.Close()
	var out []core.IndexRecord
	for rows.Next() {
		var r core.IndexRecord
		if err := rows.Scan(
			&r.CountryName, &r.CountryCode, &r.Year,
			&r.SocioCultural, &r.MarketsBusiness, &r.Entrepreneurship,
			&r.GovernmentEfficiency, &r.LegalEnvironment, &r.NDimsOK, &r.Total,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) LoadIndex(ctx context.Context, f core.IndexFilter) ([]core.IndexRecord, error) {
	q, args := buildIndexQuery(s.table, f)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return scanIndexRows(rows)
}

func (s *Store) Countries(ctx context.Context) ([]string, error) {
	q := "SELECT DISTINCT country_name FROM " + s.table + " ORDER BY country_name"
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("countries: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) YearRange(ctx context.Context) (int, int, error) {
	q := "SELECT MIN(year), MAX(year) FROM " + s.table
	var minY, maxY *int
	if err := s.pool.QueryRow(ctx, q).Scan(&minY, &maxY); err != nil {
		return 0, 0, fmt.Errorf("year range: %w", err)
	}
	if minY == nil || maxY == nil {
		return 0, 0, core.ErrEmptyDataset
	}
	return *minY, *maxY, nil
}

func (s *Store) LatestYear(ctx context.Context) ([]core.IndexRecord, error) {
	q := "SELECT " + indexColumns + " FROM " + s.table +
		" WHERE year = (SELECT MAX(year) FROM " + s.table + ")" +
		" ORDER BY indice_total DESC NULLS LAST"
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("latest year: %w", err)
	}
	recs, err := scanIndexRows(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, core.ErrEmptyDataset
	}
	return recs, nil
}

// ReplaceAll swaps the dataset in one transaction (seed semantics:
// truncate then bulk copy).
func (s *Store) ReplaceAll(ctx context.Context, recs []core.IndexRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace all: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "TRUNCATE "+s.table); err != nil {
		return fmt.Errorf("replace all: truncate: %w", err)
	}

	cols := []string{
		"country_name", "country_cod", "year",
		"indice_socio_cultural", "indice_mercados_negocios", "indice_empreendedorismo",
		"indice_eficiencia_governo", "indice_ambiente_juridico", "n_dims_ok", "indice_total",
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{s.table}, cols,
		pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
			r := recs[i]
			return []any{
				r.CountryName, r.CountryCode, r.Year,
				r.SocioCultural, r.MarketsBusiness, r.Entrepreneurship,
				r.GovernmentEfficiency, r.LegalEnvironment, r.NDimsOK, r.Total,
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("replace all: copy: %w", err)
	}
	if n != int64(len(recs)) {
		return fmt.Errorf("replace all: copied %d of %d rows", n, len(recs))
	}
	return tx.Commit(ctx)
}
