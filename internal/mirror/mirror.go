// Package mirror replicates the dataset into a Supabase table through the
// PostgREST API, so the public dashboard can read it without touching the
// primary database.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cei-unisinos/ici-backend/internal/observability/logger"
	"github.com/cei-unisinos/ici-backend/internal/store/core"
)

// Config points the mirror at a Supabase project.
type Config struct {
	BaseURL    string // https://<project>.supabase.co
	ServiceKey string
	Table      string
	BatchSize  int // default 500
	// Concurrency bounds the parallel batch uploads (default 4).
	Concurrency int
}

// Mirror pushes dataset snapshots to Supabase.
type Mirror struct {
	cfg  Config
	repo core.Repository
	hc   *http.Client
}

// New builds a Mirror. The repository supplies the rows to replicate.
func New(cfg Config, repo core.Repository) (*Mirror, error) {
	if cfg.BaseURL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("mirror: base URL and service key are required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("mirror: invalid base URL: %w", err)
	}
	if cfg.Table == "" {
		cfg.Table = "indice_complexidade_institucional"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Mirror{
		cfg:  cfg,
		repo: repo,
		hc:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Report summarizes one sync run.
type Report struct {
	Rows     int           `json:"rows"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration"`
}

// Sync replaces the mirrored table contents with the current dataset:
// delete everything, then insert in batches.
func (m *Mirror) Sync(ctx context.Context) (Report, error) {
	start := time.Now()
	log := logger.From(ctx).With(logger.Component("mirror"), logger.String("table", m.cfg.Table))

	rows, err := m.repo.LoadIndex(ctx, core.IndexFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("mirror: load dataset: %w", err)
	}
	if len(rows) == 0 {
		return Report{}, core.ErrEmptyDataset
	}
	sanitize(rows)

	if err := m.deleteAll(ctx); err != nil {
		return Report{}, err
	}

	batches := split(rows, m.cfg.BatchSize)
	log.Info("uploading batches", logger.Rows(len(rows)), logger.Count(len(batches)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			if err := m.insertBatch(gctx, batch); err != nil {
				return fmt.Errorf("mirror: batch %d/%d: %w", i+1, len(batches), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := Report{Rows: len(rows), Batches: len(batches), Duration: time.Since(start)}
	log.Info("sync finished",
		logger.Rows(rep.Rows),
		logger.Count(rep.Batches),
		logger.Duration(rep.Duration),
	)
	return rep, nil
}

// sanitize nil-s out NaN components so json.Marshal never sees them.
func sanitize(rows []core.IndexRecord) {
	clean := func(v **float64) {
		if *v != nil && math.IsNaN(**v) {
			*v = nil
		}
	}
	for i := range rows {
		clean(&rows[i].SocioCultural)
		clean(&rows[i].MarketsBusiness)
		clean(&rows[i].Entrepreneurship)
		clean(&rows[i].GovernmentEfficiency)
		clean(&rows[i].LegalEnvironment)
		clean(&rows[i].Total)
	}
}

func split(rows []core.IndexRecord, size int) [][]core.IndexRecord {
	var out [][]core.IndexRecord
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	return append(out, rows)
}

func (m *Mirror) endpoint() string {
	return strings.TrimRight(m.cfg.BaseURL, "/") + "/rest/v1/" + m.cfg.Table
}

func (m *Mirror) setHeaders(req *http.Request) {
	req.Header.Set("apikey", m.cfg.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+m.cfg.ServiceKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")
}

// deleteAll clears the mirrored table. PostgREST requires a filter on
// DELETE; year=gte.0 matches every row.
func (m *Mirror) deleteAll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, m.endpoint()+"?year=gte.0", nil)
	if err != nil {
		return fmt.Errorf("mirror: delete request: %w", err)
	}
	m.setHeaders(req)

	resp, err := m.hc.Do(req)
	if err != nil {
		return fmt.Errorf("mirror: delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mirror: delete: %s", readError(resp))
	}
	return nil
}

func (m *Mirror) insertBatch(ctx context.Context, batch []core.IndexRecord) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	m.setHeaders(req)

	resp, err := m.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("insert: %s", readError(resp))
	}
	return nil
}

func readError(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return resp.Status
	}
	return resp.Status + ": " + msg
}
