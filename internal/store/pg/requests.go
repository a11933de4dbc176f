package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/cei-unisinos/ici-backend/internal/store/core"
	"github.com/google/uuid"
)

func (s *Store) InsertDownloadRequest(ctx context.Context, r *core.DownloadRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO download_request
		(id, name, email, institution, purpose, countries, year_from, year_to, format, row_count, delivered, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := s.pool.Exec(ctx, q,
		r.ID, r.Name, r.Email, r.Institution, r.Purpose,
		r.Countries, r.YearFrom, r.YearTo, r.Format, r.RowCount, r.Delivered, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert download request: %w", err)
	}
	return nil
}

func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE download_request SET delivered = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) ListDownloadRequests(ctx context.Context, limit int) ([]core.DownloadRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, name, email, institution, purpose, countries, year_from, year_to,
		format, row_count, delivered, created_at
		FROM download_request ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list download requests: %w", err)
	}
	defer rows.Close()

	var out []core.DownloadRequest
	for rows.Next() {
		var r core.DownloadRequest
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Email, &r.Institution, &r.Purpose, &r.Countries,
			&r.YearFrom, &r.YearTo, &r.Format, &r.RowCount, &r.Delivered, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) InsertContactMessage(ctx context.Context, m *core.ContactMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO contact_message (id, name, email, subject, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := s.pool.Exec(ctx, q, m.ID, m.Name, m.Email, m.Subject, m.Message, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}
