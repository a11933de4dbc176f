package core

import "context"

// Repository is the data access surface the HTTP layer consumes.
type Repository interface {
	// LoadIndex returns filtered rows ordered by country_name, year.
	LoadIndex(ctx context.Context, f IndexFilter) ([]IndexRecord, error)

	// Countries returns the distinct sorted country names.
	Countries(ctx context.Context) ([]string, error)

	// YearRange returns the min and max year present in the dataset.
	YearRange(ctx context.Context) (int, int, error)

	// LatestYear returns the most recent year's rows ordered by total desc.
	LatestYear(ctx context.Context) ([]IndexRecord, error)

	// ReplaceAll replaces the whole dataset (seed path).
	ReplaceAll(ctx context.Context, rows []IndexRecord) error

	InsertDownloadRequest(ctx context.Context, r *DownloadRequest) error
	MarkDelivered(ctx context.Context, id string) error
	ListDownloadRequests(ctx context.Context, limit int) ([]DownloadRequest, error)

	InsertContactMessage(ctx context.Context, m *ContactMessage) error

	Ping(ctx context.Context) error
}
