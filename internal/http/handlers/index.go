package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cei-unisinos/ici-backend/internal/cache"
	"github.com/cei-unisinos/ici-backend/internal/observability/logger"
	"github.com/cei-unisinos/ici-backend/internal/store/core"
)

// parseFilter reads countries/year_from/year_to query parameters.
// Countries may repeat or be comma separated; both styles show up in the
// dashboards that consume this API.
func parseFilter(r *http.Request) (core.IndexFilter, error) {
	q := r.URL.Query()
	var f core.IndexFilter

	for _, raw := range q["countries"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				f.Countries = append(f.Countries, c)
			}
		}
	}

	parseYear := func(name string) (int, error) {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%s must be a year", name)
		}
		return n, nil
	}

	var err error
	if f.YearFrom, err = parseYear("year_from"); err != nil {
		return f, err
	}
	if f.YearTo, err = parseYear("year_to"); err != nil {
		return f, err
	}
	if f.YearFrom != 0 && f.YearTo != 0 && f.YearFrom > f.YearTo {
		return f, errors.New("year_from is after year_to")
	}
	return f, nil
}

// cached serves the marshaled payload from cache, filling it on a miss.
// Cache failures degrade to direct reads.
func (a *API) cached(ctx context.Context, key string, fill func(context.Context) (any, error)) ([]byte, error) {
	if a.Cache != nil {
		if b, err := a.Cache.Get(ctx, key); err == nil {
			return b, nil
		} else if !errors.Is(err, cache.ErrNotFound) {
			logger.From(ctx).Warn("cache read failed", logger.String("key", key), logger.Err(err))
		}
	}

	v, err := fill(ctx)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if a.Cache != nil {
		if err := a.Cache.Set(ctx, key, b, a.CacheTTL); err != nil {
			logger.From(ctx).Warn("cache write failed", logger.String("key", key), logger.Err(err))
		}
	}
	return b, nil
}

func writeRawJSON(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// Index handles GET /v1/index.
func (a *API) Index(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_filter", err.Error(), 1001)
		return
	}

	key := cacheKey("index",
		strings.Join(f.Countries, ","),
		strconv.Itoa(f.YearFrom),
		strconv.Itoa(f.YearTo),
	)
	payload, err := a.cached(r.Context(), key, func(ctx context.Context) (any, error) {
		rows, err := a.Repo.LoadIndex(ctx, f)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": len(rows), "rows": rows}, nil
	})
	if err != nil {
		logger.From(r.Context()).Error("index read failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not read dataset", 1500)
		return
	}
	writeRawJSON(w, payload)
}

// Countries handles GET /v1/index/countries.
func (a *API) Countries(w http.ResponseWriter, r *http.Request) {
	payload, err := a.cached(r.Context(), "countries", func(ctx context.Context) (any, error) {
		countries, err := a.Repo.Countries(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"countries": countries}, nil
	})
	if err != nil {
		logger.From(r.Context()).Error("countries read failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not read dataset", 1500)
		return
	}
	writeRawJSON(w, payload)
}

// Years handles GET /v1/index/years.
func (a *API) Years(w http.ResponseWriter, r *http.Request) {
	payload, err := a.cached(r.Context(), "years", func(ctx context.Context) (any, error) {
		min, max, err := a.Repo.YearRange(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"year_min": min, "year_max": max}, nil
	})
	if err != nil {
		if errors.Is(err, core.ErrEmptyDataset) {
			writeErr(w, http.StatusNotFound, "empty_dataset", "no data loaded", 1404)
			return
		}
		logger.From(r.Context()).Error("years read failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not read dataset", 1500)
		return
	}
	writeRawJSON(w, payload)
}

// Ranking handles GET /v1/index/ranking: every country at the most recent
// year, ordered by total index descending.
func (a *API) Ranking(w http.ResponseWriter, r *http.Request) {
	payload, err := a.cached(r.Context(), "ranking", func(ctx context.Context) (any, error) {
		rows, err := a.Repo.LatestYear(ctx)
		if err != nil {
			return nil, err
		}
		year := 0
		if len(rows) > 0 {
			year = rows[0].Year
		}
		return map[string]any{"year": year, "count": len(rows), "rows": rows}, nil
	})
	if err != nil {
		if errors.Is(err, core.ErrEmptyDataset) {
			writeErr(w, http.StatusNotFound, "empty_dataset", "no data loaded", 1404)
			return
		}
		logger.From(r.Context()).Error("ranking read failed", logger.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "could not read dataset", 1500)
		return
	}
	writeRawJSON(w, payload)
}
