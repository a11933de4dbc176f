package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cei-unisinos/ici-backend/internal/store/core"
)

type fakeRepo struct {
	core.Repository
	rows []core.IndexRecord
}

func (f *fakeRepo) LoadIndex(_ context.Context, _ core.IndexFilter) ([]core.IndexRecord, error) {
	return f.rows, nil
}

func makeRows(n int) []core.IndexRecord {
	rows := make([]core.IndexRecord, n)
	for i := range rows {
		v := float64(i)
		rows[i] = core.IndexRecord{
			CountryName: "Country",
			CountryCode: "CTY",
			Year:        2000 + i%20,
			Total:       &v,
		}
	}
	return rows
}

type captureServer struct {
	mu       sync.Mutex
	deletes  []string
	inserted int
	batches  int
}

func newMirrorServer(t *testing.T, cs *captureServer) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "svc-key" || r.Header.Get("Authorization") != "Bearer svc-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		cs.mu.Lock()
		defer cs.mu.Unlock()
		switch r.Method {
		case http.MethodDelete:
			cs.deletes = append(cs.deletes, r.URL.RawQuery)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			var batch []core.IndexRecord
			require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
			cs.batches++
			cs.inserted += len(batch)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
}

func TestSync_BatchesAndDeletes(t *testing.T) {
	cs := &captureServer{}
	srv := newMirrorServer(t, cs)
	defer srv.Close()

	m, err := New(Config{
		BaseURL:    srv.URL,
		ServiceKey: "svc-key",
		Table:      "ici",
		BatchSize:  100,
	}, &fakeRepo{rows: makeRows(250)})
	require.NoError(t, err)

	rep, err := m.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 250, rep.Rows)
	assert.Equal(t, 3, rep.Batches)
	assert.Equal(t, []string{"year=gte.0"}, cs.deletes)
	assert.Equal(t, 250, cs.inserted)
	assert.Equal(t, 3, cs.batches)
	assert.Greater(t, rep.Duration, time.Duration(0))
}

func TestSync_EmptyDataset(t *testing.T) {
	m, err := New(Config{BaseURL: "http://localhost:1", ServiceKey: "k"}, &fakeRepo{})
	require.NoError(t, err)

	_, err = m.Sync(context.Background())
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
}

func TestSync_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	m, err := New(Config{BaseURL: srv.URL, ServiceKey: "k"}, &fakeRepo{rows: makeRows(5)})
	require.NoError(t, err)

	_, err = m.Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, &fakeRepo{})
	assert.Error(t, err)

	m, err := New(Config{BaseURL: "https://x.supabase.co", ServiceKey: "k"}, &fakeRepo{})
	require.NoError(t, err)
	assert.Equal(t, 500, m.cfg.BatchSize)
	assert.Equal(t, "indice_complexidade_institucional", m.cfg.Table)
}

func TestSplit(t *testing.T) {
	batches := split(makeRows(10), 3)
	require.Len(t, batches, 4)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[3], 1)

	batches = split(makeRows(3), 3)
	require.Len(t, batches, 1)
}
