package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cei-unisinos/ici-backend/internal/cache"
	"github.com/cei-unisinos/ici-backend/internal/download"
	"github.com/cei-unisinos/ici-backend/internal/email"
	"github.com/cei-unisinos/ici-backend/internal/store/core"
)

// fakeRepo is an in-memory Repository good enough for handler tests.
type fakeRepo struct {
	rows      []core.IndexRecord
	downloads []core.DownloadRequest
	contacts  []core.ContactMessage
	pingErr   error
}

func f64(v float64) *float64 { return &v }

func testRows() []core.IndexRecord {
	return []core.IndexRecord{
		{CountryName: "Brazil", CountryCode: "BRA", Year: 2019, Total: f64(46.0)},
		{CountryName: "Brazil", CountryCode: "BRA", Year: 2020, Total: f64(47.5)},
		{CountryName: "Chile", CountryCode: "CHL", Year: 2019, Total: f64(60.1)},
		{CountryName: "Chile", CountryCode: "CHL", Year: 2020, Total: f64(61.5)},
	}
}

func (f *fakeRepo) LoadIndex(_ context.Context, flt core.IndexFilter) ([]core.IndexRecord, error) {
	var out []core.IndexRecord
	for _, r := range f.rows {
		if len(flt.Countries) > 0 {
			found := false
			for _, c := range flt.Countries {
				if c == r.CountryName {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if flt.YearFrom != 0 && r.Year < flt.YearFrom {
			continue
		}
		if flt.YearTo != 0 && r.Year > flt.YearTo {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRepo) Countries(context.Context) ([]string, error) {
	return []string{"Brazil", "Chile"}, nil
}

func (f *fakeRepo) YearRange(context.Context) (int, int, error) {
	if len(f.rows) == 0 {
		return 0, 0, core.ErrEmptyDataset
	}
	return 2019, 2020, nil
}

func (f *fakeRepo) LatestYear(context.Context) ([]core.IndexRecord, error) {
	if len(f.rows) == 0 {
		return nil, core.ErrEmptyDataset
	}
	return []core.IndexRecord{
		{CountryName: "Chile", CountryCode: "CHL", Year: 2020, Total: f64(61.5)},
		{CountryName: "Brazil", CountryCode: "BRA", Year: 2020, Total: f64(47.5)},
	}, nil
}

func (f *fakeRepo) ReplaceAll(_ context.Context, rows []core.IndexRecord) error {
	f.rows = rows
	return nil
}

func (f *fakeRepo) InsertDownloadRequest(_ context.Context, req *core.DownloadRequest) error {
	req.ID = uuid.NewString()
	req.CreatedAt = time.Now().UTC()
	f.downloads = append(f.downloads, *req)
	return nil
}

func (f *fakeRepo) MarkDelivered(_ context.Context, id string) error {
	for i := range f.downloads {
		if f.downloads[i].ID == id {
			f.downloads[i].Delivered = true
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeRepo) ListDownloadRequests(_ context.Context, limit int) ([]core.DownloadRequest, error) {
	if limit <= 0 || limit > len(f.downloads) {
		limit = len(f.downloads)
	}
	return f.downloads[:limit], nil
}

func (f *fakeRepo) InsertContactMessage(_ context.Context, msg *core.ContactMessage) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	f.contacts = append(f.contacts, *msg)
	return nil
}

func (f *fakeRepo) Ping(context.Context) error { return f.pingErr }

type fakeSender struct {
	sent []email.Message
	err  error
}

func (f *fakeSender) Send(msg email.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newAPI(t *testing.T, repo *fakeRepo, sender email.Sender) *API {
	t.Helper()
	var svc *email.Service
	if sender != nil {
		var err error
		svc, err = email.NewService(email.ServiceConfig{
			Sender:       sender,
			AdminAddress: "admin@example.org",
		})
		require.NoError(t, err)
	}
	signer, err := download.NewSigner("handler-test-secret", time.Hour)
	require.NoError(t, err)
	return New(Deps{
		Repo:          repo,
		Cache:         cache.NewMemory(time.Minute),
		Email:         svc,
		Signer:        signer,
		MaxRows:       1000,
		PublicBaseURL: "https://api.example.org",
	})
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func TestIndex_FiltersAndCaches(t *testing.T) {
	repo := &fakeRepo{rows: testRows()}
	api := newAPI(t, repo, &fakeSender{})

	rr := doJSON(t, api.Index, http.MethodGet, "/v1/index?countries=Brazil&year_from=2020", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, float64(1), out["count"])

	// cache hit serves the same payload even after the repo changes
	repo.rows = nil
	rr = doJSON(t, api.Index, http.MethodGet, "/v1/index?countries=Brazil&year_from=2020", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out = decode(t, rr)
	assert.Equal(t, float64(1), out["count"])
}

func TestIndex_BadYears(t *testing.T) {
	api := newAPI(t, &fakeRepo{rows: testRows()}, &fakeSender{})

	rr := doJSON(t, api.Index, http.MethodGet, "/v1/index?year_from=banana", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, api.Index, http.MethodGet, "/v1/index?year_from=2021&year_to=2019", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCountriesAndYears(t *testing.T) {
	api := newAPI(t, &fakeRepo{rows: testRows()}, &fakeSender{})

	rr := doJSON(t, api.Countries, http.MethodGet, "/v1/index/countries", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Brazil")

	rr = doJSON(t, api.Years, http.MethodGet, "/v1/index/years", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, float64(2019), out["year_min"])
	assert.Equal(t, float64(2020), out["year_max"])
}

func TestYears_EmptyDataset(t *testing.T) {
	api := newAPI(t, &fakeRepo{}, &fakeSender{})
	rr := doJSON(t, api.Years, http.MethodGet, "/v1/index/years", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRanking(t *testing.T) {
	api := newAPI(t, &fakeRepo{rows: testRows()}, &fakeSender{})
	rr := doJSON(t, api.Ranking, http.MethodGet, "/v1/index/ranking", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, float64(2020), out["year"])
	assert.Equal(t, float64(2), out["count"])
}

func validDownloadBody() map[string]any {
	return map[string]any{
		"name":        "Ana",
		"email":       "ana@example.org",
		"institution": "Unisinos",
		"purpose":     "research",
		"countries":   []string{"Brazil"},
		"year_from":   2019,
		"year_to":     2020,
		"format":      "csv",
	}
}

func TestCreateDownload_Sent(t *testing.T) {
	repo := &fakeRepo{rows: testRows()}
	sender := &fakeSender{}
	api := newAPI(t, repo, sender)

	rr := doJSON(t, api.CreateDownload, http.MethodPost, "/v1/downloads", validDownloadBody())
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	out := decode(t, rr)
	assert.Equal(t, "sent", out["status"])
	assert.Equal(t, float64(2), out["row_count"])
	assert.Equal(t, "institutional_complexity_index_2019_2020.csv", out["filename"])
	assert.Equal(t, "ana@example.org", out["sent_to"])

	// delivery to the requester plus the admin notification
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "ana@example.org", sender.sent[0].To)
	require.NotNil(t, sender.sent[0].Attachment)
	assert.Equal(t, "admin@example.org", sender.sent[1].To)

	require.Len(t, repo.downloads, 1)
	assert.True(t, repo.downloads[0].Delivered)
}

func TestCreateDownload_FallbackOnSMTPFailure(t *testing.T) {
	repo := &fakeRepo{rows: testRows()}
	sender := &fakeSender{err: email.ErrSendFailed}
	api := newAPI(t, repo, sender)

	rr := doJSON(t, api.CreateDownload, http.MethodPost, "/v1/downloads", validDownloadBody())
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	out := decode(t, rr)
	assert.Equal(t, "fallback", out["status"])
	assert.Contains(t, out["fallback_url"], "https://api.example.org/v1/downloads/file?token=")
	_, hasSentTo := out["sent_to"]
	assert.False(t, hasSentTo, "sent_to only appears on delivered requests")

	require.Len(t, repo.downloads, 1)
	assert.False(t, repo.downloads[0].Delivered)
}

func TestCreateDownload_InvalidForm(t *testing.T) {
	api := newAPI(t, &fakeRepo{rows: testRows()}, &fakeSender{})

	body := validDownloadBody()
	body["email"] = "not-an-email"
	rr := doJSON(t, api.CreateDownload, http.MethodPost, "/v1/downloads", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body = validDownloadBody()
	body["format"] = "pdf"
	rr = doJSON(t, api.CreateDownload, http.MethodPost, "/v1/downloads", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateDownload_NoMatchingRows(t *testing.T) {
	api := newAPI(t, &fakeRepo{rows: testRows()}, &fakeSender{})

	body := validDownloadBody()
	body["countries"] = []string{"Atlantis"}
	rr := doJSON(t, api.CreateDownload, http.MethodPost, "/v1/downloads", body)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDownloadFile_RoundTrip(t *testing.T) {
	repo := &fakeRepo{rows: testRows()}
	api := newAPI(t, repo, &fakeSender{})

	stored := core.DownloadRequest{Format: "csv"}
	require.NoError(t, repo.InsertDownloadRequest(context.Background(), &stored))
	token, err := api.Signer.Sign(stored.ID, core.IndexFilter{YearFrom: 2019, YearTo: 2020}, "csv")
	require.NoError(t, err)

	rr := doJSON(t, api.DownloadFile, http.MethodGet, "/v1/downloads/file?token="+token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "institutional_complexity_index_2019_2020.csv")
	assert.Contains(t, rr.Body.String(), "Country Name")
	assert.True(t, repo.downloads[0].Delivered)
}

func TestDownloadFile_BadToken(t *testing.T) {
	api := newAPI(t, &fakeRepo{rows: testRows()}, &fakeSender{})

	rr := doJSON(t, api.DownloadFile, http.MethodGet, "/v1/downloads/file?token=garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, api.DownloadFile, http.MethodGet, "/v1/downloads/file", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestContact_SentAndStored(t *testing.T) {
	repo := &fakeRepo{rows: testRows()}
	sender := &fakeSender{}
	api := newAPI(t, repo, sender)

	rr := doJSON(t, api.Contact, http.MethodPost, "/v1/contact", map[string]any{
		"name":    "Bruno",
		"email":   "bruno@example.org",
		"subject": "Data question",
		"message": "How is the total computed?",
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	out := decode(t, rr)
	assert.Equal(t, "sent", out["status"])

	require.Len(t, repo.contacts, 1)
	// admin notification + user confirmation
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "admin@example.org", sender.sent[0].To)
	assert.Equal(t, "bruno@example.org", sender.sent[0].ReplyTo)
	assert.Equal(t, "bruno@example.org", sender.sent[1].To)
}

func TestContact_EmailFailureStillStores(t *testing.T) {
	repo := &fakeRepo{rows: testRows()}
	api := newAPI(t, repo, &fakeSender{err: email.ErrSendFailed})

	rr := doJSON(t, api.Contact, http.MethodPost, "/v1/contact", map[string]any{
		"name":    "Bruno",
		"email":   "bruno@example.org",
		"subject": "hi",
		"message": "hello",
	})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Len(t, repo.contacts, 1)
}

func TestAdminEmailTest(t *testing.T) {
	api := newAPI(t, &fakeRepo{rows: testRows()}, &fakeSender{})

	rr := doJSON(t, api.AdminEmailTest, http.MethodPost, "/v1/admin/email/test", map[string]any{"to": "admin@example.org"})
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, "sent", out["status"])

	rr = doJSON(t, api.AdminEmailTest, http.MethodPost, "/v1/admin/email/test", map[string]any{"to": "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminListDownloads(t *testing.T) {
	repo := &fakeRepo{rows: testRows()}
	api := newAPI(t, repo, &fakeSender{})

	req := core.DownloadRequest{Email: "a@example.org"}
	require.NoError(t, repo.InsertDownloadRequest(context.Background(), &req))

	rr := doJSON(t, api.AdminListDownloads, http.MethodGet, "/v1/admin/downloads", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, float64(1), out["count"])
}

func TestReadyz(t *testing.T) {
	repo := &fakeRepo{rows: testRows()}
	api := newAPI(t, repo, &fakeSender{})

	rr := doJSON(t, api.Readyz, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	repo.pingErr = context.DeadlineExceeded
	rr = doJSON(t, api.Readyz, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
