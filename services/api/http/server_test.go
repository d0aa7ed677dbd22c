package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/airquality"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/dataset"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/geo"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/snapshot"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/services/api/config"
)

// sampleRecords is a small raw dataset: three usable rows (one without a
// district) plus one row the normalizer drops.
func sampleRecords() []map[string]any {
	return []map[string]any{
		{"經度": 120.6, "緯度": 24.1, "pm2.5": "40.2", "行政區": "西屯區", "sitename": "alpha"},
		{"longitude": 120.7, "latitude": 24.2, "PM25": "10.0", "行政區": "北屯區", "sitename": "beta"},
		{"longitude": 120.65, "latitude": 24.15, "pm25": 80.0, "sitename": "gamma"},
		{"latitude": 24.2, "pm25": "1"},
	}
}

// testServer builds a server over a snapshot-only dataset service rooted
// in a temp dir, so no test touches the network.
func testServer(t *testing.T, records []map[string]any, mutate func(*config.Config)) *Server {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := snapshot.NewStore(t.TempDir(), log)
	if records != nil {
		savedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
		require.NoError(t, store.Write(records, "https://example.com/api", savedAt))
	}

	cfg := config.Config{
		Port:           8080,
		DataDir:        store.Dir,
		CacheTTL:       time.Minute,
		RequestTimeout: 2 * time.Second,
		FetchDisabled:  true,
		DefaultTopN:    50,
		Scale:          airquality.SixBand,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	data := dataset.New(nil, store, dataset.Options{
		CacheTTL:      cfg.CacheTTL,
		FetchDisabled: true,
		Log:           log,
	})
	return New(cfg, data, log)
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta map[string]any  `json:"meta"`
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

func TestHealthz(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReadings(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/readings")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 3)

	// Sorted by PM2.5 descending, with derived display fields.
	assert.Equal(t, "gamma", rows[0]["name"])
	assert.Equal(t, 80.0, rows[0]["pm25"])
	assert.Equal(t, "Unhealthy", rows[0]["level"])
	assert.Equal(t, "alpha", rows[1]["name"])
	assert.Equal(t, "beta", rows[2]["name"])

	assert.Equal(t, true, env.Meta["from_snapshot"])
	assert.Equal(t, float64(3), env.Meta["total"])
	assert.Equal(t, float64(1), env.Meta["dropped"])
	assert.Equal(t, "2024-06-01 12:00:00", env.Meta["fetched_at"])
}

func TestReadingsDistrictFilter(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/readings?district="+url.QueryEscape("西屯區"))
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "alpha", rows[0]["name"])
}

func TestReadingsOverThreshold(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/readings?over_threshold=true")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 2)

	w = doRequest(t, s, http.MethodGet, "/api/v1/readings?over_threshold=banana")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadingsTopN(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/readings?top_n=1")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "gamma", rows[0]["name"])

	for _, bad := range []string{"0", "-1", "abc", "1001"} {
		w = doRequest(t, s, http.MethodGet, "/api/v1/readings?top_n="+bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, "top_n=%s", bad)
	}
}

func TestDistricts(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/districts")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var aggs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &aggs))

	// gamma has no district, so only two groups, worst max first.
	require.Len(t, aggs, 2)
	assert.Equal(t, "西屯區", aggs[0]["district"])
	assert.Equal(t, 40.2, aggs[0]["max_pm25"])
	assert.Equal(t, "北屯區", aggs[1]["district"])
	assert.Equal(t, float64(2), env.Meta["count"])
}

func TestDistrictsLimit(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/districts?limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var aggs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &aggs))
	require.Len(t, aggs, 1)

	for _, bad := range []string{"0", "abc", "101"} {
		w = doRequest(t, s, http.MethodGet, "/api/v1/districts?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", bad)
	}
}

func TestSummary(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/summary")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var sum map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &sum))

	assert.Equal(t, float64(3), sum["count"])
	assert.Equal(t, 40.2, sum["median_pm25"])
	assert.Equal(t, "Sensitive-groups caution", sum["median_level"])
	assert.Equal(t, 80.0, sum["max_pm25"])
	assert.Nil(t, sum["detailed"])
}

func TestSummaryDetailed(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/summary?detailed=true")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var sum map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &sum))

	detailed, ok := sum["detailed"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), detailed["over_threshold_count"])

	w = doRequest(t, s, http.MethodGet, "/api/v1/summary?detailed=banana")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewport(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/viewport")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var vp geo.Viewport
	require.NoError(t, json.Unmarshal(env.Data, &vp))

	assert.InDelta(t, 24.15, vp.Lat, 1e-9)
	assert.InDelta(t, 120.65, vp.Lon, 1e-9)
	assert.GreaterOrEqual(t, vp.Zoom, geo.MinZoom)
	assert.LessOrEqual(t, vp.Zoom, geo.MaxZoom)
}

func TestViewportSingleSite(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/viewport?district="+url.QueryEscape("北屯區"))
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var vp geo.Viewport
	require.NoError(t, json.Unmarshal(env.Data, &vp))
	assert.Equal(t, geo.CloseUpZoom, vp.Zoom)
}

func TestViewportNoPoints(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/viewport?district=nowhere")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	assert.Equal(t, "null", string(env.Data))
	assert.Equal(t, "no points to fit", env.Meta["message"])
}

func TestLevels(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/levels")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var levels []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &levels))
	require.Len(t, levels, 6)

	assert.Equal(t, "Good", levels[0]["label"])
	assert.Equal(t, 15.4, levels[0]["max_pm25"])
	assert.Equal(t, "Hazardous", levels[5]["label"])
	assert.Nil(t, levels[5]["max_pm25"])
	assert.Equal(t, 35.4, env.Meta["over_threshold"])
}

func TestLevelsFourBand(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/levels?bands=4")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var levels []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &levels))
	require.Len(t, levels, 4)
	assert.Equal(t, "Unhealthy", levels[3]["label"])

	w = doRequest(t, s, http.MethodGet, "/api/v1/levels?bands=5")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoSnapshotUnavailable(t *testing.T) {
	s := testServer(t, nil, nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/readings")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no dataset available")
}

func TestRefresh(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodPost, "/api/v1/refresh")
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var status map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "refreshed", status["status"])
	assert.Equal(t, float64(3), env.Meta["count"])
}

func TestCacheClear(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodPost, "/api/v1/cache/clear")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache cleared")
}

func TestBearerAuth(t *testing.T) {
	s := testServer(t, sampleRecords(), func(cfg *config.Config) {
		cfg.BearerToken = "sekret"
	})

	w := doRequest(t, s, http.MethodGet, "/api/v1/readings")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/readings", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/readings", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIVersionHeader(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/v1/levels")
	assert.Equal(t, "v1", w.Header().Get("X-API-Version"))
}

func TestRequestIDHeader(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)

	w := doRequest(t, s, http.MethodGet, "/healthz")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "my-id")
	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, "my-id", w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(t, sampleRecords(), nil)
	w := doRequest(t, s, http.MethodOptions, "/api/v1/readings")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	s := testServer(t, sampleRecords(), func(cfg *config.Config) {
		cfg.RateLimit = 1
	})

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		w := doRequest(t, s, http.MethodGet, "/healthz")
		codes[w.Code]++
	}

	assert.GreaterOrEqual(t, codes[http.StatusOK], 2)
	assert.GreaterOrEqual(t, codes[http.StatusTooManyRequests], 1)
}
