package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/quality"
	"github.com/KaramelBytes/dashloom-cli/internal/repair"
)

const salesCSV = "region,revenue,fill_rate\nnorth,100,0.2\nsouth,300,0.4\nsouth,300,0.4\n"

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	h := NewHandler(repair.New(), monitor.New(monitor.NewHistory(10)))
	return SetupRoutes(h)
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealth(t *testing.T) {
	rec, out := do(t, newRouter(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestExtract(t *testing.T) {
	r := newRouter(t)
	text := "```json\n{\"title\": \"T\", \"kpis\": [], \"visualizations\": [{\"title\": \"c\", \"code\": \"result = 1\"}]}\n```"
	rec, out := do(t, r, http.MethodPost, "/api/v1/extract", map[string]any{"text": text, "kind": "dashboard"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "T", out["plan"].(map[string]any)["title"])
	assert.NotNil(t, out["dashboard"])

	rec, out = do(t, r, http.MethodPost, "/api/v1/extract", map[string]any{"text": "no json here"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotEmpty(t, out["error"])

	rec, _ = do(t, r, http.MethodPost, "/api/v1/extract", map[string]any{"text": "{\"a\": 1}", "kind": "dashboard"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunSnippet(t *testing.T) {
	r := newRouter(t)
	rec, out := do(t, r, http.MethodPost, "/api/v1/run", map[string]any{
		"csv":  salesCSV,
		"code": "result = df['fill_rate'].sum()",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.3333, out["value"], 1e-3)
	assert.NotNil(t, out["repair"])

	rec, out = do(t, r, http.MethodPost, "/api/v1/run", map[string]any{"csv": salesCSV, "code": "result = df['missing'].sum()"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "KeyError", out["error"].(map[string]any)["kind"])

	rec, _ = do(t, r, http.MethodPost, "/api/v1/run", map[string]any{"csv": salesCSV})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/run", map[string]any{"code": "result = 1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/run", map[string]any{"csv": salesCSV, "bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunDashboard(t *testing.T) {
	rec, out := do(t, newRouter(t), http.MethodPost, "/api/v1/run", map[string]any{
		"csv": salesCSV,
		"dashboard": map[string]any{
			"title":          "Sales",
			"kpis":           []any{map[string]any{"label": "Revenue", "code": "result = df['revenue'].sum()", "format": "${:,.0f}"}},
			"visualizations": []any{map[string]any{"title": "By region", "code": "result = px.bar(df, x='region', y='revenue')"}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	kpis := out["kpis"].([]any)
	require.Len(t, kpis, 1)
	assert.Equal(t, "$700", kpis[0].(map[string]any)["display"])
	assert.Len(t, out["charts"].([]any), 1)
}

func TestClean(t *testing.T) {
	rec, out := do(t, newRouter(t), http.MethodPost, "/api/v1/clean", map[string]any{
		"csv":  salesCSV,
		"code": "df_clean = df.drop_duplicates()",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "region,revenue,fill_rate\nnorth,100,0.2\nsouth,300,0.4\n", out["csv"])
	assert.Greater(t, out["score_after"], out["score_before"])
}

func TestScore(t *testing.T) {
	rec, out := do(t, newRouter(t), http.MethodPost, "/api/v1/score", map[string]any{"csv": salesCSV})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, out, "score")
	issues := out["issues"].([]any)
	require.NotEmpty(t, issues)
	assert.Equal(t, "Duplicates", issues[0].(map[string]any)["type"])
}

func TestHandlerOptions(t *testing.T) {
	opt := dataset.DefaultOptions()
	opt.Delimiter = ';'
	h := NewHandler(repair.New(), monitor.New(monitor.NewHistory(10)),
		WithWeights(quality.Weights{}),
		WithCSVOptions(opt))
	r := SetupRoutes(h)
	semi := strings.ReplaceAll(salesCSV, ",", ";")

	rec, out := do(t, r, http.MethodPost, "/api/v1/score", map[string]any{"csv": semi})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 100, out["score"])

	rec, out = do(t, r, http.MethodPost, "/api/v1/run", map[string]any{"csv": semi, "code": "result = df['revenue'].sum()"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 700, out["value"])
}

func TestSnapshotsAndAnalyze(t *testing.T) {
	r := newRouter(t)
	inds := []monitor.Indicator{{Label: "revenue", Code: "result = df['revenue'].sum()"}}

	rec, out := do(t, r, http.MethodPost, "/api/v1/snapshots", map[string]any{"csv": salesCSV, "label": "monday", "indicators": inds})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "monday", out["label"])
	assert.EqualValues(t, 700, out["indicators"].(map[string]any)["revenue"])

	rec, out = do(t, r, http.MethodGet, "/api/v1/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["snapshots"].([]any), 1)

	doubled := "region,revenue,fill_rate\nnorth,200,0.2\nsouth,600,0.4\nsouth,600,0.4\n"
	rec, out = do(t, r, http.MethodPost, "/api/v1/analyze", map[string]any{"csv": doubled, "indicators": inds})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, monitor.StatusCritical, out["status"])
	a := out["anomalies"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 100, a["change_pct"])

	_, out = do(t, r, http.MethodGet, "/api/v1/snapshots", nil)
	assert.Len(t, out["snapshots"].([]any), 1)

	rec, _ = do(t, r, http.MethodGet, "/api/v1/snapshots?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddlewareLogsAndRecovers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(nil) })

	h := LoggingMiddleware(RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.Len(t, logs.FilterMessage("panic in handler").All(), 1)
	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, http.StatusInternalServerError, entries[0].ContextMap()[logger.FieldStatus])
}
