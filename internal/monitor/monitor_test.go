package monitor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
)

func f(v float64) *float64 { return &v }

func sales(revenue float64) *dataset.Dataset {
	ds := dataset.New("sales")
	ds.Columns = []*dataset.Column{
		dataset.NewColumn("region", []any{"north", "south"}),
		dataset.NewColumn("revenue", []any{revenue / 2, revenue / 2}),
		dataset.NewColumn("churn_rate", []any{0.1, 0.2}),
	}
	return ds
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestSnapshotsAndRevenueJump(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := New(NewHistory(10), WithClock(clock.now))
	inds := []Indicator{{Label: "revenue", Code: "result = df['revenue'].sum()"}}

	first, err := m.Snapshot(context.Background(), sales(100), inds, "")
	require.NoError(t, err)
	assert.Equal(t, "Snapshot 1", first.Label)
	assert.Equal(t, 2, first.Rows)
	assert.Equal(t, 3, first.Columns)
	assert.NotEmpty(t, first.ID)
	require.NotNil(t, first.Indicators["revenue"])
	assert.Equal(t, 100.0, *first.Indicators["revenue"])

	second, err := m.Snapshot(context.Background(), sales(150), inds, "after import")
	require.NoError(t, err)
	assert.Equal(t, time.Second, second.Timestamp.Sub(first.Timestamp))

	h := m.History().List()
	require.Len(t, h, 2)
	report := Analyze(h[:1], h[1].Indicators, DefaultThresholds())
	require.Len(t, report.Entries, 1)
	e := report.Entries[0]
	assert.Equal(t, "revenue", e.Indicator)
	assert.Equal(t, 50.0, e.ChangePct)
	assert.Equal(t, SeverityHigh, e.Severity)
	assert.Equal(t, StatusCritical, report.Status)
	assert.Equal(t, "Snapshot 1", report.Baseline)
}

func TestEvaluateRecordsFaultsAsNil(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(nil) })

	m := New(nil)
	vals := m.Evaluate(sales(100), []Indicator{
		{Label: "broken", Code: "result = df['nope'].mean()"},
		{Label: "text", Code: "result = 'hello'"},
		{Label: "rate", Code: "result = df['churn_rate'].sum()"},
		{Label: "third", Code: "result = 1 / 3"},
	})
	assert.Nil(t, vals["broken"])
	assert.Nil(t, vals["text"])
	require.NotNil(t, vals["rate"])
	assert.InDelta(t, 0.15, *vals["rate"], 1e-12)
	assert.Equal(t, 0.3333, *vals["third"])
	assert.Len(t, logs.FilterMessage("indicator failed").All(), 2)
}

func TestAnalyzeSeverities(t *testing.T) {
	history := []Snapshot{{Label: "base", Indicators: map[string]*float64{
		"a": f(100), "b": f(100), "c": f(100), "d": f(100), "zero": f(0), "gone": f(5), "null": nil,
	}}}
	current := map[string]*float64{
		"a": f(45), "b": f(125), "c": f(110), "d": f(105), "zero": f(10), "gone": nil, "null": f(1), "new": f(3),
	}
	r := Analyze(history, current, DefaultThresholds())
	got := map[string]string{}
	for _, e := range r.Entries {
		got[e.Indicator] = e.Severity
	}
	assert.Equal(t, map[string]string{"a": SeverityHigh, "b": SeverityMedium, "c": SeverityLow}, got)
	assert.Equal(t, StatusCritical, r.Status)
	assert.Equal(t, -55.0, r.Entries[0].ChangePct)
}

func TestAnalyzeStatus(t *testing.T) {
	history := []Snapshot{{Indicators: map[string]*float64{"x": f(10)}}}
	tests := []struct {
		cur  float64
		want string
	}{
		{10.5, StatusHealthy},
		{11.5, StatusWarning},
		{13, StatusWarning},
		{20, StatusCritical},
	}
	for _, tc := range tests {
		r := Analyze(history, map[string]*float64{"x": f(tc.cur)}, DefaultThresholds())
		assert.Equal(t, tc.want, r.Status, "cur=%v", tc.cur)
	}

	r := Analyze(nil, map[string]*float64{"x": f(1)}, DefaultThresholds())
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Empty(t, r.Entries)
}

func TestCustomThresholds(t *testing.T) {
	history := []Snapshot{{Indicators: map[string]*float64{"x": f(10)}}}
	strict := Thresholds{High: 5, Medium: 2, Low: 1, TrendWindow: 3}
	r := Analyze(history, map[string]*float64{"x": f(10.3)}, strict)
	require.Len(t, r.Entries, 1)
	assert.Equal(t, SeverityMedium, r.Entries[0].Severity)
}

func TestTrends(t *testing.T) {
	var history []Snapshot
	for _, v := range []float64{1, 50, 100, 110, 120} {
		history = append(history, Snapshot{Indicators: map[string]*float64{"up": f(v), "flat": f(7), "down": f(200 - v)}})
	}
	r := Analyze(history, map[string]*float64{"up": f(130), "flat": f(7.01), "down": f(60)}, DefaultThresholds())
	dirs := map[string]string{}
	for _, tr := range r.Trends {
		dirs[tr.Indicator] = tr.Direction
		assert.Len(t, tr.Values, 4)
	}
	assert.Equal(t, map[string]string{"up": TrendUp, "flat": TrendStable, "down": TrendDown}, dirs)
}

func TestHistoryCapacityAndCopies(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Append(Snapshot{Label: string(rune('a' + i - 1)), Indicators: map[string]*float64{"v": f(float64(i))}})
	}
	list := h.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].Label)
	assert.Equal(t, "e", list[2].Label)

	*list[0].Indicators["v"] = 99
	list[0].Indicators["extra"] = nil
	again := h.List()
	assert.Equal(t, 3.0, *again[0].Indicators["v"])
	assert.NotContains(t, again[0].Indicators, "extra")

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, "e", latest.Label)
	assert.Len(t, h.Last(2), 2)

	h.Clear()
	_, ok = h.Latest()
	assert.False(t, ok)
}

func TestHistoryConcurrentAppend(t *testing.T) {
	h := NewHistory(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Append(Snapshot{Label: "x"})
			_ = h.List()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, h.Len())
}

func TestConcurrentSnapshotsGetDistinctLabels(t *testing.T) {
	m := New(NewHistory(100))
	ds := sales(100)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Snapshot(context.Background(), ds.Copy(), nil, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, s := range m.History().List() {
		assert.False(t, seen[s.Label], "duplicate label %s", s.Label)
		seen[s.Label] = true
	}
	assert.Len(t, seen, 20)
	assert.True(t, seen["Snapshot 1"])
	assert.True(t, seen["Snapshot 20"])
}

func TestPresetIndicators(t *testing.T) {
	ds := dataset.New("wide")
	for _, name := range []string{"total_revenue", "churn_rate", "notes", "a", "b", "c", "d", "e"} {
		if name == "notes" {
			ds.Columns = append(ds.Columns, dataset.NewColumn(name, []any{"x"}))
			continue
		}
		ds.Columns = append(ds.Columns, dataset.NewColumn(name, []any{1.0}))
	}
	inds := PresetIndicators(ds)
	require.Len(t, inds, 6)
	assert.Equal(t, "Total Revenue", inds[0].Label)
	assert.Equal(t, `result = df["total_revenue"].mean()`, inds[0].Code)
	assert.Equal(t, "{:,.2f}", inds[0].Format)
	assert.Equal(t, "D", inds[5].Label)
}

func TestParseIndicators(t *testing.T) {
	list, err := ParseIndicators([]byte("- label: Rows\n  code: result = len(df)\n"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Rows", list[0].Label)

	list, err = ParseIndicators([]byte("indicators:\n  - label: Mean\n    code: result = df['x'].mean()\n    format: '{:.1f}'\n"))
	require.NoError(t, err)
	assert.Equal(t, "{:.1f}", list[0].Format)

	_, err = ParseIndicators([]byte("- label: Rows\n"))
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = ParseIndicators([]byte("- {label: A, code: x}\n- {label: A, code: y}\n"))
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestSaveAndLoadIndicators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicators.yaml")
	in := []Indicator{{Label: "Rows", Code: "result = len(df)"}}
	require.NoError(t, SaveIndicators(path, in))
	out, err := LoadIndicators(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Revenue 2024Q", titleCase("revenue 2024q"))
	assert.Equal(t, "Avg Order Value", titleCase("AVG order value"))
}
