package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/quality"
	"github.com/KaramelBytes/dashloom-cli/internal/repair"
	"github.com/KaramelBytes/dashloom-cli/internal/sandbox"
)

func ptr(f float64) *float64 { return &f }

func TestDatasetSummary(t *testing.T) {
	ds := dataset.New("sales.csv")
	ds.Columns = []*dataset.Column{
		dataset.NewColumn("region", []any{"north", "south", "south", nil}),
		dataset.NewColumn("revenue", []any{1.0, 2.0, 3.0, 6.0}),
	}
	md := Dataset(ds)
	assert.Contains(t, md, "File: sales.csv")
	assert.Contains(t, md, "Rows: 4")
	assert.Contains(t, md, "- region: text (non-null 3, missing 25.0%): top south(2), north(1)")
	assert.Contains(t, md, "- revenue: numeric (non-null 4, missing 0.0%): min 1, max 6, mean 3")
}

func TestQualityMarkdown(t *testing.T) {
	md := Quality(quality.Breakdown{Score: 87, DuplicatePct: 25}, []quality.Issue{
		{Severity: quality.SeverityWarning, Type: "Duplicates", Message: "1 duplicate row | check"},
	})
	assert.True(t, strings.HasPrefix(md, "## Data quality: 87/100"))
	assert.Contains(t, md, "| duplicate rows | 25.00% |")
	assert.Contains(t, md, "- **warning** Duplicates: 1 duplicate row / check")

	assert.Contains(t, Quality(quality.Breakdown{Score: 100}, nil), "No issues found.")
}

func TestDashboardMarkdown(t *testing.T) {
	res := repair.DashboardResult{
		Title: "Sales",
		KPIs: []repair.KPIResult{
			{Label: "Revenue", Display: "$700", Outcome: sandbox.Outcome{Value: 700.0}},
			{Label: "Broken", Outcome: sandbox.Outcome{Err: &sandbox.ErrorDescriptor{Kind: "KeyError", Raw: "line 1: KeyError: 'x'"}}},
		},
		Charts: []repair.ChartResult{{
			Title: "Rate",
			Outcome: sandbox.Outcome{
				Value:   0.3,
				Snippet: "result = df['fill_rate'].mean()",
				Repair:  &sandbox.RepairRecord{Rules: []string{"sum-to-mean"}},
			},
		}},
		Insights: []string{"South leads"},
	}
	md := Dashboard(res)
	assert.Contains(t, md, "# Sales")
	assert.Contains(t, md, "| Revenue | $700 |")
	assert.Contains(t, md, "| Broken | error: KeyError |")
	assert.Contains(t, md, "Repaired (sum-to-mean)")
	assert.Contains(t, md, "- South leads")
}

func TestSnapshotsAndAnomalies(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	list := []monitor.Snapshot{
		{Label: "mon", Timestamp: ts, Rows: 3, Quality: 90, Indicators: map[string]*float64{"revenue": ptr(700)}},
		{Label: "tue", Timestamp: ts, Rows: 3, Quality: 88, Indicators: map[string]*float64{"revenue": nil, "units": ptr(4)}},
	}
	md := Snapshots(list)
	assert.Contains(t, md, "| label | time | rows | quality | revenue | units |")
	assert.Contains(t, md, "| mon | 2026-03-01 09:30 | 3 | 90 | 700 | - |")
	assert.Contains(t, md, "| tue | 2026-03-01 09:30 | 3 | 88 | - | 4 |")
	assert.Equal(t, "No snapshots recorded.\n", Snapshots(nil))

	rep := monitor.Report{
		Status:   monitor.StatusCritical,
		Baseline: "tue",
		Entries:  []monitor.Anomaly{{Indicator: "revenue", Previous: 700, Current: 1400, ChangePct: 100, Severity: monitor.SeverityHigh}},
		Trends:   []monitor.Trend{{Indicator: "revenue", Direction: monitor.TrendUp}},
	}
	md = Anomalies(rep)
	assert.Contains(t, md, "## Status: CRITICAL")
	assert.Contains(t, md, "| revenue | 700 | 1400 | +100.00% | high |")
	assert.Contains(t, md, "- revenue: up")
}
