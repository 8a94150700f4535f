package repair

import (
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
	"github.com/KaramelBytes/dashloom-cli/internal/sandbox"
	"github.com/KaramelBytes/dashloom-cli/internal/snippet"
)

// KPIResult is one evaluated headline number.
type KPIResult struct {
	Label   string          `json:"label"`
	Display string          `json:"display,omitempty"`
	Outcome sandbox.Outcome `json:"outcome"`
}

// ChartResult is one evaluated visualization.
type ChartResult struct {
	Title   string          `json:"title"`
	Insight string          `json:"insight,omitempty"`
	Outcome sandbox.Outcome `json:"outcome"`
}

// DashboardResult collects the outcomes of a dashboard plan in plan order.
type DashboardResult struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Insights    []string      `json:"insights,omitempty"`
	KPIs        []KPIResult   `json:"kpis"`
	Charts      []ChartResult `json:"charts"`
}

// Failures counts failed snippets.
func (r *DashboardResult) Failures() int {
	n := 0
	for _, k := range r.KPIs {
		if !k.Outcome.OK() {
			n++
		}
	}
	for _, c := range r.Charts {
		if !c.Outcome.OK() {
			n++
		}
	}
	return n
}

// RunDashboard evaluates every KPI and visualization snippet of d. A failing
// snippet never stops the rest.
func (e *Engine) RunDashboard(d *extract.Dashboard, ds *dataset.Dataset) DashboardResult {
	res := DashboardResult{Title: d.Title, Description: d.Description, Insights: d.Insights}
	for _, k := range d.KPIs {
		out := e.Run(k.Code, ds)
		kr := KPIResult{Label: k.Label, Outcome: out}
		if out.OK() && out.Value != nil {
			kr.Display = snippet.FormatDisplay(displayValue(out.Value), k.Format)
		}
		res.KPIs = append(res.KPIs, kr)
	}
	for _, v := range d.Visualizations {
		out := e.Run(v.Code, ds)
		insight := v.Insight
		if out.Note != "" {
			insight = out.Note
		}
		res.Charts = append(res.Charts, ChartResult{Title: v.Title, Insight: insight, Outcome: out})
	}
	logger.Logger.Infow("dashboard evaluated",
		logger.FieldCount, len(res.KPIs)+len(res.Charts),
		"failures", res.Failures())
	return res
}

// displayValue maps exported host values back onto snippet values that the
// formatter understands.
func displayValue(v any) snippet.Value {
	switch x := v.(type) {
	case float64, string, bool:
		return x
	case []any:
		items := make([]snippet.Value, len(x))
		for i, it := range x {
			items[i] = displayValue(it)
		}
		return &snippet.List{Items: items}
	}
	return dataset.FormatCell(v)
}
