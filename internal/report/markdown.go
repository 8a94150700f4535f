// Package report renders datasets, scores, dashboards and monitoring results
// as Markdown for files and pipelines. Terminal output lives in cmd.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/quality"
	"github.com/KaramelBytes/dashloom-cli/internal/repair"
	"github.com/KaramelBytes/dashloom-cli/internal/sandbox"
)

const topValues = 3

// Dataset renders the shape and per-column schema of ds.
func Dataset(ds *dataset.Dataset) string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if ds.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", ds.Name)
	}
	fmt.Fprintf(&b, "Rows: %d\n", ds.Rows())
	fmt.Fprintf(&b, "Columns: %d\n\n", ds.Width())

	b.WriteString("[SCHEMA]\n")
	rows := ds.Rows()
	for _, c := range ds.Columns {
		missing := c.Missing()
		missPct := 0.0
		if rows > 0 {
			missPct = float64(missing) * 100 / float64(rows)
		}
		fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, rows-missing, missPct)
		switch c.Kind {
		case dataset.KindNumeric:
			if vals := c.Floats(); len(vals) > 0 {
				s := dataset.Sorted(vals)
				fmt.Fprintf(&b, ": min %.4g, max %.4g, mean %.4g, std %.4g",
					s[0], s[len(s)-1], dataset.Mean(vals), dataset.Std(vals))
			}
		case dataset.KindText:
			if top := topCounts(c, topValues); len(top) > 0 {
				b.WriteString(": top ")
				b.WriteString(strings.Join(top, ", "))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// topCounts lists the most frequent text values as "value(count)".
func topCounts(c *dataset.Column, n int) []string {
	counts := map[string]int{}
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		counts[dataset.FormatCell(v)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s(%d)", safeVal(k), counts[k])
	}
	return out
}

// Quality renders a score breakdown followed by validation issues.
func Quality(bd quality.Breakdown, issues []quality.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Data quality: %d/100\n\n", bd.Score)
	b.WriteString("| term | value |\n|---|---|\n")
	fmt.Fprintf(&b, "| missing cells | %.2f%% |\n", bd.MissingPct)
	fmt.Fprintf(&b, "| duplicate rows | %.2f%% |\n", bd.DuplicatePct)
	fmt.Fprintf(&b, "| numeric-looking text columns | %d |\n", bd.TypeIssues)
	fmt.Fprintf(&b, "| outlier columns | %d |\n", bd.OutlierColumns)
	fmt.Fprintf(&b, "| fill bonus | %t |\n", bd.Bonus)
	if len(issues) == 0 {
		b.WriteString("\nNo issues found.\n")
		return b.String()
	}
	b.WriteString("\n### Issues\n")
	for _, is := range issues {
		fmt.Fprintf(&b, "- **%s** %s: %s\n", is.Severity, is.Type, safeVal(is.Message))
	}
	return b.String()
}

// Outcome renders one snippet result: the value or the error, then the
// rewrite when one was applied.
func Outcome(o sandbox.Outcome) string {
	var b strings.Builder
	switch {
	case o.Err != nil:
		fmt.Fprintf(&b, "Error: `%s`\n", o.Err.Raw)
	case o.Value == nil:
		b.WriteString("(no result)\n")
	default:
		fmt.Fprintf(&b, "Result: %s\n", describe(o.Value))
	}
	if o.Note != "" {
		fmt.Fprintf(&b, "\n> %s\n", safeVal(o.Note))
	}
	if o.Repair != nil {
		fmt.Fprintf(&b, "\nRepaired (%s):\n\n```python\n%s\n```\n", strings.Join(o.Repair.Rules, ", "), strings.TrimSpace(o.Snippet))
	}
	return b.String()
}

func describe(v any) string {
	switch x := v.(type) {
	case *dataset.Dataset:
		return fmt.Sprintf("dataset %d rows x %d columns", x.Rows(), x.Width())
	case interface{ Title() string }:
		if t := x.Title(); t != "" {
			return "chart " + safeVal(t)
		}
		return "chart"
	case []any:
		parts := make([]string, len(x))
		for i, it := range x {
			parts[i] = dataset.FormatCell(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return dataset.FormatCell(v)
}

// Dashboard renders an evaluated dashboard plan.
func Dashboard(r repair.DashboardResult) string {
	var b strings.Builder
	title := r.Title
	if title == "" {
		title = "Dashboard"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Description)
	}
	if len(r.KPIs) > 0 {
		b.WriteString("## KPIs\n\n| label | value |\n|---|---|\n")
		for _, k := range r.KPIs {
			v := k.Display
			if !k.Outcome.OK() {
				v = "error: " + k.Outcome.Err.Kind
			} else if v == "" {
				v = "-"
			}
			fmt.Fprintf(&b, "| %s | %s |\n", safeVal(k.Label), safeVal(v))
		}
		b.WriteString("\n")
	}
	for _, c := range r.Charts {
		fmt.Fprintf(&b, "## %s\n\n", c.Title)
		if c.Insight != "" {
			fmt.Fprintf(&b, "%s\n\n", c.Insight)
		}
		b.WriteString(Outcome(c.Outcome))
		b.WriteString("\n")
	}
	if len(r.Insights) > 0 {
		b.WriteString("## Insights\n\n")
		for _, in := range r.Insights {
			fmt.Fprintf(&b, "- %s\n", in)
		}
	}
	return b.String()
}

// Snapshots renders the history as a table, one indicator per column.
func Snapshots(list []monitor.Snapshot) string {
	if len(list) == 0 {
		return "No snapshots recorded.\n"
	}
	labels := IndicatorLabels(list)
	var b strings.Builder
	b.WriteString("| label | time | rows | quality |")
	for _, l := range labels {
		fmt.Fprintf(&b, " %s |", safeVal(l))
	}
	b.WriteString("\n|---|---|---|---|")
	b.WriteString(strings.Repeat("---|", len(labels)))
	b.WriteString("\n")
	for _, s := range list {
		fmt.Fprintf(&b, "| %s | %s | %d | %d |", safeVal(s.Label), s.Timestamp.Format("2006-01-02 15:04"), s.Rows, s.Quality)
		for _, l := range labels {
			fmt.Fprintf(&b, " %s |", FormatIndicator(s.Indicators[l]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// IndicatorLabels returns every indicator label found in list, sorted.
func IndicatorLabels(list []monitor.Snapshot) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range list {
		for k := range s.Indicators {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// FormatIndicator renders a recorded value; nil shows as "-".
func FormatIndicator(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4g", *v)
}

// Anomalies renders an anomaly report.
func Anomalies(r monitor.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Status: %s\n\n", strings.ToUpper(r.Status))
	if r.Baseline != "" {
		fmt.Fprintf(&b, "Compared with: %s\n\n", safeVal(r.Baseline))
	}
	if len(r.Entries) == 0 {
		b.WriteString("No anomalies.\n")
	} else {
		b.WriteString("| indicator | previous | current | change | severity |\n|---|---|---|---|---|\n")
		for _, a := range r.Entries {
			fmt.Fprintf(&b, "| %s | %.4g | %.4g | %+.2f%% | %s |\n",
				safeVal(a.Indicator), a.Previous, a.Current, a.ChangePct, a.Severity)
		}
	}
	if len(r.Trends) > 0 {
		b.WriteString("\n### Trends\n")
		for _, t := range r.Trends {
			fmt.Fprintf(&b, "- %s: %s\n", safeVal(t.Indicator), t.Direction)
		}
	}
	return b.String()
}

func safeName(s string) string {
	if s == "" {
		return "(unnamed)"
	}
	return safeVal(s)
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
