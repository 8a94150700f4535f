package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
	"github.com/KaramelBytes/dashloom-cli/internal/plot"
	"github.com/KaramelBytes/dashloom-cli/internal/quality"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

// Plan kinds a prompt can ask for.
const (
	PlanDashboard  = "dashboard"
	PlanCleaning   = "cleaning"
	PlanIndicators = "indicators"
)

// DefaultProfileBudget caps the tokens spent on the dataset profile.
const DefaultProfileBudget = 6000

// ColumnStats summarises a numeric column.
type ColumnStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std,omitempty"`
	Nulls  int     `json:"nulls"`
}

// Profile is the dataset summary sent to the model in place of raw rows.
type Profile struct {
	Name               string                  `json:"name,omitempty"`
	Shape              [2]int                  `json:"shape"`
	Columns            []string                `json:"columns"`
	Kinds              map[string]dataset.Kind `json:"dtypes"`
	NumericColumns     []string                `json:"numeric_columns"`
	CategoricalColumns []string                `json:"categorical_columns"`
	MissingPct         map[string]float64      `json:"missing_pct"`
	UniqueCounts       map[string]int          `json:"unique_counts"`
	NumericStats       map[string]ColumnStats  `json:"numeric_stats,omitempty"`
	SampleValues       map[string][]string     `json:"sample_values"`
	DuplicateRows      int                     `json:"duplicate_rows"`
	Note               string                  `json:"note,omitempty"`
}

// ProfileDataset summarises ds with up to samples distinct values for each of
// the first 20 columns and stats for the first 15 numeric columns.
func ProfileDataset(ds *dataset.Dataset, samples int) Profile {
	if samples <= 0 {
		samples = 5
	}
	p := Profile{
		Name:         ds.Name,
		Shape:        [2]int{ds.Rows(), ds.Width()},
		Columns:      ds.Names(),
		Kinds:        map[string]dataset.Kind{},
		MissingPct:   map[string]float64{},
		UniqueCounts: map[string]int{},
		NumericStats: map[string]ColumnStats{},
		SampleValues: map[string][]string{},
	}
	rows := ds.Rows()
	for i, c := range ds.Columns {
		p.Kinds[c.Name] = c.Kind
		switch c.Kind {
		case dataset.KindNumeric:
			p.NumericColumns = append(p.NumericColumns, c.Name)
		case dataset.KindText:
			p.CategoricalColumns = append(p.CategoricalColumns, c.Name)
		}
		if rows > 0 {
			p.MissingPct[c.Name] = round2(float64(c.Missing()) / float64(rows) * 100)
		}
		distinct := distinctValues(c)
		p.UniqueCounts[c.Name] = len(distinct)
		if i < 20 {
			if len(distinct) > samples {
				distinct = distinct[:samples]
			}
			p.SampleValues[c.Name] = distinct
		}
	}
	for i, name := range p.NumericColumns {
		if i >= 15 {
			break
		}
		c, _ := ds.Column(name)
		vals := c.Floats()
		if len(vals) == 0 {
			continue
		}
		s := dataset.Sorted(vals)
		st := ColumnStats{
			Min:    s[0],
			Max:    s[len(s)-1],
			Mean:   round2(dataset.Mean(vals)),
			Median: dataset.Quantile(s, 0.5),
			Nulls:  c.Missing(),
		}
		if len(vals) > 1 {
			st.Std = round2(dataset.Std(vals))
		}
		p.NumericStats[name] = st
	}
	p.DuplicateRows = len(quality.DuplicateRows(ds))
	if c, ok := ds.Column("customer_id"); ok {
		p.Note = fmt.Sprintf("Dataset has %d rows but %d unique customers. Deduplicate on customer_id for customer-level KPIs.",
			rows, len(distinctValues(c)))
	}
	return p
}

func distinctValues(c *dataset.Column) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		s := dataset.FormatCell(v)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Render returns the profile as indented JSON trimmed to budget tokens.
func (p Profile) Render(budget int) string {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "{}"
	}
	if budget <= 0 {
		budget = DefaultProfileBudget
	}
	return utils.TruncateToTokenLimit(string(b), budget)
}

// Prompt is a built model prompt with its labelled sections kept for token
// reporting.
type Prompt struct {
	Kind     string
	Text     string
	Sections map[string]string

	// Temperature overrides the default sampling temperature when positive.
	Temperature float64
}

const defaultTemperature = 0.2

// Tokens estimates the prompt size per section.
func (p Prompt) Tokens() map[string]int { return utils.TokenBreakdown(p.Sections) }

// Total estimates the whole prompt size.
func (p Prompt) Total() int { return utils.CountTokens(p.Text) }

// Request wraps the prompt in a single-message JSON-mode request.
func (p Prompt) Request(model string, maxTokens int) GenerateRequest {
	temp := defaultTemperature
	if p.Temperature > 0 {
		temp = p.Temperature
	}
	return GenerateRequest{
		Model:          model,
		Messages:       []Message{{Role: "user", Content: p.Text}},
		MaxTokens:      maxTokens,
		Temperature:    temp,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}
}

func palette() string {
	quoted := make([]string, len(plot.Vivid))
	for i, c := range plot.Vivid {
		quoted[i] = "'" + c + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func questionContext(question string) string {
	if strings.TrimSpace(question) == "" {
		return ""
	}
	return fmt.Sprintf("\n\nBUSINESS QUESTION TO ANSWER: '%s'\nFocus all KPIs, charts, and insights on answering this specific question.", question)
}

// DashboardPrompt asks for a dashboard plan answering request.
func DashboardPrompt(p Profile, request, question string, budget int) Prompt {
	profile := p.Render(budget)
	schema := `{
  "title": "Dashboard Title",
  "description": "What this dashboard shows",
  "kpis": [{"label": "KPI Name", "code": "result = df['col'].sum()", "format": "${:,.0f}"}],
  "insights": ["Key insight with specific numbers"],
  "visualizations": [{
    "title": "Chart Title",
    "chart_type": "bar",
    "code": "agg = df.groupby('col')['val'].mean().reset_index()\nresult = px.bar(agg, x='col', y='val', color='col', color_discrete_sequence=VIVID_COLORS)",
    "insight": "What this reveals"
  }]
}`
	rules := fmt.Sprintf(`CRITICAL RULES:
1. Generate 4-6 visualizations with DIFFERENT chart types
2. Each visualization code must assign a figure to 'result'
3. Use ONLY actual column names from the dataset
4. KPI code must compute a real value and assign to 'result'
5. For customer-level KPIs deduplicate first:
   customers = df.drop_duplicates(subset='customer_id', keep='last') if 'customer_id' in df.columns else df
6. For MAP: result = make_us_map(agg, value_col='revenue', state_col='state', title='Revenue by State', colorscale='Blues')
7. For RATES/PERCENTAGES: always use MEAN not SUM. Never sum percentages.
8. Cap displayed percentages at 100%%.
9. Every chart must be multi-coloured: pass color='category_col' and color_discrete_sequence=VIVID_COLORS
   VIVID_COLORS = %s
10. Available names: df, pd, np, px, go, make_us_map, VIVID_COLORS. No other imports, no file or network access.
11. Return ONLY JSON`, palette())

	text := fmt.Sprintf("You are an expert BI dashboard designer. Create a complete dashboard.\n\nUSER REQUEST: %s%s\n\nDATASET:\n%s\n\nRESPOND WITH ONLY THIS JSON:\n%s\n\n%s",
		request, questionContext(question), profile, schema, rules)
	return Prompt{
		Kind: PlanDashboard,
		Text: text,
		Sections: map[string]string{
			"request": request + question,
			"profile": profile,
			"rules":   schema + rules,
		},
	}
}

// CleaningPrompt asks for a cleaning and transformation plan.
func CleaningPrompt(p Profile, question string, budget int) Prompt {
	profile := p.Render(budget)
	schema := `{
  "data_summary": {"title": "Dataset name/type", "overview": "2-3 sentence overview", "quality_score": 85, "key_findings": ["finding1", "finding2"]},
  "issues_found": [{"issue_type": "Missing Values / Duplicates / Wrong Type / Outliers / Inconsistent Format", "column": "column_name or ALL", "severity": "critical / high / medium / low", "description": "Specific description", "fix_description": "What will be done"}],
  "cleaning_code": "df_clean = df.copy()\n# ... all transformations\nresult = df_clean",
  "engineered_features": [{"feature_name": "new_column_name", "description": "What this feature represents", "code": "df_clean['new_col'] = ..."}],
  "analysis_insights": [{"category": "Revenue / Customer / Operations / Risk", "insight": "Specific insight with numbers", "recommendation": "Actionable recommendation"}],
  "dashboard_suggestions": ["Suggestion 1", "Suggestion 2"]
}`
	focus := "No specific business question set. Provide general insights."
	if strings.TrimSpace(question) != "" {
		focus = fmt.Sprintf("Focus all insights and recommendations on answering: '%s'", question)
	}
	rules := `CLEANING RULES:
1. Fix missing values (median/mode imputation; drop only columns over 50% missing)
2. Remove duplicate rows
3. Fix data types (string numbers to float, parse dates)
4. Normalize percentage columns that are clearly wrong (>100% for rates)
5. Standardize categorical values (strip whitespace, consistent casing)
6. Engineer 2-3 useful derived features
7. cleaning_code uses 'df' as input and assigns the final cleaned dataframe to 'result'
8. CRITICAL CODE RULES:
   - NEVER write bare 'if dataframe_variable:'; always: if len(df_clean) > 0:
   - NEVER use chained assignment; always use .loc[]
   - ALWAYS convert date columns with pd.to_datetime() BEFORE using .dt accessor
   - Use np.select() instead of pd.cut() with labels`

	text := fmt.Sprintf("You are a Senior Data Analyst. Analyze this dataset and produce a complete data cleaning + transformation plan.\n\nDATASET PROFILE:\n%s\n\nRespond with ONLY this JSON (no other text):\n%s\n\nBUSINESS CONTEXT: %s\n\n%s",
		profile, schema, focus, rules)
	return Prompt{
		Kind: PlanCleaning,
		Text: text,
		Sections: map[string]string{
			"request": focus,
			"profile": profile,
			"rules":   schema + rules,
		},
	}
}

// IndicatorPrompt asks for scalar indicator definitions to monitor.
func IndicatorPrompt(p Profile, request string, budget int) Prompt {
	profile := p.Render(budget)
	if strings.TrimSpace(request) == "" {
		request = "Key business health metrics for this dataset"
	}
	schema := `{
  "indicators": [{"label": "Indicator Name", "code": "result = df['col'].mean()", "format": "{:,.2f}"}]
}`
	rules := `RULES:
1. Propose 4-8 indicators, each computing ONE number assigned to 'result'
2. Use ONLY actual column names from the dataset
3. For RATES/PERCENTAGES use MEAN not SUM
4. Labels must be unique
5. Return ONLY JSON`
	text := fmt.Sprintf("You are a data monitoring analyst. Define indicators to track between snapshots of this dataset.\n\nREQUEST: %s\n\nDATASET:\n%s\n\nRESPOND WITH ONLY THIS JSON:\n%s\n\n%s",
		request, profile, schema, rules)
	return Prompt{
		Kind: PlanIndicators,
		Text: text,
		Sections: map[string]string{
			"request": request,
			"profile": profile,
			"rules":   schema + rules,
		},
	}
}

// Ask sends the prompt and extracts the structured plan from the reply.
// The response is returned even when extraction fails so callers can show it.
func Ask(ctx context.Context, rt Runtime, p Prompt, model string, maxTokens int) (extract.Plan, *GenerateResponse, error) {
	resp, err := rt.Generate(ctx, p.Request(model, maxTokens))
	if err != nil {
		return nil, nil, err
	}
	plan, err := extract.Parse(resp.Text())
	if err != nil {
		return nil, resp, err
	}
	return plan, resp, nil
}

// SortedTokens lists section token counts in name order, for display.
func SortedTokens(p Prompt) []string {
	t := p.Tokens()
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s=%d", k, t[k])
	}
	return out
}
