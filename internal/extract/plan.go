package extract

import (
	"encoding/json"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

// KPI is one headline number of a dashboard.
type KPI struct {
	Label string `json:"label"`
	Code  string `json:"code"`
	// Format is a display template such as "${:,.0f}".
	Format string `json:"format,omitempty"`
}

// Visualization is one chart of a dashboard.
type Visualization struct {
	Title     string `json:"title"`
	ChartType string `json:"chart_type,omitempty"`
	Code      string `json:"code"`
	Insight   string `json:"insight,omitempty"`
}

// Dashboard is the plan returned for a dashboard request.
type Dashboard struct {
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	KPIs           []KPI           `json:"kpis"`
	Insights       []string        `json:"insights,omitempty"`
	Visualizations []Visualization `json:"visualizations"`
}

// Summary is the overview section of a cleaning plan.
type Summary struct {
	Title        string   `json:"title"`
	Overview     string   `json:"overview,omitempty"`
	QualityScore float64  `json:"quality_score,omitempty"`
	KeyFindings  []string `json:"key_findings,omitempty"`
}

// Issue is a data problem the model proposes to fix.
type Issue struct {
	IssueType      string `json:"issue_type"`
	Column         string `json:"column,omitempty"`
	Severity       string `json:"severity,omitempty"`
	Description    string `json:"description,omitempty"`
	FixDescription string `json:"fix_description,omitempty"`
}

// Feature is a derived column suggested alongside the cleaning code.
type Feature struct {
	Name        string `json:"feature_name"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
}

// AnalysisInsight pairs a finding with a recommendation.
type AnalysisInsight struct {
	Category       string `json:"category,omitempty"`
	Insight        string `json:"insight"`
	Recommendation string `json:"recommendation,omitempty"`
}

// CleaningPlan is the plan returned for a cleaning request.
type CleaningPlan struct {
	Summary     Summary           `json:"data_summary"`
	Issues      []Issue           `json:"issues_found,omitempty"`
	Code        string            `json:"cleaning_code"`
	Features    []Feature         `json:"engineered_features,omitempty"`
	Insights    []AnalysisInsight `json:"analysis_insights,omitempty"`
	Suggestions []string          `json:"dashboard_suggestions,omitempty"`
}

// IndicatorPlan lists indicator definitions proposed by the model.
type IndicatorPlan struct {
	Indicators []KPI `json:"indicators"`
}

func decodeInto(p Plan, out any) error {
	b, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "re-encode plan")
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrap(errors.Wrap(errors.ErrInvalidRequest, err.Error()), "decode plan")
	}
	return nil
}

// DecodeDashboard maps a plan onto a Dashboard. The visualizations key is required.
func DecodeDashboard(p Plan) (*Dashboard, error) {
	if _, ok := p["visualizations"]; !ok {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "dashboard plan has no visualizations")
	}
	var d Dashboard
	if err := decodeInto(p, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecodeCleaning maps a plan onto a CleaningPlan. The cleaning_code key is required.
func DecodeCleaning(p Plan) (*CleaningPlan, error) {
	if p.String("cleaning_code") == "" {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "cleaning plan has no cleaning_code")
	}
	var c CleaningPlan
	if err := decodeInto(p, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DecodeIndicators maps a plan onto indicator definitions; a bare "kpis" key
// is accepted too.
func DecodeIndicators(p Plan) (*IndicatorPlan, error) {
	var ip IndicatorPlan
	if err := decodeInto(p, &ip); err != nil {
		return nil, err
	}
	if len(ip.Indicators) == 0 {
		var d Dashboard
		if err := decodeInto(p, &d); err == nil {
			ip.Indicators = d.KPIs
		}
	}
	if len(ip.Indicators) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "indicator plan has no indicators")
	}
	return &ip, nil
}
