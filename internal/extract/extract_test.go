package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

const dashboardJSON = `{"title": "Sales", "kpis": [{"label": "Revenue", "code": "result = df['revenue'].sum()", "format": "${:,.0f}"}], "visualizations": [{"title": "By region", "chart_type": "bar", "code": "result = px.bar(df, x='region', y='revenue')"}]}`

func TestExtractRecoversFencedAndWrapped(t *testing.T) {
	var want Plan
	require.NoError(t, json.Unmarshal([]byte(dashboardJSON), &want))

	tests := []struct {
		name string
		text string
	}{
		{"bare", dashboardJSON},
		{"json fence", "```json\n" + dashboardJSON + "\n```"},
		{"plain fence", "```\n" + dashboardJSON + "\n```"},
		{"prose around", "Here is your dashboard:\n" + dashboardJSON + "\nLet me know if you need changes."},
		{"fence and prose", "Sure!\n```json\n" + dashboardJSON + "\n```\nEnjoy."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Extract(tc.text)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestExtractBracesInsideStrings(t *testing.T) {
	got, ok := Extract(`noise {"a": "{unbalanced", "b": "esc \" } quote"} trailing {"c": 1}`)
	require.True(t, ok)
	assert.Equal(t, Plan{"a": "{unbalanced", "b": `esc " } quote`}, got)
}

func TestExtractTrailingCommas(t *testing.T) {
	got, ok := Extract("Result:\n{\"items\": [1, 2, ],\n \"name\": \"x\",\n}")
	require.True(t, ok)
	assert.Equal(t, Plan{"items": []any{1.0, 2.0}, "name": "x"}, got)
}

func TestExtractFailures(t *testing.T) {
	for _, text := range []string{
		"",
		"no json here",
		`{"never": "closed"`,
		`{"bad": tru}`,
		`[1, 2, 3]`,
	} {
		_, ok := Extract(text)
		assert.False(t, ok, text)
	}
}

func TestParseWrapsSentinel(t *testing.T) {
	_, err := Parse("nothing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPlan))
}

func TestDecodeDashboard(t *testing.T) {
	p, ok := Extract(dashboardJSON)
	require.True(t, ok)
	d, err := DecodeDashboard(p)
	require.NoError(t, err)
	assert.Equal(t, "Sales", d.Title)
	require.Len(t, d.KPIs, 1)
	assert.Equal(t, "${:,.0f}", d.KPIs[0].Format)
	require.Len(t, d.Visualizations, 1)
	assert.Equal(t, "bar", d.Visualizations[0].ChartType)

	_, err = DecodeDashboard(Plan{"title": "x"})
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestDecodeCleaning(t *testing.T) {
	p := Plan{
		"data_summary":  map[string]any{"title": "Orders", "quality_score": 72.0},
		"issues_found":  []any{map[string]any{"issue_type": "Duplicates", "column": "ALL", "severity": "high"}},
		"cleaning_code": "df_clean = df.drop_duplicates()",
	}
	c, err := DecodeCleaning(p)
	require.NoError(t, err)
	assert.Equal(t, "Orders", c.Summary.Title)
	assert.Equal(t, 72.0, c.Summary.QualityScore)
	require.Len(t, c.Issues, 1)
	assert.Equal(t, "Duplicates", c.Issues[0].IssueType)

	_, err = DecodeCleaning(Plan{"data_summary": map[string]any{}})
	assert.Error(t, err)
}

func TestDecodeIndicatorsAcceptsKPIs(t *testing.T) {
	ip, err := DecodeIndicators(Plan{"kpis": []any{map[string]any{"label": "Rows", "code": "result = len(df)"}}})
	require.NoError(t, err)
	require.Len(t, ip.Indicators, 1)
	assert.Equal(t, "Rows", ip.Indicators[0].Label)

	_, err = DecodeIndicators(Plan{})
	assert.Error(t, err)
}
