package ai

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
)

func customers() *dataset.Dataset {
	ds := dataset.New("customers")
	ds.Columns = []*dataset.Column{
		dataset.NewColumn("customer_id", []any{"c1", "c2", "c2", "c3"}),
		dataset.NewColumn("state", []any{"TX", "CA", "CA", nil}),
		dataset.NewColumn("revenue", []any{10.0, 20.0, 20.0, 30.0}),
	}
	return ds
}

func TestProfileDataset(t *testing.T) {
	p := ProfileDataset(customers(), 2)
	assert.Equal(t, [2]int{4, 3}, p.Shape)
	assert.Equal(t, []string{"revenue"}, p.NumericColumns)
	assert.Equal(t, []string{"customer_id", "state"}, p.CategoricalColumns)
	assert.Equal(t, 25.0, p.MissingPct["state"])
	assert.Equal(t, 3, p.UniqueCounts["customer_id"])
	assert.Equal(t, []string{"c1", "c2"}, p.SampleValues["customer_id"])
	assert.Equal(t, 1, p.DuplicateRows)
	assert.Contains(t, p.Note, "3 unique customers")

	st := p.NumericStats["revenue"]
	assert.Equal(t, 10.0, st.Min)
	assert.Equal(t, 30.0, st.Max)
	assert.Equal(t, 20.0, st.Mean)
	assert.Equal(t, 20.0, st.Median)

	var back map[string]any
	require.NoError(t, json.Unmarshal([]byte(p.Render(0)), &back))
	assert.Contains(t, back, "dtypes")
}

func TestProfileRenderRespectsBudget(t *testing.T) {
	p := ProfileDataset(customers(), 5)
	full := p.Render(0)
	short := p.Render(20)
	assert.Less(t, len(short), len(full))
	assert.LessOrEqual(t, len([]rune(short)), 80)
}

func TestPromptsCarryRules(t *testing.T) {
	p := ProfileDataset(customers(), 5)

	d := DashboardPrompt(p, "Revenue by state", "Where do we grow?", 0)
	assert.Equal(t, PlanDashboard, d.Kind)
	assert.Contains(t, d.Text, "USER REQUEST: Revenue by state")
	assert.Contains(t, d.Text, "BUSINESS QUESTION TO ANSWER: 'Where do we grow?'")
	assert.Contains(t, d.Text, "MEAN not SUM")
	assert.Contains(t, d.Text, "make_us_map(")
	assert.Contains(t, d.Text, "'#6366f1'")
	assert.NotContains(t, d.Text, "%!")

	c := CleaningPrompt(p, "", 0)
	assert.Equal(t, PlanCleaning, c.Kind)
	assert.Contains(t, c.Text, `"cleaning_code"`)
	assert.Contains(t, c.Text, "No specific business question set")
	assert.Contains(t, c.Text, "pd.to_datetime() BEFORE using .dt accessor")

	i := IndicatorPrompt(p, "", 0)
	assert.Contains(t, i.Text, "Key business health metrics")
	assert.Contains(t, i.Text, `"indicators"`)

	tokens := d.Tokens()
	assert.Greater(t, tokens["profile"], 0)
	assert.Greater(t, d.Total(), tokens["rules"])
	assert.Len(t, SortedTokens(d), 3)
	assert.True(t, strings.HasPrefix(SortedTokens(d)[0], "profile="))
}

type cannedRuntime struct {
	reply string
	got   GenerateRequest
}

func (r *cannedRuntime) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	r.got = req
	return &GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: r.reply}}}}, nil
}

func TestAskExtractsPlan(t *testing.T) {
	rt := &cannedRuntime{reply: "Here you go:\n```json\n{\"indicators\": [{\"label\": \"Rows\", \"code\": \"result = len(df)\"},]}\n```"}
	plan, resp, err := Ask(context.Background(), rt, IndicatorPrompt(ProfileDataset(customers(), 3), "", 0), "m", 100)
	require.NoError(t, err)
	require.NotNil(t, resp)
	ip, err := extract.DecodeIndicators(plan)
	require.NoError(t, err)
	assert.Equal(t, "Rows", ip.Indicators[0].Label)
	assert.Equal(t, "m", rt.got.Model)

	rt.reply = "sorry, no can do"
	_, resp, err = Ask(context.Background(), rt, IndicatorPrompt(ProfileDataset(customers(), 3), "", 0), "m", 100)
	assert.ErrorIs(t, err, extract.ErrNoPlan)
	assert.Equal(t, "sorry, no can do", resp.Text())
}
