package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
	"github.com/KaramelBytes/dashloom-cli/internal/plot"
	"github.com/KaramelBytes/dashloom-cli/internal/sandbox"
)

func stores() *dataset.Dataset {
	ds := dataset.New("stores")
	ds.Columns = []*dataset.Column{
		dataset.NewColumn("code", []any{"TX", "CA", "TX", "NY"}),
		dataset.NewColumn("day", []any{"2024-01-05", "2024-02-10", "2024-01-05", "2023-12-31"}),
		dataset.NewColumn("revenue", []any{1000.0, 200.0, 1000.0, 34.0}),
		dataset.NewColumn("fill_rate", []any{0.2, 0.4, 0.2, 0.4}),
	}
	return ds
}

func TestSumToMeanPreflight(t *testing.T) {
	out := New().Run("result = df['fill_rate'].sum()", stores())
	require.Nil(t, out.Err)
	assert.InDelta(t, 0.3, out.Value, 1e-9)
	assert.Equal(t, 1, out.Attempts)
	require.NotNil(t, out.Repair)
	assert.Equal(t, []string{RuleSumToMean}, out.Repair.Rules)
	assert.Equal(t, "result = df['fill_rate'].sum()", out.Repair.Original)
	assert.Equal(t, "result = df['fill_rate'].mean()", out.Snippet)
}

func TestSumLeftAloneForAmounts(t *testing.T) {
	out := New().Run("result = df['revenue'].sum()", stores())
	require.Nil(t, out.Err)
	assert.Equal(t, 2234.0, out.Value)
	assert.Nil(t, out.Repair)
}

func TestSumKeptWhenAlreadyDivided(t *testing.T) {
	out := New().Run("result = df['fill_rate'].sum() / len(df)", stores())
	require.Nil(t, out.Err)
	assert.InDelta(t, 0.3, out.Value, 1e-9)
	assert.Nil(t, out.Repair)

	got, ok := SumToMean(DefaultRateWords).Rewrite(nil, "a = df['fill_rate'].sum() / 2\nb = df.fill_rate.sum()")
	require.True(t, ok)
	assert.Equal(t, "a = df['fill_rate'].sum() / 2\nb = df.fill_rate.mean()", got)
}

func TestUnexpectedKwargStripped(t *testing.T) {
	src := "result = px.choropleth(df, locations='code', color='revenue', size='revenue')"
	out := New().Run(src, stores())
	require.Nil(t, out.Err)
	assert.IsType(t, &plot.Chart{}, out.Value)
	assert.Equal(t, 2, out.Attempts)
	require.NotNil(t, out.Repair)
	assert.Equal(t, []string{RuleUnexpectedKwarg}, out.Repair.Rules)
	assert.NotContains(t, out.Snippet, "size=")

	// Only the call on the failing line loses the argument.
	src = "bubbles = px.scatter(df, x='revenue', y='fill_rate', size='revenue')\n" +
		"result = px.choropleth(df, locations='code', color='revenue', size='revenue')"
	out = New().Run(src, stores())
	require.Nil(t, out.Err)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []string{RuleUnexpectedKwarg}, out.Repair.Rules)
	assert.Contains(t, out.Snippet, "y='fill_rate', size='revenue')")
	assert.Contains(t, out.Snippet, "px.choropleth(df, locations='code', color='revenue')")
}

func TestDatetimeAccessorRetry(t *testing.T) {
	src := "work = df.copy()\nwork['year'] = work['day'].dt.year\nresult = work['year'].max()"
	out := New().Run(src, stores())
	require.Nil(t, out.Err)
	assert.Equal(t, 2024.0, out.Value)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []string{RuleDatetimeAccessor}, out.Repair.Rules)
}

func TestDatetimeAccessorAttributeForm(t *testing.T) {
	src := "df['year'] = df.day.dt.year\nresult = df['year'].max()"
	out := New().Run(src, stores())
	require.Nil(t, out.Err)
	assert.Equal(t, 2024.0, out.Value)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []string{RuleDatetimeAccessor}, out.Repair.Rules)
	assert.Contains(t, out.Snippet, "df['day'] = pd.to_datetime(df['day'], errors='coerce')\n")
}

func TestFrameTruthinessRetry(t *testing.T) {
	src := "big_df = df[df['revenue'] > 100]\nif big_df:\n    result = len(big_df)\nelse:\n    result = 0"
	out := New().Run(src, stores())
	require.Nil(t, out.Err)
	assert.EqualValues(t, 3, out.Value)
	assert.Equal(t, []string{RuleFrameTruthiness}, out.Repair.Rules)
	assert.Contains(t, out.Snippet, "if big_df is not None and len(big_df) > 0:")
}

func TestRepairBoundedToOneRetry(t *testing.T) {
	calls := 0
	always := func(name string) Rule {
		return Rule{
			Name:    name,
			Stage:   OnFailure,
			Trigger: func(err *sandbox.ErrorDescriptor, _ string) bool { return err != nil },
			Rewrite: func(_ *sandbox.ErrorDescriptor, src string) (string, bool) {
				calls++
				return src + "\npass", true
			},
		}
	}
	e := New(WithRules(always("first"), always("second")))
	out := e.Run("raise ValueError('broken')", stores())
	require.NotNil(t, out.Err)
	assert.Equal(t, "ValueError", out.Err.Kind)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 1, calls)
	require.NotNil(t, out.Repair)
	assert.Equal(t, []string{"first"}, out.Repair.Rules)
}

func TestNoMatchingRuleKeepsFailure(t *testing.T) {
	out := New().Run("result = missing_name", stores())
	require.NotNil(t, out.Err)
	assert.Equal(t, "NameError", out.Err.Kind)
	assert.Equal(t, 1, out.Attempts)
	assert.Nil(t, out.Repair)
}

func TestStripKwarg(t *testing.T) {
	tests := []struct {
		src, name, want string
		ok              bool
	}{
		{"px.bar(df, x='a', size='b')", "size", "px.bar(df, x='a')", true},
		{"f(size=3, x=1)", "size", "f(x=1)", true},
		{"f(size='b')", "size", "f()", true},
		{"f(x=1, size=g(1, 2), y=[1, 2])", "size", "f(x=1, y=[1, 2])", true},
		{"f(x=1, size='a,b)')", "size", "f(x=1)", true},
		{"f(size == 1)", "size", "f(size == 1)", false},
		{"f(x=1)", "size", "f(x=1)", false},
	}
	for _, tc := range tests {
		got, ok := StripKwarg(tc.src, tc.name)
		assert.Equal(t, tc.ok, ok, tc.src)
		assert.Equal(t, tc.want, got, tc.src)
	}
}

func TestStripKwargAtLine(t *testing.T) {
	src := "a = f(x=1, size=2)\nb = g(size=3,\n      y=4)\nc = h(size=5)"
	tests := []struct {
		line int
		want string
	}{
		{0, "a = f(x=1)\nb = g(size=3,\n      y=4)\nc = h(size=5)"},
		{2, "a = f(x=1, size=2)\nb = g(\n      y=4)\nc = h(size=5)"},
		{3, "a = f(x=1, size=2)\nb = g(size=3,\n      y=4)\nc = h()"},
		// past the last line
		{9, "a = f(x=1)\nb = g(size=3,\n      y=4)\nc = h(size=5)"},
	}
	for _, tc := range tests {
		got, ok := StripKwargAt(src, "size", tc.line)
		assert.True(t, ok, tc.line)
		assert.Equal(t, tc.want, got, tc.line)
	}

	got, ok := StripKwargAt("f(a=1,\n  size=2)", "size", 1)
	assert.True(t, ok)
	assert.Equal(t, "f(a=1)", got)
}

func TestSumToMeanNames(t *testing.T) {
	rule := SumToMean(DefaultRateWords)
	tests := []struct {
		src  string
		want bool
	}{
		{"df['fill_rate'].sum()", true},
		{`df["utilizationPct"].sum()`, true},
		{"df.conversion_ratio.sum()", true},
		{"df['Bed Capacity'].sum()", true},
		{"df['revenue'].sum()", false},
		{"df['generated'].sum()", false},
		{"df['fill_rate'].sum(skipna=False)", false},
		{"df['fill_rate'].sum() / len(df)", false},
		{"df['fill_rate'].sum()/2 + df.fill_rate.sum()", true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, rule.Trigger(nil, tc.src), tc.src)
	}
}

func TestInjectDatetime(t *testing.T) {
	got, ok := InjectDatetime("import pandas as pd\nwork = df.copy()\nx = work['day'].dt.year")
	require.True(t, ok)
	assert.Equal(t, "import pandas as pd\nwork = df.copy()\nwork['day'] = pd.to_datetime(work['day'], errors='coerce')\nx = work['day'].dt.year", got)

	got, ok = InjectDatetime("x = df['day'].dt.month")
	require.True(t, ok)
	assert.Equal(t, "df['day'] = pd.to_datetime(df['day'], errors='coerce')\nx = df['day'].dt.month", got)

	_, ok = InjectDatetime("df['day'] = pd.to_datetime(df['day'])\nx = df['day'].dt.month")
	assert.False(t, ok)

	got, ok = InjectDatetime("work = df.copy()\nx = work.day.dt.year")
	require.True(t, ok)
	assert.Equal(t, "work = df.copy()\nwork['day'] = pd.to_datetime(work['day'], errors='coerce')\nx = work.day.dt.year", got)

	_, ok = InjectDatetime("x = df['day'].max()")
	assert.False(t, ok)
}

func TestRewriteTruthiness(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		want string
	}{
		{"not frame", "if not sales_df:\n    pass", 0, "if sales_df is None or len(sales_df) == 0:\n    pass"},
		{"bare frame", "elif frame:", 0, "elif frame is not None and len(frame) > 0:"},
		{"and frame", "if ok and top_df:", 0, "if ok and top_df is not None and len(top_df) > 0:"},
		{"other name elsewhere", "if flag:", 0, "if flag:"},
		{"other name on failed line", "if flag:", 1, "if flag is not None and len(flag) > 0:"},
		{"keyword", "if True:", 1, "if True:"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := RewriteTruthiness(tc.src, tc.line, frameNamed)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCleanAcceptsFallbackNames(t *testing.T) {
	e := New()
	for _, name := range CleanResultNames {
		out := e.Clean(name+" = df.drop_duplicates()", stores())
		require.Nil(t, out.Err, name)
		ds, ok := out.Value.(*dataset.Dataset)
		require.True(t, ok, name)
		assert.Equal(t, 3, ds.Rows(), name)
	}
}

func TestCleanCoercesDates(t *testing.T) {
	out := New().Clean("df_clean = df.copy()\ndf_clean['year'] = df_clean['day'].dt.year", stores())
	require.Nil(t, out.Err)
	assert.Equal(t, 1, out.Attempts)
	ds := out.Value.(*dataset.Dataset)
	col, ok := ds.Column("year")
	require.True(t, ok)
	assert.Equal(t, []any{2024.0, 2024.0, 2024.0, 2023.0}, col.Values)
}

func TestCleanRequiresDataset(t *testing.T) {
	for _, src := range []string{"x = 1", "result = 42"} {
		out := New().Clean(src, stores())
		require.NotNil(t, out.Err, src)
		assert.Equal(t, KindNoResult, out.Err.Kind)
		assert.Equal(t, "No result dataframe found.", out.Err.Message)
		assert.Nil(t, out.Value)
	}
}

func TestCleanPreemptiveTruthiness(t *testing.T) {
	src := "df_clean = df.dropna()\nif not df_clean:\n    df_clean = df"
	out := New().Clean(src, stores())
	require.Nil(t, out.Err)
	assert.Equal(t, 1, out.Attempts)
	require.NotNil(t, out.Repair)
	assert.Equal(t, []string{RuleFrameTruthiness}, out.Repair.Rules)
	assert.Equal(t, src, out.Repair.Original)
}

func TestRunDashboard(t *testing.T) {
	d := &extract.Dashboard{
		Title: "Stores",
		KPIs: []extract.KPI{
			{Label: "Revenue", Code: "result = df['revenue'].sum()", Format: "${:,.0f}"},
			{Label: "Broken", Code: "result = df['nope'].sum()"},
		},
		Visualizations: []extract.Visualization{
			{Title: "By code", Code: "result = px.bar(df, x='code', y='revenue')\ninsight = 'TX leads'"},
		},
	}
	res := New().RunDashboard(d, stores())
	require.Len(t, res.KPIs, 2)
	assert.Equal(t, "$2,234", res.KPIs[0].Display)
	assert.False(t, res.KPIs[1].Outcome.OK())
	require.Len(t, res.Charts, 1)
	assert.True(t, res.Charts[0].Outcome.OK())
	assert.Equal(t, "TX leads", res.Charts[0].Insight)
	assert.Equal(t, 1, res.Failures())
}

func TestRepairIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(nil) })

	New().Run("result = df['fill_rate'].sum()", stores())

	entries := logs.FilterMessage("repair rule applied").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, RuleSumToMean, fields[logger.FieldRule])
	assert.Equal(t, "preflight", fields[logger.FieldStage])
}
