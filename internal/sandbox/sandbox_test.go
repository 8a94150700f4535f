package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/plot"
	"github.com/KaramelBytes/dashloom-cli/internal/snippet"
)

func orders() *dataset.Dataset {
	ds := dataset.New("orders")
	ds.Columns = []*dataset.Column{
		dataset.NewColumn("region", []any{"north", "south", "north"}),
		dataset.NewColumn("amount", []any{10.0, 20.0, 30.0}),
	}
	return ds
}

func TestRunValues(t *testing.T) {
	ctx := New()
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"scalar result", "result = df['amount'].sum()", 60.0},
		{"string result", "result = df['region'].iloc[0]", "north"},
		{"empty slots", "x = 1", nil},
		{"list result", "result = sorted(df['region'].unique())", []any{"north", "south"}},
		{"nan is nothing", "result = np.nan", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := ctx.Run(tc.src, orders())
			require.Nil(t, out.Err)
			assert.Equal(t, tc.want, out.Value)
			assert.Equal(t, 1, out.Attempts)
		})
	}
}

func TestRunChartFallsBackToFig(t *testing.T) {
	out := New().Run("fig = px.bar(df, x='region', y='amount')\ninsight = 'north leads'", orders())
	require.Nil(t, out.Err)
	c, ok := out.Value.(*plot.Chart)
	require.True(t, ok)
	assert.Equal(t, "bar", c.Kind)
	assert.Equal(t, "north leads", out.Note)
}

func TestRunDatasetResult(t *testing.T) {
	out := New().Run("result = df.groupby('region')['amount'].sum().reset_index()", orders())
	require.Nil(t, out.Err)
	ds, ok := out.Value.(*dataset.Dataset)
	require.True(t, ok)
	assert.Equal(t, []string{"region", "amount"}, ds.Names())
	assert.Equal(t, 2, ds.Rows())
}

func TestRunFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind string
		line int
	}{
		{"syntax", "result = (1 +", "SyntaxError", 1},
		{"name", "result = missing_name", "NameError", 1},
		{"key", "x = 1\nresult = df['nope']", "KeyError", 2},
		{"zero division", "result = 1 / 0", "ZeroDivisionError", 1},
		{"deliberate raise", "raise ValueError('bad input')", "ValueError", 1},
		{"blocked import", "import os", "ModuleNotFoundError", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := New().Run(tc.src, orders())
			require.NotNil(t, out.Err)
			assert.Nil(t, out.Value)
			assert.Equal(t, tc.kind, out.Err.Kind)
			assert.Equal(t, tc.line, out.Err.Line)
			assert.Contains(t, out.Err.Raw, tc.kind)
		})
	}
}

func TestRunDoesNotMutateInput(t *testing.T) {
	ds := orders()
	out := New().Run("df['amount'] = 0\ndf['extra'] = 1\nresult = len(df)", ds)
	require.Nil(t, out.Err)
	assert.Equal(t, 2, ds.Width())
	assert.Equal(t, 10.0, ds.Columns[1].Values[0])
}

func TestRunIsRepeatable(t *testing.T) {
	ctx := New()
	src := "STATE_CODES['Atlantis'] = 'AT'\nresult = len(STATE_CODES)"
	first := ctx.Run(src, orders())
	second := ctx.Run(src, orders())
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, 51.0, second.Value)
}

func TestWithBindingsAndSlots(t *testing.T) {
	ctx := New(
		WithBindings(map[string]snippet.Value{"threshold": 15.0}),
		WithResultSlots("result", "df_clean"),
	)
	out := ctx.Run("df_clean = df[df['amount'] > threshold]", orders())
	require.Nil(t, out.Err)
	ds, ok := out.Value.(*dataset.Dataset)
	require.True(t, ok)
	assert.Equal(t, 2, ds.Rows())
}

func TestRunCapturesOutput(t *testing.T) {
	out := New().Run("print('rows', len(df))", orders())
	require.Nil(t, out.Err)
	assert.Equal(t, "rows 3\n", out.Output)
}
