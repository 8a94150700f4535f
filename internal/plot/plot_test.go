package plot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/snippet"
)

func salesFrame() *snippet.Frame {
	ds := dataset.New("sales")
	ds.Columns = []*dataset.Column{
		dataset.NewColumn("state", []any{"Texas", "ca", "Narnia"}),
		dataset.NewColumn("region", []any{"south", "west", "south"}),
		dataset.NewColumn("revenue", []any{10.0, 20.0, 5.0}),
	}
	return snippet.NewFrame(ds)
}

func runChart(t *testing.T, src string) (*Chart, error) {
	t.Helper()
	bindings := Bindings()
	bindings["df"] = salesFrame()
	in := snippet.New(bindings, Modules())
	if err := in.ExecSource(src); err != nil {
		return nil, err
	}
	v, _ := in.Get("result")
	c, ok := v.(*Chart)
	require.True(t, ok, "result is %T", v)
	return c, nil
}

func TestExpressSplitsByColor(t *testing.T) {
	c, err := runChart(t, "result = px.bar(df, x='state', y='revenue', color='region', color_discrete_sequence=VIVID_COLORS, title='Revenue')")
	require.NoError(t, err)
	require.Len(t, c.Traces, 2)
	assert.Equal(t, "south", c.Traces[0].Props["name"])
	assert.Equal(t, []any{10.0, 5.0}, c.Traces[0].Props["y"])
	assert.Equal(t, Vivid[1], c.Traces[1].Props["marker"].(map[string]any)["color"])
	assert.Equal(t, "Revenue", c.Title())
	assert.Equal(t, "bar", c.Kind)
}

func TestExpressFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind string
		msg  string
	}{
		{"unexpected keyword", "result = px.choropleth(df, locations='state', color='revenue', size='revenue')",
			"TypeError", "choropleth() got an unexpected keyword argument 'size'"},
		{"unknown column", "result = px.line(df, x='state', y='profit')",
			"ValueError", "Value of 'y' is not the name of a column in 'data_frame'"},
		{"string without frame", "result = px.pie(names='state')",
			"ValueError", "No DataFrame was provided"},
		{"length mismatch", "result = px.scatter(x=[1, 2], y=[1, 2, 3])",
			"ValueError", "All arguments should have the same length"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runChart(t, tc.src)
			require.Error(t, err)
			var f *snippet.Fault
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tc.kind, f.Kind)
			assert.Contains(t, f.Message, tc.msg)
		})
	}
}

func TestUSMapPadsStates(t *testing.T) {
	c, err := runChart(t, "result = make_us_map(df, value_col='revenue', title='By state')")
	require.NoError(t, err)
	require.Len(t, c.Traces, 1)
	locs := c.Traces[0].Props["locations"].([]any)
	assert.Len(t, locs, 50)
	assert.Equal(t, []any{"TX", "CA"}, locs[:2])
	z := c.Traces[0].Props["z"].([]any)
	assert.Equal(t, 20.0, z[1])
	assert.Nil(t, z[2])
	assert.Equal(t, "USA-states", c.Traces[0].Props["locationmode"])
}

func TestFigureUpdates(t *testing.T) {
	src := strings.Join([]string{
		"fig = go.Figure(data=[go.Bar(x=['a', 'b'], y=[1, 2])])",
		"fig.update_layout(title='Totals', height=420, xaxis_title='Group')",
		"fig.update_traces(marker_line_width=0, selector=dict(type='bar'))",
		"fig.add_hline(y=1.5, line_dash='dash')",
		"result = fig",
	}, "\n")
	c, err := runChart(t, src)
	require.NoError(t, err)
	assert.Equal(t, "bar", c.Kind)
	assert.Equal(t, "Totals", c.Title())
	assert.Equal(t, 420.0, c.Layout["height"])
	assert.Equal(t, map[string]any{"text": "Group"}, c.Layout["xaxis"].(map[string]any)["title"])
	marker := c.Traces[0].Props["marker"].(map[string]any)
	assert.Equal(t, map[string]any{"width": 0.0}, marker["line"])
	require.Len(t, c.Layout["shapes"], 1)
}

func TestImportedModules(t *testing.T) {
	c, err := runChart(t, "import plotly.express as px2\nfrom plotly import graph_objects as g\nresult = px2.pie(df, names='region', values='revenue', hole=0.4)\nresult.add_trace(g.Pie(labels=['x'], values=[1]))")
	require.NoError(t, err)
	assert.Len(t, c.Traces, 2)
	assert.Equal(t, 0.4, c.Traces[0].Props["hole"])
}

func TestSetPath(t *testing.T) {
	m := map[string]any{"title": "old"}
	setPath(m, "title_font_size", 14.0)
	setPath(m, "plot_bgcolor", "#000")
	assert.Equal(t, map[string]any{"text": "old", "font": map[string]any{"size": 14.0}}, m["title"])
	assert.Equal(t, "#000", m["plot_bgcolor"])
}

func TestStateCode(t *testing.T) {
	for in, want := range map[string]string{"new york": "NY", "tx": "TX", "Wyoming": "WY"} {
		got, ok := StateCode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := StateCode("Narnia")
	assert.False(t, ok)
}
