package plot

import (
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/snippet"
)

var traceTypes = []string{
	"Bar", "Scatter", "Pie", "Choropleth", "Indicator", "Histogram", "Box", "Violin",
	"Heatmap", "Funnel", "Treemap", "Sunburst", "Table", "Scattergeo", "Waterfall",
}

// Graph returns the go (graph objects) module.
func Graph() *snippet.Module {
	attrs := map[string]snippet.Value{
		"Figure": builtin("Figure", newFigure),
		"Layout": builtin("Layout", func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			return kwDict(a), nil
		}),
	}
	for _, name := range traceTypes {
		kind := strings.ToLower(name)
		attrs[name] = builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			if len(a.Pos) > 0 {
				if _, ok := a.Pos[0].(*snippet.Dict); !ok {
					return nil, snippet.Errorf("ValueError", "The first argument to the plotly.graph_objs.%s constructor must be a dict or an instance of plotly.graph_objs.%s", name, name)
				}
			}
			t := newTrace(kind)
			if len(a.Pos) > 0 {
				for k, v := range a.Pos[0].(*snippet.Dict).StringMap() {
					setPath(t.Props, k, plain(v))
				}
			}
			for _, kw := range a.Kw {
				setPath(t.Props, kw.Name, plain(kw.Value))
			}
			return t, nil
		})
	}
	return &snippet.Module{Name: "plotly.graph_objects", Attrs: attrs}
}

func kwDict(a *snippet.Args) *snippet.Dict {
	d := snippet.NewDict()
	for _, kw := range a.Kw {
		_ = d.Set(kw.Name, kw.Value)
	}
	return d
}

// newFigure implements go.Figure(data=None, layout=None).
func newFigure(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
	args, err := a.Bind("Figure", "data", "layout", "frames", "skip_invalid")
	if err != nil {
		return nil, err
	}
	c := NewChart("figure")
	switch d := args[0].(type) {
	case nil:
	case *Trace:
		c.Traces = []*Trace{d}
	default:
		items, err := snippet.Iterate(d)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			t, ok := it.(*Trace)
			if !ok {
				return nil, snippet.Errorf("ValueError", "Invalid element(s) received for the 'data' property of figure: %s", snippet.TypeName(it))
			}
			c.Traces = append(c.Traces, t)
		}
	}
	if l, ok := args[1].(*snippet.Dict); ok {
		c.mergeLayout(l.StringMap())
	}
	if len(c.Traces) == 1 {
		c.Kind = c.Traces[0].Type()
	}
	return c, nil
}

// Colors returns px.colors with the qualitative and sequential palettes
// snippets usually reach for.
func Colors() *snippet.Module {
	qualitative := &snippet.Module{Name: "plotly.express.colors.qualitative", Attrs: map[string]snippet.Value{
		"Plotly": colorList("#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A", "#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52"),
		"D3":     colorList("#1F77B4", "#FF7F0E", "#2CA02C", "#D62728", "#9467BD", "#8C564B", "#E377C2", "#7F7F7F", "#BCBD22", "#17BECF"),
		"Set2":   colorList("rgb(102,194,165)", "rgb(252,141,98)", "rgb(141,160,203)", "rgb(231,138,195)", "rgb(166,216,84)", "rgb(255,217,47)", "rgb(229,196,148)", "rgb(179,179,179)"),
		"Pastel": colorList("rgb(102, 197, 204)", "rgb(246, 207, 113)", "rgb(248, 156, 116)", "rgb(220, 176, 242)", "rgb(135, 197, 95)", "rgb(158, 185, 243)"),
		"Bold":   colorList("rgb(127, 60, 141)", "rgb(17, 165, 121)", "rgb(57, 105, 172)", "rgb(242, 183, 1)", "rgb(231, 63, 116)", "rgb(128, 186, 90)"),
		"Vivid":  colorList("rgb(229, 134, 6)", "rgb(93, 105, 177)", "rgb(82, 188, 163)", "rgb(153, 201, 69)", "rgb(204, 97, 176)", "rgb(36, 121, 108)"),
	}}
	sequential := &snippet.Module{Name: "plotly.express.colors.sequential", Attrs: map[string]snippet.Value{
		"Blues":   colorList("rgb(247,251,255)", "rgb(198,219,239)", "rgb(107,174,214)", "rgb(33,113,181)", "rgb(8,48,107)"),
		"Viridis": colorList("#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"),
		"Plasma":  colorList("#0d0887", "#7e03a8", "#cc4778", "#f89540", "#f0f921"),
		"Reds":    colorList("rgb(255,245,240)", "rgb(252,187,161)", "rgb(251,106,74)", "rgb(203,24,29)", "rgb(103,0,13)"),
		"Greens":  colorList("rgb(247,252,245)", "rgb(199,233,192)", "rgb(116,196,118)", "rgb(35,139,69)", "rgb(0,68,27)"),
	}}
	return &snippet.Module{Name: "plotly.express.colors", Attrs: map[string]snippet.Value{
		"qualitative": qualitative,
		"sequential":  sequential,
	}}
}

func colorList(colors ...string) *snippet.List {
	items := make([]snippet.Value, len(colors))
	for i, c := range colors {
		items[i] = c
	}
	return snippet.NewList(items...)
}
