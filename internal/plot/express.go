package plot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/snippet"
)

// builder describes one plotly-express function. Params lists every accepted
// keyword in positional order; anything else is an unexpected keyword.
type builder struct {
	name   string
	trace  string
	params []string
}

var (
	xyCommon = []string{
		"facet_row", "facet_col", "facet_col_wrap", "hover_name", "hover_data", "custom_data",
		"labels", "title", "template", "width", "height", "category_orders",
		"color_discrete_sequence", "color_discrete_map", "log_x", "log_y", "range_x", "range_y",
		"animation_frame", "animation_group",
	}
	hierarchyCommon = []string{
		"data_frame", "names", "values", "parents", "ids", "path", "color", "color_continuous_scale",
		"color_discrete_sequence", "color_discrete_map", "hover_name", "hover_data", "custom_data",
		"labels", "title", "template", "width", "height", "branchvalues", "maxdepth",
	}
)

func params(lead []string, extra ...string) []string {
	out := append([]string{}, lead...)
	out = append(out, extra...)
	return append(out, xyCommon...)
}

var builders = []builder{
	{"bar", "bar", params([]string{"data_frame", "x", "y", "color"}, "pattern_shape", "text", "base", "error_x", "error_y",
		"orientation", "barmode", "color_continuous_scale", "range_color", "opacity", "text_auto")},
	{"line", "scatter", params([]string{"data_frame", "x", "y", "line_group", "color"}, "line_dash", "symbol", "text",
		"markers", "orientation", "line_shape", "render_mode", "error_x", "error_y")},
	{"scatter", "scatter", params([]string{"data_frame", "x", "y", "color"}, "symbol", "size", "size_max", "text",
		"trendline", "trendline_color_override", "marginal_x", "marginal_y", "opacity", "color_continuous_scale",
		"range_color", "orientation", "error_x", "error_y")},
	{"area", "scatter", params([]string{"data_frame", "x", "y", "line_group", "color"}, "pattern_shape", "text",
		"orientation", "groupnorm", "line_shape", "markers")},
	{"histogram", "histogram", params([]string{"data_frame", "x", "y", "color"}, "pattern_shape", "nbins",
		"histfunc", "histnorm", "barmode", "barnorm", "marginal", "cumulative", "orientation", "opacity", "text_auto")},
	{"box", "box", params([]string{"data_frame", "x", "y", "color"}, "points", "notched", "orientation", "boxmode")},
	{"violin", "violin", params([]string{"data_frame", "x", "y", "color"}, "points", "box", "orientation", "violinmode")},
	{"funnel", "funnel", params([]string{"data_frame", "x", "y", "color"}, "text", "orientation", "opacity")},
	{"density_heatmap", "histogram2d", params([]string{"data_frame", "x", "y", "z"}, "nbinsx", "nbinsy",
		"histfunc", "histnorm", "color_continuous_scale", "text_auto")},
	{"pie", "pie", []string{"data_frame", "names", "values", "color", "color_discrete_sequence", "color_discrete_map",
		"hover_name", "hover_data", "custom_data", "category_orders", "labels", "title", "template", "width",
		"height", "opacity", "hole"}},
	{"treemap", "treemap", hierarchyCommon},
	{"sunburst", "sunburst", hierarchyCommon},
	{"choropleth", "choropleth", []string{"data_frame", "lat", "lon", "locations", "locationmode", "geojson",
		"featureidkey", "color", "facet_row", "facet_col", "facet_col_wrap", "hover_name", "hover_data", "custom_data",
		"animation_frame", "animation_group", "category_orders", "labels", "color_discrete_sequence",
		"color_discrete_map", "color_continuous_scale", "range_color", "color_continuous_midpoint", "projection",
		"scope", "center", "fitbounds", "basemap_visible", "title", "template", "width", "height"}},
	{"imshow", "heatmap", []string{"img", "zmin", "zmax", "origin", "labels", "x", "y", "color_continuous_scale",
		"color_continuous_midpoint", "range_color", "title", "template", "width", "height", "aspect", "text_auto"}},
}

// columnParams name the arguments that reference data: a column name, a
// Series or a list.
var columnParams = []string{
	"x", "y", "z", "color", "names", "values", "parents", "ids", "locations", "size", "symbol",
	"hover_name", "text", "line_group", "lat", "lon", "line_dash", "pattern_shape",
}

// Express returns the px module.
func Express() *snippet.Module {
	attrs := map[string]snippet.Value{"colors": Colors()}
	for _, b := range builders {
		attrs[b.name] = builtin(b.name, b.call)
	}
	return &snippet.Module{Name: "plotly.express", Attrs: attrs}
}

// call binds arguments by name so helpers reject keywords they do not take.
func (b builder) call(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
	bound, err := a.Bind(b.name, b.params...)
	if err != nil {
		return nil, err
	}
	kw := make(map[string]snippet.Value, len(bound))
	for i, p := range b.params {
		if bound[i] != nil {
			kw[p] = bound[i]
		}
	}
	if b.name == "imshow" {
		return imshow(kw)
	}
	ds, err := frameArg(kw["data_frame"])
	if err != nil {
		return nil, err
	}
	d := &data{name: b.name, ds: ds, cols: map[string][]any{}, label: map[string]string{}}
	if err := d.resolve(kw); err != nil {
		return nil, err
	}
	c := NewChart(b.name)
	switch b.name {
	case "pie":
		c.Traces = d.pie(kw)
	case "treemap", "sunburst":
		c.Traces, err = d.hierarchy(b.trace, kw)
	case "choropleth":
		c.Traces = d.choropleth(kw)
		if scope, ok := kw["scope"].(string); ok {
			setPath(c.Layout, "geo_scope", scope)
		}
	default:
		c.Traces = d.xy(b.name, b.trace, kw)
		d.axisTitles(c)
	}
	if err != nil {
		return nil, err
	}
	applyLayout(c, kw)
	return c, nil
}

// frameArg accepts a DataFrame, a Series (index plus values) or nothing.
func frameArg(v snippet.Value) (*dataset.Dataset, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *snippet.Frame:
		return x.ToDataset(), nil
	case *snippet.Series:
		name := x.Name
		if name == "" {
			name = "value"
		}
		idxName := "index"
		if x.Index != nil && len(x.Index.Names) == 1 && x.Index.Names[0] != "" {
			idxName = x.Index.Names[0]
		}
		ds := dataset.New("")
		ds.Columns = append(ds.Columns,
			dataset.NewColumn(idxName, x.Index.Labels(len(x.Values))),
			dataset.NewColumn(name, append([]snippet.Value(nil), x.Values...)))
		return ds, nil
	case *snippet.Dict:
		ds := dataset.New("")
		for _, k := range x.Keys() {
			col, _ := x.Get(k)
			items, err := snippet.Iterate(col)
			if err != nil {
				return nil, err
			}
			if err := ds.SetColumn(dataset.NewColumn(snippet.Str(k), items)); err != nil {
				return nil, snippet.Errorf("ValueError", "All arrays must be of the same length")
			}
		}
		return ds, nil
	}
	return nil, snippet.Errorf("ValueError", "Unsupported type for data_frame: %s", snippet.TypeName(v))
}

// data holds the resolved column arguments of one call.
type data struct {
	name  string
	ds    *dataset.Dataset
	cols  map[string][]any
	label map[string]string
	wide  []string
	order []string
}

func (d *data) resolve(kw map[string]snippet.Value) error {
	for _, p := range columnParams {
		v, ok := kw[p]
		if !ok {
			continue
		}
		if p == "y" || p == "x" {
			if names, ok := d.wideNames(v); ok {
				d.wide = names
				d.label[p] = "value"
				continue
			}
		}
		vals, label, err := d.column(p, v)
		if err != nil {
			return err
		}
		if err := d.checkLength(p, len(vals)); err != nil {
			return err
		}
		d.cols[p] = vals
		d.label[p] = label
		d.order = append(d.order, p)
	}
	if labels, ok := kw["labels"].(*snippet.Dict); ok {
		m := labels.StringMap()
		for p, l := range d.label {
			if alias, ok := m[l]; ok {
				d.label[p] = snippet.Str(alias)
			}
		}
	}
	return nil
}

// wideNames reports a list of column names (wide-form y).
func (d *data) wideNames(v snippet.Value) ([]string, bool) {
	if d.ds == nil {
		return nil, false
	}
	var items []snippet.Value
	switch x := v.(type) {
	case *snippet.List:
		items = x.Items
	case snippet.Tuple:
		items = x
	default:
		return nil, false
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok || d.ds.Index(s) < 0 {
			return nil, false
		}
		names = append(names, s)
	}
	return names, len(names) > 0
}

func (d *data) column(param string, v snippet.Value) ([]any, string, error) {
	switch x := v.(type) {
	case string:
		if d.ds == nil {
			return nil, "", snippet.Errorf("ValueError",
				"String or int arguments are only possible when a DataFrame or an array is provided in the `data_frame` argument. No DataFrame was provided, but argument '%s' is of type str or int.", param)
		}
		col, ok := d.ds.Column(x)
		if !ok {
			return nil, "", snippet.Errorf("ValueError",
				"Value of '%s' is not the name of a column in 'data_frame'. Expected one of %s but received: %s",
				param, snippet.Repr(snippet.NewList(stringItems(d.ds.Names())...)), x)
		}
		return plainSlice(col.Values), x, nil
	case *snippet.Series:
		name := x.Name
		if name == "" {
			name = param
		}
		return plainSlice(x.Values), name, nil
	case *snippet.List, snippet.Tuple:
		items, _ := snippet.Iterate(x)
		return plainSlice(items), param, nil
	}
	if f, ok := v.(float64); ok && d.ds != nil {
		return repeat(f, d.ds.Rows()), param, nil
	}
	return nil, "", snippet.Errorf("ValueError", "Argument '%s' has an unsupported type: %s", param, snippet.TypeName(v))
}

func (d *data) checkLength(param string, n int) error {
	for _, p := range d.order {
		if m := len(d.cols[p]); m != n {
			return snippet.Errorf("ValueError",
				"All arguments should have the same length. The length of argument `%s` is %d, whereas the length of previously-processed arguments %s is %d",
				param, n, snippet.Repr(snippet.NewList(stringItems(d.order)...)), m)
		}
	}
	return nil
}

func (d *data) rows() int {
	if len(d.order) > 0 {
		return len(d.cols[d.order[0]])
	}
	return d.ds.Rows()
}

// index returns 0..n-1 for implicit x values.
func index(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func repeat(v any, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func stringItems(ss []string) []snippet.Value {
	out := make([]snippet.Value, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// groups splits row positions by a categorical column in first-seen order.
func groups(vals []any) ([]string, map[string][]int) {
	var keys []string
	rows := map[string][]int{}
	for i, v := range vals {
		k := fmt.Sprint(v)
		if v == nil {
			k = "None"
		}
		if _, ok := rows[k]; !ok {
			keys = append(keys, k)
		}
		rows[k] = append(rows[k], i)
	}
	return keys, rows
}

func pick(vals []any, rows []int) []any {
	if vals == nil {
		return nil
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = vals[r]
	}
	return out
}

func numeric(vals []any) bool {
	seen := false
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case float64:
			seen = true
		default:
			return false
		}
	}
	return seen
}

func palette(kw map[string]snippet.Value) []any {
	if v, ok := kw["color_discrete_sequence"]; ok {
		if p, ok := plain(v).([]any); ok && len(p) > 0 {
			return p
		}
	}
	return nil
}

func (d *data) xy(fn, kind string, kw map[string]snippet.Value) []*Trace {
	x, y := d.cols["x"], d.cols["y"]
	if d.wide != nil {
		var out []*Trace
		n := d.ds.Rows()
		if x == nil {
			x = index(n)
		}
		for i, name := range d.wide {
			col, _ := d.ds.Column(name)
			t := d.trace(fn, kind, kw, x, plainSlice(col.Values), nil)
			t.Props["name"] = name
			colorize(t, kw, palette(kw), name, i)
			out = append(out, t)
		}
		return out
	}
	if x == nil && y == nil && d.ds != nil {
		d.wide = numericColumns(d.ds)
		if len(d.wide) > 0 {
			return d.xy(fn, kind, kw)
		}
	}
	if x == nil && y != nil && kind != "histogram" && kind != "box" && kind != "violin" {
		x = index(len(y))
	}
	color := d.cols["color"]
	if color == nil || numeric(color) {
		t := d.trace(fn, kind, kw, x, y, nil)
		if color != nil {
			setPath(t.Props, "marker_color", color)
			if cs, ok := kw["color_continuous_scale"]; ok {
				setPath(t.Props, "marker_colorscale", plain(cs))
			}
		} else if p := palette(kw); p != nil {
			setPath(t.Props, "marker_color", p[0])
		}
		return []*Trace{t}
	}
	keys, rows := groups(color)
	out := make([]*Trace, 0, len(keys))
	p := palette(kw)
	for i, k := range keys {
		t := d.trace(fn, kind, kw, pick(x, rows[k]), pick(y, rows[k]), rows[k])
		t.Props["name"] = k
		t.Props["legendgroup"] = k
		colorize(t, kw, p, k, i)
		out = append(out, t)
	}
	return out
}

func colorize(t *Trace, kw map[string]snippet.Value, p []any, key string, i int) {
	if m, ok := kw["color_discrete_map"].(*snippet.Dict); ok {
		if c, ok := m.StringMap()[key]; ok {
			setPath(t.Props, "marker_color", plain(c))
			return
		}
	}
	if p != nil {
		setPath(t.Props, "marker_color", p[i%len(p)])
	}
}

func (d *data) trace(fn, kind string, kw map[string]snippet.Value, x, y []any, rows []int) *Trace {
	t := newTrace(kind)
	if x != nil {
		t.Props["x"] = x
	}
	if y != nil {
		t.Props["y"] = y
	}
	sub := func(p string) []any {
		if rows == nil {
			return d.cols[p]
		}
		return pick(d.cols[p], rows)
	}
	if v := sub("text"); v != nil {
		t.Props["text"] = v
	}
	if v := sub("hover_name"); v != nil {
		t.Props["hovertext"] = v
	}
	if v := sub("size"); v != nil {
		setPath(t.Props, "marker_size", v)
	}
	if v := sub("z"); v != nil {
		t.Props["z"] = v
	}
	switch fn {
	case "line":
		mode := "lines"
		if m, _ := snippet.Truth(kw["markers"]); m {
			mode = "lines+markers"
		}
		t.Props["mode"] = mode
	case "scatter":
		t.Props["mode"] = "markers"
	case "area":
		t.Props["mode"] = "lines"
		t.Props["stackgroup"] = "1"
	}
	for _, p := range []string{"orientation", "opacity", "histfunc", "histnorm", "points", "notched", "line_shape"} {
		if v, ok := kw[p]; ok {
			setPath(t.Props, p, plain(v))
		}
	}
	if v, ok := kw["nbins"]; ok {
		t.Props["nbinsx"] = plain(v)
	}
	if v, ok := kw["text_auto"]; ok {
		if on, _ := snippet.Truth(v); on {
			t.Props["texttemplate"] = "%{value}"
		}
	}
	return t
}

func numericColumns(ds *dataset.Dataset) []string {
	var out []string
	for _, c := range ds.Columns {
		if c.Kind == dataset.KindNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

func (d *data) axisTitles(c *Chart) {
	if l, ok := d.label["x"]; ok {
		setPath(c.Layout, "xaxis_title_text", l)
	}
	if l, ok := d.label["y"]; ok {
		setPath(c.Layout, "yaxis_title_text", l)
	}
	if d.cols["color"] != nil && !numeric(d.cols["color"]) {
		setPath(c.Layout, "legend_title_text", d.label["color"])
	}
}

func (d *data) pie(kw map[string]snippet.Value) []*Trace {
	t := newTrace("pie")
	labels := d.cols["names"]
	if labels == nil {
		labels = d.cols["color"]
	}
	if labels != nil {
		t.Props["labels"] = labels
	}
	if v := d.cols["values"]; v != nil {
		t.Props["values"] = v
	}
	if v, ok := kw["hole"]; ok {
		t.Props["hole"] = plain(v)
	}
	if p := palette(kw); p != nil {
		setPath(t.Props, "marker_colors", p)
	}
	return []*Trace{t}
}

// hierarchy builds treemap and sunburst traces. With path, every prefix of
// the path columns becomes a node whose value sums the rows beneath it.
func (d *data) hierarchy(kind string, kw map[string]snippet.Value) ([]*Trace, error) {
	t := newTrace(kind)
	path, ok := kw["path"]
	if !ok {
		for p, prop := range map[string]string{"names": "labels", "parents": "parents", "values": "values", "ids": "ids"} {
			if v := d.cols[p]; v != nil {
				t.Props[prop] = v
			}
		}
		return []*Trace{t}, nil
	}
	names, err := snippet.ToStrings(path)
	if err != nil {
		return nil, err
	}
	levels := make([][]any, len(names))
	for i, n := range names {
		vals, _, err := d.column("path", n)
		if err != nil {
			return nil, err
		}
		levels[i] = vals
	}
	values := d.cols["values"]
	type node struct {
		id, label, parent string
		value             float64
	}
	var order []string
	nodes := map[string]*node{}
	for r := 0; r < d.rows(); r++ {
		parent := ""
		for _, lvl := range levels {
			label := fmt.Sprint(lvl[r])
			id := label
			if parent != "" {
				id = parent + "/" + label
			}
			n, ok := nodes[id]
			if !ok {
				n = &node{id: id, label: label, parent: parent}
				nodes[id] = n
				order = append(order, id)
			}
			if values != nil {
				if f, ok := values[r].(float64); ok {
					n.value += f
				}
			} else {
				n.value++
			}
			parent = id
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return strings.Count(order[i], "/") > strings.Count(order[j], "/")
	})
	var ids, labels, parents, vals []any
	for _, id := range order {
		n := nodes[id]
		ids = append(ids, n.id)
		labels = append(labels, n.label)
		parents = append(parents, n.parent)
		vals = append(vals, n.value)
	}
	t.Props["ids"], t.Props["labels"], t.Props["parents"], t.Props["values"] = ids, labels, parents, vals
	t.Props["branchvalues"] = "total"
	return []*Trace{t}, nil
}

func (d *data) choropleth(kw map[string]snippet.Value) []*Trace {
	t := newTrace("choropleth")
	if v := d.cols["locations"]; v != nil {
		t.Props["locations"] = v
	}
	if v := d.cols["color"]; v != nil {
		t.Props["z"] = v
	}
	mode := "ISO-3"
	if m, ok := kw["locationmode"].(string); ok {
		mode = m
	}
	t.Props["locationmode"] = mode
	if cs, ok := kw["color_continuous_scale"]; ok {
		t.Props["colorscale"] = plain(cs)
	}
	if v := d.cols["hover_name"]; v != nil {
		t.Props["hovertext"] = v
	}
	return []*Trace{t}
}

func imshow(kw map[string]snippet.Value) (snippet.Value, error) {
	t := newTrace("heatmap")
	switch img := kw["img"].(type) {
	case *snippet.Frame:
		ds := img.Data
		z := make([]any, ds.Rows())
		for i := range z {
			z[i] = plainSlice(ds.Row(i))
		}
		t.Props["z"] = z
		t.Props["x"] = plainSlice(stringItems(ds.Names()))
		t.Props["y"] = plainSlice(img.Index.Labels(ds.Rows()))
	case nil:
		return nil, snippet.Errorf("TypeError", "imshow() missing 1 required positional argument: 'img'")
	default:
		rows, err := snippet.Iterate(img)
		if err != nil {
			return nil, err
		}
		z := make([]any, len(rows))
		for i, r := range rows {
			z[i] = plain(r)
		}
		t.Props["z"] = z
	}
	for _, p := range []string{"x", "y", "zmin", "zmax"} {
		if v, ok := kw[p]; ok {
			t.Props[p] = plain(v)
		}
	}
	if cs, ok := kw["color_continuous_scale"]; ok {
		t.Props["colorscale"] = plain(cs)
	}
	if v, ok := kw["text_auto"]; ok {
		if on, _ := snippet.Truth(v); on {
			t.Props["texttemplate"] = "%{z}"
		}
	}
	c := NewChart("imshow")
	c.Traces = []*Trace{t}
	applyLayout(c, kw)
	return c, nil
}

// applyLayout moves figure-level keywords into the layout.
func applyLayout(c *Chart, kw map[string]snippet.Value) {
	if s, ok := kw["title"].(string); ok {
		c.setTitle(s)
	}
	for _, p := range []string{"height", "width", "template", "barmode", "boxmode", "violinmode"} {
		if v, ok := kw[p]; ok {
			c.Layout[p] = plain(v)
		}
	}
	if on, _ := snippet.Truth(kw["log_x"]); on {
		setPath(c.Layout, "xaxis_type", "log")
	}
	if on, _ := snippet.Truth(kw["log_y"]); on {
		setPath(c.Layout, "yaxis_type", "log")
	}
	if v, ok := kw["range_x"]; ok {
		setPath(c.Layout, "xaxis_range", plain(v))
	}
	if v, ok := kw["range_y"]; ok {
		setPath(c.Layout, "yaxis_range", plain(v))
	}
}
