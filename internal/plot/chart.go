// Package plot provides the chart helpers exposed to snippets: a figure
// object, a plotly-express style builder set and a graph-objects style
// constructor set. Charts are plain data; rendering happens elsewhere.
package plot

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/snippet"
)

// Trace is one data series of a chart, keyed the way plotly figures are.
type Trace struct {
	Props map[string]any
}

func newTrace(kind string) *Trace {
	return &Trace{Props: map[string]any{"type": kind}}
}

// Type returns the trace type ("bar", "scatter", "choropleth", ...).
func (t *Trace) Type() string {
	s, _ := t.Props["type"].(string)
	return s
}

func (*Trace) TypeName() string { return "BaseTraceType" }

func (t *Trace) GetAttr(name string) (snippet.Value, error) {
	if v, ok := t.Props[name]; ok {
		return fromPlain(v), nil
	}
	return nil, nil
}

func (t *Trace) SetAttr(name string, v snippet.Value) error {
	setPath(t.Props, name, plain(v))
	return nil
}

func (t *Trace) MarshalJSON() ([]byte, error) { return json.Marshal(t.Props) }

// Chart is a figure: traces plus a layout.
type Chart struct {
	// Kind is the helper that built the chart ("bar", "pie", "figure", ...).
	Kind   string
	Traces []*Trace
	Layout map[string]any
}

// NewChart returns an empty figure of the given kind.
func NewChart(kind string) *Chart {
	return &Chart{Kind: kind, Layout: map[string]any{}}
}

// Title returns the layout title text.
func (c *Chart) Title() string {
	if t, ok := c.Layout["title"].(map[string]any); ok {
		s, _ := t["text"].(string)
		return s
	}
	return ""
}

func (c *Chart) setTitle(s string) {
	if s == "" {
		return
	}
	setPath(c.Layout, "title_text", s)
}

func (c *Chart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string         `json:"kind"`
		Data   []*Trace       `json:"data"`
		Layout map[string]any `json:"layout"`
	}{c.Kind, c.Traces, c.Layout})
}

func (*Chart) TypeName() string { return "Figure" }

func (c *Chart) Str() string {
	types := make([]string, len(c.Traces))
	for i, t := range c.Traces {
		types[i] = t.Type()
	}
	return fmt.Sprintf("Figure(%s, traces=[%s], title=%q)", c.Kind, strings.Join(types, ", "), c.Title())
}

func (c *Chart) GetAttr(name string) (snippet.Value, error) {
	switch name {
	case "data":
		items := make([]snippet.Value, len(c.Traces))
		for i, t := range c.Traces {
			items[i] = t
		}
		return snippet.Tuple(items), nil
	case "layout":
		return fromPlain(c.Layout), nil
	}
	m := c.method(name)
	if m == nil {
		return nil, snippet.Errorf("AttributeError", "'Figure' object has no attribute '%s'", name)
	}
	return m, nil
}

func builtin(name string, f func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error)) *snippet.Builtin {
	return &snippet.Builtin{Name: name, Fn: f}
}

func (c *Chart) method(name string) *snippet.Builtin {
	switch name {
	case "update_layout":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			if len(a.Pos) > 0 {
				if d, ok := a.Pos[0].(*snippet.Dict); ok {
					c.mergeLayout(d.StringMap())
				}
			}
			for _, kw := range a.Kw {
				c.mergeLayout(map[string]snippet.Value{kw.Name: kw.Value})
			}
			return c, nil
		})
	case "update_traces":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			var selector map[string]any
			if v, ok := a.Kwarg("selector"); ok {
				selector, _ = plain(v).(map[string]any)
			}
			for _, t := range c.Traces {
				if !matches(t, selector) {
					continue
				}
				for _, kw := range a.Kw {
					if kw.Name == "selector" {
						continue
					}
					setPath(t.Props, kw.Name, plain(kw.Value))
				}
			}
			return c, nil
		})
	case "update_xaxes", "update_yaxes":
		axis := name[len("update_"):len("update_")+1] + "axis"
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			for _, kw := range a.Kw {
				setPath(c.Layout, axis+"_"+kw.Name, plain(kw.Value))
			}
			return c, nil
		})
	case "add_trace":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			args, err := a.Bind(name, "trace", "row", "col")
			if err != nil {
				return nil, err
			}
			t, ok := args[0].(*Trace)
			if !ok {
				return nil, snippet.Errorf("ValueError", "Invalid element(s) received for the 'data' property of figure: %s", snippet.TypeName(args[0]))
			}
			c.Traces = append(c.Traces, t)
			return c, nil
		})
	case "add_hline", "add_vline":
		axis := "y"
		if name == "add_vline" {
			axis = "x"
		}
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			pos, ok := a.Kwarg(axis)
			if !ok && len(a.Pos) > 0 {
				pos = a.Pos[0]
			}
			shape := map[string]any{"type": "line", axis + "0": plain(pos), axis + "1": plain(pos)}
			for _, kw := range a.Kw {
				if kw.Name != axis {
					setPath(shape, kw.Name, plain(kw.Value))
				}
			}
			shapes, _ := c.Layout["shapes"].([]any)
			c.Layout["shapes"] = append(shapes, shape)
			return c, nil
		})
	case "add_annotation":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			ann := map[string]any{}
			for _, kw := range a.Kw {
				setPath(ann, kw.Name, plain(kw.Value))
			}
			anns, _ := c.Layout["annotations"].([]any)
			c.Layout["annotations"] = append(anns, ann)
			return c, nil
		})
	case "show", "write_html", "write_image":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) { return nil, nil })
	case "to_dict":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			b, _ := json.Marshal(c)
			var m map[string]any
			_ = json.Unmarshal(b, &m)
			return fromPlain(m), nil
		})
	case "to_json":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			b, err := json.Marshal(c)
			if err != nil {
				return nil, snippet.Errorf("ValueError", "%v", err)
			}
			return string(b), nil
		})
	case "copy":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) { return c.clone(), nil })
	case "for_each_trace":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			if len(a.Pos) == 0 {
				return nil, snippet.Errorf("TypeError", "for_each_trace() missing 1 required positional argument: 'fn'")
			}
			for _, t := range c.Traces {
				if _, err := in.Call(a.Pos[0], t); err != nil {
					return nil, err
				}
			}
			return c, nil
		})
	case "update":
		return builtin(name, func(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
			for _, kw := range a.Kw {
				if kw.Name == "layout" {
					if d, ok := kw.Value.(*snippet.Dict); ok {
						c.mergeLayout(d.StringMap())
					}
				}
			}
			return c, nil
		})
	}
	return nil
}

func (c *Chart) mergeLayout(kv map[string]snippet.Value) {
	for k, v := range kv {
		if k == "title" {
			if s, ok := v.(string); ok {
				c.setTitle(s)
				continue
			}
		}
		setPath(c.Layout, k, plain(v))
	}
}

func (c *Chart) clone() *Chart {
	b, _ := json.Marshal(c)
	var raw struct {
		Kind   string           `json:"kind"`
		Data   []map[string]any `json:"data"`
		Layout map[string]any   `json:"layout"`
	}
	_ = json.Unmarshal(b, &raw)
	out := &Chart{Kind: raw.Kind, Layout: raw.Layout}
	if out.Layout == nil {
		out.Layout = map[string]any{}
	}
	for _, p := range raw.Data {
		out.Traces = append(out.Traces, &Trace{Props: p})
	}
	return out
}

func matches(t *Trace, selector map[string]any) bool {
	for k, want := range selector {
		if fmt.Sprint(t.Props[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// compound lists property names whose underscore suffix addresses a nested
// property (marker_line_width is marker.line.width).
var compound = map[string]bool{
	"marker": true, "line": true, "title": true, "font": true, "xaxis": true, "yaxis": true,
	"legend": true, "geo": true, "colorbar": true, "margin": true, "hoverlabel": true,
	"tickfont": true, "gauge": true, "number": true, "delta": true, "textfont": true,
	"annotation": true, "domain": true, "bar": true, "coloraxis": true,
}

// setPath assigns v under a plotly "magic underscore" key.
func setPath(m map[string]any, key string, v any) {
	head, rest, ok := strings.Cut(key, "_")
	if !ok || !compound[head] || rest == "" {
		if sub, isMap := v.(map[string]any); isMap {
			if cur, exists := m[key].(map[string]any); exists {
				for k, sv := range sub {
					setPath(cur, k, sv)
				}
				return
			}
		}
		if key == "title" {
			if s, isStr := v.(string); isStr {
				v = map[string]any{"text": s}
			}
		}
		m[key] = v
		return
	}
	sub, isMap := m[head].(map[string]any)
	if !isMap {
		sub = map[string]any{}
		if s, isStr := m[head].(string); isStr && head == "title" {
			sub["text"] = s
		}
		m[head] = sub
	}
	setPath(sub, rest, v)
}

// plain converts a snippet value into JSON-friendly data.
func plain(v snippet.Value) any {
	switch x := v.(type) {
	case nil, bool, string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		return dataset.FormatCell(x)
	case time.Duration:
		return snippet.Str(x)
	case *snippet.Series:
		return plainSlice(x.Values)
	case *snippet.List:
		return plainSlice(x.Items)
	case snippet.Tuple:
		return plainSlice(x)
	case *snippet.Dict:
		out := map[string]any{}
		for k, dv := range x.StringMap() {
			out[k] = plain(dv)
		}
		return out
	case *Trace:
		return x.Props
	case *snippet.Frame:
		out := map[string]any{}
		for _, col := range x.Data.Columns {
			out[col.Name] = plainSlice(col.Values)
		}
		return out
	case map[string]any, []any:
		return x
	}
	return snippet.Str(v)
}

func plainSlice(vals []snippet.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = plain(v)
	}
	return out
}

// fromPlain converts JSON-like data back into snippet values.
func fromPlain(v any) snippet.Value {
	switch x := v.(type) {
	case []any:
		items := make([]snippet.Value, len(x))
		for i, el := range x {
			items[i] = fromPlain(el)
		}
		return snippet.NewList(items...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := snippet.NewDict()
		for _, k := range keys {
			_ = d.Set(k, fromPlain(x[k]))
		}
		return d
	case int:
		return float64(x)
	}
	return v
}
