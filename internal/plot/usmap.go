package plot

import (
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/snippet"
)

// Vivid is the default categorical palette bound as VIVID_COLORS.
var Vivid = []string{
	"#6366f1", "#8b5cf6", "#06b6d4", "#10b981", "#f59e0b",
	"#ef4444", "#ec4899", "#3b82f6", "#84cc16", "#f97316",
}

type state struct{ name, code string }

var states = []state{
	{"Alabama", "AL"}, {"Alaska", "AK"}, {"Arizona", "AZ"}, {"Arkansas", "AR"}, {"California", "CA"},
	{"Colorado", "CO"}, {"Connecticut", "CT"}, {"Delaware", "DE"}, {"Florida", "FL"}, {"Georgia", "GA"},
	{"Hawaii", "HI"}, {"Idaho", "ID"}, {"Illinois", "IL"}, {"Indiana", "IN"}, {"Iowa", "IA"},
	{"Kansas", "KS"}, {"Kentucky", "KY"}, {"Louisiana", "LA"}, {"Maine", "ME"}, {"Maryland", "MD"},
	{"Massachusetts", "MA"}, {"Michigan", "MI"}, {"Minnesota", "MN"}, {"Mississippi", "MS"}, {"Missouri", "MO"},
	{"Montana", "MT"}, {"Nebraska", "NE"}, {"Nevada", "NV"}, {"New Hampshire", "NH"}, {"New Jersey", "NJ"},
	{"New Mexico", "NM"}, {"New York", "NY"}, {"North Carolina", "NC"}, {"North Dakota", "ND"}, {"Ohio", "OH"},
	{"Oklahoma", "OK"}, {"Oregon", "OR"}, {"Pennsylvania", "PA"}, {"Rhode Island", "RI"}, {"South Carolina", "SC"},
	{"South Dakota", "SD"}, {"Tennessee", "TN"}, {"Texas", "TX"}, {"Utah", "UT"}, {"Vermont", "VT"},
	{"Virginia", "VA"}, {"Washington", "WA"}, {"West Virginia", "WV"}, {"Wisconsin", "WI"}, {"Wyoming", "WY"},
}

// StateCodes returns a fresh name-to-code mapping.
func StateCodes() *snippet.Dict {
	d := snippet.NewDict()
	for _, s := range states {
		_ = d.Set(s.name, s.code)
	}
	return d
}

// AllStateCodes returns a fresh list of the two-letter codes.
func AllStateCodes() *snippet.List {
	items := make([]snippet.Value, len(states))
	for i, s := range states {
		items[i] = s.code
	}
	return snippet.NewList(items...)
}

// VividColors returns a fresh copy of the palette.
func VividColors() *snippet.List { return colorList(Vivid...) }

// StateCode maps a full state name or a two-letter code to the code.
func StateCode(v snippet.Value) (string, bool) {
	s := strings.TrimSpace(snippet.Str(v))
	if len(s) == 2 {
		up := strings.ToUpper(s)
		for _, st := range states {
			if st.code == up {
				return up, true
			}
		}
	}
	title := titleWords(s)
	for _, st := range states {
		if st.name == title || st.name == s {
			return st.code, true
		}
	}
	return "", false
}

func titleWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// USMap implements make_us_map(df_agg, value_col, state_col='state', title='',
// colorscale='Blues', show_all_states=True). Rows whose state does not map to
// a code are dropped; with show_all_states the remaining states are padded
// with empty values so the whole country is drawn.
func USMap(in *snippet.Interp, a *snippet.Args) (snippet.Value, error) {
	args, err := a.Bind("make_us_map", "df_agg", "value_col", "state_col", "title", "colorscale", "show_all_states")
	if err != nil {
		return nil, err
	}
	f, ok := args[0].(*snippet.Frame)
	if !ok {
		return nil, snippet.Errorf("AttributeError", "'%s' object has no attribute 'copy'", snippet.TypeName(args[0]))
	}
	valueCol, err := snippet.ToString(args[1], "value_col")
	if err != nil {
		return nil, err
	}
	stateCol := "state"
	if s, ok := args[2].(string); ok {
		stateCol = s
	}
	colorscale := snippet.Value("Blues")
	if args[4] != nil {
		colorscale = args[4]
	}
	showAll := true
	if args[5] != nil {
		showAll, _ = snippet.Truth(args[5])
	}
	ds := f.ToDataset()
	stateCells, ok := ds.Column(stateCol)
	if !ok {
		return nil, &snippet.Fault{Kind: "KeyError", Message: snippet.Repr(stateCol)}
	}
	values, ok := ds.Column(valueCol)
	if !ok {
		return nil, &snippet.Fault{Kind: "KeyError", Message: snippet.Repr(valueCol)}
	}

	var locations, z []any
	seen := map[string]bool{}
	for i, sv := range stateCells.Values {
		code, ok := StateCode(sv)
		if !ok {
			continue
		}
		seen[code] = true
		locations = append(locations, code)
		z = append(z, plain(values.Values[i]))
	}
	if showAll {
		for _, st := range states {
			if !seen[st.code] {
				locations = append(locations, st.code)
				z = append(z, nil)
			}
		}
	}

	t := newTrace("choropleth")
	t.Props["locations"] = locations
	t.Props["z"] = z
	t.Props["locationmode"] = "USA-states"
	t.Props["colorscale"] = plain(colorscale)
	t.Props["autocolorscale"] = false
	setPath(t.Props, "marker_line_width", 0.5)
	setPath(t.Props, "colorbar_title_text", titleWords(strings.ReplaceAll(valueCol, "_", " ")))

	c := NewChart("choropleth")
	c.Traces = []*Trace{t}
	if title, ok := args[3].(string); ok {
		c.setTitle(title)
	}
	c.Layout["geo"] = map[string]any{"scope": "usa", "projection": map[string]any{"type": "albers usa"}, "showland": true}
	return c, nil
}
