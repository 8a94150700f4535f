package plot

import "github.com/KaramelBytes/dashloom-cli/internal/snippet"

// Modules returns the importable plotly module names.
func Modules() map[string]snippet.Value {
	px, gobj := Express(), Graph()
	return map[string]snippet.Value{
		"plotly": &snippet.Module{Name: "plotly", Attrs: map[string]snippet.Value{
			"express":       px,
			"graph_objects": gobj,
		}},
		"plotly.express":       px,
		"plotly.graph_objects": gobj,
		"plotly.graph_objs":    gobj,
	}
}

// Bindings returns the helper globals every snippet starts with. Mutable
// tables are fresh per call.
func Bindings() map[string]snippet.Value {
	codes := StateCodes()
	return map[string]snippet.Value{
		"px":              Express(),
		"go":              Graph(),
		"make_us_map":     &snippet.Builtin{Name: "make_us_map", Fn: USMap},
		"VIVID_COLORS":    VividColors(),
		"state_codes":     codes,
		"STATE_CODES":     codes,
		"ALL_STATE_CODES": AllStateCodes(),
	}
}
