// Package sandbox evaluates model-authored snippets against a private copy of
// a dataset. Every call starts from a fresh environment and every fault comes
// back as a failed Outcome; nothing escapes Run.
package sandbox

import (
	"fmt"
	"math"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
	"github.com/KaramelBytes/dashloom-cli/internal/plot"
	"github.com/KaramelBytes/dashloom-cli/internal/snippet"
)

// ErrorDescriptor describes a failed evaluation.
type ErrorDescriptor struct {
	// Kind is the fault class, e.g. TypeError or KeyError.
	Kind string `json:"kind"`
	// Message is the bare message without the class prefix.
	Message string `json:"message"`
	// Raw is the operator-facing text: "line N: Kind: Message".
	Raw  string `json:"raw"`
	Line int    `json:"line,omitempty"`
}

func (e *ErrorDescriptor) Error() string { return e.Raw }

// Describe converts an evaluation error into a descriptor.
func Describe(err error) *ErrorDescriptor {
	if err == nil {
		return nil
	}
	if f, ok := err.(*snippet.Fault); ok {
		return &ErrorDescriptor{Kind: f.Kind, Message: f.Message, Raw: f.Raw(), Line: f.Line}
	}
	return &ErrorDescriptor{Kind: "RuntimeError", Message: err.Error(), Raw: "RuntimeError: " + err.Error()}
}

// RepairRecord is attached to an Outcome whose snippet was rewritten.
type RepairRecord struct {
	Rules    []string `json:"rules"`
	Original string   `json:"original"`
}

// Outcome is the terminal result of running a snippet. Err != nil implies
// Value == nil. A nil Value with a nil Err means nothing to display.
type Outcome struct {
	Value    any              `json:"value,omitempty"`
	Note     string           `json:"note,omitempty"`
	Err      *ErrorDescriptor `json:"error,omitempty"`
	Snippet  string           `json:"snippet"`
	Attempts int              `json:"attempts"`
	Repair   *RepairRecord    `json:"repair,omitempty"`
	// Output holds whatever the snippet printed.
	Output string `json:"output,omitempty"`
}

// OK reports whether the outcome succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Failed builds a failed outcome.
func Failed(src string, err *ErrorDescriptor) Outcome {
	return Outcome{Err: err, Snippet: src, Attempts: 1}
}

// Default output slots: result first, then the chart slot.
var defaultSlots = []string{"result", "fig"}

// Context is a reusable evaluation configuration. It holds no per-call state,
// so one Context may serve concurrent Runs.
type Context struct {
	extra map[string]snippet.Value
	slots []string
}

// Option configures a Context.
type Option func(*Context)

// WithBindings adds globals to every run. Values are shared across runs, so
// callers should pass immutable helpers.
func WithBindings(b map[string]snippet.Value) Option {
	return func(c *Context) {
		for k, v := range b {
			c.extra[k] = v
		}
	}
}

// WithResultSlots replaces the ordered list of globals read for the value.
func WithResultSlots(names ...string) Option {
	return func(c *Context) { c.slots = append([]string(nil), names...) }
}

// New returns a Context.
func New(opts ...Option) *Context {
	c := &Context{extra: map[string]snippet.Value{}, slots: defaultSlots}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Modules lists everything snippets may import.
func Modules() map[string]snippet.Value {
	mods := snippet.Modules()
	for k, v := range plot.Modules() {
		mods[k] = v
	}
	return mods
}

func (c *Context) environment(ds *dataset.Dataset) (map[string]snippet.Value, map[string]snippet.Value) {
	mods := Modules()
	env := plot.Bindings()
	env["pd"] = mods["pandas"]
	env["np"] = mods["numpy"]
	if ds == nil {
		ds = dataset.New("")
	}
	env["df"] = snippet.NewFrame(ds.Copy())
	for k, v := range c.extra {
		env[k] = v
	}
	env["result"], env["fig"], env["insight"] = nil, nil, ""
	return env, mods
}

// Run parses and evaluates src once. It never retries.
func (c *Context) Run(src string, ds *dataset.Dataset) (out Outcome) {
	start := time.Now()
	out = Outcome{Snippet: src, Attempts: 1}
	defer func() {
		if r := recover(); r != nil {
			out.Value = nil
			out.Err = &ErrorDescriptor{Kind: "RuntimeError", Message: fmt.Sprint(r), Raw: fmt.Sprintf("RuntimeError: %v", r)}
		}
		if out.Err != nil {
			logger.Logger.Debugw("snippet failed",
				logger.FieldFault, out.Err.Raw,
				logger.FieldDuration, time.Since(start).Milliseconds())
		}
	}()

	env, mods := c.environment(ds)
	in := snippet.New(env, mods)
	err := in.ExecSource(src)
	out.Output = in.Output()
	if err != nil {
		out.Err = Describe(err)
		return out
	}
	if v, ok := in.Get("insight"); ok && v != nil {
		out.Note = snippet.Str(v)
	}
	for _, slot := range c.slots {
		if v, ok := in.Get(slot); ok && v != nil {
			out.Value = Export(v)
			break
		}
	}
	return out
}

// Export converts a snippet value into the host types callers consume:
// float64, string, bool, time.Time, []any, map[string]any, *plot.Chart or
// *dataset.Dataset. Non-finite floats become nil.
func Export(v snippet.Value) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case nil, string, bool, time.Time:
		return x
	case time.Duration:
		return snippet.Str(x)
	case *plot.Chart:
		return x
	case *snippet.Frame:
		return x.ToDataset()
	case *snippet.Series:
		return exportSlice(x.Values)
	case *snippet.List:
		return exportSlice(x.Items)
	case snippet.Tuple:
		return exportSlice(x)
	case *snippet.Dict:
		out := make(map[string]any, x.Len())
		for k, dv := range x.StringMap() {
			out[k] = Export(dv)
		}
		return out
	}
	return snippet.Str(v)
}

func exportSlice(vals []snippet.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = Export(v)
	}
	return out
}
