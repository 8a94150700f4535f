package snippet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string, bindings map[string]Value) *Interp {
	t.Helper()
	in := New(bindings, Modules())
	require.NoError(t, in.ExecSource(src))
	return in
}

func lookup(t *testing.T, in *Interp, name string) Value {
	t.Helper()
	v, ok := in.Get(name)
	require.True(t, ok, "variable %s not bound", name)
	return v
}

func TestExecScalars(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Value
	}{
		{"precedence", "x = 1 + 2 * 3", 7.0},
		{"floor division", "x = 7 // 2", 3.0},
		{"power", "x = 2 ** 10", 1024.0},
		{"string concat", "x = 'a' + 'b'", "ab"},
		{"fstring grouping", "x = f'{1234.5:,.1f}'", "1,234.5"},
		{"dict get default", "x = {'a': 1}.get('b', 2)", 2.0},
		{"conditional expression", "x = 'yes' if 3 > 2 else 'no'", "yes"},
		{"lambda default", "x = (lambda v, k=2: v * k)(5)", 10.0},
		{"banker's rounding", "x = round(2.5)", 2.0},
		{"for with break", "x = 0\nfor i in range(10):\n    if i == 5:\n        break\n    x += i", 10.0},
		{"caught exception", "try:\n    1 / 0\nexcept ZeroDivisionError as e:\n    x = str(e)", "division by zero"},
		{"bool operands", "x = 0 or 'fallback'", "fallback"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := run(t, tc.src, nil)
			assert.Equal(t, tc.want, lookup(t, in, "x"))
		})
	}
}

func TestExecContainers(t *testing.T) {
	in := run(t, "evens = [i * i for i in range(4) if i % 2 == 0]\nfirst, *rest = [1, 2, 3]\nordered = sorted([3, 1, 2], reverse=True)", nil)
	assert.Equal(t, &List{Items: []Value{0.0, 4.0}}, lookup(t, in, "evens"))
	assert.Equal(t, 1.0, lookup(t, in, "first"))
	assert.Equal(t, &List{Items: []Value{2.0, 3.0}}, lookup(t, in, "rest"))
	assert.Equal(t, &List{Items: []Value{3.0, 2.0, 1.0}}, lookup(t, in, "ordered"))
}

func TestExecFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind string
		msg  string
		line int
	}{
		{"undefined name", "x = missing", "NameError", "name 'missing' is not defined", 1},
		{"unsupported statement", "while True:\n    pass", "SyntaxError", "'while' statements are not supported (line 1)", 1},
		{"unknown module", "import os", "ModuleNotFoundError", "No module named 'os'", 1},
		{"missing key", "x = {'a': 1}['b']", "KeyError", "'b'", 1},
		{"index out of range", "x = [1][3]", "IndexError", "list index out of range", 1},
		{"line of failure", "a = 1\nb = a['x']", "TypeError", "'int' object is not subscriptable", 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := New(nil, Modules()).ExecSource(tc.src)
			require.Error(t, err)
			f, ok := err.(*Fault)
			require.True(t, ok, "want *Fault, got %T", err)
			assert.Equal(t, tc.kind, f.Kind)
			assert.Equal(t, tc.msg, f.Message)
			assert.Equal(t, tc.line, f.Line)
		})
	}
}

func TestExceptHierarchy(t *testing.T) {
	in := run(t, "try:\n    import os\nexcept ImportError:\n    handled = True", nil)
	assert.Equal(t, true, lookup(t, in, "handled"))
}

func TestPrintCapturesOutput(t *testing.T) {
	in := run(t, "print('total', 3)\nprint(f'{0.25:.0%}')", nil)
	assert.Equal(t, "total 3\n25%\n", in.Output())
}

func TestUnexpectedKeywordMessage(t *testing.T) {
	a := &Args{Kw: []Kwarg{{Name: "size", Value: "pop"}}}
	_, err := a.Bind("choropleth", "data_frame", "color")
	require.Error(t, err)
	assert.Equal(t, "TypeError: choropleth() got an unexpected keyword argument 'size'", err.Error())

	open := &Args{Kw: []Kwarg{{Name: "anything", Value: 1.0}}}
	_, err = open.Bind("f", "x", "**")
	assert.NoError(t, err)
}
