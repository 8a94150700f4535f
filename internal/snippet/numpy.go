package snippet

import (
	"math"
	"strings"
)

// Numpy returns the np module. Arrays are plain lists; functions given a
// Series keep its labels.
func Numpy() *Module {
	attrs := map[string]Value{
		"nan":     math.NaN(),
		"NaN":     math.NaN(),
		"inf":     math.Inf(1),
		"pi":      math.Pi,
		"e":       math.E,
		"number":  "number",
		"int64":   "int64",
		"float64": "float64",
		"object":  "object",
		"where":   fn("where", npWhere),
		"select":  fn("select", npSelect),
		"round":   fn("round", npRound),
		"isnan":   fn("isnan", npIsNaN),
		"array":   fn("array", npArray),
		"arange":  fn("arange", npArange),
		"clip":    fn("clip", npClip),
		"percentile": fn("percentile", func(in *Interp, a *Args) (Value, error) {
			return npPercentile(a, 100)
		}),
		"quantile": fn("quantile", func(in *Interp, a *Args) (Value, error) {
			return npPercentile(a, 1)
		}),
		"maximum": fn("maximum", func(in *Interp, a *Args) (Value, error) { return npPairwise(a, "maximum", math.Max) }),
		"minimum": fn("minimum", func(in *Interp, a *Args) (Value, error) { return npPairwise(a, "minimum", math.Min) }),
	}
	for name, f := range map[string]func(float64) float64{
		"sqrt": math.Sqrt, "log": math.Log, "log10": math.Log10, "log2": math.Log2, "log1p": math.Log1p,
		"exp": math.Exp, "floor": math.Floor, "ceil": math.Ceil, "abs": math.Abs, "absolute": math.Abs,
		"sign": sign,
	} {
		attrs[name] = ufunc(name, f)
	}
	for _, name := range []string{"mean", "sum", "median", "std", "var", "min", "max", "prod"} {
		attrs[name] = npReducer(name)
	}
	attrs["nanmean"], attrs["nansum"], attrs["nanmedian"] = npReducer("mean"), npReducer("sum"), npReducer("median")
	attrs["amin"], attrs["amax"] = npReducer("min"), npReducer("max")
	return &Module{Name: "numpy", Attrs: attrs}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return x
}

// vector reads a Series or list-like argument; scalar reports a plain value.
func vector(v Value) (vals []Value, like *Series, scalar bool) {
	switch x := v.(type) {
	case *Series:
		return x.Values, x, false
	case *List:
		return x.Items, nil, false
	case Tuple:
		return x, nil, false
	}
	return []Value{v}, nil, true
}

// rewrap returns results in the shape of the input.
func rewrap(vals []Value, like *Series, scalar bool) Value {
	switch {
	case scalar:
		return vals[0]
	case like != nil:
		s := like.derive(vals)
		s.isIndex = false
		return s
	}
	return &List{Items: vals}
}

func ufunc(name string, f func(float64) float64) *Builtin {
	return fn(name, func(_ *Interp, a *Args) (Value, error) {
		if len(a.Pos) != 1 {
			return nil, typeErrorf("%s() takes exactly one argument (%d given)", name, len(a.Pos))
		}
		vals, like, scalar := vector(a.Pos[0])
		out := make([]Value, len(vals))
		for i, v := range vals {
			if v == nil {
				out[i] = math.NaN()
				continue
			}
			x, ok := toFloat(v)
			if !ok {
				return nil, typeErrorf("loop of ufunc does not support argument 0 of type %s which has no callable %s method", TypeName(v), name)
			}
			out[i] = f(x)
		}
		return rewrap(out, like, scalar), nil
	})
}

func npReducer(name string) *Builtin {
	return fn(name, func(_ *Interp, a *Args) (Value, error) {
		p, err := a.Bind(name, "a", "axis", "**")
		if err != nil {
			return nil, err
		}
		if f, ok := p[0].(*Frame); ok {
			return f.reduceColumns(name, true)
		}
		vals, _, _ := vector(p[0])
		if name == "std" || name == "var" {
			ddof := 0
			if v, ok := a.Kwarg("ddof"); ok {
				if ddof, err = ToInt(v); err != nil {
					return nil, err
				}
			}
			return stdDdof(vals, ddof, name == "var")
		}
		return reduce(name, vals)
	})
}

func npWhere(_ *Interp, a *Args) (Value, error) {
	if len(a.Pos) != 3 {
		return nil, typeErrorf("where() takes exactly 3 arguments (%d given)", len(a.Pos))
	}
	conds, like, scalar := vector(a.Pos[0])
	n := len(conds)
	pick := func(v Value, i int) Value {
		if vals, _, sc := vector(v); !sc && len(vals) == n {
			return vals[i]
		}
		return v
	}
	out := make([]Value, n)
	for i, c := range conds {
		ok, err := Truth(c)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = pick(a.Pos[1], i)
		} else {
			out[i] = pick(a.Pos[2], i)
		}
	}
	if like == nil && !scalar {
		for _, v := range a.Pos[1:] {
			if s, ok := v.(*Series); ok && len(s.Values) == n {
				like = s
				break
			}
		}
	}
	return rewrap(out, like, scalar), nil
}

func npSelect(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("select", "condlist", "choicelist", "default")
	if err != nil {
		return nil, err
	}
	conds, err := Iterate(p[0])
	if err != nil {
		return nil, err
	}
	choices, err := Iterate(p[1])
	if err != nil {
		return nil, err
	}
	if len(conds) != len(choices) {
		return nil, valueErrorf("list of cases must be same length as list of conditions")
	}
	if len(conds) == 0 {
		return nil, valueErrorf("select with an empty condition list is not possible")
	}
	first, like, _ := vector(conds[0])
	n := len(first)
	def := orDefault(p[2], 0.0)
	out := make([]Value, n)
	for i := range out {
		out[i] = def
		for k, c := range conds {
			cv, _, _ := vector(c)
			if len(cv) != n {
				return nil, valueErrorf("shape mismatch: objects cannot be broadcast to a single shape")
			}
			ok, err := Truth(cv[i])
			if err != nil {
				return nil, err
			}
			if ok {
				if vals, _, sc := vector(choices[k]); !sc && len(vals) == n {
					out[i] = vals[i]
				} else {
					out[i] = choices[k]
				}
				break
			}
		}
	}
	return rewrap(out, like, false), nil
}

func npRound(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("round", "a", "decimals")
	if err != nil {
		return nil, err
	}
	n := 0
	if p[1] != nil {
		if n, err = ToInt(p[1]); err != nil {
			return nil, err
		}
	}
	vals, like, scalar := vector(p[0])
	out := make([]Value, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		x, ok := toFloat(v)
		if !ok {
			return nil, typeErrorf("can't round a %s", TypeName(v))
		}
		out[i] = RoundHalfEven(x, n)
	}
	return rewrap(out, like, scalar), nil
}

func npIsNaN(_ *Interp, a *Args) (Value, error) {
	if len(a.Pos) != 1 {
		return nil, typeErrorf("isnan() takes exactly one argument (%d given)", len(a.Pos))
	}
	vals, like, scalar := vector(a.Pos[0])
	out := make([]Value, len(vals))
	for i, v := range vals {
		if _, isStr := v.(string); isStr {
			return nil, typeErrorf("ufunc 'isnan' not supported for the input types")
		}
		out[i] = v == nil || isNaN(v)
	}
	return rewrap(out, like, scalar), nil
}

func npArray(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("array", "object", "dtype")
	if err != nil {
		return nil, err
	}
	items, err := Iterate(p[0])
	if err != nil {
		return nil, err
	}
	return &List{Items: items}, nil
}

func npArange(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("arange", "start", "stop", "step")
	if err != nil {
		return nil, err
	}
	start, stop, step := 0.0, 0.0, 1.0
	nums := make([]float64, 0, 3)
	for _, v := range p {
		if v == nil {
			continue
		}
		f, err := ToFloat(v)
		if err != nil {
			return nil, err
		}
		nums = append(nums, f)
	}
	switch len(nums) {
	case 1:
		stop = nums[0]
	case 2:
		start, stop = nums[0], nums[1]
	case 3:
		start, stop, step = nums[0], nums[1], nums[2]
	default:
		return nil, typeErrorf("arange() requires stop to be specified.")
	}
	if step == 0 {
		return nil, Errorf("ZeroDivisionError", "division by zero")
	}
	n := int(math.Ceil((stop - start) / step))
	if n > 10_000_000 {
		return nil, valueErrorf("Maximum allowed size exceeded")
	}
	out := make([]Value, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, start+float64(i)*step)
	}
	return &List{Items: out}, nil
}

func npClip(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("clip", "a", "a_min", "a_max")
	if err != nil {
		return nil, err
	}
	vals, like, scalar := vector(p[0])
	out := make([]Value, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if out[i], err = clipValue(v, p[1], p[2]); err != nil {
			return nil, err
		}
	}
	return rewrap(out, like, scalar), nil
}

func npPercentile(a *Args, scale float64) (Value, error) {
	p, err := a.Bind("percentile", "a", "q", "**")
	if err != nil {
		return nil, err
	}
	vals, _, _ := vector(p[0])
	qs, _, scalar := vector(p[1])
	out := make([]Value, len(qs))
	for i, q := range qs {
		f, err := ToFloat(q)
		if err != nil {
			return nil, err
		}
		if f < 0 || f > scale {
			return nil, valueErrorf("Percentiles must be in the range [0, %s]", formatFloat(scale))
		}
		if out[i], err = quantileOf(vals, f/scale); err != nil {
			return nil, err
		}
	}
	return rewrap(out, nil, scalar), nil
}

func npPairwise(a *Args, name string, f func(x, y float64) float64) (Value, error) {
	if len(a.Pos) != 2 {
		return nil, typeErrorf("%s() takes exactly 2 arguments (%d given)", name, len(a.Pos))
	}
	xs, like, scalar := vector(a.Pos[0])
	ys, likeY, scalarY := vector(a.Pos[1])
	if scalar && !scalarY {
		xs, ys, like, scalar = ys, xs, likeY, scalarY
	}
	out := make([]Value, len(xs))
	for i, x := range xs {
		y := ys[0]
		if len(ys) == len(xs) {
			y = ys[i]
		}
		fx, ok1 := toFloat(x)
		fy, ok2 := toFloat(y)
		if !ok1 || !ok2 {
			continue
		}
		out[i] = f(fx, fy)
	}
	return rewrap(out, like, scalar), nil
}

// MathModule returns the math module.
func MathModule() *Module {
	attrs := map[string]Value{
		"pi":  math.Pi,
		"e":   math.E,
		"inf": math.Inf(1),
		"nan": math.NaN(),
		"isnan": fn("isnan", func(_ *Interp, a *Args) (Value, error) {
			x, err := oneFloat(a, "isnan")
			return math.IsNaN(x), err
		}),
		"isfinite": fn("isfinite", func(_ *Interp, a *Args) (Value, error) {
			x, err := oneFloat(a, "isfinite")
			return !math.IsNaN(x) && !math.IsInf(x, 0), err
		}),
		"pow": fn("pow", func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 2 {
				return nil, typeErrorf("pow expected 2 arguments, got %d", len(a.Pos))
			}
			x, err := ToFloat(a.Pos[0])
			if err != nil {
				return nil, err
			}
			y, err := ToFloat(a.Pos[1])
			if err != nil {
				return nil, err
			}
			return math.Pow(x, y), nil
		}),
	}
	for name, f := range map[string]func(float64) float64{
		"sqrt": math.Sqrt, "log": math.Log, "log10": math.Log10, "log2": math.Log2, "exp": math.Exp,
		"floor": math.Floor, "ceil": math.Ceil, "fabs": math.Abs, "trunc": math.Trunc,
	} {
		attrs[name] = fn(name, func(_ *Interp, a *Args) (Value, error) {
			x, err := oneFloat(a, name)
			if err != nil {
				return nil, err
			}
			if (name == "sqrt" && x < 0) || (strings.HasPrefix(name, "log") && x <= 0) {
				return nil, valueErrorf("math domain error")
			}
			return f(x), nil
		})
	}
	return &Module{Name: "math", Attrs: attrs}
}

func oneFloat(a *Args, name string) (float64, error) {
	if len(a.Pos) != 1 {
		return 0, typeErrorf("%s() takes exactly one argument (%d given)", name, len(a.Pos))
	}
	if a.Pos[0] == nil {
		return 0, typeErrorf("must be real number, not NoneType")
	}
	return ToFloat(a.Pos[0])
}

// WarningsModule returns a warnings module whose filters are no-ops.
func WarningsModule() *Module {
	noop := func(name string) *Builtin {
		return fn(name, func(*Interp, *Args) (Value, error) { return nil, nil })
	}
	return &Module{Name: "warnings", Attrs: map[string]Value{
		"filterwarnings": noop("filterwarnings"),
		"simplefilter":   noop("simplefilter"),
		"warn":           noop("warn"),
	}}
}

// Modules returns the data modules importable by snippets.
func Modules() map[string]Value {
	return map[string]Value{
		"pandas":   Pandas(),
		"numpy":    Numpy(),
		"math":     MathModule(),
		"warnings": WarningsModule(),
	}
}
