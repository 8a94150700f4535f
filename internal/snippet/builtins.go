package snippet

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

var builtins map[string]Value

func init() {
	builtins = map[string]Value{
		"len":        fn("len", builtinLen),
		"round":      fn("round", builtinRound),
		"float":      fn("float", builtinFloat),
		"int":        fn("int", builtinInt),
		"str":        fn("str", builtinStr),
		"bool":       fn("bool", builtinBool),
		"abs":        fn("abs", builtinAbs),
		"min":        fn("min", func(in *Interp, a *Args) (Value, error) { return extreme(in, a, "min", -1) }),
		"max":        fn("max", func(in *Interp, a *Args) (Value, error) { return extreme(in, a, "max", 1) }),
		"sum":        fn("sum", builtinSum),
		"list":       fn("list", builtinList),
		"tuple":      fn("tuple", builtinTuple),
		"set":        fn("set", builtinSet),
		"dict":       fn("dict", builtinDict),
		"sorted":     fn("sorted", builtinSorted),
		"reversed":   fn("reversed", builtinReversed),
		"range":      fn("range", builtinRange),
		"enumerate":  fn("enumerate", builtinEnumerate),
		"zip":        fn("zip", builtinZip),
		"print":      fn("print", builtinPrint),
		"isinstance": fn("isinstance", builtinIsinstance),
		"any":        fn("any", func(in *Interp, a *Args) (Value, error) { return anyAll(a, "any", true) }),
		"all":        fn("all", func(in *Interp, a *Args) (Value, error) { return anyAll(a, "all", false) }),
		"map":        fn("map", builtinMap),
		"filter":     fn("filter", builtinFilter),
		"hasattr":    fn("hasattr", builtinHasattr),
		"getattr":    fn("getattr", builtinGetattr),
		"repr":       fn("repr", func(in *Interp, a *Args) (Value, error) { return oneArg(a, "repr", Repr) }),
	}
	for _, kind := range exceptionKinds {
		builtins[kind] = exceptionClass(kind)
	}
}

func fn(name string, f func(in *Interp, a *Args) (Value, error)) *Builtin {
	return &Builtin{Name: name, Fn: f}
}

func exceptionClass(kind string) *Builtin {
	return &Builtin{Name: kind, Exc: true, Fn: func(in *Interp, a *Args) (Value, error) {
		parts := make([]string, len(a.Pos))
		for i, p := range a.Pos {
			parts[i] = Str(p)
		}
		return &Fault{Kind: kind, Message: strings.Join(parts, ", ")}, nil
	}}
}

func oneArg(a *Args, name string, f func(Value) string) (Value, error) {
	if len(a.Pos) != 1 || len(a.Kw) > 0 {
		return nil, typeErrorf("%s() takes exactly one argument (%d given)", name, len(a.Pos))
	}
	return f(a.Pos[0]), nil
}

func builtinLen(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) != 1 {
		return nil, typeErrorf("len() takes exactly one argument (%d given)", len(a.Pos))
	}
	n, err := Length(a.Pos[0])
	return float64(n), err
}

// RoundHalfEven rounds to ndigits decimals, ties to even.
func RoundHalfEven(x float64, ndigits int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(ndigits))
	r := math.RoundToEven(x * p)
	if math.Abs(x*p-math.Trunc(x*p)) != 0.5 {
		r = math.Round(x * p)
	}
	return r / p
}

func builtinRound(in *Interp, a *Args) (Value, error) {
	p, err := a.Bind("round", "number", "ndigits")
	if err != nil {
		return nil, err
	}
	n := 0
	if p[1] != nil {
		if n, err = ToInt(p[1]); err != nil {
			return nil, err
		}
	}
	if g, ok := p[0].(AttrGetter); ok {
		m, err := g.GetAttr("round")
		if err != nil {
			return nil, typeErrorf("type %s doesn't define __round__ method", TypeName(p[0]))
		}
		return in.Call(m, float64(n))
	}
	f, ok := toFloat(p[0])
	if !ok {
		return nil, typeErrorf("type %s doesn't define __round__ method", TypeName(p[0]))
	}
	return RoundHalfEven(f, n), nil
}

// ParseFloatString parses the literals float() accepts.
func ParseFloatString(s string) (float64, bool) {
	t := strings.TrimSpace(strings.ReplaceAll(s, "_", ""))
	switch strings.ToLower(t) {
	case "nan", "+nan", "-nan":
		return math.NaN(), true
	case "inf", "+inf", "infinity", "+infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func builtinFloat(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) == 0 {
		return 0.0, nil
	}
	switch x := a.Pos[0].(type) {
	case float64, bool:
		f, _ := toFloat(x)
		return f, nil
	case string:
		f, ok := ParseFloatString(x)
		if !ok {
			return nil, valueErrorf("could not convert string to float: %s", quote(x))
		}
		return f, nil
	case AttrGetter:
		if m, err := x.GetAttr("item"); err == nil {
			return in.Call(m)
		}
	}
	return nil, typeErrorf("float() argument must be a string or a real number, not '%s'", TypeName(a.Pos[0]))
}

func builtinInt(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) == 0 {
		return 0.0, nil
	}
	switch x := a.Pos[0].(type) {
	case float64:
		if math.IsNaN(x) {
			return nil, valueErrorf("cannot convert float NaN to integer")
		}
		if math.IsInf(x, 0) {
			return nil, Errorf("OverflowError", "cannot convert float infinity to integer")
		}
		return math.Trunc(x), nil
	case bool:
		f, _ := toFloat(x)
		return f, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(strings.ReplaceAll(x, "_", "")), 10, 64)
		if err != nil {
			return nil, valueErrorf("invalid literal for int() with base 10: %s", quote(x))
		}
		return float64(n), nil
	case AttrGetter:
		if m, err := x.GetAttr("item"); err == nil {
			v, err := in.Call(m)
			if err != nil {
				return nil, err
			}
			return builtinInt(in, NewArgs(v))
		}
	}
	return nil, typeErrorf("int() argument must be a string, a bytes-like object or a real number, not '%s'", TypeName(a.Pos[0]))
}

func builtinStr(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) == 0 {
		return "", nil
	}
	return Str(a.Pos[0]), nil
}

func builtinBool(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) == 0 {
		return false, nil
	}
	return Truth(a.Pos[0])
}

func builtinAbs(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) != 1 {
		return nil, typeErrorf("abs() takes exactly one argument (%d given)", len(a.Pos))
	}
	switch x := a.Pos[0].(type) {
	case float64:
		return math.Abs(x), nil
	case bool:
		f, _ := toFloat(x)
		return f, nil
	case time.Duration:
		if x < 0 {
			return -x, nil
		}
		return x, nil
	case AttrGetter:
		if m, err := x.GetAttr("abs"); err == nil {
			return in.Call(m)
		}
	}
	return nil, typeErrorf("bad operand type for abs(): '%s'", TypeName(a.Pos[0]))
}

func extreme(in *Interp, a *Args, name string, sign int) (Value, error) {
	key, _ := a.Kwarg("key")
	def, hasDef := a.Kwarg("default")
	for _, kw := range a.Kw {
		if kw.Name != "key" && kw.Name != "default" {
			return nil, UnexpectedKeyword(name, kw.Name)
		}
	}
	var items []Value
	switch len(a.Pos) {
	case 0:
		return nil, typeErrorf("%s expected at least 1 argument, got 0", name)
	case 1:
		var err error
		if items, err = Iterate(a.Pos[0]); err != nil {
			return nil, err
		}
	default:
		items = a.Pos
	}
	if len(items) == 0 {
		if hasDef {
			return def, nil
		}
		return nil, valueErrorf("%s() iterable argument is empty", name)
	}
	best := items[0]
	bestKey := best
	if key != nil {
		var err error
		if bestKey, err = in.Call(key, best); err != nil {
			return nil, err
		}
	}
	for _, it := range items[1:] {
		k := it
		if key != nil {
			var err error
			if k, err = in.Call(key, it); err != nil {
				return nil, err
			}
		}
		c, err := Compare(map[int]string{-1: "<", 1: ">"}[sign], k, bestKey)
		if err != nil {
			return nil, err
		}
		if c*sign > 0 {
			best, bestKey = it, k
		}
	}
	return best, nil
}

func builtinSum(in *Interp, a *Args) (Value, error) {
	p, err := a.Bind("sum", "iterable", "start")
	if err != nil {
		return nil, err
	}
	items, err := Iterate(p[0])
	if err != nil {
		return nil, err
	}
	var total Value = 0.0
	if p[1] != nil {
		total = p[1]
	}
	for _, it := range items {
		if total, err = BinaryOp("+", total, it); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func builtinList(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) == 0 {
		return &List{}, nil
	}
	items, err := Iterate(a.Pos[0])
	return &List{Items: items}, err
}

func builtinTuple(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) == 0 {
		return Tuple{}, nil
	}
	items, err := Iterate(a.Pos[0])
	return Tuple(items), err
}

func builtinSet(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) == 0 {
		return &List{}, nil
	}
	items, err := Iterate(a.Pos[0])
	if err != nil {
		return nil, err
	}
	return &List{Items: unique(items)}, nil
}

func unique(items []Value) []Value {
	seen := NewDict()
	var out []Value
	for _, it := range items {
		if _, ok := seen.Get(it); ok {
			continue
		}
		if err := seen.Set(it, true); err != nil {
			continue
		}
		out = append(out, it)
	}
	return out
}

func builtinDict(in *Interp, a *Args) (Value, error) {
	d := NewDict()
	if len(a.Pos) > 0 {
		switch src := a.Pos[0].(type) {
		case *Dict:
			for i, k := range src.keys {
				_ = d.Set(k, src.vals[i])
			}
		default:
			items, err := Iterate(src)
			if err != nil {
				return nil, err
			}
			for _, it := range items {
				pair, err := Iterate(it)
				if err != nil || len(pair) != 2 {
					return nil, valueErrorf("dictionary update sequence element has wrong length")
				}
				if err := d.Set(pair[0], pair[1]); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, kw := range a.Kw {
		_ = d.Set(kw.Name, kw.Value)
	}
	return d, nil
}

func builtinSorted(in *Interp, a *Args) (Value, error) {
	p, err := a.Bind("sorted", "iterable", "key", "reverse")
	if err != nil {
		return nil, err
	}
	items, err := Iterate(p[0])
	if err != nil {
		return nil, err
	}
	rev, _ := Truth(p[2])
	if err := sortValues(in, items, p[1], rev); err != nil {
		return nil, err
	}
	return &List{Items: items}, nil
}

func builtinReversed(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) != 1 {
		return nil, typeErrorf("reversed expected 1 argument, got %d", len(a.Pos))
	}
	items, err := Iterate(a.Pos[0])
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return &List{Items: items}, nil
}

const maxRange = 10_000_000

func builtinRange(in *Interp, a *Args) (Value, error) {
	if len(a.Kw) > 0 {
		return nil, typeErrorf("range() takes no keyword arguments")
	}
	ints := make([]int, len(a.Pos))
	for i, p := range a.Pos {
		n, err := ToInt(p)
		if err != nil {
			return nil, err
		}
		ints[i] = n
	}
	start, stop, step := 0, 0, 1
	switch len(ints) {
	case 1:
		stop = ints[0]
	case 2:
		start, stop = ints[0], ints[1]
	case 3:
		start, stop, step = ints[0], ints[1], ints[2]
	default:
		return nil, typeErrorf("range expected at most 3 arguments, got %d", len(ints))
	}
	if step == 0 {
		return nil, valueErrorf("range() arg 3 must not be zero")
	}
	var out []Value
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if len(out) >= maxRange {
			return nil, Errorf("MemoryError", "range too large")
		}
		out = append(out, float64(i))
	}
	return &List{Items: out}, nil
}

func builtinEnumerate(in *Interp, a *Args) (Value, error) {
	p, err := a.Bind("enumerate", "iterable", "start")
	if err != nil {
		return nil, err
	}
	items, err := Iterate(p[0])
	if err != nil {
		return nil, err
	}
	start := 0
	if p[1] != nil {
		if start, err = ToInt(p[1]); err != nil {
			return nil, err
		}
	}
	out := make([]Value, len(items))
	for i, it := range items {
		out[i] = Tuple{float64(start + i), it}
	}
	return &List{Items: out}, nil
}

func builtinZip(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) == 0 {
		return &List{}, nil
	}
	seqs := make([][]Value, len(a.Pos))
	n := -1
	for i, p := range a.Pos {
		items, err := Iterate(p)
		if err != nil {
			return nil, err
		}
		seqs[i] = items
		if n < 0 || len(items) < n {
			n = len(items)
		}
	}
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		row := make(Tuple, len(seqs))
		for j := range seqs {
			row[j] = seqs[j][i]
		}
		out[i] = row
	}
	return &List{Items: out}, nil
}

func builtinPrint(in *Interp, a *Args) (Value, error) {
	sep, end := " ", "\n"
	if v, ok := a.Kwarg("sep"); ok && v != nil {
		sep = Str(v)
	}
	if v, ok := a.Kwarg("end"); ok && v != nil {
		end = Str(v)
	}
	parts := make([]string, len(a.Pos))
	for i, p := range a.Pos {
		parts[i] = Str(p)
	}
	in.out.WriteString(strings.Join(parts, sep) + end)
	return nil, nil
}

func builtinIsinstance(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) != 2 {
		return nil, typeErrorf("isinstance expected 2 arguments, got %d", len(a.Pos))
	}
	classes := []Value{a.Pos[1]}
	if t, ok := a.Pos[1].(Tuple); ok {
		classes = t
	}
	for _, c := range classes {
		b, ok := c.(*Builtin)
		if !ok {
			return nil, typeErrorf("isinstance() arg 2 must be a type, a tuple of types, or a union")
		}
		if instanceOf(a.Pos[0], b) {
			return true, nil
		}
	}
	return false, nil
}

func instanceOf(v Value, cls *Builtin) bool {
	if cls.Exc {
		f, ok := v.(*Fault)
		return ok && exceptionMatches(f.Kind, cls.Name)
	}
	switch cls.Name {
	case "int":
		switch x := v.(type) {
		case bool:
			return true
		case float64:
			return integral(x)
		}
		return false
	case "float":
		_, ok := v.(float64)
		return ok
	case "str":
		_, ok := v.(string)
		return ok
	case "bool":
		_, ok := v.(bool)
		return ok
	case "tuple":
		_, ok := v.(Tuple)
		return ok
	}
	return TypeName(v) == cls.Name
}

func anyAll(a *Args, name string, want bool) (Value, error) {
	if len(a.Pos) != 1 {
		return nil, typeErrorf("%s() takes exactly one argument (%d given)", name, len(a.Pos))
	}
	items, err := Iterate(a.Pos[0])
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		ok, err := Truth(it)
		if err != nil {
			return nil, err
		}
		if ok == want {
			return want, nil
		}
	}
	return !want, nil
}

func builtinMap(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) < 2 {
		return nil, typeErrorf("map() must have at least two arguments.")
	}
	items, err := Iterate(a.Pos[1])
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(items))
	for i, it := range items {
		if out[i], err = in.Call(a.Pos[0], it); err != nil {
			return nil, err
		}
	}
	return &List{Items: out}, nil
}

func builtinFilter(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) != 2 {
		return nil, typeErrorf("filter expected 2 arguments, got %d", len(a.Pos))
	}
	items, err := Iterate(a.Pos[1])
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, it := range items {
		v := it
		if a.Pos[0] != nil {
			if v, err = in.Call(a.Pos[0], it); err != nil {
				return nil, err
			}
		}
		ok, err := Truth(v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return &List{Items: out}, nil
}

func builtinHasattr(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) != 2 {
		return nil, typeErrorf("hasattr expected 2 arguments, got %d", len(a.Pos))
	}
	name, err := ToString(a.Pos[1], "attribute name")
	if err != nil {
		return nil, err
	}
	_, err = in.getAttr(a.Pos[0], name)
	return err == nil, nil
}

func builtinGetattr(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) < 2 || len(a.Pos) > 3 {
		return nil, typeErrorf("getattr expected 2 or 3 arguments, got %d", len(a.Pos))
	}
	name, err := ToString(a.Pos[1], "attribute name")
	if err != nil {
		return nil, err
	}
	v, err := in.getAttr(a.Pos[0], name)
	if err != nil && len(a.Pos) == 3 {
		return a.Pos[2], nil
	}
	return v, err
}

func parseTimeString(s string) (time.Time, bool) { return dataset.ParseTime(s) }

// scalarMethod resolves attributes of built-in value types.
func scalarMethod(in *Interp, obj Value, name string) Value {
	switch x := obj.(type) {
	case string:
		return stringMethod(x, name)
	case *List:
		return listMethod(x, name)
	case *Dict:
		return dictMethod(x, name)
	case float64:
		switch name {
		case "is_integer":
			return fn(name, func(*Interp, *Args) (Value, error) { return integral(x), nil })
		case "item":
			return fn(name, func(*Interp, *Args) (Value, error) { return x, nil })
		case "real":
			return x
		}
	case time.Time:
		return timeAttr(x, name)
	case time.Duration:
		switch name {
		case "days":
			return math.Floor(x.Hours() / 24)
		case "seconds":
			return math.Floor(math.Mod(x.Seconds(), 86400))
		case "total_seconds":
			return fn(name, func(*Interp, *Args) (Value, error) { return x.Seconds(), nil })
		}
	case *Fault:
		if name == "args" {
			return Tuple{x.Message}
		}
	}
	return nil
}

func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	rs := []rune(strings.ToLower(s))
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}

func pySplit(s string, sep Value, maxsplit int) []Value {
	var parts []string
	if sep == nil {
		fields := strings.Fields(s)
		if maxsplit >= 0 && len(fields) > maxsplit+1 {
			head := fields[:maxsplit]
			rest := strings.TrimLeft(s, " \t\n")
			for range head {
				rest = strings.TrimLeft(rest, " \t\n")
				if i := strings.IndexAny(rest, " \t\n"); i >= 0 {
					rest = rest[i:]
				}
			}
			parts = append(append([]string(nil), head...), strings.TrimLeft(rest, " \t\n"))
		} else {
			parts = fields
		}
	} else {
		n := -1
		if maxsplit >= 0 {
			n = maxsplit + 1
		}
		parts = strings.SplitN(s, Str(sep), n)
	}
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

func stringMethod(s, name string) Value {
	simple := func(f func(string) Value) Value {
		return fn(name, func(*Interp, *Args) (Value, error) { return f(s), nil })
	}
	switch name {
	case "lower", "casefold":
		return simple(func(s string) Value { return strings.ToLower(s) })
	case "upper":
		return simple(func(s string) Value { return strings.ToUpper(s) })
	case "title":
		return simple(func(s string) Value { return titleCase(s) })
	case "capitalize":
		return simple(func(s string) Value { return capitalize(s) })
	case "isdigit", "isnumeric", "isdecimal":
		return simple(func(s string) Value {
			if s == "" {
				return false
			}
			for _, r := range s {
				if !unicode.IsDigit(r) {
					return false
				}
			}
			return true
		})
	case "isalpha":
		return simple(func(s string) Value {
			if s == "" {
				return false
			}
			for _, r := range s {
				if !unicode.IsLetter(r) {
					return false
				}
			}
			return true
		})
	case "splitlines":
		return simple(func(s string) Value { return &List{Items: pySplit(strings.TrimSuffix(s, "\n"), "\n", -1)} })
	case "strip", "lstrip", "rstrip":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "chars")
			if err != nil {
				return nil, err
			}
			cut := " \t\n\r\f\v"
			if p[0] != nil {
				cut = Str(p[0])
			}
			switch name {
			case "lstrip":
				return strings.TrimLeft(s, cut), nil
			case "rstrip":
				return strings.TrimRight(s, cut), nil
			}
			return strings.Trim(s, cut), nil
		})
	case "replace":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "old", "new", "count")
			if err != nil {
				return nil, err
			}
			n := -1
			if p[2] != nil {
				if n, err = ToInt(p[2]); err != nil {
					return nil, err
				}
			}
			return strings.Replace(s, Str(p[0]), Str(p[1]), n), nil
		})
	case "split":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "sep", "maxsplit")
			if err != nil {
				return nil, err
			}
			n := -1
			if p[1] != nil {
				if n, err = ToInt(p[1]); err != nil {
					return nil, err
				}
			}
			return &List{Items: pySplit(s, p[0], n)}, nil
		})
	case "join":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 1 {
				return nil, typeErrorf("str.join() takes exactly one argument (%d given)", len(a.Pos))
			}
			items, err := Iterate(a.Pos[0])
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			for i, it := range items {
				str, ok := it.(string)
				if !ok {
					return nil, typeErrorf("sequence item %d: expected str instance, %s found", i, TypeName(it))
				}
				parts[i] = str
			}
			return strings.Join(parts, s), nil
		})
	case "startswith", "endswith":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 1 {
				return nil, typeErrorf("%s() takes exactly one argument (%d given)", name, len(a.Pos))
			}
			cands := []Value{a.Pos[0]}
			if t, ok := a.Pos[0].(Tuple); ok {
				cands = t
			}
			for _, c := range cands {
				p := Str(c)
				if (name == "startswith" && strings.HasPrefix(s, p)) || (name == "endswith" && strings.HasSuffix(s, p)) {
					return true, nil
				}
			}
			return false, nil
		})
	case "find", "index", "count":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) < 1 {
				return nil, typeErrorf("%s() takes at least 1 argument (0 given)", name)
			}
			sub := Str(a.Pos[0])
			if name == "count" {
				return float64(strings.Count(s, sub)), nil
			}
			i := strings.Index(s, sub)
			if i >= 0 {
				i = len([]rune(s[:i]))
			}
			if i < 0 && name == "index" {
				return nil, valueErrorf("substring not found")
			}
			return float64(i), nil
		})
	case "format":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			kw := make(map[string]Value, len(a.Kw))
			for _, k := range a.Kw {
				kw[k.Name] = k.Value
			}
			return FormatTemplate(s, a.Pos, kw)
		})
	case "zfill", "ljust", "rjust", "center":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) < 1 {
				return nil, typeErrorf("%s() takes at least 1 argument (0 given)", name)
			}
			w, err := ToInt(a.Pos[0])
			if err != nil {
				return nil, err
			}
			fill := " "
			if len(a.Pos) > 1 {
				fill = Str(a.Pos[1])
			}
			spec := map[string]string{"zfill": "0>", "ljust": fill + "<", "rjust": fill + ">", "center": fill + "^"}[name]
			if name == "zfill" && strings.HasPrefix(s, "-") {
				return FormatSpec(-mustFloat(s[1:]), "0"+strconv.Itoa(w))
			}
			return FormatSpec(s, spec+strconv.Itoa(w))
		})
	}
	return nil
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func listMethod(l *List, name string) Value {
	switch name {
	case "append":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 1 {
				return nil, typeErrorf("list.append() takes exactly one argument (%d given)", len(a.Pos))
			}
			l.Items = append(l.Items, a.Pos[0])
			return nil, nil
		})
	case "extend":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 1 {
				return nil, typeErrorf("list.extend() takes exactly one argument (%d given)", len(a.Pos))
			}
			items, err := Iterate(a.Pos[0])
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, items...)
			return nil, nil
		})
	case "insert":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 2 {
				return nil, typeErrorf("insert expected 2 arguments, got %d", len(a.Pos))
			}
			i, err := ToInt(a.Pos[0])
			if err != nil {
				return nil, err
			}
			if i < 0 {
				i += len(l.Items)
			}
			i = max(0, min(i, len(l.Items)))
			l.Items = append(l.Items[:i], append([]Value{a.Pos[1]}, l.Items[i:]...)...)
			return nil, nil
		})
	case "pop":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(l.Items) == 0 {
				return nil, Errorf("IndexError", "pop from empty list")
			}
			var key Value = float64(len(l.Items) - 1)
			if len(a.Pos) > 0 {
				key = a.Pos[0]
			}
			i, err := seqIndex(l.Items, key, "pop")
			if err != nil {
				return nil, err
			}
			v := l.Items[i]
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return v, nil
		})
	case "remove", "index", "count":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 1 {
				return nil, typeErrorf("%s() takes exactly one argument (%d given)", name, len(a.Pos))
			}
			n := 0
			for i, it := range l.Items {
				if !Equal(it, a.Pos[0]) {
					continue
				}
				switch name {
				case "remove":
					l.Items = append(l.Items[:i], l.Items[i+1:]...)
					return nil, nil
				case "index":
					return float64(i), nil
				}
				n++
			}
			if name == "count" {
				return float64(n), nil
			}
			return nil, valueErrorf("list.%s(x): x not in list", name)
		})
	case "sort":
		return fn(name, func(in *Interp, a *Args) (Value, error) {
			p, err := a.Bind("sort", "key", "reverse")
			if err != nil {
				return nil, err
			}
			rev, _ := Truth(p[1])
			return nil, sortValues(in, l.Items, p[0], rev)
		})
	case "reverse":
		return fn(name, func(*Interp, *Args) (Value, error) {
			for i, j := 0, len(l.Items)-1; i < j; i, j = i+1, j-1 {
				l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
			}
			return nil, nil
		})
	case "copy":
		return fn(name, func(*Interp, *Args) (Value, error) {
			return &List{Items: append([]Value(nil), l.Items...)}, nil
		})
	case "clear":
		return fn(name, func(*Interp, *Args) (Value, error) {
			l.Items = nil
			return nil, nil
		})
	}
	return nil
}

func dictMethod(d *Dict, name string) Value {
	switch name {
	case "get":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) < 1 || len(a.Pos) > 2 {
				return nil, typeErrorf("get expected 1 or 2 arguments, got %d", len(a.Pos))
			}
			if v, ok := d.Get(a.Pos[0]); ok {
				return v, nil
			}
			if len(a.Pos) == 2 {
				return a.Pos[1], nil
			}
			return nil, nil
		})
	case "keys":
		return fn(name, func(*Interp, *Args) (Value, error) { return &List{Items: d.Keys()}, nil })
	case "values":
		return fn(name, func(*Interp, *Args) (Value, error) { return &List{Items: d.Values()}, nil })
	case "items":
		return fn(name, func(*Interp, *Args) (Value, error) {
			out := make([]Value, len(d.keys))
			for i, k := range d.keys {
				out[i] = Tuple{k, d.vals[i]}
			}
			return &List{Items: out}, nil
		})
	case "update":
		return fn(name, func(in *Interp, a *Args) (Value, error) {
			src, err := builtinDict(in, a)
			if err != nil {
				return nil, err
			}
			s := src.(*Dict)
			for i, k := range s.keys {
				_ = d.Set(k, s.vals[i])
			}
			return nil, nil
		})
	case "pop":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) < 1 {
				return nil, typeErrorf("pop expected at least 1 argument, got 0")
			}
			if v, ok := d.Get(a.Pos[0]); ok {
				d.Delete(a.Pos[0])
				return v, nil
			}
			if len(a.Pos) > 1 {
				return a.Pos[1], nil
			}
			return nil, keyError(a.Pos[0])
		})
	case "setdefault":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) < 1 {
				return nil, typeErrorf("setdefault expected at least 1 argument, got 0")
			}
			if v, ok := d.Get(a.Pos[0]); ok {
				return v, nil
			}
			var def Value
			if len(a.Pos) > 1 {
				def = a.Pos[1]
			}
			return def, d.Set(a.Pos[0], def)
		})
	case "copy":
		return fn(name, func(*Interp, *Args) (Value, error) {
			out := NewDict()
			for i, k := range d.keys {
				_ = out.Set(k, d.vals[i])
			}
			return out, nil
		})
	}
	return nil
}

func timeAttr(t time.Time, name string) Value {
	switch name {
	case "year":
		return float64(t.Year())
	case "month":
		return float64(t.Month())
	case "day":
		return float64(t.Day())
	case "hour":
		return float64(t.Hour())
	case "minute":
		return float64(t.Minute())
	case "second":
		return float64(t.Second())
	case "dayofweek", "day_of_week":
		return float64((int(t.Weekday()) + 6) % 7)
	case "dayofyear", "day_of_year":
		return float64(t.YearDay())
	case "quarter":
		return float64((int(t.Month())-1)/3 + 1)
	case "weekday":
		return fn(name, func(*Interp, *Args) (Value, error) { return float64((int(t.Weekday()) + 6) % 7), nil })
	case "date", "normalize":
		return fn(name, func(*Interp, *Args) (Value, error) {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
		})
	case "strftime":
		return fn(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 1 {
				return nil, typeErrorf("strftime() takes exactly one argument (%d given)", len(a.Pos))
			}
			return Strftime(t, Str(a.Pos[0])), nil
		})
	case "isoformat":
		return fn(name, func(*Interp, *Args) (Value, error) { return t.Format("2006-01-02T15:04:05"), nil })
	case "month_name":
		return fn(name, func(*Interp, *Args) (Value, error) { return t.Month().String(), nil })
	case "day_name":
		return fn(name, func(*Interp, *Args) (Value, error) { return t.Weekday().String(), nil })
	}
	return nil
}
