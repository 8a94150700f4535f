package snippet

import (
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

// Series is a labelled one-dimensional vector of cells.
type Series struct {
	Name   string
	Values []Value
	Index  *Index

	// parent and column let inplace methods write back into the frame the
	// series was read from.
	parent *Frame
	column string
	// isIndex marks df.columns / df.index, whose "in" tests values.
	isIndex bool
}

// NewSeries builds an unlabelled series, normalising cells.
func NewSeries(name string, values []Value) *Series {
	out := make([]Value, len(values))
	for i, v := range values {
		out[i] = dataset.Normalize(v)
	}
	return &Series{Name: name, Values: out}
}

func (s *Series) TypeName() string {
	if s.isIndex {
		return "Index"
	}
	return "Series"
}

func (s *Series) Len() int { return len(s.Values) }

func (s *Series) Kind() dataset.Kind { return dataset.InferKind(s.Values) }

func (s *Series) Truth() (bool, error) {
	return false, valueErrorf("The truth value of a %s is ambiguous. Use a.empty, a.bool(), a.item(), a.any() or a.all().", s.TypeName())
}

func (s *Series) Iterate() ([]Value, error) {
	return append([]Value(nil), s.Values...), nil
}

func (s *Series) Contains(v Value) (bool, error) {
	if s.isIndex {
		return containsValue(s.Values, v), nil
	}
	if s.Index == nil {
		i, err := ToInt(v)
		return err == nil && i >= 0 && i < len(s.Values), nil
	}
	return len(s.Index.Find(v, len(s.Values))) > 0, nil
}

// derive returns a new series sharing labels and name with s.
func (s *Series) derive(values []Value) *Series {
	for i, v := range values {
		values[i] = dataset.Normalize(v)
	}
	return &Series{Name: s.Name, Values: values, Index: s.Index, isIndex: s.isIndex}
}

func (s *Series) take(rows []int) *Series {
	vals := make([]Value, len(rows))
	for i, r := range rows {
		vals[i] = s.Values[r]
	}
	return &Series{Name: s.Name, Values: vals, Index: takeIndex(s.Index, rows), isIndex: s.isIndex}
}

// writeBack propagates an inplace change to the frame column it came from.
func (s *Series) writeBack() error {
	if s.parent == nil {
		return nil
	}
	return s.parent.setColumn(s.column, append([]Value(nil), s.Values...))
}

func (s *Series) dtype() string {
	switch s.Kind() {
	case dataset.KindNumeric:
		for _, v := range s.Values {
			if v == nil {
				return "float64"
			}
			if f, ok := v.(float64); ok && !integral(f) {
				return "float64"
			}
		}
		return "int64"
	case dataset.KindBool:
		return "bool"
	case dataset.KindTemporal:
		return "datetime64[ns]"
	}
	return "object"
}

func (s *Series) Str() string {
	var b strings.Builder
	for _, i := range previewRows(len(s.Values)) {
		if i < 0 {
			b.WriteString("...\n")
			continue
		}
		b.WriteString(Str(s.Index.Label(i)) + "    " + cellStr(s.Values[i]) + "\n")
	}
	if s.Name != "" {
		b.WriteString("Name: " + s.Name + ", ")
	}
	b.WriteString("dtype: " + s.dtype())
	return b.String()
}

// previewRows lists the rows printed for a long vector; -1 marks the elision.
func previewRows(n int) []int {
	var rows []int
	for i := 0; i < n; i++ {
		if n > 25 && i == 20 {
			rows = append(rows, -1)
			i = n - 6
			continue
		}
		rows = append(rows, i)
	}
	return rows
}

func cellStr(v Value) string {
	if v == nil {
		return "NaN"
	}
	return Str(v)
}

// mask interprets key as a boolean selector of length n.
func boolMask(key Value, n int) ([]bool, bool, error) {
	var vals []Value
	switch k := key.(type) {
	case *Series:
		if k.Kind() != dataset.KindBool && len(present(k.Values)) > 0 {
			return nil, false, nil
		}
		vals = k.Values
	case *List:
		if len(k.Items) == 0 {
			return nil, false, nil
		}
		for _, it := range k.Items {
			if _, ok := it.(bool); !ok {
				return nil, false, nil
			}
		}
		vals = k.Items
	default:
		return nil, false, nil
	}
	if len(vals) != n {
		return nil, true, Errorf("IndexError", "Boolean index has wrong length: %d instead of %d", len(vals), n)
	}
	out := make([]bool, n)
	for i, v := range vals {
		b, _ := v.(bool)
		out[i] = b
	}
	return out, true, nil
}

func maskRows(mask []bool) []int {
	var rows []int
	for i, ok := range mask {
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// locate resolves a label (or a position for unlabelled series).
func (s *Series) locate(key Value) (int, error) {
	if s.Index != nil {
		if pos := s.Index.Find(key, len(s.Values)); len(pos) > 0 {
			return pos[0], nil
		}
	}
	if i, err := ToInt(key); err == nil {
		if _, isBool := key.(bool); !isBool {
			if s.Index == nil && i >= 0 && i < len(s.Values) {
				return i, nil
			}
			if s.Index != nil {
				if i < 0 {
					i += len(s.Values)
				}
				if i >= 0 && i < len(s.Values) {
					return i, nil
				}
			}
		}
	}
	return 0, keyError(key)
}

func (s *Series) GetItem(key Value) (Value, error) {
	if sl, ok := key.(*SliceVal); ok {
		rows, err := slicePositions(sl, len(s.Values))
		if err != nil {
			return nil, err
		}
		return s.take(rows), nil
	}
	if m, ok, err := boolMask(key, len(s.Values)); ok || err != nil {
		if err != nil {
			return nil, err
		}
		return s.take(maskRows(m)), nil
	}
	if l, ok := key.(*List); ok {
		rows := make([]int, len(l.Items))
		for i, k := range l.Items {
			r, err := s.locate(k)
			if err != nil {
				return nil, err
			}
			rows[i] = r
		}
		return s.take(rows), nil
	}
	i, err := s.locate(key)
	if err != nil {
		return nil, err
	}
	return s.Values[i], nil
}

func (s *Series) SetItem(key, v Value) error {
	if s.isIndex {
		return typeErrorf("Index does not support mutable operations")
	}
	var rows []int
	if m, ok, err := boolMask(key, len(s.Values)); ok || err != nil {
		if err != nil {
			return err
		}
		rows = maskRows(m)
	} else if sl, ok := key.(*SliceVal); ok {
		var err error
		if rows, err = slicePositions(sl, len(s.Values)); err != nil {
			return err
		}
	} else {
		i, err := s.locate(key)
		if err != nil {
			return err
		}
		rows = []int{i}
	}
	vals, err := broadcast(v, len(rows), len(s.Values), rows)
	if err != nil {
		return err
	}
	for i, r := range rows {
		s.Values[r] = dataset.Normalize(vals[i])
	}
	return s.writeBack()
}

// broadcast expands v to the selected rows: scalars repeat, full-length
// vectors are indexed by row, selection-length vectors map in order.
func broadcast(v Value, selected, total int, rows []int) ([]Value, error) {
	var vec []Value
	switch x := v.(type) {
	case *Series:
		vec = x.Values
	case *List:
		vec = x.Items
	case Tuple:
		vec = x
	default:
		out := make([]Value, selected)
		for i := range out {
			out[i] = v
		}
		return out, nil
	}
	switch len(vec) {
	case selected:
		return append([]Value(nil), vec...), nil
	case total:
		out := make([]Value, selected)
		for i, r := range rows {
			out[i] = vec[r]
		}
		return out, nil
	}
	return nil, valueErrorf("Length of values (%d) does not match length of index (%d)", len(vec), selected)
}

// elementwise applies op between s and other (scalar or same-length vector).
func (s *Series) elementwise(other Value, reflected bool, f func(a, b Value) (Value, error)) (*Series, error) {
	var vec []Value
	switch o := other.(type) {
	case *Series:
		vec = o.Values
	case *List:
		vec = o.Items
	case *Frame:
		return nil, errNotImplemented
	}
	if vec != nil && len(vec) != len(s.Values) {
		return nil, valueErrorf("operands could not be broadcast together with shapes (%d,) (%d,)", len(s.Values), len(vec))
	}
	out := make([]Value, len(s.Values))
	for i, a := range s.Values {
		b := other
		if vec != nil {
			b = vec[i]
		}
		if reflected {
			a, b = b, a
		}
		v, err := f(a, b)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	res := s.derive(out)
	if o, ok := other.(*Series); ok && o.Name != s.Name {
		res.Name = ""
	}
	res.isIndex = false
	return res, nil
}

// cellArith computes one element: missing operands propagate, division by
// zero yields inf or missing rather than a fault.
func cellArith(op string, a, b Value) (Value, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch op {
			case "/":
				return x / y, nil
			case "//":
				if y == 0 {
					return x / y, nil
				}
				return math.Floor(x / y), nil
			case "%":
				if y == 0 {
					return nil, nil
				}
				return pyMod(x, y), nil
			case "**":
				return math.Pow(x, y), nil
			}
		}
	}
	return scalarOp(op, a, b)
}

func cellCompare(op string, a, b Value) (Value, error) {
	if a == nil || b == nil {
		return op == "!=", nil
	}
	switch op {
	case "==":
		return Equal(a, b), nil
	case "!=":
		return !Equal(a, b), nil
	}
	return compareScalars(op, a, b)
}

func cellLogic(op string, a, b Value) (Value, error) {
	x, _ := Truth(a)
	y, _ := Truth(b)
	if _, ok := a.(float64); ok {
		if _, ok := b.(float64); ok {
			return scalarOp(op, a, b)
		}
	}
	switch op {
	case "&":
		return x && y, nil
	case "|":
		return x || y, nil
	}
	return x != y, nil
}

func (s *Series) BinOp(op string, other Value, reflected bool) (Value, error) {
	var f func(a, b Value) (Value, error)
	switch op {
	case "+", "-", "*", "/", "//", "%", "**":
		f = func(a, b Value) (Value, error) { return cellArith(op, a, b) }
	case "==", "!=", "<", "<=", ">", ">=":
		f = func(a, b Value) (Value, error) { return cellCompare(op, a, b) }
	case "&", "|", "^":
		f = func(a, b Value) (Value, error) { return cellLogic(op, a, b) }
	default:
		return nil, errNotImplemented
	}
	return s.elementwise(other, reflected, f)
}

func (s *Series) UnaryOp(op string) (Value, error) {
	out := make([]Value, len(s.Values))
	for i, v := range s.Values {
		if v == nil {
			continue
		}
		if b, ok := v.(bool); ok && op == "~" {
			out[i] = !b
			continue
		}
		r, err := UnaryOperation(op, v)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return s.derive(out), nil
}

func (s *Series) floats(op string) ([]float64, error) { return numbers(s.Values, op) }

// map applies f to every present cell; missing cells stay missing.
func (s *Series) mapValues(f func(Value) (Value, error)) (*Series, error) {
	out := make([]Value, len(s.Values))
	for i, v := range s.Values {
		if v == nil {
			continue
		}
		r, err := f(v)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return s.derive(out), nil
}

func (s *Series) labels() []Value { return s.Index.Labels(len(s.Values)) }

// indexSeries exposes labels as an Index value.
func indexSeries(name string, labels []Value) *Series {
	return &Series{Name: name, Values: labels, isIndex: true}
}

func (s *Series) method(name string, f func(in *Interp, a *Args) (Value, error)) *Builtin {
	return &Builtin{Name: name, Fn: f}
}

// reducer builds a no-argument aggregation method accepting pandas' usual keywords.
func (s *Series) reducer(name string) *Builtin {
	return s.method(name, func(_ *Interp, a *Args) (Value, error) {
		p, err := a.Bind(name, "axis", "skipna", "numeric_only", "ddof", "**")
		if err != nil {
			return nil, err
		}
		if (name == "std" || name == "var") && p[3] != nil {
			ddof, err := ToInt(p[3])
			if err != nil {
				return nil, err
			}
			return stdDdof(s.Values, ddof, name == "var")
		}
		return reduce(name, s.Values)
	})
}

func stdDdof(vals []Value, ddof int, variance bool) (Value, error) {
	nums, err := numbers(vals, "-")
	if err != nil {
		return nil, err
	}
	if len(nums)-ddof <= 0 {
		return math.NaN(), nil
	}
	m := dataset.Mean(nums)
	var ss float64
	for _, x := range nums {
		ss += (x - m) * (x - m)
	}
	v := ss / float64(len(nums)-ddof)
	if variance {
		return v, nil
	}
	return math.Sqrt(v), nil
}

func inplace(a *Args) bool {
	v, _ := a.Kwarg("inplace")
	ok, _ := Truth(v)
	return ok
}

// replaceInPlace swaps s's contents for r and writes back.
func (s *Series) replaceInPlace(r *Series) (Value, error) {
	s.Values, s.Index = r.Values, r.Index
	return nil, s.writeBack()
}

func (s *Series) GetAttr(name string) (Value, error) {
	switch name {
	case "name":
		if s.Name == "" {
			return nil, nil
		}
		return s.Name, nil
	case "values", "array":
		return &List{Items: append([]Value(nil), s.Values...)}, nil
	case "index":
		if s.Index == nil {
			return indexSeries("", s.labels()), nil
		}
		name := ""
		if len(s.Index.Names) == 1 {
			name = s.Index.Names[0]
		}
		return indexSeries(name, s.labels()), nil
	case "dtype":
		return s.dtype(), nil
	case "empty":
		return len(s.Values) == 0, nil
	case "size":
		return float64(len(s.Values)), nil
	case "shape":
		return Tuple{float64(len(s.Values))}, nil
	case "hasnans":
		return len(present(s.Values)) < len(s.Values), nil
	case "is_unique":
		return len(unique(s.Values)) == len(s.Values), nil
	case "str":
		for _, v := range s.Values {
			if _, ok := v.(string); v != nil && !ok {
				return nil, Errorf("AttributeError", "Can only use .str accessor with string values!")
			}
		}
		return &StrAccessor{s: s}, nil
	case "dt":
		if s.Kind() != dataset.KindTemporal {
			return nil, Errorf("AttributeError", "Can only use .dt accessor with datetimelike values")
		}
		return &DtAccessor{s: s}, nil
	case "iloc":
		return &seriesIndexer{s: s, positional: true}, nil
	case "loc":
		return &seriesIndexer{s: s}, nil
	case "sum", "mean", "median", "min", "max", "std", "var", "count", "nunique", "prod", "any", "all":
		if name == "nunique" {
			return s.method(name, func(_ *Interp, a *Args) (Value, error) {
				if _, err := a.Bind(name, "dropna"); err != nil {
					return nil, err
				}
				return reduce(name, s.Values)
			}), nil
		}
		return s.reducer(name), nil
	case "item":
		return s.method(name, func(*Interp, *Args) (Value, error) {
			if len(s.Values) != 1 {
				return nil, valueErrorf("can only convert an array of size 1 to a Python scalar")
			}
			return s.Values[0], nil
		}), nil
	case "bool":
		return s.method(name, func(*Interp, *Args) (Value, error) {
			if len(s.Values) != 1 {
				return nil, valueErrorf("The truth value of a Series is ambiguous. Use a.empty, a.bool(), a.item(), a.any() or a.all().")
			}
			return Truth(s.Values[0])
		}), nil
	case "unique":
		return s.method(name, func(*Interp, *Args) (Value, error) {
			return &List{Items: unique(s.Values)}, nil
		}), nil
	case "tolist", "to_list":
		return s.method(name, func(*Interp, *Args) (Value, error) {
			return &List{Items: append([]Value(nil), s.Values...)}, nil
		}), nil
	case "to_dict":
		return s.method(name, func(*Interp, *Args) (Value, error) {
			d := NewDict()
			for i, v := range s.Values {
				if err := d.Set(s.Index.Label(i), v); err != nil {
					return nil, err
				}
			}
			return d, nil
		}), nil
	case "copy":
		return s.method(name, func(*Interp, *Args) (Value, error) {
			return s.derive(append([]Value(nil), s.Values...)), nil
		}), nil
	case "head", "tail":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "n")
			if err != nil {
				return nil, err
			}
			n := 5
			if p[0] != nil {
				if n, err = ToInt(p[0]); err != nil {
					return nil, err
				}
			}
			return s.take(headTail(len(s.Values), n, name == "tail")), nil
		}), nil
	case "isnull", "isna", "notnull", "notna":
		want := name == "isnull" || name == "isna"
		return s.method(name, func(*Interp, *Args) (Value, error) {
			out := make([]Value, len(s.Values))
			for i, v := range s.Values {
				out[i] = (v == nil) == want
			}
			return s.derive(out), nil
		}), nil
	case "dropna":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			var rows []int
			for i, v := range s.Values {
				if v != nil {
					rows = append(rows, i)
				}
			}
			r := s.take(rows)
			if inplace(a) {
				return s.replaceInPlace(r)
			}
			return r, nil
		}), nil
	case "fillna":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "value", "method", "inplace", "**")
			if err != nil {
				return nil, err
			}
			var r *Series
			switch m, _ := p[1].(string); m {
			case "ffill", "pad":
				r = s.fillDirectional(false)
			case "bfill", "backfill":
				r = s.fillDirectional(true)
			default:
				out := append([]Value(nil), s.Values...)
				fills, err := fillVector(p[0], len(out))
				if err != nil {
					return nil, err
				}
				for i, v := range out {
					if v == nil {
						out[i] = fills[i]
					}
				}
				r = s.derive(out)
			}
			if inplace(a) {
				return s.replaceInPlace(r)
			}
			return r, nil
		}), nil
	case "ffill", "bfill":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			r := s.fillDirectional(name == "bfill")
			if inplace(a) {
				return s.replaceInPlace(r)
			}
			return r, nil
		}), nil
	case "astype":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "dtype", "errors", "copy")
			if err != nil {
				return nil, err
			}
			return astype(s, p[0])
		}), nil
	case "round":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "decimals")
			if err != nil {
				return nil, err
			}
			n := 0
			if p[0] != nil {
				if n, err = ToInt(p[0]); err != nil {
					return nil, err
				}
			}
			return s.mapValues(func(v Value) (Value, error) {
				f, ok := toFloat(v)
				if !ok {
					return nil, typeErrorf("can't round a %s", TypeName(v))
				}
				return RoundHalfEven(f, n), nil
			})
		}), nil
	case "abs":
		return s.method(name, func(*Interp, *Args) (Value, error) {
			return s.mapValues(func(v Value) (Value, error) {
				f, ok := toFloat(v)
				if !ok {
					return nil, typeErrorf("bad operand type for abs(): '%s'", TypeName(v))
				}
				return math.Abs(f), nil
			})
		}), nil
	case "apply", "map":
		return s.method(name, func(in *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "func", "na_action", "**")
			if err != nil {
				return nil, err
			}
			if d, ok := p[0].(*Dict); ok {
				out := make([]Value, len(s.Values))
				for i, v := range s.Values {
					out[i], _ = d.Get(v)
				}
				return s.derive(out), nil
			}
			if ms, ok := p[0].(*Series); ok {
				out := make([]Value, len(s.Values))
				for i, v := range s.Values {
					if pos := ms.Index.Find(v, len(ms.Values)); len(pos) > 0 {
						out[i] = ms.Values[pos[0]]
					}
				}
				return s.derive(out), nil
			}
			skipNA := p[1] != nil
			out := make([]Value, len(s.Values))
			for i, v := range s.Values {
				if v == nil && skipNA {
					continue
				}
				arg := v
				if v == nil {
					arg = math.NaN()
				}
				r, err := in.Call(p[0], arg)
				if err != nil {
					return nil, err
				}
				out[i] = r
			}
			return s.derive(out), nil
		}), nil
	case "isin":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 1 {
				return nil, typeErrorf("isin() takes exactly one argument (%d given)", len(a.Pos))
			}
			items, err := Iterate(a.Pos[0])
			if err != nil {
				return nil, typeErrorf("only list-like objects are allowed to be passed to isin(), you passed a `%s`", TypeName(a.Pos[0]))
			}
			out := make([]Value, len(s.Values))
			for i, v := range s.Values {
				out[i] = v != nil && containsValue(items, v)
			}
			return s.derive(out), nil
		}), nil
	case "between":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "left", "right", "inclusive")
			if err != nil {
				return nil, err
			}
			incl := "both"
			if p[2] != nil {
				incl = Str(p[2])
			}
			out := make([]Value, len(s.Values))
			for i, v := range s.Values {
				if v == nil {
					out[i] = false
					continue
				}
				lo, err := Compare(">=", v, p[0])
				if err != nil {
					return nil, err
				}
				hi, err := Compare("<=", v, p[1])
				if err != nil {
					return nil, err
				}
				okLo := lo > 0 || (lo == 0 && (incl == "both" || incl == "left"))
				okHi := hi < 0 || (hi == 0 && (incl == "both" || incl == "right"))
				out[i] = okLo && okHi
			}
			return s.derive(out), nil
		}), nil
	case "clip":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "lower", "upper")
			if err != nil {
				return nil, err
			}
			return s.mapValues(func(v Value) (Value, error) { return clipValue(v, p[0], p[1]) })
		}), nil
	case "replace":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "to_replace", "value", "inplace", "regex")
			if err != nil {
				return nil, err
			}
			r, err := replaceValues(s, p[0], p[1])
			if err != nil {
				return nil, err
			}
			if inplace(a) {
				return s.replaceInPlace(r)
			}
			return r, nil
		}), nil
	case "where", "mask":
		return s.method(name, func(in *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "cond", "other")
			if err != nil {
				return nil, err
			}
			cond := p[0]
			if _, ok := cond.(*Closure); ok {
				if cond, err = in.Call(cond, s); err != nil {
					return nil, err
				}
			}
			m, ok, err := boolMask(cond, len(s.Values))
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, valueErrorf("Array conditional must be same shape as self")
			}
			others, err := fillVector(p[1], len(s.Values))
			if err != nil {
				return nil, err
			}
			out := make([]Value, len(s.Values))
			for i, keep := range m {
				if keep == (name == "where") {
					out[i] = s.Values[i]
				} else {
					out[i] = others[i]
				}
			}
			return s.derive(out), nil
		}), nil
	case "value_counts":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "normalize", "sort", "ascending", "dropna")
			if err != nil {
				return nil, err
			}
			return s.valueCounts(p[0], p[1], p[2], p[3])
		}), nil
	case "mode":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			vc, err := s.valueCounts(nil, nil, nil, nil)
			if err != nil {
				return nil, err
			}
			var out []Value
			for i, c := range vc.Values {
				if Equal(c, vc.Values[0]) {
					out = append(out, vc.Index.Label(i))
				}
			}
			order := stableOrder([][]Value{out}, []bool{true})
			sorted := make([]Value, len(out))
			for i, j := range order {
				sorted[i] = out[j]
			}
			return &Series{Name: s.Name, Values: sorted}, nil
		}), nil
	case "sort_values":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "ascending", "inplace", "na_position", "**")
			if err != nil {
				return nil, err
			}
			asc := true
			if p[0] != nil {
				asc, _ = Truth(p[0])
			}
			r := s.take(stableOrder([][]Value{s.Values}, []bool{asc}))
			if inplace(a) {
				return s.replaceInPlace(r)
			}
			return r, nil
		}), nil
	case "sort_index":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "ascending", "inplace", "**")
			if err != nil {
				return nil, err
			}
			asc := true
			if p[0] != nil {
				asc, _ = Truth(p[0])
			}
			return s.take(stableOrder([][]Value{s.labels()}, []bool{asc})), nil
		}), nil
	case "nlargest", "nsmallest":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "n", "keep")
			if err != nil {
				return nil, err
			}
			n := 5
			if p[0] != nil {
				if n, err = ToInt(p[0]); err != nil {
					return nil, err
				}
			}
			order := stableOrder([][]Value{s.Values}, []bool{name == "nsmallest"})
			var rows []int
			for _, r := range order {
				if len(rows) == n {
					break
				}
				if s.Values[r] != nil {
					rows = append(rows, r)
				}
			}
			return s.take(rows), nil
		}), nil
	case "idxmax", "idxmin":
		return s.method(name, func(*Interp, *Args) (Value, error) {
			best := -1
			for i, v := range s.Values {
				if v == nil {
					continue
				}
				if best < 0 {
					best = i
					continue
				}
				c, err := Compare("<", v, s.Values[best])
				if err != nil {
					return nil, err
				}
				if (name == "idxmax" && c > 0) || (name == "idxmin" && c < 0) {
					best = i
				}
			}
			if best < 0 {
				return nil, valueErrorf("attempt to get %s of an empty sequence", strings.TrimPrefix(name, "idx"))
			}
			return s.Index.Label(best), nil
		}), nil
	case "quantile":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "q", "**")
			if err != nil {
				return nil, err
			}
			if p[0] == nil {
				return quantileOf(s.Values, 0.5)
			}
			if l, ok := p[0].(*List); ok {
				out := make([]Value, len(l.Items))
				for i, q := range l.Items {
					f, err := ToFloat(q)
					if err != nil {
						return nil, err
					}
					if out[i], err = quantileOf(s.Values, f); err != nil {
						return nil, err
					}
				}
				return &Series{Name: s.Name, Values: out, Index: NewIndex("", l.Items)}, nil
			}
			q, err := ToFloat(p[0])
			if err != nil {
				return nil, err
			}
			return quantileOf(s.Values, q)
		}), nil
	case "cumsum", "cummax", "cummin":
		return s.method(name, func(*Interp, *Args) (Value, error) {
			out := make([]Value, len(s.Values))
			var acc float64
			started := false
			for i, v := range s.Values {
				f, ok := toFloat(v)
				if !ok {
					if v != nil {
						return nil, typeErrorf("could not convert %s to numeric", Repr(v))
					}
					continue
				}
				switch {
				case !started:
					acc = f
				case name == "cumsum":
					acc += f
				case name == "cummax":
					acc = math.Max(acc, f)
				default:
					acc = math.Min(acc, f)
				}
				started = true
				out[i] = acc
			}
			return s.derive(out), nil
		}), nil
	case "diff", "pct_change", "shift":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "periods", "**")
			if err != nil {
				return nil, err
			}
			n := 1
			if p[0] != nil {
				if n, err = ToInt(p[0]); err != nil {
					return nil, err
				}
			}
			return s.lagged(name, n)
		}), nil
	case "rolling":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "window", "min_periods", "center", "**")
			if err != nil {
				return nil, err
			}
			w, err := ToInt(p[0])
			if err != nil || w <= 0 {
				return nil, valueErrorf("window must be an integer 0 or greater")
			}
			minP := w
			if p[1] != nil {
				if minP, err = ToInt(p[1]); err != nil {
					return nil, err
				}
			}
			return &Rolling{s: s, window: w, minPeriods: minP}, nil
		}), nil
	case "duplicated":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "keep")
			if err != nil {
				return nil, err
			}
			dup := duplicateMask(len(s.Values), func(i int) Value { return s.Values[i] }, p[0])
			out := make([]Value, len(dup))
			for i, d := range dup {
				out[i] = d
			}
			return s.derive(out), nil
		}), nil
	case "drop_duplicates":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "keep", "inplace")
			if err != nil {
				return nil, err
			}
			dup := duplicateMask(len(s.Values), func(i int) Value { return s.Values[i] }, p[0])
			var rows []int
			for i, d := range dup {
				if !d {
					rows = append(rows, i)
				}
			}
			return s.take(rows), nil
		}), nil
	case "rename":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "index", "**")
			if err != nil {
				return nil, err
			}
			r := s.derive(append([]Value(nil), s.Values...))
			if p[0] != nil {
				r.Name = Str(p[0])
			}
			return r, nil
		}), nil
	case "reset_index":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "level", "drop", "name", "inplace")
			if err != nil {
				return nil, err
			}
			if drop, _ := Truth(p[1]); drop {
				return &Series{Name: s.Name, Values: append([]Value(nil), s.Values...)}, nil
			}
			colName := s.Name
			if p[2] != nil {
				colName = Str(p[2])
			}
			if colName == "" {
				colName = "0"
			}
			return s.toFrame(colName).ResetIndex(), nil
		}), nil
	case "to_frame":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "name")
			if err != nil {
				return nil, err
			}
			colName := s.Name
			if p[0] != nil {
				colName = Str(p[0])
			}
			if colName == "" {
				colName = "0"
			}
			return s.toFrame(colName), nil
		}), nil
	case "corr":
		return s.method(name, func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "other", "method")
			if err != nil {
				return nil, err
			}
			o, ok := p[0].(*Series)
			if !ok {
				return nil, typeErrorf("other must be a Series")
			}
			return pearson(s.Values, o.Values), nil
		}), nil
	case "describe":
		return s.method(name, func(*Interp, *Args) (Value, error) { return s.describe() }), nil
	}
	return nil, attrError(s, name)
}

func headTail(n, k int, tail bool) []int {
	if k < 0 {
		k = max(n+k, 0)
	}
	k = min(k, n)
	rows := make([]int, k)
	for i := range rows {
		if tail {
			rows[i] = n - k + i
		} else {
			rows[i] = i
		}
	}
	return rows
}

func fillVector(v Value, n int) ([]Value, error) {
	out := make([]Value, n)
	switch x := v.(type) {
	case *Series:
		if len(x.Values) != n {
			return nil, valueErrorf("Length of values (%d) does not match length of index (%d)", len(x.Values), n)
		}
		copy(out, x.Values)
	default:
		for i := range out {
			out[i] = v
		}
	}
	return out, nil
}

func (s *Series) fillDirectional(backward bool) *Series {
	out := append([]Value(nil), s.Values...)
	if backward {
		var last Value
		for i := len(out) - 1; i >= 0; i-- {
			if out[i] == nil {
				out[i] = last
			} else {
				last = out[i]
			}
		}
	} else {
		var last Value
		for i := range out {
			if out[i] == nil {
				out[i] = last
			} else {
				last = out[i]
			}
		}
	}
	return s.derive(out)
}

func clipValue(v, lo, hi Value) (Value, error) {
	if lo != nil {
		c, err := Compare("<", v, lo)
		if err != nil {
			return nil, err
		}
		if c < 0 {
			v = lo
		}
	}
	if hi != nil {
		c, err := Compare(">", v, hi)
		if err != nil {
			return nil, err
		}
		if c > 0 {
			v = hi
		}
	}
	return v, nil
}

func replaceValues(s *Series, from, to Value) (*Series, error) {
	out := append([]Value(nil), s.Values...)
	if d, ok := from.(*Dict); ok {
		for i, v := range out {
			if r, ok := d.Get(v); ok {
				out[i] = r
			}
		}
		return s.derive(out), nil
	}
	targets := []Value{from}
	if l, ok := from.(*List); ok {
		targets = l.Items
	}
	var repl []Value
	if l, ok := to.(*List); ok {
		if len(l.Items) != len(targets) {
			return nil, valueErrorf("Replacement lists must match in length. Expecting %d got %d", len(targets), len(l.Items))
		}
		repl = l.Items
	}
	for i, v := range out {
		for j, t := range targets {
			if Equal(v, t) || (v == nil && isNaN(t)) {
				if repl != nil {
					out[i] = repl[j]
				} else {
					out[i] = to
				}
				break
			}
		}
	}
	return s.derive(out), nil
}

func isNaN(v Value) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

func (s *Series) valueCounts(normalize, doSort, ascending, dropna Value) (*Series, error) {
	keepNA := false
	if dropna != nil {
		d, _ := Truth(dropna)
		keepNA = !d
	}
	counts := NewDict()
	var order []Value
	for _, v := range s.Values {
		if v == nil && !keepNA {
			continue
		}
		c, ok := counts.Get(v)
		if !ok {
			order = append(order, v)
			c = 0.0
		}
		if err := counts.Set(v, c.(float64)+1); err != nil {
			return nil, err
		}
	}
	vals := make([]Value, len(order))
	total := 0.0
	for i, k := range order {
		c, _ := counts.Get(k)
		vals[i] = c
		total += c.(float64)
	}
	if norm, _ := Truth(normalize); norm && total > 0 {
		for i := range vals {
			vals[i] = vals[i].(float64) / total
		}
	}
	sortIt := true
	if doSort != nil {
		sortIt, _ = Truth(doSort)
	}
	asc := false
	if ascending != nil {
		asc, _ = Truth(ascending)
	}
	rows := make([]int, len(order))
	for i := range rows {
		rows[i] = i
	}
	if sortIt {
		rows = stableOrder([][]Value{vals}, []bool{asc})
	}
	name := "count"
	if norm, _ := Truth(normalize); norm {
		name = "proportion"
	}
	out := &Series{Name: name, Values: make([]Value, len(rows)), Index: &Index{Names: []string{s.Name}, Keys: make([][]Value, len(rows))}}
	for i, r := range rows {
		out.Values[i] = vals[r]
		out.Index.Keys[i] = []Value{order[r]}
	}
	return out, nil
}

func (s *Series) lagged(kind string, n int) (*Series, error) {
	out := make([]Value, len(s.Values))
	for i := range s.Values {
		j := i - n
		if j < 0 || j >= len(s.Values) {
			continue
		}
		cur, prev := s.Values[i], s.Values[j]
		switch kind {
		case "shift":
			out[i] = prev
		default:
			if cur == nil || prev == nil {
				continue
			}
			a, okA := toFloat(cur)
			b, okB := toFloat(prev)
			if !okA || !okB {
				if kind == "diff" {
					d, err := BinaryOp("-", cur, prev)
					if err != nil {
						return nil, err
					}
					out[i] = d
					continue
				}
				return nil, typeErrorf("unsupported operand type(s) for /: '%s' and '%s'", TypeName(cur), TypeName(prev))
			}
			if kind == "diff" {
				out[i] = a - b
			} else if b != 0 {
				out[i] = a/b - 1
			}
		}
	}
	return s.derive(out), nil
}

func (s *Series) toFrame(colName string) *Frame {
	ds := dataset.New("")
	ds.Columns = []*dataset.Column{dataset.NewColumn(colName, append([]Value(nil), s.Values...))}
	return &Frame{Data: ds, Index: s.Index}
}

func (s *Series) describe() (Value, error) {
	nums, err := s.floats("-")
	if err != nil {
		p := present(s.Values)
		vc, _ := s.valueCounts(nil, nil, nil, nil)
		top, freq := Value(nil), Value(nil)
		if len(vc.Values) > 0 {
			top, freq = vc.Index.Label(0), vc.Values[0]
		}
		labels := []Value{"count", "unique", "top", "freq"}
		return &Series{Name: s.Name, Values: []Value{float64(len(p)), float64(len(unique(p))), top, freq}, Index: NewIndex("", labels)}, nil
	}
	sorted := dataset.Sorted(nums)
	stat := func(q float64) Value {
		if len(sorted) == 0 {
			return nil
		}
		return dataset.Quantile(sorted, q)
	}
	labels := []Value{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	vals := []Value{float64(len(nums)), dataset.Mean(nums), dataset.Std(nums), stat(0), stat(0.25), stat(0.5), stat(0.75), stat(1)}
	return NewSeries(s.Name, vals).withIndex(NewIndex("", labels)), nil
}

func (s *Series) withIndex(ix *Index) *Series {
	s.Index = ix
	return s
}

func pearson(a, b []Value) Value {
	var xs, ys []float64
	for i := 0; i < len(a) && i < len(b); i++ {
		x, okX := toFloat(a[i])
		y, okY := toFloat(b[i])
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	mx, my := dataset.Mean(xs), dataset.Mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		sxy += (xs[i] - mx) * (ys[i] - my)
		sxx += (xs[i] - mx) * (xs[i] - mx)
		syy += (ys[i] - my) * (ys[i] - my)
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// duplicateMask flags repeated keys; keep is "first" (default), "last" or False.
func duplicateMask(n int, key func(int) Value, keep Value) []bool {
	mode := "first"
	switch k := keep.(type) {
	case string:
		mode = k
	case bool:
		if !k {
			mode = "none"
		}
	}
	counts := map[any]int{}
	hashes := make([]any, n)
	for i := 0; i < n; i++ {
		h, err := hashKey(key(i))
		if err != nil {
			h = Repr(key(i))
		}
		hashes[i] = h
		counts[h]++
	}
	out := make([]bool, n)
	seen := map[any]int{}
	for i := 0; i < n; i++ {
		h := hashes[i]
		seen[h]++
		switch mode {
		case "last":
			out[i] = seen[h] < counts[h]
		case "none":
			out[i] = counts[h] > 1
		default:
			out[i] = seen[h] > 1
		}
	}
	return out
}

// astype converts cells to the requested dtype.
func astype(s *Series, dtype Value) (*Series, error) {
	target := ""
	switch d := dtype.(type) {
	case string:
		target = d
	case *Builtin:
		target = d.Name
	default:
		return nil, typeErrorf("data type '%s' not understood", Str(dtype))
	}
	switch {
	case target == "str" || target == "string" || target == "object":
		dtype := s.dtype()
		return s.mapValues(func(v Value) (Value, error) {
			if f, ok := v.(float64); ok && target != "object" {
				return pandasFloatStr(f, dtype), nil
			}
			if target == "object" {
				return v, nil
			}
			return Str(v), nil
		})
	case strings.HasPrefix(target, "float"):
		return s.mapValues(func(v Value) (Value, error) {
			switch x := v.(type) {
			case float64, bool:
				f, _ := toFloat(x)
				return f, nil
			case string:
				f, ok := ParseFloatString(x)
				if !ok {
					return nil, valueErrorf("could not convert string to float: %s", quote(x))
				}
				return f, nil
			}
			return nil, typeErrorf("float() argument must be a string or a real number, not '%s'", TypeName(v))
		})
	case strings.HasPrefix(target, "int") || strings.HasPrefix(target, "Int"):
		if len(present(s.Values)) < len(s.Values) && !strings.HasPrefix(target, "Int") {
			return nil, Errorf("IntCastingNaNError", "Cannot convert non-finite values (NA or inf) to integer")
		}
		return s.mapValues(func(v Value) (Value, error) {
			switch x := v.(type) {
			case float64:
				return math.Trunc(x), nil
			case bool:
				f, _ := toFloat(x)
				return f, nil
			case string:
				f, ok := ParseFloatString(x)
				if !ok || !integral(f) {
					return nil, valueErrorf("invalid literal for int() with base 10: %s", quote(x))
				}
				return f, nil
			}
			return nil, typeErrorf("int() argument must be a string or a real number, not '%s'", TypeName(v))
		})
	case target == "bool":
		return s.mapValues(func(v Value) (Value, error) { return Truth(v) })
	case target == "category":
		return s.derive(append([]Value(nil), s.Values...)), nil
	case strings.HasPrefix(target, "datetime"):
		return toDatetime(s, "raise", "")
	}
	return nil, typeErrorf("data type '%s' not understood", target)
}

// pandasFloatStr renders a float column cell like astype(str) does: integer
// columns print without a decimal point, float columns keep ".0".
func pandasFloatStr(f float64, dtype string) string {
	s := formatFloat(f)
	if dtype == "float64" && integral(f) && !strings.ContainsAny(s, "e") {
		return s + ".0"
	}
	return s
}

// seriesIndexer implements s.loc / s.iloc.
type seriesIndexer struct {
	s          *Series
	positional bool
}

func (x *seriesIndexer) TypeName() string {
	if x.positional {
		return "_iLocIndexer"
	}
	return "_LocIndexer"
}

func (x *seriesIndexer) GetItem(key Value) (Value, error) {
	if !x.positional {
		return x.s.GetItem(key)
	}
	if sl, ok := key.(*SliceVal); ok {
		rows, err := slicePositions(sl, len(x.s.Values))
		if err != nil {
			return nil, err
		}
		return x.s.take(rows), nil
	}
	if l, ok := key.(*List); ok {
		rows := make([]int, len(l.Items))
		for i, k := range l.Items {
			r, err := seqIndex(x.s.Values, k, "single positional indexer")
			if err != nil {
				return nil, err
			}
			rows[i] = r
		}
		return x.s.take(rows), nil
	}
	i, err := seqIndex(x.s.Values, key, "single positional indexer")
	if err != nil {
		return nil, Errorf("IndexError", "single positional indexer is out-of-bounds")
	}
	return x.s.Values[i], nil
}

func (x *seriesIndexer) SetItem(key, v Value) error {
	if x.positional {
		i, err := seqIndex(x.s.Values, key, "single positional indexer")
		if err != nil {
			return err
		}
		x.s.Values[i] = dataset.Normalize(v)
		return x.s.writeBack()
	}
	return x.s.SetItem(key, v)
}

// Rolling is a fixed-size moving window over a series.
type Rolling struct {
	s          *Series
	window     int
	minPeriods int
}

func (*Rolling) TypeName() string { return "Rolling" }

func (r *Rolling) GetAttr(name string) (Value, error) {
	switch name {
	case "mean", "sum", "min", "max", "std", "median", "count":
		return &Builtin{Name: name, Fn: func(*Interp, *Args) (Value, error) {
			out := make([]Value, len(r.s.Values))
			for i := range r.s.Values {
				lo := max(0, i-r.window+1)
				win := r.s.Values[lo : i+1]
				if len(present(win)) < r.minPeriods {
					continue
				}
				v, err := reduce(name, win)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return r.s.derive(out), nil
		}}, nil
	}
	return nil, attrError(r, name)
}

// timeOf returns the timestamp in a temporal cell.
func timeOf(v Value) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}
