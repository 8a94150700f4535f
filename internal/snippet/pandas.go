package snippet

import (
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

// Pandas returns the pd module.
func Pandas() *Module {
	types := &Module{Name: "pandas.api.types", Attrs: map[string]Value{
		"is_numeric_dtype":        dtypeCheck("is_numeric_dtype", "int64", "float64", "bool"),
		"is_float_dtype":          dtypeCheck("is_float_dtype", "float64"),
		"is_integer_dtype":        dtypeCheck("is_integer_dtype", "int64"),
		"is_bool_dtype":           dtypeCheck("is_bool_dtype", "bool"),
		"is_string_dtype":         dtypeCheck("is_string_dtype", "object"),
		"is_object_dtype":         dtypeCheck("is_object_dtype", "object"),
		"is_datetime64_any_dtype": dtypeCheck("is_datetime64_any_dtype", "datetime64[ns]"),
		"is_datetime64_dtype":     dtypeCheck("is_datetime64_dtype", "datetime64[ns]"),
	}}
	return &Module{Name: "pandas", Attrs: map[string]Value{
		"DataFrame":   fn("DataFrame", pdDataFrame),
		"Series":      fn("Series", pdSeries),
		"to_datetime": fn("to_datetime", pdToDatetime),
		"to_numeric":  fn("to_numeric", pdToNumeric),
		"concat":      fn("concat", pdConcat),
		"merge":       fn("merge", pdMerge),
		"cut":         fn("cut", pdCut),
		"date_range":  fn("date_range", pdDateRange),
		"isna":        fn("isna", func(in *Interp, a *Args) (Value, error) { return pdIsNA(in, a, true) }),
		"isnull":      fn("isnull", func(in *Interp, a *Args) (Value, error) { return pdIsNA(in, a, true) }),
		"notna":       fn("notna", func(in *Interp, a *Args) (Value, error) { return pdIsNA(in, a, false) }),
		"notnull":     fn("notnull", func(in *Interp, a *Args) (Value, error) { return pdIsNA(in, a, false) }),
		"Timestamp":   fn("Timestamp", pdTimestamp),
		"Timedelta":   fn("Timedelta", pdTimedelta),
		"set_option":  fn("set_option", func(*Interp, *Args) (Value, error) { return nil, nil }),
		"NaT":         nil,
		"NA":          nil,
		"api":         &Module{Name: "pandas.api", Attrs: map[string]Value{"types": types}},
	}}
}

func dtypeCheck(name string, dtypes ...string) *Builtin {
	return fn(name, func(_ *Interp, a *Args) (Value, error) {
		p, err := a.Bind(name, "arr_or_dtype")
		if err != nil {
			return nil, err
		}
		dt := ""
		switch x := p[0].(type) {
		case *Series:
			dt = x.dtype()
		case string:
			dt = x
		default:
			return false, nil
		}
		for _, d := range dtypes {
			if d == dt {
				return true, nil
			}
		}
		return false, nil
	})
}

func pdDataFrame(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("DataFrame", "data", "index", "columns", "dtype", "copy")
	if err != nil {
		return nil, err
	}
	out := newFrame(nil, nil)
	switch data := p[0].(type) {
	case nil:
	case *Frame:
		out = data.copy()
	case *Dict:
		n := -1
		for _, k := range data.Keys() {
			v, _ := data.Get(k)
			if l, err := Length(v); err == nil {
				if _, isStr := v.(string); !isStr {
					if n >= 0 && l != n {
						return nil, valueErrorf("All arrays must be of the same length")
					}
					n = l
				}
			}
		}
		if n < 0 {
			if p[1] == nil {
				return nil, valueErrorf("If using all scalar values, you must pass an index")
			}
			if n, err = Length(p[1]); err != nil {
				return nil, err
			}
		}
		for _, k := range data.Keys() {
			v, _ := data.Get(k)
			var vals []Value
			switch x := v.(type) {
			case string:
				vals = repeatValue(x, n)
			case *List, Tuple, *Series:
				vals, _ = Iterate(x)
			default:
				vals = repeatValue(x, n)
			}
			if err := out.setColumn(Str(k), vals); err != nil {
				return nil, err
			}
		}
	case *List:
		if err := framefromRows(out, data.Items, p[2]); err != nil {
			return nil, err
		}
	case *Series:
		out = data.toFrame(orName(data.Name, "0"))
	default:
		return nil, valueErrorf("DataFrame constructor not properly called!")
	}
	if p[2] != nil {
		if _, isList := p[0].(*List); !isList {
			names, ok := columnNames(p[2])
			if !ok {
				return nil, typeErrorf("columns must be a list of names")
			}
			sel, err := out.selectColumns(names)
			if err != nil {
				return nil, err
			}
			out = sel
		}
	}
	if p[1] != nil {
		if err := out.SetAttr("index", p[1]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func repeatValue(v Value, n int) []Value {
	out := make([]Value, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// framefromRows builds columns from records (dicts) or row lists.
func framefromRows(out *Frame, rows []Value, columns Value) error {
	if len(rows) == 0 {
		if columns != nil {
			names, _ := columnNames(columns)
			for _, n := range names {
				out.mustSet(n, nil)
			}
		}
		return nil
	}
	if _, ok := rows[0].(*Dict); ok {
		var names []string
		seen := map[string]bool{}
		for _, r := range rows {
			d, ok := r.(*Dict)
			if !ok {
				return typeErrorf("mixed records and non-records in DataFrame data")
			}
			for _, k := range d.Keys() {
				if !seen[Str(k)] {
					seen[Str(k)] = true
					names = append(names, Str(k))
				}
			}
		}
		for _, n := range names {
			vals := make([]Value, len(rows))
			for i, r := range rows {
				vals[i], _ = r.(*Dict).Get(n)
			}
			out.mustSet(n, vals)
		}
		return nil
	}
	var names []string
	if columns != nil {
		var ok bool
		if names, ok = columnNames(columns); !ok {
			return typeErrorf("columns must be a list of names")
		}
	}
	width := 0
	cells := make([][]Value, len(rows))
	for i, r := range rows {
		items, err := Iterate(r)
		if err != nil {
			items = []Value{r}
		}
		cells[i] = items
		width = max(width, len(items))
	}
	if names == nil {
		for j := 0; j < width; j++ {
			names = append(names, formatFloat(float64(j)))
		}
	}
	if len(names) != width {
		return valueErrorf("%d columns passed, passed data had %d columns", len(names), width)
	}
	for j, n := range names {
		vals := make([]Value, len(rows))
		for i := range rows {
			if j < len(cells[i]) {
				vals[i] = cells[i][j]
			}
		}
		out.mustSet(n, vals)
	}
	return nil
}

func pdSeries(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("Series", "data", "index", "dtype", "name", "copy")
	if err != nil {
		return nil, err
	}
	name := ""
	if p[3] != nil {
		name = Str(p[3])
	}
	var s *Series
	switch data := p[0].(type) {
	case nil:
		s = NewSeries(name, nil)
	case *Dict:
		s = NewSeries(name, data.Values()).withIndex(NewIndex("", data.Keys()))
	case *Series:
		s = data.derive(append([]Value(nil), data.Values...))
		if p[3] != nil {
			s.Name = name
		}
	case *List, Tuple:
		items, _ := Iterate(data)
		s = NewSeries(name, items)
	default:
		n := 1
		if p[1] != nil {
			if n, err = Length(p[1]); err != nil {
				return nil, err
			}
		}
		s = NewSeries(name, repeatValue(data, n))
	}
	if p[1] != nil {
		labels, err := Iterate(p[1])
		if err != nil {
			return nil, err
		}
		if len(labels) != len(s.Values) {
			return nil, lengthMismatch(len(s.Values), len(labels))
		}
		s.Index = NewIndex("", labels)
	}
	if p[2] != nil {
		return astype(s, p[2])
	}
	return s, nil
}

// goLayout converts a strftime format to a time layout.
func goLayout(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		if format[i] == '%' {
			b.WriteByte('%')
			continue
		}
		l, ok := strftimeCodes[format[i]]
		if !ok {
			return "", valueErrorf("'%c' is a bad directive in format '%s'", format[i], format)
		}
		b.WriteString(l)
	}
	return b.String(), nil
}

// parseDatetime converts one cell; numbers and unparsable text report false.
func parseDatetime(v Value, layout string, dayFirst bool) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		if layout != "" {
			t, err := time.Parse(layout, strings.TrimSpace(x))
			return t, err == nil
		}
		if dayFirst {
			for _, l := range []string{"02/01/2006", "02-01-2006", "02.01.2006", "2/1/2006"} {
				if t, err := time.Parse(l, strings.TrimSpace(x)); err == nil {
					return t, true
				}
			}
		}
		return dataset.ParseTime(x)
	}
	return time.Time{}, false
}

func toDatetime(s *Series, errors, format string) (*Series, error) {
	layout := ""
	if format != "" && format != "mixed" && format != "ISO8601" {
		var err error
		if layout, err = goLayout(format); err != nil {
			return nil, err
		}
	}
	return toDatetimeLayout(s, errors, layout, format, false)
}

func toDatetimeLayout(s *Series, errors, layout, format string, dayFirst bool) (*Series, error) {
	out := make([]Value, len(s.Values))
	for i, v := range s.Values {
		if v == nil {
			continue
		}
		t, ok := parseDatetime(v, layout, dayFirst)
		if ok {
			out[i] = t
			continue
		}
		switch errors {
		case "coerce":
			continue
		case "ignore":
			return s.derive(append([]Value(nil), s.Values...)), nil
		}
		if format != "" {
			return nil, valueErrorf("time data %s doesn't match format %s, at position %d", quote(Str(v)), quote(format), i)
		}
		return nil, Errorf("DateParseError", "Unknown datetime string format, unable to parse: %s, at position %d", Str(v), i)
	}
	return s.derive(out), nil
}

func pdToDatetime(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("to_datetime", "arg", "errors", "dayfirst", "yearfirst", "utc", "format", "exact", "unit", "infer_datetime_format", "origin", "cache")
	if err != nil {
		return nil, err
	}
	errs := Str(orDefault(p[1], "raise"))
	format := ""
	if p[5] != nil {
		format = Str(p[5])
	}
	layout := ""
	if format != "" && format != "mixed" && format != "ISO8601" {
		if layout, err = goLayout(format); err != nil {
			return nil, err
		}
	}
	dayFirst := flag(p[2], false)
	switch x := p[0].(type) {
	case *Series:
		return toDatetimeLayout(x, errs, layout, format, dayFirst)
	case *List, Tuple:
		items, _ := Iterate(x)
		s, err := toDatetimeLayout(NewSeries("", items), errs, layout, format, dayFirst)
		if err != nil {
			return nil, err
		}
		return &List{Items: s.Values}, nil
	case *Frame:
		return nil, valueErrorf("to assemble mappings requires at least that [year, month, day] be specified")
	}
	s, err := toDatetimeLayout(NewSeries("", []Value{p[0]}), errs, layout, format, dayFirst)
	if err != nil {
		return nil, err
	}
	return s.Values[0], nil
}

func pdToNumeric(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("to_numeric", "arg", "errors", "downcast")
	if err != nil {
		return nil, err
	}
	errs := Str(orDefault(p[1], "raise"))
	conv := func(vals []Value) ([]Value, error) {
		out := make([]Value, len(vals))
		for i, v := range vals {
			switch x := v.(type) {
			case nil:
			case float64:
				out[i] = x
			case bool:
				out[i], _ = toFloat(x)
			case string:
				f, ok := ParseFloatString(strings.TrimSpace(x))
				if !ok {
					f, ok = dataset.ParseNumber(x, 0, 0)
				}
				if ok {
					out[i] = f
					continue
				}
				switch errs {
				case "coerce":
				case "ignore":
					return vals, nil
				default:
					return nil, valueErrorf("Unable to parse string %s at position %d", quote(x), i)
				}
			default:
				if errs != "coerce" {
					return nil, typeErrorf("Invalid object type at position %d", i)
				}
			}
		}
		return out, nil
	}
	switch x := p[0].(type) {
	case *Series:
		vals, err := conv(x.Values)
		if err != nil {
			return nil, err
		}
		return x.derive(append([]Value(nil), vals...)), nil
	case *List, Tuple:
		items, _ := Iterate(x)
		vals, err := conv(items)
		if err != nil {
			return nil, err
		}
		return &List{Items: vals}, nil
	}
	vals, err := conv([]Value{p[0]})
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}

func pdConcat(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("concat", "objs", "axis", "join", "ignore_index", "keys", "sort")
	if err != nil {
		return nil, err
	}
	items, err := Iterate(p[0])
	if err != nil {
		return nil, typeErrorf("first argument must be an iterable of pandas objects, you passed an object of type \"%s\"", TypeName(p[0]))
	}
	if len(items) == 0 {
		return nil, valueErrorf("No objects to concatenate")
	}
	columnWise := false
	if ax := Str(orDefault(p[1], 0.0)); ax == "1" || ax == "columns" {
		columnWise = true
	}
	var frames []*Frame
	allSeries := true
	for _, it := range items {
		switch x := it.(type) {
		case *Frame:
			frames = append(frames, x)
			allSeries = false
		case *Series:
			frames = append(frames, x.toFrame(orName(x.Name, "0")))
		case nil:
		default:
			return nil, typeErrorf("cannot concatenate object of type '%s'; only Series and DataFrame objs are valid", TypeName(it))
		}
	}
	if columnWise {
		out := &Frame{Data: dataset.New(""), Index: frames[0].Index}
		for i, f := range frames {
			if f.rows() != frames[0].rows() {
				return nil, valueErrorf("all frames must have the same number of rows for axis=1")
			}
			for _, c := range f.Data.Columns {
				name := c.Name
				if s, ok := items[i].(*Series); ok && s.Name == "" {
					name = formatFloat(float64(i))
				}
				out.mustSet(name, append([]Value(nil), c.Values...))
			}
		}
		return out, nil
	}
	out, err := concatFrames(frames, flag(p[3], false))
	if err != nil {
		return nil, err
	}
	if allSeries && out.Data.Width() == 1 {
		c := out.Data.Columns[0]
		return &Series{Name: c.Name, Values: c.Values, Index: out.Index}, nil
	}
	return out, nil
}

// concatFrames stacks frames row-wise over the union of their columns.
func concatFrames(frames []*Frame, ignoreIndex bool) (*Frame, error) {
	var names []string
	for _, f := range frames {
		for _, n := range f.Data.Names() {
			if indexOf(names, n) < 0 {
				names = append(names, n)
			}
		}
	}
	cols := make([][]Value, len(names))
	var labels []Value
	var ixNames []string
	keepLabels := !ignoreIndex
	for _, f := range frames {
		for j, n := range names {
			if c, ok := f.Data.Column(n); ok {
				cols[j] = append(cols[j], c.Values...)
			} else {
				cols[j] = append(cols[j], make([]Value, f.rows())...)
			}
		}
		if f.Index != nil && ixNames == nil {
			ixNames = f.Index.Names
		}
		for i := 0; i < f.rows(); i++ {
			labels = append(labels, f.Index.Label(i))
		}
	}
	out := &Frame{Data: dataset.New("")}
	for j, n := range names {
		out.mustSet(n, cols[j])
	}
	if keepLabels && len(labels) > 0 {
		if len(ixNames) > 1 {
			ix := &Index{Names: ixNames, Keys: make([][]Value, len(labels))}
			for i, l := range labels {
				if t, ok := l.(Tuple); ok && len(t) == len(ixNames) {
					ix.Keys[i] = []Value(t)
				} else {
					ix.Keys[i] = append([]Value{l}, make([]Value, len(ixNames)-1)...)
				}
			}
			out.Index = ix
		} else {
			out.Index = NewIndex(orName(firstName(ixNames), ""), labels)
		}
		identity := out.Index != nil && len(out.Index.Names) == 1 && out.Index.Names[0] == ""
		for i, l := range labels {
			if !Equal(l, float64(i)) {
				identity = false
				break
			}
		}
		if identity {
			out.Index = nil
		}
	}
	return out, nil
}

func firstName(names []string) string {
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

func pdMerge(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("merge", "left", "right", "how", "on", "left_on", "right_on", "suffixes", "**")
	if err != nil {
		return nil, err
	}
	l, ok1 := p[0].(*Frame)
	r, ok2 := p[1].(*Frame)
	if !ok1 || !ok2 {
		return nil, typeErrorf("Can only merge Series or DataFrame objects")
	}
	return mergeFrames(l, r, Str(orDefault(p[2], "inner")), p[3], p[4], p[5])
}

// pdCut bins values into intervals; edges are right-closed by default.
func pdCut(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("cut", "x", "bins", "right", "labels", "include_lowest", "**")
	if err != nil {
		return nil, err
	}
	s, ok := p[0].(*Series)
	if !ok {
		items, err := Iterate(p[0])
		if err != nil {
			return nil, err
		}
		s = NewSeries("", items)
	}
	edgeVals, err := Iterate(p[1])
	if err != nil {
		n, err := ToInt(p[1])
		if err != nil || n < 1 {
			return nil, valueErrorf("`bins` should be a positive integer")
		}
		nums, err := s.floats("cut")
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, valueErrorf("Cannot cut empty array")
		}
		sorted := dataset.Sorted(nums)
		lo, hi := sorted[0], sorted[len(sorted)-1]
		span := hi - lo
		edgeVals = make([]Value, n+1)
		for i := range edgeVals {
			edgeVals[i] = lo + span*float64(i)/float64(n)
		}
		edgeVals[0] = lo - span*0.001
	}
	edges := make([]float64, len(edgeVals))
	for i, e := range edgeVals {
		if edges[i], err = ToFloat(e); err != nil {
			return nil, err
		}
	}
	right := flag(p[2], true)
	lowest := flag(p[4], false)
	var labels []Value
	if l, ok := p[3].(*List); ok {
		if len(l.Items) != len(edges)-1 {
			return nil, valueErrorf("Bin labels must be one fewer than the number of bin edges")
		}
		labels = l.Items
	} else {
		for i := 0; i+1 < len(edges); i++ {
			if right {
				labels = append(labels, "("+formatFloat(edges[i])+", "+formatFloat(edges[i+1])+"]")
			} else {
				labels = append(labels, "["+formatFloat(edges[i])+", "+formatFloat(edges[i+1])+")")
			}
		}
	}
	return s.mapValues(func(v Value) (Value, error) {
		x, ok := toFloat(v)
		if !ok {
			return nil, typeErrorf("unsupported operand type for cut: '%s'", TypeName(v))
		}
		for i := 0; i+1 < len(edges); i++ {
			lo, hi := edges[i], edges[i+1]
			in := (right && x > lo && x <= hi) || (!right && x >= lo && x < hi)
			if right && lowest && i == 0 && x == lo {
				in = true
			}
			if in {
				return labels[i], nil
			}
		}
		return nil, nil
	})
}

func pdDateRange(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("date_range", "start", "end", "periods", "freq", "**")
	if err != nil {
		return nil, err
	}
	freq := strings.ToUpper(Str(orDefault(p[3], "D")))
	step := func(t time.Time) time.Time {
		switch freq {
		case "W":
			return t.AddDate(0, 0, 7)
		case "MS", "M", "ME":
			return t.AddDate(0, 1, 0)
		case "H":
			return t.Add(time.Hour)
		case "Y", "YS", "A":
			return t.AddDate(1, 0, 0)
		}
		return t.AddDate(0, 0, 1)
	}
	var start, end time.Time
	var hasEnd bool
	if p[0] != nil {
		var ok bool
		if start, ok = parseDatetime(p[0], "", false); !ok {
			return nil, valueErrorf("could not parse start %s", Repr(p[0]))
		}
	}
	if p[1] != nil {
		var ok bool
		if end, ok = parseDatetime(p[1], "", false); !ok {
			return nil, valueErrorf("could not parse end %s", Repr(p[1]))
		}
		hasEnd = true
	}
	periods := -1
	if p[2] != nil {
		if periods, err = ToInt(p[2]); err != nil {
			return nil, err
		}
	}
	if periods < 0 && !hasEnd {
		return nil, valueErrorf("Of the four parameters: start, end, periods, and freq, exactly three must be specified")
	}
	var out []Value
	for t := start; (periods < 0 || len(out) < periods) && (!hasEnd || !t.After(end)); t = step(t) {
		out = append(out, t)
		if len(out) > 100000 {
			return nil, valueErrorf("date_range is too long")
		}
	}
	return &Series{Values: out, isIndex: true}, nil
}

func pdIsNA(_ *Interp, a *Args, want bool) (Value, error) {
	if len(a.Pos) != 1 {
		return nil, typeErrorf("isna() takes exactly one argument (%d given)", len(a.Pos))
	}
	switch x := a.Pos[0].(type) {
	case *Series:
		out := make([]Value, len(x.Values))
		for i, v := range x.Values {
			out[i] = (v == nil) == want
		}
		r := x.derive(out)
		r.isIndex = false
		return r, nil
	case *Frame:
		return x.method("isna").Fn(nil, &Args{})
	case *List:
		out := make([]Value, len(x.Items))
		for i, v := range x.Items {
			out[i] = (v == nil || isNaN(v)) == want
		}
		return &List{Items: out}, nil
	}
	v := a.Pos[0]
	return (v == nil || isNaN(v)) == want, nil
}

func pdTimestamp(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("Timestamp", "ts_input", "**")
	if err != nil {
		return nil, err
	}
	if s, ok := p[0].(string); ok && (s == "now" || s == "today") {
		return nil, valueErrorf("Timestamp('%s') depends on the wall clock and is not available", s)
	}
	t, ok := parseDatetime(p[0], "", false)
	if !ok {
		return nil, valueErrorf("could not convert %s to Timestamp", Repr(p[0]))
	}
	return t, nil
}

func pdTimedelta(_ *Interp, a *Args) (Value, error) {
	p, err := a.Bind("Timedelta", "value", "unit", "days", "hours", "minutes", "seconds", "weeks")
	if err != nil {
		return nil, err
	}
	var d time.Duration
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second, 7 * 24 * time.Hour}
	for i, u := range units {
		if v := p[2+i]; v != nil {
			f, err := ToFloat(v)
			if err != nil {
				return nil, err
			}
			d += time.Duration(f * float64(u))
		}
	}
	if p[0] != nil {
		f, err := ToFloat(p[0])
		if err != nil {
			return nil, err
		}
		unit := Str(orDefault(p[1], "ns"))
		mult := map[string]time.Duration{"D": 24 * time.Hour, "days": 24 * time.Hour, "h": time.Hour, "m": time.Minute, "s": time.Second, "ns": time.Nanosecond}[unit]
		if mult == 0 {
			return nil, valueErrorf("invalid unit abbreviation: %s", unit)
		}
		d += time.Duration(f * float64(mult))
	}
	return d, nil
}
