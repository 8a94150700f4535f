package snippet

import (
	"math"
	"regexp"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

func (f *Frame) GetAttr(name string) (Value, error) {
	switch name {
	case "columns":
		return indexSeries("", stringValues(f.Data.Names())), nil
	case "index":
		if f.Index != nil && len(f.Index.Names) == 1 {
			return indexSeries(f.Index.Names[0], f.labels()), nil
		}
		return indexSeries("", f.labels()), nil
	case "shape":
		return Tuple{float64(f.rows()), float64(f.Data.Width())}, nil
	case "size":
		return float64(f.rows() * f.Data.Width()), nil
	case "ndim":
		return 2.0, nil
	case "empty":
		return f.rows() == 0 || f.Data.Width() == 0, nil
	case "dtypes":
		return f.dtypes(), nil
	case "values":
		out := make([]Value, f.rows())
		for i := range out {
			out[i] = &List{Items: f.Data.Row(i)}
		}
		return &List{Items: out}, nil
	case "loc":
		return &frameIndexer{f: f}, nil
	case "iloc":
		return &frameIndexer{f: f, positional: true}, nil
	}
	if m := f.method(name); m != nil {
		return m, nil
	}
	if _, ok := f.Data.Column(name); ok {
		return f.column(name)
	}
	return nil, Errorf("AttributeError", "'DataFrame' object has no attribute '%s'", name)
}

func (f *Frame) method(name string) *Builtin {
	mk := func(fn func(in *Interp, a *Args) (Value, error)) *Builtin { return &Builtin{Name: name, Fn: fn} }
	switch name {
	case "head", "tail":
		return mk(func(_ *Interp, a *Args) (Value, error) {
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
			return f.take(headTail(f.rows(), n, name == "tail")), nil
		})
	case "copy":
		return mk(func(*Interp, *Args) (Value, error) { return f.copy(), nil })
	case "dropna":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "axis", "how", "thresh", "subset", "inplace")
			if err != nil {
				return nil, err
			}
			r, err := f.dropna(p[1], p[3])
			if err != nil {
				return nil, err
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "fillna":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "value", "method", "axis", "inplace", "limit")
			if err != nil {
				return nil, err
			}
			r, err := f.fillna(p[0], p[1])
			if err != nil {
				return nil, err
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "ffill", "bfill":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			r, err := f.fillna(nil, name)
			if err != nil {
				return nil, err
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "duplicated", "drop_duplicates":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "subset", "keep", "inplace", "ignore_index")
			if err != nil {
				return nil, err
			}
			dup, err := f.duplicated(p[0], p[1])
			if err != nil {
				return nil, err
			}
			if name == "duplicated" {
				out := make([]Value, len(dup))
				for i, d := range dup {
					out[i] = d
				}
				return &Series{Values: out, Index: f.Index}, nil
			}
			var rows []int
			for i, d := range dup {
				if !d {
					rows = append(rows, i)
				}
			}
			r := f.take(rows)
			if flag(p[3], false) {
				r.Index = nil
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "drop":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "labels", "axis", "index", "columns", "level", "inplace", "errors")
			if err != nil {
				return nil, err
			}
			r, err := f.drop(p[0], p[1], p[2], p[3], Str(orDefault(p[6], "raise")) == "ignore")
			if err != nil {
				return nil, err
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "rename":
		return mk(func(in *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "mapper", "index", "columns", "axis", "inplace", "errors")
			if err != nil {
				return nil, err
			}
			mapper := p[2]
			if mapper == nil && p[0] != nil && Str(orDefault(p[3], "index")) != "index" {
				mapper = p[0]
			}
			r := f.copy()
			if mapper != nil {
				for _, c := range r.Data.Columns {
					switch m := mapper.(type) {
					case *Dict:
						if v, ok := m.Get(c.Name); ok {
							c.Name = Str(v)
						}
					default:
						v, err := in.Call(m, c.Name)
						if err != nil {
							return nil, err
						}
						c.Name = Str(v)
					}
				}
				if err := r.Data.Validate(); err != nil {
					return nil, valueErrorf("%v", err)
				}
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "astype":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "dtype", "copy", "errors")
			if err != nil {
				return nil, err
			}
			r := f.copy()
			for _, c := range r.Data.Columns {
				dt := p[0]
				if d, ok := p[0].(*Dict); ok {
					v, ok := d.Get(c.Name)
					if !ok {
						continue
					}
					dt = v
				}
				s, err := astype(&Series{Name: c.Name, Values: c.Values}, dt)
				if err != nil {
					return nil, err
				}
				r.mustSet(c.Name, s.Values)
			}
			return r, nil
		})
	case "select_dtypes":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "include", "exclude")
			if err != nil {
				return nil, err
			}
			var keep []string
			for _, n := range f.Data.Names() {
				s, _ := f.column(n)
				dt := s.dtype()
				if p[0] != nil && !dtypeMatches(dt, p[0]) {
					continue
				}
				if p[1] != nil && dtypeMatches(dt, p[1]) {
					continue
				}
				keep = append(keep, n)
			}
			return f.selectColumns(keep)
		})
	case "sort_values":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "by", "axis", "ascending", "inplace", "kind", "na_position", "ignore_index", "key")
			if err != nil {
				return nil, err
			}
			r, err := f.sortValues(p[0], p[2])
			if err != nil {
				return nil, err
			}
			if flag(p[6], false) {
				r.Index = nil
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "sort_index":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "axis", "level", "ascending", "inplace", "**")
			if err != nil {
				return nil, err
			}
			asc := flag(p[2], true)
			var cols [][]Value
			var dirs []bool
			if f.Index == nil {
				cols, dirs = [][]Value{f.labels()}, []bool{asc}
			} else {
				for j := range f.Index.Names {
					cols = append(cols, f.Index.Level(j))
					dirs = append(dirs, asc)
				}
			}
			r := f.take(stableOrder(cols, dirs))
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "reset_index":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "level", "drop", "inplace", "col_level", "col_fill", "names")
			if err != nil {
				return nil, err
			}
			var r *Frame
			if flag(p[1], false) {
				r = &Frame{Data: f.Data.Copy()}
			} else {
				r = f.ResetIndex()
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "set_index":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "keys", "drop", "append", "inplace")
			if err != nil {
				return nil, err
			}
			names, ok := columnNames(p[0])
			if !ok {
				return nil, keyError(p[0])
			}
			r := f.copy()
			ix := &Index{Names: names, Keys: make([][]Value, f.rows())}
			for i := range ix.Keys {
				ix.Keys[i] = make([]Value, len(names))
			}
			for j, n := range names {
				c, ok := f.Data.Column(n)
				if !ok {
					return nil, Errorf("KeyError", "\"None of ['%s'] are in the columns\"", n)
				}
				for i, v := range c.Values {
					ix.Keys[i][j] = v
				}
				if flag(p[1], true) {
					r.Data.Drop(n)
				}
			}
			r.Index = ix
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "assign":
		return mk(func(in *Interp, a *Args) (Value, error) {
			r := f.copy()
			for _, kw := range a.Kw {
				v := kw.Value
				if _, ok := v.(Callable); ok {
					var err error
					if v, err = in.Call(v, r); err != nil {
						return nil, err
					}
				}
				if err := r.SetItem(kw.Name, v); err != nil {
					return nil, err
				}
			}
			return r, nil
		})
	case "insert":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "loc", "column", "value", "allow_duplicates")
			if err != nil {
				return nil, err
			}
			pos, err := ToInt(p[0])
			if err != nil {
				return nil, err
			}
			col := Str(p[1])
			if f.Data.Index(col) >= 0 {
				return nil, valueErrorf("cannot insert %s, already exists", col)
			}
			if pos < 0 || pos > f.Data.Width() {
				return nil, Errorf("IndexError", "index %d is out of bounds", pos)
			}
			vals, err := f.broadcastColumn(p[2])
			if err != nil {
				return nil, err
			}
			c := dataset.NewColumn(col, vals)
			cols := append([]*dataset.Column(nil), f.Data.Columns[:pos]...)
			cols = append(append(cols, c), f.Data.Columns[pos:]...)
			f.Data.Columns = cols
			return nil, nil
		})
	case "groupby":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "by", "axis", "level", "as_index", "sort", "group_keys", "observed", "dropna")
			if err != nil {
				return nil, err
			}
			return newGroupBy(f, p[0], flag(p[3], true), flag(p[4], true), flag(p[7], true))
		})
	case "sum", "mean", "median", "min", "max", "count", "std", "var", "nunique", "prod", "any", "all":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "axis", "skipna", "numeric_only", "**")
			if err != nil {
				return nil, err
			}
			if ax := Str(orDefault(p[0], 0.0)); ax == "1" || ax == "columns" {
				return f.reduceRows(name)
			}
			return f.reduceColumns(name, flag(p[2], false))
		})
	case "isnull", "isna", "notnull", "notna":
		want := name == "isnull" || name == "isna"
		return mk(func(*Interp, *Args) (Value, error) {
			r := &Frame{Data: dataset.New(f.Data.Name), Index: f.Index}
			for _, c := range f.Data.Columns {
				vals := make([]Value, len(c.Values))
				for i, v := range c.Values {
					vals[i] = (v == nil) == want
				}
				r.Data.Columns = append(r.Data.Columns, dataset.NewColumn(c.Name, vals))
			}
			return r, nil
		})
	case "round":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "decimals")
			if err != nil {
				return nil, err
			}
			r := f.copy()
			for _, c := range r.Data.Columns {
				n := 0
				switch d := p[0].(type) {
				case nil:
				case *Dict:
					v, ok := d.Get(c.Name)
					if !ok {
						continue
					}
					n, _ = ToInt(v)
				default:
					n, _ = ToInt(d)
				}
				if c.Kind != dataset.KindNumeric {
					continue
				}
				for i, v := range c.Values {
					if x, ok := v.(float64); ok {
						c.Values[i] = RoundHalfEven(x, n)
					}
				}
			}
			return r, nil
		})
	case "apply":
		return mk(func(in *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "func", "axis", "raw", "result_type", "args")
			if err != nil {
				return nil, err
			}
			if ax := Str(orDefault(p[1], 0.0)); ax == "1" || ax == "columns" {
				return f.applyRows(in, p[0])
			}
			return f.applyColumns(in, p[0])
		})
	case "iterrows":
		return mk(func(*Interp, *Args) (Value, error) {
			out := make([]Value, f.rows())
			for i := range out {
				out[i] = Tuple{f.Index.Label(i), f.row(i)}
			}
			return &List{Items: out}, nil
		})
	case "itertuples":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "index", "name")
			if err != nil {
				return nil, err
			}
			out := make([]Value, f.rows())
			for i := range out {
				row := f.Data.Row(i)
				if flag(p[0], true) {
					row = append([]Value{f.Index.Label(i)}, row...)
				}
				out[i] = Tuple(row)
			}
			return &List{Items: out}, nil
		})
	case "to_dict":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "orient")
			if err != nil {
				return nil, err
			}
			return f.toDict(Str(orDefault(p[0], "dict")))
		})
	case "nlargest", "nsmallest":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "n", "columns", "keep")
			if err != nil {
				return nil, err
			}
			n, err := ToInt(p[0])
			if err != nil {
				return nil, err
			}
			r, err := f.sortValues(p[1], name == "nsmallest")
			if err != nil {
				return nil, err
			}
			return r.take(headTail(r.rows(), n, false)), nil
		})
	case "query":
		return mk(func(in *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "expr", "inplace", "engine")
			if err != nil {
				return nil, err
			}
			r, err := f.query(in, Str(p[0]))
			if err != nil {
				return nil, err
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "melt":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "id_vars", "value_vars", "var_name", "value_name")
			if err != nil {
				return nil, err
			}
			return f.melt(p[0], p[1], Str(orDefault(p[2], "variable")), Str(orDefault(p[3], "value")))
		})
	case "pivot_table", "pivot":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "values", "index", "columns", "aggfunc", "fill_value", "margins", "dropna", "observed", "sort")
			if err != nil {
				return nil, err
			}
			agg := p[3]
			if agg == nil {
				agg = "mean"
				if name == "pivot" {
					agg = "first"
				}
			}
			return f.pivotTable(p[0], p[1], p[2], agg, p[4])
		})
	case "merge":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "right", "how", "on", "left_on", "right_on", "suffixes", "**")
			if err != nil {
				return nil, err
			}
			right, ok := p[0].(*Frame)
			if !ok {
				return nil, typeErrorf("Can only merge Series or DataFrame objects, a %s was passed", TypeName(p[0]))
			}
			return mergeFrames(f, right, Str(orDefault(p[1], "inner")), p[2], p[3], p[4])
		})
	case "describe":
		return mk(func(*Interp, *Args) (Value, error) { return f.describe() })
	case "corr":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			if _, err := a.Bind(name, "method", "min_periods", "numeric_only"); err != nil {
				return nil, err
			}
			return f.corr(), nil
		})
	case "replace":
		return mk(func(_ *Interp, a *Args) (Value, error) {
			p, err := a.Bind(name, "to_replace", "value", "inplace", "regex")
			if err != nil {
				return nil, err
			}
			r := f.copy()
			for _, c := range r.Data.Columns {
				s, err := replaceValues(&Series{Values: c.Values}, p[0], p[1])
				if err != nil {
					return nil, err
				}
				r.mustSet(c.Name, s.Values)
			}
			if inplace(a) {
				return f.assignFrom(r)
			}
			return r, nil
		})
	case "info":
		return mk(func(in *Interp, _ *Args) (Value, error) {
			var b strings.Builder
			b.WriteString("<class 'pandas.core.frame.DataFrame'>\n")
			b.WriteString("RangeIndex: " + formatFloat(float64(f.rows())) + " entries\n")
			for _, c := range f.Data.Columns {
				s, _ := f.column(c.Name)
				b.WriteString(" " + c.Name + "  " + formatFloat(float64(len(c.Values)-c.Missing())) + " non-null  " + s.dtype() + "\n")
			}
			in.out.WriteString(b.String())
			return nil, nil
		})
	}
	return nil
}

func dtypeMatches(dt string, sel Value) bool {
	items := []Value{sel}
	if l, ok := sel.(*List); ok {
		items = l.Items
	}
	for _, it := range items {
		want := ""
		switch x := it.(type) {
		case string:
			want = x
		case *Builtin:
			want = x.Name
		}
		switch want {
		case "number", "numeric", "float", "float64", "int", "int64":
			if dt == "int64" || dt == "float64" {
				if want == "float64" || want == "float" {
					return dt == "float64"
				}
				if want == "int64" || want == "int" {
					return dt == "int64"
				}
				return true
			}
		case "object", "str", "string", "category":
			if dt == "object" {
				return true
			}
		case "datetime", "datetime64", "datetime64[ns]":
			if dt == "datetime64[ns]" {
				return true
			}
		case "bool":
			if dt == "bool" {
				return true
			}
		}
	}
	return false
}

func (f *Frame) dropna(how, subset Value) (*Frame, error) {
	cols := f.Data.Columns
	if subset != nil {
		names, ok := columnNames(subset)
		if !ok {
			return nil, keyError(subset)
		}
		sub, err := f.selectColumns(names)
		if err != nil {
			return nil, err
		}
		cols = sub.Data.Columns
	}
	all := Str(orDefault(how, "any")) == "all"
	var rows []int
	for i := 0; i < f.rows(); i++ {
		missing := 0
		for _, c := range cols {
			if c.Values[i] == nil {
				missing++
			}
		}
		if (all && missing < len(cols)) || (!all && missing == 0) {
			rows = append(rows, i)
		}
	}
	return f.take(rows), nil
}

func (f *Frame) fillna(value, method Value) (*Frame, error) {
	r := f.copy()
	for _, c := range r.Data.Columns {
		s := &Series{Values: c.Values}
		var filled *Series
		switch Str(orDefault(method, "")) {
		case "ffill", "pad":
			filled = s.fillDirectional(false)
		case "bfill", "backfill":
			filled = s.fillDirectional(true)
		default:
			fill := value
			if d, ok := value.(*Dict); ok {
				v, ok := d.Get(c.Name)
				if !ok {
					continue
				}
				fill = v
			}
			if fs, ok := fill.(*Series); ok && fs.Index != nil && len(fs.Values) != len(c.Values) {
				// df.fillna(df.mean()) fills each column with its own label
				pos := fs.Index.Find(c.Name, len(fs.Values))
				if len(pos) == 0 {
					continue
				}
				fill = fs.Values[pos[0]]
			}
			vals, err := fillVector(fill, len(c.Values))
			if err != nil {
				return nil, err
			}
			out := append([]Value(nil), c.Values...)
			for i, v := range out {
				if v == nil {
					out[i] = vals[i]
				}
			}
			filled = &Series{Values: out}
		}
		r.mustSet(c.Name, filled.Values)
	}
	return r, nil
}

func (f *Frame) duplicated(subset, keep Value) ([]bool, error) {
	cols := f.Data.Columns
	if subset != nil {
		names, ok := columnNames(subset)
		if !ok {
			return nil, keyError(subset)
		}
		sub, err := f.selectColumns(names)
		if err != nil {
			return nil, err
		}
		cols = sub.Data.Columns
	}
	return duplicateMask(f.rows(), func(i int) Value {
		key := make(Tuple, len(cols))
		for j, c := range cols {
			key[j] = c.Values[i]
		}
		return key
	}, keep), nil
}

func (f *Frame) drop(labels, axis, index, columns Value, ignore bool) (*Frame, error) {
	if labels != nil {
		if ax := Str(orDefault(axis, 0.0)); ax == "1" || ax == "columns" {
			columns = labels
		} else {
			index = labels
		}
	}
	r := f.copy()
	if columns != nil {
		names, ok := columnNames(columns)
		if !ok {
			return nil, keyError(columns)
		}
		var missing []string
		for _, n := range names {
			if !r.Data.Drop(n) {
				missing = append(missing, n)
			}
		}
		if len(missing) > 0 && !ignore {
			return nil, Errorf("KeyError", "\"%s not found in axis\"", Repr(&List{Items: stringValues(missing)}))
		}
	}
	if index != nil {
		targets := []Value{index}
		if l, ok := index.(*List); ok {
			targets = l.Items
		} else if s, ok := index.(*Series); ok {
			targets = s.Values
		}
		drop := map[int]bool{}
		for _, t := range targets {
			pos := f.Index.Find(t, f.rows())
			if len(pos) == 0 && !ignore {
				return nil, Errorf("KeyError", "\"[%s] not found in axis\"", Repr(t))
			}
			for _, p := range pos {
				drop[p] = true
			}
		}
		var rows []int
		for i := 0; i < f.rows(); i++ {
			if !drop[i] {
				rows = append(rows, i)
			}
		}
		r = r.take(rows)
	}
	return r, nil
}

func (f *Frame) sortValues(by, ascending Value) (*Frame, error) {
	names, ok := columnNames(by)
	if !ok {
		return nil, typeErrorf("sort_values() missing required argument: 'by'")
	}
	cols := make([][]Value, len(names))
	dirs := make([]bool, len(names))
	for j, n := range names {
		c, ok := f.Data.Column(n)
		if !ok {
			return nil, keyError(n)
		}
		cols[j] = c.Values
		dirs[j] = true
		switch asc := ascending.(type) {
		case nil:
		case *List:
			if len(asc.Items) != len(names) {
				return nil, valueErrorf("Length of ascending (%d) != length of by (%d)", len(asc.Items), len(names))
			}
			dirs[j] = flag(asc.Items[j], true)
		default:
			dirs[j] = flag(asc, true)
		}
	}
	return f.take(stableOrder(cols, dirs)), nil
}

// reduceColumns aggregates each column into a series labelled by column name.
// Without numeric_only, text columns still raise for numeric reductions.
func (f *Frame) reduceColumns(name string, numericOnly bool) (*Series, error) {
	var labels, vals []Value
	for _, c := range f.Data.Columns {
		numeric := c.Kind == dataset.KindNumeric || c.Kind == dataset.KindBool
		switch name {
		case "count", "nunique", "min", "max", "any", "all":
			if numericOnly && !numeric {
				continue
			}
		default:
			if !numeric {
				if numericOnly || c.Kind == dataset.KindTemporal || len(present(c.Values)) == 0 {
					continue
				}
				if name != "sum" {
					return nil, typeErrorf("Could not convert %s to numeric", quote(Str(firstPresent(c.Values))))
				}
			}
		}
		v, err := reduce(name, c.Values)
		if err != nil {
			return nil, err
		}
		labels = append(labels, c.Name)
		vals = append(vals, v)
	}
	return NewSeries("", vals).withIndex(NewIndex("", labels)), nil
}

func firstPresent(vals []Value) Value {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func (f *Frame) reduceRows(name string) (*Series, error) {
	out := make([]Value, f.rows())
	for i := range out {
		var row []Value
		for _, c := range f.Data.Columns {
			if c.Kind == dataset.KindNumeric || c.Kind == dataset.KindBool {
				row = append(row, c.Values[i])
			}
		}
		v, err := reduce(name, row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return NewSeries("", out).withIndex(f.Index), nil
}

func (f *Frame) applyRows(in *Interp, fn Value) (Value, error) {
	out := make([]Value, f.rows())
	for i := range out {
		v, err := in.Call(fn, f.row(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return NewSeries("", out).withIndex(f.Index), nil
}

func (f *Frame) applyColumns(in *Interp, fn Value) (Value, error) {
	var labels, vals []Value
	var frame *Frame
	for _, c := range f.Data.Columns {
		s, _ := f.column(c.Name)
		s.parent = nil
		v, err := in.Call(fn, s)
		if err != nil {
			return nil, err
		}
		if rs, ok := v.(*Series); ok && len(rs.Values) == f.rows() {
			if frame == nil {
				frame = &Frame{Data: dataset.New(f.Data.Name), Index: f.Index}
			}
			frame.mustSet(c.Name, rs.Values)
			continue
		}
		labels = append(labels, c.Name)
		vals = append(vals, v)
	}
	if frame != nil {
		return frame, nil
	}
	return NewSeries("", vals).withIndex(NewIndex("", labels)), nil
}

func (f *Frame) toDict(orient string) (Value, error) {
	switch orient {
	case "records":
		out := make([]Value, f.rows())
		for i := range out {
			d := NewDict()
			for _, c := range f.Data.Columns {
				_ = d.Set(c.Name, c.Values[i])
			}
			out[i] = d
		}
		return &List{Items: out}, nil
	case "list", "dict", "series":
		d := NewDict()
		for _, c := range f.Data.Columns {
			if orient == "list" {
				_ = d.Set(c.Name, &List{Items: append([]Value(nil), c.Values...)})
				continue
			}
			inner := NewDict()
			for i, v := range c.Values {
				if err := inner.Set(f.Index.Label(i), v); err != nil {
					return nil, err
				}
			}
			_ = d.Set(c.Name, inner)
		}
		return d, nil
	}
	return nil, valueErrorf("orient '%s' not understood", orient)
}

var backtickName = regexp.MustCompile("`([^`]+)`")

// query filters rows with a boolean expression over column names. "and",
// "or" and "not" act elementwise; @name reads a snippet variable.
func (f *Frame) query(in *Interp, expr string) (*Frame, error) {
	vars := map[string]Value{}
	n := 0
	expr = backtickName.ReplaceAllStringFunc(expr, func(m string) string {
		id := "__col" + formatFloat(float64(n))
		n++
		s, _ := f.column(m[1 : len(m)-1])
		vars[id] = s
		return id
	})
	expr = strings.ReplaceAll(expr, "@", "")
	for _, c := range f.Data.Names() {
		s, _ := f.column(c)
		s.parent = nil
		vars[c] = s
	}
	v, err := in.EvalExpr(expr, vars, true)
	if err != nil {
		return nil, err
	}
	m, ok, err := boolMask(v, f.rows())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, valueErrorf("query expression must evaluate to a boolean Series")
	}
	return f.take(maskRows(m)), nil
}

func (f *Frame) melt(idVars, valueVars Value, varName, valueName string) (*Frame, error) {
	var ids []string
	if idVars != nil {
		var ok bool
		if ids, ok = columnNames(idVars); !ok {
			return nil, keyError(idVars)
		}
	}
	var vals []string
	if valueVars != nil {
		var ok bool
		if vals, ok = columnNames(valueVars); !ok {
			return nil, keyError(valueVars)
		}
	} else {
		for _, n := range f.Data.Names() {
			if indexOf(ids, n) < 0 {
				vals = append(vals, n)
			}
		}
	}
	idCols, err := f.selectColumns(ids)
	if err != nil {
		return nil, err
	}
	valCols, err := f.selectColumns(vals)
	if err != nil {
		return nil, err
	}
	out := &Frame{Data: dataset.New(f.Data.Name)}
	n := f.rows()
	idOut := make([][]Value, len(ids))
	var varOut, valOut []Value
	for _, vc := range valCols.Data.Columns {
		for i := 0; i < n; i++ {
			for j, ic := range idCols.Data.Columns {
				idOut[j] = append(idOut[j], ic.Values[i])
			}
			varOut = append(varOut, vc.Name)
			valOut = append(valOut, vc.Values[i])
		}
	}
	for j, name := range ids {
		out.mustSet(name, idOut[j])
	}
	out.mustSet(varName, varOut)
	out.mustSet(valueName, valOut)
	return out, nil
}

func (f *Frame) pivotTable(values, index, columns, aggfunc, fill Value) (*Frame, error) {
	rowKeys, ok := columnNames(index)
	if !ok || len(rowKeys) == 0 {
		return nil, valueErrorf("pivot_table requires an index")
	}
	colKey := ""
	if columns != nil {
		names, ok := columnNames(columns)
		if !ok || len(names) != 1 {
			return nil, valueErrorf("pivot_table supports a single columns key")
		}
		colKey = names[0]
	}
	agg, err := reducerName(aggfunc)
	if err != nil {
		return nil, err
	}
	var valNames []string
	if values != nil {
		if valNames, ok = columnNames(values); !ok {
			return nil, keyError(values)
		}
	} else {
		for _, c := range f.Data.Columns {
			if c.Kind == dataset.KindNumeric && indexOf(rowKeys, c.Name) < 0 && c.Name != colKey {
				valNames = append(valNames, c.Name)
			}
		}
	}
	if colKey == "" {
		g, err := newGroupBy(f, &List{Items: stringValues(rowKeys)}, true, true, true)
		if err != nil {
			return nil, err
		}
		sel, err := g.selectColumns(valNames)
		if err != nil {
			return nil, err
		}
		return sel.aggFrame(agg)
	}
	if len(valNames) != 1 {
		return nil, valueErrorf("pivot_table with columns supports a single values column")
	}
	keys := append(append([]string(nil), rowKeys...), colKey)
	g, err := newGroupBy(f, &List{Items: stringValues(keys)}, true, true, true)
	if err != nil {
		return nil, err
	}
	sel, err := g.selectColumns(valNames)
	if err != nil {
		return nil, err
	}
	long, err := sel.aggFrame(agg)
	if err != nil {
		return nil, err
	}
	return unstack(long, len(rowKeys), valNames[0], fill), nil
}

// unstack spreads the last index level of a grouped frame into columns.
func unstack(long *Frame, rowLevels int, value string, fill Value) *Frame {
	var rowOrder, colOrder []Value
	rowPos := NewDict()
	colPos := NewDict()
	for _, k := range long.Index.Keys {
		rk := Tuple(k[:rowLevels])
		if _, ok := rowPos.Get(rk); !ok {
			_ = rowPos.Set(rk, float64(len(rowOrder)))
			rowOrder = append(rowOrder, rk)
		}
		if _, ok := colPos.Get(k[rowLevels]); !ok {
			_ = colPos.Set(k[rowLevels], float64(len(colOrder)))
			colOrder = append(colOrder, k[rowLevels])
		}
	}
	grid := make([][]Value, len(colOrder))
	for j := range grid {
		grid[j] = make([]Value, len(rowOrder))
		for i := range grid[j] {
			grid[j][i] = fill
		}
	}
	vc, _ := long.Data.Column(value)
	for i, k := range long.Index.Keys {
		r, _ := rowPos.Get(Tuple(k[:rowLevels]))
		c, _ := colPos.Get(k[rowLevels])
		grid[int(c.(float64))][int(r.(float64))] = vc.Values[i]
	}
	ix := &Index{Names: long.Index.Names[:rowLevels], Keys: make([][]Value, len(rowOrder))}
	for i, rk := range rowOrder {
		ix.Keys[i] = []Value(rk.(Tuple))
	}
	out := &Frame{Data: dataset.New(long.Data.Name), Index: ix}
	for j, c := range colOrder {
		out.mustSet(Str(c), grid[j])
	}
	return out
}

func mergeFrames(left, right *Frame, how string, on, leftOn, rightOn Value) (*Frame, error) {
	if on != nil {
		leftOn, rightOn = on, on
	}
	if leftOn == nil {
		for _, n := range left.Data.Names() {
			if right.Data.Index(n) >= 0 {
				leftOn = orDefault(leftOn, &List{})
				leftOn.(*List).Items = append(leftOn.(*List).Items, n)
			}
		}
		rightOn = leftOn
	}
	lk, ok1 := columnNames(leftOn)
	rk, ok2 := columnNames(rightOn)
	if !ok1 || !ok2 || len(lk) == 0 || len(lk) != len(rk) {
		return nil, Errorf("MergeError", "No common columns to perform merge on")
	}
	keyOf := func(f *Frame, names []string, i int) (Value, error) {
		t := make(Tuple, len(names))
		for j, n := range names {
			c, ok := f.Data.Column(n)
			if !ok {
				return nil, keyError(n)
			}
			t[j] = c.Values[i]
		}
		return t, nil
	}
	rightRows := NewDict()
	for i := 0; i < right.rows(); i++ {
		k, err := keyOf(right, rk, i)
		if err != nil {
			return nil, err
		}
		cur, _ := rightRows.Get(k)
		lst, _ := cur.(*List)
		if lst == nil {
			lst = &List{}
		}
		lst.Items = append(lst.Items, float64(i))
		_ = rightRows.Set(k, lst)
	}
	var lRows, rRows []int
	matched := map[int]bool{}
	for i := 0; i < left.rows(); i++ {
		k, err := keyOf(left, lk, i)
		if err != nil {
			return nil, err
		}
		cur, _ := rightRows.Get(k)
		if lst, ok := cur.(*List); ok {
			for _, r := range lst.Items {
				lRows = append(lRows, i)
				rRows = append(rRows, int(r.(float64)))
				matched[int(r.(float64))] = true
			}
		} else if how == "left" || how == "outer" {
			lRows = append(lRows, i)
			rRows = append(rRows, -1)
		}
	}
	if how == "right" || how == "outer" {
		for r := 0; r < right.rows(); r++ {
			if !matched[r] {
				lRows = append(lRows, -1)
				rRows = append(rRows, r)
			}
		}
	}
	pick := func(c *dataset.Column, rows []int) []Value {
		out := make([]Value, len(rows))
		for i, r := range rows {
			if r >= 0 {
				out[i] = c.Values[r]
			}
		}
		return out
	}
	out := &Frame{Data: dataset.New(left.Data.Name)}
	for _, c := range left.Data.Columns {
		vals := pick(c, lRows)
		if j := indexOf(lk, c.Name); j >= 0 && lk[j] == rk[j] {
			rc, _ := right.Data.Column(rk[j])
			for i, r := range lRows {
				if r < 0 {
					vals[i] = rc.Values[rRows[i]]
				}
			}
		}
		name := c.Name
		if right.Data.Index(name) >= 0 && !(indexOf(lk, name) >= 0 && indexOf(rk, name) >= 0) {
			name += "_x"
		}
		out.mustSet(name, vals)
	}
	for _, c := range right.Data.Columns {
		if j := indexOf(rk, c.Name); j >= 0 && lk[j] == rk[j] {
			continue
		}
		name := c.Name
		if left.Data.Index(name) >= 0 {
			name += "_y"
		}
		out.mustSet(name, pick(c, rRows))
	}
	return out, nil
}

func (f *Frame) describe() (*Frame, error) {
	out := &Frame{Data: dataset.New(f.Data.Name)}
	for _, c := range f.Data.Columns {
		if c.Kind != dataset.KindNumeric {
			continue
		}
		d, err := (&Series{Name: c.Name, Values: c.Values}).describe()
		if err != nil {
			return nil, err
		}
		ds := d.(*Series)
		out.Index = ds.Index
		out.mustSet(c.Name, ds.Values)
	}
	return out, nil
}

func (f *Frame) corr() *Frame {
	var cols []*dataset.Column
	for _, c := range f.Data.Columns {
		if c.Kind == dataset.KindNumeric {
			cols = append(cols, c)
		}
	}
	names := make([]Value, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	out := &Frame{Data: dataset.New(f.Data.Name), Index: NewIndex("", names)}
	for _, a := range cols {
		vals := make([]Value, len(cols))
		for i, b := range cols {
			r := pearson(a.Values, b.Values)
			if x, ok := r.(float64); ok && math.IsNaN(x) {
				r = nil
			}
			vals[i] = r
		}
		out.mustSet(a.Name, vals)
	}
	return out
}
