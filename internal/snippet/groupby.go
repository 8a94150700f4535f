package snippet

import (
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

type group struct {
	key  Tuple
	rows []int
}

// GroupBy is the result of df.groupby(...) and, with series set, of
// selecting one column from it.
type GroupBy struct {
	f       *Frame
	keys    []string
	groups  []group
	sel     []string
	series  bool
	asIndex bool
}

func newGroupBy(f *Frame, by Value, asIndex, sortKeys, dropna bool) (*GroupBy, error) {
	if by == nil {
		return nil, typeErrorf("You have to supply one of 'by' and 'level'")
	}
	items := []Value{by}
	if l, ok := by.(*List); ok {
		items = l.Items
	}
	g := &GroupBy{f: f, asIndex: asIndex}
	var cols [][]Value
	for i, it := range items {
		switch k := it.(type) {
		case string:
			c, ok := f.Data.Column(k)
			if !ok {
				return nil, keyError(k)
			}
			g.keys = append(g.keys, k)
			cols = append(cols, c.Values)
		case *Series:
			if len(k.Values) != f.rows() {
				return nil, lengthMismatch(len(k.Values), f.rows())
			}
			name := k.Name
			if name == "" {
				name = "key_" + formatFloat(float64(i))
			}
			g.keys = append(g.keys, name)
			cols = append(cols, k.Values)
		default:
			return nil, typeErrorf("unsupported groupby key of type '%s'", TypeName(it))
		}
	}
	pos := NewDict()
	for r := 0; r < f.rows(); r++ {
		key := make(Tuple, len(cols))
		skip := false
		for j, c := range cols {
			key[j] = c[r]
			if c[r] == nil && dropna {
				skip = true
			}
		}
		if skip {
			continue
		}
		at, ok := pos.Get(key)
		if !ok {
			at = float64(len(g.groups))
			if err := pos.Set(key, at); err != nil {
				return nil, err
			}
			g.groups = append(g.groups, group{key: key})
		}
		i := int(at.(float64))
		g.groups[i].rows = append(g.groups[i].rows, r)
	}
	if sortKeys {
		keyCols := make([][]Value, len(g.keys))
		dirs := make([]bool, len(g.keys))
		for j := range keyCols {
			keyCols[j] = make([]Value, len(g.groups))
			for i, gr := range g.groups {
				keyCols[j][i] = gr.key[j]
			}
			dirs[j] = true
		}
		order := stableOrder(keyCols, dirs)
		sorted := make([]group, len(order))
		for i, o := range order {
			sorted[i] = g.groups[o]
		}
		g.groups = sorted
	}
	return g, nil
}

func (g *GroupBy) TypeName() string {
	if g.series {
		return "SeriesGroupBy"
	}
	return "DataFrameGroupBy"
}

func (g *GroupBy) Len() int { return len(g.groups) }

// selected lists the value columns: the selection, or every non-key column.
func (g *GroupBy) selected() []string {
	if g.sel != nil {
		return g.sel
	}
	var out []string
	for _, n := range g.f.Data.Names() {
		if indexOf(g.keys, n) < 0 {
			out = append(out, n)
		}
	}
	return out
}

func (g *GroupBy) selectColumns(names []string) (*GroupBy, error) {
	for _, n := range names {
		if g.f.Data.Index(n) < 0 {
			return nil, Errorf("KeyError", "Column not found: %s", n)
		}
	}
	out := *g
	out.sel = names
	out.series = false
	return &out, nil
}

func (g *GroupBy) GetItem(key Value) (Value, error) {
	if name, ok := key.(string); ok {
		sel, err := g.selectColumns([]string{name})
		if err != nil {
			return nil, err
		}
		sel.series = true
		return sel, nil
	}
	names, ok := columnNames(key)
	if !ok {
		return nil, keyError(key)
	}
	return g.selectColumns(names)
}

func (g *GroupBy) keyIndex() *Index {
	ix := &Index{Names: append([]string(nil), g.keys...), Keys: make([][]Value, len(g.groups))}
	for i, gr := range g.groups {
		ix.Keys[i] = []Value(gr.key)
	}
	return ix
}

func (g *GroupBy) label(gr group) Value {
	if len(gr.key) == 1 {
		return gr.key[0]
	}
	return gr.key
}

func (g *GroupBy) Iterate() ([]Value, error) {
	out := make([]Value, len(g.groups))
	for i, gr := range g.groups {
		var part Value = g.f.take(gr.rows)
		if g.series {
			s, _ := g.f.column(g.sel[0])
			s.parent = nil
			part = s.take(gr.rows)
		}
		out[i] = Tuple{g.label(gr), part}
	}
	return out, nil
}

func numericReducer(name string) bool {
	switch name {
	case "sum", "mean", "median", "std", "var", "prod":
		return true
	}
	return false
}

func (g *GroupBy) aggColumn(name string, c *dataset.Column) ([]Value, error) {
	out := make([]Value, len(g.groups))
	for i, gr := range g.groups {
		vals := make([]Value, len(gr.rows))
		for k, r := range gr.rows {
			vals[k] = c.Values[r]
		}
		v, err := reduce(name, vals)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// aggFrame applies one reducer to every value column. Numeric reducers skip
// non-numeric columns unless the column was selected explicitly.
func (g *GroupBy) aggFrame(name string) (*Frame, error) {
	out := &Frame{Data: dataset.New(g.f.Data.Name), Index: g.keyIndex()}
	for _, n := range g.selected() {
		c, _ := g.f.Data.Column(n)
		if numericReducer(name) && g.sel == nil && c.Kind != dataset.KindNumeric && c.Kind != dataset.KindBool {
			continue
		}
		vals, err := g.aggColumn(name, c)
		if err != nil {
			return nil, err
		}
		out.mustSet(n, vals)
	}
	return out, nil
}

// finish shapes an aggregated frame for the caller: a series for single
// column selections, key columns restored when as_index=False.
func (g *GroupBy) finish(fr *Frame) Value {
	if !g.asIndex {
		return fr.ResetIndex()
	}
	if g.series && fr.Data.Width() == 1 {
		c := fr.Data.Columns[0]
		return &Series{Name: c.Name, Values: c.Values, Index: fr.Index}
	}
	return fr
}

func (g *GroupBy) size() Value {
	vals := make([]Value, len(g.groups))
	for i, gr := range g.groups {
		vals[i] = float64(len(gr.rows))
	}
	if !g.asIndex {
		fr := &Frame{Data: dataset.New(g.f.Data.Name), Index: g.keyIndex()}
		fr.mustSet("size", vals)
		return fr.ResetIndex()
	}
	name := ""
	if g.series {
		name = g.sel[0]
	}
	return &Series{Name: name, Values: vals, Index: g.keyIndex()}
}

func (g *GroupBy) GetAttr(name string) (Value, error) {
	method := func(fn func(in *Interp, a *Args) (Value, error)) (Value, error) {
		return &Builtin{Name: name, Fn: fn}, nil
	}
	switch name {
	case "ngroups":
		return float64(len(g.groups)), nil
	case "groups":
		d := NewDict()
		for _, gr := range g.groups {
			labels := make([]Value, len(gr.rows))
			for i, r := range gr.rows {
				labels[i] = g.f.Index.Label(r)
			}
			if err := d.Set(g.label(gr), &List{Items: labels}); err != nil {
				return nil, err
			}
		}
		return d, nil
	case "size":
		return method(func(*Interp, *Args) (Value, error) { return g.size(), nil })
	case "agg", "aggregate":
		return method(g.agg)
	case "transform":
		return method(g.transform)
	case "apply":
		return method(g.apply)
	case "head", "tail":
		return method(func(_ *Interp, a *Args) (Value, error) {
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
			var rows []int
			for _, gr := range g.groups {
				for _, k := range headTail(len(gr.rows), n, name == "tail") {
					rows = append(rows, gr.rows[k])
				}
			}
			rows = sortedInts(rows)
			return g.f.take(rows), nil
		})
	case "filter":
		return method(func(in *Interp, a *Args) (Value, error) {
			if len(a.Pos) != 1 {
				return nil, typeErrorf("filter() takes exactly one argument")
			}
			var rows []int
			for _, gr := range g.groups {
				v, err := in.Call(a.Pos[0], g.f.take(gr.rows))
				if err != nil {
					return nil, err
				}
				ok, err := Truth(v)
				if err != nil {
					return nil, err
				}
				if ok {
					rows = append(rows, gr.rows...)
				}
			}
			return g.f.take(sortedInts(rows)), nil
		})
	case "cumsum", "cumcount", "shift", "diff", "pct_change":
		return method(func(in *Interp, a *Args) (Value, error) {
			return g.perGroup(in, name, a)
		})
	}
	if reducers[name] {
		return method(func(_ *Interp, a *Args) (Value, error) {
			if _, err := a.Bind(name, "numeric_only", "min_count", "ddof", "skipna", "**"); err != nil {
				return nil, err
			}
			fr, err := g.aggFrame(name)
			if err != nil {
				return nil, err
			}
			return g.finish(fr), nil
		})
	}
	if !g.series && g.f.Data.Index(name) >= 0 {
		return g.GetItem(name)
	}
	return nil, Errorf("AttributeError", "'%s' object has no attribute '%s'", g.TypeName(), name)
}

func sortedInts(rows []int) []int {
	vals := make([]Value, len(rows))
	for i, r := range rows {
		vals[i] = float64(r)
	}
	order := stableOrder([][]Value{vals}, []bool{true})
	out := make([]int, len(order))
	for i, o := range order {
		out[i] = rows[o]
	}
	return out
}

// agg accepts a reducer name, a list of names, a column-to-reducer dict or
// named aggregations given as keyword tuples.
func (g *GroupBy) agg(_ *Interp, a *Args) (Value, error) {
	out := &Frame{Data: dataset.New(g.f.Data.Name), Index: g.keyIndex()}
	addCol := func(label, col, fn string) error {
		c, ok := g.f.Data.Column(col)
		if !ok {
			return Errorf("KeyError", "Column(s) ['%s'] do not exist", col)
		}
		vals, err := g.aggColumn(fn, c)
		if err != nil {
			return err
		}
		out.mustSet(label, vals)
		return nil
	}
	if len(a.Pos) == 0 {
		if len(a.Kw) == 0 {
			return nil, typeErrorf("Must provide 'func' or tuples of '(column, aggfunc).")
		}
		for _, kw := range a.Kw {
			var col, fn Value
			switch spec := kw.Value.(type) {
			case Tuple:
				if len(spec) != 2 {
					return nil, typeErrorf("Must provide 'func' or tuples of '(column, aggfunc).")
				}
				col, fn = spec[0], spec[1]
			default:
				if !g.series {
					return nil, typeErrorf("Must provide 'func' or tuples of '(column, aggfunc).")
				}
				col, fn = g.sel[0], spec
			}
			name, err := reducerName(fn)
			if err != nil {
				return nil, err
			}
			if err := addCol(kw.Name, Str(col), name); err != nil {
				return nil, err
			}
		}
		if !g.asIndex {
			return out.ResetIndex(), nil
		}
		return out, nil
	}
	if len(a.Pos) != 1 {
		return nil, typeErrorf("agg() takes 1 positional argument but %d were given", len(a.Pos))
	}
	switch spec := a.Pos[0].(type) {
	case *Dict:
		for _, k := range spec.Keys() {
			col := Str(k)
			v, _ := spec.Get(k)
			if l, ok := v.(*List); ok {
				for _, fn := range l.Items {
					name, err := reducerName(fn)
					if err != nil {
						return nil, err
					}
					if err := addCol(col+"_"+name, col, name); err != nil {
						return nil, err
					}
				}
				continue
			}
			name, err := reducerName(v)
			if err != nil {
				return nil, err
			}
			if err := addCol(col, col, name); err != nil {
				return nil, err
			}
		}
	case *List:
		cols := g.selected()
		for _, col := range cols {
			c, _ := g.f.Data.Column(col)
			for _, fn := range spec.Items {
				name, err := reducerName(fn)
				if err != nil {
					return nil, err
				}
				if numericReducer(name) && g.sel == nil && c.Kind != dataset.KindNumeric {
					continue
				}
				label := col + "_" + name
				if g.series {
					label = name
				}
				if err := addCol(label, col, name); err != nil {
					return nil, err
				}
			}
		}
	default:
		name, err := reducerName(spec)
		if err != nil {
			return nil, err
		}
		fr, err := g.aggFrame(name)
		if err != nil {
			return nil, err
		}
		return g.finish(fr), nil
	}
	if !g.asIndex {
		return out.ResetIndex(), nil
	}
	return out, nil
}

// transform broadcasts each group's aggregate back onto the group's rows.
func (g *GroupBy) transform(in *Interp, a *Args) (Value, error) {
	p, err := a.Bind("transform", "func", "**")
	if err != nil {
		return nil, err
	}
	n := g.f.rows()
	out := &Frame{Data: dataset.New(g.f.Data.Name), Index: g.f.Index}
	for _, col := range g.selected() {
		c, _ := g.f.Data.Column(col)
		vals := make([]Value, n)
		for _, gr := range g.groups {
			part := make([]Value, len(gr.rows))
			for k, r := range gr.rows {
				part[k] = c.Values[r]
			}
			if name, err := reducerName(p[0]); err == nil {
				v, err := reduce(name, part)
				if err != nil {
					return nil, err
				}
				for _, r := range gr.rows {
					vals[r] = v
				}
				continue
			}
			v, err := in.Call(p[0], &Series{Name: col, Values: part, Index: takeIndex(g.f.Index, gr.rows)})
			if err != nil {
				return nil, err
			}
			spread, err := broadcast(v, len(gr.rows), len(gr.rows), nil)
			if err != nil {
				return nil, err
			}
			for k, r := range gr.rows {
				vals[r] = spread[k]
			}
		}
		out.mustSet(col, vals)
	}
	if g.series {
		c := out.Data.Columns[0]
		return &Series{Name: c.Name, Values: c.Values, Index: g.f.Index}, nil
	}
	return out, nil
}

// apply calls fn per group. Scalar results form a series keyed by group;
// frame or series results are stacked.
func (g *GroupBy) apply(in *Interp, a *Args) (Value, error) {
	if len(a.Pos) < 1 {
		return nil, typeErrorf("apply() missing 1 required positional argument: 'func'")
	}
	var scalars []Value
	var frames []*Frame
	for _, gr := range g.groups {
		var part Value = g.f.take(gr.rows)
		if g.series {
			s, _ := g.f.column(g.sel[0])
			s.parent = nil
			part = s.take(gr.rows)
		} else if g.sel != nil {
			sub, err := g.f.selectColumns(g.sel)
			if err != nil {
				return nil, err
			}
			part = sub.take(gr.rows)
		}
		v, err := in.CallArgs(a.Pos[0], &Args{Pos: append([]Value{part}, a.Pos[1:]...)})
		if err != nil {
			return nil, err
		}
		switch r := v.(type) {
		case *Frame:
			frames = append(frames, r)
		case *Series:
			fr := r.toFrame(orName(r.Name, "0"))
			if len(r.Values) != len(gr.rows) {
				fr = transposeSeries(r)
			}
			frames = append(frames, fr)
		default:
			scalars = append(scalars, v)
		}
	}
	if frames != nil {
		if len(frames) != len(g.groups) {
			return nil, valueErrorf("apply() results must all be frames or all be scalars")
		}
		return concatFrames(frames, true)
	}
	s := NewSeries("", scalars).withIndex(g.keyIndex())
	if !g.asIndex {
		return s.toFrame("0").ResetIndex(), nil
	}
	return s, nil
}

func orName(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// transposeSeries makes a one-row frame from a series indexed by column name.
func transposeSeries(s *Series) *Frame {
	out := &Frame{Data: dataset.New("")}
	for i, v := range s.Values {
		out.mustSet(Str(s.Index.Label(i)), []Value{v})
	}
	return out
}

func (g *GroupBy) perGroup(in *Interp, name string, a *Args) (Value, error) {
	n := g.f.rows()
	out := &Frame{Data: dataset.New(g.f.Data.Name), Index: g.f.Index}
	cols := g.selected()
	if name == "cumcount" {
		cols = []string{"cumcount"}
	}
	for _, col := range cols {
		vals := make([]Value, n)
		for _, gr := range g.groups {
			if name == "cumcount" {
				for k, r := range gr.rows {
					vals[r] = float64(k)
				}
				continue
			}
			c, _ := g.f.Data.Column(col)
			part := &Series{Name: col, Values: make([]Value, len(gr.rows))}
			for k, r := range gr.rows {
				part.Values[k] = c.Values[r]
			}
			m, err := part.GetAttr(name)
			if err != nil {
				return nil, err
			}
			res, err := in.CallArgs(m, a)
			if err != nil {
				return nil, err
			}
			rs := res.(*Series)
			for k, r := range gr.rows {
				vals[r] = rs.Values[k]
			}
		}
		out.mustSet(col, vals)
	}
	if g.series || name == "cumcount" {
		c := out.Data.Columns[0]
		return &Series{Name: orName(g.firstSel(), ""), Values: c.Values, Index: g.f.Index}, nil
	}
	return out, nil
}

func (g *GroupBy) firstSel() string {
	if len(g.sel) > 0 && g.series {
		return g.sel[0]
	}
	return ""
}
