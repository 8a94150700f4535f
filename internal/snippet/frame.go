package snippet

import (
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

// Frame is the DataFrame value: a dataset plus optional row labels.
type Frame struct {
	Data  *dataset.Dataset
	Index *Index
}

// NewFrame wraps a dataset without copying it.
func NewFrame(ds *dataset.Dataset) *Frame { return newFrame(ds, nil) }

func newFrame(ds *dataset.Dataset, ix *Index) *Frame {
	if ds == nil {
		ds = dataset.New("")
	}
	return &Frame{Data: ds, Index: ix}
}

// ToDataset converts the frame back to a plain dataset. Named index levels
// (from groupby or set_index) become leading columns.
func (f *Frame) ToDataset() *dataset.Dataset {
	src := f
	if f.Index != nil {
		for _, n := range f.Index.Names {
			if n != "" {
				src = f.ResetIndex()
				break
			}
		}
	}
	out := src.Data.Copy()
	for _, c := range out.Columns {
		c.Kind = dataset.InferKind(c.Values)
	}
	return out
}

func (*Frame) TypeName() string { return "DataFrame" }

func (f *Frame) Len() int { return f.Data.Rows() }

func (f *Frame) rows() int { return f.Data.Rows() }

func (f *Frame) Truth() (bool, error) {
	return false, valueErrorf("The truth value of a DataFrame is ambiguous. Use a.empty, a.bool(), a.item(), a.any() or a.all().")
}

func (f *Frame) Iterate() ([]Value, error) { return stringValues(f.Data.Names()), nil }

func (f *Frame) Contains(v Value) (bool, error) {
	s, ok := v.(string)
	return ok && f.Data.Index(s) >= 0, nil
}

func stringValues(ss []string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (f *Frame) labels() []Value { return f.Index.Labels(f.rows()) }

// column returns a copy of the named column bound back to f for writes.
func (f *Frame) column(name string) (*Series, error) {
	c, ok := f.Data.Column(name)
	if !ok {
		return nil, keyError(name)
	}
	return &Series{Name: name, Values: append([]Value(nil), c.Values...), Index: f.Index, parent: f, column: name}, nil
}

func lengthMismatch(got, want int) *Fault {
	return valueErrorf("Length of values (%d) does not match length of index (%d)", got, want)
}

// setColumn replaces or appends a column. An empty frame takes its row count
// from the first column assigned.
func (f *Frame) setColumn(name string, vals []Value) error {
	if f.Data.Width() > 0 && len(vals) != f.rows() {
		return lengthMismatch(len(vals), f.rows())
	}
	if f.Data.Width() == 0 && f.Index != nil && f.Index.Len() != len(vals) {
		return lengthMismatch(len(vals), f.Index.Len())
	}
	return f.Data.SetColumn(dataset.NewColumn(name, vals))
}

// mustSet is setColumn for frames assembled by the runtime itself, where
// every column has the right length by construction.
func (f *Frame) mustSet(name string, vals []Value) {
	if err := f.setColumn(name, vals); err != nil {
		panic(err)
	}
}

func (f *Frame) take(rows []int) *Frame {
	return &Frame{Data: f.Data.Take(rows), Index: takeIndex(f.Index, rows)}
}

func (f *Frame) copy() *Frame {
	return &Frame{Data: f.Data.Copy(), Index: f.Index}
}

// assignFrom makes f hold g's contents, for inplace=True methods.
func (f *Frame) assignFrom(g *Frame) (Value, error) {
	f.Data.Columns, f.Index = g.Data.Columns, g.Index
	return nil, nil
}

func missingColumns(names []string) *Fault {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = quote(n)
	}
	return &Fault{Kind: "KeyError", Message: "\"[" + strings.Join(parts, ", ") + "] not in index\""}
}

// selectColumns returns a frame with the named columns in the given order.
func (f *Frame) selectColumns(names []string) (*Frame, error) {
	var missing []string
	out := dataset.New(f.Data.Name)
	for _, n := range names {
		c, ok := f.Data.Column(n)
		if !ok {
			missing = append(missing, n)
			continue
		}
		out.Columns = append(out.Columns, c.Copy())
	}
	if len(missing) > 0 {
		return nil, missingColumns(missing)
	}
	return &Frame{Data: out, Index: f.Index}, nil
}

// columnNames reads a column selector: a name, a list of names or an Index.
func columnNames(v Value) ([]string, bool) {
	switch x := v.(type) {
	case string:
		return []string{x}, true
	case *List, Tuple, *Series:
		items, _ := Iterate(x)
		out := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func (f *Frame) GetItem(key Value) (Value, error) {
	switch k := key.(type) {
	case string:
		return f.column(k)
	case *SliceVal:
		rows, err := slicePositions(k, f.rows())
		if err != nil {
			return nil, err
		}
		return f.take(rows), nil
	case *Frame:
		return nil, typeErrorf("boolean frame indexing is not supported; index with a boolean Series")
	}
	if m, ok, err := boolMask(key, f.rows()); ok || err != nil {
		if err != nil {
			return nil, err
		}
		return f.take(maskRows(m)), nil
	}
	if names, ok := columnNames(key); ok {
		return f.selectColumns(names)
	}
	return nil, keyError(key)
}

func (f *Frame) SetItem(key, v Value) error {
	if name, ok := key.(string); ok {
		if f.Data.Width() == 0 && f.Index == nil {
			switch x := v.(type) {
			case *Series:
				f.Index = x.Index
				return f.setColumn(name, append([]Value(nil), x.Values...))
			case *List:
				return f.setColumn(name, append([]Value(nil), x.Items...))
			}
		}
		vals, err := f.broadcastColumn(v)
		if err != nil {
			return err
		}
		return f.setColumn(name, vals)
	}
	if names, ok := columnNames(key); ok {
		src, isFrame := v.(*Frame)
		for j, n := range names {
			var val Value = v
			if isFrame {
				if j >= src.Data.Width() {
					return valueErrorf("Columns must be same length as key")
				}
				val = &Series{Values: src.Data.Columns[j].Values}
			}
			if err := f.SetItem(n, val); err != nil {
				return err
			}
		}
		return nil
	}
	if m, ok, err := boolMask(key, f.rows()); ok || err != nil {
		if err != nil {
			return err
		}
		rows := maskRows(m)
		for _, c := range f.Data.Columns {
			vals, err := broadcast(v, len(rows), f.rows(), rows)
			if err != nil {
				return err
			}
			for i, r := range rows {
				c.Values[r] = dataset.Normalize(vals[i])
			}
			c.Kind = dataset.InferKind(c.Values)
		}
		return nil
	}
	return typeErrorf("unhashable type: '%s'", TypeName(key))
}

// broadcastColumn expands a scalar or vector to a full column.
func (f *Frame) broadcastColumn(v Value) ([]Value, error) {
	n := f.rows()
	if f.Data.Width() == 0 && f.Index != nil {
		n = f.Index.Len()
	}
	switch x := v.(type) {
	case *Series:
		if len(x.Values) != n {
			return nil, lengthMismatch(len(x.Values), n)
		}
		return append([]Value(nil), x.Values...), nil
	case *List:
		if len(x.Items) != n {
			return nil, lengthMismatch(len(x.Items), n)
		}
		return append([]Value(nil), x.Items...), nil
	case Tuple:
		if len(x) != n {
			return nil, lengthMismatch(len(x), n)
		}
		return append([]Value(nil), x...), nil
	case *Frame:
		if x.Data.Width() != 1 {
			return nil, valueErrorf("Cannot set a DataFrame with multiple columns to the single column")
		}
		return f.broadcastColumn(&Series{Values: x.Data.Columns[0].Values})
	}
	out := make([]Value, n)
	for i := range out {
		out[i] = v
	}
	return out, nil
}

func (f *Frame) DelItem(key Value) error {
	name, ok := key.(string)
	if !ok || !f.Data.Drop(name) {
		return keyError(key)
	}
	return nil
}

func (f *Frame) SetAttr(name string, v Value) error {
	switch name {
	case "columns":
		names, ok := columnNames(v)
		if !ok {
			return typeErrorf("Index(...) must be called with a collection of column labels")
		}
		if len(names) != f.Data.Width() {
			return valueErrorf("Length mismatch: Expected axis has %d elements, new values have %d elements", f.Data.Width(), len(names))
		}
		for i, c := range f.Data.Columns {
			c.Name = names[i]
		}
		return f.Data.Validate()
	case "index":
		labels, err := Iterate(v)
		if err != nil {
			return err
		}
		if len(labels) != f.rows() {
			return valueErrorf("Length mismatch: Expected axis has %d elements, new values have %d elements", f.rows(), len(labels))
		}
		idxName := ""
		if s, ok := v.(*Series); ok {
			idxName = s.Name
		}
		f.Index = NewIndex(idxName, labels)
		return nil
	}
	if _, ok := f.Data.Column(name); ok {
		vals, err := f.broadcastColumn(v)
		if err != nil {
			return err
		}
		return f.setColumn(name, vals)
	}
	return Errorf("AttributeError", "cannot set attribute '%s' on a DataFrame; use df['%s'] = ...", name, name)
}

func (f *Frame) dtypes() *Series {
	names := f.Data.Names()
	vals := make([]Value, len(names))
	for i := range names {
		s, _ := f.column(names[i])
		vals[i] = s.dtype()
	}
	return &Series{Values: vals, Index: NewIndex("", stringValues(names))}
}

func (f *Frame) BinOp(op string, other Value, reflected bool) (Value, error) {
	out := &Frame{Data: dataset.New(f.Data.Name), Index: f.Index}
	otherFrame, _ := other.(*Frame)
	for j, c := range f.Data.Columns {
		s := &Series{Name: c.Name, Values: c.Values, Index: f.Index}
		var arg Value = other
		if otherFrame != nil {
			oc, ok := otherFrame.Data.Column(c.Name)
			if !ok {
				if j >= otherFrame.Data.Width() {
					return nil, valueErrorf("Unable to coerce to DataFrame, shapes do not match")
				}
				oc = otherFrame.Data.Columns[j]
			}
			arg = &Series{Name: c.Name, Values: oc.Values}
		}
		r, err := s.BinOp(op, arg, reflected)
		if err != nil {
			return nil, err
		}
		out.Data.Columns = append(out.Data.Columns, dataset.NewColumn(c.Name, r.(*Series).Values))
	}
	return out, nil
}

func (f *Frame) UnaryOp(op string) (Value, error) {
	out := &Frame{Data: dataset.New(f.Data.Name), Index: f.Index}
	for _, c := range f.Data.Columns {
		r, err := (&Series{Values: c.Values}).UnaryOp(op)
		if err != nil {
			return nil, err
		}
		out.Data.Columns = append(out.Data.Columns, dataset.NewColumn(c.Name, r.(*Series).Values))
	}
	return out, nil
}

// Str renders the frame as an aligned text table.
func (f *Frame) Str() string {
	if f.Data.Width() == 0 {
		return "Empty DataFrame\nColumns: []\nIndex: []"
	}
	rows := previewRows(f.rows())
	header := append([]string{""}, f.Data.Names()...)
	table := [][]string{header}
	for _, r := range rows {
		line := make([]string, len(header))
		if r < 0 {
			for j := range line {
				line[j] = "..."
			}
		} else {
			line[0] = Str(f.Index.Label(r))
			for j, c := range f.Data.Columns {
				line[j+1] = cellStr(c.Values[r])
			}
		}
		table = append(table, line)
	}
	widths := make([]int, len(header))
	for _, line := range table {
		for j, cell := range line {
			widths[j] = max(widths[j], len([]rune(cell)))
		}
	}
	var b strings.Builder
	for i, line := range table {
		for j, cell := range line {
			if j > 0 {
				b.WriteString("  ")
			}
			if j == 0 {
				b.WriteString(cell + strings.Repeat(" ", widths[j]-len([]rune(cell))))
			} else {
				b.WriteString(strings.Repeat(" ", widths[j]-len([]rune(cell))) + cell)
			}
		}
		if i < len(table)-1 {
			b.WriteByte('\n')
		}
	}
	if f.rows() > 25 {
		b.WriteString("\n\n[" + formatFloat(float64(f.rows())) + " rows x " + formatFloat(float64(f.Data.Width())) + " columns]")
	}
	return b.String()
}

// ResetIndex moves named index levels into leading columns and restores
// positional labels.
func (f *Frame) ResetIndex() *Frame {
	out := &Frame{Data: dataset.New(f.Data.Name)}
	if f.Index != nil {
		for j, name := range f.Index.levelNames() {
			if f.Data.Index(name) >= 0 {
				continue
			}
			out.Data.Columns = append(out.Data.Columns, dataset.NewColumn(name, f.Index.Level(j)))
		}
	} else {
		out.Data.Columns = append(out.Data.Columns, dataset.NewColumn("index", f.labels()))
	}
	for _, c := range f.Data.Columns {
		out.Data.Columns = append(out.Data.Columns, c.Copy())
	}
	return out
}

// row returns row i as a series indexed by column name.
func (f *Frame) row(i int) *Series {
	return &Series{Name: Str(f.Index.Label(i)), Values: f.Data.Row(i), Index: NewIndex("", stringValues(f.Data.Names()))}
}

// frameIndexer implements df.loc and df.iloc.
type frameIndexer struct {
	f          *Frame
	positional bool
}

func (x *frameIndexer) TypeName() string {
	if x.positional {
		return "_iLocIndexer"
	}
	return "_LocIndexer"
}

// rowSelector resolves the row part of an indexer key. scalar reports a
// single-row selection.
func (x *frameIndexer) rowSelector(key Value) (rows []int, scalar bool, err error) {
	n := x.f.rows()
	if sl, ok := key.(*SliceVal); ok {
		if x.positional || x.f.Index == nil {
			rows, err = slicePositions(sl, n)
			if err == nil && !x.positional && sl.Hi != nil {
				// label slices include the stop label
				if stop, e := ToInt(sl.Hi); e == nil && stop >= 0 && stop < n && (len(rows) == 0 || rows[len(rows)-1] < stop) {
					rows = append(rows, stop)
				}
			}
			return rows, false, err
		}
		lo, hi := 0, n-1
		if sl.Lo != nil {
			pos := x.f.Index.Find(sl.Lo, n)
			if len(pos) == 0 {
				return nil, false, keyError(sl.Lo)
			}
			lo = pos[0]
		}
		if sl.Hi != nil {
			pos := x.f.Index.Find(sl.Hi, n)
			if len(pos) == 0 {
				return nil, false, keyError(sl.Hi)
			}
			hi = pos[len(pos)-1]
		}
		for i := lo; i <= hi; i++ {
			rows = append(rows, i)
		}
		return rows, false, nil
	}
	if m, ok, err := boolMask(key, n); ok || err != nil {
		return maskRows(m), false, err
	}
	if l, ok := key.(*List); ok {
		for _, k := range l.Items {
			r, err := x.locateRow(k)
			if err != nil {
				return nil, false, err
			}
			rows = append(rows, r)
		}
		return rows, false, nil
	}
	r, err := x.locateRow(key)
	return []int{r}, true, err
}

func (x *frameIndexer) locateRow(key Value) (int, error) {
	n := x.f.rows()
	if x.positional {
		i, err := ToInt(key)
		if err != nil {
			return 0, typeErrorf("Cannot index by location index with a non-integer key")
		}
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return 0, Errorf("IndexError", "single positional indexer is out-of-bounds")
		}
		return i, nil
	}
	if x.f.Index == nil {
		if i, err := ToInt(key); err == nil && i >= 0 && i < n {
			return i, nil
		}
		return 0, keyError(key)
	}
	pos := x.f.Index.Find(key, n)
	if len(pos) == 0 {
		return 0, keyError(key)
	}
	return pos[0], nil
}

// colSelector resolves the column part; scalar reports a single column.
func (x *frameIndexer) colSelector(key Value) (names []string, scalar bool, err error) {
	all := x.f.Data.Names()
	if sl, ok := key.(*SliceVal); ok {
		if !x.positional && (sl.Lo != nil || sl.Hi != nil) {
			lo, hi := 0, len(all)-1
			if sl.Lo != nil {
				if lo = x.f.Data.Index(Str(sl.Lo)); lo < 0 {
					return nil, false, keyError(sl.Lo)
				}
			}
			if sl.Hi != nil {
				if hi = x.f.Data.Index(Str(sl.Hi)); hi < 0 {
					return nil, false, keyError(sl.Hi)
				}
			}
			return all[lo : hi+1], false, nil
		}
		pos, err := slicePositions(sl, len(all))
		if err != nil {
			return nil, false, err
		}
		for _, p := range pos {
			names = append(names, all[p])
		}
		return names, false, nil
	}
	if x.positional {
		items := []Value{key}
		scalar = true
		if l, ok := key.(*List); ok {
			items, scalar = l.Items, false
		}
		allVals := stringValues(all)
		for _, it := range items {
			j, err := seqIndex(allVals, it, "column")
			if err != nil {
				return nil, false, Errorf("IndexError", "single positional indexer is out-of-bounds")
			}
			names = append(names, all[j])
		}
		return names, scalar, nil
	}
	if m, ok, err := boolMask(key, len(all)); ok || err != nil {
		for _, j := range maskRows(m) {
			names = append(names, all[j])
		}
		return names, false, err
	}
	if s, ok := key.(string); ok {
		return []string{s}, true, nil
	}
	names, ok := columnNames(key)
	if !ok {
		return nil, false, keyError(key)
	}
	return names, false, nil
}

func splitKey(key Value) (rowKey, colKey Value, hasCols bool) {
	if t, ok := key.(Tuple); ok && len(t) == 2 {
		return t[0], t[1], true
	}
	return key, nil, false
}

func (x *frameIndexer) GetItem(key Value) (Value, error) {
	rowKey, colKey, hasCols := splitKey(key)
	rows, scalarRow, err := x.rowSelector(rowKey)
	if err != nil {
		return nil, err
	}
	if !hasCols {
		if scalarRow {
			return x.f.row(rows[0]), nil
		}
		return x.f.take(rows), nil
	}
	names, scalarCol, err := x.colSelector(colKey)
	if err != nil {
		return nil, err
	}
	sub, err := x.f.selectColumns(names)
	if err != nil {
		return nil, err
	}
	switch {
	case scalarRow && scalarCol:
		return sub.Data.Columns[0].Values[rows[0]], nil
	case scalarRow:
		return sub.row(rows[0]), nil
	case scalarCol:
		s, _ := sub.column(names[0])
		s.parent = nil
		return s.take(rows), nil
	}
	return sub.take(rows), nil
}

func (x *frameIndexer) SetItem(key, v Value) error {
	rowKey, colKey, hasCols := splitKey(key)
	if !hasCols {
		colKey = &SliceVal{}
	}
	var rows []int
	var err error
	if !x.positional && x.f.Index == nil && !hasCols {
		// df.loc[n] = [...] appends when n is a new positional label
		if i, e := ToInt(rowKey); e == nil && i == x.f.rows() {
			return x.appendRow(v)
		}
	}
	if rows, _, err = x.rowSelector(rowKey); err != nil {
		return err
	}
	var names []string
	if !x.positional {
		if s, ok := colKey.(string); ok {
			names = []string{s}
			if _, exists := x.f.Data.Column(s); !exists {
				if err := x.f.setColumn(s, make([]Value, x.f.rows())); err != nil {
					return err
				}
			}
		}
	}
	if names == nil {
		if names, _, err = x.colSelector(colKey); err != nil {
			return err
		}
	}
	for j, name := range names {
		c, _ := x.f.Data.Column(name)
		val := v
		if len(names) > 1 {
			if l, ok := v.(*List); ok && len(l.Items) == len(names) && len(rows) == 1 {
				val = l.Items[j]
			}
		}
		vals, err := broadcast(val, len(rows), x.f.rows(), rows)
		if err != nil {
			return err
		}
		for i, r := range rows {
			c.Values[r] = dataset.Normalize(vals[i])
		}
		c.Kind = dataset.InferKind(c.Values)
	}
	return nil
}

func (x *frameIndexer) appendRow(v Value) error {
	items, err := Iterate(v)
	if err != nil {
		return err
	}
	if len(items) != x.f.Data.Width() {
		return valueErrorf("cannot set a row with mismatched columns")
	}
	for j, c := range x.f.Data.Columns {
		c.Values = append(c.Values, dataset.Normalize(items[j]))
		c.Kind = dataset.InferKind(c.Values)
	}
	return nil
}
