package dataset

import (
	"encoding/json"
	"math"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

// Kind is the declared primitive type of a column.
type Kind string

const (
	KindNumeric  Kind = "numeric"
	KindText     Kind = "text"
	KindTemporal Kind = "temporal"
	// KindBool only arises from snippet-produced columns (masks, flags).
	KindBool Kind = "bool"
)

// Column is a named, typed vector of cells. A cell is nil (missing), float64,
// string, time.Time or bool; NaN floats are stored as nil.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Dataset is an in-memory table: equal-length columns in display order.
type Dataset struct {
	Name    string
	Columns []*Column
}

// New returns an empty dataset.
func New(name string) *Dataset {
	return &Dataset{Name: name}
}

// NewColumn builds a column, normalising cells and inferring its kind.
func NewColumn(name string, values []any) *Column {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = Normalize(v)
	}
	return &Column{Name: name, Kind: InferKind(out), Values: out}
}

// Rows returns the number of rows.
func (d *Dataset) Rows() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// Width returns the number of columns.
func (d *Dataset) Width() int {
	if d == nil {
		return 0
	}
	return len(d.Columns)
}

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	if i := d.Index(name); i >= 0 {
		return d.Columns[i], true
	}
	return nil, false
}

// SetColumn replaces the column with the same name or appends it.
func (d *Dataset) SetColumn(c *Column) error {
	if len(d.Columns) > 0 && len(c.Values) != d.Rows() {
		return errors.Newf("length of values (%d) does not match length of index (%d)", len(c.Values), d.Rows())
	}
	if i := d.Index(c.Name); i >= 0 {
		d.Columns[i] = c
		return nil
	}
	d.Columns = append(d.Columns, c)
	return nil
}

// Drop removes the named column; it reports whether the column existed.
func (d *Dataset) Drop(name string) bool {
	i := d.Index(name)
	if i < 0 {
		return false
	}
	d.Columns = append(d.Columns[:i], d.Columns[i+1:]...)
	return true
}

// Row returns the cells of row i in column order.
func (d *Dataset) Row(i int) []any {
	row := make([]any, len(d.Columns))
	for j, c := range d.Columns {
		row[j] = c.Values[i]
	}
	return row
}

// Take returns a new dataset holding the given rows in the given order.
func (d *Dataset) Take(rows []int) *Dataset {
	out := &Dataset{Name: d.Name, Columns: make([]*Column, len(d.Columns))}
	for j, c := range d.Columns {
		vals := make([]any, len(rows))
		for k, r := range rows {
			vals[k] = c.Values[r]
		}
		out.Columns[j] = &Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	return out
}

// Copy returns a deep copy. Cells are immutable values so copying the slices suffices.
func (d *Dataset) Copy() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{Name: d.Name, Columns: make([]*Column, len(d.Columns))}
	for i, c := range d.Columns {
		out.Columns[i] = c.Copy()
	}
	return out
}

// Validate checks that all columns have the same length and unique names.
func (d *Dataset) Validate() error {
	seen := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		if seen[c.Name] {
			return errors.Newf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Values) != d.Rows() {
			return errors.Newf("column %q has %d rows, expected %d", c.Name, len(c.Values), d.Rows())
		}
	}
	return nil
}

// Copy returns a copy of the column.
func (c *Column) Copy() *Column {
	vals := make([]any, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: vals}
}

// Missing counts missing cells.
func (c *Column) Missing() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Floats returns the non-missing numeric cells.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Normalize maps host values onto the cell representation.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case float32:
		return Normalize(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x
	default:
		return v
	}
}

// InferKind picks the kind shared by every non-missing cell, defaulting to text
// for mixed columns and numeric for all-missing ones.
func InferKind(values []any) Kind {
	var kind Kind
	for _, v := range values {
		var k Kind
		switch v.(type) {
		case nil:
			continue
		case float64:
			k = KindNumeric
		case time.Time:
			k = KindTemporal
		case bool:
			k = KindBool
		default:
			k = KindText
		}
		if kind == "" {
			kind = k
		} else if kind != k {
			return KindText
		}
	}
	if kind == "" {
		return KindNumeric
	}
	return kind
}

type columnHeader struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// MarshalJSON encodes the dataset row-major: a column header list and one
// array per row.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	out := struct {
		Name    string         `json:"name,omitempty"`
		Columns []columnHeader `json:"columns"`
		Rows    [][]any        `json:"rows"`
	}{Name: d.Name, Columns: make([]columnHeader, len(d.Columns)), Rows: make([][]any, d.Rows())}
	for i, c := range d.Columns {
		out.Columns[i] = columnHeader{Name: c.Name, Kind: c.Kind}
	}
	for i := range out.Rows {
		out.Rows[i] = d.Row(i)
	}
	return json.Marshal(out)
}
