package snippet

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Value is any runtime value. Scalars use plain Go types: nil (None), bool,
// float64 (every number), string, time.Time and time.Duration.
type Value = any

// Object is implemented by host values exposed to snippets.
type Object interface {
	TypeName() string
}

type (
	AttrGetter interface {
		GetAttr(name string) (Value, error)
	}
	AttrSetter interface {
		SetAttr(name string, v Value) error
	}
	ItemGetter interface {
		GetItem(key Value) (Value, error)
	}
	ItemSetter interface {
		SetItem(key, v Value) error
	}
	ItemDeleter interface {
		DelItem(key Value) error
	}
	Lener interface {
		Len() int
	}
	Iterable interface {
		Iterate() ([]Value, error)
	}
	Truther interface {
		Truth() (bool, error)
	}
	Callable interface {
		Call(in *Interp, a *Args) (Value, error)
	}
	// BinOper handles arithmetic and comparisons where it is an operand.
	// Returning errNotImplemented defers to the other operand.
	BinOper interface {
		BinOp(op string, other Value, reflected bool) (Value, error)
	}
	UnaryOper interface {
		UnaryOp(op string) (Value, error)
	}
	Container interface {
		Contains(v Value) (bool, error)
	}
	Stringer interface {
		Str() string
	}
)

var errNotImplemented = &Fault{Kind: "NotImplemented"}

// List is a mutable sequence.
type List struct{ Items []Value }

func NewList(items ...Value) *List { return &List{Items: items} }
func (*List) TypeName() string     { return "list" }
func (l *List) Len() int           { return len(l.Items) }

// Tuple is an immutable sequence.
type Tuple []Value

// SliceVal is an evaluated slice expression; nil bounds are omitted.
type SliceVal struct{ Lo, Hi, Step Value }

func (*SliceVal) TypeName() string { return "slice" }

// Dict is an insertion-ordered mapping with hashable keys.
type Dict struct {
	keys []Value
	vals []Value
	idx  map[any]int
}

func NewDict() *Dict              { return &Dict{idx: map[any]int{}} }
func (*Dict) TypeName() string    { return "dict" }
func (d *Dict) Len() int          { return len(d.keys) }
func (d *Dict) Keys() []Value     { return append([]Value(nil), d.keys...) }
func (d *Dict) Values() []Value   { return append([]Value(nil), d.vals...) }

func (d *Dict) Get(k Value) (Value, bool) {
	h, err := hashKey(k)
	if err != nil {
		return nil, false
	}
	i, ok := d.idx[h]
	if !ok {
		return nil, false
	}
	return d.vals[i], true
}

func (d *Dict) Set(k, v Value) error {
	h, err := hashKey(k)
	if err != nil {
		return err
	}
	if i, ok := d.idx[h]; ok {
		d.vals[i] = v
		return nil
	}
	d.idx[h] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil
}

func (d *Dict) Delete(k Value) bool {
	h, err := hashKey(k)
	if err != nil {
		return false
	}
	i, ok := d.idx[h]
	if !ok {
		return false
	}
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	d.idx = make(map[any]int, len(d.keys))
	for j, key := range d.keys {
		hk, _ := hashKey(key)
		d.idx[hk] = j
	}
	return true
}

// StringMap returns the entries keyed by their string form.
func (d *Dict) StringMap() map[string]Value {
	out := make(map[string]Value, len(d.keys))
	for i, k := range d.keys {
		out[Str(k)] = d.vals[i]
	}
	return out
}

type timeKey struct{ ns int64 }

func hashKey(v Value) (any, error) {
	switch x := v.(type) {
	case nil, string, float64:
		return x, nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	case time.Time:
		return timeKey{x.UnixNano()}, nil
	case time.Duration:
		return x, nil
	case Tuple:
		var b strings.Builder
		b.WriteString("\x00tuple")
		for _, el := range x {
			h, err := hashKey(el)
			if err != nil {
				return nil, err
			}
			b.WriteString("\x00")
			b.WriteString(Repr(h))
		}
		return b.String(), nil
	}
	return nil, typeErrorf("unhashable type: '%s'", TypeName(v))
}

// Builtin is a host function callable from snippets.
type Builtin struct {
	Name string
	Fn   func(in *Interp, a *Args) (Value, error)
	// Exc marks exception classes usable in raise/except.
	Exc bool
}

func (*Builtin) TypeName() string { return "builtin_function_or_method" }

func (b *Builtin) Call(in *Interp, a *Args) (Value, error) { return b.Fn(in, a) }

// Module is a named namespace of helpers.
type Module struct {
	Name  string
	Attrs map[string]Value
}

func (*Module) TypeName() string { return "module" }

func (m *Module) GetAttr(name string) (Value, error) {
	if v, ok := m.Attrs[name]; ok {
		return v, nil
	}
	return nil, Errorf("AttributeError", "module '%s' has no attribute '%s'", m.Name, name)
}

// Closure is an evaluated lambda.
type Closure struct {
	fn  *Lambda
	env *scope
}

func (*Closure) TypeName() string { return "function" }

// Kwarg is one keyword argument of a call.
type Kwarg struct {
	Name  string
	Value Value
}

// Args carries call arguments to host functions.
type Args struct {
	Pos []Value
	Kw  []Kwarg
}

// NewArgs builds positional-only arguments.
func NewArgs(pos ...Value) *Args { return &Args{Pos: pos} }

// Kwarg returns a keyword argument by name.
func (a *Args) Kwarg(name string) (Value, bool) {
	for _, kw := range a.Kw {
		if kw.Name == name {
			return kw.Value, true
		}
	}
	return nil, false
}

// Bind maps arguments onto params in order. A trailing "**" param tolerates
// unknown keywords; otherwise they raise the unexpected-keyword TypeError.
// Absent parameters come back as nil.
func (a *Args) Bind(fn string, params ...string) ([]Value, error) {
	open := len(params) > 0 && params[len(params)-1] == "**"
	if open {
		params = params[:len(params)-1]
	}
	out := make([]Value, len(params))
	if len(a.Pos) > len(params) {
		return nil, typeErrorf("%s() takes %d positional arguments but %d were given", fn, len(params), len(a.Pos))
	}
	set := make([]bool, len(params))
	for i, v := range a.Pos {
		out[i] = v
		set[i] = true
	}
	for _, kw := range a.Kw {
		j := indexOf(params, kw.Name)
		if j < 0 {
			if open {
				continue
			}
			return nil, UnexpectedKeyword(fn, kw.Name)
		}
		if set[j] {
			return nil, typeErrorf("%s() got multiple values for argument '%s'", fn, kw.Name)
		}
		out[j] = kw.Value
		set[j] = true
	}
	return out, nil
}

// Has reports whether the named keyword or the i-th positional was passed.
func (a *Args) Has(i int, name string) bool {
	if i >= 0 && i < len(a.Pos) {
		return true
	}
	_, ok := a.Kwarg(name)
	return ok
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// TypeName returns the runtime type name used in fault messages.
func TypeName(v Value) string {
	switch x := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return "int"
		}
		return "float"
	case string:
		return "str"
	case time.Time:
		return "Timestamp"
	case time.Duration:
		return "Timedelta"
	case Tuple:
		return "tuple"
	case Object:
		return x.TypeName()
	}
	return "object"
}

// Truth evaluates v in a boolean context.
func Truth(v Value) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case string:
		return x != "", nil
	case time.Duration:
		return x != 0, nil
	case Tuple:
		return len(x) > 0, nil
	case Truther:
		return x.Truth()
	case Lener:
		return x.Len() > 0, nil
	}
	return true, nil
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ToFloat converts a numeric value.
func ToFloat(v Value) (float64, error) {
	if f, ok := toFloat(v); ok {
		return f, nil
	}
	return 0, typeErrorf("must be real number, not %s", TypeName(v))
}

// ToInt converts an integral number.
func ToInt(v Value) (int, error) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, typeErrorf("'%s' object cannot be interpreted as an integer", TypeName(v))
	}
	return int(f), nil
}

// ToString requires a str value.
func ToString(v Value, what string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeErrorf("%s must be str, not %s", what, TypeName(v))
	}
	return s, nil
}

// ToStrings accepts a str or any iterable of str (a column selector).
func ToStrings(v Value) ([]string, error) {
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	items, err := Iterate(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = Str(it)
	}
	return out, nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	a := math.Abs(f)
	if a == 0 || (a >= 1e-4 && a < 1e16) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	days := int64(d / (24 * time.Hour))
	rest := d - time.Duration(days)*24*time.Hour
	if rest < 0 {
		days--
		rest += 24 * time.Hour
	}
	h := int64(rest / time.Hour)
	m := int64(rest % time.Hour / time.Minute)
	s := int64(rest % time.Minute / time.Second)
	return strconv.FormatInt(days, 10) + " days " + pad2(h) + ":" + pad2(m) + ":" + pad2(s)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// Str renders v the way str() does.
func Str(v Value) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return formatTime(x)
	case time.Duration:
		return formatDuration(x)
	case Stringer:
		return x.Str()
	}
	return Repr(v)
}

// Repr renders v the way repr() does.
func Repr(v Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return formatFloat(x)
	case string:
		return quote(x)
	case time.Time:
		return "Timestamp('" + formatTime(x) + "')"
	case time.Duration:
		return "Timedelta('" + formatDuration(x) + "')"
	case *List:
		return "[" + joinRepr(x.Items) + "]"
	case Tuple:
		if len(x) == 1 {
			return "(" + Repr(x[0]) + ",)"
		}
		return "(" + joinRepr(x) + ")"
	case *Dict:
		parts := make([]string, len(x.keys))
		for i, k := range x.keys {
			parts[i] = Repr(k) + ": " + Repr(x.vals[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Fault:
		return x.Kind + "(" + quote(x.Message) + ")"
	case *Builtin:
		return "<built-in function " + x.Name + ">"
	case *Module:
		return "<module '" + x.Name + "'>"
	case Stringer:
		return x.Str()
	case Object:
		return "<" + x.TypeName() + " object>"
	}
	return "<object>"
}

func joinRepr(items []Value) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = Repr(it)
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	q := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		q = `"`
	}
	r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	s = r.Replace(s)
	if q == "'" {
		s = strings.ReplaceAll(s, "'", `\'`)
	}
	return q + s + q
}

// Equal is value equality for scalars and containers; objects compare by identity.
func Equal(a, b Value) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case time.Duration:
		y, ok := b.(time.Duration)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		return ok && seqEqual(x, y)
	case *List:
		y, ok := b.(*List)
		return ok && seqEqual(x.Items, y.Items)
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			yv, ok := y.Get(k)
			if !ok || !Equal(x.vals[i], yv) {
				return false
			}
		}
		return true
	}
	return a == b
}

func seqEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Compare orders two values; op is only used in the fault message.
func Compare(op string, a, b Value) (int, error) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmpFloat(fa, fb), nil
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
		if y, ok := b.(string); ok {
			if t, ok := parseTimeString(y); ok {
				return x.Compare(t), nil
			}
		}
	case time.Duration:
		if y, ok := b.(time.Duration); ok {
			return cmpFloat(float64(x), float64(y)), nil
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return compareSeq(op, x, y)
		}
	case *List:
		if y, ok := b.(*List); ok {
			return compareSeq(op, x.Items, y.Items)
		}
	}
	return 0, typeErrorf("'%s' not supported between instances of '%s' and '%s'", op, TypeName(a), TypeName(b))
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareSeq(op string, a, b []Value) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if Equal(a[i], b[i]) {
			continue
		}
		return Compare(op, a[i], b[i])
	}
	return cmpFloat(float64(len(a)), float64(len(b))), nil
}

// sortKeyLess orders mixed cells for sorting: missing last, then numbers,
// strings, times; incomparable kinds fall back to their type names.
func sortKeyLess(a, b Value) bool {
	if a == nil || b == nil {
		return a != nil && b == nil
	}
	c, err := Compare("<", a, b)
	if err != nil {
		return TypeName(a) < TypeName(b)
	}
	return c < 0
}

// Iterate materialises an iterable value.
func Iterate(v Value) ([]Value, error) {
	switch x := v.(type) {
	case *List:
		return append([]Value(nil), x.Items...), nil
	case Tuple:
		return append([]Value(nil), x...), nil
	case *Dict:
		return x.Keys(), nil
	case string:
		out := make([]Value, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, nil
	case Iterable:
		return x.Iterate()
	}
	return nil, typeErrorf("'%s' object is not iterable", TypeName(v))
}

// Length implements len().
func Length(v Value) (int, error) {
	switch x := v.(type) {
	case string:
		return len([]rune(x)), nil
	case Tuple:
		return len(x), nil
	case Lener:
		return x.Len(), nil
	}
	return 0, typeErrorf("object of type '%s' has no len()", TypeName(v))
}

// Contains implements the "in" operator.
func Contains(container, item Value) (bool, error) {
	switch x := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, typeErrorf("'in <string>' requires string as left operand, not %s", TypeName(item))
		}
		return strings.Contains(x, s), nil
	case *List:
		return containsValue(x.Items, item), nil
	case Tuple:
		return containsValue(x, item), nil
	case *Dict:
		_, ok := x.Get(item)
		return ok, nil
	case Container:
		return x.Contains(item)
	}
	return false, typeErrorf("argument of type '%s' is not iterable", TypeName(container))
}

func containsValue(items []Value, v Value) bool {
	for _, it := range items {
		if Equal(it, v) {
			return true
		}
	}
	return false
}

// sliceBounds resolves a slice against a sequence of length n.
func sliceBounds(s *SliceVal, n int) (start, stop, step int, err error) {
	step = 1
	if s.Step != nil {
		if step, err = ToInt(s.Step); err != nil {
			return
		}
		if step == 0 {
			err = valueErrorf("slice step cannot be zero")
			return
		}
	}
	clamp := func(v Value, def int) (int, error) {
		if v == nil {
			return def, nil
		}
		i, err := ToInt(v)
		if err != nil {
			return 0, typeErrorf("slice indices must be integers or None or have an __index__ method")
		}
		if i < 0 {
			i += n
		}
		lo, hi := 0, n
		if step < 0 {
			lo, hi = -1, n-1
		}
		if i < lo {
			i = lo
		}
		if i > hi {
			i = hi
		}
		return i, nil
	}
	if step > 0 {
		if start, err = clamp(s.Lo, 0); err != nil {
			return
		}
		stop, err = clamp(s.Hi, n)
		return
	}
	if start, err = clamp(s.Lo, n-1); err != nil {
		return
	}
	stop, err = clamp(s.Hi, -1)
	return
}

// slicePositions lists the positions a slice selects.
func slicePositions(s *SliceVal, n int) ([]int, error) {
	start, stop, step, err := sliceBounds(s, n)
	if err != nil {
		return nil, err
	}
	var out []int
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out, nil
}

func sliceValues(items []Value, s *SliceVal) ([]Value, error) {
	pos, err := slicePositions(s, len(items))
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(pos))
	for i, p := range pos {
		out[i] = items[p]
	}
	return out, nil
}

func seqIndex(items []Value, key Value, what string) (int, error) {
	i, err := ToInt(key)
	if err != nil {
		return 0, typeErrorf("%s indices must be integers or slices, not %s", what, TypeName(key))
	}
	if i < 0 {
		i += len(items)
	}
	if i < 0 || i >= len(items) {
		return 0, Errorf("IndexError", "%s index out of range", what)
	}
	return i, nil
}

// sortValues sorts in place with the optional key function.
func sortValues(in *Interp, items []Value, key Value, reverse bool) error {
	keys := items
	if key != nil {
		keys = make([]Value, len(items))
		for i, it := range items {
			k, err := in.Call(key, it)
			if err != nil {
				return err
			}
			keys[i] = k
		}
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var cmpErr error
	sort.SliceStable(idx, func(a, b int) bool {
		c, err := Compare("<", keys[idx[a]], keys[idx[b]])
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if cmpErr != nil {
		return cmpErr
	}
	sorted := make([]Value, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
	return nil
}
