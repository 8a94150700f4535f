package snippet

// Index holds row labels. A nil *Index means the default positional labels 0..n-1.
type Index struct {
	Names []string
	Keys  [][]Value // Keys[row][level]
}

// NewIndex builds a single-level index.
func NewIndex(name string, labels []Value) *Index {
	ix := &Index{Names: []string{name}, Keys: make([][]Value, len(labels))}
	for i, l := range labels {
		ix.Keys[i] = []Value{l}
	}
	return ix
}

func (ix *Index) Len() int { return len(ix.Keys) }

// Label returns the label of row i: a scalar for one level, a Tuple otherwise.
func (ix *Index) Label(i int) Value {
	if ix == nil {
		return float64(i)
	}
	if len(ix.Names) == 1 {
		return ix.Keys[i][0]
	}
	return Tuple(append([]Value(nil), ix.Keys[i]...))
}

// Labels lists every row label.
func (ix *Index) Labels(n int) []Value {
	out := make([]Value, n)
	for i := range out {
		out[i] = ix.Label(i)
	}
	return out
}

// Level returns the labels of level j.
func (ix *Index) Level(j int) []Value {
	out := make([]Value, len(ix.Keys))
	for i, k := range ix.Keys {
		out[i] = k[j]
	}
	return out
}

// Take selects rows; nil stays nil only when the positions are the identity.
func (ix *Index) Take(rows []int) *Index {
	if ix == nil {
		return nil
	}
	out := &Index{Names: ix.Names, Keys: make([][]Value, len(rows))}
	for i, r := range rows {
		out.Keys[i] = ix.Keys[r]
	}
	return out
}

// takeOrRange keeps positional labels explicit once rows are reordered or filtered.
func takeIndex(ix *Index, rows []int) *Index {
	if ix != nil {
		return ix.Take(rows)
	}
	identity := true
	for i, r := range rows {
		if i != r {
			identity = false
			break
		}
	}
	if identity {
		return nil
	}
	labels := make([]Value, len(rows))
	for i, r := range rows {
		labels[i] = float64(r)
	}
	return NewIndex("", labels)
}

// Find returns the positions whose label equals key.
func (ix *Index) Find(key Value, n int) []int {
	var out []int
	for i := 0; i < n; i++ {
		if Equal(ix.Label(i), key) {
			out = append(out, i)
		}
	}
	return out
}

// levelNames names the index levels the way reset_index() does.
func (ix *Index) levelNames() []string {
	out := make([]string, len(ix.Names))
	for j, n := range ix.Names {
		switch {
		case n != "":
			out[j] = n
		case len(ix.Names) == 1:
			out[j] = "index"
		default:
			out[j] = "level_" + formatFloat(float64(j))
		}
	}
	return out
}
