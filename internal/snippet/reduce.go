package snippet

import (
	"math"
	"sort"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

// numbers extracts the non-missing numeric cells; any text cell is a fault.
func numbers(vals []Value, op string) ([]float64, error) {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			if s, isStr := v.(string); isStr {
				return nil, typeErrorf("Could not convert string '%s' to numeric", s)
			}
			return nil, typeErrorf("unsupported operand type(s) for %s: 'float' and '%s'", op, TypeName(v))
		}
		if math.IsNaN(f) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func present(vals []Value) []Value {
	out := make([]Value, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// reducers lists the aggregation names accepted by agg() and friends.
var reducers = map[string]bool{
	"sum": true, "mean": true, "median": true, "min": true, "max": true, "count": true, "nunique": true,
	"std": true, "var": true, "first": true, "last": true, "size": true, "prod": true, "any": true, "all": true,
}

// reduce aggregates a vector of cells, skipping missing values like pandas does.
func reduce(name string, vals []Value) (Value, error) {
	switch name {
	case "count":
		return float64(len(present(vals))), nil
	case "size":
		return float64(len(vals)), nil
	case "nunique":
		return float64(len(unique(present(vals)))), nil
	case "first":
		if p := present(vals); len(p) > 0 {
			return p[0], nil
		}
		return nil, nil
	case "last":
		if p := present(vals); len(p) > 0 {
			return p[len(p)-1], nil
		}
		return nil, nil
	case "any", "all":
		want := name == "any"
		for _, v := range present(vals) {
			ok, err := Truth(v)
			if err != nil {
				return nil, err
			}
			if ok == want {
				return want, nil
			}
		}
		return !want, nil
	case "min", "max":
		p := present(vals)
		if len(p) == 0 {
			return math.NaN(), nil
		}
		best := p[0]
		for _, v := range p[1:] {
			c, err := Compare("<", v, best)
			if err != nil {
				return nil, err
			}
			if (name == "min" && c < 0) || (name == "max" && c > 0) {
				best = v
			}
		}
		if b, ok := best.(bool); ok {
			f, _ := toFloat(b)
			return f, nil
		}
		return best, nil
	case "sum":
		p := present(vals)
		if len(p) > 0 {
			if _, ok := p[0].(string); ok {
				var total Value = ""
				for _, v := range p {
					var err error
					if total, err = BinaryOp("+", total, v); err != nil {
						return nil, err
					}
				}
				return total, nil
			}
		}
	}
	nums, err := numbers(vals, "+")
	if err != nil {
		return nil, err
	}
	switch name {
	case "sum":
		var s float64
		for _, f := range nums {
			s += f
		}
		return s, nil
	case "prod":
		p := 1.0
		for _, f := range nums {
			p *= f
		}
		return p, nil
	case "mean":
		return dataset.Mean(nums), nil
	case "median":
		if len(nums) == 0 {
			return math.NaN(), nil
		}
		return dataset.Quantile(dataset.Sorted(nums), 0.5), nil
	case "std":
		return dataset.Std(nums), nil
	case "var":
		sd := dataset.Std(nums)
		return sd * sd, nil
	}
	return nil, Errorf("AttributeError", "'SeriesGroupBy' object has no attribute '%s'", name)
}

// reducerName resolves an aggregation given as a string or a known callable.
func reducerName(v Value) (string, error) {
	switch x := v.(type) {
	case string:
		if x == "average" {
			return "mean", nil
		}
		if !reducers[x] {
			return "", Errorf("AttributeError", "'SeriesGroupBy' object has no attribute '%s'", x)
		}
		return x, nil
	case *Builtin:
		switch x.Name {
		case "sum", "mean", "median", "min", "max", "std", "var", "len", "count", "nunique":
			if x.Name == "len" {
				return "size", nil
			}
			return x.Name, nil
		}
	}
	return "", typeErrorf("aggregation function must be a string name, got %s", TypeName(v))
}

func quantileOf(vals []Value, q float64) (Value, error) {
	nums, err := numbers(vals, "-")
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return math.NaN(), nil
	}
	return dataset.Quantile(dataset.Sorted(nums), q), nil
}

// stableOrder returns row positions ordered by cells, missing last.
func stableOrder(cols [][]Value, ascending []bool) []int {
	n := 0
	if len(cols) > 0 {
		n = len(cols[0])
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for k, col := range cols {
			x, y := col[idx[a]], col[idx[b]]
			if Equal(x, y) {
				continue
			}
			if x == nil || y == nil {
				return y == nil
			}
			less := sortKeyLess(x, y)
			if ascending[k] {
				return less
			}
			return sortKeyLess(y, x)
		}
		return false
	})
	return idx
}
