package dataset

import (
	"math"
	"sort"
)

// Quantile interpolates linearly between closest ranks of a sorted slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Sorted returns a sorted copy.
func Sorted(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

// Mean returns the arithmetic mean, NaN for no values.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

// Std returns the sample standard deviation (ddof=1) via Welford.
func Std(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	var n int
	var mean, m2 float64
	for _, x := range vals {
		n++
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	return math.Sqrt(m2 / float64(n-1))
}

// IQRBounds returns the quartiles and the fences k interquartile ranges beyond them.
func IQRBounds(vals []float64, k float64) (q1, q3, lo, hi float64) {
	s := Sorted(vals)
	q1 = Quantile(s, 0.25)
	q3 = Quantile(s, 0.75)
	iqr := q3 - q1
	return q1, q3, q1 - k*iqr, q3 + k*iqr
}
