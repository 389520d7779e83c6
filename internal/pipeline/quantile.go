package pipeline

import (
	"math"
	"slices"
)

// Quantile returns the q-th quantile of values using linear interpolation
// between order statistics: with sorted values v and h = (n-1)q, the result
// is v[floor(h)] + (h-floor(h)) * (v[floor(h)+1] - v[floor(h)]).
// ok is false when values is empty.
func Quantile(values []float64, q float64) (t float64, ok bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	v := slices.Clone(values)
	slices.Sort(v)

	q = math.Min(math.Max(q, 0), 1)
	h := float64(n-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return v[n-1], true
	}
	return v[i] + (h-lo)*(v[i+1]-v[i]), true
}

// PercentileQuantile converts "top p percent" into the quantile whose value
// is the selection threshold.
func PercentileQuantile(p float64) float64 {
	return (100 - p) / 100
}
