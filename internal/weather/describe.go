package weather

import (
	"math"
	"sort"
)

// Stats summarizes one column of a table, ignoring missing values.
type Stats struct {
	Count  int      `json:"count"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
}

// Describe computes Stats for each requested column, or for every column of
// t when none is given.
func Describe(t Table, columns ...string) map[string]Stats {
	if len(columns) == 0 {
		columns = t.Columns
	}

	out := make(map[string]Stats, len(columns))
	for _, code := range columns {
		var values []float64
		for _, v := range t.Column(code) {
			if v != nil {
				values = append(values, *v)
			}
		}
		out[code] = describe(values)
	}
	return out
}

func describe(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	var sum float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Stats{Count: n, Min: &lo, Max: &hi, Mean: &mean, Median: &median}
}
