package domain

import "slices"

// ReadStats summarises per-sample read totals.
type ReadStats struct {
	Samples int     `json:"samples"`
	Total   float64 `json:"total"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	Mean    float64 `json:"mean"`
}

// ComputeReadStats derives summary statistics from per-sample totals.
// An empty input yields the zero value.
func ComputeReadStats(totals []float64) ReadStats {
	if len(totals) == 0 {
		return ReadStats{}
	}
	sorted := slices.Clone(totals)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return ReadStats{
		Samples: n,
		Total:   sum,
		Min:     sorted[0],
		Max:     sorted[n-1],
		Median:  median,
		Mean:    sum / float64(n),
	}
}
