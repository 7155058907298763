// Package statistics provides aggregate glycemic statistics over glucose
// readings and treatments
package statistics

import (
	"math"
	"sort"

	"github.com/mrcode/nightscout-engine/internal/models"
)

// Physiological bounds of a usable reading, exclusive, in mg/dL
const (
	minValidGlucose = 0
	maxValidGlucose = 700
)

// BasicStats summarises a set of glucose values
type BasicStats struct {
	Count             int     `json:"count"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	StandardDeviation float64 `json:"standardDeviation"`
	Percentile10      float64 `json:"percentile10"`
	Percentile25      float64 `json:"percentile25"`
	Percentile75      float64 `json:"percentile75"`
	Percentile90      float64 `json:"percentile90"`
}

// ExtractGlucoseValues returns the mg/dL values of entries inside the valid range
func ExtractGlucoseValues(entries []models.Entry) []float64 {
	values := make([]float64, 0, len(entries))
	for _, e := range entries {
		v := float64(e.Value())
		if v > minValidGlucose && v < maxValidGlucose {
			values = append(values, v)
		}
	}
	return values
}

// CalculateBasicStats computes count, mean, median, extremes, population
// standard deviation and percentiles. Empty input yields a zero result.
func CalculateBasicStats(values []float64) BasicStats {
	if len(values) == 0 {
		return BasicStats{}
	}

	sorted := sortedCopy(values)
	n := float64(len(sorted))

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / n

	return BasicStats{
		Count:             len(sorted),
		Mean:              mean,
		Median:            median(sorted),
		Min:               sorted[0],
		Max:               sorted[len(sorted)-1],
		StandardDeviation: stdDev(sorted, mean),
		Percentile10:      CalculatePercentile(sorted, 10),
		Percentile25:      CalculatePercentile(sorted, 25),
		Percentile75:      CalculatePercentile(sorted, 75),
		Percentile90:      CalculatePercentile(sorted, 90),
	}
}

// CalculatePercentile returns the p-th percentile (0..100) of an ascending
// slice using linear interpolation between closest ranks
func CalculatePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 || math.IsNaN(p) {
		return 0
	}
	p = math.Max(0, math.Min(100, p))

	idx := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(idx-float64(lo))
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// median expects an ascending slice
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation around m
func stdDev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		diff := v - m
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
