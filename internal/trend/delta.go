package trend

import (
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/units"
)

// interpolationGapMins is the largest gap treated as consecutive readings
const interpolationGapMins = 9.0

// DeltaResult is the change between the two most recent readings
type DeltaResult struct {
	Absolute     float64       `json:"absolute"` // raw recent - previous, mg/dL
	Mgdl         int           `json:"mgdl"`     // 5-minute delta, mg/dL
	Scaled       float64       `json:"scaled"`   // Mgdl in display units
	Display      string        `json:"display"`
	Interpolated bool          `json:"interpolated"`
	ElapsedMins  float64       `json:"elapsedMins"`
	Mean5MinsAgo float64       `json:"mean5MinsAgo"`
	Previous     *models.Entry `json:"previous,omitempty"`
}

// recentReadings returns entries with a glucose value, newest first
func recentReadings(entries []models.Entry) []models.Entry {
	sorted := lo.Filter(entries, func(e models.Entry, _ int) bool {
		return e.HasValue()
	})
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Mills > sorted[j].Mills
	})
	return sorted
}

// History returns up to n of the latest glucose values in mg/dL, oldest first
func History(entries []models.Entry, n int) []float64 {
	sorted := recentReadings(entries)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	values := make([]float64, len(sorted))
	for i, e := range sorted {
		values[len(sorted)-1-i] = float64(e.Value())
	}
	return values
}

// CalculateDelta computes the delta between the two most recent readings.
// Gaps above nine minutes are interpolated back to a 5-minute delta.
// Fewer than two readings yield nil.
func CalculateDelta(entries []models.Entry, displayUnits string) *DeltaResult {
	sorted := recentReadings(entries)
	if len(sorted) < 2 {
		return nil
	}

	recent, prev := sorted[0], sorted[1]
	current := float64(recent.Value())
	previous := float64(prev.Value())

	result := &DeltaResult{
		Absolute:    current - previous,
		ElapsedMins: float64(recent.Mills-prev.Mills) / 60000,
		Previous:    &prev,
	}

	if result.ElapsedMins > interpolationGapMins {
		result.Interpolated = true
		result.Mean5MinsAgo = current - (current-previous)/result.ElapsedMins*5
	} else {
		result.Mean5MinsAgo = previous
	}
	result.Mgdl = int(units.JSRound(current - result.Mean5MinsAgo))

	sign := ""
	if units.IsMmol(displayUnits) {
		result.Scaled = units.JSRound(float64(result.Mgdl)/units.LegacyDeltaFactor*10) / 10
		if result.Scaled >= 0 {
			sign = "+"
		}
		result.Display = sign + strconv.FormatFloat(result.Scaled, 'f', 1, 64)
	} else {
		result.Scaled = float64(result.Mgdl)
		if result.Scaled >= 0 {
			sign = "+"
		}
		result.Display = sign + strconv.Itoa(result.Mgdl)
	}

	return result
}

// DirectionFromEntries classifies the slope between the two most recent readings
func DirectionFromEntries(entries []models.Entry) Direction {
	sorted := recentReadings(entries)
	if len(sorted) < 2 {
		return DirectionNotComputable
	}
	minutes := float64(sorted[0].Mills-sorted[1].Mills) / 60000
	return CalculateDirection(float64(sorted[0].Value()), float64(sorted[1].Value()), minutes)
}

// CalculateTrendSlope fits a least-squares line through up to the five most
// recent readings and returns the slope in mg/dL per 5 minutes.
func CalculateTrendSlope(entries []models.Entry) float64 {
	sorted := recentReadings(entries)
	n := min(5, len(sorted))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	baseTime := sorted[0].Mills

	for i := 0; i < n; i++ {
		x := float64(baseTime-sorted[i].Mills) / 60000 // minutes ago
		y := float64(sorted[i].Value())
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	nf := float64(n)
	denominator := nf*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0
	}

	slope := (nf*sumXY - sumX*sumY) / denominator

	// x counts minutes into the past, so flip the sign
	return -slope * 5
}
