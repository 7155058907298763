package statistics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrcode/nightscout-engine/internal/models"
)

func TestExtractGlucoseValues(t *testing.T) {
	entries := []models.Entry{
		{Mgdl: 0, SGV: 0},
		{SGV: 39},
		{Mgdl: 120, SGV: 80},
		{SGV: 699},
		{SGV: 700},
		{SGV: -5},
	}
	assert.Equal(t, []float64{39, 120, 699}, ExtractGlucoseValues(entries))
}

func TestCalculateBasicStats(t *testing.T) {
	values := []float64{180, 100, 140, 120, 160}
	stats := CalculateBasicStats(values)

	assert.Equal(t, 5, stats.Count)
	assert.InDelta(t, 140, stats.Mean, 1e-9)
	assert.Equal(t, 140.0, stats.Median)
	assert.Equal(t, 100.0, stats.Min)
	assert.Equal(t, 180.0, stats.Max)
	assert.InDelta(t, math.Sqrt(800), stats.StandardDeviation, 1e-9)
	assert.InDelta(t, 108, stats.Percentile10, 1e-9)
	assert.InDelta(t, 120, stats.Percentile25, 1e-9)
	assert.InDelta(t, 160, stats.Percentile75, 1e-9)
	assert.InDelta(t, 172, stats.Percentile90, 1e-9)

	assert.Equal(t, []float64{180, 100, 140, 120, 160}, values, "input must not be reordered")
	assert.Equal(t, stats, CalculateBasicStats(values))
}

func TestCalculateBasicStatsEmpty(t *testing.T) {
	assert.Equal(t, BasicStats{}, CalculateBasicStats(nil))
}

func TestCalculateBasicStatsEvenMedian(t *testing.T) {
	assert.Equal(t, 125.0, CalculateBasicStats([]float64{100, 120, 130, 150}).Median)
}

func TestCalculatePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 2.5},
		{100, 4},
		{150, 4},
		{-10, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, CalculatePercentile(sorted, tt.p), 1e-9, "p=%v", tt.p)
	}
	assert.Zero(t, CalculatePercentile(nil, 50))
	assert.Equal(t, 7.0, CalculatePercentile([]float64{7}, 90))
}
