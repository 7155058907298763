package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-engine/internal/models"
)

const (
	minute = int64(60 * 1000)
	now    = int64(1432865028827)
)

func TestCalculateDeltaSingleEntry(t *testing.T) {
	assert.Nil(t, CalculateDelta([]models.Entry{{Mgdl: 100, Mills: now}}, "mg/dl"))
	assert.Nil(t, CalculateDelta(nil, "mg/dl"))
}

func TestCalculateDeltaMgdl(t *testing.T) {
	entries := []models.Entry{
		{Mgdl: 105, Mills: now},
		{Mgdl: 100, Mills: now - 5*minute},
	}

	delta := CalculateDelta(entries, "mg/dl")
	require.NotNil(t, delta)
	assert.Equal(t, 5, delta.Mgdl)
	assert.Equal(t, 5.0, delta.Scaled)
	assert.Equal(t, "+5", delta.Display)
	assert.False(t, delta.Interpolated)
	assert.InDelta(t, 5.0, delta.ElapsedMins, 1e-9)
}

func TestCalculateDeltaInterpolatesGaps(t *testing.T) {
	entries := []models.Entry{
		{Mgdl: 100, Mills: now - 11*minute},
		{Mgdl: 110, Mills: now},
	}

	delta := CalculateDelta(entries, "mg/dl")
	require.NotNil(t, delta)
	assert.True(t, delta.Interpolated)
	assert.InDelta(t, 11.0, delta.ElapsedMins, 1e-9)
	assert.InDelta(t, 110-(10.0/11.0)*5, delta.Mean5MinsAgo, 1e-9)
	assert.Equal(t, 5, delta.Mgdl)
	assert.Equal(t, 10.0, delta.Absolute)
	assert.Equal(t, "+5", delta.Display)
}

func TestCalculateDeltaMmolUsesLegacyFactor(t *testing.T) {
	entries := []models.Entry{
		{Mgdl: 198, Mills: now},
		{Mgdl: 180, Mills: now - 5*minute},
	}

	delta := CalculateDelta(entries, "mmol")
	require.NotNil(t, delta)
	assert.Equal(t, 18, delta.Mgdl)
	assert.InDelta(t, 1.0, delta.Scaled, 1e-9)
	assert.Equal(t, "+1.0", delta.Display)
}

func TestCalculateDeltaNegative(t *testing.T) {
	entries := []models.Entry{
		{SGV: 120, Mills: now - 5*minute},
		{SGV: 111, Mills: now},
	}

	delta := CalculateDelta(entries, "mg/dl")
	require.NotNil(t, delta)
	assert.Equal(t, -9, delta.Mgdl)
	assert.Equal(t, "-9", delta.Display)

	mmol := CalculateDelta(entries, "mmol")
	require.NotNil(t, mmol)
	assert.Equal(t, "-0.5", mmol.Display)
}

func TestCalculateDeltaZeroIsPositive(t *testing.T) {
	entries := []models.Entry{
		{Mgdl: 100, Mills: now},
		{Mgdl: 100, Mills: now - 5*minute},
	}
	assert.Equal(t, "+0", CalculateDelta(entries, "mg/dl").Display)
	assert.Equal(t, "+0.0", CalculateDelta(entries, "mmol").Display)
}

func TestCalculateDeltaFallsBackToSGVAndSkipsEmpty(t *testing.T) {
	entries := []models.Entry{
		{Mills: now},
		{SGV: 130, Mills: now - minute},
		{Mgdl: 0, SGV: 120, Mills: now - 6*minute},
	}

	delta := CalculateDelta(entries, "mg/dl")
	require.NotNil(t, delta)
	assert.Equal(t, 10, delta.Mgdl)
	require.NotNil(t, delta.Previous)
	assert.Equal(t, 120, delta.Previous.Value())
}

func TestDeltaSignMatchesDirection(t *testing.T) {
	rising := []models.Entry{{Mgdl: 100, Mills: now - 5*minute}, {Mgdl: 115, Mills: now}}
	falling := []models.Entry{{Mgdl: 115, Mills: now - 5*minute}, {Mgdl: 100, Mills: now}}

	assert.Positive(t, CalculateDelta(rising, "mg/dl").Mgdl)
	assert.Greater(t, DirectionFromEntries(rising).rank(), 0)
	assert.Negative(t, CalculateDelta(falling, "mg/dl").Mgdl)
	assert.Less(t, DirectionFromEntries(falling).rank(), 0)
	assert.Equal(t, DirectionNotComputable, DirectionFromEntries(rising[:1]))
}

func TestCalculateTrendSlope(t *testing.T) {
	entries := make([]models.Entry, 0, 6)
	for i := 0; i < 6; i++ {
		entries = append(entries, models.Entry{SGV: 100 + 2*i, Mills: now - int64(5-i)*5*minute})
	}
	assert.InDelta(t, 2.0, CalculateTrendSlope(entries), 1e-9)
	assert.Equal(t, 0.0, CalculateTrendSlope(entries[:1]))
}

func TestHistory(t *testing.T) {
	entries := []models.Entry{
		{Mgdl: 130, Mills: now},
		{Mgdl: 120, Mills: now - 5*minute},
		{Mills: now - 7*minute},
		{Mgdl: 110, Mills: now - 10*minute},
	}
	assert.Equal(t, []float64{120, 130}, History(entries, 2))
	assert.Equal(t, []float64{110, 120, 130}, History(entries, 10))
	assert.Empty(t, History(nil, 5))
}
