package bwp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/profile"
)

const (
	minuteMs = int64(60 * 1000)
	now      = int64(1432874440174)
)

type therapy struct {
	sens, low, high, basal float64
	units                  string
}

func (th therapy) store() *profile.Store {
	return profile.Single(profile.Profile{
		Sens:       profile.Constant(th.sens),
		TargetLow:  profile.Constant(th.low),
		TargetHigh: profile.Constant(th.high),
		Basal:      profile.Constant(th.basal),
		Units:      th.units,
	})
}

// zeroProvider answers every query with zero
type zeroProvider struct{}

func (zeroProvider) HasData() bool                               { return true }
func (zeroProvider) GetSensitivity(int64, string) float64        { return 0 }
func (zeroProvider) GetCarbRatio(int64, string) float64          { return 0 }
func (zeroProvider) GetBasalRate(int64, string) float64          { return 0 }
func (zeroProvider) GetDIA(int64, string) float64                { return 0 }
func (zeroProvider) GetLowBGTarget(int64, string) float64        { return 0 }
func (zeroProvider) GetHighBGTarget(int64, string) float64       { return 0 }
func (zeroProvider) GetCarbAbsorptionRate(int64, string) float64 { return 0 }
func (zeroProvider) GetUnits(int64, string) string               { return "mg/dl" }

func sandbox(bg int, iob float64, th therapy) *Sandbox {
	return &Sandbox{
		Time:    now,
		Entries: []models.Entry{{Mgdl: bg - 10, Mills: now - 5*minuteMs}, {Mgdl: bg, Mills: now}},
		Profile: th.store(),
		Iob:     &models.IobResult{Iob: iob, Mills: now},
	}
}

func TestCalculateZeroIOB(t *testing.T) {
	r := Calculate(sandbox(150, 0, therapy{sens: 90, low: 100, high: 200}))
	require.Empty(t, r.Errors)
	assert.Equal(t, 0.0, r.Effect)
	assert.Equal(t, 150.0, r.Outcome)
	assert.Equal(t, 0.0, r.BolusEstimate)
	assert.Empty(t, r.AimTargetString)
	assert.Nil(t, r.TempBasalAdjustment)
	assert.Equal(t, "BWP: 0U", r.DisplayLine)
}

func TestCalculateBelowLowWithTempBasal(t *testing.T) {
	r := Calculate(sandbox(100, 1.0, therapy{sens: 50, low: 100, high: 200, basal: 1}))
	require.Empty(t, r.Errors)
	assert.Equal(t, 50.0, r.Effect)
	assert.Equal(t, 50.0, r.Outcome)
	assert.Equal(t, -1.0, r.BolusEstimate)
	assert.Equal(t, 100.0, r.AimTarget)
	assert.Equal(t, AimBelowLow, r.AimTargetString)
	assert.Equal(t, "BWP: -1.00U", r.DisplayLine)
	assert.Equal(t, "-1.00", r.BolusEstimateDisplay)
	assert.Equal(t, "1.00", r.DisplayIOB)
	assert.Equal(t, "50", r.EffectDisplay)
	assert.Equal(t, "50", r.OutcomeDisplay)
	assert.False(t, r.BelowLowTarget)
	require.NotNil(t, r.TempBasalAdjustment)
	assert.Equal(t, TempBasalAdjustment{ThirtyMin: -100, OneHour: 0}, *r.TempBasalAdjustment)
}

func TestCalculateTempBasalSmallEstimate(t *testing.T) {
	r := Calculate(sandbox(51, 0, therapy{sens: 50, low: 100, high: 200, basal: 2}))
	require.NotNil(t, r.TempBasalAdjustment)
	assert.InDelta(t, -0.98, r.BolusEstimate, 1e-9)
	assert.True(t, r.BelowLowTarget)
	assert.Equal(t, TempBasalAdjustment{ThirtyMin: 2, OneHour: 51}, *r.TempBasalAdjustment)
}

func TestCalculateNoTempBasalWithoutBasal(t *testing.T) {
	r := Calculate(sandbox(100, 1.0, therapy{sens: 50, low: 100, high: 200}))
	assert.Equal(t, -1.0, r.BolusEstimate)
	assert.Nil(t, r.TempBasalAdjustment)
}

func TestCalculateAboveHigh(t *testing.T) {
	r := Calculate(sandbox(180, 0, therapy{sens: 50, low: 80, high: 120}))
	assert.InDelta(t, 1.2, r.BolusEstimate, 1e-9)
	assert.Equal(t, AimAboveHigh, r.AimTargetString)
	assert.Equal(t, 120.0, r.AimTarget)
	assert.Equal(t, "BWP: 1.20U", r.DisplayLine)
}

func TestCalculateMmolProfile(t *testing.T) {
	r := Calculate(sandbox(180, 0, therapy{sens: 2.5, low: 4, high: 8, units: "mmol"}))
	require.Empty(t, r.Errors)
	assert.Equal(t, 10.0, r.ScaledSGV)
	assert.InDelta(t, 0.8, r.BolusEstimate, 1e-9)
	assert.Equal(t, "10", r.OutcomeDisplay)
}

func TestCalculateRecentCarbs(t *testing.T) {
	sbx := sandbox(150, 0, therapy{sens: 50, low: 100, high: 200})
	sbx.Treatments = []models.Treatment{
		{ID: "old", Carbs: 40, Mills: now - 40*minuteMs},
		{ID: "recent", Carbs: 20, Mills: now - 10*minuteMs},
		{ID: "bolus", Insulin: 2, Mills: now - 5*minuteMs},
		{ID: "future", Carbs: 15, Mills: now + 5*minuteMs},
	}
	r := Calculate(sbx)
	require.NotNil(t, r.RecentCarbs)
	assert.Equal(t, "recent", r.RecentCarbs.ID)

	sbx.Treatments = sbx.Treatments[:1]
	assert.Nil(t, Calculate(sbx).RecentCarbs)
}

func TestCheckMissingInfo(t *testing.T) {
	errs := CheckMissingInfo(&Sandbox{Time: now})
	assert.Contains(t, errs, MsgMissingProfile)
	assert.Contains(t, errs, MsgMissingIOB)
	assert.Contains(t, errs, MsgDataNotCurrent)

	errs = CheckMissingInfo(&Sandbox{Time: now, Profile: profile.Empty()})
	assert.Contains(t, errs, MsgMissingProfile)

	errs = CheckMissingInfo(&Sandbox{Time: now, Profile: zeroProvider{}})
	assert.Contains(t, errs, MsgMissingProfileFields)
	assert.NotContains(t, errs, MsgMissingProfile)

	stale := sandbox(150, 0, therapy{sens: 50, low: 100, high: 200})
	stale.Time = now + 20*minuteMs
	assert.Equal(t, []string{MsgDataNotCurrent}, CheckMissingInfo(stale))

	assert.Empty(t, CheckMissingInfo(sandbox(150, 0, therapy{sens: 50, low: 100, high: 200})))
}

func TestCalculateWithMissingInfo(t *testing.T) {
	sbx := sandbox(250, 2, therapy{sens: 50, low: 100, high: 200})
	sbx.Iob = nil

	r := Calculate(sbx)
	assert.Equal(t, []string{MsgMissingIOB}, r.Errors)
	assert.Zero(t, r.BolusEstimate)
	assert.Zero(t, r.Effect)
	assert.Empty(t, r.DisplayLine)
	assert.Equal(t, LevelNone, r.Level(models.DefaultSettings()))
}

type fixedFormatter struct{}

func (fixedFormatter) RoundInsulinForDisplayFormat(float64) string { return "x" }
func (fixedFormatter) RoundBGToDisplayFormat(float64) string       { return "y" }

func TestCalculateUsesInjectedFormatter(t *testing.T) {
	sbx := sandbox(180, 0, therapy{sens: 50, low: 80, high: 120})
	sbx.Formatter = fixedFormatter{}
	r := Calculate(sbx)
	assert.Equal(t, "BWP: xU", r.DisplayLine)
	assert.Equal(t, "y", r.OutcomeDisplay)
}

func TestHighSnoozedByIOB(t *testing.T) {
	settings := models.DefaultSettings()
	th := therapy{sens: 50, low: 80, high: 180}

	covered := sandbox(250, 1.5, th)
	r := Calculate(covered)
	assert.Zero(t, r.BolusEstimate)
	assert.True(t, HighSnoozedByIOB(r, settings, covered))

	uncovered := sandbox(250, 0, th)
	r = Calculate(uncovered)
	assert.InDelta(t, 1.4, r.BolusEstimate, 1e-9)
	assert.False(t, HighSnoozedByIOB(r, settings, uncovered))

	inRange := sandbox(150, 0, th)
	assert.False(t, HighSnoozedByIOB(Calculate(inRange), settings, inRange))
}

func TestHighSnoozedByIOBUsesAlarmBands(t *testing.T) {
	settings := models.DefaultSettings()

	// above a low profile target but below the alarm threshold
	lowTarget := sandbox(160, 0.4, therapy{sens: 50, low: 80, high: 140})
	r := Calculate(lowTarget)
	require.Empty(t, r.Errors)
	assert.Zero(t, r.BolusEstimate)
	assert.Equal(t, models.StatusNormal, settings.GetGlucoseStatus(160))
	assert.False(t, HighSnoozedByIOB(r, settings, lowTarget))

	// the high band starts at the threshold itself
	atThreshold := sandbox(180, 0.5, therapy{sens: 50, low: 80, high: 200})
	r = Calculate(atThreshold)
	assert.Zero(t, r.BolusEstimate)
	assert.True(t, HighSnoozedByIOB(r, settings, atThreshold))
}

func TestLevel(t *testing.T) {
	settings := models.DefaultSettings()
	tests := []struct {
		estimate float64
		want     Level
	}{
		{-1, LevelNone},
		{0.49, LevelNone},
		{0.5, LevelWarn},
		{0.99, LevelWarn},
		{1.0, LevelUrgent},
		{3, LevelUrgent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Result{BolusEstimate: tt.estimate}.Level(settings), "estimate %v", tt.estimate)
	}
	assert.Equal(t, "urgent", LevelUrgent.String())
}
