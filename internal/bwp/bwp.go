package bwp

import (
	"math"

	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/units"
)

// Deficiency messages reported by CheckMissingInfo
const (
	MsgMissingProfile       = "Missing need a treatment profile"
	MsgMissingProfileFields = "Missing sens, target_high, or target_low treatment profile fields"
	MsgMissingIOB           = "Missing IOB property"
	MsgDataNotCurrent       = "Data isn't current"
)

// Aim target labels
const (
	AimAboveHigh = "above high"
	AimBelowLow  = "below low"
)

// recentCarbsWindowMs is how far back a carb entry counts as recent
const recentCarbsWindowMs = int64(30 * 60 * 1000)

// TempBasalAdjustment is the percentage of the scheduled basal that would
// deliver the negative estimate over the next half hour or hour
type TempBasalAdjustment struct {
	ThirtyMin int `json:"thirtymin"`
	OneHour   int `json:"onehour"`
}

// Result is a bolus wizard preview
type Result struct {
	ScaledSGV           float64              `json:"scaledSGV"`
	Iob                 float64              `json:"iob"`
	Effect              float64              `json:"effect"`
	Outcome             float64              `json:"outcome"`
	BolusEstimate       float64              `json:"bolusEstimate"`
	AimTarget           float64              `json:"aimTarget,omitempty"`
	AimTargetString     string               `json:"aimTargetString,omitempty"`
	BelowLowTarget      bool                 `json:"belowLowTarget"`
	TempBasalAdjustment *TempBasalAdjustment `json:"tempBasalAdjustment,omitempty"`
	RecentCarbs         *models.Treatment    `json:"recentCarbs,omitempty"`
	Errors              []string             `json:"errors,omitempty"`

	BolusEstimateDisplay string `json:"bolusEstimateDisplay"`
	OutcomeDisplay       string `json:"outcomeDisplay"`
	DisplayIOB           string `json:"displayIOB"`
	EffectDisplay        string `json:"effectDisplay"`
	DisplayLine          string `json:"displayLine"`
}

// HasErrors reports whether the preview could not be computed
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// CheckMissingInfo lists what prevents a preview from being computed.
// An empty list means the sandbox is complete.
func CheckMissingInfo(sbx *Sandbox) []string {
	var errs []string

	if sbx.Profile == nil || !sbx.Profile.HasData() {
		errs = append(errs, MsgMissingProfile)
	} else {
		sens := sbx.Profile.GetSensitivity(sbx.Time, sbx.ProfileName)
		high := sbx.Profile.GetHighBGTarget(sbx.Time, sbx.ProfileName)
		low := sbx.Profile.GetLowBGTarget(sbx.Time, sbx.ProfileName)
		if !(sens > 0) || !(high > 0) || !(low > 0) {
			errs = append(errs, MsgMissingProfileFields)
		}
	}

	if sbx.Iob == nil {
		errs = append(errs, MsgMissingIOB)
	}

	if !sbx.IsCurrent(sbx.LastEntry()) {
		errs = append(errs, MsgDataNotCurrent)
	}

	return errs
}

// Calculate computes the preview. Missing inputs yield a zero result
// carrying the deficiency messages.
func Calculate(sbx *Sandbox) Result {
	if errs := CheckMissingInfo(sbx); len(errs) > 0 {
		return Result{Errors: errs}
	}

	p, name, at := sbx.Profile, sbx.ProfileName, sbx.Time
	sens := p.GetSensitivity(at, name)
	targetHigh := p.GetHighBGTarget(at, name)
	targetLow := p.GetLowBGTarget(at, name)

	r := Result{
		ScaledSGV: sbx.LastScaledSGV(),
		Iob:       sbx.Iob.Iob,
	}
	r.Effect = r.Iob * sens
	r.Outcome = r.ScaledSGV - r.Effect

	switch {
	case r.Outcome > targetHigh:
		r.BolusEstimate = (r.Outcome - targetHigh) / sens
		r.AimTarget = targetHigh
		r.AimTargetString = AimAboveHigh
	case r.Outcome < targetLow:
		r.BolusEstimate = (r.Outcome - targetLow) / sens
		r.AimTarget = targetLow
		r.AimTargetString = AimBelowLow
	}
	r.BelowLowTarget = r.ScaledSGV < targetLow

	if basal := p.GetBasalRate(at, name); r.BolusEstimate < 0 && basal > 0 {
		r.TempBasalAdjustment = tempBasal(basal, r.BolusEstimate)
	}

	r.RecentCarbs = sbx.recentCarbs(recentCarbsWindowMs)

	f := sbx.formatter()
	r.BolusEstimateDisplay = f.RoundInsulinForDisplayFormat(r.BolusEstimate)
	r.OutcomeDisplay = f.RoundBGToDisplayFormat(r.Outcome)
	r.DisplayIOB = f.RoundInsulinForDisplayFormat(r.Iob)
	r.EffectDisplay = f.RoundBGToDisplayFormat(r.Effect)
	r.DisplayLine = "BWP: " + r.BolusEstimateDisplay + "U"

	return r
}

// tempBasal sizes the basal percentage that absorbs a negative estimate
// over thirty and sixty minutes.
func tempBasal(basal, estimate float64) *TempBasalAdjustment {
	half := basal / 2
	return &TempBasalAdjustment{
		ThirtyMin: int(units.JSRound((half + estimate) / half * 100)),
		OneHour:   int(units.JSRound((basal + estimate) / basal * 100)),
	}
}

// HighSnoozedByIOB reports whether a high alarm should stay quiet because the
// last reading sits in a high alarm band and the estimate is below the snooze
// threshold.
func HighSnoozedByIOB(r Result, settings *models.Settings, sbx *Sandbox) bool {
	if r.HasErrors() || settings == nil {
		return false
	}
	last := sbx.LastEntry()
	if last == nil {
		return false
	}
	switch settings.GetGlucoseStatus(last.Value()) {
	case models.StatusHigh, models.StatusUrgentHigh:
	default:
		return false
	}
	snooze, _, _ := settings.BWPThresholds()
	return r.BolusEstimate < snooze
}

// Level is the urgency of a preview
type Level int

const (
	LevelNone Level = iota
	LevelWarn
	LevelUrgent
)

// String returns the level name
func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelUrgent:
		return "urgent"
	default:
		return "none"
	}
}

// MarshalText encodes the level by name
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Level classifies the estimate against the warn and urgent thresholds
func (r Result) Level(settings *models.Settings) Level {
	if r.HasErrors() || settings == nil || math.IsNaN(r.BolusEstimate) {
		return LevelNone
	}
	_, warn, urgent := settings.BWPThresholds()
	switch {
	case r.BolusEstimate >= urgent:
		return LevelUrgent
	case r.BolusEstimate >= warn:
		return LevelWarn
	default:
		return LevelNone
	}
}
