// Package cob estimates carbohydrates on board from carb treatments and
// closed-loop device reports
package cob

import (
	"fmt"
	"math"
	"sort"

	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/profile"
)

const (
	// absorptionDelayMins is the lag before a carb entry starts decaying
	absorptionDelayMins = 20
	// liverSensRatio scales insulin activity into delayed carb absorption
	liverSensRatio = 8.0
	minuteMs       = int64(60 * 1000)
	hourMs         = 60 * minuteMs
)

// ActivityFunc returns insulin activity at an instant
type ActivityFunc func(millis int64) float64

type options struct {
	activity    ActivityFunc
	profileName string
}

// Option customises a COB evaluation
type Option func(*options)

// WithActivity enables the liver-sensitivity delay driven by insulin activity
func WithActivity(fn ActivityFunc) Option {
	return func(o *options) {
		o.activity = fn
	}
}

// WithProfileName evaluates against a named profile instead of the default
func WithProfileName(name string) Option {
	return func(o *options) {
		o.profileName = name
	}
}

// carbCalc is the decay state of one carb treatment
type carbCalc struct {
	decayedBy  int64
	isDecaying bool
}

// calcCarb projects when a treatment will have fully decayed, chaining onto
// the previous treatment's decay end.
func calcCarb(t models.Treatment, p profile.Provider, name string, lastDecayedBy, atTime int64) carbCalc {
	carbsHr := p.GetCarbAbsorptionRate(t.Mills, name)
	carbsMin := carbsHr / 60

	minutesLeft := float64(lastDecayedBy-t.Mills) / float64(minuteMs)
	minutes := math.Max(absorptionDelayMins, minutesLeft) + t.Carbs/carbsMin
	decayedBy := t.Mills + int64(math.Trunc(minutes))*minuteMs

	startDecay := t.Mills + absorptionDelayMins*minuteMs
	return carbCalc{
		decayedBy:  decayedBy,
		isDecaying: atTime < lastDecayedBy || atTime > startDecay,
	}
}

// FromTreatments computes COB from carb treatments alone
func FromTreatments(treatments []models.Treatment, p profile.Provider, atTime int64, opts ...Option) models.CobResult {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if p == nil {
		p = profile.Empty()
	}

	sorted := make([]models.Treatment, len(treatments))
	copy(sorted, treatments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Mills < sorted[j].Mills
	})

	var (
		total         float64
		lastDecayedBy int64
		isDecaying    bool
		lastCarbs     *models.Treatment
	)

	for i := range sorted {
		t := sorted[i]
		if !t.HasCarbs() || t.Mills >= atTime {
			continue
		}
		lastCarbs = &sorted[i]

		calc := calcCarb(t, p, o.profileName, lastDecayedBy, atTime)
		decaysInHr := float64(calc.decayedBy-atTime) / float64(hourMs)

		if o.activity != nil && decaysInHr > -10 {
			avgActivity := (o.activity(lastDecayedBy) + o.activity(calc.decayedBy)) / 2
			delayedCarbs := avgActivity * liverSensRatio / p.GetSensitivity(t.Mills, o.profileName) * p.GetCarbRatio(t.Mills, o.profileName)
			delayMinutes := int64(math.Round(delayedCarbs / p.GetCarbAbsorptionRate(t.Mills, o.profileName) * 60))
			if delayMinutes > 0 {
				calc.decayedBy += delayMinutes * minuteMs
				decaysInHr = float64(calc.decayedBy-atTime) / float64(hourMs)
			}
		}

		lastDecayedBy = calc.decayedBy

		if decaysInHr > 0 {
			total += math.Min(t.Carbs, decaysInHr*p.GetCarbAbsorptionRate(t.Mills, o.profileName))
			isDecaying = calc.isDecaying
		} else {
			total = 0
		}
	}

	carbsHr := p.GetCarbAbsorptionRate(atTime, o.profileName)
	var rawCarbImpact float64
	if isDecaying {
		rawCarbImpact = p.GetSensitivity(atTime, o.profileName) / p.GetCarbRatio(atTime, o.profileName) * carbsHr / 60
	}

	result := models.CobResult{
		Cob:           math.Max(0, total),
		Source:        models.CobSourceCarePortal,
		Mills:         atTime,
		DecayedBy:     lastDecayedBy,
		IsDecaying:    isDecaying,
		CarbsHr:       carbsHr,
		RawCarbImpact: rawCarbImpact,
		LastCarbs:     lastCarbs,
	}
	setDisplay(&result)
	return result
}

// CobTotal picks a fresh device-reported COB when one exists and otherwise
// falls back to the treatment-derived estimate.
func CobTotal(treatments []models.Treatment, statuses []models.DeviceStatus, p profile.Provider, atTime int64, opts ...Option) models.CobResult {
	fromTreatments := FromTreatments(treatments, p, atTime, opts...)

	last := LastCobDeviceStatus(statuses, atTime)
	if last == nil || atTime-last.Mills > deviceFreshMs {
		return fromTreatments
	}

	result := models.CobResult{
		Cob:          last.Cob,
		Source:       last.Source,
		Device:       last.Device,
		Mills:        last.Mills,
		IsDecaying:   fromTreatments.IsDecaying,
		CarbsHr:      fromTreatments.CarbsHr,
		LastCarbs:    fromTreatments.LastCarbs,
		TreatmentCob: &fromTreatments,
	}
	setDisplay(&result)
	return result
}

func setDisplay(r *models.CobResult) {
	r.Display = fmt.Sprintf("%dg", int64(math.Round(r.Cob)))
	r.DisplayLine = "COB: " + r.Display
}
