// Package units provides glucose unit conversion and legacy-exact display rounding
package units

import (
	"math"
	"strconv"
	"strings"
)

// MmolToMgdlFactor is the precise mg/dL per mmol/L conversion factor
const MmolToMgdlFactor = 18.0156

// LegacyDeltaFactor is the historical factor the delta display divides by.
// It intentionally differs from MmolToMgdlFactor.
const LegacyDeltaFactor = 18.0

// Display unit names
const (
	MgdlUnits = "mg/dl"
	MmolUnits = "mmol"
)

// PumpInsulinStep is the smallest bolus increment most pumps deliver (units)
const PumpInsulinStep = 0.05

// IsMmol reports whether the unit string denotes mmol/L
func IsMmol(units string) bool {
	u := strings.ToLower(strings.TrimSpace(units))
	return u == "mmol" || u == "mmol/l"
}

// MgdlToMmol converts mg/dL to mmol/L
func MgdlToMmol(mgdl float64) float64 {
	return mgdl / MmolToMgdlFactor
}

// MmolToMgdl converts mmol/L to mg/dL
func MmolToMgdl(mmol float64) float64 {
	return mmol * MmolToMgdlFactor
}

// Scale converts a mg/dL value into the display unit, one decimal for mmol
func Scale(mgdl float64, units string) float64 {
	if IsMmol(units) {
		return JSRound(MgdlToMmol(mgdl)*10) / 10
	}
	return mgdl
}

// JSRound rounds half toward positive infinity, matching the legacy Math.round
func JSRound(x float64) float64 {
	return math.Floor(x + 0.5)
}

// RoundToStep rounds v to the nearest multiple of step, ties away from zero
func RoundToStep(v, step float64) float64 {
	if step <= 0 || !isFinite(v) {
		return v
	}
	increments := math.Round(1 / step)
	return math.Round(v*increments) / increments
}

// RoundInsulinToPumpPrecision rounds insulin to the nearest 0.05 U
func RoundInsulinToPumpPrecision(insulin float64) float64 {
	return RoundToStep(insulin, PumpInsulinStep)
}

// RoundInsulinForDisplayFormat renders insulin with two decimals, "0" for zero
func RoundInsulinForDisplayFormat(insulin float64) string {
	if insulin == 0 || !isFinite(insulin) {
		return "0"
	}
	return strconv.FormatFloat(JSRound(insulin*100)/100, 'f', 2, 64)
}

// RoundBGToDisplayFormat renders a glucose value already in the display unit
func RoundBGToDisplayFormat(bg float64, units string) string {
	if !isFinite(bg) {
		return "0"
	}
	var v float64
	if IsMmol(units) {
		v = JSRound(bg*10) / 10
	} else {
		v = JSRound(bg)
	}
	return formatShortest(v)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatShortest(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
