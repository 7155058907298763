package statistics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/mrcode/nightscout-engine/internal/apperrors"
	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/units"
)

// Treatment validation failures
var (
	ErrMissingID        = errors.New("treatment has no id")
	ErrMissingTimestamp = errors.New("treatment has no timestamp")
	ErrNegativeInsulin  = errors.New("treatment has negative insulin")
	ErrNegativeCarbs    = errors.New("treatment has negative carbs")
)

// bolusKeywords mark insulin deliveries that are boluses
var bolusKeywords = []string{"bolus", "smb"}

// TreatmentSummary totals treatments over a period
type TreatmentSummary struct {
	TreatmentCount int     `json:"treatmentCount"`
	BolusCount     int     `json:"bolusCount"`
	CarbCount      int     `json:"carbCount"`
	TotalInsulin   float64 `json:"totalInsulin"`
	BolusInsulin   float64 `json:"bolusInsulin"`
	BasalInsulin   float64 `json:"basalInsulin"`
	TotalCarbs     float64 `json:"totalCarbs"`
	TotalProtein   float64 `json:"totalProtein"`
	TotalFat       float64 `json:"totalFat"`
}

// IsBolusTreatment matches the bolus family of event types
func IsBolusTreatment(t models.Treatment) bool {
	eventType := strings.ToLower(t.EventType)
	for _, kw := range bolusKeywords {
		if strings.Contains(eventType, kw) {
			return true
		}
	}
	return false
}

// CalculateTreatmentSummary totals insulin and macronutrients. Insulin not
// delivered as a bolus counts as basal.
func CalculateTreatmentSummary(treatments []models.Treatment) TreatmentSummary {
	s := TreatmentSummary{TreatmentCount: len(treatments)}
	for _, t := range treatments {
		if t.HasInsulin() {
			s.TotalInsulin += t.Insulin
			if IsBolusTreatment(t) {
				s.BolusInsulin += t.Insulin
				s.BolusCount++
			} else {
				s.BasalInsulin += t.Insulin
			}
		}
		if t.HasCarbs() {
			s.TotalCarbs += t.Carbs
			s.CarbCount++
		}
		if t.Protein > 0 {
			s.TotalProtein += t.Protein
		}
		if t.Fat > 0 {
			s.TotalFat += t.Fat
		}
	}
	return s
}

// ValidateTreatmentData rejects treatments statistics cannot use
func ValidateTreatmentData(t models.Treatment) error {
	var reason error
	switch {
	case strings.TrimSpace(t.ID) == "":
		reason = ErrMissingID
	case t.Mills <= 0:
		reason = ErrMissingTimestamp
	case t.Insulin < 0:
		reason = ErrNegativeInsulin
	case t.Carbs < 0:
		reason = ErrNegativeCarbs
	default:
		return nil
	}
	return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("invalid treatment %q", t.ID), reason)
}

// CleanTreatmentData keeps only the treatments that pass validation
func CleanTreatmentData(treatments []models.Treatment) []models.Treatment {
	return lo.Filter(treatments, func(t models.Treatment, _ int) bool {
		return ValidateTreatmentData(t) == nil
	})
}

// RoundInsulinToPumpPrecision rounds to the nearest 0.05 U
func RoundInsulinToPumpPrecision(insulin float64) float64 {
	return units.RoundInsulinToPumpPrecision(insulin)
}

// FormatInsulinDisplay renders insulin with up to two decimals, keeping at
// least one ("2.0", "1.25")
func FormatInsulinDisplay(insulin float64) string {
	if !finite(insulin) {
		return "0"
	}
	s := strconv.FormatFloat(math.Round(insulin*100)/100, 'f', 2, 64)
	if strings.HasSuffix(s, "0") {
		s = s[:len(s)-1]
	}
	return s
}

// FormatCarbDisplay renders grams with one decimal, dropping a trailing ".0"
func FormatCarbDisplay(carbs float64) string {
	if !finite(carbs) {
		return "0"
	}
	s := strconv.FormatFloat(math.Round(carbs*10)/10, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

// FormatPercentageDisplay renders a percentage with one decimal
func FormatPercentageDisplay(pct float64) string {
	if !finite(pct) {
		return "0"
	}
	return fmt.Sprintf("%.1f%%", pct)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
