package statistics

import (
	"sort"
	"time"

	"github.com/mrcode/nightscout-engine/internal/apperrors"
	"github.com/mrcode/nightscout-engine/internal/models"
)

// Analysis bundles every statistic for a reporting period
type Analysis struct {
	Glucose           BasicStats           `json:"glucose"`
	Variability       *Variability         `json:"variability,omitempty"`
	TimeInRange       TimeInRange          `json:"timeInRange"`
	Distribution      []DistributionBucket `json:"distribution"`
	Hourly            []HourlyStats        `json:"hourly"`
	Treatments        TreatmentSummary     `json:"treatments"`
	InvalidTreatments int                  `json:"invalidTreatments"`
}

// Analyze computes the full statistics set. Fewer than two readings omit
// variability; no readings at all is a no_data error.
func Analyze(entries []models.Entry, treatments []models.Treatment, th Thresholds, loc *time.Location) (Analysis, error) {
	sorted := make([]models.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Mills < sorted[j].Mills
	})
	entries = sorted

	values := ExtractGlucoseValues(entries)
	if len(values) == 0 {
		return Analysis{}, apperrors.Wrap(apperrors.CodeNoData, "no glucose readings in period", ErrInsufficientData)
	}

	clean := CleanTreatmentData(treatments)
	a := Analysis{
		Glucose:           CalculateBasicStats(values),
		TimeInRange:       CalculateTimeInRange(entries, th),
		Distribution:      CalculateGlucoseDistribution(values, DefaultBucketSize),
		Hourly:            CalculateAveragedStats(entries, loc),
		Treatments:        CalculateTreatmentSummary(clean),
		InvalidTreatments: len(treatments) - len(clean),
	}

	if v, err := CalculateGlycemicVariability(values); err == nil {
		a.Variability = &v
	} else if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		return Analysis{}, err
	}

	return a, nil
}
