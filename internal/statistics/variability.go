package statistics

import (
	"errors"
	"math"

	"github.com/mrcode/nightscout-engine/internal/apperrors"
)

// ErrInsufficientData is returned when too few readings exist for a statistic
var ErrInsufficientData = errors.New("insufficient data")

// Variability describes glycemic variability
type Variability struct {
	Mean                   float64 `json:"mean"`
	StandardDeviation      float64 `json:"standardDeviation"`
	CoefficientOfVariation float64 `json:"coefficientOfVariation"` // percent
	EstimatedA1C           float64 `json:"estimatedA1c"`
	GMI                    float64 `json:"gmi"`
	MAGE                   float64 `json:"mage"`
	JIndex                 float64 `json:"jIndex"`
}

// CalculateGlycemicVariability needs at least two values
func CalculateGlycemicVariability(values []float64) (Variability, error) {
	if len(values) < 2 {
		return Variability{}, apperrors.Wrap(apperrors.CodeInvalidInput, "glycemic variability needs at least 2 readings", ErrInsufficientData)
	}

	m := mean(values)
	sd := stdDev(values, m)

	v := Variability{
		Mean:              m,
		StandardDeviation: sd,
		EstimatedA1C:      CalculateEstimatedA1C(m),
		GMI:               CalculateGMI(m),
		MAGE:              CalculateMAGE(values),
		JIndex:            0.001 * (m + sd) * (m + sd),
	}
	if m > 0 {
		v.CoefficientOfVariation = sd / m * 100
	}
	return v, nil
}

// CalculateEstimatedA1C applies the ADAG formula, 0 for a missing mean
func CalculateEstimatedA1C(meanGlucose float64) float64 {
	if !(meanGlucose > 0) {
		return 0
	}
	return (meanGlucose + 46.7) / 28.7
}

// CalculateGMI returns the glucose management indicator: 3.31 + 0.02392 × mean
func CalculateGMI(meanGlucose float64) float64 {
	if !(meanGlucose > 0) {
		return 0
	}
	return 3.31 + 0.02392*meanGlucose
}

// CalculateMAGE averages the excursions between successive peaks and nadirs
// that exceed one standard deviation. Values must be in time order.
func CalculateMAGE(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	sd := stdDev(values, mean(values))
	if sd == 0 {
		return 0
	}

	turns := turningPoints(values)
	var sum float64
	var count int
	for i := 1; i < len(turns); i++ {
		amplitude := math.Abs(turns[i] - turns[i-1])
		if amplitude > sd {
			sum += amplitude
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// turningPoints keeps the endpoints and every local extremum
func turningPoints(values []float64) []float64 {
	flat := make([]float64, 0, len(values))
	for _, v := range values {
		if len(flat) == 0 || flat[len(flat)-1] != v {
			flat = append(flat, v)
		}
	}
	if len(flat) < 3 {
		return flat
	}

	turns := []float64{flat[0]}
	for i := 1; i < len(flat)-1; i++ {
		rising := flat[i] > flat[i-1]
		nextRising := flat[i+1] > flat[i]
		if rising != nextRising {
			turns = append(turns, flat[i])
		}
	}
	return append(turns, flat[len(flat)-1])
}
