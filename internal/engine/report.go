package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/statistics"
	"github.com/mrcode/nightscout-engine/internal/units"
)

// Report is a statistics summary over a period
type Report struct {
	ID       string              `json:"id"`
	From     time.Time           `json:"from"`
	To       time.Time           `json:"to"`
	Units    string              `json:"units"`
	Analysis statistics.Analysis `json:"analysis"`
	Display  ReportDisplay       `json:"display"`
}

// ReportDisplay holds preformatted headline numbers
type ReportDisplay struct {
	Mean         string `json:"mean"`
	TimeInRange  string `json:"timeInRange"`
	TimeBelow    string `json:"timeBelow"`
	TimeAbove    string `json:"timeAbove"`
	EstimatedA1C string `json:"estimatedA1c"`
	GMI          string `json:"gmi"`
	TotalInsulin string `json:"totalInsulin"`
	TotalCarbs   string `json:"totalCarbs"`
}

// BuildReport analyses the given data
func BuildReport(entries []models.Entry, treatments []models.Treatment, from, to time.Time, ranges statistics.Thresholds, loc *time.Location, displayUnits string) (*Report, error) {
	analysis, err := statistics.Analyze(entries, treatments, ranges, loc)
	if err != nil {
		return nil, err
	}

	tir := analysis.TimeInRange
	display := ReportDisplay{
		Mean:         units.RoundBGToDisplayFormat(units.Scale(analysis.Glucose.Mean, displayUnits), displayUnits),
		TimeInRange:  statistics.FormatPercentageDisplay(tir.Target.Percentage),
		TimeBelow:    statistics.FormatPercentageDisplay(tir.Low.Percentage + tir.SevereLow.Percentage),
		TimeAbove:    statistics.FormatPercentageDisplay(tir.High.Percentage + tir.SevereHigh.Percentage),
		TotalInsulin: statistics.FormatInsulinDisplay(analysis.Treatments.TotalInsulin),
		TotalCarbs:   statistics.FormatCarbDisplay(analysis.Treatments.TotalCarbs),
	}
	if v := analysis.Variability; v != nil {
		display.EstimatedA1C = statistics.FormatPercentageDisplay(v.EstimatedA1C)
		display.GMI = statistics.FormatPercentageDisplay(v.GMI)
	}

	return &Report{
		ID:       uuid.NewString(),
		From:     from,
		To:       to,
		Units:    displayUnits,
		Analysis: analysis,
		Display:  display,
	}, nil
}
