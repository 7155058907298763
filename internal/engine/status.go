package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/mrcode/nightscout-engine/internal/apperrors"
	"github.com/mrcode/nightscout-engine/internal/bwp"
	"github.com/mrcode/nightscout-engine/internal/cob"
	"github.com/mrcode/nightscout-engine/internal/iob"
	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/profile"
	"github.com/mrcode/nightscout-engine/internal/trend"
	"github.com/mrcode/nightscout-engine/internal/units"
)

// historyPoints covers two hours of five-minute readings
const historyPoints = 24

// Status is every calculation evaluated at one instant
type Status struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`
	Units       string    `json:"units"`

	Entry          *models.Entry `json:"entry"`
	Glucose        float64       `json:"glucose"` // in Units
	GlucoseDisplay string        `json:"glucoseDisplay"`
	Band           string        `json:"band"`
	Stale          bool          `json:"stale"`
	AgeMinutes     float64       `json:"ageMinutes"`

	Direction  trend.DirectionInfo `json:"direction"`
	Computed   trend.Direction     `json:"computedDirection"`
	Delta      *trend.DeltaResult  `json:"delta,omitempty"`
	TrendSlope float64             `json:"trendSlope"` // mg/dL per 5 min
	History    []float64           `json:"history"`    // mg/dL, oldest first

	Cob         models.CobResult  `json:"cob"`
	Iob         *models.IobResult `json:"iob,omitempty"`
	BWP         bwp.Result        `json:"bwp"`
	BWPLevel    bwp.Level         `json:"bwpLevel"`
	HighSnoozed bool              `json:"highSnoozed"`
}

// Evaluate runs every engine component over snap at the given instant
func Evaluate(snap *Snapshot, at time.Time, settings *models.Settings) (*Status, error) {
	if snap == nil || len(snap.Entries) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeNoData, "no glucose entries available", nil)
	}
	if settings == nil {
		settings = models.DefaultSettings()
	}

	current := settings.Clone()
	store := snap.Profile
	if store == nil {
		store = profile.Empty()
	}

	atMillis := at.UnixMilli()
	displayUnits := current.Units
	iobProvider := iob.NewDeviceStatusProvider(snap.DeviceStatus)

	sbx := &bwp.Sandbox{
		Time:       atMillis,
		Entries:    snap.Entries,
		Treatments: snap.Treatments,
		Profile:    store,
		Iob:        iobProvider.Calc(atMillis),
		Units:      displayUnits,
	}
	last := sbx.LastEntry()
	if last == nil {
		return nil, apperrors.Wrap(apperrors.CodeNoData, "no glucose value in entries", nil)
	}

	status := &Status{
		ID:          uuid.NewString(),
		GeneratedAt: at,
		Units:       displayUnits,
		Entry:       last,
		Glucose:     last.Scaled(displayUnits),
		Band:        current.GetGlucoseStatus(last.Value()),
		AgeMinutes:  float64(atMillis-last.Mills) / 60000,
		Direction:   trend.GetDirectionInfo(last),
		Computed:    trend.DirectionFromEntries(snap.Entries),
		Delta:       trend.CalculateDelta(snap.Entries, displayUnits),
		TrendSlope:  trend.CalculateTrendSlope(snap.Entries),
		History:     trend.History(snap.Entries, historyPoints),
		Iob:         sbx.Iob,
	}
	status.GlucoseDisplay = units.RoundBGToDisplayFormat(status.Glucose, displayUnits)
	status.Stale = status.AgeMinutes > float64(current.StaleMinutes)

	status.Cob = cob.CobTotal(snap.Treatments, snap.DeviceStatus, store, atMillis,
		cob.WithActivity(iob.Activity(iobProvider, atMillis)))

	status.BWP = bwp.Calculate(sbx)
	status.BWPLevel = status.BWP.Level(current)
	status.HighSnoozed = bwp.HighSnoozedByIOB(status.BWP, current, sbx)

	return status, nil
}
