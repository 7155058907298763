// Package profile resolves time-varying therapy parameters at a given instant
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mrcode/nightscout-engine/internal/units"
)

// Provider answers point-in-time profile queries. Every accessor takes the
// evaluation instant in epoch milliseconds and an optional profile name;
// an empty name selects the record's default profile.
type Provider interface {
	HasData() bool
	GetSensitivity(millis int64, name string) float64
	GetCarbRatio(millis int64, name string) float64
	GetBasalRate(millis int64, name string) float64
	GetDIA(millis int64, name string) float64
	GetLowBGTarget(millis int64, name string) float64
	GetHighBGTarget(millis int64, name string) float64
	GetCarbAbsorptionRate(millis int64, name string) float64
	GetUnits(millis int64, name string) string
}

// TimedValue is one step of a daily schedule
type TimedValue struct {
	Time          string       `json:"time"` // "HH:MM"
	Value         units.Number `json:"value"`
	TimeAsSeconds *int         `json:"timeAsSeconds,omitempty"`
}

// seconds returns the offset of the step from local midnight
func (tv TimedValue) seconds() int {
	if tv.TimeAsSeconds != nil {
		return *tv.TimeAsSeconds
	}
	parts := strings.SplitN(tv.Time, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m := 0
	if len(parts) == 2 {
		m, _ = strconv.Atoi(parts[1])
	}
	return h*3600 + m*60
}

// Schedule is a daily step function. Nightscout also stores plain scalars,
// which decode as a single step starting at midnight.
type Schedule []TimedValue

// Constant builds a schedule holding one value all day
func Constant(v float64) Schedule {
	return Schedule{{Time: "00:00", Value: units.NumberOf(v)}}
}

// At builds a single schedule step
func At(clock string, v float64) TimedValue {
	return TimedValue{Time: clock, Value: units.NumberOf(v)}
}

// UnmarshalJSON accepts an array of steps or a scalar
func (s *Schedule) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var steps []TimedValue
		if err := json.Unmarshal(data, &steps); err != nil {
			return err
		}
		*s = steps
		return nil
	}
	var n units.Number
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	if !n.Valid {
		*s = nil
		return nil
	}
	*s = Schedule{{Time: "00:00", Value: n}}
	return nil
}

// valueAt returns the step active at the given offset from midnight
func (s Schedule) valueAt(secondsOfDay int) (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	steps := make([]TimedValue, len(s))
	copy(steps, s)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].seconds() < steps[j].seconds()
	})

	active := steps[0]
	for _, step := range steps {
		if step.seconds() <= secondsOfDay {
			active = step
		}
	}
	if !active.Value.Valid {
		return 0, false
	}
	return active.Value.Value, true
}

// Profile is one named therapy profile
type Profile struct {
	DIA        units.Number `json:"dia"`
	CarbsHr    units.Number `json:"carbs_hr"`
	CarbRatio  Schedule     `json:"carbratio"`
	Sens       Schedule     `json:"sens"`
	Basal      Schedule     `json:"basal"`
	TargetLow  Schedule     `json:"target_low"`
	TargetHigh Schedule     `json:"target_high"`
	Units      string       `json:"units,omitempty"`
	Timezone   string       `json:"timezone,omitempty"`
}

// Record is a profile document as stored by Nightscout
type Record struct {
	ID             string             `json:"_id,omitempty"`
	DefaultProfile string             `json:"defaultProfile"`
	StartDate      string             `json:"startDate,omitempty"`
	Mills          int64              `json:"mills,omitempty"`
	Units          string             `json:"units,omitempty"`
	Store          map[string]Profile `json:"store"`
}

// start returns the record's effective start in epoch milliseconds
func (r Record) start() int64 {
	if r.Mills > 0 {
		return r.Mills
	}
	if r.StartDate != "" {
		if parsed, err := time.Parse(time.RFC3339, r.StartDate); err == nil {
			return parsed.UnixMilli()
		}
	}
	return 0
}

// Defaults are the built-in values used when a profile cannot answer
type Defaults struct {
	Sensitivity float64 `yaml:"sens"`
	CarbRatio   float64 `yaml:"carbRatio"`
	CarbsHr     float64 `yaml:"carbsHr"`
	DIA         float64 `yaml:"dia"`
	TargetLow   float64 `yaml:"targetLow"`
	TargetHigh  float64 `yaml:"targetHigh"`
	Basal       float64 `yaml:"basal"`
	Units       string  `yaml:"units"`
}

// DefaultValues returns the fallback therapy parameters
func DefaultValues() Defaults {
	return Defaults{
		Sensitivity: 95,
		CarbRatio:   18,
		CarbsHr:     30,
		DIA:         3,
		TargetLow:   70,
		TargetHigh:  180,
		Basal:       0,
		Units:       units.MgdlUnits,
	}
}

// Profile turns the fallback values into a constant profile
func (d Defaults) Profile() Profile {
	return Profile{
		DIA:        units.NumberOf(d.DIA),
		CarbsHr:    units.NumberOf(d.CarbsHr),
		CarbRatio:  Constant(d.CarbRatio),
		Sens:       Constant(d.Sensitivity),
		Basal:      Constant(d.Basal),
		TargetLow:  Constant(d.TargetLow),
		TargetHigh: Constant(d.TargetHigh),
		Units:      d.Units,
	}
}

// FromNightscout decodes the /api/v1/profile document list
func FromNightscout(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	return records, nil
}
