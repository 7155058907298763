// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"time"

	"github.com/mrcode/nightscout-engine/internal/units"
)

// Treatment represents a treatment entry from Nightscout (insulin, carbs, etc.)
type Treatment struct {
	ID        string  `json:"_id"`
	EventType string  `json:"eventType"`
	Mills     int64   `json:"mills"` // Unix timestamp in milliseconds
	CreatedAt string  `json:"created_at,omitempty"`
	Insulin   float64 `json:"insulin,omitempty"` // Units of insulin
	Carbs     float64 `json:"carbs,omitempty"`   // Grams of carbohydrates
	Protein   float64 `json:"protein,omitempty"`
	Fat       float64 `json:"fat,omitempty"`
	Duration  float64 `json:"duration,omitempty"` // Minutes, for temp basals
	Absolute  float64 `json:"absolute,omitempty"` // Temp basal rate in U/h
	Glucose   float64 `json:"glucose,omitempty"`
	Notes     string  `json:"notes,omitempty"`
	EnteredBy string  `json:"enteredBy,omitempty"`
}

// treatmentWire mirrors Treatment but tolerates numeric strings
type treatmentWire struct {
	ID        string       `json:"_id"`
	EventType string       `json:"eventType"`
	Mills     int64        `json:"mills"`
	Date      int64        `json:"date"`
	CreatedAt string       `json:"created_at"`
	Insulin   units.Number `json:"insulin"`
	Carbs     units.Number `json:"carbs"`
	Protein   units.Number `json:"protein"`
	Fat       units.Number `json:"fat"`
	Duration  units.Number `json:"duration"`
	Absolute  units.Number `json:"absolute"`
	Glucose   units.Number `json:"glucose"`
	Notes     string       `json:"notes"`
	EnteredBy string       `json:"enteredBy"`
}

// UnmarshalJSON decodes Nightscout treatments, where numbers are often strings
// and the timestamp may only be present as date or created_at.
func (t *Treatment) UnmarshalJSON(data []byte) error {
	var w treatmentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Treatment{
		ID:        w.ID,
		EventType: w.EventType,
		Mills:     w.Mills,
		CreatedAt: w.CreatedAt,
		Insulin:   w.Insulin.Float(),
		Carbs:     w.Carbs.Float(),
		Protein:   w.Protein.Float(),
		Fat:       w.Fat.Float(),
		Duration:  w.Duration.Float(),
		Absolute:  w.Absolute.Float(),
		Glucose:   w.Glucose.Float(),
		Notes:     w.Notes,
		EnteredBy: w.EnteredBy,
	}
	if t.Mills == 0 {
		t.Mills = w.Date
	}
	if t.Mills == 0 && w.CreatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
			t.Mills = parsed.UnixMilli()
		}
	}
	return nil
}

// Time returns the time of the treatment
func (t *Treatment) Time() time.Time {
	return time.UnixMilli(t.Mills)
}

// HasInsulin returns true if this treatment includes insulin
func (t *Treatment) HasInsulin() bool {
	return t.Insulin > 0
}

// HasCarbs returns true if this treatment includes carbohydrates
func (t *Treatment) HasCarbs() bool {
	return t.Carbs > 0
}
