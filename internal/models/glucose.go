// Package models contains data structures used throughout the application
package models

import (
	"time"

	"github.com/mrcode/nightscout-engine/internal/units"
)

// Entry represents a single glucose observation from Nightscout
type Entry struct {
	ID         string `json:"_id,omitempty"`
	Mgdl       int    `json:"mgdl,omitempty"` // Canonical mg/dL, 0 means unset
	SGV        int    `json:"sgv"`            // Sensor glucose value in mg/dL, fallback for Mgdl
	Mills      int64  `json:"mills"`          // Unix timestamp in milliseconds
	Date       int64  `json:"date,omitempty"` // Nightscout's own timestamp field
	DateString string `json:"dateString,omitempty"`
	Trend      int    `json:"trend,omitempty"`
	Direction  string `json:"direction"` // Raw device direction string
	Device     string `json:"device,omitempty"`
	Type       string `json:"type,omitempty"`
}

// Normalize fills Mills from Date when the API only sent the latter
func (e *Entry) Normalize() {
	if e.Mills == 0 && e.Date > 0 {
		e.Mills = e.Date
	}
}

// Time returns the time of the glucose entry
func (e *Entry) Time() time.Time {
	return time.UnixMilli(e.Mills)
}

// Value returns the glucose value in mg/dL, preferring Mgdl over SGV
func (e *Entry) Value() int {
	if e.Mgdl != 0 {
		return e.Mgdl
	}
	return e.SGV
}

// Scaled returns the glucose value in the given display unit
func (e *Entry) Scaled(displayUnits string) float64 {
	return units.Scale(float64(e.Value()), displayUnits)
}

// HasValue reports whether the entry carries any glucose reading
func (e *Entry) HasValue() bool {
	return e.Value() > 0
}
