// Package models contains data structures used throughout the application
package models

import (
	"sync"

	"github.com/mrcode/nightscout-engine/internal/units"
)

// Glucose band names returned by GetGlucoseStatus
const (
	StatusUrgentLow  = "urgent_low"
	StatusLow        = "low"
	StatusNormal     = "normal"
	StatusHigh       = "high"
	StatusUrgentHigh = "urgent_high"
)

// Settings contains the runtime alarm and display settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Display settings
	Units string `json:"units"` // "mg/dl" or "mmol"

	// Glucose thresholds (in mg/dL, converted for display)
	TargetLow  int `json:"targetLow"`
	TargetHigh int `json:"targetHigh"`
	UrgentLow  int `json:"urgentLow"`
	UrgentHigh int `json:"urgentHigh"`

	// Alert settings
	EnableHighAlert       bool `json:"enableHighAlert"`
	EnableLowAlert        bool `json:"enableLowAlert"`
	EnableUrgentHighAlert bool `json:"enableUrgentHighAlert"`
	EnableUrgentLowAlert  bool `json:"enableUrgentLowAlert"`
	EnableBWPAlert        bool `json:"enableBwpAlert"`
	RepeatAlertMinutes    int  `json:"repeatAlertMinutes"` // 0 = no repeat
	StaleMinutes          int  `json:"staleMinutes"`

	// Bolus wizard preview thresholds (units)
	SnoozeBWP float64 `json:"snoozeBwp"`
	WarnBWP   float64 `json:"warnBwp"`
	UrgentBWP float64 `json:"urgentBwp"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		Units: units.MgdlUnits,

		TargetLow:  70,
		TargetHigh: 180,
		UrgentLow:  55,
		UrgentHigh: 250,

		EnableHighAlert:       true,
		EnableLowAlert:        true,
		EnableUrgentHighAlert: true,
		EnableUrgentLowAlert:  true,
		EnableBWPAlert:        true,
		RepeatAlertMinutes:    15,
		StaleMinutes:          15,

		SnoozeBWP: 0.10,
		WarnBWP:   0.50,
		UrgentBWP: 1.00,
	}
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex.
// The caller must hold the necessary locks.
func (s *Settings) copySettingsFields(other *Settings) {
	s.Units = other.Units
	s.TargetLow = other.TargetLow
	s.TargetHigh = other.TargetHigh
	s.UrgentLow = other.UrgentLow
	s.UrgentHigh = other.UrgentHigh
	s.EnableHighAlert = other.EnableHighAlert
	s.EnableLowAlert = other.EnableLowAlert
	s.EnableUrgentHighAlert = other.EnableUrgentHighAlert
	s.EnableUrgentLowAlert = other.EnableUrgentLowAlert
	s.EnableBWPAlert = other.EnableBWPAlert
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.StaleMinutes = other.StaleMinutes
	s.SnoozeBWP = other.SnoozeBWP
	s.WarnBWP = other.WarnBWP
	s.UrgentBWP = other.UrgentBWP
}

// BWPThresholds returns the snooze, warn and urgent bolus wizard thresholds
func (s *Settings) BWPThresholds() (snooze, warn, urgent float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SnoozeBWP, s.WarnBWP, s.UrgentBWP
}

// IsMmol returns true when values are displayed in mmol/L
func (s *Settings) IsMmol() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return units.IsMmol(s.Units)
}

// GetGlucoseStatus returns the status string for a glucose value
func (s *Settings) GetGlucoseStatus(mgdl int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case mgdl <= s.UrgentLow:
		return StatusUrgentLow
	case mgdl <= s.TargetLow:
		return StatusLow
	case mgdl >= s.UrgentHigh:
		return StatusUrgentHigh
	case mgdl >= s.TargetHigh:
		return StatusHigh
	default:
		return StatusNormal
	}
}
