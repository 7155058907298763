// Package bwp computes the bolus wizard preview: the correction bolus the
// current glucose and insulin on board call for
package bwp

import (
	"sort"

	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/profile"
	"github.com/mrcode/nightscout-engine/internal/units"
)

// currentWindowMs is the oldest a reading may be to count as current
const currentWindowMs = int64(15 * 60 * 1000)

// Formatter renders values for display
type Formatter interface {
	RoundInsulinForDisplayFormat(insulin float64) string
	RoundBGToDisplayFormat(bg float64) string
}

// DefaultFormatter formats with the shared unit helpers
type DefaultFormatter struct {
	Units string
}

// RoundInsulinForDisplayFormat renders insulin with two decimals
func (f DefaultFormatter) RoundInsulinForDisplayFormat(insulin float64) string {
	return units.RoundInsulinForDisplayFormat(insulin)
}

// RoundBGToDisplayFormat renders a glucose value in the formatter's unit
func (f DefaultFormatter) RoundBGToDisplayFormat(bg float64) string {
	return units.RoundBGToDisplayFormat(bg, f.Units)
}

// Sandbox holds everything one evaluation needs
type Sandbox struct {
	Time        int64 // evaluation instant, epoch ms
	Entries     []models.Entry
	Treatments  []models.Treatment
	Profile     profile.Provider
	ProfileName string
	Iob         *models.IobResult
	Units       string // display units, defaults to the profile's
	Formatter   Formatter
}

// LastEntry returns the newest entry with a glucose value, or nil
func (s *Sandbox) LastEntry() *models.Entry {
	var last *models.Entry
	for i := range s.Entries {
		e := &s.Entries[i]
		if !e.HasValue() {
			continue
		}
		if last == nil || e.Mills > last.Mills {
			last = e
		}
	}
	return last
}

// IsCurrent reports whether entry was taken within 15 minutes of Time
func (s *Sandbox) IsCurrent(entry *models.Entry) bool {
	return entry != nil && s.Time-entry.Mills <= currentWindowMs
}

// ProfileUnits returns the unit the profile's values are expressed in
func (s *Sandbox) ProfileUnits() string {
	if s.Profile == nil {
		return units.MgdlUnits
	}
	return s.Profile.GetUnits(s.Time, s.ProfileName)
}

// LastScaledSGV returns the newest reading in profile units, 0 when absent
func (s *Sandbox) LastScaledSGV() float64 {
	last := s.LastEntry()
	if last == nil {
		return 0
	}
	return last.Scaled(s.ProfileUnits())
}

func (s *Sandbox) formatter() Formatter {
	if s.Formatter != nil {
		return s.Formatter
	}
	u := s.Units
	if u == "" {
		u = s.ProfileUnits()
	}
	return DefaultFormatter{Units: u}
}

// recentCarbs returns the newest carb treatment within window before Time
func (s *Sandbox) recentCarbs(windowMs int64) *models.Treatment {
	candidates := make([]models.Treatment, 0, len(s.Treatments))
	for _, t := range s.Treatments {
		if t.HasCarbs() && t.Mills <= s.Time && s.Time-t.Mills <= windowMs {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Mills > candidates[j].Mills
	})
	return &candidates[0]
}
