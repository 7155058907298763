package models

import (
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if settings.Units != "mg/dl" {
		t.Errorf("Default units = %s, want mg/dl", settings.Units)
	}
	if settings.TargetLow != 70 {
		t.Errorf("Default target low = %d, want 70", settings.TargetLow)
	}
	if settings.TargetHigh != 180 {
		t.Errorf("Default target high = %d, want 180", settings.TargetHigh)
	}
	if settings.UrgentLow != 55 {
		t.Errorf("Default urgent low = %d, want 55", settings.UrgentLow)
	}
	if settings.UrgentHigh != 250 {
		t.Errorf("Default urgent high = %d, want 250", settings.UrgentHigh)
	}
	if settings.SnoozeBWP != 0.10 {
		t.Errorf("Default snooze BWP = %v, want 0.10", settings.SnoozeBWP)
	}
}

func TestSettings_GetGlucoseStatus(t *testing.T) {
	settings := DefaultSettings()

	tests := []struct {
		name     string
		mgdl     int
		expected string
	}{
		{"Urgent low", 50, "urgent_low"},
		{"Low", 60, "low"},
		{"Normal low boundary", 70, "low"},
		{"Normal", 120, "normal"},
		{"Normal high boundary", 180, "high"},
		{"High", 200, "high"},
		{"Urgent high", 260, "urgent_high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := settings.GetGlucoseStatus(tt.mgdl)
			if result != tt.expected {
				t.Errorf("GetGlucoseStatus(%d) = %s, want %s", tt.mgdl, result, tt.expected)
			}
		})
	}
}

func TestSettings_Clone(t *testing.T) {
	original := DefaultSettings()
	original.Units = "mmol"

	clone := original.Clone()

	if clone.Units != original.Units {
		t.Error("Clone did not copy Units")
	}

	clone.Units = "mg/dl"
	if original.Units == clone.Units {
		t.Error("Modifying clone affected original")
	}
}

func TestSettings_Update(t *testing.T) {
	settings := DefaultSettings()
	other := DefaultSettings()
	other.TargetHigh = 160
	other.WarnBWP = 0.8

	settings.Update(other)

	if settings.TargetHigh != 160 || settings.WarnBWP != 0.8 {
		t.Errorf("Update did not copy fields: %+v", settings)
	}
}

func TestSettings_IsMmol(t *testing.T) {
	settings := DefaultSettings()
	if settings.IsMmol() {
		t.Error("Default settings should be mg/dl")
	}
	settings.Units = "mmol/L"
	if !settings.IsMmol() {
		t.Error("mmol/L settings should report mmol")
	}
}
