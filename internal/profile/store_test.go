package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nightscoutProfiles = `[
  {
    "_id": "p2",
    "defaultProfile": "Default",
    "startDate": "2024-03-01T00:00:00.000Z",
    "units": "mg/dl",
    "store": {
      "Default": {
        "dia": "4",
        "carbs_hr": 25,
        "carbratio": [{"time": "00:00", "value": 10}],
        "sens": [{"time": "00:00", "value": 40, "timeAsSeconds": 0}],
        "basal": [{"time": "00:00", "value": 0.5}],
        "target_low": [{"time": "00:00", "value": 90}],
        "target_high": [{"time": "00:00", "value": 140}]
      }
    }
  },
  {
    "_id": "p1",
    "defaultProfile": "Default",
    "startDate": "2024-01-01T00:00:00.000Z",
    "store": {
      "Default": {
        "dia": 3,
        "carbs_hr": "30",
        "carbratio": 18,
        "sens": [{"time": "00:00", "value": "95"}, {"time": "06:00", "value": 60}, {"time": "22:30", "value": 80}],
        "basal": [{"time": "00:00", "value": 1.0}],
        "target_low": 100,
        "target_high": 120,
        "timezone": "Europe/Vienna"
      },
      "Sport": {
        "sens": [{"time": "00:00", "value": 120}],
        "units": "mmol"
      }
    }
  }
]`

func loadStore(t *testing.T) *Store {
	t.Helper()
	records, err := FromNightscout([]byte(nightscoutProfiles))
	require.NoError(t, err)
	return NewStore(DefaultValues(), records...)
}

func millisAt(t *testing.T, value string) int64 {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed.UnixMilli()
}

func TestStoreSchedulesFollowProfileTimezone(t *testing.T) {
	store := loadStore(t)
	require.True(t, store.HasData())

	// 04:30 UTC is 05:30 in Vienna during winter: the midnight step applies
	assert.Equal(t, 95.0, store.GetSensitivity(millisAt(t, "2024-01-10T04:30:00Z"), ""))
	// 05:30 UTC is 06:30 local
	assert.Equal(t, 60.0, store.GetSensitivity(millisAt(t, "2024-01-10T05:30:00Z"), ""))
	// 21:45 UTC is 22:45 local
	assert.Equal(t, 80.0, store.GetSensitivity(millisAt(t, "2024-01-10T21:45:00Z"), ""))
}

func TestStoreScalarsAndStrings(t *testing.T) {
	store := loadStore(t)
	at := millisAt(t, "2024-01-10T12:00:00Z")

	assert.Equal(t, 18.0, store.GetCarbRatio(at, ""))
	assert.Equal(t, 30.0, store.GetCarbAbsorptionRate(at, ""))
	assert.Equal(t, 3.0, store.GetDIA(at, ""))
	assert.Equal(t, 100.0, store.GetLowBGTarget(at, ""))
	assert.Equal(t, 120.0, store.GetHighBGTarget(at, ""))
	assert.Equal(t, 1.0, store.GetBasalRate(at, ""))
}

func TestStoreSelectsRecordByStartDate(t *testing.T) {
	store := loadStore(t)
	at := millisAt(t, "2024-03-05T12:00:00Z")

	assert.Equal(t, 40.0, store.GetSensitivity(at, ""))
	assert.Equal(t, 4.0, store.GetDIA(at, ""))
	assert.Equal(t, 25.0, store.GetCarbAbsorptionRate(at, ""))
	assert.Equal(t, 0.5, store.GetBasalRate(at, ""))
	assert.Equal(t, "mg/dl", store.GetUnits(at, ""))

	// before every record the oldest one answers
	early := millisAt(t, "2023-06-01T12:00:00Z")
	assert.Equal(t, 18.0, store.GetCarbRatio(early, ""))
}

func TestStoreNamedProfileFallsBackPerField(t *testing.T) {
	store := loadStore(t)
	at := millisAt(t, "2024-01-10T12:00:00Z")

	assert.Equal(t, 120.0, store.GetSensitivity(at, "Sport"))
	assert.Equal(t, "mmol", store.GetUnits(at, "Sport"))
	// fields the named profile lacks come from the defaults
	assert.Equal(t, DefaultValues().CarbRatio, store.GetCarbRatio(at, "Sport"))
	// unknown profile name degrades to defaults
	assert.Equal(t, DefaultValues().Sensitivity, store.GetSensitivity(at, "Missing"))
	assert.Equal(t, []string{"Default", "Sport"}, store.ProfileNames(at))
}

func TestEmptyStoreAnswersWithDefaults(t *testing.T) {
	store := Empty()
	defaults := DefaultValues()

	assert.False(t, store.HasData())
	assert.Equal(t, defaults.Sensitivity, store.GetSensitivity(0, ""))
	assert.Equal(t, defaults.CarbRatio, store.GetCarbRatio(0, ""))
	assert.Equal(t, defaults.CarbsHr, store.GetCarbAbsorptionRate(0, ""))
	assert.Equal(t, defaults.DIA, store.GetDIA(0, ""))
	assert.Equal(t, defaults.Units, store.GetUnits(0, ""))
	assert.Nil(t, store.ProfileNames(0))
}

func TestSingleProfile(t *testing.T) {
	store := Single(Profile{
		Sens:       Schedule{At("00:00", 50), At("12:00", 70)},
		TargetHigh: Constant(200),
	})
	noon := millisAt(t, "2024-01-10T12:00:00Z")

	assert.True(t, store.HasData())
	assert.Equal(t, 70.0, store.GetSensitivity(noon, ""))
	assert.Equal(t, 50.0, store.GetSensitivity(noon-1, ""))
	assert.Equal(t, 200.0, store.GetHighBGTarget(noon, ""))
}

func TestFromNightscoutRejectsGarbage(t *testing.T) {
	_, err := FromNightscout([]byte(`{"not":"a list"}`))
	require.Error(t, err)
}

func TestDefaultsProfile(t *testing.T) {
	d := DefaultValues()
	d.Basal = 0.8
	store := Single(d.Profile())

	require.True(t, store.HasData())
	assert.Equal(t, 95.0, store.GetSensitivity(0, ""))
	assert.Equal(t, 0.8, store.GetBasalRate(0, ""))
	assert.Equal(t, 30.0, store.GetCarbAbsorptionRate(0, ""))
	assert.Equal(t, "mg/dl", store.GetUnits(0, ""))
}
