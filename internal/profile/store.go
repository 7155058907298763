package profile

import (
	"sort"
	"sync"
	"time"
	_ "time/tzdata" // profile timezones must resolve on minimal hosts

	"github.com/samber/lo"
)

// Store is a Provider over Nightscout profile records
type Store struct {
	records  []Record // sorted by start ascending
	defaults Defaults

	mu        sync.Mutex
	locations map[string]*time.Location
}

// NewStore builds a store; a store without records answers with defaults
func NewStore(defaults Defaults, records ...Record) *Store {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].start() < sorted[j].start()
	})
	return &Store{
		records:   sorted,
		defaults:  defaults,
		locations: make(map[string]*time.Location),
	}
}

// Single wraps one profile as the default of a single record
func Single(p Profile) *Store {
	return NewStore(DefaultValues(), Record{
		DefaultProfile: "Default",
		Store:          map[string]Profile{"Default": p},
	})
}

// Empty returns a store with no data
func Empty() *Store {
	return NewStore(DefaultValues())
}

// Defaults returns the fallback values
func (s *Store) Defaults() Defaults {
	return s.defaults
}

// HasData reports whether any profile was loaded
func (s *Store) HasData() bool {
	for _, r := range s.records {
		if len(r.Store) > 0 {
			return true
		}
	}
	return false
}

// ProfileNames lists the profiles of the record active at millis
func (s *Store) ProfileNames(millis int64) []string {
	rec, ok := s.recordAt(millis)
	if !ok {
		return nil
	}
	names := lo.Keys(rec.Store)
	sort.Strings(names)
	return names
}

// recordAt returns the newest record that started at or before millis,
// falling back to the oldest when all start later
func (s *Store) recordAt(millis int64) (Record, bool) {
	if len(s.records) == 0 {
		return Record{}, false
	}
	active := s.records[0]
	for _, r := range s.records {
		if r.start() <= millis {
			active = r
		}
	}
	return active, true
}

func (s *Store) profileAt(millis int64, name string) (Profile, Record, bool) {
	rec, ok := s.recordAt(millis)
	if !ok {
		return Profile{}, Record{}, false
	}
	if name == "" {
		name = rec.DefaultProfile
	}
	p, ok := rec.Store[name]
	if !ok {
		return Profile{}, rec, false
	}
	return p, rec, true
}

func (s *Store) location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc, ok := s.locations[tz]; ok {
		return loc
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	s.locations[tz] = loc
	return loc
}

func (s *Store) scheduleValue(millis int64, name string, pick func(Profile) Schedule, fallback float64) float64 {
	p, _, ok := s.profileAt(millis, name)
	if !ok {
		return fallback
	}
	local := time.UnixMilli(millis).In(s.location(p.Timezone))
	secondsOfDay := local.Hour()*3600 + local.Minute()*60 + local.Second()
	if v, ok := pick(p).valueAt(secondsOfDay); ok {
		return v
	}
	return fallback
}

// GetSensitivity returns the insulin sensitivity factor in profile units per U
func (s *Store) GetSensitivity(millis int64, name string) float64 {
	return s.scheduleValue(millis, name, func(p Profile) Schedule { return p.Sens }, s.defaults.Sensitivity)
}

// GetCarbRatio returns grams of carbohydrate covered by one unit
func (s *Store) GetCarbRatio(millis int64, name string) float64 {
	return s.scheduleValue(millis, name, func(p Profile) Schedule { return p.CarbRatio }, s.defaults.CarbRatio)
}

// GetBasalRate returns the scheduled basal rate in U/h
func (s *Store) GetBasalRate(millis int64, name string) float64 {
	return s.scheduleValue(millis, name, func(p Profile) Schedule { return p.Basal }, s.defaults.Basal)
}

// GetLowBGTarget returns the low end of the target range in profile units
func (s *Store) GetLowBGTarget(millis int64, name string) float64 {
	return s.scheduleValue(millis, name, func(p Profile) Schedule { return p.TargetLow }, s.defaults.TargetLow)
}

// GetHighBGTarget returns the high end of the target range in profile units
func (s *Store) GetHighBGTarget(millis int64, name string) float64 {
	return s.scheduleValue(millis, name, func(p Profile) Schedule { return p.TargetHigh }, s.defaults.TargetHigh)
}

// GetDIA returns the duration of insulin action in hours
func (s *Store) GetDIA(millis int64, name string) float64 {
	p, _, ok := s.profileAt(millis, name)
	if !ok || !p.DIA.Valid || p.DIA.Value <= 0 {
		return s.defaults.DIA
	}
	return p.DIA.Value
}

// GetCarbAbsorptionRate returns grams absorbed per hour
func (s *Store) GetCarbAbsorptionRate(millis int64, name string) float64 {
	p, _, ok := s.profileAt(millis, name)
	if !ok || !p.CarbsHr.Valid || p.CarbsHr.Value <= 0 {
		return s.defaults.CarbsHr
	}
	return p.CarbsHr.Value
}

// GetUnits returns the unit the profile's values are expressed in
func (s *Store) GetUnits(millis int64, name string) string {
	p, rec, ok := s.profileAt(millis, name)
	switch {
	case ok && p.Units != "":
		return p.Units
	case rec.Units != "":
		return rec.Units
	default:
		return s.defaults.Units
	}
}
