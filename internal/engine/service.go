// Package engine fetches Nightscout data and evaluates every therapy
// calculation at an instant
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mrcode/nightscout-engine/internal/apperrors"
	"github.com/mrcode/nightscout-engine/internal/logger"
	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/profile"
	"github.com/mrcode/nightscout-engine/internal/statistics"
)

const (
	// treatmentLookback covers the longest carb absorption we expect
	treatmentLookback = 8 * time.Hour
	deviceStatusCount = 24
	readingsPerDay    = 288
)

// Fetcher is the part of the Nightscout client the service reads from
type Fetcher interface {
	GetEntries(ctx context.Context, from, to time.Time, count int) ([]models.Entry, error)
	GetTreatments(ctx context.Context, from, to time.Time, count int) ([]models.Treatment, error)
	GetDeviceStatus(ctx context.Context, count int) ([]models.DeviceStatus, error)
	GetProfiles(ctx context.Context) ([]profile.Record, error)
}

// Options configures a Service
type Options struct {
	Settings        *models.Settings
	ProfileDefaults profile.Defaults
	Ranges          statistics.Thresholds
	Location        *time.Location
	CacheTTL        time.Duration
	Lookback        time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

// Snapshot is the raw data one evaluation works on
type Snapshot struct {
	Entries      []models.Entry
	Treatments   []models.Treatment
	DeviceStatus []models.DeviceStatus
	Profile      *profile.Store
	FetchedAt    time.Time
}

// Service evaluates the engine against a Nightscout site
type Service struct {
	fetcher  Fetcher
	settings *models.Settings
	defaults profile.Defaults
	ranges   statistics.Thresholds
	loc      *time.Location
	cacheTTL time.Duration
	lookback time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu         sync.RWMutex
	cached     *Snapshot
	cacheTime  time.Time
	lastStatus *Status
}

// NewService creates a new engine service
func NewService(fetcher Fetcher, opts Options) *Service {
	s := &Service{
		fetcher:  fetcher,
		settings: opts.Settings,
		defaults: opts.ProfileDefaults,
		ranges:   opts.Ranges,
		loc:      opts.Location,
		cacheTTL: opts.CacheTTL,
		lookback: opts.Lookback,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if s.settings == nil {
		s.settings = models.DefaultSettings()
	}
	if s.defaults == (profile.Defaults{}) {
		s.defaults = profile.DefaultValues()
	}
	if s.ranges == (statistics.Thresholds{}) {
		s.ranges = statistics.DefaultThresholds()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.lookback <= 0 {
		s.lookback = 3 * time.Hour
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.log = s.log.With("component", "engine")
	return s
}

// Settings returns the alarm settings the service evaluates with
func (s *Service) Settings() *models.Settings {
	return s.settings
}

// Status evaluates every calculation at the current instant
func (s *Service) Status(ctx context.Context) (*Status, error) {
	snap, err := s.recentData(ctx)
	if err != nil {
		return nil, err
	}

	status, err := Evaluate(snap, s.now(), s.settings)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastStatus = status
	s.mu.Unlock()

	return status, nil
}

// LastStatus returns the most recent status without fetching
func (s *Service) LastStatus() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStatus
}

// RefreshCache forces the next Status call to refetch
func (s *Service) RefreshCache() {
	s.mu.Lock()
	s.cacheTime = time.Time{}
	s.mu.Unlock()
}

// Report computes statistics over the last days
func (s *Service) Report(ctx context.Context, days int) (*Report, error) {
	if days <= 0 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("days must be positive, got %d", days), nil)
	}

	to := s.now()
	from := to.AddDate(0, 0, -days)

	entries, err := s.fetcher.GetEntries(ctx, from, to, days*readingsPerDay*2)
	if err != nil {
		return nil, fmt.Errorf("fetching entries: %w", err)
	}
	treatments, err := s.fetcher.GetTreatments(ctx, from, to, days*readingsPerDay)
	if err != nil {
		return nil, fmt.Errorf("fetching treatments: %w", err)
	}

	s.log.Info("building report", "days", days, "entries", len(entries), "treatments", len(treatments))
	return BuildReport(entries, treatments, from, to, s.ranges, s.loc, s.settings.Units)
}

func (s *Service) recentData(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Use cache if still fresh
	if s.cached != nil && s.now().Sub(s.cacheTime) < s.cacheTTL {
		return s.cached, nil
	}

	now := s.now()
	entries, err := s.fetcher.GetEntries(ctx, now.Add(-s.lookback), time.Time{}, int(s.lookback/(5*time.Minute))*2)
	if err != nil {
		return nil, fmt.Errorf("fetching entries: %w", err)
	}

	treatments, err := s.fetcher.GetTreatments(ctx, now.Add(-treatmentLookback), time.Time{}, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching treatments: %w", err)
	}

	statuses, err := s.fetcher.GetDeviceStatus(ctx, deviceStatusCount)
	if err != nil {
		// Device status only refines IOB and COB
		s.log.Warn("device status unavailable", "error", err)
		statuses = nil
	}

	s.cached = &Snapshot{
		Entries:      entries,
		Treatments:   treatments,
		DeviceStatus: statuses,
		Profile:      s.loadProfile(ctx),
		FetchedAt:    now,
	}
	s.cacheTime = now
	s.log.Debug("refreshed data", "entries", len(entries), "treatments", len(treatments), "deviceStatus", len(statuses))

	return s.cached, nil
}

// loadProfile falls back to the configured defaults when the site has none
func (s *Service) loadProfile(ctx context.Context) *profile.Store {
	records, err := s.fetcher.GetProfiles(ctx)
	if err != nil {
		s.log.Warn("profile unavailable, using defaults", "error", err)
	}
	store := profile.NewStore(s.defaults, records...)
	if store.HasData() {
		return store
	}
	return profile.NewStore(s.defaults, profile.Record{
		DefaultProfile: "Default",
		Store:          map[string]profile.Profile{"Default": s.defaults.Profile()},
	})
}
