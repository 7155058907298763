package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-engine/internal/apperrors"
	"github.com/mrcode/nightscout-engine/internal/bwp"
	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/profile"
	"github.com/mrcode/nightscout-engine/internal/trend"
	"github.com/mrcode/nightscout-engine/internal/units"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type stubFetcher struct {
	entries    []models.Entry
	treatments []models.Treatment
	statuses   []models.DeviceStatus
	records    []profile.Record

	entriesErr  error
	statusErr   error
	profilesErr error

	entryCalls atomic.Int32
}

func (f *stubFetcher) GetEntries(context.Context, time.Time, time.Time, int) ([]models.Entry, error) {
	f.entryCalls.Add(1)
	return f.entries, f.entriesErr
}

func (f *stubFetcher) GetTreatments(context.Context, time.Time, time.Time, int) ([]models.Treatment, error) {
	return f.treatments, nil
}

func (f *stubFetcher) GetDeviceStatus(context.Context, int) ([]models.DeviceStatus, error) {
	return f.statuses, f.statusErr
}

func (f *stubFetcher) GetProfiles(context.Context) ([]profile.Record, error) {
	return f.records, f.profilesErr
}

func minutesAgo(m int) int64 {
	return fixedNow.Add(-time.Duration(m) * time.Minute).UnixMilli()
}

func newFetcher() *stubFetcher {
	iobValue := 1.0
	return &stubFetcher{
		entries: []models.Entry{
			{SGV: 150, Mills: minutesAgo(2), Direction: "FortyFiveUp"},
			{SGV: 140, Mills: minutesAgo(7), Direction: "Flat"},
		},
		treatments: []models.Treatment{
			{ID: "meal", EventType: "Meal Bolus", Carbs: 8, Insulin: 1, Mills: minutesAgo(24)},
		},
		statuses: []models.DeviceStatus{{
			Device: "loop://iPhone",
			Mills:  minutesAgo(3),
			Loop:   &models.LoopStatus{Iob: &models.LoopIob{Iob: &iobValue}},
		}},
		records: []profile.Record{{
			DefaultProfile: "Default",
			Store: map[string]profile.Profile{"Default": {
				Sens:       profile.Constant(50),
				CarbRatio:  profile.Constant(18),
				CarbsHr:    units.NumberOf(30),
				TargetLow:  profile.Constant(100),
				TargetHigh: profile.Constant(120),
			}},
		}},
	}
}

func newTestService(f Fetcher) *Service {
	return NewService(f, Options{
		CacheTTL: time.Minute,
		Now:      func() time.Time { return fixedNow },
	})
}

func TestServiceStatus(t *testing.T) {
	svc := newTestService(newFetcher())

	status, err := svc.Status(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, status.ID)
	assert.Equal(t, 150.0, status.Glucose)
	assert.Equal(t, "150", status.GlucoseDisplay)
	assert.Equal(t, models.StatusNormal, status.Band)
	assert.False(t, status.Stale)
	assert.InDelta(t, 2, status.AgeMinutes, 1e-9)

	assert.Equal(t, trend.DirectionFortyFiveUp, status.Direction.Value)
	assert.Equal(t, trend.DirectionDoubleUp, status.Computed)
	require.NotNil(t, status.Delta)
	assert.Equal(t, "+10", status.Delta.Display)

	assert.Equal(t, "6g", status.Cob.Display)
	require.NotNil(t, status.Iob)
	assert.Equal(t, 1.0, status.Iob.Iob)

	assert.Empty(t, status.BWP.Errors)
	assert.Equal(t, 50.0, status.BWP.Effect)
	assert.Equal(t, 100.0, status.BWP.Outcome)
	assert.Zero(t, status.BWP.BolusEstimate)
	assert.Equal(t, bwp.LevelNone, status.BWPLevel)
	assert.True(t, status.HighSnoozed)

	assert.Same(t, status, svc.LastStatus())
}

func TestServiceStatusUsesCache(t *testing.T) {
	f := newFetcher()
	svc := newTestService(f)

	_, err := svc.Status(context.Background())
	require.NoError(t, err)
	_, err = svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.entryCalls.Load())

	svc.RefreshCache()
	_, err = svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.entryCalls.Load())
}

func TestServiceStatusDegradesGracefully(t *testing.T) {
	f := newFetcher()
	f.statusErr = errors.New("boom")
	f.profilesErr = errors.New("boom")
	svc := newTestService(f)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)

	assert.Nil(t, status.Iob)
	assert.Contains(t, status.BWP.Errors, bwp.MsgMissingIOB)
	assert.NotContains(t, status.BWP.Errors, bwp.MsgMissingProfile)
	assert.Equal(t, "6g", status.Cob.Display)
}

func TestServiceStatusErrors(t *testing.T) {
	f := newFetcher()
	f.entriesErr = apperrors.Wrap(apperrors.CodeUpstreamError, "request failed", nil)
	_, err := newTestService(f).Status(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUpstreamError))

	empty := newFetcher()
	empty.entries = nil
	_, err = newTestService(empty).Status(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoData))
}

func TestEvaluateStaleReading(t *testing.T) {
	snap := &Snapshot{Entries: []models.Entry{{SGV: 60, Mills: minutesAgo(30)}}}

	status, err := Evaluate(snap, fixedNow, nil)
	require.NoError(t, err)
	assert.True(t, status.Stale)
	assert.Equal(t, models.StatusLow, status.Band)
	assert.Contains(t, status.BWP.Errors, bwp.MsgDataNotCurrent)
	assert.Nil(t, status.Delta)
}

func TestServiceReport(t *testing.T) {
	svc := newTestService(newFetcher())

	report, err := svc.Report(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, fixedNow, report.To)
	assert.Equal(t, fixedNow.AddDate(0, 0, -1), report.From)
	assert.Equal(t, 2, report.Analysis.Glucose.Count)
	assert.Equal(t, "145", report.Display.Mean)
	assert.Equal(t, "100.0%", report.Display.TimeInRange)
	assert.Equal(t, "1.0", report.Display.TotalInsulin)
	assert.Equal(t, "8", report.Display.TotalCarbs)
	assert.NotEmpty(t, report.Display.GMI)

	_, err = svc.Report(context.Background(), 0)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}
