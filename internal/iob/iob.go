// Package iob selects insulin-on-board estimates reported by external systems.
// It never models insulin decay itself.
package iob

import (
	"github.com/mrcode/nightscout-engine/internal/models"
)

const (
	// recencyMs is the oldest a device IOB may be and still count as current
	recencyMs = int64(10 * 60 * 1000)

	SourceLoop    = "Loop"
	SourceOpenAPS = "OpenAPS"
	SourceStatic  = "Static"
)

// Provider answers IOB queries at an instant. A nil result means no
// estimate is available.
type Provider interface {
	Calc(atMillis int64) *models.IobResult
}

// Static always returns the same estimate
type Static struct {
	Iob      float64
	Activity float64
}

// Calc returns the fixed estimate stamped with atMillis
func (s Static) Calc(atMillis int64) *models.IobResult {
	return &models.IobResult{
		Iob:      s.Iob,
		Activity: s.Activity,
		Mills:    atMillis,
		Source:   SourceStatic,
	}
}

// DeviceStatusProvider picks the newest IOB a Loop or OpenAPS uploader reported
type DeviceStatusProvider struct {
	Statuses []models.DeviceStatus
}

// NewDeviceStatusProvider wraps a set of device statuses
func NewDeviceStatusProvider(statuses []models.DeviceStatus) *DeviceStatusProvider {
	return &DeviceStatusProvider{Statuses: statuses}
}

// Calc returns the newest device IOB at most ten minutes old at atMillis
func (p *DeviceStatusProvider) Calc(atMillis int64) *models.IobResult {
	var best *models.IobResult
	for _, ds := range p.Statuses {
		if ds.Mills > atMillis || atMillis-ds.Mills > recencyMs {
			continue
		}
		r, ok := fromDeviceStatus(ds)
		if !ok {
			continue
		}
		if best == nil || r.Mills > best.Mills {
			best = &r
		}
	}
	return best
}

func fromDeviceStatus(ds models.DeviceStatus) (models.IobResult, bool) {
	if ds.Loop != nil && ds.Loop.Iob != nil && ds.Loop.Iob.Iob != nil {
		return models.IobResult{Iob: *ds.Loop.Iob.Iob, Mills: ds.Mills, Source: SourceLoop, Device: ds.Device}, true
	}
	if ds.OpenAPS == nil {
		return models.IobResult{}, false
	}
	if block := ds.OpenAPS.Iob; block != nil && block.Iob != nil {
		r := models.IobResult{Iob: *block.Iob, Mills: ds.Mills, Source: SourceOpenAPS, Device: ds.Device}
		if block.Activity != nil {
			r.Activity = *block.Activity
		}
		return r, true
	}
	for _, det := range []*models.OpenAPSDetermination{ds.OpenAPS.Enacted, ds.OpenAPS.Suggested} {
		if det != nil && det.IOB != nil {
			return models.IobResult{Iob: *det.IOB, Mills: ds.Mills, Source: SourceOpenAPS, Device: ds.Device}, true
		}
	}
	return models.IobResult{}, false
}

// Activity adapts a provider into an activity lookup, zero when unknown.
// Instants after atMillis are not modelled and also read as zero.
func Activity(p Provider, atMillis int64) func(millis int64) float64 {
	return func(millis int64) float64 {
		if p == nil || millis > atMillis {
			return 0
		}
		if r := p.Calc(millis); r != nil {
			return r.Activity
		}
		return 0
	}
}
