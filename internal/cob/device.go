package cob

import (
	"github.com/mrcode/nightscout-engine/internal/models"
)

const (
	// deviceWindowMs bounds how old a device COB may be to be considered at all
	deviceWindowMs = 30 * minuteMs
	// deviceFreshMs is the age under which a device COB overrides treatments
	deviceFreshMs = 10 * minuteMs

	SourceLoop    = "Loop"
	SourceOpenAPS = "OpenAPS"
)

// DeviceCob is a COB value reported by a closed-loop system
type DeviceCob struct {
	Cob    float64
	Source string
	Device string
	Mills  int64
}

// fromDeviceStatus extracts the COB a status reports, if any
func fromDeviceStatus(ds models.DeviceStatus) (DeviceCob, bool) {
	if ds.Loop != nil && ds.Loop.Cob != nil && ds.Loop.Cob.Cob != nil {
		return DeviceCob{Cob: *ds.Loop.Cob.Cob, Source: SourceLoop, Device: ds.Device, Mills: ds.Mills}, true
	}
	if ds.OpenAPS != nil {
		for _, det := range []*models.OpenAPSDetermination{ds.OpenAPS.Enacted, ds.OpenAPS.Suggested} {
			if det != nil && det.COB != nil {
				return DeviceCob{Cob: *det.COB, Source: SourceOpenAPS, Device: ds.Device, Mills: ds.Mills}, true
			}
		}
	}
	return DeviceCob{}, false
}

// LastCobDeviceStatus returns the newest device COB at or before atTime and
// no older than 30 minutes, or nil.
func LastCobDeviceStatus(statuses []models.DeviceStatus, atTime int64) *DeviceCob {
	var best *DeviceCob
	for _, ds := range statuses {
		if ds.Mills > atTime || atTime-ds.Mills > deviceWindowMs {
			continue
		}
		dc, ok := fromDeviceStatus(ds)
		if !ok {
			continue
		}
		if best == nil || dc.Mills > best.Mills {
			best = &dc
		}
	}
	return best
}
