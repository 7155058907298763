package models

import "time"

// DeviceStatus is a snapshot uploaded by a closed-loop controller or pump
type DeviceStatus struct {
	ID        string         `json:"_id,omitempty"`
	Device    string         `json:"device"`
	Mills     int64          `json:"mills"`
	Date      int64          `json:"date,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"` // v1 API timestamp
	Loop      *LoopStatus    `json:"loop,omitempty"`
	OpenAPS   *OpenAPSStatus `json:"openaps,omitempty"`
}

// LoopStatus carries the Loop app's own estimates
type LoopStatus struct {
	Cob *LoopCob `json:"cob,omitempty"`
	Iob *LoopIob `json:"iob,omitempty"`
}

// LoopCob is Loop's carbs-on-board report
type LoopCob struct {
	Cob       *float64 `json:"cob"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// LoopIob is Loop's insulin-on-board report
type LoopIob struct {
	Iob       *float64 `json:"iob"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// OpenAPSStatus carries the oref determinations
type OpenAPSStatus struct {
	Suggested *OpenAPSDetermination `json:"suggested,omitempty"`
	Enacted   *OpenAPSDetermination `json:"enacted,omitempty"`
	Iob       *OpenAPSIob           `json:"iob,omitempty"`
}

// OpenAPSDetermination is an oref suggestion or enactment
type OpenAPSDetermination struct {
	COB       *float64 `json:"COB,omitempty"`
	IOB       *float64 `json:"IOB,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// OpenAPSIob is oref's IOB block
type OpenAPSIob struct {
	Iob      *float64 `json:"iob"`
	Activity *float64 `json:"activity,omitempty"`
}

// Normalize fills Mills from Date or CreatedAt when needed
func (d *DeviceStatus) Normalize() {
	if d.Mills == 0 && d.Date > 0 {
		d.Mills = d.Date
	}
	if d.Mills == 0 && d.CreatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
			d.Mills = parsed.UnixMilli()
		}
	}
}
