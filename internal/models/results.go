package models

// IobResult is an insulin-on-board estimate produced outside the engine
type IobResult struct {
	Iob      float64 `json:"iob"`
	Activity float64 `json:"activity"`
	Mills    int64   `json:"mills"`
	Source   string  `json:"source,omitempty"`
	Device   string  `json:"device,omitempty"`
}

// CobSourceCarePortal marks a COB estimate derived from treatments
const CobSourceCarePortal = "Care Portal"

// CobResult is the carbs-on-board estimate at an instant
type CobResult struct {
	Cob           float64    `json:"cob"`
	Source        string     `json:"source"`
	Device        string     `json:"device,omitempty"`
	Mills         int64      `json:"mills,omitempty"`
	DecayedBy     int64      `json:"decayedBy,omitempty"`
	IsDecaying    bool       `json:"isDecaying"`
	CarbsHr       float64    `json:"carbsHr,omitempty"`
	RawCarbImpact float64    `json:"rawCarbImpact,omitempty"`
	LastCarbs     *Treatment `json:"lastCarbs,omitempty"`
	Display       string     `json:"display"`
	DisplayLine   string     `json:"displayLine"`
	TreatmentCob  *CobResult `json:"treatmentCob,omitempty"`
}
