// Package trend classifies glucose direction and computes reading-to-reading deltas
package trend

import (
	"fmt"

	"github.com/mrcode/nightscout-engine/internal/models"
)

// Direction is the closed set of trend arrows. DirectionUnknown is the explicit
// fallback for strings no device is known to send.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionNone
	DirectionTripleUp
	DirectionDoubleUp
	DirectionSingleUp
	DirectionFortyFiveUp
	DirectionFlat
	DirectionFortyFiveDown
	DirectionSingleDown
	DirectionDoubleDown
	DirectionTripleDown
	DirectionNotComputable
	DirectionRateOutOfRange
)

var directionNames = map[Direction]string{
	DirectionNone:           "NONE",
	DirectionTripleUp:       "TripleUp",
	DirectionDoubleUp:       "DoubleUp",
	DirectionSingleUp:       "SingleUp",
	DirectionFortyFiveUp:    "FortyFiveUp",
	DirectionFlat:           "Flat",
	DirectionFortyFiveDown:  "FortyFiveDown",
	DirectionSingleDown:     "SingleDown",
	DirectionDoubleDown:     "DoubleDown",
	DirectionTripleDown:     "TripleDown",
	DirectionNotComputable:  "NOT COMPUTABLE",
	DirectionRateOutOfRange: "RATE OUT OF RANGE",
}

var directionGlyphs = map[Direction]rune{
	DirectionNone:           '⇼',
	DirectionTripleUp:       '⤊',
	DirectionDoubleUp:       '⇈',
	DirectionSingleUp:       '↑',
	DirectionFortyFiveUp:    '↗',
	DirectionFlat:           '→',
	DirectionFortyFiveDown:  '↘',
	DirectionSingleDown:     '↓',
	DirectionDoubleDown:     '⇊',
	DirectionTripleDown:     '⤋',
	DirectionNotComputable:  '-',
	DirectionRateOutOfRange: '⇕',
}

// deviceReported lists the strings uploaders actually send. Triple arrows
// only come out of CalculateDirection.
var deviceReported = map[string]Direction{
	"NONE":              DirectionNone,
	"DoubleUp":          DirectionDoubleUp,
	"SingleUp":          DirectionSingleUp,
	"FortyFiveUp":       DirectionFortyFiveUp,
	"Flat":              DirectionFlat,
	"FortyFiveDown":     DirectionFortyFiveDown,
	"SingleDown":        DirectionSingleDown,
	"DoubleDown":        DirectionDoubleDown,
	"NOT COMPUTABLE":    DirectionNotComputable,
	"RATE OUT OF RANGE": DirectionRateOutOfRange,
}

// String returns the Nightscout name of the direction
func (d Direction) String() string {
	return directionNames[d]
}

// MarshalText encodes the direction by name
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Glyph returns the arrow character, or "" for DirectionUnknown
func (d Direction) Glyph() string {
	r, ok := directionGlyphs[d]
	if !ok {
		return ""
	}
	return string(r)
}

// rank orders directions from steepest fall to steepest rise.
// Non-slope directions rank zero.
func (d Direction) rank() int {
	switch d {
	case DirectionTripleDown:
		return -4
	case DirectionDoubleDown:
		return -3
	case DirectionSingleDown:
		return -2
	case DirectionFortyFiveDown:
		return -1
	case DirectionFortyFiveUp:
		return 1
	case DirectionSingleUp:
		return 2
	case DirectionDoubleUp:
		return 3
	case DirectionTripleUp:
		return 4
	default:
		return 0
	}
}

// ParseDirection maps a device direction string onto the enum
func ParseDirection(raw string) Direction {
	if d, ok := deviceReported[raw]; ok {
		return d
	}
	return DirectionUnknown
}

// DirectionInfo describes how a direction is displayed
type DirectionInfo struct {
	Value   Direction `json:"value"`
	Label   string    `json:"label"`
	Entity  string    `json:"entity"`
	Display *string   `json:"display"`
}

// GetDirectionInfo resolves an entry's raw direction. A nil entry or an
// unrecognised direction yields a nil Display rather than an error.
func GetDirectionInfo(entry *models.Entry) DirectionInfo {
	if entry == nil || entry.Direction == "" {
		return DirectionInfo{}
	}
	return InfoFor(ParseDirection(entry.Direction))
}

// InfoFor builds the display info of a direction value
func InfoFor(d Direction) DirectionInfo {
	glyph, ok := directionGlyphs[d]
	if !ok {
		return DirectionInfo{}
	}
	label := string(glyph)
	return DirectionInfo{
		Value:   d,
		Label:   label,
		Entity:  fmt.Sprintf("&#%d;", glyph),
		Display: &label,
	}
}

// CalculateDirection classifies the slope between two readings taken
// minutes apart. Thresholds are in mg/dL per minute.
func CalculateDirection(current, previous, minutes float64) Direction {
	if minutes <= 0 {
		return DirectionNotComputable
	}
	slope := (current - previous) / minutes

	switch {
	case slope >= 3.5:
		return DirectionTripleUp
	case slope >= 2:
		return DirectionDoubleUp
	case slope >= 1:
		return DirectionSingleUp
	case slope >= 1.0/3.0:
		return DirectionFortyFiveUp
	case slope > -1.0/3.0:
		return DirectionFlat
	case slope > -1:
		return DirectionFortyFiveDown
	case slope > -2:
		return DirectionSingleDown
	case slope > -3.5:
		return DirectionDoubleDown
	default:
		return DirectionTripleDown
	}
}
