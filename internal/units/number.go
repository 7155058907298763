package units

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric value that may have failed to parse.
// Nightscout stores many numeric fields as strings, so the zero value is "unparseable".
type Number struct {
	Value float64
	Valid bool
}

// NumberOf wraps a float as a valid Number
func NumberOf(v float64) Number {
	return Number{Value: v, Valid: true}
}

// ParseNumber parses a decimal string; anything unparseable yields an invalid Number
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}
	}
	return NumberOf(v)
}

// Float returns the value, or 0 when invalid
func (n Number) Float() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// UnmarshalJSON accepts numbers, numeric strings and null
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = ParseNumber(s)
		return nil
	}
	if data[0] == 't' || data[0] == 'f' || data[0] == '{' || data[0] == '[' {
		*n = Number{}
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = Number{}
		return nil
	}
	*n = NumberOf(v)
	return nil
}

// MarshalJSON writes null for invalid values
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid || !isFinite(n.Value) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// ToRoundedStr rounds symmetrically around zero to the given digits and renders the
// shortest decimal form. Zero, NaN, Inf and unparseable inputs render as "0".
func ToRoundedStr(n Number, digits int) string {
	if !n.Valid || n.Value == 0 || !isFinite(n.Value) {
		return "0"
	}
	mult := math.Pow(10, float64(digits))
	sign := 1.0
	if n.Value < 0 {
		sign = -1
	}
	fixed := sign * JSRound(math.Abs(n.Value)*mult) / mult
	if !isFinite(fixed) {
		return "0"
	}
	return formatShortest(fixed)
}

// ToFixed renders two decimals, normalising negative zero
func ToFixed(n Number) string {
	if !n.Valid || n.Value == 0 || !isFinite(n.Value) {
		return "0"
	}
	fixed := strconv.FormatFloat(n.Value, 'f', 2, 64)
	if fixed == "-0.00" {
		return "0.00"
	}
	return fixed
}
