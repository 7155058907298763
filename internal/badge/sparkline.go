package badge

import "strings"

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders glucose values as one line of block characters,
// oldest first. Fewer than two values yield "".
func Sparkline(values []float64) string {
	if len(values) < 2 {
		return ""
	}

	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
	}
	rangeVal := maxVal - minVal
	if rangeVal == 0 {
		rangeVal = 1
	}

	var sb strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range values {
		idx := int((v - minVal) / rangeVal * float64(top))
		sb.WriteRune(sparkBlocks[min(max(idx, 0), top)])
	}
	return sb.String()
}
