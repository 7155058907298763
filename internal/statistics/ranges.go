package statistics

import (
	"math"
	"sort"
	"time"

	"github.com/mrcode/nightscout-engine/internal/models"
)

// readingMinutes is the nominal CGM sampling interval
const readingMinutes = 5

// DefaultBucketSize is the histogram width in mg/dL
const DefaultBucketSize = 10

// Thresholds are the band boundaries in mg/dL
type Thresholds struct {
	SevereLow  float64 `yaml:"severeLow" json:"severeLow"`
	Low        float64 `yaml:"low" json:"low"`
	High       float64 `yaml:"high" json:"high"`
	SevereHigh float64 `yaml:"severeHigh" json:"severeHigh"`
	TightLow   float64 `yaml:"tightLow" json:"tightLow"`
	TightHigh  float64 `yaml:"tightHigh" json:"tightHigh"`
}

// DefaultThresholds returns the consensus CGM bands
func DefaultThresholds() Thresholds {
	return Thresholds{
		SevereLow:  54,
		Low:        70,
		High:       180,
		SevereHigh: 250,
		TightLow:   70,
		TightHigh:  140,
	}
}

// RangeStat is the share of readings in one band
type RangeStat struct {
	Count           int     `json:"count"`
	Percentage      float64 `json:"percentage"`
	DurationMinutes float64 `json:"durationMinutes"`
}

// TimeInRange splits readings into glucose bands
type TimeInRange struct {
	Total      int       `json:"total"`
	SevereLow  RangeStat `json:"severeLow"`
	Low        RangeStat `json:"low"`
	Target     RangeStat `json:"target"`
	High       RangeStat `json:"high"`
	SevereHigh RangeStat `json:"severeHigh"`
	Tight      RangeStat `json:"tight"`
}

// CalculateTimeInRange buckets valid readings by band. Every reading counts
// for five minutes. Empty input yields a zero result.
func CalculateTimeInRange(entries []models.Entry, th Thresholds) TimeInRange {
	values := ExtractGlucoseValues(entries)
	tir := TimeInRange{Total: len(values)}
	if len(values) == 0 {
		return tir
	}

	for _, v := range values {
		switch {
		case v < th.SevereLow:
			tir.SevereLow.Count++
		case v < th.Low:
			tir.Low.Count++
		case v <= th.High:
			tir.Target.Count++
		case v <= th.SevereHigh:
			tir.High.Count++
		default:
			tir.SevereHigh.Count++
		}
		if v >= th.TightLow && v <= th.TightHigh {
			tir.Tight.Count++
		}
	}

	n := float64(len(values))
	for _, rs := range []*RangeStat{&tir.SevereLow, &tir.Low, &tir.Target, &tir.High, &tir.SevereHigh, &tir.Tight} {
		rs.Percentage = float64(rs.Count) / n * 100
		rs.DurationMinutes = float64(rs.Count * readingMinutes)
	}
	return tir
}

// DistributionBucket is one histogram bar covering [Min, Max)
type DistributionBucket struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CalculateGlucoseDistribution builds an ascending histogram. A non-positive
// bucket size falls back to DefaultBucketSize.
func CalculateGlucoseDistribution(values []float64, bucketSize float64) []DistributionBucket {
	if len(values) == 0 {
		return []DistributionBucket{}
	}
	if !(bucketSize > 0) {
		bucketSize = DefaultBucketSize
	}

	counts := make(map[float64]int)
	for _, v := range values {
		counts[math.Floor(v/bucketSize)*bucketSize]++
	}

	buckets := make([]DistributionBucket, 0, len(counts))
	for start, c := range counts {
		buckets = append(buckets, DistributionBucket{
			Min:        start,
			Max:        start + bucketSize,
			Count:      c,
			Percentage: float64(c) / float64(len(values)) * 100,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Min < buckets[j].Min
	})
	return buckets
}

// HourlyStats summarises the readings taken in one hour of the day
type HourlyStats struct {
	Hour              int     `json:"hour"`
	Count             int     `json:"count"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	StandardDeviation float64 `json:"standardDeviation"`
}

// CalculateAveragedStats groups readings by local hour of day. The result
// always holds 24 buckets; a nil location means UTC.
func CalculateAveragedStats(entries []models.Entry, loc *time.Location) []HourlyStats {
	if loc == nil {
		loc = time.UTC
	}

	byHour := make([][]float64, 24)
	for _, e := range entries {
		v := float64(e.Value())
		if !(v > minValidGlucose && v < maxValidGlucose) {
			continue
		}
		h := e.Time().In(loc).Hour()
		byHour[h] = append(byHour[h], v)
	}

	hours := make([]HourlyStats, 24)
	for h := range hours {
		basic := CalculateBasicStats(byHour[h])
		hours[h] = HourlyStats{
			Hour:              h,
			Count:             basic.Count,
			Mean:              basic.Mean,
			Median:            basic.Median,
			Min:               basic.Min,
			Max:               basic.Max,
			StandardDeviation: basic.StandardDeviation,
		}
	}
	return hours
}
