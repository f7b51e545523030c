package metrics

import (
	"math"
	"slices"
)

// DurationSummary describes the spread of task durations in a run.
type DurationSummary struct {
	MeanMs   float64 `json:"mean_ms"`
	StdDevMs float64 `json:"stddev_ms"`
	MedianMs float64 `json:"median_ms"`
	MaxMs    int64   `json:"max_ms"`
}

// Summarize computes a DurationSummary. Returns the zero summary for empty input.
func Summarize(durationsMs []int64) DurationSummary {
	if len(durationsMs) == 0 {
		return DurationSummary{}
	}

	values := make([]float64, len(durationsMs))
	for i, d := range durationsMs {
		values[i] = float64(d)
	}

	return DurationSummary{
		MeanMs:   Mean(values),
		StdDevMs: StdDev(values),
		MedianMs: Median(values),
		MaxMs:    slices.Max(durationsMs),
	}
}

// Mean computes the arithmetic mean of a float64 slice.
// Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev computes the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Median returns the middle value, averaging the two middle values for even input.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
