package apimetrics

import (
	"slices"
	"time"
)

// AggregatedMetrics summarizes the records of one time window.
type AggregatedMetrics struct {
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int

	// Mean duration, truncated to whole nanoseconds
	AverageDuration time.Duration
	// Exact mean duration in seconds
	AverageSeconds float64
	P50            time.Duration
	P95            time.Duration
	P99            time.Duration
	MinDuration    time.Duration
	MaxDuration    time.Duration

	TotalRequestBytes  int64
	TotalResponseBytes int64

	// Requests per second over the whole window
	RequestsPerSecond float64
	// Failed / Total
	ErrorRate float64

	StatusCodes map[int]int
	Services    map[string]int

	WindowStart time.Time
	WindowEnd   time.Time
}

// Aggregate computes summary statistics over records for the window [start, end].
// Records are used as given; callers filter them to the window beforehand.
// It returns false when records is empty.
func Aggregate(records []Record, start, end time.Time) (AggregatedMetrics, bool) {
	n := len(records)
	if n == 0 {
		return AggregatedMetrics{}, false
	}

	agg := AggregatedMetrics{
		TotalRequests: n,
		StatusCodes:   make(map[int]int),
		Services:      make(map[string]int),
		WindowStart:   start,
		WindowEnd:     end,
	}

	durations := make([]time.Duration, 0, n)
	var total time.Duration
	for _, r := range records {
		if r.Success {
			agg.SuccessfulRequests++
		} else {
			agg.FailedRequests++
		}
		if r.RequestSize != nil {
			agg.TotalRequestBytes += *r.RequestSize
		}
		if r.ResponseSize != nil {
			agg.TotalResponseBytes += *r.ResponseSize
		}
		agg.StatusCodes[r.StatusCode]++
		agg.Services[r.Service]++

		durations = append(durations, r.Duration)
		total += r.Duration
	}

	slices.Sort(durations)
	agg.AverageDuration = total / time.Duration(n)
	agg.AverageSeconds = total.Seconds() / float64(n)
	agg.MinDuration = durations[0]
	agg.MaxDuration = durations[n-1]
	agg.P50 = percentile(durations, 0.50)
	agg.P95 = percentile(durations, 0.95)
	agg.P99 = percentile(durations, 0.99)

	if window := end.Sub(start).Seconds(); window > 0 {
		agg.RequestsPerSecond = float64(n) / window
	}
	agg.ErrorRate = float64(agg.FailedRequests) / float64(n)

	return agg, true
}

// percentile returns the nearest-rank value at fraction f of sorted, using the
// floor index sorted[min(floor(n*f), n-1)] without interpolation.
func percentile(sorted []time.Duration, f float64) time.Duration {
	idx := int(float64(len(sorted)) * f)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
