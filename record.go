package apimetrics

import (
	"fmt"
	"maps"
	"net/http"
	"time"
)

// Record describes one completed or failed API request.
//
// A Record is a value. Once handed to Collector.RecordRequest it is normalized
// and never changes again; records returned by queries are copies.
type Record struct {
	Service   string
	Operation string
	Method    string
	Path      string

	StatusCode int
	// Success is derived from StatusCode at ingest (2xx).
	Success  bool
	Duration time.Duration

	// Optional payload sizes in bytes
	RequestSize  *int64
	ResponseSize *int64

	// Set iff Success is false
	ErrorMessage string
	RetryCount   int

	// Start of the measured operation
	Timestamp time.Time
	Labels    map[string]string
}

// Seconds returns the duration in seconds.
func (r Record) Seconds() float64 {
	return r.Duration.Seconds()
}

// IsSuccessStatus reports whether code is a 2xx status.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code <= 299
}

// Int64 returns a pointer to v, for the optional size fields.
func Int64(v int64) *int64 {
	return &v
}

// normalize enforces the Record invariants. now is used when Timestamp is unset.
func (r Record) normalize(now time.Time) Record {
	if r.Duration < 0 {
		r.Duration = 0
	}
	if r.RetryCount < 0 {
		r.RetryCount = 0
	}
	r.RequestSize = clampSize(r.RequestSize)
	r.ResponseSize = clampSize(r.ResponseSize)

	r.Success = IsSuccessStatus(r.StatusCode)
	if r.Success {
		r.ErrorMessage = ""
	} else if r.ErrorMessage == "" {
		r.ErrorMessage = statusMessage(r.StatusCode)
	}

	if r.Timestamp.IsZero() {
		r.Timestamp = now.Add(-r.Duration)
	}
	r.Labels = cloneLabels(r.Labels)
	return r
}

// clone returns a copy that shares no mutable state with r.
func (r Record) clone() Record {
	r.Labels = cloneLabels(r.Labels)
	if r.RequestSize != nil {
		r.RequestSize = Int64(*r.RequestSize)
	}
	if r.ResponseSize != nil {
		r.ResponseSize = Int64(*r.ResponseSize)
	}
	return r
}

func clampSize(v *int64) *int64 {
	if v == nil {
		return nil
	}
	return Int64(max(*v, 0))
}

func cloneLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	return maps.Clone(labels)
}

func statusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("HTTP %d %s", code, text)
	}
	if code == 0 {
		return "request failed"
	}
	return fmt.Sprintf("request failed with status %d", code)
}
