package apimetrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Global collector instance
var (
	defaultCollector atomic.Pointer[Collector]
	initOnce         sync.Once
)

// Default returns the process-wide collector. On first use it is built from
// LoadConfig, falling back to DefaultConfig when the environment is invalid.
// Prefer passing an explicit *Collector; Default exists for call sites where
// threading one through is impractical.
func Default() *Collector {
	initOnce.Do(func() {
		if defaultCollector.Load() != nil {
			return
		}
		cfg, err := LoadConfig()
		if err != nil {
			cfg = DefaultConfig()
		}
		c, err := New(cfg)
		if err != nil {
			c, _ = New(DefaultConfig())
		}
		defaultCollector.CompareAndSwap(nil, c)
	})
	return defaultCollector.Load()
}

// SetDefault replaces the process-wide collector and returns the previous
// one, which may be nil. Subscriptions made on the previous collector stay there.
func SetDefault(c *Collector) *Collector {
	if c == nil {
		panic("apimetrics: SetDefault called with nil collector")
	}
	return defaultCollector.Swap(c)
}

// RecordRequest records r on the default collector
func RecordRequest(r Record) {
	Default().RecordRequest(r)
}

// NotifyRequestStarted notifies observers of the default collector
func NotifyRequestStarted(service, operation, path string) {
	Default().NotifyRequestStarted(service, operation, path)
}

// NotifyRetry notifies observers of the default collector
func NotifyRetry(service, operation string, attempt int, delay time.Duration, reason error) {
	Default().NotifyRetry(service, operation, attempt, delay, reason)
}

// NotifyAuthRefresh notifies observers of the default collector
func NotifyAuthRefresh(service string, d time.Duration, err error) {
	Default().NotifyAuthRefresh(service, d, err)
}

// AddObserver registers o on the default collector
func AddObserver(o Observer) *Subscription {
	return Default().AddObserver(o)
}

// GetAggregatedMetrics queries the default collector
func GetAggregatedMetrics(period time.Duration) (AggregatedMetrics, bool) {
	return Default().GetAggregatedMetrics(period)
}

// GetMetrics queries the default collector
func GetMetrics(service string, limit int) []Record {
	return Default().GetMetrics(service, limit)
}

// GetRecentErrors queries the default collector
func GetRecentErrors(limit int) []Record {
	return Default().GetRecentErrors(limit)
}
