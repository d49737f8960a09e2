package apimetrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// baseObserver carries what the built-in observers share
type baseObserver struct {
	name   string
	logger *zap.Logger
}

// Name returns the observer name used in log output
func (b *baseObserver) Name() string {
	return b.name
}

func newBaseObserver(name string, logger *zap.Logger) baseObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseObserver{
		name:   name,
		logger: logger.Named(name),
	}
}

// ServiceCounters is an Observer keeping lifetime per-service counts. Unlike
// the store it never evicts, so its totals cover every notification since
// it was registered.
type ServiceCounters struct {
	baseObserver
	counters map[string]*serviceCounter
	mutex    sync.RWMutex
}

type serviceCounter struct {
	started       atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	retries       atomic.Int64
	authRefreshes atomic.Int64
	authFailures  atomic.Int64
}

// ServiceCount is a point-in-time copy of the counters of one service.
type ServiceCount struct {
	Started       int64
	Completed     int64
	Failed        int64
	Retries       int64
	AuthRefreshes int64
	AuthFailures  int64
}

// NewServiceCounters creates an empty ServiceCounters. logger may be nil.
func NewServiceCounters(logger *zap.Logger) *ServiceCounters {
	return &ServiceCounters{
		baseObserver: newBaseObserver("service_counters", logger),
		counters:     make(map[string]*serviceCounter),
	}
}

func (s *ServiceCounters) counter(service string) *serviceCounter {
	s.mutex.RLock()
	c, exists := s.counters[service]
	s.mutex.RUnlock()

	if !exists {
		s.mutex.Lock()
		if c, exists = s.counters[service]; !exists {
			c = &serviceCounter{}
			s.counters[service] = c
			s.logger.Debug("tracking service", zap.String("service", service))
		}
		s.mutex.Unlock()
	}
	return c
}

// OnRequestStarted implements Observer
func (s *ServiceCounters) OnRequestStarted(e RequestStarted) {
	s.counter(e.Service).started.Add(1)
}

// OnRequestCompleted implements Observer
func (s *ServiceCounters) OnRequestCompleted(r Record) {
	c := s.counter(r.Service)
	c.completed.Add(1)
	if !r.Success {
		c.failed.Add(1)
	}
}

// OnRetry implements Observer
func (s *ServiceCounters) OnRetry(e RetryEvent) {
	s.counter(e.Service).retries.Add(1)
}

// OnAuthRefresh implements Observer
func (s *ServiceCounters) OnAuthRefresh(e AuthRefreshEvent) {
	c := s.counter(e.Service)
	c.authRefreshes.Add(1)
	if !e.Success {
		c.authFailures.Add(1)
	}
}

// Get returns the counts of service, all zero when it was never seen.
func (s *ServiceCounters) Get(service string) ServiceCount {
	s.mutex.RLock()
	c, exists := s.counters[service]
	s.mutex.RUnlock()

	if !exists {
		return ServiceCount{}
	}
	return c.load()
}

// Services returns the names of every service seen, sorted.
func (s *ServiceCounters) Services() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.counters))
	for name := range s.counters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Reset forgets every service.
func (s *ServiceCounters) Reset() {
	s.mutex.Lock()
	n := len(s.counters)
	s.counters = make(map[string]*serviceCounter)
	s.mutex.Unlock()

	s.logger.Debug("counters reset", zap.Int("services", n))
}

func (c *serviceCounter) load() ServiceCount {
	return ServiceCount{
		Started:       c.started.Load(),
		Completed:     c.completed.Load(),
		Failed:        c.failed.Load(),
		Retries:       c.retries.Load(),
		AuthRefreshes: c.authRefreshes.Load(),
		AuthFailures:  c.authFailures.Load(),
	}
}

// DefaultLatencyBuckets are the upper bounds used by NewLatencyHistogram
// when none are given.
var DefaultLatencyBuckets = []time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// LatencyHistogram is an Observer bucketing completed request durations per
// service. Buckets are fixed at construction.
type LatencyHistogram struct {
	NopObserver
	baseObserver
	buckets    []time.Duration
	histograms map[string]*histogram
	mutex      sync.RWMutex
}

type histogram struct {
	counts []atomic.Int64 // one per bucket plus +Inf
	sum    atomic.Int64   // nanoseconds
	count  atomic.Int64
}

// HistogramSnapshot is a cumulative view of one service's histogram.
type HistogramSnapshot struct {
	Buckets []Bucket
	Count   int64
	Sum     time.Duration
}

// Bucket counts the observations at or below UpperBound. The last bucket of
// a snapshot has Inf set and counts every observation.
type Bucket struct {
	UpperBound time.Duration
	Inf        bool
	Count      int64
}

// NewLatencyHistogram creates a histogram with the given upper bounds,
// DefaultLatencyBuckets when empty. Bounds are sorted and deduplicated.
// logger may be nil.
func NewLatencyHistogram(logger *zap.Logger, buckets ...time.Duration) *LatencyHistogram {
	if len(buckets) == 0 {
		buckets = DefaultLatencyBuckets
	}
	bounds := slices.Clone(buckets)
	slices.Sort(bounds)
	bounds = slices.Compact(bounds)

	return &LatencyHistogram{
		baseObserver: newBaseObserver("latency_histogram", logger),
		buckets:      bounds,
		histograms:   make(map[string]*histogram),
	}
}

// OnRequestCompleted implements Observer
func (h *LatencyHistogram) OnRequestCompleted(r Record) {
	h.mutex.RLock()
	hist, exists := h.histograms[r.Service]
	h.mutex.RUnlock()

	if !exists {
		h.mutex.Lock()
		if hist, exists = h.histograms[r.Service]; !exists {
			hist = &histogram{counts: make([]atomic.Int64, len(h.buckets)+1)}
			h.histograms[r.Service] = hist
			h.logger.Debug("tracking service", zap.String("service", r.Service), zap.Int("buckets", len(h.buckets)+1))
		}
		h.mutex.Unlock()
	}

	// Find appropriate bucket
	i := 0
	for i < len(h.buckets) && r.Duration > h.buckets[i] {
		i++
	}
	hist.counts[i].Add(1)
	hist.sum.Add(int64(r.Duration))
	hist.count.Add(1)
}

// Snapshot returns the cumulative histogram of service. ok is false when no
// request of service completed yet.
func (h *LatencyHistogram) Snapshot(service string) (HistogramSnapshot, bool) {
	h.mutex.RLock()
	hist, exists := h.histograms[service]
	h.mutex.RUnlock()

	if !exists {
		return HistogramSnapshot{}, false
	}

	snap := HistogramSnapshot{
		Buckets: make([]Bucket, 0, len(h.buckets)+1),
		Count:   hist.count.Load(),
		Sum:     time.Duration(hist.sum.Load()),
	}
	var cumulative int64
	for i := range hist.counts {
		cumulative += hist.counts[i].Load()
		b := Bucket{Count: cumulative}
		if i < len(h.buckets) {
			b.UpperBound = h.buckets[i]
		} else {
			b.Inf = true
		}
		snap.Buckets = append(snap.Buckets, b)
	}
	return snap, true
}
