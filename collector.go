package apimetrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Collector is the single owner of the metrics store and the observer
// registry. All methods are safe for concurrent use.
type Collector struct {
	mu       sync.RWMutex
	store    *ringStore
	registry observerRegistry
	recorded uint64

	console        consoleLogger
	consoleEnabled atomic.Bool
	level          zap.AtomicLevel
	now            func() time.Time

	observerPanics atomic.Uint64
}

// Stats describes the collector state at one instant.
type Stats struct {
	Stored         int
	Capacity       int
	Recorded       uint64
	Evicted        uint64
	Observers      int
	ObserverPanics uint64
}

// New creates a collector. A zero MaxStoredMetrics selects DefaultMaxStoredMetrics.
func New(cfg Config) (*Collector, error) {
	capacity := cfg.MaxStoredMetrics
	if capacity == 0 {
		capacity = DefaultMaxStoredMetrics
	}
	if capacity < 0 {
		return nil, fmt.Errorf("max stored metrics %d: %w", capacity, ErrInvalidCapacity)
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	c := &Collector{
		store:   newRingStore(capacity),
		console: newConsoleLogger(cfg),
		level:   zap.NewAtomicLevelAt(cfg.LogLevel.zapLevel()),
		now:     now,
	}
	c.consoleEnabled.Store(cfg.EnableConsoleLogging)
	return c, nil
}

// Close flushes buffered console output. The collector remains usable.
func (c *Collector) Close() error {
	return c.console.close()
}

// RecordRequest stores r, evicting the oldest record when the store is full,
// and notifies every live observer once r is visible to queries.
func (c *Collector) RecordRequest(r Record) {
	r = r.normalize(c.now())

	c.mu.Lock()
	c.store.push(r)
	c.recorded++
	subs := c.registry.live()
	c.mu.Unlock()

	if r.Success {
		if ce := c.check(zapcore.InfoLevel, "request completed"); ce != nil {
			ce.Write(recordFields(r)...)
		}
	} else if ce := c.check(zapcore.ErrorLevel, "request failed"); ce != nil {
		ce.Write(recordFields(r)...)
	}

	for _, s := range subs {
		c.invoke(s, "completed", func(o Observer) { o.OnRequestCompleted(r.clone()) })
	}
}

// NotifyRequestStarted tells observers that an operation began.
func (c *Collector) NotifyRequestStarted(service, operation, path string) {
	e := RequestStarted{
		Service:   service,
		Operation: operation,
		Path:      path,
		Time:      c.now(),
	}
	if ce := c.check(zapcore.DebugLevel, "request started"); ce != nil {
		ce.Write(zap.String("service", service), zap.String("operation", operation), zap.String("path", path))
	}
	for _, s := range c.liveSubscriptions() {
		c.invoke(s, "started", func(o Observer) { o.OnRequestStarted(e) })
	}
}

// NotifyRetry tells observers that attempt is about to run after delay.
func (c *Collector) NotifyRetry(service, operation string, attempt int, delay time.Duration, reason error) {
	e := RetryEvent{
		Service:   service,
		Operation: operation,
		Attempt:   attempt,
		Delay:     delay,
		Time:      c.now(),
	}
	if reason != nil {
		e.Reason = reason.Error()
	}
	if ce := c.check(zapcore.WarnLevel, "retrying request"); ce != nil {
		ce.Write(
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("reason", e.Reason),
		)
	}
	for _, s := range c.liveSubscriptions() {
		c.invoke(s, "retry", func(o Observer) { o.OnRetry(e) })
	}
}

// NotifyAuthRefresh tells observers that credentials for service were
// refreshed. A non-nil err marks the refresh as failed.
func (c *Collector) NotifyAuthRefresh(service string, d time.Duration, err error) {
	e := AuthRefreshEvent{
		Service:  service,
		Success:  err == nil,
		Duration: d,
		Time:     c.now(),
	}
	if err != nil {
		e.Reason = err.Error()
		if ce := c.check(zapcore.ErrorLevel, "credential refresh failed"); ce != nil {
			ce.Write(zap.String("service", service), zap.Duration("duration", d), zap.Error(err))
		}
	} else if ce := c.check(zapcore.InfoLevel, "credentials refreshed"); ce != nil {
		ce.Write(zap.String("service", service), zap.Duration("duration", d))
	}
	for _, s := range c.liveSubscriptions() {
		c.invoke(s, "auth_refresh", func(o Observer) { o.OnAuthRefresh(e) })
	}
}

// AddObserver registers o and returns its subscription. The collector does
// not keep the subscription alive: keep a reference to it for as long as o
// should receive notifications. A nil observer is ignored.
func (c *Collector) AddObserver(o Observer) *Subscription {
	if o == nil {
		return nil
	}
	s := newSubscription(o, c)

	c.mu.Lock()
	c.registry.add(s)
	c.mu.Unlock()

	if ce := c.check(zapcore.DebugLevel, "observer added"); ce != nil {
		ce.Write(zap.String("subscription", s.id))
	}
	return s
}

// RemoveObserver unregisters s and prunes collected subscriptions.
func (c *Collector) RemoveObserver(s *Subscription) {
	if s == nil {
		return
	}

	c.mu.Lock()
	removed := c.registry.remove(s)
	c.mu.Unlock()

	if !removed {
		return
	}
	if ce := c.check(zapcore.DebugLevel, "observer removed"); ce != nil {
		ce.Write(zap.String("subscription", s.id))
	}
}

// ObserverCount returns the number of live registrations.
func (c *Collector) ObserverCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.registry.live())
}

// GetAggregatedMetrics summarizes the records whose timestamp lies within
// the last period. It returns false when there are none. WindowStart and
// WindowEnd follow the collector clock, so only the other fields repeat
// across calls with no writes in between.
func (c *Collector) GetAggregatedMetrics(period time.Duration) (AggregatedMetrics, bool) {
	return c.aggregate("", period)
}

// GetServiceAggregatedMetrics is GetAggregatedMetrics restricted to one service.
func (c *Collector) GetServiceAggregatedMetrics(service string, period time.Duration) (AggregatedMetrics, bool) {
	if service == "" {
		return AggregatedMetrics{}, false
	}
	return c.aggregate(service, period)
}

func (c *Collector) aggregate(service string, period time.Duration) (AggregatedMetrics, bool) {
	end := c.now()
	start := end.Add(-period)

	var window []Record
	c.mu.RLock()
	c.store.each(func(r Record) bool {
		if !r.Timestamp.Before(start) && (service == "" || r.Service == service) {
			window = append(window, r)
		}
		return true
	})
	c.mu.RUnlock()

	return Aggregate(window, start, end)
}

// GetMetrics returns up to limit records of service, newest first. An empty
// service matches every record.
func (c *Collector) GetMetrics(service string, limit int) []Record {
	return c.recent(limit, func(r Record) bool {
		return service == "" || r.Service == service
	})
}

// GetRecentErrors returns up to limit failed records, newest first.
func (c *Collector) GetRecentErrors(limit int) []Record {
	return c.recent(limit, func(r Record) bool {
		return !r.Success
	})
}

func (c *Collector) recent(limit int, match func(Record) bool) []Record {
	if limit <= 0 {
		return []Record{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Record, 0, min(limit, c.store.size()))
	c.store.eachReverse(func(r Record) bool {
		if match(r) {
			out = append(out, r.clone())
		}
		return len(out) < limit
	})
	return out
}

// Clear removes every stored record. Observers stay registered.
func (c *Collector) Clear() {
	c.mu.Lock()
	c.store.reset()
	c.mu.Unlock()

	if ce := c.check(zapcore.DebugLevel, "metrics cleared"); ce != nil {
		ce.Write()
	}
}

// SetMaxStoredMetrics changes the store capacity, evicting the oldest
// records at once when the store holds more than n.
func (c *Collector) SetMaxStoredMetrics(n int) error {
	if n < 1 {
		return fmt.Errorf("max stored metrics %d: %w", n, ErrInvalidCapacity)
	}

	c.mu.Lock()
	before := c.store.size()
	c.store.resize(n)
	evicted := before - c.store.size()
	c.mu.Unlock()

	if ce := c.check(zapcore.DebugLevel, "store capacity changed"); ce != nil {
		ce.Write(zap.Int("capacity", n), zap.Int("evicted", evicted))
	}
	return nil
}

// MaxStoredMetrics returns the current store capacity.
func (c *Collector) MaxStoredMetrics() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.capacity
}

// SetConsoleLogging turns console output on or off.
func (c *Collector) SetConsoleLogging(enabled bool) {
	c.consoleEnabled.Store(enabled)
}

// SetLogLevel changes the minimum level of console output.
func (c *Collector) SetLogLevel(l LogLevel) {
	c.level.SetLevel(l.zapLevel())
}

// Stats returns a snapshot of the collector counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Stored:         c.store.size(),
		Capacity:       c.store.capacity,
		Recorded:       c.recorded,
		Evicted:        c.store.evicted,
		Observers:      len(c.registry.live()),
		ObserverPanics: c.observerPanics.Load(),
	}
}

func (c *Collector) liveSubscriptions() []*Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.live()
}

// check returns a checked entry when console logging is on and lvl passes
// the configured level, nil otherwise.
func (c *Collector) check(lvl zapcore.Level, msg string) *zapcore.CheckedEntry {
	if !c.consoleEnabled.Load() || !c.level.Enabled(lvl) {
		return nil
	}
	return c.console.logger.Check(lvl, msg)
}

// invoke calls fn with the subscription's observer. A panicking observer is
// counted and logged; it cannot affect the store or the other observers.
func (c *Collector) invoke(s *Subscription, event string, fn func(Observer)) {
	defer func() {
		if p := recover(); p != nil {
			c.observerPanics.Add(1)
			if ce := c.check(zapcore.ErrorLevel, "observer panicked"); ce != nil {
				ce.Write(zap.String("subscription", s.id), zap.String("event", event), zap.Any("panic", p))
			}
		}
	}()
	fn(s.observer)
}
