package apimetrics_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nikiz24/apimetrics"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCollector(t *testing.T, capacity int, clock *fakeClock) *apimetrics.Collector {
	t.Helper()
	cfg := apimetrics.DefaultConfig()
	cfg.MaxStoredMetrics = capacity
	if clock != nil {
		cfg.Clock = clock.Now
	}
	c, err := apimetrics.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func okRecord(service string, n int, d time.Duration, ts time.Time) apimetrics.Record {
	return apimetrics.Record{
		Service:    service,
		Operation:  fmt.Sprintf("op-%d", n),
		Method:     "GET",
		Path:       "/v1/resources",
		StatusCode: 200,
		Success:    true,
		Duration:   d,
		Timestamp:  ts,
	}
}

func failedRecord(service string, n int, status int, ts time.Time) apimetrics.Record {
	return apimetrics.Record{
		Service:      service,
		Operation:    fmt.Sprintf("op-%d", n),
		Method:       "POST",
		Path:         "/v1/resources",
		StatusCode:   status,
		Duration:     100 * time.Millisecond,
		ErrorMessage: "backend unavailable",
		Timestamp:    ts,
	}
}

func operations(records []apimetrics.Record) []string {
	ops := make([]string, 0, len(records))
	for _, r := range records {
		ops = append(ops, r.Operation)
	}
	return ops
}
