package apimetrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// StatusClientClosedRequest is recorded for operations whose context was cancelled.
const StatusClientClosedRequest = 499

// Request identifies the operation wrapped by Measure.
type Request struct {
	Service     string
	Operation   string
	Method      string
	Path        string
	RequestSize *int64
	Labels      map[string]string
}

// StatusCoder is implemented by results and errors that carry an HTTP-like status.
type StatusCoder interface {
	StatusCode() int
}

// ResponseSizer is implemented by results that know their payload size.
type ResponseSizer interface {
	ResponseSize() int64
}

// StatusCodeOf classifies err: 408 for an expired deadline, 499 for a
// cancelled context, the code of a StatusCoder in the chain, 0 otherwise.
// A nil error maps to 200.
func StatusCodeOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// Measure runs op and hands exactly one Record describing it to c, whether op
// succeeds, fails, panics or calls runtime.Goexit. op's result and error are
// returned unchanged, a panic is re-raised after recording and a Goexit keeps
// unwinding.
func Measure[T any](ctx context.Context, c *Collector, req Request, op func(context.Context) (T, error)) (T, error) {
	retries := 0
	return measure(c, req, &retries, func() (T, error) {
		return op(ctx)
	})
}

// MeasureWithRetry is Measure with retries. Failed attempts accepted by
// policy are retried after an exponential backoff, each retry notifying
// observers. A single Record covers all attempts, with RetryCount set to the
// number of retries. The error of the last attempt is returned; when ctx ends
// during a backoff wait the returned error wraps both ctx.Err() and it.
func MeasureWithRetry[T any](ctx context.Context, c *Collector, req Request, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	retries := 0
	b := policy.backOff()
	return measure(c, req, &retries, func() (T, error) {
		for attempt := 1; ; attempt++ {
			result, err := op(ctx)
			if err == nil || ctx.Err() != nil || !policy.retryable(err) {
				return result, err
			}

			delay := b.NextBackOff()
			if delay == backoff.Stop {
				return result, err
			}
			c.NotifyRetry(req.Service, req.Operation, attempt+1, delay, err)
			retries++

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, fmt.Errorf("retry aborted: %w: %w", ctx.Err(), err)
			case <-timer.C:
			}
		}
	})
}

// MeasureAuthRefresh times a credential refresh for service and notifies
// observers of its outcome. refresh's error is returned unchanged.
func MeasureAuthRefresh(ctx context.Context, c *Collector, service string, refresh func(context.Context) error) error {
	started := time.Now()
	err := refresh(ctx)
	c.NotifyAuthRefresh(service, time.Since(started), err)
	return err
}

// Call pairs a Request with the operation it describes.
type Call[T any] struct {
	Request Request
	Op      func(context.Context) (T, error)
}

// MeasureAll runs calls concurrently, each measured as by Measure. The first
// failure cancels the context passed to the remaining calls, which are then
// recorded as cancelled. Results are returned in call order.
func MeasureAll[T any](ctx context.Context, c *Collector, calls []Call[T]) ([]T, error) {
	results := make([]T, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			v, err := Measure(gctx, c, call.Request, call.Op)
			results[i] = v
			return err
		})
	}
	return results, g.Wait()
}

func measure[T any](c *Collector, req Request, retries *int, run func() (T, error)) (result T, err error) {
	c.NotifyRequestStarted(req.Service, req.Operation, req.Path)
	ts := c.now()
	started := time.Now()

	completed := false
	defer func() {
		rec := Record{
			Service:     req.Service,
			Operation:   req.Operation,
			Method:      req.Method,
			Path:        req.Path,
			Duration:    time.Since(started),
			RequestSize: req.RequestSize,
			RetryCount:  *retries,
			Timestamp:   ts,
			Labels:      req.Labels,
		}

		if !completed {
			// recover returns nil only when op called runtime.Goexit
			p := recover()
			if p == nil {
				rec.ErrorMessage = "goroutine exited"
				c.RecordRequest(rec)
				return
			}
			rec.ErrorMessage = fmt.Sprintf("panic: %v", p)
			c.RecordRequest(rec)
			panic(p)
		}

		if err != nil {
			rec.StatusCode = StatusCodeOf(err)
			if IsSuccessStatus(rec.StatusCode) {
				rec.StatusCode = 0
			}
			rec.ErrorMessage = err.Error()
		} else {
			rec.StatusCode = http.StatusOK
			if sc, ok := any(result).(StatusCoder); ok {
				rec.StatusCode = sc.StatusCode()
			}
			if rs, ok := any(result).(ResponseSizer); ok {
				rec.ResponseSize = Int64(rs.ResponseSize())
			}
		}
		c.RecordRequest(rec)
	}()

	result, err = run()
	completed = true
	return result, err
}

// RetryPolicy configures MeasureWithRetry. Zero fields take the values of
// DefaultRetryPolicy.
type RetryPolicy struct {
	// Total attempts, the first one included
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Randomization factor in [0, 1]; negative disables jitter
	Jitter float64
	// Retryable reports whether a failed attempt may be retried. When nil,
	// every error except context cancellation is retried.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns three attempts with a 500ms initial backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
		Jitter:          0.5,
	}
}

func (p RetryPolicy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p RetryPolicy) backOff() backoff.BackOff {
	def := DefaultRetryPolicy()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = pickDuration(p.InitialInterval, def.InitialInterval)
	b.MaxInterval = pickDuration(p.MaxInterval, def.MaxInterval)
	b.Multiplier = def.Multiplier
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	switch {
	case p.Jitter < 0:
		b.RandomizationFactor = 0
	case p.Jitter == 0:
		b.RandomizationFactor = def.Jitter
	default:
		b.RandomizationFactor = min(p.Jitter, 1)
	}
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = def.MaxAttempts
	}
	return backoff.WithMaxRetries(b, uint64(max(attempts, 1)-1))
}

func pickDuration(v time.Duration, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
