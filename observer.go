package apimetrics

import "time"

// Observer receives collector notifications. Callbacks run synchronously on
// the producer's goroutine after the collector lock is released, so they must
// be fast. Embed NopObserver to implement only some of them.
type Observer interface {
	OnRequestStarted(RequestStarted)
	OnRequestCompleted(Record)
	OnRetry(RetryEvent)
	OnAuthRefresh(AuthRefreshEvent)
}

// RequestStarted is sent when a measured operation begins.
type RequestStarted struct {
	Service   string
	Operation string
	Path      string
	Time      time.Time
}

// RetryEvent is sent before an operation is attempted again.
type RetryEvent struct {
	Service   string
	Operation string
	// Attempt is the number of the attempt about to run, starting at 2.
	Attempt int
	Delay   time.Duration
	Reason  string
	Time    time.Time
}

// AuthRefreshEvent is sent after credentials were refreshed, or failed to.
type AuthRefreshEvent struct {
	Service  string
	Success  bool
	Reason   string
	Duration time.Duration
	Time     time.Time
}

// NopObserver implements Observer with no-op methods.
type NopObserver struct{}

func (NopObserver) OnRequestStarted(RequestStarted) {}
func (NopObserver) OnRequestCompleted(Record)       {}
func (NopObserver) OnRetry(RetryEvent)              {}
func (NopObserver) OnAuthRefresh(AuthRefreshEvent)  {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Started     func(RequestStarted)
	Completed   func(Record)
	Retry       func(RetryEvent)
	AuthRefresh func(AuthRefreshEvent)
}

func (f ObserverFuncs) OnRequestStarted(e RequestStarted) {
	if f.Started != nil {
		f.Started(e)
	}
}

func (f ObserverFuncs) OnRequestCompleted(r Record) {
	if f.Completed != nil {
		f.Completed(r)
	}
}

func (f ObserverFuncs) OnRetry(e RetryEvent) {
	if f.Retry != nil {
		f.Retry(e)
	}
}

func (f ObserverFuncs) OnAuthRefresh(e AuthRefreshEvent) {
	if f.AuthRefresh != nil {
		f.AuthRefresh(e)
	}
}
