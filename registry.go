package apimetrics

import (
	"slices"
	"weak"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Subscription is the handle returned by Collector.AddObserver.
//
// The collector only holds a weak reference to it: the observer stays
// registered while the caller keeps the Subscription reachable, and is
// pruned once it has been garbage collected. Cancel removes it eagerly.
type Subscription struct {
	id        string
	observer  Observer
	collector *Collector
}

// ID returns the registration identifier used in log output.
func (s *Subscription) ID() string {
	return s.id
}

// Cancel unregisters the observer. It is safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.collector == nil {
		return
	}
	s.collector.RemoveObserver(s)
}

func newSubscription(o Observer, c *Collector) *Subscription {
	return &Subscription{
		id:        gonanoid.Must(10),
		observer:  o,
		collector: c,
	}
}

// observerRegistry holds weak references to subscriptions in registration
// order. It is not safe for concurrent use; the Collector serializes access.
type observerRegistry struct {
	entries []weak.Pointer[Subscription]
}

// compact drops entries whose subscription has been collected.
func (r *observerRegistry) compact() {
	r.entries = slices.DeleteFunc(r.entries, func(p weak.Pointer[Subscription]) bool {
		return p.Value() == nil
	})
}

func (r *observerRegistry) add(s *Subscription) {
	r.compact()
	r.entries = append(r.entries, weak.Make(s))
}

// remove drops s together with any dead entry. It reports whether s was registered.
func (r *observerRegistry) remove(s *Subscription) bool {
	target := weak.Make(s)
	found := false
	r.entries = slices.DeleteFunc(r.entries, func(p weak.Pointer[Subscription]) bool {
		if p == target {
			found = true
			return true
		}
		return p.Value() == nil
	})
	return found
}

// live returns strong references to the registered subscriptions, in
// registration order, pruning dead entries on the way.
func (r *observerRegistry) live() []*Subscription {
	subs := make([]*Subscription, 0, len(r.entries))
	kept := r.entries[:0]
	for _, p := range r.entries {
		if s := p.Value(); s != nil {
			subs = append(subs, s)
			kept = append(kept, p)
		}
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	return subs
}
