package apimetrics

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverRegistry_Order(t *testing.T) {
	var r observerRegistry
	a := newSubscription(NopObserver{}, nil)
	b := newSubscription(NopObserver{}, nil)
	c := newSubscription(NopObserver{}, nil)
	r.add(a)
	r.add(b)
	r.add(c)

	assert.Equal(t, []*Subscription{a, b, c}, r.live())

	assert.True(t, r.remove(b))
	assert.False(t, r.remove(b))
	assert.Equal(t, []*Subscription{a, c}, r.live())
}

func TestObserverRegistry_PrunesCollected(t *testing.T) {
	var r observerRegistry
	kept := newSubscription(NopObserver{}, nil)
	r.add(kept)
	func() {
		r.add(newSubscription(NopObserver{}, nil))
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return len(r.live()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, r.entries, 1)
	runtime.KeepAlive(kept)
}

func TestSubscription_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		s := newSubscription(NopObserver{}, nil)
		assert.False(t, seen[s.ID()])
		seen[s.ID()] = true
	}
}
