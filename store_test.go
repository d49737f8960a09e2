package apimetrics

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func numbered(n int) Record {
	return Record{Operation: strconv.Itoa(n)}
}

func contents(s *ringStore) []string {
	var ops []string
	s.each(func(r Record) bool {
		ops = append(ops, r.Operation)
		return true
	})
	return ops
}

func TestRingStore_EvictsOldest(t *testing.T) {
	s := newRingStore(3)
	for i := 1; i <= 5; i++ {
		s.push(numbered(i))
	}

	assert.Equal(t, 3, s.size())
	assert.Equal(t, []string{"3", "4", "5"}, contents(s))
	assert.Equal(t, uint64(2), s.evicted)
}

func TestRingStore_SizeIsMinOfInsertedAndCapacity(t *testing.T) {
	for _, tc := range []struct {
		capacity, inserted int
	}{
		{1, 0}, {1, 1}, {1, 7}, {4, 3}, {4, 4}, {4, 9}, {16, 100},
	} {
		s := newRingStore(tc.capacity)
		for i := 1; i <= tc.inserted; i++ {
			s.push(numbered(i))
		}

		want := min(tc.capacity, tc.inserted)
		assert.Equal(t, want, s.size(), "capacity=%d inserted=%d", tc.capacity, tc.inserted)

		got := contents(s)
		for i, op := range got {
			assert.Equal(t, strconv.Itoa(tc.inserted-want+1+i), op)
		}
	}
}

func TestRingStore_EachReverse(t *testing.T) {
	s := newRingStore(3)
	for i := 1; i <= 4; i++ {
		s.push(numbered(i))
	}

	var ops []string
	s.eachReverse(func(r Record) bool {
		ops = append(ops, r.Operation)
		return len(ops) < 2
	})
	assert.Equal(t, []string{"4", "3"}, ops)
}

func TestRingStore_ShrinkAfterWrap(t *testing.T) {
	s := newRingStore(4)
	for i := 1; i <= 6; i++ {
		s.push(numbered(i))
	}

	s.resize(2)
	assert.Equal(t, []string{"5", "6"}, contents(s))
	assert.Equal(t, uint64(4), s.evicted)

	s.push(numbered(7))
	assert.Equal(t, []string{"6", "7"}, contents(s))
}

func TestRingStore_GrowKeepsOrder(t *testing.T) {
	s := newRingStore(3)
	for i := 1; i <= 5; i++ {
		s.push(numbered(i))
	}

	s.resize(5)
	s.push(numbered(6))
	s.push(numbered(7))
	assert.Equal(t, []string{"3", "4", "5", "6", "7"}, contents(s))

	s.push(numbered(8))
	assert.Equal(t, []string{"4", "5", "6", "7", "8"}, contents(s))
}

func TestRingStore_Reset(t *testing.T) {
	s := newRingStore(2)
	s.push(numbered(1))
	s.push(numbered(2))
	s.push(numbered(3))

	s.reset()
	assert.Equal(t, 0, s.size())

	s.push(numbered(4))
	assert.Equal(t, []string{"4"}, contents(s))
}
