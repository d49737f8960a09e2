package apimetrics

// ringStore is a bounded, append-only ring of records. Once full, each append
// overwrites the oldest record. It is not safe for concurrent use; the
// Collector serializes access.
type ringStore struct {
	buf      []Record
	head     int // index of the oldest record once buf is full
	capacity int
	evicted  uint64
}

func newRingStore(capacity int) *ringStore {
	return &ringStore{
		buf:      make([]Record, 0, min(capacity, 1024)),
		capacity: capacity,
	}
}

func (s *ringStore) size() int {
	return len(s.buf)
}

// at returns the i-th record, oldest first.
func (s *ringStore) at(i int) Record {
	return s.buf[(s.head+i)%len(s.buf)]
}

func (s *ringStore) push(r Record) {
	if len(s.buf) < s.capacity {
		s.buf = append(s.buf, r)
		return
	}
	s.buf[s.head] = r
	s.head = (s.head + 1) % len(s.buf)
	s.evicted++
}

// resize changes the capacity, dropping the oldest records that no longer fit.
func (s *ringStore) resize(capacity int) {
	n := len(s.buf)
	keep := min(n, capacity)

	buf := make([]Record, keep, max(keep, min(capacity, 1024)))
	for i := range keep {
		buf[i] = s.at(n - keep + i)
	}
	s.evicted += uint64(n - keep)
	s.buf = buf
	s.head = 0
	s.capacity = capacity
}

func (s *ringStore) reset() {
	s.buf = make([]Record, 0, min(s.capacity, 1024))
	s.head = 0
}

// each calls fn on every record, oldest first, until fn returns false.
func (s *ringStore) each(fn func(Record) bool) {
	for i := range len(s.buf) {
		if !fn(s.at(i)) {
			return
		}
	}
}

// eachReverse calls fn on every record, newest first, until fn returns false.
func (s *ringStore) eachReverse(fn func(Record) bool) {
	for i := len(s.buf) - 1; i >= 0; i-- {
		if !fn(s.at(i)) {
			return
		}
	}
}
