package yield

// History is a bounded, chronologically ordered APY log backed by a ring
// buffer. Appending to a full history overwrites the oldest record.
type History struct {
	buf   []APYRecord
	start int
	size  int
}

// NewHistory builds a history with the given capacity seeded with records in
// chronological order. When more records than capacity are supplied only the
// newest are kept.
func NewHistory(capacity uint64, records []APYRecord) *History {
	if capacity == 0 {
		capacity = 1
	}
	h := &History{buf: make([]APYRecord, capacity)}
	for _, rec := range records {
		h.push(rec)
	}
	return h
}

// Capacity returns the maximum number of retained records.
func (h *History) Capacity() int { return len(h.buf) }

// Len returns the number of retained records.
func (h *History) Len() int { return h.size }

// Append adds a record. Records must not go back in time.
func (h *History) Append(rec APYRecord) error {
	if last, ok := h.Last(); ok && rec.Timestamp < last.Timestamp {
		return ErrHistoryOrder
	}
	h.push(rec)
	return nil
}

func (h *History) push(rec APYRecord) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = rec
		h.size++
		return
	}
	h.buf[h.start] = rec
	h.start = (h.start + 1) % len(h.buf)
}

// Last returns the newest record.
func (h *History) Last() (APYRecord, bool) {
	if h.size == 0 {
		return APYRecord{}, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

// Records returns the retained records oldest first.
func (h *History) Records() []APYRecord {
	out := make([]APYRecord, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}
