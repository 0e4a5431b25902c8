package server

import "sync"

type historyEntry struct {
	seq   uint64
	frame []byte
}

// FrameHistory is a ring buffer of sent authoritative patch frames. A
// resuming client reports the last sequence it applied; if every frame
// after it is still buffered, the gap is replayed instead of forcing a
// full restart.
type FrameHistory struct {
	mu       sync.RWMutex
	entries  []historyEntry
	head     int
	count    int
	capacity int
	minSeq   uint64
	maxSeq   uint64
}

// NewFrameHistory creates a history retaining the last capacity frames.
func NewFrameHistory(capacity int) *FrameHistory {
	if capacity <= 0 {
		capacity = 64
	}
	return &FrameHistory{
		entries:  make([]historyEntry, capacity),
		capacity: capacity,
	}
}

// Add records one sent frame. Sequences must be added in increasing
// order. The frame bytes are copied.
func (h *FrameHistory) Add(seq uint64, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := make([]byte, len(frame))
	copy(buf, frame)

	h.entries[h.head] = historyEntry{seq: seq, frame: buf}
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}

	h.maxSeq = seq
	oldest := (h.head - h.count + h.capacity) % h.capacity
	h.minSeq = h.entries[oldest].seq
}

// Since returns the frames for sequences (lastSeq, maxSeq] in order.
// ok is false when the window has already slid past lastSeq+1 and the
// client cannot be caught up by replay.
func (h *FrameHistory) Since(lastSeq uint64) (frames [][]byte, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 || lastSeq >= h.maxSeq {
		return nil, true
	}
	if lastSeq+1 < h.minSeq {
		return nil, false
	}

	for i := 0; i < h.count; i++ {
		idx := (h.head - h.count + i + h.capacity) % h.capacity
		if e := h.entries[idx]; e.seq > lastSeq {
			frames = append(frames, e.frame)
		}
	}
	return frames, true
}

// CanRecover reports whether Since(lastSeq) would succeed.
func (h *FrameHistory) CanRecover(lastSeq uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 || lastSeq >= h.maxSeq {
		return true
	}
	return lastSeq+1 >= h.minSeq
}

// Len returns the number of buffered frames.
func (h *FrameHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Clear drops all buffered frames.
func (h *FrameHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.entries {
		h.entries[i] = historyEntry{}
	}
	h.head = 0
	h.count = 0
	h.minSeq = 0
	h.maxSeq = 0
}
