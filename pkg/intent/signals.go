package intent

import "time"

// PointerSample is one raw pointer position report.
type PointerSample struct {
	X, Y float64
	At   time.Time
}

// ScrollSample is one raw scroll offset report.
type ScrollSample struct {
	Offset float64
	At     time.Time
}

// sampleRing is a fixed-capacity circular buffer of pointer samples.
// It never grows after construction; old samples are overwritten.
type sampleRing struct {
	buf  []PointerSample
	head int
	n    int
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{buf: make([]PointerSample, capacity)}
}

func (r *sampleRing) Push(s PointerSample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *sampleRing) Len() int {
	return r.n
}

// At returns the i-th sample, 0 being the oldest retained.
func (r *sampleRing) At(i int) PointerSample {
	start := (r.head - r.n + len(r.buf)) % len(r.buf)
	return r.buf[(start+i)%len(r.buf)]
}

func (r *sampleRing) Latest() (PointerSample, bool) {
	if r.n == 0 {
		return PointerSample{}, false
	}
	return r.At(r.n - 1), true
}

// Velocity estimates the pointer velocity in px/s over the retained
// window, oldest sample to newest.
func (r *sampleRing) Velocity() (vx, vy float64, ok bool) {
	if r.n < 2 {
		return 0, 0, false
	}
	first := r.At(0)
	last := r.At(r.n - 1)
	dt := last.At.Sub(first.At).Seconds()
	if dt <= 0 {
		return 0, 0, false
	}
	return (last.X - first.X) / dt, (last.Y - first.Y) / dt, true
}

// scrollRing is the scroll-offset analog of sampleRing.
type scrollRing struct {
	buf  []ScrollSample
	head int
	n    int
}

func newScrollRing(capacity int) *scrollRing {
	return &scrollRing{buf: make([]ScrollSample, capacity)}
}

func (r *scrollRing) Push(s ScrollSample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *scrollRing) Len() int {
	return r.n
}

func (r *scrollRing) At(i int) ScrollSample {
	start := (r.head - r.n + len(r.buf)) % len(r.buf)
	return r.buf[(start+i)%len(r.buf)]
}

func (r *scrollRing) Latest() (ScrollSample, bool) {
	if r.n == 0 {
		return ScrollSample{}, false
	}
	return r.At(r.n - 1), true
}

// Velocity estimates scroll speed in px/s; positive means the offset
// is increasing (content moving up, viewport moving down).
func (r *scrollRing) Velocity() (float64, bool) {
	if r.n < 2 {
		return 0, false
	}
	first := r.At(0)
	last := r.At(r.n - 1)
	dt := last.At.Sub(first.At).Seconds()
	if dt <= 0 {
		return 0, false
	}
	return (last.Offset - first.Offset) / dt, true
}
