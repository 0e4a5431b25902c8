package intent

import (
	"math"
	"time"
)

// Minimum motion below which no trajectory prediction is attempted.
const (
	minPointerSpeed = 20.0 // px/s
	minScrollSpeed  = 40.0 // px/s
)

// Rect is an axis-aligned bounding box in viewport coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether the point lies inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Center returns the rect's center point.
func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// rayRectTime returns the time in seconds until a point moving at
// (vx, vy) from (px, py) first enters the rect, using slab
// intersection. hit is false when the trajectory misses the rect or
// points away from it.
func rayRectTime(px, py, vx, vy float64, box Rect) (t float64, hit bool) {
	tMin := math.Inf(-1)
	tMax := math.Inf(1)

	for _, axis := range [2][3]float64{
		{px, vx, 0}, // x slab
		{py, vy, 1}, // y slab
	} {
		p, v := axis[0], axis[1]
		var lo, hi float64
		if axis[2] == 0 {
			lo, hi = box.X, box.X+box.W
		} else {
			lo, hi = box.Y, box.Y+box.H
		}
		if v == 0 {
			if p < lo || p > hi {
				return 0, false
			}
			continue
		}
		t1 := (lo - p) / v
		t2 := (hi - p) / v
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
	}

	if tMin > tMax || tMax < 0 {
		return 0, false
	}
	if tMin < 0 {
		return 0, true // already inside
	}
	return tMin, true
}

// HoverConfidence is the closed-form probability that the pointer will
// enter box within leadTime: how well the trajectory lines up with the
// target, scaled by how soon the projected intersection lands inside
// the lead window. No learned model, no dynamic allocation.
func HoverConfidence(ring *sampleRing, box Rect, leadTime time.Duration) float64 {
	p, ok := ring.Latest()
	if !ok {
		return 0
	}
	if box.Contains(p.X, p.Y) {
		return 1
	}

	vx, vy, ok := ring.Velocity()
	if !ok {
		return 0
	}
	speed := math.Hypot(vx, vy)
	if speed < minPointerSpeed {
		return 0
	}

	t, hit := rayRectTime(p.X, p.Y, vx, vy, box)
	if !hit {
		return 0
	}
	if t <= 0 {
		return 1
	}

	cx, cy := box.Center()
	dx, dy := cx-p.X, cy-p.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return 1
	}
	alignment := clamp01((vx*dx + vy*dy) / (speed * dist))

	return clamp01(alignment * math.Min(1, leadTime.Seconds()/t))
}

// VisibilityConfidence is the scroll analog of HoverConfidence: the
// probability that an element whose top sits at elementTop (document
// coordinates) becomes visible within leadTime, given the current
// scroll trajectory.
func VisibilityConfidence(ring *scrollRing, elementTop, viewportHeight float64, leadTime time.Duration) float64 {
	cur, ok := ring.Latest()
	if !ok {
		return 0
	}
	visibleEdge := cur.Offset + viewportHeight
	if elementTop <= visibleEdge && elementTop >= cur.Offset {
		return 1
	}

	v, ok := ring.Velocity()
	if !ok {
		return 0
	}

	var gap float64
	switch {
	case elementTop > visibleEdge && v > minScrollSpeed:
		gap = elementTop - visibleEdge
	case elementTop < cur.Offset && v < -minScrollSpeed:
		gap = cur.Offset - elementTop
		v = -v
	default:
		return 0
	}

	t := gap / v
	return clamp01(math.Min(1, leadTime.Seconds()/t))
}

// FocusConfidence handles the deterministic case: when the candidate
// is the unique tab-order successor of the currently focused element,
// focus is all but certain to land there next.
func FocusConfidence(isNextInTabOrder bool) float64 {
	if isNextInTabOrder {
		return 0.99
	}
	return 0
}
