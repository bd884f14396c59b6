package store

import (
	"time"

	"github.com/ftahirops/diskmon/model"
)

// Ring is a fixed-capacity ring buffer of health points. The oldest point is
// evicted when a push overflows capacity.
type Ring struct {
	buf  []model.HealthPoint
	head int
	size int
	cap  int
}

// NewRing creates a ring with the given capacity.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]model.HealthPoint, capacity), cap: capacity}
}

// Push appends a point, evicting the oldest when full.
func (r *Ring) Push(p model.HealthPoint) {
	r.buf[r.head] = p
	r.head = (r.head + 1) % r.cap
	if r.size < r.cap {
		r.size++
	}
}

// Len returns the number of stored points.
func (r *Ring) Len() int { return r.size }

// Latest returns the most recent point, or false when empty.
func (r *Ring) Latest() (model.HealthPoint, bool) {
	if r.size == 0 {
		return model.HealthPoint{}, false
	}
	return r.buf[(r.head-1+r.cap)%r.cap], true
}

// Points returns all stored points, oldest first.
func (r *Ring) Points() []model.HealthPoint {
	out := make([]model.HealthPoint, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.head-r.size+i+r.cap)%r.cap])
	}
	return out
}

// Since returns the stored points at or after t, oldest first.
func (r *Ring) Since(t time.Time) []model.HealthPoint {
	all := r.Points()
	for i, p := range all {
		if !p.Timestamp.Before(t) {
			return all[i:]
		}
	}
	return nil
}

// Load replaces the ring contents with pts (oldest first), keeping at most
// capacity points (the most recent ones).
func (r *Ring) Load(pts []model.HealthPoint) {
	r.head, r.size = 0, 0
	if len(pts) > r.cap {
		pts = pts[len(pts)-r.cap:]
	}
	for _, p := range pts {
		r.Push(p)
	}
}
