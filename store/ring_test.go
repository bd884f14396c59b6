package store

import (
	"testing"
	"time"

	"github.com/ftahirops/diskmon/model"
)

func pt(i int) model.HealthPoint {
	return model.HealthPoint{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
		Score:     i,
	}
}

func TestRingEvictsOldestFirst(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(pt(i))
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}

	points := r.Points()
	for i, want := range []int{2, 3, 4} {
		if points[i].Score != want {
			t.Fatalf("points[%d].Score = %d, want %d", i, points[i].Score, want)
		}
	}
	latest, ok := r.Latest()
	if !ok || latest.Score != 4 {
		t.Fatalf("Latest = %+v, %v", latest, ok)
	}
}

func TestRingSince(t *testing.T) {
	r := NewRing(10)
	for i := 0; i < 6; i++ {
		r.Push(pt(i))
	}
	got := r.Since(pt(3).Timestamp)
	if len(got) != 3 || got[0].Score != 3 {
		t.Fatalf("Since: got %+v", got)
	}
	if got := r.Since(pt(99).Timestamp); len(got) != 0 {
		t.Fatalf("future Since returned %d points", len(got))
	}
}

func TestRingLoadTrimsToCapacity(t *testing.T) {
	r := NewRing(3)
	var pts []model.HealthPoint
	for i := 0; i < 7; i++ {
		pts = append(pts, pt(i))
	}
	r.Load(pts)
	points := r.Points()
	if len(points) != 3 || points[0].Score != 4 || points[2].Score != 6 {
		t.Fatalf("Load kept wrong window: %+v", points)
	}
}

func TestRingEmpty(t *testing.T) {
	r := NewRing(3)
	if _, ok := r.Latest(); ok {
		t.Fatal("Latest on empty ring reported ok")
	}
	if got := r.Points(); len(got) != 0 {
		t.Fatalf("Points on empty ring: %v", got)
	}
}
