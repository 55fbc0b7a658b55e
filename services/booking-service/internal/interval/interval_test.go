package interval

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func TestNewRejectsEmptyAndInverted(t *testing.T) {
	cases := []struct {
		name       string
		start, end time.Time
	}{
		{"equal", at(9, 0), at(9, 0)},
		{"inverted", at(10, 0), at(9, 0)},
		{"zero", time.Time{}, at(9, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.start, tc.end); !errors.Is(err, ErrInvalidInterval) {
				t.Fatalf("expected ErrInvalidInterval, got %v", err)
			}
		})
	}
	if _, err := New(at(9, 0), at(9, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOverlaps(t *testing.T) {
	nine := Interval{at(9, 0), at(10, 0)}
	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"touching after", Interval{at(10, 0), at(11, 0)}, false},
		{"touching before", Interval{at(8, 0), at(9, 0)}, false},
		{"partial", Interval{at(9, 30), at(10, 30)}, true},
		{"inside", Interval{at(9, 15), at(9, 45)}, true},
		{"enclosing", Interval{at(8, 0), at(11, 0)}, true},
		{"identical", nine, true},
		{"disjoint", Interval{at(12, 0), at(13, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := nine.Overlaps(tc.other); got != tc.want {
				t.Fatalf("Overlaps(%s, %s) = %v, want %v", nine, tc.other, got, tc.want)
			}
		})
	}
}

func TestOverlapsSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	random := func() Interval {
		s := base.Add(time.Duration(r.Intn(48)) * 15 * time.Minute)
		return Interval{s, s.Add(time.Duration(1+r.Intn(8)) * 15 * time.Minute)}
	}
	for i := 0; i < 2000; i++ {
		a, b := random(), random()
		if a.Overlaps(b) != b.Overlaps(a) {
			t.Fatalf("asymmetric overlap for %s and %s", a, b)
		}
	}
}

func TestContains(t *testing.T) {
	iv := Interval{at(9, 0), at(10, 0)}
	if !iv.Contains(at(9, 0)) {
		t.Fatal("start instant should be contained")
	}
	if !iv.Contains(at(9, 59)) {
		t.Fatal("interior instant should be contained")
	}
	if iv.Contains(at(10, 0)) {
		t.Fatal("end instant should not be contained")
	}
}

func TestUTCAndDuration(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	iv := Interval{at(9, 0).In(loc), at(10, 30).In(loc)}
	if got := iv.UTC(); got.Start.Location() != time.UTC || !got.Start.Equal(at(9, 0)) {
		t.Fatalf("unexpected UTC conversion %s", got)
	}
	if iv.Duration() != 90*time.Minute {
		t.Fatalf("unexpected duration %s", iv.Duration())
	}
}
