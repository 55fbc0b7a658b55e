// Package interval holds the half-open time range every overlap decision in
// the service is made with.
package interval

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInterval = errors.New("invalid interval")

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return Interval{}, fmt.Errorf("%w: start %s must be before end %s",
			ErrInvalidInterval, start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano))
	}
	return iv, nil
}

// Valid reports whether both bounds are set and Start is strictly before End.
func (iv Interval) Valid() bool {
	return !iv.Start.IsZero() && !iv.End.IsZero() && iv.Start.Before(iv.End)
}

// Overlaps is true iff the ranges share at least one instant. Ranges that only
// touch (one ends exactly when the other starts) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports Start <= t < End.
func (iv Interval) Contains(t time.Time) bool {
	return iv.Overlaps(Interval{Start: t, End: t.Add(time.Nanosecond)})
}

func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

func (iv Interval) UTC() Interval {
	return Interval{Start: iv.Start.UTC(), End: iv.End.UTC()}
}

func (iv Interval) String() string {
	return "[" + iv.Start.Format(time.RFC3339Nano) + ", " + iv.End.Format(time.RFC3339Nano) + ")"
}
