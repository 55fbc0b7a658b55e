package availability

import (
	"time"

	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
)

// Slot is one calendar cell.
type Slot struct {
	interval.Interval
	Booked bool
}

// Slots cuts window into consecutive cells of length step and marks each cell
// that overlaps any busy interval. A trailing partial cell is kept.
func Slots(window interval.Interval, step time.Duration, busy []interval.Interval) []Slot {
	if step <= 0 || !window.Valid() {
		return nil
	}
	var out []Slot
	for t := window.Start; t.Before(window.End); t = t.Add(step) {
		end := t.Add(step)
		if end.After(window.End) {
			end = window.End
		}
		cell := interval.Interval{Start: t, End: end}
		out = append(out, Slot{Interval: cell, Booked: overlapsAny(cell, busy)})
	}
	return out
}

// FreeSlots returns start times within window, stepping by step, where a
// booking of length duration would fit without overlapping busy. Starts
// before now are skipped.
func FreeSlots(window interval.Interval, duration, step time.Duration, busy []interval.Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 || !window.Valid() {
		return nil
	}
	var out []time.Time
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(interval.Interval{Start: t, End: t.Add(duration)}, busy) {
			out = append(out, t)
		}
	}
	return out
}

func overlapsAny(iv interval.Interval, busy []interval.Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

// Week returns the seven-day window starting at midnight of weekStart's day
// in loc.
func Week(weekStart time.Time, loc *time.Location) interval.Interval {
	if loc == nil {
		loc = time.UTC
	}
	d := weekStart.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return interval.Interval{Start: start, End: start.AddDate(0, 0, 7)}
}
