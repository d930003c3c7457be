// Package recurrence expands parsed timetables into concrete occurrences
// and provides the interval filter the override layers are built on.
package recurrence

import (
	"time"

	"schedwatch/internal/timetable"
)

// Mode selects which side of a window FilterByRange keeps
type Mode int

const (
	// Inside keeps what lies within the window, clipping ranges at its edges
	Inside Mode = iota
	// Outside keeps what lies outside the window, splitting ranges around it
	Outside
)

func (m Mode) String() string {
	if m == Outside {
		return "outside"
	}
	return "inside"
}

// Window is the half-open span [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the window contains no instant
func (w Window) Empty() bool {
	return !w.Start.Before(w.End)
}

// Contains reports whether t lies in [Start, End)
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DateWindow returns the window covering every day of r in loc
func DateWindow(r timetable.DateRange, loc *time.Location) Window {
	start, end := r.Bounds(loc)
	return Window{Start: start, End: end}
}

// FilterByRange restricts occurrences to one side of w. Ranges are treated
// as half-open: a range ending exactly at w.Start or starting exactly at
// w.End does not overlap w. Points are inside when Start <= p < End.
// The input slice is not modified and order is preserved.
func FilterByRange(occurrences []timetable.Occurrence, w Window, mode Mode) []timetable.Occurrence {
	result := make([]timetable.Occurrence, 0, len(occurrences))

	if w.Empty() {
		if mode == Outside {
			result = append(result, occurrences...)
		}
		return result
	}

	for _, o := range occurrences {
		if !o.IsRange() {
			if w.Contains(o.Start) == (mode == Inside) {
				result = append(result, o)
			}
			continue
		}

		s, e := o.Start, o.End
		switch {
		case !e.After(w.Start) || !s.Before(w.End):
			// disjoint
			if mode == Outside {
				result = append(result, o)
			}
		case !s.Before(w.Start) && !e.After(w.End):
			// contained
			if mode == Inside {
				result = append(result, o)
			}
		case mode == Inside:
			result = append(result, timetable.RangeOf(latest(s, w.Start), earliest(e, w.End)))
		default:
			if s.Before(w.Start) {
				result = append(result, timetable.RangeOf(s, w.Start))
			}
			if e.After(w.End) {
				result = append(result, timetable.RangeOf(w.End, e))
			}
		}
	}

	return result
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
