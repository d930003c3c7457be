package timetable

import "time"

// OccurrenceKind discriminates the Occurrence variants
type OccurrenceKind int

const (
	OccurrencePoint OccurrenceKind = iota
	OccurrenceRange
)

// Occurrence is one materialized instant or half-open span [Start, End).
// End is zero for points.
type Occurrence struct {
	Kind  OccurrenceKind
	Start time.Time
	End   time.Time
}

// PointAt returns a point occurrence
func PointAt(t time.Time) Occurrence {
	return Occurrence{Kind: OccurrencePoint, Start: t}
}

// RangeOf returns a range occurrence [start, end)
func RangeOf(start, end time.Time) Occurrence {
	return Occurrence{Kind: OccurrenceRange, Start: start, End: end}
}

// IsRange reports whether the occurrence spans time
func (o Occurrence) IsRange() bool {
	return o.Kind == OccurrenceRange
}

// Equal compares two occurrences as instants, ignoring locations
func (o Occurrence) Equal(other Occurrence) bool {
	if o.Kind != other.Kind || !o.Start.Equal(other.Start) {
		return false
	}
	return o.Kind == OccurrencePoint || o.End.Equal(other.End)
}

func (o Occurrence) String() string {
	const layout = "2006-01-02 15:04"
	if o.Kind == OccurrenceRange {
		return "[" + o.Start.Format(layout) + ", " + o.End.Format(layout) + ")"
	}
	return o.Start.Format(layout)
}
