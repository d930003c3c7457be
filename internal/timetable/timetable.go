// Package timetable holds the structured schedule model produced by the
// parser and consumed by the expansion engine.
package timetable

import (
	"fmt"
	"time"
)

// WeekStart is the first day of the week for all weekday arithmetic.
const WeekStart = time.Monday

// UnknownYear marks a date written without a year. The normalizer replaces
// it before a timetable leaves the parser.
const UnknownYear = 0

// Clock is a time of day with minute precision
type Clock struct {
	Hour   int
	Minute int
}

// Midnight24 is the end-of-day sentinel, valid only as the end of a range.
var Midnight24 = Clock{Hour: 24}

// Minutes returns the number of minutes since midnight
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// DayTimeKind discriminates the DayTime variants
type DayTimeKind int

const (
	DayTimePoint DayTimeKind = iota
	DayTimeRange
)

// DayTime is either a single time of day or a daily interval [From, To).
// To is only meaningful for DayTimeRange.
type DayTime struct {
	Kind DayTimeKind
	From Clock
	To   Clock
}

// At returns a point DayTime
func At(c Clock) DayTime {
	return DayTime{Kind: DayTimePoint, From: c}
}

// Span returns a range DayTime
func Span(from, to Clock) DayTime {
	return DayTime{Kind: DayTimeRange, From: from, To: to}
}

// Overnight reports whether a range ends on the following day.
func (d DayTime) Overnight() bool {
	return d.Kind == DayTimeRange && d.To.Minutes() <= d.From.Minutes()
}

func (d DayTime) String() string {
	switch d.Kind {
	case DayTimeRange:
		return d.From.String() + "-" + d.To.String()
	default:
		return d.From.String()
	}
}

// MarshalYAML renders the time as "10:00" or "10:00-12:00"
func (d DayTime) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// WeekTime means "on these ISO weekdays (1 = Monday), at these times".
type WeekTime struct {
	Weekdays []int    `yaml:"weekdays" json:"weekdays"`
	Times    []DayTime `yaml:"times" json:"times"`
}

// Has reports whether the ISO weekday is part of the set
func (w WeekTime) Has(isoWeekday int) bool {
	for _, d := range w.Weekdays {
		if d == isoWeekday {
			return true
		}
	}
	return false
}

// Date is a calendar date which may still carry UnknownYear.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Midnight returns the start of the date in loc
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Valid reports whether the date exists in the calendar. Dates with
// UnknownYear are never valid.
func (d Date) Valid() bool {
	if d.Year == UnknownYear || d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == d.Day && t.Month() == d.Month
}

// Before compares two dates field by field
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalYAML renders the date as YYYY-MM-DD
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// DateRange is an inclusive span of calendar dates. A nil To means the
// single date From.
type DateRange struct {
	From Date  `yaml:"from" json:"from"`
	To   *Date `yaml:"to,omitempty" json:"to,omitempty"`
}

// SingleDate returns a degenerate range
func SingleDate(d Date) DateRange {
	return DateRange{From: d}
}

// Between returns a range covering from..to inclusive
func Between(from, to Date) DateRange {
	return DateRange{From: from, To: &to}
}

// Last returns the final date of the range
func (r DateRange) Last() Date {
	if r.To == nil {
		return r.From
	}
	return *r.To
}

// Bounds returns the half-open instant span [From 00:00, day after Last 00:00) in loc.
func (r DateRange) Bounds(loc *time.Location) (time.Time, time.Time) {
	return r.From.Midnight(loc), r.Last().Midnight(loc).AddDate(0, 0, 1)
}

func (r DateRange) String() string {
	if r.To == nil {
		return r.From.String()
	}
	return r.From.String() + ".." + r.To.String()
}

// DateExact lists explicit times on explicit dates. It overrides every
// other layer inside its date range.
type DateExact struct {
	DateRange DateRange `yaml:"date_range" json:"date_range"`
	Times     []DayTime `yaml:"times" json:"times"`
}

// DateRangeTimetable is a weekly pattern that replaces the default one
// while inside its date range.
type DateRangeTimetable struct {
	DateRange DateRange  `yaml:"date_range" json:"date_range"`
	WeekTimes []WeekTime `yaml:"week_times" json:"week_times"`
}

// EventTimetable is the root of a parsed schedule. When Anytime is set the
// remaining layers are ignored.
type EventTimetable struct {
	WeekTimes           []WeekTime           `yaml:"week_times" json:"week_times"`
	DateRangesTimetable []DateRangeTimetable `yaml:"date_ranges_timetable" json:"date_ranges_timetable"`
	DatesExact          []DateExact          `yaml:"dates_exact" json:"dates_exact"`
	Anytime             bool                 `yaml:"anytime" json:"anytime"`
}
