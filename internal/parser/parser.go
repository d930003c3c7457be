// Package parser turns free-form Russian schedule descriptions such as
//
//	с 4 января 2020 до 24 декабря 2020: пн-вт: 11:00-20:00, ср: 11:00-21:00
//
// into a timetable.EventTimetable. Parsing never panics: malformed input
// is reported as a list of human-readable messages.
package parser

import (
	"strings"
	"time"

	"schedwatch/internal/timetable"
)

// Result is either a timetable or the messages explaining why the text
// could not be read.
type Result struct {
	Timetable *timetable.EventTimetable
	Errors    []string
}

// OK reports whether parsing succeeded
func (r Result) OK() bool {
	return r.Timetable != nil && len(r.Errors) == 0
}

// Parse reads text relative to now. Dates written without a year are
// resolved against now.
func Parse(text string, now time.Time) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Errors: []string{msgEmpty}}
	}

	s := newScanner(text)
	entries, ok := s.input()
	if !ok {
		return Result{Errors: s.diagnostics()}
	}

	tt, err := normalize(entries, now)
	if err != "" {
		return Result{Errors: []string{err}}
	}
	return Result{Timetable: tt}
}

type entryKind int

const (
	entryWeekTimes entryKind = iota
	entryDateRangeTimetable
	entryDailyWindow
	entryExactDate
	entryAnytime
)

// entry is one top-level statement before year resolution and folding.
type entry struct {
	kind      entryKind
	dateRange timetable.DateRange
	weekTimes []timetable.WeekTime
	times     []timetable.DayTime
}

// input reads either the bare anytime phrase or a list of entries
// separated by ";" or line breaks.
func (s *scanner) input() ([]entry, bool) {
	s.skipBlank()
	if s.try(func() bool {
		if !s.anyTime() {
			return false
		}
		return s.end()
	}) {
		return []entry{{kind: entryAnytime}}, true
	}

	first, ok := s.entry()
	if !ok {
		return nil, false
	}
	entries := []entry{first}
	for {
		var next entry
		if !s.try(func() bool {
			if !s.separator() {
				return false
			}
			var ok bool
			next, ok = s.entry()
			return ok
		}) {
			break
		}
		entries = append(entries, next)
	}

	s.try(s.separator)
	if !s.end() {
		return nil, false
	}
	return entries, true
}

func (s *scanner) end() bool {
	start := s.pos
	s.skipBlank()
	if s.atEnd() {
		return true
	}
	s.fail(labelEnd)
	s.pos = start
	return false
}

// separator reads ";" or a run of line breaks between entries.
func (s *scanner) separator() bool {
	start := s.pos
	s.skipSpace()
	if s.peek() == ';' {
		s.pos++
		s.skipBlank()
		return true
	}
	if s.skipLineBreaks() {
		return true
	}
	s.fail(labelSeparator)
	s.pos = start
	return false
}

// entry tries the top-level shapes in precedence order.
func (s *scanner) entry() (entry, bool) {
	var e entry
	rules := []func() bool{
		func() bool { return s.dateRangeTimetable(&e) },
		func() bool { return s.exactDateTimes(&e) },
		func() bool { return s.dateRangeTimes(&e) },
		func() bool { return s.weekDatesTimetable(&e) },
	}
	for _, rule := range rules {
		e = entry{}
		if s.try(rule) {
			return e, true
		}
	}
	return entry{}, false
}

// dateRangeTimetable: DateRange ":" [newline] WeekDays ":" Times, ...
func (s *scanner) dateRangeTimetable(e *entry) bool {
	r, _, ok := s.dateRange()
	if !ok || !s.colon() {
		return false
	}
	s.skipLineBreaks()
	weekTimes, ok := s.weekDaysTimetables(true)
	if !ok {
		return false
	}
	*e = entry{kind: entryDateRangeTimetable, dateRange: r, weekTimes: weekTimes}
	return true
}

// exactDateTimes: DateOrDateRange ":" Times
func (s *scanner) exactDateTimes(e *entry) bool {
	r, ok := s.dateOrDateRange()
	if !ok || !s.colon() {
		return false
	}
	times, ok := s.timesOrTimeRanges()
	if !ok {
		return false
	}
	*e = entry{kind: entryExactDate, dateRange: r, times: times}
	return true
}

// dateRangeTimes: "с Date по Date" ":" Times, the same times every day.
func (s *scanner) dateRangeTimes(e *entry) bool {
	r, ok := s.prepositionalDateRange()
	if !ok || !s.colon() {
		return false
	}
	times, ok := s.timesOrTimeRanges()
	if !ok {
		return false
	}
	*e = entry{kind: entryDailyWindow, dateRange: r, times: times}
	return true
}

// weekDatesTimetable: WeekDays ":" Times, joined by commas.
func (s *scanner) weekDatesTimetable(e *entry) bool {
	weekTimes, ok := s.weekDaysTimetables(false)
	if !ok {
		return false
	}
	*e = entry{kind: entryWeekTimes, weekTimes: weekTimes}
	return true
}

// weekDaysTimetables reads one or more "WeekDays: Times" items joined by
// commas. Inside a date range block items may also be split over lines.
func (s *scanner) weekDaysTimetables(multiline bool) ([]timetable.WeekTime, bool) {
	first, ok := s.weekDaysTimetable()
	if !ok {
		return nil, false
	}
	weekTimes := []timetable.WeekTime{first}
	for {
		var next timetable.WeekTime
		if !s.try(func() bool {
			if s.comma() {
				s.skipLineBreaks()
			} else if !multiline || !s.skipLineBreaks() {
				return false
			}
			var ok bool
			next, ok = s.weekDaysTimetable()
			return ok
		}) {
			return weekTimes, true
		}
		weekTimes = append(weekTimes, next)
	}
}

func (s *scanner) weekDaysTimetable() (timetable.WeekTime, bool) {
	var wt timetable.WeekTime
	ok := s.try(func() bool {
		days, ok := s.weekDays()
		if !ok || !s.colon() {
			return false
		}
		times, ok := s.timesOrTimeRanges()
		if !ok {
			return false
		}
		wt = timetable.WeekTime{Weekdays: days, Times: times}
		return true
	})
	return wt, ok
}
