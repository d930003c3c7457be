package recurrence

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"schedwatch/internal/timetable"
)

// rruleWeekdays is indexed by ISO weekday minus one
var rruleWeekdays = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// Generate expands tt into the occurrences that fall in
// [now, start of now's day + daysAhead days), latest first.
//
// Layers are applied in increasing precedence: the default weekly pattern,
// then windowed weekly patterns which replace it inside their date ranges,
// then exact dates which replace everything inside theirs. Occurrences are
// anchored in now's location.
func Generate(tt *timetable.EventTimetable, now time.Time, daysAhead int) []timetable.Occurrence {
	loc := now.Location()
	dayStart := timetable.DateOf(now).Midnight(loc)
	restrict := Window{Start: now, End: dayStart.AddDate(0, 0, daysAhead)}

	if tt == nil || restrict.Empty() {
		return []timetable.Occurrence{}
	}
	if tt.Anytime {
		return []timetable.Occurrence{timetable.RangeOf(restrict.Start, restrict.End)}
	}

	lookahead := Window{Start: dayStart, End: restrict.End}
	acc := expandWeekTimes(tt.WeekTimes, lookahead)

	for _, drt := range tt.DateRangesTimetable {
		acc = FilterByRange(acc, DateWindow(drt.DateRange, loc), Outside)
	}

	for _, drt := range tt.DateRangesTimetable {
		bounds := DateWindow(drt.DateRange, loc)
		if !bounds.End.After(now) {
			continue
		}
		sub := Window{
			Start: latest(bounds.Start, lookahead.Start),
			End:   earliest(bounds.End, lookahead.End),
		}
		if sub.Empty() {
			continue
		}
		acc = append(acc, FilterByRange(expandWeekTimes(drt.WeekTimes, sub), sub, Inside)...)
	}

	for _, de := range tt.DatesExact {
		bounds := DateWindow(de.DateRange, loc)
		acc = FilterByRange(acc, bounds, Outside)

		// the day before the lookahead can still reach into it overnight
		span := Window{
			Start: latest(bounds.Start, lookahead.Start.AddDate(0, 0, -1)),
			End:   earliest(bounds.End, lookahead.End),
		}
		for _, day := range days(span, nil) {
			for _, dt := range de.Times {
				acc = append(acc, Materialize(dt, day, loc))
			}
		}
	}

	sort.SliceStable(acc, func(i, j int) bool {
		return acc[i].Start.After(acc[j].Start)
	})

	return FilterByRange(acc, restrict, Inside)
}

// expandWeekTimes materializes every WeekTime on each matching day of w.
// w must start at midnight.
func expandWeekTimes(weekTimes []timetable.WeekTime, w Window) []timetable.Occurrence {
	var weekdays []rrule.Weekday
	seen := make(map[int]bool)
	for _, wt := range weekTimes {
		for _, d := range wt.Weekdays {
			if d >= 1 && d <= 7 && !seen[d] {
				seen[d] = true
				weekdays = append(weekdays, rruleWeekdays[d-1])
			}
		}
	}
	if len(weekdays) == 0 {
		return nil
	}

	var result []timetable.Occurrence
	loc := w.Start.Location()
	for _, day := range days(w, weekdays) {
		iso := ISOWeekday(day.Midnight(loc))
		for _, wt := range weekTimes {
			if !wt.Has(iso) {
				continue
			}
			for _, dt := range wt.Times {
				result = append(result, Materialize(dt, day, loc))
			}
		}
	}
	return result
}

// days lists the calendar days starting inside w, optionally limited to
// the given weekdays.
func days(w Window, weekdays []rrule.Weekday) []timetable.Date {
	if w.Empty() {
		return nil
	}
	start := timetable.DateOf(w.Start).Midnight(w.Start.Location())
	if start.Before(w.Start) {
		start = start.AddDate(0, 0, 1)
	}
	if !start.Before(w.End) {
		return nil
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   start,
		Until:     w.End.Add(-time.Second),
		Wkst:      rruleWeekdays[0],
		Byweekday: weekdays,
	})
	if err != nil {
		return nil
	}

	var result []timetable.Date
	for _, t := range r.All() {
		result = append(result, timetable.DateOf(t))
	}
	return result
}

// Materialize anchors dt to day in loc. 24:00 and ranges ending at or
// before their start end on the following day.
func Materialize(dt timetable.DayTime, day timetable.Date, loc *time.Location) timetable.Occurrence {
	start := time.Date(day.Year, day.Month, day.Day, dt.From.Hour, dt.From.Minute, 0, 0, loc)
	if dt.Kind != timetable.DayTimeRange {
		return timetable.PointAt(start)
	}
	endDay := day.Day
	if dt.Overnight() {
		endDay++
	}
	end := time.Date(day.Year, day.Month, endDay, dt.To.Hour, dt.To.Minute, 0, 0, loc)
	return timetable.RangeOf(start, end)
}

// ISOWeekday returns 1 for the first day of the week through 7
func ISOWeekday(t time.Time) int {
	return int((t.Weekday()-timetable.WeekStart+7)%7) + 1
}
