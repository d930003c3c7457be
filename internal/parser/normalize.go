package parser

import (
	"time"

	"schedwatch/internal/timetable"
)

var allWeekdays = []int{1, 2, 3, 4, 5, 6, 7}

// normalize resolves missing years, validates dates and folds the entries
// into the timetable layers. The first invalid date aborts the whole input.
func normalize(entries []entry, now time.Time) (*timetable.EventTimetable, string) {
	res := resolver{today: timetable.DateOf(now)}
	tt := &timetable.EventTimetable{}

	for _, e := range entries {
		switch e.kind {
		case entryWeekTimes:
			tt.WeekTimes = append(tt.WeekTimes, e.weekTimes...)

		case entryDateRangeTimetable:
			r, err := res.dateRange(e.dateRange)
			if err != "" {
				return nil, err
			}
			tt.DateRangesTimetable = append(tt.DateRangesTimetable, timetable.DateRangeTimetable{
				DateRange: r,
				WeekTimes: e.weekTimes,
			})

		case entryDailyWindow:
			r, err := res.dateRange(e.dateRange)
			if err != "" {
				return nil, err
			}
			if r.From == r.Last() {
				tt.DatesExact = append(tt.DatesExact, timetable.DateExact{
					DateRange: timetable.SingleDate(r.From),
					Times:     e.times,
				})
				continue
			}
			tt.DateRangesTimetable = append(tt.DateRangesTimetable, timetable.DateRangeTimetable{
				DateRange: r,
				WeekTimes: []timetable.WeekTime{{
					Weekdays: append([]int(nil), allWeekdays...),
					Times:    e.times,
				}},
			})

		case entryExactDate:
			r, err := res.dateRange(e.dateRange)
			if err != "" {
				return nil, err
			}
			tt.DatesExact = append(tt.DatesExact, timetable.DateExact{DateRange: r, Times: e.times})

		case entryAnytime:
			tt.Anytime = true
		}
	}

	return tt, ""
}

type resolver struct {
	today timetable.Date
}

// date fills in a missing year with the current one, moving to the next
// year when the date has already passed.
func (r resolver) date(d timetable.Date) (timetable.Date, string) {
	if d.Year == timetable.UnknownYear {
		d.Year = r.today.Year
		if d.Before(r.today) {
			d.Year++
		}
	}
	if !d.Valid() {
		return d, invalidDate(d.String())
	}
	return d, ""
}

func (r resolver) dateRange(dr timetable.DateRange) (timetable.DateRange, string) {
	from, err := r.date(dr.From)
	if err != "" {
		return dr, err
	}
	if dr.To == nil {
		return timetable.SingleDate(from), ""
	}

	to, err := r.date(*dr.To)
	if err != "" {
		return dr, err
	}
	if to.Before(from) {
		switch {
		case dr.From.Year == timetable.UnknownYear:
			// the range crosses New Year
			from.Year--
			if !from.Valid() {
				return dr, invalidDate(from.String())
			}
		case dr.To.Year == timetable.UnknownYear:
			to.Year = from.Year
			if to.Before(from) {
				to.Year++
			}
			if !to.Valid() {
				return dr, invalidDate(to.String())
			}
		default:
			return dr, reversedRange(from.String(), to.String())
		}
	}
	return timetable.Between(from, to), ""
}
