package parser

import (
	"time"

	"schedwatch/internal/timetable"
)

// Labels used in diagnostics for what a rule expected.
const (
	labelDay       = "число"
	labelMonth     = "месяц"
	labelYear      = "год"
	labelWeekday   = "день недели"
	labelTime      = "время"
	labelColon     = "«:»"
	labelComma     = "«,»"
	labelDash      = "«-»"
	labelFrom      = "«с»"
	labelUntil     = "«до» или «по»"
	labelTill      = "«до»"
	labelAnytime   = "«круглосуточно»"
	labelEveryDay  = "«ежедневно»"
	labelSeparator = "«;» или перевод строки"
	labelEnd       = "конец строки"
)

var monthNames = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

// weekdayNames maps every accepted spelling to its ISO weekday:
// two-letter abbreviations, short forms, nominative, genitive and
// accusative forms.
var weekdayNames = map[string]int{
	"пн": 1, "пон": 1, "понед": 1, "понедельник": 1, "понедельника": 1,
	"вт": 2, "втр": 2, "втор": 2, "вторник": 2, "вторника": 2,
	"ср": 3, "срд": 3, "сред": 3, "среда": 3, "среды": 3, "среду": 3,
	"чт": 4, "чтв": 4, "чет": 4, "четв": 4, "четверг": 4, "четверга": 4,
	"пт": 5, "птн": 5, "пят": 5, "пятн": 5, "пятница": 5, "пятницы": 5, "пятницу": 5,
	"сб": 6, "суб": 6, "субб": 6, "суббота": 6, "субботы": 6, "субботу": 6,
	"вс": 7, "вск": 7, "воск": 7, "воскр": 7, "воскресенье": 7, "воскресенья": 7,
}

var (
	monthSpellings   = keys(monthNames)
	weekdaySpellings = keys(weekdayNames)
	anytimeSpellings = []string{"круглосуточно", "в любое время"}
	dashSpellings    = []string{"-", "–", "—"}
	groupSpellings   = keys(weekdayGroups)
)

// weekday groups accepted wherever a weekday list is.
var weekdayGroups = map[string][]int{
	"ежедневно":   {1, 2, 3, 4, 5, 6, 7},
	"каждый день": {1, 2, 3, 4, 5, 6, 7},
	"будни":       {1, 2, 3, 4, 5},
	"выходные":    {6, 7},
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (s *scanner) dash() bool {
	_, ok := s.word(labelDash, dashSpellings...)
	return ok
}

func (s *scanner) colon() bool {
	_, ok := s.word(labelColon, ":")
	return ok
}

func (s *scanner) comma() bool {
	_, ok := s.word(labelComma, ",")
	return ok
}

func (s *scanner) dayOfMonth() (int, bool) {
	day, _, ok := s.digits(labelDay, 1, 2)
	return day, ok
}

func (s *scanner) month() (time.Month, bool) {
	name, ok := s.word(labelMonth, monthSpellings...)
	if !ok {
		return 0, false
	}
	return monthNames[name], true
}

// year reads an optional four-digit year starting with "20".
func (s *scanner) year() int {
	start := s.pos
	y, _, ok := s.digits(labelYear, 4, 4)
	if !ok || y/100 != 20 {
		s.pos = start
		return timetable.UnknownYear
	}
	return y
}

// date reads "DayOfMonth Month [Year]".
func (s *scanner) date() (timetable.Date, bool) {
	var d timetable.Date
	ok := s.try(func() bool {
		day, ok := s.dayOfMonth()
		if !ok {
			return false
		}
		m, ok := s.month()
		if !ok {
			return false
		}
		d = timetable.Date{Year: s.year(), Month: m, Day: day}
		return true
	})
	return d, ok
}

// clock reads "hh" or "hh[:.]mm". Hour 24 is only accepted as 24:00 and
// callers decide whether that is allowed in their position.
func (s *scanner) clock() (timetable.Clock, bool) {
	var c timetable.Clock
	ok := s.try(func() bool {
		s.skipSpace()
		begin := s.pos
		h, _, ok := s.digits(labelTime, 1, 2)
		if !ok {
			return false
		}
		c = timetable.Clock{Hour: h}
		s.try(func() bool {
			if r := s.peek(); r != ':' && r != '.' {
				return false
			}
			s.pos++
			m, n, ok := s.digits(labelTime, 2, 2)
			if !ok || n != 2 {
				return false
			}
			c.Minute = m
			return true
		})
		if c.Hour > 24 || c.Minute > 59 || (c.Hour == 24 && c.Minute != 0) {
			s.pos = begin
			s.fail(labelTime)
			return false
		}
		return true
	})
	return c, ok
}

// startClock reads a clock that can begin an interval or stand alone.
func (s *scanner) startClock() (timetable.Clock, bool) {
	start := s.pos
	c, ok := s.clock()
	if ok && c.Hour == 24 {
		s.pos = start
		s.skipSpace()
		s.fail(labelTime)
		s.pos = start
		return c, false
	}
	return c, ok
}

func (s *scanner) anyTime() bool {
	_, ok := s.word(labelAnytime, anytimeSpellings...)
	return ok
}

// timeRange reads "hh:mm - hh:mm", "с hh:mm до hh:mm" or the anytime phrase.
func (s *scanner) timeRange() (timetable.DayTime, bool) {
	var dt timetable.DayTime
	if s.anyTime() {
		return timetable.Span(timetable.Clock{}, timetable.Midnight24), true
	}
	if s.try(func() bool {
		if _, ok := s.word(labelFrom, "с"); !ok {
			return false
		}
		from, ok := s.startClock()
		if !ok {
			return false
		}
		if _, ok := s.word(labelTill, "до"); !ok {
			return false
		}
		to, ok := s.clock()
		if !ok {
			return false
		}
		dt = timetable.Span(from, to)
		return true
	}) {
		return dt, true
	}
	ok := s.try(func() bool {
		from, ok := s.startClock()
		if !ok || !s.dash() {
			return false
		}
		to, ok := s.clock()
		if !ok {
			return false
		}
		dt = timetable.Span(from, to)
		return true
	})
	return dt, ok
}

func (s *scanner) timeOrTimeRange() (timetable.DayTime, bool) {
	if dt, ok := s.timeRange(); ok {
		return dt, true
	}
	c, ok := s.startClock()
	if !ok {
		return timetable.DayTime{}, false
	}
	return timetable.At(c), true
}

// timesOrTimeRanges reads one or more comma separated times or ranges.
func (s *scanner) timesOrTimeRanges() ([]timetable.DayTime, bool) {
	first, ok := s.timeOrTimeRange()
	if !ok {
		return nil, false
	}
	times := []timetable.DayTime{first}
	for {
		var next timetable.DayTime
		if !s.try(func() bool {
			if !s.comma() {
				return false
			}
			var ok bool
			next, ok = s.timeOrTimeRange()
			return ok
		}) {
			return times, true
		}
		times = append(times, next)
	}
}

// dateRange reads "с Date до|по Date" or "Date - Date". The flag reports
// the prepositional form.
func (s *scanner) dateRange() (timetable.DateRange, bool, bool) {
	if r, ok := s.prepositionalDateRange(); ok {
		return r, true, true
	}
	r, ok := s.hyphenDateRange()
	return r, false, ok
}

func (s *scanner) prepositionalDateRange() (timetable.DateRange, bool) {
	var r timetable.DateRange
	ok := s.try(func() bool {
		if _, ok := s.word(labelFrom, "с"); !ok {
			return false
		}
		from, ok := s.date()
		if !ok {
			return false
		}
		if _, ok := s.word(labelUntil, "до", "по"); !ok {
			return false
		}
		to, ok := s.date()
		if !ok {
			return false
		}
		r = timetable.Between(from, to)
		return true
	})
	return r, ok
}

func (s *scanner) hyphenDateRange() (timetable.DateRange, bool) {
	var r timetable.DateRange
	ok := s.try(func() bool {
		from, ok := s.date()
		if !ok || !s.dash() {
			return false
		}
		to, ok := s.date()
		if !ok {
			return false
		}
		r = timetable.Between(from, to)
		return true
	})
	return r, ok
}

// dateOrDateRange reads a hyphenated range or a single date.
func (s *scanner) dateOrDateRange() (timetable.DateRange, bool) {
	if r, ok := s.hyphenDateRange(); ok {
		return r, true
	}
	d, ok := s.date()
	if !ok {
		return timetable.DateRange{}, false
	}
	return timetable.SingleDate(d), true
}

func (s *scanner) weekDaySingle() (int, bool) {
	name, ok := s.word(labelWeekday, weekdaySpellings...)
	if !ok {
		return 0, false
	}
	if s.peek() == '.' {
		s.pos++
	}
	return weekdayNames[name], true
}

// weekDayRange reads "WeekDay - WeekDay". A range whose end precedes its
// start wraps around the end of the week.
func (s *scanner) weekDayRange() ([]int, bool) {
	var days []int
	ok := s.try(func() bool {
		from, ok := s.weekDaySingle()
		if !ok || !s.dash() {
			return false
		}
		to, ok := s.weekDaySingle()
		if !ok {
			return false
		}
		days = weekdaySpan(from, to)
		return true
	})
	return days, ok
}

func weekdaySpan(from, to int) []int {
	days := []int{from}
	for d := from; d != to; {
		d = d%7 + 1
		days = append(days, d)
	}
	return days
}

// weekDays reads a weekday group or a comma separated list of weekdays and
// weekday ranges, deduplicated in order of appearance.
func (s *scanner) weekDays() ([]int, bool) {
	if name, ok := s.word(labelEveryDay, groupSpellings...); ok {
		return append([]int(nil), weekdayGroups[name]...), true
	}

	var days []int
	seen := make(map[int]bool)
	add := func(ds []int) {
		for _, d := range ds {
			if !seen[d] {
				seen[d] = true
				days = append(days, d)
			}
		}
	}

	item := func() bool {
		if ds, ok := s.weekDayRange(); ok {
			add(ds)
			return true
		}
		d, ok := s.weekDaySingle()
		if ok {
			add([]int{d})
		}
		return ok
	}

	if !item() {
		return nil, false
	}
	for s.try(func() bool { return s.comma() && item() }) {
	}
	return days, true
}
