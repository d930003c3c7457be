package parser

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"schedwatch/internal/timetable"
)

func mustNow(t *testing.T, value string) time.Time {
	t.Helper()
	result, err := time.ParseInLocation("2006-01-02 15:04", value, time.UTC)
	if err != nil {
		t.Fatalf("Failed to parse time %s: %v", value, err)
	}
	return result
}

func date(y int, m time.Month, d int) timetable.Date {
	return timetable.Date{Year: y, Month: m, Day: d}
}

func clock(h, m int) timetable.Clock {
	return timetable.Clock{Hour: h, Minute: m}
}

func mustParse(t *testing.T, text string, now time.Time) *timetable.EventTimetable {
	t.Helper()
	res := Parse(text, now)
	if !res.OK() {
		t.Fatalf("Parse(%q) failed: %v", text, res.Errors)
	}
	return res.Timetable
}

func TestParse_WeekTimes(t *testing.T) {
	now := mustNow(t, "2020-03-04 10:00")

	tests := []struct {
		name string
		text string
		want []timetable.WeekTime
	}{
		{
			name: "weekday range with prepositional times",
			text: "пн-пт: с 12 до 18",
			want: []timetable.WeekTime{{
				Weekdays: []int{1, 2, 3, 4, 5},
				Times:    []timetable.DayTime{timetable.Span(clock(12, 0), clock(18, 0))},
			}},
		},
		{
			name: "range wraps around the week",
			text: "сб-вт: 10:00",
			want: []timetable.WeekTime{{
				Weekdays: []int{6, 7, 1, 2},
				Times:    []timetable.DayTime{timetable.At(clock(10, 0))},
			}},
		},
		{
			name: "spelling variants and dotted minutes",
			text: "Понедельник, среду, ПЯТНИЦЫ: 9.30",
			want: []timetable.WeekTime{{
				Weekdays: []int{1, 3, 5},
				Times:    []timetable.DayTime{timetable.At(clock(9, 30))},
			}},
		},
		{
			name: "short forms with dots",
			text: "чет., субб.: 7",
			want: []timetable.WeekTime{{
				Weekdays: []int{4, 6},
				Times:    []timetable.DayTime{timetable.At(clock(7, 0))},
			}},
		},
		{
			name: "every day with several ranges",
			text: "ежедневно: 10-14, 15:30-22:00",
			want: []timetable.WeekTime{{
				Weekdays: []int{1, 2, 3, 4, 5, 6, 7},
				Times: []timetable.DayTime{
					timetable.Span(clock(10, 0), clock(14, 0)),
					timetable.Span(clock(15, 30), clock(22, 0)),
				},
			}},
		},
		{
			name: "anytime as a slot",
			text: "сб, вс: круглосуточно",
			want: []timetable.WeekTime{{
				Weekdays: []int{6, 7},
				Times:    []timetable.DayTime{timetable.Span(clock(0, 0), timetable.Midnight24)},
			}},
		},
		{
			name: "comma joined weekday timetables",
			text: "пн-вт: 11:00-20:00, ср: 11:00-21:00",
			want: []timetable.WeekTime{
				{Weekdays: []int{1, 2}, Times: []timetable.DayTime{timetable.Span(clock(11, 0), clock(20, 0))}},
				{Weekdays: []int{3}, Times: []timetable.DayTime{timetable.Span(clock(11, 0), clock(21, 0))}},
			},
		},
		{
			name: "entries split by semicolon and newlines",
			text: "пн: 10; вт: 11\n\n ср: 12 ;",
			want: []timetable.WeekTime{
				{Weekdays: []int{1}, Times: []timetable.DayTime{timetable.At(clock(10, 0))}},
				{Weekdays: []int{2}, Times: []timetable.DayTime{timetable.At(clock(11, 0))}},
				{Weekdays: []int{3}, Times: []timetable.DayTime{timetable.At(clock(12, 0))}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.text, now)
			if !reflect.DeepEqual(got.WeekTimes, tt.want) {
				t.Errorf("WeekTimes = %+v, want %+v", got.WeekTimes, tt.want)
			}
			if got.Anytime || len(got.DatesExact) != 0 || len(got.DateRangesTimetable) != 0 {
				t.Errorf("unexpected layers: %+v", got)
			}
		})
	}
}

func TestParse_DeduplicatesWeekdays(t *testing.T) {
	got := mustParse(t, "пн-ср, вт, пн: 10-12", mustNow(t, "2020-03-04 10:00"))
	want := []int{1, 2, 3}
	if !reflect.DeepEqual(got.WeekTimes[0].Weekdays, want) {
		t.Errorf("Weekdays = %v, want %v", got.WeekTimes[0].Weekdays, want)
	}
}

func TestParse_WeekdayGroups(t *testing.T) {
	got := mustParse(t, "будни: 9-18; выходные: 10-16", mustNow(t, "2020-03-04 10:00"))
	if !reflect.DeepEqual(got.WeekTimes[0].Weekdays, []int{1, 2, 3, 4, 5}) {
		t.Errorf("weekdays = %v", got.WeekTimes[0].Weekdays)
	}
	if !reflect.DeepEqual(got.WeekTimes[1].Weekdays, []int{6, 7}) {
		t.Errorf("weekend = %v", got.WeekTimes[1].Weekdays)
	}
}

func TestParse_DateRangeTimetable(t *testing.T) {
	now := mustNow(t, "2020-01-01 09:00")
	got := mustParse(t, "с 4 января 2020 до 24 декабря 2020: пн-вт: 11:00-20:00, ср: 11:00-21:00", now)

	want := []timetable.DateRangeTimetable{{
		DateRange: timetable.Between(date(2020, time.January, 4), date(2020, time.December, 24)),
		WeekTimes: []timetable.WeekTime{
			{Weekdays: []int{1, 2}, Times: []timetable.DayTime{timetable.Span(clock(11, 0), clock(20, 0))}},
			{Weekdays: []int{3}, Times: []timetable.DayTime{timetable.Span(clock(11, 0), clock(21, 0))}},
		},
	}}
	if !reflect.DeepEqual(got.DateRangesTimetable, want) {
		t.Errorf("DateRangesTimetable = %+v, want %+v", got.DateRangesTimetable, want)
	}
	if len(got.WeekTimes) != 0 {
		t.Errorf("WeekTimes should be empty, got %+v", got.WeekTimes)
	}
}

func TestParse_DateRangeTimetableOverLines(t *testing.T) {
	now := mustNow(t, "2020-01-01 09:00")
	text := "пн-пт: 9-18\nс 1 июня по 31 августа:\nпн-пт: 10-16\nсб: 11-15;\n8 марта: 12-15"
	got := mustParse(t, text, now)

	if len(got.WeekTimes) != 1 {
		t.Fatalf("WeekTimes = %+v", got.WeekTimes)
	}
	if len(got.DateRangesTimetable) != 1 || len(got.DateRangesTimetable[0].WeekTimes) != 2 {
		t.Fatalf("DateRangesTimetable = %+v", got.DateRangesTimetable)
	}
	wantRange := timetable.Between(date(2020, time.June, 1), date(2020, time.August, 31))
	if !reflect.DeepEqual(got.DateRangesTimetable[0].DateRange, wantRange) {
		t.Errorf("DateRange = %v, want %v", got.DateRangesTimetable[0].DateRange, wantRange)
	}
	if len(got.DatesExact) != 1 || got.DatesExact[0].DateRange.From != date(2020, time.March, 8) {
		t.Errorf("DatesExact = %+v", got.DatesExact)
	}
}

func TestParse_ExactDates(t *testing.T) {
	tests := []struct {
		name string
		text string
		now  string
		want []timetable.DateExact
	}{
		{
			name: "year rolls over when the date has passed",
			text: "1 января: 12:00",
			now:  "2020-01-02 08:00",
			want: []timetable.DateExact{{
				DateRange: timetable.SingleDate(date(2021, time.January, 1)),
				Times:     []timetable.DayTime{timetable.At(clock(12, 0))},
			}},
		},
		{
			name: "today keeps the current year",
			text: "2 января: 12:00",
			now:  "2020-01-02 18:00",
			want: []timetable.DateExact{{
				DateRange: timetable.SingleDate(date(2020, time.January, 2)),
				Times:     []timetable.DayTime{timetable.At(clock(12, 0))},
			}},
		},
		{
			name: "explicit year is kept",
			text: "15 мая 2020: 10:00, 19:00",
			now:  "2021-06-01 08:00",
			want: []timetable.DateExact{{
				DateRange: timetable.SingleDate(date(2020, time.May, 15)),
				Times:     []timetable.DayTime{timetable.At(clock(10, 0)), timetable.At(clock(19, 0))},
			}},
		},
		{
			name: "hyphenated date range",
			text: "8 марта - 10 марта: с 12:00 до 15:00",
			now:  "2020-01-02 08:00",
			want: []timetable.DateExact{{
				DateRange: timetable.Between(date(2020, time.March, 8), date(2020, time.March, 10)),
				Times:     []timetable.DayTime{timetable.Span(clock(12, 0), clock(15, 0))},
			}},
		},
		{
			name: "single day prepositional range",
			text: "с 1 июня по 1 июня: 10-18",
			now:  "2020-01-02 08:00",
			want: []timetable.DateExact{{
				DateRange: timetable.SingleDate(date(2020, time.June, 1)),
				Times:     []timetable.DayTime{timetable.Span(clock(10, 0), clock(18, 0))},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.text, mustNow(t, tt.now))
			if !reflect.DeepEqual(got.DatesExact, tt.want) {
				t.Errorf("DatesExact = %+v, want %+v", got.DatesExact, tt.want)
			}
		})
	}
}

func TestParse_DailyWindow(t *testing.T) {
	got := mustParse(t, "с 1 июня по 3 июня: 10-18", mustNow(t, "2020-05-01 08:00"))

	want := []timetable.DateRangeTimetable{{
		DateRange: timetable.Between(date(2020, time.June, 1), date(2020, time.June, 3)),
		WeekTimes: []timetable.WeekTime{{
			Weekdays: []int{1, 2, 3, 4, 5, 6, 7},
			Times:    []timetable.DayTime{timetable.Span(clock(10, 0), clock(18, 0))},
		}},
	}}
	if !reflect.DeepEqual(got.DateRangesTimetable, want) {
		t.Errorf("DateRangesTimetable = %+v, want %+v", got.DateRangesTimetable, want)
	}
}

func TestParse_RangeAcrossNewYear(t *testing.T) {
	tests := []struct {
		now      string
		from, to timetable.Date
	}{
		{"2021-01-05 12:00", date(2020, time.December, 25), date(2021, time.January, 10)},
		{"2020-11-15 12:00", date(2020, time.December, 25), date(2021, time.January, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.now, func(t *testing.T) {
			got := mustParse(t, "с 25 декабря по 10 января: пн-пт: 10-18", mustNow(t, tt.now))
			want := timetable.Between(tt.from, tt.to)
			if !reflect.DeepEqual(got.DateRangesTimetable[0].DateRange, want) {
				t.Errorf("DateRange = %v, want %v", got.DateRangesTimetable[0].DateRange, want)
			}
		})
	}
}

func TestParse_Anytime(t *testing.T) {
	for _, text := range []string{"круглосуточно", "  Круглосуточно\n", "в любое время"} {
		got := mustParse(t, text, mustNow(t, "2020-01-02 08:00"))
		if !got.Anytime {
			t.Errorf("Parse(%q).Anytime = false", text)
		}
	}
}

func TestParse_InvalidDate(t *testing.T) {
	res := Parse("31 ноября 2020: с 12 до 18", mustNow(t, "2020-01-02 08:00"))
	if res.OK() {
		t.Fatal("Parse should reject November 31")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", res.Errors)
	}
	if !strings.Contains(res.Errors[0], "2020-11-31") || !strings.Contains(res.Errors[0], "не может существовать") {
		t.Errorf("unexpected error %q", res.Errors[0])
	}
}

func TestParse_ReversedRange(t *testing.T) {
	res := Parse("с 10 марта 2020 по 1 марта 2020: 10-12", mustNow(t, "2020-01-02 08:00"))
	if res.OK() || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "позже") {
		t.Errorf("Errors = %v", res.Errors)
	}
}

func TestParse_Diagnostics(t *testing.T) {
	now := mustNow(t, "2020-01-02 08:00")

	tests := []struct {
		name     string
		text     string
		count    int
		contains []string
	}{
		{
			name:     "empty input",
			text:     "  \n ",
			count:    1,
			contains: []string{"Пустая строка"},
		},
		{
			name:     "input ends too early",
			text:     "пн:",
			count:    1,
			contains: []string{"Строка закончилась", labelTime},
		},
		{
			name:     "nothing recognised",
			text:     "завтра в 10",
			count:    1,
			contains: []string{"Не удалось распознать", labelWeekday, labelDay},
		},
		{
			name:     "invalid hour in the middle",
			text:     "пн: 25:00",
			count:    3,
			contains: []string{"«пн: »", labelTime, "«25:00»"},
		},
		{
			name:     "garbage after a valid entry",
			text:     "пн: 10 потом",
			count:    3,
			contains: []string{"«пн: 10 »", labelSeparator, "«потом»"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.text, now)
			if res.OK() {
				t.Fatalf("Parse(%q) should fail", tt.text)
			}
			if len(res.Errors) != tt.count {
				t.Fatalf("Errors = %q, want %d messages", res.Errors, tt.count)
			}
			joined := strings.Join(res.Errors, "\n")
			for _, c := range tt.contains {
				if !strings.Contains(joined, c) {
					t.Errorf("Errors %q should mention %q", res.Errors, c)
				}
			}
		})
	}
}

func TestParse_RejectsRangeStartingAtMidnight(t *testing.T) {
	now := mustNow(t, "2020-01-02 08:00")
	if res := Parse("пн: 24:00 - 1", now); res.OK() {
		t.Fatalf("Parse should fail, got %+v", res.Timetable)
	}
	if res := Parse("пн: 22:00 - 24:00", now); !res.OK() {
		t.Fatalf("Parse should accept 24:00 as an end, got %v", res.Errors)
	}
}

func TestWeekdaySpan(t *testing.T) {
	tests := []struct {
		from, to int
		want     []int
	}{
		{6, 2, []int{6, 7, 1, 2}},
		{1, 5, []int{1, 2, 3, 4, 5}},
		{3, 3, []int{3}},
		{7, 1, []int{7, 1}},
	}

	for _, tt := range tests {
		if got := weekdaySpan(tt.from, tt.to); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("weekdaySpan(%d, %d) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
