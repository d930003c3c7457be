package timetable

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDate_Valid(t *testing.T) {
	tests := []struct {
		name string
		date Date
		want bool
	}{
		{"regular", Date{2020, time.January, 4}, true},
		{"leap day", Date{2020, time.February, 29}, true},
		{"no leap day", Date{2021, time.February, 29}, false},
		{"november 31", Date{2020, time.November, 31}, false},
		{"day zero", Date{2020, time.May, 0}, false},
		{"unknown year", Date{UnknownYear, time.May, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.date.Valid(); got != tt.want {
				t.Errorf("Date.Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDate_String(t *testing.T) {
	if got := (Date{2020, time.November, 31}).String(); got != "2020-11-31" {
		t.Errorf("Date.String() = %q", got)
	}
	if got := (Date{UnknownYear, time.March, 8}).String(); got != "0000-03-08" {
		t.Errorf("Date.String() = %q", got)
	}
}

func TestDateRange_Bounds(t *testing.T) {
	r := Between(Date{2020, time.December, 30}, Date{2021, time.January, 2})
	start, end := r.Bounds(time.UTC)

	if !start.Equal(time.Date(2020, 12, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}

	single := SingleDate(Date{2020, time.March, 8})
	start, end = single.Bounds(time.UTC)
	if end.Sub(start) != 24*time.Hour {
		t.Errorf("single date should span one day, got %v", end.Sub(start))
	}
}

func TestDayTime(t *testing.T) {
	if got := Span(Clock{12, 0}, Clock{18, 30}).String(); got != "12:00-18:30" {
		t.Errorf("Span.String() = %q", got)
	}
	if got := At(Clock{9, 5}).String(); got != "09:05" {
		t.Errorf("At.String() = %q", got)
	}
	if !Span(Clock{22, 0}, Clock{2, 0}).Overnight() {
		t.Error("22:00-02:00 should be overnight")
	}
	if Span(Clock{0, 0}, Midnight24).Overnight() {
		t.Error("00:00-24:00 should not be overnight")
	}
}

func TestOccurrence_Equal(t *testing.T) {
	a := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)

	if !RangeOf(a, b).Equal(RangeOf(a.In(time.FixedZone("X", 3600)), b)) {
		t.Error("ranges with the same instants should be equal")
	}
	if PointAt(a).Equal(RangeOf(a, b)) {
		t.Error("point and range should differ")
	}
}

func TestEventTimetable_MarshalYAML(t *testing.T) {
	to := Date{2020, time.March, 9}
	tt := EventTimetable{
		WeekTimes: []WeekTime{{
			Weekdays: []int{3},
			Times:    []DayTime{Span(Clock{10, 0}, Clock{12, 0}), At(Clock{18, 30})},
		}},
		DatesExact: []DateExact{{
			DateRange: DateRange{From: Date{2020, time.March, 8}, To: &to},
		}},
	}

	out, err := yaml.Marshal(tt)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	for _, want := range []string{"10:00-12:00", "18:30", "2020-03-08", "2020-03-09"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(string(out), "hour") {
		t.Errorf("Clock fields leaked into output:\n%s", out)
	}
}
