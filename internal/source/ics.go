package source

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/apognu/gocal"

	"schedwatch/internal/storage"
	"schedwatch/internal/timetable"
)

// icsHorizon bounds recurring event expansion
const icsHorizon = 366 * 24 * time.Hour

// parseICS turns every VEVENT of an iCalendar file into an exact-date
// layer of a single schedule named after the file. Recurring events are
// expanded by gocal for the next year.
func (l *Loader) parseICS(reader io.Reader, name string) ([]*storage.Schedule, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read ICS data: %w", err)
	}
	if err := ValidateICS(data); err != nil {
		return nil, err
	}

	now := l.currentTime()
	start := timetable.DateOf(now).Midnight(l.timeZone).AddDate(0, 0, -1)
	end := now.Add(icsHorizon)

	cal := gocal.NewParser(bytes.NewReader(data))
	cal.Start, cal.End = &start, &end
	if err := cal.Parse(); err != nil {
		return nil, fmt.Errorf("failed to parse ICS data: %w", err)
	}

	layers := make(map[string]*timetable.DateExact)
	var order []string
	var summaries []string
	seenSummary := make(map[string]bool)

	for i, event := range cal.Events {
		if i >= l.maxSchedules {
			slog.Warn("Reached maximum event limit, skipping remaining events",
				"source", name, "limit", l.maxSchedules)
			break
		}

		dateRange, slot, err := l.convertEvent(event)
		if err != nil {
			slog.Warn("Skipping event", "source", name, "uid", event.Uid, "error", err)
			continue
		}

		key := dateRange.String()
		layer, exists := layers[key]
		if !exists {
			layer = &timetable.DateExact{DateRange: dateRange}
			layers[key] = layer
			order = append(order, key)
		}
		layer.Times = append(layer.Times, slot)

		if summary := strings.TrimSpace(event.Summary); summary != "" && !seenSummary[summary] {
			seenSummary[summary] = true
			summaries = append(summaries, summary)
		}
	}

	if len(order) == 0 {
		return nil, nil
	}

	sort.Strings(order)
	tt := &timetable.EventTimetable{}
	for _, key := range order {
		layer := layers[key]
		sort.SliceStable(layer.Times, func(i, j int) bool {
			return layer.Times[i].From.Minutes() < layer.Times[j].From.Minutes()
		})
		tt.DatesExact = append(tt.DatesExact, *layer)
	}

	id := baseID(name)
	return []*storage.Schedule{{
		ID:        id,
		Name:      id,
		Text:      strings.Join(summaries, "; "),
		Source:    name,
		Timetable: tt,
	}}, nil
}

// convertEvent maps an event onto a date range and a time slot. All-day
// events cover their whole days; timed events may run past midnight but
// not longer than a day.
func (l *Loader) convertEvent(event gocal.Event) (timetable.DateRange, timetable.DayTime, error) {
	if event.Start == nil {
		return timetable.DateRange{}, timetable.DayTime{}, fmt.Errorf("event missing DTSTART")
	}

	if isAllDay(event) {
		return allDayRange(event), timetable.Span(timetable.Clock{}, timetable.Midnight24), nil
	}

	start := event.Start.In(l.timeZone)
	day := timetable.DateOf(start)
	from := clockOf(start)

	if event.End == nil || !event.End.After(*event.Start) {
		return timetable.SingleDate(day), timetable.At(from), nil
	}
	end := event.End.In(l.timeZone)

	if end.Sub(start) > 24*time.Hour {
		return timetable.DateRange{}, timetable.DayTime{}, fmt.Errorf("timed event longer than a day")
	}

	to := clockOf(end)
	if to == (timetable.Clock{}) {
		to = timetable.Midnight24
	}
	return timetable.SingleDate(day), timetable.Span(from, to), nil
}

// isAllDay reports whether DTSTART is a DATE value
func isAllDay(event gocal.Event) bool {
	return event.RawStart.Params["VALUE"] == "DATE" || len(event.RawStart.Value) == len("20060102")
}

// allDayRange returns the days an all-day event covers. gocal ends an
// all-day event just before midnight of its exclusive DTEND date, so the
// end's own date is the last day. Dates float and are read in their own
// location.
func allDayRange(event gocal.Event) timetable.DateRange {
	first := timetable.DateOf(*event.Start)
	last := first
	if event.End != nil && event.End.After(*event.Start) {
		end := *event.End
		if clockOf(end) == (timetable.Clock{}) && end.Second() == 0 && end.Nanosecond() == 0 {
			end = end.AddDate(0, 0, -1)
		}
		if d := timetable.DateOf(end); first.Before(d) {
			last = d
		}
	}
	if last == first {
		return timetable.SingleDate(first)
	}
	return timetable.Between(first, last)
}

func clockOf(t time.Time) timetable.Clock {
	return timetable.Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// ValidateICS checks the component structure of ICS data without parsing
// properties
func ValidateICS(data []byte) error {
	content := string(data)

	if !strings.Contains(content, "BEGIN:VCALENDAR") {
		return fmt.Errorf("missing BEGIN:VCALENDAR")
	}
	if !strings.Contains(content, "END:VCALENDAR") {
		return fmt.Errorf("missing END:VCALENDAR")
	}

	var stack []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if component, ok := strings.CutPrefix(line, "BEGIN:"); ok {
			stack = append(stack, component)
		} else if component, ok := strings.CutPrefix(line, "END:"); ok {
			if len(stack) == 0 {
				return fmt.Errorf("unexpected END:%s without matching BEGIN", component)
			}
			if stack[len(stack)-1] != component {
				return fmt.Errorf("mismatched BEGIN/END: expected %s, got %s", stack[len(stack)-1], component)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed BEGIN statements: %v", stack)
	}

	return nil
}
