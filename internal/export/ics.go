// Package export writes expanded occurrences as an iCalendar feed, so the
// schedules can be subscribed to from a calendar application.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"schedwatch/internal/config"
	"schedwatch/internal/storage"
)

const productID = "-//" + config.AppName + "//Schedule export//RU"

// Calendar builds a VCALENDAR with one VEVENT per occurrence. Ranges that
// cover whole days from midnight become all-day events.
func Calendar(occurrences []storage.Occurrence, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(config.AppName)

	for _, occurrence := range occurrences {
		event := cal.AddEvent(occurrence.Key() + "@" + config.AppName)
		event.SetDtStampTime(stamp)

		switch {
		case isWholeDays(occurrence):
			event.SetAllDayStartAt(occurrence.Start)
			event.SetAllDayEndAt(occurrence.End)
		case occurrence.IsRange():
			event.SetStartAt(occurrence.Start)
			event.SetEndAt(occurrence.End)
		default:
			event.SetStartAt(occurrence.Start)
		}

		if schedule := occurrence.Schedule; schedule != nil {
			event.SetSummary(schedule.Name)
			if schedule.Text != "" {
				event.SetDescription(schedule.Text)
			}
		}
	}

	return cal
}

// Write serializes occurrences as iCalendar to w
func Write(w io.Writer, occurrences []storage.Occurrence, stamp time.Time) error {
	if _, err := io.WriteString(w, Calendar(occurrences, stamp).Serialize()); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}

func isWholeDays(occurrence storage.Occurrence) bool {
	if !occurrence.IsRange() {
		return false
	}
	start, end := occurrence.Start, occurrence.End
	return start.Hour() == 0 && start.Minute() == 0 &&
		end.Hour() == 0 && end.Minute() == 0 && end.After(start)
}

// Filename suggests a file name for an export made at t
func Filename(t time.Time) string {
	return strings.Join([]string{config.AppName, t.Format("20060102")}, "-") + ".ics"
}
