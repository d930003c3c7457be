package storage

import (
	"fmt"
	"time"

	"schedwatch/internal/config"
	"schedwatch/internal/timetable"
)

// Alert is a lead time before an occurrence starts
type Alert struct {
	Offset      time.Duration // How far before the occurrence to trigger
	Important   bool          // Whether this alert should use critical urgency
	Description string
}

// ConvertConfigAlert converts a config.AlertConfig to a storage.Alert
func ConvertConfigAlert(alertConfig config.AlertConfig) (Alert, error) {
	offset, err := alertConfig.Duration()
	if err != nil {
		return Alert{}, err
	}

	description := alertConfig.Before
	if description == "" {
		description = fmt.Sprintf("%d %s", alertConfig.Value, alertConfig.Unit)
	}

	return Alert{
		Offset:      offset,
		Important:   alertConfig.Important,
		Description: description + " warning",
	}, nil
}

// ConvertConfigAlerts converts a slice of config.AlertConfig to storage.Alert
func ConvertConfigAlerts(alertConfigs []config.AlertConfig) ([]Alert, error) {
	alerts := make([]Alert, 0, len(alertConfigs))

	for _, alertConfig := range alertConfigs {
		alert, err := ConvertConfigAlert(alertConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to convert alert config: %w", err)
		}
		alerts = append(alerts, alert)
	}

	return DeduplicateAlerts(alerts), nil
}

// DeduplicateAlerts keeps one alert per offset. An important alert wins
// over a plain one with the same offset.
func DeduplicateAlerts(alerts []Alert) []Alert {
	index := make(map[time.Duration]int)
	var unique []Alert

	for _, alert := range alerts {
		if i, seen := index[alert.Offset]; seen {
			if alert.Important && !unique[i].Important {
				unique[i] = alert
			}
			continue
		}
		index[alert.Offset] = len(unique)
		unique = append(unique, alert)
	}

	return unique
}

// AlertState represents the state of one alert for one occurrence
type AlertState int

const (
	AlertPending AlertState = iota
	AlertSent
)

// Schedule is one named schedule loaded from a catalog. Either Timetable
// is set or Errors explains why the text could not be parsed.
type Schedule struct {
	ID        string
	Name      string
	Text      string
	Important bool
	Source    string // catalog file the schedule came from
	Calendar  *Calendar

	Timetable *timetable.EventTimetable
	Errors    []string
}

// Valid reports whether the schedule can be expanded
func (s *Schedule) Valid() bool {
	return s.Timetable != nil && len(s.Errors) == 0
}

// Alerts returns the alerts of the schedule's calendar. Important
// schedules raise every alert as important.
func (s *Schedule) Alerts() []Alert {
	if s.Calendar == nil {
		return nil
	}
	alerts := s.Calendar.Alerts()
	if s.Important {
		for i := range alerts {
			alerts[i].Important = true
		}
	}
	return alerts
}

// Template returns the notification template of the schedule's calendar
func (s *Schedule) Template() string {
	if s.Calendar == nil {
		return ""
	}
	return s.Calendar.TemplateName()
}

// Occurrence is an expanded occurrence together with its schedule
type Occurrence struct {
	timetable.Occurrence
	Schedule *Schedule

	// Clipped marks a range that began before expansion time and was cut
	// at it, so its Start is not a real start.
	Clipped bool
}

// Key identifies the occurrence across re-expansions
func (o Occurrence) Key() string {
	return o.Schedule.ID + "@" + o.Start.UTC().Format(time.RFC3339)
}

// EndOrStart returns End for ranges and Start for points
func (o Occurrence) EndOrStart() time.Time {
	if o.IsRange() {
		return o.End
	}
	return o.Start
}
