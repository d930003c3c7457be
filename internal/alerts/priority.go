package alerts

import (
	"strings"
	"time"

	"schedwatch/internal/storage"
)

// Priority represents the priority level of an alert
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns a string representation of the priority
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PriorityClassifier determines alert priorities from the schedule and
// the occurrence shape
type PriorityClassifier struct {
	highPriorityKeywords     []string
	criticalPriorityKeywords []string
}

// NewPriorityClassifier creates a new priority classifier with default rules
func NewPriorityClassifier() *PriorityClassifier {
	return &PriorityClassifier{
		highPriorityKeywords: []string{
			"врач", "приём", "прием", "поликлиник", "больниц", "анализ",
			"экзамен", "собеседован", "встреч", "банк", "мфц", "паспорт",
			"doctor", "appointment", "interview", "exam", "meeting",
		},
		criticalPriorityKeywords: []string{
			"срочно", "важно", "последний день", "дедлайн",
			"urgent", "important", "deadline",
		},
	}
}

// Classify determines the priority of an alert
func (pc *PriorityClassifier) Classify(request AlertRequest) Priority {
	schedule := request.Occurrence.Schedule
	if request.Important || (schedule != nil && schedule.Important) {
		return PriorityCritical
	}
	if schedule == nil {
		return PriorityNormal
	}

	text := pc.getSearchableText(schedule)
	if containsAny(text, pc.criticalPriorityKeywords) {
		return PriorityCritical
	}

	priority := PriorityNormal
	if containsAny(text, pc.highPriorityKeywords) {
		priority = PriorityHigh
	}

	// Whole-day and anytime schedules are rarely urgent
	if pc.isAllDay(request.Occurrence) && priority > PriorityLow {
		priority = PriorityLow
	}

	return priority
}

// getSearchableText combines the schedule name and text for keyword search
func (pc *PriorityClassifier) getSearchableText(schedule *storage.Schedule) string {
	return strings.ToLower(schedule.Name + " " + schedule.Text)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// isAllDay reports whether the occurrence spans at least a day from midnight
func (pc *PriorityClassifier) isAllDay(occurrence storage.Occurrence) bool {
	if occurrence.Schedule.Timetable != nil && occurrence.Schedule.Timetable.Anytime {
		return true
	}
	if !occurrence.IsRange() {
		return false
	}
	start := occurrence.Start
	return start.Hour() == 0 && start.Minute() == 0 && occurrence.End.Sub(start) >= 24*time.Hour
}
