package storage

import (
	"sort"
	"sync"
	"time"

	"schedwatch/internal/recurrence"
	"schedwatch/internal/timetable"
)

// ScheduleStorage manages schedules and their expanded occurrences
type ScheduleStorage interface {
	// Schedule management
	UpsertSchedule(schedule *Schedule) error
	DeleteSchedule(id string) error
	DeleteBySource(source string) int
	GetSchedule(id string) (*Schedule, bool)
	GetAllSchedules() []*Schedule

	// Expansion and queries
	Regenerate(now time.Time, daysAhead int)
	OccurrencesForDay(date time.Time) []Occurrence
	OccurrencesWithin(start, end time.Time) []Occurrence
	Upcoming(from time.Time, duration time.Duration) []Occurrence

	// Alert state tracking
	GetAlertState(occurrence Occurrence, offset time.Duration) AlertState
	SetAlertState(occurrence Occurrence, offset time.Duration, state AlertState)

	// Calendar management
	EnsureCalendar(path string, template string, automaticAlerts []Alert) *Calendar
	GetCalendar(path string) (*Calendar, bool)
	Clear() error
}

type alertKey struct {
	occurrence string
	offset     time.Duration
}

type alertRecord struct {
	state AlertState
	start time.Time
}

// MemoryScheduleStorage implements ScheduleStorage using in-memory maps
type MemoryScheduleStorage struct {
	// Schedules by ID
	schedules map[string]*Schedule

	// Expanded occurrences by schedule ID, earliest first
	occurrences map[string][]Occurrence

	// Daily index for fast lookups - map[YYYY-MM-DD][]Occurrence
	dailyIndex map[string][]Occurrence

	// Source file -> schedule IDs loaded from it
	sourceToIDs map[string]map[string]bool

	calendars   map[string]*Calendar
	alertStates map[alertKey]alertRecord

	// Parameters of the last expansion
	generatedAt time.Time
	daysAhead   int

	mutex sync.RWMutex
}

// NewMemoryScheduleStorage creates a new in-memory schedule storage
func NewMemoryScheduleStorage() *MemoryScheduleStorage {
	return &MemoryScheduleStorage{
		schedules:   make(map[string]*Schedule),
		occurrences: make(map[string][]Occurrence),
		dailyIndex:  make(map[string][]Occurrence),
		sourceToIDs: make(map[string]map[string]bool),
		calendars:   make(map[string]*Calendar),
		alertStates: make(map[alertKey]alertRecord),
	}
}

// UpsertSchedule adds or replaces a schedule. When the storage has been
// expanded before, the schedule is expanded with the same parameters.
func (s *MemoryScheduleStorage) UpsertSchedule(schedule *Schedule) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if old, exists := s.schedules[schedule.ID]; exists {
		s.untrackLocked(old)
	}

	s.schedules[schedule.ID] = schedule
	if schedule.Source != "" {
		if s.sourceToIDs[schedule.Source] == nil {
			s.sourceToIDs[schedule.Source] = make(map[string]bool)
		}
		s.sourceToIDs[schedule.Source][schedule.ID] = true
	}

	if !s.generatedAt.IsZero() {
		s.expandLocked(schedule)
		s.rebuildIndexLocked()
	}
	return nil
}

// DeleteSchedule removes a schedule and its occurrences
func (s *MemoryScheduleStorage) DeleteSchedule(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	schedule, exists := s.schedules[id]
	if !exists {
		return nil
	}
	s.untrackLocked(schedule)
	delete(s.schedules, id)
	s.rebuildIndexLocked()
	return nil
}

// DeleteBySource removes every schedule loaded from source and returns
// how many were removed.
func (s *MemoryScheduleStorage) DeleteBySource(source string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ids := s.sourceToIDs[source]
	removed := len(ids)
	for id := range ids {
		if schedule, exists := s.schedules[id]; exists {
			s.untrackLocked(schedule)
			delete(s.schedules, id)
		}
	}
	delete(s.sourceToIDs, source)
	s.rebuildIndexLocked()
	return removed
}

// untrackLocked drops a schedule's occurrences and source mapping (must be
// called with lock held)
func (s *MemoryScheduleStorage) untrackLocked(schedule *Schedule) {
	delete(s.occurrences, schedule.ID)
	if ids, exists := s.sourceToIDs[schedule.Source]; exists {
		delete(ids, schedule.ID)
		if len(ids) == 0 {
			delete(s.sourceToIDs, schedule.Source)
		}
	}
}

// GetSchedule returns a schedule by ID
func (s *MemoryScheduleStorage) GetSchedule(id string) (*Schedule, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	schedule, exists := s.schedules[id]
	return schedule, exists
}

// GetAllSchedules returns all schedules ordered by ID
func (s *MemoryScheduleStorage) GetAllSchedules() []*Schedule {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	schedules := make([]*Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		schedules = append(schedules, schedule)
	}
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })
	return schedules
}

// GetScheduleCount returns the total number of schedules in storage
func (s *MemoryScheduleStorage) GetScheduleCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.schedules)
}

// Regenerate re-expands every valid schedule over
// [now, start of now's day + daysAhead days) and drops alert state for
// occurrences that ended more than a day ago.
func (s *MemoryScheduleStorage) Regenerate(now time.Time, daysAhead int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.generatedAt = now
	s.daysAhead = daysAhead
	s.occurrences = make(map[string][]Occurrence)
	for _, schedule := range s.schedules {
		s.expandLocked(schedule)
	}
	s.rebuildIndexLocked()

	cutoff := now.Add(-24 * time.Hour)
	for key, record := range s.alertStates {
		if record.start.Before(cutoff) {
			delete(s.alertStates, key)
		}
	}
}

// expandLocked expands one schedule (must be called with lock held)
func (s *MemoryScheduleStorage) expandLocked(schedule *Schedule) {
	if !schedule.Valid() {
		delete(s.occurrences, schedule.ID)
		return
	}

	generated := recurrence.Generate(schedule.Timetable, s.generatedAt, s.daysAhead)
	var runningUntil *time.Time
	occurrences := make([]Occurrence, 0, len(generated))
	// generated is latest first
	for i := len(generated) - 1; i >= 0; i-- {
		o := generated[i]
		clipped := false
		if o.IsRange() && o.Start.Equal(s.generatedAt) {
			if runningUntil == nil {
				until := s.runningUntilLocked(schedule)
				runningUntil = &until
			}
			clipped = !o.End.After(*runningUntil)
		}
		occurrences = append(occurrences, Occurrence{
			Occurrence: o,
			Schedule:   schedule,
			Clipped:    clipped,
		})
	}
	s.occurrences[schedule.ID] = occurrences
}

// runningUntilLocked returns the latest end of the schedule's ranges that
// began before generatedAt and are still running at it, or generatedAt when
// none is. Expanding from just before generatedAt keeps those ranges whole;
// the extra day keeps the window end when that instant falls on the
// previous day.
func (s *MemoryScheduleStorage) runningUntilLocked(schedule *Schedule) time.Time {
	until := s.generatedAt
	for _, o := range recurrence.Generate(schedule.Timetable, s.generatedAt.Add(-time.Nanosecond), s.daysAhead+1) {
		if o.IsRange() && o.Start.Before(s.generatedAt) && o.End.After(until) {
			until = o.End
		}
	}
	return until
}

// rebuildIndexLocked rebuilds the daily index (must be called with lock held)
func (s *MemoryScheduleStorage) rebuildIndexLocked() {
	s.dailyIndex = make(map[string][]Occurrence)

	for _, occurrences := range s.occurrences {
		for _, o := range occurrences {
			for _, key := range dayKeys(o) {
				s.dailyIndex[key] = append(s.dailyIndex[key], o)
			}
		}
	}
	for key := range s.dailyIndex {
		sortOccurrences(s.dailyIndex[key])
	}
}

// dayKeys lists the calendar days an occurrence touches
func dayKeys(o Occurrence) []string {
	keys := []string{formatDateKey(o.Start)}
	if !o.IsRange() {
		return keys
	}
	loc := o.Start.Location()
	day := timetable.DateOf(o.Start).Midnight(loc).AddDate(0, 0, 1)
	for day.Before(o.End) {
		keys = append(keys, formatDateKey(day))
		day = day.AddDate(0, 0, 1)
	}
	return keys
}

// OccurrencesForDay returns the occurrences touching the calendar day of date
func (s *MemoryScheduleStorage) OccurrencesForDay(date time.Time) []Occurrence {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	occurrences, exists := s.dailyIndex[formatDateKey(date)]
	if !exists {
		return []Occurrence{}
	}
	// Return a copy to prevent external modification
	result := make([]Occurrence, len(occurrences))
	copy(result, occurrences)
	return result
}

// OccurrencesWithin returns ranges overlapping [start, end) and points
// inside it, earliest first
func (s *MemoryScheduleStorage) OccurrencesWithin(start, end time.Time) []Occurrence {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	w := recurrence.Window{Start: start, End: end}
	var result []Occurrence
	for _, occurrences := range s.occurrences {
		for _, o := range occurrences {
			if o.IsRange() {
				if o.Start.Before(end) && o.End.After(start) {
					result = append(result, o)
				}
			} else if w.Contains(o.Start) {
				result = append(result, o)
			}
		}
	}
	sortOccurrences(result)
	return result
}

// Upcoming returns occurrences starting within duration from the given
// time, earliest first. Clipped ranges are not upcoming.
func (s *MemoryScheduleStorage) Upcoming(from time.Time, duration time.Duration) []Occurrence {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	w := recurrence.Window{Start: from, End: from.Add(duration)}
	var result []Occurrence
	for _, occurrences := range s.occurrences {
		for _, o := range occurrences {
			if !o.Clipped && w.Contains(o.Start) {
				result = append(result, o)
			}
		}
	}
	sortOccurrences(result)
	return result
}

// GetAlertState returns the alert state for an occurrence and offset
func (s *MemoryScheduleStorage) GetAlertState(occurrence Occurrence, offset time.Duration) AlertState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.alertStates[alertKey{occurrence.Key(), offset}].state
}

// SetAlertState records the alert state for an occurrence and offset
func (s *MemoryScheduleStorage) SetAlertState(occurrence Occurrence, offset time.Duration, state AlertState) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.alertStates[alertKey{occurrence.Key(), offset}] = alertRecord{state: state, start: occurrence.Start}
}

// EnsureCalendar creates the Calendar for the given path, or updates the
// template and automatic alerts of the existing one
func (s *MemoryScheduleStorage) EnsureCalendar(path string, template string, automaticAlerts []Alert) *Calendar {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if calendar, exists := s.calendars[path]; exists {
		calendar.UpdateAutomaticAlerts(automaticAlerts)
		calendar.UpdateTemplate(template)
		return calendar
	}

	calendar := NewCalendar(path, template, automaticAlerts)
	s.calendars[path] = calendar
	return calendar
}

// GetCalendar returns the Calendar for the given path
func (s *MemoryScheduleStorage) GetCalendar(path string) (*Calendar, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	calendar, exists := s.calendars[path]
	return calendar, exists
}

// Clear removes everything from storage
func (s *MemoryScheduleStorage) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.schedules = make(map[string]*Schedule)
	s.occurrences = make(map[string][]Occurrence)
	s.dailyIndex = make(map[string][]Occurrence)
	s.sourceToIDs = make(map[string]map[string]bool)
	s.calendars = make(map[string]*Calendar)
	s.alertStates = make(map[alertKey]alertRecord)
	s.generatedAt = time.Time{}
	s.daysAhead = 0

	return nil
}

func sortOccurrences(occurrences []Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		if !occurrences[i].Start.Equal(occurrences[j].Start) {
			return occurrences[i].Start.Before(occurrences[j].Start)
		}
		return occurrences[i].Schedule.ID < occurrences[j].Schedule.ID
	})
}

// formatDateKey formats a date as YYYY-MM-DD for use as map key
func formatDateKey(date time.Time) string {
	return date.Format("2006-01-02")
}
