package alerts

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"schedwatch/internal/storage"
)

// lateThreshold separates on-time alerts from ones caught up after downtime
const lateThreshold = time.Minute

// AlertRequest represents a request to send a notification
type AlertRequest struct {
	Occurrence  storage.Occurrence
	AlertOffset time.Duration
	Template    string
	Important   bool
	Late        bool // fire time passed more than a minute before the check
}

// FireTime returns when the alert was due
func (r AlertRequest) FireTime() time.Time {
	return r.Occurrence.Start.Add(-r.AlertOffset)
}

// AlertScheduler manages alert timing and scheduling logic
type AlertScheduler interface {
	CheckAlerts() []AlertRequest
	ScheduleNextCheck() time.Duration
	SetScheduleStorage(storage storage.ScheduleStorage)
	GetNextCheckTime() time.Time
}

// MinuteBasedScheduler implements AlertScheduler with minute-level
// precision. Each check fires the alerts whose due time lies in
// (last check, now], so alerts missed while the daemon was stopped are
// delivered late instead of being lost.
type MinuteBasedScheduler struct {
	scheduleStorage storage.ScheduleStorage
	stateManager    storage.StateManager
	lastCheckTime   time.Time
	now             func() time.Time
	mutex           sync.Mutex
}

// NewMinuteBasedScheduler creates a new minute-based alert scheduler. When
// stateManager is not nil the last check time is restored from it and
// persisted after every check.
func NewMinuteBasedScheduler(stateManager storage.StateManager) *MinuteBasedScheduler {
	s := &MinuteBasedScheduler{
		stateManager: stateManager,
		now:          time.Now,
	}
	s.lastCheckTime = s.now().Truncate(time.Minute)

	if stateManager != nil {
		if tick := stateManager.GetLastAlertTick(); !tick.IsZero() && tick.Before(s.lastCheckTime) {
			s.lastCheckTime = tick
		}
	}
	return s
}

// SetScheduleStorage sets the storage to use for checking alerts
func (s *MinuteBasedScheduler) SetScheduleStorage(storage storage.ScheduleStorage) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.scheduleStorage = storage
}

// SetClock replaces the scheduler's notion of now
func (s *MinuteBasedScheduler) SetClock(now func() time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.now = now
}

// SetLastCheckTime moves the start of the next check window
func (s *MinuteBasedScheduler) SetLastCheckTime(t time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastCheckTime = t
}

// CheckAlerts returns the alerts that came due since the previous check
// and marks them sent
func (s *MinuteBasedScheduler) CheckAlerts() []AlertRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.scheduleStorage == nil {
		return nil
	}

	now := s.now()
	from := s.lastCheckTime
	if !from.Before(now) {
		return nil
	}

	// Occurrences starting after now + the longest lead time cannot alert yet
	var maxOffset time.Duration
	for _, schedule := range s.scheduleStorage.GetAllSchedules() {
		for _, alert := range schedule.Alerts() {
			if alert.Offset > maxOffset {
				maxOffset = alert.Offset
			}
		}
	}

	var requests []AlertRequest
	candidates := s.scheduleStorage.Upcoming(from, now.Sub(from)+maxOffset+time.Nanosecond)
	for _, occurrence := range candidates {
		requests = append(requests, s.checkOccurrenceAlerts(occurrence, from, now)...)
	}

	s.lastCheckTime = now
	if s.stateManager != nil {
		if err := s.stateManager.SetLastAlertTick(now); err != nil {
			slog.Warn("Failed to persist alert tick", "error", err)
		}
	}

	return requests
}

// checkOccurrenceAlerts checks a single occurrence for all of its alerts
func (s *MinuteBasedScheduler) checkOccurrenceAlerts(occurrence storage.Occurrence, from, now time.Time) []AlertRequest {
	// Started already, a reminder is pointless
	if !occurrence.Start.After(now) {
		return nil
	}

	var requests []AlertRequest
	for _, alert := range occurrence.Schedule.Alerts() {
		fire := occurrence.Start.Add(-alert.Offset)
		if !fire.After(from) || fire.After(now) {
			continue
		}
		if s.scheduleStorage.GetAlertState(occurrence, alert.Offset) == storage.AlertSent {
			continue
		}

		// Mark alert as sent to prevent duplicates
		s.scheduleStorage.SetAlertState(occurrence, alert.Offset, storage.AlertSent)

		requests = append(requests, AlertRequest{
			Occurrence:  occurrence,
			AlertOffset: alert.Offset,
			Template:    occurrence.Schedule.Template(),
			Important:   alert.Important,
			Late:        now.Sub(fire) > lateThreshold,
		})
	}

	return requests
}

// ScheduleNextCheck returns the duration until the next check should occur
func (s *MinuteBasedScheduler) ScheduleNextCheck() time.Duration {
	now := s.clock()
	return now.Truncate(time.Minute).Add(time.Minute).Sub(now)
}

// GetNextCheckTime returns the absolute time of the next check
func (s *MinuteBasedScheduler) GetNextCheckTime() time.Time {
	return s.clock().Truncate(time.Minute).Add(time.Minute)
}

func (s *MinuteBasedScheduler) clock() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.now()
}

// AlertStats provides statistics about the alert system
type AlertStats struct {
	TotalSchedules      int
	InvalidSchedules    int
	PendingAlerts       int
	SentAlerts          int
	UpcomingOccurrences int
	LastCheckTime       time.Time
	NextCheckTime       time.Time
}

// GetAlertStats returns statistics about the current alert state
func (s *MinuteBasedScheduler) GetAlertStats() AlertStats {
	stats := AlertStats{NextCheckTime: s.GetNextCheckTime()}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	stats.LastCheckTime = s.lastCheckTime
	if s.scheduleStorage == nil {
		return stats
	}

	schedules := s.scheduleStorage.GetAllSchedules()
	stats.TotalSchedules = len(schedules)
	for _, schedule := range schedules {
		if !schedule.Valid() {
			stats.InvalidSchedules++
		}
	}

	// Count upcoming occurrences (next 7 days)
	now := s.now()
	upcoming := s.scheduleStorage.Upcoming(now, 7*24*time.Hour)
	stats.UpcomingOccurrences = len(upcoming)

	// Count pending and sent alerts for today's occurrences
	for _, occurrence := range s.scheduleStorage.OccurrencesForDay(now) {
		for _, alert := range occurrence.Schedule.Alerts() {
			switch s.scheduleStorage.GetAlertState(occurrence, alert.Offset) {
			case storage.AlertPending:
				stats.PendingAlerts++
			case storage.AlertSent:
				stats.SentAlerts++
			}
		}
	}

	return stats
}

// AlertManager runs a scheduler once a minute and publishes due alerts
type AlertManager struct {
	scheduler AlertScheduler
	isRunning bool
	stopChan  chan struct{}
	alertChan chan []AlertRequest
	mutex     sync.Mutex
}

// NewAlertManager creates a new alert manager
func NewAlertManager(scheduler AlertScheduler) *AlertManager {
	return &AlertManager{
		scheduler: scheduler,
		stopChan:  make(chan struct{}),
		alertChan: make(chan []AlertRequest, 10),
	}
}

// Start starts the alert manager
func (am *AlertManager) Start() error {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if am.isRunning {
		return fmt.Errorf("alert manager is already running")
	}

	am.isRunning = true
	go am.run()
	return nil
}

// Stop stops the alert manager. The alert channel is closed once the loop
// exits.
func (am *AlertManager) Stop() error {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if !am.isRunning {
		return nil
	}

	am.isRunning = false
	close(am.stopChan)
	return nil
}

// GetAlertChannel returns the channel for receiving alert requests
func (am *AlertManager) GetAlertChannel() <-chan []AlertRequest {
	return am.alertChan
}

// CheckNow runs a check immediately, outside the minute cadence
func (am *AlertManager) CheckNow() {
	am.publish(am.scheduler.CheckAlerts())
}

func (am *AlertManager) publish(requests []AlertRequest) {
	if len(requests) == 0 {
		return
	}
	select {
	case am.alertChan <- requests:
	default:
		slog.Warn("Alert channel full, dropping alerts", "count", len(requests))
	}
}

// run is the main loop for the alert manager
func (am *AlertManager) run() {
	// Sync with the next minute boundary
	timer := time.NewTimer(am.scheduler.ScheduleNextCheck())

	for {
		select {
		case <-timer.C:
			am.publish(am.scheduler.CheckAlerts())
			timer.Reset(am.scheduler.ScheduleNextCheck())

		case <-am.stopChan:
			timer.Stop()
			close(am.alertChan)
			return
		}
	}
}
