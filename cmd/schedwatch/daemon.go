package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"schedwatch/internal/alerts"
	"schedwatch/internal/config"
	"schedwatch/internal/notifications"
	"schedwatch/internal/source"
	"schedwatch/internal/storage"
	"schedwatch/internal/watcher"
)

// App wires catalogs, expansion, alerts and notifications together
type App struct {
	config              *config.Config
	location            *time.Location
	now                 func() time.Time
	scheduleStorage     *storage.MemoryScheduleStorage
	stateManager        storage.StateManager
	loader              *source.Loader
	directories         []string // absolute catalog directories
	watcher             *watcher.CatalogWatcher
	alertScheduler      *alerts.MinuteBasedScheduler
	alertManager        *alerts.AlertManager
	notificationManager *notifications.NotificationManager
	cron                *cron.Cron

	// Synchronization
	stopChan  chan struct{}
	doneChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	mutex     sync.Mutex
	isRunning bool
}

// NewApp creates the storage and loader for cfg. Daemon components are
// created by Initialize.
func NewApp(cfg *config.Config, now func() time.Time) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	app := &App{
		config:          cfg,
		location:        loc,
		now:             now,
		scheduleStorage: storage.NewMemoryScheduleStorage(),
		loader:          source.NewLoader(),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
	app.loader.SetTimeZone(loc)
	app.loader.SetClock(now)

	for _, dirConfig := range cfg.Directories {
		dir, err := filepath.Abs(dirConfig.Directory)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve directory %s: %w", dirConfig.Directory, err)
		}
		alertList, err := storage.ConvertConfigAlerts(dirConfig.AutomaticAlerts)
		if err != nil {
			return nil, fmt.Errorf("directory %s: %w", dirConfig.Directory, err)
		}
		app.scheduleStorage.EnsureCalendar(dir, dirConfig.Template, alertList)
		app.directories = append(app.directories, dir)
	}

	return app, nil
}

// Initialize sets up state, notifications, alerts and the file watcher
func (a *App) Initialize() error {
	stateManager, err := storage.NewXDGStateManager()
	if err != nil {
		return fmt.Errorf("failed to create state manager: %w", err)
	}
	if err := stateManager.Load(); err != nil {
		slog.Warn("Failed to load state, starting fresh", "error", err)
	}
	a.stateManager = stateManager

	a.notificationManager = notifications.NewNotificationManager(a.config.Notification)

	a.alertScheduler = alerts.NewMinuteBasedScheduler(a.stateManager)
	a.alertScheduler.SetScheduleStorage(a.scheduleStorage)
	a.alertManager = alerts.NewAlertManager(a.alertScheduler)

	a.watcher, err = watcher.NewCatalogWatcher(a.handleFileChange)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, dir := range a.directories {
		slog.Info("Watching directory", "path", dir)
		if err := a.watcher.AddDirectory(dir); err != nil {
			slog.Warn("Failed to watch directory", "path", dir, "error", err)
		}
	}

	a.cron = cron.New(cron.WithLocation(a.location))
	if _, err := a.cron.AddFunc(a.config.Refresh, a.refresh); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", a.config.Refresh, err)
	}

	return nil
}

// Start loads the catalogs and starts the background loops
func (a *App) Start() error {
	if a.IsRunning() {
		return fmt.Errorf("schedwatch is already running")
	}

	total := a.loadCatalogs()
	a.regenerate()
	slog.Info("Initial scan complete", "schedules", total)

	if err := a.alertManager.Start(); err != nil {
		return fmt.Errorf("failed to start alert manager: %w", err)
	}

	a.wg.Add(1)
	go a.processAlerts()

	// Alerts missed while the daemon was not running
	a.alertManager.CheckNow()

	a.cron.Start()
	a.setRunning(true)

	slog.Info("Daemon started", "directories", len(a.directories), "refresh", a.config.Refresh)
	return nil
}

// Stop stops the daemon. It is safe to call more than once.
func (a *App) Stop() error {
	a.stopOnce.Do(func() {
		slog.Info("Stopping daemon")

		if a.stateManager != nil {
			if err := a.stateManager.Save(); err != nil {
				slog.Warn("Failed to save state", "error", err)
			}
		}

		close(a.stopChan)

		if a.cron != nil {
			<-a.cron.Stop().Done()
		}
		if a.alertManager != nil {
			if err := a.alertManager.Stop(); err != nil {
				slog.Error("Error stopping alert manager", "error", err)
			}
		}
		if a.watcher != nil {
			if err := a.watcher.Stop(); err != nil {
				slog.Error("Error stopping file watcher", "error", err)
			}
		}

		a.wg.Wait()
		if a.notificationManager != nil {
			a.notificationManager.Close()
		}
		a.setRunning(false)
		close(a.doneChan)
	})
	return nil
}

// IsRunning reports whether Start completed and Stop has not been called
func (a *App) IsRunning() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.isRunning
}

func (a *App) setRunning(running bool) {
	a.mutex.Lock()
	a.isRunning = running
	a.mutex.Unlock()
}

// loadCatalogs (re)reads every configured directory. Schedules of files
// that disappeared are dropped. Returns the number of schedules loaded.
func (a *App) loadCatalogs() int {
	previous := make(map[string]bool)
	for _, schedule := range a.scheduleStorage.GetAllSchedules() {
		previous[schedule.Source] = true
	}

	total := 0
	seen := make(map[string]bool)
	for _, dir := range a.directories {
		schedules, err := a.loader.ParseDirectory(dir)
		if err != nil {
			slog.Warn("Failed to parse directory", "path", dir, "error", err)
			continue
		}

		bySource := make(map[string][]*storage.Schedule)
		for _, schedule := range schedules {
			bySource[schedule.Source] = append(bySource[schedule.Source], schedule)
		}
		for src, list := range bySource {
			a.scheduleStorage.DeleteBySource(src)
			a.store(list)
			seen[src] = true
		}

		slog.Info("Loaded schedules", "path", dir, "count", len(schedules))
		total += len(schedules)
	}

	for src := range previous {
		if !seen[src] {
			a.scheduleStorage.DeleteBySource(src)
		}
	}
	return total
}

// store attaches the owning directory's calendar and saves the schedules
func (a *App) store(schedules []*storage.Schedule) {
	for _, schedule := range schedules {
		schedule.Calendar = a.calendarFor(schedule.Source)
		if !schedule.Valid() {
			slog.Warn("Schedule text not understood", "id", schedule.ID, "source", schedule.Source, "errors", schedule.Errors)
		}
		if err := a.scheduleStorage.UpsertSchedule(schedule); err != nil {
			slog.Error("Failed to store schedule", "id", schedule.ID, "error", err)
		}
	}
}

// calendarFor returns the calendar of the innermost directory holding path
func (a *App) calendarFor(path string) *storage.Calendar {
	var best string
	for _, dir := range a.directories {
		if (path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))) && len(dir) > len(best) {
			best = dir
		}
	}
	if best == "" {
		return nil
	}
	calendar, _ := a.scheduleStorage.GetCalendar(best)
	return calendar
}

// regenerate re-expands every schedule from now
func (a *App) regenerate() {
	now := a.now().In(a.location)
	a.scheduleStorage.Regenerate(now, a.config.DaysAhead)

	if a.stateManager != nil {
		if err := a.stateManager.SetLastRegenerate(now); err != nil {
			slog.Warn("Failed to persist regenerate time", "error", err)
		}
	}
}

// refresh runs on the cron schedule. Catalogs are re-read because dates
// without a year resolve against the current date.
func (a *App) refresh() {
	total := a.loadCatalogs()
	a.regenerate()
	slog.Info("Schedules refreshed", "schedules", total)
	a.logStatus()
}

// handleFileChange reloads a single catalog file
func (a *App) handleFileChange(event watcher.FileChangeEvent) {
	slog.Info("File change detected", "path", event.Path, "operation", event.Operation)

	removed := a.scheduleStorage.DeleteBySource(event.Path)
	if event.Operation.Removed() {
		slog.Info("Removed schedules", "path", event.Path, "count", removed)
		return
	}

	schedules, err := a.loader.ParseFile(event.Path)
	if err != nil {
		slog.Error("Error parsing file", "path", event.Path, "error", err)
		return
	}
	a.store(schedules)
	slog.Info("Updated schedules", "path", event.Path, "count", len(schedules))
}

// processAlerts delivers alert requests as notifications
func (a *App) processAlerts() {
	defer a.wg.Done()

	alertChan := a.alertManager.GetAlertChannel()
	for {
		select {
		case requests, ok := <-alertChan:
			if !ok {
				return
			}
			for _, request := range requests {
				name := request.Occurrence.Schedule.Name
				slog.Info("Sending alert", "schedule", name, "start", request.Occurrence.Start, "offset", request.AlertOffset, "late", request.Late)
				if err := a.notificationManager.SendNotification(request); err != nil {
					slog.Error("Failed to send notification", "schedule", name, "error", err)
				}
			}

		case <-a.stopChan:
			return
		}
	}
}

// logStatus logs a summary of the daemon's state
func (a *App) logStatus() {
	if a.alertScheduler == nil {
		return
	}
	stats := a.alertScheduler.GetAlertStats()
	slog.Info("Status",
		"schedules", stats.TotalSchedules,
		"invalid", stats.InvalidSchedules,
		"upcoming_7d", stats.UpcomingOccurrences,
		"pending_alerts_today", stats.PendingAlerts,
		"sent_alerts_today", stats.SentAlerts,
		"next_check", stats.NextCheckTime.Format(time.TimeOnly),
	)
}

// setupSignalHandling stops the daemon on SIGINT/SIGTERM
func (a *App) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("Received signal, shutting down", "signal", sig)
		a.Stop()
	}()
}

// runDaemon runs until a signal stops the daemon
func runDaemon(cfg *config.Config) error {
	app, err := NewApp(cfg, time.Now)
	if err != nil {
		return err
	}
	if err := app.Initialize(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	app.setupSignalHandling()

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	app.logStatus()

	<-app.doneChan
	slog.Info("schedwatch exiting")
	return nil
}
