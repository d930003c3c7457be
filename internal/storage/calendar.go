package storage

import (
	"sync"
)

// Calendar is a configured catalog directory. Its alert policies and
// template are shared by every schedule loaded from it.
type Calendar struct {
	Path            string  // Directory path
	Template        string  // Notification template
	AutomaticAlerts []Alert // Live, updateable alert policies
	mutex           sync.RWMutex
}

// NewCalendar creates a new Calendar entity
func NewCalendar(path, template string, automaticAlerts []Alert) *Calendar {
	return &Calendar{
		Path:            path,
		Template:        template,
		AutomaticAlerts: automaticAlerts,
	}
}

// UpdateAutomaticAlerts replaces the calendar's alert policies. Schedules
// see the new alerts on the next check.
func (c *Calendar) UpdateAutomaticAlerts(newAlerts []Alert) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.AutomaticAlerts = newAlerts
}

// UpdateTemplate updates the calendar's notification template
func (c *Calendar) UpdateTemplate(template string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.Template = template
}

// Alerts returns a copy of the alert policies
func (c *Calendar) Alerts() []Alert {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return append([]Alert(nil), c.AutomaticAlerts...)
}

// TemplateName returns the notification template name
func (c *Calendar) TemplateName() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.Template
}
