package notifications

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/adrg/xdg"
	"github.com/esiqveland/notify"
	"github.com/godbus/dbus/v5"

	"schedwatch/internal/alerts"
	"schedwatch/internal/config"
)

// UrgencyLevel represents the urgency level for notifications
type UrgencyLevel int

const (
	UrgencyLow      UrgencyLevel = iota // 0 - D-Bus Low
	UrgencyNormal                       // 1 - D-Bus Normal (default)
	UrgencyCritical                     // 2 - D-Bus Critical
)

// TemplateData represents the data available to notification templates
type TemplateData struct {
	Summary     string // schedule name
	Schedule    string // schedule text as written in the catalog
	Date        string
	StartTime   string
	EndTime     string
	Duration    string
	AlertOffset string
	Priority    string
	ID          string
	Late        bool
}

// NotificationContext provides context about the notification type
type NotificationContext struct {
	IsLate bool // Whether this is a missed/late notification
}

// NotificationRequest combines an alert request with notification context
type NotificationRequest struct {
	AlertRequest alerts.AlertRequest
	Context      NotificationContext
	Urgency      UrgencyLevel
}

// Notifier handles sending notifications
type Notifier interface {
	SendNotification(request alerts.AlertRequest) error
	SendNotificationWithContext(request NotificationRequest) error
	LoadTemplate(path string) (*template.Template, error)
	ValidateTemplate(tmpl *template.Template, data TemplateData) error
	SetConfig(config config.NotificationConfig)
}

const defaultTemplateText = `{{.Summary}}{{if .Late}} (пропущено){{end}}
Начало в {{.StartTime}}{{if .EndTime}}, до {{.EndTime}}{{end}} (через {{.AlertOffset}})`

// renderer turns alert requests into notification text. Both notifier
// backends share it.
type renderer struct {
	config          config.NotificationConfig
	templates       map[string]*template.Template
	defaultTemplate *template.Template
	classifier      *alerts.PriorityClassifier
	mutex           sync.Mutex
}

func newRenderer(cfg config.NotificationConfig) *renderer {
	return &renderer{
		config:          cfg,
		templates:       make(map[string]*template.Template),
		defaultTemplate: template.Must(template.New("default").Parse(defaultTemplateText)),
		classifier:      alerts.NewPriorityClassifier(),
	}
}

// SetConfig sets the notification configuration
func (r *renderer) SetConfig(cfg config.NotificationConfig) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.config = cfg
}

// urgencyFor maps the alert priority to a notification urgency
func (r *renderer) urgencyFor(request alerts.AlertRequest) UrgencyLevel {
	switch r.classifier.Classify(request) {
	case alerts.PriorityLow:
		return UrgencyLow
	case alerts.PriorityCritical:
		return UrgencyCritical
	default:
		return UrgencyNormal
	}
}

// expireTimeout returns how long a notification stays visible. Late
// notifications stay until dismissed.
func (r *renderer) expireTimeout(context NotificationContext) time.Duration {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if context.IsLate {
		return 0
	}
	return time.Duration(r.config.Duration) * time.Millisecond
}

// createTemplateData creates template data from an alert request
func (r *renderer) createTemplateData(request alerts.AlertRequest) TemplateData {
	occurrence := request.Occurrence
	data := TemplateData{
		Date:        occurrence.Start.Format("02.01"),
		StartTime:   occurrence.Start.Format("15:04"),
		AlertOffset: formatDuration(request.AlertOffset),
		Priority:    r.classifier.Classify(request).String(),
		Late:        request.Late,
	}
	if schedule := occurrence.Schedule; schedule != nil {
		data.Summary = schedule.Name
		data.Schedule = schedule.Text
		data.ID = occurrence.Key()
	}
	if occurrence.IsRange() {
		data.EndTime = occurrence.End.Format("15:04")
		data.Duration = formatDuration(occurrence.End.Sub(occurrence.Start))
	}
	return data
}

// render produces the notification title and body. A broken template
// falls back to the built-in one and reports the problem in templateErr.
func (r *renderer) render(request alerts.AlertRequest) (title, body string, templateErr error, err error) {
	data := r.createTemplateData(request)

	tmpl, templateErr := r.getTemplate(request.Template)
	if templateErr != nil {
		tmpl = r.defaultTemplate
	}

	var buf bytes.Buffer
	if execErr := tmpl.Execute(&buf, data); execErr != nil {
		templateErr = fmt.Errorf("template execution failed: %w", execErr)
		buf.Reset()
		if err := r.defaultTemplate.Execute(&buf, data); err != nil {
			return "", "", templateErr, fmt.Errorf("failed to execute default template: %w", err)
		}
	}

	return data.Summary, buf.String(), templateErr, nil
}

// getTemplate retrieves or loads a template by name. Names are looked up
// in the XDG templates directory unless they are absolute paths.
func (r *renderer) getTemplate(templateName string) (*template.Template, error) {
	if templateName == "" {
		return r.defaultTemplate, nil
	}

	r.mutex.Lock()
	tmpl, exists := r.templates[templateName]
	r.mutex.Unlock()
	if exists {
		return tmpl, nil
	}

	templatePath := templateName
	if !filepath.IsAbs(templateName) {
		var err error
		templatePath, err = xdg.SearchConfigFile(filepath.Join(config.AppName, "templates", templateName))
		if err != nil {
			templatePath = filepath.Join("templates", templateName)
		}
	}

	tmpl, err := r.LoadTemplate(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", templateName, err)
	}

	r.mutex.Lock()
	r.templates[templateName] = tmpl
	r.mutex.Unlock()
	return tmpl, nil
}

// LoadTemplate loads a template from a file path
func (r *renderer) LoadTemplate(path string) (*template.Template, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("template file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}

	tmpl, err := template.New(filepath.Base(path)).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}

	return tmpl, nil
}

// ValidateTemplate validates a template with sample data
func (r *renderer) ValidateTemplate(tmpl *template.Template, data TemplateData) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template validation failed: %w", err)
	}
	return nil
}

// errorMessage describes a template failure for the user
func errorMessage(request alerts.AlertRequest, err error) (string, string) {
	name := ""
	if request.Occurrence.Schedule != nil {
		name = request.Occurrence.Schedule.Name
	}
	return "Ошибка шаблона уведомления", fmt.Sprintf("%s в %s\nОшибка: %s\nШаблон: %s",
		name,
		request.Occurrence.Start.Format("15:04"),
		err.Error(),
		request.Template,
	)
}

// NotifySendNotifier implements Notifier using the notify-send binary
type NotifySendNotifier struct {
	*renderer
	run func(name string, args ...string) error
}

// NewNotifySendNotifier creates a new notify-send based notifier
func NewNotifySendNotifier() *NotifySendNotifier {
	return &NotifySendNotifier{
		renderer: newRenderer(config.NotificationConfig{Backend: "notify-send", Duration: 5000}),
		run:      runCommand,
	}
}

func runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("XDG_RUNTIME_DIR=/run/user/%d", os.Getuid()),
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// SendNotification sends a notification for an alert request
func (n *NotifySendNotifier) SendNotification(request alerts.AlertRequest) error {
	return n.SendNotificationWithContext(NotificationRequest{
		AlertRequest: request,
		Context:      NotificationContext{IsLate: request.Late},
		Urgency:      n.urgencyFor(request),
	})
}

// SendNotificationWithContext sends a notification with context (normal vs late)
func (n *NotifySendNotifier) SendNotificationWithContext(request NotificationRequest) error {
	title, body, templateErr, err := n.render(request.AlertRequest)
	if templateErr != nil {
		errTitle, errBody := errorMessage(request.AlertRequest, templateErr)
		if sendErr := n.send(errTitle, errBody, NotificationContext{}, UrgencyNormal); sendErr != nil {
			slog.Warn("Failed to report template error", "error", sendErr)
		}
	}
	if err != nil {
		return err
	}
	return n.send(title, body, request.Context, request.Urgency)
}

// send runs notify-send with the given urgency and expiry
func (n *NotifySendNotifier) send(title, message string, context NotificationContext, urgency UrgencyLevel) error {
	urgencyFlag := map[UrgencyLevel]string{
		UrgencyLow:      "--urgency=low",
		UrgencyNormal:   "--urgency=normal",
		UrgencyCritical: "--urgency=critical",
	}[urgency]

	args := []string{
		"--app-name=" + config.AppName,
		urgencyFlag,
		fmt.Sprintf("--expire-time=%d", n.expireTimeout(context).Milliseconds()),
		title,
		message,
	}

	if err := n.run("notify-send", args...); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// DBusNotifier implements Notifier over the session D-Bus
type DBusNotifier struct {
	*renderer
	conn     *dbus.Conn
	notifier notify.Notifier
}

// NewDBusNotifier creates a new D-Bus based notifier
func NewDBusNotifier() (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session D-Bus: %w", err)
	}

	notifier, err := notify.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create D-Bus notifier: %w", err)
	}

	return &DBusNotifier{
		renderer: newRenderer(config.NotificationConfig{Backend: "dbus", Duration: 5000}),
		conn:     conn,
		notifier: notifier,
	}, nil
}

// Close closes the D-Bus connection
func (d *DBusNotifier) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// SendNotification sends a notification for an alert request
func (d *DBusNotifier) SendNotification(request alerts.AlertRequest) error {
	return d.SendNotificationWithContext(NotificationRequest{
		AlertRequest: request,
		Context:      NotificationContext{IsLate: request.Late},
		Urgency:      d.urgencyFor(request),
	})
}

// SendNotificationWithContext sends a notification with context (normal vs late)
func (d *DBusNotifier) SendNotificationWithContext(request NotificationRequest) error {
	title, body, templateErr, err := d.render(request.AlertRequest)
	if templateErr != nil {
		errTitle, errBody := errorMessage(request.AlertRequest, templateErr)
		if sendErr := d.send(errTitle, errBody, NotificationContext{}, UrgencyNormal); sendErr != nil {
			slog.Warn("Failed to report template error", "error", sendErr)
		}
	}
	if err != nil {
		return err
	}
	return d.send(title, body, request.Context, request.Urgency)
}

// send delivers a notification with the urgency hint set
func (d *DBusNotifier) send(title, message string, context NotificationContext, urgency UrgencyLevel) error {
	notification := notify.Notification{
		AppName:       config.AppName,
		AppIcon:       "appointment-soon",
		Summary:       title,
		Body:          message,
		Hints:         map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(urgency))},
		ExpireTimeout: d.expireTimeout(context),
	}

	if _, err := d.notifier.SendNotification(notification); err != nil {
		return fmt.Errorf("failed to send D-Bus notification: %w", err)
	}
	return nil
}

// NotificationManager coordinates multiple notifiers
type NotificationManager struct {
	notifiers []Notifier
	config    config.NotificationConfig
}

// NewNotificationManager creates a manager with the configured backend.
// The D-Bus backend falls back to notify-send when the bus is unavailable.
func NewNotificationManager(cfg config.NotificationConfig) *NotificationManager {
	manager := &NotificationManager{config: cfg}

	if strings.ToLower(cfg.Backend) == "notify-send" {
		notifier := NewNotifySendNotifier()
		notifier.SetConfig(cfg)
		manager.AddNotifier(notifier)
		return manager
	}

	if dbusNotifier, err := NewDBusNotifier(); err == nil {
		dbusNotifier.SetConfig(cfg)
		manager.AddNotifier(dbusNotifier)
	} else {
		slog.Warn("Failed to initialize D-Bus notifier, falling back to notify-send", "error", err)
		notifier := NewNotifySendNotifier()
		notifier.SetConfig(cfg)
		manager.AddNotifier(notifier)
	}

	return manager
}

// AddNotifier adds a notifier to the manager
func (nm *NotificationManager) AddNotifier(notifier Notifier) {
	nm.notifiers = append(nm.notifiers, notifier)
}

// SendNotification sends a notification using all configured notifiers
func (nm *NotificationManager) SendNotification(request alerts.AlertRequest) error {
	var lastError error

	for _, notifier := range nm.notifiers {
		if err := notifier.SendNotification(request); err != nil {
			lastError = err
			slog.Error("Notification failed", "error", err)
		}
	}

	return lastError
}

// Close releases notifier resources
func (nm *NotificationManager) Close() {
	for _, notifier := range nm.notifiers {
		if closer, ok := notifier.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
}

// TemplatesDir returns the XDG directory holding notification templates
func TemplatesDir() (string, error) {
	dir, err := xdg.ConfigFile(filepath.Join(config.AppName, "templates"))
	if err != nil {
		return "", fmt.Errorf("failed to get templates directory: %w", err)
	}
	return dir, nil
}

// DefaultTemplates are written by CreateDefaultTemplates
var DefaultTemplates = map[string]string{
	"default.tpl": defaultTemplateText,

	"detailed.tpl": `📅 {{.Summary}}
🕐 {{.Date}} {{.StartTime}}{{if .EndTime}} - {{.EndTime}} ({{.Duration}}){{end}}
🗓 {{.Schedule}}

⏰ через {{.AlertOffset}}{{if .Late}}, уведомление запоздало{{end}}`,

	"minimal.tpl": `{{.Summary}} в {{.StartTime}}`,
}

// CreateDefaultTemplates writes the default templates into dir, leaving
// existing files untouched
func CreateDefaultTemplates(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create templates directory: %w", err)
	}

	for filename, content := range DefaultTemplates {
		templatePath := filepath.Join(dir, filename)
		if _, err := os.Stat(templatePath); os.IsNotExist(err) {
			if err := os.WriteFile(templatePath, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to create template %s: %w", filename, err)
			}
		}
	}

	return nil
}

// formatDuration formats a duration in Russian
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return plural(int(d.Seconds()), "секунду", "секунды", "секунд")
	case d < time.Hour:
		return plural(int(d.Minutes()), "минуту", "минуты", "минут")
	case d < 24*time.Hour:
		hours, minutes := int(d.Hours()), int(d.Minutes())%60
		if minutes == 0 {
			return plural(hours, "час", "часа", "часов")
		}
		return plural(hours, "час", "часа", "часов") + " " + plural(minutes, "минуту", "минуты", "минут")
	default:
		return plural(int(d.Hours()/24), "день", "дня", "дней")
	}
}

// plural picks the Russian noun form for n
func plural(n int, one, few, many string) string {
	form := many
	switch mod100 := n % 100; {
	case mod100 >= 11 && mod100 <= 14:
	case n%10 == 1:
		form = one
	case n%10 >= 2 && n%10 <= 4:
		form = few
	}
	return fmt.Sprintf("%d %s", n, form)
}
