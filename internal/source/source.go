// Package source loads schedule catalogs from disk. A catalog is either a
// YAML file listing named schedules in the Russian schedule grammar, or an
// iCalendar file whose events become exact-date layers of one schedule.
package source

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"schedwatch/internal/storage"
)

// CatalogParser loads schedules from catalog files
type CatalogParser interface {
	ParseFile(filePath string) ([]*storage.Schedule, error)
	ParseDirectory(dirPath string) ([]*storage.Schedule, error)
	ParseReader(reader io.Reader, name string, kind Kind) ([]*storage.Schedule, error)
}

// Kind is the format of a catalog file
type Kind int

const (
	KindUnknown Kind = iota
	KindYAML
	KindICS
)

// KindOf returns the catalog format of path judging by its extension
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return KindYAML
	case ".ics":
		return KindICS
	default:
		return KindUnknown
	}
}

// IsCatalogFile reports whether path looks like a schedule catalog
func IsCatalogFile(path string) bool {
	return KindOf(path) != KindUnknown
}

// Loader implements CatalogParser. Schedule text is parsed relative to the
// loader's clock since dates without a year resolve against today.
type Loader struct {
	maxSchedules int
	timeZone     *time.Location
	now          func() time.Time
}

// NewLoader creates a new loader using the local timezone
func NewLoader() *Loader {
	return &Loader{
		maxSchedules: 10000,
		timeZone:     time.Local,
		now:          time.Now,
	}
}

// SetMaxSchedules sets the maximum number of schedules read from one file
func (l *Loader) SetMaxSchedules(max int) {
	l.maxSchedules = max
}

// SetTimeZone sets the timezone schedules are interpreted in
func (l *Loader) SetTimeZone(tz *time.Location) {
	l.timeZone = tz
}

// SetClock replaces the loader's notion of now
func (l *Loader) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Loader) currentTime() time.Time {
	return l.now().In(l.timeZone)
}

// ParseFile parses a single catalog file. Every schedule's Source is set
// to filePath.
func (l *Loader) ParseFile(filePath string) ([]*storage.Schedule, error) {
	kind := KindOf(filePath)
	if kind == KindUnknown {
		return nil, fmt.Errorf("unsupported catalog file %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	schedules, err := l.ParseReader(file, filePath, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	return schedules, nil
}

// ParseDirectory parses all catalog files below dirPath. Files that fail
// to parse are logged and skipped.
func (l *Loader) ParseDirectory(dirPath string) ([]*storage.Schedule, error) {
	var all []*storage.Schedule

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			slog.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if info.IsDir() || !IsCatalogFile(path) {
			return nil
		}

		schedules, parseErr := l.ParseFile(path)
		if parseErr != nil {
			slog.Error("Error parsing catalog", "path", path, "error", parseErr)
			return nil
		}

		all = append(all, schedules...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	return all, nil
}

// ParseReader parses catalog data of the given kind. name identifies the
// data in schedule IDs and as the schedules' Source.
func (l *Loader) ParseReader(reader io.Reader, name string, kind Kind) ([]*storage.Schedule, error) {
	switch kind {
	case KindYAML:
		return l.parseCatalog(reader, name)
	case KindICS:
		return l.parseICS(reader, name)
	default:
		return nil, fmt.Errorf("unknown catalog kind %d", kind)
	}
}

// baseID derives an identifier from a file name
func baseID(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
