package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"schedwatch/internal/parser"
	"schedwatch/internal/storage"
)

// Catalog is the YAML layout of a schedule file
type Catalog struct {
	Schedules []CatalogEntry `yaml:"schedules"`
}

// CatalogEntry is one schedule in a catalog
type CatalogEntry struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Schedule  string `yaml:"schedule"`
	Important bool   `yaml:"important,omitempty"`
}

func (l *Loader) parseCatalog(reader io.Reader, name string) ([]*storage.Schedule, error) {
	var catalog Catalog
	if err := yaml.NewDecoder(reader).Decode(&catalog); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	now := l.currentTime()
	seen := make(map[string]bool)
	var schedules []*storage.Schedule

	for i, entry := range catalog.Schedules {
		if len(schedules) >= l.maxSchedules {
			slog.Warn("Reached maximum schedule limit, skipping remaining schedules",
				"source", name, "limit", l.maxSchedules)
			break
		}

		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = fmt.Sprintf("%s-%d", baseID(name), i+1)
		}
		if seen[id] {
			slog.Warn("Duplicate schedule ID, skipping", "source", name, "id", id)
			continue
		}
		seen[id] = true

		displayName := strings.TrimSpace(entry.Name)
		if displayName == "" {
			displayName = id
		}

		result := parser.Parse(entry.Schedule, now)
		if !result.OK() {
			slog.Warn("Schedule text not understood", "source", name, "id", id,
				"errors", strings.Join(result.Errors, "; "))
		}

		schedules = append(schedules, &storage.Schedule{
			ID:        id,
			Name:      displayName,
			Text:      entry.Schedule,
			Important: entry.Important,
			Source:    name,
			Timetable: result.Timetable,
			Errors:    result.Errors,
		})
	}

	return schedules, nil
}
