package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"schedwatch/internal/config"
)

// stateVersion is bumped when the state file layout changes
const stateVersion = "1"

// DaemonState is what the daemon remembers between runs
type DaemonState struct {
	LastAlertTick  time.Time `json:"last_alert_tick"`
	LastRegenerate time.Time `json:"last_regenerate"`
	Version        string    `json:"version"`
}

// StateManager handles persistent state operations
type StateManager interface {
	GetLastAlertTick() time.Time
	SetLastAlertTick(tick time.Time) error
	SetLastRegenerate(at time.Time) error
	Load() error
	Save() error
}

// FileStateManager keeps DaemonState in a JSON file
type FileStateManager struct {
	state    DaemonState
	filePath string
	now      func() time.Time
	mutex    sync.RWMutex
}

// NewXDGStateManager creates a state manager in the XDG state directory
func NewXDGStateManager() (*FileStateManager, error) {
	stateFilePath, err := xdg.StateFile(config.AppName + "/state.json")
	if err != nil {
		return nil, fmt.Errorf("failed to get XDG state file path: %w", err)
	}
	return NewFileStateManager(stateFilePath), nil
}

// NewFileStateManager creates a state manager backed by path
func NewFileStateManager(path string) *FileStateManager {
	return &FileStateManager{
		state:    DaemonState{Version: stateVersion},
		filePath: path,
		now:      time.Now,
	}
}

// GetLastAlertTick returns the last recorded alert tick time
func (s *FileStateManager) GetLastAlertTick() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.state.LastAlertTick
}

// SetLastAlertTick updates the last alert tick time and saves to disk
func (s *FileStateManager) SetLastAlertTick(tick time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state.LastAlertTick = tick
	return s.saveLocked()
}

// SetLastRegenerate records when schedules were last expanded
func (s *FileStateManager) SetLastRegenerate(at time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state.LastRegenerate = at
	return s.saveLocked()
}

// Load reads the state from disk. A missing or unreadable file starts the
// tick at the current time so no past alerts are replayed.
func (s *FileStateManager) Load() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.state.LastAlertTick = s.now()
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var loaded DaemonState
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.state.LastAlertTick = s.now()
		return s.saveLocked()
	}
	if loaded.LastAlertTick.IsZero() {
		loaded.LastAlertTick = s.now()
	}
	loaded.Version = stateVersion

	s.state = loaded
	return nil
}

// Save writes the current state to disk
func (s *FileStateManager) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.saveLocked()
}

// saveLocked performs the actual save operation (must be called with lock held)
func (s *FileStateManager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Atomic write: write to temporary file first, then rename
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

// GetStateFilePath returns the path to the state file
func (s *FileStateManager) GetStateFilePath() string {
	return s.filePath
}
