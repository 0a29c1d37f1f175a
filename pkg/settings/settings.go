package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"election_board/pkg/config"
	"election_board/pkg/utils"
)

// Settings are the operator choices that survive a restart
type Settings struct {
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Store persists Settings as a YAML file
type Store struct {
	path   string
	files  *utils.FileHelper
	logger *zap.Logger

	mu      sync.RWMutex
	current Settings
}

// NewStore creates a store backed by cfg.Path. Call Load to read it.
func NewStore(cfg *config.SettingsConfig, logger *zap.Logger) *Store {
	return &Store{
		path:   cfg.Path,
		files:  &utils.FileHelper{},
		logger: logger.With(zap.String("component", "settings")),
	}
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file. A missing file leaves the defaults in place;
// a stored endpoint that no longer validates is ignored.
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("No settings file, using defaults", zap.String("path", s.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	var loaded Settings
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return fmt.Errorf("parsing settings %s: %w", s.path, err)
	}

	if loaded.Endpoint != "" {
		if err := config.ValidateEndpoint(loaded.Endpoint); err != nil {
			s.logger.Warn("Ignoring stored endpoint", zap.Error(err))
			loaded.Endpoint = ""
		}
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	s.logger.Info("Settings loaded",
		zap.String("path", s.path),
		zap.String("endpoint", loaded.Endpoint))

	return nil
}

// Get returns a copy of the current settings
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Endpoint returns the stored endpoint, or def when none is stored
func (s *Store) Endpoint(def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.Endpoint == "" {
		return def
	}
	return s.current.Endpoint
}

// SetEndpoint validates and persists a new endpoint
func (s *Store) SetEndpoint(raw string) error {
	endpoint := strings.TrimSpace(raw)
	if err := config.ValidateEndpoint(endpoint); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	next.Endpoint = endpoint
	if err := s.save(next); err != nil {
		return err
	}
	s.current = next

	s.logger.Info("Endpoint override saved", zap.String("endpoint", endpoint))
	return nil
}

// Clear drops every override and removes the file
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.files.RemoveFile(s.path); err != nil {
		return fmt.Errorf("clearing settings: %w", err)
	}
	s.current = Settings{}

	s.logger.Info("Settings cleared")
	return nil
}

func (s *Store) save(next Settings) error {
	out, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := s.files.WriteFileSafely(s.path, out, 0644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
