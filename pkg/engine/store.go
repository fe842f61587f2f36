// Package engine manages lip-sync engine selection, readiness tracking and
// the tunable settings sent to the backend.
package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/clonesync/csync/pkg/models"
)

// SettingsPusher is the slice of the API client the store needs to sync
// settings to the backend.
type SettingsPusher interface {
	PushSettings(ctx context.Context, payload map[string]any) error
}

// SettingsStore holds the current settings and applies partial updates.
// Reads return copies, so callers can never mutate shared state.
type SettingsStore struct {
	mu      sync.RWMutex
	current models.Settings
	log     *zap.Logger
}

// NewSettingsStore starts from the default settings.
func NewSettingsStore(log *zap.Logger) *SettingsStore {
	return &SettingsStore{
		current: models.DefaultSettings(),
		log:     log,
	}
}

// Current returns a copy of the settings as they stand.
func (s *SettingsStore) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in a complete settings value.
func (s *SettingsStore) Replace(settings models.Settings) {
	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()
}

// Update merges a partial update into the current settings and returns the
// result. Fields the partial leaves unset keep their current values.
func (s *SettingsStore) Update(p models.SettingsPartial) models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.current.Apply(p)
	return s.current
}

// SetAlgorithm switches the active engine without touching other settings.
func (s *SettingsStore) SetAlgorithm(e models.Engine) models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Algorithm = e
	return s.current
}

// BackendPayload renders the current settings in the backend's wire shape:
// common fields plus exactly the option block matching the algorithm.
func (s *SettingsStore) BackendPayload() map[string]any {
	return s.Current().ForBackend()
}

// Push syncs the current settings to the backend.
func (s *SettingsStore) Push(ctx context.Context, client SettingsPusher) error {
	payload := s.BackendPayload()
	s.log.Debug("pushing settings", zap.Any("algorithm", payload["algorithm"]))
	return client.PushSettings(ctx, payload)
}
