package form

import (
	"context"
	"log/slog"
)

// SettingsKey is the config key the snapshot lives under. Older keys are not
// migrated.
const SettingsKey = "form.settings.v3"

// KV is the slice of the settings repository the form needs.
type KV interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// Store loads and saves the snapshot. Storage problems never reach the
// caller; they are logged at debug level and the panel carries on.
type Store struct {
	kv     KV
	logger *slog.Logger
}

func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger}
}

// Load returns the saved snapshot, or defaults when absent or unreadable.
func (s *Store) Load(ctx context.Context) State {
	raw, err := s.kv.GetConfig(ctx, SettingsKey)
	if err != nil {
		s.logger.Debug("failed to read form settings", "error", err)
		return Defaults()
	}
	if raw == "" {
		return Defaults()
	}
	st, err := Decode([]byte(raw))
	if err != nil {
		s.logger.Debug("ignoring malformed form settings", "error", err)
	}
	return st
}

// Save writes st. Failures are dropped.
func (s *Store) Save(ctx context.Context, st State) {
	data, err := st.Encode()
	if err != nil {
		s.logger.Debug("failed to encode form settings", "error", err)
		return
	}
	if err := s.kv.SetConfig(ctx, SettingsKey, string(data)); err != nil {
		s.logger.Debug("failed to write form settings", "error", err)
	}
}

// Reset stores and returns the defaults.
func (s *Store) Reset(ctx context.Context) State {
	st := Defaults()
	s.Save(ctx, st)
	return st
}
