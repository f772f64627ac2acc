package repositories

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// SettingsRepository stores runtime toggles, cooldown minutes and last-sync
// timestamps in the settings table so they survive restarts.
//
// Keys are dotted paths, e.g. "sync.spotify.followed_artists.enabled" or
// "last_sync.spotify.followed_artists".
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a SettingsRepository over the given DBTX.
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// get returns the raw value for key, or ok=false when unset.
func (r *SettingsRepository) get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// set upserts the raw value for key.
func (r *SettingsRepository) set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// GetBool reads a boolean setting, returning fallback when unset or invalid.
// A non-nil error means the read itself failed, not that the key was absent;
// the fallback still accompanies it so callers can degrade deliberately.
func (r *SettingsRepository) GetBool(key string, fallback bool) (bool, error) {
	value, ok, err := r.get(key)
	if err != nil {
		return fallback, err
	}
	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}

// GetInt reads an integer setting, returning fallback when unset or invalid.
// Errors follow the same contract as [SettingsRepository.GetBool].
func (r *SettingsRepository) GetInt(key string, fallback int) (int, error) {
	value, ok, err := r.get(key)
	if err != nil {
		return fallback, err
	}
	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}

// SetBool writes a boolean setting.
func (r *SettingsRepository) SetBool(key string, value bool) error {
	return r.set(key, strconv.FormatBool(value))
}

// SetInt writes an integer setting.
func (r *SettingsRepository) SetInt(key string, value int) error {
	return r.set(key, strconv.Itoa(value))
}

// GetLastSync reads a persisted last-sync timestamp; the zero time means the
// sync type has never run.
func (r *SettingsRepository) GetLastSync(key string) (time.Time, error) {
	value, ok, err := r.get("last_sync." + key)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad last-sync value for %s: %w", key, err)
	}
	return t, nil
}

// SetLastSync persists a last-sync timestamp.
func (r *SettingsRepository) SetLastSync(key string, t time.Time) error {
	return r.set("last_sync."+key, t.UTC().Format(time.RFC3339))
}

// ClearLastSync removes a persisted last-sync timestamp so the next cycle
// treats the sync type as never run.
func (r *SettingsRepository) ClearLastSync(key string) error {
	_, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, "last_sync."+key)
	if err != nil {
		return fmt.Errorf("failed to clear last-sync %s: %w", key, err)
	}
	return nil
}
