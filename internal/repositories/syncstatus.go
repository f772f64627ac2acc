package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
)

// SyncStatusRepository persists one row per (provider, sync type, scope).
// Only the owning provider sync service writes these rows.
type SyncStatusRepository struct {
	db DBTX
}

// NewSyncStatusRepository creates a SyncStatusRepository over the given DBTX.
func NewSyncStatusRepository(db DBTX) *SyncStatusRepository {
	return &SyncStatusRepository{db: db}
}

// MarkRunning upserts the record into the running state at the start of a call.
func (r *SyncStatusRepository) MarkRunning(provider, syncType, scope string) error {
	_, err := r.db.Exec(`
		INSERT INTO sync_status (provider, sync_type, scope, status, error_message)
		VALUES (?, ?, ?, ?, '')
		ON CONFLICT(provider, sync_type, scope)
		DO UPDATE SET status = excluded.status, error_message = ''
	`, provider, syncType, scope, string(models.SyncRunning))
	if err != nil {
		return fmt.Errorf("failed to mark sync running: %w", err)
	}
	return nil
}

// MarkIdle records a successful completion with counts.
func (r *SyncStatusRepository) MarkIdle(provider, syncType, scope string, synced, added, removed int) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		INSERT INTO sync_status (provider, sync_type, scope, last_synced_at, items_synced, items_added, items_removed, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '')
		ON CONFLICT(provider, sync_type, scope)
		DO UPDATE SET last_synced_at = excluded.last_synced_at,
			items_synced = excluded.items_synced,
			items_added = excluded.items_added,
			items_removed = excluded.items_removed,
			status = excluded.status,
			error_message = ''
	`, provider, syncType, scope, now, synced, added, removed, string(models.SyncIdle))
	if err != nil {
		return fmt.Errorf("failed to mark sync idle: %w", err)
	}
	return nil
}

// MarkError records a failed completion with its message.
func (r *SyncStatusRepository) MarkError(provider, syncType, scope, message string) error {
	_, err := r.db.Exec(`
		INSERT INTO sync_status (provider, sync_type, scope, status, error_message)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider, sync_type, scope)
		DO UPDATE SET status = excluded.status, error_message = excluded.error_message
	`, provider, syncType, scope, string(models.SyncError), message)
	if err != nil {
		return fmt.Errorf("failed to mark sync error: %w", err)
	}
	return nil
}

// Get retrieves one status record.
func (r *SyncStatusRepository) Get(provider, syncType, scope string) (*models.SyncStatus, error) {
	row := r.db.QueryRow(`
		SELECT provider, sync_type, scope, last_synced_at, items_synced, items_added, items_removed, status, error_message
		FROM sync_status
		WHERE provider = ? AND sync_type = ? AND scope = ?
	`, provider, syncType, scope)

	s, err := scanSyncStatus(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync status: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync status: %w", err)
	}
	return s, nil
}

// List retrieves all status records ordered by provider and sync type.
func (r *SyncStatusRepository) List() ([]*models.SyncStatus, error) {
	rows, err := r.db.Query(`
		SELECT provider, sync_type, scope, last_synced_at, items_synced, items_added, items_removed, status, error_message
		FROM sync_status
		ORDER BY provider, sync_type, scope
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync status: %w", err)
	}
	defer rows.Close()

	var statuses []*models.SyncStatus
	for rows.Next() {
		s, err := scanSyncStatus(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync status: %w", err)
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

func scanSyncStatus(scan func(dest ...any) error) (*models.SyncStatus, error) {
	var (
		s            models.SyncStatus
		lastSyncedAt sql.NullTime
		status       string
	)

	err := scan(&s.Provider, &s.SyncType, &s.Scope, &lastSyncedAt,
		&s.ItemsSynced, &s.ItemsAdded, &s.ItemsRemoved, &status, &s.ErrorMessage)
	if err != nil {
		return nil, err
	}

	s.Status = models.SyncState(status)
	if lastSyncedAt.Valid {
		s.LastSyncedAt = &lastSyncedAt.Time
	}
	return &s, nil
}
