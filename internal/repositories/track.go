package repositories

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
)

const trackColumns = `id, title, album_id, artist_name, source, spotify_id, deezer_id, isrc,
	duration_ms, track_number, explicit, popularity, has_local, created_at, updated_at`

// TrackRepository persists canonical tracks. ISRC is the universal key.
type TrackRepository struct {
	db DBTX
}

// NewTrackRepository creates a TrackRepository over the given DBTX.
func NewTrackRepository(db DBTX) *TrackRepository {
	return &TrackRepository{db: db}
}

func trackIDColumn(provider string) (string, error) {
	switch provider {
	case models.ProviderSpotify:
		return "spotify_id", nil
	case models.ProviderDeezer:
		return "deezer_id", nil
	}
	return "", fmt.Errorf("unknown provider %q", provider)
}

// Create inserts a new track, assigning an id and timestamps when unset.
func (r *TrackRepository) Create(t *models.Track) error {
	if t.ID == "" {
		t.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `
		INSERT INTO tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		t.ID, t.Title, nullable(t.AlbumID), t.ArtistName, string(t.Source),
		nullable(t.SpotifyID), nullable(t.DeezerID), nullable(t.ISRC),
		t.DurationMS, t.TrackNumber, t.Explicit, t.Popularity, t.HasLocal,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// Update rewrites all mutable fields of an existing track.
func (r *TrackRepository) Update(t *models.Track) error {
	t.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tracks
		SET title = ?, album_id = ?, artist_name = ?, source = ?, spotify_id = ?, deezer_id = ?,
			isrc = ?, duration_ms = ?, track_number = ?, explicit = ?, popularity = ?,
			has_local = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		t.Title, nullable(t.AlbumID), t.ArtistName, string(t.Source),
		nullable(t.SpotifyID), nullable(t.DeezerID), nullable(t.ISRC),
		t.DurationMS, t.TrackNumber, t.Explicit, t.Popularity, t.HasLocal, t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	return requireRow(result, "track", t.ID)
}

// Get retrieves a track by canonical id.
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	row := r.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	return r.scan(row)
}

// GetByProviderID retrieves a track by one provider's id slot.
func (r *TrackRepository) GetByProviderID(provider, providerID string) (*models.Track, error) {
	col, err := trackIDColumn(provider)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE `+col+` = ?`, providerID)
	return r.scan(row)
}

// GetByUniversalKey retrieves a track by ISRC.
func (r *TrackRepository) GetByUniversalKey(isrc string) (*models.Track, error) {
	row := r.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE isrc = ?`, isrc)
	return r.scan(row)
}

// ListByAlbum retrieves an album's tracks ordered by track number.
func (r *TrackRepository) ListByAlbum(albumID string) ([]*models.Track, error) {
	query, args, err := builder.
		Select(trackColumns).
		From("tracks").
		Where(sq.Eq{"album_id": albumID}).
		OrderBy("track_number ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		t, err := r.scanRows(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func (r *TrackRepository) scan(row *sql.Row) (*models.Track, error) {
	t, err := scanTrack(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return t, nil
}

func (r *TrackRepository) scanRows(rows *sql.Rows) (*models.Track, error) {
	t, err := scanTrack(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return t, nil
}

func scanTrack(scan func(dest ...any) error) (*models.Track, error) {
	var (
		t                   models.Track
		source              string
		albumID             sql.NullString
		spotifyID, deezerID sql.NullString
		isrc                sql.NullString
	)

	err := scan(&t.ID, &t.Title, &albumID, &t.ArtistName, &source,
		&spotifyID, &deezerID, &isrc,
		&t.DurationMS, &t.TrackNumber, &t.Explicit, &t.Popularity, &t.HasLocal,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Source = models.Source(source)
	t.AlbumID = albumID.String
	t.SpotifyID = spotifyID.String
	t.DeezerID = deezerID.String
	t.ISRC = isrc.String
	return &t, nil
}
