package repositories

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
)

const albumColumns = `id, name, artist_id, artist_name, source, spotify_id, deezer_id, musicbrainz_id,
	album_type, release_date, total_tracks, image_url, image_path, has_local,
	spotify_saved, deezer_saved, tracks_synced_at, created_at, updated_at`

// AlbumRepository persists canonical albums.
type AlbumRepository struct {
	db DBTX
}

// NewAlbumRepository creates an AlbumRepository over the given DBTX.
func NewAlbumRepository(db DBTX) *AlbumRepository {
	return &AlbumRepository{db: db}
}

func albumIDColumn(provider string) (string, error) {
	switch provider {
	case models.ProviderSpotify:
		return "spotify_id", nil
	case models.ProviderDeezer:
		return "deezer_id", nil
	case models.ProviderMusicBrainz:
		return "musicbrainz_id", nil
	}
	return "", fmt.Errorf("unknown provider %q", provider)
}

func albumSavedColumn(provider string) (string, error) {
	switch provider {
	case models.ProviderSpotify:
		return "spotify_saved", nil
	case models.ProviderDeezer:
		return "deezer_saved", nil
	}
	return "", fmt.Errorf("provider %q has no saved-albums membership", provider)
}

// Create inserts a new album, assigning an id and timestamps when unset.
func (r *AlbumRepository) Create(a *models.Album) error {
	if a.ID == "" {
		a.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
		INSERT INTO albums (` + albumColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		a.ID, a.Name, nullable(a.ArtistID), a.ArtistName, string(a.Source),
		nullable(a.SpotifyID), nullable(a.DeezerID), nullable(a.MusicBrainzID),
		a.AlbumType, a.ReleaseDate, a.TotalTracks, a.ImageURL, a.ImagePath, a.HasLocal,
		a.SpotifySaved, a.DeezerSaved, a.TracksSyncedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert album: %w", err)
	}
	return nil
}

// Update rewrites all mutable fields of an existing album.
func (r *AlbumRepository) Update(a *models.Album) error {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE albums
		SET name = ?, artist_id = ?, artist_name = ?, source = ?, spotify_id = ?, deezer_id = ?,
			musicbrainz_id = ?, album_type = ?, release_date = ?, total_tracks = ?,
			image_url = ?, image_path = ?, has_local = ?, spotify_saved = ?, deezer_saved = ?,
			tracks_synced_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		a.Name, nullable(a.ArtistID), a.ArtistName, string(a.Source),
		nullable(a.SpotifyID), nullable(a.DeezerID), nullable(a.MusicBrainzID),
		a.AlbumType, a.ReleaseDate, a.TotalTracks, a.ImageURL, a.ImagePath, a.HasLocal,
		a.SpotifySaved, a.DeezerSaved, a.TracksSyncedAt, a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update album: %w", err)
	}
	return requireRow(result, "album", a.ID)
}

// Get retrieves an album by canonical id.
func (r *AlbumRepository) Get(id string) (*models.Album, error) {
	row := r.db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE id = ?`, id)
	return r.scan(row)
}

// GetByProviderID retrieves an album by one provider's id slot.
func (r *AlbumRepository) GetByProviderID(provider, providerID string) (*models.Album, error) {
	col, err := albumIDColumn(provider)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE `+col+` = ?`, providerID)
	return r.scan(row)
}

// GetByUniversalKey retrieves an album by MusicBrainz release-group id.
func (r *AlbumRepository) GetByUniversalKey(mbid string) (*models.Album, error) {
	return r.GetByProviderID(models.ProviderMusicBrainz, mbid)
}

// GetByName retrieves an album by case-insensitive exact name match,
// optionally narrowed to one artist. Last-resort matching only.
func (r *AlbumRepository) GetByName(name, artistName string) (*models.Album, error) {
	q := builder.
		Select(albumColumns).
		From("albums").
		Where(sq.Expr("name = ? COLLATE NOCASE", name)).
		Limit(1)
	if artistName != "" {
		q = q.Where(sq.Expr("artist_name = ? COLLATE NOCASE", artistName))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return r.scan(r.db.QueryRow(query, args...))
}

// SavedIDs returns the provider-native id set of albums currently marked
// saved on the given provider, mapped to canonical ids.
func (r *AlbumRepository) SavedIDs(provider string) (map[string]string, error) {
	idCol, err := albumIDColumn(provider)
	if err != nil {
		return nil, err
	}
	savedCol, err := albumSavedColumn(provider)
	if err != nil {
		return nil, err
	}

	query, args, err := builder.
		Select(idCol, "id").
		From("albums").
		Where(sq.And{
			sq.Eq{savedCol: true},
			sq.NotEq{idCol: nil},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved albums: %w", err)
	}
	defer rows.Close()

	known := make(map[string]string)
	for rows.Next() {
		var providerID, canonicalID string
		if err := rows.Scan(&providerID, &canonicalID); err != nil {
			return nil, fmt.Errorf("failed to scan saved album: %w", err)
		}
		known[providerID] = canonicalID
	}
	return known, rows.Err()
}

// SetSaved flips one provider's membership flag on an album.
func (r *AlbumRepository) SetSaved(canonicalID, provider string, saved bool) error {
	col, err := albumSavedColumn(provider)
	if err != nil {
		return err
	}
	result, err := r.db.Exec(`UPDATE albums SET `+col+` = ?, updated_at = ? WHERE id = ?`,
		saved, time.Now().UTC(), canonicalID)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	return requireRow(result, "album", canonicalID)
}

// NeedingTrackSync selects the gradual-backfill batch for album_tracks:
// albums never synced first, then the stalest ones past staleAfter.
func (r *AlbumRepository) NeedingTrackSync(limit int, staleAfter time.Duration) ([]*models.Album, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)

	query, args, err := builder.
		Select(albumColumns).
		From("albums").
		Where(sq.Or{sq.Eq{"tracks_synced_at": nil}, sq.Lt{"tracks_synced_at": cutoff}}).
		OrderBy("tracks_synced_at IS NOT NULL", "tracks_synced_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backlog: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		a, err := r.scanRows(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// MarkTracksSynced stamps the album's track backfill time.
func (r *AlbumRepository) MarkTracksSynced(canonicalID string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE albums SET tracks_synced_at = ?, updated_at = ? WHERE id = ?`,
		at, time.Now().UTC(), canonicalID)
	if err != nil {
		return fmt.Errorf("failed to mark tracks synced: %w", err)
	}
	return requireRow(result, "album", canonicalID)
}

// SetImagePath records where the artwork downloader placed this album's cover.
func (r *AlbumRepository) SetImagePath(canonicalID, path string) error {
	_, err := r.db.Exec(`UPDATE albums SET image_path = ?, updated_at = ? WHERE id = ?`,
		path, time.Now().UTC(), canonicalID)
	if err != nil {
		return fmt.Errorf("failed to set image path: %w", err)
	}
	return nil
}

func (r *AlbumRepository) scan(row *sql.Row) (*models.Album, error) {
	a, err := scanAlbum(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("album: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}
	return a, nil
}

func (r *AlbumRepository) scanRows(rows *sql.Rows) (*models.Album, error) {
	a, err := scanAlbum(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}
	return a, nil
}

func scanAlbum(scan func(dest ...any) error) (*models.Album, error) {
	var (
		a                   models.Album
		source              string
		artistID            sql.NullString
		spotifyID, deezerID sql.NullString
		mbID                sql.NullString
		tracksSyncedAt      sql.NullTime
	)

	err := scan(&a.ID, &a.Name, &artistID, &a.ArtistName, &source,
		&spotifyID, &deezerID, &mbID,
		&a.AlbumType, &a.ReleaseDate, &a.TotalTracks, &a.ImageURL, &a.ImagePath, &a.HasLocal,
		&a.SpotifySaved, &a.DeezerSaved, &tracksSyncedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Source = models.Source(source)
	a.ArtistID = artistID.String
	a.SpotifyID = spotifyID.String
	a.DeezerID = deezerID.String
	a.MusicBrainzID = mbID.String
	if tracksSyncedAt.Valid {
		a.TracksSyncedAt = &tracksSyncedAt.Time
	}
	return &a, nil
}
