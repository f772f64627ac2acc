package repositories

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
)

const artistColumns = `id, name, source, spotify_id, deezer_id, musicbrainz_id, genres, popularity,
	image_url, image_path, has_local, spotify_followed, deezer_followed, albums_synced_at, created_at, updated_at`

// ArtistRepository persists canonical artists.
type ArtistRepository struct {
	db DBTX
}

// NewArtistRepository creates an ArtistRepository over the given DBTX.
func NewArtistRepository(db DBTX) *ArtistRepository {
	return &ArtistRepository{db: db}
}

// artistIDColumn maps a provider name to its id slot column.
func artistIDColumn(provider string) (string, error) {
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

// artistFollowColumn maps a provider name to its membership flag column.
func artistFollowColumn(provider string) (string, error) {
	switch provider {
	case models.ProviderSpotify:
		return "spotify_followed", nil
	case models.ProviderDeezer:
		return "deezer_followed", nil
	}
	return "", fmt.Errorf("provider %q has no followed-artists membership", provider)
}

// Create inserts a new artist, assigning an id and timestamps when unset.
func (r *ArtistRepository) Create(a *models.Artist) error {
	if a.ID == "" {
		a.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
		INSERT INTO artists (` + artistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		a.ID, a.Name, string(a.Source),
		nullable(a.SpotifyID), nullable(a.DeezerID), nullable(a.MusicBrainzID),
		a.Genres, a.Popularity, a.ImageURL, a.ImagePath,
		a.HasLocal, a.SpotifyFollow, a.DeezerFollow,
		a.AlbumsSyncedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert artist: %w", err)
	}
	return nil
}

// Update rewrites all mutable fields of an existing artist.
func (r *ArtistRepository) Update(a *models.Artist) error {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE artists
		SET name = ?, source = ?, spotify_id = ?, deezer_id = ?, musicbrainz_id = ?,
			genres = ?, popularity = ?, image_url = ?, image_path = ?, has_local = ?,
			spotify_followed = ?, deezer_followed = ?, albums_synced_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		a.Name, string(a.Source),
		nullable(a.SpotifyID), nullable(a.DeezerID), nullable(a.MusicBrainzID),
		a.Genres, a.Popularity, a.ImageURL, a.ImagePath, a.HasLocal,
		a.SpotifyFollow, a.DeezerFollow, a.AlbumsSyncedAt, a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update artist: %w", err)
	}
	return requireRow(result, "artist", a.ID)
}

// Get retrieves an artist by canonical id.
func (r *ArtistRepository) Get(id string) (*models.Artist, error) {
	row := r.db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE id = ?`, id)
	return r.scan(row)
}

// GetByProviderID retrieves an artist by one provider's id slot.
func (r *ArtistRepository) GetByProviderID(provider, providerID string) (*models.Artist, error) {
	col, err := artistIDColumn(provider)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE `+col+` = ?`, providerID)
	return r.scan(row)
}

// GetByUniversalKey retrieves an artist by MusicBrainz id.
func (r *ArtistRepository) GetByUniversalKey(mbid string) (*models.Artist, error) {
	return r.GetByProviderID(models.ProviderMusicBrainz, mbid)
}

// GetByName retrieves an artist by case-insensitive exact name match.
// Name matching is lower confidence than id matching and only used as a
// last resort by the resolver.
func (r *ArtistRepository) GetByName(name string) (*models.Artist, error) {
	row := r.db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE name = ? COLLATE NOCASE LIMIT 1`, name)
	return r.scan(row)
}

// FollowedIDs returns the provider-native id set of artists currently marked
// followed on the given provider, mapped to canonical ids. This is the
// "local known set" side of the followed-artists diff.
func (r *ArtistRepository) FollowedIDs(provider string) (map[string]string, error) {
	idCol, err := artistIDColumn(provider)
	if err != nil {
		return nil, err
	}
	followCol, err := artistFollowColumn(provider)
	if err != nil {
		return nil, err
	}

	query, args, err := builder.
		Select(idCol, "id").
		From("artists").
		Where(sq.And{
			sq.Eq{followCol: true},
			sq.NotEq{idCol: nil},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query followed artists: %w", err)
	}
	defer rows.Close()

	known := make(map[string]string)
	for rows.Next() {
		var providerID, canonicalID string
		if err := rows.Scan(&providerID, &canonicalID); err != nil {
			return nil, fmt.Errorf("failed to scan followed artist: %w", err)
		}
		known[providerID] = canonicalID
	}
	return known, rows.Err()
}

// SetFollowed flips one provider's membership flag on an artist.
func (r *ArtistRepository) SetFollowed(canonicalID, provider string, followed bool) error {
	col, err := artistFollowColumn(provider)
	if err != nil {
		return err
	}
	result, err := r.db.Exec(`UPDATE artists SET `+col+` = ?, updated_at = ? WHERE id = ?`,
		followed, time.Now().UTC(), canonicalID)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	return requireRow(result, "artist", canonicalID)
}

// NeedingAlbumSync selects the gradual-backfill batch for artist_albums:
// followed artists never synced first, then the stalest ones past staleAfter.
func (r *ArtistRepository) NeedingAlbumSync(limit int, staleAfter time.Duration) ([]*models.Artist, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)

	query, args, err := builder.
		Select(artistColumns).
		From("artists").
		Where(sq.And{
			sq.Or{sq.Eq{"spotify_followed": true}, sq.Eq{"deezer_followed": true}},
			sq.Or{sq.Eq{"albums_synced_at": nil}, sq.Lt{"albums_synced_at": cutoff}},
		}).
		OrderBy("albums_synced_at IS NOT NULL", "albums_synced_at ASC").
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

	var artists []*models.Artist
	for rows.Next() {
		a, err := r.scanRows(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, a)
	}
	return artists, rows.Err()
}

// MarkAlbumsSynced stamps the artist's discography backfill time.
func (r *ArtistRepository) MarkAlbumsSynced(canonicalID string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE artists SET albums_synced_at = ?, updated_at = ? WHERE id = ?`,
		at, time.Now().UTC(), canonicalID)
	if err != nil {
		return fmt.Errorf("failed to mark albums synced: %w", err)
	}
	return requireRow(result, "artist", canonicalID)
}

// SetImagePath records where the artwork downloader placed this artist's image.
func (r *ArtistRepository) SetImagePath(canonicalID, path string) error {
	_, err := r.db.Exec(`UPDATE artists SET image_path = ?, updated_at = ? WHERE id = ?`,
		path, time.Now().UTC(), canonicalID)
	if err != nil {
		return fmt.Errorf("failed to set image path: %w", err)
	}
	return nil
}

func (r *ArtistRepository) scan(row *sql.Row) (*models.Artist, error) {
	a, err := scanArtist(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artist: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}
	return a, nil
}

func (r *ArtistRepository) scanRows(rows *sql.Rows) (*models.Artist, error) {
	a, err := scanArtist(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}
	return a, nil
}

func scanArtist(scan func(dest ...any) error) (*models.Artist, error) {
	var (
		a                      models.Artist
		source                 string
		spotifyID, deezerID    sql.NullString
		mbID                   sql.NullString
		albumsSyncedAt         sql.NullTime
	)

	err := scan(&a.ID, &a.Name, &source, &spotifyID, &deezerID, &mbID,
		&a.Genres, &a.Popularity, &a.ImageURL, &a.ImagePath, &a.HasLocal,
		&a.SpotifyFollow, &a.DeezerFollow, &albumsSyncedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Source = models.Source(source)
	a.SpotifyID = spotifyID.String
	a.DeezerID = deezerID.String
	a.MusicBrainzID = mbID.String
	if albumsSyncedAt.Valid {
		a.AlbumsSyncedAt = &albumsSyncedAt.Time
	}
	return &a, nil
}

// nullable converts an empty string to NULL so unique provider-id indexes
// ignore unclaimed slots.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// requireRow converts a zero-row update into a not-found error.
func requireRow(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, shared.ErrNotFound)
	}
	return nil
}
