package repositories

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
)

const playlistColumns = `id, name, description, owner, source, spotify_id, deezer_id,
	track_count, public, image_url, image_path, spotify_linked, deezer_linked, created_at, updated_at`

// PlaylistRepository persists canonical playlists.
type PlaylistRepository struct {
	db DBTX
}

// NewPlaylistRepository creates a PlaylistRepository over the given DBTX.
func NewPlaylistRepository(db DBTX) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

func playlistIDColumn(provider string) (string, error) {
	switch provider {
	case models.ProviderSpotify:
		return "spotify_id", nil
	case models.ProviderDeezer:
		return "deezer_id", nil
	}
	return "", fmt.Errorf("unknown provider %q", provider)
}

func playlistLinkedColumn(provider string) (string, error) {
	switch provider {
	case models.ProviderSpotify:
		return "spotify_linked", nil
	case models.ProviderDeezer:
		return "deezer_linked", nil
	}
	return "", fmt.Errorf("provider %q has no playlist membership", provider)
}

// Create inserts a new playlist, assigning an id and timestamps when unset.
func (r *PlaylistRepository) Create(p *models.Playlist) error {
	if p.ID == "" {
		p.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO playlists (` + playlistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		p.ID, p.Name, p.Description, p.Owner, string(p.Source),
		nullable(p.SpotifyID), nullable(p.DeezerID),
		p.TrackCount, p.Public, p.ImageURL, p.ImagePath,
		p.SpotifyLinked, p.DeezerLinked, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

// Update rewrites all mutable fields of an existing playlist.
func (r *PlaylistRepository) Update(p *models.Playlist) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE playlists
		SET name = ?, description = ?, owner = ?, source = ?, spotify_id = ?, deezer_id = ?,
			track_count = ?, public = ?, image_url = ?, image_path = ?,
			spotify_linked = ?, deezer_linked = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		p.Name, p.Description, p.Owner, string(p.Source),
		nullable(p.SpotifyID), nullable(p.DeezerID),
		p.TrackCount, p.Public, p.ImageURL, p.ImagePath,
		p.SpotifyLinked, p.DeezerLinked, p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return requireRow(result, "playlist", p.ID)
}

// Get retrieves a playlist by canonical id.
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	row := r.db.QueryRow(`SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	return r.scan(row)
}

// GetByProviderID retrieves a playlist by one provider's id slot.
func (r *PlaylistRepository) GetByProviderID(provider, providerID string) (*models.Playlist, error) {
	col, err := playlistIDColumn(provider)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(`SELECT `+playlistColumns+` FROM playlists WHERE `+col+` = ?`, providerID)
	return r.scan(row)
}

// LinkedIDs returns the provider-native id set of playlists currently linked
// on the given provider, mapped to canonical ids.
func (r *PlaylistRepository) LinkedIDs(provider string) (map[string]string, error) {
	idCol, err := playlistIDColumn(provider)
	if err != nil {
		return nil, err
	}
	linkedCol, err := playlistLinkedColumn(provider)
	if err != nil {
		return nil, err
	}

	query, args, err := builder.
		Select(idCol, "id").
		From("playlists").
		Where(sq.And{
			sq.Eq{linkedCol: true},
			sq.NotEq{idCol: nil},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked playlists: %w", err)
	}
	defer rows.Close()

	known := make(map[string]string)
	for rows.Next() {
		var providerID, canonicalID string
		if err := rows.Scan(&providerID, &canonicalID); err != nil {
			return nil, fmt.Errorf("failed to scan linked playlist: %w", err)
		}
		known[providerID] = canonicalID
	}
	return known, rows.Err()
}

// SetLinked flips one provider's membership flag on a playlist.
func (r *PlaylistRepository) SetLinked(canonicalID, provider string, linked bool) error {
	col, err := playlistLinkedColumn(provider)
	if err != nil {
		return err
	}
	result, err := r.db.Exec(`UPDATE playlists SET `+col+` = ?, updated_at = ? WHERE id = ?`,
		linked, time.Now().UTC(), canonicalID)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	return requireRow(result, "playlist", canonicalID)
}

// SetImagePath records the cached artwork path for a playlist.
func (r *PlaylistRepository) SetImagePath(canonicalID, path string) error {
	result, err := r.db.Exec(`UPDATE playlists SET image_path = ?, updated_at = ? WHERE id = ?`,
		path, time.Now().UTC(), canonicalID)
	if err != nil {
		return fmt.Errorf("failed to update image path: %w", err)
	}
	return requireRow(result, "playlist", canonicalID)
}

func (r *PlaylistRepository) scan(row *sql.Row) (*models.Playlist, error) {
	p, err := scanPlaylist(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("playlist: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return p, nil
}

func scanPlaylist(scan func(dest ...any) error) (*models.Playlist, error) {
	var (
		p                   models.Playlist
		source              string
		spotifyID, deezerID sql.NullString
	)

	err := scan(&p.ID, &p.Name, &p.Description, &p.Owner, &source,
		&spotifyID, &deezerID,
		&p.TrackCount, &p.Public, &p.ImageURL, &p.ImagePath,
		&p.SpotifyLinked, &p.DeezerLinked, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Source = models.Source(source)
	p.SpotifyID = spotifyID.String
	p.DeezerID = deezerID.String
	return &p, nil
}
