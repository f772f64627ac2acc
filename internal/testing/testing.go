// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"testing"

	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/providers"
	"github.com/harmonia-sh/harmonia/internal/shared"
)

// MockProvider is a test double for [providers.Provider]. Fixture slices are
// returned in a single page; Calls counts every remote operation so tests can
// assert that a skipped sync made zero provider calls.
type MockProvider struct {
	ProviderName string
	Capabilities map[providers.Capability]bool

	Artists      []models.ArtistRecord
	Albums       []models.AlbumRecord
	Playlists    []models.PlaylistRecord
	Discography  map[string][]models.AlbumRecord // keyed by provider-native artist id
	TrackLists   map[string][]models.TrackRecord // keyed by provider-native album id
	Releases     []models.AlbumRecord
	ChartTracks  []models.TrackRecord
	ISRCTracks   map[string]*models.TrackRecord
	SearchHits   []models.ArtistRecord

	// Err, when set, is returned by every remote operation.
	Err error

	Calls int
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockProvider) CanUse(c providers.Capability) bool {
	if m.Capabilities == nil {
		return true
	}
	return m.Capabilities[c]
}

func (m *MockProvider) FollowedArtists(ctx context.Context, cursor string) ([]models.ArtistRecord, string, error) {
	m.Calls++
	return m.Artists, "", m.Err
}

func (m *MockProvider) SavedAlbums(ctx context.Context, cursor string) ([]models.AlbumRecord, string, error) {
	m.Calls++
	return m.Albums, "", m.Err
}

func (m *MockProvider) UserPlaylists(ctx context.Context, cursor string) ([]models.PlaylistRecord, string, error) {
	m.Calls++
	return m.Playlists, "", m.Err
}

func (m *MockProvider) ArtistAlbums(ctx context.Context, artistID, cursor string) ([]models.AlbumRecord, string, error) {
	m.Calls++
	return m.Discography[artistID], "", m.Err
}

func (m *MockProvider) AlbumTracks(ctx context.Context, albumID, cursor string) ([]models.TrackRecord, string, error) {
	m.Calls++
	return m.TrackLists[albumID], "", m.Err
}

func (m *MockProvider) NewReleases(ctx context.Context) ([]models.AlbumRecord, error) {
	m.Calls++
	return m.Releases, m.Err
}

func (m *MockProvider) Charts(ctx context.Context) ([]models.TrackRecord, error) {
	m.Calls++
	return m.ChartTracks, m.Err
}

func (m *MockProvider) LookupTrackByISRC(ctx context.Context, isrc string) (*models.TrackRecord, error) {
	m.Calls++
	return m.ISRCTracks[isrc], m.Err
}

func (m *MockProvider) SearchArtists(ctx context.Context, query string) ([]models.ArtistRecord, error) {
	m.Calls++
	return m.SearchHits, m.Err
}

// SetupTestDB creates an in-memory SQLite database with migrations applied.
// The pool is capped at one connection; an in-memory database exists per
// connection, and a second pool connection would see an empty schema.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:", 1, 1)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}
