package engine

import (
	"errors"
	"io"
	"testing"

	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/repositories"
	"github.com/harmonia-sh/harmonia/internal/shared"
	tu "github.com/harmonia-sh/harmonia/internal/testing"
)

func setupResolver(t *testing.T) (*Resolver, *repositories.Catalog) {
	t.Helper()
	db := tu.SetupTestDB(t)
	catalog := repositories.NewCatalog(db)
	return NewResolver(catalog, shared.NewLogger(io.Discard)), catalog
}

func TestResolveArtist(t *testing.T) {
	t.Run("creates new artist from provider record", func(t *testing.T) {
		resolver, catalog := setupResolver(t)

		id, created, err := resolver.ResolveArtist(models.ArtistRecord{
			Provider: models.ProviderSpotify,
			ID:       "sp-1",
			Name:     "Boards of Canada",
		})
		if err != nil {
			t.Fatalf("failed to resolve artist: %v", err)
		}
		if !created {
			t.Error("expected a new artist to be created")
		}

		artist, err := catalog.Artists.Get(id)
		if err != nil {
			t.Fatalf("failed to load artist: %v", err)
		}
		if artist.Source != models.SourceSpotify {
			t.Errorf("expected source spotify, got %s", artist.Source)
		}
		if artist.SpotifyID != "sp-1" {
			t.Errorf("expected spotify id sp-1, got %s", artist.SpotifyID)
		}
	})

	t.Run("is idempotent for repeated records", func(t *testing.T) {
		resolver, _ := setupResolver(t)

		rec := models.ArtistRecord{Provider: models.ProviderSpotify, ID: "sp-1", Name: "Autechre"}

		first, created, err := resolver.ResolveArtist(rec)
		if err != nil {
			t.Fatalf("first resolve failed: %v", err)
		}
		if !created {
			t.Error("first resolve should create")
		}

		second, created, err := resolver.ResolveArtist(rec)
		if err != nil {
			t.Fatalf("second resolve failed: %v", err)
		}
		if created {
			t.Error("second resolve should not create")
		}
		if first != second {
			t.Errorf("expected the same canonical id, got %s and %s", first, second)
		}
	})

	t.Run("merges by musicbrainz id and promotes to hybrid", func(t *testing.T) {
		resolver, catalog := setupResolver(t)

		spotifyID, _, err := resolver.ResolveArtist(models.ArtistRecord{
			Provider:      models.ProviderSpotify,
			ID:            "sp-1",
			Name:          "Aphex Twin",
			MusicBrainzID: "mbid-1",
		})
		if err != nil {
			t.Fatalf("failed to resolve spotify record: %v", err)
		}

		deezerID, created, err := resolver.ResolveArtist(models.ArtistRecord{
			Provider:      models.ProviderDeezer,
			ID:            "dz-9",
			Name:          "Aphex Twin",
			MusicBrainzID: "mbid-1",
		})
		if err != nil {
			t.Fatalf("failed to resolve deezer record: %v", err)
		}
		if created {
			t.Error("deezer record should merge, not create")
		}
		if spotifyID != deezerID {
			t.Errorf("expected one canonical artist, got %s and %s", spotifyID, deezerID)
		}

		artist, err := catalog.Artists.Get(spotifyID)
		if err != nil {
			t.Fatalf("failed to load artist: %v", err)
		}
		if artist.Source != models.SourceHybrid {
			t.Errorf("expected hybrid source, got %s", artist.Source)
		}
		if artist.SpotifyID != "sp-1" || artist.DeezerID != "dz-9" {
			t.Errorf("expected both id slots claimed, got spotify=%q deezer=%q", artist.SpotifyID, artist.DeezerID)
		}
	})

	t.Run("first claimed id slot wins", func(t *testing.T) {
		resolver, catalog := setupResolver(t)

		id, _, err := resolver.ResolveArtist(models.ArtistRecord{
			Provider:      models.ProviderSpotify,
			ID:            "sp-original",
			Name:          "Plaid",
			MusicBrainzID: "mbid-2",
		})
		if err != nil {
			t.Fatalf("failed to resolve first record: %v", err)
		}

		// A conflicting spotify claim arriving through another provider's
		// cross-reference must not displace the recorded one.
		_, _, err = resolver.ResolveArtist(models.ArtistRecord{
			Provider:      models.ProviderDeezer,
			ID:            "dz-1",
			Name:          "Plaid",
			MusicBrainzID: "mbid-2",
			OtherIDs:      map[string]string{models.ProviderSpotify: "sp-conflicting"},
		})
		if err != nil {
			t.Fatalf("failed to resolve second record: %v", err)
		}

		artist, err := catalog.Artists.Get(id)
		if err != nil {
			t.Fatalf("failed to load artist: %v", err)
		}
		if artist.SpotifyID != "sp-original" {
			t.Errorf("expected spotify id sp-original to survive, got %s", artist.SpotifyID)
		}
	})

	t.Run("falls back to case-insensitive name match", func(t *testing.T) {
		resolver, _ := setupResolver(t)

		first, _, err := resolver.ResolveArtist(models.ArtistRecord{
			Provider: models.ProviderSpotify, ID: "sp-1", Name: "Squarepusher",
		})
		if err != nil {
			t.Fatalf("failed to resolve first record: %v", err)
		}

		second, created, err := resolver.ResolveArtist(models.ArtistRecord{
			Provider: models.ProviderDeezer, ID: "dz-2", Name: "SQUAREPUSHER",
		})
		if err != nil {
			t.Fatalf("failed to resolve second record: %v", err)
		}
		if created {
			t.Error("name match should merge, not create")
		}
		if first != second {
			t.Errorf("expected one canonical artist, got %s and %s", first, second)
		}
	})

	t.Run("rejects records without identifiers", func(t *testing.T) {
		resolver, _ := setupResolver(t)

		_, _, err := resolver.ResolveArtist(models.ArtistRecord{
			Provider: models.ProviderSpotify,
			Name:     "No IDs",
		})
		if !errors.Is(err, shared.ErrInvalidRecord) {
			t.Errorf("expected ErrInvalidRecord, got %v", err)
		}
	})
}

func TestResolveTrack(t *testing.T) {
	t.Run("deduplicates by isrc across providers", func(t *testing.T) {
		resolver, catalog := setupResolver(t)

		spotifyID, _, err := resolver.ResolveTrack(models.TrackRecord{
			Provider: models.ProviderSpotify,
			ID:       "sp-t1",
			Title:    "Windowlicker",
			ISRC:     "GBBPW9900011",
		}, "")
		if err != nil {
			t.Fatalf("failed to resolve spotify track: %v", err)
		}

		deezerID, created, err := resolver.ResolveTrack(models.TrackRecord{
			Provider: models.ProviderDeezer,
			ID:       "dz-t7",
			Title:    "Windowlicker",
			ISRC:     "GBBPW9900011",
		}, "")
		if err != nil {
			t.Fatalf("failed to resolve deezer track: %v", err)
		}
		if created {
			t.Error("matching isrc should merge, not create")
		}
		if spotifyID != deezerID {
			t.Errorf("expected one canonical track, got %s and %s", spotifyID, deezerID)
		}

		track, err := catalog.Tracks.Get(spotifyID)
		if err != nil {
			t.Fatalf("failed to load track: %v", err)
		}
		if track.Source != models.SourceHybrid {
			t.Errorf("expected hybrid source, got %s", track.Source)
		}
		if track.SpotifyID != "sp-t1" || track.DeezerID != "dz-t7" {
			t.Errorf("expected both id slots claimed, got spotify=%q deezer=%q", track.SpotifyID, track.DeezerID)
		}
	})

	t.Run("never matches tracks by title", func(t *testing.T) {
		resolver, _ := setupResolver(t)

		first, _, err := resolver.ResolveTrack(models.TrackRecord{
			Provider: models.ProviderSpotify, ID: "sp-t1", Title: "Untitled",
		}, "")
		if err != nil {
			t.Fatalf("failed to resolve first track: %v", err)
		}

		second, created, err := resolver.ResolveTrack(models.TrackRecord{
			Provider: models.ProviderDeezer, ID: "dz-t1", Title: "Untitled",
		}, "")
		if err != nil {
			t.Fatalf("failed to resolve second track: %v", err)
		}
		if !created {
			t.Error("tracks sharing only a title must stay distinct")
		}
		if first == second {
			t.Error("expected two distinct canonical tracks")
		}
	})
}

func TestResolveAlbum(t *testing.T) {
	t.Run("links album to canonical artist through provider id", func(t *testing.T) {
		resolver, catalog := setupResolver(t)

		artistID, _, err := resolver.ResolveArtist(models.ArtistRecord{
			Provider: models.ProviderSpotify, ID: "sp-a1", Name: "Burial",
		})
		if err != nil {
			t.Fatalf("failed to resolve artist: %v", err)
		}

		albumID, _, err := resolver.ResolveAlbum(models.AlbumRecord{
			Provider:   models.ProviderSpotify,
			ID:         "sp-al1",
			Name:       "Untrue",
			ArtistID:   "sp-a1",
			ArtistName: "Burial",
		}, "")
		if err != nil {
			t.Fatalf("failed to resolve album: %v", err)
		}

		album, err := catalog.Albums.Get(albumID)
		if err != nil {
			t.Fatalf("failed to load album: %v", err)
		}
		if album.ArtistID != artistID {
			t.Errorf("expected album linked to artist %s, got %s", artistID, album.ArtistID)
		}
	})

	t.Run("matches by name and artist name", func(t *testing.T) {
		resolver, _ := setupResolver(t)

		first, _, err := resolver.ResolveAlbum(models.AlbumRecord{
			Provider: models.ProviderSpotify, ID: "sp-al1", Name: "Drukqs", ArtistName: "Aphex Twin",
		}, "")
		if err != nil {
			t.Fatalf("failed to resolve first album: %v", err)
		}

		second, created, err := resolver.ResolveAlbum(models.AlbumRecord{
			Provider: models.ProviderDeezer, ID: "dz-al2", Name: "Drukqs", ArtistName: "Aphex Twin",
		}, "")
		if err != nil {
			t.Fatalf("failed to resolve second album: %v", err)
		}
		if created {
			t.Error("same album name and artist should merge")
		}
		if first != second {
			t.Errorf("expected one canonical album, got %s and %s", first, second)
		}
	})
}
