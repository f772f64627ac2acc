package repositories

import (
	"errors"
	"testing"
	"time"

	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
	tu "github.com/harmonia-sh/harmonia/internal/testing"
)

func TestArtistRepository(t *testing.T) {
	t.Run("Create assigns id and timestamps", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewArtistRepository(db)

		artist := &models.Artist{Name: "Ryuichi Sakamoto", Source: models.SourceSpotify, SpotifyID: "sp-1"}
		if err := repo.Create(artist); err != nil {
			t.Fatalf("failed to create artist: %v", err)
		}
		if artist.ID == "" {
			t.Error("artist ID should be set after creation")
		}
		if artist.CreatedAt.IsZero() || artist.UpdatedAt.IsZero() {
			t.Error("timestamps should be set after creation")
		}
	})

	t.Run("Get round-trips all fields", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewArtistRepository(db)

		artist := &models.Artist{
			Name:          "Ryuichi Sakamoto",
			Source:        models.SourceHybrid,
			SpotifyID:     "sp-1",
			DeezerID:      "dz-1",
			MusicBrainzID: "mbid-1",
			Genres:        "ambient,classical",
			Popularity:    70,
			HasLocal:      true,
			SpotifyFollow: true,
		}
		if err := repo.Create(artist); err != nil {
			t.Fatalf("failed to create artist: %v", err)
		}

		got, err := repo.Get(artist.ID)
		if err != nil {
			t.Fatalf("failed to get artist: %v", err)
		}
		if got.Name != artist.Name || got.Source != artist.Source {
			t.Errorf("expected %s/%s, got %s/%s", artist.Name, artist.Source, got.Name, got.Source)
		}
		if got.SpotifyID != "sp-1" || got.DeezerID != "dz-1" || got.MusicBrainzID != "mbid-1" {
			t.Errorf("id slots did not round-trip: %+v", got)
		}
		if !got.HasLocal || !got.SpotifyFollow || got.DeezerFollow {
			t.Errorf("flags did not round-trip: %+v", got)
		}
	})

	t.Run("GetByProviderID and GetByUniversalKey", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewArtistRepository(db)

		artist := &models.Artist{Name: "Eno", Source: models.SourceSpotify, SpotifyID: "sp-1", MusicBrainzID: "mbid-1"}
		if err := repo.Create(artist); err != nil {
			t.Fatalf("failed to create artist: %v", err)
		}

		byProvider, err := repo.GetByProviderID(models.ProviderSpotify, "sp-1")
		if err != nil {
			t.Fatalf("failed to get by provider id: %v", err)
		}
		if byProvider.ID != artist.ID {
			t.Errorf("expected %s, got %s", artist.ID, byProvider.ID)
		}

		byKey, err := repo.GetByUniversalKey("mbid-1")
		if err != nil {
			t.Fatalf("failed to get by universal key: %v", err)
		}
		if byKey.ID != artist.ID {
			t.Errorf("expected %s, got %s", artist.ID, byKey.ID)
		}

		if _, err := repo.GetByProviderID(models.ProviderSpotify, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetByName is case-insensitive", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewArtistRepository(db)

		artist := &models.Artist{Name: "Oneohtrix Point Never", Source: models.SourceSpotify, SpotifyID: "sp-1"}
		if err := repo.Create(artist); err != nil {
			t.Fatalf("failed to create artist: %v", err)
		}

		got, err := repo.GetByName("ONEOHTRIX POINT NEVER")
		if err != nil {
			t.Fatalf("failed to get by name: %v", err)
		}
		if got.ID != artist.ID {
			t.Errorf("expected %s, got %s", artist.ID, got.ID)
		}
	})

	t.Run("unclaimed id slots do not collide", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewArtistRepository(db)

		// Two artists with no deezer id: the partial unique index must
		// permit both rows.
		for _, name := range []string{"First", "Second"} {
			a := &models.Artist{Name: name, Source: models.SourceSpotify, SpotifyID: "sp-" + name}
			if err := repo.Create(a); err != nil {
				t.Fatalf("failed to create %s: %v", name, err)
			}
		}
	})

	t.Run("duplicate provider id is rejected", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewArtistRepository(db)

		a := &models.Artist{Name: "First", Source: models.SourceSpotify, SpotifyID: "sp-dup"}
		if err := repo.Create(a); err != nil {
			t.Fatalf("failed to create artist: %v", err)
		}
		b := &models.Artist{Name: "Second", Source: models.SourceSpotify, SpotifyID: "sp-dup"}
		if err := repo.Create(b); err == nil {
			t.Error("expected a uniqueness violation for a duplicate spotify id")
		}
	})

	t.Run("SetFollowed and FollowedIDs", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewArtistRepository(db)

		artist := &models.Artist{Name: "Arca", Source: models.SourceSpotify, SpotifyID: "sp-1"}
		if err := repo.Create(artist); err != nil {
			t.Fatalf("failed to create artist: %v", err)
		}

		if err := repo.SetFollowed(artist.ID, models.ProviderSpotify, true); err != nil {
			t.Fatalf("failed to set followed: %v", err)
		}

		followed, err := repo.FollowedIDs(models.ProviderSpotify)
		if err != nil {
			t.Fatalf("failed to list followed: %v", err)
		}
		if followed["sp-1"] != artist.ID {
			t.Errorf("expected sp-1 -> %s, got %v", artist.ID, followed)
		}

		if err := repo.SetFollowed(artist.ID, models.ProviderSpotify, false); err != nil {
			t.Fatalf("failed to unset followed: %v", err)
		}
		followed, err = repo.FollowedIDs(models.ProviderSpotify)
		if err != nil {
			t.Fatalf("failed to list followed: %v", err)
		}
		if len(followed) != 0 {
			t.Errorf("expected no followed artists, got %v", followed)
		}
	})

	t.Run("Update on a missing row returns not found", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewArtistRepository(db)

		err := repo.Update(&models.Artist{ID: "missing", Name: "Ghost", Source: models.SourceLocal})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAlbumRepository(t *testing.T) {
	t.Run("SetSaved and SavedIDs", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewAlbumRepository(db)

		album := &models.Album{Name: "Ambient 1", ArtistName: "Brian Eno", Source: models.SourceDeezer, DeezerID: "dz-1"}
		if err := repo.Create(album); err != nil {
			t.Fatalf("failed to create album: %v", err)
		}

		if err := repo.SetSaved(album.ID, models.ProviderDeezer, true); err != nil {
			t.Fatalf("failed to set saved: %v", err)
		}

		saved, err := repo.SavedIDs(models.ProviderDeezer)
		if err != nil {
			t.Fatalf("failed to list saved: %v", err)
		}
		if saved["dz-1"] != album.ID {
			t.Errorf("expected dz-1 -> %s, got %v", album.ID, saved)
		}
	})

	t.Run("GetByName narrows by artist name", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewAlbumRepository(db)

		for i, artist := range []string{"Brian Eno", "Harold Budd"} {
			album := &models.Album{Name: "Self Titled", ArtistName: artist, Source: models.SourceSpotify, SpotifyID: "sp-" + string(rune('a'+i))}
			if err := repo.Create(album); err != nil {
				t.Fatalf("failed to create album: %v", err)
			}
		}

		got, err := repo.GetByName("self titled", "harold budd")
		if err != nil {
			t.Fatalf("failed to get by name: %v", err)
		}
		if got.ArtistName != "Harold Budd" {
			t.Errorf("expected Harold Budd's album, got %s", got.ArtistName)
		}
	})

	t.Run("NeedingTrackSync prefers never-synced albums", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewAlbumRepository(db)

		stamped := &models.Album{Name: "Stamped", Source: models.SourceSpotify, SpotifyID: "sp-1"}
		never := &models.Album{Name: "Never", Source: models.SourceSpotify, SpotifyID: "sp-2"}
		for _, a := range []*models.Album{stamped, never} {
			if err := repo.Create(a); err != nil {
				t.Fatalf("failed to create album: %v", err)
			}
		}
		if err := repo.MarkTracksSynced(stamped.ID, time.Now().Add(-100*24*time.Hour)); err != nil {
			t.Fatalf("failed to stamp album: %v", err)
		}

		batch, err := repo.NeedingTrackSync(2, 30*24*time.Hour)
		if err != nil {
			t.Fatalf("failed to read backlog: %v", err)
		}
		if len(batch) != 2 {
			t.Fatalf("expected both albums in the backlog, got %d", len(batch))
		}
		if batch[0].ID != never.ID {
			t.Errorf("expected the never-synced album first, got %s", batch[0].Name)
		}
	})
}

func TestTrackRepository(t *testing.T) {
	t.Run("GetByUniversalKey finds tracks by isrc", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewTrackRepository(db)

		track := &models.Track{Title: "Avril 14th", Source: models.SourceSpotify, SpotifyID: "sp-t1", ISRC: "GBBPW0100123"}
		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		got, err := repo.GetByUniversalKey("GBBPW0100123")
		if err != nil {
			t.Fatalf("failed to get by isrc: %v", err)
		}
		if got.ID != track.ID {
			t.Errorf("expected %s, got %s", track.ID, got.ID)
		}
	})

	t.Run("GetByProviderID rejects unknown providers", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewTrackRepository(db)

		if _, err := repo.GetByProviderID(models.ProviderMusicBrainz, "rec-1"); err == nil {
			t.Error("expected an error for a provider without a track id slot")
		}
	})

	t.Run("ListByAlbum orders by track number", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		albums := NewAlbumRepository(db)
		tracks := NewTrackRepository(db)

		album := &models.Album{Name: "Selected Ambient Works", Source: models.SourceSpotify, SpotifyID: "sp-al1"}
		if err := albums.Create(album); err != nil {
			t.Fatalf("failed to create album: %v", err)
		}

		for i, title := range []string{"Xtal", "Tha", "Pulsewidth"} {
			track := &models.Track{
				Title:       title,
				AlbumID:     album.ID,
				Source:      models.SourceSpotify,
				SpotifyID:   "sp-t" + title,
				TrackNumber: 3 - i,
			}
			if err := tracks.Create(track); err != nil {
				t.Fatalf("failed to create track: %v", err)
			}
		}

		listed, err := tracks.ListByAlbum(album.ID)
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(listed) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(listed))
		}
		if listed[0].TrackNumber != 1 || listed[2].TrackNumber != 3 {
			t.Errorf("expected tracks ordered by number, got %d,%d,%d",
				listed[0].TrackNumber, listed[1].TrackNumber, listed[2].TrackNumber)
		}
	})
}

func TestSettingsRepository(t *testing.T) {
	t.Run("bool and int fall back when unset or invalid", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewSettingsRepository(db)

		if got, err := repo.GetBool("missing", true); err != nil || !got {
			t.Errorf("expected fallback true for unset key, got %v (err %v)", got, err)
		}
		if got, err := repo.GetInt("missing", 42); err != nil || got != 42 {
			t.Errorf("expected fallback 42, got %d (err %v)", got, err)
		}

		if err := repo.SetBool("toggle", false); err != nil {
			t.Fatalf("failed to set bool: %v", err)
		}
		if got, err := repo.GetBool("toggle", true); err != nil || got {
			t.Errorf("expected stored false to win over fallback, got %v (err %v)", got, err)
		}

		if err := repo.SetInt("minutes", 15); err != nil {
			t.Fatalf("failed to set int: %v", err)
		}
		if got, err := repo.GetInt("minutes", 60); err != nil || got != 15 {
			t.Errorf("expected 15, got %d (err %v)", got, err)
		}
	})

	t.Run("read failures surface instead of posing as the fallback", func(t *testing.T) {
		db, err := shared.NewDatabase(":memory:", 1, 1)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { db.Close() })

		// No migrations: the settings table does not exist.
		repo := NewSettingsRepository(db)

		if got, err := repo.GetBool("sync.followed_artists.remove_unfollowed", false); err == nil {
			t.Errorf("expected an error reading from a missing table, got %v", got)
		}
		if _, err := repo.GetInt("sync.backfill_batch_size", 5); err == nil {
			t.Error("expected an error reading from a missing table")
		}
	})

	t.Run("last sync round-trips and clears", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewSettingsRepository(db)

		never, err := repo.GetLastSync("spotify.followed_artists")
		if err != nil {
			t.Fatalf("failed to read unset last sync: %v", err)
		}
		if !never.IsZero() {
			t.Errorf("expected zero time for never-run sync, got %v", never)
		}

		at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		if err := repo.SetLastSync("spotify.followed_artists", at); err != nil {
			t.Fatalf("failed to set last sync: %v", err)
		}

		got, err := repo.GetLastSync("spotify.followed_artists")
		if err != nil {
			t.Fatalf("failed to read last sync: %v", err)
		}
		if !got.Equal(at) {
			t.Errorf("expected %v, got %v", at, got)
		}

		if err := repo.ClearLastSync("spotify.followed_artists"); err != nil {
			t.Fatalf("failed to clear last sync: %v", err)
		}
		cleared, err := repo.GetLastSync("spotify.followed_artists")
		if err != nil {
			t.Fatalf("failed to read cleared last sync: %v", err)
		}
		if !cleared.IsZero() {
			t.Errorf("expected zero time after clear, got %v", cleared)
		}
	})
}

func TestSyncStatusRepository(t *testing.T) {
	t.Run("records the full running-idle-error lifecycle", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewSyncStatusRepository(db)

		if err := repo.MarkRunning("spotify", models.SyncFollowedArtists, ""); err != nil {
			t.Fatalf("failed to mark running: %v", err)
		}
		status, err := repo.Get("spotify", models.SyncFollowedArtists, "")
		if err != nil {
			t.Fatalf("failed to get status: %v", err)
		}
		if status.Status != models.SyncRunning {
			t.Errorf("expected running, got %s", status.Status)
		}

		if err := repo.MarkIdle("spotify", models.SyncFollowedArtists, "", 10, 3, 1); err != nil {
			t.Fatalf("failed to mark idle: %v", err)
		}
		status, err = repo.Get("spotify", models.SyncFollowedArtists, "")
		if err != nil {
			t.Fatalf("failed to get status: %v", err)
		}
		if status.Status != models.SyncIdle {
			t.Errorf("expected idle, got %s", status.Status)
		}
		if status.ItemsSynced != 10 || status.ItemsAdded != 3 || status.ItemsRemoved != 1 {
			t.Errorf("counts did not round-trip: %+v", status)
		}
		if status.LastSyncedAt == nil {
			t.Error("expected last synced time to be set")
		}

		if err := repo.MarkError("spotify", models.SyncFollowedArtists, "", "boom"); err != nil {
			t.Fatalf("failed to mark error: %v", err)
		}
		status, err = repo.Get("spotify", models.SyncFollowedArtists, "")
		if err != nil {
			t.Fatalf("failed to get status: %v", err)
		}
		if status.Status != models.SyncError || status.ErrorMessage != "boom" {
			t.Errorf("expected error state with message, got %+v", status)
		}
	})

	t.Run("scoped records stay separate", func(t *testing.T) {
		db := tu.SetupTestDB(t)
		repo := NewSyncStatusRepository(db)

		if err := repo.MarkIdle("spotify", models.SyncArtistAlbums, "artist-1", 5, 5, 0); err != nil {
			t.Fatalf("failed to mark idle: %v", err)
		}
		if err := repo.MarkIdle("spotify", models.SyncArtistAlbums, "artist-2", 7, 2, 0); err != nil {
			t.Fatalf("failed to mark idle: %v", err)
		}

		statuses, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list statuses: %v", err)
		}
		if len(statuses) != 2 {
			t.Errorf("expected 2 scoped records, got %d", len(statuses))
		}

		if _, err := repo.Get("spotify", models.SyncArtistAlbums, "artist-3"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown scope, got %v", err)
		}
	})
}
