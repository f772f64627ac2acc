package models

import (
	"errors"
	"testing"

	"github.com/harmonia-sh/harmonia/internal/shared"
)

func TestSourceMerge(t *testing.T) {
	cases := []struct {
		name     string
		source   Source
		provider string
		want     Source
	}{
		{"empty source takes the provider", Source(""), ProviderSpotify, SourceSpotify},
		{"same provider is a no-op", SourceSpotify, ProviderSpotify, SourceSpotify},
		{"second provider promotes to hybrid", SourceSpotify, ProviderDeezer, SourceHybrid},
		{"local plus provider promotes to hybrid", SourceLocal, ProviderDeezer, SourceHybrid},
		{"hybrid stays hybrid", SourceHybrid, ProviderSpotify, SourceHybrid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.source.Merge(tc.provider); got != tc.want {
				t.Errorf("Merge(%q) on %q = %q, want %q", tc.provider, tc.source, got, tc.want)
			}
		})
	}
}

func TestProviderID(t *testing.T) {
	artist := &Artist{SpotifyID: "sp", DeezerID: "dz", MusicBrainzID: "mb"}

	if got := artist.ProviderID(ProviderSpotify); got != "sp" {
		t.Errorf("expected sp, got %s", got)
	}
	if got := artist.ProviderID(ProviderMusicBrainz); got != "mb" {
		t.Errorf("expected mb, got %s", got)
	}
	if got := artist.ProviderID("unknown"); got != "" {
		t.Errorf("expected empty slot for unknown provider, got %s", got)
	}

	track := &Track{SpotifyID: "sp-t"}
	if got := track.ProviderID(ProviderMusicBrainz); got != "" {
		t.Errorf("tracks have no musicbrainz slot, got %s", got)
	}
}

func TestRecordValidation(t *testing.T) {
	t.Run("artist record needs a name and an identifier", func(t *testing.T) {
		ok := ArtistRecord{Provider: ProviderSpotify, ID: "sp-1", Name: "Mogwai"}
		if err := ok.Validate(); err != nil {
			t.Errorf("expected valid record, got %v", err)
		}

		noName := ArtistRecord{Provider: ProviderSpotify, ID: "sp-1"}
		if err := noName.Validate(); !errors.Is(err, shared.ErrInvalidRecord) {
			t.Errorf("expected ErrInvalidRecord for missing name, got %v", err)
		}

		noID := ArtistRecord{Provider: ProviderSpotify, Name: "Mogwai"}
		if err := noID.Validate(); !errors.Is(err, shared.ErrInvalidRecord) {
			t.Errorf("expected ErrInvalidRecord for missing identifier, got %v", err)
		}

		mbidOnly := ArtistRecord{Provider: ProviderMusicBrainz, Name: "Mogwai", MusicBrainzID: "mbid-1"}
		if err := mbidOnly.Validate(); err != nil {
			t.Errorf("a universal key alone should satisfy validation, got %v", err)
		}
	})

	t.Run("track record accepts isrc as its identifier", func(t *testing.T) {
		rec := TrackRecord{Provider: ProviderMusicBrainz, Title: "Helicon 1", ISRC: "GBCQX9700012"}
		if err := rec.Validate(); err != nil {
			t.Errorf("expected valid record, got %v", err)
		}

		bare := TrackRecord{Provider: ProviderSpotify, Title: "Helicon 1"}
		if err := bare.Validate(); !errors.Is(err, shared.ErrInvalidRecord) {
			t.Errorf("expected ErrInvalidRecord, got %v", err)
		}
	})

	t.Run("playlist record requires its provider id", func(t *testing.T) {
		rec := PlaylistRecord{Provider: ProviderDeezer, Name: "Focus"}
		if err := rec.Validate(); !errors.Is(err, shared.ErrInvalidRecord) {
			t.Errorf("expected ErrInvalidRecord, got %v", err)
		}
	})
}
