package engine

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/providers"
	"github.com/harmonia-sh/harmonia/internal/shared"
	tu "github.com/harmonia-sh/harmonia/internal/testing"
)

func newTestOrchestrator(provs ...providers.Provider) *Orchestrator {
	return NewOrchestrator(provs, shared.NewLogger(io.Discard))
}

func TestOrchestratorSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("highest priority provider wins", func(t *testing.T) {
		spotify := &tu.MockProvider{
			ProviderName: models.ProviderSpotify,
			SearchHits:   []models.ArtistRecord{{Provider: models.ProviderSpotify, ID: "sp-1", Name: "Actress"}},
		}
		deezer := &tu.MockProvider{
			ProviderName: models.ProviderDeezer,
			SearchHits:   []models.ArtistRecord{{Provider: models.ProviderDeezer, ID: "dz-1", Name: "Actress"}},
		}

		records := newTestOrchestrator(spotify, deezer).SearchArtists(ctx, "actress")
		if len(records) != 1 || records[0].Provider != models.ProviderSpotify {
			t.Errorf("expected the spotify result, got %+v", records)
		}
		if deezer.Calls != 0 {
			t.Errorf("lower-priority provider must not be consulted, got %d calls", deezer.Calls)
		}
	})

	t.Run("empty result falls through to the next provider", func(t *testing.T) {
		spotify := &tu.MockProvider{ProviderName: models.ProviderSpotify}
		deezer := &tu.MockProvider{
			ProviderName: models.ProviderDeezer,
			SearchHits:   []models.ArtistRecord{{Provider: models.ProviderDeezer, ID: "dz-1", Name: "Actress"}},
		}

		records := newTestOrchestrator(spotify, deezer).SearchArtists(ctx, "actress")
		if len(records) != 1 || records[0].Provider != models.ProviderDeezer {
			t.Errorf("expected fallback to deezer, got %+v", records)
		}
	})

	t.Run("provider failure falls through instead of raising", func(t *testing.T) {
		spotify := &tu.MockProvider{
			ProviderName: models.ProviderSpotify,
			Err:          errors.New("spotify is down"),
		}
		deezer := &tu.MockProvider{
			ProviderName: models.ProviderDeezer,
			SearchHits:   []models.ArtistRecord{{Provider: models.ProviderDeezer, ID: "dz-1", Name: "Actress"}},
		}

		records := newTestOrchestrator(spotify, deezer).SearchArtists(ctx, "actress")
		if len(records) != 1 || records[0].Provider != models.ProviderDeezer {
			t.Errorf("expected fallback past the failing provider, got %+v", records)
		}
	})

	t.Run("returns empty when every provider misses", func(t *testing.T) {
		spotify := &tu.MockProvider{ProviderName: models.ProviderSpotify, Err: errors.New("down")}
		deezer := &tu.MockProvider{ProviderName: models.ProviderDeezer}

		records := newTestOrchestrator(spotify, deezer).SearchArtists(ctx, "nobody")
		if len(records) != 0 {
			t.Errorf("expected no results, got %+v", records)
		}
	})

	t.Run("unusable providers are skipped", func(t *testing.T) {
		spotify := &tu.MockProvider{
			ProviderName: models.ProviderSpotify,
			Capabilities: map[providers.Capability]bool{},
			SearchHits:   []models.ArtistRecord{{Provider: models.ProviderSpotify, ID: "sp-1", Name: "Actress"}},
		}
		deezer := &tu.MockProvider{
			ProviderName: models.ProviderDeezer,
			SearchHits:   []models.ArtistRecord{{Provider: models.ProviderDeezer, ID: "dz-1", Name: "Actress"}},
		}

		records := newTestOrchestrator(spotify, deezer).SearchArtists(ctx, "actress")
		if len(records) != 1 || records[0].Provider != models.ProviderDeezer {
			t.Errorf("expected deezer result when spotify is unusable, got %+v", records)
		}
		if spotify.Calls != 0 {
			t.Errorf("unusable provider must not be called, got %d calls", spotify.Calls)
		}
	})
}

func TestOrchestratorCharts(t *testing.T) {
	ctx := context.Background()

	t.Run("charts come from deezer only", func(t *testing.T) {
		spotify := &tu.MockProvider{
			ProviderName: models.ProviderSpotify,
			ChartTracks:  []models.TrackRecord{{Provider: models.ProviderSpotify, ID: "sp-t1", Title: "Wrong"}},
		}
		deezer := &tu.MockProvider{
			ProviderName: models.ProviderDeezer,
			ChartTracks:  []models.TrackRecord{{Provider: models.ProviderDeezer, ID: "dz-t1", Title: "Right"}},
		}

		records := newTestOrchestrator(spotify, deezer).Charts(ctx)
		if len(records) != 1 || records[0].Provider != models.ProviderDeezer {
			t.Errorf("expected the deezer chart, got %+v", records)
		}
		if spotify.Calls != 0 {
			t.Errorf("spotify is not in the charts priority list, got %d calls", spotify.Calls)
		}
	})

	t.Run("no chart provider means an empty listing", func(t *testing.T) {
		spotify := &tu.MockProvider{ProviderName: models.ProviderSpotify}
		records := newTestOrchestrator(spotify).Charts(ctx)
		if len(records) != 0 {
			t.Errorf("expected no charts, got %+v", records)
		}
	})
}

func TestOrchestratorArtistAlbums(t *testing.T) {
	ctx := context.Background()

	t.Run("skips providers without a native id", func(t *testing.T) {
		spotify := &tu.MockProvider{ProviderName: models.ProviderSpotify}
		deezer := &tu.MockProvider{
			ProviderName: models.ProviderDeezer,
			Discography: map[string][]models.AlbumRecord{
				"dz-a1": {{Provider: models.ProviderDeezer, ID: "dz-al1", Name: "LP5"}},
			},
		}

		records := newTestOrchestrator(spotify, deezer).ArtistAlbums(ctx, map[string]string{
			models.ProviderDeezer: "dz-a1",
		})
		if len(records) != 1 || records[0].ID != "dz-al1" {
			t.Errorf("expected the deezer discography, got %+v", records)
		}
		if spotify.Calls != 0 {
			t.Errorf("provider without an id must be skipped, got %d calls", spotify.Calls)
		}
	})
}

func TestOrchestratorISRC(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves through musicbrainz", func(t *testing.T) {
		mb := &tu.MockProvider{
			ProviderName: models.ProviderMusicBrainz,
			ISRCTracks: map[string]*models.TrackRecord{
				"GBBPW9900011": {Provider: models.ProviderMusicBrainz, ID: "rec-1", Title: "Windowlicker", ISRC: "GBBPW9900011"},
			},
		}

		rec := newTestOrchestrator(mb).LookupTrackByISRC(ctx, "GBBPW9900011")
		if rec == nil || rec.Title != "Windowlicker" {
			t.Errorf("expected the musicbrainz hit, got %+v", rec)
		}

		if miss := newTestOrchestrator(mb).LookupTrackByISRC(ctx, "UNKNOWN"); miss != nil {
			t.Errorf("expected nil for unknown isrc, got %+v", miss)
		}
	})
}
