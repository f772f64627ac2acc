package providers

import (
	"context"

	"github.com/harmonia-sh/harmonia/internal/models"
)

// Capability identifies one operation a provider may or may not offer.
// Call sites branch on CanUse, never on nil clients.
type Capability int

const (
	CapFollowedArtists Capability = iota
	CapSavedAlbums
	CapUserPlaylists
	CapArtistAlbums
	CapAlbumTracks
	CapNewReleases
	CapCharts
	CapISRCLookup
	CapArtistSearch
)

func (c Capability) String() string {
	switch c {
	case CapFollowedArtists:
		return "followed_artists"
	case CapSavedAlbums:
		return "saved_albums"
	case CapUserPlaylists:
		return "user_playlists"
	case CapArtistAlbums:
		return "artist_albums"
	case CapAlbumTracks:
		return "album_tracks"
	case CapNewReleases:
		return "new_releases"
	case CapCharts:
		return "charts"
	case CapISRCLookup:
		return "isrc_lookup"
	case CapArtistSearch:
		return "artist_search"
	default:
		return ""
	}
}

// Provider is the engine's view of one external metadata service.
//
// Paged operations take an opaque cursor ("" for the first page) and return
// the next cursor ("" when exhausted); the cursor encoding is provider
// specific and never inspected by callers. Operations the provider does not
// offer return [shared.ErrCapabilityMissing].
type Provider interface {
	Name() string
	CanUse(c Capability) bool

	FollowedArtists(ctx context.Context, cursor string) ([]models.ArtistRecord, string, error)
	SavedAlbums(ctx context.Context, cursor string) ([]models.AlbumRecord, string, error)
	UserPlaylists(ctx context.Context, cursor string) ([]models.PlaylistRecord, string, error)
	ArtistAlbums(ctx context.Context, artistID, cursor string) ([]models.AlbumRecord, string, error)
	AlbumTracks(ctx context.Context, albumID, cursor string) ([]models.TrackRecord, string, error)

	NewReleases(ctx context.Context) ([]models.AlbumRecord, error)
	Charts(ctx context.Context) ([]models.TrackRecord, error)
	LookupTrackByISRC(ctx context.Context, isrc string) (*models.TrackRecord, error)
	SearchArtists(ctx context.Context, query string) ([]models.ArtistRecord, error)
}

// Collect drains a paged fetch until the provider reports no next cursor.
func Collect[T any](ctx context.Context, fetch func(ctx context.Context, cursor string) ([]T, string, error)) ([]T, error) {
	var all []T
	cursor := ""
	for {
		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}
