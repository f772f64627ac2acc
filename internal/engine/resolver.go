package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/repositories"
	"github.com/harmonia-sh/harmonia/internal/shared"
)

// Resolver maps provider records to canonical entities, creating them when
// absent. It is the single enforcement point for the catalog's uniqueness
// invariants: at most one entity per (provider, provider-id) pair and at most
// one per universal key.
//
// Matching order, first hit wins:
//
//  1. universal key (ISRC / MusicBrainz id) exact match
//  2. the reporting provider's own id slot
//  3. id slots claimed for other providers on the record
//  4. case-insensitive exact name match (artists and albums only; lower
//     confidence, last resort)
//
// A match found under a different source promotes the entity to hybrid and
// backfills the reporting provider's id slot. A claimed slot is never
// overwritten with a different value: first writer wins until an explicit
// re-link. Exactly one row is written or updated per call.
type Resolver struct {
	catalog *repositories.Catalog
	logger  *log.Logger
}

// NewResolver creates a Resolver over a transaction-scoped catalog.
func NewResolver(catalog *repositories.Catalog, logger *log.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// claimSlot implements first-writer-wins for a provider id slot.
func claimSlot(current, claimed string) string {
	if current != "" || claimed == "" {
		return current
	}
	return claimed
}

// ResolveArtist resolves or creates the canonical artist for a provider
// record. Returns the canonical id and whether a new entity was created.
func (r *Resolver) ResolveArtist(rec models.ArtistRecord) (string, bool, error) {
	if err := rec.Validate(); err != nil {
		return "", false, err
	}

	existing, err := r.matchArtist(rec)
	if err != nil {
		return "", false, err
	}

	if existing == nil {
		a := &models.Artist{
			Name:       rec.Name,
			Source:     models.Source(rec.Provider),
			Genres:     strings.Join(rec.Genres, ","),
			Popularity: rec.Popularity,
			ImageURL:   rec.ImageURL,
		}
		r.applyArtistIDs(a, rec)
		if err := r.catalog.Artists.Create(a); err != nil {
			return "", false, err
		}
		return a.ID, true, nil
	}

	existing.Source = existing.Source.Merge(rec.Provider)
	r.applyArtistIDs(existing, rec)
	existing.Name = rec.Name
	if len(rec.Genres) > 0 {
		existing.Genres = strings.Join(rec.Genres, ",")
	}
	if rec.Popularity > 0 {
		existing.Popularity = rec.Popularity
	}
	if rec.ImageURL != "" {
		existing.ImageURL = rec.ImageURL
	}
	if err := r.catalog.Artists.Update(existing); err != nil {
		return "", false, err
	}
	return existing.ID, false, nil
}

func (r *Resolver) matchArtist(rec models.ArtistRecord) (*models.Artist, error) {
	if rec.MusicBrainzID != "" {
		a, err := r.catalog.Artists.GetByUniversalKey(rec.MusicBrainzID)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	if rec.ID != "" {
		a, err := r.catalog.Artists.GetByProviderID(rec.Provider, rec.ID)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	for provider, id := range rec.OtherIDs {
		a, err := r.catalog.Artists.GetByProviderID(provider, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	a, err := r.catalog.Artists.GetByName(rec.Name)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

func (r *Resolver) applyArtistIDs(a *models.Artist, rec models.ArtistRecord) {
	ids := map[string]string{rec.Provider: rec.ID}
	for provider, id := range rec.OtherIDs {
		ids[provider] = id
	}
	a.SpotifyID = claimSlot(a.SpotifyID, ids[models.ProviderSpotify])
	a.DeezerID = claimSlot(a.DeezerID, ids[models.ProviderDeezer])
	a.MusicBrainzID = claimSlot(a.MusicBrainzID, rec.MusicBrainzID)
	if a.MusicBrainzID == "" {
		a.MusicBrainzID = claimSlot("", ids[models.ProviderMusicBrainz])
	}
}

// ResolveAlbum resolves or creates the canonical album for a provider record.
// artistID, when non-empty, is the canonical id of the already-resolved
// parent artist; otherwise the resolver links by the record's provider-native
// artist id when that artist is known.
func (r *Resolver) ResolveAlbum(rec models.AlbumRecord, artistID string) (string, bool, error) {
	if err := rec.Validate(); err != nil {
		return "", false, err
	}

	if artistID == "" && rec.ArtistID != "" {
		if parent, err := r.catalog.Artists.GetByProviderID(rec.Provider, rec.ArtistID); err == nil {
			artistID = parent.ID
		} else if !errors.Is(err, shared.ErrNotFound) {
			return "", false, err
		}
	}

	existing, err := r.matchAlbum(rec)
	if err != nil {
		return "", false, err
	}

	if existing == nil {
		a := &models.Album{
			Name:        rec.Name,
			ArtistID:    artistID,
			ArtistName:  rec.ArtistName,
			Source:      models.Source(rec.Provider),
			AlbumType:   rec.AlbumType,
			ReleaseDate: rec.ReleaseDate,
			TotalTracks: rec.TotalTracks,
			ImageURL:    rec.ImageURL,
		}
		r.applyAlbumIDs(a, rec)
		if err := r.catalog.Albums.Create(a); err != nil {
			return "", false, err
		}
		return a.ID, true, nil
	}

	existing.Source = existing.Source.Merge(rec.Provider)
	r.applyAlbumIDs(existing, rec)
	existing.Name = rec.Name
	if artistID != "" && existing.ArtistID == "" {
		existing.ArtistID = artistID
	}
	if rec.ArtistName != "" {
		existing.ArtistName = rec.ArtistName
	}
	if rec.AlbumType != "" {
		existing.AlbumType = rec.AlbumType
	}
	if rec.ReleaseDate != "" {
		existing.ReleaseDate = rec.ReleaseDate
	}
	if rec.TotalTracks > 0 {
		existing.TotalTracks = rec.TotalTracks
	}
	if rec.ImageURL != "" {
		existing.ImageURL = rec.ImageURL
	}
	if err := r.catalog.Albums.Update(existing); err != nil {
		return "", false, err
	}
	return existing.ID, false, nil
}

func (r *Resolver) matchAlbum(rec models.AlbumRecord) (*models.Album, error) {
	if rec.MusicBrainzID != "" {
		a, err := r.catalog.Albums.GetByUniversalKey(rec.MusicBrainzID)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	if rec.ID != "" {
		a, err := r.catalog.Albums.GetByProviderID(rec.Provider, rec.ID)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	for provider, id := range rec.OtherIDs {
		a, err := r.catalog.Albums.GetByProviderID(provider, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	a, err := r.catalog.Albums.GetByName(rec.Name, rec.ArtistName)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

func (r *Resolver) applyAlbumIDs(a *models.Album, rec models.AlbumRecord) {
	ids := map[string]string{rec.Provider: rec.ID}
	for provider, id := range rec.OtherIDs {
		ids[provider] = id
	}
	a.SpotifyID = claimSlot(a.SpotifyID, ids[models.ProviderSpotify])
	a.DeezerID = claimSlot(a.DeezerID, ids[models.ProviderDeezer])
	a.MusicBrainzID = claimSlot(a.MusicBrainzID, rec.MusicBrainzID)
}

// ResolveTrack resolves or creates the canonical track for a provider record.
// Tracks never match by name; ISRC and provider ids only.
func (r *Resolver) ResolveTrack(rec models.TrackRecord, albumID string) (string, bool, error) {
	if err := rec.Validate(); err != nil {
		return "", false, err
	}

	if albumID == "" && rec.AlbumID != "" {
		if parent, err := r.catalog.Albums.GetByProviderID(rec.Provider, rec.AlbumID); err == nil {
			albumID = parent.ID
		} else if !errors.Is(err, shared.ErrNotFound) {
			return "", false, err
		}
	}

	existing, err := r.matchTrack(rec)
	if err != nil {
		return "", false, err
	}

	if existing == nil {
		t := &models.Track{
			Title:       rec.Title,
			AlbumID:     albumID,
			ArtistName:  rec.ArtistName,
			Source:      models.Source(rec.Provider),
			ISRC:        rec.ISRC,
			DurationMS:  rec.DurationMS,
			TrackNumber: rec.TrackNumber,
			Explicit:    rec.Explicit,
			Popularity:  rec.Popularity,
		}
		r.applyTrackIDs(t, rec)
		if err := r.catalog.Tracks.Create(t); err != nil {
			return "", false, err
		}
		return t.ID, true, nil
	}

	existing.Source = existing.Source.Merge(rec.Provider)
	r.applyTrackIDs(existing, rec)
	existing.Title = rec.Title
	existing.ISRC = claimSlot(existing.ISRC, rec.ISRC)
	if albumID != "" && existing.AlbumID == "" {
		existing.AlbumID = albumID
	}
	if rec.ArtistName != "" {
		existing.ArtistName = rec.ArtistName
	}
	if rec.DurationMS > 0 {
		existing.DurationMS = rec.DurationMS
	}
	if rec.TrackNumber > 0 {
		existing.TrackNumber = rec.TrackNumber
	}
	if rec.Popularity > 0 {
		existing.Popularity = rec.Popularity
	}
	if err := r.catalog.Tracks.Update(existing); err != nil {
		return "", false, err
	}
	return existing.ID, false, nil
}

func (r *Resolver) matchTrack(rec models.TrackRecord) (*models.Track, error) {
	if rec.ISRC != "" {
		t, err := r.catalog.Tracks.GetByUniversalKey(rec.ISRC)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	if rec.ID != "" && rec.Provider != models.ProviderMusicBrainz {
		t, err := r.catalog.Tracks.GetByProviderID(rec.Provider, rec.ID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	for provider, id := range rec.OtherIDs {
		if provider != models.ProviderSpotify && provider != models.ProviderDeezer {
			continue
		}
		t, err := r.catalog.Tracks.GetByProviderID(provider, id)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (r *Resolver) applyTrackIDs(t *models.Track, rec models.TrackRecord) {
	ids := map[string]string{rec.Provider: rec.ID}
	for provider, id := range rec.OtherIDs {
		ids[provider] = id
	}
	t.SpotifyID = claimSlot(t.SpotifyID, ids[models.ProviderSpotify])
	t.DeezerID = claimSlot(t.DeezerID, ids[models.ProviderDeezer])
}

// ResolvePlaylist resolves or creates the canonical playlist for a provider
// record. Playlists have no universal key and never match by name: the
// provider id is the only identity.
func (r *Resolver) ResolvePlaylist(rec models.PlaylistRecord) (string, bool, error) {
	if err := rec.Validate(); err != nil {
		return "", false, err
	}

	existing, err := r.catalog.Playlists.GetByProviderID(rec.Provider, rec.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return "", false, err
	}

	if existing == nil || errors.Is(err, shared.ErrNotFound) {
		p := &models.Playlist{
			Name:        rec.Name,
			Description: rec.Description,
			Owner:       rec.Owner,
			Source:      models.Source(rec.Provider),
			TrackCount:  rec.TrackCount,
			Public:      rec.Public,
			ImageURL:    rec.ImageURL,
		}
		switch rec.Provider {
		case models.ProviderSpotify:
			p.SpotifyID = rec.ID
		case models.ProviderDeezer:
			p.DeezerID = rec.ID
		default:
			return "", false, fmt.Errorf("%w: playlist from unsupported provider %s", shared.ErrInvalidRecord, rec.Provider)
		}
		if err := r.catalog.Playlists.Create(p); err != nil {
			return "", false, err
		}
		return p.ID, true, nil
	}

	existing.Source = existing.Source.Merge(rec.Provider)
	existing.Name = rec.Name
	existing.Description = rec.Description
	existing.Owner = rec.Owner
	existing.TrackCount = rec.TrackCount
	existing.Public = rec.Public
	if rec.ImageURL != "" {
		existing.ImageURL = rec.ImageURL
	}
	if err := r.catalog.Playlists.Update(existing); err != nil {
		return "", false, err
	}
	return existing.ID, false, nil
}
