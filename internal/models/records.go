package models

import (
	"fmt"

	"github.com/harmonia-sh/harmonia/internal/shared"
)

// ArtistRecord is an artist as reported by one provider.
//
// OtherIDs carries id claims for providers other than the reporting one,
// e.g. an enrichment lookup that knows both the MusicBrainz and Spotify ids.
type ArtistRecord struct {
	Provider      string
	ID            string
	Name          string
	MusicBrainzID string
	Genres        []string
	Popularity    int
	ImageURL      string
	OtherIDs      map[string]string
}

// Validate checks the record carries the mandatory fields for resolution:
// a name and at least one identifier.
func (r ArtistRecord) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: artist record from %s has no name", shared.ErrInvalidRecord, r.Provider)
	}
	if r.ID == "" && r.MusicBrainzID == "" && len(r.OtherIDs) == 0 {
		return fmt.Errorf("%w: artist record %q from %s has no identifier", shared.ErrInvalidRecord, r.Name, r.Provider)
	}
	return nil
}

// AlbumRecord is an album as reported by one provider. ArtistID is the
// provider-native id of the album's primary artist, not a canonical id.
type AlbumRecord struct {
	Provider      string
	ID            string
	Name          string
	ArtistID      string
	ArtistName    string
	MusicBrainzID string
	AlbumType     string
	ReleaseDate   string
	TotalTracks   int
	ImageURL      string
	OtherIDs      map[string]string
}

// Validate checks the record carries a name and at least one identifier.
func (r AlbumRecord) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: album record from %s has no name", shared.ErrInvalidRecord, r.Provider)
	}
	if r.ID == "" && r.MusicBrainzID == "" && len(r.OtherIDs) == 0 {
		return fmt.Errorf("%w: album record %q from %s has no identifier", shared.ErrInvalidRecord, r.Name, r.Provider)
	}
	return nil
}

// TrackRecord is a track as reported by one provider. AlbumID is the
// provider-native id of the containing album.
type TrackRecord struct {
	Provider    string
	ID          string
	Title       string
	AlbumID     string
	ArtistName  string
	ISRC        string
	DurationMS  int
	TrackNumber int
	Explicit    bool
	Popularity  int
	OtherIDs    map[string]string
}

// Validate checks the record carries a title and at least one identifier.
func (r TrackRecord) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: track record from %s has no title", shared.ErrInvalidRecord, r.Provider)
	}
	if r.ID == "" && r.ISRC == "" && len(r.OtherIDs) == 0 {
		return fmt.Errorf("%w: track record %q from %s has no identifier", shared.ErrInvalidRecord, r.Title, r.Provider)
	}
	return nil
}

// PlaylistRecord is a playlist as reported by one provider.
type PlaylistRecord struct {
	Provider    string
	ID          string
	Name        string
	Description string
	Owner       string
	TrackCount  int
	Public      bool
	ImageURL    string
}

// Validate checks the record carries a name and a provider id.
func (r PlaylistRecord) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: playlist record from %s has no name", shared.ErrInvalidRecord, r.Provider)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: playlist record %q from %s has no identifier", shared.ErrInvalidRecord, r.Name, r.Provider)
	}
	return nil
}
