package models

import (
	"time"
)

// Provider name constants used as tags on records and id slots on entities.
const (
	ProviderSpotify     = "spotify"
	ProviderDeezer      = "deezer"
	ProviderMusicBrainz = "musicbrainz"
	ProviderLocal       = "local"
)

// Source records the origin(s) an entity is known from.
type Source string

const (
	SourceLocal   Source = "local"
	SourceSpotify Source = "spotify"
	SourceDeezer  Source = "deezer"
	SourceHybrid  Source = "hybrid" // confirmed by more than one origin
)

// Merge returns the source after a sighting from provider.
// A second distinct origin promotes the entity to hybrid.
func (s Source) Merge(provider string) Source {
	if s == "" {
		return Source(provider)
	}
	if s == SourceHybrid || string(s) == provider {
		return s
	}
	return SourceHybrid
}

// Artist is a canonical artist entity.
type Artist struct {
	ID             string
	Name           string
	Source         Source
	SpotifyID      string // empty when the slot is unclaimed
	DeezerID       string
	MusicBrainzID  string // universal key
	Genres         string // comma-joined
	Popularity     int
	ImageURL       string
	ImagePath      string
	HasLocal       bool
	SpotifyFollow  bool
	DeezerFollow   bool
	AlbumsSyncedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProviderID returns this artist's id slot for the named provider.
func (a *Artist) ProviderID(provider string) string {
	switch provider {
	case ProviderSpotify:
		return a.SpotifyID
	case ProviderDeezer:
		return a.DeezerID
	case ProviderMusicBrainz:
		return a.MusicBrainzID
	}
	return ""
}

// Album is a canonical album entity.
type Album struct {
	ID             string
	Name           string
	ArtistID       string // canonical artist id, empty when unknown
	ArtistName     string
	Source         Source
	SpotifyID      string
	DeezerID       string
	MusicBrainzID  string // release-group id, universal key
	AlbumType      string
	ReleaseDate    string
	TotalTracks    int
	ImageURL       string
	ImagePath      string
	HasLocal       bool
	SpotifySaved   bool
	DeezerSaved    bool
	TracksSyncedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProviderID returns this album's id slot for the named provider.
func (a *Album) ProviderID(provider string) string {
	switch provider {
	case ProviderSpotify:
		return a.SpotifyID
	case ProviderDeezer:
		return a.DeezerID
	case ProviderMusicBrainz:
		return a.MusicBrainzID
	}
	return ""
}

// Track is a canonical track entity. ISRC is the universal key.
type Track struct {
	ID          string
	Title       string
	AlbumID     string // canonical album id, empty when unknown
	ArtistName  string
	Source      Source
	SpotifyID   string
	DeezerID    string
	ISRC        string
	DurationMS  int
	TrackNumber int
	Explicit    bool
	Popularity  int
	HasLocal    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProviderID returns this track's id slot for the named provider.
func (t *Track) ProviderID(provider string) string {
	switch provider {
	case ProviderSpotify:
		return t.SpotifyID
	case ProviderDeezer:
		return t.DeezerID
	}
	return ""
}

// Playlist is a canonical playlist entity. Playlists have no universal key.
type Playlist struct {
	ID            string
	Name          string
	Description   string
	Owner         string
	Source        Source
	SpotifyID     string
	DeezerID      string
	TrackCount    int
	Public        bool
	ImageURL      string
	ImagePath     string
	SpotifyLinked bool
	DeezerLinked  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProviderID returns this playlist's id slot for the named provider.
func (p *Playlist) ProviderID(provider string) string {
	switch provider {
	case ProviderSpotify:
		return p.SpotifyID
	case ProviderDeezer:
		return p.DeezerID
	}
	return ""
}
