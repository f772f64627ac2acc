package models

import "time"

// Sync type names. Each is independently invokable and independently
// cooled-down per provider.
const (
	SyncFollowedArtists = "followed_artists"
	SyncUserPlaylists   = "user_playlists"
	SyncSavedAlbums     = "saved_albums"
	SyncArtistAlbums    = "artist_albums"
	SyncAlbumTracks     = "album_tracks"
)

// SyncState is the lifecycle of a sync status record.
type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncRunning SyncState = "running"
	SyncError   SyncState = "error"
)

// SyncStatus records the outcome of the most recent run of one
// (provider, sync type, scope) combination. Mutated only by the owning
// provider sync service at the start and end of a call.
type SyncStatus struct {
	Provider     string
	SyncType     string
	Scope        string // e.g. artist id for artist_albums, empty for collection syncs
	LastSyncedAt *time.Time
	ItemsSynced  int
	ItemsAdded   int
	ItemsRemoved int
	Status       SyncState
	ErrorMessage string
}
