// package repositories provides the persistence layer over the canonical
// catalog store.
//
// Each repository wraps one table with typed lookups, upserts and the
// membership/backlog queries the sync engine needs. Repositories are
// constructed over a [DBTX] so the same code runs against a *sql.DB or the
// short-lived *sql.Tx a sync call owns.
package repositories

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Catalog bundles the per-entity repositories over one DBTX.
//
// A sync call builds a Catalog over its transaction, works through it, and
// commits; the scheduler and CLI build one over the bare connection.
type Catalog struct {
	Artists   *ArtistRepository
	Albums    *AlbumRepository
	Tracks    *TrackRepository
	Playlists *PlaylistRepository
}

// NewCatalog creates the repository bundle over db.
func NewCatalog(db DBTX) *Catalog {
	return &Catalog{
		Artists:   NewArtistRepository(db),
		Albums:    NewAlbumRepository(db),
		Tracks:    NewTrackRepository(db),
		Playlists: NewPlaylistRepository(db),
	}
}

// builder is the squirrel statement builder used for list and backlog
// queries; sqlite takes the default question placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
