package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harmonia-sh/harmonia/internal/images"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/providers"
	"github.com/harmonia-sh/harmonia/internal/repositories"
)

// ImageQueue is the fire-and-forget artwork downloader the engine hands
// remote URLs to. The engine never blocks on image bytes.
type ImageQueue interface {
	Enqueue(job images.Job)
}

// Default cooldowns per sync type, overridable through settings
// ("sync.<type>.cooldown_minutes").
const (
	defaultCollectionCooldownMin = 60
	defaultScopedCooldownMin     = 7 * 24 * 60

	// Gradual backfill considers a scoped sync stale after this long.
	defaultStaleAfter = 30 * 24 * time.Hour
)

// SyncService implements the diff-sync algorithm for one provider.
//
// Collection syncs (followed artists, user playlists, saved albums) fetch the
// provider's complete current membership set, diff it against the locally
// recorded membership, upsert adds and unchanged items, and apply removals
// only when policy permits. Scoped syncs (artist albums, album tracks) are
// additive and compute no removal diff.
//
// Every sync call runs inside its own transaction; adds and updates are
// applied before removals are considered, and a reader never observes a
// half-applied diff.
type SyncService struct {
	provider providers.Provider
	db       *sql.DB
	status   *repositories.SyncStatusRepository
	settings *repositories.SettingsRepository
	imageQ   ImageQueue // may be nil
	logger   *log.Logger

	// in-memory cooldown fast path; persisted copies live in settings
	mu      sync.Mutex
	lastRun map[string]time.Time

	now func() time.Time
}

// NewSyncService creates the sync service for one provider. imageQ may be nil
// when artwork downloading is disabled.
func NewSyncService(p providers.Provider, db *sql.DB, settings *repositories.SettingsRepository, imageQ ImageQueue, logger *log.Logger) *SyncService {
	return &SyncService{
		provider: p,
		db:       db,
		status:   repositories.NewSyncStatusRepository(db),
		settings: settings,
		imageQ:   imageQ,
		logger:   logger.With("provider", p.Name()),
		lastRun:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// Provider returns the provider this service syncs.
func (s *SyncService) Provider() providers.Provider { return s.provider }

// enabled reports whether a sync type is toggled on for this provider.
// Everything is on by default.
func (s *SyncService) enabled(syncType string) bool {
	enabled, err := s.settings.GetBool("sync."+s.provider.Name()+"."+syncType+".enabled", true)
	if err != nil {
		s.logger.Warn("failed to read sync toggle", "sync_type", syncType, "err", err)
	}
	return enabled
}

// removalAllowed reads a removal policy flag. Policies are read before the
// sync transaction begins; settings reads share the connection pool with the
// transaction and must never run while it holds a connection.
func (s *SyncService) removalAllowed(syncType, policy string) (bool, error) {
	return s.settings.GetBool("sync."+syncType+"."+policy, false)
}

// cooldownKey identifies one cooled-down operation.
func (s *SyncService) cooldownKey(syncType, scope string) string {
	key := s.provider.Name() + "." + syncType
	if scope != "" {
		key += "." + scope
	}
	return key
}

// cooldownElapsed reports whether the sync type's cooldown has elapsed.
// The in-memory timestamp is authoritative once warm; the persisted one
// covers restarts.
func (s *SyncService) cooldownElapsed(syncType, scope string, defaultMinutes int) bool {
	key := s.cooldownKey(syncType, scope)

	s.mu.Lock()
	last, ok := s.lastRun[key]
	s.mu.Unlock()

	if !ok {
		persisted, err := s.settings.GetLastSync(key)
		if err != nil {
			s.logger.Warn("failed to read last-sync time", "key", key, "err", err)
		}
		last = persisted
		s.mu.Lock()
		s.lastRun[key] = last
		s.mu.Unlock()
	}

	if last.IsZero() {
		return true
	}

	minutes, err := s.settings.GetInt("sync."+syncType+".cooldown_minutes", defaultMinutes)
	if err != nil {
		s.logger.Warn("failed to read cooldown setting", "sync_type", syncType, "err", err)
	}
	return s.now().Sub(last) >= time.Duration(minutes)*time.Minute
}

// recordRun restarts the cooldown window after a successful sync.
func (s *SyncService) recordRun(syncType, scope string) {
	key := s.cooldownKey(syncType, scope)
	now := s.now()

	s.mu.Lock()
	s.lastRun[key] = now
	s.mu.Unlock()

	if err := s.settings.SetLastSync(key, now); err != nil {
		s.logger.Warn("failed to persist last-sync time", "key", key, "err", err)
	}
}

func (s *SyncService) enqueueImage(kind, canonicalID, url string) {
	if s.imageQ == nil || url == "" {
		return
	}
	s.imageQ.Enqueue(images.Job{Kind: kind, ID: canonicalID, URL: url})
}

// SyncFollowedArtists diff-syncs the provider's followed artists against the
// locally recorded membership.
func (s *SyncService) SyncFollowedArtists(ctx context.Context, force bool) (*Outcome, error) {
	provider := s.provider.Name()
	syncType := models.SyncFollowedArtists

	if !s.enabled(syncType) {
		return skipped(provider, syncType, "", SkipDisabled), nil
	}
	if !s.provider.CanUse(providers.CapFollowedArtists) {
		return skipped(provider, syncType, "", SkipUnauthenticated), nil
	}
	if !force && !s.cooldownElapsed(syncType, "", defaultCollectionCooldownMin) {
		return skipped(provider, syncType, "", SkipCooldown), nil
	}

	if err := s.status.MarkRunning(provider, syncType, ""); err != nil {
		return nil, err
	}

	records, err := providers.Collect(ctx, s.provider.FollowedArtists)
	if err != nil {
		return s.fail(syncType, "", err)
	}

	removeAllowed, err := s.removalAllowed(syncType, "remove_unfollowed")
	if err != nil {
		return s.fail(syncType, "", err)
	}

	outcome := &Outcome{Provider: provider, SyncType: syncType, Status: OutcomeSynced, Synced: len(records)}

	err = s.inTransaction(func(catalog *repositories.Catalog, resolver *Resolver) error {
		known, err := catalog.Artists.FollowedIDs(provider)
		if err != nil {
			return err
		}

		remote := make(map[string]struct{}, len(records))
		for _, rec := range records {
			remote[rec.ID] = struct{}{}

			canonicalID, created, err := resolver.ResolveArtist(rec)
			if err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("artist %q: %w", rec.Name, err))
				continue
			}
			if err := catalog.Artists.SetFollowed(canonicalID, provider, true); err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("artist %q: %w", rec.Name, err))
				continue
			}

			if _, wasKnown := known[rec.ID]; wasKnown {
				outcome.Unchanged++
			} else {
				outcome.Added++
			}
			if created {
				s.enqueueImage(images.KindArtist, canonicalID, rec.ImageURL)
			}
		}

		// Adds and updates are applied before removals are considered.
		for providerID, canonicalID := range known {
			if _, still := remote[providerID]; still {
				continue
			}
			outcome.Removed++
			if !removeAllowed {
				continue
			}
			if err := s.unlinkArtist(catalog, canonicalID, provider); err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("unlink artist %s: %w", canonicalID, err))
			}
		}
		return nil
	})
	if err != nil {
		return s.fail(syncType, "", err)
	}

	s.finish(outcome, "")
	return outcome, nil
}

// SyncUserPlaylists diff-syncs the user's playlists.
func (s *SyncService) SyncUserPlaylists(ctx context.Context, force bool) (*Outcome, error) {
	provider := s.provider.Name()
	syncType := models.SyncUserPlaylists

	if !s.enabled(syncType) {
		return skipped(provider, syncType, "", SkipDisabled), nil
	}
	if !s.provider.CanUse(providers.CapUserPlaylists) {
		return skipped(provider, syncType, "", SkipUnauthenticated), nil
	}
	if !force && !s.cooldownElapsed(syncType, "", defaultCollectionCooldownMin) {
		return skipped(provider, syncType, "", SkipCooldown), nil
	}

	if err := s.status.MarkRunning(provider, syncType, ""); err != nil {
		return nil, err
	}

	records, err := providers.Collect(ctx, s.provider.UserPlaylists)
	if err != nil {
		return s.fail(syncType, "", err)
	}

	removeAllowed, err := s.removalAllowed(syncType, "remove_unlinked")
	if err != nil {
		return s.fail(syncType, "", err)
	}

	outcome := &Outcome{Provider: provider, SyncType: syncType, Status: OutcomeSynced, Synced: len(records)}

	err = s.inTransaction(func(catalog *repositories.Catalog, resolver *Resolver) error {
		known, err := catalog.Playlists.LinkedIDs(provider)
		if err != nil {
			return err
		}

		remote := make(map[string]struct{}, len(records))
		for _, rec := range records {
			remote[rec.ID] = struct{}{}

			canonicalID, created, err := resolver.ResolvePlaylist(rec)
			if err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("playlist %q: %w", rec.Name, err))
				continue
			}
			if err := catalog.Playlists.SetLinked(canonicalID, provider, true); err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("playlist %q: %w", rec.Name, err))
				continue
			}

			if _, wasKnown := known[rec.ID]; wasKnown {
				outcome.Unchanged++
			} else {
				outcome.Added++
			}
			if created {
				s.enqueueImage(images.KindPlaylist, canonicalID, rec.ImageURL)
			}
		}

		for providerID, canonicalID := range known {
			if _, still := remote[providerID]; still {
				continue
			}
			outcome.Removed++
			if !removeAllowed {
				continue
			}
			if err := catalog.Playlists.SetLinked(canonicalID, provider, false); err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("unlink playlist %s: %w", canonicalID, err))
			}
		}
		return nil
	})
	if err != nil {
		return s.fail(syncType, "", err)
	}

	s.finish(outcome, "")
	return outcome, nil
}

// SyncSavedAlbums diff-syncs the user's saved albums.
func (s *SyncService) SyncSavedAlbums(ctx context.Context, force bool) (*Outcome, error) {
	provider := s.provider.Name()
	syncType := models.SyncSavedAlbums

	if !s.enabled(syncType) {
		return skipped(provider, syncType, "", SkipDisabled), nil
	}
	if !s.provider.CanUse(providers.CapSavedAlbums) {
		return skipped(provider, syncType, "", SkipUnauthenticated), nil
	}
	if !force && !s.cooldownElapsed(syncType, "", defaultCollectionCooldownMin) {
		return skipped(provider, syncType, "", SkipCooldown), nil
	}

	if err := s.status.MarkRunning(provider, syncType, ""); err != nil {
		return nil, err
	}

	records, err := providers.Collect(ctx, s.provider.SavedAlbums)
	if err != nil {
		return s.fail(syncType, "", err)
	}

	removeAllowed, err := s.removalAllowed(syncType, "remove_unsaved")
	if err != nil {
		return s.fail(syncType, "", err)
	}

	outcome := &Outcome{Provider: provider, SyncType: syncType, Status: OutcomeSynced, Synced: len(records)}

	err = s.inTransaction(func(catalog *repositories.Catalog, resolver *Resolver) error {
		known, err := catalog.Albums.SavedIDs(provider)
		if err != nil {
			return err
		}

		remote := make(map[string]struct{}, len(records))
		for _, rec := range records {
			remote[rec.ID] = struct{}{}

			canonicalID, created, err := resolver.ResolveAlbum(rec, "")
			if err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("album %q: %w", rec.Name, err))
				continue
			}
			if err := catalog.Albums.SetSaved(canonicalID, provider, true); err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("album %q: %w", rec.Name, err))
				continue
			}

			if _, wasKnown := known[rec.ID]; wasKnown {
				outcome.Unchanged++
			} else {
				outcome.Added++
			}
			if created {
				s.enqueueImage(images.KindAlbum, canonicalID, rec.ImageURL)
			}
		}

		for providerID, canonicalID := range known {
			if _, still := remote[providerID]; still {
				continue
			}
			outcome.Removed++
			if !removeAllowed {
				continue
			}
			if err := catalog.Albums.SetSaved(canonicalID, provider, false); err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("unsave album %s: %w", canonicalID, err))
			}
		}
		return nil
	})
	if err != nil {
		return s.fail(syncType, "", err)
	}

	s.finish(outcome, "")
	return outcome, nil
}

// SyncArtistAlbums pulls one artist's discography. Scoped syncs are additive:
// provider discography lists are append-friendly, not exhaustive per call, so
// no removal diff is computed.
func (s *SyncService) SyncArtistAlbums(ctx context.Context, artistID string, force bool) (*Outcome, error) {
	provider := s.provider.Name()
	syncType := models.SyncArtistAlbums

	if !s.enabled(syncType) {
		return skipped(provider, syncType, artistID, SkipDisabled), nil
	}
	if !s.provider.CanUse(providers.CapArtistAlbums) {
		return skipped(provider, syncType, artistID, SkipUnauthenticated), nil
	}

	artist, err := repositories.NewArtistRepository(s.db).Get(artistID)
	if err != nil {
		return nil, err
	}
	nativeID := artist.ProviderID(provider)
	if nativeID == "" {
		return skipped(provider, syncType, artistID, SkipNoProviderID), nil
	}

	if !force && !s.cooldownElapsed(syncType, artistID, defaultScopedCooldownMin) {
		return skipped(provider, syncType, artistID, SkipCooldown), nil
	}

	if err := s.status.MarkRunning(provider, syncType, artistID); err != nil {
		return nil, err
	}

	records, err := providers.Collect(ctx, func(ctx context.Context, cursor string) ([]models.AlbumRecord, string, error) {
		return s.provider.ArtistAlbums(ctx, nativeID, cursor)
	})
	if err != nil {
		return s.fail(syncType, artistID, err)
	}

	outcome := &Outcome{Provider: provider, SyncType: syncType, Scope: artistID, Status: OutcomeSynced, Synced: len(records)}

	err = s.inTransaction(func(catalog *repositories.Catalog, resolver *Resolver) error {
		for _, rec := range records {
			canonicalID, created, err := resolver.ResolveAlbum(rec, artistID)
			if err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("album %q: %w", rec.Name, err))
				continue
			}
			if created {
				outcome.Added++
				s.enqueueImage(images.KindAlbum, canonicalID, rec.ImageURL)
			} else {
				outcome.Unchanged++
			}
		}
		return catalog.Artists.MarkAlbumsSynced(artistID, s.now())
	})
	if err != nil {
		return s.fail(syncType, artistID, err)
	}

	s.finish(outcome, artistID)
	return outcome, nil
}

// SyncAlbumTracks pulls one album's track list. Additive, like
// SyncArtistAlbums.
func (s *SyncService) SyncAlbumTracks(ctx context.Context, albumID string, force bool) (*Outcome, error) {
	provider := s.provider.Name()
	syncType := models.SyncAlbumTracks

	if !s.enabled(syncType) {
		return skipped(provider, syncType, albumID, SkipDisabled), nil
	}
	if !s.provider.CanUse(providers.CapAlbumTracks) {
		return skipped(provider, syncType, albumID, SkipUnauthenticated), nil
	}

	album, err := repositories.NewAlbumRepository(s.db).Get(albumID)
	if err != nil {
		return nil, err
	}
	nativeID := album.ProviderID(provider)
	if nativeID == "" {
		return skipped(provider, syncType, albumID, SkipNoProviderID), nil
	}

	if !force && !s.cooldownElapsed(syncType, albumID, defaultScopedCooldownMin) {
		return skipped(provider, syncType, albumID, SkipCooldown), nil
	}

	if err := s.status.MarkRunning(provider, syncType, albumID); err != nil {
		return nil, err
	}

	records, err := providers.Collect(ctx, func(ctx context.Context, cursor string) ([]models.TrackRecord, string, error) {
		return s.provider.AlbumTracks(ctx, nativeID, cursor)
	})
	if err != nil {
		return s.fail(syncType, albumID, err)
	}

	outcome := &Outcome{Provider: provider, SyncType: syncType, Scope: albumID, Status: OutcomeSynced, Synced: len(records)}

	err = s.inTransaction(func(catalog *repositories.Catalog, resolver *Resolver) error {
		for _, rec := range records {
			_, created, err := resolver.ResolveTrack(rec, albumID)
			if err != nil {
				outcome.ItemErrors = append(outcome.ItemErrors, fmt.Errorf("track %q: %w", rec.Title, err))
				continue
			}
			if created {
				outcome.Added++
			} else {
				outcome.Unchanged++
			}
		}
		return catalog.Albums.MarkTracksSynced(albumID, s.now())
	})
	if err != nil {
		return s.fail(syncType, albumID, err)
	}

	s.finish(outcome, albumID)
	return outcome, nil
}

// ArtistBacklog selects the next gradual-backfill batch for artist_albums.
func (s *SyncService) ArtistBacklog(limit int) ([]*models.Artist, error) {
	return repositories.NewArtistRepository(s.db).NeedingAlbumSync(limit, defaultStaleAfter)
}

// AlbumBacklog selects the next gradual-backfill batch for album_tracks.
func (s *SyncService) AlbumBacklog(limit int) ([]*models.Album, error) {
	return repositories.NewAlbumRepository(s.db).NeedingTrackSync(limit, defaultStaleAfter)
}

// unlinkArtist clears the provider membership and demotes the source when a
// local copy is all that remains. The row itself is never deleted by sync;
// deletion is a separate, explicit operation.
func (s *SyncService) unlinkArtist(catalog *repositories.Catalog, canonicalID, provider string) error {
	if err := catalog.Artists.SetFollowed(canonicalID, provider, false); err != nil {
		return err
	}
	artist, err := catalog.Artists.Get(canonicalID)
	if err != nil {
		return err
	}
	if artist.Source == models.SourceHybrid && artist.HasLocal && !artist.SpotifyFollow && !artist.DeezerFollow {
		artist.Source = models.SourceLocal
		return catalog.Artists.Update(artist)
	}
	return nil
}

// inTransaction runs fn against a transaction-scoped catalog and resolver,
// committing on success and rolling back on failure.
func (s *SyncService) inTransaction(fn func(catalog *repositories.Catalog, resolver *Resolver) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	catalog := repositories.NewCatalog(tx)
	resolver := NewResolver(catalog, s.logger)

	if err := fn(catalog, resolver); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync transaction: %w", err)
	}
	return nil
}

// fail records a call-level failure and propagates the error to the caller;
// the scheduler decides whether it is a rate-limit pause or a logged failure.
func (s *SyncService) fail(syncType, scope string, err error) (*Outcome, error) {
	if statusErr := s.status.MarkError(s.provider.Name(), syncType, scope, err.Error()); statusErr != nil {
		s.logger.Error("failed to record sync error", "sync_type", syncType, "err", statusErr)
	}
	outcome := &Outcome{
		Provider: s.provider.Name(),
		SyncType: syncType,
		Scope:    scope,
		Status:   OutcomeError,
	}
	return outcome, err
}

// finish records a successful completion and restarts the cooldown window.
func (s *SyncService) finish(outcome *Outcome, scope string) {
	if err := s.status.MarkIdle(outcome.Provider, outcome.SyncType, scope,
		outcome.Synced, outcome.Added, outcome.Removed); err != nil {
		s.logger.Error("failed to record sync status", "sync_type", outcome.SyncType, "err", err)
	}
	s.recordRun(outcome.SyncType, scope)
	s.logger.Info("sync finished", "sync_type", outcome.SyncType,
		"synced", outcome.Synced, "added", outcome.Added,
		"removed", outcome.Removed, "unchanged", outcome.Unchanged,
		"item_errors", len(outcome.ItemErrors))
}
