package engine

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harmonia-sh/harmonia/internal/shared"
)

// Backoff pause bounds. The pause doubles on every rate-limit hit and resets
// after a cycle with no rate-limit responses.
const (
	basePause = 5 * time.Minute
	maxPause  = 60 * time.Minute

	defaultBackfillBatch = 5
)

// Scheduler drives one provider's sync loop: the collection syncs each cycle,
// then a small backfill batch of stale artist discographies and album track
// lists. Each scheduler owns its own pause state; one rate-limited provider
// never stalls the others.
type Scheduler struct {
	service  *SyncService
	interval time.Duration
	logger   *log.Logger

	pausedUntil time.Time
	pause       time.Duration // next pause to apply, doubles per hit

	now func() time.Time
}

// NewScheduler creates the scheduler for one provider's sync service.
func NewScheduler(service *SyncService, interval time.Duration, logger *log.Logger) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   logger.With("provider", service.Provider().Name()),
		pause:    basePause,
		now:      time.Now,
	}
}

// Run executes sync cycles until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle performs one pass: collection syncs, then backfill batches. A
// rate-limit response pauses the provider and abandons the rest of the cycle;
// any other failure is logged and the cycle moves on to the next sync type.
func (s *Scheduler) runCycle(ctx context.Context) {
	if s.paused() {
		s.logger.Debug("provider paused, skipping cycle", "until", s.pausedUntil)
		return
	}

	clean := true

	steps := []func(context.Context) error{
		func(ctx context.Context) error {
			_, err := s.service.SyncFollowedArtists(ctx, false)
			return err
		},
		func(ctx context.Context) error {
			_, err := s.service.SyncSavedAlbums(ctx, false)
			return err
		},
		func(ctx context.Context) error {
			_, err := s.service.SyncUserPlaylists(ctx, false)
			return err
		},
		s.backfillArtists,
		s.backfillAlbums,
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			return
		}
		if err := step(ctx); err != nil {
			clean = false
			if errors.Is(err, shared.ErrRateLimited) {
				s.onRateLimit(err)
				break
			}
			s.logger.Error("sync step failed", "err", err)
		}
	}

	if clean {
		// Only a fully successful cycle forgets the escalated pause; a
		// provider alternating rate limits with other failures keeps
		// escalating.
		s.pause = basePause
	}
}

// backfillArtists syncs discographies for the next batch of artists that have
// never been scanned or have gone stale.
func (s *Scheduler) backfillArtists(ctx context.Context) error {
	batch, err := s.service.settings.GetInt("sync.backfill_batch_size", defaultBackfillBatch)
	if err != nil {
		return err
	}
	artists, err := s.service.ArtistBacklog(batch)
	if err != nil {
		return err
	}
	for _, artist := range artists {
		if _, err := s.service.SyncArtistAlbums(ctx, artist.ID, false); err != nil {
			if errors.Is(err, shared.ErrRateLimited) {
				return err
			}
			s.logger.Error("artist backfill failed", "artist", artist.Name, "err", err)
		}
	}
	return nil
}

// backfillAlbums syncs track lists for the next batch of albums.
func (s *Scheduler) backfillAlbums(ctx context.Context) error {
	batch, err := s.service.settings.GetInt("sync.backfill_batch_size", defaultBackfillBatch)
	if err != nil {
		return err
	}
	albums, err := s.service.AlbumBacklog(batch)
	if err != nil {
		return err
	}
	for _, album := range albums {
		if _, err := s.service.SyncAlbumTracks(ctx, album.ID, false); err != nil {
			if errors.Is(err, shared.ErrRateLimited) {
				return err
			}
			s.logger.Error("album backfill failed", "album", album.Name, "err", err)
		}
	}
	return nil
}

func (s *Scheduler) paused() bool {
	return s.now().Before(s.pausedUntil)
}

// onRateLimit pauses the provider. The pause honors the provider's
// Retry-After when it exceeds the current backoff step, and the step doubles
// up to the cap for the next hit.
func (s *Scheduler) onRateLimit(err error) {
	pause := s.pause

	var rle *shared.RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > pause {
		pause = rle.RetryAfter
	}

	s.pausedUntil = s.now().Add(pause)
	s.pause = min(s.pause*2, maxPause)

	s.logger.Warn("rate limited, pausing provider", "pause", pause, "until", s.pausedUntil)
}
