// package images downloads entity artwork in the background. Sync code hands
// the queue a URL and moves on; a miss or a full queue costs nothing but a
// missing thumbnail until the next sync enqueues it again.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Entity kinds used to partition the cache directory.
const (
	KindArtist   = "artist"
	KindAlbum    = "album"
	KindPlaylist = "playlist"
)

// Job asks for one image to be fetched and cached.
type Job struct {
	Kind string // KindArtist, KindAlbum or KindPlaylist
	ID   string // canonical entity id, used as the cache filename
	URL  string
}

// RecordFunc persists the cached path onto the owning entity after a
// successful download.
type RecordFunc func(kind, id, path string) error

// Queue is a bounded, drop-on-full artwork download queue with a single
// worker goroutine.
type Queue struct {
	jobs     chan Job
	cacheDir string
	client   *http.Client
	record   RecordFunc
	logger   *log.Logger
}

// NewQueue creates a queue writing into cacheDir. record may be nil when the
// caller only wants the files on disk.
func NewQueue(cacheDir string, size int, record RecordFunc, logger *log.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{
		jobs:     make(chan Job, size),
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 30 * time.Second},
		record:   record,
		logger:   logger,
	}
}

// Enqueue offers a job to the queue without blocking. When the queue is full
// the job is dropped; the image will be offered again on a later sync.
func (q *Queue) Enqueue(job Job) {
	if job.URL == "" || job.ID == "" {
		return
	}
	select {
	case q.jobs <- job:
	default:
		q.logger.Debug("image queue full, dropping job", "kind", job.Kind, "id", job.ID)
	}
}

// Run processes jobs until ctx is cancelled. It is meant to be started once,
// in its own goroutine.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			path, err := q.download(ctx, job)
			if err != nil {
				q.logger.Warn("image download failed", "kind", job.Kind, "id", job.ID, "err", err)
				continue
			}
			if q.record != nil {
				if err := q.record(job.Kind, job.ID, path); err != nil {
					q.logger.Warn("failed to record image path", "kind", job.Kind, "id", job.ID, "err", err)
				}
			}
		}
	}
}

// download fetches the image to <cacheDir>/<kind>/<id>.jpg, skipping the
// request when the file already exists.
func (q *Queue) download(ctx context.Context, job Job) (string, error) {
	dir := filepath.Join(q.cacheDir, job.Kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image cache dir: %w", err)
	}

	path := filepath.Join(dir, job.ID+".jpg")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image request returned %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, job.ID+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp image file: %w", err)
	}

	_, err = io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move image into cache: %w", err)
	}
	return path, nil
}
