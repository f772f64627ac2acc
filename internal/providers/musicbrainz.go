// MusicBrainz implementation of [Provider], used as the enrichment source.
//
// Only lookup/search capabilities are offered: ISRC recording lookup and
// artist search. MusicBrainz has no user library and no browse surface the
// engine cares about. The API requires a descriptive User-Agent and at most
// one request per second.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
	"golang.org/x/time/rate"
)

const musicBrainzBaseURL = "https://musicbrainz.org/ws/2"

type mbArtist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
	Score    int    `json:"score"`
}

type mbArtistCredit struct {
	Name   string   `json:"name"`
	Artist mbArtist `json:"artist"`
}

type mbRecording struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Length       int              `json:"length"` // milliseconds
	ArtistCredit []mbArtistCredit `json:"artist-credit"`
}

type mbISRCResponse struct {
	ISRC       string        `json:"isrc"`
	Recordings []mbRecording `json:"recordings"`
}

type mbArtistSearch struct {
	Artists []mbArtist `json:"artists"`
	Count   int        `json:"count"`
}

// MusicBrainzProvider implements [Provider] for the MusicBrainz API.
type MusicBrainzProvider struct {
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewMusicBrainzProvider creates a MusicBrainz enrichment client.
func NewMusicBrainzProvider(cfg shared.MusicBrainzConfig, logger *log.Logger) *MusicBrainzProvider {
	ua := cfg.UserAgent
	if ua == "" {
		ua = "harmonia/0.1 (https://github.com/harmonia-sh/harmonia)"
	}
	return &MusicBrainzProvider{
		userAgent:  ua,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// MusicBrainz requires at most 1 request per second.
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger,
	}
}

func (p *MusicBrainzProvider) Name() string { return models.ProviderMusicBrainz }

// CanUse reports whether an operation can be attempted.
func (p *MusicBrainzProvider) CanUse(c Capability) bool {
	switch c {
	case CapISRCLookup, CapArtistSearch:
		return true
	default:
		return false
	}
}

func (p *MusicBrainzProvider) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, musicBrainzBaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("musicbrainz: %w", shared.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		// MusicBrainz throttles with 503 as well as 429.
		return &shared.RateLimitError{
			Provider:   models.ProviderMusicBrainz,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: musicbrainz status %d", shared.ErrProviderRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// LookupTrackByISRC resolves an ISRC to a recording. The returned record is
// tagged with the MusicBrainz recording id and carries the queried ISRC, so
// the resolver can converge entities across providers.
func (p *MusicBrainzProvider) LookupTrackByISRC(ctx context.Context, isrc string) (*models.TrackRecord, error) {
	if isrc == "" {
		return nil, fmt.Errorf("%w: empty isrc", shared.ErrInvalidRecord)
	}

	endpoint := fmt.Sprintf("/isrc/%s?inc=artists&fmt=json", url.PathEscape(isrc))

	var resp mbISRCResponse
	if err := p.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Recordings) == 0 {
		return nil, fmt.Errorf("musicbrainz isrc %s: %w", isrc, shared.ErrNotFound)
	}

	rec := resp.Recordings[0]
	record := &models.TrackRecord{
		Provider:   models.ProviderMusicBrainz,
		ID:         rec.ID,
		Title:      rec.Title,
		ISRC:       isrc,
		DurationMS: rec.Length,
	}
	if len(rec.ArtistCredit) > 0 {
		record.ArtistName = rec.ArtistCredit[0].Name
	}
	return record, nil
}

// SearchArtists queries the artist search index.
func (p *MusicBrainzProvider) SearchArtists(ctx context.Context, query string) ([]models.ArtistRecord, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrInvalidRecord)
	}

	endpoint := fmt.Sprintf("/artist/?query=%s&fmt=json&limit=10", url.QueryEscape(query))

	var resp mbArtistSearch
	if err := p.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	records := make([]models.ArtistRecord, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		records = append(records, models.ArtistRecord{
			Provider:      models.ProviderMusicBrainz,
			ID:            a.ID,
			Name:          a.Name,
			MusicBrainzID: a.ID,
		})
	}
	return records, nil
}

// FollowedArtists is not offered; MusicBrainz has no user library.
func (p *MusicBrainzProvider) FollowedArtists(ctx context.Context, cursor string) ([]models.ArtistRecord, string, error) {
	return nil, "", fmt.Errorf("musicbrainz followed artists: %w", shared.ErrCapabilityMissing)
}

// SavedAlbums is not offered.
func (p *MusicBrainzProvider) SavedAlbums(ctx context.Context, cursor string) ([]models.AlbumRecord, string, error) {
	return nil, "", fmt.Errorf("musicbrainz saved albums: %w", shared.ErrCapabilityMissing)
}

// UserPlaylists is not offered.
func (p *MusicBrainzProvider) UserPlaylists(ctx context.Context, cursor string) ([]models.PlaylistRecord, string, error) {
	return nil, "", fmt.Errorf("musicbrainz playlists: %w", shared.ErrCapabilityMissing)
}

// ArtistAlbums is not offered as a sync surface.
func (p *MusicBrainzProvider) ArtistAlbums(ctx context.Context, artistID, cursor string) ([]models.AlbumRecord, string, error) {
	return nil, "", fmt.Errorf("musicbrainz artist albums: %w", shared.ErrCapabilityMissing)
}

// AlbumTracks is not offered as a sync surface.
func (p *MusicBrainzProvider) AlbumTracks(ctx context.Context, albumID, cursor string) ([]models.TrackRecord, string, error) {
	return nil, "", fmt.Errorf("musicbrainz album tracks: %w", shared.ErrCapabilityMissing)
}

// NewReleases is not offered.
func (p *MusicBrainzProvider) NewReleases(ctx context.Context) ([]models.AlbumRecord, error) {
	return nil, fmt.Errorf("musicbrainz new releases: %w", shared.ErrCapabilityMissing)
}

// Charts is not offered.
func (p *MusicBrainzProvider) Charts(ctx context.Context) ([]models.TrackRecord, error) {
	return nil, fmt.Errorf("musicbrainz charts: %w", shared.ErrCapabilityMissing)
}
