// Deezer implementation of [Provider]
//
// Deezer API response types based on https://developers.deezer.com/api
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
	"golang.org/x/time/rate"
)

const (
	deezerBaseURL  = "https://api.deezer.com"
	deezerPageSize = 50

	// Deezer error codes, https://developers.deezer.com/api/errors
	deezerCodeQuota       = 4
	deezerCodeOAuthFailed = 200
	deezerCodeTokenInvalid = 300
)

type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type deezerArtist struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture_medium"`
	NbFan   int    `json:"nb_fan"`
}

type deezerAlbum struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Cover       string       `json:"cover_medium"`
	RecordType  string       `json:"record_type"`
	ReleaseDate string       `json:"release_date"`
	NbTracks    int          `json:"nb_tracks"`
	Artist      deezerArtist `json:"artist"`
}

type deezerTrack struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	ISRC        string       `json:"isrc"`
	Duration    int          `json:"duration"` // seconds
	TrackPos    int          `json:"track_position"`
	Explicit    bool         `json:"explicit_lyrics"`
	Rank        int          `json:"rank"`
	Artist      deezerArtist `json:"artist"`
	Album       deezerAlbum  `json:"album"`
}

type deezerPlaylist struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	NbTracks    int    `json:"nb_tracks"`
	Picture     string `json:"picture_medium"`
	Creator     struct {
		Name string `json:"name"`
	} `json:"creator"`
}

// deezerPage is the common list envelope: data + total + optional next URL.
type deezerPage[T any] struct {
	Data  []T          `json:"data"`
	Total int          `json:"total"`
	Next  string       `json:"next"`
	Error *deezerError `json:"error"`
}

type deezerChart struct {
	Tracks deezerPage[deezerTrack] `json:"tracks"`
	Error  *deezerError            `json:"error"`
}

// DeezerProvider implements [Provider] for the Deezer API.
//
// Public catalog endpoints (artist discography, album tracks, charts, search)
// need no credentials; user-library endpoints are gated behind an access
// token and report unavailable without one.
type DeezerProvider struct {
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *log.Logger
}

// NewDeezerProvider creates a Deezer provider. token may be empty.
func NewDeezerProvider(cfg shared.DeezerConfig, logger *log.Logger) *DeezerProvider {
	return &DeezerProvider{
		accessToken: cfg.AccessToken,
		httpClient:  http.DefaultClient,
		// Deezer enforces 50 requests per 5 seconds.
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		logger:  logger,
	}
}

func (p *DeezerProvider) Name() string { return models.ProviderDeezer }

func (p *DeezerProvider) authenticated() bool { return p.accessToken != "" }

// CanUse reports whether an operation can be attempted.
func (p *DeezerProvider) CanUse(c Capability) bool {
	switch c {
	case CapFollowedArtists, CapSavedAlbums, CapUserPlaylists:
		return p.authenticated()
	case CapArtistAlbums, CapAlbumTracks, CapCharts, CapArtistSearch:
		return true
	default:
		return false
	}
}

// doRequest performs a rate-limited GET. Deezer reports failures as a 200
// with an error object in the body, so the body error is checked by callers
// via the page envelope; this method only handles transport-level failures.
func (p *DeezerProvider) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL := deezerBaseURL + endpoint
	if p.accessToken != "" {
		sep := "?"
		if u, err := url.Parse(apiURL); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		apiURL += sep + "access_token=" + url.QueryEscape(p.accessToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &shared.RateLimitError{Provider: models.ProviderDeezer}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: deezer status %d", shared.ErrProviderRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// checkError maps a body-level Deezer error to the shared taxonomy.
func (p *DeezerProvider) checkError(e *deezerError) error {
	if e == nil {
		return nil
	}
	switch e.Code {
	case deezerCodeQuota:
		return &shared.RateLimitError{Provider: models.ProviderDeezer}
	case deezerCodeOAuthFailed, deezerCodeTokenInvalid:
		return fmt.Errorf("deezer: %w", shared.ErrNotAuthenticated)
	default:
		return fmt.Errorf("%w: deezer error %d: %s", shared.ErrProviderRequest, e.Code, e.Message)
	}
}

// fetchPage gets one list page; cursor is the numeric index of the first item.
func fetchPage[T any](ctx context.Context, p *DeezerProvider, path, cursor string) (*deezerPage[T], string, error) {
	index := 0
	if cursor != "" {
		i, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("%w: bad deezer cursor %q", shared.ErrProviderRequest, cursor)
		}
		index = i
	}

	sep := "?"
	if u, err := url.Parse(path); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	endpoint := fmt.Sprintf("%s%sindex=%d&limit=%d", path, sep, index, deezerPageSize)

	var page deezerPage[T]
	if err := p.doRequest(ctx, endpoint, &page); err != nil {
		return nil, "", err
	}
	if err := p.checkError(page.Error); err != nil {
		return nil, "", err
	}

	next := ""
	if page.Next != "" {
		next = strconv.Itoa(index + len(page.Data))
	}
	return &page, next, nil
}

// FollowedArtists pages through the user's followed artists.
func (p *DeezerProvider) FollowedArtists(ctx context.Context, cursor string) ([]models.ArtistRecord, string, error) {
	if !p.authenticated() {
		return nil, "", fmt.Errorf("deezer: %w", shared.ErrNotAuthenticated)
	}

	page, next, err := fetchPage[deezerArtist](ctx, p, "/user/me/artists", cursor)
	if err != nil {
		return nil, "", err
	}

	records := make([]models.ArtistRecord, 0, len(page.Data))
	for _, a := range page.Data {
		records = append(records, p.artistRecord(a))
	}
	return records, next, nil
}

// SavedAlbums pages through the user's saved albums.
func (p *DeezerProvider) SavedAlbums(ctx context.Context, cursor string) ([]models.AlbumRecord, string, error) {
	if !p.authenticated() {
		return nil, "", fmt.Errorf("deezer: %w", shared.ErrNotAuthenticated)
	}

	page, next, err := fetchPage[deezerAlbum](ctx, p, "/user/me/albums", cursor)
	if err != nil {
		return nil, "", err
	}

	records := make([]models.AlbumRecord, 0, len(page.Data))
	for _, a := range page.Data {
		records = append(records, p.albumRecord(a))
	}
	return records, next, nil
}

// UserPlaylists pages through the user's playlists.
func (p *DeezerProvider) UserPlaylists(ctx context.Context, cursor string) ([]models.PlaylistRecord, string, error) {
	if !p.authenticated() {
		return nil, "", fmt.Errorf("deezer: %w", shared.ErrNotAuthenticated)
	}

	page, next, err := fetchPage[deezerPlaylist](ctx, p, "/user/me/playlists", cursor)
	if err != nil {
		return nil, "", err
	}

	records := make([]models.PlaylistRecord, 0, len(page.Data))
	for _, pl := range page.Data {
		records = append(records, models.PlaylistRecord{
			Provider:    models.ProviderDeezer,
			ID:          strconv.FormatInt(pl.ID, 10),
			Name:        pl.Title,
			Description: pl.Description,
			Owner:       pl.Creator.Name,
			TrackCount:  pl.NbTracks,
			Public:      pl.Public,
			ImageURL:    pl.Picture,
		})
	}
	return records, next, nil
}

// ArtistAlbums pages through an artist's discography.
func (p *DeezerProvider) ArtistAlbums(ctx context.Context, artistID, cursor string) ([]models.AlbumRecord, string, error) {
	path := fmt.Sprintf("/artist/%s/albums", url.PathEscape(artistID))
	page, next, err := fetchPage[deezerAlbum](ctx, p, path, cursor)
	if err != nil {
		return nil, "", err
	}

	records := make([]models.AlbumRecord, 0, len(page.Data))
	for _, a := range page.Data {
		rec := p.albumRecord(a)
		if rec.ArtistID == "" {
			rec.ArtistID = artistID
		}
		records = append(records, rec)
	}
	return records, next, nil
}

// AlbumTracks pages through an album's track list.
func (p *DeezerProvider) AlbumTracks(ctx context.Context, albumID, cursor string) ([]models.TrackRecord, string, error) {
	path := fmt.Sprintf("/album/%s/tracks", url.PathEscape(albumID))
	page, next, err := fetchPage[deezerTrack](ctx, p, path, cursor)
	if err != nil {
		return nil, "", err
	}

	records := make([]models.TrackRecord, 0, len(page.Data))
	for _, t := range page.Data {
		rec := p.trackRecord(t)
		rec.AlbumID = albumID
		records = append(records, rec)
	}
	return records, next, nil
}

// NewReleases is not offered by the Deezer API.
func (p *DeezerProvider) NewReleases(ctx context.Context) ([]models.AlbumRecord, error) {
	return nil, fmt.Errorf("deezer new releases: %w", shared.ErrCapabilityMissing)
}

// Charts fetches the current track chart.
func (p *DeezerProvider) Charts(ctx context.Context) ([]models.TrackRecord, error) {
	var chart deezerChart
	if err := p.doRequest(ctx, "/chart", &chart); err != nil {
		return nil, err
	}
	if err := p.checkError(chart.Error); err != nil {
		return nil, err
	}

	records := make([]models.TrackRecord, 0, len(chart.Tracks.Data))
	for _, t := range chart.Tracks.Data {
		records = append(records, p.trackRecord(t))
	}
	return records, nil
}

// LookupTrackByISRC is not offered here; MusicBrainz owns ISRC resolution.
func (p *DeezerProvider) LookupTrackByISRC(ctx context.Context, isrc string) (*models.TrackRecord, error) {
	return nil, fmt.Errorf("deezer isrc lookup: %w", shared.ErrCapabilityMissing)
}

// SearchArtists queries the artist search endpoint.
func (p *DeezerProvider) SearchArtists(ctx context.Context, query string) ([]models.ArtistRecord, error) {
	path := "/search/artist?q=" + url.QueryEscape(query)
	page, _, err := fetchPage[deezerArtist](ctx, p, path, "")
	if err != nil {
		return nil, err
	}

	records := make([]models.ArtistRecord, 0, len(page.Data))
	for _, a := range page.Data {
		records = append(records, p.artistRecord(a))
	}
	return records, nil
}

func (p *DeezerProvider) artistRecord(a deezerArtist) models.ArtistRecord {
	return models.ArtistRecord{
		Provider:   models.ProviderDeezer,
		ID:         strconv.FormatInt(a.ID, 10),
		Name:       a.Name,
		Popularity: a.NbFan,
		ImageURL:   a.Picture,
	}
}

func (p *DeezerProvider) albumRecord(a deezerAlbum) models.AlbumRecord {
	rec := models.AlbumRecord{
		Provider:    models.ProviderDeezer,
		ID:          strconv.FormatInt(a.ID, 10),
		Name:        a.Title,
		AlbumType:   a.RecordType,
		ReleaseDate: a.ReleaseDate,
		TotalTracks: a.NbTracks,
		ImageURL:    a.Cover,
	}
	if a.Artist.ID != 0 {
		rec.ArtistID = strconv.FormatInt(a.Artist.ID, 10)
		rec.ArtistName = a.Artist.Name
	}
	return rec
}

func (p *DeezerProvider) trackRecord(t deezerTrack) models.TrackRecord {
	rec := models.TrackRecord{
		Provider:    models.ProviderDeezer,
		ID:          strconv.FormatInt(t.ID, 10),
		Title:       t.Title,
		ISRC:        t.ISRC,
		DurationMS:  t.Duration * 1000,
		TrackNumber: t.TrackPos,
		Explicit:    t.Explicit,
		Popularity:  t.Rank,
		ArtistName:  t.Artist.Name,
	}
	if t.Album.ID != 0 {
		rec.AlbumID = strconv.FormatInt(t.Album.ID, 10)
	}
	return rec
}
