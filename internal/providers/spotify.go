// Spotify implementation of [Provider]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyPageSize = 50
)

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyExternalIDs struct {
	ISRC string `json:"isrc"`
}

type spotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Popularity int            `json:"popularity"`
	Images     []spotifyImage `json:"images"`
}

type spotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AlbumType   string          `json:"album_type"`
	Artists     []spotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []spotifyImage  `json:"images"`
}

type spotifyTrack struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Artists     []spotifyArtist    `json:"artists"`
	Album       spotifyAlbum       `json:"album"`
	DurationMS  int                `json:"duration_ms"`
	TrackNumber int                `json:"track_number"`
	Explicit    bool               `json:"explicit"`
	ExternalIDs spotifyExternalIDs `json:"external_ids"`
	Popularity  int                `json:"popularity"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyPlaylistTracks struct {
	Total int `json:"total"`
}

type spotifyPlaylist struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Owner       spotifyOwner          `json:"owner"`
	Public      bool                  `json:"public"`
	Tracks      spotifyPlaylistTracks `json:"tracks"`
	Images      []spotifyImage        `json:"images"`
}

type spotifyFollowedArtists struct {
	Artists struct {
		Items   []spotifyArtist `json:"items"`
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Total int `json:"total"`
	} `json:"artists"`
}

type spotifySavedAlbums struct {
	Items []struct {
		AddedAt string       `json:"added_at"`
		Album   spotifyAlbum `json:"album"`
	} `json:"items"`
	Next *string `json:"next"`
}

type spotifyPagedPlaylists struct {
	Items []spotifyPlaylist `json:"items"`
	Next  *string           `json:"next"`
}

type spotifyPagedAlbums struct {
	Items []spotifyAlbum `json:"items"`
	Next  *string        `json:"next"`
}

type spotifyPagedTracks struct {
	Items []spotifyTrack `json:"items"`
	Next  *string        `json:"next"`
}

type spotifyNewReleases struct {
	Albums spotifyPagedAlbums `json:"albums"`
}

// SpotifyProvider implements [Provider] for the Spotify Web API.
//
// All requests share one client-side [rate.Limiter]; HTTP 429 responses are
// converted to [shared.RateLimitError] with the Retry-After the API suggests.
type SpotifyProvider struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyProvider creates a Spotify provider from credentials. A missing or
// empty access token leaves the provider in the unauthenticated state: every
// capability reports unavailable until Authenticate or SetToken succeeds.
func NewSpotifyProvider(cfg shared.SpotifyConfig, logger *log.Logger) *SpotifyProvider {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes: []string{
			"user-follow-read",
			"user-library-read",
			"playlist-read-private",
			"playlist-read-collaborative",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	p := &SpotifyProvider{
		config:     oc,
		httpClient: http.DefaultClient,
		// Spotify allows bursts but throttles sustained traffic around
		// ~180 requests/minute; pace below that.
		limiter: rate.NewLimiter(rate.Limit(2), 5),
		logger:  logger,
	}

	if cfg.AccessToken != "" {
		p.token = &oauth2.Token{
			AccessToken:  cfg.AccessToken,
			RefreshToken: cfg.RefreshToken,
		}
		p.httpClient = oc.Client(context.Background(), p.token)
	}

	return p
}

// Authenticate exchanges an authorization code for a token.
func (p *SpotifyProvider) Authenticate(ctx context.Context, authCode string) error {
	token, err := p.config.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	p.token = token
	p.httpClient = p.config.Client(ctx, token)
	return nil
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (p *SpotifyProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig exposes the provider's OAuth2 configuration for the
// authorization callback flow.
func (p *SpotifyProvider) OAuthConfig() *oauth2.Config {
	return p.config
}

// SetToken installs an already-exchanged token, e.g. one obtained through the
// loopback callback flow.
func (p *SpotifyProvider) SetToken(ctx context.Context, token *oauth2.Token) {
	p.token = token
	p.httpClient = p.config.Client(ctx, token)
}

func (p *SpotifyProvider) Name() string { return models.ProviderSpotify }

func (p *SpotifyProvider) authenticated() bool { return p.token != nil }

// CanUse reports whether an operation can be attempted. The Web API has no
// anonymous access; every supported operation needs a user token.
func (p *SpotifyProvider) CanUse(c Capability) bool {
	switch c {
	case CapFollowedArtists, CapSavedAlbums, CapUserPlaylists,
		CapArtistAlbums, CapAlbumTracks, CapNewReleases, CapArtistSearch:
		return p.authenticated()
	default:
		return false
	}
}

// doRequest performs a rate-limited authenticated GET against the Spotify API.
// endpoint may be a path relative to the API base or the absolute "next" URL
// from a paginated response.
func (p *SpotifyProvider) doRequest(ctx context.Context, endpoint string, result any) error {
	if !p.authenticated() {
		return fmt.Errorf("spotify: %w", shared.ErrNotAuthenticated)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL := endpoint
	if len(endpoint) == 0 || endpoint[0] == '/' {
		apiURL = spotifyBaseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("spotify: %w", shared.ErrNotAuthenticated)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &shared.RateLimitError{
			Provider:   models.ProviderSpotify,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrProviderRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// parseRetryAfter reads a Retry-After header value in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// FollowedArtists pages through /me/following. Spotify uses an "after" id
// cursor here rather than offsets; the cursor is passed through opaquely.
func (p *SpotifyProvider) FollowedArtists(ctx context.Context, cursor string) ([]models.ArtistRecord, string, error) {
	endpoint := fmt.Sprintf("/me/following?type=artist&limit=%d", spotifyPageSize)
	if cursor != "" {
		endpoint += "&after=" + url.QueryEscape(cursor)
	}

	var resp spotifyFollowedArtists
	if err := p.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, "", err
	}

	records := make([]models.ArtistRecord, 0, len(resp.Artists.Items))
	for _, a := range resp.Artists.Items {
		records = append(records, p.artistRecord(a))
	}
	return records, resp.Artists.Cursors.After, nil
}

// SavedAlbums pages through /me/albums using the response's next URL as cursor.
func (p *SpotifyProvider) SavedAlbums(ctx context.Context, cursor string) ([]models.AlbumRecord, string, error) {
	endpoint := cursor
	if endpoint == "" {
		endpoint = fmt.Sprintf("/me/albums?limit=%d", spotifyPageSize)
	}

	var resp spotifySavedAlbums
	if err := p.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, "", err
	}

	records := make([]models.AlbumRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		records = append(records, p.albumRecord(item.Album))
	}
	return records, deref(resp.Next), nil
}

// UserPlaylists pages through /me/playlists.
func (p *SpotifyProvider) UserPlaylists(ctx context.Context, cursor string) ([]models.PlaylistRecord, string, error) {
	endpoint := cursor
	if endpoint == "" {
		endpoint = fmt.Sprintf("/me/playlists?limit=%d", spotifyPageSize)
	}

	var resp spotifyPagedPlaylists
	if err := p.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, "", err
	}

	records := make([]models.PlaylistRecord, 0, len(resp.Items))
	for _, pl := range resp.Items {
		records = append(records, models.PlaylistRecord{
			Provider:    models.ProviderSpotify,
			ID:          pl.ID,
			Name:        pl.Name,
			Description: pl.Description,
			Owner:       pl.Owner.DisplayName,
			TrackCount:  pl.Tracks.Total,
			Public:      pl.Public,
			ImageURL:    firstImage(pl.Images),
		})
	}
	return records, deref(resp.Next), nil
}

// ArtistAlbums pages through an artist's discography.
func (p *SpotifyProvider) ArtistAlbums(ctx context.Context, artistID, cursor string) ([]models.AlbumRecord, string, error) {
	endpoint := cursor
	if endpoint == "" {
		endpoint = fmt.Sprintf("/artists/%s/albums?include_groups=album,single&limit=%d", url.PathEscape(artistID), spotifyPageSize)
	}

	var resp spotifyPagedAlbums
	if err := p.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, "", err
	}

	records := make([]models.AlbumRecord, 0, len(resp.Items))
	for _, a := range resp.Items {
		records = append(records, p.albumRecord(a))
	}
	return records, deref(resp.Next), nil
}

// AlbumTracks pages through an album's track list.
func (p *SpotifyProvider) AlbumTracks(ctx context.Context, albumID, cursor string) ([]models.TrackRecord, string, error) {
	endpoint := cursor
	if endpoint == "" {
		endpoint = fmt.Sprintf("/albums/%s/tracks?limit=%d", url.PathEscape(albumID), spotifyPageSize)
	}

	var resp spotifyPagedTracks
	if err := p.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, "", err
	}

	records := make([]models.TrackRecord, 0, len(resp.Items))
	for _, t := range resp.Items {
		rec := p.trackRecord(t)
		// Simplified track objects omit the album; scope is the queried album.
		rec.AlbumID = albumID
		records = append(records, rec)
	}
	return records, deref(resp.Next), nil
}

// NewReleases fetches the first page of browse new releases.
func (p *SpotifyProvider) NewReleases(ctx context.Context) ([]models.AlbumRecord, error) {
	var resp spotifyNewReleases
	endpoint := fmt.Sprintf("/browse/new-releases?limit=%d", spotifyPageSize)
	if err := p.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	records := make([]models.AlbumRecord, 0, len(resp.Albums.Items))
	for _, a := range resp.Albums.Items {
		records = append(records, p.albumRecord(a))
	}
	return records, nil
}

// Charts is not offered by the Spotify Web API.
func (p *SpotifyProvider) Charts(ctx context.Context) ([]models.TrackRecord, error) {
	return nil, fmt.Errorf("spotify charts: %w", shared.ErrCapabilityMissing)
}

// LookupTrackByISRC is not offered here; MusicBrainz owns ISRC resolution.
func (p *SpotifyProvider) LookupTrackByISRC(ctx context.Context, isrc string) (*models.TrackRecord, error) {
	return nil, fmt.Errorf("spotify isrc lookup: %w", shared.ErrCapabilityMissing)
}

// SearchArtists queries the search endpoint for artists.
func (p *SpotifyProvider) SearchArtists(ctx context.Context, query string) ([]models.ArtistRecord, error) {
	endpoint := fmt.Sprintf("/search?type=artist&q=%s&limit=%d", url.QueryEscape(query), spotifyPageSize)

	var resp struct {
		Artists struct {
			Items []spotifyArtist `json:"items"`
		} `json:"artists"`
	}
	if err := p.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	records := make([]models.ArtistRecord, 0, len(resp.Artists.Items))
	for _, a := range resp.Artists.Items {
		records = append(records, p.artistRecord(a))
	}
	return records, nil
}

func (p *SpotifyProvider) artistRecord(a spotifyArtist) models.ArtistRecord {
	return models.ArtistRecord{
		Provider:   models.ProviderSpotify,
		ID:         a.ID,
		Name:       a.Name,
		Genres:     a.Genres,
		Popularity: a.Popularity,
		ImageURL:   firstImage(a.Images),
	}
}

func (p *SpotifyProvider) albumRecord(a spotifyAlbum) models.AlbumRecord {
	rec := models.AlbumRecord{
		Provider:    models.ProviderSpotify,
		ID:          a.ID,
		Name:        a.Name,
		AlbumType:   a.AlbumType,
		ReleaseDate: a.ReleaseDate,
		TotalTracks: a.TotalTracks,
		ImageURL:    firstImage(a.Images),
	}
	if len(a.Artists) > 0 {
		rec.ArtistID = a.Artists[0].ID
		rec.ArtistName = a.Artists[0].Name
	}
	return rec
}

func (p *SpotifyProvider) trackRecord(t spotifyTrack) models.TrackRecord {
	rec := models.TrackRecord{
		Provider:    models.ProviderSpotify,
		ID:          t.ID,
		Title:       t.Name,
		AlbumID:     t.Album.ID,
		ISRC:        t.ExternalIDs.ISRC,
		DurationMS:  t.DurationMS,
		TrackNumber: t.TrackNumber,
		Explicit:    t.Explicit,
		Popularity:  t.Popularity,
	}
	if len(t.Artists) > 0 {
		rec.ArtistName = t.Artists[0].Name
	}
	return rec
}

func firstImage(images []spotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
