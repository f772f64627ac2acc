package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/harmonia-sh/harmonia/internal/shared"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestCollect(t *testing.T) {
	t.Run("drains all pages in order", func(t *testing.T) {
		pages := map[string]struct {
			items []int
			next  string
		}{
			"":  {items: []int{1, 2}, next: "2"},
			"2": {items: []int{3}, next: "3"},
			"3": {items: nil, next: ""},
		}

		got, err := Collect(context.Background(), func(ctx context.Context, cursor string) ([]int, string, error) {
			page, ok := pages[cursor]
			if !ok {
				return nil, "", fmt.Errorf("unexpected cursor %q", cursor)
			}
			return page.items, page.next, nil
		})
		if err != nil {
			t.Fatalf("collect failed: %v", err)
		}
		if len(got) != 3 || got[0] != 1 || got[2] != 3 {
			t.Errorf("expected [1 2 3], got %v", got)
		}
	})

	t.Run("propagates a mid-pagination error", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		_, err := Collect(context.Background(), func(ctx context.Context, cursor string) ([]string, string, error) {
			calls++
			if calls == 2 {
				return nil, "", boom
			}
			return []string{"a"}, "next", nil
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected the page error, got %v", err)
		}
	})
}

func TestDeezerProvider(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("public capabilities need no token", func(t *testing.T) {
		p := NewDeezerProvider(shared.DeezerConfig{}, logger)

		for _, c := range []Capability{CapArtistAlbums, CapAlbumTracks, CapCharts, CapArtistSearch} {
			if !p.CanUse(c) {
				t.Errorf("expected %s to be usable without a token", c)
			}
		}
		for _, c := range []Capability{CapFollowedArtists, CapSavedAlbums, CapUserPlaylists} {
			if p.CanUse(c) {
				t.Errorf("expected %s to be gated behind a token", c)
			}
		}

		_, _, err := p.FollowedArtists(context.Background(), "")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("maps body-level error codes", func(t *testing.T) {
		p := NewDeezerProvider(shared.DeezerConfig{}, logger)

		if err := p.checkError(&deezerError{Code: deezerCodeQuota}); !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected quota error to map to ErrRateLimited, got %v", err)
		}
		if err := p.checkError(&deezerError{Code: deezerCodeTokenInvalid}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected token error to map to ErrNotAuthenticated, got %v", err)
		}
		if err := p.checkError(nil); err != nil {
			t.Errorf("expected nil for no error, got %v", err)
		}
	})

	t.Run("pages by numeric index cursor", func(t *testing.T) {
		p := NewDeezerProvider(shared.DeezerConfig{}, logger)
		p.httpClient = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			switch q.Get("index") {
			case "0":
				return jsonResponse(200, `{"data":[{"id":11,"title":"LP5"},{"id":12,"title":"EP7"}],"total":3,"next":"https://api.deezer.com/artist/1/albums?index=2"}`), nil
			case "2":
				return jsonResponse(200, `{"data":[{"id":13,"title":"Confield"}],"total":3}`), nil
			}
			return nil, fmt.Errorf("unexpected request %s", req.URL)
		})}

		records, next, err := p.ArtistAlbums(context.Background(), "1", "")
		if err != nil {
			t.Fatalf("first page failed: %v", err)
		}
		if len(records) != 2 || records[0].ID != "11" {
			t.Errorf("expected mapped string ids, got %+v", records)
		}
		if next != "2" {
			t.Errorf("expected next cursor 2, got %q", next)
		}

		records, next, err = p.ArtistAlbums(context.Background(), "1", next)
		if err != nil {
			t.Fatalf("second page failed: %v", err)
		}
		if len(records) != 1 || records[0].Name != "Confield" {
			t.Errorf("expected the final page, got %+v", records)
		}
		if next != "" {
			t.Errorf("expected exhausted cursor, got %q", next)
		}
	})

	t.Run("http 429 maps to a rate limit error", func(t *testing.T) {
		p := NewDeezerProvider(shared.DeezerConfig{}, logger)
		p.httpClient = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusTooManyRequests, `{}`), nil
		})}

		_, err := p.Charts(context.Background())
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("unsupported operations report missing capability", func(t *testing.T) {
		p := NewDeezerProvider(shared.DeezerConfig{}, logger)

		if _, err := p.NewReleases(context.Background()); !errors.Is(err, shared.ErrCapabilityMissing) {
			t.Errorf("expected ErrCapabilityMissing, got %v", err)
		}
		if _, err := p.LookupTrackByISRC(context.Background(), "X"); !errors.Is(err, shared.ErrCapabilityMissing) {
			t.Errorf("expected ErrCapabilityMissing, got %v", err)
		}
	})
}

func TestSpotifyProvider(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("unauthenticated provider offers nothing", func(t *testing.T) {
		p := NewSpotifyProvider(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"}, logger)

		for _, c := range []Capability{CapFollowedArtists, CapArtistAlbums, CapNewReleases} {
			if p.CanUse(c) {
				t.Errorf("expected %s unavailable without a token", c)
			}
		}

		_, _, err := p.FollowedArtists(context.Background(), "")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("http 429 carries the retry-after header", func(t *testing.T) {
		p := NewSpotifyProvider(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", AccessToken: "tok"}, logger)
		p.httpClient = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			resp := jsonResponse(http.StatusTooManyRequests, `{}`)
			resp.Header.Set("Retry-After", "120")
			return resp, nil
		})}

		_, _, err := p.FollowedArtists(context.Background(), "")
		var rle *shared.RateLimitError
		if !errors.As(err, &rle) {
			t.Fatalf("expected RateLimitError, got %v", err)
		}
		if rle.RetryAfter != 2*time.Minute {
			t.Errorf("expected 2m retry-after, got %v", rle.RetryAfter)
		}
	})

	t.Run("cursor paging follows the after id", func(t *testing.T) {
		p := NewSpotifyProvider(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", AccessToken: "tok"}, logger)
		p.httpClient = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("after") == "" {
				return jsonResponse(200, `{"artists":{"items":[{"id":"sp-1","name":"Autechre"}],"cursors":{"after":"sp-1"}}}`), nil
			}
			return jsonResponse(200, `{"artists":{"items":[{"id":"sp-2","name":"Plaid"}],"cursors":{"after":""}}}`), nil
		})}

		records, err := Collect(context.Background(), p.FollowedArtists)
		if err != nil {
			t.Fatalf("collect failed: %v", err)
		}
		if len(records) != 2 || records[0].ID != "sp-1" || records[1].ID != "sp-2" {
			t.Errorf("expected both pages, got %+v", records)
		}
	})
}

func TestMusicBrainzProvider(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("only lookup capabilities are offered", func(t *testing.T) {
		p := NewMusicBrainzProvider(shared.MusicBrainzConfig{UserAgent: "test/1.0"}, logger)

		if !p.CanUse(CapISRCLookup) || !p.CanUse(CapArtistSearch) {
			t.Error("expected isrc lookup and artist search to be available")
		}
		if p.CanUse(CapFollowedArtists) || p.CanUse(CapCharts) {
			t.Error("expected sync and browse surfaces to be unavailable")
		}

		if _, _, err := p.FollowedArtists(context.Background(), ""); !errors.Is(err, shared.ErrCapabilityMissing) {
			t.Errorf("expected ErrCapabilityMissing, got %v", err)
		}
	})
}
