package engine

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/providers"
)

// Orchestrator answers read queries by walking a static provider priority
// list: the first usable provider that returns a non-empty result wins, and
// later providers are never consulted for that call. It exists for callers
// that want "an answer" rather than "this provider's answer".
//
// The orchestrator never returns an error. A provider failure is logged and
// treated exactly like an empty result; when every provider misses, the
// result is empty.
type Orchestrator struct {
	providers map[string]providers.Provider
	logger    *log.Logger

	// priority per operation, highest first
	artistAlbumsOrder []string
	newReleasesOrder  []string
	chartsOrder       []string
	searchOrder       []string
	isrcOrder         []string
}

// NewOrchestrator builds an orchestrator over the given providers. The
// priority lists are fixed at construction; providers absent from the map are
// skipped at call time.
func NewOrchestrator(provs []providers.Provider, logger *log.Logger) *Orchestrator {
	byName := make(map[string]providers.Provider, len(provs))
	for _, p := range provs {
		byName[p.Name()] = p
	}
	return &Orchestrator{
		providers:         byName,
		logger:            logger,
		artistAlbumsOrder: []string{models.ProviderSpotify, models.ProviderDeezer},
		newReleasesOrder:  []string{models.ProviderSpotify},
		chartsOrder:       []string{models.ProviderDeezer},
		searchOrder:       []string{models.ProviderSpotify, models.ProviderDeezer, models.ProviderMusicBrainz},
		isrcOrder:         []string{models.ProviderMusicBrainz},
	}
}

// candidates yields the usable providers for one operation, in priority order.
func (o *Orchestrator) candidates(order []string, cap providers.Capability) []providers.Provider {
	var usable []providers.Provider
	for _, name := range order {
		p, ok := o.providers[name]
		if !ok || !p.CanUse(cap) {
			continue
		}
		usable = append(usable, p)
	}
	return usable
}

// ArtistAlbums returns the first non-empty discography for the artist. ids
// maps provider name to that provider's native artist id; providers without
// an id entry are skipped.
func (o *Orchestrator) ArtistAlbums(ctx context.Context, ids map[string]string) []models.AlbumRecord {
	for _, p := range o.candidates(o.artistAlbumsOrder, providers.CapArtistAlbums) {
		nativeID := ids[p.Name()]
		if nativeID == "" {
			continue
		}
		records, err := providers.Collect(ctx, func(ctx context.Context, cursor string) ([]models.AlbumRecord, string, error) {
			return p.ArtistAlbums(ctx, nativeID, cursor)
		})
		if err != nil {
			o.logger.Warn("artist albums lookup failed, trying next provider", "provider", p.Name(), "err", err)
			continue
		}
		if len(records) > 0 {
			return records
		}
	}
	return nil
}

// NewReleases returns the first non-empty new-release listing.
func (o *Orchestrator) NewReleases(ctx context.Context) []models.AlbumRecord {
	for _, p := range o.candidates(o.newReleasesOrder, providers.CapNewReleases) {
		records, err := p.NewReleases(ctx)
		if err != nil {
			o.logger.Warn("new releases lookup failed, trying next provider", "provider", p.Name(), "err", err)
			continue
		}
		if len(records) > 0 {
			return records
		}
	}
	return nil
}

// Charts returns the first non-empty chart listing.
func (o *Orchestrator) Charts(ctx context.Context) []models.TrackRecord {
	for _, p := range o.candidates(o.chartsOrder, providers.CapCharts) {
		records, err := p.Charts(ctx)
		if err != nil {
			o.logger.Warn("charts lookup failed, trying next provider", "provider", p.Name(), "err", err)
			continue
		}
		if len(records) > 0 {
			return records
		}
	}
	return nil
}

// SearchArtists returns the first non-empty artist search result.
func (o *Orchestrator) SearchArtists(ctx context.Context, query string) []models.ArtistRecord {
	for _, p := range o.candidates(o.searchOrder, providers.CapArtistSearch) {
		records, err := p.SearchArtists(ctx, query)
		if err != nil {
			o.logger.Warn("artist search failed, trying next provider", "provider", p.Name(), "err", err)
			continue
		}
		if len(records) > 0 {
			return records
		}
	}
	return nil
}

// LookupTrackByISRC returns the first hit for the ISRC, or nil when no
// provider knows it.
func (o *Orchestrator) LookupTrackByISRC(ctx context.Context, isrc string) *models.TrackRecord {
	for _, p := range o.candidates(o.isrcOrder, providers.CapISRCLookup) {
		rec, err := p.LookupTrackByISRC(ctx, isrc)
		if err != nil {
			o.logger.Warn("isrc lookup failed, trying next provider", "provider", p.Name(), "err", err)
			continue
		}
		if rec != nil {
			return rec
		}
	}
	return nil
}
