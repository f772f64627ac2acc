// package providers implements clients for the external metadata providers
// (Spotify, Deezer, MusicBrainz) behind one capability-checked interface.
//
// Every client paces its own requests with a [rate.Limiter] and converts
// provider rate-limit responses into [shared.RateLimitError] so the sync
// scheduler can pause the whole provider loop. Operations a provider cannot
// serve (missing credentials, unsupported endpoint) are reported through
// CanUse rather than by failing at call time.
package providers
