// package models defines the canonical catalog entities and the typed
// provider records that sync operations map onto them.
//
// A canonical entity is the single local representation of an artist, album,
// track or playlist regardless of how many providers reference it. Provider
// records are the tagged per-kind shapes returned by provider clients; the
// engine's resolver is the only component that turns one into the other.
package models
