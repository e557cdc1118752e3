// Package metadata adapts the TMDB client into the interface the
// reconciler consumes, adding the policies the raw client deliberately
// omits.
//
// Three concerns live here. Resolution: mapping a Plex show onto a TMDB id
// through a trust ladder (manual override, Plex tmdb GUID, Plex imdb GUID
// via /find, revalidated cached id, scored title search). Retry: every
// network call runs under a bounded exponential-backoff policy; transient
// transport failures and 5xx/429 responses are retried, exhaustion
// surfaces ErrUnavailable so callers skip the show and keep prior state.
// Caching: season episode lists are held in a TTL cache persisted across
// runs, keyed by (tmdb id, season); Invalidate drops every season under an
// id when an override replaces it.
package metadata
