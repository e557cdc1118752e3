// Package preflight runs connectivity and environment checks ahead of a
// scan: Plex reachability, TMDB credentials, and state-directory health.
package preflight
