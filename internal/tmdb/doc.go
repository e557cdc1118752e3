// Package tmdb is a minimal client for The Movie Database API covering the
// endpoints episode reconciliation needs: TV search, show details with
// external ids, season episode lists, and IMDb-to-TMDB resolution.
//
// The client is transport only: no caching, no retries. Those policies
// belong to the metadata adapter layered above it.
package tmdb
