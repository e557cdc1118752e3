// Package reconcile implements the per-show diff between the episode
// ledger, the local inventory, and external metadata.
//
// Reconciliation runs at one of three tiers. The lightweight tier touches
// no metadata at all: it refreshes presence flags against the supplied
// inventory and re-derives episode states against the clock. The season
// audit tier fetches the show's full season lists and rebuilds the
// expected episode set. The targeted tier is a season audit for a single
// show picked outside normal scan selection.
//
// A season audit stages every metadata response before mutating the
// ledger entry, so a metadata failure partway through leaves the entry
// exactly as it was.
package reconcile
