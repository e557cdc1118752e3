// Package ledger holds the per-show episode state the reconciliation
// engine treats as its source of truth.
//
// An Entry aggregates every episode record known for one show along with
// the resolved TMDB/IMDb identity, season summaries, and audit timestamps.
// Episode state is never stored authoritatively: it is re-derived from
// (local presence, ignore flags, air date vs. now) whenever an episode is
// touched, so the stored value is only a snapshot of the last derivation.
//
// The package is purely in-memory; durable persistence lives in
// ledgerstore. Treat this package as the single source of truth for state
// semantics: new episode attributes must flow through DeriveState.
package ledger
