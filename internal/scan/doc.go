// Package scan orchestrates library scans over the episode ledger.
//
// A scan is a state machine over one scan record: select the shows in
// scope, visit them sequentially, persist after every show, then finish
// the record. A flock guard rejects a second scan against the same state
// directory instead of queueing it. Cancellation is cooperative and
// checked between show visits; a cancelled scan keeps everything already
// persisted and reports a partial outcome.
//
// The orchestrator is also the mutation facade the CLI uses for manual
// overrides and ignore flags, so every ledger write funnels through one
// owner of the store.
package scan
