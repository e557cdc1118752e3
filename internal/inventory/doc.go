// Package inventory reports what the Plex server actually holds: the
// shows of the configured TV library, the episodes present per show, and
// the account watchlist used to narrow scan scope.
//
// The provider is read-only and deliberately thin; it normalizes Plex's
// container payloads into plain structs and leaves every reconciliation
// decision to callers. Connection or auth failures surface ErrUnavailable,
// which the orchestrator treats as fatal to the scan since no show
// universe exists without it.
package inventory
