package scan

import (
	"fmt"
	"time"
)

// Mode selects how much of the library a scan re-derives.
type Mode string

const (
	// ModeIncremental visits non-archived shows that need attention and
	// picks the cheapest tier per show.
	ModeIncremental Mode = "incremental"
	// ModeFull visits every show in scope at the season-audit tier with
	// fresh metadata, and reconciles the ledger against the library.
	ModeFull Mode = "full"
	// ModeRefresh revisits shows currently holding missing or upcoming
	// episodes, without re-running library discovery.
	ModeRefresh Mode = "refresh"
	// ModeTargeted visits exactly one named show at the targeted tier.
	ModeTargeted Mode = "targeted"
)

// ParseMode validates a mode flag value.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeIncremental, ModeFull, ModeRefresh, ModeTargeted:
		return Mode(raw), nil
	}
	return "", fmt.Errorf("unknown scan mode %q", raw)
}

// Scope restricts the show universe a scan considers.
type Scope string

const (
	ScopeLibrary   Scope = "library"
	ScopeWatchlist Scope = "watchlist"
)

// ParseScope validates a scope flag value.
func ParseScope(raw string) (Scope, error) {
	switch Scope(raw) {
	case ScopeLibrary, ScopeWatchlist:
		return Scope(raw), nil
	}
	return "", fmt.Errorf("unknown scan scope %q", raw)
}

// Outcome is the terminal status of a scan record.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomePartial marks a cancelled scan: prior persisted progress is
	// intact, unvisited shows were never touched.
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// ShowFailure records one show skipped inside an otherwise-continuing scan.
type ShowFailure struct {
	ShowKey string
	Title   string
	Reason  string
}

// Record accumulates the counts and failures of one scan run.
type Record struct {
	ID         string
	Mode       Mode
	Scope      Scope
	TargetShow string

	StartedAt  time.Time
	FinishedAt time.Time

	ShowsSelected    int
	ShowsVisited     int
	ShowsSkipped     int
	ShowsFailed      int
	ShowsPruned      int
	SeasonsAudited   int
	EpisodesAdded    int
	EpisodesPromoted int

	Failures []ShowFailure
	Outcome  Outcome
}

// Duration returns the scan's wall-clock time.
func (r *Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Record) fail(showKey, title, reason string) {
	r.ShowsFailed++
	r.Failures = append(r.Failures, ShowFailure{ShowKey: showKey, Title: title, Reason: reason})
}
