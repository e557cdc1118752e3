package ledger

import (
	"sort"
	"strings"
	"time"
)

// Ledger is the in-memory collection of show entries for one library.
type Ledger struct {
	entries map[string]*Entry
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]*Entry)}
}

// FromEntries builds a ledger from previously persisted entries.
func FromEntries(entries map[string]*Entry) *Ledger {
	l := New()
	for key, entry := range entries {
		if entry == nil {
			continue
		}
		if entry.ShowKey == "" {
			entry.ShowKey = key
		}
		l.entries[key] = entry
	}
	return l
}

// Get returns the entry for a show key, if present.
func (l *Ledger) Get(showKey string) (*Entry, bool) {
	entry, ok := l.entries[showKey]
	return entry, ok
}

// GetOrCreate returns the entry for a show, creating it on first discovery.
func (l *Ledger) GetOrCreate(showKey, title string, year int) *Entry {
	if entry, ok := l.entries[showKey]; ok {
		entry.Title = title
		entry.Year = year
		return entry
	}
	entry := NewEntry(showKey, title, year)
	l.entries[showKey] = entry
	return entry
}

// Put stores an entry under its show key.
func (l *Ledger) Put(entry *Entry) {
	if entry == nil || entry.ShowKey == "" {
		return
	}
	l.entries[entry.ShowKey] = entry
}

// Prune removes a show and all its episode records. Entries are otherwise
// never deleted, so this is the only path by which episode keys vanish.
func (l *Ledger) Prune(showKey string) {
	delete(l.entries, showKey)
}

// Len returns the number of show entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Keys returns all show keys in unspecified order.
func (l *Ledger) Keys() []string {
	keys := make([]string, 0, len(l.entries))
	for key := range l.entries {
		keys = append(keys, key)
	}
	return keys
}

// Entries returns all entries sorted by title, then show key.
func (l *Ledger) Entries() []*Entry {
	out := make([]*Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := strings.ToLower(out[i].Title), strings.ToLower(out[j].Title)
		if ti != tj {
			return ti < tj
		}
		return out[i].ShowKey < out[j].ShowKey
	})
	return out
}

// Snapshot returns the underlying entry map for persistence.
func (l *Ledger) Snapshot() map[string]*Entry {
	return l.entries
}

// ShowEpisodes pairs a show entry with a projected episode subset.
type ShowEpisodes struct {
	Entry    *Entry
	Episodes []*Episode
}

// Missing projects shows holding missing episodes, partitioned by the
// archived flag: ended and canceled shows are excluded unless
// includeArchived is set.
func (l *Ledger) Missing(includeArchived bool) []ShowEpisodes {
	return l.project(StateMissing, includeArchived)
}

// Upcoming projects shows holding upcoming episodes.
func (l *Ledger) Upcoming(includeArchived bool) []ShowEpisodes {
	return l.project(StateUpcoming, includeArchived)
}

// Ignored projects shows holding ignored episodes. Archived shows are
// always included; an ignore is a deliberate user mark worth listing.
func (l *Ledger) Ignored() []ShowEpisodes {
	return l.project(StateIgnored, true)
}

func (l *Ledger) project(state State, includeArchived bool) []ShowEpisodes {
	var out []ShowEpisodes
	for _, entry := range l.Entries() {
		if !includeArchived && entry.Archived() {
			continue
		}
		episodes := entry.EpisodesInState(state)
		if len(episodes) == 0 {
			continue
		}
		out = append(out, ShowEpisodes{Entry: entry, Episodes: episodes})
	}
	return out
}

// RefreshAll re-derives every entry's episode states against now.
func (l *Ledger) RefreshAll(now time.Time) {
	for _, entry := range l.entries {
		entry.Refresh(now)
	}
}
