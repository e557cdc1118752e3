package ledger

import (
	"testing"
	"time"
)

func buildLedger(t *testing.T, now time.Time) *Ledger {
	t.Helper()
	l := New()

	past := now.AddDate(0, 0, -2)
	future := now.AddDate(0, 0, 4)

	ongoing := l.GetOrCreate("1", "Ongoing Show", 2021)
	ongoing.Status = "Returning Series"
	ongoing.UpsertEpisode(&Episode{Season: 1, Episode: 1, Present: true}, now)
	ongoing.UpsertEpisode(&Episode{Season: 1, Episode: 2, AirDate: &past}, now)
	ongoing.UpsertEpisode(&Episode{Season: 1, Episode: 3, AirDate: &future}, now)

	ended := l.GetOrCreate("2", "Ended Show", 2010)
	ended.Status = "Ended"
	ended.UpsertEpisode(&Episode{Season: 3, Episode: 9, AirDate: &past}, now)

	ignored := l.GetOrCreate("3", "Quiet Show", 2019)
	ignored.Status = "Returning Series"
	ignored.UpsertEpisode(&Episode{Season: 2, Episode: 1, AirDate: &past, Ignored: true}, now)

	return l
}

func TestMissingExcludesArchivedByDefault(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := buildLedger(t, now)

	ongoing := l.Missing(false)
	if len(ongoing) != 1 || ongoing[0].Entry.ShowKey != "1" {
		t.Fatalf("ongoing missing = %+v, want only show 1", ongoing)
	}
	if len(ongoing[0].Episodes) != 1 || ongoing[0].Episodes[0].Key().Code() != "S01E02" {
		t.Fatalf("show 1 missing episodes = %+v", ongoing[0].Episodes)
	}

	all := l.Missing(true)
	if len(all) != 2 {
		t.Fatalf("missing with archived = %d shows, want 2", len(all))
	}
}

func TestUpcomingAndIgnoredProjections(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := buildLedger(t, now)

	upcoming := l.Upcoming(false)
	if len(upcoming) != 1 || upcoming[0].Episodes[0].Key().Code() != "S01E03" {
		t.Fatalf("upcoming = %+v", upcoming)
	}

	ignored := l.Ignored()
	if len(ignored) != 1 || ignored[0].Entry.ShowKey != "3" {
		t.Fatalf("ignored = %+v", ignored)
	}
}

func TestEntriesSortedByTitle(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := buildLedger(t, now)

	entries := l.Entries()
	want := []string{"Ended Show", "Ongoing Show", "Quiet Show"}
	for i, title := range want {
		if entries[i].Title != title {
			t.Fatalf("entries[%d] = %q, want %q", i, entries[i].Title, title)
		}
	}
}

func TestPruneRemovesShow(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := buildLedger(t, now)

	l.Prune("2")
	if _, ok := l.Get("2"); ok {
		t.Fatal("show 2 should be gone after prune")
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
}

func TestFromEntriesBackfillsShowKey(t *testing.T) {
	entry := NewEntry("", "Orphan", 2020)
	l := FromEntries(map[string]*Entry{"77": entry})
	got, ok := l.Get("77")
	if !ok || got.ShowKey != "77" {
		t.Fatalf("entry not keyed correctly: %+v", got)
	}
}
