package ledger

import (
	"testing"
	"time"
)

func TestRefreshPromotesUpcomingToMissing(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	air := now.AddDate(0, 0, 5)

	entry := NewEntry("42", "Show", 2020)
	entry.UpsertEpisode(&Episode{Season: 1, Episode: 4, AirDate: &air}, now)

	ep, _ := entry.Episode(Key{Season: 1, Episode: 4})
	if ep.State != StateUpcoming {
		t.Fatalf("state before air = %q, want upcoming", ep.State)
	}

	entry.Refresh(now.AddDate(0, 0, 6))
	if ep.State != StateMissing {
		t.Fatalf("state after air = %q, want missing", ep.State)
	}
}

func TestShowLevelIgnoreWinsOverMissing(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -3)

	entry := NewEntry("42", "Show", 2020)
	entry.UpsertEpisode(&Episode{Season: 1, Episode: 2, AirDate: &past}, now)
	entry.SetIgnoreAll(true, now)

	ep, _ := entry.Episode(Key{Season: 1, Episode: 2})
	if ep.State != StateIgnored {
		t.Fatalf("state = %q, want ignored under show-level ignore", ep.State)
	}

	entry.SetIgnoreAll(false, now)
	if ep.State != StateMissing {
		t.Fatalf("state after unignore = %q, want missing", ep.State)
	}
}

func TestSetEpisodeIgnoredCreatesStub(t *testing.T) {
	now := time.Now()
	entry := NewEntry("42", "Show", 2020)
	entry.SetEpisodeIgnored(Key{Season: 2, Episode: 9}, true, now)

	ep, ok := entry.Episode(Key{Season: 2, Episode: 9})
	if !ok {
		t.Fatal("ignored episode was not recorded")
	}
	if ep.State != StateIgnored {
		t.Fatalf("state = %q, want ignored", ep.State)
	}
}

func TestResetResolutionKeepsManualOverride(t *testing.T) {
	entry := NewEntry("42", "Show", 2020)
	entry.TMDBID = 100
	entry.IMDBID = "tt0100"
	entry.Status = "Returning Series"
	entry.ManualTMDBID = 555

	entry.ResetResolution(false)
	if entry.TMDBID != 555 || entry.Source != SourceManual {
		t.Fatalf("override should survive reset: id=%d source=%q", entry.TMDBID, entry.Source)
	}
	if !entry.Dirty {
		t.Fatal("reset must mark the entry dirty")
	}

	entry.ResetResolution(true)
	if entry.TMDBID != 0 || entry.ManualTMDBID != 0 {
		t.Fatalf("clearManual should drop ids, got tmdb=%d manual=%d", entry.TMDBID, entry.ManualTMDBID)
	}
}

func TestHasUpcomingWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := NewEntry("42", "Show", 2020)

	far := now.AddDate(0, 2, 0)
	entry.UpsertEpisode(&Episode{Season: 1, Episode: 5, AirDate: &far}, now)
	if entry.HasUpcomingWithin(now, 14*24*time.Hour) {
		t.Fatal("episode two months out should not count as gapped")
	}

	near := now.AddDate(0, 0, 10)
	entry.UpsertEpisode(&Episode{Season: 1, Episode: 6, AirDate: &near}, now)
	if !entry.HasUpcomingWithin(now, 14*24*time.Hour) {
		t.Fatal("episode ten days out should count as gapped")
	}
}

func TestArchivedStatuses(t *testing.T) {
	entry := NewEntry("42", "Show", 2020)
	for status, want := range map[string]bool{
		"Ended":            true,
		"Canceled":         true,
		"Returning Series": false,
		"In Production":    false,
		"":                 false,
	} {
		entry.Status = status
		if got := entry.Archived(); got != want {
			t.Errorf("Archived() with status %q = %v, want %v", status, got, want)
		}
	}
}

func TestNextAirPicksEarliestFutureDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := NewEntry("42", "Show", 2020)

	later := now.AddDate(0, 1, 0)
	sooner := now.AddDate(0, 0, 3)
	past := now.AddDate(0, 0, -3)
	entry.UpsertEpisode(&Episode{Season: 1, Episode: 7, AirDate: &later}, now)
	entry.UpsertEpisode(&Episode{Season: 1, Episode: 6, AirDate: &sooner}, now)
	entry.UpsertEpisode(&Episode{Season: 1, Episode: 5, AirDate: &past}, now)

	key, date, ok := entry.NextAir(now)
	if !ok {
		t.Fatal("expected a next air date")
	}
	if key != (Key{Season: 1, Episode: 6}) || !date.Equal(sooner) {
		t.Fatalf("next air = %v at %v, want S01E06 at %v", key, date, sooner)
	}
}
