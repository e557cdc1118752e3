package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// State classifies an episode relative to the local library.
type State string

const (
	StatePresent  State = "present"
	StateMissing  State = "missing"
	StateUpcoming State = "upcoming"
	StateIgnored  State = "ignored"
)

// Key identifies an episode within a show.
type Key struct {
	Season  int
	Episode int
}

// Code renders the key in SxxEyy form.
func (k Key) Code() string {
	return fmt.Sprintf("S%02dE%02d", k.Season, k.Episode)
}

var codePattern = regexp.MustCompile(`^S(\d{2,})E(\d{2,})$`)

// ParseCode parses an SxxEyy code back into a Key.
func ParseCode(code string) (Key, error) {
	match := codePattern.FindStringSubmatch(code)
	if match == nil {
		return Key{}, fmt.Errorf("invalid episode code %q", code)
	}
	season, err := strconv.Atoi(match[1])
	if err != nil {
		return Key{}, fmt.Errorf("invalid season in %q", code)
	}
	episode, err := strconv.Atoi(match[2])
	if err != nil {
		return Key{}, fmt.Errorf("invalid episode in %q", code)
	}
	return Key{Season: season, Episode: episode}, nil
}

// Episode is one episode record within a show's ledger entry.
type Episode struct {
	Season  int        `json:"season"`
	Episode int        `json:"episode"`
	AirDate *time.Time `json:"air_date,omitempty"`
	Present bool       `json:"present"`
	Ignored bool       `json:"ignored"`
	State   State      `json:"state"`
}

// Key returns the episode's key within its show.
func (e *Episode) Key() Key {
	return Key{Season: e.Season, Episode: e.Episode}
}

// Aired reports whether the episode's air date is known and not after now.
func (e *Episode) Aired(now time.Time) bool {
	return e.AirDate != nil && !e.AirDate.After(now)
}

// DeriveState computes episode state from its inputs. Presence wins over
// everything, then an explicit ignore, then the air date: a known past date
// means missing, while an unknown or future date is upcoming. An episode is
// never presumed aired on a missing date.
func DeriveState(present, ignored bool, airDate *time.Time, now time.Time) State {
	switch {
	case present:
		return StatePresent
	case ignored:
		return StateIgnored
	case airDate != nil && !airDate.After(now):
		return StateMissing
	default:
		return StateUpcoming
	}
}

// Refresh re-derives the stored state snapshot against now.
func (e *Episode) Refresh(now time.Time) {
	e.State = DeriveState(e.Present, e.Ignored, e.AirDate, now)
}
