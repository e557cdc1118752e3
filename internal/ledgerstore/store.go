package ledgerstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Lunedor/plex-parity/internal/ledger"
	"github.com/Lunedor/plex-parity/internal/logging"
)

const fileVersion = 1

// fileState is the durable representation of the ledger. Entries are kept
// raw during load so one malformed show does not poison the store.
type fileState struct {
	Version int                        `json:"version"`
	Shows   map[string]json.RawMessage `json:"shows"`
}

// Store manages durable ledger persistence.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	ledger *ledger.Ledger
}

// Open loads the ledger at path, treating an absent file as empty state.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ledgerstore")

	s := &Store{path: path, logger: logger}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Ledger returns the in-memory ledger. The store remains the single writer
// of its durable form; mutate entries, then call Save or SaveEntry.
func (s *Store) Ledger() *ledger.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger
}

// Save persists the whole ledger atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// SaveEntry merges one updated entry into the in-memory ledger and
// persists. Used after each show visit during a scan.
func (s *Store) SaveEntry(entry *ledger.Entry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Put(entry)
	return s.save()
}

// Prune removes a show entry and persists.
func (s *Store) Prune(showKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Prune(showKey)
	return s.save()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.ledger = ledger.New()
			return nil
		}
		return fmt.Errorf("read ledger file: %w", err)
	}
	if len(data) == 0 {
		s.ledger = ledger.New()
		return nil
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse ledger file: %w", err)
	}

	entries := make(map[string]*ledger.Entry, len(state.Shows))
	dropped := 0
	for key, raw := range state.Shows {
		var entry ledger.Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			dropped++
			s.logger.Warn("discarding corrupt ledger entry",
				logging.String(logging.FieldEventType, "ledger_entry_corrupt"),
				logging.String(logging.FieldShowKey, key),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the show will be re-derived on its next scan"))
			continue
		}
		entries[key] = &entry
	}

	s.ledger = ledger.FromEntries(entries)
	if dropped > 0 {
		s.logger.Warn("ledger loaded with corrupt entries dropped",
			logging.Int("dropped", dropped),
			logging.Int("loaded", len(entries)))
	}
	return nil
}

func (s *Store) save() error {
	shows := make(map[string]json.RawMessage, s.ledger.Len())
	for key, entry := range s.ledger.Snapshot() {
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry %s: %w", key, err)
		}
		shows[key] = raw
	}

	data, err := json.MarshalIndent(fileState{Version: fileVersion, Shows: shows}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
