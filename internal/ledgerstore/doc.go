// Package ledgerstore persists the episode ledger as a single JSON file.
//
// Writes go through a temp-file-then-rename so a crash mid-write never
// truncates prior state. Loads tolerate a missing file (first run) and
// malformed individual show entries: a corrupt entry is dropped with a
// warning while the rest of the store loads normally. SaveEntry gives the
// orchestrator incremental persistence during a long scan so a crash loses
// at most the in-flight show.
package ledgerstore
