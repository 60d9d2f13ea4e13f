package safearchive

import (
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/meigma/safearchive/internal/fingerprint"
	"github.com/meigma/safearchive/internal/table"
)

// Entry is a recorded file fingerprint.
type Entry = table.Entry

// Snapshot is the immutable result of one indexing pass.
type Snapshot struct {
	// ID uniquely identifies the indexing pass.
	ID uuid.UUID

	// Algorithm is the digest algorithm fingerprints were computed with.
	Algorithm Algorithm

	// IndexedAt is when the pass completed.
	IndexedAt time.Time

	// Duration is how long the pass took.
	Duration time.Duration

	// Safe counts files exempt from fingerprinting by extension.
	Safe int

	// Skipped counts symbolic links and other non-regular entries.
	Skipped int

	table  *table.Table
	hasher *fingerprint.Hasher
}

// Len returns the number of fingerprinted files.
func (s *Snapshot) Len() int {
	return s.table.Len()
}

// Lookup returns the entry recorded for a slash-separated root-relative path.
func (s *Snapshot) Lookup(path string) (Entry, bool) {
	return s.table.Lookup(path)
}

// All iterates over recorded entries in path order.
func (s *Snapshot) All() iter.Seq[Entry] {
	return s.table.All()
}
