package table

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/safearchive/internal/fb"
)

// Version is the encoding version written by Build.
const Version = 1

// ErrDuplicatePath is returned by Build when two entries share a path.
var ErrDuplicatePath = errors.New("table: duplicate path")

// Entry is a recorded file fingerprint.
type Entry struct {
	// Path is slash separated and relative to the archive root.
	Path string

	// Fingerprint is the lowercase hex digest of the file content.
	Fingerprint string

	// Size is the file length in bytes at scan time.
	Size int64

	// ModTime is the file modification time at scan time.
	ModTime time.Time
}

// Table is a read-only fingerprint table.
type Table struct {
	data []byte
	root *fb.Fingerprints
}

// Build encodes entries into a new Table. The entries slice is not modified.
func Build(algorithm string, entries []Entry) (*Table, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Path == sorted[i-1].Path {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, sorted[i].Path)
		}
	}
	return Load(encode(algorithm, sorted))
}

// encode serializes path-sorted entries to FlatBuffers format.
func encode(algorithm string, entries []Entry) []byte {
	builder := flatbuffers.NewBuilder(1024)

	// Build entries in reverse order (FlatBuffers requirement)
	offsets := make([]flatbuffers.UOffsetT, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		pathOffset := builder.CreateString(e.Path)
		fpOffset := builder.CreateString(e.Fingerprint)

		fb.EntryStart(builder)
		fb.EntryAddPath(builder, pathOffset)
		fb.EntryAddFingerprint(builder, fpOffset)
		fb.EntryAddSize(builder, e.Size)
		fb.EntryAddMtimeNs(builder, e.ModTime.UnixNano())
		offsets[i] = fb.EntryEnd(builder)
	}

	// Vector must stay in sorted order for EntriesByKey.
	fb.FingerprintsStartEntriesVector(builder, len(entries))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	entriesOffset := builder.EndVector(len(entries))

	algOffset := builder.CreateString(algorithm)

	fb.FingerprintsStart(builder)
	fb.FingerprintsAddVersion(builder, Version)
	fb.FingerprintsAddAlgorithm(builder, algOffset)
	fb.FingerprintsAddEntries(builder, entriesOffset)
	fb.FinishFingerprintsBuffer(builder, fb.FingerprintsEnd(builder))
	return builder.FinishedBytes()
}

// Load parses a FlatBuffers-encoded table.
//
// The provided data is retained by the table; callers must not modify it
// after calling Load.
func Load(data []byte) (*Table, error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, errors.New("table: empty data")
	}
	root := fb.GetRootAsFingerprints(data, 0)
	if v := root.Version(); v != Version {
		return nil, fmt.Errorf("table: unsupported version %d", v)
	}
	return &Table{data: data, root: root}, nil
}

// Algorithm returns the digest algorithm the fingerprints were computed with.
func (t *Table) Algorithm() string {
	return string(t.root.Algorithm())
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return t.root.EntriesLength()
}

// Lookup returns the entry recorded for path. Matching is exact.
func (t *Table) Lookup(path string) (Entry, bool) {
	var e fb.Entry
	if !t.root.EntriesByKey(&e, path) {
		return Entry{}, false
	}
	return entryFrom(&e), true
}

// Fingerprint returns only the recorded fingerprint for path.
func (t *Table) Fingerprint(path string) (string, bool) {
	var e fb.Entry
	if !t.root.EntriesByKey(&e, path) {
		return "", false
	}
	return string(e.Fingerprint()), true
}

// All returns an iterator over entries in path order.
func (t *Table) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		var e fb.Entry
		for i := range t.root.EntriesLength() {
			if !t.root.Entries(&e, i) {
				return
			}
			if !yield(entryFrom(&e)) {
				return
			}
		}
	}
}

// Bytes returns the encoded table. The slice must not be modified.
func (t *Table) Bytes() []byte {
	return t.data
}

func entryFrom(e *fb.Entry) Entry {
	return Entry{
		Path:        string(e.Path()),
		Fingerprint: string(e.Fingerprint()),
		Size:        e.Size(),
		ModTime:     time.Unix(0, e.MtimeNs()),
	}
}
