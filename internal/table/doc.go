//go:generate flatc --go --go-namespace fb -o .. ../../schema/table.fbs

// Package table holds the fingerprint table produced by an archive scan.
//
// A Table is an immutable FlatBuffers buffer with entries sorted by path, so
// lookups are O(log n) binary searches and the table can be shared between
// goroutines without locking. A rescan builds a new Table; existing Tables
// are never modified.
package table
