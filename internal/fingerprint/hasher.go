package fingerprint

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sync"
)

// ChunkSize is the size of the buffer file content is streamed through.
const ChunkSize = 32 << 10

// Hasher computes hex-encoded fingerprints with a fixed algorithm.
//
// A Hasher is safe for concurrent use.
type Hasher struct {
	alg     Algorithm
	newHash func() hash.Hash
	bufs    sync.Pool
}

// NewHasher resolves alg once so that later calls cannot fail on
// availability. It returns ErrUnavailable for unknown algorithms.
func NewHasher(alg Algorithm) (*Hasher, error) {
	if alg == "" {
		alg = Default
	}
	fn, err := alg.constructor()
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, alg)
	}
	h := &Hasher{alg: alg, newHash: fn}
	h.bufs.New = func() any {
		buf := make([]byte, ChunkSize)
		return &buf
	}
	return h, nil
}

// Algorithm returns the algorithm the hasher was built with.
func (h *Hasher) Algorithm() Algorithm {
	return h.alg
}

// Sum streams r to EOF and returns the lowercase hex digest together with the
// number of bytes hashed.
func (h *Hasher) Sum(r io.Reader) (string, int64, error) {
	bufp := h.bufs.Get().(*[]byte) //nolint:errcheck // pool only holds *[]byte
	defer h.bufs.Put(bufp)

	hr := NewHashingReader(r, h.newHash())
	if _, err := io.CopyBuffer(onlyWriter{io.Discard}, hr, *bufp); err != nil {
		return "", hr.N(), err
	}
	return hex.EncodeToString(hr.Sum()), hr.N(), nil
}

// SumBytes returns the hex digest of data.
func (h *Hasher) SumBytes(data []byte) string {
	d := h.newHash()
	_, _ = d.Write(data) //nolint:errcheck // hash writes never fail
	return hex.EncodeToString(d.Sum(nil))
}

// Equal compares two hex fingerprints in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// onlyWriter hides io.ReaderFrom so io.CopyBuffer reads in ChunkSize chunks.
type onlyWriter struct {
	io.Writer
}
