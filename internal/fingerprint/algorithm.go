// Package fingerprint computes content digests used to detect modification of
// archive files between indexing and serving.
package fingerprint

import (
	"crypto"
	_ "crypto/sha1" //nolint:gosec // sha1 remains selectable for compatibility with existing indexes
	"errors"
	"hash"

	"github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"
)

// ErrUnavailable is returned when a digest algorithm is unknown or not linked
// into the binary.
var ErrUnavailable = errors.New("fingerprint: algorithm unavailable")

// Algorithm names a digest algorithm.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = Algorithm(digest.SHA256)
	SHA512 Algorithm = Algorithm(digest.SHA512)
	BLAKE3 Algorithm = "blake3"
)

// Default is the algorithm used when none is configured.
const Default = SHA256

// Algorithms lists every algorithm this package knows about, in order of
// preference.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, SHA512, BLAKE3, SHA1}
}

func (a Algorithm) String() string {
	return string(a)
}

// Available reports whether the algorithm can produce hashes in this binary.
func (a Algorithm) Available() bool {
	_, err := a.constructor()
	return err == nil
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	fn, err := a.constructor()
	if err != nil {
		return nil, err
	}
	return fn(), nil
}

// Size returns the digest length in bytes, or 0 if the algorithm is unavailable.
func (a Algorithm) Size() int {
	h, err := a.New()
	if err != nil {
		return 0
	}
	return h.Size()
}

// Digest formats an encoded fingerprint in "algorithm:hex" form for logs.
func (a Algorithm) Digest(encoded string) digest.Digest {
	return digest.NewDigestFromEncoded(digest.Algorithm(a), encoded)
}

func (a Algorithm) constructor() (func() hash.Hash, error) {
	switch a {
	case SHA256, SHA512:
		alg := digest.Algorithm(a)
		if !alg.Available() {
			return nil, ErrUnavailable
		}
		return alg.Hash, nil
	case SHA1:
		if !crypto.SHA1.Available() {
			return nil, ErrUnavailable
		}
		return crypto.SHA1.New, nil
	case BLAKE3:
		return func() hash.Hash { return blake3.New() }, nil
	default:
		return nil, ErrUnavailable
	}
}
