package safearchive

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/meigma/safearchive/internal/fingerprint"
)

// Option configures an Archive.
type Option func(*Archive) error

// Algorithm names a fingerprint digest algorithm.
type Algorithm = fingerprint.Algorithm

// Supported fingerprint algorithms.
const (
	AlgorithmSHA1   = fingerprint.SHA1
	AlgorithmSHA256 = fingerprint.SHA256
	AlgorithmSHA512 = fingerprint.SHA512
	AlgorithmBLAKE3 = fingerprint.BLAKE3
)

// DefaultIndexFile is the document an empty request path redirects to.
const DefaultIndexFile = "index.html"

// --- Display Options ---

// WithURLName sets the URL segment the archive is mounted under.
// It defaults to the base name of the root directory.
func WithURLName(name string) Option {
	return func(a *Archive) error {
		name = strings.Trim(name, "/")
		if name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("%w: url name %q", ErrInvalidOption, name)
		}
		a.urlName = name
		return nil
	}
}

// WithIndexFile sets the document an empty request path redirects to.
func WithIndexFile(name string) Option {
	return func(a *Archive) error {
		if name == "" {
			return fmt.Errorf("%w: empty index file", ErrInvalidOption)
		}
		a.indexFile = name
		return nil
	}
}

// WithIconFileName sets the icon hosts display next to the archive.
// It has no effect on serving.
func WithIconFileName(name string) Option {
	return func(a *Archive) error {
		a.iconFileName = name
		return nil
	}
}

// WithDisplayName sets the human readable archive title.
// It defaults to the URL name.
func WithDisplayName(title string) Option {
	return func(a *Archive) error {
		a.displayName = title
		return nil
	}
}

// --- Verification Options ---

// WithSafeExtensions sets the file name extensions served without
// fingerprint verification. Extensions are given without the leading dot;
// a single leading dot is tolerated and removed.
func WithSafeExtensions(exts ...string) Option {
	return func(a *Archive) error {
		safe := make(SafeExtensions, 0, len(exts))
		for _, ext := range exts {
			ext = strings.TrimPrefix(ext, ".")
			if ext == "" || strings.ContainsAny(ext, "/\\") {
				return fmt.Errorf("%w: safe extension %q", ErrInvalidOption, ext)
			}
			safe = append(safe, ext)
		}
		a.safe = safe
		return nil
	}
}

// WithAlgorithm sets the fingerprint algorithm. The default is sha256.
func WithAlgorithm(alg Algorithm) Option {
	return func(a *Archive) error {
		a.algorithm = alg
		return nil
	}
}

// --- Indexing Options ---

// WithWorkers sets how many files are fingerprinted concurrently while
// indexing. Values < 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(a *Archive) error {
		a.workers = n
		return nil
	}
}

// WithMaxFiles limits the number of fingerprinted files. Indexing a larger
// tree fails with ErrTooManyFiles. Zero means no limit.
func WithMaxFiles(n int) Option {
	return func(a *Archive) error {
		if n < 0 {
			return fmt.Errorf("%w: max files %d", ErrInvalidOption, n)
		}
		a.maxFiles = n
		return nil
	}
}

// --- Observability Options ---

// WithLogger sets the logger. The default discards all records.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) error {
		if logger != nil {
			a.logger = logger
		}
		return nil
	}
}

// WithMetrics sets the metrics recorder. The default records nothing.
func WithMetrics(m Metrics) Option {
	return func(a *Archive) error {
		if m != nil {
			a.metrics = m
		}
		return nil
	}
}
