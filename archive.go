package safearchive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/meigma/safearchive/internal/fingerprint"
	"github.com/meigma/safearchive/internal/scan"
	"github.com/meigma/safearchive/internal/table"
)

// Archive serves files below a root directory, verifying fingerprints of
// files that are not safe by extension.
//
// Archive is safe for concurrent use. Its configuration is fixed at
// construction; only the fingerprint snapshot changes, and only through
// Reindex.
type Archive struct {
	root string
	dir  *os.Root

	urlName      string
	indexFile    string
	iconFileName string
	displayName  string
	safe         SafeExtensions
	algorithm    Algorithm
	workers      int
	maxFiles     int

	logger  *slog.Logger
	metrics Metrics

	snap    atomic.Pointer[Snapshot]
	indexMu sync.Mutex
	closed  atomic.Bool
}

// New creates an Archive rooted at root and indexes it before returning.
//
// New fails if root is not a listable directory, if any directory below it
// cannot be listed, or if the fingerprint algorithm is unavailable. An
// Archive is never returned half-indexed.
func New(ctx context.Context, root string, opts ...Option) (*Archive, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, abs)
	}

	a := &Archive{
		root:      abs,
		urlName:   filepath.Base(abs),
		indexFile: DefaultIndexFile,
		algorithm: fingerprint.Default,
		logger:    slog.New(slog.DiscardHandler),
		metrics:   NoopMetrics{},
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.displayName == "" {
		a.displayName = a.urlName
	}
	if !a.algorithm.Available() {
		return nil, fmt.Errorf("%w: %q", ErrAlgorithmUnavailable, a.algorithm)
	}

	dir, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	a.dir = dir

	if _, err := a.Reindex(ctx); err != nil {
		_ = dir.Close()
		return nil, err
	}
	return a, nil
}

// Reindex walks the root again and atomically replaces the fingerprint
// snapshot. On failure the previous snapshot stays in effect.
//
// Concurrent calls are serialized. The root is assumed not to change while
// it is being walked.
func (a *Archive) Reindex(ctx context.Context) (*Snapshot, error) {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	if a.closed.Load() {
		return nil, ErrClosed
	}

	hasher, err := fingerprint.NewHasher(a.algorithm)
	if err != nil {
		return nil, err
	}

	a.logger.Info("indexing archive",
		slog.String("archive", a.urlName),
		slog.String("root", a.root))

	scanner := scan.New(hasher,
		scan.WithSkip(a.safe.Match),
		scan.WithWorkers(a.workers),
		scan.WithMaxFiles(a.maxFiles),
		scan.WithLogger(a.logger),
	)
	res, err := scanner.Scan(ctx, a.dir)
	if err != nil {
		a.logger.Error("indexing failed",
			slog.String("archive", a.urlName),
			slog.Any("error", err))
		return nil, err
	}

	tbl, err := table.Build(hasher.Algorithm().String(), res.Files)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:        uuid.New(),
		Algorithm: hasher.Algorithm(),
		IndexedAt: time.Now(),
		Duration:  res.Duration,
		Safe:      res.Safe,
		Skipped:   res.Skipped,
		table:     tbl,
		hasher:    hasher,
	}
	a.snap.Store(snap)
	a.metrics.ObserveIndex(a.urlName, tbl.Len(), res.Safe, res.Duration)

	a.logger.Info("indexed archive",
		slog.String("archive", a.urlName),
		slog.String("scan_id", snap.ID.String()),
		slog.String("algorithm", snap.Algorithm.String()),
		slog.Int("fingerprinted", tbl.Len()),
		slog.Int("safe", res.Safe),
		slog.Int("skipped", res.Skipped),
		slog.Int("dirs", res.Dirs),
		slog.Duration("duration", res.Duration))
	return snap, nil
}

// Snapshot returns the current fingerprint snapshot.
func (a *Archive) Snapshot() *Snapshot {
	return a.snap.Load()
}

// Close releases the root directory handle. Files already returned by
// Resolve remain readable until closed.
func (a *Archive) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	return a.dir.Close()
}

// Root returns the absolute root directory.
func (a *Archive) Root() string {
	return a.root
}

// URLName returns the URL segment the archive is mounted under.
func (a *Archive) URLName() string {
	return a.urlName
}

// IndexFile returns the document an empty request path redirects to.
func (a *Archive) IndexFile() string {
	return a.indexFile
}

// IconFileName returns the icon configured for host navigation.
func (a *Archive) IconFileName() string {
	return a.iconFileName
}

// DisplayName returns the human readable archive title.
func (a *Archive) DisplayName() string {
	return a.displayName
}

// SafeExtensions returns a copy of the configured safe extensions.
func (a *Archive) SafeExtensions() SafeExtensions {
	return a.safe.Clone()
}
