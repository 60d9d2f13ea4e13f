// Package scan walks an archive directory and fingerprints its files.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/safearchive/internal/fingerprint"
	"github.com/meigma/safearchive/internal/pathutil"
	"github.com/meigma/safearchive/internal/platform"
	"github.com/meigma/safearchive/internal/table"
)

// Sentinel errors.
var (
	// ErrUnlistable is returned when a directory under the root cannot be listed.
	ErrUnlistable = errors.New("scan: directory cannot be listed")

	// ErrTooManyFiles is returned when the fingerprinted file count exceeds the limit.
	ErrTooManyFiles = errors.New("scan: too many files")
)

// Result is the outcome of a completed scan.
type Result struct {
	// Files holds one entry per fingerprinted file, in no particular order.
	Files []table.Entry

	// Safe counts regular files exempted by the skip predicate.
	Safe int

	// Skipped counts symbolic links and other non-regular entries.
	Skipped int

	// Dirs counts directories visited, including the root.
	Dirs int

	// Duration is the wall time of the scan.
	Duration time.Duration
}

// Scanner fingerprints every regular file below a root that the skip
// predicate does not exempt.
type Scanner struct {
	hasher   *fingerprint.Hasher
	skip     func(name string) bool
	workers  int
	maxFiles int
	logger   *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithSkip sets the predicate deciding which file names are not fingerprinted.
func WithSkip(fn func(name string) bool) Option {
	return func(s *Scanner) {
		s.skip = fn
	}
}

// WithWorkers sets the number of files fingerprinted concurrently.
// Values < 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		s.workers = n
	}
}

// WithMaxFiles limits the number of fingerprinted files. Zero means no limit.
func WithMaxFiles(n int) Option {
	return func(s *Scanner) {
		s.maxFiles = n
	}
}

// WithLogger sets the logger for scan progress.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scanner using h for fingerprints.
func New(h *fingerprint.Hasher, opts ...Option) *Scanner {
	s := &Scanner{
		hasher: h,
		skip:   func(string) bool { return false },
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s
}

// Scan walks root and returns the fingerprints of all non-exempt regular
// files. Directories are visited from an explicit stack, so nesting depth is
// bounded only by memory. Symbolic links are neither followed nor recorded.
//
// Scan returns only after every started fingerprint has finished. Any error
// aborts the scan; no partial result is returned.
func (s *Scanner) Scan(ctx context.Context, root *os.Root) (*Result, error) {
	start := time.Now()
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var (
		mu  sync.Mutex
		res Result
	)
	fsys := root.FS()
	stack := []string{"."}
	queued := 0

	walkErr := func() error {
		for len(stack) > 0 {
			if err := gctx.Err(); err != nil {
				return nil // the failing task's error is reported by Wait
			}
			dir := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			res.Dirs++

			s.logger.Debug("scanning directory", slog.String("dir", dir))
			entries, err := fs.ReadDir(fsys, dir)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrUnlistable, dir, err)
			}

			for _, d := range entries {
				rel := pathutil.Join(dir, d.Name())
				switch {
				case d.IsDir():
					stack = append(stack, rel)
				case !d.Type().IsRegular():
					s.logger.Debug("skipping non-regular entry",
						slog.String("path", rel),
						slog.String("mode", d.Type().String()))
					res.Skipped++
				case s.skip(d.Name()):
					res.Safe++
				default:
					queued++
					if s.maxFiles > 0 && queued > s.maxFiles {
						return fmt.Errorf("%w: limit %d", ErrTooManyFiles, s.maxFiles)
					}
					g.Go(func() error {
						entry, err := s.fingerprint(gctx, root, rel)
						if err != nil {
							return err
						}
						mu.Lock()
						res.Files = append(res.Files, entry)
						mu.Unlock()
						return nil
					})
				}
			}
		}
		return nil
	}()
	if walkErr != nil {
		cancel()
		_ = g.Wait() //nolint:errcheck // walkErr takes precedence
		return nil, walkErr
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	return &res, nil
}

func (s *Scanner) fingerprint(ctx context.Context, root *os.Root, rel string) (table.Entry, error) {
	if err := ctx.Err(); err != nil {
		return table.Entry{}, err
	}

	f, err := platform.OpenFileNoFollow(root, filepath.FromSlash(rel))
	if err != nil {
		return table.Entry{}, fmt.Errorf("fingerprint %s: %w", rel, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return table.Entry{}, fmt.Errorf("fingerprint %s: %w", rel, err)
	}
	if !info.Mode().IsRegular() {
		return table.Entry{}, fmt.Errorf("fingerprint %s: not a regular file", rel)
	}

	sum, n, err := s.hasher.Sum(f)
	if err != nil {
		return table.Entry{}, fmt.Errorf("fingerprint %s: %w", rel, err)
	}

	return table.Entry{
		Path:        rel,
		Fingerprint: sum,
		Size:        n,
		ModTime:     info.ModTime(),
	}, nil
}
