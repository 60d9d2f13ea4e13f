package safearchive

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meigma/safearchive/internal/fingerprint"
	"github.com/meigma/safearchive/internal/pathutil"
	"github.com/meigma/safearchive/internal/platform"
)

// Outcome is the externally visible decision for a request.
type Outcome uint8

const (
	OutcomeNotFound Outcome = iota
	OutcomeRedirect
	OutcomeForbidden
	OutcomeServe
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeServe:
		return "serve"
	default:
		return "unknown"
	}
}

// Reason records why an outcome was chosen. It is meant for logs and
// metrics; hosts must not expose it to clients, since it would distinguish
// a containment violation from a missing file.
type Reason string

const (
	ReasonIndex       Reason = "index"
	ReasonSafe        Reason = "safe"
	ReasonVerified    Reason = "verified"
	ReasonInvalidPath Reason = "invalid_path"
	ReasonMissing     Reason = "missing"
	ReasonSymlink     Reason = "symlink"
	ReasonUnindexed   Reason = "unindexed"
	ReasonOutsideRoot Reason = "outside_root"
	ReasonMismatch    Reason = "mismatch"
	ReasonUnreadable  Reason = "unreadable"
)

// Result is the decision for one request path.
type Result struct {
	Outcome Outcome
	Reason  Reason

	// Path is the normalized root-relative path, empty for redirects and
	// invalid paths.
	Path string

	// Location is the redirect target relative to the archive mount point.
	Location string

	// File is set only for OutcomeServe. The caller must close it.
	File *File
}

// File is a verified, open archive file ready to be streamed.
type File struct {
	// Name is the base name of the file, suitable as a download name hint.
	Name string

	// Size is the number of bytes Read will return.
	Size int64

	// ModTime is the file modification time.
	ModTime time.Time

	// Fingerprint is the verified digest, empty for safe files.
	Fingerprint string

	f *os.File
	r io.Reader
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	return f.f.Close()
}

// Resolve decides how to answer a request for requestPath, a path relative
// to the archive root with an optional leading slash.
//
// An empty path redirects to the index document. A path that is invalid,
// escapes the root, does not name a regular file, or names a file that was
// not fingerprinted when the archive was indexed is not found. A
// fingerprinted file whose content no longer matches is forbidden. Files
// with a safe extension are served without verification.
//
// Fingerprints are recomputed on the same handle that is returned for
// streaming, and the returned File yields exactly the verified bytes.
//
// The only error returned is for conditions that indicate a broken
// environment rather than a request outcome: a closed archive or an
// unavailable digest algorithm.
func (a *Archive) Resolve(requestPath string) (Result, error) {
	if a.closed.Load() {
		return Result{}, ErrClosed
	}

	a.logger.Debug("resolving", slog.String("archive", a.urlName), slog.String("path", requestPath))

	if strings.TrimPrefix(requestPath, "/") == "" {
		return a.decide(Result{Outcome: OutcomeRedirect, Reason: ReasonIndex, Location: a.indexFile}, 0), nil
	}

	rel, ok := pathutil.Request(requestPath)
	if !ok {
		return a.notFound("", ReasonInvalidPath), nil
	}
	name := filepath.FromSlash(rel)

	f, err := platform.OpenFileNoFollow(a.dir, name)
	if err != nil {
		if errors.Is(err, platform.ErrSymlink) {
			return a.notFound(rel, ReasonSymlink), nil
		}
		return a.notFound(rel, ReasonMissing), nil
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		_ = f.Close()
		return a.notFound(rel, ReasonMissing), nil
	}

	if a.safe.Match(rel) {
		file := &File{
			Name:    pathutil.Base(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			f:       f,
			r:       io.LimitReader(f, info.Size()),
		}
		return a.decide(Result{Outcome: OutcomeServe, Reason: ReasonSafe, Path: rel, File: file}, 0), nil
	}

	snap := a.snap.Load()
	if snap == nil || snap.hasher == nil {
		_ = f.Close()
		return Result{}, ErrAlgorithmUnavailable
	}
	expected, ok := snap.table.Fingerprint(rel)
	if !ok {
		_ = f.Close()
		return a.notFound(rel, ReasonUnindexed), nil
	}

	if !pathutil.Within(a.root, filepath.Join(a.root, name)) {
		_ = f.Close()
		return a.notFound(rel, ReasonOutsideRoot), nil
	}

	start := time.Now()
	actual, n, err := snap.hasher.Sum(f)
	verify := time.Since(start)
	if err != nil {
		_ = f.Close()
		a.logger.Warn("fingerprint read failed",
			slog.String("archive", a.urlName),
			slog.String("path", rel),
			slog.Any("error", err))
		return a.forbidden(rel, ReasonUnreadable, verify), nil
	}
	if !fingerprint.Equal(expected, actual) {
		_ = f.Close()
		a.logger.Warn("fingerprint mismatch",
			slog.String("archive", a.urlName),
			slog.String("path", rel),
			slog.String("recorded", snap.Algorithm.Digest(expected).String()),
			slog.String("actual", snap.Algorithm.Digest(actual).String()))
		return a.forbidden(rel, ReasonMismatch, verify), nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return a.forbidden(rel, ReasonUnreadable, verify), nil
	}

	file := &File{
		Name:        pathutil.Base(rel),
		Size:        n,
		ModTime:     info.ModTime(),
		Fingerprint: actual,
		f:           f,
		r:           io.LimitReader(f, n),
	}
	return a.decide(Result{Outcome: OutcomeServe, Reason: ReasonVerified, Path: rel, File: file}, verify), nil
}

func (a *Archive) notFound(rel string, reason Reason) Result {
	return a.decide(Result{Outcome: OutcomeNotFound, Reason: reason, Path: rel}, 0)
}

func (a *Archive) forbidden(rel string, reason Reason, verify time.Duration) Result {
	return a.decide(Result{Outcome: OutcomeForbidden, Reason: reason, Path: rel}, verify)
}

func (a *Archive) decide(res Result, verify time.Duration) Result {
	a.metrics.ObserveResolve(a.urlName, res.Outcome.String(), string(res.Reason), verify)
	a.logger.Debug("resolved",
		slog.String("archive", a.urlName),
		slog.String("path", res.Path),
		slog.String("outcome", res.Outcome.String()),
		slog.String("reason", string(res.Reason)))
	return res
}
