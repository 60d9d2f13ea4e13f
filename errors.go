package safearchive

import (
	"errors"

	"github.com/meigma/safearchive/internal/fingerprint"
	"github.com/meigma/safearchive/internal/scan"
	"github.com/meigma/safearchive/internal/table"
)

// Errors re-exported from internal packages.
var (
	// ErrUnlistable is returned when a directory below the root cannot be listed.
	ErrUnlistable = scan.ErrUnlistable

	// ErrTooManyFiles is returned when the archive holds more fingerprinted
	// files than the configured limit.
	ErrTooManyFiles = scan.ErrTooManyFiles

	// ErrAlgorithmUnavailable is returned when the fingerprint algorithm is
	// unknown or not linked into the binary.
	ErrAlgorithmUnavailable = fingerprint.ErrUnavailable

	// ErrDuplicatePath is returned when a scan yields the same path twice.
	ErrDuplicatePath = table.ErrDuplicatePath
)

// Sentinel errors specific to the safearchive package.
var (
	// ErrInvalidRoot is returned when the root is not an existing directory.
	ErrInvalidRoot = errors.New("safearchive: invalid root")

	// ErrInvalidOption is returned when an option value is rejected.
	ErrInvalidOption = errors.New("safearchive: invalid option")

	// ErrClosed is returned by operations on a closed Archive.
	ErrClosed = errors.New("safearchive: archive closed")
)
