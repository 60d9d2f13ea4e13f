package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink is returned when the final path element is a symbolic link.
var ErrSymlink = errors.New("symbolic links not supported")

// OpenFileNoFollow opens name read-only beneath root, refusing a symbolic
// link in the final element. Links in intermediate elements are resolved by
// root and may not escape it.
//
// The opened file is checked against the pre-open Lstat, so a file swapped
// for a link between the two calls is refused as well.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	linfo, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if linfo.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}

	f, err := openFile(root, name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !os.SameFile(linfo, info) {
		_ = f.Close()
		return nil, ErrSymlink
	}
	return f, nil
}
