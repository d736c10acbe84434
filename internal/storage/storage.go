// Package storage is the capability interface over removable media.
// The launcher never touches the filesystem driver directly; everything
// goes through Access so tests can inject fixtures and failures.
package storage

import (
	"io"

	"github.com/juju/errors"
)

type DirEntry struct {
	Name  string
	IsDir bool
}

type Access interface {
	// ListDir yields entries in the order the underlying driver returns
	// them. Callers must not assume any sorting.
	ListDir(path string) ([]DirEntry, error)

	// OpenRead opens path for sequential reading and reports the size
	// known at open time. The file may still shrink under the reader.
	OpenRead(path string) (io.ReadCloser, uint32, error)

	FileSize(path string) (uint32, error)
}

// IsNotFound reports whether err means the path vanished, as opposed to
// a media/driver failure.
func IsNotFound(err error) bool { return errors.IsNotFound(errors.Cause(err)) }
