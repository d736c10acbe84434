package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// OS serves storage.Access from a directory of the host filesystem,
// typically the SD card mount point.
type OS struct {
	root string
}

var _ Access = new(OS)

func NewOS(root string) *OS { return &OS{root: root} }

func (self *OS) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(self.root, path)
}

func (self *OS) ListDir(path string) ([]DirEntry, error) {
	f, err := os.Open(self.resolve(path))
	if err != nil {
		return nil, wrapOsError(err, path)
	}
	defer f.Close()
	// Readdir order is whatever the filesystem yields, which is exactly
	// what the catalog wants for SD cards.
	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, wrapOsError(err, path)
	}
	entries := make([]DirEntry, 0, len(infos))
	for _, fi := range infos {
		if !fi.IsDir() && !fi.Mode().IsRegular() {
			continue
		}
		entries = append(entries, DirEntry{Name: fi.Name(), IsDir: fi.IsDir()})
	}
	return entries, nil
}

func (self *OS) OpenRead(path string) (io.ReadCloser, uint32, error) {
	f, err := os.Open(self.resolve(path))
	if err != nil {
		return nil, 0, wrapOsError(err, path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, wrapOsError(err, path)
	}
	return f, uint32(fi.Size()), nil
}

func (self *OS) FileSize(path string) (uint32, error) {
	fi, err := os.Stat(self.resolve(path))
	if err != nil {
		return 0, wrapOsError(err, path)
	}
	return uint32(fi.Size()), nil
}

func wrapOsError(err error, path string) error {
	if os.IsNotExist(err) {
		return errors.NotFoundf("storage path=%s", path)
	}
	return errors.Annotatef(err, "storage path=%s", path)
}
