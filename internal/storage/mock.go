package storage

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"github.com/juju/errors"
)

// Mock keeps an in-memory tree for tests. Directory listing order is the
// insertion order of AddFile/AddDir, mimicking SD card behavior.
type Mock struct {
	files map[string][]byte
	order map[string][]DirEntry
	// ReadErrAt, when >= 0, fails reads of FailPath after that many bytes.
	FailPath  string
	ReadErrAt int
	// ListErr fails every ListDir call, simulating unmounted media.
	ListErr error
}

var _ Access = new(Mock)

func NewMock() *Mock {
	return &Mock{
		files:     make(map[string][]byte),
		order:     make(map[string][]DirEntry),
		ReadErrAt: -1,
	}
}

func (self *Mock) AddDir(path string) {
	dir, name := splitMockPath(path)
	self.appendEntry(dir, DirEntry{Name: name, IsDir: true})
	if _, ok := self.order[path]; !ok {
		self.order[path] = []DirEntry{}
	}
}

func (self *Mock) AddFile(path string, content []byte) {
	dir, name := splitMockPath(path)
	self.appendEntry(dir, DirEntry{Name: name, IsDir: false})
	self.files[path] = content
}

// Truncate shrinks an existing file without touching the listing,
// simulating media changed between scan and install.
func (self *Mock) Truncate(path string, size int) {
	b, ok := self.files[path]
	if !ok {
		panic("mock: truncate unknown path=" + path)
	}
	self.files[path] = b[:size]
}

func (self *Mock) Remove(path string) { delete(self.files, path) }

func (self *Mock) ListDir(path string) ([]DirEntry, error) {
	if self.ListErr != nil {
		return nil, self.ListErr
	}
	entries, ok := self.order[path]
	if !ok {
		return nil, errors.NotFoundf("storage path=%s", path)
	}
	return entries, nil
}

func (self *Mock) OpenRead(path string) (io.ReadCloser, uint32, error) {
	b, ok := self.files[path]
	if !ok {
		return nil, 0, errors.NotFoundf("storage path=%s", path)
	}
	var r io.Reader = bytes.NewReader(b)
	if path == self.FailPath && self.ReadErrAt >= 0 {
		r = &failReader{r: io.LimitReader(r, int64(self.ReadErrAt))}
	}
	return io.NopCloser(r), uint32(len(b)), nil
}

func (self *Mock) FileSize(path string) (uint32, error) {
	b, ok := self.files[path]
	if !ok {
		return 0, errors.NotFoundf("storage path=%s", path)
	}
	return uint32(len(b)), nil
}

// Paths returns all file paths, sorted, for test assertions.
func (self *Mock) Paths() []string {
	ps := make([]string, 0, len(self.files))
	for p := range self.files {
		ps = append(ps, p)
	}
	sort.Strings(ps)
	return ps
}

func (self *Mock) appendEntry(dir string, e DirEntry) {
	for _, existing := range self.order[dir] {
		if existing.Name == e.Name {
			return
		}
	}
	self.order[dir] = append(self.order[dir], e)
}

func splitMockPath(path string) (dir, name string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ".", path
	}
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}

type failReader struct{ r io.Reader }

func (self *failReader) Read(p []byte) (int, error) {
	n, err := self.r.Read(p)
	if err == io.EOF {
		err = errors.New("mock read fault")
	}
	return n, err
}
