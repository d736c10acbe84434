// Package catalog builds the launchable application list from removable
// storage. A scan is a snapshot: entries refer to files that existed at
// scan time, and staleness is detected later by the chainloader, never
// silently skipped.
package catalog

import (
	"strings"

	"github.com/juju/errors"

	"github.com/m5lab/launcher/internal/storage"
	"github.com/m5lab/launcher/log2"
)

// BinSuffix marks launchable application images on storage.
const BinSuffix = ".bin"

const hiddenPrefix = "."

type AppEntry struct {
	DisplayName string
	StoragePath string
	SizeBytes   uint32
}

// Catalog is an ordered snapshot, traversal order preserved. Rebuilt
// wholesale on rescan, never mutated in place.
type Catalog struct {
	entries []AppEntry
	// Unavailable is set when the root itself was unreadable; the menu
	// still boots, empty but usable.
	Unavailable bool
}

func (c *Catalog) Len() int { return len(c.entries) }

func (c *Catalog) At(i int) AppEntry { return c.entries[i] }

func (c *Catalog) Entries() []AppEntry { return c.entries }

// Scan walks root depth-first through storage. Entries within a
// directory keep the order storage yields them, matching what the user
// sees of SD card directory order. Unreadable subdirectories are logged
// and skipped; an unreadable root degrades to an empty catalog with
// Unavailable set.
func Scan(fs storage.Access, root string, log *log2.Log) *Catalog {
	c := &Catalog{}
	seen := make(map[string]struct{})
	if err := scanDir(fs, root, c, seen, log); err != nil {
		log.Errorf("catalog scan root=%s err=%v", root, errors.ErrorStack(err))
		return &Catalog{Unavailable: true}
	}
	log.Debugf("catalog scan root=%s len=%d", root, c.Len())
	return c
}

func scanDir(fs storage.Access, dir string, c *Catalog, seen map[string]struct{}, log *log2.Log) error {
	entries, err := fs.ListDir(dir)
	if err != nil {
		return errors.Annotatef(err, "list dir=%s", dir)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name, hiddenPrefix) {
			continue
		}
		path := joinPath(dir, e.Name)
		if e.IsDir {
			if err := scanDir(fs, path, c, seen, log); err != nil {
				// Media read hiccup on a subtree keeps the rest of the
				// catalog useful.
				log.Errorf("catalog skip dir=%s err=%v", path, err)
			}
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name), BinSuffix) {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		size, err := fs.FileSize(path)
		if err != nil {
			log.Errorf("catalog skip file=%s err=%v", path, err)
			continue
		}
		seen[path] = struct{}{}
		c.entries = append(c.entries, AppEntry{
			DisplayName: e.Name,
			StoragePath: path,
			SizeBytes:   size,
		})
	}
	return nil
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
