// Package cache tracks the finished artifacts below the cache root. Every
// artifact is a directory named after its dataset key; anything without a
// key separator in its name, such as the staging area, is not an artifact.
package cache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xcube-dev/clmsfetch/pkg/errors"
	"github.com/xcube-dev/clmsfetch/pkg/fsutil"
	"github.com/xcube-dev/clmsfetch/pkg/model"
)

// Index is an in-memory snapshot of the artifacts under the cache root.
// It only changes on Refresh, so lookups between refreshes are stable
// even while new artifacts are being written.
type Index struct {
	root string

	mu      sync.RWMutex
	entries map[string]string
}

// NewIndex creates an index over root, creating the directory when absent.
// The returned index is empty until the first Refresh.
func NewIndex(root string) (*Index, error) {
	if root == "" {
		return nil, errors.ErrCacheDirectory
	}
	if err := fsutil.EnsureDir(root); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory %s", root)
	}
	return &Index{
		root:    root,
		entries: make(map[string]string),
	}, nil
}

// Root returns the cache root directory.
func (i *Index) Root() string {
	return i.root
}

// Refresh rescans the cache root and replaces the snapshot. Directory
// entries whose name carries no dataset key separator are skipped.
func (i *Index) Refresh() error {
	dirEntries, err := os.ReadDir(i.root)
	if err != nil {
		return errors.Wrapf(err, "failed to list cache directory %s", i.root)
	}

	entries := make(map[string]string, len(dirEntries))
	for _, entry := range dirEntries {
		if !entry.IsDir() || !strings.Contains(entry.Name(), model.KeySeparator) {
			continue
		}
		entries[entry.Name()] = filepath.Join(i.root, entry.Name())
	}

	i.mu.Lock()
	i.entries = entries
	i.mu.Unlock()
	return nil
}

// Lookup returns the artifact directory for key from the current snapshot.
func (i *Index) Lookup(key string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	path, ok := i.entries[key]
	return path, ok
}

// Keys returns the cached dataset keys in sorted order.
func (i *Index) Keys() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	keys := make([]string, 0, len(i.entries))
	for k := range i.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
