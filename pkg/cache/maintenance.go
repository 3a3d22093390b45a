package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xcube-dev/clmsfetch/pkg/errors"
)

// Info describes the cache content at a point in time.
type Info struct {
	Directory string
	Artifacts int
	TotalSize int64
}

// Info sizes the artifacts in the current snapshot.
func (i *Index) Info() (*Info, error) {
	info := &Info{Directory: i.root}

	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, path := range i.entries {
		size, err := dirSize(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to size artifact %s", path)
		}
		info.Artifacts++
		info.TotalSize += size
	}
	return info, nil
}

// Remove deletes the artifact for key and drops it from the snapshot.
// Returns the bytes freed.
func (i *Index) Remove(key string) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	path, ok := i.entries[key]
	if !ok {
		return 0, fmt.Errorf("no cached artifact for %q", key)
	}

	size, err := dirSize(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to size artifact %s", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return 0, errors.Wrapf(err, "failed to remove artifact %s", path)
	}
	delete(i.entries, key)
	return size, nil
}

// Clear deletes every artifact in the snapshot and returns the bytes
// freed.
func (i *Index) Clear() (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var freed int64
	for key, path := range i.entries {
		size, err := dirSize(path)
		if err != nil {
			return freed, errors.Wrapf(err, "failed to size artifact %s", path)
		}
		if err := os.RemoveAll(path); err != nil {
			return freed, errors.Wrapf(err, "failed to remove artifact %s", path)
		}
		delete(i.entries, key)
		freed += size
	}
	return freed, nil
}

// dirSize sums the file sizes below dir.
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// FormatBytes converts bytes to a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T", "P", "E"}
	if exp < len(units) {
		return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
	}
	return fmt.Sprintf("%d B", bytes)
}
