// Package archive enumerates and extracts members of zip-like download
// payloads, including archives nested inside archives. Traversal uses an
// explicit worklist so deeply nested payloads cannot exhaust the stack.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/xcube-dev/clmsfetch/internal/logger"
	"github.com/xcube-dev/clmsfetch/pkg/fsutil"
)

// copyChunkSize is the buffer size for streaming archive members to disk.
// Fixed-size chunks bound memory use regardless of member size.
const copyChunkSize = 1 << 20

// Walker enumerates and extracts archive members.
type Walker struct{}

// NewWalker creates a new Walker instance.
func NewWalker() *Walker {
	return &Walker{}
}

// FindEntries returns the paths of all regular-file members of the archive
// for which match returns true.
func (w *Walker) FindEntries(ctx context.Context, archivePath string, match func(string) bool) ([]string, error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	var found []string
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !match(path) {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk archive %s: %w", archivePath, err)
	}
	return found, nil
}

// ExtractEntry streams a single archive member to destPath.
func (w *Walker) ExtractEntry(ctx context.Context, archivePath, entryPath, destPath string) error {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return fmt.Errorf("failed to open archive file: %w", err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	return writeMember(fsys, entryPath, destPath)
}

// ExtractMatching extracts every member whose file extension is in exts to
// destDir, descending into nested zip archives. Nested archives are
// staged as scoped temporary files and enumerated iteratively off a
// worklist. Returns the paths of all extracted files.
func (w *Walker) ExtractMatching(ctx context.Context, archivePath, destDir string, exts []string) ([]string, error) {
	if err := os.MkdirAll(destDir, fsutil.DirModeDefault); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	var extracted []string

	// Worklist of archives still to enumerate. Entries after the first
	// are temporary files owned by this call.
	worklist := []string{archivePath}
	temps := make([]string, 0, 4)
	defer func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}()

	for len(worklist) > 0 {
		current := worklist[0]
		worklist = worklist[1:]

		nested, files, err := w.extractOne(ctx, current, destDir, exts)
		if err != nil {
			return nil, err
		}
		extracted = append(extracted, files...)
		worklist = append(worklist, nested...)
		temps = append(temps, nested...)
	}

	return extracted, nil
}

// extractOne enumerates a single archive: members with a wanted extension
// are written to destDir, nested zips are staged to temp files and
// returned for the caller's worklist.
func (w *Walker) extractOne(ctx context.Context, archivePath, destDir string, exts []string) (nested, files []string, err error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch {
		case hasExt(path, exts):
			destPath := filepath.Join(destDir, filepath.Base(path))
			if err := writeMember(fsys, path, destPath); err != nil {
				return err
			}
			files = append(files, destPath)
		case strings.EqualFold(filepath.Ext(path), ".zip"):
			tmp, err := stageNested(fsys, path)
			if err != nil {
				return err
			}
			logger.Debug("descending into nested archive", logger.Fields{"entry": path})
			nested = append(nested, tmp)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk archive %s: %w", archivePath, err)
	}
	return nested, files, nil
}

// stageNested copies a nested archive member to a temporary file so it can
// be opened as a random-access archive of its own.
func stageNested(fsys fs.FS, path string) (string, error) {
	src, err := fsys.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open nested archive %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp("", "nested-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for nested archive: %w", err)
	}
	if _, err := io.CopyBuffer(tmp, src, make([]byte, copyChunkSize)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to stage nested archive %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close staged archive: %w", err)
	}
	return tmp.Name(), nil
}

// writeMember streams one archive member to destPath in fixed-size chunks.
func writeMember(fsys fs.FS, path, destPath string) error {
	src, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive member %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(destPath), fsutil.DirModeDefault); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	dst, err := fsutil.CreateFilePerm(destPath, fsutil.FileModeDefault)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destPath, err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.CopyBuffer(dst, src, make([]byte, copyChunkSize)); err != nil {
		return fmt.Errorf("failed to extract %s to %s: %w", path, destPath, err)
	}
	return nil
}

// hasExt reports whether the path carries one of the extensions
// (case-insensitive, extensions include the leading dot).
func hasExt(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, want := range exts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
