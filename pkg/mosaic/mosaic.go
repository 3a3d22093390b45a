// Package mosaic merges staged raster tiles into one spatially contiguous
// grid and persists it as a chunked artifact. Tiles are grouped by the
// easting half of their tile code, stacked north to south within each
// group, and the groups are then joined west to east.
package mosaic

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xcube-dev/clmsfetch/internal/logger"
	"github.com/xcube-dev/clmsfetch/pkg/errors"
	"github.com/xcube-dev/clmsfetch/pkg/fsutil"
	"github.com/xcube-dev/clmsfetch/pkg/model"
	"github.com/xcube-dev/clmsfetch/pkg/raster"
	"github.com/xcube-dev/clmsfetch/pkg/store"
)

// Mosaicker assembles staged tiles into chunked cache artifacts.
type Mosaicker struct {
	cacheDir       string
	preferredChunk int
	cleanup        bool
}

// Option configures a Mosaicker.
type Option func(*Mosaicker)

// WithPreferredChunk overrides the preferred chunk edge length.
func WithPreferredChunk(size int) Option {
	return func(m *Mosaicker) { m.preferredChunk = size }
}

// WithCleanup controls whether staged tiles are deleted after a merge.
func WithCleanup(cleanup bool) Option {
	return func(m *Mosaicker) { m.cleanup = cleanup }
}

// New creates a Mosaicker writing artifacts under cacheDir.
func New(cacheDir string, opts ...Option) *Mosaicker {
	m := &Mosaicker{
		cacheDir:       cacheDir,
		preferredChunk: DefaultChunk,
		cleanup:        true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GroupStaged scans a staging directory and groups raster files by their
// full tile code. Files without a recognizable code are excluded from any
// group; that is deliberate, matching the upstream tiling convention.
func GroupStaged(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list staging directory %s", dir)
	}

	groups := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || !isRaster(entry.Name()) {
			continue
		}
		code, ok := raster.ParseTileCode(entry.Name())
		if !ok {
			logger.Warn("staged file carries no tile code, excluded from merge", logger.Fields{"file": entry.Name()})
			continue
		}
		groups[code.String()] = append(groups[code.String()], filepath.Join(dir, entry.Name()))
	}
	return groups, nil
}

// MergeDir groups the staging directory and merges the result for key.
func (m *Mosaicker) MergeDir(ctx context.Context, key, stagingDir string) error {
	groups, err := GroupStaged(stagingDir)
	if err != nil {
		return err
	}
	if err := m.Merge(ctx, key, groups); err != nil {
		return err
	}
	if m.cleanup {
		if err := os.RemoveAll(stagingDir); err != nil {
			logger.Warn("failed to remove staging directory", logger.Fields{"dir": stagingDir, "error": err})
		}
	}
	return nil
}

// Merge assembles the tile groups into one grid and writes it as the
// chunked artifact for key. An empty group map is a valid terminal state
// for keys whose files could not be tile-coded; nothing is written.
func (m *Mosaicker) Merge(ctx context.Context, key string, groups map[string][]string) error {
	if len(groups) == 0 {
		logger.Info("no tile groups to merge, skipping artifact", logger.Fields{"key": key})
		return nil
	}

	_, fileID, ok := model.SplitKey(key)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidKey, "cannot derive variable name from %q", key)
	}
	variable := strings.TrimSuffix(fileID, filepath.Ext(fileID))

	grid, err := m.assemble(key, groups)
	if err != nil {
		return err
	}

	return m.write(ctx, key, variable, grid)
}

// assemble produces the merged grid, or the single tile on the
// pass-through path. Tiles are regrouped by the easting half of their
// code; eastings are walked ascending (west to east) and within each
// easting the tiles are stacked in descending name order, which stacks
// them north to south. A grid cell with no tile becomes a NaN block of
// that row and column's dimensions.
func (m *Mosaicker) assemble(key string, groups map[string][]string) (*raster.Grid, error) {
	if path, ok := singleFile(groups); ok {
		logger.Debug("single staged tile, skipping mosaic", logger.Fields{"key": key})
		return m.loadTile(path)
	}

	tiles := make(map[string]*raster.Grid, len(groups))
	rowHeights := make(map[string]int)
	colWidths := make(map[string]int)
	var eastings, northings []string

	for code, paths := range groups {
		sort.Sort(sort.Reverse(sort.StringSlice(paths)))
		if len(paths) > 1 {
			logger.Warn("multiple staged files for tile code, using first", logger.Fields{"code": code, "count": len(paths)})
		}
		g, err := m.loadTile(paths[0])
		if err != nil {
			return nil, err
		}
		tiles[code] = g

		east, north := code[:3], code[3:]
		if _, seen := colWidths[east]; !seen {
			eastings = append(eastings, east)
		}
		if _, seen := rowHeights[north]; !seen {
			northings = append(northings, north)
		}
		if g.Width > colWidths[east] {
			colWidths[east] = g.Width
		}
		if g.Height > rowHeights[north] {
			rowHeights[north] = g.Height
		}
	}

	sort.Strings(eastings)
	// Descending northing: the northern-most tile forms the top row.
	sort.Sort(sort.Reverse(sort.StringSlice(northings)))

	strips := make([]*raster.Grid, 0, len(eastings))
	for _, east := range eastings {
		column := make([]*raster.Grid, 0, len(northings))
		for _, north := range northings {
			if g, ok := tiles[east+north]; ok {
				column = append(column, g)
				continue
			}
			// Missing tile: no-data block keeps the rows aligned.
			column = append(column, raster.NewGrid(colWidths[east], rowHeights[north]))
		}
		strips = append(strips, concatVertical(column))
	}

	return concatHorizontal(strips), nil
}

// loadTile reads one tile and logs its derived tile-local chunk sizes.
func (m *Mosaicker) loadTile(path string) (*raster.Grid, error) {
	g, err := raster.LoadTIFF(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded tile", logger.Fields{
		"file":    filepath.Base(path),
		"width":   g.Width,
		"height":  g.Height,
		"chunk_w": ChunkSize(g.Width, m.preferredChunk),
		"chunk_h": ChunkSize(g.Height, m.preferredChunk),
	})
	return g, nil
}

// write persists the grid as the artifact for key, replacing any previous
// artifact.
func (m *Mosaicker) write(ctx context.Context, key, variable string, grid *raster.Grid) error {
	artifactDir := filepath.Join(m.cacheDir, key)
	if err := os.RemoveAll(artifactDir); err != nil {
		return errors.Wrapf(err, "failed to remove previous artifact %s", artifactDir)
	}
	if err := fsutil.EnsureDir(m.cacheDir); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}

	s, err := store.OpenDir(artifactDir)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	chunkW := ChunkSize(grid.Width, m.preferredChunk)
	chunkH := ChunkSize(grid.Height, m.preferredChunk)
	if err := s.Write(ctx, grid, variable, chunkW, chunkH); err != nil {
		return err
	}

	logger.Info("artifact written", logger.Fields{
		"key":      key,
		"variable": variable,
		"width":    grid.Width,
		"height":   grid.Height,
		"chunk_w":  chunkW,
		"chunk_h":  chunkH,
	})
	return nil
}

// singleFile reports the pass-through case of exactly one staged file.
func singleFile(groups map[string][]string) (string, bool) {
	total := 0
	last := ""
	for _, paths := range groups {
		total += len(paths)
		if len(paths) > 0 {
			last = paths[len(paths)-1]
		}
	}
	if total == 1 {
		return last, true
	}
	return "", false
}

// concatVertical stacks grids top to bottom. Narrower grids are padded
// with NaN on the right, which fills missing tiles with no-data.
func concatVertical(grids []*raster.Grid) *raster.Grid {
	width, height := 0, 0
	for _, g := range grids {
		if g.Width > width {
			width = g.Width
		}
		height += g.Height
	}

	out := raster.NewGrid(width, height)
	yOff := 0
	for _, g := range grids {
		for y := 0; y < g.Height; y++ {
			copy(out.Data[(yOff+y)*width:(yOff+y)*width+g.Width], g.Data[y*g.Width:(y+1)*g.Width])
		}
		yOff += g.Height
	}
	return out
}

// concatHorizontal joins grids left to right. Shorter grids are padded
// with NaN at the bottom.
func concatHorizontal(grids []*raster.Grid) *raster.Grid {
	width, height := 0, 0
	for _, g := range grids {
		if g.Height > height {
			height = g.Height
		}
		width += g.Width
	}

	out := raster.NewGrid(width, height)
	xOff := 0
	for _, g := range grids {
		for y := 0; y < g.Height; y++ {
			copy(out.Data[y*width+xOff:y*width+xOff+g.Width], g.Data[y*g.Width:(y+1)*g.Width])
		}
		xOff += g.Width
	}
	return out
}

// isRaster reports whether the file name has a recognized raster extension.
func isRaster(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range raster.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
