// Package store persists mosaicked rasters as chunked array artifacts: a
// JSON manifest plus fixed-size rectangular float32 blocks, written
// through a blob bucket so artifacts land on local disk in production and
// in memory during tests.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"

	"github.com/xcube-dev/clmsfetch/pkg/errors"
	"github.com/xcube-dev/clmsfetch/pkg/raster"
)

// manifestKey is the bucket key of the artifact manifest.
const manifestKey = "meta.json"

// chunkPrefix is the bucket key prefix of chunk blocks.
const chunkPrefix = "c/"

// Manifest describes a written artifact.
type Manifest struct {
	Variable    string    `json:"variable"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	ChunkWidth  int       `json:"chunk_width"`
	ChunkHeight int       `json:"chunk_height"`
	DType       string    `json:"dtype"`
	FillValue   string    `json:"fill_value"`
	CreatedAt   time.Time `json:"created_at"`
}

// chunkRows returns the number of chunk rows in the artifact.
func (m *Manifest) chunkRows() int {
	return (m.Height + m.ChunkHeight - 1) / m.ChunkHeight
}

// chunkCols returns the number of chunk columns in the artifact.
func (m *Manifest) chunkCols() int {
	return (m.Width + m.ChunkWidth - 1) / m.ChunkWidth
}

// Store reads and writes one chunked artifact through a blob bucket.
type Store struct {
	bucket *blob.Bucket
}

// OpenDir opens a store rooted at a local directory, creating it when
// absent.
func OpenDir(path string) (*Store, error) {
	bucket, err := fileblob.OpenBucket(path, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open artifact directory %s", path)
	}
	return &Store{bucket: bucket}, nil
}

// NewWithBucket wraps an existing bucket, typically an in-memory bucket in
// tests.
func NewWithBucket(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Close releases the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// Write persists the grid under the given variable name, chunked into
// chunkW x chunkH blocks. Any previous artifact content is deleted first;
// writes are overwrite, never append.
func (s *Store) Write(ctx context.Context, g *raster.Grid, variable string, chunkW, chunkH int) error {
	if chunkW <= 0 || chunkH <= 0 || chunkW > g.Width || chunkH > g.Height {
		return fmt.Errorf("chunk dimensions %dx%d invalid for %dx%d grid", chunkW, chunkH, g.Width, g.Height)
	}

	if err := s.clear(ctx); err != nil {
		return err
	}

	manifest := &Manifest{
		Variable:    variable,
		Width:       g.Width,
		Height:      g.Height,
		ChunkWidth:  chunkW,
		ChunkHeight: chunkH,
		DType:       "float32",
		FillValue:   "NaN",
		CreatedAt:   time.Now().UTC(),
	}

	for row := 0; row < manifest.chunkRows(); row++ {
		for col := 0; col < manifest.chunkCols(); col++ {
			if err := s.writeChunk(ctx, g, manifest, row, col); err != nil {
				return err
			}
		}
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return errors.Wrap(err, "failed to encode manifest")
	}
	if err := s.bucket.WriteAll(ctx, manifestKey, data, nil); err != nil {
		return errors.Wrap(err, "failed to write manifest")
	}
	return nil
}

// writeChunk encodes one block as little-endian float32. Edge chunks are
// written at their exact clipped size; the manifest dimensions recover
// the layout on read.
func (s *Store) writeChunk(ctx context.Context, g *raster.Grid, m *Manifest, row, col int) error {
	x0 := col * m.ChunkWidth
	y0 := row * m.ChunkHeight
	w := min(m.ChunkWidth, g.Width-x0)
	h := min(m.ChunkHeight, g.Height-y0)

	buf := make([]byte, 4*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bits := math.Float32bits(g.At(x0+x, y0+y))
			binary.LittleEndian.PutUint32(buf[4*(y*w+x):], bits)
		}
	}

	key := fmt.Sprintf("%s%d_%d", chunkPrefix, row, col)
	if err := s.bucket.WriteAll(ctx, key, buf, nil); err != nil {
		return errors.Wrapf(err, "failed to write chunk %s", key)
	}
	return nil
}

// Manifest reads the artifact manifest.
func (s *Store) Manifest(ctx context.Context) (*Manifest, error) {
	data, err := s.bucket.ReadAll(ctx, manifestKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode manifest")
	}
	return &m, nil
}

// ReadChunk loads one block as a grid of its exact size.
func (s *Store) ReadChunk(ctx context.Context, m *Manifest, row, col int) (*raster.Grid, error) {
	key := fmt.Sprintf("%s%d_%d", chunkPrefix, row, col)
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read chunk %s", key)
	}

	w := min(m.ChunkWidth, m.Width-col*m.ChunkWidth)
	h := min(m.ChunkHeight, m.Height-row*m.ChunkHeight)
	if len(data) != 4*w*h {
		return nil, errors.Wrapf(errors.ErrProtocol, "chunk %s holds %d bytes, want %d", key, len(data), 4*w*h)
	}

	g := &raster.Grid{Width: w, Height: h, Data: make([]float32, w*h)}
	for i := range g.Data {
		g.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return g, nil
}

// Load reassembles the whole artifact into one grid. Intended for tests
// and small artifacts; partial access goes through ReadChunk.
func (s *Store) Load(ctx context.Context) (*raster.Grid, *Manifest, error) {
	m, err := s.Manifest(ctx)
	if err != nil {
		return nil, nil, err
	}

	g := raster.NewGrid(m.Width, m.Height)
	for row := 0; row < m.chunkRows(); row++ {
		for col := 0; col < m.chunkCols(); col++ {
			chunk, err := s.ReadChunk(ctx, m, row, col)
			if err != nil {
				return nil, nil, err
			}
			x0 := col * m.ChunkWidth
			y0 := row * m.ChunkHeight
			for y := 0; y < chunk.Height; y++ {
				for x := 0; x < chunk.Width; x++ {
					g.Set(x0+x, y0+y, chunk.At(x, y))
				}
			}
		}
	}
	return g, m, nil
}

// clear deletes every key under the store root.
func (s *Store) clear(ctx context.Context) error {
	iter := s.bucket.List(nil)
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to list artifact content")
		}
		if err := s.bucket.Delete(ctx, obj.Key); err != nil {
			return errors.Wrapf(err, "failed to delete %s", obj.Key)
		}
	}
}
