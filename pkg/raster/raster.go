package raster

import (
	"image"
	"math"
	"os"

	"golang.org/x/image/tiff"

	"github.com/xcube-dev/clmsfetch/pkg/errors"
)

// Extensions lists the raster file extensions recognized inside download
// payloads.
var Extensions = []string{".tif", ".tiff"}

// Grid is a dense single-band raster held row-major in memory. Cells
// without data hold NaN.
type Grid struct {
	Width  int
	Height int
	Data   []float32
}

// NewGrid allocates a grid of the given dimensions filled with NaN.
func NewGrid(width, height int) *Grid {
	data := make([]float32, width*height)
	nan := float32(math.NaN())
	for i := range data {
		data[i] = nan
	}
	return &Grid{Width: width, Height: height, Data: data}
}

// At returns the cell value at (x, y).
func (g *Grid) At(x, y int) float32 {
	return g.Data[y*g.Width+x]
}

// Set assigns the cell value at (x, y).
func (g *Grid) Set(x, y int, v float32) {
	g.Data[y*g.Width+x] = v
}

// LoadTIFF decodes a TIFF tile into a grid. Multi-band images are reduced
// to their luminance band.
func LoadTIFF(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open raster file %s", path)
	}
	defer func() { _ = f.Close() }()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode raster file %s", path)
	}
	return fromImage(img), nil
}

// fromImage converts a decoded image to a grid, fast-pathing the gray
// formats TIFF tiles normally decode to.
func fromImage(img image.Image) *Grid {
	bounds := img.Bounds()
	g := &Grid{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Data:   make([]float32, bounds.Dx()*bounds.Dy()),
	}

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < g.Height; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < g.Width; x++ {
				g.Data[y*g.Width+x] = float32(uint16(row[2*x])<<8 | uint16(row[2*x+1]))
			}
		}
	case *image.Gray:
		for y := 0; y < g.Height; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < g.Width; x++ {
				g.Data[y*g.Width+x] = float32(row[x])
			}
		}
	default:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				r, gr, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				// Standard luminance weights over 16-bit channels.
				g.Data[y*g.Width+x] = 0.299*float32(r) + 0.587*float32(gr) + 0.114*float32(b)
			}
		}
	}
	return g
}
