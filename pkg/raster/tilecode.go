// Package raster loads staged raster tiles into in-memory grids and parses
// the spatial tile codes embedded in their file names.
package raster

import "regexp"

// tileCodeRE matches the grid-cell code embedded in tile file names: one
// direction letter plus two digits for the easting, the same for the
// northing, e.g. "E12N34".
var tileCodeRE = regexp.MustCompile(`[EW]\d{2}[NS]\d{2}`)

// TileCode identifies the grid cell of a tile.
type TileCode struct {
	Easting  string // e.g. "E12"
	Northing string // e.g. "N34"
}

// String returns the combined code, e.g. "E12N34".
func (c TileCode) String() string {
	return c.Easting + c.Northing
}

// ParseTileCode extracts the first tile code from a file name. The second
// return value is false when the name carries no recognizable code.
func ParseTileCode(name string) (TileCode, bool) {
	match := tileCodeRE.FindString(name)
	if match == "" {
		return TileCode{}, false
	}
	return TileCode{Easting: match[:3], Northing: match[3:]}, true
}
