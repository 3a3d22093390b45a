package mosaic

// DefaultChunk is the preferred chunk edge length in pixels.
const DefaultChunk = 2000

// ChunkSize derives a chunk edge length for a raster dimension so that
// chunk boundaries divide the raster evenly instead of leaving a tiny
// remainder chunk: the dimension is split into the smallest number of
// chunks not exceeding preferred, then sized to cover it evenly. The
// result never exceeds preferred nor the dimension itself.
func ChunkSize(dim, preferred int) int {
	if dim <= 0 {
		return 0
	}
	if preferred <= 0 {
		preferred = DefaultChunk
	}
	chunks := (dim + preferred - 1) / preferred
	return (dim + chunks - 1) / chunks
}
