package mosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkSize(t *testing.T) {
	tests := []struct {
		name      string
		dim       int
		preferred int
		want      int
	}{
		{name: "evenly divisible", dim: 10000, preferred: 2000, want: 2000},
		{name: "remainder redistributed", dim: 5000, preferred: 2000, want: 1667},
		{name: "dimension below preferred", dim: 99, preferred: 2000, want: 99},
		{name: "exactly preferred", dim: 2000, preferred: 2000, want: 2000},
		{name: "one above preferred", dim: 2001, preferred: 2000, want: 1001},
		{name: "zero dimension", dim: 0, preferred: 2000, want: 0},
		{name: "default preferred", dim: 4000, preferred: 0, want: 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkSize(tt.dim, tt.preferred))
		})
	}
}

func TestChunkSizeNeverExceedsPreferred(t *testing.T) {
	for dim := 1; dim <= 5000; dim += 37 {
		got := ChunkSize(dim, 2000)
		assert.LessOrEqual(t, got, 2000, "dim %d", dim)
		assert.LessOrEqual(t, got, dim, "dim %d", dim)

		chunks := (dim + got - 1) / got
		assert.GreaterOrEqual(t, chunks*got, dim, "dim %d", dim)
	}
}
