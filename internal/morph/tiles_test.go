package morph

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiles_ThreeByThree(t *testing.T) {
	tiles := Tiles(image.Rect(0, 0, 10, 7), 3, 3)
	require.Len(t, tiles, 9)

	assert.Equal(t, image.Rect(0, 0, 3, 2), tiles[0])
	assert.Equal(t, image.Rect(6, 0, 10, 2), tiles[2])
	assert.Equal(t, image.Rect(0, 4, 3, 7), tiles[6])
	assert.Equal(t, image.Rect(6, 4, 10, 7), tiles[8])
}

func TestTiles_CoverEveryPixelOnce(t *testing.T) {
	for _, size := range []image.Point{{1, 1}, {2, 5}, {3, 3}, {17, 4}, {64, 65}} {
		bounds := image.Rect(0, 0, size.X, size.Y)
		seen := make(map[image.Point]int)
		for _, tile := range Tiles(bounds, 3, 3) {
			assert.False(t, tile.Empty())
			for y := tile.Min.Y; y < tile.Max.Y; y++ {
				for x := tile.Min.X; x < tile.Max.X; x++ {
					seen[image.Pt(x, y)]++
				}
			}
		}
		assert.Len(t, seen, size.X*size.Y, "size %v", size)
		for p, n := range seen {
			assert.Equal(t, 1, n, "pixel %v covered %d times", p, n)
		}
	}
}

func TestTiles_SmallImageDropsEmptyTiles(t *testing.T) {
	tiles := Tiles(image.Rect(0, 0, 1, 1), 3, 3)
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 1, 1)}, tiles)
}

func TestTileScheduler_Sequential(t *testing.T) {
	var calls []image.Rectangle
	s := TileScheduler{Rows: 3, Cols: 3}

	err := s.Run(image.Rect(0, 0, 9, 9), func(r image.Rectangle) { calls = append(calls, r) })
	require.NoError(t, err)
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 9, 9)}, calls)
}

func TestTileScheduler_ParallelJoinsAllTiles(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []image.Rectangle
	)
	s := TileScheduler{Rows: 3, Cols: 3, Parallel: true}

	err := s.Run(image.Rect(0, 0, 9, 9), func(r image.Rectangle) {
		mu.Lock()
		calls = append(calls, r)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, Tiles(image.Rect(0, 0, 9, 9), 3, 3), calls)
}

func TestTileScheduler_PanicBecomesError(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		s := TileScheduler{Rows: 3, Cols: 3, Parallel: parallel}
		err := s.Run(image.Rect(0, 0, 9, 9), func(r image.Rectangle) {
			if r.Min == (image.Point{}) {
				panic("tile exploded")
			}
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tile exploded")
	}
}
