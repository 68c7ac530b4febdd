// Package mempool recycles the pixel buffers of intermediate warp frames.
package mempool

import (
	"sync"
)

// A sized pool for []uint8 buffers; warped frames of one morph all share a
// size, so consecutive morphs of similar images reuse the same class.

const classStep = 4096

var bytePools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next multiple of classStep.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint8, cls) }})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetBytes retrieves a []uint8 buffer of length n from the pool. Contents are
// not cleared. The caller should return it via PutBytes when done.
func GetBytes(n int) []uint8 {
	if n <= 0 {
		return []uint8{}
	}
	cls := sizeClass(n)
	buf, ok := poolFor(cls).Get().([]uint8)
	if !ok || cap(buf) < cls {
		buf = make([]uint8, cls)
	}
	return buf[:n]
}

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
// Buffers whose capacity is not a size class are dropped.
func PutBytes(buf []uint8) {
	c := cap(buf)
	if c == 0 || c != sizeClass(c) {
		return
	}
	poolFor(c).Put(buf[:c]) //nolint:staticcheck // slices are small headers
}
