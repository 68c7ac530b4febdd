package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{name: "zero gets minimum", input: 0, expected: 4096},
		{name: "small size gets minimum", input: 100, expected: 4096},
		{name: "exact minimum", input: 4096, expected: 4096},
		{name: "just over minimum", input: 4097, expected: 8192},
		{name: "300x300 RGB frame", input: 300 * 300 * 3, expected: 270336},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetBytes(t *testing.T) {
	buf := GetBytes(1000)
	assert.Len(t, buf, 1000)
	assert.Equal(t, 4096, cap(buf))

	assert.Empty(t, GetBytes(0))
	assert.Empty(t, GetBytes(-5))
	PutBytes(buf)
}

func TestPutBytes_IgnoresForeignBuffers(t *testing.T) {
	assert.NotPanics(t, func() {
		PutBytes(nil)
		PutBytes(make([]uint8, 10))
		PutBytes(make([]uint8, 5000))
	})

	buf := GetBytes(10)
	assert.GreaterOrEqual(t, cap(buf), 10)
	assert.Equal(t, sizeClass(cap(buf)), cap(buf))
}

func TestConcurrentAccess(t *testing.T) {
	const workers = 8
	const iterations = 200

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := range iterations {
				n := 1 + (seed*iterations+i)%20000
				buf := GetBytes(n)
				if len(buf) != n {
					t.Errorf("got length %d, want %d", len(buf), n)
					return
				}
				buf[0], buf[n-1] = 1, 2
				PutBytes(buf)
			}
		}(w)
	}
	wg.Wait()
}

func BenchmarkGetBytes_Frame(b *testing.B) {
	for range b.N {
		PutBytes(GetBytes(300 * 300 * 3))
	}
}

func BenchmarkDirectAllocation_Frame(b *testing.B) {
	for range b.N {
		buf := make([]uint8, 300*300*3)
		_ = buf
	}
}
