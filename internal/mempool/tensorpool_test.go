package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{1, minClass},
		{minClass, minClass},
		{minClass + 1, minClass * 2},
		{3 * 640 * 640, 2097152},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeClass(tt.in), "sizeClass(%d)", tt.in)
	}
}

func TestGetPutFloat32(t *testing.T) {
	buf := GetFloat32(5000)
	require.Len(t, buf, 5000)
	assert.Equal(t, sizeClass(5000), cap(buf))
	PutFloat32(buf)

	again := GetFloat32(4500)
	require.Len(t, again, 4500)
	assert.GreaterOrEqual(t, cap(again), 4500)
	PutFloat32(again)
}

func TestGetFloat32Zero(t *testing.T) {
	assert.Nil(t, GetFloat32(0))
	PutFloat32(nil)
}

func TestPutFloat32IgnoresForeignBuffers(t *testing.T) {
	_, missesBefore := Stats()
	PutFloat32(make([]float32, 10, 4097))
	buf := GetFloat32(4097)
	_, missesAfter := Stats()
	assert.Equal(t, 8192, cap(buf))
	assert.GreaterOrEqual(t, missesAfter, missesBefore)
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				b := GetFloat32(3 * 64 * 64)
				b[0] = 1
				PutFloat32(b)
			}
		}()
	}
	wg.Wait()
	hits, misses := Stats()
	assert.Positive(t, hits+misses)
}
