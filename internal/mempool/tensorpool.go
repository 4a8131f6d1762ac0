// Package mempool recycles float32 buffers used for detector input tensors.
package mempool

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

const minClass = 1 << 12

var (
	pools  sync.Map // size class -> *sync.Pool
	hits   atomic.Int64
	misses atomic.Int64
)

// sizeClass rounds n up to the next power of two, with a floor of minClass.
func sizeClass(n int) int {
	if n <= minClass {
		return minClass
	}
	return 1 << bits.Len(uint(n-1))
}

func poolFor(cls int) *sync.Pool {
	if p, ok := pools.Load(cls); ok {
		return p.(*sync.Pool)
	}
	p, _ := pools.LoadOrStore(cls, &sync.Pool{})
	return p.(*sync.Pool)
}

// GetFloat32 returns a buffer of length n. Contents are unspecified.
// Return it with PutFloat32 once the tensor has been consumed.
func GetFloat32(n int) []float32 {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	if v := poolFor(cls).Get(); v != nil {
		if buf, ok := v.(*[]float32); ok && cap(*buf) >= n {
			hits.Add(1)
			return (*buf)[:n]
		}
	}
	misses.Add(1)
	return make([]float32, n, cls)
}

// PutFloat32 hands a buffer back for reuse. Buffers whose capacity is not a
// size class are dropped. Nil is ignored.
func PutFloat32(buf []float32) {
	c := cap(buf)
	if c == 0 || c != sizeClass(c) {
		return
	}
	buf = buf[:c]
	poolFor(c).Put(&buf)
}

// Stats reports pool hits and misses since process start.
func Stats() (int64, int64) {
	return hits.Load(), misses.Load()
}
