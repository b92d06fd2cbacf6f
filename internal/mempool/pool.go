package mempool

import (
	"sync"
)

// Pool hands out reusable slices bucketed by size class to cut allocations
// on per-frame hot paths such as integral images and scratch rows. The zero
// value is ready to use.
type Pool[T any] struct {
	classes sync.Map // key: size class (int), value: *sync.Pool
}

// sizeClass rounds n up to the next 1024-multiple bucket to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

// Get retrieves a slice of length n with every element set to the zero
// value. The capacity may exceed n. The caller must hand the slice back via
// Put when done.
func (p *Pool[T]) Get(n int) []T {
	cls := sizeClass(n)
	pAny, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	sp, ok := pAny.(*sync.Pool)
	if !ok {
		return make([]T, n, cls)
	}
	buf, ok := sp.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// Put returns a slice to the pool. Passing nil is a no-op. The slice must
// not be used after Put.
func (p *Pool[T]) Put(buf []T) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	sp, ok := pAny.(*sync.Pool)
	if !ok {
		return
	}
	// Restore full capacity so the next Get sees the real bucket size.
	sp.Put(buf[:cap(buf)]) //nolint:staticcheck
}
