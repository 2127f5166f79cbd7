package sync

import stdsync "sync"

// Pool 带类型的 sync.Pool
type Pool[T any] struct {
	pool stdsync.Pool
	fn   func() T
}

func NewPool[T any](fn func() T) *Pool[T] {
	p := &Pool[T]{fn: fn}
	p.pool.New = func() any {
		return p.fn()
	}

	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	p.pool.Put(v)
}
