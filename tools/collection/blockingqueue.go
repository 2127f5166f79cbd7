package collection

import (
	"sync"
)

type blockingQueue[T any] struct {
	queue    Queue[T]
	capacity int
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	shutdown bool
}

// NewBlockingQueue capacity <= 0 表示不限制容量
func NewBlockingQueue[T any](capacity int) BlockingQueue[T] {
	b := &blockingQueue[T]{
		queue:    NewQueue[T](),
		capacity: capacity,
	}
	b.notEmpty = sync.NewCond(&b.mu)
	b.notFull = sync.NewCond(&b.mu)

	return b
}

func (b *blockingQueue[T]) Push(e T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.capacity > 0 && b.queue.Size() >= b.capacity && !b.shutdown {
		b.notFull.Wait()
	}

	if b.shutdown {
		return false
	}

	b.queue.Push(e)
	b.notEmpty.Signal()

	return true
}

// Pop 关闭后仍然会先返回队列中剩余的元素
func (b *blockingQueue[T]) Pop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.queue.Empty() && !b.shutdown {
		b.notEmpty.Wait()
	}

	if b.queue.Empty() {
		return *new(T), true
	}

	item := b.queue.Pop()
	b.notFull.Signal()

	return item, false
}

func (b *blockingQueue[T]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Size()
}

func (b *blockingQueue[T]) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Empty()
}

func (b *blockingQueue[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdown = true
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
}

func (b *blockingQueue[T]) IsShutdown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdown
}
