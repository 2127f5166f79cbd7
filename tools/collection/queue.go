package collection

// queue 基于环形数组的FIFO队列, 非并发安全
type queue[T any] struct {
	elems []T
	head  int
	size  int
}

func NewQueue[T any]() Queue[T] {
	return &queue[T]{}
}

func (q *queue[T]) Push(e T) {
	if q.size == len(q.elems) {
		q.grow()
	}

	q.elems[(q.head+q.size)%len(q.elems)] = e
	q.size++
}

func (q *queue[T]) Pop() T {
	var zero T
	if q.size == 0 {
		return zero
	}

	e := q.elems[q.head]
	// 置为0值, 对垃圾回收友好
	q.elems[q.head] = zero
	q.head = (q.head + 1) % len(q.elems)
	q.size--

	return e
}

func (q *queue[T]) Peek() T {
	if q.size == 0 {
		return *new(T)
	}

	return q.elems[q.head]
}

func (q *queue[T]) Size() int {
	return q.size
}

func (q *queue[T]) Empty() bool {
	return q.size == 0
}

func (q *queue[T]) Clear() {
	q.elems = nil
	q.head = 0
	q.size = 0
}

func (q *queue[T]) grow() {
	n := len(q.elems) * 2
	if n == 0 {
		n = 8
	}

	elems := make([]T, n)
	for i := 0; i < q.size; i++ {
		elems[i] = q.elems[(q.head+i)%len(q.elems)]
	}
	q.elems = elems
	q.head = 0
}
