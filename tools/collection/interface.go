package collection

type ConcurrentMap[K comparable, V any] interface {
	Set(key K, v V)
	Get(key K) (V, bool)
	// SetIfAbsent 仅当key不存在时写入, 返回是否写入成功
	SetIfAbsent(key K, v V) bool
	Delete(key K)
	Has(key K) bool
	Keys() []K
	Values() []V
	// Range 遍历时持有读锁, fn中不能再修改map
	Range(fn func(key K, v V) bool)
	Len() int
}

type Queue[T any] interface {
	Push(T)
	Pop() T
	Peek() T
	Size() int
	Empty() bool
	Clear()
}

type BlockingQueue[T any] interface {
	// Push 队列满时阻塞, 队列关闭后返回false
	Push(T) bool
	// Pop 队列为空时阻塞, 队列关闭并且为空时shutdown返回true
	Pop() (item T, shutdown bool)
	Size() int
	Empty() bool
	Shutdown()
	IsShutdown() bool
}
