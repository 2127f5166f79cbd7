package workerpool

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

type WorkerPool interface {
	Submit(task func()) error
	WorkerCount() int
	QueueSize() int
	Start() error
	Shutdown(drain bool)
	ShutdownWait(drain bool)
}

// RejectPolicy 任务队列满时的处理策略
type RejectPolicy func(pool WorkerPool, task func()) error

var (
	// CallerRunsPolicy 由提交任务的goroutine直接执行
	CallerRunsPolicy = func() RejectPolicy {
		return func(pool WorkerPool, task func()) error {
			if p, ok := pool.(*workerPool); ok {
				p.executeTask(task)
				return nil
			}

			task()
			return nil
		}
	}

	// AbortPolicy 返回错误
	AbortPolicy = func() RejectPolicy {
		return func(pool WorkerPool, task func()) error {
			return ErrQueueFull
		}
	}
)

var (
	ErrPoolShutdown = errors.New("worker pool has been shutdown")
	ErrQueueFull    = errors.New("task queue is full")
	ErrPoolState    = errors.New("worker pool state is invalid")
)

const (
	stateInit = iota
	stateRunning
	stateDrain
	stateShutdown
)

type workerPool struct {
	workerCount   atomic.Int32
	idle          atomic.Int32
	state         atomic.Int32
	// 提交任务时持有读锁, 关闭任务通道时持有写锁, 避免向已关闭的通道发送
	chanMux       sync.RWMutex
	growingMux    sync.Mutex
	minWorker     int
	maxWorker     int
	aliveDuration time.Duration
	taskChan      chan func()
	wg            sync.WaitGroup
	rejectPolicy  RejectPolicy
	panicHandler  func(r any, stack []byte)
}

type Option func(*workerPool)

func WithAliveDuration(duration time.Duration) Option {
	return func(pool *workerPool) {
		pool.aliveDuration = duration
	}
}

func WithRejectPolicy(rejectPolicy RejectPolicy) Option {
	return func(pool *workerPool) {
		pool.rejectPolicy = rejectPolicy
	}
}

func WithPanicHandler(panicHandler func(any, []byte)) Option {
	return func(pool *workerPool) {
		pool.panicHandler = panicHandler
	}
}

func NewWorkerPool(minWorker, maxWorker, chanSize int, opts ...Option) WorkerPool {
	if minWorker < 0 || maxWorker <= 0 || minWorker > maxWorker || chanSize < 0 {
		panic("invalid parameter")
	}

	pool := &workerPool{
		minWorker: minWorker,
		maxWorker: maxWorker,
		taskChan:  make(chan func(), chanSize),
	}

	for _, opt := range opts {
		opt(pool)
	}

	if pool.rejectPolicy == nil {
		pool.rejectPolicy = AbortPolicy()
	}

	if pool.aliveDuration < 0 {
		panic("invalid aliveDuration")
	} else if pool.aliveDuration == 0 {
		pool.aliveDuration = time.Minute
	}

	return pool
}

func (w *workerPool) Submit(task func()) error {
	if task == nil {
		return nil
	}

	w.chanMux.RLock()
	if w.state.Load() != stateRunning {
		w.chanMux.RUnlock()
		return ErrPoolShutdown
	}

	// 没有空闲worker或者队列有积压时扩容
	if int(w.workerCount.Load()) < w.maxWorker && (w.idle.Load() == 0 || len(w.taskChan) > 0) {
		w.grow()
	}

	select {
	case w.taskChan <- task:
		w.chanMux.RUnlock()
		return nil
	default:
	}
	w.chanMux.RUnlock()

	return w.rejectPolicy(w, task)
}

func (w *workerPool) grow() {
	w.growingMux.Lock()
	defer w.growingMux.Unlock()
	if int(w.workerCount.Load()) < w.maxWorker {
		w.workerCount.Add(1)
		w.wg.Go(w.worker)
	}
}

func (w *workerPool) WorkerCount() int {
	return int(w.workerCount.Load())
}

func (w *workerPool) QueueSize() int {
	return len(w.taskChan)
}

func (w *workerPool) Start() error {
	if w.state.Load() == stateRunning {
		return nil
	}

	if !w.state.CompareAndSwap(stateInit, stateRunning) {
		return ErrPoolState
	}

	for i := 0; i < w.minWorker; i++ {
		w.workerCount.Add(1)
		w.wg.Go(w.worker)
	}

	return nil
}

// Shutdown drain为true时, 队列中已提交的任务会执行完
func (w *workerPool) Shutdown(drain bool) {
	w.chanMux.Lock()
	defer w.chanMux.Unlock()
	if w.state.Load() != stateRunning {
		return
	}

	newState := stateShutdown
	if drain {
		newState = stateDrain
	}

	w.state.Store(int32(newState))
	close(w.taskChan)
}

func (w *workerPool) ShutdownWait(drain bool) {
	w.Shutdown(drain)
	w.wg.Wait()
}

func (w *workerPool) worker() {
	defer w.workerCount.Add(-1)
	timer := time.NewTimer(w.aliveDuration)
	defer timer.Stop()

	for {
		if w.state.Load() == stateShutdown {
			return
		}

		w.idle.Add(1)
		select {
		case task, valid := <-w.taskChan:
			w.idle.Add(-1)
			// 通道被关闭并且已经取空
			if !valid {
				return
			}
			w.executeTask(task)
		case <-timer.C:
			w.idle.Add(-1)
			if int(w.workerCount.Load()) > w.minWorker {
				return
			}
		}

		timer.Reset(w.aliveDuration)
	}
}

func (w *workerPool) executeTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			w.handleCrash(r)
		}
	}()

	task()
}

func (w *workerPool) handleCrash(r any) {
	const size = 64 << 10
	buf := make([]byte, size)
	buf = buf[:runtime.Stack(buf, false)]

	if handler := w.panicHandler; handler != nil {
		handler(r, buf)
		return
	}

	_, _ = fmt.Fprintf(os.Stderr, "worker: panic recovered: %v\n%s\n", r, buf)
}
