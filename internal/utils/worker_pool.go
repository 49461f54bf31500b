package utils

import (
	"sync"
)

// WorkerPool manages a pool of workers for concurrent background operations.
// It is used to run cover art generation jobs off the request path so slow
// external calls never block an in-flight upload response.
type WorkerPool struct {
	workers   int
	workQueue chan func()
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
	mu        sync.RWMutex
}

// NewWorkerPool creates a new worker pool with the specified number of
// workers. The work queue is buffered at 2x the worker count so submitters
// rarely block.
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers:   workers,
		workQueue: make(chan func(), workers*2),
		stopCh:    make(chan struct{}),
	}
}

// Start begins processing work items. Calling it on a running pool has no
// effect.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return
	}

	wp.running = true

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop stops the worker pool and waits for all workers to finish their
// current work.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.running {
		return
	}

	wp.running = false
	close(wp.stopCh)
	wp.wg.Wait()
}

// Submit adds a work item to the queue. Returns false if the queue is full
// or the pool is not running. Non-blocking.
func (wp *WorkerPool) Submit(work func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.running {
		return false
	}

	select {
	case wp.workQueue <- work:
		return true
	default:
		return false
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.stopCh:
			return
		case work := <-wp.workQueue:
			if work != nil {
				work()
			}
		}
	}
}
