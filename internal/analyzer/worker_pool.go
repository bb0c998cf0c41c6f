package analyzer

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// PoolStats is a point-in-time view of pool activity
type PoolStats struct {
	Workers       int   `json:"workers"`
	TotalJobs     int64 `json:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	ActiveWorkers int64 `json:"active_workers"`
}

// WorkerPool runs image strip jobs on a fixed set of goroutines
type WorkerPool struct {
	workers   int
	jobQueue  chan func()
	once      sync.Once
	closeOnce sync.Once

	totalJobs     atomic.Int64
	completedJobs atomic.Int64
	activeWorkers atomic.Int64
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Workers returns the number of goroutines serving the pool
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

// worker processes jobs from the job queue
func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		job()
	}
}

// enqueue counts the job and calls done only after the counters are settled
func (wp *WorkerPool) enqueue(job func(), done func()) {
	wp.totalJobs.Add(1)
	wp.jobQueue <- func() {
		wp.activeWorkers.Add(1)
		job()
		wp.activeWorkers.Add(-1)
		wp.completedJobs.Add(1)
		done()
	}
}

// Run executes a batch of jobs and returns once all of them finished.
// Batches from concurrent callers do not wait on each other.
func (wp *WorkerPool) Run(jobs ...func()) {
	wp.Start()
	var batch sync.WaitGroup
	batch.Add(len(jobs))
	for _, job := range jobs {
		wp.enqueue(job, batch.Done)
	}
	batch.Wait()
}

// Stats returns the current job counters
func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:       wp.workers,
		TotalJobs:     wp.totalJobs.Load(),
		CompletedJobs: wp.completedJobs.Load(),
		ActiveWorkers: wp.activeWorkers.Load(),
	}
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.jobQueue)
	})
}
