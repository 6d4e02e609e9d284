package queue

import (
	"errors"
	"log"
	"sync"
)

var ErrQueueClosed = errors.New("queue: request queue is shut down")

type Job struct {
	Fn   func() error
	Errc chan error
}

// RequestQueueManager bounds how many HTTP handlers run at once. Jobs wait in
// JobQueue until one of MaxWorkers picks them up.
type RequestQueueManager struct {
	JobQueue   chan Job
	MaxWorkers int
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewRequestQueueManager(queueSize int, maxWorkers int) *RequestQueueManager {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	manager := &RequestQueueManager{
		JobQueue:   make(chan Job, queueSize),
		MaxWorkers: maxWorkers,
	}
	manager.startWorkers()
	return manager
}

func (rqm *RequestQueueManager) startWorkers() {
	for i := 0; i < rqm.MaxWorkers; i++ {
		rqm.wg.Add(1)
		go func(workerID int) {
			defer rqm.wg.Done()
			for job := range rqm.JobQueue {
				err := job.Fn()
				if job.Errc != nil {
					job.Errc <- err
				}
			}
			log.Printf("queue: worker %d stopped", workerID)
		}(i)
	}
	log.Printf("queue: %d workers started", rqm.MaxWorkers)
}

// EnqueueJob blocks until the queue has room. It fails once Shutdown has run.
func (rqm *RequestQueueManager) EnqueueJob(job Job) error {
	rqm.mu.RLock()
	defer rqm.mu.RUnlock()
	if rqm.closed {
		return ErrQueueClosed
	}
	rqm.JobQueue <- job
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (rqm *RequestQueueManager) Shutdown() {
	rqm.mu.Lock()
	if rqm.closed {
		rqm.mu.Unlock()
		return
	}
	rqm.closed = true
	close(rqm.JobQueue)
	rqm.mu.Unlock()
	rqm.wg.Wait()
}
