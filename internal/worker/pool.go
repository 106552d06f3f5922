// Package worker runs sync cycles on a background pool so the bot update
// loop never blocks on feed I/O.
package worker

import (
	"context"
	"sync"
	"time"

	"igtracker/pkg/logger"
)

// Runner executes one sync cycle for a subscriber
type Runner interface {
	RunCheck(ctx context.Context, subscriberID string) error
}

// Result records the outcome of a processed check job
type Result struct {
	SubscriberID string
	Error        error
	Duration     time.Duration
}

// Pool manages concurrent check workers. Jobs are subscriber IDs; the
// busy flag inside the runner keeps concurrent jobs for the same
// subscriber from interleaving.
type Pool struct {
	numWorkers  int
	jobQueue    chan string
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	runner      Runner
	logger      logger.Logger
}

// NewPool creates a check worker pool
func NewPool(numWorkers int, runner Runner, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan string, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		runner:      runner,
		logger:      log,
	}
}

// Start launches all workers
func (p *Pool) Start() {
	p.logger.InfoWithFields("starting check worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop drains queued jobs and shuts the pool down
func (p *Pool) Stop() {
	p.logger.Info("stopping check worker pool")

	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.Info("check worker pool stopped")
}

// Shutdown cancels in-flight cycles, then stops the pool
func (p *Pool) Shutdown() {
	p.cancel()
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
}

// Submit enqueues a check for the subscriber without blocking. It reports
// false when the queue is full or the pool is shutting down.
func (p *Pool) Submit(subscriberID string) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}

	select {
	case p.jobQueue <- subscriberID:
		p.logger.DebugWithFields("check job queued", map[string]interface{}{
			"subscriber": subscriberID,
		})
		return true
	default:
		p.logger.WarnWithFields("check queue full, job rejected", map[string]interface{}{
			"subscriber": subscriberID,
		})
		return false
	}
}

// Results returns the channel of processed job outcomes
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.DebugWithFields("worker started", map[string]interface{}{
		"worker_id": id,
	})

	for subscriberID := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			p.logger.DebugWithFields("worker stopping, context canceled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := p.process(subscriberID, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}

	p.logger.DebugWithFields("worker stopping, job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (p *Pool) process(subscriberID string, workerID int) Result {
	start := time.Now()

	p.logger.DebugWithFields("worker running check", map[string]interface{}{
		"worker_id":  workerID,
		"subscriber": subscriberID,
	})

	err := p.runner.RunCheck(p.ctx, subscriberID)
	duration := time.Since(start)

	if err != nil {
		p.logger.ErrorWithFields("check cycle failed", map[string]interface{}{
			"worker_id":  workerID,
			"subscriber": subscriberID,
			"error":      err.Error(),
			"duration":   duration,
		})
	} else {
		p.logger.DebugWithFields("check cycle finished", map[string]interface{}{
			"worker_id":  workerID,
			"subscriber": subscriberID,
			"duration":   duration,
		})
	}

	return Result{SubscriberID: subscriberID, Error: err, Duration: duration}
}
