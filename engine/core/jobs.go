package core

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// JobTask is a unit of work run on a worker goroutine. OnComplete or
// OnFailure runs on the same worker once Run returns.
type JobTask struct {
	Run        func() error
	OnComplete func()
	OnFailure  func(err error)
}

// JobSystem runs submitted tasks on a fixed set of workers.
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	pending    sync.WaitGroup
	logger     *Logger
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int, logger *Logger) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}
	if logger == nil {
		logger = DefaultLogger()
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
		logger:     logger,
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	defer js.pending.Done()
	if err := job.Run(); err != nil {
		if job.OnFailure != nil {
			job.OnFailure(err)
		} else {
			js.logger.Error("job failed: %s", err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

// Submit queues the task, blocking while the queue is full.
func (js *JobSystem) Submit(jt JobTask) {
	js.pending.Add(1)
	js.jobQueue <- jt
}

// Wait blocks until every submitted task has finished.
func (js *JobSystem) Wait() {
	js.pending.Wait()
}

// Shutdown drains the queue and stops the workers.
func (js *JobSystem) Shutdown() error {
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}
