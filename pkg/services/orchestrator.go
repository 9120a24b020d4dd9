package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kerbaras/mangadl/pkg/data"
)

// ErrPipelinePanic wraps a panic recovered from a chapter pipeline.
var ErrPipelinePanic = errors.New("chapter pipeline panicked")

// JobRunner runs a single chapter job.
type JobRunner interface {
	Run(ctx context.Context, job data.DownloadJob) data.DownloadOutcome
}

// Orchestrator runs many chapter jobs with a bounded number in flight.
type Orchestrator struct {
	runner   JobRunner
	progress ProgressFunc
	batchID  string
	logger   *log.Logger
}

func NewOrchestrator(runner JobRunner, progress ProgressFunc, batchID string, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{runner: runner, progress: progress, batchID: batchID, logger: logger}
}

// RunBatch runs every job, at most maxConcurrency at a time, and returns
// their outcomes in the order of jobs. One job failing or panicking never
// affects the others.
func (o *Orchestrator) RunBatch(ctx context.Context, jobs []data.DownloadJob, maxConcurrency int) []data.DownloadOutcome {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	outcomes := make([]data.DownloadOutcome, len(jobs))
	completed := newCounter(len(jobs))
	semaphore := make(chan struct{}, maxConcurrency)

	o.progress.emit(data.ProgressEvent{BatchID: o.batchID, Scope: data.ScopeBatch, Total: len(jobs)})

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes[i] = o.runOne(ctx, job)

			o.progress.emit(data.ProgressEvent{
				BatchID:   o.batchID,
				Scope:     data.ScopeBatch,
				Chapter:   job.Chapter.Name,
				Completed: completed.inc(),
				Total:     len(jobs),
			})
		}()
	}

	wg.Wait()
	return outcomes
}

func (o *Orchestrator) runOne(ctx context.Context, job data.DownloadJob) (outcome data.DownloadOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("recovered from pipeline panic", "chapter", job.Chapter.Name, "panic", r, "stack", string(debug.Stack()))
			outcome = data.DownloadOutcome{
				ChapterName: job.Chapter.Name,
				ChapterURL:  job.Chapter.URL,
				LocalDir:    job.LocalDir,
				State:       data.StateFailed,
				Err:         fmt.Errorf("%w: %v", ErrPipelinePanic, r),
			}
		}
	}()
	return o.runner.Run(ctx, job)
}
