package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yieldera/climate-datahub/internal/observability"
)

// Runner executes one job and returns the download URLs of its artifacts.
type Runner func(ctx context.Context, job *Job) (map[string]string, error)

// Worker drains a bounded queue of job IDs onto a fixed pool of goroutines.
// Enqueue never blocks: a full queue fails the submission so the HTTP layer
// can report backpressure instead of hanging.
type Worker struct {
	store *Store
	run   Runner
	queue chan string
	n     int
	log   *slog.Logger
	wg    sync.WaitGroup
}

func NewWorker(store *Store, run Runner, workers, queueSize int, log *slog.Logger) *Worker {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Worker{
		store: store,
		run:   run,
		queue: make(chan string, queueSize),
		n:     workers,
		log:   log,
	}
}

// Start launches the pool. Workers exit when ctx is canceled and the queue
// is drained or abandoned.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.n; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			l := w.log.With("worker", id)
			for {
				select {
				case <-ctx.Done():
					return
				case jobID, ok := <-w.queue:
					if !ok {
						return
					}
					observability.SetJobQueueDepth(len(w.queue))
					w.process(ctx, l, jobID)
				}
			}
		}(i)
	}
}

// Enqueue hands a queued job to the pool.
func (w *Worker) Enqueue(jobID string) error {
	select {
	case w.queue <- jobID:
		observability.SetJobQueueDepth(len(w.queue))
		return nil
	default:
		return fmt.Errorf("job queue full")
	}
}

// Wait blocks until all workers have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) process(ctx context.Context, l *slog.Logger, jobID string) {
	start := time.Now()
	job, err := w.store.MarkRunning(jobID)
	if err != nil {
		l.Warn("cannot start job", "job_id", jobID, "err", err)
		return
	}
	l.Info("job started", "job_id", jobID, "job_type", job.Type)

	urls, err := w.run(ctx, job)
	if err != nil {
		if _, merr := w.store.MarkError(jobID, err); merr != nil {
			l.Error("cannot record job failure", "job_id", jobID, "err", merr)
		}
		observability.IncJobProcessed(StatusError, job.Type)
		l.Warn("job failed", "job_id", jobID, "job_type", job.Type,
			"err", err, "elapsed", time.Since(start))
		return
	}

	if _, err := w.store.MarkDone(jobID, urls); err != nil {
		l.Error("cannot record job completion", "job_id", jobID, "err", err)
		return
	}
	observability.IncJobProcessed(StatusDone, job.Type)
	l.Info("job done", "job_id", jobID, "job_type", job.Type,
		"artifacts", len(urls), "elapsed", time.Since(start))
}
