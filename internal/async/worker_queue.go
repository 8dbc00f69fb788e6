package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

// DocumentProcessor is the unit of work a worker applies to a queued
// document.
type DocumentProcessor interface {
	Process(ctx context.Context, doc *entity.RawDocument) (*entity.InvoiceRecord, error)
}

type WorkerQueue struct {
	proc    DocumentProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*WorkerQueue)

func WithWorkers(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *WorkerQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewWorkerQueue(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *WorkerQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WorkerQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(common.WithTenantID(context.Background(), job.Doc.TenantID), q.timeout)
					_, err := q.proc.Process(ctx, job.Doc)
					cancel()

					if err != nil {
						q.logger.Error("processing failed", "worker_id", workerID, "doc_id", job.Doc.ID, "error", err)
					} else {
						q.logger.Info("processed document", "worker_id", workerID, "doc_id", job.Doc.ID)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *WorkerQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "doc_id", job.Doc.ID)
		return nil
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued document for processing", "doc_id", job.Doc.ID)
	default:
		q.logger.Warn("queue full, applying backpressure", "doc_id", job.Doc.ID)
		q.ch <- job
	}
	return nil
}

// Shutdown closes the intake channel and waits for in-flight jobs to
// drain, or for ctx to expire.
func (q *WorkerQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
