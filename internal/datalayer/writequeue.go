package datalayer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/rts-ladder/ranked-core/internal/store"
)

// WriteJob is a mutation descriptor submitted to the single background
// writer. Apply performs the durable-store side effect; Description and
// Payload exist purely for the failed-writes log.
type WriteJob struct {
	Description string
	Payload     map[string]interface{}
	Apply       func(ctx context.Context, s store.Store) error

	// Authoritative distinguishes match finalization / rating writes (which
	// get inline retry with backoff and a loud failure path) from
	// analytics-grade writes (action log, command audit), which favor
	// availability: log-and-move-on, no rollback of the mirror.
	Authoritative bool

	// OnFinalFailure runs if an Authoritative job exhausts its retries. It
	// gives the caller (the Lifecycle Coordinator) a chance to mark the
	// match conflicted rather than leaving it silently un-persisted.
	OnFinalFailure func()

	submittedAt time.Time
}

const (
	maxAuthoritativeAttempts = 3
	backoffBase              = 100 * time.Millisecond
)

var (
	writeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ranked_core_write_queue_depth",
		Help: "Number of WriteJobs buffered in the Data Layer's write queue.",
	})
	writeJobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ranked_core_write_jobs_processed_total",
		Help: "WriteJobs processed by the Data Layer's background writer, by outcome.",
	}, []string{"outcome"})
	writeJobLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ranked_core_write_job_latency_seconds",
		Help:    "Time a WriteJob spent queued before being applied.",
		Buckets: prometheus.DefBuckets,
	})
)

// writer is the single background consumer of the write queue. It persists
// each job to the durable store; on failure for analytics-grade jobs it
// appends to a failed-writes log instead of surfacing the error to the
// original caller, whose in-memory mirror was already updated at
// submission time.
type writer struct {
	queue  chan WriteJob
	store  store.Store
	logger *zap.SugaredLogger

	failedWritesMu   sync.Mutex
	failedWritesFile *os.File

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func newWriter(queueSize int, s store.Store, failedWritesPath string, logger *zap.SugaredLogger) (*writer, error) {
	f, err := os.OpenFile(failedWritesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening failed-writes log: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &writer{
		queue:            make(chan WriteJob, queueSize),
		store:            s,
		logger:           logger,
		failedWritesFile: f,
		ctx:              ctx,
		cancel:           cancel,
	}, nil
}

func (w *writer) start() {
	w.wg.Add(1)
	go w.run()
}

func (w *writer) run() {
	defer w.wg.Done()
	for job := range w.queue {
		writeQueueDepth.Dec()
		writeJobLatency.Observe(time.Since(job.submittedAt).Seconds())
		w.process(job)
	}
}

func (w *writer) process(job WriteJob) {
	var err error
	attempts := 1
	if job.Authoritative {
		attempts = maxAuthoritativeAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err = job.Apply(w.ctx, w.store)
		if err == nil {
			writeJobsProcessed.WithLabelValues("ok").Inc()
			return
		}
		if job.Authoritative && attempt < attempts {
			w.logger.Warnw("authoritative write failed, retrying",
				"description", job.Description, "attempt", attempt, "error", err)
			time.Sleep(backoffBase * time.Duration(1<<uint(attempt-1)))
		}
	}

	if job.Authoritative {
		writeJobsProcessed.WithLabelValues("failed_authoritative").Inc()
		w.logger.Errorw("authoritative write exhausted retries",
			"description", job.Description, "error", err)
		if job.OnFinalFailure != nil {
			job.OnFinalFailure()
		}
		return
	}

	writeJobsProcessed.WithLabelValues("failed_analytics").Inc()
	w.logger.Warnw("analytics-grade write failed, logging for reconciliation",
		"description", job.Description, "error", err)
	w.appendFailedWrite(job, err)
}

func (w *writer) appendFailedWrite(job WriteJob, cause error) {
	w.failedWritesMu.Lock()
	defer w.failedWritesMu.Unlock()

	record := map[string]interface{}{
		"description": job.Description,
		"payload":     job.Payload,
		"error":       cause.Error(),
		"failed_at":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	line, err := json.Marshal(record)
	if err != nil {
		w.logger.Errorw("failed to marshal failed-write record", "error", err)
		return
	}
	line = append(line, '\n')
	if _, err := w.failedWritesFile.Write(line); err != nil {
		w.logger.Errorw("failed to append to failed-writes log", "error", err)
	}
}

// enqueue submits a job without blocking the caller beyond buffer
// availability; callers expect to return in under 5ms.
func (w *writer) enqueue(job WriteJob) {
	job.submittedAt = time.Now()
	writeQueueDepth.Inc()
	select {
	case w.queue <- job:
	default:
		// Queue buffer exhausted: apply synchronously so we never silently
		// drop an authoritative write, and log loudly for analytics-grade
		// ones before dropping.
		writeQueueDepth.Dec()
		if job.Authoritative {
			w.process(job)
			return
		}
		w.logger.Warnw("write queue full, dropping analytics-grade job", "description", job.Description)
	}
}

// drain waits for the queue to empty or timeout to elapse, then stops the
// background worker, for use by a graceful-shutdown routine that must
// drain the write queue before returning.
func (w *writer) drain(timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			w.logger.Warnw("write queue drain timed out", "remaining", len(w.queue))
			goto stop
		default:
			if len(w.queue) == 0 {
				goto stop
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
stop:
	close(w.queue)
	w.wg.Wait()
	w.cancel()
	w.failedWritesFile.Close()
}
