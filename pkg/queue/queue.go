/*
Package queue runs the bounded extraction pipeline: episode ids flow
through a fixed-capacity channel to a pool of worker goroutines, each
loading the episode and handing it to an Extractor. The Start/Stop/stopCh
shape mirrors the teacher's reconciler and scheduler loops, generalized
from one goroutine to a worker_count-sized pool — the teacher never runs
more than one instance of a given loop, but the shape scales directly.
*/
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/memoryengine/pkg/log"
	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/metrics"
)

// Extractor processes a single episode id once it is dequeued. Extractors
// live in pkg/extract; this package only depends on the function shape to
// avoid an import cycle.
type Extractor func(ctx context.Context, episodeID string) error

// Config controls queue capacity and worker concurrency.
type Config struct {
	MaxQueueSize int
	WorkerCount  int
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = 1000
	}
	if c.WorkerCount == 0 {
		c.WorkerCount = 4
	}
	if c.PollInterval == 0 {
		c.PollInterval = 200 * time.Millisecond
	}
	return c
}

// Stats reports queue counters, all updated atomically.
type Stats struct {
	TotalEnqueued     int64
	TotalProcessed    int64
	TotalFailed       int64
	CurrentQueueSize  int64
	ActiveWorkers     int64
}

// Queue is the bounded MPMC extraction pipeline.
type Queue struct {
	cfg       Config
	ch        chan string
	extractor Extractor
	logger    zerolog.Logger

	cancelled atomic.Bool
	wg        sync.WaitGroup
	stopCh    chan struct{}

	enqueued, processed, failed, active atomic.Int64
	totalDurationNanos                  atomic.Int64
}

// New builds a Queue. extractor is invoked once per dequeued episode id;
// the caller is responsible for wiring it to pattern persistence.
func New(cfg Config, extractor Extractor) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		cfg:       cfg,
		ch:        make(chan string, cfg.MaxQueueSize),
		extractor: extractor,
		logger:    log.WithComponent("queue"),
		stopCh:    make(chan struct{}),
	}
}

// Start launches worker_count worker goroutines.
func (q *Queue) Start() {
	for i := 0; i < q.cfg.WorkerCount; i++ {
		q.wg.Add(1)
		go q.runWorker(i)
	}
}

// Stop raises the shared cancellation flag and waits for in-flight work to
// finish its current phase.
func (q *Queue) Stop() {
	q.cancelled.Store(true)
	close(q.stopCh)
	q.wg.Wait()
}

func (q *Queue) runWorker(id int) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case episodeID := <-q.ch:
			q.active.Add(1)
			metrics.ActiveWorkers.Set(float64(q.active.Load()))
			q.process(episodeID)
			q.active.Add(-1)
			metrics.ActiveWorkers.Set(float64(q.active.Load()))
		case <-ticker.C:
			// wakeup on empty queue; nothing to do, loop again
		}
	}
}

func (q *Queue) process(episodeID string) {
	if q.cancelled.Load() {
		return
	}
	ctx := context.Background()
	timer := metrics.NewTimer()
	err := q.extractor(ctx, episodeID)
	timer.ObserveDuration(metrics.ExtractionDuration)
	q.totalDurationNanos.Add(int64(timer.Duration()))

	if err != nil {
		q.failed.Add(1)
		metrics.QueueProcessedTotal.WithLabelValues("failed").Inc()
		q.logger.Warn().Err(err).Str("episode_id", episodeID).Msg("extraction failed")
		return
	}
	q.processed.Add(1)
	metrics.QueueProcessedTotal.WithLabelValues("success").Inc()
}

// Enqueue submits an episode id for extraction. It never blocks: a full
// queue returns QueueFull immediately so episode completion is never
// gated on extraction throughput.
func (q *Queue) Enqueue(episodeID string) error {
	select {
	case q.ch <- episodeID:
		q.enqueued.Add(1)
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	default:
		return memerr.QueueFull()
	}
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		TotalEnqueued:    q.enqueued.Load(),
		TotalProcessed:   q.processed.Load(),
		TotalFailed:      q.failed.Load(),
		CurrentQueueSize: int64(len(q.ch)),
		ActiveWorkers:    q.active.Load(),
	}
}

// Capacity returns the configured maximum queue size.
func (q *Queue) Capacity() int { return q.cfg.MaxQueueSize }

// Summary is a lightweight rollup over extraction-worker executions, the
// same count/success-rate/avg-duration shape the teacher's metrics
// collector samples on a ticker, computed here on demand from the
// queue's own counters instead of polled.
type Summary struct {
	Count       int64
	SuccessRate float64
	AvgDuration time.Duration
}

// Summary returns the current extraction-worker rollup.
func (q *Queue) Summary() Summary {
	processed := q.processed.Load()
	failed := q.failed.Load()
	count := processed + failed

	var summary Summary
	summary.Count = count
	if count > 0 {
		summary.SuccessRate = float64(processed) / float64(count)
		summary.AvgDuration = time.Duration(q.totalDurationNanos.Load() / count)
	}
	return summary
}
