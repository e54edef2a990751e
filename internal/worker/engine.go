// Package worker runs the job queue consumers: a worker pool per queue with
// rate limiting, retry settlement and audit recording.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"service-marketplace/internal/queue"
	"service-marketplace/pkg/audit"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/logging"
	"service-marketplace/pkg/metrics"
)

// RateLimiter implements token bucket rate limiting.
type RateLimiter struct {
	tokens   chan struct{}
	interval time.Duration
	capacity int
	ticker   *time.Ticker
	mu       sync.Mutex
	running  bool
}

func NewRateLimiter(rps int, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = rps
	}

	rl := &RateLimiter{
		tokens:   make(chan struct{}, burst),
		interval: time.Second / time.Duration(rps),
		capacity: burst,
	}

	// Fill initial tokens
	for i := 0; i < burst; i++ {
		rl.tokens <- struct{}{}
	}

	return rl
}

func (rl *RateLimiter) Start() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.running {
		return
	}

	rl.ticker = time.NewTicker(rl.interval)
	rl.running = true

	go func() {
		for range rl.ticker.C {
			select {
			case rl.tokens <- struct{}{}:
			default:
				// Bucket is full, drop token
			}
		}
	}()
}

func (rl *RateLimiter) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.running {
		return
	}

	rl.ticker.Stop()
	rl.running = false
}

func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-rl.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueSpec binds a queue to its handler and consumer tuning. RetryBudget
// and Prefetch of zero fall back to the broker defaults.
type QueueSpec struct {
	Name        string
	Workers     int
	RetryBudget int
	Prefetch    int
	Handler     queue.Handler
}

// Stats tracks engine-wide processing statistics.
type Stats struct {
	StartTime    time.Time
	LastActivity time.Time
	WorkerCount  int

	Processed    int64
	Succeeded    int64
	Failed       int64
	Retried      int64
	DeadLettered int64
}

// Config holds engine tuning knobs.
type Config struct {
	JobTimeout time.Duration
	RPS        int // upstream API calls per second across all workers
	Burst      int
}

func DefaultConfig() Config {
	return Config{
		JobTimeout: 90 * time.Second,
		RPS:        8,
		Burst:      15,
	}
}

// pool tracks one queue's running consumers so their count can change at
// runtime.
type pool struct {
	spec       QueueSpec
	deliveries <-chan queue.Delivery
	stops      []chan struct{}
}

// Engine consumes the configured queues. Each job runs under a per-job
// timeout; outcomes are counted, logged and appended to the audit store.
type Engine struct {
	broker *queue.Broker
	audit  audit.Store
	specs  []QueueSpec

	poolMu sync.Mutex
	pools  map[string]*pool

	jobTimeout time.Duration
	limiter    *RateLimiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats   Stats
	statsMu sync.RWMutex

	log *logging.ComponentLogger

	mProcessed *metrics.CounterVec
	mFailed    *metrics.CounterVec

	shutdownOnce sync.Once
}

func NewEngine(broker *queue.Broker, auditStore audit.Store, specs []QueueSpec, cfg Config, log *logging.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	workers := 0
	for _, s := range specs {
		workers += s.Workers
	}

	if auditStore == nil {
		auditStore = audit.NopStore{}
	}

	return &Engine{
		broker:     broker,
		audit:      auditStore,
		specs:      specs,
		pools:      make(map[string]*pool),
		jobTimeout: cfg.JobTimeout,
		limiter:    NewRateLimiter(cfg.RPS, cfg.Burst),
		ctx:        ctx,
		cancel:     cancel,
		log:        log.WithComponent("worker"),
		mProcessed: metrics.Default.CounterVec("worker_jobs_processed", "Jobs processed per queue", "queue"),
		mFailed:    metrics.Default.CounterVec("worker_jobs_failed", "Job failures per queue", "queue"),
		stats: Stats{
			StartTime:    time.Now(),
			LastActivity: time.Now(),
			WorkerCount:  workers,
		},
	}
}

// Start declares queues and launches the worker pools.
func (e *Engine) Start() error {
	e.poolMu.Lock()
	defer e.poolMu.Unlock()

	for _, spec := range e.specs {
		if err := e.broker.DeclareQueue(spec.Name); err != nil {
			return err
		}
		deliveries, err := e.broker.Consume(e.ctx, spec.Name, queue.QueueOptions{
			Prefetch:    spec.Prefetch,
			RetryBudget: spec.RetryBudget,
		})
		if err != nil {
			return err
		}
		p := &pool{spec: spec, deliveries: deliveries}
		e.pools[spec.Name] = p

		workers := spec.Workers
		if workers < 1 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			e.startWorker(p)
		}
		e.log.Info("queue consumers started",
			logging.String("queue", spec.Name),
			logging.Int("workers", workers))
	}

	e.limiter.Start()
	return nil
}

// startWorker launches one consumer goroutine. Caller holds poolMu.
func (e *Engine) startWorker(p *pool) {
	stop := make(chan struct{})
	p.stops = append(p.stops, stop)
	e.wg.Add(1)
	go e.worker(p.spec, p.deliveries, stop)
}

// ApplyConfig resizes the per-queue worker pools at runtime. Queues absent
// from counts, or with a count below one, keep their current size.
func (e *Engine) ApplyConfig(counts map[string]int) {
	e.poolMu.Lock()
	defer e.poolMu.Unlock()

	for name, want := range counts {
		p, ok := e.pools[name]
		if !ok || want < 1 {
			continue
		}
		for len(p.stops) < want {
			e.startWorker(p)
		}
		for len(p.stops) > want {
			last := len(p.stops) - 1
			close(p.stops[last])
			p.stops = p.stops[:last]
		}
	}

	total := 0
	for _, p := range e.pools {
		total += len(p.stops)
	}
	e.statsMu.Lock()
	e.stats.WorkerCount = total
	e.statsMu.Unlock()
	e.log.Info("worker counts applied", logging.Int("workers", total))
}

// Stop gracefully shuts down the engine, waiting up to timeout for in-flight
// jobs to settle.
func (e *Engine) Stop(timeout time.Duration) error {
	var err error
	e.shutdownOnce.Do(func() {
		e.log.Info("worker engine shutting down")
		e.cancel()

		done := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("worker shutdown timeout exceeded")
		}

		e.limiter.Stop()
	})
	return err
}

// GetStats returns a snapshot of processing statistics.
func (e *Engine) GetStats() Stats {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()

	s := e.stats
	s.Processed = atomic.LoadInt64(&e.stats.Processed)
	s.Succeeded = atomic.LoadInt64(&e.stats.Succeeded)
	s.Failed = atomic.LoadInt64(&e.stats.Failed)
	s.Retried = atomic.LoadInt64(&e.stats.Retried)
	s.DeadLettered = atomic.LoadInt64(&e.stats.DeadLettered)
	return s
}

func (e *Engine) worker(spec QueueSpec, deliveries <-chan queue.Delivery, stop <-chan struct{}) {
	defer e.wg.Done()

	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			e.process(spec, d)
		case <-stop:
			return
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Engine) process(spec QueueSpec, d queue.Delivery) {
	if err := e.limiter.Wait(e.ctx); err != nil {
		return
	}

	jobCtx, cancel := context.WithTimeout(e.ctx, e.jobTimeout)
	defer cancel()

	start := time.Now()
	err := spec.Handler(jobCtx, d.Job)
	elapsed := time.Since(start)

	atomic.AddInt64(&e.stats.Processed, 1)
	e.statsMu.Lock()
	e.stats.LastActivity = time.Now()
	e.statsMu.Unlock()
	e.mProcessed.With(spec.Name).Inc(1)

	// Settlement must not be cut short by the job timeout.
	settleCtx, settleCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer settleCancel()

	switch {
	case err == nil:
		atomic.AddInt64(&e.stats.Succeeded, 1)
		if ackErr := d.Ack(); ackErr != nil {
			e.log.Error("ack failed", ackErr, logging.String("job_id", d.Job.ID))
		}
		e.appendAudit(settleCtx, d.Job, audit.OutcomeSucceeded, "")
		e.log.Debug("job done",
			logging.String("queue", spec.Name),
			logging.String("job_id", d.Job.ID),
			logging.Duration("took", elapsed))

	case errs.Is(err, errs.ErrValidation):
		// Malformed or unreviewable input cannot succeed on retry.
		atomic.AddInt64(&e.stats.Failed, 1)
		atomic.AddInt64(&e.stats.DeadLettered, 1)
		e.mFailed.With(spec.Name).Inc(1)
		if dErr := d.Dead(settleCtx, err.Error()); dErr != nil {
			e.log.Error("dead-letter failed", dErr, logging.String("job_id", d.Job.ID))
		}
		e.appendAudit(settleCtx, d.Job, audit.OutcomeDeadLetter, err.Error())

	default:
		atomic.AddInt64(&e.stats.Failed, 1)
		e.mFailed.With(spec.Name).Inc(1)
		deadLettered, rErr := d.Retry(settleCtx, err.Error())
		if rErr != nil {
			e.log.Error("retry settlement failed", rErr, logging.String("job_id", d.Job.ID))
			return
		}
		if deadLettered {
			atomic.AddInt64(&e.stats.DeadLettered, 1)
			e.appendAudit(settleCtx, d.Job, audit.OutcomeDeadLetter, err.Error())
		} else {
			atomic.AddInt64(&e.stats.Retried, 1)
			e.appendAudit(settleCtx, d.Job, audit.OutcomeRetried, err.Error())
		}
		e.log.Warn("job failed",
			logging.String("queue", spec.Name),
			logging.String("job_id", d.Job.ID),
			logging.Int("attempt", d.Job.Attempt),
			logging.Bool("dead_lettered", deadLettered),
			logging.String("error", err.Error()))
	}
}

// appendAudit records the outcome, best effort.
func (e *Engine) appendAudit(ctx context.Context, job queue.Job, outcome, detail string) {
	rec := audit.Record{
		JobID:    job.ID,
		Queue:    job.Queue,
		EntityID: job.EntityID,
		Attempt:  job.Attempt,
		Outcome:  outcome,
		Detail:   detail,
		At:       time.Now().UTC(),
	}
	if err := e.audit.Append(ctx, rec); err != nil {
		e.log.Error("audit append failed", err, logging.String("job_id", job.ID))
	}
}
