// Package workers runs fire-and-forget tasks on a bounded set of goroutines.
//
// Submit never blocks: when the queue is full the task is dropped and counted.
// Tasks receive the pool's context, which is cancelled when Close gives up
// waiting for the queue to drain.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// ErrQueueFull is returned by Submit when the task was dropped.
var ErrQueueFull = errors.New("worker pool queue full")

// Task is a unit of background work.
type Task func(ctx context.Context)

type job struct {
	name string
	run  Task
}

// Metrics tracks pool throughput. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Completed *prometheus.CounterVec
	Dropped   *prometheus.CounterVec
	Panics    *prometheus.CounterVec
}

// NewMetrics registers the pool metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Completed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wordhub_worker_tasks_completed_total",
			Help: "Background tasks that ran to completion, by task name",
		}, []string{"task"}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wordhub_worker_tasks_dropped_total",
			Help: "Background tasks dropped because the queue was full, by task name",
		}, []string{"task"}),
		Panics: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wordhub_worker_tasks_panicked_total",
			Help: "Background tasks that panicked, by task name",
		}, []string{"task"}),
	}
}

func (m *Metrics) completed(name string) {
	if m != nil {
		m.Completed.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) dropped(name string) {
	if m != nil {
		m.Dropped.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) panicked(name string) {
	if m != nil {
		m.Panics.WithLabelValues(name).Inc()
	}
}

// Pool is a fixed-size worker pool with a bounded queue.
type Pool struct {
	queue   chan job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for panics and dropped tasks.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics attaches pool metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// New starts size workers reading from a queue of queueSize tasks.
func New(size, queueSize int, opts ...Option) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size * 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan job, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.loop()
	}
	return p
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- job{name: name, run: task}:
		return nil
	default:
		p.metrics.dropped(name)
		p.logger.Warn("worker queue full, task dropped", "task", name)
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for queued ones to finish. If ctx
// expires first, running tasks see their context cancelled.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("drain worker pool: %w", ctx.Err())
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if rec := recover(); rec != nil {
			p.metrics.panicked(j.name)
			p.logger.Error("worker task panicked",
				"task", j.name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	j.run(p.ctx)
	p.metrics.completed(j.name)
}
