// Package sender runs outbound Telegram calls with bounded retries, either
// inline (Do) or on a worker pool (Enqueue).
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/core/metrics"
	"github.com/m3rciful/topupbot/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls retries and the worker pool.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one call including retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx    context.Context
	action string
	run    func() error
}

// Dispatcher executes Telegram calls with retries.
type Dispatcher struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts the worker pool.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Do runs fn in the caller's goroutine, retrying transient failures, and
// returns the last error. fn must be safe to repeat.
func (d *Dispatcher) Do(ctx context.Context, action string, fn func() error) error {
	if fn == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return d.execute(job{ctx: ctx, action: action, run: fn})
}

// Enqueue schedules fn on the worker pool. Failures are logged and counted.
func (d *Dispatcher) Enqueue(ctx context.Context, action string, fn func() error) error {
	if fn == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, run: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of calls that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		_ = d.execute(j)
	}
}

func (d *Dispatcher) execute(j job) error {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; ; attempt++ {
		if err = j.run(); err == nil {
			logger.Debug(j.ctx, component, "send.ok",
				slog.String("action", j.action),
				slog.Int("attempts", attempt),
				slog.Duration("duration", time.Since(start)),
			)
			return nil
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}

		kind := netutil.Classify(err)
		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait := netutil.RetryAfter(err); wait > delay {
			delay = wait
		}
		metrics.SendRetries.WithLabelValues(string(kind)).Inc()
		logger.Debug(j.ctx, component, "send.retry",
			slog.String("action", j.action),
			slog.Int("attempts", attempt),
			slog.String("cause", string(kind)),
			slog.Duration("backoff", delay),
		)
		if !sleep(ctx, delay) {
			err = errors.Join(err, ctx.Err())
			break
		}
	}

	kind := netutil.Classify(err)
	d.errs.Add(1)
	metrics.SendFailures.WithLabelValues(j.action, string(kind)).Inc()
	logger.Warn(j.ctx, component, "send.fail",
		slog.String("action", j.action),
		slog.String("cause", string(kind)),
		slog.String("err", netutil.Redact(err)),
		slog.Duration("duration", time.Since(start)),
	)
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
