package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/infrastructure/monitoring"
	"github.com/tracewire/tracewire/internal/trace"
)

// State describes what the queue is currently doing.
type State int32

const (
	StateIdle State = iota
	StateAccumulating
	StateFlushing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Config bounds the queue's buffering and retry behavior.
type Config struct {
	// Capacity is the maximum number of buffered spans. On overflow the
	// oldest spans are evicted first; producers never block.
	Capacity int
	// BatchSize is the flush threshold and the maximum batch drained per
	// flush, order preserved.
	BatchSize int
	// Interval is the maximum time a buffered span waits before a flush
	// is forced.
	Interval time.Duration
	// RetryMax is the total transmission attempts per batch before the
	// batch is dropped. Export is best-effort; batches are never retried
	// indefinitely.
	RetryMax int
	// RetryBase is the initial backoff between attempts, doubled each
	// retry.
	RetryBase time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:  2048,
		BatchSize: 512,
		Interval:  5 * time.Second,
		RetryMax:  3,
		RetryBase: 100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchSize > c.Capacity {
		c.BatchSize = c.Capacity
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.RetryMax <= 0 {
		c.RetryMax = d.RetryMax
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	return c
}

// Tap receives a copy of every drained batch before transmission. Used by
// the websocket span stream; must not block.
type Tap func(spans []*trace.Span)

// Queue is a bounded FIFO buffer batching finalized spans for
// asynchronous transmission to the collector.
//
// Producers append via Enqueue and never block; only the background
// flusher drains. A flush is triggered when the batch size is reached or
// when the oldest buffered span exceeds the configured interval.
type Queue struct {
	cfg       Config
	service   string
	transport Transport
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	tap       Tap

	mu     sync.Mutex
	buf    []*trace.Span // ring buffer
	head   int
	count  int
	oldest time.Time // enqueue time of buf[head], valid when count > 0

	kick  chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
	state atomic.Int32

	dropped  atomic.Uint64
	exported atomic.Uint64
}

// Option configures a Queue.
type Option func(*Queue)

// WithMetrics wires queue self-telemetry into the metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithTap registers a tap for drained batches.
func WithTap(tap Tap) Option {
	return func(q *Queue) { q.tap = tap }
}

// NewQueue creates a queue and starts its background flusher. Call
// Shutdown to flush remaining spans and stop the flusher.
func NewQueue(service string, transport Transport, cfg Config, logger *zap.Logger, opts ...Option) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		cfg:       cfg,
		service:   service,
		transport: transport,
		logger:    logger,
		buf:       make([]*trace.Span, cfg.Capacity),
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	q.wg.Add(1)
	go q.flushLoop()

	return q
}

// State returns the queue's current state.
func (q *Queue) State() State {
	return State(q.state.Load())
}

// Dropped returns the number of spans dropped so far, by overflow
// eviction or by retry exhaustion. Monotonically increasing.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Exported returns the number of spans successfully transmitted.
func (q *Queue) Exported() uint64 {
	return q.exported.Load()
}

// Len returns the number of currently buffered spans.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Enqueue appends a finalized span. It never blocks: on overflow the
// oldest buffered span is evicted and counted as dropped.
func (q *Queue) Enqueue(span *trace.Span) {
	now := time.Now()

	q.mu.Lock()
	if q.count == q.cfg.Capacity {
		// Evict oldest first; the producer must not pay for drain lag.
		q.buf[q.head] = nil
		q.head = (q.head + 1) % q.cfg.Capacity
		q.count--
		q.dropped.Add(1)
		if q.metrics != nil {
			q.metrics.RecordSpansDropped(1, "overflow")
		}
	}
	tail := (q.head + q.count) % q.cfg.Capacity
	q.buf[tail] = span
	if q.count == 0 {
		q.oldest = now
	}
	q.count++
	full := q.count >= q.cfg.BatchSize
	depth := q.count
	q.mu.Unlock()

	if q.State() == StateIdle {
		q.state.CompareAndSwap(int32(StateIdle), int32(StateAccumulating))
	}
	if q.metrics != nil {
		q.metrics.SetQueueDepth(depth)
	}

	if full {
		select {
		case q.kick <- struct{}{}:
		default:
		}
	}
}

// flushLoop runs until Shutdown, waking on the size trigger or when the
// oldest buffered span ages past the interval.
func (q *Queue) flushLoop() {
	defer q.wg.Done()

	timer := time.NewTimer(q.cfg.Interval)
	defer timer.Stop()

	for {
		q.resetTimer(timer)

		select {
		case <-q.done:
			return
		case <-q.kick:
		case <-timer.C:
			if !q.intervalElapsed() {
				continue
			}
		}

		q.flush(context.Background())
	}
}

// resetTimer arms the timer for the moment the oldest buffered span
// exceeds the interval, or a full interval ahead when empty.
func (q *Queue) resetTimer(timer *time.Timer) {
	q.mu.Lock()
	wait := q.cfg.Interval
	if q.count > 0 {
		if until := time.Until(q.oldest.Add(q.cfg.Interval)); until < wait {
			wait = until
		}
	}
	q.mu.Unlock()

	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(wait)
}

func (q *Queue) intervalElapsed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count > 0 && time.Since(q.oldest) >= q.cfg.Interval
}

// flush drains up to one batch and transmits it, retrying with
// exponential backoff up to the attempt ceiling. On exhaustion the batch
// is dropped. Always returns the queue to idle or accumulating.
func (q *Queue) flush(ctx context.Context) {
	q.state.Store(int32(StateFlushing))
	defer func() {
		if q.Len() > 0 {
			q.state.Store(int32(StateAccumulating))
		} else {
			q.state.Store(int32(StateIdle))
		}
	}()

	for {
		spans := q.drain()
		if len(spans) == 0 {
			return
		}

		if q.tap != nil {
			q.tap(spans)
		}
		q.transmit(ctx, spans)

		// Keep draining while full batches remain; a single kick may
		// stand for several.
		if q.Len() < q.cfg.BatchSize {
			return
		}
	}
}

// drain removes up to one batch from the buffer, preserving order.
func (q *Queue) drain() []*trace.Span {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	if n > q.cfg.BatchSize {
		n = q.cfg.BatchSize
	}
	if n == 0 {
		return nil
	}

	spans := make([]*trace.Span, n)
	for i := 0; i < n; i++ {
		idx := (q.head + i) % q.cfg.Capacity
		spans[i] = q.buf[idx]
		q.buf[idx] = nil
	}
	q.head = (q.head + n) % q.cfg.Capacity
	q.count -= n
	if q.count > 0 {
		q.oldest = time.Now()
	}
	if q.metrics != nil {
		q.metrics.SetQueueDepth(q.count)
	}
	return spans
}

func (q *Queue) transmit(ctx context.Context, spans []*trace.Span) {
	batch := NewBatch(q.service, spans)

	var err error
	for attempt := 0; attempt < q.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			backoff := q.cfg.RetryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				q.drop(spans, "shutdown")
				return
			case <-q.waitOrDone(backoff):
			}
		}

		start := time.Now()
		if err = q.transport.Send(ctx, batch); err == nil {
			q.exported.Add(uint64(len(spans)))
			if q.metrics != nil {
				q.metrics.RecordBatchExported(len(spans), time.Since(start))
			}
			return
		}
		if q.metrics != nil {
			q.metrics.RecordBatchFailed()
		}
	}

	q.logger.Warn("dropping batch after retry ceiling",
		zap.Int("spans", len(spans)),
		zap.Int("attempts", q.cfg.RetryMax),
		zap.Error(err),
	)
	q.drop(spans, "retry_exhausted")
}

func (q *Queue) drop(spans []*trace.Span, reason string) {
	q.dropped.Add(uint64(len(spans)))
	if q.metrics != nil {
		q.metrics.RecordSpansDropped(len(spans), reason)
	}
}

// waitOrDone returns a channel that fires after d or when the queue shuts
// down, so backoff never delays shutdown.
func (q *Queue) waitOrDone(d time.Duration) <-chan time.Time {
	select {
	case <-q.done:
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	default:
		return time.After(d)
	}
}

// Shutdown stops the flusher, performs a final flush of everything still
// buffered, and closes the transport. Spans enqueued after Shutdown are
// silently discarded.
func (q *Queue) Shutdown(ctx context.Context) error {
	close(q.done)
	q.wg.Wait()

	for q.Len() > 0 {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			remaining := q.count
			for i := 0; i < q.count; i++ {
				q.buf[(q.head+i)%q.cfg.Capacity] = nil
			}
			q.head, q.count = 0, 0
			q.mu.Unlock()
			if remaining > 0 {
				q.dropped.Add(uint64(remaining))
				if q.metrics != nil {
					q.metrics.RecordSpansDropped(remaining, "shutdown")
				}
			}
			return errors.Join(ctx.Err(), q.transport.Close())
		default:
		}
		q.flush(ctx)
	}

	return q.transport.Close()
}
