// Package queue implements RequestQueue: the sole mediator of outbound
// requests to the upstream API, enforcing concurrency limits, rate-limit
// spacing, timeout, exponential-backoff retry, label deduplication and
// circuit breaking (spec.md §4.2).
//
// Concurrency model: callers submit from any goroutine, but all queue
// bookkeeping (bands, in-flight map, breaker state) is protected by a
// single mutex, in a worker-pool-plus-shared-counters shape.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/capstripeviz/internal/capstriperr"
	"github.com/MeKo-Tech/capstripeviz/internal/config"
)

// Execute is the unit of work a caller submits. It must respect ctx
// cancellation/deadline; on failure it should return an error whose Kind
// (via capstriperr.KindOf) classifies retryability.
type Execute func(ctx context.Context) (any, error)

// SubmitRequest describes one unit of work to mediate through the queue.
type SubmitRequest struct {
	Execute  Execute
	Priority int    // lower runs first
	Label    string // optional; matching in-flight/pending label dedups
}

// Future is the handle returned by Submit; callers Wait on it.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future resolves or ctx is cancelled first.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, capstriperr.Wrap(capstriperr.Cancelled, ctx.Err(), "queue: caller context done while waiting")
	}
}

// Done returns a channel closed when the future resolves, for select loops.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the resolved value/error without blocking; only valid
// after Done() is closed.
func (f *Future) Result() (any, error) { return f.value, f.err }

type item struct {
	id        uuid.UUID
	label     string
	priority  int
	attempt   int
	execute   Execute
	future    *Future
	createdAt time.Time
	seq       uint64 // FIFO tiebreak within a priority band
}

type band struct {
	priority int
	items    []*item
}

func (b *band) popFront() *item {
	it := b.items[0]
	b.items = b.items[1:]
	return it
}

func (b *band) pushBack(it *item) {
	b.items = append(b.items, it)
}

func (b *band) pushFront(it *item) {
	b.items = append([]*item{it}, b.items...)
}

// RequestQueue mediates all outbound requests per spec.md §4.2.
type RequestQueue struct {
	cfg    config.QueueConfig
	logger *slog.Logger

	mu             sync.Mutex
	bands          map[int]*band
	priorityOrder  []int // sorted ascending; rebuilt lazily
	labels         map[string]*Future
	inFlight       int
	lastDispatchAt time.Time
	nextSeq        uint64

	consecutiveFailures int
	breakerOpen         bool
	breakerOpenedAt      time.Time

	closed        bool
	timers        map[*time.Timer]struct{}
	nowFn         func() time.Time
	inFlightItems map[uuid.UUID]*item

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a RequestQueue with the given configuration.
func New(cfg config.QueueConfig, logger *slog.Logger) *RequestQueue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RequestQueue{
		cfg:           cfg,
		logger:        logger,
		bands:         make(map[int]*band),
		labels:        make(map[string]*Future),
		timers:        make(map[*time.Timer]struct{}),
		nowFn:         time.Now,
		inFlightItems: make(map[uuid.UUID]*item),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (q *RequestQueue) now() time.Time {
	if q.nowFn != nil {
		return q.nowFn()
	}
	return time.Now()
}

// Submit enqueues req and returns a future for its eventual result.
// A req whose label matches an already pending/in-flight request returns
// that request's existing future instead of enqueuing a duplicate.
func (q *RequestQueue) Submit(req SubmitRequest) *Future {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		fut := newFuture()
		fut.resolve(nil, capstriperr.New(capstriperr.Cancelled, "queue: submit after clear()"))
		return fut
	}

	if req.Label != "" {
		if existing, ok := q.labels[req.Label]; ok {
			return existing
		}
	}

	if q.breakerEngagedLocked() {
		fut := newFuture()
		fut.resolve(nil, capstriperr.New(capstriperr.CircuitOpen, "queue: breaker open"))
		q.logger.Warn("request rejected: circuit open", "label", req.Label)
		return fut
	}

	fut := newFuture()
	it := &item{
		id:        uuid.New(),
		label:     req.Label,
		priority:  req.Priority,
		attempt:   0,
		execute:   req.Execute,
		future:    fut,
		createdAt: q.now(),
		seq:       q.nextSeqLocked(),
	}
	if req.Label != "" {
		q.labels[req.Label] = fut
	}
	q.enqueueLocked(it)
	q.logger.Info("request queued", "request_id", it.id, "label", it.label, "priority", it.priority)
	q.dispatchLocked()
	return fut
}

func (q *RequestQueue) nextSeqLocked() uint64 {
	q.nextSeq++
	return q.nextSeq
}

// breakerEngagedLocked reports whether the breaker currently rejects new
// submissions, closing it (and resetting consecutive_failures) if the
// reset window has elapsed. Caller must hold q.mu.
func (q *RequestQueue) breakerEngagedLocked() bool {
	if !q.breakerOpen {
		return false
	}
	if q.now().Sub(q.breakerOpenedAt) >= q.cfg.BreakerResetWindow {
		q.breakerOpen = false
		q.consecutiveFailures = 0
		q.logger.Info("circuit breaker closed")
		return false
	}
	return true
}

func (q *RequestQueue) enqueueLocked(it *item) {
	b, ok := q.bands[it.priority]
	if !ok {
		b = &band{priority: it.priority}
		q.bands[it.priority] = b
		q.rebuildPriorityOrderLocked()
	}
	b.pushBack(it)
}

func (q *RequestQueue) requeueFrontLocked(it *item) {
	b, ok := q.bands[it.priority]
	if !ok {
		b = &band{priority: it.priority}
		q.bands[it.priority] = b
		q.rebuildPriorityOrderLocked()
	}
	b.pushFront(it)
}

func (q *RequestQueue) rebuildPriorityOrderLocked() {
	order := make([]int, 0, len(q.bands))
	for p := range q.bands {
		order = append(order, p)
	}
	// small N; simple insertion sort keeps this allocation-free in practice
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && order[j-1] > order[j]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
	q.priorityOrder = order
}

// dispatchLocked dispatches as many ready requests as current concurrency
// and rate-limit spacing allow. Caller must hold q.mu. If a request is
// only blocked by min_interval spacing, a timer is armed to retry
// dispatch once that spacing elapses.
func (q *RequestQueue) dispatchLocked() {
	for {
		if q.inFlight >= q.cfg.MaxConcurrent {
			return
		}
		it := q.peekNextLocked()
		if it == nil {
			return
		}

		if !q.lastDispatchAt.IsZero() {
			elapsed := q.now().Sub(q.lastDispatchAt)
			if elapsed < q.cfg.MinInterval {
				wait := q.cfg.MinInterval - elapsed
				q.armTimerLocked(wait, func() {
					q.mu.Lock()
					defer q.mu.Unlock()
					q.dispatchLocked()
				})
				return
			}
		}

		q.popNextLocked()
		q.lastDispatchAt = q.now()
		q.inFlight++
		q.inFlightItems[it.id] = it
		go q.run(it, q.ctx)
	}
}

func (q *RequestQueue) peekNextLocked() *item {
	for _, p := range q.priorityOrder {
		b := q.bands[p]
		if b != nil && len(b.items) > 0 {
			return b.items[0]
		}
	}
	return nil
}

func (q *RequestQueue) popNextLocked() *item {
	for _, p := range q.priorityOrder {
		b := q.bands[p]
		if b != nil && len(b.items) > 0 {
			return b.popFront()
		}
	}
	return nil
}

func (q *RequestQueue) armTimerLocked(d time.Duration, fn func()) {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		q.mu.Lock()
		delete(q.timers, t)
		q.mu.Unlock()
		fn()
	})
	q.timers[t] = struct{}{}
}

// run executes it outside the lock, racing request_timeout_ms, then
// reports the outcome back to the queue. queueCtx is cancelled by Clear(),
// in addition to the Future already being force-resolved Cancelled there,
// so an execute callback that respects ctx stops promptly too.
func (q *RequestQueue) run(it *item, queueCtx context.Context) {
	q.logger.Info("request started", "request_id", it.id, "label", it.label, "attempt", it.attempt)

	ctx, cancel := context.WithTimeout(queueCtx, q.cfg.RequestTimeout)
	defer cancel()

	type outcome struct {
		val any
		err error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		v, err := it.execute(ctx)
		resultCh <- outcome{v, err}
	}()

	var res outcome
	select {
	case res = <-resultCh:
	case <-ctx.Done():
		res = outcome{nil, capstriperr.New(capstriperr.Timeout, "queue: request_id %s exceeded timeout", it.id)}
	}

	q.mu.Lock()
	q.inFlight--
	delete(q.inFlightItems, it.id)
	if q.closed {
		// Clear() already force-resolved it.future with Cancelled; this
		// outcome (real or timeout-shaped) is stale and must not retry,
		// count against the breaker, or reopen cleared bands/labels.
		q.mu.Unlock()
		return
	}
	if res.err == nil {
		q.completeSuccessLocked(it, res.val)
	} else {
		q.completeFailureLocked(it, res.err)
	}
	q.dispatchLocked()
	q.mu.Unlock()
}

func (q *RequestQueue) completeSuccessLocked(it *item, val any) {
	q.logger.Info("request completed", "request_id", it.id, "label", it.label, "attempt", it.attempt)
	q.consecutiveFailures = 0
	q.clearLabelLocked(it)
	it.future.resolve(val, nil)
}

func (q *RequestQueue) completeFailureLocked(it *item, err error) {
	kind := capstriperr.KindOf(err)
	if kind.Retryable() && it.attempt < q.cfg.MaxRetries {
		it.attempt++
		delay := backoffDelay(q.cfg.RetryBase, q.cfg.RetryMax, it.attempt)
		q.logger.Warn("request failed, retrying", "request_id", it.id, "label", it.label,
			"attempt", it.attempt, "kind", kind.String(), "delay", delay)
		q.armTimerLocked(delay, func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			if q.closed {
				// Clear() already resolved it.future with Cancelled.
				return
			}
			q.requeueFrontLocked(it)
			q.dispatchLocked()
		})
		return
	}

	// Terminal failure: either non-retryable kind, or retries exhausted.
	q.consecutiveFailures++
	q.logger.Error("request failed permanently", "request_id", it.id, "label", it.label,
		"attempt", it.attempt, "kind", kind.String(), "consecutive_failures", q.consecutiveFailures)
	if q.consecutiveFailures >= q.cfg.BreakerThreshold {
		q.breakerOpen = true
		q.breakerOpenedAt = q.now()
		q.logger.Error("circuit breaker opened", "consecutive_failures", q.consecutiveFailures)
	}
	q.clearLabelLocked(it)
	it.future.resolve(nil, err)
}

func (q *RequestQueue) clearLabelLocked(it *item) {
	if it.label == "" {
		return
	}
	if cur, ok := q.labels[it.label]; ok && cur == it.future {
		delete(q.labels, it.label)
	}
}

// backoffDelay computes min(retryBase * 2^(attempt-1), retryMax) per
// spec.md §4.2.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Clear rejects all queued and in-flight futures with Cancelled and
// disarms every scheduled timer. After Clear returns, no further
// callbacks fire.
func (q *RequestQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cancel()

	for t := range q.timers {
		t.Stop()
	}
	q.timers = make(map[*time.Timer]struct{})

	for _, b := range q.bands {
		for _, it := range b.items {
			it.future.resolve(nil, capstriperr.New(capstriperr.Cancelled, "queue: cleared"))
		}
		b.items = nil
	}
	q.bands = make(map[int]*band)
	q.priorityOrder = nil

	for _, it := range q.inFlightItems {
		it.future.resolve(nil, capstriperr.New(capstriperr.Cancelled, "queue: cleared"))
	}
	q.inFlightItems = make(map[uuid.UUID]*item)

	q.labels = make(map[string]*Future)
	q.closed = true
	q.logger.Info("queue cleared")
}

// Reopen allows a cleared queue to accept submissions again, resetting
// breaker and failure state. Used by tests and long-lived engines that
// want to recycle a queue instance rather than constructing a new one.
func (q *RequestQueue) Reopen() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = false
	q.consecutiveFailures = 0
	q.breakerOpen = false
	q.ctx, q.cancel = context.WithCancel(context.Background())
}

// Stats is a point-in-time snapshot for observability (spec.md §2).
type Stats struct {
	InFlight            int
	Queued              int
	ConsecutiveFailures int
	BreakerOpen         bool
}

// Stats returns the current queue occupancy and breaker state.
func (q *RequestQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued := 0
	for _, b := range q.bands {
		queued += len(b.items)
	}
	return Stats{
		InFlight:            q.inFlight,
		Queued:              queued,
		ConsecutiveFailures: q.consecutiveFailures,
		BreakerOpen:         q.breakerOpen,
	}
}

// MergeStats combines the Stats of two independently-gated RequestQueue
// instances (this engine runs one for year fetches, one for tile renders,
// per internal/engine's wiring) into a single observability view.
func MergeStats(a, b Stats) Stats {
	breakerOpen := a.BreakerOpen || b.BreakerOpen
	consecutiveFailures := a.ConsecutiveFailures
	if b.ConsecutiveFailures > consecutiveFailures {
		consecutiveFailures = b.ConsecutiveFailures
	}
	return Stats{
		InFlight:            a.InFlight + b.InFlight,
		Queued:              a.Queued + b.Queued,
		ConsecutiveFailures: consecutiveFailures,
		BreakerOpen:         breakerOpen,
	}
}
