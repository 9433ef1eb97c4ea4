// Package debounce provides a generic coalescing write scheduler. Bursts of
// mutations for one key collapse into a single flush of the latest payload.
package debounce

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// FlushFunc persists a payload. It must be idempotent: the scheduler calls
// it again on retry and skips it entirely when the payload is unchanged.
type FlushFunc func(ctx context.Context, payload any) error

// Scheduler coalesces per-key writes. Each key gets its own lane goroutine,
// so flush order within a key is FIFO by construction; a global semaphore
// caps flushes running at once across keys. Keys progress independently.
type Scheduler struct {
	semaphore  *semaphore.Weighted
	retryDelay time.Duration
	onError    func(key string, err error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lanes   map[string]*lane
	stopped bool
}

type laneEvent struct {
	payload any
	flush   FlushFunc
	delay   time.Duration
	cancel  bool
}

type lane struct {
	events chan laneEvent
}

// laneBuffer bounds queued events per key. Only the newest event matters, so
// Schedule drops the oldest queued event when the buffer is full.
const laneBuffer = 16

// New creates a Scheduler that allows up to maxConcurrent flushes to run
// simultaneously across all keys.
func New(maxConcurrent int64) *Scheduler {
	return &Scheduler{
		semaphore:  semaphore.NewWeighted(maxConcurrent),
		retryDelay: 5 * time.Second,
		lanes:      make(map[string]*lane),
	}
}

// SetRetryDelay overrides the fixed delay before the single retry of a
// failed flush.
func (s *Scheduler) SetRetryDelay(d time.Duration) {
	s.retryDelay = d
}

// SetOnError sets a callback invoked after a flush has failed twice. The
// payload is dropped at that point; the next Schedule call for the key will
// carry fresher state anyway.
func (s *Scheduler) SetOnError(fn func(key string, err error)) {
	s.onError = fn
}

// Start initialises the scheduler's context. Must be called before Schedule.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
}

// Stop cancels the scheduler context, closes all lanes, and waits for
// in-flight flushes to finish. Pending timers are discarded without flushing.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		for _, ln := range s.lanes {
			close(ln.events)
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Schedule records payload as the latest state for key and (re)arms the
// key's debounce timer for delay. Earlier unflushed payloads for the same
// key are superseded and never sent.
func (s *Scheduler) Schedule(key string, payload any, flush FlushFunc, delay time.Duration) {
	ln := s.getLane(key)
	if ln == nil {
		return
	}
	s.push(ln, laneEvent{payload: payload, flush: flush, delay: delay})
}

// Cancel discards any pending timer and queued payloads for key without
// flushing. Used on teardown of the surface that owns the key.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	ln, ok := s.lanes[key]
	stopped := s.stopped
	s.mu.Unlock()
	if !ok || stopped {
		return
	}
	s.push(ln, laneEvent{cancel: true})
}

func (s *Scheduler) getLane(key string) *lane {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	ln, ok := s.lanes[key]
	if !ok {
		ln = &lane{events: make(chan laneEvent, laneBuffer)}
		s.lanes[key] = ln
		s.wg.Add(1)
		go s.runLane(key, ln)
	}
	return ln
}

// push enqueues without blocking: if the lane buffer is full, the oldest
// queued event is dropped first. Superseded payloads are never flushed.
func (s *Scheduler) push(ln *lane, ev laneEvent) {
	for {
		select {
		case ln.events <- ev:
			return
		default:
			select {
			case <-ln.events:
			default:
			}
		}
	}
}

// runLane drains a single key's events. A schedule event resets the timer;
// the timer firing flushes the latest payload. Because the flush happens in
// this goroutine, a payload scheduled during a flush simply waits its turn:
// nothing is lost and nothing runs concurrently for one key.
func (s *Scheduler) runLane(key string, ln *lane) {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer timer.Stop()

	var pending *laneEvent
	var lastFlushed any
	var hasFlushed bool

	for {
		select {
		case ev, ok := <-ln.events:
			if !ok {
				return
			}
			if ev.cancel {
				pending = nil
				stopTimer(timer)
				continue
			}
			pending = &ev
			stopTimer(timer)
			timer.Reset(ev.delay)

		case <-timer.C:
			if pending == nil {
				continue
			}
			ev := *pending
			pending = nil

			if hasFlushed && reflect.DeepEqual(ev.payload, lastFlushed) {
				slog.Debug("skipping flush of unchanged payload", "key", key)
				continue
			}
			if err := s.runFlush(key, ev); err != nil {
				slog.Error("flush failed after retry", "key", key, "error", err)
				if s.onError != nil {
					s.onError(key, err)
				}
				continue
			}
			lastFlushed = ev.payload
			hasFlushed = true

		case <-s.ctx.Done():
			return
		}
	}
}

// runFlush calls the flush function, retrying exactly once after a fixed
// delay. Saves are idempotent and low-stakes, so eventual persistence beats
// strict failure propagation here.
func (s *Scheduler) runFlush(key string, ev laneEvent) error {
	if err := s.semaphore.Acquire(s.ctx, 1); err != nil {
		return err
	}
	defer s.semaphore.Release(1)

	err := ev.flush(s.ctx, ev.payload)
	if err == nil {
		return nil
	}

	slog.Warn("flush failed, retrying", "key", key, "retry_in", s.retryDelay, "error", err)
	select {
	case <-time.After(s.retryDelay):
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	return ev.flush(s.ctx, ev.payload)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
