// Package eventloop provides the single-threaded cooperative scheduler that
// every camera, sampling and state transition callback runs on.
//
// The loop owns two queues:
//   - tasks, posted from any goroutine with Post and executed in FIFO order;
//   - frame callbacks, registered with ScheduleNext and executed once on the
//     next frame tick.
//
// Blocking work (device acquisition, HTTP round trips, timers) never runs on
// the loop itself. It is started with Go or AfterFunc and hands a continuation
// back to the loop when it finishes.
package eventloop

import (
	"context"
	"sync"
	"time"
)

// Token identifies one cancellable frame loop. Tokens are never reused.
type Token uint64

// Scheduler is the frame scheduling primitive used by frame loops.
type Scheduler interface {
	// NewToken allocates a live token.
	NewToken() Token
	// ScheduleNext queues fn to run on the next frame tick. It is a no-op when
	// token has been cancelled.
	ScheduleNext(token Token, fn func())
	// Cancel invalidates token. Callbacks already queued for it are dropped on
	// arrival. Cancelling twice is a no-op.
	Cancel(token Token)
}

type frameCallback struct {
	token Token
	fn    func()
}

// Loop is the default Scheduler implementation. The zero value is not usable;
// construct it with New.
type Loop struct {
	// interval is the frame tick period used by Run.
	interval time.Duration

	// mu protects every field below it.
	mu        sync.Mutex
	tasks     []func()
	frame     []frameCallback
	live      map[Token]struct{}
	lastToken Token

	// wake is signalled (non-blocking) whenever a task is posted.
	wake chan struct{}
	// async counts off-loop work whose continuation has not been posted yet.
	async sync.WaitGroup
}

// New constructs a Loop ticking every interval once Run is called.
func New(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = time.Second / 30
	}

	return &Loop{
		interval: interval,
		live:     make(map[Token]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// NewToken allocates a live token.
func (l *Loop) NewToken() Token {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastToken++
	l.live[l.lastToken] = struct{}{}

	return l.lastToken
}

// ScheduleNext queues fn for the next frame tick unless token is cancelled.
func (l *Loop) ScheduleNext(token Token, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.live[token]; !ok {
		return
	}
	l.frame = append(l.frame, frameCallback{token: token, fn: fn})
}

// Cancel invalidates token.
func (l *Loop) Cancel(token Token) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.live, token)
}

// Live reports whether token has not been cancelled yet.
func (l *Loop) Live(token Token) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.live[token]

	return ok
}

// Post queues fn to run on the loop. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs work on its own goroutine and posts the continuation it returns back
// to the loop. A nil continuation is ignored.
func (l *Loop) Go(work func() func()) {
	l.async.Add(1)
	go func() {
		defer l.async.Done()

		if then := work(); then != nil {
			l.Post(then)
		}
	}()
}

// AfterFunc posts fn to the loop once d has elapsed. The returned stop function
// prevents fn from being posted if the timer has not fired yet.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (stop func()) {
	l.async.Add(1)
	var once sync.Once
	done := func() { once.Do(l.async.Done) }

	t := time.AfterFunc(d, func() {
		defer done()
		l.Post(fn)
	})

	return func() {
		if t.Stop() {
			done()
		}
	}
}

// Call runs fn on the loop and waits for its result. It must not be called
// from the loop goroutine itself.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	l.Post(func() { res <- fn() })

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick runs every frame callback that was scheduled before the tick started.
// Callbacks scheduled while the tick runs wait for the following tick.
func (l *Loop) Tick() {
	l.mu.Lock()
	pending := l.frame
	l.frame = nil
	l.mu.Unlock()

	for _, cb := range pending {
		if !l.Live(cb.token) {
			continue
		}
		cb.fn()
	}
}

// runTasks executes the queued tasks and reports whether any ran.
func (l *Loop) runTasks() bool {
	ran := false
	for {
		l.mu.Lock()
		pending := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		if len(pending) == 0 {
			return ran
		}
		ran = true
		for _, fn := range pending {
			fn()
		}
	}
}

// Drain runs queued tasks until no task is pending and no off-loop work is
// outstanding. Frame callbacks are not run. It must not be used concurrently
// with Run; it exists to drive the loop deterministically.
func (l *Loop) Drain() {
	for {
		l.async.Wait()
		if !l.runTasks() {
			return
		}
	}
}

// Run drives the loop on the calling goroutine until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			l.runTasks()
		case <-ticker.C:
			l.runTasks()
			l.Tick()
		}
	}
}

// Ensure Loop conforms to the Scheduler interface at compile time.
var _ Scheduler = (*Loop)(nil)
