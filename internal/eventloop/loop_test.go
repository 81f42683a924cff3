package eventloop_test

import (
	"context"
	"errors"
	"pairscan/internal/eventloop"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoop_ScheduleNextRunsOnNextTick(t *testing.T) {
	l := eventloop.New(time.Millisecond)
	tok := l.NewToken()

	calls := 0
	var tick func()
	tick = func() {
		calls++
		l.ScheduleNext(tok, tick)
	}
	l.ScheduleNext(tok, tick)

	require.Equal(t, 0, calls, "nothing runs before the first tick")
	l.Tick()
	require.Equal(t, 1, calls, "rescheduled callback must wait for the following tick")
	l.Tick()
	require.Equal(t, 2, calls)
}

func TestLoop_CancelDropsQueuedCallbacks(t *testing.T) {
	l := eventloop.New(time.Millisecond)
	tok := l.NewToken()

	called := false
	l.ScheduleNext(tok, func() { called = true })
	l.Cancel(tok)
	l.Tick()

	require.False(t, called, "in-flight tick must be a no-op after cancel")
	require.False(t, l.Live(tok))

	// scheduling on a dead token and cancelling twice are both no-ops
	l.ScheduleNext(tok, func() { called = true })
	require.NotPanics(t, func() { l.Cancel(tok) })
	l.Tick()
	require.False(t, called)
}

func TestLoop_TokensAreIndependent(t *testing.T) {
	l := eventloop.New(time.Millisecond)
	a, b := l.NewToken(), l.NewToken()
	require.NotEqual(t, a, b)

	var ran []string
	l.ScheduleNext(a, func() { ran = append(ran, "a") })
	l.ScheduleNext(b, func() { ran = append(ran, "b") })
	l.Cancel(a)
	l.Tick()

	require.Equal(t, []string{"b"}, ran)
}

func TestLoop_GoPostsContinuation(t *testing.T) {
	l := eventloop.New(time.Millisecond)

	var order []string
	l.Go(func() func() {
		order = append(order, "work")

		return func() { order = append(order, "then") }
	})
	l.Drain()

	require.Equal(t, []string{"work", "then"}, order)
}

func TestLoop_AfterFunc(t *testing.T) {
	l := eventloop.New(time.Millisecond)

	fired := false
	l.AfterFunc(time.Millisecond, func() { fired = true })
	l.Drain()
	require.True(t, fired)

	stopped := false
	stop := l.AfterFunc(time.Hour, func() { stopped = true })
	stop()
	stop()
	l.Drain()
	require.False(t, stopped, "a stopped timer must never post its callback")
}

func TestLoop_CallWithRunningLoop(t *testing.T) {
	l := eventloop.New(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	sentinel := errors.New("boom")
	err := l.Call(ctx, func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)

	require.NoError(t, l.Call(ctx, func() error { return nil }))
}

func TestLoop_CallHonoursContext(t *testing.T) {
	l := eventloop.New(time.Millisecond)
	// loop is not running, so the call can only end through the context
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Call(ctx, func() error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
