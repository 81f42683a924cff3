package session_test

import (
	"context"
	"errors"
	"image"
	"pairscan/internal/eventloop"
	"pairscan/internal/session"
	"pairscan/pkg/capture"
	"pairscan/pkg/capture/capturetest"
	"pairscan/pkg/domain"
	"pairscan/pkg/serrors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*eventloop.Loop, *capturetest.Device, *session.Manager) {
	t.Helper()

	loop := eventloop.New(time.Millisecond)
	dev := capturetest.NewDevice(image.NewGray(image.Rect(0, 0, 320, 240)))
	m := session.NewManager(dev, loop, loop, session.Options{})

	return loop, dev, m
}

// open opens slot and drains the loop, returning what done received.
func open(t *testing.T, loop *eventloop.Loop, m *session.Manager, slot domain.Slot) (*session.Session, error) {
	t.Helper()

	var (
		got    *session.Session
		gotErr error
		calls  int
	)
	m.Open(context.Background(), slot, func(s *session.Session, err error) {
		calls++
		got, gotErr = s, err
	})
	loop.Drain()
	require.Equal(t, 1, calls, "done must be called exactly once")

	return got, gotErr
}

func TestManager_OpenAndClose(t *testing.T) {
	loop, dev, m := newTestManager(t)

	s, err := open(t, loop, m, domain.SlotFirst)
	require.NoError(t, err)
	require.Equal(t, domain.SlotFirst, s.Slot())
	require.False(t, s.Closed())
	require.True(t, loop.Live(s.Token()))
	require.Same(t, s, m.Get(domain.SlotFirst))

	reqs := dev.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, capture.FacingEnvironment, reqs[0].Facing)

	m.Close(context.Background(), domain.SlotFirst)
	require.True(t, s.Closed())
	require.False(t, loop.Live(s.Token()), "closing cancels the frame loop token")
	require.Nil(t, m.Get(domain.SlotFirst))
	require.Equal(t, 0, dev.Live(domain.SlotFirst))

	// close followed by close is a no-op
	require.NotPanics(t, func() { m.Close(context.Background(), domain.SlotFirst) })
	require.NoError(t, s.Close(context.Background()))
	require.Len(t, dev.Acquired(domain.SlotFirst), 1)
}

func TestSession_CloseNil(t *testing.T) {
	var s *session.Session
	require.True(t, s.Closed())
	require.NoError(t, s.Close(context.Background()))
}

func TestManager_ReopenReleasesPrevious(t *testing.T) {
	loop, dev, m := newTestManager(t)

	first, err := open(t, loop, m, domain.SlotFirst)
	require.NoError(t, err)
	second, err := open(t, loop, m, domain.SlotFirst)
	require.NoError(t, err)

	require.True(t, first.Closed())
	require.False(t, second.Closed())
	require.Equal(t, 1, dev.Live(domain.SlotFirst), "at most one live session per slot")
}

func TestManager_SlotsAreIndependent(t *testing.T) {
	loop, dev, m := newTestManager(t)

	_, err := open(t, loop, m, domain.SlotFirst)
	require.NoError(t, err)
	_, err = open(t, loop, m, domain.SlotSecond)
	require.NoError(t, err)

	require.Equal(t, 1, dev.Live(domain.SlotFirst))
	require.Equal(t, 1, dev.Live(domain.SlotSecond))

	m.CloseAll(context.Background())
	require.Equal(t, 0, dev.Live(domain.SlotFirst))
	require.Equal(t, 0, dev.Live(domain.SlotSecond))
}

func TestManager_AcquisitionFailure(t *testing.T) {
	loop, dev, m := newTestManager(t)
	denied := errors.New("permission denied")
	dev.QueueError(domain.SlotFirst, denied)

	s, err := open(t, loop, m, domain.SlotFirst)
	require.Nil(t, s)
	require.ErrorIs(t, err, serrors.ErrAcquisitionFailed)
	require.ErrorIs(t, err, denied)
	require.Nil(t, m.Get(domain.SlotFirst))
	require.False(t, m.Pending(domain.SlotFirst))
}

func TestManager_StaleAcquisitionIsReleased(t *testing.T) {
	loop, dev, m := newTestManager(t)
	dev.Block = make(chan struct{})

	called := false
	m.Open(context.Background(), domain.SlotSecond, func(*session.Session, error) { called = true })
	require.True(t, m.Pending(domain.SlotSecond))

	// reset while the device is still acquiring
	m.CloseAll(context.Background())
	close(dev.Block)
	loop.Drain()

	require.False(t, called, "a late acquisition must not be reported")
	require.Nil(t, m.Get(domain.SlotSecond))
	require.Len(t, dev.Acquired(domain.SlotSecond), 1)
	require.Equal(t, 0, dev.Live(domain.SlotSecond), "a late stream must be released")
}
