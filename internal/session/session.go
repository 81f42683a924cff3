// Package session manages camera sessions: at most one live capture stream per
// scan slot, each tied to the scheduling token of its frame loop.
package session

import (
	"context"
	"fmt"
	"pairscan/internal/eventloop"
	"pairscan/pkg/capture"
	"pairscan/pkg/domain"
	"pairscan/pkg/logger"
	"pairscan/pkg/metrics"
	"pairscan/pkg/serrors"
	"time"

	"go.uber.org/zap"
)

// Executor runs blocking work off the event loop and posts its continuation back.
type Executor interface {
	Go(work func() func())
}

// Session owns one capture stream for one slot. It must only be used on the
// event loop goroutine.
type Session struct {
	slot   domain.Slot
	stream capture.Stream
	token  eventloop.Token
	sched  eventloop.Scheduler
	closed bool
}

// Slot returns the slot the session belongs to.
func (s *Session) Slot() domain.Slot { return s.slot }

// Stream returns the stream owned by the session.
func (s *Session) Stream() capture.Stream { return s.stream }

// Token returns the frame loop token cancelled when the session closes.
func (s *Session) Token() eventloop.Token { return s.token }

// Closed reports whether the session was closed. A nil session is closed.
func (s *Session) Closed() bool { return s == nil || s.closed }

// Close cancels the frame loop token and releases the stream. It is safe to
// call on a nil or already closed session.
func (s *Session) Close(ctx context.Context) error {
	if s.Closed() {
		return nil
	}
	s.closed = true
	s.sched.Cancel(s.token)

	if err := s.stream.Release(); err != nil {
		return fmt.Errorf("could not release %s stream: %w", s.slot, err)
	}
	logger.Debug(ctx, "camera session closed", zap.String("slot", string(s.slot)))

	return nil
}

// Options configure stream acquisition.
type Options struct {
	// Facing is the camera requested from the device.
	Facing capture.Facing
	// AcquireTimeout bounds a single acquisition. Zero means no timeout.
	AcquireTimeout time.Duration
}

// Manager opens and closes sessions, keeping at most one per slot. It must
// only be used on the event loop goroutine.
type Manager struct {
	device   capture.Device
	sched    eventloop.Scheduler
	exec     Executor
	options  Options
	sessions map[domain.Slot]*Session
	// pending holds the generation of the in-flight acquisition of each slot.
	pending map[domain.Slot]uint64
	gen     uint64
}

// NewManager constructs a Manager.
func NewManager(device capture.Device, sched eventloop.Scheduler, exec Executor, options Options) *Manager {
	if options.Facing == "" {
		options.Facing = capture.FacingEnvironment
	}

	return &Manager{
		device:   device,
		sched:    sched,
		exec:     exec,
		options:  options,
		sessions: make(map[domain.Slot]*Session),
		pending:  make(map[domain.Slot]uint64),
	}
}

// Open releases any session of slot and acquires a new stream off the loop.
// done is called on the loop with the new session, or with an
// ErrAcquisitionFailed error. If the slot is closed or reopened before the
// acquisition completes, the late stream is released and done is never called.
func (m *Manager) Open(ctx context.Context, slot domain.Slot, done func(*Session, error)) {
	m.Close(ctx, slot)

	m.gen++
	gen := m.gen
	m.pending[slot] = gen

	logger.Debug(ctx, "acquiring camera stream", zap.String("slot", string(slot)))

	m.exec.Go(func() func() {
		actx := ctx
		if m.options.AcquireTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, m.options.AcquireTimeout)
			defer cancel()
		}

		stream, err := m.device.Acquire(actx, capture.StreamRequest{Slot: slot, Facing: m.options.Facing})

		return func() {
			if m.pending[slot] != gen {
				if stream != nil {
					_ = stream.Release()
				}
				logger.Debug(ctx, "dropping stale camera acquisition", zap.String("slot", string(slot)))

				return
			}
			delete(m.pending, slot)

			if err != nil {
				metrics.Acquisitions.WithLabelValues(string(slot), "failed").Inc()
				done(nil, serrors.Wrap(serrors.ErrAcquisitionFailed, err, "could not acquire %s camera", slot))

				return
			}

			metrics.Acquisitions.WithLabelValues(string(slot), "ok").Inc()
			s := &Session{
				slot:   slot,
				stream: stream,
				token:  m.sched.NewToken(),
				sched:  m.sched,
			}
			m.sessions[slot] = s
			done(s, nil)
		}
	})
}

// Get returns the live session of slot, or nil.
func (m *Manager) Get(slot domain.Slot) *Session {
	return m.sessions[slot]
}

// Pending reports whether an acquisition for slot is in flight.
func (m *Manager) Pending(slot domain.Slot) bool {
	_, ok := m.pending[slot]

	return ok
}

// Close releases the session of slot and abandons any in-flight acquisition.
// Closing a slot without a session is a no-op.
func (m *Manager) Close(ctx context.Context, slot domain.Slot) {
	delete(m.pending, slot)

	s, ok := m.sessions[slot]
	if !ok {
		return
	}
	delete(m.sessions, slot)

	if err := s.Close(ctx); err != nil {
		logger.Warn(ctx, "could not close camera session", zap.String("slot", string(slot)), zap.Error(err))
	}
}

// CloseAll releases every session.
func (m *Manager) CloseAll(ctx context.Context) {
	for _, slot := range domain.Slots {
		m.Close(ctx, slot)
	}
}
