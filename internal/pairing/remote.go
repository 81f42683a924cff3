package pairing

import (
	"context"
	"errors"
	"pairscan/pkg/logger"
	"pairscan/pkg/serrors"
)

// Caller runs a function on the event loop and waits for its result.
type Caller interface {
	Call(ctx context.Context, fn func() error) error
}

// Remote exposes a Controller to goroutines other than the event loop.
type Remote struct {
	caller     Caller
	controller *Controller
}

// NewRemote constructs a Remote that reaches controller through caller.
func NewRemote(caller Caller, controller *Controller) *Remote {
	return &Remote{caller: caller, controller: controller}
}

// Start implements Operator.
func (r *Remote) Start(ctx context.Context) error {
	logger.Info(ctx, "start requested")

	return r.call(ctx, r.controller.Start)
}

// Trigger implements Operator.
func (r *Remote) Trigger(ctx context.Context) error {
	logger.Info(ctx, "scan triggered")

	return r.call(ctx, r.controller.Trigger)
}

// Reset implements Operator.
func (r *Remote) Reset(ctx context.Context) error {
	return r.call(ctx, r.controller.Reset)
}

// Snapshot implements Operator.
func (r *Remote) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := r.call(ctx, func() error {
		snap = r.controller.Snapshot()

		return nil
	}); err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

func (r *Remote) call(ctx context.Context, fn func() error) error {
	err := r.caller.Call(ctx, fn)
	if errors.Is(err, context.DeadlineExceeded) {
		return serrors.Wrap(serrors.ErrTimeout, err, "scan station did not respond")
	}

	return err
}

// Ensure Remote conforms to the Operator interface at compile time.
var _ Operator = (*Remote)(nil)
