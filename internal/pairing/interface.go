package pairing

import "context"

// Operator is the operator-facing control surface of a scan station. It is
// safe for concurrent use.
//
//go:generate mockgen -package mockpairing -source=interface.go -destination=mock/mockpairing.go *
type Operator interface {
	// Start begins a cycle. It fails with serrors.ErrConflict unless Idle.
	Start(ctx context.Context) error
	// Trigger is the scan action; see Controller.Trigger.
	Trigger(ctx context.Context) error
	// Reset returns to Idle from any state.
	Reset(ctx context.Context) error
	// Snapshot returns the current state.
	Snapshot(ctx context.Context) (Snapshot, error)
}
