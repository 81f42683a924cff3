package pairing

import (
	"fmt"
	"pairscan/pkg/domain"
)

// State is a step of the pairing workflow.
type State int

const (
	StateIdle State = iota
	StateAwaitingFirstPreview
	StateReadyToScanFirst
	StateScanningFirst
	StateAwaitingSecondPreview
	StateReadyToScanSecond
	StateScanningSecond
	StateVerifying
	// StateSettled shows the outcome until the settle timer resets the cycle.
	StateSettled
)

var stateNames = [...]string{ //nolint: gochecknoglobals
	StateIdle:                  "Idle",
	StateAwaitingFirstPreview:  "AwaitingFirstPreview",
	StateReadyToScanFirst:      "ReadyToScanFirst",
	StateScanningFirst:         "ScanningFirst",
	StateAwaitingSecondPreview: "AwaitingSecondPreview",
	StateReadyToScanSecond:     "ReadyToScanSecond",
	StateScanningSecond:        "ScanningSecond",
	StateVerifying:             "Verifying",
	StateSettled:               "Settled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Slot returns the slot whose camera the state is about, or "" when none is.
func (s State) Slot() domain.Slot {
	switch s {
	case StateAwaitingFirstPreview, StateReadyToScanFirst, StateScanningFirst:
		return domain.SlotFirst
	case StateAwaitingSecondPreview, StateReadyToScanSecond, StateScanningSecond:
		return domain.SlotSecond
	default:
		return ""
	}
}

// Authorizes reports whether the state allows decoding frames of slot.
func (s State) Authorizes(slot domain.Slot) bool {
	return (s == StateScanningFirst && slot == domain.SlotFirst) ||
		(s == StateScanningSecond && slot == domain.SlotSecond)
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	State   State                `json:"state"`
	CycleID string               `json:"cycleId,omitempty"`
	First   *domain.CapturedCode `json:"first,omitempty"`
	Second  *domain.CapturedCode `json:"second,omitempty"`
	Outcome domain.Outcome       `json:"outcome,omitempty"`
	// Error is the last failure surfaced to the operator in this cycle.
	Error string `json:"error,omitempty"`
}
