package domain

import "time"

// CapturedCode is the decoded payload of one slot. It is set once per scan
// cycle and never modified afterwards.
type CapturedCode struct {
	// Slot is the scan position the code was read from.
	Slot Slot `json:"slot"`
	// Text is the decoded payload, kept exactly as the decoder returned it.
	Text string `json:"text"`
	// CapturedAt is when the decoder produced the payload.
	CapturedAt time.Time `json:"capturedAt"`
}

// Outcome is the user-visible result of a verification round trip.
type Outcome string

const (
	// OutcomeNone means no verification has settled in the current cycle.
	OutcomeNone Outcome = ""
	// OutcomeMatched means the verification service confirmed the pair.
	OutcomeMatched Outcome = "matched"
	// OutcomeUnmatched means the service answered but did not confirm the pair.
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeFailed means the service could not be reached or answered with an error.
	// It follows the unmatched flow but is reported as a transport problem.
	OutcomeFailed Outcome = "failed"
)
