// Package verifier defines the verification capability asked whether a
// captured first/second code pair belongs together.
package verifier

import (
	"context"
	"pairscan/pkg/domain"
)

// Result is the interpreted answer of a verification round trip.
type Result struct {
	// Outcome is OutcomeMatched or OutcomeUnmatched. Failed round trips are
	// reported as an error instead.
	Outcome domain.Outcome
	// Body is the raw response text.
	Body string
}

// Client verifies code pairs against a remote service.
//
//go:generate mockgen -package mockverifier -source=interface.go -destination=mock/mockverifier.go *
type Client interface {
	// Verify submits both codes. Errors are of kind serrors.ErrNetworkFailure.
	Verify(ctx context.Context, first, second string) (Result, error)
}
