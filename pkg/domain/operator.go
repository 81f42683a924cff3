package domain

import "github.com/google/uuid"

// OperatorID uniquely identifies the operator driving a scan station.
type OperatorID uuid.UUID

// String returns the canonical textual form of the operator ID.
func (o OperatorID) String() string { return uuid.UUID(o).String() }
