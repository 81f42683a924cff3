// Package capture defines the media capture capability used to obtain live
// video streams for a scan slot. Concrete devices live in sub-packages.
package capture

import (
	"context"
	"image"
	"pairscan/pkg/domain"
)

// Facing selects which physical camera a device should open.
type Facing string

const (
	// FacingEnvironment is the rear camera, pointing away from the operator.
	FacingEnvironment Facing = "environment"
	// FacingUser is the front camera.
	FacingUser Facing = "user"
)

// StreamRequest describes the stream a slot needs.
type StreamRequest struct {
	Slot   domain.Slot
	Facing Facing
}

// Stream is a live video stream. Ready, Frame and Release are only ever called
// from the event loop goroutine.
type Stream interface {
	// Ready reports whether the stream is producing readable frames yet.
	Ready() bool
	// Frame returns the current frame, or nil when none is available.
	Frame() image.Image
	// Release stops the stream. Releasing an already released stream is a no-op.
	Release() error
}

// Device acquires streams. Acquire may block (e.g. waiting for a permission
// prompt) and is therefore never called on the event loop.
type Device interface {
	Acquire(ctx context.Context, req StreamRequest) (Stream, error)
}
