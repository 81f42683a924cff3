// Package decoder defines the code decoding capability used by the frame
// sampler. Implementations live in sub-packages.
package decoder

import "image"

// Decoder extracts a text payload from an image.
//
//go:generate mockgen -package mockdecoder -source=interface.go -destination=mock/mockdecoder.go *
type Decoder interface {
	// Decode returns the payload found in img. ok is false when no code could
	// be read, which is not an error: the caller simply tries the next frame.
	Decode(img image.Image) (text string, ok bool)
}
