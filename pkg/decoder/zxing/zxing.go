// Package zxing provides a decoder.Decoder for QR codes backed by gozxing.
package zxing

import (
	"image"
	"pairscan/pkg/decoder"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Options configure the QR reader.
type Options struct {
	// TryHarder spends more time looking for a code in each frame.
	TryHarder bool
}

// Decoder reads QR codes. It is not safe for concurrent use; the event loop
// is its only caller.
type Decoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// New constructs a QR Decoder.
func New(options Options) *Decoder {
	hints := map[gozxing.DecodeHintType]interface{}{}
	if options.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	return &Decoder{
		reader: qrcode.NewQRCodeReader(),
		hints:  hints,
	}
}

// Decode binarizes img and looks for a single QR code.
func (d *Decoder) Decode(img image.Image) (string, bool) {
	if img == nil || img.Bounds().Empty() {
		return "", false
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}

	// NotFound, Checksum and Format exceptions all mean "nothing readable in this frame".
	res, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		return "", false
	}

	return res.GetText(), true
}

// Ensure Decoder conforms to the decoder.Decoder interface at compile time.
var _ decoder.Decoder = (*Decoder)(nil)
