package zxing_test

import (
	"image"
	"image/color"
	"pairscan/internal/sampler"
	"pairscan/pkg/decoder/zxing"
	"testing"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/require"
)

func qrImage(t *testing.T, text string, size int) image.Image {
	t.Helper()
	q, err := qrcode.New(text, qrcode.Medium)
	require.NoError(t, err)

	return q.Image(size)
}

func TestDecoder_DecodesQRCode(t *testing.T) {
	d := zxing.New(zxing.Options{})

	text, ok := d.Decode(qrImage(t, "DLV-001", 256))
	require.True(t, ok)
	require.Equal(t, "DLV-001", text)
}

func TestDecoder_DecodesCodeInsideAimWindow(t *testing.T) {
	d := zxing.New(zxing.Options{TryHarder: true})

	// a camera-sized frame with the code centred, as the operator aims it
	frame := imaging.New(640, 480, color.White)
	frame = imaging.PasteCenter(frame, qrImage(t, "PRD-42/a b", 180))

	aim := sampler.CropAim(frame, 200)
	require.Equal(t, image.Rect(0, 0, 200, 200), aim.Bounds())

	text, ok := d.Decode(aim)
	require.True(t, ok)
	require.Equal(t, "PRD-42/a b", text)
}

func TestDecoder_NoCode(t *testing.T) {
	d := zxing.New(zxing.Options{})

	_, ok := d.Decode(imaging.New(200, 200, color.White))
	require.False(t, ok)

	_, ok = d.Decode(nil)
	require.False(t, ok)
}
