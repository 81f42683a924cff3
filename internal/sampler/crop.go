package sampler

import (
	"image"

	"github.com/disintegration/imaging"
)

// AimWindow returns the centered square of the given side inside bounds. The
// side is clamped to the shorter frame dimension so the window always fits:
// cropX = (width - side) / 2 and cropY = (height - side) / 2, never negative.
func AimWindow(bounds image.Rectangle, side int) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	side = min(side, w, h)
	if side < 0 {
		side = 0
	}

	x := max((w-side)/2, 0)
	y := max((h-side)/2, 0)

	return image.Rect(x, y, x+side, y+side).Add(bounds.Min)
}

// CropAim renders the aim window of img into a new side × side buffer.
func CropAim(img image.Image, side int) *image.NRGBA {
	return imaging.Crop(img, AimWindow(img.Bounds(), side))
}
