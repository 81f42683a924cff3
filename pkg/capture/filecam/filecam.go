// Package filecam provides a capture.Device backed by directories of still
// images. Each slot reads its own directory; the stream becomes ready after a
// warm-up period and then rotates through the images at a fixed interval, which
// is enough to drive a scan station from pre-recorded frames.
package filecam

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"pairscan/pkg/capture"
	"pairscan/pkg/domain"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// Options configures the file-backed device.
type Options struct {
	// Dirs maps each slot to the directory its frames are read from.
	Dirs map[domain.Slot]string
	// Warmup is how long a freshly acquired stream stays not-ready.
	Warmup time.Duration
	// FrameInterval is how long each image is shown before advancing to the next one.
	FrameInterval time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Device implements capture.Device on top of image files.
type Device struct {
	options Options
}

// New constructs a Device with the given options.
func New(options Options) *Device {
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.FrameInterval <= 0 {
		options.FrameInterval = time.Second
	}

	return &Device{options: options}
}

// isImageFile checks if a filename has an image extension that we can load.
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp":
		return true
	default:
		return false
	}
}

// Acquire loads every image of the slot's directory and returns a stream over them.
// Facing is ignored: a directory has no physical orientation.
func (d *Device) Acquire(ctx context.Context, req capture.StreamRequest) (capture.Stream, error) {
	dir, ok := d.options.Dirs[req.Slot]
	if !ok || dir == "" {
		return nil, fmt.Errorf("no frame directory configured for slot %s", req.Slot)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not read frame directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	frames := make([]image.Image, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("acquisition cancelled: %w", err)
		}

		img, err := imaging.Open(filepath.Join(dir, name), imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("could not open frame %s: %w", name, err)
		}
		frames = append(frames, img)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}

	return &stream{
		frames:   frames,
		openedAt: d.options.Now(),
		options:  d.options,
	}, nil
}

// stream rotates through pre-loaded frames.
type stream struct {
	frames   []image.Image
	openedAt time.Time
	options  Options
	released bool
}

// Ready reports whether the warm-up period has elapsed.
func (s *stream) Ready() bool {
	if s.released {
		return false
	}

	return s.options.Now().Sub(s.openedAt) >= s.options.Warmup
}

// Frame returns the frame due at the current time.
func (s *stream) Frame() image.Image {
	if !s.Ready() {
		return nil
	}
	elapsed := s.options.Now().Sub(s.openedAt) - s.options.Warmup
	idx := int(elapsed/s.options.FrameInterval) % len(s.frames)

	return s.frames[idx]
}

// Release drops the frames.
func (s *stream) Release() error {
	s.released = true
	s.frames = nil

	return nil
}

// Ensure Device conforms to the capture.Device interface at compile time.
var _ capture.Device = (*Device)(nil)
