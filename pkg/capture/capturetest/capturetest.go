// Package capturetest provides in-memory capture devices for tests.
package capturetest

import (
	"context"
	"image"
	"pairscan/pkg/capture"
	"pairscan/pkg/domain"
	"sync"
)

// Stream is a controllable capture.Stream.
type Stream struct {
	// mu protects every field; tests may inspect a stream from their own goroutine.
	mu       sync.Mutex
	ready    bool
	frame    image.Image
	releases int
}

// NewStream returns a stream serving frame once made ready.
func NewStream(frame image.Image, ready bool) *Stream {
	return &Stream{frame: frame, ready: ready}
}

// SetReady switches whether the stream produces readable frames.
func (s *Stream) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetFrame replaces the current frame.
func (s *Stream) SetFrame(frame image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
}

// Ready implements capture.Stream.
func (s *Stream) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ready && s.releases == 0
}

// Frame implements capture.Stream.
func (s *Stream) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready || s.releases > 0 {
		return nil
	}

	return s.frame
}

// Release implements capture.Stream.
func (s *Stream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++

	return nil
}

// Released reports whether Release was called at least once.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.releases > 0
}

// Device hands out queued streams or errors per slot. When a slot's queue is
// empty it serves a fresh, ready stream of DefaultFrame.
type Device struct {
	// DefaultFrame is served by streams created on demand.
	DefaultFrame image.Image
	// Block, when set, is received from before every acquisition returns.
	Block chan struct{}

	mu       sync.Mutex
	queue    map[domain.Slot][]result
	acquired map[domain.Slot][]*Stream
	requests []capture.StreamRequest
}

type result struct {
	stream *Stream
	err    error
}

// NewDevice constructs a Device whose on-demand streams serve frame.
func NewDevice(frame image.Image) *Device {
	return &Device{
		DefaultFrame: frame,
		queue:        make(map[domain.Slot][]result),
		acquired:     make(map[domain.Slot][]*Stream),
	}
}

// QueueStream makes the next acquisition of slot return st.
func (d *Device) QueueStream(slot domain.Slot, st *Stream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue[slot] = append(d.queue[slot], result{stream: st})
}

// QueueError makes the next acquisition of slot fail with err.
func (d *Device) QueueError(slot domain.Slot, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue[slot] = append(d.queue[slot], result{err: err})
}

// Acquire implements capture.Device.
func (d *Device) Acquire(ctx context.Context, req capture.StreamRequest) (capture.Stream, error) {
	if d.Block != nil {
		select {
		case <-d.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = append(d.requests, req)

	var res result
	if q := d.queue[req.Slot]; len(q) > 0 {
		res, d.queue[req.Slot] = q[0], q[1:]
	} else {
		res = result{stream: NewStream(d.DefaultFrame, true)}
	}
	if res.err != nil {
		return nil, res.err
	}
	d.acquired[req.Slot] = append(d.acquired[req.Slot], res.stream)

	return res.stream, nil
}

// Acquired returns every stream handed out for slot, oldest first.
func (d *Device) Acquired(slot domain.Slot) []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]*Stream(nil), d.acquired[slot]...)
}

// Live returns the number of streams of slot that have not been released.
func (d *Device) Live(slot domain.Slot) int {
	n := 0
	for _, st := range d.Acquired(slot) {
		if !st.Released() {
			n++
		}
	}

	return n
}

// Requests returns every acquisition request received so far.
func (d *Device) Requests() []capture.StreamRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]capture.StreamRequest(nil), d.requests...)
}

// Ensure Device and Stream conform to the capture interfaces at compile time.
var (
	_ capture.Device = (*Device)(nil)
	_ capture.Stream = (*Stream)(nil)
)
