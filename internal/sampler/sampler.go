// Package sampler implements the per-frame sampling loop of a camera session:
// draw the current frame, and when decoding is authorized, crop the aim window
// and hand it to the decoder.
package sampler

import (
	"context"
	"image"
	"pairscan/internal/eventloop"
	"pairscan/internal/session"
	"pairscan/pkg/capture"
	"pairscan/pkg/decoder"
	"pairscan/pkg/domain"
	"pairscan/pkg/logger"
	"pairscan/pkg/metrics"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

// DefaultAimSize is the side of the aim window in pixels.
const DefaultAimSize = 200

// Options configure the sampler.
type Options struct {
	// AimSize is the side of the centered square submitted for decoding.
	AimSize int
}

// Hooks connect a loop to its owner. Every hook runs on the event loop.
type Hooks struct {
	// Authorized gates decoding for the current tick. A nil hook never authorizes.
	Authorized func() bool
	// OnReady is called once, on the first tick with a readable frame.
	OnReady func()
	// OnDecoded is called once with the first decoded payload; the loop stops right before.
	OnDecoded func(text string)
	// Render receives every drawn frame. The buffer is reused by the next tick.
	Render func(frame image.Image)
}

// Sampler starts frame loops.
type Sampler struct {
	sched   eventloop.Scheduler
	decoder decoder.Decoder
	options Options
}

// New constructs a Sampler.
func New(sched eventloop.Scheduler, dec decoder.Decoder, options Options) *Sampler {
	if options.AimSize <= 0 {
		options.AimSize = DefaultAimSize
	}

	return &Sampler{sched: sched, decoder: dec, options: options}
}

// Loop is one sampling activation bound to a session.
type Loop struct {
	ctx     context.Context
	sampler *Sampler
	slot    domain.Slot
	stream  capture.Stream
	token   eventloop.Token
	hooks   Hooks

	work    *image.NRGBA
	ready   bool
	stopped bool
}

// Start schedules the first tick of a loop over the session's stream. The loop
// lives until it decodes a payload, Stop is called, or the session closes.
func (s *Sampler) Start(ctx context.Context, sess *session.Session, hooks Hooks) *Loop {
	l := &Loop{
		ctx:     logger.WithFields(ctx, zap.String("slot", string(sess.Slot()))),
		sampler: s,
		slot:    sess.Slot(),
		stream:  sess.Stream(),
		token:   sess.Token(),
		hooks:   hooks,
	}
	s.sched.ScheduleNext(l.token, l.tick)

	return l
}

// Stop ends the loop. Stopping an already stopped loop is a no-op.
func (l *Loop) Stop() {
	if l == nil || l.stopped {
		return
	}
	l.stopped = true
	l.sampler.sched.Cancel(l.token)
}

// Stopped reports whether the loop ended.
func (l *Loop) Stopped() bool { return l == nil || l.stopped }

// Ready reports whether the loop has seen a readable frame.
func (l *Loop) Ready() bool { return l != nil && l.ready }

func (l *Loop) next() {
	l.sampler.sched.ScheduleNext(l.token, l.tick)
}

func (l *Loop) tick() {
	if l.stopped {
		return
	}

	if !l.stream.Ready() {
		l.next()

		return
	}
	frame := l.stream.Frame()
	if frame == nil || frame.Bounds().Empty() {
		l.next()

		return
	}

	buf := l.draw(frame)
	if !l.ready {
		l.ready = true
		logger.Debug(l.ctx, "stream ready", zap.Int("width", buf.Rect.Dx()), zap.Int("height", buf.Rect.Dy()))
		if l.hooks.OnReady != nil {
			l.hooks.OnReady()
		}
		// the ready hook may have torn the loop down
		if l.stopped {
			return
		}
	}
	if l.hooks.Render != nil {
		l.hooks.Render(buf)
	}

	if l.hooks.Authorized == nil || !l.hooks.Authorized() {
		l.next()

		return
	}

	aim := CropAim(buf, l.sampler.options.AimSize)
	text, ok := l.sampler.decoder.Decode(aim)
	if !ok {
		metrics.DecodeAttempts.WithLabelValues(string(l.slot), "miss").Inc()
		l.next()

		return
	}

	metrics.DecodeAttempts.WithLabelValues(string(l.slot), "hit").Inc()
	logger.Info(l.ctx, "code decoded", zap.Int("length", len(text)))
	l.Stop()
	if l.hooks.OnDecoded != nil {
		l.hooks.OnDecoded(text)
	}
}

// draw copies frame into the working buffer, resizing the buffer when the
// frame's native dimensions change.
func (l *Loop) draw(frame image.Image) *image.NRGBA {
	b := frame.Bounds()
	if l.work == nil || l.work.Rect.Dx() != b.Dx() || l.work.Rect.Dy() != b.Dy() {
		l.work = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	xdraw.Copy(l.work, image.Point{}, frame, b, xdraw.Src, nil)

	return l.work
}
