// Package pairing drives the two-slot scan workflow: it opens and closes the
// camera of each slot, authorizes decoding, records the captured codes and
// hands the completed pair to the verification service.
//
// A Controller is owned by the event loop. Every method must run on the loop
// goroutine; other goroutines go through Remote.
package pairing

import (
	"context"
	"fmt"
	"image"
	"pairscan/internal/config"
	"pairscan/internal/display"
	"pairscan/internal/eventloop"
	"pairscan/internal/sampler"
	"pairscan/internal/session"
	"pairscan/pkg/capture"
	"pairscan/pkg/decoder"
	"pairscan/pkg/domain"
	"pairscan/pkg/logger"
	"pairscan/pkg/metrics"
	"pairscan/pkg/serrors"
	"pairscan/pkg/verifier"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Policy decides when the second camera is opened.
type Policy string

const (
	// PolicySequential opens the second camera once the first code is captured.
	PolicySequential Policy = config.PolicySequential
	// PolicyEager opens both cameras at start. The second stays unauthorized
	// and hidden until the first code is captured.
	PolicyEager Policy = config.PolicyEager
)

// Reset reasons reported to metrics.
const (
	reasonSettled           = "settled"
	reasonExternal          = "external"
	reasonAcquisitionFailed = "acquisition_failed"
	reasonShutdown          = "shutdown"
	reasonInternal          = "internal"
)

// Runtime is the event loop the controller is scheduled on.
type Runtime interface {
	eventloop.Scheduler
	session.Executor
	AfterFunc(d time.Duration, fn func()) (stop func())
}

// Options configure the workflow.
type Options struct {
	// SecondSlotPolicy is PolicySequential or PolicyEager.
	SecondSlotPolicy Policy
	// AutoAuthorizeSecond starts decoding the second code as soon as its camera is open.
	AutoAuthorizeSecond bool
	// SettleDelay is how long an outcome is shown before the full reset.
	SettleDelay time.Duration
	// AutoRestart starts a new cycle RestartDelay after a settled or external reset.
	// Acquisition failures always wait for the operator.
	AutoRestart  bool
	RestartDelay time.Duration
	// VerifyTimeout bounds a verification round trip. Zero means no timeout.
	VerifyTimeout time.Duration

	Session session.Options
	Sampler sampler.Options
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		SecondSlotPolicy:    Policy(cfg.Scan.SecondSlotPolicy),
		AutoAuthorizeSecond: cfg.Scan.AutoAuthorizeSecond,
		SettleDelay:         cfg.Scan.SettleDelay,
		AutoRestart:         cfg.Scan.AutoRestart,
		RestartDelay:        cfg.Scan.RestartDelay,
		VerifyTimeout:       cfg.Verifier.Timeout,
		Session: session.Options{
			Facing:         capture.Facing(cfg.Capture.Facing),
			AcquireTimeout: cfg.Capture.AcquireTimeout,
		},
		Sampler: sampler.Options{
			AimSize: cfg.Scan.AimSize,
		},
	}
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Runtime   Runtime
	Device    capture.Device
	Decoder   decoder.Decoder
	Verifier  verifier.Client
	Presenter display.Presenter
	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller is the pairing state machine.
type Controller struct {
	ctx       context.Context
	cycleCtx  context.Context
	rt        Runtime
	sessions  *session.Manager
	sampler   *sampler.Sampler
	verifier  verifier.Client
	presenter display.Presenter
	options   Options
	now       func() time.Time

	state     State
	cycleID   string
	startedAt time.Time
	codes     map[domain.Slot]*domain.CapturedCode
	loops     map[domain.Slot]*sampler.Loop
	outcome   domain.Outcome
	lastErr   string
	controls  map[display.Control]bool

	// epoch is bumped by every full reset; continuations from an older epoch are dropped.
	epoch       uint64
	stopSettle  func()
	stopRestart func()
}

// New constructs a Controller in StateIdle.
func New(ctx context.Context, deps Deps, options Options) *Controller {
	if options.SecondSlotPolicy == "" {
		options.SecondSlotPolicy = PolicySequential
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	c := &Controller{
		ctx:       ctx,
		cycleCtx:  ctx,
		rt:        deps.Runtime,
		sessions:  session.NewManager(deps.Device, deps.Runtime, deps.Runtime, options.Session),
		sampler:   sampler.New(deps.Runtime, deps.Decoder, options.Sampler),
		verifier:  deps.Verifier,
		presenter: deps.Presenter,
		options:   options,
		now:       now,
		state:     StateIdle,
		codes:     make(map[domain.Slot]*domain.CapturedCode, len(domain.Slots)),
		loops:     make(map[domain.Slot]*sampler.Loop, len(domain.Slots)),
		controls:  make(map[display.Control]bool),
	}
	c.syncControls()

	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Snapshot returns a copy of the current state and codes.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		State:   c.state,
		CycleID: c.cycleID,
		Outcome: c.outcome,
		Error:   c.lastErr,
	}
	if code := c.codes[domain.SlotFirst]; code != nil {
		cp := *code
		snap.First = &cp
	}
	if code := c.codes[domain.SlotSecond]; code != nil {
		cp := *code
		snap.Second = &cp
	}

	return snap
}

// Start begins a new cycle by opening the first camera. It is only accepted
// while Idle.
func (c *Controller) Start() error {
	if c.state != StateIdle {
		return serrors.With(serrors.ErrConflict, "cannot start while %s", c.state)
	}
	c.cancelRestart()

	c.cycleID = uuid.NewString()
	c.cycleCtx = logger.WithFields(c.ctx, zap.String("cycleID", c.cycleID))
	c.startedAt = c.now()
	c.lastErr = ""
	c.outcome = domain.OutcomeNone

	c.enter(StateAwaitingFirstPreview)
	logger.Info(c.cycleCtx, "scan cycle started", zap.String("policy", string(c.options.SecondSlotPolicy)))
	c.show(display.Event{Message: "Starting camera", Slot: domain.SlotFirst})

	c.open(domain.SlotFirst)
	if c.options.SecondSlotPolicy == PolicyEager {
		c.open(domain.SlotSecond)
	}

	return nil
}

// Trigger is the operator's scan action. While Idle it starts a cycle;
// while a slot is ready it authorizes decoding for that slot. Any other
// state rejects it with serrors.ErrConflict.
func (c *Controller) Trigger() error {
	switch c.state {
	case StateIdle:
		return c.Start()
	case StateReadyToScanFirst:
		c.enter(StateScanningFirst)
		c.show(display.Event{Message: "Scanning first code", Slot: domain.SlotFirst})
	case StateReadyToScanSecond:
		c.enter(StateScanningSecond)
		c.show(display.Event{Message: "Scanning second code", Slot: domain.SlotSecond})
	default:
		return serrors.With(serrors.ErrConflict, "scan trigger not accepted while %s", c.state)
	}

	return nil
}

// Reset releases both cameras and clears both codes from any state. With
// AutoRestart a new cycle follows after RestartDelay.
func (c *Controller) Reset() error {
	logger.Info(c.cycleCtx, "reset requested", zap.Stringer("state", c.state))
	c.reset(reasonExternal)
	c.show(display.Event{Message: "Reset"})
	c.scheduleRestart()

	return nil
}

// Shutdown releases every resource without scheduling a restart.
func (c *Controller) Shutdown() {
	c.reset(reasonShutdown)
}

func (c *Controller) open(slot domain.Slot) {
	c.sessions.Open(c.cycleCtx, slot, func(s *session.Session, err error) {
		if err != nil {
			c.acquisitionFailed(slot, err)

			return
		}

		c.loops[slot] = c.sampler.Start(c.cycleCtx, s, sampler.Hooks{
			Authorized: func() bool { return c.state.Authorizes(slot) },
			OnReady:    func() { c.streamReady(slot) },
			OnDecoded:  func(text string) { c.decoded(slot, text) },
			Render: func(frame image.Image) {
				// an eagerly opened second camera stays hidden until its turn
				if c.state.Slot() == slot {
					c.presenter.RenderFrame(slot, frame)
				}
			},
		})

		if slot == domain.SlotSecond && c.state == StateAwaitingSecondPreview {
			c.secondOpened()
		}
	})
}

func (c *Controller) acquisitionFailed(slot domain.Slot, err error) {
	logger.Warn(c.cycleCtx, "camera acquisition failed", zap.String("slot", string(slot)), zap.Error(err))

	c.reset(reasonAcquisitionFailed)
	c.lastErr = err.Error()
	c.show(display.Event{
		Message: fmt.Sprintf("Camera for the %s code is unavailable, press scan to retry", slot),
		Slot:    slot,
	})
}

func (c *Controller) streamReady(slot domain.Slot) {
	if slot != domain.SlotFirst || c.state != StateAwaitingFirstPreview {
		return
	}
	c.enter(StateReadyToScanFirst)
	c.show(display.Event{Message: "Ready to scan first code", Slot: domain.SlotFirst})
}

func (c *Controller) secondOpened() {
	c.enter(StateReadyToScanSecond)
	c.show(display.Event{Message: "Ready to scan second code", Slot: domain.SlotSecond})

	if c.options.AutoAuthorizeSecond {
		c.enter(StateScanningSecond)
		c.show(display.Event{Message: "Scanning second code", Slot: domain.SlotSecond})
	}
}

func (c *Controller) decoded(slot domain.Slot, text string) {
	if !c.state.Authorizes(slot) || c.codes[slot] != nil {
		logger.Warn(c.cycleCtx, "ignoring unexpected decode", zap.String("slot", string(slot)), zap.Stringer("state", c.state))

		return
	}

	c.codes[slot] = &domain.CapturedCode{Slot: slot, Text: text, CapturedAt: c.now()}
	delete(c.loops, slot)
	c.sessions.Close(c.cycleCtx, slot)
	logger.Info(c.cycleCtx, "code captured", zap.String("slot", string(slot)))

	if slot == domain.SlotFirst {
		c.enter(StateAwaitingSecondPreview)
		c.show(display.Event{Message: "First code captured", Slot: slot, CapturedText: text})

		switch {
		case c.sessions.Get(domain.SlotSecond) != nil:
			c.secondOpened()
		case c.sessions.Pending(domain.SlotSecond):
			// the eager acquisition completes into secondOpened
		default:
			c.open(domain.SlotSecond)
		}

		return
	}

	c.enter(StateVerifying)
	c.show(display.Event{Message: "Second code captured, verifying", Slot: slot, CapturedText: text})
	c.verify()
}

func (c *Controller) verify() {
	first, second := c.codes[domain.SlotFirst], c.codes[domain.SlotSecond]
	if first == nil || second == nil {
		logger.Error(c.cycleCtx, "verification requested without both codes")
		c.reset(reasonInternal)

		return
	}

	var (
		ctx     = c.cycleCtx
		epoch   = c.epoch
		client  = c.verifier
		timeout = c.options.VerifyTimeout
		a, b    = first.Text, second.Text
	)
	c.rt.Go(func() func() {
		vctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			vctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		res, err := client.Verify(vctx, a, b)

		return func() {
			if epoch != c.epoch || c.state != StateVerifying {
				logger.Debug(ctx, "dropping stale verification result")

				return
			}
			c.settle(res, err)
		}
	})
}

func (c *Controller) settle(res verifier.Result, err error) {
	outcome := res.Outcome
	var msg string
	switch {
	case err != nil:
		outcome = domain.OutcomeFailed
		c.lastErr = err.Error()
		msg = "Verification service unavailable"
		logger.Warn(c.cycleCtx, "verification failed", zap.Error(err))
	case outcome == domain.OutcomeMatched:
		msg = "Pair verified"
	default:
		outcome = domain.OutcomeUnmatched
		msg = "Pair does not match"
	}

	c.outcome = outcome
	c.enter(StateSettled)
	metrics.Cycles.WithLabelValues(string(outcome)).Inc()
	metrics.ScanDuration.Observe(c.now().Sub(c.startedAt).Seconds())
	logger.Info(c.cycleCtx, "scan cycle settled", zap.String("outcome", string(outcome)))
	c.show(display.Event{Message: msg, Outcome: outcome})

	epoch := c.epoch
	c.stopSettle = c.rt.AfterFunc(c.options.SettleDelay, func() {
		c.stopSettle = nil
		if epoch != c.epoch || c.state != StateSettled {
			return
		}
		c.reset(reasonSettled)
		c.show(display.Event{Message: "Ready"})
		c.scheduleRestart()
	})
}

// reset releases both cameras, clears the cycle and returns to StateIdle.
func (c *Controller) reset(reason string) {
	c.epoch++
	if c.stopSettle != nil {
		c.stopSettle()
		c.stopSettle = nil
	}
	c.cancelRestart()

	for slot, l := range c.loops {
		l.Stop()
		delete(c.loops, slot)
	}
	c.sessions.CloseAll(c.cycleCtx)
	clear(c.codes)
	c.outcome = domain.OutcomeNone

	c.enter(StateIdle)
	metrics.Resets.WithLabelValues(reason).Inc()
	logger.Debug(c.cycleCtx, "full reset", zap.String("reason", reason))
}

func (c *Controller) scheduleRestart() {
	if !c.options.AutoRestart {
		return
	}

	epoch := c.epoch
	c.stopRestart = c.rt.AfterFunc(c.options.RestartDelay, func() {
		c.stopRestart = nil
		if epoch != c.epoch || c.state != StateIdle {
			return
		}
		if err := c.Start(); err != nil {
			logger.Warn(c.ctx, "could not restart scan cycle", zap.Error(err))
		}
	})
}

func (c *Controller) cancelRestart() {
	if c.stopRestart != nil {
		c.stopRestart()
		c.stopRestart = nil
	}
}

func (c *Controller) enter(s State) {
	if s != c.state {
		logger.Debug(c.cycleCtx, "state changed", zap.Stringer("from", c.state), zap.Stringer("to", s))
	}
	c.state = s
	c.syncControls()
}

// syncControls enables exactly the controls the current state accepts.
func (c *Controller) syncControls() {
	c.setControl(display.ControlScanFirst, c.state == StateIdle || c.state == StateReadyToScanFirst)
	c.setControl(display.ControlScanSecond, c.state == StateReadyToScanSecond)
}

func (c *Controller) setControl(control display.Control, enabled bool) {
	if cur, ok := c.controls[control]; ok && cur == enabled {
		return
	}
	c.controls[control] = enabled
	c.presenter.SetControlEnabled(control, enabled)
}

func (c *Controller) show(ev display.Event) {
	ev.State = c.state.String()
	c.presenter.ShowMessage(ev)
}
