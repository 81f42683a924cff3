package display

import (
	"context"
	"fmt"
	"image"
	"io"
	"pairscan/pkg/domain"
	"pairscan/pkg/logger"

	"go.uber.org/zap"
)

// Console prints events as plain lines and mirrors them to the structured log.
type Console struct {
	ctx    context.Context
	out    io.Writer
	maxLen int
}

// NewConsole constructs a Console writing to out.
func NewConsole(ctx context.Context, out io.Writer, maxLen int) *Console {
	return &Console{ctx: ctx, out: out, maxLen: maxLen}
}

// RenderFrame is a no-op: a terminal cannot show video.
func (c *Console) RenderFrame(domain.Slot, image.Image) {}

// ShowMessage prints ev, truncating any captured code.
func (c *Console) ShowMessage(ev Event) {
	ev = ev.Shown(c.maxLen)

	line := fmt.Sprintf("[%s] %s", ev.State, ev.Message)
	if ev.CapturedText != "" {
		line += fmt.Sprintf(" (%s: %s)", ev.Slot, ev.CapturedText)
	}
	if ev.Outcome != domain.OutcomeNone {
		line += fmt.Sprintf(" => %s", ev.Outcome)
	}
	_, _ = fmt.Fprintln(c.out, line)

	logger.Info(c.ctx, "display",
		zap.String("state", ev.State),
		zap.String("message", ev.Message),
		zap.String("slot", string(ev.Slot)),
		zap.String("outcome", string(ev.Outcome)),
	)
}

// SetControlEnabled logs control changes at debug level.
func (c *Console) SetControlEnabled(control Control, enabled bool) {
	logger.Debug(c.ctx, "control changed", zap.String("control", string(control)), zap.Bool("enabled", enabled))
}

// Ensure Console conforms to the Presenter interface at compile time.
var _ Presenter = (*Console)(nil)
