// Package display defines the presentation boundary of the scan station: the
// events the controller emits, the controls it enables and disables, and the
// presenters that render them (console and websocket).
package display

import (
	"image"
	"pairscan/pkg/domain"
)

// DefaultMaxDisplayLength is the number of characters of a captured code shown
// before it is cut off.
const DefaultMaxDisplayLength = 8

// ellipsis is appended to code text that was cut off.
const ellipsis = "..."

// Control identifies an operator control.
type Control string

const (
	// ControlScanFirst starts the first scan. While Idle it acts as start/retry.
	ControlScanFirst Control = "scan-first"
	// ControlScanSecond starts the second scan.
	ControlScanSecond Control = "scan-second"
)

// Event is a message for the operator.
type Event struct {
	// Message is the human-readable status line.
	Message string `json:"message"`
	// State is the name of the controller state the event was emitted in.
	State string `json:"state"`
	// Slot is the scan position the event refers to, if any.
	Slot domain.Slot `json:"slot,omitempty"`
	// CapturedText is the full decoded payload, if the event announces a capture.
	CapturedText string `json:"capturedText,omitempty"`
	// Outcome is set once a verification settled.
	Outcome domain.Outcome `json:"outcome,omitempty"`
}

// Shown returns a copy of ev with CapturedText truncated for display.
func (ev Event) Shown(maxLen int) Event {
	ev.CapturedText = Truncate(ev.CapturedText, maxLen)

	return ev
}

// Truncate shortens text to maxLen characters followed by "...". Text at or
// below maxLen is returned unchanged. A non-positive maxLen disables truncation.
func Truncate(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	return string(runes[:maxLen]) + ellipsis
}

// Presenter renders the scan station for the operator. All methods are called
// from the event loop goroutine and must not block.
type Presenter interface {
	// RenderFrame shows the latest frame drawn for slot.
	RenderFrame(slot domain.Slot, frame image.Image)
	// ShowMessage shows a status event.
	ShowMessage(ev Event)
	// SetControlEnabled enables or disables an operator control.
	SetControlEnabled(control Control, enabled bool)
}

// multi fans every call out to several presenters.
type multi []Presenter

// Multi returns a Presenter forwarding to every given presenter in order.
func Multi(presenters ...Presenter) Presenter {
	return multi(presenters)
}

func (m multi) RenderFrame(slot domain.Slot, frame image.Image) {
	for _, p := range m {
		p.RenderFrame(slot, frame)
	}
}

func (m multi) ShowMessage(ev Event) {
	for _, p := range m {
		p.ShowMessage(ev)
	}
}

func (m multi) SetControlEnabled(control Control, enabled bool) {
	for _, p := range m {
		p.SetControlEnabled(control, enabled)
	}
}
