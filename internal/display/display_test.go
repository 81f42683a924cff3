package display_test

import (
	"bytes"
	"context"
	"image"
	"pairscan/internal/display"
	"pairscan/pkg/domain"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{name: "shorter", text: "DLV-1", maxLen: 8, want: "DLV-1"},
		{name: "exactly max", text: "DLV-0001", maxLen: 8, want: "DLV-0001"},
		{name: "longer", text: "DLV-000123", maxLen: 8, want: "DLV-0001..."},
		{name: "multibyte", text: "配送コード一二三四五", maxLen: 4, want: "配送コー..."},
		{name: "empty", text: "", maxLen: 8, want: ""},
		{name: "disabled", text: "DLV-000123", maxLen: 0, want: "DLV-000123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, display.Truncate(tt.text, tt.maxLen))
		})
	}
}

func TestEvent_ShownKeepsOriginal(t *testing.T) {
	ev := display.Event{Message: "captured", CapturedText: "0123456789"}
	shown := ev.Shown(4)

	require.Equal(t, "0123...", shown.CapturedText)
	require.Equal(t, "0123456789", ev.CapturedText)
}

func TestConsole_ShowMessage(t *testing.T) {
	var out bytes.Buffer
	c := display.NewConsole(context.Background(), &out, 8)

	c.ShowMessage(display.Event{
		Message:      "first code captured",
		State:        "AwaitingSecondPreview",
		Slot:         domain.SlotFirst,
		CapturedText: "DLV-000123",
	})
	c.ShowMessage(display.Event{Message: "Result: OK", State: "Settled", Outcome: domain.OutcomeMatched})
	c.RenderFrame(domain.SlotFirst, image.NewGray(image.Rect(0, 0, 1, 1)))
	c.SetControlEnabled(display.ControlScanFirst, true)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "[AwaitingSecondPreview] first code captured (first: DLV-0001...)", lines[0])
	require.Equal(t, "[Settled] Result: OK => matched", lines[1])
}

type recorder struct {
	frames   int
	events   []display.Event
	controls map[display.Control]bool
}

func (r *recorder) RenderFrame(domain.Slot, image.Image) { r.frames++ }
func (r *recorder) ShowMessage(ev display.Event)         { r.events = append(r.events, ev) }
func (r *recorder) SetControlEnabled(c display.Control, enabled bool) {
	if r.controls == nil {
		r.controls = map[display.Control]bool{}
	}
	r.controls[c] = enabled
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := display.Multi(a, b)

	m.RenderFrame(domain.SlotSecond, image.NewGray(image.Rect(0, 0, 1, 1)))
	m.ShowMessage(display.Event{Message: "hello"})
	m.SetControlEnabled(display.ControlScanSecond, true)

	for _, r := range []*recorder{a, b} {
		require.Equal(t, 1, r.frames)
		require.Len(t, r.events, 1)
		require.True(t, r.controls[display.ControlScanSecond])
	}
}
