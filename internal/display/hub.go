package display

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"pairscan/pkg/domain"
	"pairscan/pkg/logger"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// clientBuffer is the number of messages queued per client before new ones are dropped.
	clientBuffer = 16
	// writeTimeout bounds a single websocket write.
	writeTimeout = 5 * time.Second
)

// HubOptions configure the websocket presenter.
type HubOptions struct {
	// MaxDisplayLength is the number of code characters shown before truncation.
	MaxDisplayLength int
	// PreviewFPS caps how many preview frames per slot are pushed each second.
	// Zero disables previews.
	PreviewFPS float64
	// PreviewWidth is the width previews are scaled to; height keeps the aspect ratio.
	PreviewWidth int
	// JPEGQuality is the quality previews are encoded with.
	JPEGQuality int
}

// Message is what a websocket client receives. Exactly one of Event, Control
// and Frame is set.
type Message struct {
	Type    string        `json:"type"`
	Event   *Event        `json:"event,omitempty"`
	Control *ControlState `json:"control,omitempty"`
	Frame   *Frame        `json:"frame,omitempty"`
}

// ControlState reports whether an operator control is enabled.
type ControlState struct {
	Control Control `json:"control"`
	Enabled bool    `json:"enabled"`
}

// Frame is a JPEG preview of a slot.
type Frame struct {
	Slot   domain.Slot `json:"slot"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	JPEG   string      `json:"jpeg"`
}

// hubClient is one connected operator screen.
type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a Presenter that streams events, control states and throttled
// previews to websocket clients. Presenter methods run on the event loop;
// ServeHTTP runs on HTTP goroutines.
type Hub struct {
	ctx      context.Context
	options  HubOptions
	upgrader websocket.Upgrader
	limiters map[domain.Slot]*rate.Limiter

	// mu protects clients, last and controls.
	mu       sync.Mutex
	clients  map[*hubClient]struct{}
	last     *Event
	controls map[Control]bool
}

// NewHub constructs a Hub.
func NewHub(ctx context.Context, options HubOptions) *Hub {
	if options.PreviewWidth <= 0 {
		options.PreviewWidth = 320
	}
	if options.JPEGQuality <= 0 || options.JPEGQuality > 100 {
		options.JPEGQuality = 60
	}

	limiters := make(map[domain.Slot]*rate.Limiter, len(domain.Slots))
	for _, s := range domain.Slots {
		limiters[s] = rate.NewLimiter(rate.Limit(options.PreviewFPS), 1)
	}

	return &Hub{
		ctx:     ctx,
		options: options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		limiters: limiters,
		clients:  make(map[*hubClient]struct{}),
		controls: make(map[Control]bool),
	}
}

// RenderFrame pushes a scaled JPEG preview when a client is listening and the
// slot's preview budget allows it.
func (h *Hub) RenderFrame(slot domain.Slot, frame image.Image) {
	if frame == nil || h.options.PreviewFPS <= 0 || h.Clients() == 0 {
		return
	}
	lim, ok := h.limiters[slot]
	if !ok || !lim.Allow() {
		return
	}

	preview := imaging.Resize(frame, h.options.PreviewWidth, 0, imaging.Box)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, preview, &jpeg.Options{Quality: h.options.JPEGQuality}); err != nil {
		logger.Warn(h.ctx, "could not encode preview", zap.Error(err))

		return
	}

	b := preview.Bounds()
	h.broadcast(Message{Type: "frame", Frame: &Frame{
		Slot:   slot,
		Width:  b.Dx(),
		Height: b.Dy(),
		JPEG:   base64.StdEncoding.EncodeToString(buf.Bytes()),
	}})
}

// ShowMessage broadcasts ev with truncated code text and keeps it for clients
// that connect later.
func (h *Hub) ShowMessage(ev Event) {
	ev = ev.Shown(h.options.MaxDisplayLength)

	h.mu.Lock()
	h.last = &ev
	h.mu.Unlock()

	h.broadcast(Message{Type: "event", Event: &ev})
}

// SetControlEnabled broadcasts the control state and keeps it for late joiners.
func (h *Hub) SetControlEnabled(control Control, enabled bool) {
	h.mu.Lock()
	h.controls[control] = enabled
	h.mu.Unlock()

	h.broadcast(Message{Type: "control", Control: &ControlState{Control: control, Enabled: enabled}})
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// broadcast queues msg for every client, dropping it for clients that fall behind.
func (h *Hub) broadcast(msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		logger.Error(h.ctx, "could not marshal display message", zap.Error(err))

		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			logger.Debug(h.ctx, "dropping display message for slow client", zap.String("type", msg.Type))
		}
	}
}

// snapshot returns the messages a new client needs to catch up.
func (h *Hub) snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Message, 0, len(h.controls)+1)
	for _, ctl := range []Control{ControlScanFirst, ControlScanSecond} {
		if enabled, ok := h.controls[ctl]; ok {
			out = append(out, Message{Type: "control", Control: &ControlState{Control: ctl, Enabled: enabled}})
		}
	}
	if h.last != nil {
		ev := *h.last
		out = append(out, Message{Type: "event", Event: &ev})
	}

	return out
}

// ServeHTTP upgrades the request to a websocket and streams display messages
// until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(ctx, "could not upgrade display connection", zap.Error(err))

		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientBuffer)}
	for _, msg := range h.snapshot() {
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		c.send <- b
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logger.Info(ctx, "display client connected")

	done := make(chan struct{})
	go h.writePump(ctx, c, done)

	// the operator screen only listens; reading detects disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	<-done
	_ = conn.Close()
	logger.Info(ctx, "display client disconnected")
}

func (h *Hub) writePump(ctx context.Context, c *hubClient, done chan<- struct{}) {
	defer close(done)

	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			logger.Debug(ctx, "could not write display message", zap.Error(err))
			_ = c.conn.Close()

			// keep draining so broadcasters never block on this client
			for range c.send {
			}

			return
		}
	}
}

// Ensure Hub conforms to the Presenter interface at compile time.
var _ Presenter = (*Hub)(nil)
