package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"pairscan/internal/api"
	"pairscan/internal/api/handler/v1handler"
	"pairscan/internal/display"
	"pairscan/internal/pairing"
	mockpairing "pairscan/internal/pairing/mock"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestServer(t *testing.T) (*mockpairing.MockOperator, *display.Hub, *httptest.Server) {
	t.Helper()

	op := mockpairing.NewMockOperator(gomock.NewController(t))
	hub := display.NewHub(context.Background(), display.HubOptions{MaxDisplayLength: 4})

	srv, err := api.NewServer(api.Deps{Deps: v1handler.Deps{Operator: op, Events: hub}}, api.Options{
		RequestTimeout: time.Second,
		MetricsPath:    "/metrics",
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return op, hub, ts
}

func TestServer_Metrics(t *testing.T) {
	_, _, ts := newTestServer(t)

	res, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(b), "go_goroutines")
}

func TestServer_State(t *testing.T) {
	op, _, ts := newTestServer(t)
	op.EXPECT().Snapshot(gomock.Any()).Return(pairing.Snapshot{State: pairing.StateReadyToScanFirst}, nil)

	res, err := http.Get(ts.URL + "/v1/state")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, res.Header.Get("X-Request-Id"))
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "ReadyToScanFirst", body["state"])
}

func TestServer_EventsWebsocket(t *testing.T) {
	_, hub, ts := newTestServer(t)

	hub.SetControlEnabled(display.ControlScanFirst, true)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	// the control state is replayed on connect
	var msg display.Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "control", msg.Type)
	require.True(t, msg.Control.Enabled)

	require.Eventually(t, func() bool { return hub.Clients() > 0 }, time.Second, 5*time.Millisecond)
	hub.ShowMessage(display.Event{Message: "First code captured", State: "AwaitingSecondPreview", CapturedText: "DLV-001"})

	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "event", msg.Type)
	require.Equal(t, "DLV-...", msg.Event.CapturedText)
}
