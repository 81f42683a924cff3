// Package v1handler implements the v1 control API of the scan station: the
// operator actions, the state query and the display event stream.
package v1handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"pairscan/internal/pairing"
	"pairscan/pkg/logger"
	"pairscan/pkg/serrors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Operation names used for auth and metrics.
const (
	OperationStart  = "start"
	OperationScan   = "scan"
	OperationReset  = "reset"
	OperationState  = "state"
	OperationEvents = "events"
)

// Deps are the collaborators of the v1 API.
type Deps struct {
	// Operator is the scan station being controlled.
	Operator pairing.Operator
	// Events streams display events to operator screens.
	Events http.Handler
	// MeterProvider records request counts. Defaults to the global provider.
	MeterProvider metric.MeterProvider
}

// Handler serves the v1 endpoints.
type Handler struct {
	deps     Deps
	requests metric.Int64Counter
}

// New constructs a Handler.
func New(deps Deps) *Handler {
	if deps.MeterProvider == nil {
		deps.MeterProvider = otel.GetMeterProvider()
	}
	requests, err := deps.MeterProvider.Meter("pairscan/internal/api/v1").Int64Counter(
		"pairscan.control.requests",
		metric.WithDescription("Control API requests by operation and status code."),
	)
	if err != nil {
		logger.Warn(context.Background(), "could not create request counter", zap.Error(err))
	}

	return &Handler{deps: deps, requests: requests}
}

// Routes returns the v1 mux, relative to the /v1 prefix. Every route goes
// through sec.
func (h *Handler) Routes(sec *SecHandler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /start", sec.Middleware(OperationStart, http.HandlerFunc(h.Start)))
	mux.Handle("POST /scan", sec.Middleware(OperationScan, http.HandlerFunc(h.Scan)))
	mux.Handle("POST /reset", sec.Middleware(OperationReset, http.HandlerFunc(h.Reset)))
	mux.Handle("GET /state", sec.Middleware(OperationState, http.HandlerFunc(h.State)))
	if h.deps.Events != nil {
		mux.Handle("GET /events", sec.Middleware(OperationEvents, h.deps.Events))
	}

	return mux
}

// Start begins a scan cycle.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, OperationStart, http.StatusAccepted, h.deps.Operator.Start)
}

// Scan is the operator's scan trigger.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, OperationScan, http.StatusAccepted, h.deps.Operator.Trigger)
}

// Reset aborts the current cycle.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, OperationReset, http.StatusOK, h.deps.Operator.Reset)
}

// State returns the current snapshot.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, OperationState, http.StatusOK, nil)
}

// act runs action, if any, and answers with the resulting snapshot.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, operation string, status int,
	action func(context.Context) error) {
	ctx := r.Context()

	if action != nil {
		if err := action(ctx); err != nil {
			h.writeError(ctx, w, operation, err)

			return
		}
	}

	snap, err := h.deps.Operator.Snapshot(ctx)
	if err != nil {
		h.writeError(ctx, w, operation, err)

		return
	}

	h.count(ctx, operation, status)
	writeJSON(ctx, w, status, snap)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	res := NewError(ctx, err)
	h.count(ctx, operation, res.StatusCode)
	writeJSON(ctx, w, res.StatusCode, res.Response)
}

func (h *Handler) count(ctx context.Context, operation string, status int) {
	if h.requests == nil {
		return
	}
	h.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int("code", status),
	))
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorStatus pairs an ErrorResponse with its HTTP status.
type ErrorStatus struct {
	StatusCode int
	Response   ErrorResponse
}

// errorStatuses maps semantic kinds to HTTP statuses and default messages.
var errorStatuses = map[serrors.Kind]struct { //nolint: gochecknoglobals
	status  int
	message string
}{
	serrors.ErrBadRequest:        {http.StatusBadRequest, "bad request"},
	serrors.ErrUnauthorized:      {http.StatusUnauthorized, "unauthorized"},
	serrors.ErrConflict:          {http.StatusConflict, "operation not accepted in the current state"},
	serrors.ErrTimeout:           {http.StatusGatewayTimeout, "scan station timed out"},
	serrors.ErrAcquisitionFailed: {http.StatusServiceUnavailable, "camera unavailable"},
	serrors.ErrNetworkFailure:    {http.StatusBadGateway, "verification service unavailable"},
}

// NewError converts err into the reply sent to the client. Errors without a
// known kind become a generic internal error and are logged.
func NewError(ctx context.Context, err error) *ErrorStatus {
	var kind serrors.Kind
	if errors.As(err, &kind) {
		if st, ok := errorStatuses[kind]; ok {
			msg := st.message
			var se *serrors.Error
			if errors.As(err, &se) && se.Message() != "" {
				msg = se.Message()
			}
			logger.Debug(ctx, "request rejected", zap.Error(err))

			return &ErrorStatus{
				StatusCode: st.status,
				Response:   ErrorResponse{Code: kind.Error(), Message: msg},
			}
		}
	}

	logger.Error(ctx, "request failed", zap.Error(err))

	return &ErrorStatus{
		StatusCode: http.StatusInternalServerError,
		Response:   ErrorResponse{Code: serrors.ErrInternal.Error(), Message: "internal error"},
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn(ctx, "could not write response", zap.Error(err))
	}
}
