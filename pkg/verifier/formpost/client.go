// Package formpost provides a verifier.Client implementation that posts both
// codes as an urlencoded form and looks for a success marker in the reply.
package formpost

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"pairscan/pkg/domain"
	"pairscan/pkg/serrors"
	"pairscan/pkg/verifier"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "pairscan/pkg/verifier/formpost"

	// DefaultFirstField is the form field carrying the first code.
	DefaultFirstField = "dp"
	// DefaultSecondField is the form field carrying the second code.
	DefaultSecondField = "productQr"
	// DefaultSuccessMarker is the substring that marks a matched pair.
	DefaultSuccessMarker = "OK"

	// maxBody caps how much of the response is read.
	maxBody = 1 << 20
)

// Options configure a Client.
type Options struct {
	// Endpoint is the URL the form is posted to.
	Endpoint string
	// FirstField and SecondField name the form fields of both codes.
	FirstField  string
	SecondField string
	// SuccessMarker is searched for in the response body.
	SuccessMarker string

	// MeterProvider records request durations. Defaults to the global provider.
	MeterProvider metric.MeterProvider
	// TracerProvider traces round trips. Defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Client posts code pairs to the verification endpoint. It is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	options    Options

	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// New constructs a Client that uses httpClient to reach options.Endpoint.
func New(httpClient *http.Client, options Options) (*Client, error) {
	if options.Endpoint == "" {
		return nil, fmt.Errorf("verification endpoint is required")
	}
	if options.FirstField == "" {
		options.FirstField = DefaultFirstField
	}
	if options.SecondField == "" {
		options.SecondField = DefaultSecondField
	}
	if options.SuccessMarker == "" {
		options.SuccessMarker = DefaultSuccessMarker
	}
	if options.MeterProvider == nil {
		options.MeterProvider = otel.GetMeterProvider()
	}
	if options.TracerProvider == nil {
		options.TracerProvider = otel.GetTracerProvider()
	}

	duration, err := options.MeterProvider.Meter(instrumentationName).Float64Histogram(
		"pairscan.verifier.duration",
		metric.WithDescription("Duration of verification round trips."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create duration histogram: %w", err)
	}

	return &Client{
		httpClient: httpClient,
		options:    options,
		tracer:     options.TracerProvider.Tracer(instrumentationName),
		duration:   duration,
	}, nil
}

// Verify posts first and second and reports whether the reply carries the
// success marker. Transport errors, unreadable bodies and non-2xx statuses are
// returned as serrors.ErrNetworkFailure.
func (c *Client) Verify(ctx context.Context, first, second string) (res verifier.Result, err error) {
	ctx, span := c.tracer.Start(ctx, "verifier.Verify", trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	defer func() {
		outcome := res.Outcome
		if err != nil {
			outcome = domain.OutcomeFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		attrs := attribute.String("outcome", string(outcome))
		span.SetAttributes(attrs)
		c.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs))
		span.End()
	}()

	form := url.Values{}
	form.Set(c.options.FirstField, first)
	form.Set(c.options.SecondField, second)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return verifier.Result{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return verifier.Result{}, serrors.Wrap(serrors.ErrNetworkFailure, err, "could not send request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return verifier.Result{}, serrors.Wrap(serrors.ErrNetworkFailure, err, "could not read response body")
	}
	body := string(b)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return verifier.Result{Body: body},
			serrors.With(serrors.ErrNetworkFailure, "verification failed with status %d: %s", resp.StatusCode, strings.TrimSpace(body))
	}

	if strings.Contains(body, c.options.SuccessMarker) {
		return verifier.Result{Outcome: domain.OutcomeMatched, Body: body}, nil
	}

	return verifier.Result{Outcome: domain.OutcomeUnmatched, Body: body}, nil
}

// Ensure Client conforms to the verifier.Client interface at compile time.
var _ verifier.Client = (*Client)(nil)
