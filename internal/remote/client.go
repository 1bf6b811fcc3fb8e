// Package remote is the HTTP client of the course service.
//
// Every call is traced, counted and logged with a request ID. Non-2xx answers become
// *serviceerr.RemoteError carrying the body's message (or the operation's fallback), and
// transport failures become *serviceerr.NetworkError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/otlp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/course-client/internal/config"
	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/serviceerr"
)

const (
	instrumentationName = "course-client/remote"
	requestIDHeader     = "X-Request-ID"
	maxErrorBody        = 64 << 10
)

// TokenSource supplies the bearer token at request time.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

func (t StaticToken) Token() string {
	return string(t)
}

type Client struct {
	baseURL     string
	videoSource course.SourceKind
	tokens      TokenSource
	httpClient  *http.Client
	application commoncfg.Application

	tracer  trace.Tracer
	counter metric.Int64Counter
	hist    metric.Int64Histogram
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its timeout wins over the configured one.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithApplication adds the application attributes to spans and metrics.
func WithApplication(app commoncfg.Application) Option {
	return func(client *Client) {
		client.application = app
	}
}

func New(cfg config.Remote, tokens TokenSource, opts ...Option) (*Client, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid remote base URL %q", cfg.BaseURL)
	}

	kind := course.SourceKind(cfg.VideoSource)
	switch kind {
	case "":
		kind = course.SourceUpload
	case course.SourceUpload, course.SourceURL:
	default:
		return nil, fmt.Errorf("unknown video source %q", cfg.VideoSource)
	}

	if tokens == nil {
		tokens = StaticToken("")
	}

	c := &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		videoSource: kind,
		tokens:      tokens,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.initTelemetry(); err != nil {
		return nil, err
	}

	return c, nil
}

// VideoSource reports which video source the deployment expects.
func (c *Client) VideoSource() course.SourceKind {
	return c.videoSource
}

func (c *Client) initTelemetry() error {
	attrs := otlp.CreateAttributesFrom(c.application)

	c.tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationAttributes(attrs...))

	meter := otel.Meter(
		instrumentationName,
		metric.WithInstrumentationVersion(otel.Version()),
		metric.WithInstrumentationAttributes(attrs...),
	)

	var err error

	c.counter, err = meter.Int64Counter(
		"remote.request_count",
		metric.WithDescription("Outgoing request count"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return fmt.Errorf("creating request_count meter: %w", err)
	}

	c.hist, err = meter.Int64Histogram(
		"remote.duration",
		metric.WithDescription("Outgoing end to end duration"),
		metric.WithUnit("milliseconds"),
	)
	if err != nil {
		return fmt.Errorf("creating duration meter: %w", err)
	}

	return nil
}

// call describes one round trip.
type call struct {
	operation   string
	method      string
	path        string
	body        io.Reader
	contentType string
	auth        bool
	fallback    string
	// okStatus lists extra non-2xx codes that count as success.
	okStatus []int
}

// do performs the call and returns the raw body of a successful answer.
func (c *Client) do(ctx context.Context, cl call) (_ []byte, err error) {
	requestID := uuid.NewString()
	ctx = slogctx.With(ctx,
		commoncfg.AttrRequestID, requestID,
		commoncfg.AttrOperation, cl.operation,
	)

	ctx, span := c.tracer.Start(ctx, "remote."+cl.operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("url.path", cl.path),
		),
	)
	defer span.End()

	status := 0
	start := time.Now()
	defer func() {
		attrs := metric.WithAttributes(
			otlp.CreateAttributesFrom(c.application,
				attribute.String(commoncfg.AttrOperation, cl.operation),
				attribute.Int("status", status),
			)...,
		)
		c.counter.Add(ctx, 1, attrs)
		c.hist.Record(ctx, time.Since(start).Milliseconds(), attrs)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slogctx.Error(ctx, "Remote call failed", "status", status, "error", err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	req.Header.Set(requestIDHeader, requestID)
	if cl.auth {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	slogctx.Debug(ctx, fmt.Sprintf("Sending %s request", cl.operation), "method", cl.method, "path", cl.path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &serviceerr.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if !success(resp.StatusCode, cl.okStatus) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &serviceerr.RemoteError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, cl.fallback),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &serviceerr.NetworkError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	slogctx.Debug(ctx, fmt.Sprintf("Finished %s request", cl.operation), "status", status)

	return body, nil
}

func success(code int, extra []int) bool {
	if code >= 200 && code < 300 {
		return true
	}
	for _, c := range extra {
		if c == code {
			return true
		}
	}
	return false
}

func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
		Data    struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Data.Message != "":
		return payload.Data.Message
	default:
		return fallback
	}
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	return bytes.NewReader(data), nil
}

// decode unmarshals a body that may or may not be wrapped in a {"data": ...} envelope.
func decode(body []byte, into any, fallback string) error {
	payload := unwrap(body)
	if len(payload) == 0 {
		return &serviceerr.RemoteError{StatusCode: http.StatusOK, Message: fallback}
	}
	if err := json.Unmarshal(payload, into); err != nil {
		return errors.Join(
			&serviceerr.RemoteError{StatusCode: http.StatusOK, Message: fallback},
			fmt.Errorf("decoding response body: %w", err),
		)
	}
	return nil
}

func unwrap(body []byte) json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return body
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return body
	}
	data, ok := envelope["data"]
	if !ok || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return body
	}
	return data
}

func pathID(prefix, id string) string {
	return prefix + "/" + url.PathEscape(id)
}
