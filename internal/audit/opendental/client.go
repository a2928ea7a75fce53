// Package opendental provides the fetchers for the six OpenDental API
// endpoints used by an audit retrieval.
package opendental

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/odaudit/odaudit/internal/audit"
	"github.com/odaudit/odaudit/internal/credential"
	"github.com/odaudit/odaudit/internal/phi"
	"github.com/odaudit/odaudit/internal/provider/resilience"
	"github.com/odaudit/odaudit/internal/telemetry"
)

// DefaultTotalTimeout bounds one endpoint fetch, retries and rate-limit
// waits included.
const DefaultTotalTimeout = 45 * time.Second

const tracerName = "github.com/odaudit/odaudit/internal/audit/opendental"

// Wire paths. The templates are what gets logged; ids never are.
const (
	pathProcedureLogs = "/procedurelogs?AptNum={aptnum}"
	pathAllergies     = "/allergies?PatNum={patnum}"
	pathMedications   = "/medicationpats?PatNum={patnum}"
	pathProblems      = "/diseases?PatNum={patnum}"
	pathPatientNotes  = "/patientnotes/{patnum}"
	pathShortQuery    = "/queries/ShortQuery"
)

const vitalSignsQuery = "SELECT VitalsignNum, PatNum, DateTaken, Pulse, BpSystolic, BpDiastolic, Height, Weight, BMIPercentile FROM vitalsign WHERE PatNum=%d"

// ClientConfig holds configuration for the OpenDental client.
type ClientConfig struct {
	// Credential authenticates every request (required).
	Credential credential.Credential

	// HTTPClient is the transport to use (optional).
	// If nil, a resilient client with default policies is created.
	HTTPClient *resilience.Client

	// Registry holds the per-endpoint circuit breakers (optional).
	// Ignored when HTTPClient is set.
	Registry *resilience.Registry

	// TotalTimeout bounds each fetch (optional, defaults to 45s).
	TotalTimeout time.Duration

	// Metrics records fetch outcomes (optional).
	Metrics *telemetry.FetchMetrics

	// Tracer creates one span per fetch (optional, defaults to the global tracer).
	Tracer trace.Tracer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches audit data from one OpenDental deployment. It implements
// audit.Fetcher.
type Client struct {
	http         *resilience.Client
	totalTimeout time.Duration
	metrics      *telemetry.FetchMetrics
	tracer       trace.Tracer
	logger       zerolog.Logger
}

var _ audit.Fetcher = (*Client)(nil)

// NewClient creates a new OpenDental client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Credential.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.TotalTimeout
	if timeout == 0 {
		timeout = DefaultTotalTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(cfg.Credential.BaseURL, cfg.Credential.AuthorizationHeader())
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Client{
		http:         httpClient,
		totalTimeout: timeout,
		metrics:      cfg.Metrics,
		tracer:       tracer,
		logger:       cfg.Logger,
	}, nil
}

// NewFactory returns an audit.FetcherFactory that builds clients from cfg
// with the credential supplied at retrieval time.
func NewFactory(cfg ClientConfig) audit.FetcherFactory {
	return func(cred credential.Credential) (audit.Fetcher, error) {
		c := cfg
		c.Credential = cred
		return NewClient(c)
	}
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.Close()
}

// FetchProcedureLogs fetches the procedures of an appointment.
func (c *Client) FetchProcedureLogs(ctx context.Context, aptNum int64) audit.EndpointResult {
	return c.fetch(ctx, audit.EndpointProcedureLogs, http.MethodGet,
		"/procedurelogs?AptNum="+strconv.FormatInt(aptNum, 10), pathProcedureLogs, nil)
}

// FetchAllergies fetches a patient's allergies.
func (c *Client) FetchAllergies(ctx context.Context, patNum int64) audit.EndpointResult {
	return c.fetch(ctx, audit.EndpointAllergies, http.MethodGet,
		"/allergies?PatNum="+strconv.FormatInt(patNum, 10), pathAllergies, nil)
}

// FetchMedications fetches a patient's medications.
func (c *Client) FetchMedications(ctx context.Context, patNum int64) audit.EndpointResult {
	return c.fetch(ctx, audit.EndpointMedications, http.MethodGet,
		"/medicationpats?PatNum="+strconv.FormatInt(patNum, 10), pathMedications, nil)
}

// FetchProblems fetches a patient's problems.
func (c *Client) FetchProblems(ctx context.Context, patNum int64) audit.EndpointResult {
	return c.fetch(ctx, audit.EndpointProblems, http.MethodGet,
		"/diseases?PatNum="+strconv.FormatInt(patNum, 10), pathProblems, nil)
}

// FetchPatientNotes fetches a patient's medical notes.
func (c *Client) FetchPatientNotes(ctx context.Context, patNum int64) audit.EndpointResult {
	return c.fetch(ctx, audit.EndpointPatientNotes, http.MethodGet,
		"/patientnotes/"+strconv.FormatInt(patNum, 10), pathPatientNotes, nil)
}

// FetchVitalSigns runs the vital-sign query for a patient.
func (c *Client) FetchVitalSigns(ctx context.Context, patNum int64) audit.EndpointResult {
	body := shortQuery{SQLCommand: fmt.Sprintf(vitalSignsQuery, patNum)}
	return c.fetch(ctx, audit.EndpointVitalSigns, http.MethodPut, pathShortQuery, pathShortQuery, body)
}

type shortQuery struct {
	SQLCommand string `json:"SqlCommand"`
}

// fetch performs one endpoint call under the total timeout and converts
// every outcome into a result.
func (c *Client) fetch(ctx context.Context, endpoint, method, path, template string, body any) (result audit.EndpointResult) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.totalTimeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "opendental."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("http.request.method", method),
			attribute.String("http.route", template),
		),
	)

	defer func() {
		if r := recover(); r != nil {
			result = audit.NewFailureResult(endpoint, 0, "Unexpected error: "+phi.ScrubString(fmt.Sprint(r)), time.Since(start))
		}
		c.finish(ctx, span, method, template, result)
	}()

	resp, err := c.http.Send(ctx, endpoint, method, path, body)
	if err != nil {
		status, message := c.describe(ctx, err)
		return audit.NewFailureResult(endpoint, status, message, time.Since(start))
	}

	data, err := decodeJSON(resp.Body)
	if err != nil {
		return audit.NewFailureResult(endpoint, 0, "Unexpected error: "+err.Error(), time.Since(start))
	}

	return audit.NewSuccessResult(endpoint, resp.StatusCode, data, time.Since(start))
}

func (c *Client) finish(ctx context.Context, span trace.Span, method, template string, result audit.EndpointResult) {
	defer span.End()

	duration := time.Duration(result.DurationMS * float64(time.Millisecond))
	span.SetAttributes(attribute.Int("http.response.status_code", result.HTTPStatus))
	c.metrics.RecordFetch(ctx, result.EndpointName, result.HTTPStatus, result.Success, duration)

	if result.Success {
		c.logger.Info().
			Str("operation_type", "fetch_"+result.EndpointName).
			Str("endpoint", result.EndpointName).
			Str("method", method).
			Str("path", template).
			Int("http_status", result.HTTPStatus).
			Float64("duration_ms", result.DurationMS).
			Msg("API request succeeded")
		return
	}

	span.SetStatus(codes.Error, result.ErrorMessage)
	c.logger.Error().
		Str("operation_type", "fetch_"+result.EndpointName).
		Str("endpoint", result.EndpointName).
		Str("method", method).
		Str("path", template).
		Int("http_status", result.HTTPStatus).
		Str("error_category", category(result)).
		Float64("duration_ms", result.DurationMS).
		Msg("API request failed")
}

// describe maps a transport error onto the failure status and message.
// ctx is the fetch context, used to tell an interrupt from the ceiling.
func (c *Client) describe(ctx context.Context, err error) (int, string) {
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, fmt.Sprintf("%s (%d)", CategorizeStatus(statusErr.StatusCode), statusErr.StatusCode)
	}

	var openErr *resilience.CircuitOpenError
	if errors.As(err, &openErr) {
		until := "unknown"
		if !openErr.Until.IsZero() {
			until = openErr.Until.UTC().Format(time.RFC3339)
		}
		if openErr.HalfOpen {
			return 0, "Circuit half-open, trial call in progress"
		}
		return 0, "Circuit open, cooldown until " + until
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return 0, "Request cancelled"
	}

	if errors.Is(err, resilience.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return 0, fmt.Sprintf("Request timeout (%s)", c.totalTimeout)
	}

	var netErr *resilience.NetworkError
	if errors.As(err, &netErr) {
		return 0, "Network error: " + netErr.Kind
	}

	return 0, "Unexpected error: " + phi.ScrubString(err.Error())
}

// CategorizeStatus returns the human-readable category of an HTTP error status.
func CategorizeStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized:
		return "Unauthorized - check credentials"
	case code == http.StatusForbidden:
		return "Forbidden - insufficient permissions"
	case code == http.StatusNotFound:
		return "Not found"
	case code == http.StatusTooManyRequests:
		return "Rate limit exceeded"
	case code >= 500:
		return "Server error"
	default:
		return "Client error"
	}
}

// category labels a failed result for the audit log.
func category(r audit.EndpointResult) string {
	if r.HTTPStatus > 0 {
		return CategorizeStatus(r.HTTPStatus)
	}
	switch {
	case strings.HasPrefix(r.ErrorMessage, "Request timeout"):
		return "timeout"
	case strings.HasPrefix(r.ErrorMessage, "Network error"):
		return "network"
	case strings.HasPrefix(r.ErrorMessage, "Circuit"):
		return "circuit_open"
	case r.ErrorMessage == "Request cancelled":
		return "cancelled"
	default:
		return "unexpected"
	}
}

// decodeJSON parses a response payload, keeping numbers exact.
func decodeJSON(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty response body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, errors.New("invalid JSON response")
	}
	if dec.More() {
		return nil, errors.New("invalid JSON response")
	}
	switch data.(type) {
	case map[string]any, []any:
		return data, nil
	case nil:
		return nil, errors.New("null JSON response")
	default:
		return nil, errors.New("unexpected JSON type")
	}
}
