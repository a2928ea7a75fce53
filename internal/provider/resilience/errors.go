package resilience

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is matched by every *CircuitOpenError.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("request timeout")
)

// CircuitOpenError is returned when an endpoint's breaker rejects a call.
// HalfOpen is set when the cooldown has elapsed and the single half-open
// trial call is still in flight; Until is zero then.
type CircuitOpenError struct {
	Endpoint string
	Until    time.Time
	HalfOpen bool
}

func (e *CircuitOpenError) Error() string {
	if e.HalfOpen {
		return "circuit half-open, trial call in progress"
	}
	if e.Until.IsZero() {
		return "circuit open, cooldown until unknown"
	}
	return "circuit open, cooldown until " + e.Until.UTC().Format(time.RFC3339)
}

// Is reports whether target is ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// TimeoutError reports that an attempt or the overall request ceiling elapsed.
// The message never includes the request URL.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return "request timeout"
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NetworkError reports a connect, DNS, TLS or connection-reset failure.
// Kind is a short category safe to log; the wrapped error may carry the URL.
type NetworkError struct {
	Kind string
	Err  error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Kind
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError represents a non-2xx response that is not retried.
type HTTPStatusError struct {
	StatusCode int
	Response   *Response
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// classifyTransportError maps an error from http.Client.Do onto the taxonomy.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TimeoutError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Err: err}
	}

	var certErr *tls.CertificateVerificationError
	var authorityErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	switch {
	case errors.As(err, &certErr), errors.As(err, &authorityErr),
		errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return &NetworkError{Kind: "certificate verification failed", Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &NetworkError{Kind: "dns lookup failed", Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &NetworkError{Kind: "connection failed", Err: err}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &NetworkError{Kind: "connection closed", Err: err}
	}

	return &NetworkError{Kind: "connection error", Err: err}
}

// isTransient reports whether err should be retried with backoff.
func isTransient(err error) bool {
	var netErr *NetworkError
	var timeoutErr *TimeoutError
	return errors.As(err, &netErr) || errors.As(err, &timeoutErr)
}
