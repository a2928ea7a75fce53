package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{name: "absent", value: "", expected: 5 * time.Second},
		{name: "seconds", value: "3", expected: 3 * time.Second},
		{name: "zero", value: "0", expected: 0},
		{name: "padded", value: " 2 ", expected: 2 * time.Second},
		{name: "negative", value: "-1", expected: 5 * time.Second},
		{name: "http date", value: "Wed, 21 Oct 2015 07:28:00 GMT", expected: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			assert.Equal(t, tt.expected, retryAfter(h, 5*time.Second))
		})
	}
}

func TestNewBackOff_Schedule(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.MaxJitter = 0

	b := cfg.newBackOff(context.Background())
	b.Reset()

	assert.Equal(t, 1*time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff(), "three attempts allow two waits")
}

func TestNewBackOff_JitterBounded(t *testing.T) {
	cfg := DefaultRetryConfig()

	for i := 0; i < 100; i++ {
		b := cfg.newBackOff(context.Background())
		b.Reset()
		wait := b.NextBackOff()
		assert.GreaterOrEqual(t, wait, 1*time.Second)
		assert.LessOrEqual(t, wait, 1*time.Second+cfg.MaxJitter)
	}
}

func TestNewBackOff_CapsInterval(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 6, InitialInterval: time.Second, Multiplier: 2, MaxInterval: 4 * time.Second}

	b := cfg.newBackOff(context.Background())
	b.Reset()

	var waits []time.Duration
	for next := b.NextBackOff(); next != backoff.Stop; next = b.NextBackOff() {
		waits = append(waits, next)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}, waits)
}

func TestNewBackOff_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := DefaultRetryConfig().newBackOff(ctx)
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		timeout   bool
		kind      string
		transient bool
	}{
		{name: "deadline", err: context.DeadlineExceeded, timeout: true, transient: true},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "example.invalid"}, kind: "dns lookup failed", transient: true},
		{name: "dial", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, kind: "connection failed", transient: true},
		{name: "eof", err: io.EOF, kind: "connection closed", transient: true},
		{name: "other", err: errors.New("reset by peer"), kind: "connection error", transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyTransportError(tt.err)
			if tt.timeout {
				assert.ErrorIs(t, err, ErrTimeout)
			} else {
				var netErr *NetworkError
				if assert.ErrorAs(t, err, &netErr) {
					assert.Equal(t, tt.kind, netErr.Kind)
				}
			}
			assert.Equal(t, tt.transient, isTransient(err))
		})
	}

	assert.False(t, isTransient(&HTTPStatusError{StatusCode: http.StatusServiceUnavailable}))
}
