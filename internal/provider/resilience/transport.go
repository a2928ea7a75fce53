package resilience

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// TransportConfig holds the socket-level timeouts of the shared HTTP client.
// Certificate verification is not configurable.
type TransportConfig struct {
	// ConnectTimeout bounds TCP connect and the TLS handshake.
	// Default: 10 seconds
	ConnectTimeout time.Duration

	// ReadTimeout bounds each socket read, including waiting for response headers.
	// Default: 30 seconds
	ReadTimeout time.Duration

	// WriteTimeout bounds each socket write.
	// Default: 10 seconds
	WriteTimeout time.Duration
}

// DefaultTransportConfig returns the fixed upstream timeouts.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// NewHTTPClient creates the shared HTTP client. The connection pool is not
// capped, so acquiring a connection is bounded by ConnectTimeout.
func NewHTTPClient(cfg TransportConfig) *http.Client {
	defaults := DefaultTransportConfig()
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{
				Conn:         conn,
				readTimeout:  cfg.ReadTimeout,
				writeTimeout: cfg.WriteTimeout,
			}, nil
		},
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
	}
}

// deadlineConn refreshes the read or write deadline before every socket operation.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
