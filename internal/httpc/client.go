// Package httpc provides a shared HTTP client with sensible defaults.
// Use this instead of http.DefaultClient so connection pooling and
// handshake timeouts are always set.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// Default timeouts for HTTP transport operations.
const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client is a shared HTTP client with production-ready transport defaults.
// It carries no client-level timeout: callers bound requests with a
// context deadline, which is how the gateway applies its per-capability
// timeouts.
var Client = &http.Client{
	Transport: newTransport(),
}

// NewClient creates an HTTP client with a hard request timeout on top of
// the shared transport defaults. Use for callers without their own
// deadline discipline, such as CLI tools.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
