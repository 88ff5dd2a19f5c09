// Package httpclient configures the HTTP client used for tile and style requests.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound creates a client tuned for many small parallel tile requests.
// Per-request deadlines come from the caller's context; timeout is only the
// outer bound.
func NewOutbound(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// tiles are requested gzip encoded and inflated by the decoder
		DisableCompression: true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
