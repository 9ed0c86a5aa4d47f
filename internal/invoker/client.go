package invoker

import (
	"net"
	"net/http"
	"time"
)

const (
	connectTimeout  = 10 * time.Second
	overallTimeout  = 180 * time.Second
	tlsTimeout      = 10 * time.Second
	maxConnsPerCall = 10
)

// newHTTPClient builds a client scoped to a single provider call. Sharing
// one pool across many concurrent long-running completions can stall when
// every pool slot is held by a slow in-flight request, so each invocation
// gets its own transport and tears it down afterwards.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: overallTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: tlsTimeout,
			MaxIdleConns:        maxConnsPerCall,
			MaxConnsPerHost:     maxConnsPerCall,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// closeHTTPClient releases the client's idle connections so the per-call
// transport does not linger.
func closeHTTPClient(c *http.Client) {
	if t, ok := c.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}
