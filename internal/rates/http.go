package rates

import (
	"crypto/tls"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client with optional TLS configuration.
// Set skipTLSVerify to true for suppliers with misconfigured certificate
// chains (e.g., servers that don't send intermediate certificates).
func NewHTTPClient(timeout time.Duration, skipTLSVerify bool) *http.Client {
	transport := &http.Transport{}

	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// DefaultHTTPClient returns a standard HTTP client with a 30s timeout.
func DefaultHTTPClient() *http.Client {
	return NewHTTPClient(30*time.Second, false)
}
