package probe

import (
	"crypto/tls"
	"net/http"
	"time"
)

// InsecureHTTPClient returns a client for device management UIs, which
// present self-signed certificates. Keep-alive is off; each probe is
// one request.
func InsecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // device self-signed certs
			DisableKeepAlives: true,
		},
	}
}
