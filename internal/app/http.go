package app

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient returns a client whose per-host pool matches the fetch
// concurrency. The overall bound comes from fetch.Client.PerRequestTimeout.
func newHTTPClient(maxConcurrent int) *http.Client {
	perHost := maxConcurrent
	if perHost <= 0 {
		perHost = DefaultMaxConcurrent
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4 * perHost,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}
