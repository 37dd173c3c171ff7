package api

import (
	"log"
	"net/http"
	"time"
)

// LoggingTransport logs one line per request: method, path, status,
// duration and request id.
type LoggingTransport struct {
	next http.RoundTripper
}

// NewLoggingTransport wraps next, or http.DefaultTransport when next is nil.
func NewLoggingTransport(next http.RoundTripper) *LoggingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &LoggingTransport{next: next}
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start).Round(time.Millisecond)
	id := req.Header.Get(requestIDHeader)
	if err != nil {
		log.Printf("%s %s failed after %s [%s]: %v", req.Method, req.URL.Path, elapsed, id, err)
		return nil, err
	}
	log.Printf("%s %s %d %s [%s]", req.Method, req.URL.Path, resp.StatusCode, elapsed, id)
	return resp, nil
}
