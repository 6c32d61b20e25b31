package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/testgen/internal/logger"
)

// RequestIDHeader is set on every outgoing request.
const RequestIDHeader = "X-Request-Id"

// loggingRoundTripper tags each request with an id and logs the exchange.
// Bodies are not logged: they carry credentials.
type loggingRoundTripper struct {
	inner http.RoundTripper
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := l.inner.RoundTrip(req)
	fields := logger.Fields{
		"method":     req.Method,
		"url":        req.URL.String(),
		"duration":   time.Since(start).String(),
		"request_id": requestID,
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.ErrorWithFields("api request failed", fields)
		return nil, err
	}

	fields["status"] = resp.StatusCode
	logger.DebugWithFields("api request done", fields)
	return resp, nil
}

// newHTTPClient returns an http.Client with the logging transport. A zero
// timeout leaves the transport default in place.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &loggingRoundTripper{inner: http.DefaultTransport},
	}
}
