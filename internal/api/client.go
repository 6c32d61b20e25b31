// Package api is the HTTP client for the test-generation backend.
//
// Every call is fire-once: there is no retry, backoff or circuit breaking.
// Failures are classified into UnreachableError, RejectedError and SetupError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is used when Options.BaseURL is empty.
const DefaultBaseURL = "http://localhost:5001"

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration // 0 = no client-side timeout
	HTTPClient *http.Client  // overrides the logging client built from Timeout
}

// Client issues JSON requests against one backend and carries one bearer
// token shared by all requests made through it.
type Client struct {
	baseURL *url.URL
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New builds a Client. It fails only when the base URL cannot be parsed.
func New(opts Options) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, &SetupError{Err: fmt.Errorf("parsing base URL %q: %w", raw, err)}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &SetupError{Err: fmt.Errorf("base URL %q must be absolute", raw)}
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = newHTTPClient(opts.Timeout)
	}
	return &Client{baseURL: base, http: hc}, nil
}

// BaseURL returns the backend root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetToken replaces the bearer token. An empty token drops the
// Authorization header from subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the token currently attached to requests.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Get issues a GET with optional query parameters and decodes the response into out.
func (c *Client) Get(ctx context.Context, p string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, p, params, nil, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, p string, body, out any) error {
	return c.do(ctx, http.MethodPost, p, nil, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, p string, body, out any) error {
	return c.do(ctx, http.MethodPut, p, nil, body, out)
}

// Delete issues a DELETE. out may be nil.
func (c *Client) Delete(ctx context.Context, p string, out any) error {
	return c.do(ctx, http.MethodDelete, p, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, p string, params url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, p, params, body)
	if err != nil {
		return &SetupError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &UnreachableError{Method: method, Path: p, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UnreachableError{Method: method, Path: p, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectedError{Status: resp.StatusCode, Message: serverMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, p, err)
	}
	return nil
}

// newRequest joins p onto the base URL. p must not carry a query string;
// pass params instead so it is encoded once.
func (c *Client) newRequest(ctx context.Context, method, p string, params url.Values, body any) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.Contains(p, "?") {
		return nil, fmt.Errorf("path must not contain a query string: %s", p)
	}

	u := *c.baseURL
	u.Path = path.Join("/", u.Path, p)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// serverMessage pulls the "message" field out of an error body.
func serverMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return "Unknown error"
	}
	return body.Message
}

// IsSetup reports whether err failed before anything was sent.
func IsSetup(err error) bool {
	var setup *SetupError
	return errors.As(err, &setup)
}
