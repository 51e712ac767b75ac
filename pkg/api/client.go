// Package api is the typed client for the LeaseQA backend REST API.
//
// Every backend endpoint has one method. Responses use the envelope
// {"data": <payload>}; the envelope is unwrapped once, in decodeEnvelope,
// so callers only ever see typed values. There are no retries and no
// caching: a failed call returns an error and the caller decides what to
// show.
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
	"strings"
	"time"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "leaseqa-web"
)

// Client talks to one backend. A Client bound to a browser session via
// ForSession carries that session's backend cookies.
type Client struct {
	base      *url.URL
	hc        *http.Client
	userAgent string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New returns a client for the API rooted at base, e.g.
// "http://localhost:4000/api".
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base %q must be an http or https URL", base)
	}

	c := &Client{
		base:      u,
		hc:        &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ForSession returns a copy of c whose requests carry the cookies in jar.
func (c *Client) ForSession(jar http.CookieJar) *Client {
	hc := *c.hc
	hc.Jar = jar
	return &Client{
		base:      c.base,
		hc:        &hc,
		userAgent: c.userAgent,
	}
}

// BaseURL returns the API root this client was built with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base.JoinPath(escaped...).String()
}

func (c *Client) newJSONRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes the envelope payload into out. out may be nil
// when the caller does not need the body.
func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(op, resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := decodeEnvelope(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, op, method, target string, in, out any) error {
	req, err := c.newJSONRequest(ctx, method, target, in)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.do(req, op, out)
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// decodeEnvelope unmarshals the payload of a {"data": ...} envelope into
// out. A body without a data member (or with data: null) is decoded as
// the payload itself.
func decodeEnvelope(body []byte, out any) error {
	payload := body

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if d := bytes.TrimSpace(env.Data); len(d) > 0 && !bytes.Equal(d, []byte("null")) {
			payload = d
		}
	}

	return json.Unmarshal(payload, out)
}

// ErrNotFound matches any *Error with status 404.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized matches any *Error with status 401.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden matches any *Error with status 403.
var ErrForbidden = errors.New("forbidden")

// Error is a non-2xx response from the backend.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}

// Temporary reports whether the failure was on the backend side.
func (e *Error) Temporary() bool {
	return e.StatusCode >= 500
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newError(op string, status int, body []byte) *Error {
	e := &Error{Op: op, StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Message = eb.Message
		if e.Message == "" {
			e.Message = eb.Error
		}
	}

	if e.Message == "" {
		var env struct {
			Data errorBody `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err == nil {
			e.Message = env.Data.Message
			if e.Message == "" {
				e.Message = env.Data.Error
			}
		}
	}

	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// MessageOf returns the backend-supplied message carried by err, or
// fallback when err is not a backend error or the backend failed with a
// server error.
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && !apiErr.Temporary() && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
