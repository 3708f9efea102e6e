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

	"github.com/fragmede/authpanel/internal/render"
)

const (
	userAgent    = "authpanel/1.0"
	maxBodyBytes = 1 << 20
	// Longest server error message shown verbatim.
	maxMessageLen = 200
)

// Client talks to the session-cookie auth API. Every request carries the
// client's cookie jar.
type Client struct {
	http *http.Client
	base *url.URL
}

// NewClient creates a client for the API rooted at baseURL. A nil jar gets a
// fresh in-memory one. A zero timeout leaves the transport defaults alone.
func NewClient(baseURL string, jar http.CookieJar, timeout time.Duration) (*Client, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if jar == nil {
		if jar, err = NewJar(); err != nil {
			return nil, err
		}
	}
	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		base: base,
	}, nil
}

// ParseBaseURL validates an absolute http(s) base address.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", raw)
	}
	return u, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// CheckAuth asks whether the jar's session cookie is still valid.
func (c *Client) CheckAuth(ctx context.Context) (*CheckAuthResponse, error) {
	var resp CheckAuthResponse
	if err := c.do(ctx, http.MethodGet, "/api/check-auth", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login sends exactly the username and password.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*User, error) {
	return c.authenticate(ctx, "/api/login", req)
}

// Register creates an account and starts a session for it.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	return c.authenticate(ctx, "/api/register", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*User, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &TransportError{Op: "POST " + path, Err: errors.New("response has no user")}
	}
	return resp.User, nil
}

// Logout ends the server-side session. The response body is ignored.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
}

// Health reports whether the server answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	var resp healthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "" && resp.Status != "healthy" {
		return fmt.Errorf("server reports status %q", resp.Status)
	}
	return nil
}

// do sends a JSON request and decodes a 2xx JSON body into dst.
func (c *Client) do(ctx context.Context, method, path string, body, dst interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectedError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// errorMessage extracts the user-facing message from a non-2xx body: the
// JSON "error" field when present, otherwise the first line of the body's
// text (proxies answer with HTML), otherwise the status text.
func errorMessage(status int, body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		return http.StatusText(status)
	}

	text := render.PlainText(string(body), 0)
	if line := render.FirstLine(text, maxMessageLen); line != "" {
		return line
	}
	return http.StatusText(status)
}
