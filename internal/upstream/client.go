// Package upstream wraps the outbound HTTP calls made to the services the
// schedule is assembled from.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 15 * time.Second
	AcceptJSON     = "application/json, text/plain, */*"

	// maxBodySize caps a single response; the site's script bundle is the largest payload.
	maxBodySize = 16 << 20
)

// HTTPError reports a non-success status returned by an upstream service.
type HTTPError struct {
	Service    string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Service, e.Message())
}

// Message is the text shown to users and written to the audit log.
func (e *HTTPError) Message() string {
	return fmt.Sprintf("could not process, status=%d", e.StatusCode)
}

// Client issues GET requests bounded by a timeout and the caller's context.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout, Transport: c.httpClient.Transport}
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "recycle-kalender/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL and returns the body together with the status code.
// A transport failure yields status 0; a non-2xx status yields *HTTPError.
func (c *Client) Get(ctx context.Context, service, rawURL string, header http.Header) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to create request: %w", service, err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to send request: %w", service, err)
	}
	defer resp.Body.Close()

	log.WithFields(log.Fields{
		"service": service,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("Upstream request finished")

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s: failed to read response: %w", service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, &HTTPError{Service: service, StatusCode: resp.StatusCode}
	}
	return body, resp.StatusCode, nil
}
