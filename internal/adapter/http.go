package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/logger"
)

// ErrRedirectBlocked is returned when a redirect target fails the dial guard or the redirect limit
var ErrRedirectBlocked = errors.New("redirect blocked")

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the URL of the last request after redirects
	FinalURL string
	// Truncated is set when the body exceeded the requested limit
	Truncated bool
}

// HTTPClient defines an interface for HTTP client operations to enable mocking
//
//go:generate mockgen -source=http.go -destination=../mocks/http.go -package=mocks -mock_names=HTTPClient=MockHTTPClient
type HTTPClient interface {
	// Get performs a GET request with the given headers and reads at most maxBytes of the body.
	// Non-2xx responses are returned as-is; only transport failures are errors.
	Get(ctx context.Context, url string, headers map[string]string, maxBytes int64) (*Response, error)
}

// DialGuard rejects a resolved IP address before a connection is made
type DialGuard func(ip net.IP) error

// HTTPClientConfig configures the real HTTP client
type HTTPClientConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	// DialGuard, when set, is applied to every resolved address including redirects
	DialGuard DialGuard
	// MaxRetries is the number of retries on 502/503/504 responses
	MaxRetries uint64
}

// RealHTTPClient implements HTTPClient using the standard http package
type RealHTTPClient struct {
	client     *http.Client
	userAgent  string
	maxRetries uint64
}

// NewHTTPClient creates a new real HTTP client
func NewHTTPClient(cfg HTTPClientConfig) HTTPClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.DialGuard != nil {
		transport.DialContext = guardedDialContext(cfg.DialGuard, cfg.Timeout)
	}

	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 3
	}

	return &RealHTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("%w: stopped after %d redirects", ErrRedirectBlocked, maxRedirects)
				}
				return nil
			},
		},
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
	}
}

// guardedDialContext resolves the host and refuses addresses rejected by the guard
func guardedDialContext(guard DialGuard, timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no addresses found for %s", host)
		}

		for _, ip := range ips {
			if err := guard(ip.IP); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRedirectBlocked, err)
			}
		}

		return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
	}
}

// Get performs a GET request and reads at most maxBytes of the response body
// Retries with exponential backoff on gateway errors (502, 503, 504)
func (c *RealHTTPClient) Get(ctx context.Context, url string, headers map[string]string, maxBytes int64) (*Response, error) {
	var response *Response

	operation := func() error {
		response = nil

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to perform request: %w", err))
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				logger.Warn("failed to close response body", zap.Error(err), zap.String("url", url))
			}
		}()

		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			logger.Debug("gateway error, retrying with backoff", zap.String("url", url), zap.Int("status", resp.StatusCode))
			response = &Response{StatusCode: resp.StatusCode, Header: resp.Header, FinalURL: resp.Request.URL.String()}
			return fmt.Errorf("gateway error (%d)", resp.StatusCode)
		}

		response, err = readResponse(resp, maxBytes)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
	if err != nil {
		// Exhausted retries on a gateway error still yields the last response
		if response != nil && ctx.Err() == nil {
			return response, nil
		}
		return nil, err
	}

	return response, nil
}

// readResponse reads the body up to maxBytes and flags truncation
func readResponse(resp *http.Response, maxBytes int64) (*Response, error) {
	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		FinalURL:   resp.Request.URL.String(),
	}

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		out.Truncated = true
		return out, nil
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if maxBytes > 0 && int64(len(body)) > maxBytes {
		out.Truncated = true
		body = body[:maxBytes]
	}
	out.Body = body

	return out, nil
}
