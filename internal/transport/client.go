// Package transport implements the authenticated JSON-over-HTTP request
// function every orchestrator operation funnels through. Error bodies are
// decoded and classified exactly once, here; callers only ever see an
// APIError with a Kind tag.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Response is the result of a backend call. OK mirrors the HTTP success
// range; the body is buffered so JSON can be called more than once.
type Response struct {
	OK     bool
	Status int
	body   []byte
}

// JSON decodes the buffered response body into v.
func (r *Response) JSON(v any) error {
	if len(r.body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Client is the authenticated HTTP client for the conversation engine.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit overrides the default client-side request limiter.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewClient creates a client for the API at baseURL, authenticating every
// request with the given bearer token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an authenticated GET against path (which may carry a query
// string) and classifies any failure.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs an authenticated JSON POST. A nil body posts `{}`.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	if body == nil {
		body = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	if err := c.checkToken(); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &Response{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		body:   raw,
	}

	if !out.OK {
		apiErr := classify(resp.StatusCode, raw)
		log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("kind", string(apiErr.Kind)).
			Msg("API request failed")
		return out, apiErr
	}

	return out, nil
}

// checkToken rejects requests early when the configured token is a JWT
// whose exp claim has already passed. Opaque tokens pass through untouched.
func (c *Client) checkToken() error {
	if strings.Count(c.token, ".") != 2 {
		return nil
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	tok, _, err := parser.ParseUnverified(c.token, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(c.now()) {
		return &APIError{Kind: KindUnauthorized, Detail: "bearer token expired"}
	}
	return nil
}

// errorBody is the shape backends use for error payloads; any of the three
// fields may carry the human-readable detail.
type errorBody struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func classify(status int, raw []byte) *APIError {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	detail := eb.Detail
	if detail == "" {
		detail = eb.Error
	}
	if detail == "" {
		detail = eb.Message
	}

	kind := KindOther
	lower := strings.ToLower(detail)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindUnauthorized
	case strings.Contains(lower, "already complete") || strings.Contains(lower, "has been completed"):
		kind = KindAlreadyComplete
	case status == http.StatusNotFound:
		kind = KindNotFound
	}

	return &APIError{Kind: kind, Status: status, Detail: detail}
}
