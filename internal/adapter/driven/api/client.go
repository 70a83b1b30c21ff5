// Package api implements the resilient REST client for the charging-platform
// backend: bearer-token decoration, single-flight token refresh with one retry
// per request, and ban detection.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/chargepanel/internal/domain/port/driven"
)

const (
	// DefaultRefreshPath is the backend endpoint that mints new access tokens.
	DefaultRefreshPath = "/api/auth/refresh"

	// bannedMessage is the error marker the backend sends with 403 for banned accounts.
	bannedMessage = "User is banned"

	maxResponseBytes = 10 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the backend origin, optionally with a path prefix. Required.
	BaseURL string

	// Session holds the bearer credentials. Required.
	Session driven.SessionCredentials

	// OnBanned and OnSessionExpired receive the navigation events. Nil
	// handlers are ignored.
	OnBanned         driven.BannedHandler
	OnSessionExpired driven.SessionExpiredHandler

	// RefreshPath defaults to DefaultRefreshPath.
	RefreshPath string

	// Timeout bounds a single HTTP exchange. Zero means 30s.
	Timeout time.Duration

	// RefreshTimeout bounds the shared refresh call. Zero means 15s.
	RefreshTimeout time.Duration

	// Transport is the innermost network transport; nil uses http.DefaultTransport.
	Transport http.RoundTripper

	// Cache stores responses for the current credential. Nil creates a
	// private cache unless DisableCache is set. Share it with whatever
	// starts or ends sessions so it can be purged there.
	Cache *ResponseCache

	// DisableCache turns off response caching.
	DisableCache bool

	Logger *slog.Logger
}

// Request describes one call against the backend.
type Request struct {
	Method string
	// Path is relative to the base URL and may carry a query string.
	Path   string
	Query  url.Values
	Header http.Header
	// Body is sent as JSON unless it is a []byte, which is sent verbatim.
	Body   any
}

// Response is a successful (2xx) backend response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// RetryContext tracks how many times a single logical request has been
// resubmitted after an authentication failure.
type RetryContext struct {
	Attempt int
	// token overrides the session token on a resubmission.
	token   string
}

// Retried reports whether the request has already been resubmitted.
func (rc RetryContext) Retried() bool {
	return rc.Attempt > 0
}

func (rc RetryContext) next(token string) RetryContext {
	return RetryContext{Attempt: rc.Attempt + 1, token: token}
}

// Client is the resilient backend client. It is safe for concurrent use.
type Client struct {
	baseURL          *url.URL
	httpClient       *http.Client
	session          driven.SessionCredentials
	onBanned         driven.BannedHandler
	onSessionExpired driven.SessionExpiredHandler
	refreshPath      string
	refreshTimeout   time.Duration
	refreshGroup     singleflight.Group
	cache            *ResponseCache
	logger           *slog.Logger
}

// NewClient creates a Client with the transport stack described in newTransport.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api client: base URL is required")
	}
	if opts.Session == nil {
		return nil, errors.New("api client: session is required")
	}

	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = 15 * time.Second
	}
	refreshPath := opts.RefreshPath
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cache *ResponseCache
	if !opts.DisableCache {
		cache = opts.Cache
		if cache == nil {
			cache = NewResponseCache()
		}
	}

	httpClient := &http.Client{
		Transport: newTransport(opts.Transport, cache),
		Timeout:   timeout,
	}

	return &Client{
		baseURL:          u,
		httpClient:       httpClient,
		session:          opts.Session,
		onBanned:         opts.OnBanned,
		onSessionExpired: opts.OnSessionExpired,
		refreshPath:      refreshPath,
		refreshTimeout:   refreshTimeout,
		cache:            cache,
		logger:           logger,
	}, nil
}

// Get issues a GET against path.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE against path.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Do sends req through the decorated pipeline. It returns either a 2xx
// response or the final failure after recovery:
//   - 403 {"error":"User is banned"}: BannedHandler notified, ErrBanned.
//   - 401 on the first attempt: shared token refresh, then one resubmission.
//   - anything else: *APIError, unchanged.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	payload, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s body: %w", req.Method, req.Path, err)
	}

	return c.send(ctx, req, target, payload, RetryContext{})
}

func (c *Client) send(ctx context.Context, req Request, target string, payload []byte, rc RetryContext) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating %s %s request: %w", req.Method, req.Path, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")

	sentToken := c.decorate(httpReq, rc)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", req.Method, req.Path, err)
	}

	c.logger.Debug("api call",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"attempt", rc.Attempt,
		"from_cache", resp.Header.Get("X-From-Cache") == "1",
		"duration", time.Since(start).Round(time.Microsecond),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}

	return c.recoverFailure(ctx, req, target, payload, rc, sentToken, &APIError{
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Body:       body,
	})
}

// decorate attaches the bearer token and a request ID. It returns the token
// that was attached, or "" for an anonymous request.
func (c *Client) decorate(httpReq *http.Request, rc RetryContext) string {
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}

	token := rc.token
	if token == "" {
		token = c.session.AccessToken()
	}
	if token == "" {
		return ""
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	return token
}

func (c *Client) recoverFailure(
	ctx context.Context,
	req Request,
	target string,
	payload []byte,
	rc RetryContext,
	sentToken string,
	apiErr *APIError,
) (*Response, error) {
	if apiErr.StatusCode == http.StatusForbidden && isBannedBody(apiErr.Body) {
		c.logger.Warn("account banned by backend", "method", req.Method, "path", req.Path)
		if c.onBanned != nil {
			c.onBanned.Banned(ctx)
		}
		return nil, fmt.Errorf("%w: %w", ErrBanned, apiErr)
	}

	if apiErr.StatusCode != http.StatusUnauthorized || rc.Retried() {
		return nil, apiErr
	}

	token, err := c.refreshAccessToken(ctx, sentToken, apiErr)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("retrying request with refreshed token", "method", req.Method, "path", req.Path)
	return c.send(ctx, req, target, payload, rc.next(token))
}

// resolve joins path onto the base URL. Absolute URLs are rejected so the
// bearer token never leaves the configured backend.
func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing path %q: %w", path, err)
	}
	if ref.Scheme != "" || ref.Host != "" {
		return "", fmt.Errorf("path %q must be relative to the base URL", path)
	}

	// JoinPath keeps escaped segments such as %2F intact.
	u := c.baseURL.JoinPath(ref.EscapedPath())

	q := ref.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

func bodyReader(payload []byte) io.Reader {
	if payload == nil {
		return nil
	}
	return bytes.NewReader(payload)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Error != "" {
		return eb.Error
	}
	return eb.Message
}

func isBannedBody(body []byte) bool {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(eb.Error), bannedMessage)
}
