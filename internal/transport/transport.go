package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharmasatrya/flightpoll/internal/models"
	"github.com/dharmasatrya/flightpoll/internal/ratelimit"
)

const maxBodyBytes = 8 << 20

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport is the outbound HTTP collaborator. Connection pooling and TLS are
// its own business.
type Transport interface {
	Post(ctx context.Context, rawURL string, body []byte, headers http.Header) (*Response, error)
	Get(ctx context.Context, rawURL string, params url.Values, headers http.Header) (*Response, error)
}

type Config struct {
	Timeout     time.Duration
	APIKey      string
	UserAgent   string
	RateLimiter *ratelimit.HostLimiter
	Logger      *slog.Logger
}

type HTTPTransport struct {
	client  *http.Client
	config  Config
	limiter *ratelimit.HostLimiter
	logger  *slog.Logger
}

func NewHTTPTransport(cfg Config) *HTTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "flightpoll/1.0"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransport{
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		limiter: cfg.RateLimiter,
		logger:  logger,
	}
}

func (t *HTTPTransport) Post(ctx context.Context, rawURL string, body []byte, headers http.Header) (*Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	return t.do(ctx, req, headers)
}

func (t *HTTPTransport) Get(ctx context.Context, rawURL string, params url.Values, headers http.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return t.do(ctx, req, headers)
}

func (t *HTTPTransport) do(ctx context.Context, req *http.Request, headers http.Header) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx, req.URL.Host); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &models.NetworkError{Op: "rate limit " + req.URL.Host, Err: err}
		}
	}

	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.config.UserAgent)
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	if t.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &models.NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &models.NetworkError{Op: "read body", Err: err}
	}

	t.logger.DebugContext(ctx, "upstream call",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// CheckStatus turns a non-2xx response into a *models.ServerError.
func CheckStatus(resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &models.ServerError{
		Status: resp.StatusCode,
		Body:   errorBody(resp.Body),
	}
}

func errorBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}

// Resolve interprets ref relative to base. Absolute refs are returned as is.
func Resolve(base, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference: %w", err)
	}
	if r.IsAbs() {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base: %w", err)
	}
	if b.Scheme == "" || b.Host == "" {
		return "", errors.New("base url must be absolute")
	}
	return b.ResolveReference(r).String(), nil
}

// Join appends path segments to base, escaping each one.
func Join(base string, segments ...string) (string, error) {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return url.JoinPath(base, escaped...)
}
