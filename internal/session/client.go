package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dharmasatrya/flightpoll/internal/models"
	"github.com/dharmasatrya/flightpoll/internal/prefs"
	"github.com/dharmasatrya/flightpoll/internal/transport"
	"github.com/dharmasatrya/flightpoll/internal/wire"
)

type Client struct {
	transport transport.Transport
	prefs     prefs.Store
	baseURL   string
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(t transport.Transport, p prefs.Store, baseURL string, opts ...Option) *Client {
	c := &Client{
		transport: t,
		prefs:     p,
		baseURL:   baseURL,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession makes exactly one call to the search endpoint. Nothing is kept
// on failure; callers retry the whole operation.
func (c *Client) CreateSession(ctx context.Context, req models.SearchRequest) (*models.SearchSession, error) {
	locale := wire.Locale{
		Country:  c.prefs.CountryCode(),
		Currency: c.prefs.CurrencyCode(),
		Language: c.prefs.LanguageCode(),
	}
	body, err := wire.EncodeSessionRequest(req, locale)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	endpoint, err := transport.Join(c.baseURL, "search")
	if err != nil {
		return nil, fmt.Errorf("build search url: %w", err)
	}

	resp, err := c.transport.Post(ctx, endpoint, body, nil)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus(resp); err != nil {
		return nil, err
	}

	info, err := wire.DecodeSessionResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	sess := &models.SearchSession{
		SearchID:  info.SearchID,
		CreatedAt: c.now(),
		Request:   req,
		Language:  info.Language,
		Currency:  info.Currency,
	}
	if sess.Language == "" {
		sess.Language = locale.Language
	}
	if sess.Currency == "" {
		sess.Currency = locale.Currency
	}

	c.logger.InfoContext(ctx, "search session created",
		"search_id", sess.SearchID,
		"legs", len(req.Legs),
		"passengers", req.Passengers(),
		"currency", sess.Currency,
	)
	return sess, nil
}
