package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/dharmasatrya/flightpoll/internal/models"
	"github.com/dharmasatrya/flightpoll/internal/transport"
	"github.com/dharmasatrya/flightpoll/internal/wire"
)

type Config struct {
	BaseURL        string
	PageSize       int
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxBackoff     time.Duration
	Logger         *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		PageSize:       30,
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
		RetryBackoff:   500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

type Poller struct {
	transport transport.Transport
	config    Config
	logger    *slog.Logger
}

func NewPoller(t transport.Transport, config Config) *Poller {
	defaults := DefaultConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		transport: t,
		config:    config,
		logger:    logger,
	}
}

// FetchPage requests one page of results. With a nil cursor it asks for the
// first page of the epoch and sends the filter payload; otherwise it follows
// the cursor verbatim, since the cursor already encodes the filter.
func (p *Poller) FetchPage(ctx context.Context, searchID string, payload models.Payload, cursor *string) (*models.PollPage, error) {
	var lastErr error

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt > 0 {
			delay := p.backoff(attempt)
			p.logger.InfoContext(ctx, "retrying poll",
				"search_id", searchID,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		page, err := p.fetchOnce(ctx, searchID, payload, cursor)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !models.IsRetryable(err) {
			return nil, err
		}

		lastErr = err
		p.logger.WarnContext(ctx, "poll attempt failed",
			"search_id", searchID,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return nil, lastErr
}

func (p *Poller) backoff(attempt int) time.Duration {
	delay := p.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if delay > p.config.MaxBackoff || delay <= 0 {
		delay = p.config.MaxBackoff
	}
	return delay
}

func (p *Poller) fetchOnce(ctx context.Context, searchID string, payload models.Payload, cursor *string) (*models.PollPage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	var (
		resp *transport.Response
		err  error
	)
	if cursor == nil {
		resp, err = p.firstPage(reqCtx, searchID, payload)
	} else {
		resp, err = p.nextPage(reqCtx, *cursor)
	}
	if err != nil {
		// The per-request timeout is ours, not the caller's: report it as a
		// network timeout so it is retried.
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &models.NetworkError{Op: "poll " + searchID, Err: err}
		}
		return nil, err
	}
	if err := transport.CheckStatus(resp); err != nil {
		return nil, err
	}

	return wire.DecodePollPage(resp.Body)
}

func (p *Poller) firstPage(ctx context.Context, searchID string, payload models.Payload) (*transport.Response, error) {
	endpoint, err := transport.Join(p.config.BaseURL, "search", searchID, "poll")
	if err != nil {
		return nil, fmt.Errorf("build poll url: %w", err)
	}
	q := url.Values{}
	q.Set("page", "1")
	q.Set("limit", strconv.Itoa(p.config.PageSize))
	endpoint += "?" + q.Encode()

	body, err := wire.EncodeFilter(payload)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return p.transport.Post(ctx, endpoint, body, nil)
}

func (p *Poller) nextPage(ctx context.Context, cursor string) (*transport.Response, error) {
	next, err := transport.Resolve(p.config.BaseURL, cursor)
	if err != nil {
		return nil, &models.DecodeError{Err: fmt.Errorf("unusable next cursor %q: %w", cursor, err)}
	}
	return p.transport.Get(ctx, next, nil, nil)
}
