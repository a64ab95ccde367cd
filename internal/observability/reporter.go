package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter forwards failures that deserve a human's attention.
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration)
}

type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter reports through hub, or the global hub when nil. The
// caller is responsible for sentry.Init.
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryReporter{hub: hub}
}

func (r *SentryReporter) Report(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := r.hub
	if ctxHub := sentry.GetHubFromContext(ctx); ctxHub != nil {
		hub = ctxHub
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

func (r *SentryReporter) Flush(timeout time.Duration) {
	r.hub.Flush(timeout)
}

type NopReporter struct{}

func (NopReporter) Report(context.Context, error, map[string]string) {}

func (NopReporter) Flush(time.Duration) {}
