package observability

import (
	"fmt"
	"time"

	"github.com/devblin/infisical/internal/version"
	"github.com/devblin/infisical/pkg/domain"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

type SentryReporterOptions struct {
	DSN         string
	Environment string
}

// SentryReporter reports through its own hub, never the sentry global one.
type SentryReporter struct {
	hub *sentry.Hub
}

func NewSentryReporter(opts SentryReporterOptions) (*SentryReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     version.GetShortVersion(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}

	return &SentryReporter{
		hub: sentry.NewHub(client, sentry.NewScope()),
	}, nil
}

func (r *SentryReporter) ClearUser() {
	r.hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{})
	})
}

func (r *SentryReporter) CaptureException(err error) {
	if err == nil {
		return
	}

	r.hub.CaptureException(err)
}

func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

// LogReporter writes captured errors to the zerolog global logger.
type LogReporter struct{}

func (LogReporter) ClearUser() {}

func (LogReporter) CaptureException(err error) {
	if err == nil {
		return
	}

	log.Error().Err(err).Msg("Captured exception")
}

// NewErrorReporter returns a sentry reporter when a DSN is configured and a
// log reporter otherwise.
func NewErrorReporter(opts SentryReporterOptions) domain.ErrorReporter {
	if opts.DSN == "" {
		return LogReporter{}
	}

	reporter, err := NewSentryReporter(opts)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize sentry, falling back to log reporter")
		return LogReporter{}
	}

	return reporter
}
