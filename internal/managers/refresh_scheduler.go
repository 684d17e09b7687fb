package managers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/devblin/infisical/pkg/domain"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRefreshSchedule = "@every 5m"
	DefaultRefreshWindow   = 10 * time.Minute
)

type RefreshSchedulerDependencies struct {
	AuthManager   domain.IntegrationAuthManager
	AccessManager domain.IntegrationAccessManager
	Schedule      string
	Window        time.Duration
	Now           func() time.Time
	// Supports filters auths whose integration can be refreshed. Defaults to
	// the known integration types.
	Supports func(domain.IntegrationType) bool
}

// RefreshScheduler proactively refreshes access tokens that are about to expire.
type RefreshScheduler struct {
	authManager   domain.IntegrationAuthManager
	accessManager domain.IntegrationAccessManager
	schedule      string
	window        time.Duration
	now           func() time.Time
	supports      func(domain.IntegrationType) bool
	sweeping      atomic.Bool
}

type SweepResult struct {
	Checked   int
	Refreshed int
	Failed    int
	Skipped   int
}

func NewRefreshScheduler(deps RefreshSchedulerDependencies) (*RefreshScheduler, error) {
	schedule := deps.Schedule
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	window := deps.Window
	if window <= 0 {
		window = DefaultRefreshWindow
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	supports := deps.Supports
	if supports == nil {
		supports = domain.IntegrationType.IsKnown
	}

	return &RefreshScheduler{
		authManager:   deps.AuthManager,
		accessManager: deps.AccessManager,
		schedule:      schedule,
		window:        window,
		now:           now,
		supports:      supports,
	}, nil
}

// Start runs sweeps on the schedule until ctx is cancelled, then waits for a
// running sweep to finish.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	c := cron.New()

	_, err := c.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh sweep: %w", err)
	}

	log.Info().
		Str("schedule", s.schedule).
		Dur("window", s.window).
		Msg("Starting integration token refresh scheduler")

	c.Start()

	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()

	log.Info().Msg("Integration token refresh scheduler stopped")

	return nil
}

// Sweep refreshes every auth expiring within the window. One failing auth
// does not stop the others. Overlapping sweeps are skipped.
func (s *RefreshScheduler) Sweep(ctx context.Context) SweepResult {
	var result SweepResult

	if !s.sweeping.CompareAndSwap(false, true) {
		log.Debug().Msg("Refresh sweep already running, skipping")
		return result
	}
	defer s.sweeping.Store(false)

	auths, err := s.authManager.ListExpiringIntegrationAuths(ctx, s.now().Add(s.window))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expiring integration auths")
		return result
	}

	for _, auth := range auths {
		if ctx.Err() != nil {
			break
		}

		if !s.supports(auth.Integration) {
			result.Skipped++
			log.Debug().
				Str("integration_auth_id", auth.ID).
				Str("integration", string(auth.Integration)).
				Msg("Skipping integration auth without refresh support")
			continue
		}

		result.Checked++

		if _, err := s.accessManager.RefreshIntegrationAuthAccess(ctx, auth.ID); err != nil {
			result.Failed++
			log.Error().
				Err(err).
				Str("integration_auth_id", auth.ID).
				Str("integration", string(auth.Integration)).
				Msg("Failed to refresh integration auth")
			continue
		}

		result.Refreshed++
	}

	if result.Checked > 0 || result.Skipped > 0 {
		log.Info().
			Int("checked", result.Checked).
			Int("refreshed", result.Refreshed).
			Int("failed", result.Failed).
			Int("skipped", result.Skipped).
			Msg("Refresh sweep finished")
	}

	return result
}
