package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
)

// DefaultRetention is how long revoked, rotated or expired refresh tokens
// are kept around after they stop being usable.
const DefaultRetention = 7 * 24 * time.Hour

// HousekeepingService periodically deletes dead rows so refresh tokens,
// sessions, OTP challenges and download grants do not grow unbounded.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: DefaultRetention,
	}
}

// Run cleans up immediately and then on every tick until ctx is done.
func (s *HousekeepingService) Run(ctx context.Context) error {
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
	defer s.Logger.Info("housekeeping service stopped")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(ctx)
	for {
		select {
		case <-ticker.C:
			s.Cleanup(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Cleanup performs one pass. Each step is independent; a failure in one
// does not stop the others. It returns the number of rows deleted.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	now := clock(s.Now).now()
	retention := s.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	steps := []struct {
		name string
		run  func() (int64, error)
	}{
		{"refresh tokens", func() (int64, error) {
			return s.Store.RefreshTokens().DeleteStaleRefreshTokens(ctx, now.Add(-retention))
		}},
		{"web sessions", func() (int64, error) { return s.Store.Sessions().DeleteExpiredSessions(ctx, now) }},
		{"otp challenges", func() (int64, error) { return s.Store.OTPChallenges().DeleteExpiredChallenges(ctx, now) }},
		{"download grants", func() (int64, error) { return s.Store.DownloadGrants().DeleteExpiredGrants(ctx, now) }},
	}

	var total int64
	for _, step := range steps {
		n, err := step.run()
		if err != nil {
			s.Logger.Error("housekeeping step failed", "step", step.name, "error", err)
			continue
		}
		s.Logger.Debug("housekeeping step completed", "step", step.name, "deleted", n)
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
	return total
}
