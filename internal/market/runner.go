package market

import (
	"context"
	"log/slog"
	"time"
)

// Run drives an active session: the countdown every ClockEvery and the price
// walk every WalkEvery. It returns when the session reaches results or ctx is
// cancelled. onUpdate, when set, receives a view after every change.
func Run(ctx context.Context, s *Session, logger *slog.Logger, onUpdate func(View)) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := s.Config()
	clock := time.NewTicker(cfg.ClockEvery)
	defer clock.Stop()
	walk := time.NewTicker(cfg.WalkEvery)
	defer walk.Stop()

	notify := func() {
		if onUpdate != nil {
			onUpdate(s.View())
		}
	}
	for {
		select {
		case <-ctx.Done():
			logger.Debug("market session stopped", "err", ctx.Err())
			return
		case <-clock.C:
			done := s.Tick()
			notify()
			if done {
				logger.Debug("market session finished")
				return
			}
		case <-walk.C:
			s.Walk()
			notify()
		}
	}
}
