package scrim

import (
	"context"
	"log/slog"
	"time"
)

const (
	lifecyclePollInterval = time.Minute
	voicePollInterval     = time.Minute
)

// RunScheduler drives the periodic reconciliation passes until the context
// is cancelled. Both tickers only do work while a session is live; every
// pass re-derives its targets from scratch, so a missed or failed tick is
// made up for by the next one.
func (m *Manager) RunScheduler(ctx context.Context) {
	lifecycleTicker := time.NewTicker(lifecyclePollInterval)
	voiceTicker := time.NewTicker(voicePollInterval)
	defer lifecycleTicker.Stop()
	defer voiceTicker.Stop()

	slog.Info("reconciliation scheduler started",
		"lifecycle_interval", lifecyclePollInterval.String(),
		"voice_interval", voicePollInterval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciliation scheduler stopped")
			return
		case now := <-lifecycleTicker.C:
			if !m.hasLiveSession() {
				continue
			}
			m.PollLifecycle(ctx, now)
		case <-voiceTicker.C:
			if !m.hasLiveSession() {
				continue
			}
			if err := m.ReconcileVoicePresence(ctx); err != nil {
				slog.Error("voice presence pass failed; retrying next tick", "error", err)
			}
		}
	}
}
