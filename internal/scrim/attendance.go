package scrim

import (
	"context"
	"fmt"
	"log/slog"
)

// UpdateAttendance point-samples participation: every currently registered
// member gets a registration credit, and those also sitting in any voice
// channel at this instant get an attendance credit on top. Counters only
// ever grow; this is a sample at the moment of the manual update, not a
// duration measure.
func (m *Manager) UpdateAttendance(ctx context.Context) (registered, attended int, err error) {
	sessionMap, err := m.store.SessionMap(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load session map: %w", err)
	}
	reactedSets, stale := m.fetchReactedSets(sessionMap)
	if len(stale) > 0 {
		m.dropStaleMessages(ctx, stale)
	}
	registeredSet := make(map[string]struct{})
	for _, set := range reactedSets {
		for userID := range set {
			registeredSet[userID] = struct{}{}
		}
	}

	occupants, err := m.discord.VoiceOccupancy(m.cfg.DiscordGuildID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to snapshot voice occupancy: %w", err)
	}
	inVoice := make(map[string]struct{}, len(occupants))
	for _, occ := range occupants {
		if occ.IsBot {
			continue
		}
		inVoice[occ.UserID] = struct{}{}
	}

	m.storeMu.Lock()
	attendance, err := m.store.Attendance(ctx)
	if err != nil {
		m.storeMu.Unlock()
		return 0, 0, fmt.Errorf("failed to load attendance: %w", err)
	}
	for userID := range registeredSet {
		rec := attendance[userID]
		rec.Registered++
		registered++
		if _, present := inVoice[userID]; present {
			rec.Attended++
			attended++
		}
		attendance[userID] = rec
	}
	if err := m.store.PutAttendance(ctx, attendance); err != nil {
		m.storeMu.Unlock()
		return 0, 0, fmt.Errorf("failed to persist attendance: %w", err)
	}
	m.storeMu.Unlock()

	slog.Info("attendance updated", "registered", registered, "attended", attended)
	return registered, attended, nil
}

// RecordWin bumps a member's win tally and returns the new total.
func (m *Manager) RecordWin(ctx context.Context, userID string) (int, error) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	wins, err := m.store.Wins(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load win tallies: %w", err)
	}
	wins[userID]++
	if err := m.store.PutWins(ctx, wins); err != nil {
		return 0, fmt.Errorf("failed to persist win tallies: %w", err)
	}
	slog.Info("win recorded", "user_id", userID, "total", wins[userID])
	return wins[userID], nil
}

func (m *Manager) WinCounts(ctx context.Context) (map[string]int, error) {
	wins, err := m.store.Wins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load win tallies: %w", err)
	}
	return wins, nil
}
