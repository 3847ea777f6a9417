package scrim

import (
	"context"
	"fmt"
	"log/slog"
)

// ReconcileVoicePresence partitions everyone in voice into meeting-channel
// occupants and other-channel occupants from a single snapshot, then
// converges the spectator and active roles onto that partition. Members in
// no voice channel lose both roles. A member who moves between the snapshot
// and the role mutation is corrected on the next tick.
func (m *Manager) ReconcileVoicePresence(_ context.Context) error {
	occupants, err := m.discord.VoiceOccupancy(m.cfg.DiscordGuildID)
	if err != nil {
		return fmt.Errorf("failed to snapshot voice occupancy: %w", err)
	}

	inMeeting := make(map[string]struct{})
	inOtherVC := make(map[string]struct{})
	for _, occ := range occupants {
		if occ.IsBot {
			continue
		}
		if occ.ChannelID == m.cfg.MeetingVCID {
			inMeeting[occ.UserID] = struct{}{}
		} else {
			inOtherVC[occ.UserID] = struct{}{}
		}
	}

	failed := 0
	failed += m.convergeRole(m.cfg.ActiveRoleID, "active", inOtherVC)
	failed += m.convergeRole(m.cfg.SpectatorRoleID, "spectator", inMeeting)

	slog.Info("voice presence reconciled",
		"in_meeting", len(inMeeting),
		"in_other_vc", len(inOtherVC),
		"failed", failed)
	return nil
}

// convergeRole diffs the role's current holders against the desired set and
// applies best-effort adds and removes. Returns the number of failed
// mutations; each failure is logged and the rest of the diff still runs.
func (m *Manager) convergeRole(roleID, roleName string, desired map[string]struct{}) int {
	holders, err := m.discord.RoleMembers(m.cfg.DiscordGuildID, roleID)
	if err != nil {
		slog.Error("failed to enumerate role members; skipping role this pass", "error", err, "role", roleName)
		return 1
	}
	holderSet := make(map[string]struct{}, len(holders))
	for _, userID := range holders {
		holderSet[userID] = struct{}{}
	}

	failed := 0
	for userID := range desired {
		if _, ok := holderSet[userID]; ok {
			continue
		}
		if err := m.discord.AddMemberRole(m.cfg.DiscordGuildID, userID, roleID); err != nil {
			slog.Error("failed to grant role", "error", err, "role", roleName, "user_id", userID)
			failed++
		}
	}
	for _, userID := range holders {
		if _, ok := desired[userID]; ok {
			continue
		}
		if err := m.discord.RemoveMemberRole(m.cfg.DiscordGuildID, userID, roleID); err != nil {
			slog.Error("failed to revoke role", "error", err, "role", roleName, "user_id", userID)
			failed++
		}
	}
	return failed
}
