package scrim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quailrun-gg/scrimsync/internal/discord"
	"github.com/quailrun-gg/scrimsync/internal/store"
)

// registrationReport collects per-item outcomes of one registration pass so
// a single failed role mutation never aborts the rest of the pass.
type registrationReport struct {
	desired         int
	added           int
	removed         int
	failed          int
	droppedMessages int
}

// ReconcileRegistration converges the registered role onto the set of
// members currently holding the signup marker on any tracked message. Role
// bits already held are treated as stale cache and overwritten; after a pass
// that completes without a pass-level error, holders equal reactors exactly.
func (m *Manager) ReconcileRegistration(ctx context.Context) error {
	sessionMap, err := m.store.SessionMap(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session map: %w", err)
	}

	report := registrationReport{}
	reactedSets, stale := m.fetchReactedSets(sessionMap)
	if len(stale) > 0 {
		report.droppedMessages = len(stale)
		m.dropStaleMessages(ctx, stale)
	}

	desired := make(map[string]struct{})
	for _, set := range reactedSets {
		for userID := range set {
			desired[userID] = struct{}{}
		}
	}
	report.desired = len(desired)

	holders, err := m.discord.RoleMembers(m.cfg.DiscordGuildID, m.cfg.RegisteredRoleID)
	if err != nil {
		return fmt.Errorf("failed to enumerate registered role members: %w", err)
	}
	holderSet := make(map[string]struct{}, len(holders))
	for _, userID := range holders {
		holderSet[userID] = struct{}{}
	}

	for userID := range desired {
		if _, ok := holderSet[userID]; ok {
			continue
		}
		if err := m.discord.AddMemberRole(m.cfg.DiscordGuildID, userID, m.cfg.RegisteredRoleID); err != nil {
			slog.Error("failed to grant registered role", "error", err, "user_id", userID)
			report.failed++
			continue
		}
		report.added++
	}
	for _, userID := range holders {
		if _, ok := desired[userID]; ok {
			continue
		}
		if err := m.discord.RemoveMemberRole(m.cfg.DiscordGuildID, userID, m.cfg.RegisteredRoleID); err != nil {
			slog.Error("failed to revoke registered role", "error", err, "user_id", userID)
			report.failed++
			continue
		}
		report.removed++
	}

	slog.Info("registration reconciled",
		"registered", report.desired,
		"added", report.added,
		"removed", report.removed,
		"failed", report.failed,
		"dropped_messages", report.droppedMessages)
	return nil
}

// fetchReactedSets resolves the signup marker holders of every tracked
// message in one pass. Messages that no longer exist are reported as stale;
// messages that fail for any other reason are skipped this pass and retried
// on the next one.
func (m *Manager) fetchReactedSets(sessionMap store.SessionMap) (map[string]map[string]struct{}, []string) {
	sets := make(map[string]map[string]struct{})
	stale := make([]string, 0)
	for _, messageID := range sessionMap {
		if _, done := sets[messageID]; done {
			continue
		}
		users, err := m.discord.ListReactionUsers(m.cfg.SignupChannelID, messageID, m.cfg.SignupEmoji)
		if errors.Is(err, discord.ErrNotFound) {
			stale = append(stale, messageID)
			continue
		}
		if err != nil {
			slog.Error("failed to fetch signup reactions; skipping message this pass", "error", err, "message_id", messageID)
			continue
		}
		set := make(map[string]struct{}, len(users))
		for _, u := range users {
			if u.IsBot || m.isOwnUser(u.UserID) {
				continue
			}
			set[u.UserID] = struct{}{}
		}
		sets[messageID] = set
	}
	return sets, stale
}

// dropStaleMessages removes every mapping that points at a signup message
// Discord no longer knows about, so the vanished message is never fetched
// again. A failed persist is only logged: the same stale IDs resurface on
// the next pass and the drop is retried.
func (m *Manager) dropStaleMessages(ctx context.Context, stale []string) {
	staleSet := make(map[string]struct{}, len(stale))
	for _, messageID := range stale {
		staleSet[messageID] = struct{}{}
	}

	m.mu.Lock()
	for sessionID, ts := range m.sessions {
		if _, gone := staleSet[ts.signupMessageID]; gone {
			delete(m.sessions, sessionID)
			delete(m.warned, sessionID)
		}
	}
	m.mu.Unlock()

	dropped := 0
	err := m.updateSessionMap(ctx, func(sessionMap store.SessionMap) {
		for sessionID, messageID := range sessionMap {
			if _, gone := staleSet[messageID]; gone {
				delete(sessionMap, sessionID)
				dropped++
			}
		}
	})
	if err != nil {
		slog.Error("failed to persist session map after dropping stale messages; will retry next pass", "error", err)
		return
	}
	slog.Info("dropped vanished signup messages from tracking", "dropped_sessions", dropped)
}

func (m *Manager) isTrackedMessage(ctx context.Context, messageID string) (bool, error) {
	sessionMap, err := m.store.SessionMap(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load session map: %w", err)
	}
	for _, tracked := range sessionMap {
		if tracked == messageID {
			return true, nil
		}
	}
	return false, nil
}

// HandleReactionAdd grants the registered role as soon as a member puts the
// signup marker on a tracked message.
func (m *Manager) HandleReactionAdd(event discord.ReactionEvent) {
	if event.GuildID != m.cfg.DiscordGuildID || event.UserIsBot || m.isOwnUser(event.UserID) {
		return
	}
	if event.Emoji != m.cfg.SignupEmoji {
		return
	}
	ctx := context.Background()
	tracked, err := m.isTrackedMessage(ctx, event.MessageID)
	if err != nil {
		slog.Error("failed to check tracked message on reaction add", "error", err, "message_id", event.MessageID)
		return
	}
	if !tracked {
		return
	}
	if err := m.discord.AddMemberRole(m.cfg.DiscordGuildID, event.UserID, m.cfg.RegisteredRoleID); err != nil {
		slog.Error("failed to grant registered role on reaction add", "error", err, "user_id", event.UserID)
		return
	}
	slog.Info("registered role granted", "user_id", event.UserID, "message_id", event.MessageID)
}

// HandleReactionRemove revokes the registered role only when the member no
// longer holds the signup marker on any other tracked message: registration
// is a union across all tracked messages, not per-message.
func (m *Manager) HandleReactionRemove(event discord.ReactionEvent) {
	if event.GuildID != m.cfg.DiscordGuildID || event.UserIsBot || m.isOwnUser(event.UserID) {
		return
	}
	if event.Emoji != m.cfg.SignupEmoji {
		return
	}
	ctx := context.Background()
	sessionMap, err := m.store.SessionMap(ctx)
	if err != nil {
		slog.Error("failed to load session map on reaction remove", "error", err)
		return
	}
	tracked := false
	for _, messageID := range sessionMap {
		if messageID == event.MessageID {
			tracked = true
			break
		}
	}
	if !tracked {
		return
	}

	reactedSets, stale := m.fetchReactedSets(sessionMap)
	if len(stale) > 0 {
		m.dropStaleMessages(ctx, stale)
	}
	for messageID, set := range reactedSets {
		if messageID == event.MessageID {
			continue
		}
		if _, still := set[event.UserID]; still {
			slog.Info("member still registered on another signup message; keeping role", "user_id", event.UserID)
			return
		}
	}

	if err := m.discord.RemoveMemberRole(m.cfg.DiscordGuildID, event.UserID, m.cfg.RegisteredRoleID); err != nil {
		slog.Error("failed to revoke registered role on reaction remove", "error", err, "user_id", event.UserID)
		return
	}
	slog.Info("registered role revoked", "user_id", event.UserID, "message_id", event.MessageID)
}

// HandleTrackedMessageDeleted untracks a deleted signup message and resyncs
// the registered role from the surviving messages.
func (m *Manager) HandleTrackedMessageDeleted(event discord.MessageDeleteEvent) {
	if event.GuildID != "" && event.GuildID != m.cfg.DiscordGuildID {
		return
	}
	ctx := context.Background()
	sessionMap, err := m.store.SessionMap(ctx)
	if err != nil {
		slog.Error("failed to load session map on message delete", "error", err)
		return
	}
	tracked := false
	for _, messageID := range sessionMap {
		if messageID == event.MessageID {
			tracked = true
			break
		}
	}
	if !tracked {
		return
	}

	slog.Info("tracked signup message was deleted; resyncing roles", "message_id", event.MessageID)
	m.dropStaleMessages(ctx, []string{event.MessageID})
	if err := m.ReconcileRegistration(ctx); err != nil {
		slog.Error("registration resync after message delete failed", "error", err)
	}
}
