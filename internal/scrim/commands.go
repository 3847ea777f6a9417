package scrim

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/quailrun-gg/scrimsync/internal/discord"
)

const (
	commandCreate = "scrim-create"
	commandEnd    = "scrim-end"
	commandCancel = "scrim-cancel"
	commandUpdate = "scrim-update"
	commandWin    = "scrim-win"
)

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{
			Name:        commandCreate,
			Description: slashCommandCreateDescription,
			Options: []discord.SlashCommandOption{
				{Name: "name", Description: "Scrim title", Required: true},
				{Name: "start", Description: "Start time as a unix timestamp", Required: true},
				{Name: "description", Description: "Details shown on the signup message"},
			},
		},
		{Name: commandEnd, Description: slashCommandEndDescription},
		{Name: commandCancel, Description: slashCommandCancelDescription},
		{Name: commandUpdate, Description: slashCommandUpdateDescription},
		{
			Name:        commandWin,
			Description: slashCommandWinDescription,
			Options: []discord.SlashCommandOption{
				{Name: "member", Description: "Member mention or ID", Required: true},
			},
		},
	}
}

func (m *Manager) HandleSlashCommand(event discord.SlashCommandEvent) {
	if event.GuildID != m.cfg.DiscordGuildID {
		m.respondEphemeral(event, messageEphemeralWrongGuild)
		return
	}
	ctx := context.Background()
	switch event.CommandName {
	case commandCreate:
		m.handleCreateCommand(ctx, event)
	case commandEnd:
		m.handleEndCommand(ctx, event)
	case commandCancel:
		m.handleCancelCommand(ctx, event)
	case commandUpdate:
		m.handleUpdateCommand(ctx, event)
	case commandWin:
		m.handleWinCommand(ctx, event)
	default:
		m.respondEphemeral(event, messageEphemeralUnknownCommand)
	}
}

func (m *Manager) handleCreateCommand(ctx context.Context, event discord.SlashCommandEvent) {
	name := strings.TrimSpace(event.Options["name"])
	startRaw := strings.TrimSpace(event.Options["start"])
	description := strings.TrimSpace(event.Options["description"])
	if name == "" || startRaw == "" {
		m.respondEphemeral(event, messageEphemeralMissingOption)
		return
	}
	unix, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil {
		m.respondEphemeral(event, messageEphemeralInvalidStart)
		return
	}
	startAt := time.Unix(unix, 0)
	if !startAt.After(time.Now()) {
		m.respondEphemeral(event, messageEphemeralInvalidStart)
		return
	}

	if err := m.BeginSession(ctx, name, description, startAt); err != nil {
		if errors.Is(err, errSessionInProgress) {
			m.respondEphemeral(event, messageEphemeralSessionInProgress)
			return
		}
		slog.Error("scrim create failed", "error", err, "user_id", event.UserID)
		m.respondEphemeral(event, messageEphemeralCreateFailed)
		return
	}
	m.respondEphemeral(event, createdEphemeral(name, startAt))
}

func (m *Manager) handleEndCommand(ctx context.Context, event discord.SlashCommandEvent) {
	if err := m.EndSession(ctx); err != nil {
		if errors.Is(err, errNoLiveSession) {
			m.respondEphemeral(event, messageEphemeralNoLiveSession)
			return
		}
		slog.Error("scrim end failed", "error", err, "user_id", event.UserID)
		m.respondEphemeral(event, messageEphemeralEndFailed)
		return
	}
	m.respondEphemeral(event, messageEphemeralEnded)
}

func (m *Manager) handleCancelCommand(ctx context.Context, event discord.SlashCommandEvent) {
	if err := m.CancelSession(ctx); err != nil {
		if errors.Is(err, errNoLiveSession) {
			m.respondEphemeral(event, messageEphemeralNoLiveSession)
			return
		}
		slog.Error("scrim cancel failed", "error", err, "user_id", event.UserID)
		m.respondEphemeral(event, messageEphemeralCancelFailed)
		return
	}
	m.respondEphemeral(event, messageEphemeralCancelled)
}

func (m *Manager) handleUpdateCommand(ctx context.Context, event discord.SlashCommandEvent) {
	if err := m.ReconcileRegistration(ctx); err != nil {
		slog.Error("manual registration reconcile failed", "error", err, "user_id", event.UserID)
		m.respondEphemeral(event, messageEphemeralUpdateFailed)
		return
	}
	if err := m.ReconcileVoicePresence(ctx); err != nil {
		slog.Error("manual voice reconcile failed", "error", err, "user_id", event.UserID)
		m.respondEphemeral(event, messageEphemeralUpdateFailed)
		return
	}
	registered, attended, err := m.UpdateAttendance(ctx)
	if err != nil {
		slog.Error("attendance update failed", "error", err, "user_id", event.UserID)
		m.respondEphemeral(event, messageEphemeralUpdateFailed)
		return
	}
	m.respondEphemeral(event, updatedEphemeral(registered, attended))
}

func (m *Manager) handleWinCommand(ctx context.Context, event discord.SlashCommandEvent) {
	userID := parseMemberOption(event.Options["member"])
	if userID == "" {
		m.respondEphemeral(event, messageEphemeralMissingOption)
		return
	}
	total, err := m.RecordWin(ctx, userID)
	if err != nil {
		slog.Error("win record failed", "error", err, "user_id", event.UserID)
		m.respondEphemeral(event, messageEphemeralWinFailed)
		return
	}
	m.respondEphemeral(event, winEphemeral(userID, total))
}

// parseMemberOption accepts a raw user ID or a mention like <@123> / <@!123>.
func parseMemberOption(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	s = strings.TrimSuffix(s, ">")
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return s
}

func (m *Manager) respondEphemeral(event discord.SlashCommandEvent, content string) {
	if event.RespondEphemeral == nil {
		return
	}
	if err := event.RespondEphemeral(content); err != nil {
		slog.Error("failed to respond to slash command", "error", err, "command", event.CommandName)
	}
}
