package discord

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that a message, member or scheduled event no longer
// exists on the Discord side. Reconcilers treat it as a signal to drop the
// stale reference, never as a failure.
var ErrNotFound = errors.New("discord: not found")

type ReactionUser struct {
	UserID string
	IsBot  bool
}

type VoiceOccupant struct {
	UserID    string
	ChannelID string
	IsBot     bool
}

type ScheduledEventStatus string

const (
	EventStatusScheduled ScheduledEventStatus = "scheduled"
	EventStatusActive    ScheduledEventStatus = "active"
	EventStatusCompleted ScheduledEventStatus = "completed"
	EventStatusCancelled ScheduledEventStatus = "cancelled"
)

type ScheduledEvent struct {
	ID        string
	Name      string
	ChannelID string
	StartAt   time.Time
	Status    ScheduledEventStatus
}

type CreateEventInput struct {
	GuildID     string
	Name        string
	Description string
	ChannelID   string
	StartAt     time.Time
}

type SignupAnnouncement struct {
	ChannelID      string
	Title          string
	Description    string
	StartAt        time.Time
	MentionRoleIDs []string
}

type ReactionEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
	UserIsBot bool
}

type MessageDeleteEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
}

type ScheduledEventUpdateEvent struct {
	GuildID string
	EventID string
	Status  ScheduledEventStatus
}

type SlashCommandOption struct {
	Name        string
	Description string
	Required    bool
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	Options     []SlashCommandOption
}

type SlashCommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	UserID           string
	Options          map[string]string
	RespondEphemeral func(content string) error
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Run() error
	GetBotUserID() (string, error)

	SendSignupAnnouncement(msg SignupAnnouncement) (messageID string, err error)
	SendChannelMessage(channelID, content string) error
	DeleteMessage(channelID, messageID string) error
	AddReaction(channelID, messageID, emoji string) error
	ListReactionUsers(channelID, messageID, emoji string) ([]ReactionUser, error)

	RoleMembers(guildID, roleID string) ([]string, error)
	AddMemberRole(guildID, userID, roleID string) error
	RemoveMemberRole(guildID, userID, roleID string) error
	VoiceOccupancy(guildID string) ([]VoiceOccupant, error)

	CreateScheduledEvent(ctx context.Context, input CreateEventInput) (*ScheduledEvent, error)
	StartScheduledEvent(guildID, eventID string) error
	EndScheduledEvent(guildID, eventID string) error
	DeleteScheduledEvent(guildID, eventID string) error
	ListScheduledEvents(guildID string) ([]ScheduledEvent, error)

	RegisterReactionAddHandler(handler func(ReactionEvent))
	RegisterReactionRemoveHandler(handler func(ReactionEvent))
	RegisterMessageDeleteHandler(handler func(MessageDeleteEvent))
	RegisterScheduledEventUpdateHandler(handler func(ScheduledEventUpdateEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
}
