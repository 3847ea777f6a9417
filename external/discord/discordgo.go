package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/quailrun-gg/scrimsync/internal/discord"
)

const reactionPageSize = 100

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(_ context.Context) error {
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(
		discordgo.IntentsGuilds |
			discordgo.IntentsGuildMembers |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsGuildMessageReactions |
			discordgo.IntentsGuildVoiceStates |
			discordgo.IntentGuildScheduledEvents)
	s.State.TrackVoice = true
	s.State.TrackMembers = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) Run() error {
	select {}
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) SendSignupAnnouncement(msg discordpkg.SignupAnnouncement) (string, error) {
	content := ""
	for _, roleID := range msg.MentionRoleIDs {
		if roleID == "" {
			continue
		}
		if content != "" {
			content += " "
		}
		content += fmt.Sprintf("<@&%s>", roleID)
	}
	sent, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: content,
		Embed: &discordgo.MessageEmbed{
			Title:       msg.Title,
			Description: msg.Description,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Starts", Value: fmt.Sprintf("<t:%d:F>", msg.StartAt.Unix())},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return sent.ID, nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	return err
}

func (c *Client) DeleteMessage(channelID, messageID string) error {
	err := c.session.ChannelMessageDelete(channelID, messageID)
	if isRESTNotFound(err) {
		return discordpkg.ErrNotFound
	}
	return err
}

func (c *Client) AddReaction(channelID, messageID, emoji string) error {
	return c.session.MessageReactionAdd(channelID, messageID, emoji)
}

func (c *Client) ListReactionUsers(channelID, messageID, emoji string) ([]discordpkg.ReactionUser, error) {
	users := make([]discordpkg.ReactionUser, 0)
	afterID := ""
	for {
		page, err := c.session.MessageReactions(channelID, messageID, emoji, reactionPageSize, "", afterID)
		if err != nil {
			if isRESTNotFound(err) {
				return nil, discordpkg.ErrNotFound
			}
			return nil, err
		}
		for _, u := range page {
			if u == nil || u.ID == "" {
				continue
			}
			users = append(users, discordpkg.ReactionUser{UserID: u.ID, IsBot: u.Bot})
		}
		if len(page) < reactionPageSize {
			return users, nil
		}
		afterID = page[len(page)-1].ID
	}
}

func (c *Client) RoleMembers(guildID, roleID string) ([]string, error) {
	members, err := c.guildMembers(guildID)
	if err != nil {
		return nil, err
	}
	holders := make([]string, 0)
	for _, m := range members {
		if m == nil || m.User == nil {
			continue
		}
		for _, r := range m.Roles {
			if r == roleID {
				holders = append(holders, m.User.ID)
				break
			}
		}
	}
	return holders, nil
}

func (c *Client) guildMembers(guildID string) ([]*discordgo.Member, error) {
	if c.session.State != nil {
		guild, err := c.session.State.Guild(guildID)
		if err == nil && stateMembersComplete(guild) {
			return guild.Members, nil
		}
	}

	// Member cache may be cold right after bot startup, or hold only the
	// partial chunk a large guild delivers in its create payload; page
	// through the REST endpoint instead.
	all := make([]*discordgo.Member, 0)
	afterID := ""
	for {
		page, err := c.session.GuildMembers(guildID, afterID, 1000)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < 1000 {
			return all, nil
		}
		afterID = page[len(page)-1].User.ID
	}
}

// stateMembersComplete reports whether the state cache holds the guild's
// full member list rather than a partial chunk.
func stateMembersComplete(guild *discordgo.Guild) bool {
	if guild == nil || len(guild.Members) == 0 {
		return false
	}
	return guild.MemberCount > 0 && len(guild.Members) >= guild.MemberCount
}

func (c *Client) AddMemberRole(guildID, userID, roleID string) error {
	err := c.session.GuildMemberRoleAdd(guildID, userID, roleID)
	if isRESTNotFound(err) {
		return discordpkg.ErrNotFound
	}
	return err
}

func (c *Client) RemoveMemberRole(guildID, userID, roleID string) error {
	err := c.session.GuildMemberRoleRemove(guildID, userID, roleID)
	if isRESTNotFound(err) {
		return discordpkg.ErrNotFound
	}
	return err
}

func (c *Client) VoiceOccupancy(guildID string) ([]discordpkg.VoiceOccupant, error) {
	if c.session == nil || c.session.State == nil {
		return nil, fmt.Errorf("discord session state is not initialized")
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to read guild %q from state: %w", guildID, err)
	}
	if guild == nil {
		return nil, fmt.Errorf("guild %q is not present in state", guildID)
	}
	occupants := make([]discordpkg.VoiceOccupant, 0)
	seen := make(map[string]struct{})
	for _, state := range guild.VoiceStates {
		if state == nil || state.UserID == "" || state.ChannelID == "" {
			continue
		}
		if _, exists := seen[state.UserID]; exists {
			continue
		}
		seen[state.UserID] = struct{}{}
		occupants = append(occupants, discordpkg.VoiceOccupant{
			UserID:    state.UserID,
			ChannelID: state.ChannelID,
			IsBot:     c.resolveUserIsBot(guildID, state.UserID),
		})
	}
	return occupants, nil
}

func (c *Client) CreateScheduledEvent(_ context.Context, input discordpkg.CreateEventInput) (*discordpkg.ScheduledEvent, error) {
	startAt := input.StartAt
	params := &discordgo.GuildScheduledEventParams{
		Name:               input.Name,
		Description:        input.Description,
		ChannelID:          input.ChannelID,
		ScheduledStartTime: &startAt,
		EntityType:         discordgo.GuildScheduledEventEntityTypeVoice,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
	}
	ev, err := c.session.GuildScheduledEventCreate(input.GuildID, params)
	if err != nil {
		return nil, err
	}
	return toScheduledEvent(ev), nil
}

func (c *Client) StartScheduledEvent(guildID, eventID string) error {
	return c.editScheduledEventStatus(guildID, eventID, discordgo.GuildScheduledEventStatusActive)
}

func (c *Client) EndScheduledEvent(guildID, eventID string) error {
	return c.editScheduledEventStatus(guildID, eventID, discordgo.GuildScheduledEventStatusCompleted)
}

func (c *Client) editScheduledEventStatus(guildID, eventID string, status discordgo.GuildScheduledEventStatus) error {
	_, err := c.session.GuildScheduledEventEdit(guildID, eventID, &discordgo.GuildScheduledEventParams{
		Status: status,
	})
	if isRESTNotFound(err) {
		return discordpkg.ErrNotFound
	}
	return err
}

func (c *Client) DeleteScheduledEvent(guildID, eventID string) error {
	err := c.session.GuildScheduledEventDelete(guildID, eventID)
	if isRESTNotFound(err) {
		return discordpkg.ErrNotFound
	}
	return err
}

func (c *Client) ListScheduledEvents(guildID string) ([]discordpkg.ScheduledEvent, error) {
	events, err := c.session.GuildScheduledEvents(guildID, false)
	if err != nil {
		return nil, err
	}
	list := make([]discordpkg.ScheduledEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		list = append(list, *toScheduledEvent(ev))
	}
	return list, nil
}

func toScheduledEvent(ev *discordgo.GuildScheduledEvent) *discordpkg.ScheduledEvent {
	return &discordpkg.ScheduledEvent{
		ID:        ev.ID,
		Name:      ev.Name,
		ChannelID: ev.ChannelID,
		StartAt:   ev.ScheduledStartTime,
		Status:    toScheduledEventStatus(ev.Status),
	}
}

func toScheduledEventStatus(status discordgo.GuildScheduledEventStatus) discordpkg.ScheduledEventStatus {
	switch status {
	case discordgo.GuildScheduledEventStatusScheduled:
		return discordpkg.EventStatusScheduled
	case discordgo.GuildScheduledEventStatusActive:
		return discordpkg.EventStatusActive
	case discordgo.GuildScheduledEventStatusCompleted:
		return discordpkg.EventStatusCompleted
	default:
		return discordpkg.EventStatusCancelled
	}
}

func (c *Client) RegisterReactionAddHandler(handler func(discordpkg.ReactionEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if r == nil || r.MessageReaction == nil {
			return
		}
		handler(c.toReactionEvent(r.MessageReaction))
	})
}

func (c *Client) RegisterReactionRemoveHandler(handler func(discordpkg.ReactionEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
		if r == nil || r.MessageReaction == nil {
			return
		}
		handler(c.toReactionEvent(r.MessageReaction))
	})
}

func (c *Client) toReactionEvent(r *discordgo.MessageReaction) discordpkg.ReactionEvent {
	return discordpkg.ReactionEvent{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.APIName(),
		UserIsBot: c.resolveUserIsBot(r.GuildID, r.UserID),
	}
}

func (c *Client) RegisterMessageDeleteHandler(handler func(discordpkg.MessageDeleteEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDelete) {
		if m == nil || m.Message == nil || m.ID == "" {
			return
		}
		handler(discordpkg.MessageDeleteEvent{
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
		})
	})
}

func (c *Client) RegisterScheduledEventUpdateHandler(handler func(discordpkg.ScheduledEventUpdateEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildScheduledEventUpdate) {
		if e == nil || e.GuildScheduledEvent == nil {
			return
		}
		handler(discordpkg.ScheduledEventUpdateEvent{
			GuildID: e.GuildID,
			EventID: e.ID,
			Status:  toScheduledEventStatus(e.Status),
		})
	})
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := ""
		if ic.Member != nil && ic.Member.User != nil {
			userID = ic.Member.User.ID
		}
		if userID == "" && ic.User != nil {
			userID = ic.User.ID
		}
		if userID == "" {
			return
		}
		options := make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			if opt == nil || opt.Type != discordgo.ApplicationCommandOptionString {
				continue
			}
			options[opt.Name] = opt.StringValue()
		}
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		handler(discordpkg.SlashCommandEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			CommandName: data.Name,
			UserID:      userID,
			Options:     options,
			RespondEphemeral: func(content string) error {
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: content,
						Flags:   discordgo.MessageFlagsEphemeral,
					},
				})
			},
		})
	})
}

func (c *Client) UpsertGuildSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertGuildSlashCommand(appID, guildID, def, existingByName); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertGuildSlashCommand(appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
		Options:     toCommandOptions(def.Options),
	}
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if !commandNeedsUpdate(cmd, payload) {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

// commandNeedsUpdate compares the registered command against the desired
// payload field by field; an option changing in place keeps the same count,
// so option contents are part of the comparison.
func commandNeedsUpdate(existing, desired *discordgo.ApplicationCommand) bool {
	if existing.Description != desired.Description {
		return true
	}
	if len(existing.Options) != len(desired.Options) {
		return true
	}
	for i, want := range desired.Options {
		have := existing.Options[i]
		if have == nil ||
			have.Type != want.Type ||
			have.Name != want.Name ||
			have.Description != want.Description ||
			have.Required != want.Required {
			return true
		}
	}
	return false
}

func toCommandOptions(opts []discordpkg.SlashCommandOption) []*discordgo.ApplicationCommandOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]*discordgo.ApplicationCommandOption, 0, len(opts))
	for _, opt := range opts {
		out = append(out, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        opt.Name,
			Description: opt.Description,
			Required:    opt.Required,
		})
	}
	return out
}

func (c *Client) resolveUserIsBot(guildID, userID string) bool {
	if c.session == nil {
		return false
	}
	if c.session.State != nil {
		if c.session.State.User != nil && c.session.State.User.ID == userID {
			return true
		}
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil && member.User != nil {
			return member.User.Bot
		}
	}
	u, err := c.session.User(userID)
	if err != nil {
		return false
	}
	return u.Bot
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

func isRESTNotFound(err error) bool {
	if err == nil {
		return false
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}
