package config

import "fmt"

type Config struct {
	Env                 string
	DiscordToken        string
	DiscordGuildID      string
	SignupChannelID     string
	MeetingVCID         string
	RegisteredRoleID    string
	ActiveRoleID        string
	SpectatorRoleID     string
	MentionRoleIDs      []string
	SignupEmoji         string
	DatabaseURL         string
	LifecycleWebhookURL string
	LogFile             string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.ActiveRoleID == c.SpectatorRoleID {
		return fmt.Errorf("ACTIVE_ROLE_ID and SPECTATOR_ROLE_ID must be distinct roles")
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "SIGNUP_CHANNEL_ID", value: c.SignupChannelID},
		{name: "MEETING_VC_ID", value: c.MeetingVCID},
		{name: "REGISTERED_ROLE_ID", value: c.RegisteredRoleID},
		{name: "ACTIVE_ROLE_ID", value: c.ActiveRoleID},
		{name: "SPECTATOR_ROLE_ID", value: c.SpectatorRoleID},
		{name: "SIGNUP_EMOJI", value: c.SignupEmoji},
		{name: "DATABASE_URL", value: c.DatabaseURL},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
