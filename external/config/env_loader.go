package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/quailrun-gg/scrimsync/internal/config"
)

type envConfig struct {
	Env                 string   `env:"ENV" envDefault:"production"`
	DiscordToken        string   `env:"DISCORD_TOKEN,required"`
	DiscordGuildID      string   `env:"DISCORD_GUILD_ID,required"`
	SignupChannelID     string   `env:"SIGNUP_CHANNEL_ID,required"`
	MeetingVCID         string   `env:"MEETING_VC_ID,required"`
	RegisteredRoleID    string   `env:"REGISTERED_ROLE_ID,required"`
	ActiveRoleID        string   `env:"ACTIVE_ROLE_ID,required"`
	SpectatorRoleID     string   `env:"SPECTATOR_ROLE_ID,required"`
	MentionRoleIDs      []string `env:"MENTION_ROLE_IDS" envSeparator:","`
	SignupEmoji         string   `env:"SIGNUP_EMOJI" envDefault:"✅"`
	DatabaseURL         string   `env:"DATABASE_URL,required"`
	LifecycleWebhookURL string   `env:"LIFECYCLE_WEBHOOK_URL"`
	LogFile             string   `env:"LOG_FILE"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                 raw.Env,
		DiscordToken:        raw.DiscordToken,
		DiscordGuildID:      raw.DiscordGuildID,
		SignupChannelID:     raw.SignupChannelID,
		MeetingVCID:         raw.MeetingVCID,
		RegisteredRoleID:    raw.RegisteredRoleID,
		ActiveRoleID:        raw.ActiveRoleID,
		SpectatorRoleID:     raw.SpectatorRoleID,
		MentionRoleIDs:      raw.MentionRoleIDs,
		SignupEmoji:         raw.SignupEmoji,
		DatabaseURL:         raw.DatabaseURL,
		LifecycleWebhookURL: raw.LifecycleWebhookURL,
		LogFile:             raw.LogFile,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
