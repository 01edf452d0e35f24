package modules

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/logger"
	"github.com/tnicklin/autoguild/platform"
	"github.com/tnicklin/autoguild/registry"
)

var _ Module = (*MessageRole)(nil)

// MessageRole grants a role to anyone who posts in a mapped channel.
type MessageRole struct {
	registry *registry.Registry
	platform platform.Platform
	logger   logger.Logger
}

func NewMessageRole(env Env) *MessageRole {
	env = env.withDefaults()
	return &MessageRole{
		registry: env.Registry,
		platform: env.Platform,
		logger:   env.Logger.With("module", "message_role"),
	}
}

func (m *MessageRole) Name() string { return "message_role" }

func (m *MessageRole) Register(hub Hub) error {
	hub.AddHandler(handle(m.logger, m.onMessageCreate))
	return nil
}

func (m *MessageRole) Close() error { return nil }

func (m *MessageRole) onMessageCreate(_ *discordgo.Session, e *discordgo.MessageCreate) {
	if e.Message == nil || e.GuildID == "" || e.Author == nil {
		return
	}
	// Webhook authors are not guild members.
	if e.WebhookID != "" {
		return
	}
	cfg, ok := m.registry.Get(e.GuildID)
	if !ok {
		return
	}
	roleID, ok := cfg.MessageRole(e.ChannelID)
	if !ok {
		return
	}
	if err := m.platform.AddMemberRole(context.Background(), e.GuildID, e.Author.ID, roleID); err != nil {
		m.logger.ErrorW("failed to grant role",
			"guild_id", e.GuildID,
			"user_id", e.Author.ID,
			"role_id", roleID,
			"error", err,
		)
		return
	}
	m.logger.DebugW("granted role", "guild_id", e.GuildID, "user_id", e.Author.ID, "role_id", roleID)
}
