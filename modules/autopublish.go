package modules

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/logger"
	"github.com/tnicklin/autoguild/platform"
	"github.com/tnicklin/autoguild/registry"
)

var _ Module = (*AutoPublisher)(nil)

// AutoPublisher cross-posts messages from configured announcement channels
// to the servers following them.
type AutoPublisher struct {
	registry *registry.Registry
	platform platform.Platform
	logger   logger.Logger
}

func NewAutoPublisher(env Env) *AutoPublisher {
	env = env.withDefaults()
	return &AutoPublisher{
		registry: env.Registry,
		platform: env.Platform,
		logger:   env.Logger.With("module", "auto_publisher"),
	}
}

func (m *AutoPublisher) Name() string { return "auto_publisher" }

func (m *AutoPublisher) Register(hub Hub) error {
	hub.AddHandler(handle(m.logger, m.onMessageCreate))
	return nil
}

func (m *AutoPublisher) Close() error { return nil }

func (m *AutoPublisher) onMessageCreate(_ *discordgo.Session, e *discordgo.MessageCreate) {
	if e.Message == nil || e.GuildID == "" {
		return
	}
	cfg, ok := m.registry.Get(e.GuildID)
	if !ok || !cfg.AutoPublishes(e.ChannelID) {
		return
	}
	if e.Flags&discordgo.MessageFlagsCrossPosted != 0 {
		return
	}

	ctx := context.Background()

	channelType, err := m.platform.ChannelType(ctx, e.ChannelID)
	if err != nil {
		m.logger.ErrorW("failed to resolve channel type", "channel_id", e.ChannelID, "error", err)
		return
	}
	if channelType != discordgo.ChannelTypeGuildNews {
		return
	}

	if err := m.platform.CrosspostMessage(ctx, e.ChannelID, e.ID); err != nil {
		m.logger.ErrorW("failed to crosspost message",
			"guild_id", e.GuildID,
			"channel_id", e.ChannelID,
			"message_id", e.ID,
			"error", err,
		)
		return
	}
	m.logger.DebugW("crossposted message", "channel_id", e.ChannelID, "message_id", e.ID)
}
