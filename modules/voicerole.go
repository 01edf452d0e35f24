package modules

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/logger"
	"github.com/tnicklin/autoguild/platform"
	"github.com/tnicklin/autoguild/registry"
)

var _ Module = (*VoiceRole)(nil)

// VoiceRole keeps a role on members while they are connected to any voice
// channel of the guild.
type VoiceRole struct {
	registry *registry.Registry
	platform platform.Platform
	logger   logger.Logger
}

type voiceTransition int

const (
	voiceNone voiceTransition = iota
	voiceJoin
	voiceLeave
)

func NewVoiceRole(env Env) *VoiceRole {
	env = env.withDefaults()
	return &VoiceRole{
		registry: env.Registry,
		platform: env.Platform,
		logger:   env.Logger.With("module", "voice_role"),
	}
}

func (m *VoiceRole) Name() string { return "voice_role" }

func (m *VoiceRole) Register(hub Hub) error {
	hub.AddHandler(handle(m.logger, m.onVoiceStateUpdate))
	return nil
}

func (m *VoiceRole) Close() error { return nil }

func (m *VoiceRole) onVoiceStateUpdate(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil || e.GuildID == "" || e.UserID == "" {
		return
	}
	cfg, ok := m.registry.Get(e.GuildID)
	if !ok {
		return
	}
	roleID, ok := cfg.VoiceRole()
	if !ok {
		return
	}

	ctx := context.Background()

	switch transition(e) {
	case voiceJoin:
		if err := m.platform.AddMemberRole(ctx, e.GuildID, e.UserID, roleID); err != nil {
			m.logger.ErrorW("failed to grant voice role",
				"guild_id", e.GuildID,
				"user_id", e.UserID,
				"role_id", roleID,
				"error", err,
			)
			return
		}
		m.logger.DebugW("granted voice role", "guild_id", e.GuildID, "user_id", e.UserID)
	case voiceLeave:
		if err := m.platform.RemoveMemberRole(ctx, e.GuildID, e.UserID, roleID); err != nil {
			if platform.IsNotFound(err) {
				m.logger.DebugW("member already gone", "guild_id", e.GuildID, "user_id", e.UserID)
				return
			}
			m.logger.ErrorW("failed to revoke voice role",
				"guild_id", e.GuildID,
				"user_id", e.UserID,
				"role_id", roleID,
				"error", err,
			)
			return
		}
		m.logger.DebugW("revoked voice role", "guild_id", e.GuildID, "user_id", e.UserID)
	}
}

// transition classifies a voice state update. Moving between channels and
// mute or deafen changes are neither a join nor a leave.
func transition(e *discordgo.VoiceStateUpdate) voiceTransition {
	wasConnected := e.BeforeUpdate != nil && e.BeforeUpdate.ChannelID != ""
	connected := e.ChannelID != ""

	switch {
	case connected && !wasConnected:
		return voiceJoin
	case !connected:
		return voiceLeave
	default:
		return voiceNone
	}
}
