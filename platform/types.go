package platform

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Platform is the set of Discord operations the event modules perform.
type Platform interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	CrosspostMessage(ctx context.Context, channelID, messageID string) error
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error
	ChannelType(ctx context.Context, channelID string) (discordgo.ChannelType, error)
}
