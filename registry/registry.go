// Package registry holds the per-guild automation settings. A Registry is
// built once at startup and never mutated afterwards, so it is safe for
// concurrent reads from every event handler.
package registry

import (
	"sort"
	"time"
)

// GuildSettings is the configuration form of a guild's settings.
type GuildSettings struct {
	AutoPublisherChannels []string          `yaml:"auto_publisher_channels"`
	AutoDeleteChannels    map[string]int64  `yaml:"auto_delete_channels"`
	MessageRoleChannels   map[string]string `yaml:"message_role_channels"`
	VoiceRole             string            `yaml:"voice_role"`
}

// GuildConfig is the read-only view of one guild's settings.
type GuildConfig struct {
	guildID      string
	publish      map[string]struct{}
	deleteDelays map[string]time.Duration
	messageRoles map[string]string
	voiceRole    string
}

// Registry maps guild ids to their GuildConfig.
type Registry struct {
	guilds map[string]*GuildConfig
}

// New builds a Registry from settings keyed by guild id. The input is copied.
func New(settings map[string]GuildSettings) *Registry {
	guilds := make(map[string]*GuildConfig, len(settings))
	for id, s := range settings {
		guilds[id] = newGuildConfig(id, s)
	}
	return &Registry{guilds: guilds}
}

func newGuildConfig(id string, s GuildSettings) *GuildConfig {
	gc := &GuildConfig{
		guildID:      id,
		publish:      make(map[string]struct{}, len(s.AutoPublisherChannels)),
		deleteDelays: make(map[string]time.Duration, len(s.AutoDeleteChannels)),
		messageRoles: make(map[string]string, len(s.MessageRoleChannels)),
		voiceRole:    s.VoiceRole,
	}
	for _, ch := range s.AutoPublisherChannels {
		gc.publish[ch] = struct{}{}
	}
	for ch, ms := range s.AutoDeleteChannels {
		// Zero means disabled. Negative delays fire immediately.
		if ms == 0 {
			continue
		}
		if ms < 0 {
			ms = 0
		}
		gc.deleteDelays[ch] = time.Duration(ms) * time.Millisecond
	}
	for ch, role := range s.MessageRoleChannels {
		if role == "" {
			continue
		}
		gc.messageRoles[ch] = role
	}
	return gc
}

// Get returns the config for guildID. A missing guild means the bot takes
// no action there.
func (r *Registry) Get(guildID string) (*GuildConfig, bool) {
	if r == nil {
		return nil, false
	}
	gc, ok := r.guilds[guildID]
	return gc, ok
}

// Len returns the number of configured guilds.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.guilds)
}

// GuildIDs returns the configured guild ids in sorted order.
func (r *Registry) GuildIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.guilds))
	for id := range r.guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GuildID returns the guild this config belongs to.
func (g *GuildConfig) GuildID() string { return g.guildID }

// AutoDeleteDelay returns how long messages in channelID live before deletion.
func (g *GuildConfig) AutoDeleteDelay(channelID string) (time.Duration, bool) {
	d, ok := g.deleteDelays[channelID]
	return d, ok
}

// AutoPublishes reports whether messages in channelID are cross-posted.
func (g *GuildConfig) AutoPublishes(channelID string) bool {
	_, ok := g.publish[channelID]
	return ok
}

// MessageRole returns the role granted to authors posting in channelID.
func (g *GuildConfig) MessageRole(channelID string) (string, bool) {
	role, ok := g.messageRoles[channelID]
	return role, ok
}

// VoiceRole returns the role held while a member is in a voice channel.
func (g *GuildConfig) VoiceRole() (string, bool) {
	return g.voiceRole, g.voiceRole != ""
}
