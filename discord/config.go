package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Config holds Discord-specific configuration. The token comes from the
// environment, never from config files.
type Config struct {
	LogLevel string `yaml:"log_level"`
}

// sessionLogLevel maps LogLevel onto discordgo's levels. Unknown values
// log errors only.
func (c Config) sessionLogLevel() int {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return discordgo.LogDebug
	case "info", "informational":
		return discordgo.LogInformational
	case "warn", "warning":
		return discordgo.LogWarning
	default:
		return discordgo.LogError
	}
}
