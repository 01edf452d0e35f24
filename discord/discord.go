package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/logger"
	"github.com/tnicklin/autoguild/modules"
)

var _ Discord = (*DefaultDiscord)(nil)

// Intents covers every event the modules subscribe to.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildVoiceStates

type DefaultDiscord struct {
	session       *discordgo.Session
	loader        *modules.Loader
	modules       []modules.Factory
	logger        logger.Logger
	removeHandler func()
}

type Params struct {
	Session *discordgo.Session
	Loader  *modules.Loader
	// Modules defaults to modules.Builtin().
	Modules []modules.Factory
	Logger  logger.Logger
}

func New(p Params) *DefaultDiscord {
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	factories := p.Modules
	if factories == nil {
		factories = modules.Builtin()
	}
	return &DefaultDiscord{
		session: p.Session,
		loader:  p.Loader,
		modules: factories,
		logger:  log,
	}
}

// NewSession creates a session with the intents and state tracking the
// modules rely on. It does not connect.
func NewSession(token string, cfg Config) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.LogLevel = cfg.sessionLogLevel()
	session.StateEnabled = true
	session.State.TrackChannels = true
	session.State.TrackVoice = true

	return session, nil
}

// Start activates every module and then connects to the gateway, so no
// event is delivered before the handlers are in place.
func (c *DefaultDiscord) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.session == nil {
		return errors.New("discord session is nil")
	}

	if err := c.loader.Load(c.modules...); err != nil {
		return fmt.Errorf("load modules: %w", err)
	}

	c.removeHandler = c.session.AddHandler(c.handleReady)

	if err := c.session.Open(); err != nil {
		c.removeHandler()
		c.removeHandler = nil
		if uerr := c.loader.Unload(); uerr != nil {
			c.logger.WarnW("unload modules", "error", uerr)
		}
		return fmt.Errorf("open discord connection: %w", err)
	}

	c.logger.InfoW("discord connected", "modules", c.loader.Loaded())
	return nil
}

// Stop unregisters every module handler and closes the gateway connection.
func (c *DefaultDiscord) Stop() error {
	var errs []error

	if c.removeHandler != nil {
		c.removeHandler()
		c.removeHandler = nil
	}
	if err := c.loader.Unload(); err != nil {
		errs = append(errs, fmt.Errorf("unload modules: %w", err))
	}
	if c.session != nil {
		if err := c.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close discord connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *DefaultDiscord) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	username := ""
	if r.User != nil {
		username = r.User.Username
	}
	c.logger.InfoW("gateway ready",
		"user", username,
		"guilds", len(r.Guilds),
		"session_id", r.SessionID,
	)
}

// BridgeLogs routes discordgo's internal logging into l.
func BridgeLogs(l logger.Logger) {
	l = l.With("source", "discordgo")
	discordgo.Logger = func(msgL, _ int, format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		switch msgL {
		case discordgo.LogError:
			l.ErrorW(msg)
		case discordgo.LogWarning:
			l.WarnW(msg)
		case discordgo.LogInformational:
			l.InfoW(msg)
		default:
			l.DebugW(msg)
		}
	}
}
