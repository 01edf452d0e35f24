package platform

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/logger"
	"golang.org/x/time/rate"
)

var _ Platform = (*DefaultPlatform)(nil)

// restSession is the subset of *discordgo.Session used here.
type restSession interface {
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageCrosspost(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// DefaultPlatform performs Discord operations through a discordgo session.
// Every call is rate limited and transient failures are retried a bounded
// number of times. All operations are idempotent on Discord's side.
type DefaultPlatform struct {
	rest    restSession
	state   *discordgo.State
	cfg     Config
	limiter *rate.Limiter
	logger  logger.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

type Params struct {
	Session *discordgo.Session
	Config  Config
	Logger  logger.Logger
}

func New(p Params) *DefaultPlatform {
	var state *discordgo.State
	if p.Session != nil {
		state = p.Session.State
	}
	return newPlatform(p.Session, state, p.Config, p.Logger)
}

func newPlatform(rest restSession, state *discordgo.State, cfg Config, log logger.Logger) *DefaultPlatform {
	cfg.Defaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &DefaultPlatform{
		rest:    rest,
		state:   state,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:  log,
		sleep:   sleepContext,
	}
}

func (p *DefaultPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return p.do(ctx, "delete_message", func(ctx context.Context) error {
		return p.rest.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	})
}

func (p *DefaultPlatform) CrosspostMessage(ctx context.Context, channelID, messageID string) error {
	return p.do(ctx, "crosspost_message", func(ctx context.Context) error {
		_, err := p.rest.ChannelMessageCrosspost(channelID, messageID, discordgo.WithContext(ctx))
		return err
	})
}

func (p *DefaultPlatform) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return p.do(ctx, "add_member_role", func(ctx context.Context) error {
		return p.rest.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	})
}

func (p *DefaultPlatform) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return p.do(ctx, "remove_member_role", func(ctx context.Context) error {
		return p.rest.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	})
}

// ChannelType resolves a channel's type from the state cache, falling back
// to the REST API.
func (p *DefaultPlatform) ChannelType(ctx context.Context, channelID string) (discordgo.ChannelType, error) {
	if p.state != nil {
		if ch, err := p.state.Channel(channelID); err == nil {
			return ch.Type, nil
		}
	}

	var channelType discordgo.ChannelType
	err := p.do(ctx, "get_channel", func(ctx context.Context) error {
		ch, err := p.rest.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
		channelType = ch.Type
		return nil
	})
	return channelType, err
}

func (p *DefaultPlatform) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	delay := p.cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.cfg.MaxAttempts || ctx.Err() != nil || !Retryable(err) {
			return err
		}

		p.logger.WarnW("discord call failed, retrying",
			"op", op,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if serr := p.sleep(ctx, delay); serr != nil {
			return err
		}

		delay *= 2
		if delay > p.cfg.MaxDelay {
			delay = p.cfg.MaxDelay
		}
	}
}

// Retryable reports whether err is a transient failure: a 429 or 5xx REST
// response, or a transport error.
func Retryable(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Response == nil {
			return false
		}
		code := restErr.Response.StatusCode
		return code == http.StatusTooManyRequests || code >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsNotFound reports whether err means the target message, member, channel
// or role no longer exists.
func IsNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownMember,
			discordgo.ErrCodeUnknownMessage,
			discordgo.ErrCodeUnknownRole:
			return true
		}
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
