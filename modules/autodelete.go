package modules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/clock"
	"github.com/tnicklin/autoguild/logger"
	"github.com/tnicklin/autoguild/platform"
	"github.com/tnicklin/autoguild/registry"
	"github.com/tnicklin/autoguild/store"
)

var _ Module = (*AutoDelete)(nil)

const journalTimeout = 5 * time.Second

// AutoDelete removes messages from configured channels after the channel's
// delay has passed.
type AutoDelete struct {
	registry *registry.Registry
	platform platform.Platform
	clock    clock.Clock
	journal  store.Journal
	logger   logger.Logger

	mu      sync.Mutex
	pending map[string]*scheduledDelete
	closed  bool
}

type scheduledDelete struct {
	d     store.PendingDelete
	timer clock.Timer
}

func NewAutoDelete(env Env) *AutoDelete {
	env = env.withDefaults()
	return &AutoDelete{
		registry: env.Registry,
		platform: env.Platform,
		clock:    env.Clock,
		journal:  env.Journal,
		logger:   env.Logger.With("module", "auto_delete"),
		pending:  make(map[string]*scheduledDelete),
	}
}

func (m *AutoDelete) Name() string { return "auto_delete" }

// Register reschedules deletes left over from a previous run, then
// subscribes to new messages.
func (m *AutoDelete) Register(hub Hub) error {
	if err := m.restore(); err != nil {
		return err
	}
	hub.AddHandler(handle(m.logger, m.onMessageCreate))
	return nil
}

// Close stops every pending timer. Journal entries are kept so the deletes
// are rescheduled on the next start.
func (m *AutoDelete) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for key, s := range m.pending {
		if s.timer != nil {
			s.timer.Stop()
		}
		delete(m.pending, key)
	}
	return nil
}

// Pending returns the number of scheduled deletes that have not run.
func (m *AutoDelete) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *AutoDelete) restore() error {
	if m.journal == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	entries, err := m.journal.ListPendingDeletes(ctx)
	if err != nil {
		return fmt.Errorf("restore pending deletes: %w", err)
	}

	now := m.clock.Now()
	restored := 0
	for _, d := range entries {
		if !m.configured(d.GuildID, d.ChannelID) {
			m.logger.InfoW("dropping pending delete for unconfigured channel",
				"guild_id", d.GuildID,
				"channel_id", d.ChannelID,
				"message_id", d.MessageID,
			)
			m.forget(ctx, d)
			continue
		}
		m.schedule(d, d.DueAt.Sub(now))
		restored++
	}

	if restored > 0 {
		m.logger.InfoW("restored pending deletes", "count", restored)
	}
	return nil
}

func (m *AutoDelete) configured(guildID, channelID string) bool {
	cfg, ok := m.registry.Get(guildID)
	if !ok {
		return false
	}
	_, ok = cfg.AutoDeleteDelay(channelID)
	return ok
}

func (m *AutoDelete) onMessageCreate(_ *discordgo.Session, e *discordgo.MessageCreate) {
	if e.Message == nil || e.GuildID == "" {
		return
	}
	cfg, ok := m.registry.Get(e.GuildID)
	if !ok {
		return
	}
	delay, ok := cfg.AutoDeleteDelay(e.ChannelID)
	if !ok {
		return
	}

	d := store.PendingDelete{
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		MessageID: e.ID,
		DueAt:     m.clock.Now().Add(delay),
	}

	if m.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		err := m.journal.SavePendingDelete(ctx, d)
		cancel()
		if err != nil {
			m.logger.WarnW("failed to journal pending delete",
				"channel_id", d.ChannelID,
				"message_id", d.MessageID,
				"error", err,
			)
		}
	}

	m.schedule(d, delay)
	m.logger.DebugW("scheduled delete",
		"guild_id", d.GuildID,
		"channel_id", d.ChannelID,
		"message_id", d.MessageID,
		"delay", delay,
	)
}

func (m *AutoDelete) schedule(d store.PendingDelete, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	key := d.ChannelID + "/" + d.MessageID

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if prev, ok := m.pending[key]; ok && prev.timer != nil {
		prev.timer.Stop()
	}

	s := &scheduledDelete{d: d}
	m.pending[key] = s
	s.timer = m.clock.AfterFunc(delay, func() { m.fire(key, s) })
}

func (m *AutoDelete) fire(key string, s *scheduledDelete) {
	defer recoverTo(m.logger)
	d := s.d

	err := m.platform.DeleteMessage(context.Background(), d.ChannelID, d.MessageID)
	switch {
	case err == nil:
		m.logger.DebugW("deleted message", "channel_id", d.ChannelID, "message_id", d.MessageID)
	case platform.IsNotFound(err):
		m.logger.DebugW("message already gone", "channel_id", d.ChannelID, "message_id", d.MessageID)
	default:
		m.logger.ErrorW("failed to delete message",
			"guild_id", d.GuildID,
			"channel_id", d.ChannelID,
			"message_id", d.MessageID,
			"error", err,
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	m.forget(ctx, d)
	cancel()

	m.mu.Lock()
	if m.pending[key] == s {
		delete(m.pending, key)
	}
	m.mu.Unlock()
}

func (m *AutoDelete) forget(ctx context.Context, d store.PendingDelete) {
	if m.journal == nil {
		return
	}
	if err := m.journal.RemovePendingDelete(ctx, d.ChannelID, d.MessageID); err != nil {
		m.logger.WarnW("failed to remove pending delete",
			"channel_id", d.ChannelID,
			"message_id", d.MessageID,
			"error", err,
		)
	}
}
