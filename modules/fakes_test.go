package modules

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/clock"
	"github.com/tnicklin/autoguild/logger"
	"github.com/tnicklin/autoguild/registry"
	"github.com/tnicklin/autoguild/store"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeHub stores handlers and dispatches events to them the way a session does.
type fakeHub struct {
	mu       sync.Mutex
	handlers map[int]interface{}
	next     int
}

func newFakeHub() *fakeHub {
	return &fakeHub{handlers: make(map[int]interface{})}
}

func (h *fakeHub) AddHandler(handler interface{}) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.handlers[id] = handler
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.handlers, id)
	}
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

func (h *fakeHub) emit(event interface{}) {
	h.mu.Lock()
	handlers := make([]interface{}, 0, len(h.handlers))
	for i := 0; i < h.next; i++ {
		if handler, ok := h.handlers[i]; ok {
			handlers = append(handlers, handler)
		}
	}
	h.mu.Unlock()

	for _, handler := range handlers {
		switch fn := handler.(type) {
		case func(*discordgo.Session, *discordgo.MessageCreate):
			if e, ok := event.(*discordgo.MessageCreate); ok {
				fn(nil, e)
			}
		case func(*discordgo.Session, *discordgo.VoiceStateUpdate):
			if e, ok := event.(*discordgo.VoiceStateUpdate); ok {
				fn(nil, e)
			}
		}
	}
}

type platformCall struct {
	Op        string
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	RoleID    string
	At        time.Time
}

// fakePlatform records every mutating call with the clock time it was made at.
type fakePlatform struct {
	mu       sync.Mutex
	clock    clock.Clock
	calls    []platformCall
	channels map[string]discordgo.ChannelType
	err      error
	panicOn  string
}

func newFakePlatform(c clock.Clock) *fakePlatform {
	return &fakePlatform{clock: c, channels: make(map[string]discordgo.ChannelType)}
}

func (p *fakePlatform) record(call platformCall) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.panicOn == call.Op {
		panic("platform exploded")
	}
	if p.clock != nil {
		call.At = p.clock.Now()
	}
	p.calls = append(p.calls, call)
	return p.err
}

func (p *fakePlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	return p.record(platformCall{Op: "delete", ChannelID: channelID, MessageID: messageID})
}

func (p *fakePlatform) CrosspostMessage(_ context.Context, channelID, messageID string) error {
	return p.record(platformCall{Op: "crosspost", ChannelID: channelID, MessageID: messageID})
}

func (p *fakePlatform) AddMemberRole(_ context.Context, guildID, userID, roleID string) error {
	return p.record(platformCall{Op: "grant", GuildID: guildID, UserID: userID, RoleID: roleID})
}

func (p *fakePlatform) RemoveMemberRole(_ context.Context, guildID, userID, roleID string) error {
	return p.record(platformCall{Op: "revoke", GuildID: guildID, UserID: userID, RoleID: roleID})
}

func (p *fakePlatform) ChannelType(_ context.Context, channelID string) (discordgo.ChannelType, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ct, ok := p.channels[channelID]
	if !ok {
		return 0, errors.New("unknown channel")
	}
	return ct, nil
}

func (p *fakePlatform) Calls() []platformCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platformCall(nil), p.calls...)
}

// fakeJournal is an in-memory store.Journal.
type fakeJournal struct {
	mu      sync.Mutex
	entries map[string]store.PendingDelete
	listErr error
}

func newFakeJournal(entries ...store.PendingDelete) *fakeJournal {
	j := &fakeJournal{entries: make(map[string]store.PendingDelete)}
	for _, d := range entries {
		j.entries[d.ChannelID+"/"+d.MessageID] = d
	}
	return j
}

func (j *fakeJournal) SavePendingDelete(_ context.Context, d store.PendingDelete) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[d.ChannelID+"/"+d.MessageID] = d
	return nil
}

func (j *fakeJournal) RemovePendingDelete(_ context.Context, channelID, messageID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.entries, channelID+"/"+messageID)
	return nil
}

func (j *fakeJournal) ListPendingDeletes(_ context.Context) ([]store.PendingDelete, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.listErr != nil {
		return nil, j.listErr
	}
	out := make([]store.PendingDelete, 0, len(j.entries))
	for _, d := range j.entries {
		out = append(out, d)
	}
	return out, nil
}

func (j *fakeJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

func testEnv(settings map[string]registry.GuildSettings) (Env, *clock.Fake, *fakePlatform) {
	fc := clock.NewFake(epoch)
	fp := newFakePlatform(fc)
	return Env{
		Registry: registry.New(settings),
		Platform: fp,
		Clock:    fc,
		Logger:   logger.NewNop(),
	}, fc, fp
}

func message(guildID, channelID, messageID, authorID string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        messageID,
		GuildID:   guildID,
		ChannelID: channelID,
		Author:    &discordgo.User{ID: authorID},
	}}
}

func voiceUpdate(guildID, userID, before, after string) *discordgo.VoiceStateUpdate {
	e := &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{
		GuildID:   guildID,
		UserID:    userID,
		ChannelID: after,
	}}
	if before != "" {
		e.BeforeUpdate = &discordgo.VoiceState{GuildID: guildID, UserID: userID, ChannelID: before}
	}
	return e
}
