package store

import (
	"context"
	"time"
)

// PendingDelete is an auto-delete that has been scheduled but not yet run.
type PendingDelete struct {
	GuildID   string
	ChannelID string
	MessageID string
	DueAt     time.Time
}

// Journal records scheduled auto-deletes so they survive a restart.
type Journal interface {
	SavePendingDelete(ctx context.Context, d PendingDelete) error
	RemovePendingDelete(ctx context.Context, channelID, messageID string) error
	ListPendingDeletes(ctx context.Context) ([]PendingDelete, error)
}

type Store interface {
	Journal

	Open(ctx context.Context) error
	Close() error
}

// Config holds store configuration. An empty Path keeps the journal in memory.
type Config struct {
	Path string `yaml:"path"`
}
