package discord

import "context"

// Discord defines the interface for the bot's gateway client.
type Discord interface {
	Start(ctx context.Context) error
	Stop() error
}
