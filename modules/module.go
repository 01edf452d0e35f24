// Package modules holds the per-guild automation modules and the loader
// that activates them against a gateway session.
//
// Each module is stateless between events: it reads the incoming event and
// the immutable registry, then performs at most one Discord operation.
// Operation failures are logged and dropped inside the handler.
package modules

import (
	"runtime/debug"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/clock"
	"github.com/tnicklin/autoguild/logger"
	"github.com/tnicklin/autoguild/platform"
	"github.com/tnicklin/autoguild/registry"
	"github.com/tnicklin/autoguild/store"
)

// Hub accepts event handlers. *discordgo.Session satisfies it.
type Hub interface {
	AddHandler(handler interface{}) func()
}

// Env is handed to every module at construction. It is built once at startup.
type Env struct {
	Registry *registry.Registry
	Platform platform.Platform
	Clock    clock.Clock
	// Journal is optional; without it pending auto-deletes are lost on restart.
	Journal store.Journal
	Logger  logger.Logger
}

func (e Env) withDefaults() Env {
	if e.Clock == nil {
		e.Clock = clock.System()
	}
	if e.Logger == nil {
		e.Logger = logger.NewNop()
	}
	return e
}

// Module is an independent event reaction.
type Module interface {
	Name() string
	// Register subscribes the module's handlers on hub.
	Register(hub Hub) error
	// Close releases module resources. Handler removal is done by the Loader.
	Close() error
}

// Factory constructs a Module from the shared Env.
type Factory func(env Env) Module

// Builtin returns the modules activated by the bot.
func Builtin() []Factory {
	return []Factory{
		func(env Env) Module { return NewAutoDelete(env) },
		func(env Env) Module { return NewAutoPublisher(env) },
		func(env Env) Module { return NewMessageRole(env) },
		func(env Env) Module { return NewVoiceRole(env) },
	}
}

// handle wraps an event handler so a panic is logged instead of taking the
// process down.
func handle[E any](log logger.Logger, fn func(*discordgo.Session, E)) func(*discordgo.Session, E) {
	return func(s *discordgo.Session, e E) {
		defer recoverTo(log)
		fn(s, e)
	}
}

func recoverTo(log logger.Logger) {
	if r := recover(); r != nil {
		log.ErrorW("handler panicked",
			"panic", r,
			"stack", string(debug.Stack()),
		)
	}
}
