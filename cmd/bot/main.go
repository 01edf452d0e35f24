package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/autoguild/clock"
	"github.com/tnicklin/autoguild/config"
	"github.com/tnicklin/autoguild/discord"
	"github.com/tnicklin/autoguild/logger"
	"github.com/tnicklin/autoguild/modules"
	"github.com/tnicklin/autoguild/platform"
	"github.com/tnicklin/autoguild/registry"
	"github.com/tnicklin/autoguild/store"
)

func main() {
	params, err := build()
	if err != nil {
		log.Fatal(err)
	}

	if err = run(params); err != nil {
		log.Fatal(err)
	}
}

func build() (runParams, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return runParams{}, err
	}

	cfg, err := config.LoadWithDefaults(env.ConfigFile, env.SecretsFile)
	if err != nil {
		return runParams{}, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return runParams{}, fmt.Errorf("initialize logger: %w", err)
	}
	discord.BridgeLogs(appLogger)

	guilds := registry.New(cfg.Guilds)
	appLogger.InfoW("guild registry loaded", "guilds", guilds.GuildIDs())

	session, err := discord.NewSession(env.DiscordToken, cfg.Discord)
	if err != nil {
		return runParams{}, err
	}

	st := store.NewSQLiteStore(store.Params{
		Path:   cfg.Store.Path,
		Logger: appLogger.With("component", "store"),
	})

	clk, ntpClock := clock.FromConfig(cfg.Clock, appLogger)

	api := platform.New(platform.Params{
		Session: session,
		Config:  cfg.Platform,
		Logger:  appLogger.With("component", "platform"),
	})

	loader := modules.NewLoader(modules.LoaderParams{
		Hub: session,
		Env: modules.Env{
			Registry: guilds,
			Platform: api,
			Clock:    clk,
			Journal:  st,
			Logger:   appLogger,
		},
		Config: cfg.Modules,
	})

	discordClient := discord.New(discord.Params{
		Session: session,
		Loader:  loader,
		Logger:  appLogger,
	})

	return runParams{
		Config:        cfg,
		Logger:        appLogger,
		Session:       session,
		Store:         st,
		NTPClock:      ntpClock,
		DiscordClient: discordClient,
	}, nil
}

type runParams struct {
	Config        *config.AppConfig
	Logger        logger.Logger
	Session       *discordgo.Session
	Store         *store.SQLiteStore
	NTPClock      *clock.NTPClock
	DiscordClient discord.Discord
}

// run starts all components and runs the application until shutdown.
func run(p runParams) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer p.Logger.Sync()

	if p.NTPClock != nil {
		if err := p.NTPClock.Start(ctx); err != nil {
			return fmt.Errorf("start ntp clock: %w", err)
		}
		defer p.NTPClock.Stop()
	}

	openCtx, openCancel := context.WithTimeout(ctx, 30*time.Second)
	defer openCancel()
	if err := p.Store.Open(openCtx); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := p.Store.Close(); err != nil {
			p.Logger.ErrorW("close store", "error", err)
		}
	}()

	if err := p.DiscordClient.Start(ctx); err != nil {
		return fmt.Errorf("start discord client: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	p.Logger.InfoW("shutting down", "signal", sig.String())

	if err := p.DiscordClient.Stop(); err != nil {
		p.Logger.ErrorW("stop discord client", "error", err)
	}

	return nil
}
