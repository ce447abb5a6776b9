// Package main contains the entrypoint for the Discord task bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/taskbot/internal/bot"
	"github.com/edgard/taskbot/internal/bot/handlers"
	"github.com/edgard/taskbot/internal/bot/tasks"
	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/discord"
	"github.com/edgard/taskbot/internal/gemini"
	"github.com/edgard/taskbot/internal/identity"
	"github.com/edgard/taskbot/internal/logger"
	"github.com/edgard/taskbot/internal/notify"
	"github.com/edgard/taskbot/internal/recurrence"
	"github.com/edgard/taskbot/internal/timetrack"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components and returns an exit
// code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)
	if err := store.Ping(ctx); err != nil {
		log.Error("Database is not reachable", "path", cfg.Database.Path, "error", err)
		return 1
	}

	var gemClient gemini.Client
	if cfg.Gemini.Enabled {
		gemClient, err = gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini client", "error", err)
			return 1
		}
	} else {
		log.Info("Natural language task capture disabled")
	}

	session, err := discord.NewSession(cfg.Discord.Token, log)
	if err != nil {
		log.Error("Failed to create Discord session", "error", err)
		return 1
	}

	names := identity.NewResolver(session, cfg.Identity.CacheSize, cfg.Identity.CacheTTL, log)
	notifier := notify.NewService(session, store, names, cfg, log)

	tDeps := tasks.TaskDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Sweeper:  recurrence.NewSweeper(store, log),
		Notifier: notifier,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		Store:   store,
		Tracker: timetrack.NewTracker(store, log),
		Names:   names,
		Gemini:  gemClient,
		Runner:  sched,
	}
	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	router := discord.NewRouter(log, cmdHandlers, cfg.Discord.RequestTimeout,
		logger.Middleware(log), handlers.TrackUser(hDeps))
	router.Attach(session)

	gateway := discord.NewGateway(session, cfg.Discord.GuildID, discord.Commands(cmdHandlers), log)
	app := bot.NewBot(log, gateway, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
