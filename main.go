package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/vigil-bot/vigil/vigil"
	"github.com/vigil-bot/vigil/vigil/commands"
	"github.com/vigil-bot/vigil/vigil/database"
	"github.com/vigil-bot/vigil/vigil/database/repositories"
	"github.com/vigil-bot/vigil/vigil/guildconfig"
	"github.com/vigil-bot/vigil/vigil/handlers"
	"github.com/vigil-bot/vigil/vigil/logger"
	"github.com/vigil-bot/vigil/vigil/moderation"
	"github.com/vigil-bot/vigil/vigil/roles"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	slog.Info("Starting Vigil",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := vigil.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	b := vigil.New(*cfg, version, commit)
	b.DB = db
	b.GuildRepo = repositories.NewGuildRepository(db.BunDB())
	b.TimedEventRepo = repositories.NewTimedEventRepository(db.BunDB())
	b.ConfigStore = guildconfig.NewStore(repositories.NewConfigRepository(db.BunDB()))
	b.Roles = roles.NewLimiter(repositories.NewJoinableRoleRepository(db.BunDB()))
	b.Tracker = moderation.NewTracker(b.ConfigStore, cfg.Moderation.SweepInterval())

	h := handler.New()
	h.Route("/config", func(r handler.Router) {
		cmd := handlers.WrapWithLogging("config", commands.ConfigHandler(b))
		r.Command("/get", cmd)
		r.Command("/set", cmd)
		r.Command("/list", cmd)
		r.Command("/info", cmd)
	})
	h.Route("/role", func(r handler.Router) {
		cmd := handlers.WrapWithLogging("role", commands.RoleHandler(b))
		r.Command("/join", cmd)
		r.Command("/leave", cmd)
		r.Command("/list", cmd)
		r.Command("/add", cmd)
		r.Command("/remove", cmd)
	})
	h.Route("/spam", func(r handler.Router) {
		cmd := handlers.WrapWithLogging("spam", commands.SpamHandler(b))
		r.Command("/pressure", cmd)
		r.Command("/clear-pressure", cmd)
	})
	h.Route("/mod", func(r handler.Router) {
		cmd := handlers.WrapWithLogging("mod", commands.ModHandler(b))
		r.Command("/warn", cmd)
		r.Command("/mute", cmd)
		r.Command("/kick", cmd)
		r.Command("/ban", cmd)
		r.Command("/purge", cmd)
	})

	if err = b.SetupBot(h,
		bot.NewListenerFunc(b.OnReady),
		handlers.MessageHandler(b),
		handlers.GuildJoinHandler(b),
		handlers.GuildLeaveHandler(b),
	); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	// The executor talks through the gateway client, so everything that
	// fires platform actions is wired after SetupBot.
	b.Executor = moderation.NewRestExecutor(b.Client, b.ConfigStore, cfg.Moderation.ExecutorTimeout())
	b.Reporter = moderation.NewReporter(b.Client, b.ConfigStore)
	b.Scheduler = moderation.NewScheduler(b.TimedEventRepo, b.Executor,
		cfg.Moderation.SchedulerPoll(), cfg.Moderation.ExecutorTimeout())
	b.Dispatcher = moderation.NewDispatcher(b.ConfigStore, b.TimedEventRepo, b.Executor, b.Scheduler)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	b.Scheduler.Start()
	defer b.Scheduler.Shutdown()
	b.Tracker.Start()
	defer b.Tracker.Shutdown()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = b.Client.OpenGateway(ctx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Vigil is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down...")
}
