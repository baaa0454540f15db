package vigil

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/vigil-bot/vigil/vigil/database"
	"github.com/vigil-bot/vigil/vigil/database/repositories"
	"github.com/vigil-bot/vigil/vigil/guildconfig"
	"github.com/vigil-bot/vigil/vigil/moderation"
	"github.com/vigil-bot/vigil/vigil/roles"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	DB        *database.DB

	GuildRepo      repositories.GuildRepository
	TimedEventRepo repositories.TimedEventRepository

	ConfigStore *guildconfig.Store
	Tracker     *moderation.Tracker
	Dispatcher  *moderation.Dispatcher
	Scheduler   *moderation.Scheduler
	Executor    moderation.Executor
	Reporter    *moderation.Reporter
	Roles       *roles.Limiter
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(
			gateway.IntentGuilds,
			gateway.IntentGuildMessages,
			gateway.IntentGuildModeration,
			gateway.IntentMessageContent,
		)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds, cache.FlagRoles)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("Vigil is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("for spam"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}

// OnGuildLeave drops all state owned by a guild the bot was removed from.
// The durable delete cascades to config, timed events and joinable roles.
func (b *Bot) OnGuildLeave(e *events.GuildLeave) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.GuildRepo.Delete(ctx, e.GuildID); err != nil {
		slog.Error("Failed to delete guild state",
			slog.String("type", "db"),
			slog.Int64("guild_id", int64(e.GuildID)),
			slog.Any("error", err))
		return
	}
	b.ConfigStore.Invalidate(e.GuildID)

	slog.Info("Guild state removed",
		slog.String("type", "sys"),
		slog.Int64("guild_id", int64(e.GuildID)))
}
