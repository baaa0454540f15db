package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"

	"github.com/vigil-bot/vigil/vigil"
	"github.com/vigil-bot/vigil/vigil/moderation"
)

const observeTimeout = 15 * time.Second

// MessageHandler feeds every guild message through the pressure tracker
// and dispatches an automatic silence when a user crosses the threshold.
// Only structural features of the message are ever looked at.
func MessageHandler(b *vigil.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.GuildMessageCreate) {
		msg := e.Message
		if msg.Author.Bot || msg.Author.System {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
		defer cancel()

		features := moderation.ExtractFeatures(msg)
		decision, err := b.Tracker.Observe(ctx, e.GuildID, msg.Author.ID, features)
		if err != nil {
			slog.Error("Failed to observe message",
				slog.String("type", "mod"),
				slog.Int64("guild_id", int64(e.GuildID)),
				slog.Any("error", err))
			return
		}
		if decision != moderation.DecisionSilence {
			return
		}

		// Reset before dispatching so a failed mute doesn't re-trigger on
		// every subsequent message from the same burst.
		b.Tracker.Reset(e.GuildID, msg.Author.ID)

		if err := b.Dispatcher.ApplySilence(ctx, e.GuildID, msg.Author.ID); err != nil {
			return
		}

		cfg, err := b.ConfigStore.GetSpamConfig(ctx, e.GuildID)
		if err != nil {
			return
		}
		if err := b.Reporter.Report(ctx, moderation.ActionReport{
			GuildID:  e.GuildID,
			UserID:   msg.Author.ID,
			Action:   "silence",
			Reason:   "Pressure threshold exceeded.",
			Duration: cfg.SilenceTimeout(),
		}); err != nil {
			slog.Debug("Mod log report skipped",
				slog.String("type", "mod"),
				slog.Int64("guild_id", int64(e.GuildID)),
				slog.Any("error", err))
		}
	})
}

// GuildJoinHandler registers a guild the moment the bot lands in it, so
// guild-owned rows always have a parent even before the first write.
func GuildJoinHandler(b *vigil.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.GuildJoin) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := b.GuildRepo.Register(ctx, e.GuildID); err != nil {
			slog.Error("Failed to register guild",
				slog.String("type", "db"),
				slog.Int64("guild_id", int64(e.GuildID)),
				slog.Any("error", err))
		}
	})
}

// GuildLeaveHandler removes a guild's durable state when the bot leaves.
func GuildLeaveHandler(b *vigil.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.GuildLeave) {
		b.OnGuildLeave(e)
	})
}
