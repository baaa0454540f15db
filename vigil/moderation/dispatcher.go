package moderation

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/vigil-bot/vigil/vigil/database/models"
	"github.com/vigil-bot/vigil/vigil/database/repositories"
	"github.com/vigil-bot/vigil/vigil/logger"
)

// Waker is the scheduler's wake-up hook. The dispatcher pokes it after
// inserting an event so an earlier expiry shortens the current wait; the
// two otherwise coordinate only through the timed event table.
type Waker interface {
	Notify()
}

// Dispatcher turns threshold decisions and moderator commands into
// platform actions plus their durable timed reversals.
type Dispatcher struct {
	configs  ConfigSource
	events   repositories.TimedEventRepository
	executor Executor
	waker    Waker

	now func() time.Time
}

func NewDispatcher(configs ConfigSource, events repositories.TimedEventRepository, executor Executor, waker Waker) *Dispatcher {
	return &Dispatcher{
		configs:  configs,
		events:   events,
		executor: executor,
		waker:    waker,
		now:      time.Now,
	}
}

// ApplySilence mutes the user and records the auto-unmute. A silence
// while one is already pending extends the existing reversal instead of
// stacking a second one. Executor failures come back as retryable
// ActionErrors; the caller's pressure reset stands either way so a hot
// user cannot re-trigger every message.
func (d *Dispatcher) ApplySilence(ctx context.Context, guildID, userID snowflake.ID) error {
	cfg, err := d.configs.GetSpamConfig(ctx, guildID)
	if err != nil {
		return err
	}

	if err := d.executor.Mute(ctx, guildID, userID); err != nil {
		logger.LogAction("silence", guildID, userID, err)
		return err
	}

	return d.scheduleReversal(ctx, guildID, userID, models.ActionUnmute, cfg.SilenceTimeout(), "silence")
}

// ApplyTimedMute is the moderator-command path: mute now, unmute after
// the given duration.
func (d *Dispatcher) ApplyTimedMute(ctx context.Context, guildID, userID snowflake.ID, duration time.Duration) error {
	if err := d.executor.Mute(ctx, guildID, userID); err != nil {
		logger.LogAction("mute", guildID, userID, err)
		return err
	}
	return d.scheduleReversal(ctx, guildID, userID, models.ActionUnmute, duration, "mute")
}

// ApplyTimedBan bans now and unbans after the given duration.
func (d *Dispatcher) ApplyTimedBan(ctx context.Context, guildID, userID snowflake.ID, duration time.Duration, deleteMessages time.Duration, reason string) error {
	if err := d.executor.Ban(ctx, guildID, userID, deleteMessages, reason); err != nil {
		logger.LogAction("ban", guildID, userID, err)
		return err
	}
	return d.scheduleReversal(ctx, guildID, userID, models.ActionUnban, duration, "ban")
}

func (d *Dispatcher) scheduleReversal(ctx context.Context, guildID, userID snowflake.ID, kind models.ActionKind, duration time.Duration, action string) error {
	expiry := d.now().Add(duration)
	created, err := d.events.ExtendOrInsert(ctx, guildID, userID, models.EventAction{Kind: kind}, expiry)
	if err != nil {
		logger.LogAction(action, guildID, userID, err)
		return err
	}

	logger.LogAction(action, guildID, userID, nil)
	if created && d.waker != nil {
		d.waker.Notify()
	}
	return nil
}
