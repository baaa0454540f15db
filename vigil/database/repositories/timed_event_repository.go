package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"

	"github.com/vigil-bot/vigil/vigil/database/models"
)

// DueBatchLimit bounds how many due events are pulled per scheduler pass.
const DueBatchLimit = 1024

// TimedEventRepository stores pending moderation reversals. The scheduler
// is the only deleter; rows survive until their action has actually been
// carried out.
type TimedEventRepository interface {
	// ExtendOrInsert records a reversal for (guild, user, action). If one
	// is already pending its expiry moves to max(existing, expiry) and no
	// second row is created. Returns true when a new row was inserted.
	ExtendOrInsert(ctx context.Context, guildID, userID snowflake.ID, action models.EventAction, expiry time.Time) (bool, error)
	// NextExpiry returns the nearest future deadline across all guilds.
	// NotFoundError when no events are pending.
	NextExpiry(ctx context.Context) (time.Time, error)
	// DueBatch returns events with expiry <= now, oldest first, insertion
	// order within ties.
	DueBatch(ctx context.Context, now time.Time) ([]models.TimedEvent, error)
	Delete(ctx context.Context, id int64) error
}

type timedEventRepository struct {
	*BaseRepository
	db *bun.DB
}

func NewTimedEventRepository(db *bun.DB) TimedEventRepository {
	return &timedEventRepository{
		BaseRepository: NewBaseRepository(db),
		db:             db,
	}
}

func (r *timedEventRepository) ExtendOrInsert(ctx context.Context, guildID, userID snowflake.ID, action models.EventAction, expiry time.Time) (bool, error) {
	raw, err := models.EncodeAction(action)
	if err != nil {
		return false, err
	}

	var created bool
	err = r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := registerGuildTx(ctx, tx, guildID); err != nil {
			return err
		}

		var existing models.TimedEvent
		err := tx.NewSelect().
			Model(&existing).
			Where("guild_id = ? AND target_user = ? AND action = ?", guildID, userID, string(raw)).
			For("UPDATE").
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
			_, err = tx.NewInsert().
				Model(&models.TimedEvent{
					GuildID:    guildID,
					TargetUser: userID,
					Action:     raw,
					Expiry:     expiry,
				}).
				Exec(ctx)
			return err
		case err != nil:
			return err
		}

		if expiry.After(existing.Expiry) {
			_, err = tx.NewUpdate().
				Model((*models.TimedEvent)(nil)).
				Set("expiry = ?", expiry).
				Where("id = ?", existing.ID).
				Exec(ctx)
		}
		return err
	})
	if err != nil {
		return false, r.HandleErrorWithID("extend_or_insert", "timed_event", userID, err)
	}
	return created, nil
}

func (r *timedEventRepository) NextExpiry(ctx context.Context) (time.Time, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var next time.Time
	err := r.db.NewSelect().
		Model((*models.TimedEvent)(nil)).
		Column("expiry").
		Order("expiry ASC").
		Limit(1).
		Scan(timeoutCtx, &next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, &NotFoundError{Entity: "timed_event", ID: "next"}
		}
		return time.Time{}, r.HandleError("next_expiry", "timed_event", err)
	}
	return next, nil
}

func (r *timedEventRepository) DueBatch(ctx context.Context, now time.Time) ([]models.TimedEvent, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var events []models.TimedEvent
	err := r.db.NewSelect().
		Model(&events).
		Where("expiry <= ?", now).
		Order("expiry ASC", "id ASC").
		Limit(DueBatchLimit).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleError("due_batch", "timed_event", err)
	}
	return events, nil
}

func (r *timedEventRepository) Delete(ctx context.Context, id int64) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewDelete().
		Model((*models.TimedEvent)(nil)).
		Where("id = ?", id).
		Exec(timeoutCtx)
	return r.HandleErrorWithID("delete", "timed_event", id, err)
}
