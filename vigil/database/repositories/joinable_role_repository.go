package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"

	"github.com/vigil-bot/vigil/vigil/database/models"
)

// ErrCapacityExceeded is returned when an add would push a guild past the
// joinable role cap.
var ErrCapacityExceeded = errors.New("joinable role capacity exceeded")

// JoinableRoleRepository manages the self-assignable role set. The
// per-guild counter on the guilds row is the source of truth for capacity
// checks and is updated in the same transaction as the role row, under a
// row lock, so concurrent adds near the cap serialize instead of racing.
type JoinableRoleRepository interface {
	// Add marks the role joinable. Adding an already-joinable role is a
	// no-op. Returns ErrCapacityExceeded when the guild is at the cap.
	Add(ctx context.Context, guildID, roleID snowflake.ID) error
	// Remove unmarks the role. Removing an absent role is a no-op.
	Remove(ctx context.Context, guildID, roleID snowflake.ID) error
	IsJoinable(ctx context.Context, guildID, roleID snowflake.ID) (bool, error)
	List(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error)
	Count(ctx context.Context, guildID snowflake.ID) (int, error)
}

type joinableRoleRepository struct {
	*BaseRepository
	db *bun.DB
}

func NewJoinableRoleRepository(db *bun.DB) JoinableRoleRepository {
	return &joinableRoleRepository{
		BaseRepository: NewBaseRepository(db),
		db:             db,
	}
}

func (r *joinableRoleRepository) Add(ctx context.Context, guildID, roleID snowflake.ID) error {
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := registerGuildTx(ctx, tx, guildID); err != nil {
			return err
		}

		var guild models.Guild
		if err := tx.NewSelect().
			Model(&guild).
			Where("id = ?", guildID).
			For("UPDATE").
			Scan(ctx); err != nil {
			return err
		}

		exists, err := tx.NewSelect().
			Model((*models.JoinableRole)(nil)).
			Where("guild_id = ? AND role_id = ?", guildID, roleID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		if guild.JoinableRoleCnt+1 > models.MaxJoinableRoles {
			return ErrCapacityExceeded
		}

		if _, err := tx.NewInsert().
			Model(&models.JoinableRole{GuildID: guildID, RoleID: roleID}).
			Exec(ctx); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.Guild)(nil)).
			Set("joinable_role_cnt = joinable_role_cnt + 1").
			Where("id = ?", guildID).
			Exec(ctx)
		return err
	})
	if errors.Is(err, ErrCapacityExceeded) {
		return ErrCapacityExceeded
	}
	return r.HandleErrorWithID("add", "joinable_role", roleID, err)
}

func (r *joinableRoleRepository) Remove(ctx context.Context, guildID, roleID snowflake.ID) error {
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		// Lock the guild row first; keeps the counter consistent with a
		// concurrent Add on the same guild.
		var guild models.Guild
		err := tx.NewSelect().
			Model(&guild).
			Where("id = ?", guildID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*models.JoinableRole)(nil)).
			Where("guild_id = ? AND role_id = ?", guildID, roleID).
			Exec(ctx)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil || affected == 0 {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.Guild)(nil)).
			Set("joinable_role_cnt = joinable_role_cnt - 1").
			Where("id = ?", guildID).
			Exec(ctx)
		return err
	})
	return r.HandleErrorWithID("remove", "joinable_role", roleID, err)
}

func (r *joinableRoleRepository) IsJoinable(ctx context.Context, guildID, roleID snowflake.ID) (bool, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	exists, err := r.db.NewSelect().
		Model((*models.JoinableRole)(nil)).
		Where("guild_id = ? AND role_id = ?", guildID, roleID).
		Exists(timeoutCtx)
	if err != nil {
		return false, r.HandleErrorWithID("is_joinable", "joinable_role", roleID, err)
	}
	return exists, nil
}

func (r *joinableRoleRepository) List(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var rows []models.JoinableRole
	err := r.db.NewSelect().
		Model(&rows).
		Where("guild_id = ?", guildID).
		Order("role_id ASC").
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("list", "joinable_role", guildID, err)
	}

	roles := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.RoleID)
	}
	return roles, nil
}

func (r *joinableRoleRepository) Count(ctx context.Context, guildID snowflake.ID) (int, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var guild models.Guild
	err := r.db.NewSelect().
		Model(&guild).
		Where("id = ?", guildID).
		Scan(timeoutCtx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, r.HandleErrorWithID("count", "joinable_role", guildID, err)
	}
	return guild.JoinableRoleCnt, nil
}
