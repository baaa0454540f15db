package repositories

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"

	"github.com/vigil-bot/vigil/vigil/database/models"
)

// GuildRepository maintains the tenant registry. Writes referencing an
// unknown guild go through Register first, so every guild-owned row always
// has a parent.
type GuildRepository interface {
	Register(ctx context.Context, guildID snowflake.ID) error
	Delete(ctx context.Context, guildID snowflake.ID) error
}

type guildRepository struct {
	*BaseRepository
	db *bun.DB
}

func NewGuildRepository(db *bun.DB) GuildRepository {
	return &guildRepository{
		BaseRepository: NewBaseRepository(db),
		db:             db,
	}
}

// Register inserts a minimal guild record if none exists yet.
func (r *guildRepository) Register(ctx context.Context, guildID snowflake.ID) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().
		Model(&models.Guild{ID: guildID}).
		On("CONFLICT (id) DO NOTHING").
		Exec(timeoutCtx)
	return r.HandleErrorWithID("register", "guild", guildID, err)
}

// registerGuildTx is the in-transaction variant used by sibling
// repositories to uphold auto-registration inside their own units of work.
func registerGuildTx(ctx context.Context, tx bun.Tx, guildID snowflake.ID) error {
	_, err := tx.NewInsert().
		Model(&models.Guild{ID: guildID}).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

// Delete removes the guild; config, timed events and joinable roles go
// with it through the schema's cascading foreign keys.
func (r *guildRepository) Delete(ctx context.Context, guildID snowflake.ID) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewDelete().
		Model((*models.Guild)(nil)).
		Where("id = ?", guildID).
		Exec(timeoutCtx)
	return r.HandleErrorWithID("delete", "guild", guildID, err)
}
