package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"

	"github.com/vigil-bot/vigil/vigil/database/models"
)

// ConfigRepository is the raw JSON key/value layer under the guild config
// store. Validation and defaults live above it in guildconfig.
type ConfigRepository interface {
	Get(ctx context.Context, guildID snowflake.ID, name string) (json.RawMessage, error)
	Set(ctx context.Context, guildID snowflake.ID, name string, value json.RawMessage) error
	List(ctx context.Context, guildID snowflake.ID) (map[string]json.RawMessage, error)
}

type configRepository struct {
	*BaseRepository
	db *bun.DB
}

func NewConfigRepository(db *bun.DB) ConfigRepository {
	return &configRepository{
		BaseRepository: NewBaseRepository(db),
		db:             db,
	}
}

// Get returns the stored value, or NotFoundError when the key has never
// been set for this guild.
func (r *configRepository) Get(ctx context.Context, guildID snowflake.ID, name string) (json.RawMessage, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var cfg models.GuildConfig
	err := r.db.NewSelect().
		Model(&cfg).
		Where("guild_id = ? AND name = ?", guildID, name).
		Scan(timeoutCtx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "guild_config", ID: name}
		}
		return nil, r.HandleErrorWithID("get", "guild_config", name, err)
	}
	return cfg.Value, nil
}

// Set upserts the value for (guild, name) in one transaction, registering
// the guild first so the foreign key always holds.
func (r *configRepository) Set(ctx context.Context, guildID snowflake.ID, name string, value json.RawMessage) error {
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := registerGuildTx(ctx, tx, guildID); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&models.GuildConfig{GuildID: guildID, Name: name, Value: value}).
			On("CONFLICT (guild_id, name) DO UPDATE").
			Set("value = EXCLUDED.value").
			Exec(ctx)
		return err
	})
	return r.HandleErrorWithID("set", "guild_config", name, err)
}

func (r *configRepository) List(ctx context.Context, guildID snowflake.ID) (map[string]json.RawMessage, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var rows []models.GuildConfig
	err := r.db.NewSelect().
		Model(&rows).
		Where("guild_id = ?", guildID).
		Order("name ASC").
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("list", "guild_config", guildID, err)
	}

	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.Name] = row.Value
	}
	return out, nil
}
