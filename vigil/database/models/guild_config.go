package models

import (
	"encoding/json"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// GuildConfig stores one JSON-typed config value per (guild, name).
type GuildConfig struct {
	bun.BaseModel `bun:"table:guild_configs,alias:gc"`

	GuildID snowflake.ID    `bun:"guild_id,pk"`
	Name    string          `bun:"name,pk"`
	Value   json.RawMessage `bun:"value,notnull,type:jsonb"`
}
