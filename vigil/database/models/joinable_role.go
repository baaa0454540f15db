package models

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// JoinableRole marks a role as self-assignable by ordinary users.
type JoinableRole struct {
	bun.BaseModel `bun:"table:joinable_roles,alias:jr"`

	GuildID snowflake.ID `bun:"guild_id,pk"`
	RoleID  snowflake.ID `bun:"role_id,pk"`
}
