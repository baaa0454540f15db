package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Guild is the tenant record. Every guild-owned row references it and is
// removed with it; JoinableRoleCnt is a derived counter maintained by the
// joinable role repository inside its transactions.
type Guild struct {
	bun.BaseModel `bun:"table:guilds,alias:g"`

	ID              snowflake.ID `bun:"id,pk"`
	JoinableRoleCnt int          `bun:"joinable_role_cnt,notnull,default:0"`
	CreatedAt       time.Time    `bun:"created_at,notnull,default:now()"`
}

// MaxJoinableRoles caps the self-assignable role set per guild.
const MaxJoinableRoles = 128
