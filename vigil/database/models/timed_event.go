package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// ActionKind identifies the reversal to perform when a timed event expires.
type ActionKind string

const (
	ActionUnmute ActionKind = "unmute"
	ActionUnban  ActionKind = "unban"
)

// EventAction is the JSON payload stored with a timed event.
type EventAction struct {
	Kind ActionKind `json:"kind"`
}

// TimedEvent is a durable record of a future moderation reversal. Rows are
// immutable after insertion except for expiry extension of a pending event
// and the final delete once the action has been executed.
type TimedEvent struct {
	bun.BaseModel `bun:"table:timed_events,alias:te"`

	ID         int64           `bun:"id,pk,autoincrement"`
	GuildID    snowflake.ID    `bun:"guild_id,notnull"`
	TargetUser snowflake.ID    `bun:"target_user,notnull"`
	Action     json.RawMessage `bun:"action,notnull,type:jsonb"`
	Expiry     time.Time       `bun:"expiry,notnull"`
}

// DecodeAction unpacks the stored action payload.
func (e *TimedEvent) DecodeAction() (EventAction, error) {
	var a EventAction
	if err := json.Unmarshal(e.Action, &a); err != nil {
		return a, fmt.Errorf("malformed action payload for event %d: %w", e.ID, err)
	}
	return a, nil
}

// EncodeAction packs an action payload for storage.
func EncodeAction(a EventAction) (json.RawMessage, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action payload: %w", err)
	}
	return raw, nil
}
