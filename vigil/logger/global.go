package logger

import (
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
)

// LogAction logs a moderation action taken against a user.
func LogAction(action string, guildID snowflake.ID, userID snowflake.ID, err error) {
	attrs := []any{
		slog.String("type", "mod"),
		slog.String("action", action),
		slog.Int64("guild_id", int64(guildID)),
		slog.Int64("user_id", int64(userID)),
	}

	if err != nil {
		slog.Error("Moderation action failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Moderation action executed", attrs...)
	}
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
