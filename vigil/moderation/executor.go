package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/vigil-bot/vigil/vigil/guildconfig"
)

// MaxMessageDeleteLimit bounds a single bulk message deletion.
const MaxMessageDeleteLimit = 4096

// ActionError wraps a failed platform call. Retryable failures (network,
// timeouts, rate limits) may be reattempted; the scheduler does this
// automatically on its next due pass.
type ActionError struct {
	Action    string
	Retryable bool
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is an ActionError worth reattempting.
func IsRetryable(err error) bool {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// Executor carries moderation actions out against the chat platform.
type Executor interface {
	Mute(ctx context.Context, guildID, userID snowflake.ID) error
	Unmute(ctx context.Context, guildID, userID snowflake.ID) error
	Ban(ctx context.Context, guildID, userID snowflake.ID, deleteMessages time.Duration, reason string) error
	Unban(ctx context.Context, guildID, userID snowflake.ID) error
	Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	DeleteMessages(ctx context.Context, channelID snowflake.ID, messageIDs []snowflake.ID) error
}

// MuteRoleSource resolves the configured mute role per guild.
type MuteRoleSource interface {
	GetMuteRole(ctx context.Context, guildID snowflake.ID) (snowflake.ID, error)
}

// RestExecutor implements Executor over the Discord REST API. Mute and
// unmute are role assignments of the guild's configured mute role; both
// are idempotent on the platform side.
type RestExecutor struct {
	client  bot.Client
	configs MuteRoleSource
	timeout time.Duration
}

func NewRestExecutor(client bot.Client, configs MuteRoleSource, timeout time.Duration) *RestExecutor {
	return &RestExecutor{
		client:  client,
		configs: configs,
		timeout: timeout,
	}
}

func (e *RestExecutor) Mute(ctx context.Context, guildID, userID snowflake.ID) error {
	role, err := e.configs.GetMuteRole(ctx, guildID)
	if err != nil {
		if errors.Is(err, guildconfig.ErrMuteRoleNotSet) {
			return &ActionError{Action: "mute", Retryable: false, Err: err}
		}
		return &ActionError{Action: "mute", Retryable: true, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.client.Rest().AddMemberRole(guildID, userID, role, rest.WithCtx(callCtx)); err != nil {
		return wrapRestError("mute", err)
	}
	return nil
}

func (e *RestExecutor) Unmute(ctx context.Context, guildID, userID snowflake.ID) error {
	role, err := e.configs.GetMuteRole(ctx, guildID)
	if err != nil {
		if errors.Is(err, guildconfig.ErrMuteRoleNotSet) {
			return &ActionError{Action: "unmute", Retryable: false, Err: err}
		}
		return &ActionError{Action: "unmute", Retryable: true, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.client.Rest().RemoveMemberRole(guildID, userID, role, rest.WithCtx(callCtx)); err != nil {
		return wrapRestError("unmute", err)
	}
	return nil
}

func (e *RestExecutor) Ban(ctx context.Context, guildID, userID snowflake.ID, deleteMessages time.Duration, reason string) error {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	opts := []rest.RequestOpt{rest.WithCtx(callCtx)}
	if reason != "" {
		opts = append(opts, rest.WithReason(reason))
	}
	if err := e.client.Rest().AddBan(guildID, userID, deleteMessages, opts...); err != nil {
		return wrapRestError("ban", err)
	}
	return nil
}

func (e *RestExecutor) Unban(ctx context.Context, guildID, userID snowflake.ID) error {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.client.Rest().DeleteBan(guildID, userID, rest.WithCtx(callCtx)); err != nil {
		return wrapRestError("unban", err)
	}
	return nil
}

func (e *RestExecutor) Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	opts := []rest.RequestOpt{rest.WithCtx(callCtx)}
	if reason != "" {
		opts = append(opts, rest.WithReason(reason))
	}
	if err := e.client.Rest().RemoveMember(guildID, userID, opts...); err != nil {
		return wrapRestError("kick", err)
	}
	return nil
}

func (e *RestExecutor) DeleteMessages(ctx context.Context, channelID snowflake.ID, messageIDs []snowflake.ID) error {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	for _, chunk := range deleteChunks(messageIDs) {
		// Discord rejects a bulk delete of fewer than two messages.
		if len(chunk) == 1 {
			if err := e.client.Rest().DeleteMessage(channelID, chunk[0], rest.WithCtx(callCtx)); err != nil {
				return wrapRestError("delete_messages", err)
			}
			continue
		}
		if err := e.client.Rest().BulkDeleteMessages(channelID, chunk, rest.WithCtx(callCtx)); err != nil {
			return wrapRestError("delete_messages", err)
		}
	}
	return nil
}

// deleteChunks caps the ids at MaxMessageDeleteLimit and splits them into
// bulk-delete calls of at most 100 messages each.
func deleteChunks(messageIDs []snowflake.ID) [][]snowflake.ID {
	if len(messageIDs) > MaxMessageDeleteLimit {
		messageIDs = messageIDs[:MaxMessageDeleteLimit]
	}

	const chunkSize = 100
	var chunks [][]snowflake.ID
	for start := 0; start < len(messageIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(messageIDs) {
			end = len(messageIDs)
		}
		chunks = append(chunks, messageIDs[start:end])
	}
	return chunks
}

// wrapRestError classifies a REST failure. Client errors other than rate
// limits are definitive; everything else (timeouts, 5xx, rate limits) can
// be retried.
func wrapRestError(action string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ActionError{Action: action, Retryable: true, Err: err}
	}

	var restErr rest.Error
	if errors.As(err, &restErr) {
		code := restErr.Response.StatusCode
		if code >= 400 && code < 500 && code != 429 {
			return &ActionError{Action: action, Retryable: false, Err: err}
		}
	}
	return &ActionError{Action: action, Retryable: true, Err: err}
}
