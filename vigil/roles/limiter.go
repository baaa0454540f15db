// Package roles enforces the bounded, guild-scoped self-assignable role
// set. The capacity check itself runs inside the repository's transaction;
// this layer owns the domain errors and the command-facing operations.
package roles

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"

	"github.com/vigil-bot/vigil/vigil/database/repositories"
)

var (
	// ErrCapacityExceeded is returned when a guild is at its joinable
	// role cap. Not retryable; a role must be removed first.
	ErrCapacityExceeded = repositories.ErrCapacityExceeded
	// ErrNotJoinable rejects self-service joins of roles moderators never
	// marked joinable.
	ErrNotJoinable = errors.New("role is not self-assignable")
)

type Limiter struct {
	repo repositories.JoinableRoleRepository
}

func NewLimiter(repo repositories.JoinableRoleRepository) *Limiter {
	return &Limiter{repo: repo}
}

// MakeJoinable marks a role self-assignable, subject to the per-guild cap.
func (l *Limiter) MakeJoinable(ctx context.Context, guildID, roleID snowflake.ID) error {
	return l.repo.Add(ctx, guildID, roleID)
}

// RevokeJoinable unmarks a role. Revoking a role that was never joinable
// is a no-op, not an error.
func (l *Limiter) RevokeJoinable(ctx context.Context, guildID, roleID snowflake.ID) error {
	return l.repo.Remove(ctx, guildID, roleID)
}

// EnsureJoinable gates a self-service join or leave request.
func (l *Limiter) EnsureJoinable(ctx context.Context, guildID, roleID snowflake.ID) error {
	joinable, err := l.repo.IsJoinable(ctx, guildID, roleID)
	if err != nil {
		return err
	}
	if !joinable {
		return ErrNotJoinable
	}
	return nil
}

func (l *Limiter) List(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error) {
	return l.repo.List(ctx, guildID)
}

func (l *Limiter) Count(ctx context.Context, guildID snowflake.ID) (int, error) {
	return l.repo.Count(ctx, guildID)
}
