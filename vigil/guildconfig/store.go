package guildconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/vigil-bot/vigil/vigil/database/repositories"
)

const cacheSize = 4096

var (
	// ErrMuteRoleNotSet means the guild never configured a mute role, so
	// automatic silencing cannot act.
	ErrMuteRoleNotSet = errors.New("no mute role has been set for this guild (mute_role)")
	// ErrModLogNotSet means the guild has no moderation log channel.
	ErrModLogNotSet = errors.New("no mod log channel has been set for this guild (mod_log_channel)")
)

// Store is the typed access layer for per-guild configuration. Reads fall
// back to compiled defaults and never fail because a key was never set;
// writes are validated per key before anything durable happens.
type Store struct {
	repo  repositories.ConfigRepository
	cache *lru.Cache
}

// cachedValue distinguishes "stored value" from "known absent" so both
// outcomes can be served without a query.
type cachedValue struct {
	raw     json.RawMessage
	present bool
}

func NewStore(repo repositories.ConfigRepository) *Store {
	cache, _ := lru.New(cacheSize)
	return &Store{repo: repo, cache: cache}
}

func cacheKey(guildID snowflake.ID, name string) string {
	return fmt.Sprintf("%d/%s", guildID, name)
}

// Get returns the stored raw value for a known key, or (nil, nil) when the
// guild has not set it. Unknown keys are a validation error.
func (s *Store) Get(ctx context.Context, guildID snowflake.ID, name string) (json.RawMessage, error) {
	if _, ok := keyRegistry[name]; !ok {
		return nil, &ValidationError{Key: name, Reason: "unknown config key"}
	}

	if v, ok := s.cache.Get(cacheKey(guildID, name)); ok {
		cv := v.(cachedValue)
		if !cv.present {
			return nil, nil
		}
		return cv.raw, nil
	}

	raw, err := s.repo.Get(ctx, guildID, name)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.cache.Add(cacheKey(guildID, name), cachedValue{})
			return nil, nil
		}
		return nil, err
	}

	s.cache.Add(cacheKey(guildID, name), cachedValue{raw: raw, present: true})
	return raw, nil
}

// Set validates raw command input against the key's schema and stores the
// canonical JSON. Nothing is written when validation fails.
func (s *Store) Set(ctx context.Context, guildID snowflake.ID, name string, input string) error {
	spec, ok := keyRegistry[name]
	if !ok {
		return &ValidationError{Key: name, Reason: "unknown config key"}
	}

	value, err := spec.validate(input)
	if err != nil {
		return err
	}

	if err := s.repo.Set(ctx, guildID, name, value); err != nil {
		return err
	}

	s.cache.Add(cacheKey(guildID, name), cachedValue{raw: value, present: true})
	return nil
}

// List returns every value the guild has actually stored, keyed by name.
// Bypasses the cache; this is an operator-facing listing, not a hot path.
func (s *Store) List(ctx context.Context, guildID snowflake.ID) (map[string]json.RawMessage, error) {
	return s.repo.List(ctx, guildID)
}

// Invalidate drops every cached value for a guild. Called when a guild is
// deleted.
func (s *Store) Invalidate(guildID snowflake.ID) {
	for _, name := range Keys() {
		s.cache.Remove(cacheKey(guildID, name))
	}
}

// GetCommandPrefix returns the guild's prefix, or the default when unset
// or unreadable.
func (s *Store) GetCommandPrefix(ctx context.Context, guildID snowflake.ID) (string, error) {
	raw, err := s.Get(ctx, guildID, KeyCommandPrefix)
	if err != nil || raw == nil {
		return DefaultCommandPrefix, err
	}

	var prefix string
	if err := json.Unmarshal(raw, &prefix); err != nil {
		return DefaultCommandPrefix, nil
	}
	return prefix, nil
}

// GetSpamConfig returns the guild's pressure parameters, falling back to
// the compiled defaults when unset or malformed.
func (s *Store) GetSpamConfig(ctx context.Context, guildID snowflake.ID) (SpamConfig, error) {
	raw, err := s.Get(ctx, guildID, KeySpamConfig)
	if err != nil || raw == nil {
		return DefaultSpamConfig, err
	}

	cfg, perr := ParseSpamConfig(raw)
	if perr != nil {
		// A stored record that no longer validates is treated as absent
		// rather than breaking message processing.
		return DefaultSpamConfig, nil
	}
	return cfg, nil
}

// GetMuteRole returns the configured mute role. There is no default;
// callers surface ErrMuteRoleNotSet to the operator.
func (s *Store) GetMuteRole(ctx context.Context, guildID snowflake.ID) (snowflake.ID, error) {
	return s.getSnowflake(ctx, guildID, KeyMuteRole, ErrMuteRoleNotSet)
}

// GetModLogChannel returns the configured moderation log channel.
func (s *Store) GetModLogChannel(ctx context.Context, guildID snowflake.ID) (snowflake.ID, error) {
	return s.getSnowflake(ctx, guildID, KeyModLogChannel, ErrModLogNotSet)
}

func (s *Store) getSnowflake(ctx context.Context, guildID snowflake.ID, name string, notSet error) (snowflake.ID, error) {
	raw, err := s.Get(ctx, guildID, name)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, notSet
	}

	var id snowflake.ID
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, notSet
	}
	return id, nil
}
