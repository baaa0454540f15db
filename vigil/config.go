package vigil

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/vigil-bot/vigil/vigil/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log        LogConfig         `toml:"log"`
	Bot        BotConfig         `toml:"bot"`
	DB         database.DBConfig `toml:"db"`
	Moderation ModerationConfig  `toml:"moderation"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

// ModerationConfig tunes the background pieces of the moderation engine.
// Zero values fall back to the defaults below.
type ModerationConfig struct {
	SweepIntervalMinutes   int `toml:"sweep_interval_minutes"`
	SchedulerPollSeconds   int `toml:"scheduler_poll_seconds"`
	ExecutorTimeoutSeconds int `toml:"executor_timeout_seconds"`
}

const (
	defaultSweepInterval   = 30 * time.Minute
	defaultSchedulerPoll   = 60 * time.Second
	defaultExecutorTimeout = 10 * time.Second
)

func (c ModerationConfig) SweepInterval() time.Duration {
	if c.SweepIntervalMinutes <= 0 {
		return defaultSweepInterval
	}
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func (c ModerationConfig) SchedulerPoll() time.Duration {
	if c.SchedulerPollSeconds <= 0 {
		return defaultSchedulerPoll
	}
	return time.Duration(c.SchedulerPollSeconds) * time.Second
}

func (c ModerationConfig) ExecutorTimeout() time.Duration {
	if c.ExecutorTimeoutSeconds <= 0 {
		return defaultExecutorTimeout
	}
	return time.Duration(c.ExecutorTimeoutSeconds) * time.Second
}
