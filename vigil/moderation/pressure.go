package moderation

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/vigil-bot/vigil/vigil/guildconfig"
)

// Decision is the outcome of observing one message.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionSilence
)

// ConfigSource provides the per-guild spam parameters. When the durable
// store is unreachable it returns the compiled defaults alongside the
// error, so observation can continue degraded.
type ConfigSource interface {
	GetSpamConfig(ctx context.Context, guildID snowflake.ID) (guildconfig.SpamConfig, error)
}

type pressureKey struct {
	guildID snowflake.ID
	userID  snowflake.ID
}

// userState is one user's decaying score. The per-state mutex makes
// updates for a single (guild, user) linearizable without serializing
// unrelated users.
type userState struct {
	mu         sync.Mutex
	pressure   float64
	lastUpdate time.Time
}

// Tracker maintains in-memory pressure state for every active
// (guild, user) pair. State never touches durable storage and the whole
// table is swept on a timer, so no user-identifying moderation state
// outlives the sweep interval or a restart.
type Tracker struct {
	configs       ConfigSource
	states        atomic.Pointer[xsync.MapOf[pressureKey, *userState]]
	sweepInterval time.Duration
	shutdown      chan struct{}
	stopOnce      sync.Once

	now func() time.Time
}

func NewTracker(configs ConfigSource, sweepInterval time.Duration) *Tracker {
	t := &Tracker{
		configs:       configs,
		sweepInterval: sweepInterval,
		shutdown:      make(chan struct{}),
		now:           time.Now,
	}
	t.states.Store(xsync.NewMapOf[pressureKey, *userState]())
	return t
}

// Observe scores one message and reports whether the user crossed the
// guild's pressure threshold. The caller is expected to Reset the user
// after issuing the resulting silence.
func (t *Tracker) Observe(ctx context.Context, guildID, userID snowflake.ID, features MessageFeatures) (Decision, error) {
	cfg, cfgErr := t.configs.GetSpamConfig(ctx, guildID)

	state, _ := t.states.Load().LoadOrCompute(pressureKey{guildID, userID}, func() *userState {
		return &userState{}
	})

	state.mu.Lock()
	defer state.mu.Unlock()

	now := t.now()
	if !state.lastUpdate.IsZero() && cfg.PressureDecay > 0 {
		elapsed := now.Sub(state.lastUpdate).Seconds()
		state.pressure -= elapsed / cfg.PressureDecay * cfg.BasePressure
	}
	state.pressure = clampPressure(state.pressure)

	increment := cfg.BasePressure +
		cfg.LengthPressure*float64(features.UTF8Length) +
		cfg.LinePressure*float64(features.LineBreaks) +
		cfg.ImagePressure*float64(features.ImageCount) +
		cfg.PingPressure*float64(features.UniquePings)

	state.pressure = clampPressure(state.pressure + clampPressure(increment))
	state.lastUpdate = now

	if cfgErr != nil {
		// Config store unreachable: keep scoring with defaults but take
		// no action on a possibly stale threshold.
		slog.Warn("Observing without threshold action",
			slog.String("type", "mod"),
			slog.Int64("guild_id", int64(guildID)),
			slog.Any("error", cfgErr))
		return DecisionNone, nil
	}

	if state.pressure > cfg.MaxPressure {
		return DecisionSilence, nil
	}
	return DecisionNone, nil
}

// Pressure returns the user's current raw score without applying decay.
func (t *Tracker) Pressure(guildID, userID snowflake.ID) float64 {
	state, ok := t.states.Load().Load(pressureKey{guildID, userID})
	if !ok {
		return 0
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.pressure
}

// Reset zeroes one user's pressure. Used after a silence is issued and by
// the moderator clear-pressure command.
func (t *Tracker) Reset(guildID, userID snowflake.ID) {
	state, ok := t.states.Load().Load(pressureKey{guildID, userID})
	if !ok {
		return
	}
	state.mu.Lock()
	state.pressure = 0
	state.lastUpdate = t.now()
	state.mu.Unlock()
}

// Start launches the periodic sweep that clears all pressure state.
func (t *Tracker) Start() {
	go func() {
		ticker := time.NewTicker(t.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.Sweep()
			case <-t.shutdown:
				return
			}
		}
	}()
}

// Sweep replaces the whole table with an empty one. Swap-and-replace
// keeps the pause bounded regardless of table size; in-flight updates
// finish against the old table and are forgotten with it.
func (t *Tracker) Sweep() {
	old := t.states.Swap(xsync.NewMapOf[pressureKey, *userState]())
	slog.Info("Pressure table swept",
		slog.String("type", "mod"),
		slog.Int("entries", old.Size()))
}

func (t *Tracker) Shutdown() {
	t.stopOnce.Do(func() { close(t.shutdown) })
}

// clampPressure pins negative or non-finite values to 0.
func clampPressure(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}
