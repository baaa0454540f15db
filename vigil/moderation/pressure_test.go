package moderation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/vigil-bot/vigil/vigil/guildconfig"
)

type staticConfigSource struct {
	cfg guildconfig.SpamConfig
	err error
}

func (s *staticConfigSource) GetSpamConfig(_ context.Context, _ snowflake.ID) (guildconfig.SpamConfig, error) {
	return s.cfg, s.err
}

func testTracker(cfg guildconfig.SpamConfig, err error) (*Tracker, *time.Time) {
	t := NewTracker(&staticConfigSource{cfg: cfg, err: err}, time.Hour)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	t.now = func() time.Time { return now }
	return t, &now
}

const (
	testGuild = snowflake.ID(100)
	testUser  = snowflake.ID(200)
)

func TestTracker_Observe_AccumulatesWithoutDecay(t *testing.T) {
	cfg := guildconfig.SpamConfig{
		BasePressure:  10,
		MaxPressure:   1000,
		PressureDecay: 60,
	}
	tracker, _ := testTracker(cfg, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		decision, err := tracker.Observe(ctx, testGuild, testUser, MessageFeatures{})
		if err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
		if decision != DecisionNone {
			t.Fatalf("Observe() decision = %v, want DecisionNone", decision)
		}
		want := float64(i) * cfg.BasePressure
		if got := tracker.Pressure(testGuild, testUser); math.Abs(got-want) > 1e-9 {
			t.Fatalf("Pressure() after %d messages = %v, want %v", i, got, want)
		}
	}
}

func TestTracker_Observe_FeatureIncrement(t *testing.T) {
	cfg := guildconfig.SpamConfig{
		BasePressure:   10,
		LengthPressure: 0.01,
		LinePressure:   0.5,
		ImagePressure:  8,
		PingPressure:   2.5,
		MaxPressure:    1000,
		PressureDecay:  60,
	}
	tests := []struct {
		name     string
		features MessageFeatures
		want     float64
	}{
		{name: "empty message", features: MessageFeatures{}, want: 10},
		{name: "length only", features: MessageFeatures{UTF8Length: 500}, want: 15},
		{
			name:     "all features",
			features: MessageFeatures{UTF8Length: 100, LineBreaks: 4, ImageCount: 2, UniquePings: 3},
			want:     10 + 1 + 2 + 16 + 7.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, _ := testTracker(cfg, nil)
			if _, err := tracker.Observe(context.Background(), testGuild, testUser, tt.features); err != nil {
				t.Fatalf("Observe() error = %v", err)
			}
			if got := tracker.Pressure(testGuild, testUser); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Pressure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_Observe_ThresholdSilences(t *testing.T) {
	cfg := guildconfig.SpamConfig{
		BasePressure:   10,
		LengthPressure: 0.01,
		MaxPressure:    20,
		PressureDecay:  3600,
	}
	tracker, _ := testTracker(cfg, nil)
	ctx := context.Background()
	long := MessageFeatures{UTF8Length: 500}

	decision, err := tracker.Observe(ctx, testGuild, testUser, long)
	if err != nil || decision != DecisionNone {
		t.Fatalf("first Observe() = (%v, %v), want (DecisionNone, nil)", decision, err)
	}

	decision, err = tracker.Observe(ctx, testGuild, testUser, long)
	if err != nil {
		t.Fatalf("second Observe() error = %v", err)
	}
	if decision != DecisionSilence {
		t.Errorf("second Observe() decision = %v, want DecisionSilence", decision)
	}
}

func TestTracker_Observe_Decay(t *testing.T) {
	cfg := guildconfig.SpamConfig{
		BasePressure:  10,
		MaxPressure:   1000,
		PressureDecay: 60,
	}
	tracker, now := testTracker(cfg, nil)
	ctx := context.Background()

	if _, err := tracker.Observe(ctx, testGuild, testUser, MessageFeatures{}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	// One full decay interval drains exactly one BasePressure, and the
	// new message adds one back.
	*now = now.Add(60 * time.Second)
	if _, err := tracker.Observe(ctx, testGuild, testUser, MessageFeatures{}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if got := tracker.Pressure(testGuild, testUser); math.Abs(got-10) > 1e-9 {
		t.Errorf("Pressure() after full decay = %v, want 10", got)
	}

	// A very long idle period floors at zero rather than going negative.
	*now = now.Add(24 * time.Hour)
	if _, err := tracker.Observe(ctx, testGuild, testUser, MessageFeatures{}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if got := tracker.Pressure(testGuild, testUser); math.Abs(got-10) > 1e-9 {
		t.Errorf("Pressure() after long idle = %v, want 10", got)
	}
}

func TestTracker_Observe_DegradedConfig(t *testing.T) {
	cfg := guildconfig.DefaultSpamConfig
	cfg.MaxPressure = 1
	tracker, _ := testTracker(cfg, errors.New("store unreachable"))
	ctx := context.Background()

	// Over threshold, but the config fetch failed: score, take no action.
	decision, err := tracker.Observe(ctx, testGuild, testUser, MessageFeatures{UTF8Length: 10000})
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if decision != DecisionNone {
		t.Errorf("Observe() decision = %v, want DecisionNone", decision)
	}
	if got := tracker.Pressure(testGuild, testUser); got <= 0 {
		t.Errorf("Pressure() = %v, want > 0", got)
	}
}

func TestTracker_ConcurrentObservesLoseNoIncrement(t *testing.T) {
	cfg := guildconfig.SpamConfig{
		BasePressure:  10,
		MaxPressure:   1e9,
		PressureDecay: 3600,
	}
	tracker, _ := testTracker(cfg, nil)
	ctx := context.Background()

	const observers = 100
	errs := make([]error, observers)

	var wg sync.WaitGroup
	for i := 0; i < observers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tracker.Observe(ctx, testGuild, testUser, MessageFeatures{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Observe() #%d error = %v", i, err)
		}
	}

	// Elapsed time is frozen, so every increment must survive intact.
	want := float64(observers) * cfg.BasePressure
	if got := tracker.Pressure(testGuild, testUser); math.Abs(got-want) > 1e-6 {
		t.Errorf("Pressure() after %d concurrent observes = %v, want %v", observers, got, want)
	}
}

func TestTracker_Reset(t *testing.T) {
	tracker, _ := testTracker(guildconfig.DefaultSpamConfig, nil)
	ctx := context.Background()

	if _, err := tracker.Observe(ctx, testGuild, testUser, MessageFeatures{}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	tracker.Reset(testGuild, testUser)
	if got := tracker.Pressure(testGuild, testUser); got != 0 {
		t.Errorf("Pressure() after Reset = %v, want 0", got)
	}

	// Resetting an unknown user is a no-op.
	tracker.Reset(testGuild, snowflake.ID(999))
}

func TestTracker_GuildIsolation(t *testing.T) {
	tracker, _ := testTracker(guildconfig.DefaultSpamConfig, nil)
	ctx := context.Background()

	otherGuild := snowflake.ID(101)
	if _, err := tracker.Observe(ctx, testGuild, testUser, MessageFeatures{}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if got := tracker.Pressure(otherGuild, testUser); got != 0 {
		t.Errorf("Pressure() in untouched guild = %v, want 0", got)
	}
}

func TestTracker_Sweep(t *testing.T) {
	tracker, _ := testTracker(guildconfig.DefaultSpamConfig, nil)
	ctx := context.Background()

	if _, err := tracker.Observe(ctx, testGuild, testUser, MessageFeatures{}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	tracker.Sweep()
	if got := tracker.Pressure(testGuild, testUser); got != 0 {
		t.Errorf("Pressure() after Sweep = %v, want 0", got)
	}
}

func TestClampPressure(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "positive", in: 12.5, want: 12.5},
		{name: "zero", in: 0, want: 0},
		{name: "negative", in: -3, want: 0},
		{name: "nan", in: math.NaN(), want: 0},
		{name: "positive inf", in: math.Inf(1), want: 0},
		{name: "negative inf", in: math.Inf(-1), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampPressure(tt.in); got != tt.want {
				t.Errorf("clampPressure(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
