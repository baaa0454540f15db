package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/vigil-bot/vigil/vigil/database/models"
	"github.com/vigil-bot/vigil/vigil/database/repositories"
	"github.com/vigil-bot/vigil/vigil/guildconfig"
)

// fakeEventRepo is an in-memory TimedEventRepository with the same
// merge-on-insert semantics as the real one.
type fakeEventRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []models.TimedEvent
	err    error
}

func (f *fakeEventRepo) ExtendOrInsert(_ context.Context, guildID, userID snowflake.ID, action models.EventAction, expiry time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}

	raw, err := models.EncodeAction(action)
	if err != nil {
		return false, err
	}
	for i, row := range f.rows {
		if row.GuildID == guildID && row.TargetUser == userID && string(row.Action) == string(raw) {
			if expiry.After(row.Expiry) {
				f.rows[i].Expiry = expiry
			}
			return false, nil
		}
	}

	f.nextID++
	f.rows = append(f.rows, models.TimedEvent{
		ID:         f.nextID,
		GuildID:    guildID,
		TargetUser: userID,
		Action:     raw,
		Expiry:     expiry,
	})
	return true, nil
}

func (f *fakeEventRepo) NextExpiry(_ context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rows) == 0 {
		return time.Time{}, &repositories.NotFoundError{Entity: "timed_event", ID: "next"}
	}
	next := f.rows[0].Expiry
	for _, row := range f.rows[1:] {
		if row.Expiry.Before(next) {
			next = row.Expiry
		}
	}
	return next, nil
}

func (f *fakeEventRepo) DueBatch(_ context.Context, now time.Time) ([]models.TimedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []models.TimedEvent
	for _, row := range f.rows {
		if !row.Expiry.After(now) {
			due = append(due, row)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Expiry.Equal(due[j].Expiry) {
			return due[i].ID < due[j].ID
		}
		return due[i].Expiry.Before(due[j].Expiry)
	})
	return due, nil
}

func (f *fakeEventRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeEventRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeEventRepo) row(i int) models.TimedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[i]
}

// fakeExecutor records calls and fails actions listed in errs.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (f *fakeExecutor) record(action string, guildID, userID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%d:%d", action, guildID, userID))
	return f.errs[action]
}

func (f *fakeExecutor) Mute(_ context.Context, guildID, userID snowflake.ID) error {
	return f.record("mute", guildID, userID)
}

func (f *fakeExecutor) Unmute(_ context.Context, guildID, userID snowflake.ID) error {
	return f.record("unmute", guildID, userID)
}

func (f *fakeExecutor) Ban(_ context.Context, guildID, userID snowflake.ID, _ time.Duration, _ string) error {
	return f.record("ban", guildID, userID)
}

func (f *fakeExecutor) Unban(_ context.Context, guildID, userID snowflake.ID) error {
	return f.record("unban", guildID, userID)
}

func (f *fakeExecutor) Kick(_ context.Context, guildID, userID snowflake.ID, _ string) error {
	return f.record("kick", guildID, userID)
}

func (f *fakeExecutor) DeleteMessages(_ context.Context, channelID snowflake.ID, _ []snowflake.ID) error {
	return f.record("delete_messages", channelID, 0)
}

func (f *fakeExecutor) callCount(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if len(call) >= len(action) && call[:len(action)] == action {
			n++
		}
	}
	return n
}

type fakeWaker struct {
	mu    sync.Mutex
	count int
}

func (f *fakeWaker) Notify() {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
}

func (f *fakeWaker) notified() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func testDispatcher(cfgErr error) (*Dispatcher, *fakeEventRepo, *fakeExecutor, *fakeWaker, time.Time) {
	repo := &fakeEventRepo{}
	exec := &fakeExecutor{errs: map[string]error{}}
	waker := &fakeWaker{}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	cfg := guildconfig.DefaultSpamConfig
	cfg.SilenceTimeoutSecs = 300

	d := NewDispatcher(&staticConfigSource{cfg: cfg, err: cfgErr}, repo, exec, waker)
	d.now = func() time.Time { return now }
	return d, repo, exec, waker, now
}

func TestDispatcher_ApplySilence(t *testing.T) {
	d, repo, exec, waker, now := testDispatcher(nil)
	ctx := context.Background()

	if err := d.ApplySilence(ctx, testGuild, testUser); err != nil {
		t.Fatalf("ApplySilence() error = %v", err)
	}

	if got := exec.callCount("mute"); got != 1 {
		t.Errorf("mute calls = %d, want 1", got)
	}
	if got := repo.count(); got != 1 {
		t.Fatalf("event rows = %d, want 1", got)
	}

	row := repo.row(0)
	action, err := row.DecodeAction()
	if err != nil {
		t.Fatalf("DecodeAction() error = %v", err)
	}
	if action.Kind != models.ActionUnmute {
		t.Errorf("action kind = %q, want %q", action.Kind, models.ActionUnmute)
	}
	if want := now.Add(300 * time.Second); !row.Expiry.Equal(want) {
		t.Errorf("expiry = %v, want %v", row.Expiry, want)
	}
	if got := waker.notified(); got != 1 {
		t.Errorf("waker notifications = %d, want 1", got)
	}
}

func TestDispatcher_ApplySilence_ExtendsExisting(t *testing.T) {
	d, repo, _, waker, _ := testDispatcher(nil)
	ctx := context.Background()

	if err := d.ApplySilence(ctx, testGuild, testUser); err != nil {
		t.Fatalf("first ApplySilence() error = %v", err)
	}
	first := repo.row(0).Expiry

	if err := d.ApplySilence(ctx, testGuild, testUser); err != nil {
		t.Fatalf("second ApplySilence() error = %v", err)
	}

	if got := repo.count(); got != 1 {
		t.Errorf("event rows = %d, want 1 (no stacking)", got)
	}
	if got := repo.row(0).Expiry; got.Before(first) {
		t.Errorf("expiry moved backwards: %v < %v", got, first)
	}
	// Extending an existing event never wakes the scheduler early.
	if got := waker.notified(); got != 1 {
		t.Errorf("waker notifications = %d, want 1", got)
	}
}

func TestDispatcher_ApplySilence_MuteFails(t *testing.T) {
	d, repo, exec, waker, _ := testDispatcher(nil)
	exec.errs["mute"] = &ActionError{Action: "mute", Retryable: true, Err: errors.New("boom")}

	err := d.ApplySilence(context.Background(), testGuild, testUser)
	if err == nil {
		t.Fatal("ApplySilence() error = nil, want error")
	}
	if !IsRetryable(err) {
		t.Errorf("IsRetryable(%v) = false, want true", err)
	}
	if got := repo.count(); got != 0 {
		t.Errorf("event rows = %d, want 0 (no reversal for a failed mute)", got)
	}
	if got := waker.notified(); got != 0 {
		t.Errorf("waker notifications = %d, want 0", got)
	}
}

func TestDispatcher_ApplyTimedBan(t *testing.T) {
	d, repo, exec, _, now := testDispatcher(nil)
	ctx := context.Background()

	if err := d.ApplyTimedBan(ctx, testGuild, testUser, time.Hour, 24*time.Hour, "raid"); err != nil {
		t.Fatalf("ApplyTimedBan() error = %v", err)
	}
	if got := exec.callCount("ban"); got != 1 {
		t.Errorf("ban calls = %d, want 1", got)
	}

	row := repo.row(0)
	action, err := row.DecodeAction()
	if err != nil {
		t.Fatalf("DecodeAction() error = %v", err)
	}
	if action.Kind != models.ActionUnban {
		t.Errorf("action kind = %q, want %q", action.Kind, models.ActionUnban)
	}
	if want := now.Add(time.Hour); !row.Expiry.Equal(want) {
		t.Errorf("expiry = %v, want %v", row.Expiry, want)
	}
}
