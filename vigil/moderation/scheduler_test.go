package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/vigil-bot/vigil/vigil/database/models"
)

func testScheduler(repo *fakeEventRepo, exec *fakeExecutor, poll time.Duration) (*Scheduler, time.Time) {
	s := NewScheduler(repo, exec, poll, time.Second)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, now
}

func insertEvent(t *testing.T, repo *fakeEventRepo, userID snowflake.ID, kind models.ActionKind, expiry time.Time) {
	t.Helper()
	if _, err := repo.ExtendOrInsert(context.Background(), testGuild, userID, models.EventAction{Kind: kind}, expiry); err != nil {
		t.Fatalf("ExtendOrInsert() error = %v", err)
	}
}

func TestScheduler_NextWait(t *testing.T) {
	repo := &fakeEventRepo{}
	exec := &fakeExecutor{errs: map[string]error{}}
	s, now := testScheduler(repo, exec, time.Minute)

	tests := []struct {
		name   string
		expiry time.Time
		want   time.Duration
	}{
		{name: "no events polls", want: time.Minute},
		{name: "due event wakes immediately", expiry: now.Add(-time.Second), want: 0},
		{name: "near event waits exactly", expiry: now.Add(10 * time.Second), want: 10 * time.Second},
		{name: "far event capped at poll", expiry: now.Add(2 * time.Hour), want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo.rows = nil
			if !tt.expiry.IsZero() {
				insertEvent(t, repo, testUser, models.ActionUnmute, tt.expiry)
			}
			if got := s.nextWait(); got != tt.want {
				t.Errorf("nextWait() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduler_ProcessDue_ExecutesAndDeletes(t *testing.T) {
	repo := &fakeEventRepo{}
	exec := &fakeExecutor{errs: map[string]error{}}
	s, now := testScheduler(repo, exec, time.Minute)

	insertEvent(t, repo, testUser, models.ActionUnmute, now.Add(-time.Minute))
	insertEvent(t, repo, snowflake.ID(201), models.ActionUnban, now.Add(-time.Second))
	insertEvent(t, repo, snowflake.ID(202), models.ActionUnmute, now.Add(time.Hour))

	s.processDue()

	if got := exec.callCount("unmute"); got != 1 {
		t.Errorf("unmute calls = %d, want 1", got)
	}
	if got := exec.callCount("unban"); got != 1 {
		t.Errorf("unban calls = %d, want 1", got)
	}
	// The future event must survive untouched.
	if got := repo.count(); got != 1 {
		t.Fatalf("remaining rows = %d, want 1", got)
	}
	if got := repo.row(0).TargetUser; got != snowflake.ID(202) {
		t.Errorf("surviving row user = %d, want 202", got)
	}
}

func TestScheduler_ProcessDue_RetryableFailureKeepsRow(t *testing.T) {
	repo := &fakeEventRepo{}
	exec := &fakeExecutor{errs: map[string]error{
		"unmute": &ActionError{Action: "unmute", Retryable: true, Err: errors.New("rate limited")},
	}}
	s, now := testScheduler(repo, exec, time.Minute)

	insertEvent(t, repo, testUser, models.ActionUnmute, now.Add(-time.Minute))

	s.processDue()
	if got := repo.count(); got != 1 {
		t.Fatalf("rows after retryable failure = %d, want 1", got)
	}

	// The failure clears; the next pass completes the reversal.
	exec.errs = map[string]error{}
	s.processDue()
	if got := repo.count(); got != 0 {
		t.Errorf("rows after retry = %d, want 0", got)
	}
	if got := exec.callCount("unmute"); got != 2 {
		t.Errorf("unmute calls = %d, want 2", got)
	}
}

func TestScheduler_ProcessDue_DefinitiveFailureDeletesRow(t *testing.T) {
	repo := &fakeEventRepo{}
	exec := &fakeExecutor{errs: map[string]error{
		"unban": &ActionError{Action: "unban", Retryable: false, Err: errors.New("unknown ban")},
	}}
	s, now := testScheduler(repo, exec, time.Minute)

	insertEvent(t, repo, testUser, models.ActionUnban, now.Add(-time.Minute))

	s.processDue()
	if got := repo.count(); got != 0 {
		t.Errorf("rows after definitive failure = %d, want 0", got)
	}
}

func TestScheduler_ProcessDue_DropsMalformedEvents(t *testing.T) {
	repo := &fakeEventRepo{}
	exec := &fakeExecutor{errs: map[string]error{}}
	s, now := testScheduler(repo, exec, time.Minute)

	repo.rows = append(repo.rows, models.TimedEvent{
		ID:         1,
		GuildID:    testGuild,
		TargetUser: testUser,
		Action:     json.RawMessage(`{not json`),
		Expiry:     now.Add(-time.Minute),
	})
	repo.rows = append(repo.rows, models.TimedEvent{
		ID:         2,
		GuildID:    testGuild,
		TargetUser: testUser,
		Action:     json.RawMessage(`{"kind":"teleport"}`),
		Expiry:     now.Add(-time.Minute),
	})

	s.processDue()
	if got := repo.count(); got != 0 {
		t.Errorf("rows after dropping malformed events = %d, want 0", got)
	}
	if got := len(exec.calls); got != 0 {
		t.Errorf("executor calls = %d, want 0", got)
	}
}

func TestScheduler_RunLoop(t *testing.T) {
	repo := &fakeEventRepo{}
	exec := &fakeExecutor{errs: map[string]error{}}
	s := NewScheduler(repo, exec, 5*time.Millisecond, time.Second)

	insertEvent(t, repo, testUser, models.ActionUnmute, time.Now().Add(-time.Second))

	s.Start()
	defer s.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if repo.count() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("due event was never executed by the run loop")
}

func TestScheduler_NotifyNeverBlocks(t *testing.T) {
	repo := &fakeEventRepo{}
	exec := &fakeExecutor{errs: map[string]error{}}
	s, _ := testScheduler(repo, exec, time.Minute)

	// Coalesced: repeated notifications without a running loop must not block.
	for i := 0; i < 10; i++ {
		s.Notify()
	}
}
