package moderation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vigil-bot/vigil/vigil/database/models"
	"github.com/vigil-bot/vigil/vigil/database/repositories"
	"github.com/vigil-bot/vigil/vigil/logger"
)

const executeParallelism = 8

// Scheduler drives timed reversals to completion. It sleeps until the
// nearest expiry across all guilds (or the poll interval, whichever is
// sooner), executes everything due, and deletes a row only once its
// action has succeeded or failed definitively. Rows left behind by
// retryable failures or a crash are picked up again on the next pass.
type Scheduler struct {
	events      repositories.TimedEventRepository
	executor    Executor
	poll        time.Duration
	execTimeout time.Duration

	wake     chan struct{}
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	now func() time.Time
}

func NewScheduler(events repositories.TimedEventRepository, executor Executor, poll, execTimeout time.Duration) *Scheduler {
	return &Scheduler{
		events:      events,
		executor:    executor,
		poll:        poll,
		execTimeout: execTimeout,
		wake:        make(chan struct{}, 1),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		now:         time.Now,
	}
}

// Notify shortens the current wait. Safe to call from any goroutine;
// notifications are coalesced.
func (s *Scheduler) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() { close(s.shutdown) })
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	for {
		wait := s.nextWait()
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		case <-s.shutdown:
			timer.Stop()
			return
		}

		s.processDue()
	}
}

// nextWait computes how long to sleep before the next due check. The wait
// is capped at the poll interval so a missed notification can only delay
// an event by one poll, never lose it.
func (s *Scheduler) nextWait() time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), s.execTimeout)
	defer cancel()

	next, err := s.events.NextExpiry(ctx)
	if err != nil {
		if !repositories.IsNotFound(err) {
			logger.LogError("Failed to query next timed event", err)
		}
		return s.poll
	}

	wait := next.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	if wait > s.poll {
		wait = s.poll
	}
	return wait
}

// processDue executes every event whose expiry has passed. Events run
// independently; one failure never blocks the rest of the batch.
func (s *Scheduler) processDue() {
	ctx, cancel := context.WithTimeout(context.Background(), s.execTimeout)
	events, err := s.events.DueBatch(ctx, s.now())
	cancel()
	if err != nil {
		logger.LogError("Failed to fetch due timed events", err)
		return
	}
	if len(events) == 0 {
		return
	}

	slog.Debug("Processing due timed events",
		slog.String("type", "mod"),
		slog.Int("count", len(events)))

	var group errgroup.Group
	group.SetLimit(executeParallelism)
	for _, event := range events {
		event := event
		group.Go(func() error {
			s.executeEvent(event)
			return nil
		})
	}
	_ = group.Wait()
}

// executeEvent performs one reversal and deletes its row on success or on
// a definitive failure. Retryable failures keep the row for the next pass.
func (s *Scheduler) executeEvent(event models.TimedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.execTimeout)
	defer cancel()

	action, err := event.DecodeAction()
	if err != nil {
		// Undecodable payloads can never execute; drop them.
		logger.LogError("Dropping malformed timed event", err,
			slog.Int64("event_id", event.ID))
		s.deleteEvent(event.ID)
		return
	}

	switch action.Kind {
	case models.ActionUnmute:
		err = s.executor.Unmute(ctx, event.GuildID, event.TargetUser)
	case models.ActionUnban:
		err = s.executor.Unban(ctx, event.GuildID, event.TargetUser)
	default:
		logger.LogError("Dropping timed event with unknown action", nil,
			slog.Int64("event_id", event.ID),
			slog.String("kind", string(action.Kind)))
		s.deleteEvent(event.ID)
		return
	}

	if err != nil {
		logger.LogAction(string(action.Kind), event.GuildID, event.TargetUser, err)
		if IsRetryable(err) {
			return
		}
		// Definitive failure: the action will never succeed, so the row
		// must not be retried forever.
		s.deleteEvent(event.ID)
		return
	}

	logger.LogAction(string(action.Kind), event.GuildID, event.TargetUser, nil)
	s.deleteEvent(event.ID)
}

func (s *Scheduler) deleteEvent(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.execTimeout)
	defer cancel()

	if err := s.events.Delete(ctx, id); err != nil {
		// The row survives; the next pass will re-execute, which is safe
		// because unmute/unban are idempotent.
		logger.LogError("Failed to delete executed timed event", err,
			slog.Int64("event_id", id))
	}
}
