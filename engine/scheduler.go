package engine

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/angelluvianoolivares/SmartTaskManager/domain"
	"github.com/angelluvianoolivares/SmartTaskManager/notify"
)

// Timers is the clock/timer service contract. Fire events are delivered to
// the scheduler with the key only; no task state rides along.
type Timers interface {
	Arm(key string, fireAt time.Time)
	Cancel(key string)
}

// TaskReader re-reads authoritative task state. A nil task with a nil error
// means the task no longer exists.
type TaskReader interface {
	GetTask(ctx context.Context, id string) (*domain.Task, error)
}

// DefaultRearmInterval is how long after a firing an incomplete recurring
// task is reminded again.
const DefaultRearmInterval = 24 * time.Hour

// ReminderScheduler decides when a task's reminder fires and whether it
// repeats. Timers are keyed by task id, never by name: two tasks may share a
// name but never an id, and a name-keyed schedule cancels the wrong task.
type ReminderScheduler struct {
	timers   Timers
	notifier notify.Notifier
	logger   *log.Logger

	mu     sync.Mutex
	source TaskReader
	armed  map[string]time.Time

	interval time.Duration
	now      func() time.Time
}

func NewReminderScheduler(timers Timers, notifier notify.Notifier, logger *log.Logger) *ReminderScheduler {
	if timers == nil || notifier == nil {
		panic("engine.NewReminderScheduler: timers and notifier are required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ReminderScheduler{
		timers:   timers,
		notifier: notifier,
		logger:   logger,
		armed:    make(map[string]time.Time),
		interval: DefaultRearmInterval,
		now:      time.Now,
	}
}

// Bind attaches the authoritative task source. It must be called before any
// timer can fire; the store and scheduler reference each other, so binding
// happens after both are built.
func (s *ReminderScheduler) Bind(source TaskReader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
}

// Schedule arms a reminder for the task. Completed tasks and past-due
// non-recurring tasks stay unscheduled; a past-due recurring task fires
// immediately.
func (s *ReminderScheduler) Schedule(task domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if task.Completed || (!task.Recurring && task.DueAt.Before(now)) {
		s.disarmLocked(task.ID)
		return
	}
	fireAt := task.DueAt
	if fireAt.Before(now) {
		fireAt = now
	}
	s.timers.Arm(task.ID, fireAt)
	s.armed[task.ID] = fireAt
}

// Reschedule recomputes the schedule from the task's current fields. Always
// cancel-then-schedule, never an incremental patch, so edits to dueAt or
// recurrence cannot leave a stale timer behind.
func (s *ReminderScheduler) Reschedule(task domain.Task) {
	s.Cancel(task.ID)
	s.Schedule(task)
}

// Cancel disarms any pending reminder for the id. Safe on ids that were
// never scheduled.
func (s *ReminderScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked(id)
}

func (s *ReminderScheduler) disarmLocked(id string) {
	s.timers.Cancel(id)
	delete(s.armed, id)
}

// Armed returns the pending fire instant for the id, if any.
func (s *ReminderScheduler) Armed(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.armed[id]
	return at, ok
}

// HandleFire processes a timer fire event. The task may have been edited,
// completed or deleted while the timer was pending, so current state is
// re-read from the source rather than trusted from arming time.
func (s *ReminderScheduler) HandleFire(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.armed, id)
	source := s.source
	s.mu.Unlock()

	if source == nil {
		s.logger.WithField("task", id).Error("reminder fired with no task source bound")
		return
	}
	task, err := source.GetTask(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("task", id).Error("reminder fire: read task state")
		return
	}
	if task == nil || task.Completed {
		return
	}

	s.notifier.Notify("Task Reminder", "Reminder: "+task.Name)

	if !task.Recurring {
		return
	}
	next := s.now().Add(s.interval)
	s.mu.Lock()
	s.timers.Arm(id, next)
	s.armed[id] = next
	s.mu.Unlock()
	s.logger.WithFields(log.Fields{"task": id, "next": next}).Debug("recurring reminder re-armed")
}
