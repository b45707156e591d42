package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/angelluvianoolivares/SmartTaskManager/domain"
	"github.com/angelluvianoolivares/SmartTaskManager/storage"
)

// Scheduler receives scheduling side effects after a mutation is persisted.
type Scheduler interface {
	Schedule(task domain.Task)
	Reschedule(task domain.Task)
	Cancel(id string)
}

// TaskStore owns the canonical task and folder collections. Every mutation
// is a read-current-state, mutate-copy, write-back cycle against the
// key-value store; the writer lock serializes those cycles so two concurrent
// mutations cannot silently drop one another's write.
type TaskStore struct {
	mu     sync.RWMutex
	kv     storage.KV
	keys   storage.Keys
	sched  Scheduler
	logger *log.Logger
}

func NewTaskStore(kv storage.KV, keys storage.Keys, sched Scheduler, logger *log.Logger) *TaskStore {
	if kv == nil || sched == nil {
		panic("engine.NewTaskStore: kv and sched are required")
	}
	if keys.Folders == "" || keys.Tasks == "" {
		keys = storage.DefaultKeys()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TaskStore{kv: kv, keys: keys, sched: sched, logger: logger}
}

// CreateTask validates the fields, assigns a fresh id, persists the grown
// collection and arms the reminder.
func (ts *TaskStore) CreateTask(ctx context.Context, fields domain.TaskFields) (domain.Task, error) {
	due, err := fields.Validate()
	if err != nil {
		return domain.Task{}, err
	}

	task := domain.Task{
		ID:        NewTaskID(),
		Name:      fields.Name,
		DueAt:     due,
		Color:     fields.Color,
		Folder:    fields.Folder,
		Priority:  domain.Priority(fields.Priority),
		Recurring: fields.Recurring,
	}

	ts.mu.Lock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	if err == nil {
		if !snap.HasFolder(task.Folder) {
			err = domain.ValidationError{Field: "folder", Reason: "unknown folder " + task.Folder}
		} else {
			snap.Tasks = append(snap.Tasks, task)
			err = storage.Save(ctx, ts.kv, ts.keys, snap)
		}
	}
	ts.mu.Unlock()
	if err != nil {
		return domain.Task{}, err
	}

	ts.sched.Schedule(task)
	return task, nil
}

// UpdateTask applies only the fields present in the patch, re-validating
// anything that changed. Edits to dueAt, recurrence or completion recompute
// the reminder schedule.
func (ts *TaskStore) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	var (
		updated    domain.Task
		reschedule bool
	)

	ts.mu.Lock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	if err == nil {
		idx := snap.FindTask(id)
		if idx < 0 {
			err = domain.NotFoundError{ID: id}
		} else {
			updated, reschedule, err = applyPatch(snap, snap.Tasks[idx], patch)
			if err == nil {
				snap.Tasks[idx] = updated
				err = storage.Save(ctx, ts.kv, ts.keys, snap)
			}
		}
	}
	ts.mu.Unlock()
	if err != nil {
		return domain.Task{}, err
	}

	if reschedule {
		ts.sched.Reschedule(updated)
	}
	return updated, nil
}

func applyPatch(snap storage.Snapshot, cur domain.Task, patch domain.TaskPatch) (domain.Task, bool, error) {
	next := cur
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return cur, false, domain.ValidationError{Field: "name", Reason: "missing"}
		}
		next.Name = *patch.Name
	}
	if patch.DueAt != nil {
		due, err := domain.ParseDueAt(*patch.DueAt)
		if err != nil {
			return cur, false, err
		}
		next.DueAt = due
	}
	if patch.Color != nil {
		if strings.TrimSpace(*patch.Color) == "" {
			return cur, false, domain.ValidationError{Field: "color", Reason: "missing"}
		}
		next.Color = *patch.Color
	}
	if patch.Folder != nil {
		if !snap.HasFolder(*patch.Folder) {
			return cur, false, domain.ValidationError{Field: "folder", Reason: "unknown folder " + *patch.Folder}
		}
		next.Folder = *patch.Folder
	}
	if patch.Priority != nil {
		if !domain.Priority(*patch.Priority).Valid() {
			return cur, false, domain.ValidationError{Field: "priority", Reason: "must be High, Medium or Low"}
		}
		next.Priority = domain.Priority(*patch.Priority)
	}
	if patch.Recurring != nil {
		next.Recurring = *patch.Recurring
	}
	if patch.Completed != nil {
		next.Completed = *patch.Completed
	}

	reschedule := !next.DueAt.Equal(cur.DueAt) ||
		next.Recurring != cur.Recurring ||
		next.Completed != cur.Completed
	return next, reschedule, nil
}

// DeleteTask removes the task if present. Deleting an absent id is a no-op;
// the reminder is cancelled either way.
func (ts *TaskStore) DeleteTask(ctx context.Context, id string) error {
	ts.mu.Lock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	if err == nil {
		if idx := snap.FindTask(id); idx >= 0 {
			snap.Tasks = append(snap.Tasks[:idx], snap.Tasks[idx+1:]...)
			err = storage.Save(ctx, ts.kv, ts.keys, snap)
		}
	}
	ts.mu.Unlock()
	if err != nil {
		return err
	}

	ts.sched.Cancel(id)
	return nil
}

// ToggleCompletion flips the task's completed flag. A missing id is a no-op
// and returns a nil task. Completion cancels the reminder; un-completing
// re-derives the schedule from current fields.
func (ts *TaskStore) ToggleCompletion(ctx context.Context, id string) (*domain.Task, error) {
	var toggled *domain.Task

	ts.mu.Lock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	if err == nil {
		if idx := snap.FindTask(id); idx >= 0 {
			snap.Tasks[idx].Completed = !snap.Tasks[idx].Completed
			if err = storage.Save(ctx, ts.kv, ts.keys, snap); err == nil {
				t := snap.Tasks[idx]
				toggled = &t
			}
		}
	}
	ts.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if toggled == nil {
		return nil, nil
	}

	if toggled.Completed {
		ts.sched.Cancel(id)
	} else {
		ts.sched.Schedule(*toggled)
	}
	return toggled, nil
}

// GetTask returns the current persisted task, or nil when the id is unknown.
func (ts *TaskStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	if err != nil {
		return nil, err
	}
	idx := snap.FindTask(id)
	if idx < 0 {
		return nil, nil
	}
	t := snap.Tasks[idx]
	return &t, nil
}

// ListTasks returns the folder's tasks ordered High, Medium, Low, with
// unknown priorities last and ties kept in insertion order.
func (ts *TaskStore) ListTasks(ctx context.Context, folder string) ([]domain.Task, error) {
	ts.mu.RLock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	ts.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		if t.Folder == folder {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
	})
	return tasks, nil
}

// Folders returns the current folder set in stored order.
func (ts *TaskStore) Folders(ctx context.Context) ([]string, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	if err != nil {
		return nil, err
	}
	return snap.Folders, nil
}

// CreateFolder adds a folder. An existing name is silently kept; an empty
// name is rejected.
func (ts *TaskStore) CreateFolder(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.ValidationError{Field: "folder", Reason: "missing"}
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	if err != nil {
		return err
	}
	if snap.HasFolder(name) {
		return nil
	}
	snap.Folders = append(snap.Folders, name)
	return storage.Save(ctx, ts.kv, ts.keys, snap)
}

// DeleteFolder removes the folder and every task in it, cancelling their
// reminders. The Default folder cannot be deleted.
func (ts *TaskStore) DeleteFolder(ctx context.Context, name string) error {
	if name == domain.DefaultFolder {
		return domain.ValidationError{Field: "folder", Reason: "cannot delete the default folder"}
	}

	var removed []string

	ts.mu.Lock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	if err == nil && snap.HasFolder(name) {
		folders := snap.Folders[:0]
		for _, f := range snap.Folders {
			if f != name {
				folders = append(folders, f)
			}
		}
		snap.Folders = folders

		kept := make([]domain.Task, 0, len(snap.Tasks))
		for _, t := range snap.Tasks {
			if t.Folder == name {
				removed = append(removed, t.ID)
				continue
			}
			kept = append(kept, t)
		}
		snap.Tasks = kept
		err = storage.Save(ctx, ts.kv, ts.keys, snap)
	}
	ts.mu.Unlock()
	if err != nil {
		return err
	}

	for _, id := range removed {
		ts.sched.Cancel(id)
	}
	return nil
}

// ReconcileSchedules re-derives every reminder schedule from persisted state.
// Run at startup: a crash between persisting a task and arming its reminder
// leaves the task saved but silent, and this closes that gap.
func (ts *TaskStore) ReconcileSchedules(ctx context.Context) error {
	ts.mu.RLock()
	snap, err := storage.Load(ctx, ts.kv, ts.keys)
	ts.mu.RUnlock()
	if err != nil {
		return err
	}

	armed := 0
	for _, t := range snap.Tasks {
		if t.Completed {
			continue
		}
		ts.sched.Schedule(t)
		armed++
	}
	ts.logger.WithField("count", armed).Info("reminder schedules reconciled")
	return nil
}
