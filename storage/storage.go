package storage

import (
	"context"
	"encoding/json"

	"github.com/angelluvianoolivares/SmartTaskManager/domain"
)

// Well-known store field names.
const (
	FoldersKey = "folders"
	TasksKey   = "tasks"
)

// KV is the external key-value store contract: whole-value get/set of named
// fields with no transactional guarantee across concurrent callers.
// Serialization of read-modify-write cycles is the caller's job.
type KV interface {
	// Get returns the stored value for each requested key. Missing keys are
	// absent from the result, not an error.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	// Set persists every provided value.
	Set(ctx context.Context, values map[string][]byte) error
}

// Snapshot is the durable mirror of the engine's state: the ordered folder
// set and the ordered task collection.
type Snapshot struct {
	Folders []string
	Tasks   []domain.Task
}

// Keys names the store fields a snapshot lives under.
type Keys struct {
	Folders string
	Tasks   string
}

// DefaultKeys returns the standard field names.
func DefaultKeys() Keys {
	return Keys{Folders: FoldersKey, Tasks: TasksKey}
}

// Load reads a snapshot from the store. A first run with nothing persisted
// yields the Default folder and no tasks.
func Load(ctx context.Context, kv KV, keys Keys) (Snapshot, error) {
	values, err := kv.Get(ctx, keys.Folders, keys.Tasks)
	if err != nil {
		return Snapshot{}, domain.StorageError{Op: "get", Err: err}
	}

	snap := Snapshot{}
	if raw, ok := values[keys.Folders]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &snap.Folders); err != nil {
			return Snapshot{}, domain.StorageError{Op: "decode folders", Err: err}
		}
	}
	if raw, ok := values[keys.Tasks]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &snap.Tasks); err != nil {
			return Snapshot{}, domain.StorageError{Op: "decode tasks", Err: err}
		}
	}
	if len(snap.Folders) == 0 {
		snap.Folders = []string{domain.DefaultFolder}
	}
	return snap, nil
}

// Save writes the full snapshot back to the store.
func Save(ctx context.Context, kv KV, keys Keys, snap Snapshot) error {
	folders, err := json.Marshal(snap.Folders)
	if err != nil {
		return domain.StorageError{Op: "encode folders", Err: err}
	}
	tasks, err := json.Marshal(snap.Tasks)
	if err != nil {
		return domain.StorageError{Op: "encode tasks", Err: err}
	}
	if err := kv.Set(ctx, map[string][]byte{keys.Folders: folders, keys.Tasks: tasks}); err != nil {
		return domain.StorageError{Op: "set", Err: err}
	}
	return nil
}

// HasFolder reports whether name is in the snapshot's folder set.
func (s Snapshot) HasFolder(name string) bool {
	for _, f := range s.Folders {
		if f == name {
			return true
		}
	}
	return false
}

// FindTask returns the index of the task with the given id, or -1.
func (s Snapshot) FindTask(id string) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}
