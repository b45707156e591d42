package api

import (
	"context"

	"github.com/angelluvianoolivares/SmartTaskManager/domain"
)

// Engine abstracts the task store for handlers.
type Engine interface {
	CreateTask(ctx context.Context, fields domain.TaskFields) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ToggleCompletion(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, folder string) ([]domain.Task, error)
	Folders(ctx context.Context) ([]string, error)
	CreateFolder(ctx context.Context, name string) error
	DeleteFolder(ctx context.Context, name string) error
}

// Extractor produces a provisional task draft from a note image.
type Extractor interface {
	ExtractTask(ctx context.Context, image []byte, languageHint, folder string) domain.TaskDraft
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of repeated create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, key string) (bool, error)
	// Remove deletes a previously added key, used when processing fails.
	Remove(ctx context.Context, key string) error
}
