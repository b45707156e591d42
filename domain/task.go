package domain

import (
	"strings"
	"time"
)

// Priority orders tasks inside a folder. It never influences scheduling.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Rank maps a priority to its sort position. Unknown values rank after Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the enumerated priorities.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// DefaultFolder always exists and cannot be deleted.
const DefaultFolder = "Default"

// Task is the unit of work.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DueAt     time.Time `json:"dueAt"`
	Color     string    `json:"color"`
	Folder    string    `json:"folder"`
	Priority  Priority  `json:"priority"`
	Recurring bool      `json:"recurring"`
	Completed bool      `json:"completed"`
}

// TaskFields carries the caller-supplied fields for task creation. DueAt is
// kept as the raw string so validation owns the parse.
type TaskFields struct {
	Name      string `json:"name"`
	DueAt     string `json:"dueAt"`
	Color     string `json:"color"`
	Folder    string `json:"folder"`
	Priority  string `json:"priority"`
	Recurring bool   `json:"recurring"`
}

// TaskPatch carries a partial update; nil fields are left untouched.
type TaskPatch struct {
	Name      *string `json:"name,omitempty"`
	DueAt     *string `json:"dueAt,omitempty"`
	Color     *string `json:"color,omitempty"`
	Folder    *string `json:"folder,omitempty"`
	Priority  *string `json:"priority,omitempty"`
	Recurring *bool   `json:"recurring,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p TaskPatch) IsZero() bool {
	return p.Name == nil && p.DueAt == nil && p.Color == nil &&
		p.Folder == nil && p.Priority == nil && p.Recurring == nil && p.Completed == nil
}

var dueAtLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// ParseDueAt parses an absolute due instant. Local time is assumed when the
// input carries no offset, matching what a date+time picker produces.
func ParseDueAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ValidationError{Field: "dueAt", Reason: "missing"}
	}
	for _, layout := range dueAtLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, ValidationError{Field: "dueAt", Reason: "not a valid timestamp"}
}

// Validate checks the creation fields and returns the parsed due instant.
func (f TaskFields) Validate() (time.Time, error) {
	if strings.TrimSpace(f.Name) == "" {
		return time.Time{}, ValidationError{Field: "name", Reason: "missing"}
	}
	if strings.TrimSpace(f.Color) == "" {
		return time.Time{}, ValidationError{Field: "color", Reason: "missing"}
	}
	if strings.TrimSpace(f.Folder) == "" {
		return time.Time{}, ValidationError{Field: "folder", Reason: "missing"}
	}
	if !Priority(f.Priority).Valid() {
		return time.Time{}, ValidationError{Field: "priority", Reason: "must be High, Medium or Low"}
	}
	return ParseDueAt(f.DueAt)
}
