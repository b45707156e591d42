package domain

import "strings"

// TaskDraft is a best-effort task candidate extracted from recognized text.
// It is handed to the caller for confirmation and never auto-committed.
type TaskDraft struct {
	Name      string   `json:"name"`
	DueDate   string   `json:"dueDate"`
	DueTime   string   `json:"dueTime"`
	Color     string   `json:"color"`
	Folder    string   `json:"folder"`
	Priority  Priority `json:"priority"`
	Recurring bool     `json:"recurring"`
}

// DueAt reassembles the draft's date and time into a parseable instant, or
// returns "" when no usable date was extracted.
func (d TaskDraft) DueAt() string {
	if d.DueDate == "" {
		return ""
	}
	if d.DueTime == "" {
		return d.DueDate + "T00:00"
	}
	return d.DueDate + "T" + d.DueTime
}

// ExtractDraft converts raw multi-line recognized text into a TaskDraft.
// Interpretation is positional: name, due date (D/M/Y), due time, color,
// priority, recurrence marker. Unusable lines fall back to defaults; the
// function never fails.
func ExtractDraft(raw, folder string) TaskDraft {
	lines := make([]string, 0, 6)
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	draft := TaskDraft{
		Name:     "Untitled Task",
		Color:    "black",
		Folder:   folder,
		Priority: PriorityHigh,
	}
	if len(lines) > 0 {
		draft.Name = lines[0]
	}
	if len(lines) > 1 {
		if parts := strings.Split(lines[1], "/"); len(parts) == 3 {
			draft.DueDate = parts[2] + "-" + pad2(parts[1]) + "-" + pad2(parts[0])
		}
	}
	if len(lines) > 2 {
		draft.DueTime = lines[2]
	}
	if len(lines) > 3 {
		draft.Color = lines[3]
	}
	if len(lines) > 4 {
		// Case-sensitive on purpose: anything else keeps the High default.
		if p := Priority(lines[4]); p.Valid() {
			draft.Priority = p
		}
	}
	if len(lines) > 5 && strings.Contains(strings.ToLower(lines[5]), "recurring") {
		draft.Recurring = true
	}
	return draft
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
