package domain

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestPriorityRank(t *testing.T) {
	cases := []struct {
		p    Priority
		rank int
	}{
		{PriorityHigh, 1},
		{PriorityMedium, 2},
		{PriorityLow, 3},
		{Priority("Urgent"), 4},
		{Priority(""), 4},
	}
	for _, c := range cases {
		if got := c.p.Rank(); got != c.rank {
			t.Fatalf("rank of %q: expected %d, got %d", c.p, c.rank, got)
		}
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	base := TaskFields{
		Name:     "Buy milk",
		DueAt:    "2026-12-25T14:00",
		Color:    "blue",
		Folder:   DefaultFolder,
		Priority: "Medium",
	}

	cases := []struct {
		name   string
		mutate func(*TaskFields)
	}{
		{"empty name", func(f *TaskFields) { f.Name = "  " }},
		{"empty color", func(f *TaskFields) { f.Color = "" }},
		{"empty folder", func(f *TaskFields) { f.Folder = "" }},
		{"bad priority", func(f *TaskFields) { f.Priority = "urgent" }},
		{"missing dueAt", func(f *TaskFields) { f.DueAt = "" }},
		{"garbage dueAt", func(f *TaskFields) { f.DueAt = "tomorrow-ish" }},
	}
	for _, c := range cases {
		f := base
		c.mutate(&f)
		if _, err := f.Validate(); !IsValidation(err) {
			t.Fatalf("%s: expected ValidationError, got %v", c.name, err)
		}
	}

	if _, err := base.Validate(); err != nil {
		t.Fatalf("valid fields rejected: %v", err)
	}
}

func TestParseDueAtAcceptsPickerFormat(t *testing.T) {
	due, err := ParseDueAt("2026-12-25T14:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if due.Hour() != 14 || due.Day() != 25 {
		t.Fatalf("unexpected instant: %v", due)
	}

	if _, err := ParseDueAt("2026-12-25T14:00:00Z"); err != nil {
		t.Fatalf("parse RFC3339: %v", err)
	}
}

func TestTaskMarshalKeepsFalseFlags(t *testing.T) {
	task := Task{ID: "t1", Name: "Write code", Folder: DefaultFolder, Priority: PriorityLow}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if !strings.Contains(string(payload), "\"completed\":false") {
		t.Fatalf("expected completed field to be present, got %s", payload)
	}
}
