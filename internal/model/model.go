package model

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority accepts any casing of Low, Medium or High.
func ParsePriority(value string) (Priority, error) {
	trimmed := strings.TrimSpace(value)
	for _, p := range Priorities {
		if strings.EqualFold(trimmed, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", value)
}

type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

type User struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

type Subject struct {
	ID        int64
	UserID    int64
	Name      string
	Color     string
	CreatedAt time.Time
}

type Task struct {
	ID          int64
	SubjectID   int64
	Title       string
	Description string
	Priority    Priority
	DueDate     time.Time
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t Task) Completed() bool {
	return t.Status == StatusCompleted
}

type HistoryEntry struct {
	ID        int64
	TaskID    int64
	EventType string
	Details   string
	CreatedAt time.Time
}

// DateLayout is the calendar format used for due dates.
const DateLayout = "2006-01-02"

// DateOf drops the clock part of t, keeping its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
