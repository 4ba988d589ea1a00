package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazyagenda/internal/model"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
)

func priorityColor(priority model.Priority) string {
	switch priority {
	case model.PriorityHigh:
		return ansiRed
	case model.PriorityMedium:
		return ansiYellow
	case model.PriorityLow:
		return ansiGreen
	default:
		return ""
	}
}

func colorPriority(priority model.Priority) string {
	color := priorityColor(priority)
	if color == "" {
		return string(priority)
	}
	return color + string(priority) + ansiReset
}

func formatDue(due time.Time) string {
	if due.IsZero() {
		return "n/a"
	}
	return due.Format(model.DateLayout)
}

func formatUserSummary(user model.User) string {
	return fmt.Sprintf("%s <%s>", user.Name, user.Email)
}

func formatSubjectSummary(subject model.Subject) string {
	return fmt.Sprintf("%s (%s)", subject.Name, subject.Color)
}

func formatTaskSummary(task model.Task) string {
	box := "[ ]"
	title := task.Title
	if task.Completed() {
		box = "[x]"
		title = ansiDim + title + ansiReset
	}
	return fmt.Sprintf("%s %s | %s | due %s", box, title, colorPriority(task.Priority), formatDue(task.DueDate))
}

func formatTaskDetail(task model.Task, subject string, history []model.HistoryEntry) string {
	description := strings.TrimSpace(task.Description)
	if description == "" {
		description = "(no description)"
	}

	lines := []string{
		task.Title,
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Status: %s", task.Status),
		fmt.Sprintf("Priority: %s", colorPriority(task.Priority)),
		fmt.Sprintf("Due: %s", formatDue(task.DueDate)),
		fmt.Sprintf("Updated: %s", task.UpdatedAt.Local().Format("2006-01-02 15:04")),
		"",
		description,
	}

	if len(history) > 0 {
		lines = append(lines, "", "History:")
		for _, entry := range history {
			lines = append(lines, fmt.Sprintf("  %s | %s", entry.CreatedAt.Local().Format("2006-01-02 15:04"), entry.Details))
		}
	}
	return strings.Join(lines, "\n")
}
