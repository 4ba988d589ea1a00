package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Joseda-hg/lazyagenda/internal/db"
	"github.com/Joseda-hg/lazyagenda/internal/model"
)

// TaskInput carries the editable fields of a task. Description may be left
// empty; every other field is required.
type TaskInput struct {
	Title       string
	Description string
	Priority    model.Priority
	DueDate     time.Time
	SubjectID   int64
}

func (m *Manager) CreateTask(ctx context.Context, input TaskInput) (task model.Task, err error) {
	ctx, span := startSpan(ctx, "CreateTask", attribute.Int64("agenda.subject_id", input.SubjectID))
	defer func() { m.finish(span, "CreateTask", err) }()

	fields, err := validateTask(input)
	if err != nil {
		return model.Task{}, err
	}

	err = m.store.InTx(ctx, func(tx *db.Store) error {
		if err := requireSubject(ctx, tx, fields.SubjectID); err != nil {
			return err
		}

		task, err = tx.CreateTask(ctx, fields)
		if db.IsForeignKeyViolation(err) {
			return missingRef("subject", fields.SubjectID)
		}
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	span.SetAttributes(attribute.Int64("agenda.task_id", task.ID))
	m.log.WithFields(log.Fields{"subject": task.SubjectID, "task": task.ID}).Info("task created")
	return task, nil
}

// EditTask replaces the editable fields of a task. Its status is kept.
func (m *Manager) EditTask(ctx context.Context, id int64, input TaskInput) (task model.Task, err error) {
	ctx, span := startSpan(ctx, "EditTask", attribute.Int64("agenda.task_id", id))
	defer func() { m.finish(span, "EditTask", err) }()

	if id <= 0 {
		return model.Task{}, badID("id", id)
	}
	fields, err := validateTask(input)
	if err != nil {
		return model.Task{}, err
	}

	err = m.store.InTx(ctx, func(tx *db.Store) error {
		if _, err := tx.GetTask(ctx, id); errors.Is(err, db.ErrNotFound) {
			return &NotFoundError{Entity: "task", ID: id}
		} else if err != nil {
			return fmt.Errorf("get task %d: %w", id, err)
		}
		if err := requireSubject(ctx, tx, fields.SubjectID); err != nil {
			return err
		}

		task, err = tx.UpdateTask(ctx, id, fields)
		if db.IsForeignKeyViolation(err) {
			return missingRef("subject", fields.SubjectID)
		}
		if err != nil {
			return fmt.Errorf("update task %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	m.log.WithFields(log.Fields{"subject": task.SubjectID, "task": id}).Info("task updated")
	return task, nil
}

// MarkTask completes a task. Marking a completed task again is allowed.
func (m *Manager) MarkTask(ctx context.Context, id int64) (model.Task, error) {
	return m.setStatus(ctx, "MarkTask", id, model.StatusCompleted)
}

// UnmarkTask moves a task back to pending.
func (m *Manager) UnmarkTask(ctx context.Context, id int64) (model.Task, error) {
	return m.setStatus(ctx, "UnmarkTask", id, model.StatusPending)
}

func (m *Manager) setStatus(ctx context.Context, op string, id int64, status model.Status) (task model.Task, err error) {
	ctx, span := startSpan(ctx, op, attribute.Int64("agenda.task_id", id))
	defer func() { m.finish(span, op, err) }()

	if id <= 0 {
		return model.Task{}, badID("id", id)
	}

	task, err = m.store.SetTaskStatus(ctx, id, status)
	if errors.Is(err, db.ErrNotFound) {
		return model.Task{}, &NotFoundError{Entity: "task", ID: id}
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("set status of task %d: %w", id, err)
	}

	m.log.WithFields(log.Fields{"task": id, "status": task.Status}).Info("task status set")
	return task, nil
}

func (m *Manager) DeleteTask(ctx context.Context, id int64) (err error) {
	ctx, span := startSpan(ctx, "DeleteTask", attribute.Int64("agenda.task_id", id))
	defer func() { m.finish(span, "DeleteTask", err) }()

	if id <= 0 {
		return badID("id", id)
	}

	err = m.store.DeleteTask(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return &NotFoundError{Entity: "task", ID: id}
	}
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}

	m.log.WithField("task", id).Info("task deleted")
	return nil
}

// GetTask returns ok == false when no task has that id.
func (m *Manager) GetTask(ctx context.Context, id int64) (task model.Task, ok bool, err error) {
	ctx, span := startSpan(ctx, "GetTask", attribute.Int64("agenda.task_id", id))
	defer func() { m.finish(span, "GetTask", err) }()

	if id <= 0 {
		return model.Task{}, false, badID("id", id)
	}

	task, err = m.store.GetTask(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return model.Task{}, false, nil
	}
	if err != nil {
		return model.Task{}, false, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, true, nil
}

// ListTasksForSubject returns pending tasks first, each group ordered by
// due date and then by creation.
func (m *Manager) ListTasksForSubject(ctx context.Context, subjectID int64) (tasks []model.Task, err error) {
	ctx, span := startSpan(ctx, "ListTasksForSubject", attribute.Int64("agenda.subject_id", subjectID))
	defer func() { m.finish(span, "ListTasksForSubject", err) }()

	if subjectID <= 0 {
		return nil, badID("subject", subjectID)
	}

	tasks, err = m.store.ListTasks(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks of subject %d: %w", subjectID, err)
	}
	return tasks, nil
}

// TaskHistory returns the audit trail of a task, oldest entry first. The
// trail outlives the task itself.
func (m *Manager) TaskHistory(ctx context.Context, taskID int64) (history []model.HistoryEntry, err error) {
	ctx, span := startSpan(ctx, "TaskHistory", attribute.Int64("agenda.task_id", taskID))
	defer func() { m.finish(span, "TaskHistory", err) }()

	if taskID <= 0 {
		return nil, badID("id", taskID)
	}

	history, err = m.store.ListHistory(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list history of task %d: %w", taskID, err)
	}
	return history, nil
}

func validateTask(input TaskInput) (db.TaskInput, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return db.TaskInput{}, blank("title")
	}
	if !input.Priority.Valid() {
		return db.TaskInput{}, &ValidationError{Field: "priority", Message: fmt.Sprintf("%q is not one of Low, Medium, High", input.Priority)}
	}
	if input.DueDate.IsZero() {
		return db.TaskInput{}, &ValidationError{Field: "due date", Message: "must be set"}
	}
	if input.SubjectID <= 0 {
		return db.TaskInput{}, badID("subject", input.SubjectID)
	}

	return db.TaskInput{
		SubjectID:   input.SubjectID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Priority:    input.Priority,
		DueDate:     input.DueDate,
	}, nil
}

func requireSubject(ctx context.Context, tx *db.Store, id int64) error {
	_, err := tx.GetSubject(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return missingRef("subject", id)
	}
	if err != nil {
		return fmt.Errorf("get subject %d: %w", id, err)
	}
	return nil
}
