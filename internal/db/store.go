package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazyagenda/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a lookup or write addresses a missing row.
var ErrNotFound = errors.New("not found")

type Store struct {
	DB      *sql.DB
	Queries *Queries
	Now     func() time.Time

	inTx bool
}

type SubjectInput struct {
	UserID int64
	Name   string
	Color  string
}

type TaskInput struct {
	SubjectID   int64
	Title       string
	Description string
	Priority    model.Priority
	DueDate     time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, Queries: New(db), Now: time.Now}
}

// InTx runs fn as a single unit of work: fn receives a store bound to one
// transaction which is committed when fn returns nil and rolled back
// otherwise. Nested calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&Store{DB: s.DB, Queries: s.Queries.WithTx(tx), Now: s.Now, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) now() time.Time {
	return s.Now().UTC()
}

func (s *Store) CreateUser(ctx context.Context, name, email string) (model.User, error) {
	id, err := s.Queries.CreateUser(ctx, CreateUserParams{Name: name, Email: email, CreatedAt: s.now()})
	if err != nil {
		return model.User{}, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	row, err := s.Queries.GetUser(ctx, id)
	if err != nil {
		return model.User{}, notFound(err)
	}
	return mapUser(row), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row, err := s.Queries.GetUserByEmail(ctx, email)
	if err != nil {
		return model.User{}, notFound(err)
	}
	return mapUser(row), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.Queries.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, mapUser(row))
	}
	return users, nil
}

func (s *Store) CreateSubject(ctx context.Context, input SubjectInput) (model.Subject, error) {
	id, err := s.Queries.CreateSubject(ctx, CreateSubjectParams{
		UserID:    input.UserID,
		Name:      input.Name,
		Color:     input.Color,
		CreatedAt: s.now(),
	})
	if err != nil {
		return model.Subject{}, err
	}
	return s.GetSubject(ctx, id)
}

func (s *Store) GetSubject(ctx context.Context, id int64) (model.Subject, error) {
	row, err := s.Queries.GetSubject(ctx, id)
	if err != nil {
		return model.Subject{}, notFound(err)
	}
	return mapSubject(row), nil
}

func (s *Store) UpdateSubject(ctx context.Context, id int64, name, color string) (model.Subject, error) {
	affected, err := s.Queries.UpdateSubject(ctx, UpdateSubjectParams{ID: id, Name: name, Color: color})
	if err != nil {
		return model.Subject{}, err
	}
	if affected == 0 {
		return model.Subject{}, ErrNotFound
	}
	return s.GetSubject(ctx, id)
}

func (s *Store) ListSubjects(ctx context.Context, userID int64) ([]model.Subject, error) {
	rows, err := s.Queries.ListSubjectsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	subjects := make([]model.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, mapSubject(row))
	}
	return subjects, nil
}

// DeleteSubject removes a subject together with all of its tasks and
// returns how many tasks went with it. Both deletes share one transaction.
func (s *Store) DeleteSubject(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := s.InTx(ctx, func(tx *Store) error {
		if _, err := tx.GetSubject(ctx, id); err != nil {
			return err
		}

		tasks, err := tx.ListTasks(ctx, id)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			if err := tx.addHistory(ctx, task.ID, "deleted", formatDeletedDetails(task)); err != nil {
				return err
			}
		}

		removed, err = tx.Queries.DeleteTasksBySubject(ctx, id)
		if err != nil {
			return fmt.Errorf("delete tasks of subject %d: %w", id, err)
		}

		affected, err := tx.Queries.DeleteSubject(ctx, id)
		if err != nil {
			return fmt.Errorf("delete subject %d: %w", id, err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) CreateTask(ctx context.Context, input TaskInput) (model.Task, error) {
	var created model.Task
	err := s.InTx(ctx, func(tx *Store) error {
		id, err := tx.Queries.CreateTask(ctx, CreateTaskParams{
			SubjectID:   input.SubjectID,
			Title:       input.Title,
			Description: input.Description,
			Priority:    string(input.Priority),
			DueDate:     model.DateOf(input.DueDate),
			Status:      string(model.StatusPending),
			CreatedAt:   tx.now(),
		})
		if err != nil {
			return err
		}

		created, err = tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		return tx.addHistory(ctx, id, "created", formatCreatedDetails(created))
	})
	if err != nil {
		return model.Task{}, err
	}
	return created, nil
}

func (s *Store) UpdateTask(ctx context.Context, taskID int64, input TaskInput) (model.Task, error) {
	var after model.Task
	err := s.InTx(ctx, func(tx *Store) error {
		before, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}

		if _, err := tx.Queries.UpdateTask(ctx, UpdateTaskParams{
			ID:          taskID,
			SubjectID:   input.SubjectID,
			Title:       input.Title,
			Description: input.Description,
			Priority:    string(input.Priority),
			DueDate:     model.DateOf(input.DueDate),
			UpdatedAt:   tx.now(),
		}); err != nil {
			return err
		}

		after, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		return tx.addHistory(ctx, taskID, "updated", formatTaskDiff(before, after))
	})
	if err != nil {
		return model.Task{}, err
	}
	return after, nil
}

// SetTaskStatus moves a task to status. Setting the status it already has
// leaves the row and its history untouched.
func (s *Store) SetTaskStatus(ctx context.Context, taskID int64, status model.Status) (model.Task, error) {
	var result model.Task
	err := s.InTx(ctx, func(tx *Store) error {
		current, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if current.Status == status {
			result = current
			return nil
		}

		if _, err := tx.Queries.SetTaskStatus(ctx, SetTaskStatusParams{ID: taskID, Status: string(status), UpdatedAt: tx.now()}); err != nil {
			return err
		}

		eventType := "reopened"
		if status == model.StatusCompleted {
			eventType = "completed"
		}
		if err := tx.addHistory(ctx, taskID, eventType, formatChange("status", string(current.Status), string(status))); err != nil {
			return err
		}

		result, err = tx.GetTask(ctx, taskID)
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	return result, nil
}

func (s *Store) DeleteTask(ctx context.Context, taskID int64) error {
	return s.InTx(ctx, func(tx *Store) error {
		before, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}

		if err := tx.addHistory(ctx, taskID, "deleted", formatDeletedDetails(before)); err != nil {
			return err
		}

		affected, err := tx.Queries.DeleteTask(ctx, taskID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) GetTask(ctx context.Context, taskID int64) (model.Task, error) {
	row, err := s.Queries.GetTask(ctx, taskID)
	if err != nil {
		return model.Task{}, notFound(err)
	}
	return mapTask(row), nil
}

func (s *Store) ListTasks(ctx context.Context, subjectID int64) ([]model.Task, error) {
	rows, err := s.Queries.ListTasksBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, mapTask(row))
	}
	return tasks, nil
}

func (s *Store) ListHistory(ctx context.Context, taskID int64) ([]model.HistoryEntry, error) {
	rows, err := s.Queries.ListHistoryByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	history := make([]model.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		history = append(history, model.HistoryEntry{
			ID:        row.ID,
			TaskID:    row.TaskID,
			EventType: row.EventType,
			Details:   row.Details,
			CreatedAt: row.CreatedAt,
		})
	}
	return history, nil
}

// GetSetting returns "" for keys that were never set.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	value, err := s.Queries.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.Queries.SetSetting(ctx, key, value)
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	return s.Queries.DeleteSetting(ctx, key)
}

func (s *Store) addHistory(ctx context.Context, taskID int64, eventType, details string) error {
	_, err := s.Queries.AddHistory(ctx, AddHistoryParams{
		TaskID:    taskID,
		EventType: eventType,
		Details:   details,
		CreatedAt: s.now(),
	})
	return err
}

// IsUniqueViolation reports whether err comes from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE")
}

// IsForeignKeyViolation reports whether err comes from a FOREIGN KEY constraint.
func IsForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY")
}

func isConstraint(err error, code int, marker string) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.Code() == code {
		return true
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), marker)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mapUser(row UserRow) model.User {
	return model.User{ID: row.ID, Name: row.Name, Email: row.Email, CreatedAt: row.CreatedAt}
}

func mapSubject(row SubjectRow) model.Subject {
	return model.Subject{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		Color:     row.Color,
		CreatedAt: row.CreatedAt,
	}
}

func mapTask(row TaskRow) model.Task {
	return model.Task{
		ID:          row.ID,
		SubjectID:   row.SubjectID,
		Title:       row.Title,
		Description: row.Description,
		Priority:    model.Priority(row.Priority),
		DueDate:     model.DateOf(row.DueDate),
		Status:      model.Status(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func formatCreatedDetails(task model.Task) string {
	return fmt.Sprintf("created: title='%s' subject=%d priority=%s due=%s", task.Title, task.SubjectID, task.Priority, formatDue(task.DueDate))
}

func formatDeletedDetails(task model.Task) string {
	return fmt.Sprintf("deleted: title='%s' subject=%d priority=%s due=%s status=%s", task.Title, task.SubjectID, task.Priority, formatDue(task.DueDate), task.Status)
}

func formatTaskDiff(before, after model.Task) string {
	changes := []string{}
	if before.Title != after.Title {
		changes = append(changes, formatChange("title", before.Title, after.Title))
	}
	if before.Description != after.Description {
		changes = append(changes, formatChange("description", before.Description, after.Description))
	}
	if before.Priority != after.Priority {
		changes = append(changes, formatChange("priority", string(before.Priority), string(after.Priority)))
	}
	if formatDue(before.DueDate) != formatDue(after.DueDate) {
		changes = append(changes, formatChange("due", formatDue(before.DueDate), formatDue(after.DueDate)))
	}
	if before.SubjectID != after.SubjectID {
		changes = append(changes, formatChange("subject", fmt.Sprintf("%d", before.SubjectID), fmt.Sprintf("%d", after.SubjectID)))
	}

	if len(changes) == 0 {
		return "updated: no changes"
	}

	return "updated: " + strings.Join(changes, "; ")
}

func formatChange(field, before, after string) string {
	return fmt.Sprintf("%s: '%s' -> '%s'", field, valueOrNone(before), valueOrNone(after))
}

func valueOrNone(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "none"
	}
	return trimmed
}

func formatDue(value time.Time) string {
	if value.IsZero() {
		return "none"
	}
	return value.Format(model.DateLayout)
}
