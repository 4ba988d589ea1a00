package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type UserRow struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

type SubjectRow struct {
	ID        int64
	UserID    int64
	Name      string
	Color     string
	CreatedAt time.Time
}

type TaskRow struct {
	ID          int64
	SubjectID   int64
	Title       string
	Description string
	Priority    string
	DueDate     time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type HistoryRow struct {
	ID        int64
	TaskID    int64
	EventType string
	Details   string
	CreatedAt time.Time
}

const userColumns = "id, name, email, created_at"

type CreateUserParams struct {
	Name      string
	Email     string
	CreatedAt time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, "INSERT INTO users (name, email, created_at) VALUES (?, ?, ?)", arg.Name, arg.Email, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (q *Queries) GetUser(ctx context.Context, id int64) (UserRow, error) {
	var u UserRow
	err := q.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	var u UserRow
	err := q.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	return u, err
}

func (q *Queries) ListUsers(ctx context.Context) ([]UserRow, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserRow
	for rows.Next() {
		var u UserRow
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const subjectColumns = "id, user_id, name, color, created_at"

type CreateSubjectParams struct {
	UserID    int64
	Name      string
	Color     string
	CreatedAt time.Time
}

func (q *Queries) CreateSubject(ctx context.Context, arg CreateSubjectParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, "INSERT INTO subjects (user_id, name, color, created_at) VALUES (?, ?, ?, ?)", arg.UserID, arg.Name, arg.Color, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (q *Queries) GetSubject(ctx context.Context, id int64) (SubjectRow, error) {
	var s SubjectRow
	err := q.db.QueryRowContext(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE id = ?", id).
		Scan(&s.ID, &s.UserID, &s.Name, &s.Color, &s.CreatedAt)
	return s, err
}

type UpdateSubjectParams struct {
	ID    int64
	Name  string
	Color string
}

func (q *Queries) UpdateSubject(ctx context.Context, arg UpdateSubjectParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, "UPDATE subjects SET name = ?, color = ? WHERE id = ?", arg.Name, arg.Color, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListSubjectsByUser returns subjects in insertion order.
func (q *Queries) ListSubjectsByUser(ctx context.Context, userID int64) ([]SubjectRow, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []SubjectRow
	for rows.Next() {
		var s SubjectRow
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Color, &s.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

func (q *Queries) DeleteSubject(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const taskColumns = "id, subject_id, title, description, priority, due_date, status, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (TaskRow, error) {
	var t TaskRow
	err := row.Scan(&t.ID, &t.SubjectID, &t.Title, &t.Description, &t.Priority, &t.DueDate, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type CreateTaskParams struct {
	SubjectID   int64
	Title       string
	Description string
	Priority    string
	DueDate     time.Time
	Status      string
	CreatedAt   time.Time
}

func (q *Queries) CreateTask(ctx context.Context, arg CreateTaskParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, `
		INSERT INTO tasks (subject_id, title, description, priority, due_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, arg.SubjectID, arg.Title, arg.Description, arg.Priority, arg.DueDate, arg.Status, arg.CreatedAt, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (q *Queries) GetTask(ctx context.Context, id int64) (TaskRow, error) {
	return scanTask(q.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
}

type UpdateTaskParams struct {
	ID          int64
	SubjectID   int64
	Title       string
	Description string
	Priority    string
	DueDate     time.Time
	UpdatedAt   time.Time
}

func (q *Queries) UpdateTask(ctx context.Context, arg UpdateTaskParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET subject_id = ?, title = ?, description = ?, priority = ?, due_date = ?, updated_at = ?
		WHERE id = ?
	`, arg.SubjectID, arg.Title, arg.Description, arg.Priority, arg.DueDate, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type SetTaskStatusParams struct {
	ID        int64
	Status    string
	UpdatedAt time.Time
}

func (q *Queries) SetTaskStatus(ctx context.Context, arg SetTaskStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, "UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?", arg.Status, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListTasksBySubject returns pending tasks before completed ones, each group
// ordered by due date and then by insertion.
func (q *Queries) ListTasksBySubject(ctx context.Context, subjectID int64) ([]TaskRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE subject_id = ?
		ORDER BY CASE status WHEN 'Pending' THEN 0 ELSE 1 END, due_date, id
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []TaskRow
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (q *Queries) DeleteTask(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) DeleteTasksBySubject(ctx context.Context, subjectID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, "DELETE FROM tasks WHERE subject_id = ?", subjectID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type AddHistoryParams struct {
	TaskID    int64
	EventType string
	Details   string
	CreatedAt time.Time
}

func (q *Queries) AddHistory(ctx context.Context, arg AddHistoryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, "INSERT INTO task_history (task_id, event_type, details, created_at) VALUES (?, ?, ?, ?)", arg.TaskID, arg.EventType, arg.Details, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (q *Queries) ListHistoryByTask(ctx context.Context, taskID int64) ([]HistoryRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, task_id, event_type, details, created_at
		FROM task_history
		WHERE task_id = ?
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.ID, &h.TaskID, &h.EventType, &h.Details, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	return value, err
}

func (q *Queries) SetSetting(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (q *Queries) DeleteSetting(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}
