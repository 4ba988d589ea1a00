package agenda

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Joseda-hg/lazyagenda/internal/db"
	"github.com/Joseda-hg/lazyagenda/internal/model"
)

func TestCreateUserRejectsBlankFields(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	cases := []struct {
		name, email, field string
	}{
		{name: "", email: "juan@mail.com", field: "name"},
		{name: "   ", email: "juan@mail.com", field: "name"},
		{name: "Juan", email: "", field: "email"},
		{name: "Juan", email: "\t ", field: "email"},
	}
	for _, tc := range cases {
		_, err := manager.CreateUser(ctx, tc.name, tc.email)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("CreateUser(%q, %q): expected ValidationError, got %v", tc.name, tc.email, err)
		}
		if verr.Field != tc.field || !strings.Contains(err.Error(), tc.field) {
			t.Fatalf("CreateUser(%q, %q): expected error about %q, got %v", tc.name, tc.email, tc.field, err)
		}
	}

	users, err := manager.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected no users to be stored, got %d", len(users))
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.CreateUser(ctx, "Juan", "juan@mail.com"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := manager.CreateUser(ctx, "Otro Juan", "  juan@mail.com ")
	if !IsDuplicate(err) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if !strings.Contains(err.Error(), "email") {
		t.Fatalf("expected error to mention email, got %v", err)
	}
}

func TestSelectUser(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	for _, id := range []int64{0, -5} {
		_, _, err := manager.SelectUser(ctx, id)
		if !IsValidation(err) {
			t.Fatalf("SelectUser(%d): expected ValidationError, got %v", id, err)
		}
	}

	_, ok, err := manager.SelectUser(ctx, 999)
	if err != nil || ok {
		t.Fatalf("SelectUser(999): expected no match and no error, got ok=%v err=%v", ok, err)
	}

	created, err := manager.CreateUser(ctx, " Juan Pérez ", "juan@mail.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID <= 0 || created.CreatedAt.IsZero() {
		t.Fatalf("expected persisted user with id and creation date, got %+v", created)
	}

	user, ok, err := manager.SelectUser(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("SelectUser(%d): ok=%v err=%v", created.ID, ok, err)
	}
	if user.Name != "Juan Pérez" || user.Email != "juan@mail.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestCreateSubjectValidatesOwnerAndFields(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.CreateSubject(ctx, 42, "Math", "Blue")
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError for unknown user, got %v", err)
	}
	if !strings.Contains(err.Error(), "user") {
		t.Fatalf("expected error to name the user, got %v", err)
	}

	user := seedUser(t, manager)
	if _, err := manager.CreateSubject(ctx, user.ID, " ", "Blue"); !IsValidation(err) || !strings.Contains(err.Error(), "name") {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if _, err := manager.CreateSubject(ctx, user.ID, "Math", ""); !IsValidation(err) || !strings.Contains(err.Error(), "color") {
		t.Fatalf("expected color validation error, got %v", err)
	}

	subject, err := manager.CreateSubject(ctx, user.ID, " Math ", "#3366ff")
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	if subject.Name != "Math" || subject.UserID != user.ID {
		t.Fatalf("unexpected subject: %+v", subject)
	}
}

func TestListSubjectsForUserKeepsCreationOrder(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	user := seedUser(t, manager)
	other, err := manager.CreateUser(ctx, "Lucia", "lucia@mail.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	for _, name := range []string{"Physics", "Algebra", "History"} {
		if _, err := manager.CreateSubject(ctx, user.ID, name, "Red"); err != nil {
			t.Fatalf("create subject %s: %v", name, err)
		}
	}

	subjects, err := manager.ListSubjectsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list subjects: %v", err)
	}
	var names []string
	for _, subject := range subjects {
		names = append(names, subject.Name)
	}
	if got := strings.Join(names, ","); got != "Physics,Algebra,History" {
		t.Fatalf("unexpected order: %s", got)
	}

	empty, err := manager.ListSubjectsForUser(ctx, other.ID)
	if err != nil {
		t.Fatalf("list subjects of other user: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no subjects, got %d", len(empty))
	}

	if _, err := manager.ListSubjectsForUser(ctx, 0); !IsValidation(err) {
		t.Fatalf("expected ValidationError for id 0, got %v", err)
	}
}

func TestEditSubject(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	subject := seedSubject(t, manager)
	edited, err := manager.EditSubject(ctx, subject.ID, "Physics II", "Green")
	if err != nil {
		t.Fatalf("edit subject: %v", err)
	}
	if edited.Name != "Physics II" || edited.Color != "Green" {
		t.Fatalf("unexpected subject after edit: %+v", edited)
	}

	if _, err := manager.EditSubject(ctx, 999, "Math", "Blue"); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := manager.EditSubject(ctx, subject.ID, "", "Blue"); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	subject := seedSubject(t, manager)
	due := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		label string
		input TaskInput
		field string
	}{
		{label: "empty title", input: TaskInput{Title: "", Priority: model.PriorityLow, DueDate: due, SubjectID: subject.ID}, field: "title"},
		{label: "blank title", input: TaskInput{Title: "   ", Priority: model.PriorityLow, DueDate: due, SubjectID: subject.ID}, field: "title"},
		{label: "bad priority", input: TaskInput{Title: "Essay", Priority: "Urgent", DueDate: due, SubjectID: subject.ID}, field: "priority"},
		{label: "no due date", input: TaskInput{Title: "Essay", Priority: model.PriorityLow, SubjectID: subject.ID}, field: "due date"},
		{label: "bad subject id", input: TaskInput{Title: "Essay", Priority: model.PriorityLow, DueDate: due}, field: "subject"},
		{label: "unknown subject", input: TaskInput{Title: "Essay", Priority: model.PriorityLow, DueDate: due, SubjectID: 999}, field: "subject"},
	}
	for _, tc := range cases {
		_, err := manager.CreateTask(ctx, tc.input)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.label, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: expected field %q, got %q", tc.label, tc.field, verr.Field)
		}
	}

	tasks, err := manager.ListTasksForSubject(ctx, subject.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected rejected tasks not to be stored, got %d", len(tasks))
	}
}

func TestCreateTaskStartsPending(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	subject := seedSubject(t, manager)

	task, err := manager.CreateTask(ctx, TaskInput{
		Title:     "Problem set 3",
		Priority:  model.PriorityHigh,
		DueDate:   time.Date(2026, 10, 30, 0, 0, 0, 0, time.UTC),
		SubjectID: subject.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != model.StatusPending {
		t.Fatalf("expected Pending, got %q", task.Status)
	}
	if task.Description != "" {
		t.Fatalf("expected empty description, got %q", task.Description)
	}

	stored, ok, err := manager.GetTask(ctx, task.ID)
	if err != nil || !ok {
		t.Fatalf("get task: ok=%v err=%v", ok, err)
	}
	if stored.Title != "Problem set 3" || stored.Priority != model.PriorityHigh {
		t.Fatalf("unexpected stored task: %+v", stored)
	}
}

func TestMarkAndUnmarkTask(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	task := seedTask(t, manager, seedSubject(t, manager).ID, "Read chapter 2")

	for i := 0; i < 2; i++ {
		marked, err := manager.MarkTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("mark task (%d): %v", i, err)
		}
		if marked.Status != model.StatusCompleted {
			t.Fatalf("expected Completed, got %q", marked.Status)
		}
	}

	unmarked, err := manager.UnmarkTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unmark task: %v", err)
	}
	if unmarked.Status != model.StatusPending {
		t.Fatalf("expected Pending, got %q", unmarked.Status)
	}

	if _, err := manager.MarkTask(ctx, 999); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError marking missing task, got %v", err)
	}
	if _, err := manager.UnmarkTask(ctx, 999); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError unmarking missing task, got %v", err)
	}
}

func TestEditTask(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	subject := seedSubject(t, manager)
	target, err := manager.CreateSubject(ctx, subject.UserID, "Chemistry", "Purple")
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}

	task := seedTask(t, manager, subject.ID, "Lab notes")
	if _, err := manager.MarkTask(ctx, task.ID); err != nil {
		t.Fatalf("mark task: %v", err)
	}

	due := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	edited, err := manager.EditTask(ctx, task.ID, TaskInput{
		Title:       "Lab notes v2",
		Description: "Titration",
		Priority:    model.PriorityMedium,
		DueDate:     due,
		SubjectID:   target.ID,
	})
	if err != nil {
		t.Fatalf("edit task: %v", err)
	}
	if edited.SubjectID != target.ID || edited.Title != "Lab notes v2" || edited.Description != "Titration" {
		t.Fatalf("unexpected task after edit: %+v", edited)
	}
	if !edited.DueDate.Equal(due) {
		t.Fatalf("expected due %s, got %s", due, edited.DueDate)
	}
	if edited.Status != model.StatusCompleted {
		t.Fatalf("expected status to be preserved, got %q", edited.Status)
	}

	input := TaskInput{Title: "x", Priority: model.PriorityLow, DueDate: due, SubjectID: subject.ID}
	if _, err := manager.EditTask(ctx, 999, input); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := manager.EditTask(ctx, 0, input); !IsValidation(err) {
		t.Fatalf("expected ValidationError for id 0, got %v", err)
	}
	input.Title = ""
	if _, err := manager.EditTask(ctx, task.ID, input); !IsValidation(err) || !strings.Contains(err.Error(), "title") {
		t.Fatalf("expected title validation error, got %v", err)
	}
	input.Title = "x"
	input.SubjectID = 999
	if _, err := manager.EditTask(ctx, task.ID, input); !IsValidation(err) || !strings.Contains(err.Error(), "subject") {
		t.Fatalf("expected subject validation error, got %v", err)
	}
}

func TestListTasksForSubjectOrdersPendingFirst(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	subject := seedSubject(t, manager)

	create := func(title string, day int) model.Task {
		task, err := manager.CreateTask(ctx, TaskInput{
			Title:     title,
			Priority:  model.PriorityLow,
			DueDate:   time.Date(2026, 11, day, 0, 0, 0, 0, time.UTC),
			SubjectID: subject.ID,
		})
		if err != nil {
			t.Fatalf("create task %s: %v", title, err)
		}
		return task
	}
	create("late", 20)
	done := create("done", 1)
	create("early", 5)
	if _, err := manager.MarkTask(ctx, done.ID); err != nil {
		t.Fatalf("mark task: %v", err)
	}

	tasks, err := manager.ListTasksForSubject(ctx, subject.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	var titles []string
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}
	if got := strings.Join(titles, ","); got != "early,late,done" {
		t.Fatalf("unexpected order: %s", got)
	}
}

func TestDeleteTask(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	task := seedTask(t, manager, seedSubject(t, manager).ID, "Quiz prep")

	if err := manager.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, ok, err := manager.GetTask(ctx, task.ID); err != nil || ok {
		t.Fatalf("expected task to be gone, ok=%v err=%v", ok, err)
	}
	if err := manager.DeleteTask(ctx, task.ID); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError on second delete, got %v", err)
	}
	if err := manager.DeleteTask(ctx, -1); !IsValidation(err) {
		t.Fatalf("expected ValidationError for id -1, got %v", err)
	}

	history, err := manager.TaskHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("task history: %v", err)
	}
	if len(history) != 2 || history[0].EventType != "created" || history[1].EventType != "deleted" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestDeleteSubjectCascadesToTasks(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	subject := seedSubject(t, manager)

	var ids []int64
	for _, title := range []string{"One", "Two", "Three", "Four"} {
		ids = append(ids, seedTask(t, manager, subject.ID, title).ID)
	}

	if err := manager.DeleteSubject(ctx, subject.ID); err != nil {
		t.Fatalf("delete subject: %v", err)
	}
	for _, id := range ids {
		if _, ok, err := manager.GetTask(ctx, id); err != nil || ok {
			t.Fatalf("expected task %d to be gone, ok=%v err=%v", id, ok, err)
		}
	}
	if _, ok, err := manager.GetSubject(ctx, subject.ID); err != nil || ok {
		t.Fatalf("expected subject to be gone, ok=%v err=%v", ok, err)
	}
	if err := manager.DeleteSubject(ctx, subject.ID); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError on second delete, got %v", err)
	}
}

func TestSessions(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return started }

	if _, ok, err := manager.Resume(ctx); err != nil || ok {
		t.Fatalf("expected nothing to resume, ok=%v err=%v", ok, err)
	}
	if _, err := manager.Login(ctx, 999); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError logging in unknown user, got %v", err)
	}

	user := seedUser(t, manager)
	session, err := manager.Login(ctx, user.ID)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.User.ID != user.ID || !session.StartedAt.Equal(started) {
		t.Fatalf("unexpected session: %+v", session)
	}

	resumed, ok, err := manager.Resume(ctx)
	if err != nil || !ok {
		t.Fatalf("resume: ok=%v err=%v", ok, err)
	}
	if resumed.User.ID != user.ID {
		t.Fatalf("expected to resume user %d, got %d", user.ID, resumed.User.ID)
	}
	if resumed.ID == session.ID {
		t.Fatalf("expected a fresh session id")
	}

	if err := manager.Logout(ctx, resumed); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok, err := manager.Resume(ctx); err != nil || ok {
		t.Fatalf("expected nothing to resume after logout, ok=%v err=%v", ok, err)
	}
}

func TestResumeForgetsStaleUser(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	if err := manager.store.SetSetting(ctx, lastUserSetting, "77"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	if _, ok, err := manager.Resume(ctx); err != nil || ok {
		t.Fatalf("expected stale user to be ignored, ok=%v err=%v", ok, err)
	}
	value, err := manager.store.GetSetting(ctx, lastUserSetting)
	if err != nil {
		t.Fatalf("get setting: %v", err)
	}
	if value != "" {
		t.Fatalf("expected stale setting to be cleared, got %q", value)
	}
}

func TestOperationsAreTraced(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})

	manager, _ := newTestManager(t)
	ctx := context.Background()
	if _, err := manager.CreateUser(ctx, "Juan", "juan@mail.com"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := manager.CreateUser(ctx, "Juan", "juan@mail.com"); err == nil {
		t.Fatalf("expected duplicate error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, span := range spans {
		if span.Name != "agenda.CreateUser" {
			t.Fatalf("unexpected span name %q", span.Name)
		}
	}
	if spans[0].Status.Code == codes.Error {
		t.Fatalf("expected first span to succeed")
	}
	if spans[1].Status.Code != codes.Error {
		t.Fatalf("expected second span to carry an error status, got %v", spans[1].Status.Code)
	}
	if len(spans[1].Events) == 0 {
		t.Fatalf("expected the error to be recorded on the span")
	}
}

func TestRejectedRequestsLogAtDebug(t *testing.T) {
	manager, hook := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.CreateUser(ctx, "Juan", "juan@mail.com"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.InfoLevel || entry.Message != "user created" {
		t.Fatalf("expected info entry for created user, got %+v", entry)
	}

	hook.Reset()
	if _, err := manager.CreateUser(ctx, "", "x@mail.com"); err == nil {
		t.Fatalf("expected validation error")
	}
	entry = hook.LastEntry()
	if entry == nil || entry.Level != log.DebugLevel {
		t.Fatalf("expected debug entry for rejected request, got %+v", entry)
	}
	if entry.Data["op"] != "CreateUser" {
		t.Fatalf("expected op field, got %v", entry.Data["op"])
	}
}

func newTestManager(t *testing.T) (*Manager, *test.Hook) {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	return NewManager(db.NewStore(conn), logger), hook
}

func seedUser(t *testing.T, manager *Manager) model.User {
	t.Helper()
	user, err := manager.CreateUser(context.Background(), "Juan Pérez", "juan@mail.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func seedSubject(t *testing.T, manager *Manager) model.Subject {
	t.Helper()
	user := seedUser(t, manager)
	subject, err := manager.CreateSubject(context.Background(), user.ID, "Physics", "Red")
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	return subject
}

func seedTask(t *testing.T, manager *Manager, subjectID int64, title string) model.Task {
	t.Helper()
	task, err := manager.CreateTask(context.Background(), TaskInput{
		Title:     title,
		Priority:  model.PriorityMedium,
		DueDate:   time.Date(2026, 11, 10, 0, 0, 0, 0, time.UTC),
		SubjectID: subjectID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}
