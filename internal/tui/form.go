package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazyagenda/internal/agenda"
	"github.com/Joseda-hg/lazyagenda/internal/model"
)

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldPriority
	fieldSubject
)

type formField struct {
	Label string
	Value string
	kind  fieldKind
}

type formKind int

const (
	formUser formKind = iota
	formSubject
	formTask
)

// formState holds a popup form. id is zero for new entities; subjectID is
// only used by task forms.
type formState struct {
	kind      formKind
	id        int64
	subjectID int64
	fields    []formField
	index     int
}

const (
	userFieldName = iota
	userFieldEmail
)

const (
	subjectFieldName = iota
	subjectFieldColor
)

const (
	taskFieldTitle = iota
	taskFieldDescription
	taskFieldPriority
	taskFieldDue
	taskFieldSubject
)

func newUserForm() *formState {
	return &formState{
		kind: formUser,
		fields: []formField{
			{Label: "Name"},
			{Label: "Email"},
		},
	}
}

func newSubjectForm(subject *model.Subject) *formState {
	form := &formState{
		kind: formSubject,
		fields: []formField{
			{Label: "Name"},
			{Label: "Color (name or #hex)"},
		},
	}
	if subject != nil {
		form.id = subject.ID
		form.fields[subjectFieldName].Value = subject.Name
		form.fields[subjectFieldColor].Value = subject.Color
	}
	return form
}

// newTaskForm prefills a form from task, or with defaults for a new task
// filed under subject and due today.
func newTaskForm(task *model.Task, subject model.Subject, today time.Time) *formState {
	form := &formState{
		kind:      formTask,
		subjectID: subject.ID,
		fields: []formField{
			{Label: "Title"},
			{Label: "Description"},
			{Label: "Priority (space/←→)", Value: string(model.PriorityMedium), kind: fieldPriority},
			{Label: "Due (YYYY-MM-DD)", Value: today.Format(model.DateLayout)},
			{Label: "Subject (space/←→)", Value: subject.Name, kind: fieldSubject},
		},
	}
	if task == nil {
		return form
	}

	form.id = task.ID
	form.fields[taskFieldTitle].Value = task.Title
	form.fields[taskFieldDescription].Value = task.Description
	form.fields[taskFieldPriority].Value = string(task.Priority)
	form.fields[taskFieldDue].Value = formatDue(task.DueDate)
	if task.DueDate.IsZero() {
		form.fields[taskFieldDue].Value = ""
	}
	return form
}

func (f *formState) title() string {
	action := "New"
	if f.id != 0 {
		action = "Edit"
	}
	switch f.kind {
	case formUser:
		return action + " User"
	case formSubject:
		return action + " Subject"
	default:
		return action + " Task"
	}
}

func (f *formState) value(index int) string {
	return strings.TrimSpace(f.fields[index].Value)
}

func parseTaskForm(form *formState) (agenda.TaskInput, error) {
	priority, err := model.ParsePriority(form.value(taskFieldPriority))
	if err != nil {
		return agenda.TaskInput{}, err
	}

	due, err := parseDue(form.value(taskFieldDue))
	if err != nil {
		return agenda.TaskInput{}, err
	}

	return agenda.TaskInput{
		Title:       form.value(taskFieldTitle),
		Description: form.value(taskFieldDescription),
		Priority:    priority,
		DueDate:     due,
		SubjectID:   form.subjectID,
	}, nil
}

// parseDue leaves an empty value as the zero time.
func parseDue(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q, use YYYY-MM-DD", value)
	}
	return parsed, nil
}

func cyclePriority(current string, delta int) string {
	index := 0
	if priority, err := model.ParsePriority(current); err == nil {
		for i, p := range model.Priorities {
			if p == priority {
				index = i
				break
			}
		}
	}
	count := len(model.Priorities)
	return string(model.Priorities[(index+delta+count)%count])
}

// cycleSubject moves the subject of a task form through subjects.
func cycleSubject(form *formState, subjects []model.Subject, delta int) {
	if len(subjects) == 0 {
		return
	}
	index := 0
	for i, subject := range subjects {
		if subject.ID == form.subjectID {
			index = i
			break
		}
	}
	next := subjects[(index+delta+len(subjects))%len(subjects)]
	form.subjectID = next.ID
	form.fields[taskFieldSubject].Value = next.Name
}
