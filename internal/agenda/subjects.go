package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Joseda-hg/lazyagenda/internal/db"
	"github.com/Joseda-hg/lazyagenda/internal/model"
)

func (m *Manager) CreateSubject(ctx context.Context, ownerUserID int64, name, color string) (subject model.Subject, err error) {
	ctx, span := startSpan(ctx, "CreateSubject", attribute.Int64("agenda.user_id", ownerUserID))
	defer func() { m.finish(span, "CreateSubject", err) }()

	name, color, err = validateSubject(name, color)
	if err != nil {
		return model.Subject{}, err
	}
	if ownerUserID <= 0 {
		return model.Subject{}, badID("user", ownerUserID)
	}

	err = m.store.InTx(ctx, func(tx *db.Store) error {
		if err := requireUser(ctx, tx, ownerUserID); err != nil {
			return err
		}

		subject, err = tx.CreateSubject(ctx, db.SubjectInput{UserID: ownerUserID, Name: name, Color: color})
		if db.IsForeignKeyViolation(err) {
			return missingRef("user", ownerUserID)
		}
		if err != nil {
			return fmt.Errorf("create subject: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Subject{}, err
	}

	span.SetAttributes(attribute.Int64("agenda.subject_id", subject.ID))
	m.log.WithFields(log.Fields{"user": ownerUserID, "subject": subject.ID}).Info("subject created")
	return subject, nil
}

func (m *Manager) EditSubject(ctx context.Context, id int64, name, color string) (subject model.Subject, err error) {
	ctx, span := startSpan(ctx, "EditSubject", attribute.Int64("agenda.subject_id", id))
	defer func() { m.finish(span, "EditSubject", err) }()

	if id <= 0 {
		return model.Subject{}, badID("id", id)
	}
	name, color, err = validateSubject(name, color)
	if err != nil {
		return model.Subject{}, err
	}

	err = m.store.InTx(ctx, func(tx *db.Store) error {
		subject, err = tx.UpdateSubject(ctx, id, name, color)
		if errors.Is(err, db.ErrNotFound) {
			return &NotFoundError{Entity: "subject", ID: id}
		}
		if err != nil {
			return fmt.Errorf("update subject %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.Subject{}, err
	}

	m.log.WithField("subject", id).Info("subject updated")
	return subject, nil
}

// GetSubject returns ok == false when no subject has that id.
func (m *Manager) GetSubject(ctx context.Context, id int64) (subject model.Subject, ok bool, err error) {
	ctx, span := startSpan(ctx, "GetSubject", attribute.Int64("agenda.subject_id", id))
	defer func() { m.finish(span, "GetSubject", err) }()

	if id <= 0 {
		return model.Subject{}, false, badID("id", id)
	}

	subject, err = m.store.GetSubject(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return model.Subject{}, false, nil
	}
	if err != nil {
		return model.Subject{}, false, fmt.Errorf("get subject %d: %w", id, err)
	}
	return subject, true, nil
}

// ListSubjectsForUser returns the user's subjects in the order they were
// created. Unknown users simply have no subjects.
func (m *Manager) ListSubjectsForUser(ctx context.Context, userID int64) (subjects []model.Subject, err error) {
	ctx, span := startSpan(ctx, "ListSubjectsForUser", attribute.Int64("agenda.user_id", userID))
	defer func() { m.finish(span, "ListSubjectsForUser", err) }()

	if userID <= 0 {
		return nil, badID("user", userID)
	}

	subjects, err = m.store.ListSubjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subjects of user %d: %w", userID, err)
	}
	return subjects, nil
}

// DeleteSubject removes the subject and every task filed under it.
func (m *Manager) DeleteSubject(ctx context.Context, id int64) (err error) {
	ctx, span := startSpan(ctx, "DeleteSubject", attribute.Int64("agenda.subject_id", id))
	defer func() { m.finish(span, "DeleteSubject", err) }()

	if id <= 0 {
		return badID("id", id)
	}

	removed, err := m.store.DeleteSubject(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return &NotFoundError{Entity: "subject", ID: id}
	}
	if err != nil {
		return fmt.Errorf("delete subject %d: %w", id, err)
	}

	span.SetAttributes(attribute.Int64("agenda.tasks_removed", removed))
	m.log.WithFields(log.Fields{"subject": id, "tasks": removed}).Info("subject deleted")
	return nil
}

func validateSubject(name, color string) (string, string, error) {
	name = strings.TrimSpace(name)
	color = strings.TrimSpace(color)
	if name == "" {
		return "", "", blank("name")
	}
	if color == "" {
		return "", "", blank("color")
	}
	return name, color, nil
}

func requireUser(ctx context.Context, tx *db.Store, id int64) error {
	_, err := tx.GetUser(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return missingRef("user", id)
	}
	if err != nil {
		return fmt.Errorf("get user %d: %w", id, err)
	}
	return nil
}
