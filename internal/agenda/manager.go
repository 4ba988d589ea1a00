// Package agenda is the single entry point for reading and changing users,
// subjects and tasks. Every rule about what may be stored is enforced here;
// callers never write to the store directly.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Joseda-hg/lazyagenda/internal/db"
	"github.com/Joseda-hg/lazyagenda/internal/model"
)

const (
	tracerName      = "github.com/Joseda-hg/lazyagenda/internal/agenda"
	lastUserSetting = "last_user_id"
)

type Manager struct {
	store *db.Store
	log   *log.Logger
	now   func() time.Time
}

// Session identifies the user the presentation layer is acting for.
type Session struct {
	ID        uuid.UUID
	User      model.User
	StartedAt time.Time
}

func NewManager(store *db.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Manager{store: store, log: logger, now: time.Now}
}

func (m *Manager) CreateUser(ctx context.Context, name, email string) (user model.User, err error) {
	ctx, span := startSpan(ctx, "CreateUser")
	defer func() { m.finish(span, "CreateUser", err) }()

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return model.User{}, blank("name")
	}
	if email == "" {
		return model.User{}, blank("email")
	}

	err = m.store.InTx(ctx, func(tx *db.Store) error {
		_, err := tx.GetUserByEmail(ctx, email)
		if err == nil {
			return &DuplicateError{Field: "email", Value: email}
		}
		if !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("look up email: %w", err)
		}

		user, err = tx.CreateUser(ctx, name, email)
		if db.IsUniqueViolation(err) {
			return &DuplicateError{Field: "email", Value: email}
		}
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.User{}, err
	}

	span.SetAttributes(attribute.Int64("agenda.user_id", user.ID))
	m.log.WithFields(log.Fields{"user": user.ID}).Info("user created")
	return user, nil
}

// SelectUser looks a user up by id. ok is false when no user has that id.
func (m *Manager) SelectUser(ctx context.Context, id int64) (user model.User, ok bool, err error) {
	ctx, span := startSpan(ctx, "SelectUser", attribute.Int64("agenda.user_id", id))
	defer func() { m.finish(span, "SelectUser", err) }()

	if id <= 0 {
		return model.User{}, false, badID("id", id)
	}

	user, err = m.store.GetUser(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, true, nil
}

func (m *Manager) ListUsers(ctx context.Context) (users []model.User, err error) {
	ctx, span := startSpan(ctx, "ListUsers")
	defer func() { m.finish(span, "ListUsers", err) }()

	users, err = m.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Login opens a session for the user and remembers it as the last active one.
func (m *Manager) Login(ctx context.Context, userID int64) (session Session, err error) {
	ctx, span := startSpan(ctx, "Login", attribute.Int64("agenda.user_id", userID))
	defer func() { m.finish(span, "Login", err) }()

	if userID <= 0 {
		return Session{}, badID("user", userID)
	}

	var user model.User
	err = m.store.InTx(ctx, func(tx *db.Store) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		if errors.Is(err, db.ErrNotFound) {
			return &NotFoundError{Entity: "user", ID: userID}
		}
		if err != nil {
			return fmt.Errorf("get user %d: %w", userID, err)
		}
		return tx.SetSetting(ctx, lastUserSetting, strconv.FormatInt(userID, 10))
	})
	if err != nil {
		return Session{}, err
	}

	session = m.newSession(user)
	m.log.WithFields(log.Fields{"user": user.ID, "session": session.ID}).Info("session started")
	return session, nil
}

// Resume reopens a session for the last user that logged in. ok is false
// when nobody is remembered or the remembered user no longer exists.
func (m *Manager) Resume(ctx context.Context) (session Session, ok bool, err error) {
	ctx, span := startSpan(ctx, "Resume")
	defer func() { m.finish(span, "Resume", err) }()

	var user model.User
	err = m.store.InTx(ctx, func(tx *db.Store) error {
		value, err := tx.GetSetting(ctx, lastUserSetting)
		if err != nil {
			return fmt.Errorf("read last user: %w", err)
		}
		if value == "" {
			return nil
		}

		id, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr == nil && id > 0 {
			user, err = tx.GetUser(ctx, id)
			if err == nil {
				ok = true
				return nil
			}
			if !errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("get user %d: %w", id, err)
			}
		}
		m.log.WithField("value", value).Warn("forgetting stale last user")
		return tx.DeleteSetting(ctx, lastUserSetting)
	})
	if err != nil || !ok {
		return Session{}, false, err
	}

	session = m.newSession(user)
	m.log.WithFields(log.Fields{"user": user.ID, "session": session.ID}).Info("session resumed")
	return session, true, nil
}

func (m *Manager) Logout(ctx context.Context, session Session) (err error) {
	ctx, span := startSpan(ctx, "Logout", attribute.String("agenda.session_id", session.ID.String()))
	defer func() { m.finish(span, "Logout", err) }()

	if err := m.store.DeleteSetting(ctx, lastUserSetting); err != nil {
		return fmt.Errorf("forget last user: %w", err)
	}
	m.log.WithFields(log.Fields{"user": session.User.ID, "session": session.ID}).Info("session ended")
	return nil
}

func (m *Manager) newSession(user model.User) Session {
	return Session{ID: uuid.New(), User: user, StartedAt: m.now()}
}

// finish closes the span of an operation and logs its failure, if any.
// Rejected requests are expected traffic and only logged at debug level.
func (m *Manager) finish(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	entry := m.log.WithError(err).WithField("op", op)
	if isDomainError(err) {
		entry.Debug("request rejected")
		return
	}
	entry.Error("operation failed")
}

func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agenda."+op, trace.WithAttributes(attrs...))
}
