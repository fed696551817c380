// Package auth implements account registration, login, logout and the
// password, token and revocation primitives behind them.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/models"
	"github.com/ayush/research-hub/internal/validate"
)

// Auth event names reported to an EventRecorder.
const (
	EventSignup          = "signup"
	EventLoginSuccess    = "login_success"
	EventLoginFailure    = "login_failure"
	EventLogout          = "logout"
	EventRevokedRejected = "revoked_rejected"
)

// UserStore defines the interface for user persistence. Lookups of absent
// users return an apperr NOT_FOUND error.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, category, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// EventRecorder counts authentication outcomes.
type EventRecorder interface {
	RecordAuthEvent(event string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthEvent(string) {}

// Session is the outcome of a successful signup or login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// Service holds the account workflows.
type Service struct {
	users   UserStore
	hasher  Hasher
	tokens  *TokenManager
	revoked RevocationStore
	events  EventRecorder
	logger  *slog.Logger
}

// NewService wires the account workflows. events may be nil.
func NewService(users UserStore, hasher Hasher, tokens *TokenManager, revoked RevocationStore, events EventRecorder, logger *slog.Logger) *Service {
	if events == nil {
		events = nopRecorder{}
	}
	return &Service{users: users, hasher: hasher, tokens: tokens, revoked: revoked, events: events, logger: logger}
}

// Signup validates req, creates the user and issues a token.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*Session, error) {
	if req.Username == "" || req.Email == "" || req.Category == "" || req.Password == "" {
		return nil, apperr.Validation("All fields are required")
	}

	email := strings.ToLower(validate.SanitizeText(req.Email, validate.ShortTextMax))
	username := validate.SanitizeText(req.Username, validate.ShortTextMax)
	category := validate.SanitizeText(req.Category, validate.ShortTextMax)

	switch {
	case !validate.Email(email):
		return nil, apperr.Validation("Invalid email format")
	case !validate.Username(username):
		return nil, apperr.Validation("Username must be 3-30 characters and contain only letters, numbers, and underscores")
	case !validate.Password(req.Password):
		return nil, apperr.Validation("Password must be 8-128 characters long")
	case !validate.Category(category):
		return nil, apperr.Validation("Category must be 2-50 characters long")
	}

	if taken, err := s.exists(ctx, s.users.GetUserByUsername, username); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Duplicate("Username already taken")
	}
	if taken, err := s.exists(ctx, s.users.GetUserByEmail, email); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Duplicate("Email already registered")
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.In("auth").Wrap(err)
	}

	user, err := s.users.CreateUser(ctx, username, email, strings.ToUpper(category), hashed)
	if err != nil {
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.events.RecordAuthEvent(EventSignup)
	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID, "username", user.Username)
	return session, nil
}

// Login checks the credentials and issues a token. Unknown users and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*Session, error) {
	if req.Username == "" || req.Password == "" {
		return nil, apperr.Validation("Username and password are required")
	}
	username := validate.SanitizeText(req.Username, validate.ShortTextMax)
	if !validate.Username(username) {
		return nil, apperr.Validation("Invalid username format")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if apperr.Is(err, apperr.CodeNotFound) {
		s.events.RecordAuthEvent(EventLoginFailure)
		return nil, apperr.InvalidCredentials()
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.events.RecordAuthEvent(EventLoginFailure)
		return nil, apperr.InvalidCredentials()
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.events.RecordAuthEvent(EventLoginSuccess)
	return session, nil
}

// Logout revokes token until its natural expiry. A token that does not
// verify is already unusable and is not stored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return apperr.Validation("No token provided for logout.")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.DebugContext(ctx, "logout with unverifiable token", "code", apperr.Code(err))
		return nil
	}
	if err := s.revoked.Revoke(ctx, token, claims.ExpiresAt.Time); err != nil {
		return oops.In("auth").With("user_id", claims.UserID).Wrap(err)
	}
	s.events.RecordAuthEvent(EventLogout)
	return nil
}

// Me returns the user identified by userID.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *Service) issue(user *models.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, oops.In("auth").With("user_id", user.ID).Wrap(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) exists(ctx context.Context, lookup func(context.Context, string) (*models.User, error), key string) (bool, error) {
	_, err := lookup(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case apperr.Is(err, apperr.CodeNotFound):
		return false, nil
	default:
		return false, err
	}
}
