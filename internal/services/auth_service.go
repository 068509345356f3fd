// Package services – AuthService
//
// This file implements registration, login, logout, and session resolution.
// Passwords are stored as bcrypt hashes; sessions are server-side rows keyed
// by a ULID token that the HTTP layer hands out as the session_token cookie.
// Service-level errors (ErrEmailTaken, ErrInvalidCredentials,
// ErrSessionExpired) are returned for predictable cases so handlers can map
// them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/repo"
)

// minPasswordLen is the minimum accepted password length.
const minPasswordLen = 8

// AuthService implements account and session use-cases.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// SessionTTL is how long issued sessions stay valid.
	SessionTTL time.Duration
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

// NewAuthService constructs an AuthService with the given session lifetime.
func NewAuthService(db *gorm.DB, sessionTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	return &AuthService{DB: db, SessionTTL: sessionTTL}
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Register creates an account and returns the persisted user.
//
// Validation: email must parse as an address, password must have at least
// minPasswordLen characters, name must be non-blank. A taken email yields
// ErrEmailTaken.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	ve := &ValidationError{}
	if _, err := mail.ParseAddress(email); err != nil {
		ve.add("email", "must be a valid email address")
	}
	if len(password) < minPasswordLen {
		ve.add("password", "must be at least 8 characters")
	}
	if name == "" {
		ve.add("name", "must not be blank")
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u, err := repo.CreateUser(ctx, s.DB, email, string(hash), name)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	return u, err
}

// Login verifies the credentials and issues a new session. Unknown emails and
// wrong passwords both come back as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	token := ulid.Make().String()
	sess, err := repo.CreateSession(ctx, s.DB, token, u.ID, s.now().Add(s.SessionTTL))
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// Logout invalidates the session token. Logging out an unknown token is a
// no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return repo.DeleteSession(ctx, s.DB, token)
}

// User fetches a user profile by id, or ErrUserNotFound.
func (s *AuthService) User(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Authenticate resolves a session token to its user id, or ErrSessionExpired
// when the token is unknown or stale.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrSessionExpired
	}
	sess, err := repo.GetSession(ctx, s.DB, token, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrSessionExpired
	}
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}
