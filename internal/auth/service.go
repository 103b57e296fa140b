package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/config"
	"github.com/mrlokans/locallibrary/internal/entities"
)

// Validation patterns
var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrAccountLocked    = errors.New("account is locked due to too many failed login attempts")
	ErrUsernameInvalid  = errors.New("username must be 3-64 characters: letters, digits and @/./+/-/_ only")
	ErrEmailInvalid     = errors.New("invalid email format")
)

const (
	defaultMaxLoginAttempts = 5
	defaultLockoutDuration  = 30 * time.Minute
)

// UserStore is the persistence the service needs. users.Repository implements it.
type UserStore interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uint) (*entities.User, error)
	GetByUsername(ctx context.Context, login string) (*entities.User, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	Count(ctx context.Context) (int64, error)
	RecordLogin(ctx context.Context, id uint, at time.Time) error
	RecordFailedLogin(ctx context.Context, id uint, count int, lockedUntil *time.Time) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
}

// Service handles authentication and user management.
type Service struct {
	users  UserStore
	config config.Auth
	now    func() time.Time
}

// NewService creates a new authentication service.
func NewService(users UserStore, cfg config.Auth) *Service {
	return &Service{
		users:  users,
		config: cfg,
		now:    time.Now,
	}
}

// CreateUser creates a new user with password authentication. Email is optional.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, superuser bool) (*entities.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, ErrUsernameRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid
	}
	// RFC 5321 limit is 254
	if email != "" && (len(email) > 254 || !emailPattern.MatchString(email)) {
		return nil, ErrEmailInvalid
	}

	exists, err := s.users.Exists(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsSuperuser:  superuser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, catalog.ErrDuplicateName) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate validates credentials and returns the user.
// Locks the account after too many failed attempts.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*entities.User, error) {
	user, err := s.users.GetByUsername(ctx, login)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.LockedUntil != nil && s.now().Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		s.recordFailedLogin(ctx, user)
		return nil, err
	}

	now := s.now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLoginAt = &now
	user.FailedLoginCount = 0
	user.LockedUntil = nil

	return user, nil
}

// recordFailedLogin increments the failed login counter and locks the account if threshold reached.
func (s *Service) recordFailedLogin(ctx context.Context, user *entities.User) {
	user.FailedLoginCount++

	maxAttempts := s.config.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxLoginAttempts
	}

	var lockedUntil *time.Time
	if user.FailedLoginCount >= maxAttempts {
		lockout := s.config.LockoutDuration
		if lockout == 0 {
			lockout = defaultLockoutDuration
		}
		until := s.now().Add(lockout)
		lockedUntil = &until
	}

	// best effort, the login already failed
	_ = s.users.RecordFailedLogin(ctx, user.ID, user.FailedLoginCount, lockedUntil)
}

// GetUserByID retrieves a user with permissions loaded.
func (s *Service) GetUserByID(ctx context.Context, id uint) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Identity resolves a user id into the access identity used by the catalog.
// Unknown ids resolve to the anonymous identity.
func (s *Service) Identity(ctx context.Context, id uint) (access.Identity, error) {
	if id == 0 {
		return access.Anonymous(), nil
	}
	user, err := s.GetUserByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return access.Anonymous(), nil
	}
	if err != nil {
		return access.Anonymous(), err
	}
	return access.FromUser(user), nil
}

// ChangePassword updates a user's password after verifying the old one.
func (s *Service) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}

	return s.users.UpdatePassword(ctx, userID, newHash)
}

// HasUsers returns true if any users exist in the database.
func (s *Service) HasUsers(ctx context.Context) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
