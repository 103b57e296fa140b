// Package users provides database operations for library accounts and their
// permissions.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByUsername(ctx, "librarian")
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/database"
	"github.com/mrlokans/locallibrary/internal/entities"
)

var ErrUnknownPermission = errors.New("unknown permission")

var _ catalog.UserLookup = (*Repository)(nil)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, user *entities.User) error {
	err := r.db.WithContext(ctx).Omit("Permissions").Create(user).Error
	return database.Translate(err, "create user "+user.Username)
}

// GetByID retrieves a user with permissions loaded.
func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.User, error) {
	var user entities.User
	if err := r.db.WithContext(ctx).Preload("Permissions").First(&user, id).Error; err != nil {
		return nil, database.Translate(err, fmt.Sprintf("user %d", id))
	}
	return &user, nil
}

// GetByUsername matches either the username or the email address.
func (r *Repository) GetByUsername(ctx context.Context, login string) (*entities.User, error) {
	if login == "" {
		return nil, fmt.Errorf("empty login: %w", catalog.ErrNotFound)
	}
	var user entities.User
	err := r.db.WithContext(ctx).
		Preload("Permissions").
		Where("username = ? OR email = ?", login, login).
		First(&user).Error
	if err != nil {
		return nil, database.Translate(err, "user "+login)
	}
	return &user, nil
}

// Exists reports whether the username or email is already registered.
func (r *Repository) Exists(ctx context.Context, username, email string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&entities.User{})
	if email == "" {
		query = query.Where("username = ?", username)
	} else {
		query = query.Where("username = ? OR email = ?", username, email)
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.User{}).Count(&count).Error
	return count, err
}

func (r *Repository) List(ctx context.Context) ([]entities.User, error) {
	var users []entities.User
	err := r.db.WithContext(ctx).Preload("Permissions").Order("username ASC").Find(&users).Error
	return users, err
}

// RecordLogin stamps a successful login and clears any lockout.
func (r *Repository) RecordLogin(ctx context.Context, id uint, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"last_login_at":      at,
		"failed_login_count": 0,
		"locked_until":       nil,
	})
}

// RecordFailedLogin stores the failure count and an optional lockout expiry.
func (r *Repository) RecordFailedLogin(ctx context.Context, id uint, count int, lockedUntil *time.Time) error {
	updates := map[string]any{"failed_login_count": count}
	if lockedUntil != nil {
		updates["locked_until"] = *lockedUntil
	}
	return r.update(ctx, id, updates)
}

func (r *Repository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash})
}

func (r *Repository) SetSuperuser(ctx context.Context, id uint, superuser bool) error {
	return r.update(ctx, id, map[string]any{"is_superuser": superuser})
}

func (r *Repository) update(ctx context.Context, id uint, updates map[string]any) error {
	result := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return database.Translate(result.Error, fmt.Sprintf("update user %d", id))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, catalog.ErrNotFound)
	}
	return nil
}

// ListPermissions returns every known permission ordered by codename.
func (r *Repository) ListPermissions(ctx context.Context) ([]entities.Permission, error) {
	var perms []entities.Permission
	err := r.db.WithContext(ctx).Order("codename ASC").Find(&perms).Error
	return perms, err
}

func (r *Repository) findPermissions(ctx context.Context, codenames []string) ([]entities.Permission, error) {
	var perms []entities.Permission
	if err := r.db.WithContext(ctx).Where("codename IN ?", codenames).Find(&perms).Error; err != nil {
		return nil, err
	}
	if len(perms) != len(uniqueStrings(codenames)) {
		return nil, fmt.Errorf("%w in %v", ErrUnknownPermission, codenames)
	}
	return perms, nil
}

// GrantPermissions adds the named permissions to a user.
func (r *Repository) GrantPermissions(ctx context.Context, id uint, codenames ...string) error {
	if len(codenames) == 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	perms, err := r.findPermissions(ctx, codenames)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&entities.User{ID: id}).Association("Permissions").Append(perms)
}

// RevokePermissions removes the named permissions from a user.
func (r *Repository) RevokePermissions(ctx context.Context, id uint, codenames ...string) error {
	if len(codenames) == 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	perms, err := r.findPermissions(ctx, codenames)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&entities.User{ID: id}).Association("Permissions").Delete(perms)
}

// Delete removes the user. Copies they borrowed keep their status but lose
// the borrower link.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entities.BookInstance{}).Where("borrower_id = ?", id).Update("borrower_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&entities.User{ID: id}).Association("Permissions").Clear(); err != nil {
			return err
		}
		result := tx.Delete(&entities.User{}, id)
		if result.Error != nil {
			return database.Translate(result.Error, fmt.Sprintf("delete user %d", id))
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("user %d: %w", id, catalog.ErrNotFound)
		}
		return nil
	})
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
