// Package instances provides database operations for lendable book copies.
package instances

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/database"
	"github.com/mrlokans/locallibrary/internal/entities"
)

var _ catalog.InstanceStore = (*Repository)(nil)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves a copy with its book, the book's author and the borrower.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*entities.BookInstance, error) {
	var instance entities.BookInstance
	err := r.db.WithContext(ctx).
		Preload("Book.Author").
		Preload("Borrower").
		Where("id = ?", id.String()).
		First(&instance).Error
	if err != nil {
		return nil, database.Translate(err, "copy "+id.String())
	}
	return &instance, nil
}

func (r *Repository) Create(ctx context.Context, instance *entities.BookInstance) error {
	err := r.db.WithContext(ctx).Omit("Book", "Borrower").Create(instance).Error
	return database.Translate(err, "create copy")
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.BookInstance{}).Count(&count).Error
	return count, err
}

func (r *Repository) CountByStatus(ctx context.Context, status entities.LoanStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.BookInstance{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *Repository) ListByBook(ctx context.Context, bookID uint) ([]entities.BookInstance, error) {
	var instances []entities.BookInstance
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("imprint ASC").
		Order("id ASC").
		Find(&instances).Error
	return instances, err
}

func loanScope(filter catalog.LoanFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.BorrowerID != nil {
			db = db.Where("borrower_id = ?", *filter.BorrowerID)
		}
		return db
	}
}

// ListLoans returns matching copies ordered by due date, soonest first.
func (r *Repository) ListLoans(ctx context.Context, filter catalog.LoanFilter, offset, limit int) ([]entities.BookInstance, error) {
	var instances []entities.BookInstance
	err := r.db.WithContext(ctx).
		Scopes(loanScope(filter)).
		Preload("Book").
		Preload("Borrower").
		Order("due_back ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&instances).Error
	return instances, err
}

func (r *Repository) CountLoans(ctx context.Context, filter catalog.LoanFilter) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.BookInstance{}).
		Scopes(loanScope(filter)).
		Count(&count).Error
	return count, err
}

// UpdateDueBack changes only the due date of a copy.
func (r *Repository) UpdateDueBack(ctx context.Context, id uuid.UUID, dueBack time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entities.BookInstance{}).
		Where("id = ?", id.String()).
		Update("due_back", dueBack)
	return affected(result, id)
}

// UpdateLoan sets the status, borrower and due date of a copy together.
func (r *Repository) UpdateLoan(ctx context.Context, id uuid.UUID, status entities.LoanStatus, borrowerID *uint, dueBack *time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entities.BookInstance{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{
			"status":      status,
			"borrower_id": borrowerID,
			"due_back":    dueBack,
		})
	return affected(result, id)
}

func affected(result *gorm.DB, id uuid.UUID) error {
	if result.Error != nil {
		return database.Translate(result.Error, "update copy "+id.String())
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("copy %s: %w", id, catalog.ErrNotFound)
	}
	return nil
}
