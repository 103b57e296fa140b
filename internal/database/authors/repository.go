// Package authors provides database operations for catalog authors.
package authors

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/database"
	"github.com/mrlokans/locallibrary/internal/entities"
)

var _ catalog.AuthorStore = (*Repository)(nil)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns authors ordered by last name, then first name.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]entities.Author, error) {
	var authors []entities.Author
	err := r.db.WithContext(ctx).
		Order("last_name ASC").
		Order("first_name ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&authors).Error
	return authors, err
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Author{}).Count(&count).Error
	return count, err
}

func (r *Repository) Get(ctx context.Context, id uint) (*entities.Author, error) {
	var author entities.Author
	if err := r.db.WithContext(ctx).First(&author, id).Error; err != nil {
		return nil, database.Translate(err, fmt.Sprintf("author %d", id))
	}
	return &author, nil
}

func (r *Repository) Create(ctx context.Context, author *entities.Author) error {
	return database.Translate(r.db.WithContext(ctx).Create(author).Error, "create author")
}

// Update writes every editable column, clearing dates that are nil.
func (r *Repository) Update(ctx context.Context, author *entities.Author) error {
	result := r.db.WithContext(ctx).
		Model(author).
		Select("first_name", "last_name", "date_of_birth", "date_of_death").
		Updates(author)
	if result.Error != nil {
		return database.Translate(result.Error, fmt.Sprintf("update author %d", author.ID))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("author %d: %w", author.ID, catalog.ErrNotFound)
	}
	return nil
}

// Delete removes an author that no book references.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var books int64
		if err := tx.Model(&entities.Book{}).Where("author_id = ?", id).Count(&books).Error; err != nil {
			return err
		}
		if books > 0 {
			return fmt.Errorf("author %d has %d books: %w", id, books, catalog.ErrReferentialRestrict)
		}

		result := tx.Delete(&entities.Author{}, id)
		if result.Error != nil {
			return database.Translate(result.Error, fmt.Sprintf("delete author %d", id))
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("author %d: %w", id, catalog.ErrNotFound)
		}
		return nil
	})
}
