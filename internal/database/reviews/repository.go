// Package reviews provides database operations for book reviews.
package reviews

import (
	"context"

	"gorm.io/gorm"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/database"
	"github.com/mrlokans/locallibrary/internal/entities"
)

var _ catalog.ReviewStore = (*Repository)(nil)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, review *entities.Review) error {
	err := r.db.WithContext(ctx).Omit("Book").Create(review).Error
	return database.Translate(err, "create review")
}

// ListByBook returns the reviews of a book, newest first.
func (r *Repository) ListByBook(ctx context.Context, bookID uint) ([]entities.Review, error) {
	var reviews []entities.Review
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("publish_date DESC").
		Order("id DESC").
		Find(&reviews).Error
	return reviews, err
}
