// Package books provides database operations for catalog books.
//
// Genres and languages are stored in the book_genres and book_languages
// join tables and are replaced wholesale on every save.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.Get(ctx, 123)
package books

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/database"
	"github.com/mrlokans/locallibrary/internal/entities"
)

var _ catalog.BookStore = (*Repository)(nil)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns books ordered by title with their authors loaded.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.WithContext(ctx).
		Preload("Author").
		Order("title ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&books).Error
	return books, err
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Book{}).Count(&count).Error
	return count, err
}

// CountTitleContaining counts books whose title contains fragment in any case.
func (r *Repository) CountTitleContaining(ctx context.Context, fragment string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.Book{}).
		Where("LOWER(title) LIKE ?", "%"+strings.ToLower(fragment)+"%").
		Count(&count).Error
	return count, err
}

func (r *Repository) ListByAuthor(ctx context.Context, authorID uint) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("title ASC").
		Find(&books).Error
	return books, err
}

// Get retrieves a book with its author, genres and languages.
func (r *Repository) Get(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Genres", func(db *gorm.DB) *gorm.DB {
			return db.Order("genres.name ASC")
		}).
		Preload("Languages", func(db *gorm.DB) *gorm.DB {
			return db.Order("languages.name ASC")
		}).
		First(&book, id).Error
	if err != nil {
		return nil, database.Translate(err, fmt.Sprintf("book %d", id))
	}
	return &book, nil
}

// ISBNTaken reports whether another book already uses isbn.
func (r *Repository) ISBNTaken(ctx context.Context, isbn string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.Book{}).
		Where("isbn = ? AND id <> ?", isbn, excludeID).
		Count(&count).Error
	return count > 0, err
}

// Create inserts the book and links its genres and languages.
func (r *Repository) Create(ctx context.Context, book *entities.Book) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(book).Error; err != nil {
			return err
		}
		return replaceTaxonomy(tx, book)
	})
	return database.Translate(err, "create book")
}

// Update overwrites the scalar columns and the genre and language links.
func (r *Repository) Update(ctx context.Context, book *entities.Book) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(book).
			Select("title", "summary", "isbn", "author_id", "updated_at").
			Omit(clause.Associations).
			Updates(book)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return replaceTaxonomy(tx, book)
	})
	return database.Translate(err, fmt.Sprintf("update book %d", book.ID))
}

func replaceTaxonomy(tx *gorm.DB, book *entities.Book) error {
	if err := replaceAssociation(tx, book, "Genres", book.Genres, len(book.Genres)); err != nil {
		return fmt.Errorf("failed to link genres: %w", err)
	}
	if err := replaceAssociation(tx, book, "Languages", book.Languages, len(book.Languages)); err != nil {
		return fmt.Errorf("failed to link languages: %w", err)
	}
	return nil
}

func replaceAssociation(tx *gorm.DB, book *entities.Book, name string, values any, n int) error {
	if n == 0 {
		return tx.Model(book).Association(name).Clear()
	}
	return tx.Model(book).Association(name).Replace(values)
}

// Delete removes a book that has no copies and no reviews.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var instances, reviews int64
		if err := tx.Model(&entities.BookInstance{}).Where("book_id = ?", id).Count(&instances).Error; err != nil {
			return err
		}
		if err := tx.Model(&entities.Review{}).Where("book_id = ?", id).Count(&reviews).Error; err != nil {
			return err
		}
		if instances > 0 || reviews > 0 {
			return fmt.Errorf("book %d has %d copies and %d reviews: %w", id, instances, reviews, catalog.ErrReferentialRestrict)
		}

		book := &entities.Book{ID: id}
		if err := tx.Model(book).Association("Genres").Clear(); err != nil {
			return err
		}
		if err := tx.Model(book).Association("Languages").Clear(); err != nil {
			return err
		}

		result := tx.Delete(&entities.Book{}, id)
		if result.Error != nil {
			return database.Translate(result.Error, fmt.Sprintf("delete book %d", id))
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("book %d: %w", id, catalog.ErrNotFound)
		}
		return nil
	})
}
