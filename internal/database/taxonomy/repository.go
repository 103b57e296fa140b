// Package taxonomy provides database operations for the name-only genre and
// language tables.
package taxonomy

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/database"
	"github.com/mrlokans/locallibrary/internal/entities"
)

var (
	_ catalog.NamedStore[entities.Genre]    = (*Repository[entities.Genre])(nil)
	_ catalog.NamedStore[entities.Language] = (*Repository[entities.Language])(nil)
)

// Repository works on any table with an id and a name column.
type Repository[T any] struct {
	db     *gorm.DB
	entity string
}

func NewGenreRepository(db *gorm.DB) *Repository[entities.Genre] {
	return &Repository[entities.Genre]{db: db, entity: "genre"}
}

func NewLanguageRepository(db *gorm.DB) *Repository[entities.Language] {
	return &Repository[entities.Language]{db: db, entity: "language"}
}

func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error
	return items, err
}

func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(new(T)).Count(&count).Error
	return count, err
}

func (r *Repository[T]) Get(ctx context.Context, id uint) (*T, error) {
	item := new(T)
	if err := r.db.WithContext(ctx).First(item, id).Error; err != nil {
		return nil, database.Translate(err, fmt.Sprintf("%s %d", r.entity, id))
	}
	return item, nil
}

// FindByIDs returns the rows that exist among ids. Missing ids are skipped.
func (r *Repository[T]) FindByIDs(ctx context.Context, ids []uint) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	var items []T
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&items).Error
	return items, err
}

// NameTaken compares folded names, ignoring the row excludeID.
func (r *Repository[T]) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(new(T)).
		Where("name_key = ? AND id <> ?", entities.FoldName(name), excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository[T]) Create(ctx context.Context, item *T) error {
	return database.Translate(r.db.WithContext(ctx).Create(item).Error, "create "+r.entity)
}

func (r *Repository[T]) Rename(ctx context.Context, id uint, name string) error {
	result := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(map[string]any{
		"name":     name,
		"name_key": entities.FoldName(name),
	})
	if result.Error != nil {
		return database.Translate(result.Error, fmt.Sprintf("rename %s %d", r.entity, id))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", r.entity, id, catalog.ErrNotFound)
	}
	return nil
}
