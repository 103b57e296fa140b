package taxonomy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/config"
	"github.com/mrlokans/locallibrary/internal/database"
	"github.com/mrlokans/locallibrary/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(config.Database{
		Driver:   config.DriverSQLite,
		Path:     filepath.Join(t.TempDir(), "taxonomy.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.DB
}

func TestGenreRepository(t *testing.T) {
	repo := NewGenreRepository(setupTestDB(t))
	ctx := context.Background()

	fantasy := &entities.Genre{Name: "Fantasy"}
	require.NoError(t, repo.Create(ctx, fantasy))
	require.NoError(t, repo.Create(ctx, &entities.Genre{Name: "Biography"}))

	t.Run("duplicate in another case", func(t *testing.T) {
		err := repo.Create(ctx, &entities.Genre{Name: "FANTASY"})
		assert.ErrorIs(t, err, catalog.ErrDuplicateName)

		taken, err := repo.NameTaken(ctx, "fAnTaSy", 0)
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.NameTaken(ctx, "fantasy", fantasy.ID)
		require.NoError(t, err)
		assert.False(t, taken, "a row never collides with itself")
	})

	t.Run("list sorted by name", func(t *testing.T) {
		genres, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, genres, 2)
		assert.Equal(t, "Biography", genres[0].Name)
	})

	t.Run("find by ids skips missing", func(t *testing.T) {
		found, err := repo.FindByIDs(ctx, []uint{fantasy.ID, 999})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Fantasy", found[0].Name)

		none, err := repo.FindByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("rename", func(t *testing.T) {
		require.NoError(t, repo.Rename(ctx, fantasy.ID, "High Fantasy"))
		got, err := repo.Get(ctx, fantasy.ID)
		require.NoError(t, err)
		assert.Equal(t, "High Fantasy", got.Name)

		taken, err := repo.NameTaken(ctx, "high fantasy", 0)
		require.NoError(t, err)
		assert.True(t, taken, "the folded key follows the new name")
		taken, err = repo.NameTaken(ctx, "fantasy", 0)
		require.NoError(t, err)
		assert.False(t, taken)

		var biography entities.Genre
		require.NoError(t, repo.db.Where("name = ?", "Biography").First(&biography).Error)
		assert.ErrorIs(t, repo.Rename(ctx, biography.ID, "HIGH FANTASY"), catalog.ErrDuplicateName)

		assert.ErrorIs(t, repo.Rename(ctx, 999, "x"), catalog.ErrNotFound)
		_, err = repo.Get(ctx, 999)
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})
}

func TestLanguageRepository(t *testing.T) {
	repo := NewLanguageRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.Language{Name: "English"}))
	assert.ErrorIs(t, repo.Create(ctx, &entities.Language{Name: "english"}), catalog.ErrDuplicateName)

	for _, pair := range [][2]string{
		{"Español", "ESPAÑOL"},
		{"Ελληνικά", "ΕΛΛΗΝΙΚΆ"},
		{"Русский", "русский"},
	} {
		require.NoError(t, repo.Create(ctx, &entities.Language{Name: pair[0]}), pair[0])
		assert.ErrorIs(t, repo.Create(ctx, &entities.Language{Name: pair[1]}), catalog.ErrDuplicateName, pair[1])

		taken, err := repo.NameTaken(ctx, pair[1], 0)
		require.NoError(t, err)
		assert.True(t, taken, pair[1])
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
