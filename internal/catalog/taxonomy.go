package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/entities"
)

const (
	msgGenreExists    = "Genre already exists (case insensitive match)"
	msgLanguageExists = "Language already exists (case insensitive match)"
)

// namedKind describes one of the name-only tables.
type namedKind struct {
	entity    string
	limit     int
	duplicate string
}

var (
	genreKind    = namedKind{entity: "genre", limit: MaxGenreNameLength, duplicate: msgGenreExists}
	languageKind = namedKind{entity: "language", limit: MaxLanguageNameLength, duplicate: msgLanguageExists}
)

// checkName validates name and rejects it when another row already uses it
// in any letter case.
func checkName[T any](ctx context.Context, store NamedStore[T], kind namedKind, name string, excludeID uint) error {
	if err := ValidateName(name, kind.limit); err != nil {
		return err
	}
	taken, err := store.NameTaken(ctx, name, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check %s name: %w", kind.entity, err)
	}
	if taken {
		return NewFieldError("name", ErrDuplicateName, kind.duplicate)
	}
	return nil
}

func createNamed[T any](ctx context.Context, s *Service, id access.Identity, store NamedStore[T], kind namedKind, name string, build func(string) *T) (*T, error) {
	if err := access.Authorize(id, access.ManageInventory); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if err := checkName(ctx, store, kind, name, 0); err != nil {
		return nil, err
	}

	item := build(name)
	if err := store.Create(ctx, item); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return nil, NewFieldError("name", ErrDuplicateName, kind.duplicate)
		}
		return nil, fmt.Errorf("failed to create %s: %w", kind.entity, err)
	}

	s.record(ctx, id, entities.AuditEventCreate, kind.entity, "", "Created "+kind.entity+" "+name)
	return item, nil
}

func renameNamed[T any](ctx context.Context, s *Service, id access.Identity, store NamedStore[T], kind namedKind, itemID uint, name string) error {
	if err := access.Authorize(id, access.ManageInventory); err != nil {
		return err
	}
	if _, err := store.Get(ctx, itemID); err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	if err := checkName(ctx, store, kind, name, itemID); err != nil {
		return err
	}
	if err := store.Rename(ctx, itemID, name); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return NewFieldError("name", ErrDuplicateName, kind.duplicate)
		}
		return fmt.Errorf("failed to rename %s %d: %w", kind.entity, itemID, err)
	}

	s.record(ctx, id, entities.AuditEventUpdate, kind.entity, strconv.FormatUint(uint64(itemID), 10), "Renamed "+kind.entity+" to "+name)
	return nil
}

func (s *Service) CreateGenre(ctx context.Context, id access.Identity, name string) (*entities.Genre, error) {
	return createNamed(ctx, s, id, s.stores.Genres, genreKind, name, func(n string) *entities.Genre {
		return &entities.Genre{Name: n}
	})
}

func (s *Service) RenameGenre(ctx context.Context, id access.Identity, genreID uint, name string) error {
	return renameNamed(ctx, s, id, s.stores.Genres, genreKind, genreID, name)
}

func (s *Service) ListGenres(ctx context.Context) ([]entities.Genre, error) {
	return s.stores.Genres.List(ctx)
}

func (s *Service) CreateLanguage(ctx context.Context, id access.Identity, name string) (*entities.Language, error) {
	return createNamed(ctx, s, id, s.stores.Languages, languageKind, name, func(n string) *entities.Language {
		return &entities.Language{Name: n}
	})
}

func (s *Service) RenameLanguage(ctx context.Context, id access.Identity, languageID uint, name string) error {
	return renameNamed(ctx, s, id, s.stores.Languages, languageKind, languageID, name)
}

func (s *Service) ListLanguages(ctx context.Context) ([]entities.Language, error) {
	return s.stores.Languages.List(ctx)
}
