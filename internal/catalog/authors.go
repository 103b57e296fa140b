package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/entities"
	"github.com/mrlokans/locallibrary/internal/pagination"
)

// AuthorDetail is an author with the books attributed to them.
type AuthorDetail struct {
	Author entities.Author `json:"author"`
	Books  []entities.Book `json:"books"`
}

// ListAuthors returns one page of authors ordered by last then first name.
func (s *Service) ListAuthors(ctx context.Context, page int) (pagination.Page[entities.Author], error) {
	p, total, err := pageParams(page, AuthorsPageSize, func() (int64, error) {
		return s.stores.Authors.Count(ctx)
	})
	if err != nil {
		return pagination.Page[entities.Author]{}, err
	}

	authors, err := s.stores.Authors.List(ctx, p.Offset(), p.Limit())
	if err != nil {
		return pagination.Page[entities.Author]{}, fmt.Errorf("failed to list authors: %w", err)
	}
	return pagination.NewPage(authors, p, total), nil
}

func (s *Service) GetAuthor(ctx context.Context, id uint) (*AuthorDetail, error) {
	author, err := s.stores.Authors.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	books, err := s.stores.Books.ListByAuthor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list books for author %d: %w", id, err)
	}
	return &AuthorDetail{Author: *author, Books: books}, nil
}

func (s *Service) CreateAuthor(ctx context.Context, id access.Identity, in AuthorInput) (*entities.Author, error) {
	if err := access.Authorize(id, access.CreateAuthor); err != nil {
		return nil, err
	}

	in = normalizeAuthor(in)
	if err := ValidateAuthor(in); err != nil {
		return nil, err
	}

	author := &entities.Author{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DateOfBirth: in.DateOfBirth,
		DateOfDeath: in.DateOfDeath,
	}
	if err := s.stores.Authors.Create(ctx, author); err != nil {
		return nil, fmt.Errorf("failed to create author: %w", err)
	}

	s.record(ctx, id, entities.AuditEventCreate, "author", strconv.FormatUint(uint64(author.ID), 10), "Created author "+author.FullName())
	return author, nil
}

func (s *Service) UpdateAuthor(ctx context.Context, id access.Identity, authorID uint, in AuthorInput) (*entities.Author, error) {
	if err := access.Authorize(id, access.UpdateAuthor); err != nil {
		return nil, err
	}

	author, err := s.stores.Authors.Get(ctx, authorID)
	if err != nil {
		return nil, err
	}

	in = normalizeAuthor(in)
	if err := ValidateAuthor(in); err != nil {
		return nil, err
	}

	author.FirstName = in.FirstName
	author.LastName = in.LastName
	author.DateOfBirth = in.DateOfBirth
	author.DateOfDeath = in.DateOfDeath
	if err := s.stores.Authors.Update(ctx, author); err != nil {
		return nil, fmt.Errorf("failed to update author %d: %w", authorID, err)
	}

	s.record(ctx, id, entities.AuditEventUpdate, "author", strconv.FormatUint(uint64(authorID), 10), "Updated author "+author.FullName())
	return author, nil
}

// DeleteAuthor removes an author with no books. While any book references the
// author the error wraps ErrReferentialRestrict and nothing is removed.
func (s *Service) DeleteAuthor(ctx context.Context, id access.Identity, authorID uint) error {
	if err := access.Authorize(id, access.DeleteAuthor); err != nil {
		return err
	}

	author, err := s.stores.Authors.Get(ctx, authorID)
	if err != nil {
		return err
	}
	if err := s.stores.Authors.Delete(ctx, authorID); err != nil {
		return fmt.Errorf("failed to delete author %d: %w", authorID, err)
	}

	s.record(ctx, id, entities.AuditEventDelete, "author", strconv.FormatUint(uint64(authorID), 10), "Deleted author "+author.FullName())
	return nil
}
