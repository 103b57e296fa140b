package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/entities"
	"github.com/mrlokans/locallibrary/internal/pagination"
)

const (
	msgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."
	msgISBNTaken     = "Book with this ISBN already exists."
)

// BookDetail is a book with its copies and reviews.
type BookDetail struct {
	Book      entities.Book           `json:"book"`
	Instances []entities.BookInstance `json:"instances"`
	Reviews   []entities.Review       `json:"reviews"`
}

func (s *Service) ListBooks(ctx context.Context, page int) (pagination.Page[entities.Book], error) {
	p, total, err := pageParams(page, BooksPageSize, func() (int64, error) {
		return s.stores.Books.Count(ctx)
	})
	if err != nil {
		return pagination.Page[entities.Book]{}, err
	}

	books, err := s.stores.Books.List(ctx, p.Offset(), p.Limit())
	if err != nil {
		return pagination.Page[entities.Book]{}, fmt.Errorf("failed to list books: %w", err)
	}
	return pagination.NewPage(books, p, total), nil
}

func (s *Service) GetBook(ctx context.Context, id uint) (*BookDetail, error) {
	book, err := s.stores.Books.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	instances, err := s.stores.Instances.ListByBook(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list copies of book %d: %w", id, err)
	}
	reviews, err := s.stores.Reviews.ListByBook(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews of book %d: %w", id, err)
	}
	return &BookDetail{Book: *book, Instances: instances, Reviews: reviews}, nil
}

func (s *Service) CreateBook(ctx context.Context, id access.Identity, in BookInput) (*entities.Book, error) {
	if err := access.Authorize(id, access.CreateBook); err != nil {
		return nil, err
	}

	book := &entities.Book{}
	if err := s.applyBookInput(ctx, book, normalizeBook(in)); err != nil {
		return nil, err
	}
	if err := s.stores.Books.Create(ctx, book); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return nil, NewFieldError("isbn", ErrDuplicateName, msgISBNTaken)
		}
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	s.record(ctx, id, entities.AuditEventCreate, "book", strconv.FormatUint(uint64(book.ID), 10), "Created book "+book.Title)
	return book, nil
}

func (s *Service) UpdateBook(ctx context.Context, id access.Identity, bookID uint, in BookInput) (*entities.Book, error) {
	if err := access.Authorize(id, access.UpdateBook); err != nil {
		return nil, err
	}

	book, err := s.stores.Books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if err := s.applyBookInput(ctx, book, normalizeBook(in)); err != nil {
		return nil, err
	}
	if err := s.stores.Books.Update(ctx, book); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return nil, NewFieldError("isbn", ErrDuplicateName, msgISBNTaken)
		}
		return nil, fmt.Errorf("failed to update book %d: %w", bookID, err)
	}

	s.record(ctx, id, entities.AuditEventUpdate, "book", strconv.FormatUint(uint64(bookID), 10), "Updated book "+book.Title)
	return book, nil
}

// DeleteBook removes a book without copies or reviews. Otherwise the error
// wraps ErrReferentialRestrict and nothing is removed.
func (s *Service) DeleteBook(ctx context.Context, id access.Identity, bookID uint) error {
	if err := access.Authorize(id, access.DeleteBook); err != nil {
		return err
	}

	book, err := s.stores.Books.Get(ctx, bookID)
	if err != nil {
		return err
	}
	if err := s.stores.Books.Delete(ctx, bookID); err != nil {
		return fmt.Errorf("failed to delete book %d: %w", bookID, err)
	}

	s.record(ctx, id, entities.AuditEventDelete, "book", strconv.FormatUint(uint64(bookID), 10), "Deleted book "+book.Title)
	return nil
}

// applyBookInput validates in, resolves its references and copies it onto book.
// All field problems, including unknown references, come back in one ValidationError.
func (s *Service) applyBookInput(ctx context.Context, book *entities.Book, in BookInput) error {
	v := &validator{}
	if err := mergeValidation(v, ValidateBook(in)); err != nil {
		return err
	}

	var author *entities.Author
	if in.AuthorID != nil {
		a, err := s.stores.Authors.Get(ctx, *in.AuthorID)
		switch {
		case errors.Is(err, ErrNotFound):
			v.add("author", ErrInvalidChoice, msgInvalidChoice)
		case err != nil:
			return err
		default:
			author = a
		}
	}

	genres, err := s.stores.Genres.FindByIDs(ctx, in.GenreIDs)
	if err != nil {
		return fmt.Errorf("failed to load genres: %w", err)
	}
	v.check(len(genres) == len(in.GenreIDs), "genre", ErrInvalidChoice, msgInvalidChoice)

	languages, err := s.stores.Languages.FindByIDs(ctx, in.LanguageIDs)
	if err != nil {
		return fmt.Errorf("failed to load languages: %w", err)
	}
	v.check(len(languages) == len(in.LanguageIDs), "language", ErrInvalidChoice, msgInvalidChoice)

	if in.ISBN != "" {
		taken, err := s.stores.Books.ISBNTaken(ctx, in.ISBN, book.ID)
		if err != nil {
			return fmt.Errorf("failed to check isbn: %w", err)
		}
		v.check(!taken, "isbn", ErrDuplicateName, msgISBNTaken)
	}

	if err := v.err(); err != nil {
		return err
	}

	book.Title = in.Title
	book.Summary = in.Summary
	book.ISBN = in.ISBN
	book.AuthorID = in.AuthorID
	book.Author = author
	book.Genres = genres
	book.Languages = languages
	return nil
}

// BookChoices are the options offered by the book form.
type BookChoices struct {
	Authors   []entities.Author   `json:"authors"`
	Genres    []entities.Genre    `json:"genres"`
	Languages []entities.Language `json:"languages"`
}

// BookFormChoices loads every author, genre and language for the book form.
func (s *Service) BookFormChoices(ctx context.Context) (*BookChoices, error) {
	authors, err := s.stores.Authors.List(ctx, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to list authors: %w", err)
	}
	genres, err := s.stores.Genres.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	languages, err := s.stores.Languages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}
	return &BookChoices{Authors: authors, Genres: genres, Languages: languages}, nil
}

// InvalidChoiceError is the field error for a reference that does not exist.
func InvalidChoiceError(field string) error {
	return NewFieldError(field, ErrInvalidChoice, msgInvalidChoice)
}
