package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/locallibrary/internal/entities"
)

// Stores return errors wrapping ErrNotFound for missing rows,
// ErrDuplicateName for unique violations and ErrReferentialRestrict when a
// delete is blocked by dependent rows.

type AuthorStore interface {
	List(ctx context.Context, offset, limit int) ([]entities.Author, error)
	Count(ctx context.Context) (int64, error)
	Get(ctx context.Context, id uint) (*entities.Author, error)
	Create(ctx context.Context, author *entities.Author) error
	Update(ctx context.Context, author *entities.Author) error
	Delete(ctx context.Context, id uint) error
}

type BookStore interface {
	List(ctx context.Context, offset, limit int) ([]entities.Book, error)
	Count(ctx context.Context) (int64, error)
	CountTitleContaining(ctx context.Context, fragment string) (int64, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]entities.Book, error)
	Get(ctx context.Context, id uint) (*entities.Book, error)
	ISBNTaken(ctx context.Context, isbn string, excludeID uint) (bool, error)
	Create(ctx context.Context, book *entities.Book) error
	Update(ctx context.Context, book *entities.Book) error
	Delete(ctx context.Context, id uint) error
}

// LoanFilter narrows instance listings. A nil BorrowerID means any borrower.
type LoanFilter struct {
	Status     entities.LoanStatus
	BorrowerID *uint
}

type InstanceStore interface {
	Get(ctx context.Context, id uuid.UUID) (*entities.BookInstance, error)
	Create(ctx context.Context, instance *entities.BookInstance) error
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status entities.LoanStatus) (int64, error)
	ListByBook(ctx context.Context, bookID uint) ([]entities.BookInstance, error)
	ListLoans(ctx context.Context, filter LoanFilter, offset, limit int) ([]entities.BookInstance, error)
	CountLoans(ctx context.Context, filter LoanFilter) (int64, error)
	UpdateDueBack(ctx context.Context, id uuid.UUID, dueBack time.Time) error
	UpdateLoan(ctx context.Context, id uuid.UUID, status entities.LoanStatus, borrowerID *uint, dueBack *time.Time) error
}

type ReviewStore interface {
	Create(ctx context.Context, review *entities.Review) error
	ListByBook(ctx context.Context, bookID uint) ([]entities.Review, error)
}

// NamedStore is the shared shape of the genre and language tables.
type NamedStore[T any] interface {
	List(ctx context.Context) ([]T, error)
	Count(ctx context.Context) (int64, error)
	Get(ctx context.Context, id uint) (*T, error)
	FindByIDs(ctx context.Context, ids []uint) ([]T, error)
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
	Create(ctx context.Context, item *T) error
	Rename(ctx context.Context, id uint, name string) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*entities.User, error)
}

// AuditRecorder receives a note for every successful catalog change.
type AuditRecorder interface {
	RecordChange(ctx context.Context, userID uint, eventType entities.AuditEventType, entityType, entityID, description string)
}

// VisitCounter is the per-session visit counter shown on the home page.
type VisitCounter interface {
	IncrementVisits(ctx context.Context) (int, error)
}
