package catalog_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/config"
	"github.com/mrlokans/locallibrary/internal/database"
	"github.com/mrlokans/locallibrary/internal/database/authors"
	"github.com/mrlokans/locallibrary/internal/database/books"
	"github.com/mrlokans/locallibrary/internal/database/instances"
	"github.com/mrlokans/locallibrary/internal/database/reviews"
	"github.com/mrlokans/locallibrary/internal/database/taxonomy"
	"github.com/mrlokans/locallibrary/internal/database/users"
	"github.com/mrlokans/locallibrary/internal/entities"
)

type recordedChange struct {
	UserID     uint
	EventType  entities.AuditEventType
	EntityType string
	EntityID   string
}

type auditSpy struct {
	mu      sync.Mutex
	changes []recordedChange
}

func (a *auditSpy) RecordChange(_ context.Context, userID uint, eventType entities.AuditEventType, entityType, entityID, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changes = append(a.changes, recordedChange{userID, eventType, entityType, entityID})
}

type visitCounter struct{ n int }

func (v *visitCounter) IncrementVisits(context.Context) (int, error) {
	v.n++
	return v.n, nil
}

type harness struct {
	svc       *catalog.Service
	users     *users.Repository
	instances *instances.Repository
	audit     *auditSpy
	now       time.Time
	ctx       context.Context

	librarian access.Identity
	reader    access.Identity
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.NewDatabase(config.Database{
		Driver:   config.DriverSQLite,
		Path:     filepath.Join(t.TempDir(), "catalog.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		users:     users.NewRepository(db.DB),
		instances: instances.NewRepository(db.DB),
		audit:     &auditSpy{},
		now:       time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		ctx:       context.Background(),
	}
	h.svc = catalog.NewService(catalog.Stores{
		Authors:   authors.NewRepository(db.DB),
		Books:     books.NewRepository(db.DB),
		Instances: h.instances,
		Reviews:   reviews.NewRepository(db.DB),
		Genres:    taxonomy.NewGenreRepository(db.DB),
		Languages: taxonomy.NewLanguageRepository(db.DB),
		Users:     h.users,
	},
		catalog.WithClock(func() time.Time { return h.now }),
		catalog.WithAuditRecorder(h.audit),
	)

	librarian := &entities.User{Username: "librarian"}
	require.NoError(t, h.users.Create(h.ctx, librarian))
	require.NoError(t, h.users.GrantPermissions(h.ctx, librarian.ID,
		entities.PermCanMarkReturned,
		entities.PermAddAuthor, entities.PermChangeAuthor, entities.PermDeleteAuthor,
		entities.PermAddBook, entities.PermChangeBook, entities.PermDeleteBook))
	reader := &entities.User{Username: "reader"}
	require.NoError(t, h.users.Create(h.ctx, reader))

	h.librarian = h.identity(t, librarian.ID)
	h.reader = h.identity(t, reader.ID)
	return h
}

func (h *harness) identity(t *testing.T, id uint) access.Identity {
	t.Helper()
	u, err := h.users.GetByID(h.ctx, id)
	require.NoError(t, err)
	return access.FromUser(u)
}

func (h *harness) today() time.Time {
	return catalog.Date(h.now)
}

func (h *harness) book(t *testing.T, title, isbn string, authorID *uint) *entities.Book {
	t.Helper()
	b, err := h.svc.CreateBook(h.ctx, h.librarian, catalog.BookInput{
		Title: title, Summary: "A summary.", ISBN: isbn, AuthorID: authorID,
	})
	require.NoError(t, err)
	return b
}

// lend creates a copy of book and lends it to borrower until today+offset.
func (h *harness) lend(t *testing.T, book *entities.Book, borrower access.Identity, offset int) *entities.BookInstance {
	t.Helper()
	instance, err := h.svc.CreateInstance(h.ctx, h.librarian, catalog.InstanceInput{
		BookID: book.ID, Imprint: "First edition", Status: entities.LoanStatusAvailable,
	})
	require.NoError(t, err)
	due := h.today().AddDate(0, 0, offset)
	lent, err := h.svc.LendInstance(h.ctx, h.librarian, instance.ID, borrower.UserID, &due)
	require.NoError(t, err)
	return lent
}

func TestReviewGradeBoundary(t *testing.T) {
	h := newHarness(t)

	author, err := h.svc.CreateAuthor(h.ctx, h.librarian, catalog.AuthorInput{FirstName: "A", LastName: "Author"})
	require.NoError(t, err)
	assert.Nil(t, author.DateOfBirth)

	book := h.book(t, "B", "0000000000001", &author.ID)

	_, err = h.svc.CreateReview(h.ctx, access.Anonymous(), catalog.ReviewInput{BookID: book.ID, Content: "Loved it", Grade: 10.0})
	assert.ErrorIs(t, err, access.ErrAuthenticationRequired)

	review, err := h.svc.CreateReview(h.ctx, h.reader, catalog.ReviewInput{BookID: book.ID, Content: "Loved it", Grade: 10.0})
	require.NoError(t, err)
	assert.NotZero(t, review.ID)
	require.NotNil(t, review.PublishDate)
	assert.Equal(t, h.now, *review.PublishDate)

	_, err = h.svc.CreateReview(h.ctx, h.reader, catalog.ReviewInput{BookID: book.ID, Content: "Too much", Grade: 10.1})
	assert.ErrorIs(t, err, catalog.ErrOutOfRange)

	_, err = h.svc.CreateReview(h.ctx, h.reader, catalog.ReviewInput{BookID: 999, Content: "x", Grade: 1})
	assert.ErrorIs(t, err, catalog.ErrInvalidChoice)

	stored, err := h.svc.ListReviews(h.ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRenewalWorkflow(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "9780441013593", nil)
	instance := h.lend(t, book, h.reader, 3)

	form, err := h.svc.RenewalForm(h.ctx, h.librarian, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, h.today().AddDate(0, 0, 21), form.ProposedDate)
	assert.Equal(t, catalog.RenewalDateHelp, form.HelpText)

	renewed, err := h.svc.SubmitRenewal(h.ctx, h.librarian, instance.ID, h.today().AddDate(0, 0, 14))
	require.NoError(t, err)
	require.NotNil(t, renewed.DueBack)
	assert.Equal(t, h.today().AddDate(0, 0, 14), *renewed.DueBack)

	_, err = h.svc.SubmitRenewal(h.ctx, h.librarian, instance.ID, h.today().AddDate(0, 0, -1))
	assert.ErrorIs(t, err, catalog.ErrPastDate)

	_, err = h.svc.SubmitRenewal(h.ctx, h.librarian, instance.ID, h.today().AddDate(0, 0, 29))
	assert.ErrorIs(t, err, catalog.ErrTooFarAhead)

	stored, err := h.instances.Get(h.ctx, instance.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DueBack)
	assert.True(t, stored.DueBack.Equal(h.today().AddDate(0, 0, 14)), "rejected renewals leave due_back unchanged")
	assert.Equal(t, entities.LoanStatusOnLoan, stored.Status)
}

func TestRenewalAccess(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "9780441013593", nil)
	instance := h.lend(t, book, h.reader, 3)

	_, err := h.svc.RenewalForm(h.ctx, access.Anonymous(), instance.ID)
	assert.ErrorIs(t, err, access.ErrAuthenticationRequired)

	_, err = h.svc.SubmitRenewal(h.ctx, h.reader, instance.ID, h.today())
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	_, err = h.svc.RenewalForm(h.ctx, access.Anonymous(), uuid.New())
	assert.ErrorIs(t, err, access.ErrAuthenticationRequired, "identity is checked before the lookup")

	_, err = h.svc.RenewalForm(h.ctx, h.librarian, uuid.New())
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestLoanListings(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "9780441013593", nil)

	late := h.lend(t, book, h.reader, 20)
	soon := h.lend(t, book, h.reader, 2)
	h.lend(t, book, h.librarian, 5)

	mine, err := h.svc.ListMyLoans(h.ctx, h.reader, 1)
	require.NoError(t, err)
	require.Len(t, mine.Items, 2)
	assert.Equal(t, soon.ID, mine.Items[0].ID)
	assert.Equal(t, late.ID, mine.Items[1].ID)

	_, err = h.svc.ListMyLoans(h.ctx, access.Anonymous(), 1)
	assert.ErrorIs(t, err, access.ErrAuthenticationRequired)

	_, err = h.svc.ListAllLoans(h.ctx, h.reader, 1)
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	all, err := h.svc.ListAllLoans(h.ctx, h.librarian, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	returned, err := h.svc.ReturnInstance(h.ctx, h.librarian, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LoanStatusAvailable, returned.Status)
	assert.Nil(t, returned.DueBack)

	mine, err = h.svc.ListMyLoans(h.ctx, h.reader, 1)
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)
}

func TestLendInstanceValidatesDueDate(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "9780441013593", nil)
	instance, err := h.svc.CreateInstance(h.ctx, h.librarian, catalog.InstanceInput{BookID: book.ID, Imprint: "Ace"})
	require.NoError(t, err)
	assert.Equal(t, entities.LoanStatusMaintenance, instance.Status)

	tooLate := h.today().AddDate(0, 0, 40)
	_, err = h.svc.LendInstance(h.ctx, h.librarian, instance.ID, h.reader.UserID, &tooLate)
	assert.ErrorIs(t, err, catalog.ErrTooFarAhead)

	lent, err := h.svc.LendInstance(h.ctx, h.librarian, instance.ID, h.reader.UserID, nil)
	require.NoError(t, err)
	assert.Equal(t, h.today().AddDate(0, 0, catalog.DefaultRenewalDays), *lent.DueBack)

	_, err = h.svc.LendInstance(h.ctx, h.librarian, instance.ID, 999, nil)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = h.svc.CreateInstance(h.ctx, h.reader, catalog.InstanceInput{BookID: book.ID, Imprint: "Ace"})
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
}

func TestAuthorPagination(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 7; i++ {
		_, err := h.svc.CreateAuthor(h.ctx, h.librarian, catalog.AuthorInput{
			FirstName: "First", LastName: fmt.Sprintf("Last%02d", i),
		})
		require.NoError(t, err)
	}

	first, err := h.svc.ListAuthors(h.ctx, 1)
	require.NoError(t, err)
	assert.Len(t, first.Items, catalog.AuthorsPageSize)
	assert.True(t, first.HasNext)
	assert.Equal(t, 2, first.NumPages)

	second, err := h.svc.ListAuthors(h.ctx, 2)
	require.NoError(t, err)
	assert.Len(t, second.Items, 2)
	assert.False(t, second.HasNext)

	_, err = h.svc.ListAuthors(h.ctx, 3)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = h.svc.ListAuthors(h.ctx, 0)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestEmptyListingsHaveOnePage(t *testing.T) {
	h := newHarness(t)

	page, err := h.svc.ListBooks(h.ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.NumPages)
}

func TestAuthorLifecycle(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateAuthor(h.ctx, h.librarian, catalog.AuthorInput{
		FirstName:   "Jane",
		LastName:    "Austen",
		DateOfBirth: ptr(time.Date(1817, 7, 18, 0, 0, 0, 0, time.UTC)),
		DateOfDeath: ptr(time.Date(1775, 12, 16, 0, 0, 0, 0, time.UTC)),
	})
	assert.ErrorIs(t, err, catalog.ErrInvalidDateOrder)

	_, err = h.svc.CreateAuthor(h.ctx, h.reader, catalog.AuthorInput{FirstName: "Jane", LastName: "Austen"})
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	author, err := h.svc.CreateAuthor(h.ctx, h.librarian, catalog.AuthorInput{FirstName: " Jane ", LastName: "Austen"})
	require.NoError(t, err)
	assert.Equal(t, "Jane", author.FirstName)

	updated, err := h.svc.UpdateAuthor(h.ctx, h.librarian, author.ID, catalog.AuthorInput{
		FirstName:   "Jane",
		LastName:    "Austen",
		DateOfBirth: ptr(time.Date(1775, 12, 16, 9, 30, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(1775, 12, 16, 0, 0, 0, 0, time.UTC), *updated.DateOfBirth)

	book := h.book(t, "Emma", "9780141439587", &author.ID)

	detail, err := h.svc.GetAuthor(h.ctx, author.ID)
	require.NoError(t, err)
	require.Len(t, detail.Books, 1)
	assert.Equal(t, "Emma", detail.Books[0].Title)

	err = h.svc.DeleteAuthor(h.ctx, h.librarian, author.ID)
	assert.ErrorIs(t, err, catalog.ErrReferentialRestrict)
	_, err = h.svc.GetAuthor(h.ctx, author.ID)
	require.NoError(t, err, "blocked delete keeps the author")

	require.NoError(t, h.svc.DeleteBook(h.ctx, h.librarian, book.ID))
	require.NoError(t, h.svc.DeleteAuthor(h.ctx, h.librarian, author.ID))

	_, err = h.svc.GetAuthor(h.ctx, author.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	err = h.svc.DeleteAuthor(h.ctx, access.Anonymous(), 12345)
	assert.ErrorIs(t, err, access.ErrAuthenticationRequired)
}

func TestBookValidation(t *testing.T) {
	h := newHarness(t)
	genre, err := h.svc.CreateGenre(h.ctx, h.librarian, "Science Fiction")
	require.NoError(t, err)

	missing := uint(404)
	_, err = h.svc.CreateBook(h.ctx, h.librarian, catalog.BookInput{
		Title:    "Dune",
		Summary:  "Spice",
		ISBN:     "9780441013593",
		AuthorID: &missing,
		GenreIDs: []uint{genre.ID, 999},
	})
	ve, ok := catalog.AsValidation(err)
	require.True(t, ok)
	fields := ve.FieldErrors()
	assert.Contains(t, fields, "author")
	assert.Contains(t, fields, "genre")

	book, err := h.svc.CreateBook(h.ctx, h.librarian, catalog.BookInput{
		Title: "Dune", Summary: "Spice", ISBN: "9780441013593", GenreIDs: []uint{genre.ID, genre.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Science Fiction"}, book.GenreNames())

	_, err = h.svc.CreateBook(h.ctx, h.librarian, catalog.BookInput{Title: "Other", Summary: "s", ISBN: "9780441013593"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)

	_, err = h.svc.UpdateBook(h.ctx, h.librarian, book.ID, catalog.BookInput{Title: "Dune", Summary: "Spice", ISBN: "9780441013593"})
	require.NoError(t, err, "a book keeps its own isbn")

	detail, err := h.svc.GetBook(h.ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Book.Genres)
}

func TestBookDeleteGuard(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "9780441013593", nil)
	h.lend(t, book, h.reader, 3)

	err := h.svc.DeleteBook(h.ctx, h.librarian, book.ID)
	assert.ErrorIs(t, err, catalog.ErrReferentialRestrict)

	detail, err := h.svc.GetBook(h.ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Instances, 1)
}

func TestGenreAndLanguageNames(t *testing.T) {
	h := newHarness(t)

	fantasy, err := h.svc.CreateGenre(h.ctx, h.librarian, "Fantasy")
	require.NoError(t, err)

	_, err = h.svc.CreateGenre(h.ctx, h.librarian, "fantasy")
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)

	_, err = h.svc.CreateGenre(h.ctx, h.reader, "Horror")
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	require.NoError(t, h.svc.RenameGenre(h.ctx, h.librarian, fantasy.ID, "FANTASY"), "renaming to a new case of its own name is allowed")

	_, err = h.svc.CreateLanguage(h.ctx, h.librarian, "English")
	require.NoError(t, err)
	_, err = h.svc.CreateLanguage(h.ctx, h.librarian, "ENGLISH")
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)

	_, err = h.svc.CreateLanguage(h.ctx, h.librarian, "Español")
	require.NoError(t, err)
	_, err = h.svc.CreateLanguage(h.ctx, h.librarian, "ESPAÑOL")
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)

	_, err = h.svc.CreateLanguage(h.ctx, h.librarian, "   ")
	assert.ErrorIs(t, err, catalog.ErrRequired)

	genres, err := h.svc.ListGenres(h.ctx)
	require.NoError(t, err)
	require.Len(t, genres, 1)
	assert.Equal(t, "FANTASY", genres[0].Name)
}

func TestBookFormChoices(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 7; i++ {
		_, err := h.svc.CreateAuthor(h.ctx, h.librarian, catalog.AuthorInput{FirstName: "First", LastName: fmt.Sprintf("Last%d", i)})
		require.NoError(t, err)
	}
	_, err := h.svc.CreateGenre(h.ctx, h.librarian, "Fantasy")
	require.NoError(t, err)

	choices, err := h.svc.BookFormChoices(h.ctx)
	require.NoError(t, err)
	assert.Len(t, choices.Authors, 7, "the form lists every author, not one page")
	assert.Len(t, choices.Genres, 1)
	assert.Empty(t, choices.Languages)
}

func TestCatalogSummary(t *testing.T) {
	h := newHarness(t)
	h.book(t, "The Hobbit", "1", nil)
	dune := h.book(t, "Dune", "2", nil)
	h.lend(t, dune, h.reader, 3)
	_, err := h.svc.CreateInstance(h.ctx, h.librarian, catalog.InstanceInput{BookID: dune.ID, Imprint: "Ace", Status: entities.LoanStatusAvailable})
	require.NoError(t, err)
	_, err = h.svc.CreateGenre(h.ctx, h.librarian, "Fantasy")
	require.NoError(t, err)

	visits := &visitCounter{}
	sum, err := h.svc.CatalogSummary(h.ctx, visits)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.NumBooks)
	assert.Equal(t, int64(2), sum.NumInstances)
	assert.Equal(t, int64(1), sum.NumInstancesAvailable)
	assert.Equal(t, int64(0), sum.NumAuthors)
	assert.Equal(t, int64(1), sum.NumGenres)
	assert.Equal(t, int64(1), sum.NumBooksContainingThe)
	assert.Equal(t, 1, sum.NumVisits)

	sum, err = h.svc.CatalogSummary(h.ctx, visits)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.NumVisits)

	sum, err = h.svc.CatalogSummary(h.ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, sum.NumVisits)
}

func TestChangesAreAudited(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "9780441013593", nil)
	h.lend(t, book, h.reader, 3)

	h.audit.mu.Lock()
	defer h.audit.mu.Unlock()

	require.NotEmpty(t, h.audit.changes)
	assert.Equal(t, entities.AuditEventCreate, h.audit.changes[0].EventType)
	assert.Equal(t, "book", h.audit.changes[0].EntityType)
	assert.Equal(t, h.librarian.UserID, h.audit.changes[0].UserID)

	last := h.audit.changes[len(h.audit.changes)-1]
	assert.Equal(t, entities.AuditEventLoan, last.EventType)
	assert.Equal(t, "book_instance", last.EntityType)
}

func ptr[T any](v T) *T {
	return &v
}
