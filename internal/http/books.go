package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/entities"
)

const booksPath = "/catalog/books/"

type BooksController struct {
	catalog *catalog.Service
}

func NewBooksController(svc *catalog.Service) *BooksController {
	return &BooksController{catalog: svc}
}

func bookPath(id uint) string {
	return fmt.Sprintf("/catalog/book/%d", id)
}

func (controller *BooksController) List(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	books, err := controller.catalog.ListBooks(c.Request.Context(), page)
	if err != nil {
		respondCatalogError(c, err, "list books")
		return
	}
	respond(c, http.StatusOK, "book_list.html", gin.H{"Page": books}, books)
}

func (controller *BooksController) Detail(c *gin.Context) {
	id, ok := parseIDParam(c, "Book")
	if !ok {
		return
	}
	controller.renderDetail(c, http.StatusOK, id, newFormState(nil, nil))
}

func (controller *BooksController) renderDetail(c *gin.Context, status int, id uint, review formState) {
	detail, err := controller.catalog.GetBook(c.Request.Context(), id)
	if err != nil {
		respondCatalogError(c, err, "get book")
		return
	}
	respond(c, status, "book_detail.html", gin.H{
		"Book":       detail.Book,
		"Instances":  detail.Instances,
		"Reviews":    detail.Reviews,
		"Today":      controller.catalog.Today(),
		"ReviewForm": review,
	}, detail)
}

// Review adds a review from the signed-in reader and returns to the book.
func (controller *BooksController) Review(c *gin.Context) {
	id, ok := parseIDParam(c, "Book")
	if !ok {
		return
	}

	in := catalog.ReviewInput{BookID: id, Content: c.PostForm("content")}
	var fe fieldErrors
	if raw := strings.TrimSpace(c.PostForm("grade")); raw == "" {
		fe.add(catalog.NewFieldError("grade", catalog.ErrRequired, "This field is required."))
	} else if grade, err := strconv.ParseFloat(raw, 64); err != nil {
		fe.add(catalog.NewFieldError("grade", catalog.ErrInvalidFormat, "Enter a number."))
	} else {
		in.Grade = grade
	}

	var err error
	if len(fe) > 0 {
		err = fe.merge(catalog.ValidateReview(in))
	} else {
		var review *entities.Review
		review, err = controller.catalog.CreateReview(c.Request.Context(), callerIdentity(c), in)
		if err == nil {
			redirectOrJSON(c, bookPath(id), http.StatusCreated, review)
			return
		}
	}

	if !errors.Is(err, catalog.ErrValidation) {
		respondCatalogError(c, err, "create review")
		return
	}
	if isAPI(c) {
		respondInvalid(c, "", nil, err)
		return
	}
	controller.renderDetail(c, http.StatusOK, id, newFormState(c.Request.PostForm, err))
}

func (controller *BooksController) CreateForm(c *gin.Context) {
	controller.renderForm(c, http.StatusOK, "/catalog/book/create/", newFormState(nil, nil), nil)
}

func (controller *BooksController) Create(c *gin.Context) {
	in, err := parseBookForm(c)
	if err == nil {
		var book *entities.Book
		book, err = controller.catalog.CreateBook(c.Request.Context(), callerIdentity(c), in)
		if err == nil {
			redirectOrJSON(c, bookPath(book.ID), http.StatusCreated, book)
			return
		}
	}
	controller.failForm(c, "/catalog/book/create/", err)
}

func (controller *BooksController) UpdateForm(c *gin.Context) {
	id, ok := parseIDParam(c, "Book")
	if !ok {
		return
	}
	detail, err := controller.catalog.GetBook(c.Request.Context(), id)
	if err != nil {
		respondCatalogError(c, err, "get book")
		return
	}
	controller.renderForm(c, http.StatusOK, c.Request.URL.Path, newFormState(bookValues(detail.Book), nil), nil)
}

func (controller *BooksController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "Book")
	if !ok {
		return
	}
	in, err := parseBookForm(c)
	if err == nil {
		var book *entities.Book
		book, err = controller.catalog.UpdateBook(c.Request.Context(), callerIdentity(c), id, in)
		if err == nil {
			redirectOrJSON(c, bookPath(book.ID), http.StatusOK, book)
			return
		}
	}
	controller.failForm(c, c.Request.URL.Path, err)
}

func (controller *BooksController) DeleteConfirm(c *gin.Context) {
	id, ok := parseIDParam(c, "Book")
	if !ok {
		return
	}
	detail, err := controller.catalog.GetBook(c.Request.Context(), id)
	if err != nil {
		respondCatalogError(c, err, "get book")
		return
	}
	respond(c, http.StatusOK, "book_confirm_delete.html", gin.H{
		"Book":      detail.Book,
		"Instances": detail.Instances,
		"Reviews":   detail.Reviews,
	}, detail)
}

// Delete removes the book. Copies or reviews of the book block the delete and
// are listed on the confirmation page.
func (controller *BooksController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "Book")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	detail, err := controller.catalog.GetBook(ctx, id)
	if err != nil {
		respondCatalogError(c, err, "get book")
		return
	}

	err = controller.catalog.DeleteBook(ctx, callerIdentity(c), id)
	if err == nil {
		redirectOrJSON(c, booksPath, http.StatusOK, gin.H{"deleted": id})
		return
	}
	respondDeleteFailed(c, "book_confirm_delete.html", gin.H{
		"Book":      detail.Book,
		"Instances": detail.Instances,
		"Reviews":   detail.Reviews,
	}, err, "This book cannot be deleted while it has copies or reviews.")
}

func (controller *BooksController) renderForm(c *gin.Context, status int, action string, form formState, err error) {
	choices, choicesErr := controller.catalog.BookFormChoices(c.Request.Context())
	if choicesErr != nil {
		respondCatalogError(c, choicesErr, "book form choices")
		return
	}
	data := gin.H{
		"Action":  action,
		"Form":    form,
		"Choices": choices,
	}
	if err != nil {
		respondInvalid(c, "book_form.html", data, err)
		return
	}
	respond(c, status, "book_form.html", data, choices)
}

func (controller *BooksController) failForm(c *gin.Context, action string, err error) {
	if !errors.Is(err, catalog.ErrValidation) {
		respondCatalogError(c, err, "save book")
		return
	}
	controller.renderForm(c, http.StatusOK, action, newFormState(c.Request.PostForm, err), err)
}

// parseBookForm reads the submitted book. Reference ids that are not numbers
// are reported like ids that do not exist.
func parseBookForm(c *gin.Context) (catalog.BookInput, error) {
	var fe fieldErrors
	in := catalog.BookInput{
		Title:   c.PostForm("title"),
		Summary: c.PostForm("summary"),
		ISBN:    c.PostForm("isbn"),
	}

	if raw := strings.TrimSpace(c.PostForm("author")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			fe.add(catalog.InvalidChoiceError("author"))
		} else {
			authorID := uint(id)
			in.AuthorID = &authorID
		}
	}
	in.GenreIDs = parseIDList(c.PostFormArray("genre"), "genre", &fe)
	in.LanguageIDs = parseIDList(c.PostFormArray("language"), "language", &fe)

	if len(fe) > 0 {
		return in, fe.merge(catalog.ValidateBook(in))
	}
	return in, nil
}

func parseIDList(raw []string, field string, fe *fieldErrors) []uint {
	ids := make([]uint, 0, len(raw))
	for _, value := range raw {
		id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
		if err != nil {
			fe.add(catalog.InvalidChoiceError(field))
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

func bookValues(b entities.Book) url.Values {
	values := url.Values{}
	values.Set("title", b.Title)
	values.Set("summary", b.Summary)
	values.Set("isbn", b.ISBN)
	if b.AuthorID != nil {
		values.Set("author", strconv.FormatUint(uint64(*b.AuthorID), 10))
	}
	for _, g := range b.Genres {
		values.Add("genre", strconv.FormatUint(uint64(g.ID), 10))
	}
	for _, l := range b.Languages {
		values.Add("language", strconv.FormatUint(uint64(l.ID), 10))
	}
	return values
}
