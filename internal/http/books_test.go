package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/locallibrary/internal/catalog"
)

func TestBookList(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 12; i++ {
		app.book(t, fmt.Sprintf("Volume %02d", i), fmt.Sprintf("97800000000%02d", i), nil)
	}

	w := app.get(t, "/catalog/books/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, strings.Count(w.Body.String(), "[Volume"))
	assert.Contains(t, w.Body.String(), "page 1 of 2")

	w = app.get(t, "/catalog/books/?page=2", nil)
	assert.Equal(t, 2, strings.Count(w.Body.String(), "[Volume"))

	w = app.get(t, "/catalog/books/?page=3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookDetail(t *testing.T) {
	app := newTestApp(t)
	book := app.book(t, "Dune", "9780441013593", nil)
	app.copyOf(t, book)
	app.copyOf(t, book)

	w := app.get(t, bookPath(book.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "title=Dune copies=2 reviews=0")

	w = app.do(t, request{path: bookPath(book.ID), json: true})
	assert.Equal(t, http.StatusOK, w.Code)
	var detail catalog.BookDetail
	decodeJSON(t, w, &detail)
	assert.Equal(t, "9780441013593", detail.Book.ISBN)
	assert.Len(t, detail.Instances, 2)

	for _, path := range []string{"/catalog/book/999", "/catalog/book/abc", "/catalog/book/0"} {
		w = app.get(t, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestBookCreate(t *testing.T) {
	app := newTestApp(t)
	author := app.author(t, "Frank", "Herbert")
	app.author(t, "Isaac", "Asimov")
	cookies := app.login(t, "librarian")

	w := app.get(t, "/catalog/book/create/", cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "action=/catalog/book/create/ authors=2")

	w = app.post(t, "/catalog/book/create/", url.Values{
		"title":   {"Dune"},
		"summary": {"Spice."},
		"isbn":    {"9780441013593"},
		"author":  {fmt.Sprint(author.ID)},
	}, cookies)
	require.Equal(t, http.StatusFound, w.Code)

	list, err := app.catalog.ListBooks(app.ctx, 1)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, bookPath(list.Items[0].ID), w.Header().Get("Location"))
	require.NotNil(t, list.Items[0].AuthorID)
	assert.Equal(t, author.ID, *list.Items[0].AuthorID)
}

func TestBookCreateValidation(t *testing.T) {
	app := newTestApp(t)
	app.book(t, "Dune", "9780441013593", nil)
	cookies := app.login(t, "librarian")

	t.Run("author that is not a number", func(t *testing.T) {
		w := app.post(t, "/catalog/book/create/", url.Values{
			"title":   {"Children of Dune"},
			"summary": {"More spice."},
			"isbn":    {"9780441104024"},
			"author":  {"abc"},
		}, cookies)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "title=Children of Dune")
		assert.Contains(t, w.Body.String(), "author: Select a valid choice.")
	})

	t.Run("author that does not exist", func(t *testing.T) {
		w := app.post(t, "/catalog/book/create/", url.Values{
			"title":   {"Children of Dune"},
			"summary": {"More spice."},
			"isbn":    {"9780441104024"},
			"author":  {"999"},
		}, cookies)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "author: Select a valid choice.")
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		w := app.post(t, "/catalog/book/create/", url.Values{
			"title":   {"Dune again"},
			"summary": {"Spice."},
			"isbn":    {"9780441013593"},
		}, cookies)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "isbn: Book with this ISBN already exists.")
	})

	t.Run("missing fields for JSON clients", func(t *testing.T) {
		w := app.do(t, request{
			method:  http.MethodPost,
			path:    "/catalog/book/create/",
			form:    url.Values{"title": {"Untitled"}},
			cookies: cookies,
			json:    true,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var resp struct {
			Details map[string]string `json:"details"`
		}
		decodeJSON(t, w, &resp)
		assert.Equal(t, "This field is required.", resp.Details["summary"])
		assert.Equal(t, "This field is required.", resp.Details["isbn"])
	})

	list, err := app.catalog.ListBooks(app.ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestBookUpdate(t *testing.T) {
	app := newTestApp(t)
	book := app.book(t, "Dune", "9780441013593", nil)
	cookies := app.login(t, "librarian")
	path := fmt.Sprintf("/catalog/book/%d/update/", book.ID)

	w := app.get(t, path, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "title=Dune")

	w = app.post(t, path, url.Values{
		"title":   {"Dune (Deluxe Edition)"},
		"summary": {"Spice."},
		"isbn":    {"9780441013593"},
	}, cookies)
	assert.Equal(t, http.StatusFound, w.Code, "keeping its own isbn is not a duplicate")
	assert.Equal(t, bookPath(book.ID), w.Header().Get("Location"))

	detail, err := app.catalog.GetBook(app.ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune (Deluxe Edition)", detail.Book.Title)
}

func TestBookDeleteGuard(t *testing.T) {
	app := newTestApp(t)
	held := app.book(t, "Dune", "9780441013593", nil)
	app.copyOf(t, held)
	spare := app.book(t, "Foundation", "9780553293357", nil)
	cookies := app.login(t, "librarian")

	w := app.post(t, fmt.Sprintf("/catalog/book/%d/delete/", held.ID), nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "delete Dune error=This book cannot be deleted")

	_, err := app.catalog.GetBook(app.ctx, held.ID)
	assert.NoError(t, err)

	w = app.post(t, fmt.Sprintf("/catalog/book/%d/delete/", spare.ID), nil, cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/catalog/books/", w.Header().Get("Location"))

	_, err = app.catalog.GetBook(app.ctx, spare.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestBookReview(t *testing.T) {
	app := newTestApp(t)
	book := app.book(t, "Dune", "9780441013593", nil)
	reviewPath := fmt.Sprintf("/catalog/book/%d/review/", book.ID)

	w := app.post(t, reviewPath, url.Values{"content": {"Great"}, "grade": {"9"}}, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/accounts/login/"), "anonymous readers sign in first")

	cookies := app.login(t, "reader")

	tests := []struct {
		name  string
		grade string
		want  string
	}{
		{"above range", "10.5", "grade: Ensure this value is between 0.0 and 10.0."},
		{"below range", "-1", "grade: Ensure this value is between 0.0 and 10.0."},
		{"not a number", "abc", "grade: Enter a number."},
		{"missing", "", "grade: This field is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.post(t, reviewPath, url.Values{"content": {"Great"}, "grade": {tt.grade}}, cookies)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), "reviews=0")
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}

	w = app.post(t, reviewPath, url.Values{"content": {"Great"}, "grade": {"10"}}, cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, bookPath(book.ID), w.Header().Get("Location"))

	w = app.get(t, bookPath(book.ID), nil)
	assert.Contains(t, w.Body.String(), "reviews=1")

	w = app.post(t, "/catalog/book/999/review/", url.Values{"content": {"Great"}, "grade": {"5"}}, cookies)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
