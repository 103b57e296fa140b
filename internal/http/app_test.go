package http

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/auth"
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

const testPassword = "correct-horse-battery"

// pageTemplates print just enough of each page for assertions.
const pageTemplates = `
{{define "index.html"}}books={{.Summary.NumBooks}} available={{.Summary.NumInstancesAvailable}} visits={{.Summary.NumVisits}}{{end}}
{{define "book_list.html"}}{{range .Page.Items}}[{{.Title}}]{{end}} page {{.Page.Number}} of {{.Page.NumPages}}{{end}}
{{define "book_detail.html"}}title={{.Book.Title}} copies={{len .Instances}} reviews={{len .Reviews}}{{range $f, $m := .ReviewForm.Errors}} {{$f}}: {{$m}}{{end}}{{end}}
{{define "book_form.html"}}action={{.Action}} authors={{len .Choices.Authors}} title={{.Form.Get "title"}}{{range $f, $m := .Form.Errors}} {{$f}}: {{$m}}{{end}}{{end}}
{{define "book_confirm_delete.html"}}delete {{.Book.Title}}{{with .Error}} error={{.}}{{end}}{{end}}
{{define "author_list.html"}}{{range .Page.Items}}[{{.FullName}}]{{end}} page {{.Page.Number}} of {{.Page.NumPages}}{{end}}
{{define "author_detail.html"}}author={{.Author.FullName}} books={{len .Books}}{{end}}
{{define "author_form.html"}}action={{.Action}} first={{.Form.Get "first_name"}}{{range $f, $m := .Form.Errors}} {{$f}}: {{$m}}{{end}}{{end}}
{{define "author_confirm_delete.html"}}delete {{.Author.FullName}}{{with .Error}} error={{.}}{{end}}{{end}}
{{define "bookinstance_list_borrowed_user.html"}}{{range .Page.Items}}[{{.Book.Title}} {{formatDate .DueBack}}]{{end}}{{end}}
{{define "bookinstance_list_borrowed_all.html"}}{{range .Page.Items}}[{{.Book.Title}} {{with .Borrower}}{{.Username}}{{end}}]{{end}}{{end}}
{{define "book_renew_librarian.html"}}renew {{.Instance.ID}} date={{.Form.Get "renewal_date"}}{{range $f, $m := .Form.Errors}} {{$f}}: {{$m}}{{end}}{{end}}
{{define "error.html"}}error {{.Status}}: {{.Message}}{{end}}
{{define "login.html"}}login{{end}}
{{define "setup.html"}}setup{{end}}
`

type testApp struct {
	router    *gin.Engine
	catalog   *catalog.Service
	users     *users.Repository
	instances *instances.Repository
	ctx       context.Context

	librarian *entities.User
	reader    *entities.User
}

type appOptions struct {
	templates  *template.Template
	staticPath string
	csrfSecret []byte
	// stores, when set, replaces the repositories the catalog uses.
	stores func(catalog.Stores) catalog.Stores
}

func newTestApp(t *testing.T) *testApp {
	return newTestAppWith(t, appOptions{})
}

func newTestAppWith(t *testing.T, opts appOptions) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(config.Database{
		Driver:   config.DriverSQLite,
		Path:     filepath.Join(t.TempDir(), "http.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	authCfg := config.Auth{SessionLifetime: time.Hour, BcryptCost: 4}
	userRepo := users.NewRepository(db.DB)
	authService := auth.NewService(userRepo, authCfg)
	sessions, err := auth.NewSessionManager(sqlDB, config.DriverSQLite, authCfg)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	instanceRepo := instances.NewRepository(db.DB)
	stores := catalog.Stores{
		Authors:   authors.NewRepository(db.DB),
		Books:     books.NewRepository(db.DB),
		Instances: instanceRepo,
		Reviews:   reviews.NewRepository(db.DB),
		Genres:    taxonomy.NewGenreRepository(db.DB),
		Languages: taxonomy.NewLanguageRepository(db.DB),
		Users:     userRepo,
	}
	if opts.stores != nil {
		stores = opts.stores(stores)
	}
	svc := catalog.NewService(stores, catalog.WithClock(func() time.Time { return now }))

	tmpl := opts.templates
	if tmpl == nil {
		tmpl = template.Must(template.New("").Funcs(TemplateFuncs()).Parse(pageTemplates))
	}

	authController := auth.NewAuthController(authService, sessions, tmpl, authCfg, nil)
	t.Cleanup(authController.Stop)

	router, err := NewRouter(RouterConfig{
		Catalog:        svc,
		Database:       db,
		AuthService:    authService,
		SessionManager: sessions,
		AuthMiddleware: auth.NewMiddleware(authService, sessions),
		AuthConfig:     authCfg,
		AuthController: authController,
		CSRFSecret:     opts.csrfSecret,
		Templates:      tmpl,
		StaticPath:     opts.staticPath,
		Version:        "test",
	})
	require.NoError(t, err)

	app := &testApp{
		router:    router,
		catalog:   svc,
		users:     userRepo,
		instances: instanceRepo,
		ctx:       context.Background(),
	}

	app.librarian, err = authService.CreateUser(app.ctx, "librarian", "", testPassword, false)
	require.NoError(t, err)
	require.NoError(t, userRepo.GrantPermissions(app.ctx, app.librarian.ID,
		entities.PermCanMarkReturned,
		entities.PermAddAuthor, entities.PermChangeAuthor, entities.PermDeleteAuthor,
		entities.PermAddBook, entities.PermChangeBook, entities.PermDeleteBook))
	app.reader, err = authService.CreateUser(app.ctx, "reader", "", testPassword, false)
	require.NoError(t, err)

	return app
}

// request describes one call against the router.
type request struct {
	method  string
	path    string
	form    url.Values
	cookies []*http.Cookie
	json    bool
}

func (a *testApp) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	method := r.method
	if method == "" {
		method = http.MethodGet
	}

	var req *http.Request
	if r.form != nil {
		req = httptest.NewRequest(method, r.path, strings.NewReader(r.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, r.path, nil)
	}
	if r.json {
		req.Header.Set("Accept", "application/json")
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) get(t *testing.T, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, request{path: path, cookies: cookies})
}

func (a *testApp) post(t *testing.T, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	return a.do(t, request{method: http.MethodPost, path: path, form: form, cookies: cookies})
}

// login signs username in and returns the session cookie.
func (a *testApp) login(t *testing.T, username string) []*http.Cookie {
	t.Helper()
	w := a.post(t, auth.LoginPath, url.Values{
		"username": {username},
		"password": {testPassword},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code, "login should redirect")

	var session []*http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			session = append(session, c)
		}
	}
	require.NotEmpty(t, session, "login should set the session cookie")
	return session
}

func (a *testApp) author(t *testing.T, first, last string) *entities.Author {
	t.Helper()
	author, err := a.catalog.CreateAuthor(a.ctx, access.System(), catalog.AuthorInput{FirstName: first, LastName: last})
	require.NoError(t, err)
	return author
}

func (a *testApp) book(t *testing.T, title, isbn string, authorID *uint) *entities.Book {
	t.Helper()
	book, err := a.catalog.CreateBook(a.ctx, access.System(), catalog.BookInput{
		Title: title, Summary: "A summary.", ISBN: isbn, AuthorID: authorID,
	})
	require.NoError(t, err)
	return book
}

func (a *testApp) copyOf(t *testing.T, book *entities.Book) *entities.BookInstance {
	t.Helper()
	instance, err := a.catalog.CreateInstance(a.ctx, access.System(), catalog.InstanceInput{
		BookID: book.ID, Imprint: "First edition", Status: entities.LoanStatusAvailable,
	})
	require.NoError(t, err)
	return instance
}

// lend puts a new copy of book on loan to borrower, due in days.
func (a *testApp) lend(t *testing.T, book *entities.Book, borrower *entities.User, days int) *entities.BookInstance {
	t.Helper()
	instance := a.copyOf(t, book)
	due := a.catalog.Today().AddDate(0, 0, days)
	lent, err := a.catalog.LendInstance(a.ctx, access.System(), instance.ID, borrower.ID, &due)
	require.NoError(t, err)
	return lent
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
