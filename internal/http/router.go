package http

import (
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/auth"
	"github.com/mrlokans/locallibrary/internal/catalog"
)

const hstsMaxAge = 31536000

// TemplateFuncs are the helpers available to every page.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"can": func(id access.Identity, op string) bool {
			return access.Can(id, access.Operation(op))
		},
		"formatDate": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format(catalog.RenewalDateLayout)
		},
		"formatTime": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("Jan. 2, 2006, 3:04 p.m.")
		},
		"idString": func(id uint) string {
			return fmt.Sprint(id)
		},
		"add": func(a, b int) int {
			return a + b
		},
		"subtract": func(a, b int) int {
			return a - b
		},
	}
}

// LoadTemplates parses every page under dir.
func LoadTemplates(dir string) (*template.Template, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}
	return template.New("").Funcs(TemplateFuncs()).ParseFiles(files...)
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware(hstsMaxAge))
	}

	if cfg.Throttle != nil {
		router.Use(cfg.Throttle.Middleware())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	}

	tmpl := cfg.Templates
	if tmpl == nil {
		var err error
		tmpl, err = LoadTemplates(cfg.TemplatesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}
	}
	router.SetHTMLTemplate(tmpl)

	if cfg.StaticPath != "" {
		router.Static("/static", cfg.StaticPath)
	}

	gate := func(op access.Operation) gin.HandlerFunc {
		return requireOperation(cfg.AuthMiddleware, op)
	}

	if cfg.AuthService != nil && cfg.SessionManager != nil {
		authController := cfg.AuthController
		if authController == nil {
			authController = auth.NewAuthController(cfg.AuthService, cfg.SessionManager, tmpl, cfg.AuthConfig, cfg.AuthRecorder)
		}
		authController.RegisterRoutes(router)
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)

	index := NewIndexController(cfg.Catalog, cfg.SessionManager)
	authors := NewAuthorsController(cfg.Catalog)
	books := NewBooksController(cfg.Catalog)
	loans := NewLoansController(cfg.Catalog)

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, auth.HomePath)
	})

	catalogGroup := router.Group("/catalog")
	{
		catalogGroup.GET("/", index.Home)

		catalogGroup.GET("/books/", books.List)
		catalogGroup.GET("/book/:id", books.Detail)
		catalogGroup.GET("/book/create/", gate(access.CreateBook), books.CreateForm)
		catalogGroup.POST("/book/create/", gate(access.CreateBook), books.Create)
		catalogGroup.GET("/book/:id/update/", gate(access.UpdateBook), books.UpdateForm)
		catalogGroup.POST("/book/:id/update/", gate(access.UpdateBook), books.Update)
		catalogGroup.GET("/book/:id/delete/", gate(access.DeleteBook), books.DeleteConfirm)
		catalogGroup.POST("/book/:id/delete/", gate(access.DeleteBook), books.Delete)
		catalogGroup.POST("/book/:id/review/", gate(access.CreateReview), books.Review)

		// Copies are addressed by UUID under the same prefix as books.
		catalogGroup.GET("/book/:id/renew/", gate(access.RenewLoan), loans.RenewForm)
		catalogGroup.POST("/book/:id/renew/", gate(access.RenewLoan), loans.Renew)
		catalogGroup.POST("/book/:id/return/", gate(access.ManageInventory), loans.Return)

		catalogGroup.GET("/authors/", authors.List)
		catalogGroup.GET("/author/:id", authors.Detail)
		catalogGroup.GET("/author/create/", gate(access.CreateAuthor), authors.CreateForm)
		catalogGroup.POST("/author/create/", gate(access.CreateAuthor), authors.Create)
		catalogGroup.GET("/author/:id/update/", gate(access.UpdateAuthor), authors.UpdateForm)
		catalogGroup.POST("/author/:id/update/", gate(access.UpdateAuthor), authors.Update)
		catalogGroup.GET("/author/:id/delete/", gate(access.DeleteAuthor), authors.DeleteConfirm)
		catalogGroup.POST("/author/:id/delete/", gate(access.DeleteAuthor), authors.Delete)

		catalogGroup.GET("/mybooks/", gate(access.ViewOwnLoans), loans.Mine)
		catalogGroup.GET("/staff/allbooks", gate(access.ViewAllLoans), loans.All)
	}

	return router, nil
}

// requireOperation gates a route. Without an auth middleware every caller is
// anonymous, so the gate still applies.
func requireOperation(m *auth.Middleware, op access.Operation) gin.HandlerFunc {
	if m != nil {
		return m.RequireOperation(op)
	}
	return (&auth.Middleware{}).RequireOperation(op)
}
