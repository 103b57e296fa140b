package http

import (
	"html/template"

	"github.com/mrlokans/locallibrary/internal/auth"
	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/config"
	"github.com/mrlokans/locallibrary/internal/database"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Catalog  *catalog.Service
	Database *database.Database

	// Authentication. A nil SessionManager serves every request as anonymous.
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware
	AuthConfig     config.Auth
	AuthRecorder   auth.AuthRecorder
	// AuthController is built from the fields above when nil.
	AuthController *auth.AuthController

	// CSRF protection is skipped when the secret is empty.
	CSRFSecret    []byte
	SecureCookies bool

	// Per-client request throttle (optional)
	Throttle *auth.Throttle

	// UI paths. Templates, when set, is used instead of parsing TemplatesPath.
	TemplatesPath string
	StaticPath    string
	Templates     *template.Template

	// Application info
	Version string
}
