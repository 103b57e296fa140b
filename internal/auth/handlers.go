package auth

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/locallibrary/internal/config"
)

// HomePath is where logins land when no local next page was given.
const HomePath = "/catalog/"

// setupMutex serializes setup requests so two of them cannot both create the first user.
var setupMutex sync.Mutex

// AuthRecorder receives login, logout and setup attempts for the audit trail.
type AuthRecorder interface {
	LogAuth(ctx context.Context, userID uint, action, ipAddr string, err error)
}

// isLocalPath validates that a redirect path is local to prevent open redirect attacks.
func isLocalPath(path string) bool {
	if path == "" {
		return false
	}

	if !strings.HasPrefix(path, "/") {
		return false
	}

	// Protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}

	if strings.Contains(path, "://") {
		return false
	}

	if strings.Contains(path, "\\") {
		return false
	}

	return true
}

// sanitizeRedirectPath returns path when it is local and HomePath otherwise.
func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return HomePath
}

// AuthController serves the login, logout and first-run setup pages.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	templates      *template.Template
	limiter        *LoginLimiter
	recorder       AuthRecorder
}

// NewAuthController creates the controller. templates may be nil, in which
// case every page is answered with JSON. recorder may be nil.
func NewAuthController(service *Service, sessionManager *SessionManager, templates *template.Template, cfg config.Auth, recorder AuthRecorder) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		templates:      templates,
		limiter:        NewLoginLimiter(cfg),
		recorder:       recorder,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	router.GET(LoginPath, ac.LoginPage)
	router.POST(LoginPath, ac.limiter.Middleware(), ac.Login)
	router.POST("/accounts/logout/", ac.Logout)
	router.GET("/setup", ac.SetupPage)
	router.POST("/setup", ac.Setup)
}

// Stop ends the limiter's cleanup goroutine.
func (ac *AuthController) Stop() {
	ac.limiter.Stop()
}

func (ac *AuthController) LoginPage(c *gin.Context) {
	next := sanitizeRedirectPath(c.Query("next"))

	if IsAuthenticated(c) {
		c.Redirect(http.StatusFound, next)
		return
	}

	hasUsers, err := ac.service.HasUsers(c.Request.Context())
	if err == nil && !hasUsers {
		c.Redirect(http.StatusFound, "/setup")
		return
	}

	ac.render(c, http.StatusOK, "login.html", gin.H{
		"Title": "Login",
		"Next":  next,
		"Error": c.Query("error"),
	})
}

// Login checks the submitted credentials, starts a session and returns the
// browser to next.
func (ac *AuthController) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	next := sanitizeRedirectPath(c.PostForm("next"))
	clientIP := c.ClientIP()
	ctx := c.Request.Context()

	user, err := ac.service.Authenticate(ctx, username, password)
	if err != nil {
		ac.limiter.RecordFailure(clientIP, username)
		ac.record(ctx, 0, "login", clientIP, err)

		if !errors.Is(err, ErrUserNotFound) && !errors.Is(err, ErrInvalidPassword) && !errors.Is(err, ErrAccountLocked) {
			log.Printf("Login failed for %q: %v", username, err)
		}

		msg := "Your username and password didn't match. Please try again."
		if errors.Is(err, ErrAccountLocked) {
			msg = "Account is locked. Please try again later."
		}
		status := http.StatusOK
		if IsAPIRequest(c) {
			status = http.StatusUnauthorized
		}
		ac.render(c, status, "login.html", gin.H{
			"Title":    "Login",
			"Next":     next,
			"Username": username,
			"Error":    msg,
		})
		return
	}

	ac.limiter.RecordSuccess(clientIP, username)

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			log.Printf("Failed to create session for %s: %v", user.Username, err)
			ac.render(c, http.StatusInternalServerError, "login.html", gin.H{
				"Title":    "Login",
				"Next":     next,
				"Username": username,
				"Error":    "Failed to create session",
			})
			return
		}
	}
	ac.record(ctx, user.ID, "login", clientIP, nil)

	if IsAPIRequest(c) {
		c.JSON(http.StatusOK, gin.H{"username": user.Username, "next": next})
		return
	}
	c.Redirect(http.StatusFound, next)
}

// Logout destroys the session and returns to the catalog.
func (ac *AuthController) Logout(c *gin.Context) {
	userID := GetUserID(c)
	if ac.sessionManager != nil {
		if err := ac.sessionManager.DestroySession(c.Request); err != nil {
			log.Printf("Failed to destroy session: %v", err)
		}
	}
	if userID != 0 {
		ac.record(c.Request.Context(), userID, "logout", c.ClientIP(), nil)
	}

	if IsAPIRequest(c) {
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
		return
	}
	c.Redirect(http.StatusFound, HomePath)
}

// SetupPage renders the first superuser form while the user table is empty.
func (ac *AuthController) SetupPage(c *gin.Context) {
	hasUsers, err := ac.service.HasUsers(c.Request.Context())
	if err != nil {
		log.Printf("Failed to count users: %v", err)
		ac.render(c, http.StatusInternalServerError, "setup.html", gin.H{
			"Title": "Initial Setup",
			"Error": "Database error. Please try again.",
		})
		return
	}
	if hasUsers {
		c.Redirect(http.StatusFound, LoginPath)
		return
	}

	ac.render(c, http.StatusOK, "setup.html", gin.H{
		"Title": "Initial Setup",
		"Error": c.Query("error"),
	})
}

// Setup creates the first superuser and signs them in.
func (ac *AuthController) Setup(c *gin.Context) {
	setupMutex.Lock()
	defer setupMutex.Unlock()

	ctx := c.Request.Context()
	hasUsers, err := ac.service.HasUsers(ctx)
	if err != nil {
		log.Printf("Failed to count users: %v", err)
		ac.render(c, http.StatusInternalServerError, "setup.html", gin.H{
			"Title": "Initial Setup",
			"Error": "Database error. Please try again.",
		})
		return
	}
	if hasUsers {
		c.Redirect(http.StatusFound, LoginPath)
		return
	}

	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")

	fail := func(msg string) {
		ac.render(c, http.StatusUnprocessableEntity, "setup.html", gin.H{
			"Title":    "Initial Setup",
			"Username": username,
			"Email":    email,
			"Error":    msg,
		})
	}

	if err := ConfirmPassword(password, c.PostForm("confirm_password")); err != nil {
		fail(setupMessage(err))
		return
	}

	user, err := ac.service.CreateUser(ctx, username, email, password, true)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			// another request won the race
			c.Redirect(http.StatusFound, LoginPath)
			return
		}
		ac.record(ctx, 0, "setup", c.ClientIP(), err)
		fail(setupMessage(err))
		return
	}
	ac.record(ctx, user.ID, "setup", c.ClientIP(), nil)

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			log.Printf("Failed to create session for %s: %v", user.Username, err)
		}
	}

	c.Redirect(http.StatusFound, HomePath)
}

func setupMessage(err error) string {
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, ErrPasswordTooShort):
		return "Password must be at least 12 characters"
	case errors.Is(err, ErrPasswordTooLong):
		return "Password exceeds maximum length of 72 characters"
	case errors.Is(err, ErrUsernameRequired):
		return "Username is required"
	case errors.Is(err, ErrUsernameInvalid):
		return "Username must be 3-64 characters: letters, digits and @/./+/-/_ only"
	case errors.Is(err, ErrEmailInvalid):
		return "Invalid email format"
	}
	return "Failed to create user"
}

func (ac *AuthController) record(ctx context.Context, userID uint, action, ip string, err error) {
	if ac.recorder != nil {
		ac.recorder.LogAuth(ctx, userID, action, ip, err)
	}
}

// render executes an auth template, or answers JSON for API clients and
// when no templates were loaded.
func (ac *AuthController) render(c *gin.Context, status int, name string, data gin.H) {
	if ac.templates == nil || IsAPIRequest(c) {
		c.JSON(status, data)
		return
	}

	data["User"] = GetIdentity(c)
	data["CSRFToken"] = GetCSRFToken(c)
	data["CSRFField"] = template.HTML(CSRFTokenField(c))
	data["Path"] = c.Request.URL.Path

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		log.Printf("Failed to render %s: %v", name, err)
	}
}
