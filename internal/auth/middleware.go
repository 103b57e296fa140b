package auth

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/locallibrary/internal/access"
)

// Context keys for user data
const (
	ContextKeyIdentity = "auth_identity"
	ContextKeyUserID   = "auth_user_id"
	ContextKeyUsername = "auth_username"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/accounts/login/"

// Middleware resolves the caller of every request and gates protected routes.
// The catalog itself is public, so an unknown caller continues as anonymous.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
}

func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
	}
}

// Handler stores the caller's access.Identity in the Gin context.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := access.Anonymous()

		if m.sessionManager != nil {
			if userID := m.sessionManager.GetUserID(c.Request); userID != 0 {
				id, err := m.service.Identity(c.Request.Context(), userID)
				if err != nil {
					log.Printf("Failed to load session user %d: %v", userID, err)
				}
				identity = id
			}
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

// RequireOperation aborts unless the caller may perform op. Anonymous browser
// requests are redirected to the login page; JSON clients get 401.
func (m *Middleware) RequireOperation(op access.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := access.Authorize(GetIdentity(c), op)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, access.ErrAuthenticationRequired):
			if IsAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "authentication required",
				})
				return
			}
			c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
			c.Abort()
		default:
			if IsAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "insufficient permissions",
				})
				return
			}
			c.AbortWithStatus(http.StatusForbidden)
		}
	}
}

// LoginURL builds the login redirect that returns to next afterwards.
func LoginURL(next string) string {
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// IsAPIRequest reports whether the client asked for JSON rather than HTML.
func IsAPIRequest(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// Helper functions to extract auth data from Gin context

func SetIdentity(c *gin.Context, identity access.Identity) {
	c.Set(ContextKeyIdentity, identity)
	c.Set(ContextKeyUserID, identity.UserID)
	c.Set(ContextKeyUsername, identity.Username)
}

// GetIdentity returns the caller, or the anonymous identity when the
// middleware did not run.
func GetIdentity(c *gin.Context) access.Identity {
	if v, exists := c.Get(ContextKeyIdentity); exists {
		if identity, ok := v.(access.Identity); ok {
			return identity
		}
	}
	return access.Anonymous()
}

// GetUserID retrieves the authenticated user's ID from the context, 0 when anonymous.
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextKeyUserID); exists {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}

func GetUsername(c *gin.Context) string {
	if name, exists := c.Get(ContextKeyUsername); exists {
		if username, ok := name.(string); ok {
			return username
		}
	}
	return ""
}

func IsAuthenticated(c *gin.Context) bool {
	return GetIdentity(c).Authenticated()
}
