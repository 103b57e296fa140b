package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRFTemplateField is the template function name for getting the CSRF token field.
const CSRFTemplateField = "csrfField"

// CSRFTokenHeader is the header name for CSRF token in AJAX requests.
const CSRFTokenHeader = "X-CSRF-Token"

// CSRFFieldName is the form field gorilla/csrf reads the token from.
const CSRFFieldName = "gorilla.csrf.Token"

// CSRFMiddleware creates a Gin middleware for CSRF protection.
// Safe methods pass through and only receive a token. When secure is false
// the server is plain HTTP, so the strict Referer check for HTTPS is skipped.
func CSRFMiddleware(secret []byte, secure bool) gin.HandlerFunc {
	csrfProtect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.FieldName(CSRFFieldName),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		if !secure {
			c.Request = csrf.PlaintextHTTPRequest(c.Request)
		}

		handler := csrfProtect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Session middleware runs after this, on top of the CSRF request context
			c.Set("csrf_token", csrf.Token(r))
			c.Request = r
			c.Next()
		}))

		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// csrfErrorHandler handles CSRF validation failures.
func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing"}`))
		return
	}

	// Send form posts back where they came from
	if back := refererPath(r); back != "" {
		separator := "?"
		if strings.Contains(back, "?") {
			separator = "&"
		}
		http.Redirect(w, r, back+separator+"error=Session+expired.+Please+try+again.", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Session Expired</title></head>
<body style="font-family: system-ui; max-width: 400px; margin: 100px auto; text-align: center;">
<h1>Session Expired</h1>
<p>Your session has expired or the form submission was invalid.</p>
<p><a href="/catalog/">Back to the catalog</a></p>
</body>
</html>`))
}

// refererPath returns the path and query of a same-host Referer, or "".
func refererPath(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" {
		return ""
	}
	if ref.Host != "" && ref.Host != r.Host {
		return ""
	}
	if !isLocalPath(ref.Path) {
		return ""
	}
	return ref.RequestURI()
}

// GetCSRFToken retrieves the CSRF token from the Gin context.
func GetCSRFToken(c *gin.Context) string {
	if token, exists := c.Get("csrf_token"); exists {
		if t, ok := token.(string); ok {
			return t
		}
	}
	return ""
}

// CSRFTokenField returns an HTML hidden input field with the CSRF token.
func CSRFTokenField(c *gin.Context) string {
	token := GetCSRFToken(c)
	if token == "" {
		return ""
	}
	return `<input type="hidden" name="` + CSRFFieldName + `" value="` + token + `">`
}
