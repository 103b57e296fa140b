package http

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/auth"
	"github.com/mrlokans/locallibrary/internal/catalog"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // field errors for validation failures
}

// --- Rendering ---

// render executes a page template with the data every layout needs.
func render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["User"] = auth.GetIdentity(c)
	data["CSRFField"] = template.HTML(auth.CSRFTokenField(c))
	data["Path"] = c.Request.URL.Path
	c.HTML(status, name, data)
}

// respond renders name for browsers and payload as JSON for API clients.
func respond(c *gin.Context, status int, name string, data gin.H, payload any) {
	if auth.IsAPIRequest(c) {
		c.JSON(status, payload)
		return
	}
	render(c, status, name, data)
}

// redirectOrJSON sends browsers to location and answers API clients with payload.
func redirectOrJSON(c *gin.Context, location string, status int, payload any) {
	if auth.IsAPIRequest(c) {
		c.JSON(status, payload)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// --- Error Response Helpers ---

func respondError(c *gin.Context, status int, code, message string) {
	if auth.IsAPIRequest(c) {
		c.JSON(status, ErrorResponse{Error: message, Code: code})
		return
	}
	render(c, status, "error.html", gin.H{
		"Status":  status,
		"Message": message,
	})
}

func respondNotFound(c *gin.Context, resource string) {
	respondError(c, http.StatusNotFound, "not_found", resource+" not found")
}

// respondInvalid re-renders a form with its field errors. API clients get 422.
func respondInvalid(c *gin.Context, name string, data gin.H, err error) {
	ve, _ := catalog.AsValidation(err)
	if auth.IsAPIRequest(c) {
		var details map[string]string
		if ve != nil {
			details = ve.FieldErrors()
		}
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Code:    "validation",
			Details: details,
		})
		return
	}
	render(c, http.StatusOK, name, data)
}

// respondCatalogError maps a catalog error onto a response. Unknown errors are
// logged and hidden from the client.
func respondCatalogError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, access.ErrAuthenticationRequired):
		if auth.IsAPIRequest(c) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "unauthenticated"})
			return
		}
		c.Redirect(http.StatusFound, auth.LoginURL(c.Request.URL.RequestURI()))
	case errors.Is(err, access.ErrPermissionDenied):
		respondError(c, http.StatusForbidden, "forbidden", "You do not have permission to do that.")
	case errors.Is(err, catalog.ErrValidation):
		if auth.IsAPIRequest(c) {
			respondInvalid(c, "", nil, err)
			return
		}
		respondError(c, http.StatusUnprocessableEntity, "validation", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "Not found.")
	case errors.Is(err, catalog.ErrReferentialRestrict):
		respondError(c, http.StatusConflict, "restricted", "This record is still referenced by other records.")
	default:
		log.Printf("Internal error (%s): %v", context, err)
		respondError(c, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// --- Parameter Parsing ---

// parseIDParam extracts an unsigned integer ID from the URL. A malformed ID
// cannot name a row, so it is answered with 404.
func parseIDParam(c *gin.Context, resource string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		respondNotFound(c, resource)
		return 0, false
	}
	return uint(id), true
}

// parseUUIDParam extracts a copy's UUID from the URL, answering 404 when malformed.
func parseUUIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondNotFound(c, "Book copy")
		return uuid.Nil, false
	}
	return id, true
}

// parsePage reads ?page=. A missing value is page 1; anything non-numeric is 404.
// Range checks are left to the catalog.
func parsePage(c *gin.Context) (int, bool) {
	raw := c.Query("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		respondNotFound(c, "Page")
		return 0, false
	}
	return page, true
}

// --- Forms ---

// formState is what a form page needs to re-render after a failed submit.
type formState struct {
	Values url.Values
	Errors map[string]string
}

func newFormState(values url.Values, err error) formState {
	f := formState{Values: values, Errors: map[string]string{}}
	if f.Values == nil {
		f.Values = url.Values{}
	}
	if ve, ok := catalog.AsValidation(err); ok {
		f.Errors = ve.FieldErrors()
	}
	return f
}

func (f formState) Get(field string) string {
	return f.Values.Get(field)
}

// Has reports whether value is among the submitted values of a multi-select.
func (f formState) Has(field, value string) bool {
	for _, v := range f.Values[field] {
		if v == value {
			return true
		}
	}
	return false
}

func (f formState) Error(field string) string {
	return f.Errors[field]
}

// fieldErrors gathers parse failures found before the catalog is called.
type fieldErrors []error

func (fe *fieldErrors) add(err error) {
	if err != nil {
		*fe = append(*fe, err)
	}
}

// merge combines the parse failures with err (usually the catalog's own
// validation of the remaining fields) into one ValidationError.
func (fe fieldErrors) merge(err error) error {
	if len(fe) == 0 {
		return err
	}
	merged := &catalog.ValidationError{}
	for _, e := range append([]error(fe), err) {
		if ve, ok := catalog.AsValidation(e); ok {
			merged.Fields = append(merged.Fields, ve.Fields...)
		}
	}
	return merged
}

func callerIdentity(c *gin.Context) access.Identity {
	return auth.GetIdentity(c)
}

func isAPI(c *gin.Context) bool {
	return auth.IsAPIRequest(c)
}
