package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/entities"
)

const authorsPath = "/catalog/authors/"

type AuthorsController struct {
	catalog *catalog.Service
}

func NewAuthorsController(svc *catalog.Service) *AuthorsController {
	return &AuthorsController{catalog: svc}
}

func authorPath(id uint) string {
	return fmt.Sprintf("/catalog/author/%d", id)
}

func (controller *AuthorsController) List(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	authors, err := controller.catalog.ListAuthors(c.Request.Context(), page)
	if err != nil {
		respondCatalogError(c, err, "list authors")
		return
	}
	respond(c, http.StatusOK, "author_list.html", gin.H{"Page": authors}, authors)
}

func (controller *AuthorsController) Detail(c *gin.Context) {
	id, ok := parseIDParam(c, "Author")
	if !ok {
		return
	}
	detail, err := controller.catalog.GetAuthor(c.Request.Context(), id)
	if err != nil {
		respondCatalogError(c, err, "get author")
		return
	}
	respond(c, http.StatusOK, "author_detail.html", gin.H{
		"Author": detail.Author,
		"Books":  detail.Books,
	}, detail)
}

func (controller *AuthorsController) CreateForm(c *gin.Context) {
	controller.renderForm(c, http.StatusOK, "/catalog/author/create/", newFormState(nil, nil))
}

func (controller *AuthorsController) Create(c *gin.Context) {
	in, err := parseAuthorForm(c)
	if err == nil {
		var author *entities.Author
		author, err = controller.catalog.CreateAuthor(c.Request.Context(), callerIdentity(c), in)
		if err == nil {
			redirectOrJSON(c, authorPath(author.ID), http.StatusCreated, author)
			return
		}
	}
	controller.failForm(c, "/catalog/author/create/", err)
}

func (controller *AuthorsController) UpdateForm(c *gin.Context) {
	id, ok := parseIDParam(c, "Author")
	if !ok {
		return
	}
	detail, err := controller.catalog.GetAuthor(c.Request.Context(), id)
	if err != nil {
		respondCatalogError(c, err, "get author")
		return
	}
	controller.renderForm(c, http.StatusOK, c.Request.URL.Path, newFormState(authorValues(detail.Author), nil))
}

func (controller *AuthorsController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "Author")
	if !ok {
		return
	}
	in, err := parseAuthorForm(c)
	if err == nil {
		var author *entities.Author
		author, err = controller.catalog.UpdateAuthor(c.Request.Context(), callerIdentity(c), id, in)
		if err == nil {
			redirectOrJSON(c, authorPath(author.ID), http.StatusOK, author)
			return
		}
	}
	controller.failForm(c, c.Request.URL.Path, err)
}

func (controller *AuthorsController) DeleteConfirm(c *gin.Context) {
	id, ok := parseIDParam(c, "Author")
	if !ok {
		return
	}
	detail, err := controller.catalog.GetAuthor(c.Request.Context(), id)
	if err != nil {
		respondCatalogError(c, err, "get author")
		return
	}
	respond(c, http.StatusOK, "author_confirm_delete.html", gin.H{
		"Author": detail.Author,
		"Books":  detail.Books,
	}, detail)
}

// Delete removes the author. A failed delete shows the confirmation page
// again with the reason.
func (controller *AuthorsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "Author")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	detail, err := controller.catalog.GetAuthor(ctx, id)
	if err != nil {
		respondCatalogError(c, err, "get author")
		return
	}

	err = controller.catalog.DeleteAuthor(ctx, callerIdentity(c), id)
	if err == nil {
		redirectOrJSON(c, authorsPath, http.StatusOK, gin.H{"deleted": id})
		return
	}
	respondDeleteFailed(c, "author_confirm_delete.html", gin.H{
		"Author": detail.Author,
		"Books":  detail.Books,
	}, err, "This author cannot be deleted while books are attributed to them.")
}

func (controller *AuthorsController) renderForm(c *gin.Context, status int, action string, form formState) {
	respond(c, status, "author_form.html", gin.H{
		"Action": action,
		"Form":   form,
	}, gin.H{"fields": []string{"first_name", "last_name", "date_of_birth", "date_of_death"}})
}

// failForm re-renders the form for validation errors and maps anything else.
func (controller *AuthorsController) failForm(c *gin.Context, action string, err error) {
	if !errors.Is(err, catalog.ErrValidation) {
		respondCatalogError(c, err, "save author")
		return
	}
	respondInvalid(c, "author_form.html", gin.H{
		"Action": action,
		"Form":   newFormState(c.Request.PostForm, err),
	}, err)
}

// parseAuthorForm reads the submitted author. Unparsable dates are reported
// together with the catalog's checks of the other fields.
func parseAuthorForm(c *gin.Context) (catalog.AuthorInput, error) {
	var fe fieldErrors
	in := catalog.AuthorInput{
		FirstName:   c.PostForm("first_name"),
		LastName:    c.PostForm("last_name"),
		DateOfBirth: parseDateField(c, "date_of_birth", &fe),
		DateOfDeath: parseDateField(c, "date_of_death", &fe),
	}
	if len(fe) > 0 {
		return in, fe.merge(catalog.ValidateAuthor(in))
	}
	return in, nil
}

func parseDateField(c *gin.Context, field string, fe *fieldErrors) *time.Time {
	d, err := catalog.ParseDate(strings.TrimSpace(c.PostForm(field)))
	if err != nil {
		fe.add(catalog.InvalidDateError(field))
		return nil
	}
	return d
}

func authorValues(a entities.Author) url.Values {
	values := url.Values{}
	values.Set("first_name", a.FirstName)
	values.Set("last_name", a.LastName)
	if a.DateOfBirth != nil {
		values.Set("date_of_birth", a.DateOfBirth.Format(catalog.RenewalDateLayout))
	}
	if a.DateOfDeath != nil {
		values.Set("date_of_death", a.DateOfDeath.Format(catalog.RenewalDateLayout))
	}
	return values
}

// respondDeleteFailed re-renders a delete confirmation with the reason the
// delete failed. Access errors and vanished rows keep their usual responses.
func respondDeleteFailed(c *gin.Context, name string, data gin.H, err error, restricted string) {
	switch {
	case errors.Is(err, catalog.ErrReferentialRestrict):
		data["Error"] = restricted
		if isAPI(c) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: restricted, Code: "restricted"})
			return
		}
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, access.ErrAuthenticationRequired),
		errors.Is(err, access.ErrPermissionDenied),
		isAPI(c):
		respondCatalogError(c, err, "delete")
		return
	default:
		log.Printf("Failed to delete (%s): %v", c.Request.URL.Path, err)
		data["Error"] = deleteFailedMessage
	}
	render(c, http.StatusOK, name, data)
}

const deleteFailedMessage = "The delete could not be completed. Please try again."
