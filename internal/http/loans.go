package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/entities"
)

// allLoansPath is where librarians land after renewing or returning a copy.
const allLoansPath = "/catalog/staff/allbooks"

type LoansController struct {
	catalog *catalog.Service
}

func NewLoansController(svc *catalog.Service) *LoansController {
	return &LoansController{catalog: svc}
}

// Mine lists the caller's borrowed copies.
func (controller *LoansController) Mine(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	loans, err := controller.catalog.ListMyLoans(c.Request.Context(), callerIdentity(c), page)
	if err != nil {
		respondCatalogError(c, err, "list own loans")
		return
	}
	respond(c, http.StatusOK, "bookinstance_list_borrowed_user.html", gin.H{
		"Page":  loans,
		"Today": controller.catalog.Today(),
	}, loans)
}

// All lists every borrowed copy for librarians.
func (controller *LoansController) All(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	loans, err := controller.catalog.ListAllLoans(c.Request.Context(), callerIdentity(c), page)
	if err != nil {
		respondCatalogError(c, err, "list all loans")
		return
	}
	respond(c, http.StatusOK, "bookinstance_list_borrowed_all.html", gin.H{
		"Page":  loans,
		"Today": controller.catalog.Today(),
	}, loans)
}

func (controller *LoansController) RenewForm(c *gin.Context) {
	id, ok := parseUUIDParam(c)
	if !ok {
		return
	}
	form, err := controller.catalog.RenewalForm(c.Request.Context(), callerIdentity(c), id)
	if err != nil {
		respondCatalogError(c, err, "renewal form")
		return
	}

	values := url.Values{}
	values.Set(catalog.RenewalDateField, form.ProposedDate.Format(catalog.RenewalDateLayout))
	respond(c, http.StatusOK, "book_renew_librarian.html", gin.H{
		"Instance": form.Instance,
		"HelpText": form.HelpText,
		"Today":    controller.catalog.Today(),
		"Form":     newFormState(values, nil),
	}, form)
}

// Renew moves the due date. An invalid date shows the form again with the
// submitted value and the reason.
func (controller *LoansController) Renew(c *gin.Context) {
	id, ok := parseUUIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	identity := callerIdentity(c)

	proposed, err := parseRenewalDate(c.PostForm(catalog.RenewalDateField))
	var instance *entities.BookInstance
	if err == nil {
		instance, err = controller.catalog.SubmitRenewal(ctx, identity, id, *proposed)
		if err == nil {
			redirectOrJSON(c, allLoansPath, http.StatusOK, instance)
			return
		}
	}

	if !errors.Is(err, catalog.ErrValidation) {
		respondCatalogError(c, err, "renew loan")
		return
	}
	if isAPI(c) {
		respondInvalid(c, "", nil, err)
		return
	}

	// The form shows which copy is being renewed, so resolve it when the
	// date could not even be parsed.
	form, formErr := controller.catalog.RenewalForm(ctx, identity, id)
	if formErr != nil {
		respondCatalogError(c, formErr, "renewal form")
		return
	}
	respondInvalid(c, "book_renew_librarian.html", gin.H{
		"Instance": form.Instance,
		"HelpText": form.HelpText,
		"Today":    controller.catalog.Today(),
		"Form":     newFormState(c.Request.PostForm, err),
	}, err)
}

// Return marks a copy as available again.
func (controller *LoansController) Return(c *gin.Context) {
	id, ok := parseUUIDParam(c)
	if !ok {
		return
	}
	instance, err := controller.catalog.ReturnInstance(c.Request.Context(), callerIdentity(c), id)
	if err != nil {
		respondCatalogError(c, err, "return copy")
		return
	}
	redirectOrJSON(c, allLoansPath, http.StatusOK, instance)
}

func parseRenewalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, catalog.NewFieldError(catalog.RenewalDateField, catalog.ErrRequired, "This field is required.")
	}
	d, err := catalog.ParseDate(raw)
	if err != nil {
		return nil, catalog.InvalidDateError(catalog.RenewalDateField)
	}
	return d, nil
}
