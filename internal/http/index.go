package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/locallibrary/internal/auth"
	"github.com/mrlokans/locallibrary/internal/catalog"
)

type IndexController struct {
	catalog  *catalog.Service
	sessions *auth.SessionManager
}

func NewIndexController(svc *catalog.Service, sessions *auth.SessionManager) *IndexController {
	return &IndexController{
		catalog:  svc,
		sessions: sessions,
	}
}

// Home shows the catalog counts and bumps the session visit counter.
func (controller *IndexController) Home(c *gin.Context) {
	var visits catalog.VisitCounter
	if controller.sessions != nil {
		visits = controller.sessions
	}

	summary, err := controller.catalog.CatalogSummary(c.Request.Context(), visits)
	if err != nil {
		respondCatalogError(c, err, "catalog summary")
		return
	}

	respond(c, http.StatusOK, "index.html", gin.H{"Summary": summary}, summary)
}
