package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"museum_nav/internal/models"
)

// GET /api/exhibits
func (h *Handler) ListExhibits(c *gin.Context) {
	var viewer *models.Principal
	if p, ok := principalFrom(c); ok {
		viewer = &p
	}

	exhibits, err := h.services.Exhibits.List(c.Request.Context(), viewer)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, exhibits, "")
}
