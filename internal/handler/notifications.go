package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"museum_nav/internal/geo"
	"museum_nav/internal/service"
)

type notifyRequest struct {
	RouteID    int64    `json:"routeId" binding:"required,gt=0"`
	CurrentLat *float64 `json:"currentLat" binding:"required,latitude"`
	CurrentLng *float64 `json:"currentLng" binding:"required,longitude"`
}

// POST /api/notifications
func (h *Handler) Notify(c *gin.Context) {
	var req notifyRequest
	if err := decodeJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.services.Notifications.Notify(c.Request.Context(), service.NotifyInput{
		UserID:  mustPrincipal(c).UserID,
		RouteID: req.RouteID,
		Current: geo.Point{Lat: *req.CurrentLat, Lng: *req.CurrentLng},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, res, "")
}

// GET /api/notifications
func (h *Handler) ListNotifications(c *gin.Context) {
	list, err := h.services.Notifications.List(c.Request.Context(), mustPrincipal(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, list, "")
}
