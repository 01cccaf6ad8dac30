package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"museum_nav/internal/errs"
	"museum_nav/internal/geo"
	"museum_nav/internal/service"
)

type calculateRouteRequest struct {
	DestinationID int64    `json:"destinationId" binding:"required,gt=0"`
	StartLat      *float64 `json:"startLat" binding:"required,latitude"`
	StartLng      *float64 `json:"startLng" binding:"required,longitude"`
}

type updateStopsRequest struct {
	AddStops []int64 `json:"addStops" binding:"dive,gt=0"`
}

// POST /api/routes
func (h *Handler) CalculateRoute(c *gin.Context) {
	var req calculateRouteRequest
	if err := decodeJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	summary, err := h.services.Routes.Calculate(c.Request.Context(), service.CalculateInput{
		UserID:        mustPrincipal(c).UserID,
		DestinationID: req.DestinationID,
		Start:         geo.Point{Lat: *req.StartLat, Lng: *req.StartLng},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, summary, "Route calculated successfully")
}

// GET /api/routes
func (h *Handler) ListRoutes(c *gin.Context) {
	routes, err := h.services.Routes.ListByUser(c.Request.Context(), mustPrincipal(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, routes, "")
}

// GET /api/routes/personalized
func (h *Handler) PersonalizedRoute(c *gin.Context) {
	route, err := h.services.Routes.PersonalizedRoute(c.Request.Context(), mustPrincipal(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, route, "")
}

// GET /api/routes/:id?walkingSpeed=
func (h *Handler) GetRoute(c *gin.Context) {
	var speed *float64
	if raw, ok := c.GetQuery("walkingSpeed"); ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.respondError(c, errs.Validation(service.MsgInvalidSpeed))
			return
		}
		speed = &v
	}

	route, err := h.services.Routes.GetDetails(c.Request.Context(), routeIDFrom(c), speed)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, route, "")
}

// PUT /api/routes/:id/stops
func (h *Handler) UpdateStops(c *gin.Context) {
	var req updateStopsRequest
	if err := decodeJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	update, err := h.services.Routes.UpdateStops(c.Request.Context(), routeIDFrom(c), req.AddStops)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, update, "Stops updated")
}

// POST /api/routes/:id/recalculate
func (h *Handler) RecalculateRoute(c *gin.Context) {
	route, err := h.services.Routes.Recalculate(c.Request.Context(), routeIDFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, route, "Route recalculated")
}

// DELETE /api/routes/:id
func (h *Handler) DeleteRoute(c *gin.Context) {
	if _, err := h.services.Routes.Delete(c.Request.Context(), routeIDFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
