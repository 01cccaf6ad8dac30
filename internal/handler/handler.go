package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"museum_nav/internal/service"
)

type Options struct {
	// Production enables secure cookies and hides internal error detail.
	Production         bool
	CookieName         string
	LoginRatePerMinute int
}

type Handler struct {
	services   *service.Services
	log        *slog.Logger
	production bool
	cookieName string
	limiter    *RateLimiter
}

func NewHandler(svc *service.Services, opts Options, lgr *slog.Logger) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = "token"
	}
	if opts.LoginRatePerMinute <= 0 {
		opts.LoginRatePerMinute = 10
	}

	return &Handler{
		services:   svc,
		log:        lgr,
		production: opts.Production,
		cookieName: opts.CookieName,
		limiter:    NewRateLimiter(opts.LoginRatePerMinute, time.Minute),
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	useJSONFieldNames()

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.RateLimit(), h.Register)
		auth.POST("/login", h.RateLimit(), h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", h.AuthMiddleware(), h.Me)
	}

	users := api.Group("/users", h.AuthMiddleware())
	{
		users.PUT("/me/preferences", h.UpdatePreferences)
	}

	routes := api.Group("/routes", h.AuthMiddleware())
	{
		routes.POST("", h.CalculateRoute)
		routes.GET("", h.ListRoutes)
		routes.GET("/personalized", h.PersonalizedRoute)

		owned := routes.Group("/:id", h.RouteOwner())
		owned.GET("", h.GetRoute)
		owned.PUT("/stops", h.UpdateStops)
		owned.POST("/recalculate", h.RecalculateRoute)
		owned.DELETE("", h.DeleteRoute)
	}

	notifications := api.Group("/notifications", h.AuthMiddleware())
	{
		notifications.POST("", h.Notify)
		notifications.GET("", h.ListNotifications)
	}

	api.POST("/sync", h.AuthMiddleware(), h.Sync)
	api.GET("/exhibits", h.OptionalAuth(), h.ListExhibits)

	return router
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "ok"}, "")
}
