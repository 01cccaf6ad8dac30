package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"museum_nav/internal/models"
	"museum_nav/internal/service"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

type preferencesRequest struct {
	Preferences              []string `json:"preferences"`
	PersonalizationAvailable *bool    `json:"personalizationAvailable"`
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, maxAge, "/", "", h.production, true)
}

// POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := decodeJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.services.Auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, user, "User registered successfully")
}

// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := decodeJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.services.Auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		log.Debug("login rejected", slog.String("username", req.Username), slog.Any("error", err))
		h.respondError(c, err)
		return
	}

	h.setSessionCookie(c, res.Token, int(h.services.Auth.TokenTTL().Seconds()))

	respond(c, http.StatusOK, loginResponse{User: res.User, Token: res.Token}, "Login successful")
}

// POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	h.services.Auth.Logout(c.Request.Context(), h.extractToken(c))
	h.setSessionCookie(c, "", -1)

	respond(c, http.StatusOK, nil, "Logged out successfully")
}

// GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	user, err := h.services.Users.Profile(c.Request.Context(), mustPrincipal(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, user, "")
}

// PUT /api/users/me/preferences
func (h *Handler) UpdatePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := decodeJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	enabled := true
	if req.PersonalizationAvailable != nil {
		enabled = *req.PersonalizationAvailable
	}

	user, err := h.services.Users.UpdatePreferences(c.Request.Context(), mustPrincipal(c).UserID, req.Preferences, enabled)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, user, "Preferences updated")
}
