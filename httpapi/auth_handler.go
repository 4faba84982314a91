// Package httpapi exposes the marketplace over HTTP: account endpoints plus
// the engagement lifecycle surface (read views and the single mutating
// event-application endpoint).
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"warehousematch/auth"
)

// AuthHandler serves account registration and login.
type AuthHandler struct {
	service *auth.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register handles account creation for either side of the marketplace.
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid request", "INVALID_REQUEST"))
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, success(toUserDTO(*user)))
}

// Login authenticates and returns a JWT token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(AuthResponse{
		Token: res.Token,
		User:  toUserDTO(res.User),
	}))
}
