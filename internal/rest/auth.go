package rest

import (
	"net/http"

	"github.com/dfryer1193/storefront/api"
	"github.com/dfryer1193/storefront/internal/middleware"
	"github.com/dfryer1193/storefront/shop/application"
	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/gin-gonic/gin"
)

type authHandlers struct {
	service *application.AuthService
}

func (h *authHandlers) register(c *gin.Context) {
	req := &api.RegisterRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, invalidBody())
		return
	}

	session, err := h.service.Register(c.Request.Context(), application.Credentials{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, toAuthResponse(session))
}

func (h *authHandlers) login(c *gin.Context) {
	req := &api.LoginRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, invalidBody())
		return
	}

	session, err := h.service.Login(c.Request.Context(), application.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, toAuthResponse(session))
}

func (h *authHandlers) me(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, toUser(user))
}

func toAuthResponse(s *application.Session) api.AuthResponse {
	return api.AuthResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User:      toUser(s.User),
	}
}

func invalidBody() error {
	return &domain.ValidationError{Message: "Request body must be valid JSON"}
}
