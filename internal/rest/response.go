package rest

import (
	"errors"
	"net/http"

	"github.com/dfryer1193/storefront/api"
	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func respond[T any](c *gin.Context, status int, data T) {
	c.JSON(status, api.Response[T]{Data: data})
}

// respondError maps domain errors to status codes. Anything unrecognised is a 500
// whose cause is logged but never sent to the client.
func respondError(c *gin.Context, err error) {
	var (
		validation   *domain.ValidationError
		notFound     *domain.NotFoundError
		conflict     *domain.ConflictError
		unauthorized *domain.UnauthorizedError
	)

	var (
		status int
		body   api.ErrorBody
	)
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		body = api.ErrorBody{Code: api.CodeValidation, Message: validation.Message, Fields: validation.Fields}
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		body = api.ErrorBody{Code: api.CodeNotFound, Message: notFound.Error()}
	case errors.As(err, &conflict):
		status = http.StatusConflict
		body = api.ErrorBody{Code: api.CodeConflict, Message: conflict.Message}
	case errors.As(err, &unauthorized):
		status = http.StatusUnauthorized
		body = api.ErrorBody{Code: api.CodeUnauthorized, Message: unauthorized.Message}
	default:
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("Request failed")
		status = http.StatusInternalServerError
		body = api.ErrorBody{Code: api.CodeInternal, Message: "Internal server error"}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, api.ErrorResponse{Error: body})
}

func toProduct(p *domain.Product) api.Product {
	return api.Product{
		ID:               p.ID,
		Name:             p.Name,
		ShortDescription: p.ShortDescription,
		Price:            p.Price,
		Image:            p.Image,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func toUser(u *domain.User) api.User {
	return api.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
