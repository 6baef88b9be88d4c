package middleware

import (
	"fmt"
	"net/http"

	"github.com/dfryer1193/storefront/api"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func HandlePanics() gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		err, ok := recovered.(error)
		if !ok {
			err = fmt.Errorf("%v", recovered)
		}
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("Recovered from panic")

		abortWithError(c, http.StatusInternalServerError, api.CodeInternal, "Internal server error")
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, api.ErrorResponse{
		Error: api.ErrorBody{Code: code, Message: message},
	})
}
