package rest

import (
	"context"
	"net/http"

	"github.com/dfryer1193/storefront/api"
	"github.com/dfryer1193/storefront/internal/middleware"
	"github.com/dfryer1193/storefront/shop/application"
	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/gin-gonic/gin"
)

const apiVersion = "1.0.0"

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP API is built on
type Deps struct {
	Products *application.ProductService
	Auth     *application.AuthService
	Blobs    domain.BlobStore
	DB       Pinger
}

func NewApi(router *gin.Engine, deps Deps) {
	products := &productHandlers{service: deps.Products}
	users := &authHandlers{service: deps.Auth}
	requireAuth := middleware.RequireAuth(deps.Auth)
	uploadImage := UploadImage(deps.Blobs)

	router.GET("/", getInfo)
	router.GET("/healthz", getHealth(deps.DB))

	authV1 := router.Group("/api/auth")
	{
		authV1.POST("/register", users.register)
		authV1.POST("/login", users.login)
		authV1.GET("/me", requireAuth, users.me)
	}

	productsV1 := router.Group("/api/products")
	{
		productsV1.GET("", products.list)
		productsV1.GET("/:id", products.get)
		productsV1.POST("", requireAuth, uploadImage, products.create)
		productsV1.PUT("/:id", requireAuth, uploadImage, products.update)
		productsV1.DELETE("/:id", requireAuth, products.delete)
	}

	router.GET("/uploads/:name", serveUpload(deps.Blobs))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error: api.ErrorBody{Code: api.CodeNotFound, Message: "Route not found"},
		})
	})
}

func getInfo(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"message": "API is working",
		"version": apiVersion,
		"endpoints": gin.H{
			"auth":     "/api/auth",
			"products": "/api/products",
		},
	})
}

func getHealth(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			respondError(c, &domain.StorageError{Op: "ping database", Err: err})
			return
		}
		respond(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
