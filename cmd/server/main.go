package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dfryer1193/storefront/internal/bootstrap"
	"github.com/dfryer1193/storefront/internal/config"
	"github.com/dfryer1193/storefront/internal/middleware"
	"github.com/dfryer1193/storefront/internal/rest"
	"github.com/dfryer1193/storefront/shared/auth"
	"github.com/dfryer1193/storefront/shared/db/sqlite"
	"github.com/dfryer1193/storefront/shop/application"
	"github.com/dfryer1193/storefront/shop/persistence"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	bootstrap.SetupLogging(cfg)

	database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: cfg.DBPath})
	if err := database.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	blobs, err := bootstrap.OpenBlobStore(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open blob store")
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token manager")
	}

	productService := application.NewProductService(persistence.NewProductRepository(database.DB()), blobs)
	defer func() {
		if err := productService.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to gracefully close product service")
		}
	}()
	productService.StartSweeper(cfg.SweepInterval, cfg.SweepGrace)

	authService := application.NewAuthService(persistence.NewUserRepository(database.DB()), tokens)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = rest.MaxUploadBytes * 2
	r.Use(middleware.LoggingMiddleware())
	r.Use(gin.CustomRecovery(middleware.HandlePanics()))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst).Middleware())

	rest.NewApi(r, rest.Deps{
		Products: productService,
		Auth:     authService,
		Blobs:    blobs,
		DB:       database,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msg("Starting server on port :" + fmt.Sprint(cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
	}

	log.Info().Msg("Server stopped")
}
