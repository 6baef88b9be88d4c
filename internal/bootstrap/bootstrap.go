// Package bootstrap holds process setup shared by the server and the sweep command.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dfryer1193/storefront/internal/config"
	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/dfryer1193/storefront/shop/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging configures the global zerolog logger
func SetupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// OpenBlobStore builds the configured store
func OpenBlobStore(ctx context.Context, cfg config.StorageConfig) (domain.BlobStore, error) {
	switch cfg.Backend {
	case config.BackendS3:
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open s3 store: %w", err)
		}
		log.Info().Str("bucket", cfg.S3Bucket).Str("endpoint", cfg.S3Endpoint).Msg("Using S3 blob store")
		return s3Store, nil

	case config.BackendLocal:
		local, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		log.Info().Str("dir", local.Dir()).Msg("Using local blob store")
		return local, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
