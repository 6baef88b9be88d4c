// Command sweep deletes uploaded images that no product references.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dfryer1193/storefront/internal/bootstrap"
	"github.com/dfryer1193/storefront/internal/config"
	"github.com/dfryer1193/storefront/shared/db/sqlite"
	"github.com/dfryer1193/storefront/shop/application"
	"github.com/dfryer1193/storefront/shop/persistence"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	bootstrap.SetupLogging(cfg)

	grace := flag.Duration("grace", cfg.SweepGrace, "only delete orphans older than this")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *grace); err != nil {
		log.Error().Err(err).Msg("Sweep failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, grace time.Duration) error {
	database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: cfg.DBPath})
	if err := database.Connect(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	blobs, err := bootstrap.OpenBlobStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	svc := application.NewProductService(persistence.NewProductRepository(database.DB()), blobs)
	defer svc.Close()

	removed, err := svc.SweepOrphans(ctx, grace)
	if err != nil {
		return fmt.Errorf("removed %d before failing: %w", removed, err)
	}

	log.Info().Int("removed", removed).Dur("grace", grace).Msg("Sweep finished")
	return nil
}
