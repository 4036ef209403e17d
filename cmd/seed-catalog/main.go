package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/wa-booking-assistant/internal/app/bootstrap"
	"github.com/wolfman30/wa-booking-assistant/internal/catalog"
	appconfig "github.com/wolfman30/wa-booking-assistant/internal/config"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: seed-catalog <merchant-seed.json>")
		fmt.Println("Example: seed-catalog testdata/merchant-seed.json")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	seed, err := catalog.LoadSeedFile(os.Args[1])
	if err != nil {
		logger.Error("failed to read seed file", "error", err)
		os.Exit(1)
	}

	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil || pool == nil {
		logger.Error("postgres is required to seed the catalog", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var profiles catalog.ProfileSetter
	if redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		defer redisClient.Close()
		profiles = catalog.NewProfileStore(redisClient)
	} else {
		logger.Warn("redis unavailable; merchant profiles not written")
	}

	if err := seed.Apply(ctx, catalog.NewPostgresRepository(pool), profiles); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog seeded", "merchants", len(seed.Merchants))
}
