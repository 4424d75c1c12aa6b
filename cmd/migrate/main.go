// migrate applies the embedded SQL migrations: go run ./cmd/migrate [-direction up|down].
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ZewK3/Home-sub002/internal/config"
	"github.com/ZewK3/Home-sub002/internal/db/migrate"
	"github.com/ZewK3/Home-sub002/internal/platform/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.Setup("storefront-migrate", cfg.LogLevel, cfg.Env)
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set; create a .env or export DATABASE_URL")
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Str("direction", *direction).Msg("already at target version")
			return
		}
		logger.Fatal().Err(err).Str("direction", *direction).Msg("migrate")
	}
	logger.Info().Str("direction", *direction).Msg("migrations applied")
}
