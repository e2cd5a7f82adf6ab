// Command migrate applies db/schema.sql to the configured database. The
// schema is idempotent, so running it repeatedly is safe.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	_ "github.com/lib/pq"

	"server/internal/infra"
)

func main() {
	schemaPath := flag.String("schema", "db/schema.sql", "path to the schema file")
	timeout := flag.Duration("timeout", 30*time.Second, "statement timeout for the whole run")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *schemaPath).Msg("failed to read schema")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to reach database")
	}

	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	logger.Info().Str("schema", *schemaPath).Msg("schema applied")
}
