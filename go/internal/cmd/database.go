package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/focusnest/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

// setupDatabase connects to Postgres and, when DB_AUTO_MIGRATE is set,
// applies pending schema migrations first.
func setupDatabase(ctx context.Context) (*sql.DB, string, error) {
	dbConfig := dbconfig.NewConfigFromEnv()

	if getEnv("DB_AUTO_MIGRATE", "false") == "true" {
		if err := dbconfig.Migrate(dbConfig.DSN(), "up"); err != nil {
			return nil, "", fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info().Str("database", dbConfig.Database).Msg("database migrated")
	}

	database, err := dbConfig.Open(ctx)
	if err != nil {
		return nil, "", err
	}
	return database, dbConfig.DSN(), nil
}
