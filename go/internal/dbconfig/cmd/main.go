package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/mcdev12/focusnest/go/internal/dbconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := dbconfig.NewConfigFromEnv()
	if err := dbconfig.Migrate(cfg.DSN(), *direction); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migration failed")
	}
	log.Info().Str("direction", *direction).Str("database", cfg.Database).Msg("migrations applied")
}
