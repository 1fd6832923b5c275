package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	APIBaseURL    string
	DBPath        string
	ServerPort    string
	LogLevel      string
	GlobalDataDir string

	// GlobalSweepCron schedules the daily full-population capture check.
	// The day gate in the global pipeline makes extra firings harmless.
	GlobalSweepCron string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		APIBaseURL:      getEnv("TETRIO_API_BASE", "https://ch.tetr.io/api"),
		DBPath:          getEnv("DB_PATH", "tetrio.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		GlobalDataDir:   getEnv("GLOBAL_DATA_DIR", "global_data"),
		GlobalSweepCron: getEnv("GLOBAL_SWEEP_CRON", "0 5 * * *"),
	}

	logger.Info().
		Str("api_base", cfg.APIBaseURL).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("global_data_dir", cfg.GlobalDataDir).
		Str("global_sweep_cron", cfg.GlobalSweepCron).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
