package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"linac-qc/internal/domain/entity"
)

type Config struct {
	TelegramToken string
	HTTPAddr      string
	MongoURI      string
	MongoDatabase string
	SentryDSN     string
	Environment   string
	LogLevel      string
	LogJSON       bool
	MVCenter      entity.MVCenter
	SettingsPath  string
	Settings      *Settings
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: getEnv("MONGO_DATABASE", "linac_qc"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENVIRONMENT", "local"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		SettingsPath:  getEnv("SETTINGS_PATH", "settings.yaml"),
	}

	var err error
	if cfg.LogJSON, err = parseBool("LOG_JSON", false); err != nil {
		return nil, err
	}
	if cfg.MVCenter.U, err = parseFloat("MV_CENTER_U", 512); err != nil {
		return nil, err
	}
	if cfg.MVCenter.V, err = parseFloat("MV_CENTER_V", 512); err != nil {
		return nil, err
	}

	if cfg.Settings, err = LoadSettings(cfg.SettingsPath); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return f, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s", key)
	}
	return b, nil
}
