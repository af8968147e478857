package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Environment string
	LogLevel    string

	DBDriver     string
	DBDSN        string
	StoreTimeout time.Duration

	// Timezone таймзона школы: в ней считаются дни недели и границы дней
	Timezone *time.Location

	MaterializeHorizonMonths int
	MaterializeInterval      time.Duration

	// TelegramToken пустой токен отключает бота
	TelegramToken string
}

// Load читает .env (если есть), затем переменные окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфигурацию из getenv
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Environment:   getenv("ENV"),
		LogLevel:      getenv("LOG_LEVEL"),
		DBDriver:      getenv("DB_DRIVER"),
		DBDSN:         getenv("DB_DSN"),
		TelegramToken: getenv("TELEGRAM_TOKEN"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = DriverPostgres
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DBDriver)
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	tz := getenv("TIMEZONE")
	if tz == "" {
		cfg.Timezone = time.Local
	} else {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("parse TIMEZONE: %w", err)
		}
		cfg.Timezone = loc
	}

	var err error
	if cfg.StoreTimeout, err = durationOr(getenv, "STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaterializeInterval, err = durationOr(getenv, "MATERIALIZE_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaterializeInterval <= 0 {
		return nil, fmt.Errorf("MATERIALIZE_INTERVAL must be positive")
	}

	cfg.MaterializeHorizonMonths = 6
	if v := getenv("MATERIALIZE_HORIZON_MONTHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MATERIALIZE_HORIZON_MONTHS must be a positive integer, got %q", v)
		}
		cfg.MaterializeHorizonMonths = n
	}

	return cfg, nil
}

func durationOr(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) BotEnabled() bool {
	return c.TelegramToken != ""
}
