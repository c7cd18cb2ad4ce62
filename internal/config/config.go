package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	Storage     string `mapstructure:"STORAGE"`
	DBDSN       string `mapstructure:"DB_DSN"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	Timezone          string        `mapstructure:"TIMEZONE"`
	BookingLeadTime   time.Duration `mapstructure:"BOOKING_LEAD_TIME"`
	ReadyMinHours     float64       `mapstructure:"READY_MIN_HOURS"`
	ReadyMinRating    float64       `mapstructure:"READY_MIN_RATING"`
	ExamRequireReady  bool          `mapstructure:"EXAM_REQUIRE_READINESS"`
	TxMaxRetries      int           `mapstructure:"TX_MAX_RETRIES"`
	ProgressCacheTTL  time.Duration `mapstructure:"PROGRESS_CACHE_TTL"`
	FormCloseInterval time.Duration `mapstructure:"FORM_CLOSE_INTERVAL"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv собирает конфиг из функции чтения переменных окружения
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Environment:   getenv("ENV"),
		Storage:       getenv("STORAGE"),
		DBDSN:         getenv("DB_DSN"),
		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		HTTPAddr:      getenv("HTTP_ADDR"),
		TelegramToken: getenv("TELEGRAM_TOKEN"),
		Timezone:      getenv("TIMEZONE"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Storage == "" {
		cfg.Storage = StoragePostgres
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Almaty"
	}

	var err error
	p := parser{getenv: getenv}
	cfg.RedisDB = p.int("REDIS_DB", 0)
	cfg.BookingLeadTime = p.duration("BOOKING_LEAD_TIME", 2*time.Hour)
	cfg.ReadyMinHours = p.float("READY_MIN_HOURS", 20)
	cfg.ReadyMinRating = p.float("READY_MIN_RATING", 4)
	cfg.ExamRequireReady = p.bool("EXAM_REQUIRE_READINESS", true)
	cfg.TxMaxRetries = p.int("TX_MAX_RETRIES", 5)
	cfg.ProgressCacheTTL = p.duration("PROGRESS_CACHE_TTL", 10*time.Minute)
	cfg.FormCloseInterval = p.duration("FORM_CLOSE_INTERVAL", time.Hour)
	if p.err != nil {
		return nil, p.err
	}

	// Проверяем обязательные поля
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}

	if _, err = time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	if cfg.BookingLeadTime < 0 {
		return nil, fmt.Errorf("BOOKING_LEAD_TIME must not be negative")
	}
	if cfg.ReadyMinRating < 0 || cfg.ReadyMinRating > 5 {
		return nil, fmt.Errorf("READY_MIN_RATING must be between 0 and 5")
	}
	if cfg.TxMaxRetries < 0 {
		return nil, fmt.Errorf("TX_MAX_RETRIES must not be negative")
	}
	if cfg.FormCloseInterval <= 0 {
		return nil, fmt.Errorf("FORM_CLOSE_INTERVAL must be positive")
	}

	return cfg, nil
}

// Location часовой пояс автошколы
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// parser запоминает первую ошибку разбора
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s=%q: %w", key, raw, err)
	}
}

func (p *parser) int(key string, def int) int {
	raw := p.getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := p.getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := p.getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := p.getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}
