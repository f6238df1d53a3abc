// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheTTL holds the lifetime of each class of cached read.
type CacheTTL struct {
	ByProtocol time.Duration
	StatusList time.Duration
	All        time.Duration
	Paged      time.Duration
	Stats      time.Duration
	Categories time.Duration
}

// DefaultCacheTTL is used for any TTL that is not configured.
var DefaultCacheTTL = CacheTTL{
	ByProtocol: 10 * time.Minute,
	StatusList: 3 * time.Minute,
	All:        5 * time.Minute,
	Paged:      5 * time.Minute,
	Stats:      15 * time.Minute,
	Categories: time.Hour,
}

type Database struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Cache struct {
	Driver     string // memory, redis or none
	MaxEntries int
	TTL        CacheTTL
}

type Attachments struct {
	Driver      string // fs or s3
	Dir         string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3KeyPrefix string
}

type Notify struct {
	Roles     []string
	QueueSize int
	Timeout   time.Duration
}

// Config is everything cmd needs to wire the service.
type Config struct {
	HTTPAddr         string
	JWTSecret        string
	TelegramBotToken string
	LogLevel         slog.Level

	Database    Database
	Redis       Redis
	Cache       Cache
	Attachments Attachments
	Notify      Notify
}

const devJWTSecret = "dev-secret-key-change-in-production"

// FromEnv builds a Config from environment variables. Malformed values fall
// back to their defaults; the returned error lists every one of them so main
// can log it and carry on.
func FromEnv() (Config, error) {
	var p parser

	cfg := Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		JWTSecret:        getenv("JWT_SECRET", devJWTSecret),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		LogLevel:         p.level("LOG_LEVEL", slog.LevelInfo),
		Database: Database{
			DSN:             databaseDSN(),
			MaxOpenConns:    p.int("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    p.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: Redis{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB", 0),
		},
		Cache: Cache{
			Driver:     strings.ToLower(getenv("CACHE_DRIVER", "memory")),
			MaxEntries: p.int("CACHE_MAX_ENTRIES", 10000),
			TTL: CacheTTL{
				ByProtocol: p.duration("CACHE_TTL_COMPLAINT", DefaultCacheTTL.ByProtocol),
				StatusList: p.duration("CACHE_TTL_STATUS_LIST", DefaultCacheTTL.StatusList),
				All:        p.duration("CACHE_TTL_ALL", DefaultCacheTTL.All),
				Paged:      p.duration("CACHE_TTL_PAGED", DefaultCacheTTL.Paged),
				Stats:      p.duration("CACHE_TTL_STATS", DefaultCacheTTL.Stats),
				Categories: p.duration("CACHE_TTL_CATEGORIES", DefaultCacheTTL.Categories),
			},
		},
		Attachments: Attachments{
			Driver:      strings.ToLower(getenv("ATTACHMENT_DRIVER", "fs")),
			Dir:         getenv("ATTACHMENT_DIR", "./uploads"),
			S3Bucket:    os.Getenv("ATTACHMENT_S3_BUCKET"),
			S3Region:    getenv("ATTACHMENT_S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("ATTACHMENT_S3_ENDPOINT"),
			S3PathStyle: p.bool("ATTACHMENT_S3_PATH_STYLE", false),
			S3KeyPrefix: os.Getenv("ATTACHMENT_S3_PREFIX"),
		},
		Notify: Notify{
			Roles:     splitList(getenv("NOTIFY_ROLES", "admin,manager")),
			QueueSize: p.int("NOTIFY_QUEUE_SIZE", 256),
			Timeout:   p.duration("NOTIFY_TIMEOUT", 10*time.Second),
		},
	}

	switch cfg.Cache.Driver {
	case "memory", "redis", "none":
	default:
		p.fail("CACHE_DRIVER", cfg.Cache.Driver)
		cfg.Cache.Driver = "memory"
	}
	switch cfg.Attachments.Driver {
	case "fs", "s3":
	default:
		p.fail("ATTACHMENT_DRIVER", cfg.Attachments.Driver)
		cfg.Attachments.Driver = "fs"
	}

	return cfg, errors.Join(p.errs...)
}

// databaseDSN prefers DATABASE_DSN and otherwise assembles one from the
// individual DB_* variables.
func databaseDSN() string {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		getenv("DB_HOST", "localhost"),
		getenv("DB_USER", "denuncia"),
		os.Getenv("DB_PASSWORD"),
		getenv("DB_NAME", "denuncia"),
		getenv("DB_PORT", "5432"),
		getenv("DB_SSLMODE", "disable"),
	)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type parser struct {
	errs []error
}

func (p *parser) fail(key, raw string) {
	p.errs = append(p.errs, fmt.Errorf("config: invalid %s=%q, using default", key, raw))
}

func (p *parser) int(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		p.fail(key, raw)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		p.fail(key, raw)
		return fallback
	}
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw)
		return fallback
	}
	return v
}

func (p *parser) level(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.fail(key, raw)
		return fallback
	}
	return lvl
}
