package config

import (
	"fmt"
	"log"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Environment   string `mapstructure:"ENV"`
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	DBDSN         string `mapstructure:"DB_DSN"`

	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	KafkaBrokers      []string `mapstructure:"KAFKA_BROKERS"`
	KafkaBookingTopic string   `mapstructure:"KAFKA_BOOKING_TOPIC"`

	TelegramToken       string `mapstructure:"TELEGRAM_TOKEN"`
	TelegramStaffChatID int64  `mapstructure:"TELEGRAM_STAFF_CHAT_ID"`

	AllocationTimeout         time.Duration `mapstructure:"ALLOCATION_TIMEOUT"`
	AllocationMaxAttempts     int           `mapstructure:"ALLOCATION_MAX_ATTEMPTS"`
	ConfirmationRetryInterval time.Duration `mapstructure:"CONFIRMATION_RETRY_INTERVAL"`

	BookingRateLimit float64        `mapstructure:"BOOKING_RATE_LIMIT"`
	BookingRateBurst int            `mapstructure:"BOOKING_RATE_BURST"`
	TrustedProxies   []netip.Prefix `mapstructure:"TRUSTED_PROXIES"`

	Timezone            string    `mapstructure:"TIMEZONE"`
	DefaultRestaurantID uuid.UUID `mapstructure:"DEFAULT_RESTAURANT_ID"`
}

func Load() (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Environment:       env("ENV", "development"),
		HTTPAddr:          env("HTTP_ADDR", ":8080"),
		StorageDriver:     env("STORAGE_DRIVER", StorageDriverPostgres),
		DBDSN:             getenv("DB_DSN"),
		RedisAddr:         getenv("REDIS_ADDR"),
		KafkaBookingTopic: env("KAFKA_BOOKING_TOPIC", "booking-events"),
		TelegramToken:     getenv("TELEGRAM_TOKEN"),
		Timezone:          env("TIMEZONE", "Europe/Stockholm"),
	}

	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.IdempotencyTTL, err = parseDuration(env("IDEMPOTENCY_TTL", "24h"), "IDEMPOTENCY_TTL"); err != nil {
		return nil, err
	}
	if cfg.AllocationTimeout, err = parseDuration(env("ALLOCATION_TIMEOUT", "5s"), "ALLOCATION_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.ConfirmationRetryInterval, err = parseDuration(env("CONFIRMATION_RETRY_INTERVAL", "5m"), "CONFIRMATION_RETRY_INTERVAL"); err != nil {
		return nil, err
	}
	if cfg.AllocationMaxAttempts, err = parseInt(env("ALLOCATION_MAX_ATTEMPTS", "3"), "ALLOCATION_MAX_ATTEMPTS"); err != nil {
		return nil, err
	}
	if cfg.BookingRateBurst, err = parseInt(env("BOOKING_RATE_BURST", "5"), "BOOKING_RATE_BURST"); err != nil {
		return nil, err
	}
	if cfg.BookingRateLimit, err = strconv.ParseFloat(env("BOOKING_RATE_LIMIT", "2"), 64); err != nil || cfg.BookingRateLimit < 0 {
		return nil, fmt.Errorf("BOOKING_RATE_LIMIT must be a non-negative number")
	}

	if proxies := getenv("TRUSTED_PROXIES"); proxies != "" {
		if cfg.TrustedProxies, err = parsePrefixes(proxies); err != nil {
			return nil, err
		}
	}

	if chatID := getenv("TELEGRAM_STAFF_CHAT_ID"); chatID != "" {
		if cfg.TelegramStaffChatID, err = strconv.ParseInt(chatID, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_STAFF_CHAT_ID must be an integer: %w", err)
		}
	}

	if id := getenv("DEFAULT_RESTAURANT_ID"); id != "" {
		if cfg.DefaultRestaurantID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("DEFAULT_RESTAURANT_ID must be a uuid: %w", err)
		}
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageDriverMemory:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, cfg.StorageDriver)
	}

	return cfg, nil
}

// Location returns the restaurant time zone. FromEnv has already validated it.
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

func parseDuration(v, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func parseInt(v, key string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be at least 1", key)
	}
	return n, nil
}

// parsePrefixes reads a comma separated list of CIDRs or single addresses.
func parsePrefixes(v string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
