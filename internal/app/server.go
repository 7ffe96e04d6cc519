package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/config"
	"github.com/oliver453/lochlann-se/internal/controller/httpapi"
	"github.com/oliver453/lochlann-se/internal/metrics"
	"github.com/oliver453/lochlann-se/internal/repository"
	"github.com/oliver453/lochlann-se/internal/service"
)

// Stores groups the storage implementations the services run on.
type Stores struct {
	Settings service.SettingsStore
	Hours    service.HoursStore
	Tables   service.TableStore
	Bookings service.BookingStore
	Health   httpapi.Pinger
}

// MemoryStores backs every store with one in-process MemoryStore.
func MemoryStores() Stores {
	m := repository.NewMemoryStore()
	return Stores{Settings: m, Hours: m, Tables: m, Bookings: m, Health: m}
}

// PostgresStores backs every store with the pgx repositories.
func PostgresStores(pool *pgxpool.Pool, allocationTimeout time.Duration) Stores {
	bookings := repository.NewBookingRepository(pool, allocationTimeout)
	return Stores{
		Settings: repository.NewSettingsRepository(pool),
		Hours:    repository.NewHoursRepository(pool),
		Tables:   repository.NewTableRepository(pool),
		Bookings: bookings,
		Health:   bookings,
	}
}

// OpenPool connects to Postgres and checks the connection.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DB_DSN: %w", err)
	}
	poolCfg.MaxConnLifetime = 5 * time.Minute
	poolCfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// Server is the assembled HTTP service with its background jobs.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	handler   http.Handler
	scheduler *Scheduler
	closers   []func() error
}

// NewServer wires services and optional collaborators (redis, kafka,
// telegram) around stores according to cfg.
func NewServer(ctx context.Context, cfg *config.Config, stores Stores, logger *zap.Logger) (*Server, error) {
	metrics.Register()

	s := &Server{cfg: cfg, logger: logger}
	clock := service.NewSystemClock(cfg.Location())

	resolver := service.NewScheduleResolver(stores.Settings, stores.Hours)
	allocator := service.NewTableAllocator(stores.Bookings, service.AllocatorOptions{
		Timeout:     cfg.AllocationTimeout,
		MaxAttempts: cfg.AllocationMaxAttempts,
	}, logger.Named("allocator"))
	availability := service.NewAvailabilityService(stores.Settings, resolver, allocator, clock, logger.Named("availability"))

	var idempotency service.IdempotencyStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		idempotency = repository.NewRedisIdempotencyStore(client, cfg.IdempotencyTTL)
		s.closers = append(s.closers, client.Close)
		logger.Info("Idempotency keys enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	var notifier service.Notifier = service.NewLogNotifier(logger.Named("confirmation"))
	if len(cfg.KafkaBrokers) > 0 {
		publisher := repository.NewKafkaPublisher(&kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaBookingTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		})
		notifier = service.NewEventNotifier(publisher, clock)
		s.closers = append(s.closers, publisher.Close)
		logger.Info("Booking events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaBookingTopic))
	}

	var staff service.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramStaffChatID != 0 {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			logger.Warn("Telegram staff alerts disabled", zap.Error(err))
		} else {
			staff = service.NewTelegramNotifier(b, cfg.TelegramStaffChatID)
			logger.Info("Telegram staff alerts enabled", zap.Int64("chat_id", cfg.TelegramStaffChatID))
		}
	}

	bookings := service.NewBookingService(
		stores.Bookings,
		availability,
		allocator,
		idempotency,
		notifier,
		staff,
		clock,
		logger.Named("booking"),
	)

	h := &httpapi.Handler{
		Availability:        availability,
		Bookings:            bookings,
		Tables:              service.NewTableService(stores.Tables, logger.Named("tables")),
		Settings:            service.NewSettingsService(stores.Settings, stores.Hours, clock, logger.Named("settings")),
		Health:              stores.Health,
		DefaultRestaurantID: cfg.DefaultRestaurantID,
		Logger:              logger.Named("http"),
	}
	if cfg.BookingRateLimit > 0 {
		h.CreateLimiter = httpapi.NewRateLimiter(cfg.BookingRateLimit, cfg.BookingRateBurst)
		h.CreateLimiter.TrustProxies(cfg.TrustedProxies)
	}

	s.handler = httpapi.NewRouter(h)
	s.scheduler = NewScheduler(bookings, cfg.ConfirmationRetryInterval, logger.Named("scheduler"))
	return s, nil
}

// Run serves HTTP until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	defer s.close()
	s.scheduler.Start(ctx)
	defer s.scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.logger.Warn("Close failed", zap.Error(err))
		}
	}
}
