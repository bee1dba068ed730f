package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	senders, closers := buildSenders(ctx, cfg, log)
	dispatcher := notify.NewDispatcher(notify.Options{
		QueueSize:   cfg.NotifyQueueSize,
		Workers:     cfg.NotifyWorkers,
		RatePerSec:  cfg.NotifyRatePerSec,
		SendTimeout: cfg.NotifySendTimeout,
	}, log, senders...)
	dispatcher.Start(context.Background())

	var (
		gateway  handlers.PaymentGateway
		verifier services.SignatureVerifier
	)
	if cfg.OnlinePaymentsEnabled() {
		rz := services.NewRazorpayClient(services.RazorpayConfig{
			KeyID:     cfg.RazorpayKeyID,
			KeySecret: cfg.RazorpayKeySecret,
			BaseURL:   cfg.RazorpayBaseURL,
			Timeout:   cfg.GatewayTimeout,
		})
		gateway, verifier = rz, rz
	} else {
		log.Warn().Msg("razorpay credentials missing, online payments disabled")
	}

	var keys middleware.KeyStore
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis not reachable, idempotency keys may fail")
		}
		keys = middleware.NewRedisKeyStore(rdb)
	}

	store := repository.NewGormStore(db)

	app := fiber.New(fiber.Config{
		AppName:      "Storefront Backend",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	routes.Register(app, routes.Deps{
		DB:              db,
		JWTSecret:       cfg.JWTSecret,
		TokenTTL:        cfg.TokenExpires,
		Currency:        cfg.Currency,
		Checkout:        services.NewCheckoutService(store, verifier, dispatcher, cfg.Currency, log),
		Orders:          services.NewOrderService(store, services.PermissiveTransitions{}, dispatcher, log),
		Payments:        services.NewPaymentService(store, log),
		Gateway:         gateway,
		IdempotencyKeys: keys,
		IdempotencyTTL:  cfg.IdempotencyTTL,
		Log:             log,
	})

	go func() {
		log.Info().Str("port", cfg.AppPort).Msg("starting server")
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.Error().Err(err).Msg("fiber.Listen error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Stop(drainCtx); err != nil {
		log.Warn().Err(err).Msg("notification queue not fully drained")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// buildSenders returns the notification channels that have configuration.
func buildSenders(ctx context.Context, cfg *config.Config, log zerolog.Logger) ([]notify.Sender, []func() error) {
	var (
		senders []notify.Sender
		closers []func() error
	)

	if cfg.SESSender != "" {
		client, err := notify.NewSESClient(ctx, notify.EmailConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Sender:          cfg.SESSender,
		})
		if err != nil {
			log.Error().Err(err).Msg("email notifications disabled")
		} else {
			senders = append(senders, notify.NewEmailSender(client, cfg.SESSender))
		}
	}

	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChat != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramAdminChat, ""))
	}

	if cfg.KafkaBrokers != "" {
		publisher := notify.NewKafkaPublisher(notify.NewKafkaWriter(strings.TrimSpace(cfg.KafkaBrokers), cfg.KafkaTopic))
		senders = append(senders, publisher)
		closers = append(closers, publisher.Close)
	}

	for _, s := range senders {
		log.Info().Str("sender", s.Name()).Msg("notification channel enabled")
	}
	return senders, closers
}
