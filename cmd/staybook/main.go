package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"staybook/internal/app/commands"
	bookingapp "staybook/internal/app/handlers/booking"
	channelapp "staybook/internal/app/handlers/channel"
	checkoutapp "staybook/internal/app/handlers/checkout"
	webhookapp "staybook/internal/app/handlers/webhook"
	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/infra/archive"
	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	"staybook/internal/infra/gateway"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	outboxinfra "staybook/internal/infra/outbox"
	"staybook/internal/infra/ratelimit"
	"staybook/internal/infra/security"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/validate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	if app.outboxWorker != nil {
		go func() {
			if err := app.outboxWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers     ginserver.Handlers
	outboxWorker *outboxinfra.Worker
	ready        func() error
	closers      []func() error
}

func (a application) close(logger *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("shutdown cleanup failed", "error", err)
		}
	}
}

func buildApplication(cfg config.Config, logger *slog.Logger) (application, error) {
	app := application{ready: func() error { return nil }}

	var (
		uowFactory  uow.Factory
		outboxStore appoutbox.Outbox
		idStore     middleware.IdempotencyStore
	)

	switch cfg.StorageMode {
	case config.StorageMemory:
		uowFactory = memory.NewFactory()
		outboxStore = memory.NewOutbox()
		idStore = memory.NewIdempotencyStore()
	default:
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, err
		}
		app.closers = append(app.closers, func() error {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.DB.Client().Disconnect(disconnectCtx)
		})
		app.ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		uowFactory = mongodb.Factory{
			DB:              client.DB,
			ReservationRepo: mongodb.NewReservationRepository(client.DB),
			PaymentRepo:     mongodb.NewPaymentRepository(client.DB),
			CalendarRepo:    mongodb.NewCalendarRepository(client.DB),
			PropertyRepo:    mongodb.NewPropertyRepository(client.DB),
			UserRepo:        mongodb.NewUserRepository(client.DB),
		}
		store := outboxinfra.NewStore(client.DB)
		outboxStore = store
		idStore = mongodb.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)

		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
			if err != nil {
				return application{}, err
			}
			app.closers = append(app.closers, producer.Close)
			app.outboxWorker = &outboxinfra.Worker{
				Store:       store,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Backoff:     cfg.RetryBackoff,
			}
		} else {
			logger.Warn("kafka brokers not configured, outbox events stay queued")
		}
	}

	gatewayClient := &gateway.Client{
		BaseURL: cfg.GatewayBaseURL,
		Secret:  cfg.GatewaySecret,
		Timeout: cfg.GatewayTimeout,
		Logger:  logger,
	}

	// Memory mode is for local runs and tests; raw payloads skip S3 there.
	var archiver policies.PayloadArchiver = archive.NoopArchiver{}
	if cfg.StorageMode != config.StorageMemory && cfg.S3Endpoint != "" {
		s3Client, err := archive.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			return application{}, err
		}
		archiver = s3Client
	}

	var limiter *ratelimit.RedisLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		app.closers = append(app.closers, redisClient.Close)
		limiter = ratelimit.NewRedisLimiter(redisClient, "")
	}

	encoder := appoutbox.JSONEventEncoder{}
	hasher := security.BcryptHasher{}
	tokens := security.RandomTokenGenerator{}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()

	checkoutHandler := &checkoutapp.CreateSessionHandler{
		UoWFactory: uowFactory,
		Gateway:    gatewayClient,
		Outbox:     outboxStore,
		Encoder:    encoder,
	}
	commands.RegisterHandler(commandBus, checkoutapp.CreateSessionCommand{}.Key(), checkoutHandler)

	reconcileHandler := &webhookapp.ReconcileHandler{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		Encoder:    encoder,
	}
	commands.RegisterHandler(commandBus, webhookapp.ReconcileCommand{}.Key(), reconcileHandler)

	cancelHandler := &bookingapp.CancelHandler{
		UoWFactory: uowFactory,
		Gateway:    gatewayClient,
		Outbox:     outboxStore,
		Encoder:    encoder,
	}
	commands.RegisterHandler(commandBus, bookingapp.CancelCommand{}.Key(), cancelHandler)

	refundHandler := &bookingapp.RefundHandler{
		UoWFactory: uowFactory,
		Gateway:    gatewayClient,
		Outbox:     outboxStore,
		Encoder:    encoder,
	}
	commands.RegisterHandler(commandBus, bookingapp.RefundCommand{}.Key(), refundHandler)

	lifecycleHandler := &bookingapp.LifecycleHandler{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		Encoder:    encoder,
	}
	commands.RegisterHandler(commandBus, bookingapp.CheckInCommand{}.Key(), lifecycleHandler.CheckInHandler())
	commands.RegisterHandler(commandBus, bookingapp.CheckOutCommand{}.Key(), lifecycleHandler.CheckOutHandler())
	commands.RegisterHandler(commandBus, bookingapp.NoShowCommand{}.Key(), lifecycleHandler.NoShowHandler())

	importHandler := &channelapp.ImportHandler{
		UoWFactory: uowFactory,
		Hasher:     hasher,
		Tokens:     tokens,
		Archiver:   archiver,
		Outbox:     outboxStore,
		Encoder:    encoder,
		Logger:     logger,
	}
	commands.RegisterHandler(commandBus, channelapp.ImportCommand{}.Key(), importHandler)
	commands.RegisterHandler(commandBus, channelapp.BulkImportCommand{}.Key(), &channelapp.BulkImportHandler{
		Importer: importHandler,
		Logger:   logger,
	})
	commands.RegisterHandler(commandBus, channelapp.SyncCommand{}.Key(), &channelapp.SyncHandler{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		Encoder:    encoder,
	})

	queries.RegisterHandler(queryBus, bookingapp.GuestReservationsQuery{}.Key(), &bookingapp.GuestReservationsHandler{UoWFactory: uowFactory})
	queries.RegisterHandler(queryBus, bookingapp.PropertyReservationsQuery{}.Key(), &bookingapp.PropertyReservationsHandler{UoWFactory: uowFactory})
	queries.RegisterHandler(queryBus, channelapp.RevenueBySourceQuery{}.Key(), &channelapp.RevenueBySourceHandler{UoWFactory: uowFactory})

	validator := validate.New()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(idStore, nil),
		middleware.Validation(validator),
		middleware.Transaction(uowFactory, nil),
		middleware.OutboxFlush(outboxStore),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(validator),
	)

	app.handlers = ginserver.Handlers{
		Checkout: ginserver.CheckoutHandler{Commands: commandBusWithMiddleware},
		Webhook: ginserver.WebhookHandler{
			Commands: commandBusWithMiddleware,
			Secret:   cfg.WebhookSecret,
		},
		Channel: ginserver.ChannelHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
		},
		Reservation: ginserver.ReservationHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
		},
		AuthMiddleware: ginserver.AuthMiddleware{}.Handle,
		RateLimit:      ginserver.RateLimitMiddleware(limiter, cfg.RateLimitRPM, time.Minute),
	}
	return app, nil
}
