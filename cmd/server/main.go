package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/cache"
	"github.com/example/tiketa/internal/checkout"
	"github.com/example/tiketa/internal/config"
	"github.com/example/tiketa/internal/confirmation"
	"github.com/example/tiketa/internal/database"
	"github.com/example/tiketa/internal/events"
	"github.com/example/tiketa/internal/handlers"
	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/metrics"
	"github.com/example/tiketa/internal/registration"
	"github.com/example/tiketa/internal/routes"
	"github.com/example/tiketa/internal/services"
	"github.com/example/tiketa/internal/session"
	"github.com/example/tiketa/internal/utils"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "server")

	store := openCache(ctx, cfg, log)
	journal := openJournal(cfg, log)

	midtrans := services.NewMidtransService(cfg.MidtransServerKey, cfg.MidtransClientKey, cfg.MidtransIsProduction, logging.Component(log, "midtrans"))
	backend := services.NewBackendService(cfg.BackendURL, cfg.BackendAPIKey, cfg.BackendAPIKeyHeader, logging.Component(log, "backend"))
	catalog := services.NewEventCatalog(backend, store, logging.Component(log, "catalog"))
	confirmer := services.NewConfirmService(backend, store, m, logging.Component(log, "confirm"))
	whatsapp := services.NewWhatsAppService(cfg.WARelayURL, cfg.WARelayToken, cfg.WACountryCode, logging.Component(log, "whatsapp"))
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, logging.Component(log, "telegram"))
	notifier := services.NewTicketNotifier(backend, whatsapp, telegram, store, cfg.TicketURLPrefix, m, logging.Component(log, "notifier"))

	publisher := startEvents(ctx, cfg, notifier, log)

	widget := checkout.NewRemoteWidget()
	bridge := checkout.NewBridge(midtrans.ScriptURL(), midtrans.ClientKey(), checkout.HTTPLoader{}, widget, logging.Component(log, "checkout"))

	flow := registration.NewFlow(registration.Config{
		Backend:         backend,
		Catalog:         catalog,
		Bridge:          bridge,
		Widget:          widget,
		Confirmer:       confirmer,
		Store:           journal,
		Publisher:       publisher,
		Metrics:         m,
		AdminFee:        cfg.AdminFee,
		EventsURL:       cfg.EventsURL,
		TicketURLPrefix: cfg.TicketURLPrefix,
		Log:             logging.Component(log, "registration"),
	})
	go flow.Run(ctx, time.Minute)

	adminHash, err := utils.AdminPasswordHash(cfg.AdminPasswordHash, cfg.AdminPassword)
	if err != nil {
		log.WithError(err).Warn("admin login disabled")
	}
	sessions := session.NewProvider(cfg.JWTSecret, cfg.TokenExpires, cfg.MidtransIsProduction)
	pages := confirmation.Pages{EventsURL: cfg.EventsURL, TicketURLPrefix: cfg.TicketURLPrefix}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		Midtrans:     handlers.NewMidtransHandler(midtrans, confirmer, flow, logging.Component(log, "midtrans_handler")),
		Notify:       handlers.NewNotifyHandler(whatsapp),
		Registration: handlers.NewRegistrationHandler(flow, catalog, confirmer, pages),
		Tickets:      handlers.NewTicketHandler(backend),
		Admin: handlers.NewAdminHandler(handlers.AdminCredentials{
			ID:           cfg.AdminID,
			Username:     cfg.AdminUsername,
			PasswordHash: adminHash,
		}, sessions, backend, journal, flow, logging.Component(log, "admin_handler")),
		Sessions:  sessions,
		Metrics:   m,
		ServerKey: cfg.MidtransServerKey,
	})

	if !cfg.MidtransConfigured() {
		log.Warn("MIDTRANS_SERVER_KEY is not set; payment routes will fail")
	}

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}()

	log.Infof("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}

func openCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) cache.Store {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, using in-process cache")
		return cache.NewMemoryStore()
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, using in-process cache")
		return cache.NewMemoryStore()
	}
	return cache.NewRedisStore(client, "tiketa:")
}

func openJournal(cfg *config.Config, log *logrus.Logger) registration.SessionStore {
	if cfg.DatabaseURL == "" {
		return registration.NewMemoryStore()
	}

	db, err := database.Connect(cfg.DatabaseURL, logging.Component(log, "database"))
	if err != nil {
		log.WithError(err).Warn("database unavailable, journalling in memory")
		return registration.NewMemoryStore()
	}
	return registration.NewGormStore(db)
}

func startEvents(ctx context.Context, cfg *config.Config, notifier *services.TicketNotifier, log *logrus.Logger) events.Publisher {
	client := events.NewClient(cfg.KafkaBrokers)
	if !client.Enabled() {
		return events.NewDirectDispatcher(notifier.Handle, logging.Component(log, "events"))
	}

	writer := client.NewWriter(cfg.KafkaTopic)
	reader := client.NewReader(cfg.KafkaTopic, cfg.KafkaGroupID)

	go func() {
		defer reader.Close()
		err := events.Consume(ctx, reader, notifier.Handle, logging.Component(log, "consumer"))
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("ticket event consumer stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = writer.Close()
	}()

	return events.NewKafkaPublisher(writer)
}
