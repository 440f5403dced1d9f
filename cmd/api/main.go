package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardswap/trade-engine/marketcore"
	"github.com/cardswap/trade-engine/marketcore/database"
	"github.com/cardswap/trade-engine/marketcore/database/repositories"
	"github.com/cardswap/trade-engine/marketcore/events"
	"github.com/cardswap/trade-engine/marketcore/httpx"
	"github.com/cardswap/trade-engine/marketcore/logger"
	"github.com/cardswap/trade-engine/marketcore/notifications"
	"github.com/cardswap/trade-engine/marketcore/redisx"
	"github.com/cardswap/trade-engine/marketcore/trade"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler()))

	slog.Info("Starting trade engine",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	// Local .env overrides are optional; absence is fine.
	_ = godotenv.Load()

	cfg, err := marketcore.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	// Re-arm the default logger now that the configured level is known.
	slog.SetDefault(slog.New(logger.NewHandlerWith(cfg.Log.Level, cfg.Log.AddSource)))
	logger.LogSystem("Configuration loaded")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Database connection failed", slog.Any("error", err))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Schema initialization failed", slog.Any("error", err))
		os.Exit(-1)
	}
	logger.LogSystem("Database ready", slog.String("database", cfg.DB.Database))

	bunDB := db.BunDB()
	listings := repositories.NewListingRepository(bunDB)
	offers := repositories.NewOfferRepository(bunDB)
	meetups := repositories.NewMeetupRepository(bunDB)
	conversations := repositories.NewConversationRepository(bunDB)
	users := repositories.NewUserRepository(bunDB)
	devices := repositories.NewDeviceRepository(bunDB)

	opts := trade.Options{}

	var notifier *notifications.Notifier
	if cfg.Push.Endpoint != "" {
		sender := notifications.NewHTTPSender(cfg.Push.Endpoint, cfg.Push.APIKey)
		notifier = notifications.NewNotifier(sender, devices)
		opts.Notifier = notifier
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		buf := cfg.Kafka.Buffer
		if buf <= 0 {
			buf = 1024
		}
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, buf)
		publisher.Start(runCtx)
		opts.Events = publisher
	}

	if cfg.Redis.Addr != "" {
		opts.Idem = redisx.NewIdempotency(redisx.New(cfg.Redis.Addr))
	}

	service := trade.NewService(listings, offers, meetups, conversations, opts)

	router := httpx.NewRouter()
	handler := &httpx.TradeHandler{Service: service}
	handler.Register(router)
	userHandler := &httpx.UserHandler{Users: users, Devices: devices, Notifier: notifier}
	userHandler.Register(router)
	readHandler := &httpx.ReadHandler{Listings: listings, Offers: offers, Conversations: conversations}
	readHandler.Register(router)

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{Addr: addr, Handler: router}

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		logger.LogSystem("HTTP server listening", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server exited with error", slog.Any("error", err))
	}

	if publisher != nil {
		publisher.WaitClosed()
	}

	logger.LogSystem("Shutdown complete")
}
