package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"linac-qc/config"
	"linac-qc/internal/api/rest"
	"linac-qc/internal/api/telegram"
	"linac-qc/internal/container"
	"linac-qc/internal/domain/port"
	"linac-qc/internal/domain/position"
	"linac-qc/internal/infrastructure/metrics"
	"linac-qc/internal/infrastructure/rtimage"
	"linac-qc/internal/infrastructure/storage"
	"linac-qc/internal/infrastructure/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	setupLogging(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.Errorf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Хранилище отчётов: MongoDB, если задан URI, иначе память процесса
	var reports port.ReportRepository = storage.NewMemoryReportRepository()
	if cfg.MongoURI != "" {
		client, err := storage.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer client.Disconnect(context.Background())
		reports = storage.NewMongoReportRepository(client.Database(cfg.MongoDatabase))
	} else {
		log.Warn("MONGO_URI is not set, reports are kept in memory")
	}

	profile, err := cfg.Settings.Profile()
	if err != nil {
		log.Fatalf("Invalid reference profile: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	detector := vision.NewGoCVDetector(cfg.Settings.Detector)

	// Собираем сервисы приложения
	appContainer := container.New(container.Deps{
		Operators:  storage.NewMemoryOperatorRepository(),
		Reports:    reports,
		Decoder:    rtimage.NewDecoder(),
		Detector:   detector,
		Edges:      detector,
		Identifier: position.NewIdentifier(profile),
		Settings:   cfg.Settings.Analysis(cfg.MVCenter),
		Observer:   m,
	})

	g, gctx := errgroup.WithContext(ctx)

	router := rest.NewRouter(appContainer, rest.Options{
		Environment: cfg.Environment,
		Metrics:     m,
		AccessLog:   log.StandardLogger().Writer(),
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Infof("HTTP API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.TelegramToken != "" {
		// Создаём бота
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		g.Go(func() error {
			log.Println("Bot is running...")
			return bot.Run(gctx)
		})
	} else {
		log.Warn("TELEGRAM_TOKEN is not set, bot is disabled")
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Service error: %v", err)
	}
	log.Println("Stopped")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
