package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/handler"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/repository/memory"
	"github.com/Dan9191/card-service/internal/repository/redisstore"
	"github.com/Dan9191/card-service/internal/security"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/Dan9191/card-service/internal/token"
	"github.com/Dan9191/card-service/internal/utils/email"
)

const shutdownTimeout = 15 * time.Second

type ledgerStore interface {
	service.UserStore
	service.CardStore
	token.RevocationStore
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize storage
	var store ledgerStore
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		store = memory.New()
	default:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		if err := repository.Migrate(db); err != nil {
			logger.Fatalf("Failed to apply migrations: %v", err)
		}
		store = repository.NewRepository(db, logger)
	}

	var revoked token.RevocationStore = store
	logger.Infof("Storage: %s, revocation set: %s", cfg.Storage, cfg.RevocationStore)
	if cfg.RevocationStore == config.StorageRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatalf("Failed to ping redis: %v", err)
		}
		revoked = redisstore.NewRevocationStore(client)
	}

	// Initialize layers
	engine, err := security.NewCryptoEngine(cfg.EncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize card encryption: %v", err)
	}
	tokens, err := token.NewService(token.Config{
		SigningKey: cfg.SigningKey(),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, revoked, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize token service: %v", err)
	}

	cardOpts := []service.CardOption{service.WithRenewYears(cfg.CardRenewYears)}
	if cfg.NotificationsEnabled() {
		cardOpts = append(cardOpts, service.WithExpiryNotifier(email.NewSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SenderEmail,
		}, logger)))
	}
	cards := service.NewCardService(store, store, engine, logger, cardOpts...)
	auth := service.NewAuthService(store, security.NewBcryptHasher(0), tokens, logger)

	if cfg.AdminEmail != "" {
		if err := auth.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Fatalf("Failed to bootstrap admin: %v", err)
		}
	}

	scheduler, err := service.NewExpiryScheduler(cfg.ExpirySchedule, cards, logger)
	if err != nil {
		logger.Fatalf("Failed to schedule expiry sweep: %v", err)
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewHandler(cards, auth, logger).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}
