package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/licitafacil/api/configs"
	"github.com/licitafacil/api/internal/application/services"
	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/core/ports"
	"github.com/licitafacil/api/internal/infrastructure/db"
	"github.com/licitafacil/api/internal/infrastructure/email"
	"github.com/licitafacil/api/internal/infrastructure/health"
	"github.com/licitafacil/api/internal/infrastructure/httpserver"
	"github.com/licitafacil/api/internal/infrastructure/pncp"
	"github.com/licitafacil/api/internal/infrastructure/redis"
	"github.com/licitafacil/api/internal/infrastructure/repositories"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting LicitaFacil API...")

	// Initialize database (apply pool settings from config)
	database, err := db.NewDatabaseWithConfig(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	logger.Info("Connected to database successfully")

	// Initialize Redis client
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	logger.Info("Connected to Redis successfully")

	// Run migrations
	if err := database.Migrate("./migrations"); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	// Initialize generic Redis cache for read-heavy entities
	redisCache := redis.NewRedisCache(redisClient, "appcache")

	// Initialize db repository implementations
	quotaRepo := repositories.NewQuotaRepository(database, logger)
	usageRepo := repositories.NewUsageRepository(database, logger)
	baseUserRepo := repositories.NewUserRepository(database, logger)
	baseLicitacaoRepo := repositories.NewLicitacaoRepository(database, logger)

	// Decorate with caching (choose TTLs)
	userRepo := repositories.NewCachingUserRepository(baseUserRepo, redisCache, cfg.Quota.CacheUserTTL)
	licitacaoRepo := repositories.NewCachingLicitacaoRepository(baseLicitacaoRepo, redisCache, cfg.Quota.CacheDetalheTTL)

	// Wire services
	usageService := services.NewUsageService(usageRepo, logger)
	planService := services.NewPlanService(userRepo, logger)
	licitacaoService := services.NewLicitacaoService(licitacaoRepo, logger)

	var notifier ports.UpgradeNotifier
	if cfg.Email.Enabled {
		notifierConfig := &email.NotifierConfig{
			SendGridAPIKey: cfg.Email.SendGridAPIKey,
			FromEmail:      cfg.Email.FromEmail,
			FromName:       cfg.Email.FromName,
			CompanyName:    cfg.Email.CompanyName,
			UpgradeURL:     cfg.Email.UpgradeURL,
		}
		notifier, err = email.NewUpgradeNotifier(notifierConfig, userRepo, redisCache, logger)
		if err != nil {
			logger.Fatal("Failed to initialize upgrade notifier:", err)
		}
	}

	quotaConfig := &services.QuotaServiceConfig{
		Limits: quota.Limits{
			Anonymous: cfg.Quota.AnonymousDailyLimit,
			Free:      cfg.Quota.FreeDailyLimit,
			Premium:   cfg.Quota.PremiumDailyLimit,
		},
		Window:       cfg.Quota.Window,
		FailOpen:     cfg.Quota.FailOpen,
		StoreTimeout: cfg.Quota.StoreTimeout,
	}
	quotaService := services.NewQuotaService(quotaRepo, planService, usageService, notifier, quotaConfig, logger)

	pncpClient := pncp.NewClient(pncp.ClientConfig{
		BaseURL:    cfg.PNCP.BaseURL,
		Timeout:    cfg.PNCP.Timeout,
		MaxRetries: cfg.PNCP.MaxRetries,
		PageSize:   cfg.PNCP.PageSize,
	}, logger)
	syncService := services.NewPNCPSyncService(pncpClient, licitacaoRepo, cfg.PNCP.SyncLookback, logger)

	hcSlice := []ports.HealthChecker{health.NewDBHealthChecker(database), health.NewRedisHealthChecker(redisClient)}

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		TLSCertFile:       cfg.Server.TLSCertFile,
		TLSKeyFile:        cfg.Server.TLSKeyFile,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	}

	deps := httpserver.ServerDeps{
		LicitacaoService: licitacaoService,
		QuotaService:     quotaService,
		UsageRecorder:    usageService,
		HealthCheckers:   hcSlice,
	}

	server := httpserver.NewServer(serverConfig, cfg.JWT.Secret, logger, deps)

	// Background workers stop with this context on shutdown.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if cfg.PNCP.SyncEnabled {
		go syncService.Run(workerCtx, cfg.PNCP.SyncInterval)
	}
	go runCounterJanitor(workerCtx, quotaService, cfg.Quota.PurgeInterval, cfg.Quota.PurgeMaxAge, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopWorkers()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

// runCounterJanitor periodically deletes quota counters whose identity has
// been inactive past the retention age.
func runCounterJanitor(ctx context.Context, quotaService ports.QuotaService, interval, maxAge time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := quotaService.PurgeInactive(ctx, maxAge); err != nil {
				logger.WithError(err).Warn("janitor: failed to purge inactive counters")
			}
		}
	}
}
