package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/handler"
	"github.com/noah-isme/sma-portal/internal/repository"
	"github.com/noah-isme/sma-portal/internal/server"
	"github.com/noah-isme/sma-portal/internal/service"
	"github.com/noah-isme/sma-portal/pkg/cache"
	"github.com/noah-isme/sma-portal/pkg/config"
	"github.com/noah-isme/sma-portal/pkg/database"
	"github.com/noah-isme/sma-portal/pkg/i18n"
	"github.com/noah-isme/sma-portal/pkg/jobs"
	"github.com/noah-isme/sma-portal/pkg/logger"
	"github.com/noah-isme/sma-portal/pkg/mailer"
	"github.com/noah-isme/sma-portal/pkg/session"
	"github.com/noah-isme/sma-portal/pkg/sms"
	"github.com/noah-isme/sma-portal/pkg/storage"
	"github.com/noah-isme/sma-portal/pkg/view"
	"github.com/noah-isme/sma-portal/web"
)

// @title SMA Portal API
// @version 1.0.0
// @description Token based access to the school portal
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("portal stopped", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		if cfg.Session.Store == "redis" {
			return fmt.Errorf("connect redis: %w", err)
		}
		logr.Warn("redis unavailable, falling back to in-memory stores", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	bundle, err := i18n.New(cfg.I18n.DefaultLanguage, cfg.I18n.Supported)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}
	templates, err := web.Templates()
	if err != nil {
		return err
	}
	renderer, err := view.New(templates, bundle)
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	static, err := web.Static()
	if err != nil {
		return err
	}

	mail, err := mailer.New(cfg.Mail, cfg.AppName, logr)
	if err != nil {
		return err
	}
	texts, err := sms.New(cfg.SMS, logr)
	if err != nil {
		return err
	}
	backupFiles, err := storage.NewLocalStorage(cfg.Backups.StorageDir)
	if err != nil {
		return fmt.Errorf("backup storage: %w", err)
	}
	reportFiles, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return fmt.Errorf("report storage: %w", err)
	}

	users := repository.NewUserRepository(db)
	sessionRecords := repository.NewSessionRepository(db)
	credentials := repository.NewCredentialRepository(db)
	recoveries := repository.NewRecoveryRepository(db)
	audits := repository.NewAuditRepository(db)
	configurations := repository.NewConfigurationRepository(db)
	backups := repository.NewBackupRepository(db)
	dashboards := repository.NewDashboardRepository(db)

	metrics := service.NewMetricsService()
	validate := bundle.Validator()

	var (
		sessionStore session.Store = session.NewMemoryStore()
		limiter      *service.RateLimiter
		cacheRepo    service.CacheRepository
	)
	if redisClient != nil {
		limiter = service.NewRateLimiter(repository.NewRateLimitRepository(redisClient), cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window, logr)
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		if cfg.Session.Store == "redis" {
			sessionStore = session.NewRedisStore(redisClient)
		}
	} else {
		limiter = service.NewRateLimiter(repository.NewMemoryRateLimitRepository(), cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window, logr)
	}
	sessions := session.NewManager(sessionStore, session.Options{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	}, logr)

	activity := service.NewActivityService(audits, logr)
	settings := service.NewConfigurationService(configurations, activity, validate, logr, service.ConfigurationServiceConfig{
		Defaults: map[string]string{
			service.SettingSiteName:        cfg.AppName,
			service.SettingDefaultLanguage: bundle.Default(),
		},
		Languages: cfg.I18n.Supported,
	})
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cacheRepo != nil)
	notifications := service.NewNotificationService(mail, texts, cfg.AppName, logr)
	policy := service.NewPasswordPolicy(credentials, cfg.Recovery.PasswordHistory, logr)

	auth := service.NewAuthService(service.AuthServiceParams{
		Users:     users,
		Sessions:  sessionRecords,
		Settings:  settings,
		Limiter:   limiter,
		Activity:  activity,
		Validator: validate,
		Logger:    logr,
		Config: service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
			SessionTTL:        cfg.Session.TTL,
			TouchInterval:     cfg.Session.TouchInterval,
		},
	})
	registration := service.NewRegistrationService(service.RegistrationServiceParams{
		Users:     users,
		Settings:  settings,
		Limiter:   limiter,
		Policy:    policy,
		Notifier:  notifications,
		Activity:  activity,
		Validator: validate,
		Logger:    logr,
	})
	recovery := service.NewRecoveryService(service.RecoveryServiceParams{
		Requests:     recoveries,
		Users:        users,
		Credentials:  credentials,
		Sessions:     sessionRecords,
		SessionState: sessions,
		Limiter:      limiter,
		Policy:       policy,
		Notifier:     notifications,
		Activity:     activity,
		Validator:    validate,
		Logger:       logr,
		Config: service.RecoveryConfig{
			RequestTTL:  cfg.Recovery.RequestTTL,
			MaxAttempts: cfg.Recovery.MaxAttempts,
			CodeLength:  cfg.Recovery.CodeLength,
			BaseURL:     cfg.BaseURL,
		},
	})
	profile := service.NewProfileService(service.ProfileServiceParams{
		Users:        users,
		Credentials:  credentials,
		Sessions:     sessionRecords,
		SessionState: sessions,
		Policy:       policy,
		Activity:     activity,
		Notifier:     notifications,
		Validator:    validate,
		Logger:       logr,
		Issuer:       cfg.AppName,
		Languages:    cfg.I18n.Supported,
	})
	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Repo:     dashboards,
		Sessions: sessionRecords,
		Activity: activity,
		Users:    users,
		Cache:    cacheSvc,
		Metrics:  metrics,
		Logger:   logr,
		Config:   service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	accounts := service.NewUserService(service.UserServiceParams{
		Users:        users,
		Sessions:     sessionRecords,
		SessionState: sessions,
		Notifier:     notifications,
		Activity:     activity,
		Dashboard:    dashboard,
		Logger:       logr,
	})
	backup := service.NewBackupService(service.BackupServiceParams{
		Repo:     backups,
		Storage:  backupFiles,
		Signer:   storage.NewSignedURLSigner(cfg.Backups.SignedURLSecret, cfg.Backups.SignedURLTTL),
		Settings: settings,
		Activity: activity,
		Metrics:  metrics,
		Logger:   logr,
		Tables:   repository.BackupTables,
		AppName:  cfg.AppName,
		Queue: jobs.QueueConfig{
			Workers:    cfg.Backups.WorkerConcurrency,
			MaxRetries: cfg.Backups.WorkerRetries,
			Logger:     logr,
		},
	})
	reports := service.NewReportService(service.ReportServiceParams{
		Activity: audits,
		Users:    users,
		Archive:  reportFiles,
		Recorder: activity,
		Logger:   logr,
	})
	monitor := service.NewMonitorService(service.MonitorServiceParams{
		Components: monitorComponents(db, redisClient),
		Sessions:   sessionRecords,
		Queues:     []service.QueueReporter{backup},
		Metrics:    metrics,
		Logger:     logr,
	})

	pages := handler.NewPages(cfg.AppName, bundle, settings, logr)
	secureCookie := cfg.Session.Secure
	router := server.NewRouter(server.Dependencies{
		Config:    cfg,
		Logger:    logr,
		Renderer:  renderer,
		Static:    static,
		Sessions:  sessions,
		Languages: bundle,
		Metrics:   metrics,
		Resolver:  auth,
		Tokens:    auth,
		Settings:  settings,
		Activity:  activity,
		Handlers: server.Handlers{
			Auth:         handler.NewAuthHandler(auth, sessions, pages, metrics),
			Registration: handler.NewRegistrationHandler(registration, pages),
			Recovery:     handler.NewRecoveryHandler(recovery, pages),
			Profile:      handler.NewProfileHandler(profile, pages, secureCookie),
			Dashboard:    handler.NewDashboardHandler(dashboard, pages),
			Settings: handler.NewSettingsHandler(handler.SettingsHandlerParams{
				Settings: settings,
				Users:    accounts,
				Backups:  backup,
				Monitor:  monitor,
				Cache:    cacheSvc,
				Activity: activity,
				Reports:  reports,
				Pages:    pages,
				Logger:   logr,
			}),
			Language: handler.NewLanguageHandler(profile, pages, secureCookie),
			Metrics:  handler.NewMetricsHandler(metrics, monitor),
		},
	})

	backup.Start(ctx)
	go backup.RunRetention(ctx, cfg.Backups.CleanupInterval)
	go every(ctx, logr, "session sweep", cfg.Session.SweepInterval, func(ctx context.Context) error {
		_, err := auth.PurgeSessions(ctx, cfg.Session.TTL)
		return err
	})
	go every(ctx, logr, "recovery expiry", cfg.Recovery.SweepInterval, func(ctx context.Context) error {
		_, err := recovery.ExpireStale(ctx)
		return err
	})
	go every(ctx, logr, "activity retention", cfg.Activity.SweepInterval, func(ctx context.Context) error {
		_, err := activity.Purge(ctx, cfg.Activity.Retention)
		return err
	})
	go every(ctx, logr, "report cleanup", cfg.Reports.Retention/4, func(context.Context) error {
		_, err := reports.Cleanup(cfg.Reports.Retention)
		return err
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func monitorComponents(db *sqlx.DB, client *redis.Client) []service.MonitorComponent {
	components := []service.MonitorComponent{{Name: "database", Pinger: db}}
	if client != nil {
		components = append(components, service.MonitorComponent{
			Name:     "redis",
			Optional: true,
			Pinger: service.PingFunc(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}),
		})
	}
	return components
}

// every runs fn each interval until ctx is done. A non-positive interval disables it.
func every(ctx context.Context, logr *zap.Logger, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logr.Warn("periodic task failed", zap.String("task", name), zap.Error(err))
			}
		}
	}
}
