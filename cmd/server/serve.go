package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookclub/backend/internal/database"
	"github.com/bookclub/backend/internal/handlers"
	"github.com/bookclub/backend/internal/metrics"
	"github.com/bookclub/backend/internal/notify"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/internal/scheduler"
	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/internal/storage"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var flagAutoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&flagAutoMigrate, "migrate", true, "Run schema migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	if flagAutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	var uploader services.ObjectUploader
	if cfg.MinIO.Enabled {
		storageClient, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("minio initialization failed: %w", err)
		}
		if err := storageClient.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed ensuring minio bucket: %w", err)
		}
		uploader = storageClient
	}
	audit := services.NewAuditService(db, uploader)
	defer audit.Close()

	var sink services.NotificationSink
	if cfg.Redis.Enabled {
		redisClient, err := notify.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		redisSink := notify.NewRedisSink(redisClient, cfg.Redis)
		defer redisSink.Close()
		sink = redisSink
	}

	signer, err := utils.NewJWTSigner(cfg.JWT.Secret)
	if err != nil {
		return err
	}

	store := repository.NewGormStore(db, cfg.DB.QueryTimeout)
	opts := []services.Option{services.WithMetrics(collector), services.WithAudit(audit)}

	tokens := services.NewTokenService(store, signer, cfg.JWT, opts...)
	notifications := services.NewNotificationService(store, sink, opts...)
	providers, err := services.NewOAuthProviderService(ctx, cfg.SSO)
	if err != nil {
		return err
	}

	var exporter scheduler.AuditExporter
	if uploader != nil {
		exporter = audit
	}
	jobs := scheduler.New(tokens, exporter)
	if err := jobs.Register(*cfg); err != nil {
		return err
	}
	jobs.Start()
	defer jobs.Stop()

	app := handlers.NewApp(cfg)
	handlers.Register(app, cfg, handlers.Services{
		Auth:          services.NewAuthService(store, tokens, opts...),
		Providers:     providers,
		Clubs:         services.NewClubService(store, opts...),
		Memberships:   services.NewMembershipService(store, notifications, opts...),
		Requests:      services.NewMembershipRequestService(store, notifications, opts...),
		Notifications: notifications,
		Metrics:       collector,
	})

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server_starting", map[string]interface{}{
		"port":          cfg.Server.Port,
		"address":       listenAddr,
		"minio_enabled": cfg.MinIO.Enabled,
		"redis_enabled": cfg.Redis.Enabled,
		"sso_providers": len(providers.Enabled()),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("server_shutting_down", map[string]interface{}{"signal": sig.String()})
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("server_shutdown_failed", err, nil)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
