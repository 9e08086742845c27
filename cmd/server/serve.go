package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/config"
	"orderflow/internal/infrastructure/logger"
	"orderflow/internal/infrastructure/mysql"
	"orderflow/internal/notify"
	"orderflow/internal/observability"
	"orderflow/internal/order"
	"orderflow/internal/order/usecase"
	"orderflow/internal/product"
	"orderflow/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func runServe(configPath string, migrate bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := mysql.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()
	zapLogger.Info("database connected")

	if migrate {
		if err := mysql.Migrate(ctx, db); err != nil {
			return err
		}
		zapLogger.Info("schema up to date")
	}

	notifier, closeNotifier := newNotifier(ctx, cfg.Redis, zapLogger)
	defer closeNotifier()

	metrics := observability.NewMetrics()

	productCtrl, catalog := product.NewModule(db, zapLogger)
	orderCtrl := order.NewModule(db, cfg.Order, catalog, notifier, metrics, zapLogger)

	router := server.NewRouter(server.RouterParams{
		Config:          cfg.Server,
		Logger:          zapLogger,
		Metrics:         metrics,
		OrderController: orderCtrl,
		ProductCtrl:     productCtrl,
	})
	srv := server.New(cfg.Server, router, zapLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	zapLogger.Info("server stopped gracefully")
	return nil
}

// newNotifier publishes change events to Redis when enabled and reachable,
// and otherwise only logs them.
func newNotifier(ctx context.Context, cfg config.RedisConfig, zapLogger *zap.Logger) (usecase.ChangeNotifier, func()) {
	if !cfg.Enabled {
		return notify.NewLogNotifier(zapLogger), func() {}
	}

	client, err := notify.NewRedisClient(ctx, cfg.Addr)
	if err != nil {
		zapLogger.Warn("redis unavailable, change events will only be logged", zap.String("addr", cfg.Addr), zap.Error(err))
		return notify.NewLogNotifier(zapLogger), func() {}
	}

	zapLogger.Info("publishing order changes to redis", zap.String("addr", cfg.Addr), zap.String("channel", cfg.Channel))
	return notify.NewRedisNotifier(client, cfg.Channel), func() { _ = client.Close() }
}
