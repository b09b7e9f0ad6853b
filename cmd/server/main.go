package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/vitalguard/internal/alerting"
	"github.com/good-yellow-bee/vitalguard/internal/api"
	"github.com/good-yellow-bee/vitalguard/internal/api/devices"
	"github.com/good-yellow-bee/vitalguard/internal/api/health"
	"github.com/good-yellow-bee/vitalguard/internal/app"
	"github.com/good-yellow-bee/vitalguard/internal/ingest"
	"github.com/good-yellow-bee/vitalguard/internal/jobs"
	"github.com/good-yellow-bee/vitalguard/internal/logging"
	"github.com/good-yellow-bee/vitalguard/internal/metrics"
	"github.com/good-yellow-bee/vitalguard/internal/realtime"
	"github.com/good-yellow-bee/vitalguard/pkg/config"
)

var (
	configFile string
	flags      overrides
)

var rootCmd = &cobra.Command{
	Use:   "vitalguard-server",
	Short: "VitalGuard Server - vital-sign ingestion and alerting",
	Long: `VitalGuard Server accepts readings from wearable devices over HTTP and MQTT,
raises alerts when vitals cross their thresholds, notifies caregivers and
streams readings and alerts to monitoring consoles.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		b := config.CurrentBuild()
		fmt.Printf("vitalguard-server %s\n", b.Version)
		fmt.Printf("  commit: %s\n", b.Commit)
		fmt.Printf("  built:  %s\n", b.BuiltAt)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&flags.httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-address", "", "Prometheus listen address")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path (forces the sqlite driver)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.mqttBroker, "mqtt-broker", "", "enable MQTT ingestion from this broker")
	rootCmd.PersistentFlags().BoolVar(&flags.escalation, "escalation", false, "run the escalation scanner")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, "vitalguard-server")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	build := config.CurrentBuild()
	metrics.SetBuildInfo(build.Version, build.Commit, build.BuiltAt)

	store, err := app.OpenStorage(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	dispatcher, err := app.NewDispatcher(cfg.Notifications, store.Alerts(), logger)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	// Real-time fan-out: the in-process hub always, Redis when configured.
	hub := realtime.NewHub(cfg.Realtime.ClientBuffer, logger)
	publishers := []realtime.Publisher{hub}
	var (
		cache       realtime.ReadingCache
		latest      devices.LatestCache
		redisClient *redis.Client
		redisPub    *realtime.RedisPublisher
	)
	if cfg.Realtime.Redis.Addr != "" {
		rc := redisConfig(cfg.Realtime.Redis)
		redisClient = realtime.NewRedisClient(rc)
		defer redisClient.Close()

		redisPub = realtime.NewRedisPublisher(redisClient, rc, logger)
		publishers = append(publishers, redisPub)
		cache = redisPub
		latest = redisPub
		logger.Info("redis fan-out enabled", zap.String("addr", rc.Addr))
	}
	fanout := realtime.NewFanout(cache, logger, publishers...)

	recorder := alerting.NewRecorder(store.Alerts())
	manager := alerting.NewManager(store.Alerts(), fanout)

	svc := ingest.NewService(ingest.Deps{
		Devices:     store.Devices(),
		Readings:    store.Readings(),
		Recorder:    recorder,
		Dispatcher:  dispatcher,
		Broadcaster: fanout,
	}, ingest.Config{
		Thresholds:      cfg.Thresholds,
		DispatchTimeout: cfg.Notifications.DispatchTimeout,
	}, logger.Named("ingest"))

	apiServer, err := api.New(apiConfig(cfg), api.Deps{
		Storage:   store,
		Ingester:  svc,
		Lifecycle: manager,
		Hub:       hub,
		Latest:    latest,
	}, logger)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}
	if redisPub != nil {
		apiServer.RegisterHealthChecker(health.NewPingChecker("redis", redisPub))
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return apiServer.Run(gCtx)
	})

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Address, logger.Named("metrics"))
		g.Go(func() error {
			return metricsServer.Run(gCtx)
		})
	}

	if cfg.MQTT.Enabled {
		sub := ingest.NewMQTTSubscriber(mqttConfig(cfg.MQTT), svc, logger.Named("mqtt"))
		apiServer.RegisterHealthChecker(health.NewConnChecker("mqtt", sub.IsConnected))
		g.Go(func() error {
			return sub.Start(gCtx)
		})
	}

	if cfg.Jobs.Escalation.Enabled {
		scanner := jobs.NewEscalationScanner(store.Alerts(), manager, dispatcher, logger)
		g.Go(func() error {
			return jobs.Run(gCtx, scanner, cfg.Jobs.Escalation.Interval, logger)
		})
	}

	if cfg.Jobs.Retention.Enabled {
		purger := jobs.NewPurger(store.Readings(), store.Alerts(), retentionConfig(cfg.Jobs.Retention), logger)
		g.Go(func() error {
			return jobs.Run(gCtx, purger, cfg.Jobs.Retention.Interval, logger)
		})
	}

	logger.Info("starting vitalguard-server",
		zap.String("version", config.Version),
		zap.String("http", cfg.Server.HTTPAddress),
		zap.Bool("auth", cfg.Server.Auth.JWTSecret != ""),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
	)

	err = g.Wait()

	// Let in-flight notifications and broadcasts finish before closing
	// the store they write to.
	svc.Wait()

	if err != nil {
		return fmt.Errorf("run server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
