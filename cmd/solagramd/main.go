// Package main provides the entry point for the solagram sync daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/amitsaini144/solagram/internal/config"
	"github.com/amitsaini144/solagram/internal/derive"
	"github.com/amitsaini144/solagram/internal/engine"
	"github.com/amitsaini144/solagram/internal/health"
	"github.com/amitsaini144/solagram/internal/ledger"
	"github.com/amitsaini144/solagram/internal/metrics"
	"github.com/amitsaini144/solagram/internal/server"
	"github.com/amitsaini144/solagram/internal/wallet"
	"github.com/amitsaini144/solagram/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	printConfig := flag.Bool("print-config", false, "print the effective config as YAML and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "solagramd: %v\n", err)
		os.Exit(1)
	}

	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "solagramd: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(out)
		return
	}

	// Initialize logger
	logger := initLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("starting solagramd",
		zap.String("ledger_endpoint", cfg.Ledger.Endpoint),
		zap.String("program_id", cfg.Ledger.ProgramID),
		zap.Int("server_port", cfg.Server.Port),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("daemon exited", zap.Error(err))
	}

	logger.Info("solagramd shutdown complete")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	program, err := cfg.ProgramIdentity()
	if err != nil {
		return err
	}

	// Load or generate the signing wallet
	w, err := loadWallet(cfg.Wallet, logger)
	if err != nil {
		return err
	}

	// Initialize metrics
	met := metrics.NewMetrics()

	// Initialize ledger client
	client := ledger.NewClient(ledger.Config{
		Endpoint:       cfg.Ledger.Endpoint,
		RequestTimeout: cfg.Ledger.RequestTimeout,
		MaxRetries:     cfg.Ledger.MaxRetries,
		RetryBackoff:   cfg.Ledger.RetryBackoff,
		RateLimit:      cfg.Ledger.RateLimit,
		RateBurst:      cfg.Ledger.RateBurst,
		MaxBatchSize:   cfg.Ledger.MaxBatchSize,
	}, logger)

	// Initialize sync engine
	deriver := derive.NewDeriver(program)
	eng, err := engine.New(deriver, client, engine.Config{
		MaxBatchSize:     cfg.Ledger.MaxBatchSize,
		ProfileCacheSize: cfg.Engine.ProfileCacheSize,
		MaxAge:           cfg.Engine.MaxAge,
	}, met, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	eng.Connect(w)
	logger.Info("wallet connected", zap.String("identity", w.Identity().String()))

	checker := health.NewChecker(client, met, logger)
	sub := ledger.NewSubscriber(cfg.Ledger.SubscribeURL, eng.HandleNotification, logger)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg, eng, checker, met, logger)
	httpServer.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return checker.Run(gctx) })
	g.Go(func() error { return sub.Run(gctx) })

	// Background refresh keeps the hot views warm between user requests
	if cfg.Refresh.Enabled {
		pool := worker.NewPool("refresh", cfg.Refresh.Workers, cfg.Refresh.QueueSize, logger)
		g.Go(func() error {
			err := refreshLoop(gctx, eng, pool, cfg, logger)
			if stopErr := pool.Stop(cfg.Server.ShutdownTimeout); stopErr != nil {
				logger.Warn("refresh pool did not drain", zap.Error(stopErr))
			}
			return err
		})
	}

	g.Go(func() error { return httpServer.Start() })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		met.SetHealthStatus(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Start metrics server if enabled
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadWallet reads the key file, generating a fresh key on first run when
// the config allows it.
func loadWallet(cfg config.WalletConfig, logger *zap.Logger) (*wallet.KeyWallet, error) {
	w, err := wallet.Load(cfg.KeyFile)
	if err == nil {
		logger.Info("wallet loaded",
			zap.String("key_file", cfg.KeyFile),
			zap.String("identity", w.Identity().String()))
		return w, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || !cfg.Generate {
		return nil, err
	}

	w, err = wallet.Generate()
	if err != nil {
		return nil, err
	}
	if err := w.Save(cfg.KeyFile); err != nil {
		return nil, err
	}
	logger.Info("wallet generated",
		zap.String("key_file", cfg.KeyFile),
		zap.String("identity", w.Identity().String()))
	return w, nil
}

// refreshLoop re-fetches the hot collections on a fixed interval. Each
// collection refresh runs as one task on the bounded pool so a slow node
// cannot pile up goroutines.
func refreshLoop(ctx context.Context, eng *engine.Engine, pool *worker.Pool, cfg *config.Config, logger *zap.Logger) error {
	ticker := time.NewTicker(cfg.Refresh.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, task := range refreshTasks(eng) {
				if !pool.Submit(ctx, task) {
					logger.Warn("refresh task dropped", zap.String("task", task.Name))
				}
			}
		}
	}
}

func refreshTasks(eng *engine.Engine) []worker.Task {
	tasks := []worker.Task{{
		Name: "refresh_feed",
		Fn: func(ctx context.Context) error {
			_, err := eng.Feed(ctx)
			return err
		},
	}}

	actor, ok := eng.Actor()
	if !ok {
		return tasks
	}
	return append(tasks,
		worker.Task{
			Name: "refresh_profile",
			Fn: func(ctx context.Context) error {
				_, err := eng.Profile(ctx, actor)
				return err
			},
		},
		worker.Task{
			Name: "refresh_posts",
			Fn: func(ctx context.Context) error {
				_, err := eng.PostsByCreator(ctx, actor)
				return err
			},
		})
}

// initLogger initializes the zap logger from the logging config.
func initLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
