package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warden-mail/warden/internal/config"
	"github.com/warden-mail/warden/internal/dispatch"
	"github.com/warden-mail/warden/internal/google"
	"github.com/warden-mail/warden/internal/instrumentation"
	"github.com/warden-mail/warden/internal/logging"
	"github.com/warden-mail/warden/internal/mailbox"
	"github.com/warden-mail/warden/internal/registry"
	"github.com/warden-mail/warden/internal/rules"
	"github.com/warden-mail/warden/internal/server"
	"github.com/warden-mail/warden/internal/session"
)

const sessionPurgeInterval = 10 * time.Minute

func newServeCmd() *cobra.Command {
	var (
		configPath  string
		addr        string
		metricsAddr string
		logLevel    string
		logFormat   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the warden HTTP gateway",
		Long: `Start the HTTP gateway exposing the mailbox tool catalog.

Configuration is resolved from defaults, an optional YAML config file
and WARDEN_* environment variables. The shared secret expected in the
X-API-Key header must be supplied via WARDEN_API_KEY or the config
file; the server refuses to start without one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&addr, "addr", ":8892", "Listen address for the HTTP server")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Listen address for the metrics server (empty to disable)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	return cmd
}

func runServe(cfg *config.Config) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	// Rule storage.
	rulesDB, err := rules.OpenDB(cfg.RulesDBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open rule database: %w", err)
	}
	ruleStore, err := rules.NewStore(rulesDB, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize rule store: %w", err)
	}
	ruleSvc := rules.NewService(ruleStore, logger, metrics)

	// Session context storage.
	sessionDB, err := session.OpenDB(cfg.SessionDBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open session database: %w", err)
	}
	sessions, err := session.NewGormStore(sessionDB, cfg.SessionTableName, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	// Mailbox gateway with a lazily-authenticated Gmail backend.
	creds := google.Credentials{
		CredentialsPath: cfg.GmailCredentialsPath,
		TokenPath:       cfg.GmailTokenPath,
		Scopes:          cfg.GmailScopes,
	}
	factory := func(ctx context.Context) (mailbox.Backend, error) {
		svc, err := google.NewGmailService(ctx, creds)
		if err != nil {
			return nil, err
		}
		return mailbox.NewGmailBackend(svc), nil
	}
	gateway := mailbox.NewGateway(factory, ruleSvc, logger, metrics)

	engine := dispatch.NewEngine(dispatch.Config{
		Registry:      registry.New(),
		Gateway:       gateway,
		Sessions:      sessions,
		SessionTTL:    cfg.SessionTTL(),
		DefaultUserID: cfg.DefaultUserID,
		Logger:        logger,
		Metrics:       metrics,
		Audit:         instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging),
	})

	srv, err := server.New(server.Config{
		Addr:    cfg.Addr,
		APIKey:  cfg.APIKey,
		Engine:  engine,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var metricsServer *server.MetricsServer
	if cfg.MetricsAddr != "" && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	// Expired session records are lazily dropped on read; the sweep
	// keeps the table from accumulating rows nobody reads again.
	go func() {
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-ticker.C:
				if purged, err := sessions.PurgeExpired(shutdownCtx); err != nil {
					logger.Warn("session purge failed", logging.Err(err))
				} else if purged > 0 {
					logger.Debug("purged expired sessions", slog.Int64("count", purged))
				}
			}
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer drainCancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error("error during server shutdown", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(drainCtx); err != nil {
			logger.Error("error during metrics server shutdown", logging.Err(err))
		}
	}
	return nil
}
