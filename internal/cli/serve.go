package cli

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkazlausk/collabsync/internal/config"
	"github.com/mkazlausk/collabsync/internal/coord"
	"github.com/mkazlausk/collabsync/internal/merge"
	"github.com/mkazlausk/collabsync/internal/server"
	"github.com/mkazlausk/collabsync/internal/session"
	"github.com/mkazlausk/collabsync/internal/store"
)

var (
	serveConfigPath   string
	serveListen       string
	serveDataDir      string
	serveLogLevel     string
	serveLogFormat    string
	serveTLSCert      string
	serveTLSKey       string
	serveAdminToken   string
	serveWebhookURLs  string
	serveHistoryLimit int
	serveMemoryStore  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collabsync server",
	Long: `Start the collabsync server.

The server exposes a WebSocket endpoint at /ws for editor clients and a
JSON inspection API under /api/sessions. File contents are persisted to
sqlite when the last editor leaves a session.

Flags override environment variables, which override the config file.

Examples:
  collabsync serve
  collabsync serve --listen 0.0.0.0:8730 --data-dir /var/lib/collabsync
  collabsync serve --config /etc/collabsync/config.toml`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVar(&serveConfigPath, "config", os.Getenv("COLLABSYNC_CONFIG"), "Path to TOML config file")
	f.StringVar(&serveListen, "listen", envOrDefault("COLLABSYNC_LISTEN", ""), "Listen address (host:port)")
	f.StringVar(&serveDataDir, "data-dir", envOrDefault("COLLABSYNC_DATA_DIR", ""), "Directory for persisted file content")
	f.StringVar(&serveLogLevel, "log-level", envOrDefault("COLLABSYNC_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")
	f.StringVar(&serveLogFormat, "log-format", envOrDefault("COLLABSYNC_LOG_FORMAT", ""), "Log format (json|text)")
	f.StringVar(&serveTLSCert, "tls-cert", os.Getenv("COLLABSYNC_TLS_CERT"), "TLS certificate file")
	f.StringVar(&serveTLSKey, "tls-key", os.Getenv("COLLABSYNC_TLS_KEY"), "TLS key file")
	f.StringVar(&serveAdminToken, "admin-token", os.Getenv("COLLABSYNC_ADMIN_TOKEN"), "Bearer token guarding the inspection API")
	f.StringVar(&serveWebhookURLs, "webhook-urls", os.Getenv("COLLABSYNC_WEBHOOK_URLS"), "Comma-separated webhook URLs for session lifecycle events")
	f.IntVar(&serveHistoryLimit, "history-limit", envIntOrDefault("COLLABSYNC_HISTORY_LIMIT", 0), "Max history entries retained per session")
	f.BoolVar(&serveMemoryStore, "memory-store", false, "Keep file content in memory only (no persistence)")
}

// resolveConfig merges the config file with flag and env overrides.
func resolveConfig() *config.Config {
	cfg := config.Default()
	if serveConfigPath != "" {
		loaded, err := config.Load(serveConfigPath)
		if err != nil {
			exitError("%v", err)
		}
		cfg = loaded
	}

	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if serveDataDir != "" {
		cfg.DataDir = serveDataDir
	}
	if serveLogLevel != "" {
		cfg.LogLevel = serveLogLevel
	}
	if serveLogFormat != "" {
		cfg.LogFormat = serveLogFormat
	}
	if serveTLSCert != "" {
		cfg.TLSCert = serveTLSCert
	}
	if serveTLSKey != "" {
		cfg.TLSKey = serveTLSKey
	}
	if serveAdminToken != "" {
		cfg.AdminToken = serveAdminToken
	}
	if serveHistoryLimit > 0 {
		cfg.HistoryLimit = serveHistoryLimit
	}
	if serveMemoryStore {
		cfg.MemoryStore = true
	}
	if serveWebhookURLs != "" {
		var urls []string
		for _, u := range strings.Split(serveWebhookURLs, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				urls = append(urls, u)
			}
		}
		cfg.WebhookURLs = urls
	}

	return cfg
}

func runServe(_ *cobra.Command, _ []string) {
	cfg := resolveConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)

	var files store.FileStore
	if cfg.MemoryStore {
		files = store.NewMemoryStore()
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			logger.Error("failed to create data directory", "error", err, "path", cfg.DataDir)
			os.Exit(1)
		}
		st, err := store.NewSQLiteStore(cfg.DatabasePath())
		if err != nil {
			logger.Error("failed to open file store", "error", err, "path", cfg.DatabasePath())
			os.Exit(1)
		}
		files = st
	}

	var notifier coord.Notifier
	if len(cfg.WebhookURLs) > 0 {
		wn := server.NewWebhookNotifier(&server.WebhookConfig{URLs: cfg.WebhookURLs}, logger)
		if wn != nil {
			notifier = wn
			logger.Info("webhooks configured", "count", len(cfg.WebhookURLs))
		}
	}

	registry := session.NewRegistry(merge.NewResolver(), cfg.HistoryLimit, logger)
	coordinator := coord.New(registry, files, notifier, logger)
	hub := server.NewHub(coordinator, logger)

	h := server.Handler(hub, registry, &server.ServerConfig{AdminToken: cfg.AdminToken}, logger)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.Background() },
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting collabsync server", "listen", cfg.Listen, "data_dir", cfg.DataDir)
		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	hub.Close()
	coordinator.WriteBackAll(ctx)
	if err := files.Close(); err != nil {
		logger.Error("file store close error", "error", err)
	}
	logger.Info("server stopped")
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
