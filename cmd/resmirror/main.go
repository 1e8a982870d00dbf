// Command resmirror serves a TTL-gated local mirror of remote discussion
// threads with archive search over HTTP and MCP.
//
// Usage:
//
//	resmirror -db resmirror.db                   # run with defaults
//	resmirror -config resmirror.yaml -db mirror.db
//	resmirror -db resmirror.db -mcp stdio        # MCP on stdio instead of HTTP
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/kuroyagi/resmirror/dbopen"
	"github.com/kuroyagi/resmirror/mirror"
	"github.com/kuroyagi/resmirror/mirror/fetch"
)

func main() {
	configPath := flag.String("config", "", "path to resmirror.yaml config file")
	dbPath := flag.String("db", env("RESMIRROR_DB", ""), "path to SQLite database")
	listen := flag.String("listen", env("RESMIRROR_LISTEN", ":8080"), "HTTP listen address")
	mcpMode := flag.String("mcp", "", "MCP transport: stdio (disables HTTP)")
	logLevel := flag.String("log-level", env("RESMIRROR_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dbPath, *listen, *mcpMode); err != nil {
		logger.Error("resmirror: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath, listen, mcpMode string) error {
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: resmirror -db <path> [-config <file>] [-listen <addr>] [-mcp stdio]")
		os.Exit(1)
	}

	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}

	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	fetcher := fetch.New(cfg.Fetch)

	svc, err := mirror.New(db, fetcher, cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	if mcpMode == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "resmirror",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		logger.Info("MCP server starting", "transport", "stdio")
		return mcpSrv.Run(ctx, &mcp.StdioTransport{})
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	svc.RegisterHTTP(r)

	srv := &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", listen, "db", dbPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func resolveConfig(configPath string) (*mirror.Config, error) {
	if configPath != "" {
		return mirror.LoadConfig(configPath)
	}
	return &mirror.Config{}, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
