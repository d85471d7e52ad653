// Command server runs the sellside gateway: the MCP and A2A surfaces of a
// multi-tenant publisher sales agent.
//
// Configuration is read from a YAML file (-config, SELLSIDE_CONFIG,
// ./config.yaml or /etc/sellside/config.yaml) with SELLSIDE_* environment
// overrides. See pkg/config for every setting.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rhuss/sellside/pkg/config"
	"github.com/rhuss/sellside/pkg/debug"
	transporthttp "github.com/rhuss/sellside/pkg/transport/http"
)

// version is set at build time.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Observability)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := transporthttp.NewServer(app.Handler(),
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	logger.Info("sellside starting",
		"version", version,
		"storage", cfg.Storage.Type,
		"mcp_path", cfg.Server.MCPPath,
		"a2a_path", cfg.Server.A2APath,
		"global_fallback", cfg.Auth.GlobalFallback,
		"conflict_policy", cfg.Tenancy.ConflictPolicy,
		"debug", debug.Categories(),
	)

	return srv.Run(ctx)
}

func newLogger(cfg config.ObservabilityConfig) *slog.Logger {
	debug.Init(cfg.Debug)

	opts := &slog.HandlerOptions{Level: debug.ParseLevel(cfg.LogLevel)}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
