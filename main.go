package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"tailscale.com/hostinfo"

	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/session"
)

//go:embed tmpl/*.html
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

var (
	version  string     = "dev"
	gitSha   string     = "no-commit"
	logLevel slog.Level = slog.LevelInfo
)

const sessionSweepInterval = 5 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	config, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	config.ServiceVersion = version

	if config.LogDebug {
		logLevel = slog.LevelDebug
	}
	logger := newLogger(&logLevel, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	telemetry, shutdownTelemetry, err := setupTelemetry(ctx, config)
	if err != nil {
		logger.Error("telemetry setup failed", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()
	if telemetry.LogHandler != nil {
		logger = newLogger(&logLevel, telemetry.LogHandler)
	}
	config.Logger = logger

	hostinfo.SetApp("leaseqa")

	host, _ := os.Hostname()
	versionGauge.With(prometheus.Labels{"version": version, "git_commit": gitSha, "hostname": host}).Set(1)
	telemetry.Metrics.VersionGauge.Record(ctx, 1, metric.WithAttributes(
		attribute.String("version", version),
		attribute.String("git_commit", gitSha),
	))

	client, err := api.New(config.APIBase,
		api.WithTimeout(config.RequestTimeout),
		api.WithUserAgent("leaseqa-web/"+version),
	)
	if err != nil {
		logger.Error("backend client setup failed", slog.String("error", err.Error()))
		return 1
	}

	registry := session.NewRegistry(config.SessionIdle, logger)
	go registry.Run(ctx, sessionSweepInterval)

	tmpls, err := setupTemplates(templateFiles)
	if err != nil {
		logger.Error("template parsing failed", slog.String("error", err.Error()))
		return 1
	}

	svc := NewLeaseService(
		NewBackendFactory(client, telemetry),
		registry,
		logger,
		tmpls,
		telemetry,
		config,
		version,
		gitSha,
	)

	routes, ms := SetupRoutes(svc, staticFiles, config)
	defer ms.Close()
	handler := HistogramHttpHandler(routes)

	logger.Info("starting leaseqa",
		slog.String("version", version),
		slog.String("git_sha", gitSha),
		slog.String("api", config.APIBase),
		slog.Bool("tailnet", config.Tailnet))

	if !config.Tailnet {
		ln, err := net.Listen("tcp", config.ListenAddr)
		if err != nil {
			logger.Error("listen failed", slog.String("addr", config.ListenAddr), slog.String("error", err.Error()))
			return 1
		}
		server := createHTTPServer(handler, config.ListenAddr)
		go startServer(server, ln, logger, "http", ln.Addr().String())
		return waitForShutdown(sigChan, ctx, logger, server)
	}

	s, err := setupTsNetServer(ctx, config, logger)
	if err != nil {
		logger.Error("tsnet setup failed", slog.String("error", err.Error()))
		return 1
	}
	defer s.Close()

	lc, err := s.LocalClient()
	if err != nil {
		logger.Error("tsnet local client failed", slog.String("error", err.Error()))
		return 1
	}

	ln, tln, err := startListeners(s)
	if err != nil {
		logger.Error("tsnet listen failed", slog.String("error", err.Error()))
		return 1
	}
	defer ln.Close()
	defer tln.Close()

	serverPlain := createHTTPServer(handler, ":80")
	serverTls := createHTTPServer(handler, ":443")

	go startServer(serverPlain, ln, logger, "http", config.Hostname)
	go startServer(serverTls, tln, logger, "https", expandSNIName(ctx, lc, config.Hostname, logger))

	return waitForShutdown(sigChan, ctx, logger, serverPlain, serverTls)
}
