package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"calview/internal/config"
	"calview/internal/ics"
	appLog "calview/internal/log"
	"calview/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	cacheDir   string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("calviewd starting",
		"listen", conf.Listen,
		"timezone", conf.TimeZone,
		"week_starts_on", conf.WeekStartsOn,
		"refresh", conf.RefreshCron,
		"source_count", len(conf.Sources),
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	fetcher := ics.NewFetcher(flags.cacheDir)
	server := web.NewServer(conf, fetcher)

	// Warm the snapshot before serving; per-source failures are not fatal.
	if err := server.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}
	if flags.once {
		appLog.Info("single refresh complete, exiting")
		return
	}

	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		if err := server.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP shutdown failed", err)
		}
	}

	appLog.Info("calviewd exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/calview/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.cacheDir, "cache-dir", "/var/lib/calview/ics-cache", "Directory for the ICS fetch cache")
	flag.BoolVar(&cfg.once, "once", false, "Run one feed refresh and exit")

	flag.Parse()

	return cfg
}
