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

	"groupcal/internal/api"
	"groupcal/internal/config"
	appLog "groupcal/internal/log"
	"groupcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	cacheDir   string
	once       bool
	dump       bool
}

func main() {
	appLog.Info("groupcal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"weeks_to_show", conf.WeeksToShow,
		"refresh", conf.RefreshCron,
		"group_count", len(conf.Groups),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	client := api.NewClient(conf.API.BaseURL, conf.API.Token, flags.cacheDir)
	server := web.NewServer(conf, client)

	if flags.once {
		if err := server.RefreshAll(ctx); err != nil {
			appLog.Error("refresh failed", err)
			os.Exit(1)
		}
		if flags.dump {
			if err := server.Dump(ctx, os.Stdout); err != nil {
				appLog.Error("dump failed", err)
				os.Exit(1)
			}
		}
		appLog.Info("groupcal exiting")
		return
	}

	// Periodic refresh keeps the schedule cache warm so interactive
	// requests rarely pay the backend round trip.
	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		refreshCtx, refreshCancel := context.WithTimeout(context.Background(), time.Minute)
		defer refreshCancel()
		if err := server.RefreshAll(refreshCtx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh cron spec", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	// Warm the cache once at startup; failures are non-fatal, the next
	// cron tick retries.
	go func() {
		if err := server.RefreshAll(ctx); err != nil {
			appLog.Error("initial refresh failed", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("http shutdown failed", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}

	appLog.Info("groupcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/groupcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.cacheDir, "cache-dir", "/var/lib/groupcal/api-cache", "Directory for the backend response cache")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh cycle and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "With -once, dump the aggregated schedules as JSON to stdout")

	flag.Parse()

	return cfg
}
