package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"wikical/internal/config"
	"wikical/internal/ics"
	appLog "wikical/internal/log"
	"wikical/internal/web"
	"wikical/internal/wiki"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	format     string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"refresh", conf.RefreshCron,
		"cache_dir", conf.CacheDir,
		"events_url", conf.Wiki.EventsURL,
		"versions_url", conf.Wiki.VersionsURL,
		"once", flags.once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := wiki.NewClientFromConfig(conf)

	if flags.once {
		if err := runOnce(ctx, client, conf, flags.format, os.Stdout); err != nil {
			appLog.Error("run failed", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, client, conf); err != nil {
		appLog.Error("server failed", err)
		os.Exit(1)
	}
	appLog.Info("wikical exiting")
}

// runOnce fetches a single snapshot and writes it to w as JSON or iCalendar.
func runOnce(ctx context.Context, client *wiki.Client, conf *config.Config, format string, w io.Writer) error {
	snap, err := client.Snapshot(ctx)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Events)
	case "ics":
		_, err := io.WriteString(w, ics.Render(snap.Events, ics.RenderOptions{
			Domain: conf.CalendarDomain,
			Name:   "wikical",
			Stamp:  snap.FetchedAt,
		}))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// serve runs the HTTP API and refreshes the snapshot on the configured
// cron schedule until ctx is canceled.
func serve(ctx context.Context, client *wiki.Client, conf *config.Config) error {
	srv := web.NewServer(conf, client)

	refresh := func() {
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		snap, err := srv.Refresh(rctx)
		if err != nil {
			appLog.Error("scheduled refresh failed", err)
			return
		}
		appLog.Info("scheduled refresh done", "events", len(snap.Events), "versions", len(snap.Versions))
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, refresh); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
	}
	c.Start()
	defer c.Stop()

	// Warm the cache so the first request does not block on the wiki.
	go refresh()

	return srv.ListenAndServe(ctx)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, print the events and exit")
	flag.StringVar(&cfg.format, "format", "json", "Output format for -once: json or ics")

	flag.Parse()

	return cfg
}
