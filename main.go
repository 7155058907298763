// Package main is the entry point for the Nightscout therapy engine
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mrcode/nightscout-engine/internal/api"
	"github.com/mrcode/nightscout-engine/internal/app"
	"github.com/mrcode/nightscout-engine/internal/badge"
	"github.com/mrcode/nightscout-engine/internal/config"
	"github.com/mrcode/nightscout-engine/internal/engine"
	"github.com/mrcode/nightscout-engine/internal/logger"
	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/mqttpub"
	"github.com/mrcode/nightscout-engine/internal/nightscout"
	"github.com/mrcode/nightscout-engine/internal/notifications"
	"github.com/mrcode/nightscout-engine/internal/stream"
)

const serviceName = "nightscout-engine"

func main() {
	mode := flag.String("mode", "status", "One of status, report, watch, serve")
	days := flag.Int("days", 0, "Report window in days (defaults to statistics.days)")
	badgePath := flag.String("badge", "", "Write the status badge to this .png or .ico path")
	notify := flag.Bool("notify", false, "Send desktop alerts in watch and serve modes")
	testNotify := flag.Bool("test-notify", false, "Send a test notification and exit")
	flag.Parse()

	log := logger.New(serviceName)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	settings := cfg.Settings()
	var notifyManager *notifications.Manager
	if *notify || *testNotify {
		notifyManager = notifications.NewManager(settings, notifications.WithLogger(log))
	}
	if *testNotify {
		if err := notifyManager.SendTestNotification(); err != nil {
			log.Error("test notification failed", "error", err)
			os.Exit(1)
		}
		return
	}

	client := nightscout.NewClient(cfg.Nightscout.URL, cfg.Nightscout.APISecret, cfg.Nightscout.APIToken, cfg.Nightscout.APIToken != "")
	client.SetTimeout(cfg.Nightscout.Timeout)

	svc := engine.NewService(client, engine.Options{
		Settings:        settings,
		ProfileDefaults: cfg.Profile,
		Ranges:          cfg.Statistics.Ranges,
		Location:        cfg.Location(),
		CacheTTL:        cfg.Nightscout.CacheTTL,
		Lookback:        cfg.Nightscout.Lookback,
		Logger:          log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mode == "watch" || *mode == "serve" {
		if info, err := client.GetStatus(ctx); err != nil {
			log.Warn("nightscout unreachable, will retry", "error", err)
		} else {
			log.Info("connected to nightscout", "name", info.Name, "version", info.Version, "units", info.Settings.Units)
		}
	}

	watchOpts := app.Options{
		Interval:  cfg.Nightscout.RefreshInterval,
		BadgePath: *badgePath,
		Logger:    log,
	}
	var hub *stream.Hub
	if *mode == "serve" {
		hub = stream.NewHub(log)
		go hub.Run(ctx)
		watchOpts.Publishers = append(watchOpts.Publishers, hub)
	}
	if cfg.MQTT.Enabled() && (*mode == "watch" || *mode == "serve") {
		publisher, mqttClient, err := mqttpub.Connect(cfg.MQTT, log)
		if err != nil {
			log.Error("mqtt disabled", "error", err)
		} else {
			defer mqttClient.Disconnect(250)
			watchOpts.Publishers = append(watchOpts.Publishers, publisher)
		}
	}
	watcher := app.New(svc, notifyManager, watchOpts)
	if *mode == "watch" || *mode == "serve" {
		go reloadOnHangup(ctx, settings, notifyManager, log)
	}

	switch *mode {
	case "status":
		err = printStatus(ctx, os.Stdout, svc, *badgePath)
	case "report":
		if *days <= 0 {
			*days = cfg.Statistics.Days
		}
		err = printReport(ctx, os.Stdout, svc, *days)
	case "watch":
		err = watcher.Run(ctx)
	case "serve":
		err = serve(ctx, cfg, svc, watcher, hub, log)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("command failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

// reloadOnHangup re-reads the alarm thresholds on SIGHUP
func reloadOnHangup(ctx context.Context, settings *models.Settings, notifyManager *notifications.Manager, log *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load()
			if err != nil {
				log.Error("config reload failed", "error", err)
				continue
			}
			next := cfg.Settings()
			settings.Update(next)
			if notifyManager != nil {
				notifyManager.UpdateSettings(next)
				notifyManager.ClearAlertState("")
			}
			log.Info("settings reloaded", "mmol", settings.IsMmol())
		}
	}
}

func printStatus(ctx context.Context, w io.Writer, svc *engine.Service, badgePath string) error {
	status, err := svc.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s %s", status.GlucoseDisplay, status.Units, status.Direction.Label)
	if status.Delta != nil {
		fmt.Fprintf(w, " (%s)", status.Delta.Display)
	}
	if status.Stale {
		fmt.Fprintf(w, " stale %.0fm", status.AgeMinutes)
	}
	fmt.Fprintln(w)
	if line := badge.Sparkline(status.History); line != "" {
		fmt.Fprintln(w, line)
	}
	if status.Cob.Display != "" {
		fmt.Fprintln(w, status.Cob.DisplayLine)
	}
	if status.Iob != nil {
		fmt.Fprintf(w, "IOB: %.2fU\n", status.Iob.Iob)
	}
	if status.BWP.DisplayLine != "" {
		fmt.Fprintln(w, status.BWP.DisplayLine)
	}
	for _, e := range status.BWP.Errors {
		fmt.Fprintln(w, "BWP:", e)
	}

	if badgePath == "" {
		return nil
	}
	format := badge.FormatPNG
	if filepath.Ext(badgePath) == ".ico" {
		format = badge.FormatICO
	}
	data, err := badge.Render(status, format)
	if err != nil {
		return err
	}
	return os.WriteFile(badgePath, data, 0o600)
}

func printReport(ctx context.Context, w io.Writer, svc *engine.Service, days int) error {
	report, err := svc.Report(ctx, days)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func serve(ctx context.Context, cfg *config.Config, svc *engine.Service, watcher *app.Watcher, hub *stream.Hub, log *slog.Logger) error {
	handler := api.NewServer(svc, log, api.WithStream(hub)).Handler(os.Stdout, cfg.HTTP.AllowedOrigins)
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	go func() {
		_ = watcher.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", cfg.HTTP.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
