package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaiyopos/print-engine/internal/api"
	"github.com/chaiyopos/print-engine/internal/config"
	"github.com/chaiyopos/print-engine/internal/settings"
	"github.com/chaiyopos/print-engine/internal/transport/ble"
	"github.com/chaiyopos/print-engine/internal/transport/netprint"
)

// Version is set during build via ldflags
var Version = "dev"

const reconnectTimeout = 15 * time.Second

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	log.Info("print engine starting", "version", Version)

	store, err := settings.New(cfg.Storage.SettingsFile)
	if err != nil {
		log.Error("failed to open settings store", "file", cfg.Storage.SettingsFile, "error", err)
		os.Exit(1)
	}

	// Seed the network printer address on first run.
	if store.Get().PrinterHost == "" {
		store.Update(settings.Patch{
			PrinterHost: &cfg.Network.PrinterHost,
			PrinterPort: &cfg.Network.PrinterPort,
		})
	}

	network := netprint.New(store)

	central, err := ble.NewCentral()
	if err != nil {
		// A host without a bluetooth stack still serves network printing.
		log.Warn("bluetooth unavailable, wireless printing disabled", "error", err)
	}
	blue := ble.New(central, store)

	// One best-effort reattach to the paired printer per process start.
	if central != nil && store.Get().DeviceID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
			defer cancel()
			if blue.Reconnect(ctx) {
				log.Info("reattached to paired printer", "device", store.Get().DeviceName)
			}
		}()
	}

	server := api.NewServer(blue, network, store, log)

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("api server listening", "addr", cfg.Server.Listen)
		if err := server.Run(cfg.Server.Listen); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrChan:
		log.Error("api server failed", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())
		blue.Disconnect()
		os.Exit(0)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			out = f
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}
