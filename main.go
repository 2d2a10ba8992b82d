package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"markestedt/keyrecorder/config"
	"markestedt/keyrecorder/systray"
)

func main() {
	// Setup logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	configPath, _ := config.ConfigPath()
	slog.Info("Configuration loaded", "path", configPath)

	// Create agent
	agent, err := NewAgent(cfg)
	if err != nil {
		slog.Error("Failed to create agent", "error", err)
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !cfg.Tray.Enabled {
		if err := agent.Run(ctx); err != nil {
			slog.Error("Agent error", "error", err)
			os.Exit(1)
		}
		slog.Info("KeyRecorder stopped")
		return
	}

	// The tray owns the main thread; the agent runs beside it
	tray := systray.NewSystrayManager(agent.Machine(), agent.WebURL(), agent.RecordsDir(), nil)
	agent.SetTray(tray)

	errCh := make(chan error, 1)
	go func() {
		errCh <- agent.Run(ctx)
	}()

	go func() {
		select {
		case <-tray.WaitForQuit():
			cancel()
		case <-ctx.Done():
			tray.Stop()
		}
	}()

	tray.Run()
	cancel()

	if err := <-errCh; err != nil {
		slog.Error("Agent error", "error", err)
		os.Exit(1)
	}

	slog.Info("KeyRecorder stopped")
}
