// Command siren is the Siren capture client. It records the microphone,
// segments utterances against the adaptive noise floor, uploads each segment
// to the gateway's /translate endpoint, and plays the translated replies back
// in order.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dragoon4890/siren/internal/app"
	"github.com/dragoon4890/siren/internal/config"
	"github.com/dragoon4890/siren/internal/relay"
	audiomalgo "github.com/dragoon4890/siren/pkg/audio/malgo"
	"github.com/dragoon4890/siren/pkg/types"
)

const defaultGatewayURL = "ws://localhost:8080/translate"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listDevices := flag.Bool("devices", false, "list capture devices and exit")
	flag.Parse()

	if *listDevices {
		return printDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "siren: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "siren: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust it at
	// runtime without swapping the handler.
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Client.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})))

	gatewayURL := cfg.Client.GatewayURL
	if gatewayURL == "" {
		gatewayURL = defaultGatewayURL
	}

	slog.Info("siren starting",
		"config", *configPath,
		"gateway_url", gatewayURL,
		"log_level", cfg.Client.LogLevel,
	)

	// ── Audio platform ────────────────────────────────────────────────────────
	platform, err := audiomalgo.New()
	if err != nil {
		slog.Error("failed to initialise audio backend", "err", err)
		return 1
	}
	defer platform.Close()

	// ── Engine and relay ──────────────────────────────────────────────────────
	var engine *app.Engine
	client := relay.New(gatewayURL, func(result types.TranslationResult) {
		engine.HandleResult(result)
	})
	engine = app.New(cfg, platform, client, audiomalgo.NewSpeaker(platform))
	defer engine.Close()

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			levelVar.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		engine.ApplyDiff(d)
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Manual stop: each line on stdin flushes the segment being recorded.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			engine.StopSegment()
		}
	}()

	slog.Info("client ready — speak into the microphone, press Enter to flush a segment, Ctrl+C to quit")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return client.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// printDevices lists the capture devices the audio backend can see, marking
// the system default. The printed IDs go into client.device in the config.
func printDevices() int {
	platform, err := audiomalgo.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "siren: %v\n", err)
		return 1
	}
	defer platform.Close()

	devices, err := platform.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "siren: %v\n", err)
		return 1
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s %s  %s\n", marker, d.ID, d.Name)
	}
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
