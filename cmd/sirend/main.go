// Command sirend is the Siren translation gateway. It serves the /translate
// websocket endpoint and runs each uploaded utterance segment through the
// STT → translate → TTS cascade.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dragoon4890/siren/internal/config"
	"github.com/dragoon4890/siren/internal/gateway"
	"github.com/dragoon4890/siren/internal/health"
	"github.com/dragoon4890/siren/internal/observe"
	"github.com/dragoon4890/siren/internal/resilience"
	"github.com/dragoon4890/siren/pkg/provider/stt"
	"github.com/dragoon4890/siren/pkg/provider/stt/whisper"
	"github.com/dragoon4890/siren/pkg/provider/translate"
	translateanyllm "github.com/dragoon4890/siren/pkg/provider/translate/anyllm"
	"github.com/dragoon4890/siren/pkg/provider/tts"
	"github.com/dragoon4890/siren/pkg/provider/tts/coqui"
	"github.com/dragoon4890/siren/pkg/provider/tts/soundoftext"
)

const defaultListenAddr = ":8080"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sirend: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sirend: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	slog.Info("sirend starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "sirend"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	transcriber, translator, synthesizer, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Pipeline and HTTP surface ─────────────────────────────────────────────
	pipelineOpts := []gateway.PipelineOption{
		gateway.WithProviderNames(
			cfg.Providers.STT.Name,
			cfg.Providers.Translate.Name,
			cfg.Providers.TTS.Name,
		),
	}
	if synthesizer != nil {
		pipelineOpts = append(pipelineOpts, gateway.WithSynthesizer(synthesizer))
	}
	pipeline := gateway.NewPipeline(transcriber, translator,
		cfg.Languages.Source, cfg.Languages.Target, pipelineOpts...)
	server := gateway.NewServer(pipeline)

	mux := http.NewServeMux()
	server.Register(mux)
	health.New(health.Checker{
		Name: "providers",
		Check: func(context.Context) error {
			if transcriber == nil || translator == nil {
				return errors.New("pipeline providers not configured")
			}
			return nil
		},
	}).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg, listenAddr)

	serveErr := make(chan error, 1)
	go func() {
		if cfg.Server.TLS != nil {
			serveErr <- httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
			return
		}
		serveErr <- httpServer.ListenAndServe()
	}()

	slog.Info("gateway ready — press Ctrl+C to shut down")

	select {
	case err := <-serveErr:
		slog.Error("serve error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyLLMProviders lists the any-llm backends usable as translators. They all
// share the same pattern: optional APIKey + optional BaseURL, except ollama
// which is a local server addressed by BaseURL alone.
var anyLLMProviders = []string{
	"openai", "anthropic", "gemini",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		// BaseURL doubles as the model file path for the in-process backend.
		modelPath := entry.BaseURL
		if modelPath == "" {
			modelPath = entry.Model
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── Translate ─────────────────────────────────────────────────────────────

	for _, providerName := range anyLLMProviders {
		reg.RegisterTranslate(providerName, func(entry config.ProviderEntry) (translate.Translator, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return translateanyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterTranslate("ollama", func(entry config.ProviderEntry) (translate.Translator, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return translateanyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("soundoftext", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []soundoftext.Option
		if entry.BaseURL != "" {
			opts = append(opts, soundoftext.WithBaseURL(entry.BaseURL))
		}
		return soundoftext.New(opts...), nil
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []coqui.Option
		if speaker := optString(entry.Options, "speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		return coqui.New(entry.BaseURL, opts...)
	})
}

// buildProviders instantiates the three cascade stages named in cfg. STT and
// translate are required; TTS is optional and its absence degrades the
// gateway to text-only replies.
func buildProviders(cfg *config.Config, reg *config.Registry) (stt.Transcriber, translate.Translator, tts.Synthesizer, error) {
	sttName := cfg.Providers.STT.Name
	if sttName == "" {
		return nil, nil, nil, errors.New("providers.stt.name is required")
	}
	transcriber, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create stt provider %q: %w", sttName, err)
	}
	slog.Info("provider created", "kind", "stt", "name", sttName)

	// A whisper-native primary can fall back to an HTTP whisper-server when
	// the model fails, each backend behind its own circuit breaker.
	if fallbackURL := optString(cfg.Providers.STT.Options, "fallback_url"); fallbackURL != "" {
		fallback, err := whisper.New(fallbackURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create stt fallback: %w", err)
		}
		resilient := resilience.NewTranscriber(transcriber, sttName, resilience.FallbackConfig{})
		resilient.AddFallback("whisper", fallback)
		transcriber = resilient
		slog.Info("stt fallback configured", "primary", sttName, "fallback", fallbackURL)
	}

	translateName := cfg.Providers.Translate.Name
	if translateName == "" {
		return nil, nil, nil, errors.New("providers.translate.name is required")
	}
	translator, err := reg.CreateTranslate(cfg.Providers.Translate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create translate provider %q: %w", translateName, err)
	}
	slog.Info("provider created", "kind", "translate", "name", translateName)

	var synthesizer tts.Synthesizer
	if ttsName := cfg.Providers.TTS.Name; ttsName != "" {
		synthesizer, err = reg.CreateTTS(cfg.Providers.TTS)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("tts provider not registered — replies will be text-only", "name", ttsName)
			synthesizer = nil
		} else if err != nil {
			return nil, nil, nil, fmt.Errorf("create tts provider %q: %w", ttsName, err)
		} else {
			slog.Info("provider created", "kind", "tts", "name", ttsName)
		}

		// An online TTS primary can fall back to a local Coqui server.
		if fallbackURL := optString(cfg.Providers.TTS.Options, "fallback_coqui_url"); synthesizer != nil && fallbackURL != "" {
			fallback, err := coqui.New(fallbackURL)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("create tts fallback: %w", err)
			}
			resilient := resilience.NewSynthesizer(synthesizer, ttsName, resilience.FallbackConfig{})
			resilient.AddFallback("coqui", fallback)
			synthesizer = resilient
			slog.Info("tts fallback configured", "primary", ttsName, "fallback", fallbackURL)
		}
	} else {
		slog.Info("no tts provider configured — replies will be text-only")
	}

	return transcriber, translator, synthesizer, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, listenAddr string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Siren — gateway summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Translate", cfg.Providers.Translate.Name, cfg.Providers.Translate.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Languages       : %-19s ║\n", cfg.Languages.Source+" ↔ "+cfg.Languages.Target)
	if cfg.Server.TLS != nil {
		fmt.Printf("║  TLS             : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  TLS             : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Listen addr     : %-19s ║\n", listenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
