package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/philipexavier/proxy-rasa/internal/auth"
	"github.com/philipexavier/proxy-rasa/internal/config"
	"github.com/philipexavier/proxy-rasa/internal/logging"
	"github.com/philipexavier/proxy-rasa/internal/normalize"
	"github.com/philipexavier/proxy-rasa/internal/proxy"
	"github.com/philipexavier/proxy-rasa/internal/upstream"
)

const usage = "Usage: proxy-rasa <command> [flags]\nCommands: serve, probe, version"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(cmdServe())
	case "probe":
		os.Exit(cmdProbe())
	case "version":
		fmt.Println(config.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
}

// loadConfig reads the file named by -config (or PROXY_CONFIG), applies the
// environment, then lets explicitly set flags win.
func loadConfig(path string, fs *flag.FlagSet, apply func(*config.ServerConfig, *flag.Flag)) (*config.ServerConfig, error) {
	if path == "" {
		path = os.Getenv("PROXY_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { apply(cfg, f) })
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.ServerConfig) (func(), bool) {
	logger, closer, err := logging.Setup(cfg)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		return nil, false
	}
	slog.SetDefault(logger)
	return func() {
		if err := closer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}, true
}

func cmdServe() int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML configuration file")
	host := fs.String("host", "", "Bind host")
	port := fs.Int("port", 0, "Listen port")
	rasaURL := fs.String("rasa-url", "", "Conversational backend base URL")
	localURL := fs.String("local-llm-url", "", "Local generation service URL")
	debug := fs.Bool("debug", false, "Dump inbound requests and backend exchanges")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	contract := fs.String("content-contract", "", "Assistant content contract (json-string|object)")
	fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath, fs, func(cfg *config.ServerConfig, f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "rasa-url":
			cfg.BackendURL = *rasaURL
		case "local-llm-url":
			cfg.LocalLLMURL = *localURL
		case "debug":
			cfg.Debug = *debug
		case "verbose":
			cfg.Verbose = *verbose
		case "content-contract":
			cfg.ContentContract = config.ContentContract(*contract)
		}
	})
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	closeLog, ok := setupLogging(cfg)
	if !ok {
		return 1
	}
	defer closeLog()

	srv, err := proxy.New(cfg)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("proxy starting",
		"version", config.Version,
		"addr", cfg.Addr(),
		"rasa_url", cfg.BackendURL,
		"local_llm", cfg.LocalLLMURL != "",
		"backend_auth", string(auth.SchemeFor(cfg)),
		"content_contract", string(cfg.ContentContract),
		"portuguese_correction", cfg.LocaleCorrection,
		"metrics", cfg.MetricsEnabled,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		return 1
	}
	return 0
}

type probeReport struct {
	Prompt   string          `json:"prompt"`
	Attempts []probeAttempt  `json:"attempts"`
	Source   string          `json:"source,omitempty"`
	Raw      any             `json:"raw,omitempty"`
	Result   json.RawMessage `json:"result"`
}

type probeAttempt struct {
	Transport  string `json:"transport"`
	OK         bool   `json:"ok"`
	Status     int    `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// cmdProbe sends one prompt through the dispatch chain and prints every
// attempt plus the normalized result. Exits 2 when no backend answered.
func cmdProbe() int {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML configuration file")
	text := fs.String("text", "olá", "Prompt to send through the dispatch chain")
	conversationID := fs.String("conversation-id", "", "Conversation id for the conversation parse endpoint")
	rasaURL := fs.String("rasa-url", "", "Conversational backend base URL")
	fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath, fs, func(cfg *config.ServerConfig, f *flag.Flag) {
		if f.Name == "rasa-url" {
			cfg.BackendURL = *rasaURL
		}
	})
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}
	closeLog, ok := setupLogging(cfg)
	if !ok {
		return 1
	}
	defer closeLog()

	ctx := context.Background()
	backend, err := auth.NewBackendClient(ctx, cfg, &http.Client{})
	if err != nil {
		slog.Error("failed to configure backend credentials", "error", err)
		return 1
	}
	d := upstream.NewDispatcher(cfg, upstream.WithBackendClient(backend))
	outcome := d.Dispatch(ctx, *text, upstream.Hints{ConversationID: *conversationID})

	raw := any(normalize.NoBackendPayload())
	if outcome.OK {
		raw = outcome.Raw
	}
	result, err := json.Marshal(normalize.Normalize(raw, normalize.Hints{Source: outcome.Source}).AssistantView())
	if err != nil {
		slog.Error("failed to encode result", "error", err)
		return 1
	}

	report := probeReport{
		Prompt: *text,
		Source: outcome.Source,
		Raw:    outcome.Raw,
		Result: result,
	}
	for _, a := range outcome.Attempts {
		pa := probeAttempt{
			Transport:  a.Transport,
			OK:         a.OK,
			Status:     a.Status,
			DurationMS: a.Duration.Milliseconds(),
		}
		if a.Err != nil {
			pa.Error = a.Err.Error()
		}
		report.Attempts = append(report.Attempts, pa)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		slog.Error("failed to write report", "error", err)
		return 1
	}
	if !outcome.OK {
		return 2
	}
	return 0
}
