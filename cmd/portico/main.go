// ABOUTME: Entry point for the portico gateway server
// ABOUTME: Exposes local AI chat CLIs over HTTP and an outbound broker relay

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/portico-dev/portico/internal/config"
	"github.com/portico-dev/portico/internal/engine"
	"github.com/portico-dev/portico/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                      _   _
  _ __   ___  _ __ __| |_(_) ___ ___
 | '_ \ / _ \| '__/ _' __| |/ __/ _ \
 | |_) | (_) | | | (_| |_| | (_| (_) |
 | .__/ \___/|_|  \__,_|\__|_|\___\___/
 |_|
`

// getConfigPath returns the path to the portico config file.
// Priority: PORTICO_CONFIG env var > XDG_CONFIG_HOME/portico/portico.yaml > ~/.config/portico/portico.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PORTICO_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "portico.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "portico", "portico.yaml")
}

func main() {
	// Local overrides for development; missing file is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: portico <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway server")
		fmt.Println("  health   Check gateway health")
		fmt.Println("  version  Print version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		var unavailable *engine.UnavailableError
		if errors.As(err, &unavailable) {
			return describeMissingEngines(unavailable)
		}
		return err
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow, color.Bold)

	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Engine:  %s\n", gw.EngineName())
	if cfg.Relay.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Relay:   %s\n", cfg.Relay.URL)
	}
	green.Print("    ▶ ")
	fmt.Print("Pairing: ")
	yellow.Println(gw.PairingCode())
	fmt.Println()

	logger.Info("starting portico",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"engine", gw.EngineName(),
		"device_id", gw.DeviceID(),
		"relay_enabled", cfg.Relay.Enabled,
	)

	return gw.Run(ctx)
}

// describeMissingEngines turns a failed engine probe into an actionable
// startup error instead of a bare message.
func describeMissingEngines(err *engine.UnavailableError) error {
	var sb strings.Builder
	sb.WriteString("no chat engine found on PATH\n\n")
	sb.WriteString("portico needs at least one of:\n")
	for _, p := range err.Probes {
		sb.WriteString(fmt.Sprintf("  - %s\n", p.Name))
	}
	sb.WriteString("\nInstall one and try again, or point engine.claude_binary / engine.codex_binary at it in the config")
	return errors.New(sb.String())
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		Paired bool   `json:"paired"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Printf("%s (paired: %t)\n", body.Status, body.Paired)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(&colorHandler{level: level})
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu    sync.Mutex
	level slog.Level
	attrs []slog.Attr
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{level: h.level, attrs: newAttrs}
}

func (h *colorHandler) WithGroup(_ string) slog.Handler {
	return h
}
