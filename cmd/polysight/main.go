// Command polysight runs the Polymarket intelligence pipeline: live trade
// ingestion and processing, wallet discovery, insider scoring, copy trading,
// and the batch wallet funnel, selected by the configured mode.
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
	"strings"
	"syscall"

	"github.com/alanyoungcy/polysight/internal/app"
	"github.com/alanyoungcy/polysight/internal/config"
	"github.com/alanyoungcy/polysight/internal/crypto"
)

func main() {
	var (
		configPath = flag.String("config", "config.toml", "path to the TOML configuration file")
		mode       = flag.String("mode", "", "override the configured mode (monitor, score, copy, funnel, full)")
		encryptOut = flag.String("encrypt-secret", "", "encrypt a CLOB API secret read from stdin to the given path and exit")
	)
	flag.Parse()

	// Bootstrap logger until the configured level is known.
	logger := newLogger("info")

	if *encryptOut != "" {
		if err := encryptSecretFile(*encryptOut); err != nil {
			logger.Error("encrypt secret failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("encrypted secret written", slog.String("path", *encryptOut))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, logger).Run(ctx); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// encryptSecretFile seals a secret read from stdin under the password in
// POLYSIGHT_KEY_PASSWORD and writes the envelope for encrypted_key_path.
func encryptSecretFile(path string) error {
	password := os.Getenv("POLYSIGHT_KEY_PASSWORD")
	if password == "" {
		return errors.New("POLYSIGHT_KEY_PASSWORD is not set")
	}

	fmt.Fprintln(os.Stderr, "paste the CLOB API secret, then press enter:")
	secret, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read secret: %w", err)
	}

	envelope, err := crypto.EncryptSecret(strings.TrimSpace(secret), password)
	if err != nil {
		return err
	}
	return os.WriteFile(path, envelope, 0o600)
}

// newLogger builds the process-wide structured JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler).With(slog.String("service", "polysight"))
	slog.SetDefault(logger)
	return logger
}
