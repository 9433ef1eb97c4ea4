package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/draftsync/internal/config"
	"github.com/user/draftsync/pkg/backend"
	"github.com/user/draftsync/pkg/backend/httpapi"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "draftsync",
	Short: "Assistant chat and document sync client",
	Long:  "draftsync keeps local chat and document state in sync with the assistant backend: debounced saves, quota tracking, and conversation lifecycle.",
}

func init() {
	defaultPath := filepath.Join(os.Getenv("HOME"), ".draftsync", "config.json")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "config file path")
}

// loadConfig loads the config file, exiting on failure. Commands call this
// after flag parsing.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// setupLogging configures the default slog handler from the config.
func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildClient creates the backend HTTP client from config.
func buildClient(cfg *config.Config) backend.Service {
	return httpapi.New(&backend.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
