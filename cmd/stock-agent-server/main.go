package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaaa47080/stock-agent-sub002/internal/logging"
)

type serverConfig struct {
	Addr      string
	APIKey    string
	BaseURL   string
	Model     string
	DataDir   string
	LogLevel  string
	LogFormat string
}

func loadConfig() serverConfig {
	cfg := serverConfig{}
	flag.StringVar(&cfg.Addr, "addr", envOr("STOCK_AGENT_ADDR", ":8080"), "listen address")
	flag.StringVar(&cfg.APIKey, "api-key", os.Getenv("STOCK_AGENT_API_KEY"), "LLM API key")
	flag.StringVar(&cfg.BaseURL, "base-url", envOr("STOCK_AGENT_BASE_URL", "https://api.openai.com/v1"), "LLM API base URL")
	flag.StringVar(&cfg.Model, "model", envOr("STOCK_AGENT_MODEL", "gpt-4o-mini"), "model name")
	flag.StringVar(&cfg.DataDir, "data-dir", envOr("STOCK_AGENT_DATA_DIR", "~/.stock-agent"), "data directory")
	flag.StringVar(&cfg.LogLevel, "log-level", envOr("STOCK_AGENT_LOG_LEVEL", "info"), "log level")
	flag.StringVar(&cfg.LogFormat, "log-format", envOr("STOCK_AGENT_LOG_FORMAT", "json"), "log format")
	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := loadConfig()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).WithComponent("server")

	if cfg.APIKey == "" {
		logger.Error("no API key: set --api-key or STOCK_AGENT_API_KEY")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := buildContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(container, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // a query may drive several model calls
		IdleTimeout:  120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
