package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"azchat/internal/config"
	"azchat/internal/edge"
	"azchat/internal/logging"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, addr string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/azchat/config.yaml if not provided)")
	flag.StringVar(&addr, "addr", "", "Listen address, overrides edge.addr")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	if addr != "" {
		cfg.Edge.Addr = addr
	}

	logger, closer, err := logging.New(cfg.Logging, os.Stderr, "azchat-edge")
	if err != nil {
		log.Fatalf("failed to open log: %v", err)
	}
	defer closer.Close()

	if !strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("config", cfgPath).
		Bool("search_configured", cfg.Edge.Search.Endpoint != "" && cfg.Edge.Search.Key != "").
		Bool("storage_configured", cfg.Edge.Storage.Account != "" && cfg.Edge.Storage.Key != "").
		Msg("starting edge server")

	if err := edge.NewServer(cfg.Edge, logger).Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("edge server failed")
	}
}
