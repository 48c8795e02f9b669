package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"azchat/internal/blob"
	"azchat/internal/composer"
	"azchat/internal/config"
	"azchat/internal/fanout"
	"azchat/internal/logging"
	"azchat/internal/search"
	"azchat/internal/service"
	"azchat/internal/store"
	"azchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/azchat/config.yaml if not provided)")
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

	// the terminal belongs to the UI, so logs go to a file unless configured otherwise
	logCfg := cfg.Logging
	if logCfg.File == "" {
		logCfg.File = filepath.Join(filepath.Dir(cfgPath), "azchat.log")
	}
	logger, logCloser, err := logging.New(logCfg, nil, "azchat")
	if err != nil {
		log.Fatalf("failed to open log: %v", err)
	}
	defer logCloser.Close()
	logger.Info().Str("config", cfgPath).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Assemble components
	sources := make([]fanout.Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		s, err := search.FromConfig(sc, logger)
		if err != nil {
			log.Fatalf("source %s: %v", sc.Name, err)
		}
		sources = append(sources, fanout.Source{Searcher: s, Label: sc.Label})
	}
	f := fanout.New(sources, fanout.Options{Top: cfg.Fanout.Top, Concurrency: cfg.Fanout.Concurrency})
	comp := composer.New(composer.Options{
		SnippetLength:    cfg.Composer.SnippetLength,
		ResultsPerSource: cfg.Composer.ResultsPerSource,
		MaxCitations:     cfg.Composer.MaxCitations,
	})

	st, stCloser, err := store.FromConfig(ctx, cfg.Store, logger)
	if err != nil {
		log.Fatalf("failed to open conversation store: %v", err)
	}
	defer stCloser.Close()

	svc := service.NewChatService(st, f, comp, cfg.Fanout.DefaultSource, logger)

	m := tui.New(ctx, svc)
	if sc := cfg.Edge.Storage; sc.Account != "" && sc.Key != "" {
		m = m.WithFiles(blob.NewClient(blob.Config{
			Account:   sc.Account,
			Key:       sc.Key,
			Container: sc.Container,
			Timeout:   30 * time.Second,
		}))
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		logger.Error().Err(err).Msg("ui exited")
		log.Fatal(err)
	}
}
