package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"equilake/aggregate"
	"equilake/config"
	"equilake/fetcher/alphavantage"
	"equilake/fetcher/newsapi"
	"equilake/logger"
	"equilake/pipeline"
	"equilake/store"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	skipMerge := flag.Bool("skip-merge", false, "Skip building the merged view after ingestion")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Equilake.Name,
		"version": cfg.Equilake.Version,
	}).Info("starting equilake")

	logger.InitCloudWatch(cfg.Storage.S3.Region, "EquiLake")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	s3store, err := store.NewS3Store(ctx, cfg.Storage.S3)
	if err != nil {
		log.WithError(err).Error("Failed to initialize S3 store")
		os.Exit(1)
	}

	p := pipeline.New(cfg, s3store,
		alphavantage.NewConnector(cfg.Providers.AlphaVantage, cfg.Fetcher),
		newsapi.NewConnector(cfg.Providers.NewsAPI, cfg.Fetcher),
	)

	report, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoSymbolsProcessed) {
			for _, rerr := range report.Errors {
				log.WithError(rerr).Error("symbol failed")
			}
		}
		log.WithError(err).Error("ingestion run failed")
		os.Exit(1)
	}
	for _, rerr := range report.Errors {
		log.WithError(rerr).Warn("symbol failed")
	}

	if *skipMerge {
		return
	}

	rows, err := aggregate.New(s3store).BuildMergedView(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to build merged view")
		os.Exit(1)
	}

	perSymbol := make(map[string]int)
	for _, row := range rows {
		perSymbol[row.Symbol]++
	}
	for symbol, n := range perSymbol {
		log.WithFields(logger.Fields{"symbol": symbol, "rows": n}).Info("merged view symbol")
	}

	log.WithFields(logger.Fields{
		"run_id":      report.RunID,
		"merged_rows": len(rows),
	}).Info("equilake run complete")
}
