package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gw2-flipper/internal/config"
	"gw2-flipper/internal/db"
	"gw2-flipper/internal/engine"
	"gw2-flipper/internal/gw2"
	"gw2-flipper/internal/logger"
	"gw2-flipper/internal/report"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	once := flag.Bool("once", false, "run a single refresh cycle and exit")
	flag.Parse()

	logger.Banner(version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("CONFIG", err.Error())
		os.Exit(1)
	}
	if len(cfg.Refresh.ItemIDs) == 0 {
		logger.Error("CONFIG", "no tracked items configured (refresh.item_ids or FLIPPER_ITEM_IDS)")
		os.Exit(1)
	}

	database, err := db.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := gw2.NewClient(cfg.API)
	if !client.HealthCheck(ctx) {
		logger.Warn("API", "health check failed, continuing anyway")
	}

	items := gw2.NewItemCache(client, database)
	eng := engine.NewEngine(cfg.Refresh.Interval)
	params := engine.FlipParams{
		OutbidFraction:  cfg.Trading.OutbidFraction,
		Budget:          cfg.Trading.Budget,
		RefreshInterval: cfg.Refresh.Interval,
	}
	refresher := engine.NewRefresher(client, items, eng, cfg.Refresh.ItemIDs, cfg.Refresh.Horizons, params)
	refresher.Prime(ctx)

	logger.Section("Refresh")
	logger.Stats("items", len(refresher.TrackedItems()))
	logger.Stats("interval", cfg.Refresh.Interval)
	logger.Stats("horizons", cfg.Refresh.Horizons)

	runCycle := func() {
		started := time.Now()
		flips, err := refresher.RunCycle(ctx)
		if err != nil {
			if engine.IsIDMismatch(err) {
				// snapshots paired with the wrong items: a bug, not
				// a market condition
				logger.Error("REFRESH", err.Error())
				os.Exit(1)
			}
			logger.Error("REFRESH", err.Error())
			return
		}

		report.PrintFlips(os.Stdout, flips, cfg.Trading.TopFlips)

		keep := min(len(flips), cfg.Trading.TopFlips)
		if id, err := database.SaveCycle(started, len(refresher.TrackedItems()), flips[:keep]); err != nil {
			logger.Warn("DB", fmt.Sprintf("failed to save cycle: %v", err))
		} else {
			logger.Info("DB", fmt.Sprintf("cycle %s saved in %s", id, time.Since(started).Round(time.Millisecond)))
		}
	}

	runCycle()
	if *once {
		return
	}

	ticker := time.NewTicker(cfg.Refresh.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("MAIN", "shutting down")
			return
		case <-ticker.C:
			runCycle()
		}
	}
}
