package main

import (
	"context"
	"database/sql"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/natefinch/lumberjack.v2"

	"govee-client/internal/api"
	"govee-client/internal/config"
	"govee-client/internal/connectivity"
	"govee-client/internal/govee"
	"govee-client/internal/learning"
	"govee-client/internal/ratelimit"
	"govee-client/internal/repos"
)

func main() {

	cfg, err := config.ReadConfig()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	var logOutput io.Writer = os.Stderr
	if cfg.LogFile != "" {
		logOutput = &lumberjack.Logger{
			Filename: cfg.LogFile,
			MaxAge:   3,
		}
	}
	logger := log.NewWithOptions(logOutput, log.Options{
		Level:      log.InfoLevel,
		TimeFormat: "2006/01/02 15:04:05",
	})
	logger.Info("goveectl starting")

	var store learning.Store = learning.NoopStore{}
	if cfg.LearningDB != "" {
		db, err := sql.Open("sqlite3", cfg.LearningDB)
		if err != nil {
			logger.Fatal("opening learning database", "path", cfg.LearningDB, "err", err)
		}
		defer db.Close()
		store, err = repos.NewLearningRepo(logger, db)
		if err != nil {
			logger.Fatal("initialising learning database", "path", cfg.LearningDB, "err", err)
		}
	}

	// wire up services
	limiter := ratelimit.NewLimiter(logger)
	monitor := connectivity.NewMonitor(logger)
	svc := api.NewGoveeAPIService(logger, cfg.APIKey, limiter, monitor)
	client := govee.NewClient(logger, svc, store, limiter, monitor)

	if err := client.SetRateLimitThreshold(cfg.RateLimitThreshold); err != nil {
		logger.Fatal("invalid rate limit threshold", "err", err)
	}
	if err := client.IgnoreDeviceAttributes(cfg.IgnoreAttributes); err != nil {
		logger.Fatal("invalid ignore rules", "err", err)
	}
	client.SetOfflinePolicy(cfg.OfflineIsOff)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)

	newDevices := client.SubscribeNewDevices()

	if err := client.Discover(ctx); err != nil {
		logger.Error("initial discovery failed", "err", err)
	}
	if err := client.PollAll(ctx); err != nil {
		logger.Error("initial poll failed", "err", err)
	}

	ticker := time.NewTicker(time.Duration(cfg.PollIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := client.Discover(ctx); err != nil {
				logger.Warn("discovery failed", "err", err)
			}
			if err := client.PollAll(ctx); err != nil {
				logger.Warn("poll failed", "err", err)
			}
			for _, dev := range client.Devices() {
				logger.Info("device state",
					"device", dev.Device,
					"name", dev.DeviceName,
					"online", dev.Online,
					"power", dev.PowerState,
					"brightness", dev.Brightness,
					"source", dev.Source.String(),
				)
			}
		case dev := <-newDevices:
			logger.Info("new device", "device", dev.Device, "model", dev.Model, "name", dev.DeviceName)
		case <-quitChannel:
			cancel()
			logger.Info("goveectl is closing")
			return
		}
	}
}
