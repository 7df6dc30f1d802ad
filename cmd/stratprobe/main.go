package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stratprobe/internal/config"
	"stratprobe/internal/gateway/marketdata"
	"stratprobe/internal/logger"
	"stratprobe/internal/probe"
	probehttp "stratprobe/internal/transport/http/probe"
)

func main() {
	cfgPath := os.Getenv("STRATPROBE_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded (env=%s, data=%s)", cfg.App.Env, cfg.Data.BaseURL)

	client, err := marketdata.New(marketdata.Config{
		BaseURL:     cfg.Data.BaseURL,
		Timeout:     time.Duration(cfg.Data.TimeoutSeconds) * time.Second,
		MaxRetries:  cfg.Data.MaxRetries,
		EnableCache: cfg.Data.CacheEnabled,
	})
	if err != nil {
		log.Fatalf("building marketdata client failed: %v", err)
	}

	svc := probe.NewService(probe.ServiceConfig{
		Source:      client,
		Tracker:     probe.NewTracker(),
		ATRColumn:   cfg.Probe.ATRColumn,
		ATRPeriod:   cfg.Probe.ATRPeriod,
		DefaultRisk: cfg.Probe.Risk,
	})
	server, err := probehttp.NewServer(probehttp.Config{Addr: cfg.App.HTTPAddr, Svc: svc})
	if err != nil {
		log.Fatalf("building HTTP server failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("probe API listening on %s", cfg.App.HTTPAddr)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
