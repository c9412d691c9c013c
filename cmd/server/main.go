package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"odin/api/feed"
	"odin/api/httpserver"
	"odin/domain/engine"
	"odin/domain/funds"
	"odin/infra/config"
	"odin/infra/kafka"
	"odin/infra/logging"
	"odin/infra/metrics"
	"odin/infra/outbox"
	"odin/infra/sequence"
	"odin/infra/wal"
	"odin/jobs/broadcaster"
	"odin/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Durability ----------------

	entryWAL, err := wal.Open(wal.Config{
		Dir:         cfg.WAL.Dir,
		SegmentSize: int64(cfg.WAL.SegmentSizeMB) << 20,
	})
	if err != nil {
		logger.Fatal("wal open failed", zap.Error(err))
	}
	defer entryWAL.Close()

	ob, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		logger.Fatal("outbox open failed", zap.Error(err))
	}
	defer ob.Close()

	// ---------------- Domain ----------------

	ledger := funds.NewLedger()
	pairCfgs := make([]engine.Config, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		ec := p.Engine()
		ledger.RegisterPair(ec.ID, ec.Base, ec.Quote)
		pairCfgs = append(pairCfgs, ec)
	}

	m := metrics.New()
	hub := feed.NewHub(logger)
	go hub.Run(ctx)

	liveFeed := service.Feed(hub)
	if cfg.Kafka.Enabled && cfg.Kafka.TapeTopic != "" {
		tape := kafka.NewTape(kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TapeTopic), logger)
		defer tape.Close()
		liveFeed = fanFeed{hub, tape}
	}

	svc, err := service.New(service.Deps{
		Log:     logger,
		Seq:     sequence.New(0),
		WAL:     entryWAL,
		Outbox:  ob,
		Metrics: m,
		Feed:    liveFeed,
		Funds:   ledger,
		Pairs:   pairCfgs,
	})
	if err != nil {
		logger.Fatal("service init failed", zap.Error(err))
	}

	// ---------------- Recovery ----------------

	if err := svc.Recover(cfg.Snapshot.Dir, cfg.WAL.Dir); err != nil {
		logger.Fatal("recovery failed", zap.Error(err))
	}

	// ---------------- Background Jobs ----------------

	svc.StartSnapshotJob(ctx, cfg.Snapshot.Dir, cfg.SnapshotInterval())

	if cfg.Kafka.Enabled {
		bc, err := broadcaster.New(ob, cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Fatal("broadcaster init failed", zap.Error(err))
		}
		defer bc.Close()
		bc.Start(ctx)
	}

	// ---------------- HTTP ----------------

	srv := httpserver.New(svc, hub, m, logger, cfg.Server.ListenAddr, cfg.Server.OperatorKey)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("http server exited", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// fanFeed delivers every payload to all underlying feeds.
type fanFeed []service.Feed

func (f fanFeed) Broadcast(p []byte) {
	for _, sub := range f {
		sub.Broadcast(p)
	}
}
