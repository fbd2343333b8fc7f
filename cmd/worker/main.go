// Package main implements the cinegraph worker: it consumes ingestion
// requests from NATS and keeps cross-modal alignments fresh, re-running the
// aligner on a timer and on demand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cinegraph/cinegraph/engine/align"
	"github.com/cinegraph/cinegraph/engine/catalog"
	"github.com/cinegraph/cinegraph/engine/extract"
	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/engine/ingest"
	"github.com/cinegraph/cinegraph/engine/parse"
	"github.com/cinegraph/cinegraph/engine/semantic"
	"github.com/cinegraph/cinegraph/engine/vision"
	"github.com/cinegraph/cinegraph/pkg/config"
	"github.com/cinegraph/cinegraph/pkg/metrics"
	"github.com/cinegraph/cinegraph/pkg/model"
	"github.com/cinegraph/cinegraph/pkg/natsutil"
)

// AlignSubject triggers an immediate alignment run.
const AlignSubject = "cinegraph.align"

// alignTrigger is the (empty) payload of an alignment request.
type alignTrigger struct {
	Reason string `json:"reason,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	vectorStore, err := semantic.New(cfg.Qdrant.URL, cfg.Qdrant.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, cfg.Qdrant.Dims); err != nil {
		logger.Warn("qdrant collection check failed, continuing", "err", err)
	}

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("cinegraph-worker"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	client := model.NewResilient(
		model.NewOllama(cfg.Model.URL, cfg.Model.ChatModel, cfg.Model.EmbedModel),
		model.Options{
			Timeout:     cfg.Model.Timeout,
			RatePerSec:  cfg.Model.RatePerSec,
			Burst:       cfg.Model.Burst,
			MaxAttempts: cfg.Model.MaxAttempts,
		},
	)

	kg := graph.New(logger, graph.WithFuzzyThreshold(cfg.Graph.FuzzyThreshold))
	store := graph.NewNeo4jStore(driver)
	if g, err := store.Load(ctx); err != nil {
		logger.Warn("graph restore failed, starting empty", "err", err)
	} else {
		kg.Restore(g)
		logger.Info("graph restored", "version", g.Version, "entities", len(g.Entities))
	}

	cat := catalog.NewNeo4j(driver)

	reg := metrics.New()
	reg.ServeAsync(cfg.Server.MetricsPort)

	sub, err := ingest.StartConsumer(nc, ingest.Deps{
		Parser:      parse.New(vision.NewHeuristic(), logger),
		Extractor:   extract.New(logger),
		Client:      client,
		Vectors:     vectorStore,
		Graph:       kg,
		Store:       store,
		SupersededF: cat.Supersedes,
		RegisterF:   cat.Register,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ingest.Subject, err)
	}
	defer sub.Drain()
	logger.Info("ingest consumer started", "subject", ingest.Subject)

	aligner := align.New(align.NewEmbeddingScorer(client), logger,
		align.WithThreshold(cfg.Align.Threshold),
		align.WithWorkers(cfg.Align.Workers),
	)
	runs := reg.Counter("align_runs_total", "Alignment runs.")
	dur := reg.Histogram("align_duration_seconds", "Alignment latency.", nil)

	runAlign := func(ctx context.Context, reason string) {
		start := time.Now()
		res, err := aligner.Run(ctx, kg)
		if err != nil {
			logger.Error("alignment failed", "reason", reason, "err", err)
			return
		}
		runs.Inc()
		dur.Since(start)
		logger.Info("alignment done",
			"reason", reason,
			"pairs", res.Pairs,
			"kept", res.Kept,
			"degraded", res.Degraded,
			"graph_version", res.Version)
		if err := store.Flush(ctx, kg.Snapshot()); err != nil {
			logger.Warn("graph flush after alignment failed", "err", err)
		}
	}

	trigSub, err := natsutil.Subscribe(nc, AlignSubject, func(ctx context.Context, t alignTrigger) {
		runAlign(ctx, "trigger:"+t.Reason)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", AlignSubject, err)
	}
	defer trigSub.Drain()

	ticker := time.NewTicker(cfg.Align.Interval)
	defer ticker.Stop()

	lastVersion := kg.Version()
	for {
		select {
		case <-ticker.C:
			if v := kg.Version(); v != lastVersion {
				runAlign(ctx, "interval")
				lastVersion = kg.Version()
			}
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return nil
		}
	}
}
