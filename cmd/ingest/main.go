// Package main implements the cinegraph ingest CLI: it reads a screenplay or
// mood-board file and either ingests it in-process or queues it on NATS for
// the worker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cinegraph/cinegraph/engine/catalog"
	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/extract"
	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/engine/ingest"
	"github.com/cinegraph/cinegraph/engine/parse"
	"github.com/cinegraph/cinegraph/engine/semantic"
	"github.com/cinegraph/cinegraph/engine/vision"
	"github.com/cinegraph/cinegraph/pkg/config"
	"github.com/cinegraph/cinegraph/pkg/model"
	"github.com/cinegraph/cinegraph/pkg/natsutil"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
		kind       = flag.String("kind", "screenplay", "document kind: screenplay or moodboard")
		title      = flag.String("title", "", "document title (defaults to the file name)")
		async      = flag.Bool("async", false, "queue on NATS instead of ingesting in-process")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ingest [flags] <file>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file failed", "path", path, "err", err)
		os.Exit(1)
	}
	if *title == "" {
		*title = filepath.Base(path)
	}

	req := ingest.Request{
		Kind:       domain.DocumentKind(*kind),
		Title:      *title,
		Content:    content,
		ContentRef: path,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *async {
		if err := queue(ctx, cfg, req); err != nil {
			logger.Error("queue failed", "err", err)
			os.Exit(1)
		}
		fmt.Println("queued")
		return
	}

	summary, err := runLocal(ctx, cfg, logger, req)
	if err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}

func queue(ctx context.Context, cfg config.Config, req ingest.Request) error {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("cinegraph-ingest-cli"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()
	if err := natsutil.Publish(ctx, nc, ingest.Subject, req); err != nil {
		return err
	}
	return nc.Flush()
}

func runLocal(ctx context.Context, cfg config.Config, logger *slog.Logger, req ingest.Request) (ingest.Summary, error) {
	var zero ingest.Summary

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
	if err != nil {
		return zero, fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	vectorStore, err := semantic.New(cfg.Qdrant.URL, cfg.Qdrant.Collection)
	if err != nil {
		return zero, fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, cfg.Qdrant.Dims); err != nil {
		logger.Warn("qdrant collection check failed, continuing", "err", err)
	}

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
	}

	cat := catalog.NewNeo4j(driver)

	pipeline := ingest.NewPipeline(ingest.Deps{
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
	return pipeline(ctx, req).Unwrap()
}
