// Package main implements the cinegraph API server: document ingestion,
// cross-modal alignment, and natural-language query over the fused graph.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cinegraph/cinegraph/engine/align"
	"github.com/cinegraph/cinegraph/engine/catalog"
	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/extract"
	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/engine/ingest"
	"github.com/cinegraph/cinegraph/engine/parse"
	"github.com/cinegraph/cinegraph/engine/query"
	"github.com/cinegraph/cinegraph/engine/semantic"
	"github.com/cinegraph/cinegraph/engine/vision"
	"github.com/cinegraph/cinegraph/pkg/config"
	"github.com/cinegraph/cinegraph/pkg/fn"
	"github.com/cinegraph/cinegraph/pkg/metrics"
	"github.com/cinegraph/cinegraph/pkg/mid"
	"github.com/cinegraph/cinegraph/pkg/model"
	"github.com/cinegraph/cinegraph/pkg/natsutil"
)

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
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.Qdrant.URL, cfg.Qdrant.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, cfg.Qdrant.Dims); err != nil {
		logger.Warn("qdrant collection check failed, continuing", "err", err)
	}

	// --- Model client ---
	client := model.NewResilient(
		model.NewOllama(cfg.Model.URL, cfg.Model.ChatModel, cfg.Model.EmbedModel),
		model.Options{
			Timeout:     cfg.Model.Timeout,
			RatePerSec:  cfg.Model.RatePerSec,
			Burst:       cfg.Model.Burst,
			MaxAttempts: cfg.Model.MaxAttempts,
		},
	)

	// --- Live graph, restored from the last flushed version ---
	kg := graph.New(logger, graph.WithFuzzyThreshold(cfg.Graph.FuzzyThreshold))
	store := graph.NewNeo4jStore(driver)
	if g, err := store.Load(ctx); err != nil {
		logger.Warn("graph restore failed, starting empty", "err", err)
	} else {
		kg.Restore(g)
		logger.Info("graph restored", "version", g.Version, "entities", len(g.Entities))
	}

	cat := catalog.NewNeo4j(driver)

	// --- Optional NATS for async ingestion ---
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("cinegraph-api"))
		if err != nil {
			logger.Warn("nats unavailable, async ingestion disabled", "err", err)
		} else {
			defer nc.Close()
		}
	}

	deps := ingest.Deps{
		Parser:      parse.New(vision.NewHeuristic(), logger),
		Extractor:   extract.New(logger),
		Client:      client,
		Vectors:     vectorStore,
		Graph:       kg,
		Store:       store,
		SupersededF: cat.Supersedes,
		RegisterF:   cat.Register,
		Logger:      logger,
	}
	pipeline := ingest.NewPipeline(deps)

	aligner := align.New(align.NewEmbeddingScorer(client), logger,
		align.WithThreshold(cfg.Align.Threshold),
		align.WithWorkers(cfg.Align.Workers),
	)

	qopts := query.DefaultOptions()
	qopts.TopK = cfg.Query.TopK
	qopts.DefaultHops = cfg.Query.DefaultHops
	qopts.MinEdgeWeight = cfg.Query.MinEdgeWeight
	qopts.MinRelevance = float32(cfg.Query.MinRelevance)
	engine := query.New(kg, vectorStore, client, qopts, logger)

	reg := metrics.New()
	srvState := &server{
		pipeline: pipeline,
		aligner:  aligner,
		engine:   engine,
		kg:       kg,
		cat:      cat,
		nc:       nc,
		reg:      reg,
		log:      logger,
	}

	handler := mid.Chain(srvState.routes(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.Server.CORSOrigin),
		mid.MaxBody(int64(cfg.Server.MaxBodyMB)<<20),
		mid.OTel("cinegraph-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

type server struct {
	pipeline fn.Stage[ingest.Request, ingest.Summary]
	aligner  *align.Aligner
	engine   *query.Engine
	kg       *graph.KnowledgeGraph
	cat      *catalog.Catalog
	nc       *nats.Conn
	reg      *metrics.Registry
	log      *slog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/documents", s.handleIngest)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("POST /api/align", s.handleAlign)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/graph/stats", s.handleGraphStats)
	mux.Handle("GET /metrics", s.reg.Handler())
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"graph_version": s.kg.Version(),
	})
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// async=1 queues the document for the worker instead of ingesting inline.
	if r.URL.Query().Get("async") == "1" {
		if s.nc == nil {
			writeError(w, http.StatusServiceUnavailable, "async ingestion unavailable")
			return
		}
		if err := natsutil.Publish(r.Context(), s.nc, ingest.Subject, req); err != nil {
			s.log.Error("ingest publish failed", "err", err)
			writeError(w, http.StatusInternalServerError, "queueing failed")
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	start := time.Now()
	summary, err := s.pipeline(r.Context(), req).Unwrap()
	if err != nil {
		s.ingestError(w, req, err)
		return
	}
	s.reg.Counter(metrics.WithLabels("ingest_documents_total", "kind", string(req.Kind)),
		"Documents ingested.").Inc()
	s.reg.Histogram("ingest_duration_seconds", "Ingestion latency.", nil).Since(start)
	s.reg.Gauge("graph_version", "Current graph version.").Set(summary.GraphVersion)
	writeJSON(w, http.StatusCreated, summary)
}

func (s *server) ingestError(w http.ResponseWriter, req ingest.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDocument), errors.Is(err, domain.ErrUnreadableDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("ingest failed", "title", req.Title, "err", err)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
	}
}

func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	kind := domain.DocumentKind(r.URL.Query().Get("kind"))
	docs, err := s.cat.List(r.Context(), kind, 0, 100)
	if err != nil {
		s.log.Error("document list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// AlignResponse summarizes one alignment run.
type AlignResponse struct {
	Pairs    int   `json:"pairs_scored"`
	Kept     int   `json:"edges_kept"`
	Degraded bool  `json:"degraded"`
	Version  int64 `json:"graph_version"`
}

func (s *server) handleAlign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := s.aligner.Run(r.Context(), s.kg)
	if err != nil {
		s.log.Error("alignment failed", "err", err)
		writeError(w, http.StatusInternalServerError, "alignment failed")
		return
	}
	s.reg.Counter("align_runs_total", "Alignment runs.").Inc()
	s.reg.Histogram("align_duration_seconds", "Alignment latency.", nil).Since(start)
	writeJSON(w, http.StatusOK, AlignResponse{
		Pairs: res.Pairs, Kept: res.Kept, Degraded: res.Degraded, Version: res.Version,
	})
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
	Hops     int    `json:"hops,omitempty"`
}

// QueryResponse is the JSON response for POST /api/query.
type QueryResponse struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
	Entities  []string `json:"entities"`
	Degraded  bool     `json:"degraded"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	ans, err := s.engine.Answer(r.Context(), domain.Query{Text: req.Question, Hops: req.Hops})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrInsufficientContext):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.log.Error("query failed", "err", err)
			writeError(w, http.StatusInternalServerError, "query failed")
		}
		return
	}
	s.reg.Counter("query_total", "Questions answered.").Inc()
	s.reg.Histogram("query_duration_seconds", "Query latency.", nil).Since(start)
	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:    ans.Text,
		Citations: ans.Citations,
		Entities:  ans.Entities,
		Degraded:  ans.Degraded,
	})
}

func (s *server) handleGraphStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.kg.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
