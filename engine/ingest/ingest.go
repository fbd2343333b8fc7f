// Package ingest runs documents through validation, parsing, extraction,
// embedding, and persistence, composed from fn stages. The same pipeline
// serves the HTTP API, the CLI, and the NATS consumer.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/extract"
	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/engine/parse"
	"github.com/cinegraph/cinegraph/engine/semantic"
	"github.com/cinegraph/cinegraph/pkg/fn"
	"github.com/cinegraph/cinegraph/pkg/model"
)

// EmbedBatchSize is the max segments per embedding request.
const EmbedBatchSize = 100

// VectorWriter is the slice of the vector store the pipeline needs.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
	DeleteByDocID(ctx context.Context, docID string) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Parser    *parse.Parser
	Extractor *extract.Extractor
	Client    model.Client
	Vectors   VectorWriter
	Graph     *graph.KnowledgeGraph
	Store     graph.Store
	// SupersededF reports the id of an earlier document this request
	// replaces, or "". The old document's vectors are dropped; its graph
	// provenance stays, since entities are merged, never deleted.
	SupersededF func(ctx context.Context, doc domain.Document) (string, error)
	// RegisterF records the document's metadata once persisted.
	RegisterF func(ctx context.Context, doc domain.Document) error
	Logger    *slog.Logger
}

// NewValidate checks the request before any work happens.
func NewValidate() fn.Stage[Request, Request] {
	return func(_ context.Context, req Request) fn.Result[Request] {
		doc := domain.Document{ID: "pending", Kind: req.Kind, Title: req.Title}
		if err := domain.ValidateDocument(doc, req.Content); err != nil {
			return fn.Err[Request](err)
		}
		return fn.Ok(req)
	}
}

// NewParse mints the immutable document and segments its content.
func NewParse(parser *parse.Parser) fn.Stage[Request, ParsedDoc] {
	return func(ctx context.Context, req Request) fn.Result[ParsedDoc] {
		doc := domain.Document{
			ID:         domain.NewDocumentID(),
			Kind:       req.Kind,
			Title:      req.Title,
			ContentRef: req.ContentRef,
			IngestedAt: time.Now().UTC(),
		}
		segments, warnings, err := parser.Parse(ctx, doc, req.Content)
		if err != nil {
			return fn.Err[ParsedDoc](fmt.Errorf("parse %s: %w", doc.ID, err))
		}
		return fn.Ok(ParsedDoc{Doc: doc, Content: req.Content, Segments: segments, Warnings: warnings})
	}
}

// NewExtract derives candidate entities and relations.
func NewExtract(ex *extract.Extractor) fn.Stage[ParsedDoc, ExtractedDoc] {
	return func(_ context.Context, doc ParsedDoc) fn.Result[ExtractedDoc] {
		entities, relations, err := ex.Extract(doc.Doc, doc.Segments)
		if err != nil {
			return fn.Err[ExtractedDoc](fmt.Errorf("extract %s: %w", doc.Doc.ID, err))
		}
		return fn.Ok(ExtractedDoc{ParsedDoc: doc, Entities: entities, Relations: relations})
	}
}

// NewEmbed embeds segment text in batches. An unavailable model degrades the
// stage instead of failing it: the document still reaches the graph, only
// retrieval coverage suffers, and the gap is reported in the summary.
func NewEmbed(client model.Client, log *slog.Logger) fn.Stage[ExtractedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ExtractedDoc) fn.Result[EmbeddedDoc] {
		if client == nil {
			return fn.Ok(EmbeddedDoc{ExtractedDoc: doc})
		}
		embeddings := make([][]float32, len(doc.Segments))
		for i := 0; i < len(doc.Segments); i += EmbedBatchSize {
			end := i + EmbedBatchSize
			if end > len(doc.Segments) {
				end = len(doc.Segments)
			}
			texts := make([]string, end-i)
			for j, seg := range doc.Segments[i:end] {
				texts[j] = seg.Text
			}
			vecs, err := client.Embed(ctx, texts)
			if err != nil {
				if errors.Is(err, model.ErrUnavailable) {
					log.WarnContext(ctx, "embedding unavailable, ingesting without vectors",
						"document_id", doc.Doc.ID, "error", err)
					return fn.Ok(EmbeddedDoc{ExtractedDoc: doc})
				}
				return fn.Err[EmbeddedDoc](fmt.Errorf("embed %s: %w", doc.Doc.ID, err))
			}
			copy(embeddings[i:end], vecs)
		}
		return fn.Ok(EmbeddedDoc{ExtractedDoc: doc, Embeddings: embeddings})
	}
}

// NewPersist writes vectors, integrates the graph, and flushes the new
// version to the durable store.
func NewPersist(deps Deps) fn.Stage[EmbeddedDoc, Summary] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[Summary] {
		summary := Summary{
			DocumentID: doc.Doc.ID,
			Segments:   len(doc.Segments),
			Entities:   len(doc.Entities),
			Relations:  len(doc.Relations),
			Warnings:   append([]string(nil), doc.Warnings...),
		}

		if deps.SupersededF != nil {
			old, err := deps.SupersededF(ctx, doc.Doc)
			if err != nil {
				log.WarnContext(ctx, "supersession check failed", "error", err)
			} else if old != "" {
				summary.Superseded = old
				if deps.Vectors != nil {
					if err := deps.Vectors.DeleteByDocID(ctx, old); err != nil {
						return fn.Err[Summary](fmt.Errorf("supersede %s: %w", old, err))
					}
				}
			}
		}

		if deps.Vectors != nil && doc.Embeddings != nil {
			records := make([]semantic.VectorRecord, len(doc.Segments))
			for i, seg := range doc.Segments {
				records[i] = semantic.RecordFromSegment(seg, doc.Embeddings[i])
			}
			if err := deps.Vectors.Upsert(ctx, records); err != nil {
				return fn.Err[Summary](fmt.Errorf("vector upsert %s: %w", doc.Doc.ID, err))
			}
		}
		if doc.Embeddings == nil && deps.Client != nil {
			summary.Warnings = append(summary.Warnings, "segments not embedded: model unavailable")
		}

		res, err := deps.Graph.Integrate(doc.Entities, doc.Relations)
		if err != nil {
			return fn.Err[Summary](fmt.Errorf("graph integrate %s: %w", doc.Doc.ID, err))
		}
		summary.GraphVersion = res.Version

		if deps.RegisterF != nil {
			if err := deps.RegisterF(ctx, doc.Doc); err != nil {
				log.WarnContext(ctx, "catalog register failed", "error", err)
				summary.Warnings = append(summary.Warnings, "catalog register failed: "+err.Error())
			}
		}

		if deps.Store != nil {
			if err := deps.Store.Flush(ctx, deps.Graph.Snapshot()); err != nil {
				// The live graph holds the change; durable flush is retried
				// on the next ingestion.
				log.WarnContext(ctx, "graph flush failed", "error", err)
				summary.Warnings = append(summary.Warnings, "graph flush failed: "+err.Error())
			}
		}
		return fn.Ok(summary)
	}
}

// logged wraps a stage with entry and exit logging.
func logged[In, Out any](name string, log *slog.Logger, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		start := time.Now()
		out := stage(ctx, in)
		if out.IsErr() {
			_, err := out.Unwrap()
			log.ErrorContext(ctx, "stage failed", "stage", name, "duration", time.Since(start), "error", err)
		} else {
			log.DebugContext(ctx, "stage done", "stage", name, "duration", time.Since(start))
		}
		return out
	}
}

// NewPipeline wires the full ingestion pipeline.
func NewPipeline(deps Deps) fn.Stage[Request, Summary] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	validated := fn.TracedStage("ingest.validate", logged("validate", log, NewValidate()))
	parsed := fn.Then(validated, fn.TracedStage("ingest.parse", logged("parse", log, NewParse(deps.Parser))))
	extracted := fn.Then(parsed, fn.TracedStage("ingest.extract", logged("extract", log, NewExtract(deps.Extractor))))
	embedded := fn.Then(extracted, fn.TracedStage("ingest.embed", logged("embed", log, NewEmbed(deps.Client, log))))
	return fn.Then(embedded, fn.TracedStage("ingest.persist", logged("persist", log, NewPersist(deps))))
}
