package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

const (
	// Subject is the NATS subject for ingestion requests.
	Subject = "cinegraph.ingest"
	// DLQSubject receives requests that kept failing.
	DLQSubject = "cinegraph.ingest.dlq"
	// MaxRetries before a request lands in the DLQ.
	MaxRetries = 3
)

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
	Retries int     `json:"retries"`
}

// StartConsumer subscribes the pipeline to the ingest subject with retry and
// DLQ handling. Transient failures re-publish the message with a bumped
// X-Retry-Count header; exhausted messages go to the DLQ with the error
// attached.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var req Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, req)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr, "title", req.Title, "retry", retries)

			if retries >= MaxRetries {
				dlq := dlqMessage{Request: req, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(Subject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			summary, _ := result.Unwrap()
			log.Info("ingest: success",
				"document_id", summary.DocumentID,
				"segments", summary.Segments,
				"entities", summary.Entities,
				"graph_version", summary.GraphVersion,
				"warnings", len(summary.Warnings))
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
