// Package natsutil carries typed JSON messages over NATS for the ingest
// queue and the alignment trigger, propagating OpenTelemetry trace context
// through message headers so a document can be followed from the API publish
// to the worker that processes it.
package natsutil

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// headerCarrier exposes a message's headers as an OTel TextMapCarrier.
type headerCarrier struct{ msg *nats.Msg }

func (c headerCarrier) Get(key string) string {
	if c.msg.Header == nil {
		return ""
	}
	return c.msg.Header.Get(key)
}

func (c headerCarrier) Set(key, val string) {
	if c.msg.Header == nil {
		c.msg.Header = make(nats.Header)
	}
	c.msg.Header.Set(key, val)
}

func (c headerCarrier) Keys() []string {
	if c.msg.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.msg.Header))
	for k := range c.msg.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish marshals v as JSON and publishes it with the current trace context
// injected into the message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg})
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler for JSON messages of type T. The handler
// context carries the trace extracted from the message headers. Payloads
// that fail to decode are dropped; a malformed message would fail the same
// way on every redelivery.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), headerCarrier{msg})
		handler(ctx, v)
	})
}
