package natsutil

import (
	"testing"

	"github.com/nats-io/nats.go"
)

func TestCarrierSetGet(t *testing.T) {
	msg := &nats.Msg{Subject: "cinegraph.ingest"}
	c := headerCarrier{msg}

	if c.Get("traceparent") != "" {
		t.Error("empty carrier must return empty value")
	}
	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Errorf("got %q", got)
	}
	if msg.Header.Get("traceparent") != "00-abc-def-01" {
		t.Error("carrier must write through to the message header")
	}
}

func TestCarrierKeys(t *testing.T) {
	c := headerCarrier{&nats.Msg{}}
	if keys := c.Keys(); keys != nil {
		t.Errorf("nil header should yield no keys, got %v", keys)
	}
	c.Set("a", "1")
	c.Set("b", "2")
	if len(c.Keys()) != 2 {
		t.Errorf("keys = %v", c.Keys())
	}
}
