package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaGenerateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Stream {
			t.Error("streaming must be disabled")
		}
		json.NewEncoder(w).Encode(ollamaGenerateResp{Response: "ADA appears in the warehouse.", Model: req.Model, EvalCount: 12})
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "llama3.2:3b", "nomic-embed-text")
	resp, err := c.Generate(context.Background(), Request{Prompt: "who?", Context: []string{"passage one"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "ADA appears in the warehouse." || resp.TokensUsed != 12 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOllamaEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedReq
		json.NewDecoder(r.Body).Decode(&req)
		out := ollamaEmbedResp{Embeddings: make([][]float64, len(req.Input))}
		for i := range req.Input {
			out.Embeddings[i] = []float64{float64(i), 1.5}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "", "nomic-embed-text")
	vecs, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 || vecs[2][0] != 2 || vecs[1][1] != 1.5 {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
}

func TestOllamaErrorMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "m", "m")
	if _, err := c.Generate(context.Background(), Request{Prompt: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

type flakyClient struct {
	failures atomic.Int32
	failN    int32
}

func (f *flakyClient) Generate(context.Context, Request) (*Response, error) {
	if f.failures.Add(1) <= f.failN {
		return nil, ErrUnavailable
	}
	return &Response{Text: "ok"}, nil
}

func (f *flakyClient) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func TestResilientRetriesTransientFailures(t *testing.T) {
	inner := &flakyClient{failN: 2}
	r := NewResilient(inner, Options{Timeout: time.Second, MaxAttempts: 3})
	r.retry.InitialWait = time.Millisecond
	r.retry.MaxWait = time.Millisecond

	resp, err := r.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if inner.failures.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.failures.Load())
	}
}

func TestResilientSurfacesExhaustion(t *testing.T) {
	inner := &flakyClient{failN: 100}
	r := NewResilient(inner, Options{Timeout: time.Second, MaxAttempts: 2})
	r.retry.InitialWait = time.Millisecond
	r.retry.MaxWait = time.Millisecond

	if _, err := r.Generate(context.Background(), Request{Prompt: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
