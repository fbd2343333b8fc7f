package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Ollama implements Client against Ollama's native HTTP API.
type Ollama struct {
	baseURL    string
	chatModel  string
	embedModel string
	client     *http.Client
}

// NewOllama creates an Ollama-backed client. baseURL defaults to the local
// daemon when empty.
func NewOllama(baseURL, chatModel, embedModel string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		baseURL:    baseURL,
		chatModel:  chatModel,
		embedModel: embedModel,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaGenerateReq struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResp struct {
	Response  string `json:"response"`
	Model     string `json:"model"`
	EvalCount int    `json:"eval_count"`
}

type ollamaEmbedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResp struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Generate implements Client.
func (o *Ollama) Generate(ctx context.Context, req Request) (*Response, error) {
	prompt := req.Prompt
	if len(req.Context) > 0 {
		var b bytes.Buffer
		for _, part := range req.Context {
			b.WriteString(part)
			b.WriteString("\n\n")
		}
		b.WriteString(req.Prompt)
		prompt = b.String()
	}

	opts := map[string]any{}
	if req.Temperature > 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}

	var out ollamaGenerateResp
	if err := o.post(ctx, "/api/generate", ollamaGenerateReq{
		Model:   o.chatModel,
		Prompt:  prompt,
		System:  req.System,
		Stream:  false,
		Options: opts,
	}, &out); err != nil {
		return nil, err
	}
	return &Response{Text: out.Response, Model: out.Model, TokensUsed: out.EvalCount}, nil
}

// Embed implements Client using the batched /api/embed endpoint.
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out ollamaEmbedResp
	if err := o.post(ctx, "/api/embed", ollamaEmbedReq{Model: o.embedModel, Input: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrUnavailable, len(out.Embeddings), len(texts))
	}
	vecs := make([][]float32, len(out.Embeddings))
	for i, emb := range out.Embeddings {
		v := make([]float32, len(emb))
		for j, f := range emb {
			v[j] = float32(f)
		}
		vecs[i] = v
	}
	return vecs, nil
}

func (o *Ollama) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	return nil
}
