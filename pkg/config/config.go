// Package config loads service configuration from an optional YAML file with
// environment-variable overrides. Every knob has a default that works on a
// developer machine with local Neo4j, Qdrant, NATS, and Ollama.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree shared by the api, worker, and
// ingest binaries.
type Config struct {
	Server Server `yaml:"server"`
	NATS   NATS   `yaml:"nats"`
	Neo4j  Neo4j  `yaml:"neo4j"`
	Qdrant Qdrant `yaml:"qdrant"`
	Model  Model  `yaml:"model"`
	Graph  Graph  `yaml:"graph"`
	Align  Align  `yaml:"align"`
	Query  Query  `yaml:"query"`
}

type Server struct {
	Port        string        `yaml:"port"`
	MetricsPort int           `yaml:"metrics_port"`
	CORSOrigin  string        `yaml:"cors_origin"`
	MaxBodyMB   int           `yaml:"max_body_mb"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type NATS struct {
	URL string `yaml:"url"`
}

type Neo4j struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type Qdrant struct {
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	Dims       int    `yaml:"dims"`
}

type Model struct {
	URL         string        `yaml:"url"`
	ChatModel   string        `yaml:"chat_model"`
	EmbedModel  string        `yaml:"embed_model"`
	Timeout     time.Duration `yaml:"timeout"`
	RatePerSec  float64       `yaml:"rate_per_sec"`
	Burst       int           `yaml:"burst"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type Graph struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

type Align struct {
	Threshold float64       `yaml:"threshold"`
	Workers   int           `yaml:"workers"`
	Interval  time.Duration `yaml:"interval"`
}

type Query struct {
	TopK          int     `yaml:"top_k"`
	DefaultHops   int     `yaml:"default_hops"`
	MinEdgeWeight float64 `yaml:"min_edge_weight"`
	MinRelevance  float64 `yaml:"min_relevance"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: Server{
			Port:        "8080",
			MetricsPort: 9090,
			CORSOrigin:  "*",
			MaxBodyMB:   32,
			ReadTimeout: 15 * time.Second,
		},
		NATS:   NATS{URL: "nats://localhost:4222"},
		Neo4j:  Neo4j{URL: "neo4j://localhost:7687", User: "neo4j", Pass: "password"},
		Qdrant: Qdrant{URL: "localhost:6334", Collection: "cinegraph", Dims: 768},
		Model: Model{
			URL:         "http://localhost:11434",
			ChatModel:   "llama3.1",
			EmbedModel:  "nomic-embed-text",
			Timeout:     60 * time.Second,
			RatePerSec:  4,
			Burst:       8,
			MaxAttempts: 3,
		},
		Graph: Graph{FuzzyThreshold: 0.85},
		Align: Align{Threshold: 0.6, Workers: 8, Interval: 5 * time.Minute},
		Query: Query{TopK: 8, DefaultHops: 2, MinEdgeWeight: 0.25, MinRelevance: 0.35},
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped when
// path is empty or the file does not exist) and then with environment
// variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	set(&c.Server.Port, "PORT")
	set(&c.Server.CORSOrigin, "CORS_ORIGIN")
	set(&c.NATS.URL, "NATS_URL")
	set(&c.Neo4j.URL, "NEO4J_URL")
	set(&c.Neo4j.User, "NEO4J_USER")
	set(&c.Neo4j.Pass, "NEO4J_PASS")
	set(&c.Qdrant.URL, "QDRANT_URL")
	set(&c.Qdrant.Collection, "QDRANT_COLLECTION")
	set(&c.Model.URL, "OLLAMA_URL")
	set(&c.Model.ChatModel, "CHAT_MODEL")
	set(&c.Model.EmbedModel, "EMBED_MODEL")
}

func set(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	if c.Query.TopK <= 0 {
		return fmt.Errorf("config: query.top_k must be positive, got %d", c.Query.TopK)
	}
	if c.Query.DefaultHops < 0 {
		return fmt.Errorf("config: query.default_hops must not be negative, got %d", c.Query.DefaultHops)
	}
	if c.Align.Threshold < 0 || c.Align.Threshold > 1 {
		return fmt.Errorf("config: align.threshold must be in [0,1], got %g", c.Align.Threshold)
	}
	if c.Graph.FuzzyThreshold < 0 || c.Graph.FuzzyThreshold > 1 {
		return fmt.Errorf("config: graph.fuzzy_threshold must be in [0,1], got %g", c.Graph.FuzzyThreshold)
	}
	if c.Qdrant.Dims <= 0 {
		return fmt.Errorf("config: qdrant.dims must be positive, got %d", c.Qdrant.Dims)
	}
	return nil
}
