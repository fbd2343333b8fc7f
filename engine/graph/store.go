package graph

import "context"

// Store is the durable home of the knowledge graph. Flush persists one
// version wholesale; Load restores the latest flushed version.
type Store interface {
	Load(ctx context.Context) (Graph, error)
	Flush(ctx context.Context, g Graph) error
}

// NopStore discards flushes and loads an empty graph. Used when no database
// is configured.
type NopStore struct{}

func (NopStore) Load(context.Context) (Graph, error)  { return NewGraph(), nil }
func (NopStore) Flush(context.Context, Graph) error   { return nil }
