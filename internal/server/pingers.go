package server

import (
	"context"
	"fmt"
)

// Pinger is implemented by any dependency that can report its own
// reachability. Implementations must be safe to call from multiple goroutines.
type Pinger interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error

	// Name returns a short label used in readiness responses
	// (e.g. "vector_store", "embedder").
	Name() string
}

// pingable is anything with a Ping method: rag.VectorStore and
// embedder.Embedder both qualify.
type pingable interface {
	Ping(ctx context.Context) error
}

// namedPinger labels a pingable dependency for readiness responses.
type namedPinger struct {
	name   string
	target pingable
}

// NewPinger returns a Pinger that reports target under name.
func NewPinger(name string, target pingable) Pinger {
	return &namedPinger{name: name, target: target}
}

// Name returns the dependency label.
func (p *namedPinger) Name() string { return p.name }

// Ping delegates to the wrapped dependency.
func (p *namedPinger) Ping(ctx context.Context) error {
	if err := p.target.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	return nil
}
