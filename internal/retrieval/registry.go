// Package retrieval provides the retriever implementations that select
// pages for LLM context, registered by name in a factory map.
package retrieval

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// Deps carries the shared collaborators retriever constructors draw from.
type Deps struct {
	Pages    port.PageRepository
	Embedder port.Embedder
	Redis    *redis.Client
}

type constructor func(cfg domain.RetrieverConfig, deps Deps) (port.Retriever, error)

// Registry maps retriever names to constructors. Implements
// port.RetrieverFactory.
type Registry struct {
	deps         Deps
	constructors map[string]constructor
}

// NewRegistry creates a registry with the built-in retrievers registered.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps, constructors: make(map[string]constructor)}
	r.Register("pages", newPagesRetriever)
	r.Register("document", newDocumentRetriever)
	r.Register("fulltext", newFullTextRetriever)
	r.Register("vector", newVectorRetriever)
	return r
}

// Register adds or replaces a retriever constructor.
func (r *Registry) Register(name string, fn constructor) {
	r.constructors[name] = fn
}

// Build constructs the retriever named in the config.
func (r *Registry) Build(cfg domain.RetrieverConfig) (port.Retriever, error) {
	fn, ok := r.constructors[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("retriever %q: %w", cfg.Name, domain.ErrRetrieverNotFound)
	}
	return fn(cfg, r.deps)
}
