package materializer

import (
	"context"
	"fmt"
	"sync"

	"github.com/stepflow-io/stepflow/internal/cache"
	"github.com/stepflow-io/stepflow/internal/util"
	"github.com/stepflow-io/stepflow/perr"
	"github.com/stepflow-io/stepflow/typespec"
)

// Materializer is a type-specific serialization strategy. Implementations
// live outside this core; the graph builder only needs identity, source text
// for fingerprinting, and the save hook used during external artifact upload.
type Materializer interface {
	ID() string
	Source() string
	ArtifactType() string
	Save(ctx context.Context, uri string, value any) error
}

// Registry maps declared types to materializers. Registration happens during
// process init; from the core's perspective the registry is read-only.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Materializer
	byID   map[string]Materializer
}

var defaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[string]Materializer),
		byID:   make(map[string]Materializer),
	}
}

// DefaultRegistry is the process-wide type to materializer mapping.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register associates a materializer with one or more declared types. The
// last registration for a type wins, matching how integrations override the
// builtin defaults.
func (r *Registry) Register(m Materializer, types ...typespec.Spec) error {
	if m.ID() == "" {
		return perr.BadRequestWithMessage("materializer must have a non-empty identifier")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[m.ID()]; ok && existing != m {
		return perr.Conflict("materializer", m.ID())
	}
	r.byID[m.ID()] = m
	for _, t := range types {
		r.byType[t.Key()] = m
	}
	return nil
}

func (r *Registry) IsRegistered(t typespec.Spec) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byType[t.Key()]
	return ok
}

// Lookup returns the materializer registered for a declared type.
func (r *Registry) Lookup(t typespec.Spec) (Materializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byType[t.Key()]
	return m, ok
}

// LookupID returns the materializer registered under an identifier.
func (r *Registry) LookupID(id string) (Materializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// SourceHash returns the content hash of a materializer's implementation
// source, memoized in the in-memory cache since the same materializer is
// fingerprinted for every step output it serves.
func (r *Registry) SourceHash(id string) (string, error) {
	m, ok := r.LookupID(id)
	if !ok {
		return "", perr.NotFoundWithMessage(fmt.Sprintf("materializer '%s' is not registered", id))
	}

	cacheKey := "materializer_source_hash:" + id
	if cached, ok := cache.GetCache().Get(cacheKey); ok {
		if hash, ok := cached.(string); ok {
			return hash, nil
		}
	}

	hash, err := util.CalculateHash(m.Source())
	if err != nil {
		return "", err
	}
	cache.GetCache().Set(cacheKey, hash)
	return hash, nil
}
