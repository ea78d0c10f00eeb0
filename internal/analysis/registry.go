package analysis

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/models"
)

// Registry holds the available analysis units keyed by id. Registration
// normally happens once at startup but the registry is safe for concurrent
// use so units can be added while pipelines are running.
type Registry struct {
	mu    sync.RWMutex
	units map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{units: make(map[string]Descriptor)}
}

// Register adds or replaces a unit. Replacing does not affect pipelines
// already running an instance built from the previous descriptor.
func (r *Registry) Register(desc Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.units[desc.ID]; exists {
		log.Warn().Str("processor", desc.ID).Msg("Replacing registered analysis unit")
	}
	r.units[desc.ID] = desc
	log.Info().Str("processor", desc.ID).Str("label", desc.Label).Msg("Registered analysis unit")
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.units[id]
	if !ok {
		return Descriptor{}, models.ErrUnknownProcessor
	}
	return desc, nil
}

// List returns all descriptors sorted by id.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.units))
	for _, desc := range r.units {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
