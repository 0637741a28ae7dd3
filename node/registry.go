package node

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// Registry holds the running nodes of a process by name.
type Registry struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	logger zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		nodes:  make(map[string]*Node),
		logger: logger.With().Str("com", "registry").Logger(),
	}
}

// Insert registers n under its name.
func (r *Registry) Insert(n *Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[n.Name()]; exists {
		return fmt.Errorf("node %s already exists in registry", n.Name())
	}
	r.nodes[n.Name()] = n

	r.logger.Info().Str("node", n.Name()).Str("instance", n.InstanceID()).Msg("node added to registry")
	return nil
}

// Remove returns the removed node, or nil when name is unknown.
func (r *Registry) Remove(name string) *Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.nodes[name]
	if !exists {
		return nil
	}
	delete(r.nodes, name)
	r.logger.Info().Str("node", name).Msg("node removed from registry")
	return n
}

func (r *Registry) Get(name string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	return n, ok
}

// Names returns the registered node names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}
