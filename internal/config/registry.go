package config

import (
	"sort"

	"gametunnel/internal/storage/models"
	gterrors "gametunnel/pkg/errors"
)

// Registry is the immutable set of candidate relay endpoints. It is built
// once at config load and never mutated, so it needs no locking.
type Registry struct {
	endpoints []*models.Endpoint
	byID      map[string]*models.Endpoint
}

// NewRegistry creates a registry from the given endpoints, ordered by ID for
// deterministic iteration.
func NewRegistry(endpoints []*models.Endpoint) *Registry {
	eps := make([]*models.Endpoint, len(endpoints))
	copy(eps, endpoints)
	sort.Slice(eps, func(i, j int) bool { return eps[i].ID < eps[j].ID })

	byID := make(map[string]*models.Endpoint, len(eps))
	for _, ep := range eps {
		byID[ep.ID] = ep
	}
	return &Registry{endpoints: eps, byID: byID}
}

// All returns the endpoints ordered by ID. Callers must not mutate them.
func (r *Registry) All() []*models.Endpoint {
	return r.endpoints
}

// ByID looks up an endpoint by its ID.
func (r *Registry) ByID(id string) (*models.Endpoint, error) {
	ep, ok := r.byID[id]
	if !ok {
		return nil, &gterrors.EndpointError{EndpointID: id, Err: gterrors.ErrEndpointNotFound}
	}
	return ep, nil
}

// ByName looks up an endpoint by its configured name or derived ID.
func (r *Registry) ByName(name string) (*models.Endpoint, error) {
	if ep, ok := r.byID[name]; ok {
		return ep, nil
	}
	return r.ByID(models.EndpointID(name))
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int { return len(r.endpoints) }
