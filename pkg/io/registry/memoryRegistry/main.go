package memoryregistry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xpanvictor/hearken/pkg/io/device"
	"github.com/xpanvictor/hearken/pkg/io/registry"
)

type mmrRegistry struct {
	mu  sync.RWMutex
	eps map[device.EndpointID]device.Endpoint
}

// AttachEndpoint implements registry.Registry.
func (m *mmrRegistry) AttachEndpoint(ep device.Endpoint) error {
	if ep == nil {
		return fmt.Errorf("couldn't attach nil endpoint")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// can reinstantiate anyways
	m.eps[ep.ID()] = ep
	return nil
}

// DetachEndpoint implements registry.Registry.
func (m *mmrRegistry) DetachEndpoint(id device.EndpointID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.eps[id]; !ok {
		return false
	}
	delete(m.eps, id)
	return true
}

// ListEndpoints implements registry.Registry, most recently active first.
func (m *mmrRegistry) ListEndpoints() []device.Endpoint {
	m.mu.RLock()
	out := make([]device.Endpoint, 0, len(m.eps))
	for _, ep := range m.eps {
		out = append(out, ep)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActive().After(out[j].LastActive())
	})
	return out
}

func (m *mmrRegistry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.eps)
}

// SelectEndpointWithMRU implements registry.Registry.
func (m *mmrRegistry) SelectEndpointWithMRU() (device.Endpoint, bool) {
	for _, ep := range m.ListEndpoints() {
		if ep.Caps().AudioSink {
			return ep, true
		}
	}
	return nil, false
}

// FetchTextFanoutEndpoints implements registry.Registry.
func (m *mmrRegistry) FetchTextFanoutEndpoints() ([]device.Endpoint, bool) {
	var out []device.Endpoint
	for _, ep := range m.ListEndpoints() {
		if ep.Caps().TextSink {
			out = append(out, ep)
		}
	}
	return out, len(out) > 0
}

func New() registry.Registry {
	return &mmrRegistry{
		eps: make(map[device.EndpointID]device.Endpoint),
	}
}
