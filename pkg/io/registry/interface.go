package registry

import (
	"github.com/xpanvictor/hearken/pkg/io/device"
)

// Registry tracks the output endpoints currently connected.
type Registry interface {
	// endpoint lifecycle
	AttachEndpoint(ep device.Endpoint) error
	DetachEndpoint(id device.EndpointID) bool
	// queries
	ListEndpoints() []device.Endpoint
	Count() int
	// selection
	SelectEndpointWithMRU() (device.Endpoint, bool)
	FetchTextFanoutEndpoints() ([]device.Endpoint, bool)
}
