package models

import (
	"fmt"
	"strings"
)

// Endpoint represents a candidate relay server the tunnel can route through.
// Endpoints are built from the `servers:` config section at load time and are
// immutable afterwards. Identity is ID.
type Endpoint struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Region   string `json:"region"`
	Location string `json:"location"`
}

// Address returns the host:port dial address.
func (e *Endpoint) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// EndpointID derives a stable identifier from a server name,
// e.g. "US East 1" -> "us-east-1".
func EndpointID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.Join(strings.Fields(id), "-")
	return strings.ReplaceAll(id, "_", "-")
}
