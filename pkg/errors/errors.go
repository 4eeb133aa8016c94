package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Monitor errors
	ErrMonitorNotRunning     = errors.New("monitor is not running")
	ErrMonitorAlreadyRunning = errors.New("monitor is already running")
	ErrNoEndpoints           = errors.New("no endpoints configured")

	// Endpoint errors
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrEndpointOffline  = errors.New("endpoint is offline")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Probe errors
	ErrProbeTimeout    = errors.New("probe timed out")
	ErrProbeFailed     = errors.New("probe failed")
	ErrStrategyUnknown = errors.New("unknown probe strategy")
	ErrNoLatencyData   = errors.New("no latency data available")

	// Config errors
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigInvalid  = errors.New("invalid config")
)

// EndpointError represents an endpoint-related error
type EndpointError struct {
	EndpointID string
	Name       string
	Err        error
}

func (e *EndpointError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("endpoint '%s' (ID: %s): %v", e.Name, e.EndpointID, e.Err)
	}
	return fmt.Sprintf("endpoint (ID: %s): %v", e.EndpointID, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// ProbeError represents a probe-related error
type ProbeError struct {
	EndpointID string
	Address    string
	Err        error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s (%s): %v", e.EndpointID, e.Address, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// SessionError represents a session-related error
type SessionError struct {
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session '%s': %v", e.SessionID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NetworkError represents a network-related error
type NetworkError struct {
	Address string
	Port    int
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s:%d): %v", e.Address, e.Port, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
