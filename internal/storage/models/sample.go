package models

import "time"

// SampleRecord is a persisted probe result
type SampleRecord struct {
	ID           int64     `json:"id"`
	EndpointID   string    `json:"endpoint_id"`
	LatencyMS    *float64  `json:"latency_ms,omitempty"` // NULL if failed
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Strategy     string    `json:"strategy"` // tcp, udp
	ProbedAt     time.Time `json:"probed_at"`
}
