package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"gametunnel/internal/storage/models"
	gterrors "gametunnel/pkg/errors"
)

// Strategy defines how a latency probe is performed against a single endpoint.
type Strategy interface {
	// Name returns the strategy identifier ("tcp" or "udp").
	Name() string
	// Probe performs one round trip and returns the latency in milliseconds.
	Probe(ctx context.Context, endpoint *models.Endpoint) (latencyMS float64, err error)
}

// TCPStrategy measures latency via a TCP handshake to the endpoint address.
// This matches what relay servers actually accept on their tunnel port and
// only verifies network reachability, not the tunnel protocol.
type TCPStrategy struct{}

func (s *TCPStrategy) Name() string { return "tcp" }

func (s *TCPStrategy) Probe(ctx context.Context, endpoint *models.Endpoint) (float64, error) {
	start := time.Now()
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return 0, fmt.Errorf("tcp handshake failed: %w", err)
	}
	elapsed := time.Since(start)
	conn.Close()

	return float64(elapsed.Microseconds()) / 1000.0, nil
}

// udpProbePayload is the datagram sent by UDPStrategy. Relay servers echo
// unknown control datagrams back on the probe path.
var udpProbePayload = []byte("GTPING")

// UDPStrategy measures a UDP echo round trip. Closer to game traffic than a
// TCP handshake, but requires the relay to answer on its tunnel port.
type UDPStrategy struct{}

func (s *UDPStrategy) Name() string { return "udp" }

func (s *UDPStrategy) Probe(ctx context.Context, endpoint *models.Endpoint) (float64, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "udp", endpoint.Address())
	if err != nil {
		return 0, fmt.Errorf("udp dial failed: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	start := time.Now()
	if _, err := conn.Write(udpProbePayload); err != nil {
		return 0, fmt.Errorf("udp write failed: %w", err)
	}

	buf := make([]byte, 64)
	if _, err := conn.Read(buf); err != nil {
		return 0, fmt.Errorf("udp echo failed: %w", err)
	}
	elapsed := time.Since(start)

	return float64(elapsed.Microseconds()) / 1000.0, nil
}

// NewStrategy creates a Strategy by name. Valid names: "tcp", "udp".
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "tcp", "":
		return &TCPStrategy{}, nil
	case "udp":
		return &UDPStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %s (available: tcp, udp)", gterrors.ErrStrategyUnknown, name)
	}
}
