package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// TCPConfig configures the TCP fallback transport.
type TCPConfig struct {
	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// TCP sends one length-prefixed message per connection (spec.md §6:
// a 2-byte big-endian length prefix precedes the message on the wire)
// and reads back exactly one length-prefixed response. There is no
// persistent connection to manage — each query promoted to TCP dials
// fresh, which keeps the transport stateless between queries.
type TCP struct {
	dialTimeout time.Duration
}

// NewTCP creates a TCP transport.
func NewTCP(cfg TCPConfig) *TCP {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TCP{dialTimeout: timeout}
}

// Exchange dials addr, writes payload length-prefixed, and reads back
// one length-prefixed response before closing the connection.
func (t *TCP) Exchange(ctx context.Context, addr string, payload []byte) ([]byte, error) {
	if len(payload) > MaxTCPPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageSize, len(payload))
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial tcp %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(payload)))

	if _, err := conn.Write(lenPrefix[:]); err != nil {
		return nil, fmt.Errorf("transport: write length prefix: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("transport: write payload: %w", err)
	}

	if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
		return nil, fmt.Errorf("transport: read length prefix: %w", err)
	}
	respLen := binary.BigEndian.Uint16(lenPrefix[:])

	resp := make([]byte, respLen)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return nil, fmt.Errorf("transport: read response body: %w", err)
	}

	return resp, nil
}
