package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dnsscience/resolvcore/internal/pool"
	"github.com/dnsscience/resolvcore/internal/random"
)

// UDPConfig configures a UDP transport.
type UDPConfig struct {
	// LocalAddr is the address to bind the shared socket to. Empty
	// means all interfaces.
	LocalAddr string

	// RandomizeSourcePort picks the bind port via random.SourcePort
	// instead of letting the kernel assign one, grounded on the
	// teacher's internal/random.SourcePort anti-poisoning rationale.
	RandomizeSourcePort bool

	// ReadBufferBytes and WriteBufferBytes size the kernel socket
	// buffers, grounded on the teacher's fast-path UDP server tuning.
	ReadBufferBytes  int
	WriteBufferBytes int

	// Dispatcher receives every datagram the read loop picks up.
	Dispatcher Dispatcher
}

// UDP is a single shared, unconnected UDP socket used for every
// outbound query. One dedicated goroutine reads from it; Send may be
// called concurrently from any goroutine.
type UDP struct {
	conn   *net.UDPConn
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewUDP binds a UDP socket and starts its read loop.
func NewUDP(cfg UDPConfig) (*UDP, error) {
	host := cfg.LocalAddr
	port := 0
	if cfg.RandomizeSourcePort {
		port = int(random.SourcePort())
	}

	laddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("transport: resolve local udp addr: %w", err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp: %w", err)
	}

	if cfg.ReadBufferBytes > 0 {
		_ = conn.SetReadBuffer(cfg.ReadBufferBytes)
	}
	if cfg.WriteBufferBytes > 0 {
		_ = conn.SetWriteBuffer(cfg.WriteBufferBytes)
	}

	u := &UDP{conn: conn}
	if cfg.Dispatcher != nil {
		u.wg.Add(1)
		go u.readLoop(cfg.Dispatcher)
	}
	return u, nil
}

// LocalAddr returns the bound local address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Send writes payload to addr. Oversized payloads are rejected rather
// than silently truncated by the kernel.
func (u *UDP) Send(_ context.Context, addr *net.UDPAddr, payload []byte) error {
	if u.closed.Load() {
		return ErrClosed
	}
	if len(payload) > MaxUDPPayload {
		return fmt.Errorf("%w: %d bytes", ErrMessageSize, len(payload))
	}
	_, err := u.conn.WriteToUDP(payload, addr)
	return err
}

func (u *UDP) readLoop(d Dispatcher) {
	defer u.wg.Done()

	buf := make([]byte, 65535)
	for {
		n, from, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if u.closed.Load() {
				return
			}
			continue
		}

		// Borrow a tiered buffer for the life of this datagram's
		// dispatch rather than allocating fresh per packet; the
		// dispatcher's owner releases it with pool.PutBuffer once
		// decoding is done.
		payload := pool.GetBuffer(n)[:n]
		copy(payload, buf[:n])
		d.Dispatch(payload, from)
	}
}

// Close stops the read loop and releases the socket.
func (u *UDP) Close() error {
	if u.closed.Swap(true) {
		return nil
	}
	err := u.conn.Close()
	u.wg.Wait()
	return err
}
