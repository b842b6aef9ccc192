package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dnsscience/resolvcore/internal/cache"
	"github.com/dnsscience/resolvcore/internal/packet"
	"github.com/dnsscience/resolvcore/internal/query"
	"github.com/stretchr/testify/require"
)

// fakeAgent is a bare UDP socket standing in for an upstream server.
type fakeAgent struct {
	conn *net.UDPConn
}

func newFakeAgent(t *testing.T) *fakeAgent {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &fakeAgent{conn: conn}
}

func (a *fakeAgent) addr() string { return a.conn.LocalAddr().String() }

func (a *fakeAgent) serveOnce(t *testing.T) {
	t.Helper()
	go func() {
		buf := make([]byte, 512)
		require.NoError(t, a.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, from, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		id := uint16(buf[0])<<8 | uint16(buf[1])
		q := packet.Question{Name: "example.com.", Type: packet.TypeA, Class: packet.ClassIN}
		msg := &packet.Message{
			Header:   packet.Header{ID: id, QR: true, RA: true, Rcode: packet.RcodeOK},
			Question: []packet.Question{q},
			Answer: []packet.ResourceRecord{
				{Name: q.Name, Type: packet.TypeA, Class: packet.ClassIN, TTL: 60, RData: packet.A{IP: net.IPv4(93, 184, 216, 34)}},
			},
		}
		wire, err := packet.EncodeMessage(msg)
		if err != nil {
			return
		}
		_, _ = a.conn.WriteToUDP(wire, from)
		_ = n
	}()
}

func newTestResolver(t *testing.T, agents ...query.AgentParams) *Resolver {
	t.Helper()
	r, err := NewResolver(Config{
		Agents: agents,
		Cache:  cache.Config{Capacity: 100},
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestResolverResolvesThroughPriorityStrategy(t *testing.T) {
	agent := newFakeAgent(t)
	agent.serveOnce(t)

	r := newTestResolver(t, query.AgentParams{Name: "a", Address: agent.addr(), Timeout: 2 * time.Second, Priority: 1})

	msg, err := r.Resolve(context.Background(), "example.com.", packet.TypeA, ResolveOptions{})
	require.NoError(t, err)
	require.Len(t, msg.Answer, 1)
}

func TestResolverServesSecondCallFromCache(t *testing.T) {
	agent := newFakeAgent(t)
	agent.serveOnce(t)

	r := newTestResolver(t, query.AgentParams{Name: "a", Address: agent.addr(), Timeout: 2 * time.Second, Priority: 1})

	_, err := r.Resolve(context.Background(), "example.com.", packet.TypeA, ResolveOptions{})
	require.NoError(t, err)

	// No second fakeAgent.serveOnce: a real network round-trip here
	// would hang, so the only way this succeeds is the cache hit.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := r.Resolve(ctx, "example.com.", packet.TypeA, ResolveOptions{})
	require.NoError(t, err)
	require.True(t, msg.Header.QR)
	require.Len(t, msg.Answer, 1)
}

func TestResolverRejectsEmptyName(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "", packet.TypeA, ResolveOptions{})
	require.Error(t, err)
}

func TestResolverSurfacesNoAgentsForUnknownNamedStrategy(t *testing.T) {
	r := newTestResolver(t, query.AgentParams{Name: "a", Address: "127.0.0.1:1", Priority: 1})

	_, err := r.Resolve(context.Background(), "example.com.", packet.TypeA, ResolveOptions{
		Strategy:   query.StrategyNamed,
		NamedAgent: "ghost",
	})
	require.Error(t, err)
}

func TestResolverAllocateIDAvoidsActiveCollisions(t *testing.T) {
	r := newTestResolver(t)

	id, err := r.allocateID()
	require.NoError(t, err)
	require.NotZero(t, id)

	// Occupy the next ID with an in-flight query to an agent that never
	// answers; allocateID must skip over it.
	dead := newFakeAgent(t)
	busy := id + 1
	q := packet.Question{Name: "example.com.", Type: packet.TypeA, Class: packet.ClassIN}
	r.engine.Start(context.Background(), busy, q, true,
		[]query.AgentParams{{Name: "dead", Address: dead.addr(), Timeout: time.Minute}},
		query.TransportUDP, func(query.Result) {})
	require.True(t, r.engine.IsActive(busy))

	next, err := r.allocateID()
	require.NoError(t, err)
	require.Equal(t, busy+1, next)
}
