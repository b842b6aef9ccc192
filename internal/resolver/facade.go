// Package resolver implements the resolver façade (spec.md §4.6): the
// agent registry, the active-query table (delegated to internal/query),
// the transaction-ID allocator, and the synchronous/asynchronous
// resolve entry points a caller actually uses.
//
// Rewritten from internal/resolver/recursive.go. The cache-first
// default, Config shape, and Close/Stats lifecycle are kept from
// Recursive; the single hard-coded root-server-slice iterative path is
// replaced with one that can run any of the six server-selection
// strategies through internal/query, and falls back to
// internal/roothints + NS/glue chasing only for the iterative strategy.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dnsscience/resolvcore/internal/cache"
	"github.com/dnsscience/resolvcore/internal/packet"
	"github.com/dnsscience/resolvcore/internal/pacing"
	"github.com/dnsscience/resolvcore/internal/query"
	"github.com/dnsscience/resolvcore/internal/random"
	"github.com/dnsscience/resolvcore/internal/roothints"
	"github.com/dnsscience/resolvcore/internal/transport"
	"github.com/dnsscience/resolvcore/internal/worker"
)

// ErrIDSpaceExhausted means every one of the 65536 transaction IDs is
// currently claimed by an in-flight query (spec.md §4.6 "ID
// allocation"); this can only happen under an extreme flood of
// concurrent outstanding queries.
var ErrIDSpaceExhausted = errors.New("resolver: transaction ID space exhausted")

// Config wires a Resolver's collaborators and policy (spec.md §4.6,
// §6 "Public API").
type Config struct {
	// Agents seeds the agent registry at construction time. More can
	// be added later via RegisterAgent.
	Agents []query.AgentParams

	Cache     cache.Config
	Pacing    pacing.Config
	RootHints roothints.Config

	// Workers sizes the decode/callback worker pool (spec.md §5
	// default: 1 worker; configurable).
	Workers int

	// ListenAddr is the local UDP address the resolver sends queries
	// from; empty selects an ephemeral port.
	ListenAddr string

	// DefaultStrategy is used by Resolve/ResolveAsync when the caller
	// doesn't specify one.
	DefaultStrategy query.Strategy

	// MaxIterativeDepth bounds the iterative strategy's NS/glue chase
	// (spec.md §4.5 "a sentinel depth bound (e.g., 30)").
	MaxIterativeDepth int

	Logger func(format string, args ...any)
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = query.StrategyPriority
	}
	if c.MaxIterativeDepth <= 0 {
		c.MaxIterativeDepth = 30
	}
	if c.Logger == nil {
		c.Logger = func(string, ...any) {}
	}
}

// ResolveOptions parameterizes one Resolve/ResolveAsync call (spec.md
// §6 "A resolve method taking (question, completion-callback,
// initial-transport, strategy, optional-named-agent)").
type ResolveOptions struct {
	Strategy         query.Strategy
	InitialTransport query.Transport
	NamedAgent       string
	RecursionDesired bool
}

// Resolver is the façade spec.md §4.6 describes: it owns the agent
// registry, the cache, the query engine (and therefore the
// active-query table), and the network transports.
type Resolver struct {
	cfg Config

	registry *agentRegistry
	cache    *cache.Cache
	engine   *query.Engine
	pacing   *pacing.Governor
	udp      *transport.UDP
	tcp      *transport.TCP
	workers  *worker.Pool

	idCounter atomic.Uint32

	rootMu    sync.Mutex
	rootHints *roothints.Hints
}

// NewResolver builds a Resolver from cfg: starts the worker pool,
// binds the UDP socket, and wires everything into a query.Engine.
func NewResolver(cfg Config) (*Resolver, error) {
	cfg.applyDefaults()

	r := &Resolver{
		cfg:      cfg,
		registry: newAgentRegistry(),
		cache:    cache.New(cfg.Cache),
		pacing:   pacing.NewGovernor(cfg.Pacing),
		workers:  worker.NewPool(worker.Config{Workers: cfg.Workers}),
		tcp:      transport.NewTCP(transport.TCPConfig{}),
	}

	for _, a := range cfg.Agents {
		r.registry.Register(a)
	}

	// The UDP socket's dispatcher needs a *query.Engine that itself
	// needs the UDP socket (to send queries); engine is populated
	// before any datagram can arrive, so the closure is safe.
	var engine *query.Engine
	udp, err := transport.NewUDP(transport.UDPConfig{
		LocalAddr:           cfg.ListenAddr,
		RandomizeSourcePort: cfg.ListenAddr == "",
		Dispatcher: transport.DispatcherFunc(func(payload []byte, from net.Addr) {
			engine.Dispatch(payload, from)
		}),
	})
	if err != nil {
		r.workers.Close()
		r.cache.Close()
		return nil, fmt.Errorf("bind udp socket: %w", err)
	}

	engine = query.NewEngine(query.Config{
		UDP:     udp,
		TCP:     r.tcp,
		Workers: r.workers,
		Pacing:  r.pacing,
		Cache:   r.cache,
		Logger:  r.cfg.Logger,
	})

	r.udp = udp
	r.engine = engine

	// Start the monotonic counter at a crypto-random point (spec.md
	// §4.6), the same anti-poisoning rationale internal/random's
	// doc comment gives for its own TransactionID helper, rather than
	// always starting a fresh resolver's IDs at a predictable 1.
	r.idCounter.Store(uint32(random.TransactionID()))

	return r, nil
}

// RegisterAgent adds or updates an upstream agent entry.
func (r *Resolver) RegisterAgent(a query.AgentParams) {
	r.registry.Register(a)
}

// Resolve blocks the caller until the query completes, is cancelled,
// or times out (spec.md §5 "Synchronous resolver entry points block
// their caller on a completion latch that is released by the worker
// pool").
func (r *Resolver) Resolve(ctx context.Context, name string, qtype packet.Type, opts ResolveOptions) (*packet.Message, error) {
	resultCh := make(chan query.Result, 1)
	r.ResolveAsync(ctx, name, qtype, opts, func(res query.Result) {
		resultCh <- res
	})

	select {
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Message, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResolveAsync begins resolving (name, qtype, IN) and invokes cb
// exactly once with the terminal result. Cache-first is the default
// whenever caching is enabled (spec.md §4.6).
func (r *Resolver) ResolveAsync(ctx context.Context, name string, qtype packet.Type, opts ResolveOptions, cb query.CompletionFunc) {
	start := time.Now()
	strategy := opts.Strategy
	if strategy == "" {
		strategy = r.cfg.DefaultStrategy
	}
	tracked := func(res query.Result) {
		var err error
		if res.Err != nil {
			err = res.Err
		}
		recordResolve(string(strategy), start, err)
		cb(res)
	}

	if name == "" {
		tracked(query.Result{Err: &query.Error{Kind: query.KindBadDomainName, Detail: "empty question name"}})
		return
	}

	question := packet.Question{Name: name, Type: qtype, Class: packet.ClassIN}

	if records, ok := r.cache.Get(name); ok {
		if msg := buildCachedResponse(question, records); msg != nil {
			tracked(query.Result{Message: msg})
			return
		}
	}

	if strategy == query.StrategyIterative {
		go r.resolveIterative(ctx, question, opts, tracked)
		return
	}

	agents, selErr := r.registry.Select(strategy, opts.NamedAgent)
	if selErr != nil {
		tracked(query.Result{Err: selErr})
		return
	}

	id, err := r.allocateID()
	if err != nil {
		tracked(query.Result{Err: &query.Error{Kind: query.KindNoAgents, Detail: err.Error()}})
		return
	}

	r.engine.Start(ctx, id, question, opts.RecursionDesired, agents, opts.InitialTransport, tracked)
}

// allocateID implements spec.md §4.6's monotonic wraparound counter
// with collision avoidance: advance until an ID with no active query
// is found, or give up after a full cycle of the ID space.
func (r *Resolver) allocateID() (uint16, error) {
	for attempts := 0; attempts < 1<<16; attempts++ {
		id := uint16(r.idCounter.Add(1))
		if !r.engine.IsActive(id) {
			return id, nil
		}
	}
	return 0, ErrIDSpaceExhausted
}

// Clear empties the resolver's cache (spec.md §6 "A clear method on
// the cache").
func (r *Resolver) Clear() {
	r.cache.Clear()
}

// Close releases every resource the resolver owns.
func (r *Resolver) Close() error {
	r.udp.Close()
	r.workers.Close()
	r.cache.Close()
	return nil
}

// buildCachedResponse synthesizes a successful Message out of cached
// records, for a cache hit that never issued a network query.
func buildCachedResponse(question packet.Question, records []packet.ResourceRecord) *packet.Message {
	var matching []packet.ResourceRecord
	for _, rec := range records {
		if rec.Type == question.Type || question.Type == packet.TypeANY {
			matching = append(matching, rec)
		}
	}
	if len(matching) == 0 {
		return nil
	}
	return &packet.Message{
		Header:   packet.Header{QR: true, RA: true, Rcode: packet.RcodeOK},
		Question: []packet.Question{question},
		Answer:   matching,
	}
}
