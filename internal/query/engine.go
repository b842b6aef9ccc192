package query

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dnsscience/resolvcore/internal/cache"
	"github.com/dnsscience/resolvcore/internal/packet"
	"github.com/dnsscience/resolvcore/internal/pacing"
	"github.com/dnsscience/resolvcore/internal/pool"
	"github.com/dnsscience/resolvcore/internal/transport"
	"github.com/dnsscience/resolvcore/internal/worker"
)

// Config wires an Engine's collaborators. All fields are required
// except Pacing, Cache, and Logger.
type Config struct {
	UDP     *transport.UDP
	TCP     *transport.TCP
	Workers *worker.Pool
	Pacing  *pacing.Governor
	Cache   *cache.Cache
	Logger  func(format string, args ...any)
}

// Engine drives the per-query state machine of spec.md §4.5 against a
// shared UDP/TCP transport pair, decoding and handling every response
// on the worker pool rather than the transport's I/O loop goroutine.
type Engine struct {
	udp     *transport.UDP
	tcp     *transport.TCP
	workers *worker.Pool
	pacing  *pacing.Governor
	cache   *cache.Cache
	logger  func(string, ...any)

	mu     sync.Mutex
	active map[uint16]*Query
}

// NewEngine creates an Engine. It does not register itself with
// cfg.UDP: the caller's UDP dispatcher must forward to Engine.Dispatch.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = func(string, ...any) {}
	}

	e := &Engine{
		udp:     cfg.UDP,
		tcp:     cfg.TCP,
		workers: cfg.Workers,
		pacing:  cfg.Pacing,
		cache:   cfg.Cache,
		logger:  logger,
		active:  make(map[uint16]*Query),
	}
	return e
}

// Dispatch implements transport.Dispatcher. It is called on the
// transport's I/O loop goroutine and must return immediately: all it
// does is look up the owning query and hand the payload to the
// worker pool.
func (e *Engine) Dispatch(payload []byte, from net.Addr) {
	if len(payload) < 2 {
		return
	}
	id := uint16(payload[0])<<8 | uint16(payload[1])

	e.mu.Lock()
	q, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return // no outstanding query for this ID; drop (spec.md §5)
	}

	_ = e.workers.SubmitAsync(context.Background(), worker.TaskFunc(func(ctx context.Context) error {
		e.handleResponse(q, payload)
		pool.PutBuffer(payload)
		return nil
	}))
}

// Start begins resolving one question. agents is the strategy-ordered
// candidate list; initial selects the first transport to try for each
// agent (spec.md §6 "resolve(question, ..., initial-transport, ...)");
// onComplete is invoked exactly once.
func (e *Engine) Start(ctx context.Context, id uint16, question packet.Question, recursionDesired bool, agents []AgentParams, initial Transport, onComplete CompletionFunc) {
	if len(agents) == 0 {
		onComplete(Result{Err: noAgentsError("empty agent list")})
		return
	}

	q := newQuery(id, question, recursionDesired, agents, initial, onComplete)

	wire, err := packet.EncodeMessage(&packet.Message{
		Header: packet.Header{
			ID:     id,
			Opcode: packet.OpcodeQuery,
			RD:     recursionDesired,
		},
		Question: []packet.Question{question},
	})
	if err != nil {
		onComplete(Result{Err: codecError("encode query", err)})
		return
	}
	q.encoded = wire
	q.state = StateBuilt

	e.mu.Lock()
	e.active[id] = q
	e.mu.Unlock()

	e.sendNextAgent(ctx, q)
}

// Cancel aborts an in-flight query, invoking its callback exactly once
// with a Cancelled error. A no-op if the query already completed.
func (e *Engine) Cancel(id uint16) {
	e.mu.Lock()
	q, ok := e.active[id]
	if ok {
		delete(e.active, id)
	}
	e.mu.Unlock()

	if ok {
		q.complete(Result{Err: cancelledError()})
	}
}

// sendNextAgent pops the next candidate agent and sends the built
// message to it, arming its timeout timer. Exhausting the list
// surfaces a terminal error.
func (e *Engine) sendNextAgent(ctx context.Context, q *Query) {
	for {
		agent, ok := q.advanceAgent()
		if !ok {
			e.finish(q, Result{Err: timeoutError()})
			return
		}

		if e.pacing != nil && !e.pacing.Allow(agent.Name) {
			continue // agent is paced down; try the next candidate
		}

		if q.initialTransport == TransportTCP {
			if e.sendAgentTCP(q, agent) {
				return
			}
			continue // TCP attempt failed outright; try next agent
		}

		addr, err := net.ResolveUDPAddr("udp", agent.Address)
		if err != nil {
			continue // unreachable address; treat like a send failure
		}

		q.mu.Lock()
		q.chosenAgent = agent
		q.transport = TransportUDP
		q.state = StateSentUDP
		timeout := agent.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		q.timer = newIdempotentTimer(timeout, func() {
			e.onTimeout(ctx, q)
		})
		q.mu.Unlock()

		if err := e.udp.Send(ctx, addr, q.encoded); err != nil {
			q.mu.Lock()
			if q.timer != nil {
				q.timer.Cancel()
			}
			q.mu.Unlock()
			continue // network send error is recoverable; try next agent
		}

		return
	}
}

// sendAgentTCP performs an initial (non-promotion) TCP exchange against
// agent, for callers that picked TransportTCP up front. Returns true
// once the query has reached a terminal state via this agent.
func (e *Engine) sendAgentTCP(q *Query, agent AgentParams) bool {
	q.mu.Lock()
	q.chosenAgent = agent
	q.transport = TransportTCP
	q.state = StateSentTCP
	q.mu.Unlock()

	timeout := agent.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := e.tcp.Exchange(ctx, agent.Address, q.encoded)
	if err != nil {
		return false
	}

	msg, err := packet.NewDecoder(resp).Decode()
	if err != nil {
		return false
	}
	if len(msg.Question) != 1 || !packet.SameQuestion(msg.Question[0], q.question) {
		return false
	}

	e.completeWithMessage(q, msg)
	return true
}

func (e *Engine) onTimeout(ctx context.Context, q *Query) {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return
	}
	q.state = StateTimedOut
	q.mu.Unlock()

	e.sendNextAgent(ctx, q)
}

// handleResponse decodes and processes one datagram attributed to q.
func (e *Engine) handleResponse(q *Query, payload []byte) {
	msg, err := packet.NewDecoder(payload).Decode()
	if err != nil {
		e.logger("query %d: decode failed: %v", q.id, err)
		q.mu.Lock()
		if q.timer != nil {
			q.timer.Cancel()
		}
		q.mu.Unlock()
		e.sendNextAgent(context.Background(), q)
		return
	}

	if len(msg.Question) != 1 || !packet.SameQuestion(msg.Question[0], q.question) {
		// Spec.md §9 Open Questions: a mismatched question is
		// discarded; the query keeps waiting for its real reply.
		return
	}

	if msg.Header.TC {
		q.mu.Lock()
		alreadyUDP := q.transport == TransportUDP
		agent := q.chosenAgent
		if q.timer != nil {
			q.timer.Cancel()
		}
		q.state = StateTruncated
		q.mu.Unlock()

		if alreadyUDP {
			e.promoteToTCP(q, agent)
			return
		}
	}

	q.mu.Lock()
	if q.timer != nil {
		q.timer.Cancel()
	}
	q.state = StateReceived
	q.mu.Unlock()

	e.completeWithMessage(q, msg)
}

// promoteToTCP re-sends the same built message to the same agent over
// TCP (spec.md §4.5 "Truncation"), synchronously, since this runs on
// the worker pool rather than the I/O loop.
func (e *Engine) promoteToTCP(q *Query, agent AgentParams) {
	q.mu.Lock()
	q.transport = TransportTCP
	q.state = StateSentTCP
	q.mu.Unlock()

	timeout := agent.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := e.tcp.Exchange(ctx, agent.Address, q.encoded)
	if err != nil {
		e.sendNextAgent(context.Background(), q)
		return
	}

	msg, err := packet.NewDecoder(resp).Decode()
	if err != nil {
		e.sendNextAgent(context.Background(), q)
		return
	}
	if len(msg.Question) != 1 || !packet.SameQuestion(msg.Question[0], q.question) {
		e.sendNextAgent(context.Background(), q)
		return
	}

	e.completeWithMessage(q, msg)
}

// completeWithMessage applies spec.md §4.5's terminal-response rule:
// SERVER_FAILURE and NAME_ERROR both surface as errors to the caller;
// every other response code is returned as-is. Learned records are
// cached before the callback runs.
func (e *Engine) completeWithMessage(q *Query, msg *packet.Message) {
	e.cacheRecords(msg)

	if msg.Header.Rcode == packet.RcodeServerFailure || msg.Header.Rcode == packet.RcodeNameError {
		e.finish(q, Result{Err: serverFailureError(msg.Header.Rcode)})
		return
	}

	e.finish(q, Result{Message: msg})
}

func (e *Engine) cacheRecords(msg *packet.Message) {
	if e.cache == nil {
		return
	}
	for _, section := range [][]packet.ResourceRecord{msg.Answer, msg.Authority, msg.Additional} {
		for _, rr := range section {
			e.cache.Add(rr, time.Duration(rr.TTL)*time.Second)
		}
	}
}

func (e *Engine) finish(q *Query, result Result) {
	e.mu.Lock()
	delete(e.active, q.id)
	e.mu.Unlock()

	q.complete(result)
}

// ActiveCount reports the number of in-flight queries, for diagnostics.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// IsActive reports whether id currently maps to an in-flight query,
// used by the façade's transaction-ID allocator to avoid collisions
// (spec.md §4.6 "ID allocation").
func (e *Engine) IsActive(id uint16) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[id]
	return ok
}
