package query

import (
	"sync"
	"time"

	"github.com/dnsscience/resolvcore/internal/packet"
)

// State is a query's position in the state machine spec.md §4.5
// defines: INIT -> BUILT -> SENT_UDP -> (RECEIVED|TIMED_OUT|TRUNCATED)
// -> [SENT_TCP -> (RECEIVED|TIMED_OUT)] -> COMPLETE.
type State int

const (
	StateInit State = iota
	StateBuilt
	StateSentUDP
	StateReceived
	StateTimedOut
	StateTruncated
	StateSentTCP
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateBuilt:
		return "BUILT"
	case StateSentUDP:
		return "SENT_UDP"
	case StateReceived:
		return "RECEIVED"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateTruncated:
		return "TRUNCATED"
	case StateSentTCP:
		return "SENT_TCP"
	case StateComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Result is the single terminal value a query ever hands to its
// completion callback: exactly one of Message or Err is set.
type Result struct {
	Message *packet.Message
	Err     *Error
}

// CompletionFunc receives a query's single terminal result.
type CompletionFunc func(Result)

// Query is one in-flight resolution attempt (spec.md §3 "Query
// (runtime)"). After Start publishes it, its fields are only mutated
// while mu is held, and never from the I/O loop. The mutations run on
// the engine's worker pool (response handling), on the timeout timer's
// own goroutine (onTimeout), and on the goroutine that called Start
// (the first send); they are not confined to the worker pool.
type Query struct {
	mu sync.Mutex

	id               uint16
	question         packet.Question
	recursionDesired bool
	encoded          []byte

	state            State
	transport        Transport
	initialTransport Transport
	agents           []AgentParams
	agentIdx         int
	chosenAgent      AgentParams

	timer     *idempotentTimer
	startTime time.Time
	endTime   time.Time

	onComplete CompletionFunc
	done       bool
}

// Transport names which wire transport a query's next send should use.
type Transport int

const (
	// TransportUDP starts each agent attempt over UDP, promoting to TCP
	// only on truncation (spec.md §4.5's default path).
	TransportUDP Transport = iota
	// TransportTCP sends every agent attempt directly over TCP, used by
	// callers that already know a response won't fit a 512-byte
	// datagram (spec.md §6 "Public API" initial-transport parameter).
	TransportTCP
)

func newQuery(id uint16, question packet.Question, recursionDesired bool, agents []AgentParams, initial Transport, onComplete CompletionFunc) *Query {
	return &Query{
		id:               id,
		question:         question,
		recursionDesired: recursionDesired,
		state:            StateInit,
		agents:           agents,
		agentIdx:         -1,
		initialTransport: initial,
		onComplete:       onComplete,
		startTime:        time.Now(),
	}
}

// currentAgent returns the agent the query most recently sent to.
func (q *Query) currentAgent() (AgentParams, bool) {
	if q.agentIdx < 0 || q.agentIdx >= len(q.agents) {
		return AgentParams{}, false
	}
	return q.agents[q.agentIdx], true
}

// advanceAgent moves to the next candidate agent, returning false
// once the list is exhausted.
func (q *Query) advanceAgent() (AgentParams, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.agentIdx++
	return q.currentAgent()
}

// complete finalizes the query exactly once; subsequent calls are
// no-ops, which is what keeps timer firings and late network replies
// from double-invoking the callback (spec.md §5 "Cancellation and
// timeouts").
func (q *Query) complete(result Result) {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return
	}
	q.done = true
	q.state = StateComplete
	q.endTime = time.Now()
	if q.timer != nil {
		q.timer.Cancel()
	}
	cb := q.onComplete
	q.mu.Unlock()

	if cb != nil {
		cb(result)
	}
}
