package query

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"
	"time"
)

// Strategy selects and orders the candidate upstream agents for one
// query (spec.md §4.5 "Server-selection strategies").
type Strategy string

const (
	StrategyPriority   Strategy = "priority"
	StrategySpeed      Strategy = "speed"
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
	StrategyNamed      Strategy = "named"
	StrategyIterative  Strategy = "iterative"
)

// AgentParams identifies one upstream recursive server (spec.md §3
// "AgentParams").
type AgentParams struct {
	Name     string
	Address  string // host:port
	Timeout  time.Duration
	Priority int
}

// RoundRobinCursor tracks the rotating start offset for the
// round_robin strategy; registration order is preserved relative to
// the rotating start point, spreading load across successive queries
// the way a registration-order-only list could not. Callers keep one
// instance per resolver and pass it to every SelectAgents call.
type RoundRobinCursor struct {
	next atomic.Uint64
}

func NewRoundRobinCursor() *RoundRobinCursor {
	return &RoundRobinCursor{}
}

// SelectAgents orders agents per strategy. namedAgent is only
// consulted for StrategyNamed. Returns NoAgents when the resulting
// list would be empty.
func SelectAgents(strategy Strategy, agents []AgentParams, namedAgent string, cursor *RoundRobinCursor) ([]AgentParams, *Error) {
	if len(agents) == 0 && strategy != StrategyIterative {
		return nil, noAgentsError("no agents registered")
	}

	switch strategy {
	case StrategyPriority:
		return orderByPriority(agents), nil

	case StrategySpeed:
		return orderBySpeed(agents), nil

	case StrategyRoundRobin:
		return orderRoundRobin(agents, cursor), nil

	case StrategyRandom:
		return orderRandom(agents), nil

	case StrategyNamed:
		for _, a := range agents {
			if a.Name == namedAgent {
				return []AgentParams{a}, nil
			}
		}
		return nil, noAgentsError("named agent " + namedAgent + " is not registered")

	case StrategyIterative:
		// The iterative strategy's candidate set does not come from
		// the registered agent list; callers drive it from root
		// hints and subsequent NS/glue records instead.
		return nil, noAgentsError("iterative strategy has no static agent list")

	default:
		return nil, noAgentsError("unknown strategy " + string(strategy))
	}
}

func orderByPriority(agents []AgentParams) []AgentParams {
	out := append([]AgentParams(nil), agents...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority > out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func orderBySpeed(agents []AgentParams) []AgentParams {
	out := append([]AgentParams(nil), agents...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Timeout < out[j-1].Timeout; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func orderRoundRobin(agents []AgentParams, cursor *RoundRobinCursor) []AgentParams {
	if len(agents) == 0 {
		return nil
	}
	if cursor == nil {
		return append([]AgentParams(nil), agents...)
	}
	start := int(cursor.next.Add(1)-1) % len(agents)
	out := make([]AgentParams, 0, len(agents))
	out = append(out, agents[start:]...)
	out = append(out, agents[:start]...)
	return out
}

func orderRandom(agents []AgentParams) []AgentParams {
	out := append([]AgentParams(nil), agents...)
	for i := len(out) - 1; i > 0; i-- {
		j := secureIntn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// secureIntn returns a cryptographically random int in [0, n), used
// for the random strategy's shuffle — spec.md §6 notes randomness is
// needed only for this strategy, and crypto/rand keeps it consistent
// with the resolver's other anti-poisoning randomization.
func secureIntn(n int) int {
	if n <= 1 {
		return 0
	}
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return int(binary.BigEndian.Uint32(buf[:]) % uint32(n))
}
