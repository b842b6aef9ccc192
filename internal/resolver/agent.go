package resolver

import (
	"sync"

	"github.com/dnsscience/resolvcore/internal/query"
)

// agentRegistry holds the façade's configured upstream agents in
// registration order (spec.md §4.6 "Own the agent registry"), so the
// round_robin and priority strategies have a stable base ordering to
// work from.
type agentRegistry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]query.AgentParams
	cursor *query.RoundRobinCursor
}

func newAgentRegistry() *agentRegistry {
	return &agentRegistry{
		byName: make(map[string]query.AgentParams),
		cursor: query.NewRoundRobinCursor(),
	}
}

// Register adds or replaces an agent. Re-registering a known name
// keeps its original position in the round-robin order.
func (r *agentRegistry) Register(a query.AgentParams) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[a.Name]; !exists {
		r.order = append(r.order, a.Name)
	}
	r.byName[a.Name] = a
}

func (r *agentRegistry) All() []query.AgentParams {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]query.AgentParams, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func (r *agentRegistry) ByName(name string) (query.AgentParams, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

func (r *agentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Select orders the registered agents per strategy, using this
// registry's own round-robin cursor so successive round_robin calls
// rotate relative to each other.
func (r *agentRegistry) Select(strategy query.Strategy, namedAgent string) ([]query.AgentParams, *query.Error) {
	return query.SelectAgents(strategy, r.All(), namedAgent, r.cursor)
}
