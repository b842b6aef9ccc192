package resolver

import (
	"context"
	"net"
	"strconv"

	"github.com/dnsscience/resolvcore/internal/packet"
	"github.com/dnsscience/resolvcore/internal/query"
	"github.com/dnsscience/resolvcore/internal/roothints"
)

const dnsPort = 53

// resolveIterative drives the `iterative` strategy: start from the
// root-hints nameservers and follow NS+glue referrals until an answer,
// a negative response, or the depth bound is hit (spec.md §4.5
// "Iterative resolution", §9 Open Questions). Unlike the other five
// strategies it does not consult the registered agent list at all.
func (r *Resolver) resolveIterative(ctx context.Context, question packet.Question, opts ResolveOptions, cb query.CompletionFunc) {
	roots, err := r.loadRootHints(ctx)
	if err != nil {
		cb(query.Result{Err: &query.Error{Kind: query.KindNoAgents, Detail: err.Error()}})
		return
	}

	candidates := rootAgents(roots)
	if len(candidates) == 0 {
		cb(query.Result{Err: &query.Error{Kind: query.KindNoAgents, Detail: "root hints contain no usable A/AAAA glue"}})
		return
	}

	for depth := 0; depth < r.cfg.MaxIterativeDepth; depth++ {
		msg, err := r.queryOnce(ctx, question, candidates)
		if err != nil {
			// queryOnce's engine already turns a NAME_ERROR response
			// into a terminal error (spec.md §4.5 "Failure semantics"),
			// so this also catches NXDOMAIN at any hop.
			cb(query.Result{Err: err})
			return
		}

		if len(msg.Answer) > 0 {
			cb(query.Result{Message: msg})
			return
		}

		next, ok := r.followReferral(ctx, msg, depth)
		if !ok {
			// No referral and no answer: return what we have, per
			// spec.md §4.5 "No answer, no referral - return as-is."
			cb(query.Result{Message: msg})
			return
		}
		candidates = next
	}

	cb(query.Result{Err: &query.Error{Kind: query.KindTimeout, Detail: "iterative resolution exceeded max depth"}})
}

// queryOnce issues a single non-recursive (RD=0) query against
// candidates via the shared query engine and blocks until it completes.
func (r *Resolver) queryOnce(ctx context.Context, question packet.Question, candidates []query.AgentParams) (*packet.Message, *query.Error) {
	id, err := r.allocateID()
	if err != nil {
		return nil, &query.Error{Kind: query.KindNoAgents, Detail: err.Error()}
	}

	resultCh := make(chan query.Result, 1)
	r.engine.Start(ctx, id, question, false, candidates, query.TransportUDP, func(res query.Result) {
		resultCh <- res
	})

	select {
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Message, nil
	case <-ctx.Done():
		return nil, &query.Error{Kind: query.KindCancelled}
	}
}

// followReferral extracts the next hop's candidate nameservers from a
// referral response's Authority (NS) and Additional (glue) sections.
// An NS name with no glue is resolved by resolveGluelessNS, a nested
// iterative Resolve that starts its own depth count at zero. It is only
// attempted while this resolution has depth left, and it does not use
// up any of this resolution's depth, so MaxIterativeDepth does not
// bound the total depth of nested glueless lookups.
func (r *Resolver) followReferral(ctx context.Context, msg *packet.Message, depth int) ([]query.AgentParams, bool) {
	var nsNames []string
	for _, rr := range msg.Authority {
		if ns, ok := rr.RData.(packet.NS); ok {
			nsNames = append(nsNames, ns.Name)
		}
	}
	if len(nsNames) == 0 {
		return nil, false
	}

	glue := map[string]string{}
	for _, rr := range msg.Additional {
		switch rdata := rr.RData.(type) {
		case packet.A:
			glue[packet.NormalizeName(rr.Name)] = net.JoinHostPort(rdata.IP.String(), strconv.Itoa(dnsPort))
		case packet.AAAA:
			glue[packet.NormalizeName(rr.Name)] = net.JoinHostPort(rdata.IP.String(), strconv.Itoa(dnsPort))
		}
	}

	var next []query.AgentParams
	for _, name := range nsNames {
		if addr, ok := glue[packet.NormalizeName(name)]; ok {
			next = append(next, query.AgentParams{Name: name, Address: addr, Timeout: defaultIterativeTimeout})
			continue
		}

		if depth+1 >= r.cfg.MaxIterativeDepth {
			continue // no budget left to chase a glueless NS name
		}
		if ip, ok := r.resolveGluelessNS(ctx, name); ok {
			next = append(next, query.AgentParams{
				Name:    name,
				Address: net.JoinHostPort(ip, strconv.Itoa(dnsPort)),
				Timeout: defaultIterativeTimeout,
			})
		}
	}

	return next, len(next) > 0
}

// resolveGluelessNS resolves a referred nameserver's own address via a
// nested call into this same resolver, when the referral supplied no
// glue record for it.
func (r *Resolver) resolveGluelessNS(ctx context.Context, name string) (string, bool) {
	msg, err := r.Resolve(ctx, name, packet.TypeA, ResolveOptions{Strategy: query.StrategyIterative})
	if err != nil || msg == nil {
		return "", false
	}
	for _, rr := range msg.Answer {
		if a, ok := rr.RData.(packet.A); ok {
			return a.IP.String(), true
		}
	}
	return "", false
}

const defaultIterativeTimeout = 3_000_000_000 // 3s, in time.Duration's ns units

// loadRootHints lazily loads and caches the root-hints file for the
// lifetime of the resolver (spec.md §4.4).
func (r *Resolver) loadRootHints(ctx context.Context) (*roothints.Hints, error) {
	r.rootMu.Lock()
	defer r.rootMu.Unlock()

	if r.rootHints != nil {
		return r.rootHints, nil
	}

	h, err := roothints.Load(ctx, r.cfg.RootHints)
	if err != nil {
		return nil, err
	}
	r.rootHints = h
	return h, nil
}

// rootAgents turns a root-hints file's A/AAAA glue records into the
// initial candidate nameserver list for iterative resolution.
func rootAgents(h *roothints.Hints) []query.AgentParams {
	var out []query.AgentParams
	for _, rec := range h.Records {
		switch rdata := rec.RData.(type) {
		case packet.A:
			out = append(out, query.AgentParams{Name: rec.Name, Address: net.JoinHostPort(rdata.IP.String(), strconv.Itoa(dnsPort)), Timeout: defaultIterativeTimeout})
		case packet.AAAA:
			out = append(out, query.AgentParams{Name: rec.Name, Address: net.JoinHostPort(rdata.IP.String(), strconv.Itoa(dnsPort)), Timeout: defaultIterativeTimeout})
		}
	}
	return out
}
