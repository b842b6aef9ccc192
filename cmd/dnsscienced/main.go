package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dnsscience/resolvcore/internal/packet"
	"github.com/dnsscience/resolvcore/internal/query"
	"github.com/dnsscience/resolvcore/internal/resolver"
)

var (
	configFile = flag.String("config", "", "Resolver config file (YAML); flags below apply when unset")
	listenAddr = flag.String("listen", "", "Local UDP address to send queries from (empty = ephemeral port)")
	agentAddr  = flag.String("agent", "9.9.9.9:53", "Default upstream agent address when no -config is given")
	strategy   = flag.String("strategy", "priority", "Default server-selection strategy")
	lookup     = flag.String("lookup", "", "If set, resolve this name once and exit instead of running as a daemon")
	qtypeFlag  = flag.String("type", "A", "Record type for -lookup (A, AAAA, NS, MX, TXT, ...)")
	stats      = flag.Bool("stats", true, "Print statistics periodically")
)

func main() {
	flag.Parse()

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                                                              ║")
	fmt.Println("║              DNSScienced - Resolver Core                     ║")
	fmt.Println("║                                                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Listen Address:    %s\n", orEphemeral(cfg.ListenAddr))
	fmt.Printf("  Default Strategy:  %s\n", cfg.DefaultStrategy)
	fmt.Printf("  Agents:            %d\n", len(cfg.Agents))
	for _, a := range cfg.Agents {
		fmt.Printf("    - %-12s %s\n", a.Name, a.Address)
	}
	fmt.Println()

	r, err := resolver.NewResolver(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating resolver: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	fmt.Println("Resolver started successfully!")
	fmt.Println()

	if *lookup != "" {
		runOneShotLookup(r)
		return
	}

	if *stats {
		go printStats(r)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println()
}

func buildConfig() (resolver.Config, error) {
	if *configFile != "" {
		return resolver.LoadConfig(*configFile)
	}

	return resolver.Config{
		ListenAddr:      *listenAddr,
		DefaultStrategy: query.Strategy(*strategy),
		Agents: []query.AgentParams{
			{Name: "default", Address: *agentAddr, Timeout: 3 * time.Second, Priority: 1},
		},
	}, nil
}

func orEphemeral(addr string) string {
	if addr == "" {
		return "(ephemeral)"
	}
	return addr
}

func runOneShotLookup(r *resolver.Resolver) {
	qtype, ok := packet.TypeByName(*qtypeFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown record type: %s\n", *qtypeFlag)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg, err := r.Resolve(ctx, *lookup, qtype, resolver.ResolveOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Resolve error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Answer for %s %s:\n", *lookup, *qtypeFlag)
	for _, rr := range msg.Answer {
		fmt.Printf("  %s\t%d\t%s\t%v\n", rr.Name, rr.TTL, rr.Type, rr.RData)
	}
	if len(msg.Answer) == 0 {
		fmt.Printf("  (no answer, rcode=%s)\n", msg.Header.Rcode)
	}
}

func printStats(r *resolver.Resolver) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var lastResolved uint64
	lastTime := time.Now()

	for range ticker.C {
		s := r.Stats()
		now := time.Now()
		elapsed := now.Sub(lastTime).Seconds()

		resolved := s.Cache.Hits + s.Cache.Misses
		qps := float64(resolved-lastResolved) / elapsed

		fmt.Printf("═══════════════════════════════════════════════════════════\n")
		fmt.Printf("Statistics (%.1fs interval):\n", elapsed)
		fmt.Printf("  Active Queries:  %10d\n", s.Active)
		fmt.Printf("  Lookups:         %10d  (%.0f qps)\n", resolved, qps)
		fmt.Printf("\nCache:\n")
		fmt.Printf("  Hits:     %10d\n", s.Cache.Hits)
		fmt.Printf("  Misses:   %10d\n", s.Cache.Misses)
		fmt.Printf("  Size:     %10d entries\n", s.Cache.Size)
		fmt.Printf("  Evicted:  %10d\n", s.Cache.Evictions)
		fmt.Printf("\nWorker Pool:\n")
		fmt.Printf("  Submitted: %10d\n", s.Workers.Submitted)
		fmt.Printf("  Completed: %10d\n", s.Workers.Completed)
		fmt.Printf("  Rejected:  %10d\n", s.Workers.Rejected)
		fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

		lastResolved = resolved
		lastTime = now
	}
}
