package resolver

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dnsscience/resolvcore/internal/cache"
	"github.com/dnsscience/resolvcore/internal/pacing"
	"github.com/dnsscience/resolvcore/internal/query"
	"github.com/dnsscience/resolvcore/internal/roothints"
)

// fileConfig is the YAML shape accepted by LoadConfig (spec.md §6
// "Public API" configuration surface: agents, cache, strategy).
// Grounded on cmd/dnsscience-grpc/config.go's flat os.ReadFile +
// yaml.Unmarshal pattern.
type fileConfig struct {
	Listen   string        `yaml:"listen"`
	Strategy string        `yaml:"default_strategy"`
	Workers  int           `yaml:"workers"`
	MaxDepth int           `yaml:"max_iterative_depth"`
	Agents   []agentEntry  `yaml:"agents"`
	Cache    cacheEntry    `yaml:"cache"`
	Pacing   pacingEntry   `yaml:"pacing"`
	Hints    rootHintEntry `yaml:"root_hints"`
}

type agentEntry struct {
	Name      string `yaml:"name"`
	Address   string `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Priority  int    `yaml:"priority"`
}

type cacheEntry struct {
	Capacity int `yaml:"capacity"`
	MaxTTLS  int `yaml:"max_ttl_seconds"`
}

type pacingEntry struct {
	QueriesPerSecond float64 `yaml:"queries_per_second"`
	Burst            int     `yaml:"burst"`
}

type rootHintEntry struct {
	URL      string `yaml:"url"`
	FilePath string `yaml:"file_path"`
}

// LoadConfig reads path as YAML and produces a Config ready for
// NewResolver. An agent entry with no timeout_ms gets no per-agent
// override; the query engine falls back to its own default.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Config{
		ListenAddr:        fc.Listen,
		DefaultStrategy:   query.Strategy(fc.Strategy),
		Workers:           fc.Workers,
		MaxIterativeDepth: fc.MaxDepth,
		Cache: cache.Config{
			Capacity: fc.Cache.Capacity,
			MaxTTL:   time.Duration(fc.Cache.MaxTTLS) * time.Second,
		},
		Pacing: pacing.Config{
			QueriesPerSecond: fc.Pacing.QueriesPerSecond,
			Burst:            fc.Pacing.Burst,
		},
		RootHints: roothints.Config{
			URL:      fc.Hints.URL,
			FilePath: fc.Hints.FilePath,
		},
	}

	for _, a := range fc.Agents {
		if a.Name == "" || a.Address == "" {
			return Config{}, fmt.Errorf("agent entry missing name or address")
		}
		cfg.Agents = append(cfg.Agents, query.AgentParams{
			Name:     a.Name,
			Address:  a.Address,
			Timeout:  time.Duration(a.TimeoutMs) * time.Millisecond,
			Priority: a.Priority,
		})
	}

	return cfg, nil
}
