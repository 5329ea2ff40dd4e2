package orchestrator

import (
	"fmt"
	"sort"
	"sync"
)

// TargetFactory builds a ready-to-run target for one venue or chain id.
type TargetFactory func() (Target, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]TargetFactory)
)

// RegisterTarget makes a target available to the CLI under a venue or
// chain id. Scraper packages call this from init, the same way database
// drivers register themselves.
func RegisterTarget(id string, factory TargetFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("target %q registered twice", id))
	}

	registry[id] = factory
}

// LookupTarget resolves a registered target id.
func LookupTarget(id string) (Target, error) {
	registryMu.Lock()
	factory, ok := registry[id]
	registryMu.Unlock()

	if !ok {
		return Target{}, fmt.Errorf("unknown target %q", id)
	}

	return factory()
}

// TargetIDs lists registered target ids, sorted.
func TargetIDs() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
