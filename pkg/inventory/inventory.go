package inventory

import (
	"context"
	"sort"

	"github.com/cuemby/elementstates/pkg/client"
	"github.com/cuemby/elementstates/pkg/log"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/rs/zerolog"
)

// Reader reads the cluster inventory. It never caches: every call is a
// fresh query against the management system.
type Reader struct {
	client client.Client
	logger zerolog.Logger
}

// NewReader creates a new inventory reader
func NewReader(c client.Client) *Reader {
	return &Reader{
		client: c,
		logger: log.WithComponent("inventory"),
	}
}

// ListResources returns every element in the cluster, unfiltered, in
// enumeration order. Transport errors are returned as-is.
func (r *Reader) ListResources(ctx context.Context) ([]*types.Element, error) {
	elements, err := r.client.ListElements(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Int("count", len(elements)).Msg("Elements retrieved")
	return elements, nil
}

// ListNodes returns agent id -> display name. A failover pair answers
// twice with the same id; the first answer wins.
func (r *Reader) ListNodes(ctx context.Context) (map[int]string, error) {
	agents, err := r.SortedNodes(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make(map[int]string, len(agents))
	for _, a := range agents {
		nodes[a.ID] = a.Name
	}
	return nodes, nil
}

// SortedNodes returns the deduplicated agents ordered by id
func (r *Reader) SortedNodes(ctx context.Context) ([]*types.Agent, error) {
	agents, err := r.client.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(agents))
	var unique []*types.Agent
	for _, a := range agents {
		if a.ID <= 0 {
			r.logger.Warn().Int("agent_id", a.ID).Msg("Ignoring agent with invalid id")
			continue
		}
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		unique = append(unique, a)
	}

	sort.Slice(unique, func(i, j int) bool { return unique[i].ID < unique[j].ID })
	return unique, nil
}

// IndexByName indexes elements by exact name. When names collide the
// first element in enumeration order wins.
func IndexByName(elements []*types.Element) map[string]*types.Element {
	index := make(map[string]*types.Element, len(elements))
	for _, e := range elements {
		if _, exists := index[e.Name]; !exists {
			index[e.Name] = e
		}
	}
	return index
}

// CountByState tallies elements per state
func CountByState(elements []*types.Element) map[types.ElementState]int {
	counts := make(map[types.ElementState]int)
	for _, e := range elements {
		counts[e.State]++
	}
	return counts
}

