package graph

import (
	"sort"
	"sync"
)

// Group is a node of the market-group forest.
type Group struct {
	ID       int32
	Name     string
	ParentID *int32 // nil marks a top-level group
	Types    []int32
}

// MarketTree holds the market groups loaded for one run, keyed by group ID,
// and memoizes ancestry lookups. Groups must not be added after the first
// IsUnder call.
type MarketTree struct {
	Groups map[int32]*Group

	mu    sync.Mutex
	under map[int32]bool // start group ID -> member of a root subtree
}

// NewMarketTree creates an empty MarketTree with initialized maps.
func NewMarketTree() *MarketTree {
	return &MarketTree{
		Groups: make(map[int32]*Group),
		under:  make(map[int32]bool),
	}
}

// Add inserts or replaces a group.
func (t *MarketTree) Add(g Group) {
	t.Groups[g.ID] = &g
}

// RootIDs returns the IDs of groups whose name exactly matches one of names.
func (t *MarketTree) RootIDs(names []string) map[int32]bool {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	roots := make(map[int32]bool)
	for id, g := range t.Groups {
		if wanted[g.Name] {
			roots[id] = true
		}
	}
	return roots
}

// IsUnder reports whether groupID is one of roots or has one of them as an ancestor.
// The walk follows parent links and stops at a root (true), at a missing or
// unknown parent (false) or when it revisits a group (cycle, false).
// Results are cached per starting group; roots must be the same set for all calls.
func (t *MarketTree) IsUnder(groupID int32, roots map[int32]bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.under[groupID]; ok {
		return v
	}

	result := false
	seen := make(map[int32]bool)
	current := groupID
	for {
		if v, ok := t.under[current]; ok {
			result = v
			break
		}
		g, ok := t.Groups[current]
		if !ok || seen[current] {
			break
		}
		seen[current] = true
		if roots[current] {
			result = true
			break
		}
		if g.ParentID == nil {
			break
		}
		current = *g.ParentID
	}

	t.under[groupID] = result
	return result
}

// TypeIDs returns the ascending union of types assigned to groups under roots,
// truncated to the first maxTypes IDs when maxTypes > 0.
func (t *MarketTree) TypeIDs(roots map[int32]bool, maxTypes int) []int32 {
	set := make(map[int32]bool)
	for id, g := range t.Groups {
		if len(g.Types) == 0 || !t.IsUnder(id, roots) {
			continue
		}
		for _, typeID := range g.Types {
			set[typeID] = true
		}
	}

	ids := make([]int32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if maxTypes > 0 && len(ids) > maxTypes {
		ids = ids[:maxTypes]
	}
	return ids
}
