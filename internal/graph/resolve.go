package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sicney/eve-mo/internal/esi"
	"github.com/sicney/eve-mo/internal/logger"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoGroups means the market group listing came back empty.
	ErrNoGroups = errors.New("no market groups loaded")
	// ErrNoRootGroups means none of the configured root names matched a loaded group.
	// This is a configuration problem, not a transient one.
	ErrNoRootGroups = errors.New("no root market group matched the configured names")
)

// GroupSource provides the market-group listing and per-group details.
type GroupSource interface {
	MarketGroupIDs(ctx context.Context) []int32
	MarketGroup(ctx context.Context, groupID int32) (esi.MarketGroup, bool)
}

// LoadTree lists every market group and fetches its details with up to workers
// concurrent requests. Groups whose detail request fails are left out.
func LoadTree(ctx context.Context, src GroupSource, workers int) (*MarketTree, error) {
	ids := src.MarketGroupIDs(ctx)
	if len(ids) == 0 {
		return nil, ErrNoGroups
	}
	if workers < 1 {
		workers = 1
	}

	tree := NewMarketTree()
	var mu sync.Mutex
	var done, skipped int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		g.Go(func() error {
			mg, ok := src.MarketGroup(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			done++
			if done%100 == 0 {
				logger.Info("Resolver", fmt.Sprintf("Market group %d/%d", done, len(ids)))
			}
			if !ok {
				skipped++
				return nil
			}
			tree.Add(Group{ID: id, Name: mg.Name, ParentID: mg.ParentID, Types: mg.Types})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if skipped > 0 {
		logger.Warn("Resolver", fmt.Sprintf("Skipped %d market groups that failed to load", skipped))
	}
	return tree, nil
}

// Resolve returns the ascending type IDs under any group named in rootNames,
// capped at maxTypes.
func Resolve(ctx context.Context, src GroupSource, rootNames []string, maxTypes, workers int) ([]int32, error) {
	logger.Info("Resolver", "Loading market groups...")
	tree, err := LoadTree(ctx, src, workers)
	if err != nil {
		return nil, err
	}

	roots := tree.RootIDs(rootNames)
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoRootGroups, rootNames)
	}
	logger.Info("Resolver", fmt.Sprintf("Root market groups: %v", sortedKeys(roots)))

	all := tree.TypeIDs(roots, 0)
	ids := all
	if maxTypes > 0 && len(ids) > maxTypes {
		ids = ids[:maxTypes]
		logger.Info("Resolver", fmt.Sprintf("Type list capped at %d of %d", maxTypes, len(all)))
	}
	logger.Success("Resolver", fmt.Sprintf("%d types selected", len(ids)))
	return ids, nil
}

func sortedKeys(m map[int32]bool) []int32 {
	keys := make([]int32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
