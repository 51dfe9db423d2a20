package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sicney/eve-mo/internal/config"
	"github.com/sicney/eve-mo/internal/esi"
	"github.com/sicney/eve-mo/internal/graph"
	"github.com/sicney/eve-mo/internal/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrNoHistory means the store held no history rows after collection.
var ErrNoHistory = errors.New("no market history in store")

// MarketAPI is the part of the ESI client the analyzer needs.
type MarketAPI interface {
	graph.GroupSource
	MarketHistory(ctx context.Context, regionID, typeID int32) ([]esi.HistoryEntry, bool)
	TypeName(ctx context.Context, typeID int32) (string, bool)
}

// Store persists history series, type names and run summaries.
type Store interface {
	UpsertHistory(regionID, typeID int32, entries []esi.HistoryEntry) error
	LoadAllHistory() ([]HistoryRecord, error)
	GetTypeName(typeID int32) (string, bool)
	SetTypeName(typeID int32, name string) error
	InsertRun(summary RunSummary) (int64, error)
}

// Analyzer runs the resolve, collect and analyze pipeline.
type Analyzer struct {
	cfg   *config.Config
	api   MarketAPI
	store Store
	names singleflight.Group
	now   func() time.Time
}

// NewAnalyzer creates an Analyzer. cfg is read, never modified.
func NewAnalyzer(cfg *config.Config, api MarketAPI, store Store) *Analyzer {
	return &Analyzer{cfg: cfg, api: api, store: store, now: time.Now}
}

// CollectStats counts the outcome of one collection pass.
type CollectStats struct {
	Units  int
	Stored int
	Failed int
}

// Run resolves the configured type set, refreshes the store and analyzes it.
// progress may be nil.
func (a *Analyzer) Run(ctx context.Context, progress func(string)) (*RunResult, error) {
	if progress == nil {
		progress = func(string) {}
	}
	started := a.now()

	progress("Resolving market groups...")
	typeIDs, err := graph.Resolve(ctx, a.api, a.cfg.Market.RootGroups, a.cfg.Market.MaxTypes, a.cfg.Analysis.Workers)
	if err != nil {
		return nil, fmt.Errorf("resolve types: %w", err)
	}

	progress(fmt.Sprintf("Collecting history for %d types in %d regions...", len(typeIDs), len(a.cfg.Market.RegionIDs)))
	stats, err := a.Collect(ctx, typeIDs)
	if err != nil {
		return nil, err
	}

	progress("Computing features...")
	res, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	res.Summary.StartedAt = started
	res.Summary.Duration = a.now().Sub(started)
	res.Summary.Types = len(typeIDs)
	res.Summary.Stored = stats.Stored
	res.Summary.Failed = stats.Failed

	if _, err := a.store.InsertRun(res.Summary); err != nil {
		logger.Warn("Analyzer", fmt.Sprintf("Run not recorded: %v", err))
	}
	lastRunTimestamp.Set(float64(a.now().Unix()))
	progress(fmt.Sprintf("Found %d BUY and %d SELL candidates", res.Summary.BuyCount, res.Summary.SellCount))
	return res, nil
}

// Collect fetches the history of every (region, type) pair and stores each series
// as soon as it arrives. A failed pair is logged and skipped.
func (a *Analyzer) Collect(ctx context.Context, typeIDs []int32) (CollectStats, error) {
	type unit struct{ region, typ int32 }
	units := make([]unit, 0, len(a.cfg.Market.RegionIDs)*len(typeIDs))
	for _, r := range a.cfg.Market.RegionIDs {
		for _, t := range typeIDs {
			units = append(units, unit{r, t})
		}
	}

	stats := CollectStats{Units: len(units)}
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Analysis.Workers)
	for _, u := range units {
		g.Go(func() error {
			stored := a.collectOne(gctx, u.region, u.typ)
			mu.Lock()
			defer mu.Unlock()
			done++
			if stored {
				stats.Stored++
				seriesCollected.WithLabelValues("stored").Inc()
			} else {
				stats.Failed++
				seriesCollected.WithLabelValues("failed").Inc()
			}
			logger.Debug("Collect", fmt.Sprintf("[%d/%d] region %d type %d", done, len(units), u.region, u.typ))
			if done%100 == 0 || done == len(units) {
				logger.Info("Collect", fmt.Sprintf("[%d/%d] series processed", done, len(units)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("collect: %w", err)
	}
	logger.Success("Collect", fmt.Sprintf("Stored %d series, %d failed", stats.Stored, stats.Failed))
	return stats, nil
}

func (a *Analyzer) collectOne(ctx context.Context, regionID, typeID int32) bool {
	entries, ok := a.api.MarketHistory(ctx, regionID, typeID)
	if !ok {
		return false
	}
	if err := a.store.UpsertHistory(regionID, typeID, entries); err != nil {
		logger.Error("Collect", fmt.Sprintf("Store region %d type %d: %v", regionID, typeID, err))
		return false
	}
	return true
}

// Analyze loads the whole store, computes features and returns the top-N ranked
// candidates per side with type names attached.
func (a *Analyzer) Analyze(ctx context.Context) (*RunResult, error) {
	rows, err := a.store.LoadAllHistory()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHistory
	}

	ac := a.cfg.Analysis
	features := ComputeFeatures(rows, ac.Window, ac.MinObservations)
	buy, sell := Classify(features, ac.ZThreshold, ac.Ranking)
	signalsGauge.WithLabelValues(string(Buy)).Set(float64(len(buy)))
	signalsGauge.WithLabelValues(string(Sell)).Set(float64(len(sell)))
	logger.Info("Analyzer", fmt.Sprintf("%d rows, %d BUY, %d SELL", len(rows), len(buy), len(sell)))

	res := &RunResult{
		Summary: RunSummary{
			Series:     len(LatestPerSeries(features)),
			BuyCount:   len(buy),
			SellCount:  len(sell),
			Window:     ac.Window,
			MinObs:     ac.MinObservations,
			Threshold:  ac.ZThreshold,
			Ranking:    ac.Ranking,
			RegionIDs:  a.cfg.Market.RegionIDs,
			RootGroups: a.cfg.Market.RootGroups,
		},
		Buy:  TopN(buy, ac.TopN),
		Sell: TopN(sell, ac.TopN),
	}
	a.attachNames(ctx, res.Buy)
	a.attachNames(ctx, res.Sell)
	return res, nil
}

func (a *Analyzer) attachNames(ctx context.Context, signals []Signal) {
	for i := range signals {
		signals[i].TypeName = a.TypeName(ctx, signals[i].TypeID)
	}
}

// TypeName returns the display name of typeID from the store, fetching and caching
// it on a miss. Lookups that fail fall back to "type_id_<id>", which is not cached.
func (a *Analyzer) TypeName(ctx context.Context, typeID int32) string {
	if name, ok := a.store.GetTypeName(typeID); ok {
		return name
	}
	v, _, _ := a.names.Do(strconv.Itoa(int(typeID)), func() (any, error) {
		name, ok := a.api.TypeName(ctx, typeID)
		if !ok || name == "" {
			return fmt.Sprintf("type_id_%d", typeID), nil
		}
		if err := a.store.SetTypeName(typeID, name); err != nil {
			logger.Warn("Names", fmt.Sprintf("Cache name of %d: %v", typeID, err))
		}
		return name, nil
	})
	return v.(string)
}
