package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sicney/eve-mo/internal/config"
	"github.com/sicney/eve-mo/internal/esi"
	"github.com/sicney/eve-mo/internal/graph"
)

type fakeAPI struct {
	mu        sync.Mutex
	groups    map[int32]esi.MarketGroup
	history   map[int32][]esi.HistoryEntry
	names     map[int32]string
	nameCalls int
}

func (f *fakeAPI) MarketGroupIDs(context.Context) []int32 {
	var out []int32
	for id := range f.groups {
		out = append(out, id)
	}
	return out
}

func (f *fakeAPI) MarketGroup(_ context.Context, id int32) (esi.MarketGroup, bool) {
	g, ok := f.groups[id]
	return g, ok
}

func (f *fakeAPI) MarketHistory(_ context.Context, _, typeID int32) ([]esi.HistoryEntry, bool) {
	h, ok := f.history[typeID]
	return h, ok
}

func (f *fakeAPI) TypeName(_ context.Context, typeID int32) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameCalls++
	n, ok := f.names[typeID]
	return n, ok
}

type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]HistoryRecord
	names map[int32]string
	runs  []RunSummary
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]HistoryRecord), names: make(map[int32]string)}
}

func (s *fakeStore) UpsertHistory(regionID, typeID int32, entries []esi.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		d, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			return err
		}
		s.rows[fmt.Sprintf("%d/%d/%s", regionID, typeID, e.Date)] = HistoryRecord{
			RegionID: regionID, TypeID: typeID, Date: d,
			Average: e.Average, Volume: e.Volume, OrderCount: e.OrderCount,
			Highest: e.Highest, Lowest: e.Lowest,
		}
	}
	return nil
}

func (s *fakeStore) LoadAllHistory() ([]HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryRecord, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) GetTypeName(typeID int32) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.names[typeID]
	return n, ok
}

func (s *fakeStore) SetTypeName(typeID int32, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[typeID] = name
	return nil
}

func (s *fakeStore) InsertRun(summary RunSummary) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, summary)
	return int64(len(s.runs)), nil
}

func dippingHistory(days int, base, last float64) []esi.HistoryEntry {
	out := make([]esi.HistoryEntry, days)
	for i := range out {
		avg := base
		if i == days-1 {
			avg = last
		}
		out[i] = esi.HistoryEntry{
			Date:    day0.AddDate(0, 0, i).Format("2006-01-02"),
			Average: ptr(avg),
			Volume:  ptr[int64](1000),
		}
	}
	return out
}

func ammoAPI() *fakeAPI {
	parentID := int32(100)
	return &fakeAPI{
		groups: map[int32]esi.MarketGroup{
			100: {ID: 100, Name: "Ammunition & Charges"},
			101: {ID: 101, Name: "Hybrid Charges", ParentID: &parentID, Types: []int32{35, 34}},
			200: {ID: 200, Name: "Ships", Types: []int32{587}},
		},
		history: map[int32][]esi.HistoryEntry{
			34:  dippingHistory(40, 10, 5),
			587: dippingHistory(40, 10, 50),
		},
		names: map[int32]string{34: "Tritanium Charge"},
	}
}

func testConfig(workers int) *config.Config {
	cfg := config.Default()
	cfg.Market.RootGroups = []string{"Ammunition & Charges"}
	cfg.Analysis.Workers = workers
	return cfg
}

func TestAnalyzer_RunEndToEnd(t *testing.T) {
	api, store := ammoAPI(), newFakeStore()
	a := NewAnalyzer(testConfig(1), api, store)

	var steps []string
	res, err := a.Run(context.Background(), func(s string) { steps = append(steps, s) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(steps) == 0 {
		t.Error("no progress reported")
	}

	if len(res.Buy) != 1 || len(res.Sell) != 0 {
		t.Fatalf("got %d buy, %d sell; want 1, 0", len(res.Buy), len(res.Sell))
	}
	s := res.Buy[0]
	if s.TypeID != 34 || s.RegionID != 10000002 || s.TypeName != "Tritanium Charge" {
		t.Errorf("signal = %d/%d %q", s.RegionID, s.TypeID, s.TypeName)
	}

	sum := res.Summary
	if sum.Types != 2 || sum.Stored != 1 || sum.Failed != 1 || sum.Series != 1 || sum.BuyCount != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Ranking != config.RankByZScore || sum.Window != 30 {
		t.Errorf("summary params = %+v", sum)
	}
	if len(store.runs) != 1 {
		t.Errorf("runs recorded = %d, want 1", len(store.runs))
	}
	if store.names[34] != "Tritanium Charge" {
		t.Errorf("name not cached: %v", store.names)
	}
}

func TestAnalyzer_ConcurrentCollectMatchesSequential(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			api := ammoAPI()
			for id := int32(1); id <= 20; id++ {
				api.history[id] = dippingHistory(10, 10, 10)
			}
			store := newFakeStore()
			cfg := testConfig(workers)
			cfg.Market.RegionIDs = []int32{10000002, 10000043}
			a := NewAnalyzer(cfg, api, store)

			ids := make([]int32, 0, 20)
			for id := int32(1); id <= 20; id++ {
				ids = append(ids, id)
			}
			stats, err := a.Collect(context.Background(), append(ids, 999))
			if err != nil {
				t.Fatalf("Collect: %v", err)
			}
			if stats.Units != 42 || stats.Stored != 40 || stats.Failed != 2 {
				t.Errorf("stats = %+v", stats)
			}
			rows, _ := store.LoadAllHistory()
			if len(rows) != 400 {
				t.Errorf("rows = %d, want 400", len(rows))
			}
		})
	}
}

func TestAnalyzer_NoHistory(t *testing.T) {
	api := ammoAPI()
	api.history = nil
	_, err := NewAnalyzer(testConfig(1), api, newFakeStore()).Run(context.Background(), nil)
	if !errors.Is(err, ErrNoHistory) {
		t.Fatalf("err = %v, want ErrNoHistory", err)
	}
}

func TestAnalyzer_UnknownRootIsFatal(t *testing.T) {
	cfg := testConfig(1)
	cfg.Market.RootGroups = []string{"Does Not Exist"}
	_, err := NewAnalyzer(cfg, ammoAPI(), newFakeStore()).Run(context.Background(), nil)
	if !errors.Is(err, graph.ErrNoRootGroups) {
		t.Fatalf("err = %v, want ErrNoRootGroups", err)
	}
}

func TestAnalyzer_TypeNameCacheAndFallback(t *testing.T) {
	api, store := ammoAPI(), newFakeStore()
	a := NewAnalyzer(testConfig(1), api, store)
	ctx := context.Background()

	if got := a.TypeName(ctx, 34); got != "Tritanium Charge" {
		t.Errorf("TypeName(34) = %q", got)
	}
	if got := a.TypeName(ctx, 34); got != "Tritanium Charge" {
		t.Errorf("cached TypeName(34) = %q", got)
	}
	if api.nameCalls != 1 {
		t.Errorf("api calls = %d, want 1", api.nameCalls)
	}

	if got := a.TypeName(ctx, 77); got != "type_id_77" {
		t.Errorf("TypeName(77) = %q, want fallback", got)
	}
	if _, ok := store.names[77]; ok {
		t.Error("fallback name must not be cached")
	}
}
