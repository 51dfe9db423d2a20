package esi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroupCache_ServesUntilExpiry(t *testing.T) {
	var listHits, groupHits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/markets/groups/" {
			listHits.Add(1)
			w.Header().Set("X-Pages", "1")
			w.Write([]byte(`[4,5]`))
			return
		}
		groupHits.Add(1)
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/markets/groups/"), "/")
		fmt.Fprintf(w, `{"market_group_id":%s,"name":"G%s","types":[1]}`, id, id)
	})
	gc := NewGroupCache(c)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	gc.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ids := gc.MarketGroupIDs(ctx); len(ids) != 2 {
			t.Fatalf("ids = %v", ids)
		}
		g, ok := gc.MarketGroup(ctx, 4)
		if !ok || g.Name != "G4" || g.ID != 4 {
			t.Fatalf("group = %+v, %v", g, ok)
		}
	}
	if listHits.Load() != 1 || groupHits.Load() != 1 {
		t.Errorf("hits list=%d group=%d, want 1/1", listHits.Load(), groupHits.Load())
	}
	if gc.Len() != 1 {
		t.Errorf("Len = %d, want 1", gc.Len())
	}

	now = now.Add(groupTTL + time.Minute)
	gc.MarketGroupIDs(ctx)
	gc.MarketGroup(ctx, 4)
	if listHits.Load() != 2 || groupHits.Load() != 2 {
		t.Errorf("after expiry hits list=%d group=%d, want 2/2", listHits.Load(), groupHits.Load())
	}
}

func TestGroupCache_HonoursExpiresHeader(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Expires", now.Add(5*time.Minute).Format(http.TimeFormat))
		w.Write([]byte(`{"name":"Charges"}`))
	})
	gc := NewGroupCache(c)
	gc.now = func() time.Time { return now }

	if _, ok := gc.MarketGroup(context.Background(), 9); !ok {
		t.Fatal("fetch failed")
	}
	e := gc.groups[9]
	if !e.expires.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("expires = %v, want +5m", e.expires)
	}
}

func TestGroupCache_FailuresNotCached(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	gc := NewGroupCache(c)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, ok := gc.MarketGroup(ctx, 1); ok {
			t.Fatal("expected failure")
		}
		if ids := gc.MarketGroupIDs(ctx); len(ids) != 0 {
			t.Fatalf("ids = %v", ids)
		}
	}
	if hits.Load() != 4 {
		t.Errorf("hits = %d, want 4", hits.Load())
	}
}

func TestGroupCache_ConcurrentMissesCoalesce(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(`{"name":"Charges"}`))
	})
	gc := NewGroupCache(c)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := gc.MarketGroup(context.Background(), 3); !ok {
				t.Error("fetch failed")
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}
