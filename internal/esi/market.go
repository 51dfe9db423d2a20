package esi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sicney/eve-mo/internal/logger"
)

// MarketGroup mirrors the ESI market group response.
type MarketGroup struct {
	ID       int32   `json:"market_group_id"`
	Name     string  `json:"name"`
	ParentID *int32  `json:"parent_group_id"` // nil for top-level groups
	Types    []int32 `json:"types"`
}

// MarketGroupIDs lists all market group IDs, following the X-Pages header.
// Paging stops at the first failed or empty page.
func (c *Client) MarketGroupIDs(ctx context.Context) []int32 {
	ids, _ := c.listMarketGroups(ctx)
	return ids
}

// listMarketGroups also returns the headers of the last page read.
func (c *Client) listMarketGroups(ctx context.Context) ([]int32, http.Header) {
	var ids []int32
	var last http.Header
	for page := 1; ; page++ {
		params := url.Values{
			"datasource": {"tranquility"},
			"page":       {strconv.Itoa(page)},
		}
		var chunk []int32
		header, ok := c.GetJSON(ctx, "/markets/groups/", params, &chunk)
		if !ok || len(chunk) == 0 {
			break
		}
		ids = append(ids, chunk...)
		last = header

		pages, err := strconv.Atoi(header.Get("X-Pages"))
		if err != nil || page >= pages {
			break
		}
	}
	logger.Info("ESI", fmt.Sprintf("Listed %d market groups", len(ids)))
	return ids, last
}

// MarketGroup fetches name, parent and directly assigned types of one group.
func (c *Client) MarketGroup(ctx context.Context, groupID int32) (MarketGroup, bool) {
	g, _, ok := c.fetchMarketGroup(ctx, groupID)
	return g, ok
}

func (c *Client) fetchMarketGroup(ctx context.Context, groupID int32) (MarketGroup, http.Header, bool) {
	params := url.Values{
		"datasource": {"tranquility"},
		"language":   {"en-us"},
	}
	var g MarketGroup
	header, ok := c.GetJSON(ctx, fmt.Sprintf("/markets/groups/%d/", groupID), params, &g)
	if !ok {
		return MarketGroup{}, nil, false
	}
	g.ID = groupID
	return g, header, true
}

// TypeName fetches the display name of an item type.
func (c *Client) TypeName(ctx context.Context, typeID int32) (string, bool) {
	params := url.Values{
		"datasource": {"tranquility"},
		"language":   {"en-us"},
	}
	var info struct {
		Name string `json:"name"`
	}
	if _, ok := c.GetJSON(ctx, fmt.Sprintf("/universe/types/%d/", typeID), params, &info); !ok {
		return "", false
	}
	if info.Name == "" {
		return "", false
	}
	return info.Name, true
}
