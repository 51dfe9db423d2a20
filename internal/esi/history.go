package esi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sicney/eve-mo/internal/logger"
)

// HistoryEntry represents a single day of market history for an item in a region.
// ESI may omit any numeric field, so all of them are nullable.
type HistoryEntry struct {
	Date       string   `json:"date"`
	Average    *float64 `json:"average"`
	Highest    *float64 `json:"highest"`
	Lowest     *float64 `json:"lowest"`
	Volume     *int64   `json:"volume"`
	OrderCount *int64   `json:"order_count"`
}

// MarketHistory fetches the daily history of typeID in regionID.
// Returns false when the request failed or the payload was not a list.
func (c *Client) MarketHistory(ctx context.Context, regionID, typeID int32) ([]HistoryEntry, bool) {
	path := fmt.Sprintf("/markets/%d/history/", regionID)
	params := url.Values{
		"datasource": {"tranquility"},
		"type_id":    {strconv.Itoa(int(typeID))},
	}

	var entries []HistoryEntry
	if _, ok := c.GetJSON(ctx, path, params, &entries); !ok {
		logger.Debug("ESI", fmt.Sprintf("No history for region %d, type %d", regionID, typeID))
		return nil, false
	}
	return entries, true
}
