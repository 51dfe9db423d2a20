package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sicney/eve-mo/internal/engine"
)

// RunRecord represents one recorded analysis run.
type RunRecord struct {
	ID         int64           `json:"id"`
	Timestamp  string          `json:"timestamp"`
	Types      int             `json:"types"`
	Stored     int             `json:"stored"`
	Failed     int             `json:"failed"`
	Series     int             `json:"series"`
	BuyCount   int             `json:"buy_count"`
	SellCount  int             `json:"sell_count"`
	DurationMs int64           `json:"duration_ms"`
	Params     json.RawMessage `json:"params"`
}

// runParams is the parameter set stored with each run.
type runParams struct {
	Window     int      `json:"window"`
	MinObs     int      `json:"min_observations"`
	Threshold  float64  `json:"z_threshold"`
	Ranking    string   `json:"ranking"`
	RegionIDs  []int32  `json:"region_ids"`
	RootGroups []string `json:"root_groups"`
}

// InsertRun records an analysis run and returns its ID.
func (d *DB) InsertRun(s engine.RunSummary) (int64, error) {
	params, err := json.Marshal(runParams{
		Window:     s.Window,
		MinObs:     s.MinObs,
		Threshold:  s.Threshold,
		Ranking:    s.Ranking,
		RegionIDs:  s.RegionIDs,
		RootGroups: s.RootGroups,
	})
	if err != nil {
		return 0, fmt.Errorf("encode run params: %w", err)
	}
	ts := s.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	result, err := d.sql.Exec(
		`INSERT INTO analysis_runs (timestamp, types, stored, failed, series, buy_count, sell_count, duration_ms, params_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339), s.Types, s.Stored, s.Failed, s.Series, s.BuyCount, s.SellCount,
		s.Duration.Milliseconds(), string(params),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return result.LastInsertId()
}

// GetRuns returns the last N runs (newest first).
func (d *DB) GetRuns(limit int) []RunRecord {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query(
		`SELECT id, timestamp, types, stored, failed, series, buy_count, sell_count,
		 duration_ms, COALESCE(params_json, '{}')
		 FROM analysis_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return []RunRecord{}
	}
	defer rows.Close()

	records := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var params string
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Types, &r.Stored, &r.Failed, &r.Series,
			&r.BuyCount, &r.SellCount, &r.DurationMs, &params); err != nil {
			continue
		}
		r.Params = json.RawMessage(params)
		records = append(records, r)
	}
	return records
}
