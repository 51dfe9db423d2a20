package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sicney/eve-mo/internal/engine"
	"github.com/sicney/eve-mo/internal/esi"
	"github.com/sicney/eve-mo/internal/logger"
)

const dateLayout = "2006-01-02"

// UpsertHistory stores one fetched series in a single transaction. A row that
// already exists for (region, type, date) is replaced as a whole.
func (d *DB) UpsertHistory(regionID, typeID int32, entries []esi.HistoryEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO market_history
		(region_id, type_id, date, order_count, volume, highest, lowest, average)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(regionID, typeID, e.Date, e.OrderCount, e.Volume, e.Highest, e.Lowest, e.Average); err != nil {
			return fmt.Errorf("upsert %d/%d %s: %w", regionID, typeID, e.Date, err)
		}
	}
	return tx.Commit()
}

// LoadAllHistory returns every stored row. Rows whose date cannot be parsed are
// skipped with a warning.
func (d *DB) LoadAllHistory() ([]engine.HistoryRecord, error) {
	rows, err := d.sql.Query(`SELECT region_id, type_id, date, order_count, volume, highest, lowest, average
		FROM market_history ORDER BY region_id, type_id, date`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []engine.HistoryRecord{}
	skipped := 0
	for rows.Next() {
		var (
			r                  engine.HistoryRecord
			date               string
			orders, volume     sql.NullInt64
			high, low, average sql.NullFloat64
		)
		if err := rows.Scan(&r.RegionID, &r.TypeID, &date, &orders, &volume, &high, &low, &average); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			skipped++
			continue
		}
		r.Date = t
		r.OrderCount = nullInt(orders)
		r.Volume = nullInt(volume)
		r.Highest = nullFloat(high)
		r.Lowest = nullFloat(low)
		r.Average = nullFloat(average)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if skipped > 0 {
		logger.Warn("DB", fmt.Sprintf("Skipped %d history rows with unparseable dates", skipped))
	}
	return out, nil
}

// CountHistory returns the number of stored rows and distinct series.
func (d *DB) CountHistory() (rows, series int, err error) {
	err = d.sql.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT region_id || '/' || type_id) FROM market_history`).Scan(&rows, &series)
	return rows, series, err
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
