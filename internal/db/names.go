package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sicney/eve-mo/internal/logger"
)

// GetTypeName returns the cached display name of typeID.
func (d *DB) GetTypeName(typeID int32) (string, bool) {
	var name string
	err := d.sql.QueryRow("SELECT name FROM type_names WHERE type_id = ?", typeID).Scan(&name)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("DB", fmt.Sprintf("GetTypeName %d: %v", typeID, err))
		}
		return "", false
	}
	return name, true
}

// SetTypeName caches the display name of typeID, replacing any previous name.
func (d *DB) SetTypeName(typeID int32, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.sql.Exec("INSERT OR REPLACE INTO type_names (type_id, name) VALUES (?, ?)", typeID, name)
	if err != nil {
		return fmt.Errorf("set type name %d: %w", typeID, err)
	}
	return nil
}
