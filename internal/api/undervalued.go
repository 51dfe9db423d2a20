package api

import (
	"net/http"

	"github.com/sicney/eve-mo/internal/engine"
)

// undervaluedItem is one row of GET /api/undervalued.
type undervaluedItem struct {
	engine.FeatureRow
	TypeName string   `json:"type_name,omitempty"`
	PctDiff  *float64 `json:"pct_diff"`
}

// handleUndervalued lists series whose latest average sits below its trailing mean,
// most negative z-score first. Query: min_volume (default 50), limit (default 50).
func (s *Server) handleUndervalued(w http.ResponseWriter, r *http.Request) {
	minVolume, ok := intParam(r, "min_volume", 50)
	if !ok {
		writeError(w, 400, "min_volume must be a non-negative integer")
		return
	}
	limit, ok := intParam(r, "limit", 50)
	if !ok {
		writeError(w, 400, "limit must be a non-negative integer")
		return
	}

	rows, err := s.store.LoadAllHistory()
	if err != nil {
		writeError(w, 500, "failed to load history")
		return
	}
	ac := s.cfg.Analysis
	features := engine.ComputeFeatures(rows, ac.Window, ac.MinObservations)

	items := []undervaluedItem{}
	for _, f := range engine.Undervalued(features, int64(minVolume), limit) {
		item := undervaluedItem{FeatureRow: f}
		if name, ok := s.store.GetTypeName(f.TypeID); ok {
			item.TypeName = name
		}
		if f.Average != nil && f.RollingMean != nil && *f.RollingMean != 0 {
			pct := (*f.Average - *f.RollingMean) / *f.RollingMean
			item.PctDiff = &pct
		}
		items = append(items, item)
	}
	writeJSON(w, items)
}
