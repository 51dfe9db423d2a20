package engine

import "time"

// HistoryRecord is one stored day of market history for a (region, type) series.
// Numeric fields are nil when ESI did not report them.
type HistoryRecord struct {
	RegionID   int32     `json:"region_id"`
	TypeID     int32     `json:"type_id"`
	Date       time.Time `json:"date"`
	OrderCount *int64    `json:"order_count"`
	Volume     *int64    `json:"volume"`
	Highest    *float64  `json:"highest"`
	Lowest     *float64  `json:"lowest"`
	Average    *float64  `json:"average"`
}

// FeatureRow is a HistoryRecord with its trailing-window statistics.
// The statistics are nil when the window holds too few observations.
type FeatureRow struct {
	HistoryRecord
	RollingMean *float64 `json:"rolling_mean"`
	RollingStd  *float64 `json:"rolling_std"`
	ZScore      *float64 `json:"z_score"`
	UpperBand   *float64 `json:"upper_band"`
	LowerBand   *float64 `json:"lower_band"`
}

// Direction of a mean-reversion signal.
type Direction string

const (
	Buy  Direction = "BUY"  // price well below its trailing mean
	Sell Direction = "SELL" // price well above its trailing mean
)

// Signal is the latest FeatureRow of a series whose z-score crossed the threshold.
type Signal struct {
	FeatureRow
	Direction Direction `json:"direction"`
	Score     float64   `json:"score"`
	TypeName  string    `json:"type_name"`
}

// RunSummary describes one analysis run.
type RunSummary struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Types      int           `json:"types"`
	Stored     int           `json:"stored"`
	Failed     int           `json:"failed"`
	Series     int           `json:"series"`
	BuyCount   int           `json:"buy_count"`
	SellCount  int           `json:"sell_count"`
	Window     int           `json:"window"`
	MinObs     int           `json:"min_observations"`
	Threshold  float64       `json:"z_threshold"`
	Ranking    string        `json:"ranking"`
	RegionIDs  []int32       `json:"region_ids"`
	RootGroups []string      `json:"root_groups"`
}

// RunResult holds the ranked, name-enriched top candidates of a run.
type RunResult struct {
	Summary RunSummary `json:"summary"`
	Buy     []Signal   `json:"buy"`
	Sell    []Signal   `json:"sell"`
}

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T) (v T) {
	if p != nil {
		v = *p
	}
	return v
}
