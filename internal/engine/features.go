package engine

import (
	"math"
	"sort"
)

// seriesKey identifies one (region, type) time series.
type seriesKey struct {
	RegionID int32
	TypeID   int32
}

// ComputeFeatures adds trailing-window statistics of the average price to every row.
//
// Rows are grouped per (region, type) and ordered by date; no value crosses a series
// boundary. For each row the window is the last `window` rows of its series up to and
// including itself. Mean and sample standard deviation use the non-nil averages in
// the window and stay nil while fewer than minObservations are available. A zero
// standard deviation yields a nil z-score rather than an infinite one.
//
// The result is ordered by region, type and date.
func ComputeFeatures(rows []HistoryRecord, window, minObservations int) []FeatureRow {
	if window < 1 {
		window = 1
	}
	groups := groupSeries(rows)

	out := make([]FeatureRow, 0, len(rows))
	for _, key := range sortedSeriesKeys(groups) {
		out = append(out, seriesFeatures(groups[key], window, minObservations)...)
	}
	return out
}

func groupSeries(rows []HistoryRecord) map[seriesKey][]HistoryRecord {
	groups := make(map[seriesKey][]HistoryRecord)
	for _, r := range rows {
		k := seriesKey{r.RegionID, r.TypeID}
		groups[k] = append(groups[k], r)
	}
	return groups
}

func sortedSeriesKeys[V any](groups map[seriesKey]V) []seriesKey {
	keys := make([]seriesKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RegionID != keys[j].RegionID {
			return keys[i].RegionID < keys[j].RegionID
		}
		return keys[i].TypeID < keys[j].TypeID
	})
	return keys
}

func seriesFeatures(series []HistoryRecord, window, minObservations int) []FeatureRow {
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	buf := newRing(window)
	out := make([]FeatureRow, len(series))
	for i, r := range series {
		buf.push(r.Average)
		row := FeatureRow{HistoryRecord: r}

		if mean, std, ok := buf.stats(minObservations); ok {
			row.RollingMean = ptr(mean)
			row.RollingStd = ptr(std)
			row.UpperBand = ptr(mean + 2*std)
			row.LowerBand = ptr(mean - 2*std)
			if r.Average != nil && std > 0 {
				if z := (*r.Average - mean) / std; !math.IsInf(z, 0) && !math.IsNaN(z) {
					row.ZScore = ptr(z)
				}
			}
		}
		out[i] = row
	}
	return out
}

// ring is a fixed-size window over the most recent observations.
type ring struct {
	vals  []float64
	valid []bool
	next  int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{
		vals:  make([]float64, capacity),
		valid: make([]bool, capacity),
	}
}

func (b *ring) push(v *float64) {
	b.valid[b.next] = v != nil
	if v != nil {
		b.vals[b.next] = *v
	}
	b.next = (b.next + 1) % len(b.vals)
	if b.size < len(b.vals) {
		b.size++
	}
}

// stats returns the mean and sample standard deviation of the valid values,
// or ok=false when fewer than minObs (or fewer than two) values are present.
func (b *ring) stats(minObs int) (mean, std float64, ok bool) {
	n := 0
	sum := 0.0
	first, constant := 0.0, true
	for i := 0; i < b.size; i++ {
		if !b.valid[i] {
			continue
		}
		if n == 0 {
			first = b.vals[i]
		} else if b.vals[i] != first {
			constant = false
		}
		n++
		sum += b.vals[i]
	}
	if n < minObs || n < 2 {
		return 0, 0, false
	}
	// a constant window has exactly zero spread
	if constant {
		return first, 0, true
	}
	mean = sum / float64(n)

	ss := 0.0
	for i := 0; i < b.size; i++ {
		if b.valid[i] {
			d := b.vals[i] - mean
			ss += d * d
		}
	}
	std = math.Sqrt(ss / float64(n-1))
	if math.IsNaN(mean) || math.IsInf(mean, 0) || math.IsNaN(std) || math.IsInf(std, 0) {
		return 0, 0, false
	}
	return mean, std, true
}
