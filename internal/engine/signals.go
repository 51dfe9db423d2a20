package engine

import (
	"math"
	"sort"

	"github.com/sicney/eve-mo/internal/config"
)

// LatestPerSeries reduces rows to the most recent row of each (region, type) series,
// ordered by region and type.
func LatestPerSeries(rows []FeatureRow) []FeatureRow {
	latest := make(map[seriesKey]FeatureRow)
	for _, r := range rows {
		k := seriesKey{r.RegionID, r.TypeID}
		if cur, ok := latest[k]; !ok || !r.Date.Before(cur.Date) {
			latest[k] = r
		}
	}
	out := make([]FeatureRow, 0, len(latest))
	for _, k := range sortedSeriesKeys(latest) {
		out = append(out, latest[k])
	}
	return out
}

// Classify splits the latest observation of every series into BUY (z <= -threshold)
// and SELL (z >= threshold) candidates, each fully ranked by the given policy.
// Series whose latest row lacks mean, std or z-score are not eligible.
//
// Policies:
//   - config.RankByZScore: strongest deviation first; ties by volume (missing = 0)
//     descending, then region and type ascending. Score is |z|.
//   - config.RankByLiquidity: score |z|*sqrt(volume) descending; ties by |z|
//     descending, then region and type ascending.
func Classify(rows []FeatureRow, threshold float64, policy string) (buy, sell []Signal) {
	buy, sell = []Signal{}, []Signal{}
	for _, r := range LatestPerSeries(rows) {
		if r.RollingMean == nil || r.RollingStd == nil || r.ZScore == nil {
			continue
		}
		z := *r.ZScore
		switch {
		case z <= -threshold:
			buy = append(buy, newSignal(r, Buy, policy))
		case z >= threshold:
			sell = append(sell, newSignal(r, Sell, policy))
		}
	}
	rankSignals(buy, policy)
	rankSignals(sell, policy)
	return buy, sell
}

func newSignal(r FeatureRow, dir Direction, policy string) Signal {
	return Signal{FeatureRow: r, Direction: dir, Score: score(r, policy)}
}

func score(r FeatureRow, policy string) float64 {
	absZ := math.Abs(deref(r.ZScore))
	if policy == config.RankByLiquidity {
		return absZ * math.Sqrt(math.Max(0, float64(deref(r.Volume))))
	}
	return absZ
}

func rankSignals(signals []Signal, policy string) {
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		absA, absB := math.Abs(*a.ZScore), math.Abs(*b.ZScore)
		if policy == config.RankByLiquidity {
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			if absA != absB {
				return absA > absB
			}
		} else {
			if absA != absB {
				return absA > absB
			}
			if va, vb := deref(a.Volume), deref(b.Volume); va != vb {
				return va > vb
			}
		}
		if a.RegionID != b.RegionID {
			return a.RegionID < b.RegionID
		}
		return a.TypeID < b.TypeID
	})
}

// TopN returns at most n leading signals.
func TopN(signals []Signal, n int) []Signal {
	if n > 0 && len(signals) > n {
		return signals[:n]
	}
	return signals
}

// Undervalued returns the latest row of every series with volume >= minVolume and a
// negative z-score, most negative first, truncated to limit (limit < 0: no limit).
func Undervalued(rows []FeatureRow, minVolume int64, limit int) []FeatureRow {
	out := []FeatureRow{}
	for _, r := range LatestPerSeries(rows) {
		if r.Volume == nil || *r.Volume < minVolume || r.ZScore == nil || *r.ZScore >= 0 {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if *a.ZScore != *b.ZScore {
			return *a.ZScore < *b.ZScore
		}
		if *a.Volume != *b.Volume {
			return *a.Volume > *b.Volume
		}
		if a.RegionID != b.RegionID {
			return a.RegionID < b.RegionID
		}
		return a.TypeID < b.TypeID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
