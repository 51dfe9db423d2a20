package report

import (
	"math"
	"strconv"

	"github.com/sicney/eve-mo/internal/engine"
)

// Header returns the export/console column names for one side. BUY lists carry
// the lower band, SELL lists the upper band.
func Header(side engine.Direction) []string {
	band := "lower_band"
	if side == engine.Sell {
		band = "upper_band"
	}
	return []string{
		"region_id", "type_id", "type_name", "date",
		"average", "rolling_mean", "rolling_std", "z_score", band, "volume",
	}
}

// Row renders one signal in Header order. Floats are rounded to 3 decimals and
// missing values are empty.
func Row(side engine.Direction, s engine.Signal) []string {
	band := s.LowerBand
	if side == engine.Sell {
		band = s.UpperBand
	}
	volume := ""
	if s.Volume != nil {
		volume = strconv.FormatInt(*s.Volume, 10)
	}
	return []string{
		strconv.Itoa(int(s.RegionID)),
		strconv.Itoa(int(s.TypeID)),
		s.TypeName,
		s.Date.Format("2006-01-02"),
		formatFloat(s.Average),
		formatFloat(s.RollingMean),
		formatFloat(s.RollingStd),
		formatFloat(s.ZScore),
		formatFloat(band),
		volume,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(round3(*v), 'f', -1, 64)
}
