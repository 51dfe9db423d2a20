package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sicney/eve-mo/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func f64(v float64) *float64 { return &v }

func sampleSignal() engine.Signal {
	vol := int64(1200)
	return engine.Signal{
		FeatureRow: engine.FeatureRow{
			HistoryRecord: engine.HistoryRecord{
				RegionID: 10000002,
				TypeID:   34,
				Date:     time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC),
				Average:  f64(5),
				Volume:   &vol,
			},
			RollingMean: f64(9.833333),
			RollingStd:  f64(0.912870929),
			ZScore:      f64(-5.294590),
			LowerBand:   f64(8.007591),
			UpperBand:   f64(11.659075),
		},
		Direction: engine.Buy,
		TypeName:  "Tritanium Charge",
	}
}

func TestRow_RoundsAndPicksBand(t *testing.T) {
	s := sampleSignal()
	assert.Equal(t,
		[]string{"10000002", "34", "Tritanium Charge", "2025-02-09", "5", "9.833", "0.913", "-5.295", "8.008", "1200"},
		Row(engine.Buy, s))

	sell := Row(engine.Sell, s)
	assert.Equal(t, "11.659", sell[8])
	assert.Equal(t, "upper_band", Header(engine.Sell)[8])
	assert.Equal(t, "lower_band", Header(engine.Buy)[8])
}

func TestRow_NullsAreEmpty(t *testing.T) {
	s := sampleSignal()
	s.Volume = nil
	s.LowerBand = nil
	row := Row(engine.Buy, s)
	assert.Equal(t, "", row[8])
	assert.Equal(t, "", row[9])
}

func TestPrintSignals(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintSignals(&buf, "BUY CANDIDATES", engine.Buy, []engine.Signal{sampleSignal()}))
	out := buf.String()
	assert.Contains(t, out, "BUY CANDIDATES")
	assert.Contains(t, out, "Interpretation")
	assert.Contains(t, out, "Tritanium Charge")
	assert.Contains(t, out, "-5.295")

	buf.Reset()
	require.NoError(t, PrintSignals(&buf, "SELL CANDIDATES", engine.Sell, nil))
	assert.Contains(t, buf.String(), "No SELL candidates")
}

func TestExport_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "buy.csv")
	require.NoError(t, Export(path, engine.Buy, []engine.Signal{sampleSignal()}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Header(engine.Buy), records[0])
	assert.Equal(t, "-5.295", records[1][7])
}

func TestExport_CSVHeaderOnlyWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sell.csv")
	require.NoError(t, Export(path, engine.Sell, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "region_id,type_id,type_name,date,average,rolling_mean,rolling_std,z_score,upper_band,volume\n", string(data))
}

func TestExport_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buy.xlsx")
	require.NoError(t, Export(path, engine.Buy, []engine.Signal{sampleSignal()}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("BUY")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "type_name", rows[0][2])
	assert.Equal(t, "Tritanium Charge", rows[1][2])
	assert.Equal(t, "-5.295", rows[1][7])
}
