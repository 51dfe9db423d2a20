package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sicney/eve-mo/internal/engine"
	"github.com/xuri/excelize/v2"
)

// Export writes signals to path. The extension selects the format: ".xlsx" writes
// a workbook with one sheet named after the side, anything else writes CSV.
func Export(path string, side engine.Direction, signals []engine.Signal) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return exportXLSX(path, side, signals)
	}
	return exportCSV(path, side, signals)
}

func exportCSV(path string, side engine.Direction, signals []engine.Signal) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header(side)); err != nil {
		return err
	}
	for _, s := range signals {
		if err := w.Write(Row(side, s)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func exportXLSX(path string, side engine.Direction, signals []engine.Signal) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := string(side)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := Header(side)
	for col, name := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, name)
	}
	for i, s := range signals {
		for col, v := range Row(side, s) {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			f.SetCellValue(sheet, cell, cellValue(header[col], v))
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// cellValue keeps numeric columns numeric in the workbook.
func cellValue(column, v string) any {
	if v == "" || column == "type_name" || column == "date" {
		return v
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}
