package report

import (
	"fmt"
	"io"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	SheetMix   = "Mix"
	SheetTanks = "Tanks"
)

// WriteXLSX writes the final mix as a workbook. When tanks is not nil a
// second sheet holds the per-tank ion totals.
func WriteXLSX(w io.Writer, tanks *domain.TankReport, final domain.FinalReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetMix); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	next, err := writeSheet(f, SheetMix, bold, 1, mixTable(final))
	if err != nil {
		return err
	}
	summary := [][]any{
		{"pH target", final.PHTarget},
		{"pH applied", final.PHApplied},
		{"Volume A (L)", final.Volumes.A},
		{"Volume B (L)", final.Volumes.B},
		{"Volume water (L)", final.Volumes.Water},
	}
	for i, row := range summary {
		if err := setRow(f, SheetMix, next+1+i, row); err != nil {
			return err
		}
	}

	if tanks != nil {
		if _, err := f.NewSheet(SheetTanks); err != nil {
			return fmt.Errorf("create sheet: %w", err)
		}
		if _, err := writeSheet(f, SheetTanks, bold, 1, tankTable(*tanks)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// writeSheet writes t starting at row start and returns the next free row.
func writeSheet(f *excelize.File, sheet string, headerStyle, start int, t table) (int, error) {
	header := make([]any, len(t.header))
	for i, h := range t.header {
		header[i] = h
	}
	if err := setRow(f, sheet, start, header); err != nil {
		return 0, err
	}
	if err := f.SetRowStyle(sheet, start, start, headerStyle); err != nil {
		return 0, fmt.Errorf("style header: %w", err)
	}

	for i, r := range t.rows {
		values := make([]any, 0, len(r.cells)+1)
		values = append(values, r.label)
		for _, c := range r.cells {
			if c == nil {
				values = append(values, nil)
				continue
			}
			values = append(values, *c)
		}
		if err := setRow(f, sheet, start+1+i, values); err != nil {
			return 0, err
		}
	}
	return start + 1 + len(t.rows), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
