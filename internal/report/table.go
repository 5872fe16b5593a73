// Package report renders calculation results as spreadsheets and PDFs.
package report

import (
	"fmt"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
)

const (
	rowPerLiter = "Per liter"
	rowEC       = "EC (dS/m)"
)

// table is a labeled grid of numbers. A nil cell renders empty.
type table struct {
	header []string
	rows   []tableRow
}

type tableRow struct {
	label string
	cells []*float64
}

// mixTable lays out the final mix: one row per source and the Total, then the
// one-liter composition and the conductivity contribution of each ion.
func mixTable(final domain.FinalReport) table {
	t := table{header: []string{"Source"}}
	for _, ion := range domain.Ions {
		t.header = append(t.header, string(ion))
	}
	for _, te := range domain.TraceElements {
		t.header = append(t.header, string(te))
	}
	t.header = append(t.header, "EC total")

	for _, r := range final.Rows {
		t.rows = append(t.rows, tableRow{label: string(r.Tank), cells: cells(r.Ions, r.Trace, nil)})
	}
	t.rows = append(t.rows,
		tableRow{label: rowPerLiter, cells: cells(final.OneLiterIons, final.OneLiterTrace, nil)},
		tableRow{label: rowEC, cells: cells(final.ECByIon, nil, &final.ECTotal)},
	)
	return t
}

// tankTable lays out the stage-one ion totals and conductivity per tank.
func tankTable(tanks domain.TankReport) table {
	t := table{header: []string{"Tank"}}
	for _, ion := range domain.Ions {
		t.header = append(t.header, string(ion))
	}
	t.header = append(t.header, "EC total")

	for _, tank := range domain.Tanks {
		row := tableRow{label: string(tank)}
		for _, ion := range domain.Ions {
			row.cells = append(row.cells, ptr(tanks.IonTotals[tank][ion]))
		}
		row.cells = append(row.cells, ptr(tanks.EC[tank].Total))
		t.rows = append(t.rows, row)
	}
	return t
}

func cells(ions map[domain.Ion]float64, trace map[domain.TraceElement]float64, total *float64) []*float64 {
	out := make([]*float64, 0, len(domain.Ions)+len(domain.TraceElements)+1)
	for _, ion := range domain.Ions {
		out = append(out, ptr(ions[ion]))
	}
	for _, te := range domain.TraceElements {
		if trace == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, ptr(trace[te]))
	}
	return append(out, total)
}

func ptr(v float64) *float64 { return &v }

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.3f", *v)
}
