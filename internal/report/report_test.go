package report

import (
	"bytes"
	"testing"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testFinal() domain.FinalReport {
	rows := make([]domain.MixRow, 0, 4)
	for _, tank := range []domain.Tank{domain.TankA, domain.TankB, domain.TankWater, domain.TankTotal} {
		rows = append(rows, domain.MixRow{
			Tank:  tank,
			Ions:  map[domain.Ion]float64{domain.IonNO3: 10, domain.IonCa: 5},
			Trace: map[domain.TraceElement]float64{domain.TraceFe: 0.5},
		})
	}
	return domain.FinalReport{
		PHTarget:      6.0,
		PHApplied:     6.0,
		Volumes:       domain.MixVolumes{A: 1, B: 1, Water: 98},
		Rows:          rows,
		OneLiterIons:  map[domain.Ion]float64{domain.IonNO3: 21.429},
		OneLiterTrace: map[domain.TraceElement]float64{domain.TraceMn: 7.745},
		ECByIon:       map[domain.Ion]float64{domain.IonNO3: 1.521},
		ECTotal:       4.344,
	}
}

func testTanks() *domain.TankReport {
	return &domain.TankReport{
		IonTotals: domain.TankIonTotals{domain.TankA: {domain.IonNO3: 2142.86}},
		EC:        map[domain.Tank]domain.TankEC{domain.TankA: {Total: 262.643}},
	}
}

func TestMixTable(t *testing.T) {
	tbl := mixTable(testFinal())

	assert.Len(t, tbl.header, 1+len(domain.Ions)+len(domain.TraceElements)+1)
	require.Len(t, tbl.rows, 6)
	assert.Equal(t, "Total", tbl.rows[3].label)
	assert.Equal(t, rowPerLiter, tbl.rows[4].label)
	assert.Equal(t, rowEC, tbl.rows[5].label)

	ec := tbl.rows[5].cells
	assert.Nil(t, ec[len(domain.Ions)], "EC row has no trace cells")
	require.NotNil(t, ec[len(ec)-1])
	assert.InDelta(t, 4.344, *ec[len(ec)-1], 1e-9)
	assert.Nil(t, tbl.rows[0].cells[len(ec)-1], "source rows have no EC total")
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "1.500", formatCell(ptr(1.5)))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testTanks(), testFinal()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetMix, SheetTanks}, f.GetSheetList())

	rows, err := f.GetRows(SheetMix)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 7)
	assert.Equal(t, "Source", rows[0][0])
	assert.Equal(t, string(domain.IonNO3), rows[0][1])
	assert.Equal(t, "A", rows[1][0])
	assert.Equal(t, rowPerLiter, rows[5][0])
	assert.Equal(t, "21.429", rows[5][1])

	tankRows, err := f.GetRows(SheetTanks)
	require.NoError(t, err)
	assert.Equal(t, "Tank", tankRows[0][0])
	assert.Equal(t, "2142.86", tankRows[1][1])
}

func TestWriteXLSX_WithoutTanks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil, testFinal()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetMix}, f.GetSheetList())
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, testFinal()))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 1000)
}
