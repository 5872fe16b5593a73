package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 0.001

func computeTestPlan(t *testing.T) TankReport {
	t.Helper()
	inputs, volumes := testPlan()
	entries, err := NormalizeDosing(inputs, volumes)
	require.NoError(t, err)
	return ComputeTankTotals(entries, testIndex())
}

func TestElementConcentrations_PPM(t *testing.T) {
	totals := newElementTotals()
	entry := DosingEntry{FertilizerID: testCalciumNitrate, Tank: TankA, WeightGrams: 2, VolumeLiters: 10}

	row := ElementConcentrations(entry, testIndex(), totals)

	assert.Equal(t, "Calcium Nitrate", row.Brand)
	assert.InDelta(t, 30000.0, row.PPM[ElementNN], delta)
	assert.InDelta(t, 52000.0, row.PPM[ElementCaO], delta)
	assert.InDelta(t, 30000.0, totals[TankA][ElementNN], delta)
	assert.Zero(t, totals[TankB][ElementNN])
}

func TestElementConcentrations_ZeroVolume(t *testing.T) {
	totals := newElementTotals()
	entry := DosingEntry{FertilizerID: testCalciumNitrate, Tank: Tank("C"), WeightGrams: 2, VolumeLiters: 0}

	row := ElementConcentrations(entry, testIndex(), totals)

	assert.Empty(t, row.PPM)
	for _, tank := range Tanks {
		for _, e := range Elements {
			assert.Zero(t, totals[tank][e])
		}
	}
}

func TestElementConcentrations_UnknownFertilizer(t *testing.T) {
	row := ElementConcentrations(DosingEntry{FertilizerID: 99, Tank: TankA, WeightGrams: 1, VolumeLiters: 1}, testIndex(), newElementTotals())
	assert.Equal(t, "ID:99", row.Brand)
	assert.Empty(t, row.PPM)
}

func TestElementConcentrations_SkipsUntrackedElements(t *testing.T) {
	row := ElementConcentrations(DosingEntry{FertilizerID: testMicroMix, Tank: TankA, WeightGrams: 1, VolumeLiters: 10}, testIndex(), newElementTotals())
	assert.NotContains(t, row.PPM, Element("Si"))
	assert.InDelta(t, 1000.0, row.PPM[ElementMnO], delta)
	assert.InDelta(t, 2000.0, row.PPM[ElementB2O3], delta)
	assert.InDelta(t, 5000.0, row.PPM[ElementFe], delta)
}

func TestMilliEquivalents(t *testing.T) {
	tests := []struct {
		name     string
		ppm      float64
		conv     IonConversionFactor
		expected float64
	}{
		{"nitrate", 30000, IonConversionFactor{MolarMassExpressed: 62, IonCount: 1, IonValence: -1}, 483.87},
		{"divalent", 5600, IonConversionFactor{MolarMassExpressed: 56, IonCount: 1, IonValence: 2}, 200},
		{"two ions per formula", 9400, IonConversionFactor{MolarMassExpressed: 94, IonCount: 2, IonValence: 1}, 200},
		{"zero molar mass", 1000, IonConversionFactor{MolarMassExpressed: 0, IonCount: 1, IonValence: 2}, 0},
		{"zero ppm", 0, IonConversionFactor{MolarMassExpressed: 62, IonCount: 1, IonValence: -1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, MilliEquivalents(tt.ppm, tt.conv), 0.005)
		})
	}
}

func TestECContribution(t *testing.T) {
	assert.InDelta(t, 34.35, ECContribution(483.87, 71), 0.01)
	assert.Zero(t, ECContribution(483.87, 0))
}

func TestSpeciate_FansOutPhosphate(t *testing.T) {
	meq := Speciate(map[Element]float64{ElementP2O5: 142}, testIndex())

	assert.InDelta(t, 2.0, meq[IonH2PO4], delta)
	assert.InDelta(t, 4.0, meq[IonHPO4], delta)
	assert.InDelta(t, 6.0, meq[IonPO4], delta)
	assert.Len(t, meq, len(Ions))
}

func TestSpeciate_IgnoresUnknownIonsAndZeroMass(t *testing.T) {
	meq := Speciate(map[Element]float64{ElementMnO: 710, ElementMgO: 400}, testIndex())

	assert.NotContains(t, meq, Ion("Mn^2+"))
	assert.Zero(t, meq[IonMg])
}

func TestComputeTankTotals(t *testing.T) {
	report := computeTestPlan(t)

	require.Len(t, report.Rows, 4)
	require.Len(t, report.IonRows, 4)

	t.Run("element totals", func(t *testing.T) {
		a := report.ElementTotals[TankA]
		assert.InDelta(t, 30000.0, a[ElementNN], delta)
		assert.InDelta(t, 52000.0, a[ElementCaO], delta)
		assert.InDelta(t, 1000.0, a[ElementMnO], delta)
		b := report.ElementTotals[TankB]
		assert.InDelta(t, 104000.0, b[ElementP2O5], delta)
		assert.InDelta(t, 68000.0, b[ElementK2O], delta)
		assert.InDelta(t, 28.0, report.ElementTotals[TankWater][ElementCaO], delta)
	})

	t.Run("ion totals", func(t *testing.T) {
		a := report.IonTotals[TankA]
		assert.InDelta(t, 2142.86, a[IonNO3], delta)
		assert.InDelta(t, 1857.14, a[IonCa], delta)
		assert.Zero(t, a[IonK])

		b := report.IonTotals[TankB]
		assert.InDelta(t, 1464.79, b[IonH2PO4], delta)
		assert.InDelta(t, 2929.58, b[IonHPO4], delta)
		assert.InDelta(t, 4394.37, b[IonPO4], delta)
		assert.InDelta(t, 1446.81, b[IonK], delta)

		assert.InDelta(t, 1.0, report.IonTotals[TankWater][IonCa], delta)
	})

	t.Run("every tank carries every ion", func(t *testing.T) {
		for _, tank := range Tanks {
			assert.Len(t, report.IonTotals[tank], len(Ions), "tank %s", tank)
			assert.Len(t, report.EC[tank].Ions, len(Ions), "tank %s", tank)
		}
	})

	t.Run("conductivity", func(t *testing.T) {
		ec := report.EC[TankA]
		assert.InDelta(t, 152.143, ec.Ions[IonNO3], delta)
		assert.InDelta(t, 110.5, ec.Ions[IonCa], delta)
		assert.InDelta(t, 262.643, ec.Total, delta)
		assert.Zero(t, ec.Ions[IonCl])
	})

	t.Run("ion rows", func(t *testing.T) {
		assert.Equal(t, "Calcium Nitrate", report.IonRows[0].Brand)
		assert.InDelta(t, 2142.86, report.IonRows[0].MEQ[IonNO3], delta)
		for _, v := range report.IonRows[1].MEQ {
			assert.Zero(t, v)
		}
	})
}

func TestComputeTankTotals_DuplicateComponentsAccumulate(t *testing.T) {
	tables := testTables()
	tables.Components = append(tables.Components, FertilizerComponent{FertilizerID: testCalciumNitrate, ExpressedAs: ElementNN, Value: 0.05})

	report := ComputeTankTotals([]DosingEntry{{FertilizerID: testCalciumNitrate, Tank: TankA, WeightGrams: 2, VolumeLiters: 10}}, NewIndex(tables))

	assert.InDelta(t, 40000.0, report.Rows[0].PPM[ElementNN], delta)
	assert.InDelta(t, 40000.0, report.ElementTotals[TankA][ElementNN], delta)
}

func TestComputeTankTotals_Empty(t *testing.T) {
	report := ComputeTankTotals(nil, testIndex())

	assert.Empty(t, report.Rows)
	for _, tank := range Tanks {
		assert.Zero(t, report.EC[tank].Total)
	}
}
