package domain

import (
	"errors"
	"math"
	"strconv"
)

// DefaultPHTarget is the dilution pH used when a mix request names none.
const DefaultPHTarget = 7.0

// MixVolumes are the liters of each source actually combined in the final mix.
// They are independent of the volumes used to dissolve the concentrates.
type MixVolumes struct {
	A     float64 `json:"volume_a" yaml:"volume_a"`
	B     float64 `json:"volume_b" yaml:"volume_b"`
	Water float64 `json:"volume_water" yaml:"volume_water"`
}

// Of returns the volume chosen for tank.
func (v MixVolumes) Of(tank Tank) float64 {
	switch tank {
	case TankA:
		return v.A
	case TankB:
		return v.B
	case TankWater:
		return v.Water
	default:
		return 0
	}
}

// Total is the combined volume.
func (v MixVolumes) Total() float64 {
	return v.A + v.B + v.Water
}

// Validate rejects negative or non-finite volumes.
func (v MixVolumes) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value float64
	}{{"volume_a", v.A}, {"volume_b", v.B}, {"volume_water", v.Water}} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			errs = append(errs, &InputError{Field: f.name, Value: strconv.FormatFloat(f.value, 'g', -1, 64), Err: ErrMalformedNumericInput})
		}
	}
	return errors.Join(errs...)
}

// CorrectedTotals is the pH-adjusted per-liter composition of each tank.
type CorrectedTotals struct {
	Ions  TankIonTotals                     `json:"ions"`
	Trace map[Tank]map[TraceElement]float64 `json:"trace"`
}

// MixRow holds absolute quantities (per-liter value × liters) for one source
// or for the Total row.
type MixRow struct {
	Tank  Tank                     `json:"tank"`
	Ions  map[Ion]float64          `json:"ions"`
	Trace map[TraceElement]float64 `json:"trace"`
}

// FinalReport is the stage-two result.
type FinalReport struct {
	PHTarget      float64                  `json:"ph_target"`
	PHApplied     float64                  `json:"ph_applied"`
	Volumes       MixVolumes               `json:"volumes"`
	Rows          []MixRow                 `json:"unified_rows"`
	OneLiterIons  map[Ion]float64          `json:"one_liter_ions"`
	OneLiterTrace map[TraceElement]float64 `json:"one_liter_trace"`
	ECByIon       map[Ion]float64          `json:"ec_by_ion"`
	ECTotal       float64                  `json:"ec_total"`
}

// Total returns the Total row.
func (r FinalReport) Total() MixRow {
	for _, row := range r.Rows {
		if row.Tank == TankTotal {
			return row
		}
	}
	return MixRow{Tank: TankTotal}
}

// ComputeFinalMix runs stage two: it re-speciates phosphate with the
// dissociation row, converts trace elements to an elemental basis, scales
// each tank by its chosen volume and normalizes the sum to one liter.
// phTarget is the requested pH; the report applies the row's pH.
func ComputeFinalMix(snap Snapshot, idx *Index, phTarget float64, dissociation PhosphateDissociationRow, volumes MixVolumes) (FinalReport, error) {
	if err := volumes.Validate(); err != nil {
		return FinalReport{}, err
	}

	corrected := AdjustForPH(snap, idx, dissociation)
	rows := MixTanks(corrected, volumes)
	total := rows[len(rows)-1]

	ions, trace := NormalizeToOneLiter(total, volumes.Total())
	ecByIon, ecTotal := conductivity(ions, idx)

	return FinalReport{
		PHTarget:      phTarget,
		PHApplied:     dissociation.PH,
		Volumes:       volumes,
		Rows:          rows,
		OneLiterIons:  ions,
		OneLiterTrace: trace,
		ECByIon:       ecByIon,
		ECTotal:       ecTotal,
	}, nil
}

// AdjustForPH scales each phosphate species by its own dissociation fraction
// (other ions pass through) and converts the element totals of every tank
// into trace elements on an elemental basis.
func AdjustForPH(snap Snapshot, idx *Index, dissociation PhosphateDissociationRow) CorrectedTotals {
	out := CorrectedTotals{
		Ions:  make(TankIonTotals, len(snap.IonTotals)),
		Trace: make(map[Tank]map[TraceElement]float64, len(snap.ElementTotals)),
	}
	for tank, ions := range snap.IonTotals {
		adjusted := make(map[Ion]float64, len(ions))
		for ion, meq := range ions {
			adjusted[ion] = meq * dissociation.Fraction(ion)
		}
		out.Ions[tank] = adjusted
	}
	for tank, elements := range snap.ElementTotals {
		out.Trace[tank] = TraceTotals(elements, idx)
	}
	return out
}

// TraceTotals converts oxide-basis micronutrients to elements and passes
// elemental ones through, rounded to 3 decimals. Only trace keys are kept.
func TraceTotals(elements map[Element]float64, idx *Index) map[TraceElement]float64 {
	trace := make(map[TraceElement]float64)
	for e, ppm := range elements {
		if conv, ok := idx.OxideConversion(e); ok {
			if conv.ElementSymbol.IsKnown() {
				trace[conv.ElementSymbol] = round(ppm*conv.Ratio(), 3)
			}
			continue
		}
		if sym := TraceElement(e); sym.IsKnown() {
			trace[sym] = round(ppm, 3)
		}
	}
	return trace
}

// MixTanks multiplies each tank's per-liter values by its volume and appends
// the Total row. Every row carries all ions and trace elements.
func MixTanks(c CorrectedTotals, volumes MixVolumes) []MixRow {
	rows := make([]MixRow, 0, len(Tanks)+1)
	for _, tank := range Tanks {
		vol := volumes.Of(tank)
		row := MixRow{
			Tank:  tank,
			Ions:  make(map[Ion]float64, len(Ions)),
			Trace: make(map[TraceElement]float64, len(TraceElements)),
		}
		for _, ion := range Ions {
			row.Ions[ion] = round(c.Ions[tank][ion]*vol, 3)
		}
		for _, te := range TraceElements {
			row.Trace[te] = round(c.Trace[tank][te]*vol, 3)
		}
		rows = append(rows, row)
	}

	total := MixRow{
		Tank:  TankTotal,
		Ions:  make(map[Ion]float64, len(Ions)),
		Trace: make(map[TraceElement]float64, len(TraceElements)),
	}
	for _, ion := range Ions {
		var sum float64
		for _, row := range rows {
			sum += row.Ions[ion]
		}
		total.Ions[ion] = round(sum, 3)
	}
	for _, te := range TraceElements {
		var sum float64
		for _, row := range rows {
			sum += row.Trace[te]
		}
		total.Trace[te] = round(sum, 3)
	}
	return append(rows, total)
}

// NormalizeToOneLiter divides the Total row by the combined volume. A zero
// volume yields zeros rather than a division fault.
func NormalizeToOneLiter(total MixRow, volume float64) (map[Ion]float64, map[TraceElement]float64) {
	ions := make(map[Ion]float64, len(Ions))
	trace := make(map[TraceElement]float64, len(TraceElements))
	for _, ion := range Ions {
		ions[ion] = perLiter(total.Ions[ion], volume)
	}
	for _, te := range TraceElements {
		trace[te] = perLiter(total.Trace[te], volume)
	}
	return ions, trace
}

func perLiter(amount, volume float64) float64 {
	if volume <= 0 {
		return 0
	}
	return round(amount/volume, 3)
}
