package domain

import (
	"fmt"
	"math"
)

// TankElementTotals accumulates ppm per tank and element.
type TankElementTotals map[Tank]map[Element]float64

// TankIonTotals holds meq/L per tank and ion, derived from TankElementTotals.
type TankIonTotals map[Tank]map[Ion]float64

// ElementRow is the per-fertilizer ppm breakdown. PPM only holds the elements
// that could be computed; a zero-volume line leaves every element unset.
type ElementRow struct {
	FertilizerID int                 `json:"fertilizer_id"`
	Brand        string              `json:"brand"`
	Tank         Tank                `json:"tank"`
	WeightGrams  float64             `json:"weight_grams"`
	PPM          map[Element]float64 `json:"ppm"`
}

// IonRow is the per-fertilizer meq breakdown over every tracked ion.
type IonRow struct {
	FertilizerID int             `json:"fertilizer_id"`
	Brand        string          `json:"brand"`
	MEQ          map[Ion]float64 `json:"meq"`
}

// TankEC is the conductivity contribution of each ion in a tank, in dS/m.
type TankEC struct {
	Ions  map[Ion]float64 `json:"ions"`
	Total float64         `json:"total"`
}

// TankReport is the stage-one result.
type TankReport struct {
	Rows          []ElementRow      `json:"rows"`
	IonRows       []IonRow          `json:"ion_rows"`
	ElementTotals TankElementTotals `json:"tank_element_totals"`
	IonTotals     TankIonTotals     `json:"tank_ion_totals"`
	EC            map[Tank]TankEC   `json:"ec"`
}

// ComputeTankTotals runs stage one: elemental ppm per dosing line and per
// tank, ionic speciation of the tank totals, and per-tank conductivity.
func ComputeTankTotals(entries []DosingEntry, idx *Index) TankReport {
	totals := newElementTotals()
	rows := make([]ElementRow, 0, len(entries))
	ionRows := make([]IonRow, 0, len(entries))

	for _, entry := range entries {
		row := ElementConcentrations(entry, idx, totals)
		rows = append(rows, row)
		ionRows = append(ionRows, IonRow{
			FertilizerID: row.FertilizerID,
			Brand:        row.Brand,
			MEQ:          roundIons(Speciate(row.PPM, idx), 2),
		})
	}

	ionTotals := SpeciateTanks(totals, idx)
	return TankReport{
		Rows:          rows,
		IonRows:       ionRows,
		ElementTotals: totals,
		IonTotals:     ionTotals,
		EC:            AggregateEC(ionTotals, idx),
	}
}

// ElementConcentrations converts one dosing line into ppm per element and
// folds the unrounded values into totals. The returned row carries ppm rounded
// to 2 decimals. Lines with a non-positive volume produce no values.
func ElementConcentrations(entry DosingEntry, idx *Index, totals TankElementTotals) ElementRow {
	brand, ok := idx.Brand(entry.FertilizerID)
	if !ok {
		brand = fmt.Sprintf("ID:%d", entry.FertilizerID)
	}
	row := ElementRow{
		FertilizerID: entry.FertilizerID,
		Brand:        brand,
		Tank:         entry.Tank,
		WeightGrams:  entry.WeightGrams,
		PPM:          make(map[Element]float64),
	}
	if entry.VolumeLiters <= 0 {
		return row
	}

	raw := make(map[Element]float64)
	for _, comp := range idx.Components(entry.FertilizerID) {
		if !comp.ExpressedAs.IsKnown() {
			continue
		}
		ppm := entry.WeightGrams * comp.Value * 1_000_000 / entry.VolumeLiters
		raw[comp.ExpressedAs] += ppm
		if tank, ok := totals[entry.Tank]; ok {
			tank[comp.ExpressedAs] += ppm
		}
	}
	for e, ppm := range raw {
		row.PPM[e] = round(ppm, 2)
	}
	return row
}

// Speciate converts element ppm into meq per ion, applying every matching
// conversion factor. Unknown ions are ignored; a zero molar mass contributes 0.
// Every tracked ion is present in the result.
func Speciate(ppm map[Element]float64, idx *Index) map[Ion]float64 {
	meq := zeroIons()
	for _, e := range Elements {
		v, ok := ppm[e]
		if !ok {
			continue
		}
		for _, conv := range idx.Conversions(e) {
			if !conv.IonForm.IsKnown() {
				continue
			}
			meq[conv.IonForm] += MilliEquivalents(v, conv)
		}
	}
	return meq
}

// MilliEquivalents converts ppm of the expressed nutrient into meq of conv's ion.
func MilliEquivalents(ppm float64, conv IonConversionFactor) float64 {
	if conv.MolarMassExpressed == 0 {
		return 0
	}
	return ppm / conv.MolarMassExpressed * conv.IonCount * math.Abs(conv.IonValence)
}

// SpeciateTanks speciates each tank's element totals. Values are rounded to
// 2 decimals; conductivity and the snapshot consume the rounded figures.
func SpeciateTanks(totals TankElementTotals, idx *Index) TankIonTotals {
	out := make(TankIonTotals, len(Tanks))
	for _, tank := range Tanks {
		out[tank] = roundIons(Speciate(totals[tank], idx), 2)
	}
	return out
}

// AggregateEC computes per-ion and total conductivity for each tank.
func AggregateEC(ionTotals TankIonTotals, idx *Index) map[Tank]TankEC {
	out := make(map[Tank]TankEC, len(Tanks))
	for _, tank := range Tanks {
		ions, total := conductivity(ionTotals[tank], idx)
		out[tank] = TankEC{Ions: ions, Total: total}
	}
	return out
}

// ECContribution is meq × molar conductivity / 1000.
func ECContribution(meq, conductivity float64) float64 {
	return meq * conductivity / 1000
}

// conductivity returns per-ion EC rounded to 3 decimals and the rounded sum
// of the unrounded contributions.
func conductivity(meq map[Ion]float64, idx *Index) (map[Ion]float64, float64) {
	ions := make(map[Ion]float64, len(Ions))
	var total float64
	for _, ion := range Ions {
		ec := ECContribution(meq[ion], idx.Conductivity(ion))
		ions[ion] = round(ec, 3)
		total += ec
	}
	return ions, round(total, 3)
}

func newElementTotals() TankElementTotals {
	totals := make(TankElementTotals, len(Tanks))
	for _, tank := range Tanks {
		m := make(map[Element]float64, len(Elements))
		for _, e := range Elements {
			m[e] = 0
		}
		totals[tank] = m
	}
	return totals
}

func zeroIons() map[Ion]float64 {
	m := make(map[Ion]float64, len(Ions))
	for _, ion := range Ions {
		m[ion] = 0
	}
	return m
}

func roundIons(m map[Ion]float64, decimals int) map[Ion]float64 {
	for ion, v := range m {
		m[ion] = round(v, decimals)
	}
	return m
}
