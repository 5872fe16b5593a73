package domain

import (
	"context"
	"math"
)

// Fertilizer is a catalog product.
type Fertilizer struct {
	ID    int    `json:"id" yaml:"id"`
	Brand string `json:"brand" yaml:"brand"`
}

// FertilizerComponent is the mass fraction (0..1) of one nutrient in a fertilizer.
type FertilizerComponent struct {
	FertilizerID int     `json:"fertilizer_id" yaml:"fertilizer_id"`
	ExpressedAs  Element `json:"expressed_as" yaml:"expressed_as"`
	Value        float64 `json:"value" yaml:"value"`
}

// IonConversionFactor maps a label nutrient onto one ionic species. An element
// may map to several ions (phosphate fans out to three species).
type IonConversionFactor struct {
	ExpressedAs        Element `json:"expressed_as" yaml:"expressed_as"`
	IonForm            Ion     `json:"ion_form" yaml:"ion_form"`
	MolarMassExpressed float64 `json:"molar_mass_expressed" yaml:"molar_mass_expressed"`
	MolarMassIon       float64 `json:"molar_mass_ion" yaml:"molar_mass_ion"`
	IonCount           float64 `json:"ion_count" yaml:"ion_count"`
	IonValence         float64 `json:"ion_valence" yaml:"ion_valence"`
	IonConductivity    float64 `json:"ion_conductivity" yaml:"ion_conductivity"`
}

// PhosphateDissociationRow holds the orthophosphate species split at one pH.
type PhosphateDissociationRow struct {
	PH    float64 `json:"ph" yaml:"ph"`
	H2PO4 float64 `json:"h2po4" yaml:"h2po4"`
	HPO4  float64 `json:"hpo4" yaml:"hpo4"`
	PO4   float64 `json:"po4" yaml:"po4"`
}

// Fraction returns the share of ion at this pH. Non-phosphate ions return 1.
func (r PhosphateDissociationRow) Fraction(ion Ion) float64 {
	switch ion {
	case IonH2PO4:
		return r.H2PO4
	case IonHPO4:
		return r.HPO4
	case IonPO4:
		return r.PO4
	default:
		return 1
	}
}

// Sum returns the total of the three species fractions.
func (r PhosphateDissociationRow) Sum() float64 {
	return r.H2PO4 + r.HPO4 + r.PO4
}

// ElementOxideConversion converts an oxide-basis nutrient to its element.
type ElementOxideConversion struct {
	OxideName     Element      `json:"oxide_name" yaml:"oxide_name"`
	ElementSymbol TraceElement `json:"element_symbol" yaml:"element_symbol"`
	ElementMW     float64      `json:"element_mw" yaml:"element_mw"`
	OxideMW       float64      `json:"oxide_mw" yaml:"oxide_mw"`
}

// Ratio is element_mw / oxide_mw, or 0 when the oxide mass is unknown.
func (c ElementOxideConversion) Ratio() float64 {
	if c.OxideMW == 0 {
		return 0
	}
	return c.ElementMW / c.OxideMW
}

// ReferenceTables bundles the read-only catalog tables used by a calculation.
type ReferenceTables struct {
	Fertilizers        []Fertilizer             `json:"fertilizers" yaml:"fertilizers"`
	Components         []FertilizerComponent    `json:"fertilizer_components" yaml:"fertilizer_components"`
	IonConversions     []IonConversionFactor    `json:"ion_conversion" yaml:"ion_conversion"`
	ElementConversions []ElementOxideConversion `json:"element_conversion" yaml:"element_conversion"`
}

// Catalog provides read-only reference data.
type Catalog interface {
	// ReferenceTables returns fertilizers, compositions and conversion tables.
	ReferenceTables(ctx context.Context) (ReferenceTables, error)

	// PhosphateDissociation returns the row for ph rounded to 0.1. It returns an
	// error wrapping ErrMissingReferenceData when no exact row exists.
	PhosphateDissociation(ctx context.Context, ph float64) (PhosphateDissociationRow, error)
}

// Index is a per-request lookup structure over ReferenceTables.
type Index struct {
	brands        map[int]string
	components    map[int][]FertilizerComponent
	conversions   map[Element][]IonConversionFactor
	conductivity  map[Ion]float64
	oxides        map[Element]ElementOxideConversion
	fertilizerIDs []int
}

// NewIndex builds lookup maps once so the calculation stages avoid rescanning tables.
func NewIndex(t ReferenceTables) *Index {
	idx := &Index{
		brands:       make(map[int]string, len(t.Fertilizers)),
		components:   make(map[int][]FertilizerComponent),
		conversions:  make(map[Element][]IonConversionFactor),
		conductivity: make(map[Ion]float64),
		oxides:       make(map[Element]ElementOxideConversion, len(t.ElementConversions)),
	}
	for _, f := range t.Fertilizers {
		if _, ok := idx.brands[f.ID]; !ok {
			idx.fertilizerIDs = append(idx.fertilizerIDs, f.ID)
		}
		idx.brands[f.ID] = f.Brand
	}
	for _, c := range t.Components {
		idx.components[c.FertilizerID] = append(idx.components[c.FertilizerID], c)
	}
	for _, conv := range t.IonConversions {
		idx.conversions[conv.ExpressedAs] = append(idx.conversions[conv.ExpressedAs], conv)
		// First row per ion supplies its conductivity.
		if _, ok := idx.conductivity[conv.IonForm]; !ok {
			idx.conductivity[conv.IonForm] = conv.IonConductivity
		}
	}
	for _, ec := range t.ElementConversions {
		if _, ok := idx.oxides[ec.OxideName]; !ok {
			idx.oxides[ec.OxideName] = ec
		}
	}
	return idx
}

// Brand returns the fertilizer's brand, or false when it is not in the catalog.
func (idx *Index) Brand(fertilizerID int) (string, bool) {
	b, ok := idx.brands[fertilizerID]
	return b, ok
}

// Components returns the composition of a fertilizer.
func (idx *Index) Components(fertilizerID int) []FertilizerComponent {
	return idx.components[fertilizerID]
}

// Conversions returns every ion conversion for a label nutrient.
func (idx *Index) Conversions(e Element) []IonConversionFactor {
	return idx.conversions[e]
}

// Conductivity returns the molar conductivity factor for ion, 0 when unknown.
func (idx *Index) Conductivity(ion Ion) float64 {
	return idx.conductivity[ion]
}

// OxideConversion returns the conversion for an oxide-basis nutrient.
func (idx *Index) OxideConversion(e Element) (ElementOxideConversion, bool) {
	c, ok := idx.oxides[e]
	return c, ok
}

// FertilizerIDs returns catalog fertilizer IDs in catalog order.
func (idx *Index) FertilizerIDs() []int {
	return idx.fertilizerIDs
}

// Orthophosphoric acid dissociation constants at 25 °C.
const (
	PKa1 = 2.15
	PKa2 = 7.20
	PKa3 = 12.35
)

// PhosphateFractions computes the equilibrium share of H2PO4-, HPO4^2- and
// PO4^3- at ph from the three acid dissociation constants. The H3PO4 share is
// left out, so the sum falls below 1 in strongly acidic solutions.
func PhosphateFractions(ph, pka1, pka2, pka3 float64) PhosphateDissociationRow {
	h := math.Pow(10, -ph)
	k1 := math.Pow(10, -pka1)
	k2 := math.Pow(10, -pka2)
	k3 := math.Pow(10, -pka3)

	d := h*h*h + h*h*k1 + h*k1*k2 + k1*k2*k3
	return PhosphateDissociationRow{
		PH:    RoundPH(ph),
		H2PO4: h * h * k1 / d,
		HPO4:  h * k1 * k2 / d,
		PO4:   k1 * k2 * k3 / d,
	}
}

// GenerateDissociationTable returns rows on a 0.1 pH grid from minPH to maxPH
// inclusive, with fractions rounded to the given decimals.
func GenerateDissociationTable(minPH, maxPH float64, decimals int, pka1, pka2, pka3 float64) []PhosphateDissociationRow {
	lo, hi := PHKey(minPH), PHKey(maxPH)
	if hi < lo {
		return nil
	}
	rows := make([]PhosphateDissociationRow, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		r := PhosphateFractions(float64(k)/10, pka1, pka2, pka3)
		r.H2PO4 = round(r.H2PO4, decimals)
		r.HPO4 = round(r.HPO4, decimals)
		r.PO4 = round(r.PO4, decimals)
		rows = append(rows, r)
	}
	return rows
}
