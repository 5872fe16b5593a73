package domain

import (
	"math"
	"strconv"
)

// Tank identifies a fertigation source.
type Tank string

const (
	TankA     Tank = "A"
	TankB     Tank = "B"
	TankWater Tank = "Water"

	// TankTotal labels the summed row of a mix. It is never a dosing target.
	TankTotal Tank = "Total"
)

// Tanks lists the dosing targets in report order.
var Tanks = []Tank{TankA, TankB, TankWater}

// Element is a nutrient code as printed on fertilizer labels (oxide or elemental basis).
type Element string

const (
	ElementTN    Element = "TN"
	ElementNN    Element = "NN"
	ElementAN    Element = "AN"
	ElementP2O5  Element = "P2O5"
	ElementK2O   Element = "K2O"
	ElementCaO   Element = "CaO"
	ElementMgO   Element = "MgO"
	ElementSO3   Element = "SO3"
	ElementMnO   Element = "MnO"
	ElementB2O3  Element = "B2O3"
	ElementFe    Element = "Fe"
	ElementCu    Element = "Cu"
	ElementZn    Element = "Zn"
	ElementMo    Element = "Mo"
	ElementNaClO Element = "NaClO"
)

// Elements is the fixed display order of elemental concentrations.
var Elements = []Element{
	ElementTN, ElementNN, ElementAN, ElementP2O5, ElementK2O, ElementCaO, ElementMgO, ElementSO3,
	ElementMnO, ElementB2O3, ElementFe, ElementCu, ElementZn, ElementMo, ElementNaClO,
}

// Ion is an ionic species tracked in solution.
type Ion string

const (
	IonNO3   Ion = "NO3-"
	IonNH4   Ion = "NH4+"
	IonH2PO4 Ion = "H2PO4-"
	IonHPO4  Ion = "HPO4^2-"
	IonPO4   Ion = "PO4^3-"
	IonK     Ion = "K+"
	IonCa    Ion = "Ca^2+"
	IonMg    Ion = "Mg^2+"
	IonSO4   Ion = "SO4^2-"
	IonCl    Ion = "Cl-"
)

// Ions is the fixed display order of ionic equivalents and conductivity.
var Ions = []Ion{IonNO3, IonNH4, IonH2PO4, IonHPO4, IonPO4, IonK, IonCa, IonMg, IonSO4, IonCl}

// PhosphateIons are the orthophosphate species re-weighted by pH.
var PhosphateIons = []Ion{IonH2PO4, IonHPO4, IonPO4}

// TraceElement is a micronutrient reported on an elemental basis in the final mix.
type TraceElement string

const (
	TraceMn TraceElement = "Mn"
	TraceB  TraceElement = "B"
	TraceFe TraceElement = "Fe"
	TraceCu TraceElement = "Cu"
	TraceZn TraceElement = "Zn"
	TraceMo TraceElement = "Mo"
)

// TraceElements is the fixed display order of micronutrients in the final mix.
var TraceElements = []TraceElement{TraceMn, TraceB, TraceFe, TraceCu, TraceZn, TraceMo}

var (
	elementSet = toSet(Elements)
	ionSet     = toSet(Ions)
	traceSet   = toSet(TraceElements)
)

// IsKnown reports whether t is one of the dosing tanks.
func (t Tank) IsKnown() bool {
	return t == TankA || t == TankB || t == TankWater
}

// IsKnown reports whether e is in the tracked element set.
func (e Element) IsKnown() bool {
	_, ok := elementSet[e]
	return ok
}

// IsKnown reports whether i is in the tracked ion set.
func (i Ion) IsKnown() bool {
	_, ok := ionSet[i]
	return ok
}

// IsKnown reports whether t is in the trace element set.
func (t TraceElement) IsKnown() bool {
	_, ok := traceSet[t]
	return ok
}

func toSet[T comparable](values []T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// round rounds v to the given number of decimals. The exact binary value is
// rounded, with exact ties going to the even digit, so 0.125 becomes 0.12 and
// 7.05 (stored just below 7.05) becomes 7.0.
func round(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// RoundPH rounds a pH value to the 0.1 granularity of the dissociation table.
func RoundPH(ph float64) float64 {
	return round(ph, 1)
}

// PHKey returns the dissociation table key for ph: the pH in tenths, rounded
// the same way as RoundPH.
func PHKey(ph float64) int {
	return int(math.Round(RoundPH(ph) * 10))
}
