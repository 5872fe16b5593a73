package domain

import "math"

// h3po4MolarMass is the molar mass of orthophosphoric acid in g/mol.
const h3po4MolarMass = 98.0

// PHModelInput parameterizes the empirical final-pH estimate.
type PHModelInput struct {
	RawPH             float64 `json:"raw_ph" yaml:"raw_ph"`
	PhosphateGPerL    float64 `json:"phosphate_g_per_l" yaml:"phosphate_g_per_l"`
	AmmoniumMmolPerL  float64 `json:"ammonium_mmol_per_l" yaml:"ammonium_mmol_per_l"`
	AlkalinityMeqPerL float64 `json:"alkalinity_meq_per_l" yaml:"alkalinity_meq_per_l"`

	// Empirical coefficients: pH drop per decade of phosphate, per meq/L of
	// alkalinity and per mmol/L of ammonium.
	Alpha float64 `json:"alpha" yaml:"alpha"`
	Beta  float64 `json:"beta" yaml:"beta"`
	Gamma float64 `json:"gamma" yaml:"gamma"`
}

// DefaultPHModelInput returns the calibrated defaults of the model.
func DefaultPHModelInput() PHModelInput {
	return PHModelInput{
		RawPH:             7.0,
		PhosphateGPerL:    2.0,
		AmmoniumMmolPerL:  0.350,
		AlkalinityMeqPerL: 1.0,
		Alpha:             0.4,
		Beta:              1.0,
		Gamma:             0.5,
	}
}

// PredictFinalPH estimates the solution pH after adding phosphoric acid to
// raw water. Without phosphate the raw pH is returned unchanged. The estimate
// is floored at 0 and rounded to 2 decimals. ok is false when the inputs make
// the formula undefined (NaN or infinite values); callers must treat that as
// "unavailable", never as zero.
func PredictFinalPH(in PHModelInput) (ph float64, ok bool) {
	for _, v := range []float64{in.RawPH, in.PhosphateGPerL, in.AmmoniumMmolPerL, in.AlkalinityMeqPerL, in.Alpha, in.Beta, in.Gamma} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
	}

	phosphateMmol := in.PhosphateGPerL * 1000 / h3po4MolarMass
	if phosphateMmol <= 0 {
		return in.RawPH, true
	}

	predicted := in.RawPH -
		in.Alpha*math.Log10(phosphateMmol) -
		in.Beta*in.AlkalinityMeqPerL -
		in.Gamma*in.AmmoniumMmolPerL
	if math.IsNaN(predicted) || math.IsInf(predicted, 0) {
		return 0, false
	}
	return round(math.Max(0, predicted), 2), true
}
