// Package domain models the nutrient-solution chemistry behind fertigation
// mixing: converting fertilizer dosing plans into elemental concentrations,
// ionic equivalents, electrical conductivity and a pH-corrected multi-tank mix.
//
// # Units
//
// Elemental concentrations are parts per million (ppm), treated as mg of
// solute per liter of solution. Stock solutions are assumed to have a density
// of 1 kg/L, so grams dissolved in liters of water convert directly:
//
//	ppm = weight_g × mass_fraction × 1,000,000 / volume_L
//
// Ionic quantities are milliequivalents per liter (meq/L), i.e. mmol/L
// weighted by the absolute ion valence:
//
//	meq = ppm / molar_mass_expressed × ion_count × |ion_valence|
//
// # Reporting bases
//
// Fertilizer labels express nutrients on an oxide basis (P2O5, K2O, CaO, MgO,
// SO3, MnO, B2O3) or on an elemental basis (Fe, Cu, Zn, Mo). Nitrogen appears
// as total (TN), nitrate (NN) and ammoniacal (AN) nitrogen. Sodium
// hypochlorite (NaClO) is the chloride carrier.
//
// # Tanks
//
// A dosing plan spreads fertilizers over two concentrate tanks (A and B) and
// the dilution water. Water entries describe the raw water itself: their
// weight and volume are fixed at 1.0 so a component fraction of 0.000028
// reads as 28 ppm.
//
// # Stages
//
// Stage one ([ComputeTankTotals]) produces per-tank totals. Those totals are
// captured in an immutable [Snapshot] and later fed to stage two
// ([ComputeFinalMix]) together with a target pH and the volumes actually
// combined. Nothing is shared between the stages except the snapshot.
//
// # Phosphate speciation
//
// Orthophosphate is reported as three ions (H2PO4-, HPO4^2-, PO4^3-) whose
// share depends on pH. The mix stage scales each species' own total by its
// dissociation fraction at the target pH rounded to 0.1; a missing table row
// is a hard [ErrMissingReferenceData] failure, never interpolated.
package domain
