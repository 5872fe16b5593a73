package domain

const (
	testCalciumNitrate = 1
	testMKP            = 2
	testMicroMix       = 3
	testRawWater       = 4
)

// testTables is a small catalog with round molar masses so expected values
// can be checked by hand.
func testTables() ReferenceTables {
	return ReferenceTables{
		Fertilizers: []Fertilizer{
			{ID: testCalciumNitrate, Brand: "Calcium Nitrate"},
			{ID: testMKP, Brand: "MKP"},
			{ID: testMicroMix, Brand: "Micro Mix"},
			{ID: testRawWater, Brand: "Raw Water"},
		},
		Components: []FertilizerComponent{
			{FertilizerID: testCalciumNitrate, ExpressedAs: ElementNN, Value: 0.15},
			{FertilizerID: testCalciumNitrate, ExpressedAs: ElementCaO, Value: 0.26},
			{FertilizerID: testMKP, ExpressedAs: ElementP2O5, Value: 0.52},
			{FertilizerID: testMKP, ExpressedAs: ElementK2O, Value: 0.34},
			{FertilizerID: testMicroMix, ExpressedAs: ElementMnO, Value: 0.01},
			{FertilizerID: testMicroMix, ExpressedAs: ElementB2O3, Value: 0.02},
			{FertilizerID: testMicroMix, ExpressedAs: ElementFe, Value: 0.05},
			{FertilizerID: testMicroMix, ExpressedAs: "Si", Value: 0.5},
			{FertilizerID: testRawWater, ExpressedAs: ElementCaO, Value: 0.000028},
		},
		IonConversions: []IonConversionFactor{
			{ExpressedAs: ElementNN, IonForm: IonNO3, MolarMassExpressed: 14, MolarMassIon: 62, IonCount: 1, IonValence: -1, IonConductivity: 71.0},
			{ExpressedAs: ElementCaO, IonForm: IonCa, MolarMassExpressed: 56, MolarMassIon: 40, IonCount: 1, IonValence: 2, IonConductivity: 59.5},
			{ExpressedAs: ElementP2O5, IonForm: IonH2PO4, MolarMassExpressed: 142, MolarMassIon: 97, IonCount: 2, IonValence: -1, IonConductivity: 36.0},
			{ExpressedAs: ElementP2O5, IonForm: IonHPO4, MolarMassExpressed: 142, MolarMassIon: 96, IonCount: 2, IonValence: -2, IonConductivity: 57.0},
			{ExpressedAs: ElementP2O5, IonForm: IonPO4, MolarMassExpressed: 142, MolarMassIon: 95, IonCount: 2, IonValence: -3, IonConductivity: 69.0},
			{ExpressedAs: ElementK2O, IonForm: IonK, MolarMassExpressed: 94, MolarMassIon: 39, IonCount: 2, IonValence: 1, IonConductivity: 73.5},
			{ExpressedAs: ElementMgO, IonForm: IonMg, MolarMassExpressed: 0, MolarMassIon: 24, IonCount: 1, IonValence: 2, IonConductivity: 53.0},
			{ExpressedAs: ElementMnO, IonForm: "Mn^2+", MolarMassExpressed: 71, MolarMassIon: 55, IonCount: 1, IonValence: 2, IonConductivity: 53.0},
		},
		ElementConversions: []ElementOxideConversion{
			{OxideName: ElementMnO, ElementSymbol: TraceMn, ElementMW: 54.94, OxideMW: 70.94},
			{OxideName: ElementB2O3, ElementSymbol: TraceB, ElementMW: 21.62, OxideMW: 69.62},
		},
	}
}

func testIndex() *Index {
	return NewIndex(testTables())
}

// testPlan doses calcium nitrate and the micro mix into A (10 L), MKP into B
// (20 L), and describes the raw water.
func testPlan() ([]DosingInput, TankVolumes) {
	return []DosingInput{
		{FertilizerID: "1", Tank: "A", Weight: "2"},
		{FertilizerID: "3", Tank: "A", Weight: "1"},
		{FertilizerID: "2", Tank: "B", Weight: "4"},
		{FertilizerID: "4", Tank: "原水", Weight: ""},
	}, TankVolumes{A: 10, B: 20}
}

func testDissociationRow() PhosphateDissociationRow {
	return PhosphateDissociationRow{PH: 6.0, H2PO4: 0.94, HPO4: 0.06, PO4: 0}
}
