package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed seed/default.yaml
var defaultSeed []byte

// Seed is the portable form of a reference catalog, used to populate the
// in-memory catalog and to import into SQL backends.
type Seed struct {
	domain.ReferenceTables `yaml:",inline"`

	Dissociation []domain.PhosphateDissociationRow `yaml:"phosphate_dissociation"`

	// Generate, when set, fills in dissociation rows from pKa values for every
	// pH the explicit rows do not cover.
	Generate *DissociationGrid `yaml:"generate_dissociation"`
}

// DissociationGrid describes a generated 0.1-step dissociation table.
// Zero pKa values default to orthophosphoric acid at 25 °C.
type DissociationGrid struct {
	MinPH    float64 `yaml:"min_ph"`
	MaxPH    float64 `yaml:"max_ph"`
	Decimals int     `yaml:"decimals"`
	PKa1     float64 `yaml:"pka1"`
	PKa2     float64 `yaml:"pka2"`
	PKa3     float64 `yaml:"pka3"`
}

// Rows generates the grid.
func (g DissociationGrid) Rows() []domain.PhosphateDissociationRow {
	pka1, pka2, pka3 := g.PKa1, g.PKa2, g.PKa3
	if pka1 == 0 {
		pka1 = domain.PKa1
	}
	if pka2 == 0 {
		pka2 = domain.PKa2
	}
	if pka3 == 0 {
		pka3 = domain.PKa3
	}
	decimals := g.Decimals
	if decimals <= 0 {
		decimals = 4
	}
	return domain.GenerateDissociationTable(g.MinPH, g.MaxPH, decimals, pka1, pka2, pka3)
}

// LoadSeed decodes a YAML seed.
func LoadSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return s, nil
}

// DefaultSeed returns the embedded default catalog.
func DefaultSeed() (Seed, error) {
	return LoadSeed(bytes.NewReader(defaultSeed))
}

// DissociationRows merges explicit and generated rows, keyed by pH in
// tenths. Explicit rows win. The result is sorted by pH.
func (s Seed) DissociationRows() []domain.PhosphateDissociationRow {
	byKey := make(map[int]domain.PhosphateDissociationRow)
	if s.Generate != nil {
		for _, r := range s.Generate.Rows() {
			byKey[domain.PHKey(r.PH)] = r
		}
	}
	for _, r := range s.Dissociation {
		r.PH = domain.RoundPH(r.PH)
		byKey[domain.PHKey(r.PH)] = r
	}

	keys := make([]int, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	rows := make([]domain.PhosphateDissociationRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, byKey[k])
	}
	return rows
}

// Validate checks a seed for values the calculation would silently
// mishandle. Every problem is reported.
func (s Seed) Validate() error {
	var errs []error

	ids := make(map[int]struct{}, len(s.Fertilizers))
	for _, f := range s.Fertilizers {
		if _, dup := ids[f.ID]; dup {
			errs = append(errs, fmt.Errorf("fertilizer %d: duplicate id", f.ID))
		}
		ids[f.ID] = struct{}{}
	}

	for i, c := range s.Components {
		if _, ok := ids[c.FertilizerID]; !ok {
			errs = append(errs, fmt.Errorf("component %d: unknown fertilizer %d", i, c.FertilizerID))
		}
		if !c.ExpressedAs.IsKnown() {
			errs = append(errs, fmt.Errorf("component %d: unknown element %q", i, c.ExpressedAs))
		}
		if c.Value < 0 || c.Value > 1 || math.IsNaN(c.Value) {
			errs = append(errs, fmt.Errorf("component %d: fraction %v outside [0,1]", i, c.Value))
		}
	}

	for i, c := range s.IonConversions {
		if !c.ExpressedAs.IsKnown() {
			errs = append(errs, fmt.Errorf("ion conversion %d: unknown element %q", i, c.ExpressedAs))
		}
		if !c.IonForm.IsKnown() {
			errs = append(errs, fmt.Errorf("ion conversion %d: unknown ion %q", i, c.IonForm))
		}
		if c.MolarMassExpressed <= 0 {
			errs = append(errs, fmt.Errorf("ion conversion %d: molar_mass_expressed must be positive", i))
		}
	}

	for i, c := range s.ElementConversions {
		if !c.ElementSymbol.IsKnown() {
			errs = append(errs, fmt.Errorf("element conversion %d: unknown trace element %q", i, c.ElementSymbol))
		}
		if c.OxideMW <= 0 {
			errs = append(errs, fmt.Errorf("element conversion %d: oxide_mw must be positive", i))
		}
	}

	seen := make(map[int]struct{}, len(s.Dissociation))
	for _, r := range s.Dissociation {
		key := domain.PHKey(r.PH)
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("dissociation pH %.1f: duplicate row", r.PH))
		}
		seen[key] = struct{}{}
	}
	for _, r := range s.DissociationRows() {
		if err := validateFractions(r); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// DissociationTolerance is the allowed deviation of the species sum from 1.
const DissociationTolerance = 0.01

func validateFractions(r domain.PhosphateDissociationRow) error {
	for _, f := range []float64{r.H2PO4, r.HPO4, r.PO4} {
		if f < 0 || f > 1 || math.IsNaN(f) {
			return fmt.Errorf("dissociation pH %.1f: fraction %v outside [0,1]", r.PH, f)
		}
	}
	if math.Abs(r.Sum()-1) > DissociationTolerance {
		return fmt.Errorf("dissociation pH %.1f: fractions sum to %.4f", r.PH, r.Sum())
	}
	return nil
}
