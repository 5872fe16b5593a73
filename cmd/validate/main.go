// Command validate checks a catalog seed before it is imported: table
// integrity, dissociation grid coverage, and a calculation pass that doses
// every fertilizer through both stages. Elements that convert to neither an
// ion nor a trace element are listed as notes.
//
// Usage:
//
//	go run ./cmd/validate -seed internal/adapter/catalog/seed/default.yaml
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/couchcryptid/fertigation-mix/internal/adapter/catalog"
	"github.com/couchcryptid/fertigation-mix/internal/domain"
)

// Dosing used by the calculation pass.
const (
	probeGrams  = 100.0
	probeLiters = 100.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	seedPath := flag.String("seed", "", "catalog seed YAML (default: embedded seed)")
	flag.Parse()

	if code := run(*seedPath, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(seedPath string, w io.Writer) int {
	fmt.Fprintln(w, "=== Catalog Seed Validation ===")
	fmt.Fprintln(w)

	seed, err := catalog.ReadSeedFile(seedPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load seed: %v\n", err)
		return 1
	}
	rows := seed.DissociationRows()

	phases := []*phase{
		validateTables(seed),
		validateCoverage(rows),
		validateCalculation(seed, rows),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records: %d fertilizers, %d components, %d ion conversions, %d oxide conversions, %d dissociation rows\n",
		len(seed.Fertilizers), len(seed.Components), len(seed.IonConversions), len(seed.ElementConversions), len(rows))

	if notes := unconvertedElements(seed); len(notes) > 0 {
		fmt.Fprintf(w, "  Note: reported as ppm only (no ion or oxide conversion): %v\n", notes)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func validateTables(seed catalog.Seed) *phase {
	p := &phase{name: "Phase 1: Table integrity"}
	if len(seed.Fertilizers) == 0 {
		p.errorf("no fertilizers")
	}
	if len(seed.IonConversions) == 0 {
		p.errorf("no ion conversions")
	}

	err := seed.Validate()
	if err == nil {
		return p
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			p.errorf("%v", e)
		}
		return p
	}
	p.errorf("%v", err)
	return p
}

// validateCoverage requires the dissociation table to be a gap-free 0.1 grid.
func validateCoverage(rows []domain.PhosphateDissociationRow) *phase {
	p := &phase{name: "Phase 2: Dissociation coverage"}
	if len(rows) == 0 {
		p.errorf("no dissociation rows")
		return p
	}
	for i := 1; i < len(rows); i++ {
		prev, cur := domain.PHKey(rows[i-1].PH), domain.PHKey(rows[i].PH)
		if cur-prev != 1 {
			p.errorf("gap between pH %.1f and %.1f", rows[i-1].PH, rows[i].PH)
		}
	}
	return p
}

// validateCalculation doses each fertilizer alone into tank A and runs both
// stages at every pH in the table.
func validateCalculation(seed catalog.Seed, rows []domain.PhosphateDissociationRow) *phase {
	p := &phase{name: "Phase 3: Calculation pass"}
	idx := domain.NewIndex(seed.ReferenceTables)
	volumes := domain.MixVolumes{A: 1, B: 1, Water: 98}

	for _, f := range seed.Fertilizers {
		entries, err := domain.NormalizeDosing(
			[]domain.DosingInput{{FertilizerID: strconv.Itoa(f.ID), Tank: string(domain.TankA), Weight: strconv.FormatFloat(probeGrams, 'f', -1, 64)}},
			domain.TankVolumes{A: probeLiters, B: probeLiters},
		)
		if err != nil {
			p.errorf("fertilizer %d: %v", f.ID, err)
			continue
		}
		tanks := domain.ComputeTankTotals(entries, idx)
		if ec := tanks.EC[domain.TankA].Total; !finiteNonNegative(ec) {
			p.errorf("fertilizer %d: tank A EC %v", f.ID, ec)
		}

		snap := domain.NewSnapshot(tanks)
		for _, r := range rows {
			final, err := domain.ComputeFinalMix(snap, idx, r.PH, r, volumes)
			if err != nil {
				p.errorf("fertilizer %d at pH %.1f: %v", f.ID, r.PH, err)
				continue
			}
			for ion, v := range final.OneLiterIons {
				if !finiteNonNegative(v) {
					p.errorf("fertilizer %d at pH %.1f: %s = %v", f.ID, r.PH, ion, v)
				}
			}
			if !finiteNonNegative(final.ECTotal) {
				p.errorf("fertilizer %d at pH %.1f: EC %v", f.ID, r.PH, final.ECTotal)
			}
		}
	}
	return p
}

func unconvertedElements(seed catalog.Seed) []string {
	converted := make(map[domain.Element]struct{})
	for _, c := range seed.IonConversions {
		converted[c.ExpressedAs] = struct{}{}
	}
	for _, c := range seed.ElementConversions {
		converted[c.OxideName] = struct{}{}
	}

	seen := make(map[domain.Element]struct{})
	var out []string
	for _, c := range seed.Components {
		if _, ok := converted[c.ExpressedAs]; ok {
			continue
		}
		if _, dup := seen[c.ExpressedAs]; dup {
			continue
		}
		seen[c.ExpressedAs] = struct{}{}
		out = append(out, string(c.ExpressedAs))
	}
	sort.Strings(out)
	return out
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
