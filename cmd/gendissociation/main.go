// Command gendissociation generates a phosphate dissociation table from pKa
// values. The YAML output can be pasted into a catalog seed under
// phosphate_dissociation; the SQL output loads straight into an existing
// catalog database.
//
// Usage:
//
//	go run ./cmd/gendissociation -min 4.5 -max 10 -format yaml -out rows.yaml
//	go run ./cmd/gendissociation -format sql | sqlite3 catalog.db
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"gopkg.in/yaml.v3"
)

type options struct {
	minPH, maxPH     float64
	decimals         int
	pka1, pka2, pka3 float64
	format           string
	out              string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	var o options
	fs := flag.NewFlagSet("gendissociation", flag.ContinueOnError)
	fs.Float64Var(&o.minPH, "min", 4.5, "lowest pH in the table")
	fs.Float64Var(&o.maxPH, "max", 10.0, "highest pH in the table")
	fs.IntVar(&o.decimals, "decimals", 4, "decimals kept for each fraction")
	fs.Float64Var(&o.pka1, "pka1", domain.PKa1, "first dissociation constant")
	fs.Float64Var(&o.pka2, "pka2", domain.PKa2, "second dissociation constant")
	fs.Float64Var(&o.pka3, "pka3", domain.PKa3, "third dissociation constant")
	fs.StringVar(&o.format, "format", "yaml", "output format: yaml or sql")
	fs.StringVar(&o.out, "out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if o.maxPH < o.minPH {
		return fmt.Errorf("-max %.1f is below -min %.1f", o.maxPH, o.minPH)
	}
	if o.decimals <= 0 {
		return fmt.Errorf("-decimals must be positive, got %d", o.decimals)
	}

	rows := domain.GenerateDissociationTable(o.minPH, o.maxPH, o.decimals, o.pka1, o.pka2, o.pka3)

	w := stdout
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", o.out, err)
		}
		defer f.Close()
		w = f
	}

	switch o.format {
	case "yaml":
		return writeYAML(w, rows)
	case "sql":
		return writeSQL(w, rows, o.decimals)
	default:
		return fmt.Errorf("unsupported format %q", o.format)
	}
}

func writeYAML(w io.Writer, rows []domain.PhosphateDissociationRow) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"phosphate_dissociation": rows}); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// writeSQL emits an upsert per row. The syntax is accepted by both
// PostgreSQL and SQLite.
func writeSQL(w io.Writer, rows []domain.PhosphateDissociationRow, decimals int) error {
	if _, err := fmt.Fprintln(w, "BEGIN;"); err != nil {
		return err
	}
	for _, r := range rows {
		_, err := fmt.Fprintf(w,
			"INSERT INTO phosphate_dissociation (ph, h2po4, hpo4, po4) VALUES (%.1f, %.*f, %.*f, %.*f) "+
				"ON CONFLICT (ph) DO UPDATE SET h2po4 = excluded.h2po4, hpo4 = excluded.hpo4, po4 = excluded.po4;\n",
			r.PH, decimals, r.H2PO4, decimals, r.HPO4, decimals, r.PO4)
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "COMMIT;")
	return err
}
