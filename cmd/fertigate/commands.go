package main

import (
	"fmt"
	"os"

	"github.com/couchcryptid/fertigation-mix/internal/adapter/catalog"
	"github.com/couchcryptid/fertigation-mix/internal/calc"
	"github.com/couchcryptid/fertigation-mix/internal/config"
	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/couchcryptid/fertigation-mix/internal/report"
	"github.com/spf13/cobra"
)

func newTanksCmd(opts *options) *cobra.Command {
	var planPath string
	cmd := &cobra.Command{
		Use:   "tanks",
		Short: "Compute per-tank element, ion and EC totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := readPlan(planPath)
			if err != nil {
				return err
			}
			svc, closeFn, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			tanks, _, err := svc.ComputeTankTotals(cmd.Context(), p.Dosing, p.Volumes)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, tanks)
		},
	}
	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "dosing plan YAML")
	return cmd
}

// mixResult is the combined output of the mix command.
type mixResult struct {
	Tanks       domain.TankReport  `json:"tanks"`
	Final       domain.FinalReport `json:"final"`
	PredictedPH *float64           `json:"predicted_ph,omitempty"`
}

func runPlan(cmd *cobra.Command, opts *options, planPath string) (mixResult, error) {
	p, err := readPlan(planPath)
	if err != nil {
		return mixResult{}, err
	}
	svc, closeFn, err := opts.service(cmd.Context())
	if err != nil {
		return mixResult{}, err
	}
	defer closeFn()

	tanks, snap, err := svc.ComputeTankTotals(cmd.Context(), p.Dosing, p.Volumes)
	if err != nil {
		return mixResult{}, err
	}
	final, err := svc.ComputeFinalMix(cmd.Context(), snap, calc.MixParams{PHTarget: p.PHTarget, Volumes: p.Mix})
	if err != nil {
		return mixResult{}, err
	}

	res := mixResult{Tanks: tanks, Final: final}
	if p.PHModel != nil {
		if ph, ok := svc.PredictPH(*p.PHModel); ok {
			res.PredictedPH = &ph
		}
	}
	return res, nil
}

func newMixCmd(opts *options) *cobra.Command {
	var planPath string
	cmd := &cobra.Command{
		Use:   "mix",
		Short: "Run both stages and report the one-liter composition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runPlan(cmd, opts, planPath)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, res)
		},
	}
	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "dosing plan YAML")
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var planPath, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the mix report as an xlsx workbook or a pdf",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "xlsx" && format != "pdf" {
				return fmt.Errorf("unsupported format %q", format)
			}
			res, err := runPlan(cmd, opts, planPath)
			if err != nil {
				return err
			}
			if out == "" {
				out = "mix." + format
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if format == "pdf" {
				err = report.WritePDF(f, res.Final)
			} else {
				err = report.WriteXLSX(f, &res.Tanks, res.Final)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "dosing plan YAML")
	cmd.Flags().StringVar(&format, "format", "xlsx", "xlsx or pdf")
	cmd.Flags().StringVar(&out, "out", "", "output file (default mix.<format>)")
	return cmd
}

func newPHCmd(opts *options) *cobra.Command {
	in := domain.DefaultPHModelInput()
	cmd := &cobra.Command{
		Use:   "ph",
		Short: "Estimate the final pH after adding phosphoric acid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ph, ok := domain.PredictFinalPH(in)
			if !ok {
				return fmt.Errorf("pH estimate unavailable for these inputs")
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, map[string]any{
				"predicted_ph": ph,
				"input":        in,
			})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&in.RawPH, "raw-ph", in.RawPH, "pH of the raw water")
	f.Float64Var(&in.PhosphateGPerL, "phosphate", in.PhosphateGPerL, "phosphoric acid added, g/L")
	f.Float64Var(&in.AmmoniumMmolPerL, "ammonium", in.AmmoniumMmolPerL, "ammonium, mmol/L")
	f.Float64Var(&in.AlkalinityMeqPerL, "alkalinity", in.AlkalinityMeqPerL, "alkalinity, meq/L")
	f.Float64Var(&in.Alpha, "alpha", in.Alpha, "pH drop per decade of phosphate")
	f.Float64Var(&in.Beta, "beta", in.Beta, "pH drop per meq/L of alkalinity")
	f.Float64Var(&in.Gamma, "gamma", in.Gamma, "pH drop per mmol/L of ammonium")
	return cmd
}

func newCatalogCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or load the reference catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the fertilizers in the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			ferts, err := svc.Fertilizers(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, ferts)
		},
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Create the catalog schema and load a seed into a SQL backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.backend != config.CatalogSQLite && opts.backend != config.CatalogPostgres {
				return fmt.Errorf("import needs --backend sqlite or postgres, got %q", opts.backend)
			}
			if opts.dsn == "" {
				return fmt.Errorf("import needs --dsn")
			}
			seed, err := catalog.ReadSeedFile(opts.seedPath)
			if err != nil {
				return err
			}
			if err := seed.Validate(); err != nil {
				return fmt.Errorf("seed is invalid: %w", err)
			}

			db, err := catalog.OpenSQL(cmd.Context(), catalog.Dialect(opts.backend), opts.dsn, opts.logger())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			if err := db.Import(cmd.Context(), seed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d fertilizers, %d dissociation rows\n",
				len(seed.Fertilizers), len(seed.DissociationRows()))
			return nil
		},
	}

	cmd.AddCommand(list, importCmd)
	return cmd
}
