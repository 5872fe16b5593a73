// Package calc runs the two calculation stages against a reference catalog.
package calc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/couchcryptid/fertigation-mix/internal/observability"
)

const (
	stageTanks = "tanks"
	stageMix   = "mix"
	stagePH    = "ph"
)

// MixParams are the stage-two inputs besides the snapshot.
type MixParams struct {
	PHTarget float64           `json:"ph_target" yaml:"ph_target"`
	Volumes  domain.MixVolumes `json:"volumes" yaml:"volumes"`
}

// FertilizerOption is a catalog product offered for dosing.
type FertilizerOption struct {
	ID    int    `json:"id"`
	Brand string `json:"brand"`
}

// Service orchestrates the tank and mix stages.
type Service struct {
	catalog domain.Catalog
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService creates a Service reading reference data from catalog.
func NewService(catalog domain.Catalog, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{catalog: catalog, logger: logger, metrics: metrics}
}

// ComputeTankTotals normalizes the dosing plan and runs stage one. The
// returned snapshot is the only input stage two needs.
func (s *Service) ComputeTankTotals(ctx context.Context, inputs []domain.DosingInput, volumes domain.TankVolumes) (report domain.TankReport, snap domain.Snapshot, err error) {
	defer s.record(stageTanks, time.Now(), &err)

	entries, err := domain.NormalizeDosing(inputs, volumes)
	if err != nil {
		return report, snap, err
	}
	tables, err := s.catalog.ReferenceTables(ctx)
	if err != nil {
		return report, snap, fmt.Errorf("load reference tables: %w", err)
	}

	report = domain.ComputeTankTotals(entries, domain.NewIndex(tables))
	snap = domain.NewSnapshot(report)
	s.logger.Info("tank totals computed",
		"snapshot_id", snap.ID,
		"entries", len(entries),
		"ec_a", report.EC[domain.TankA].Total,
		"ec_b", report.EC[domain.TankB].Total,
	)
	return report, snap, nil
}

// ComputeFinalMix looks up the dissociation row for the target pH and runs
// stage two over the snapshot.
func (s *Service) ComputeFinalMix(ctx context.Context, snap domain.Snapshot, params MixParams) (report domain.FinalReport, err error) {
	defer s.record(stageMix, time.Now(), &err)

	if math.IsNaN(params.PHTarget) || math.IsInf(params.PHTarget, 0) || params.PHTarget < 0 || params.PHTarget > 14 {
		return report, &domain.InputError{
			Field: "pH",
			Value: strconv.FormatFloat(params.PHTarget, 'g', -1, 64),
			Err:   domain.ErrMalformedNumericInput,
		}
	}
	if err := params.Volumes.Validate(); err != nil {
		return report, err
	}

	tables, err := s.catalog.ReferenceTables(ctx)
	if err != nil {
		return report, fmt.Errorf("load reference tables: %w", err)
	}
	row, err := s.catalog.PhosphateDissociation(ctx, domain.RoundPH(params.PHTarget))
	if err != nil {
		return report, err
	}

	report, err = domain.ComputeFinalMix(snap, domain.NewIndex(tables), params.PHTarget, row, params.Volumes)
	if err != nil {
		return report, err
	}

	s.logger.Info("final mix computed",
		"snapshot_id", snap.ID,
		"ph", row.PH,
		"volume", params.Volumes.Total(),
		"ec_total", report.ECTotal,
	)
	return report, nil
}

// PredictPH runs the empirical pH model. ok is false when the estimate is undefined.
func (s *Service) PredictPH(in domain.PHModelInput) (ph float64, ok bool) {
	start := time.Now()
	ph, ok = domain.PredictFinalPH(in)

	var err error
	if !ok {
		err = errors.New("undefined")
	}
	s.record(stagePH, start, &err)
	return ph, ok
}

// Fertilizers lists the catalog products in catalog order.
func (s *Service) Fertilizers(ctx context.Context) ([]FertilizerOption, error) {
	tables, err := s.catalog.ReferenceTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reference tables: %w", err)
	}
	out := make([]FertilizerOption, 0, len(tables.Fertilizers))
	for _, f := range tables.Fertilizers {
		out = append(out, FertilizerOption(f))
	}
	return out, nil
}

// CheckReadiness reports whether the catalog can serve reference tables.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if _, err := s.catalog.ReferenceTables(ctx); err != nil {
		return fmt.Errorf("catalog unavailable: %w", err)
	}
	return nil
}

func (s *Service) record(stage string, start time.Time, err *error) {
	s.metrics.CalculationDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	outcome := "success"
	if *err != nil {
		outcome = "error"
		s.logger.Debug("calculation failed", "stage", stage, "error", *err)
	}
	s.metrics.Calculations.WithLabelValues(stage, outcome).Inc()
}
