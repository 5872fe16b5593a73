package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/fertigation-mix/internal/calc"
	"github.com/couchcryptid/fertigation-mix/internal/domain"
)

// MixCalculator runs both calculation stages and the pH model.
type MixCalculator interface {
	ComputeTankTotals(ctx context.Context, inputs []domain.DosingInput, volumes domain.TankVolumes) (domain.TankReport, domain.Snapshot, error)
	ComputeFinalMix(ctx context.Context, snap domain.Snapshot, params calc.MixParams) (domain.FinalReport, error)
	PredictPH(in domain.PHModelInput) (float64, bool)
}

// MixTransformer implements Transformer by evaluating a complete mix request.
type MixTransformer struct {
	calc   MixCalculator
	logger *slog.Logger
}

// NewTransformer creates a MixTransformer backed by calculator.
func NewTransformer(calculator MixCalculator, logger *slog.Logger) *MixTransformer {
	return &MixTransformer{
		calc:   calculator,
		logger: logger,
	}
}

// Transform parses a mix request, runs the tank and mix stages, optionally
// predicts the final pH, and serializes the report.
func (t *MixTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseMixRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	tanks, snap, err := t.calc.ComputeTankTotals(ctx, req.Dosing, req.Volumes)
	if err != nil {
		return domain.OutputEvent{}, classify(fmt.Errorf("request %s: tank stage: %w", req.RequestID, err))
	}
	final, err := t.calc.ComputeFinalMix(ctx, snap, calc.MixParams{PHTarget: req.PHTarget, Volumes: req.Mix})
	if err != nil {
		return domain.OutputEvent{}, classify(fmt.Errorf("request %s: mix stage: %w", req.RequestID, err))
	}

	report := domain.NewMixReport(req, snap, tanks, final)
	if req.PHModel != nil {
		if ph, ok := t.calc.PredictPH(*req.PHModel); ok {
			report.PredictedPH = &ph
		} else {
			t.logger.Warn("ph prediction unavailable", "request_id", req.RequestID)
		}
	}

	return domain.SerializeMixReport(report)
}

// classify wraps failures that are not the request's fault in a
// TransientError. Rejected input and missing reference rows are permanent.
func classify(err error) error {
	if domain.IsInputError(err) || errors.Is(err, domain.ErrMalformedNumericInput) ||
		errors.Is(err, domain.ErrMissingReferenceData) {
		return err
	}
	return &TransientError{Err: err}
}
