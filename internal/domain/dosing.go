package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// waterAliases are the tank selectors accepted for the dilution water.
var waterAliases = map[string]struct{}{
	"Water": {},
	"water": {},
	"原水":    {},
}

// MaxLineConcentration bounds weight × 1e6 / volume for one dosing line.
// Anything above it overflows downstream sums and is rejected as input.
const MaxLineConcentration = 1e15

// DosingInput is one raw dosing line as entered by a grower.
type DosingInput struct {
	FertilizerID string `json:"fertilizer_id" yaml:"fertilizer_id"`
	Tank         string `json:"tank" yaml:"tank"`
	Weight       string `json:"weight" yaml:"weight"`
}

// TankVolumes are the concentrate volumes, in liters, used to dissolve the dosing plan.
type TankVolumes struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
}

// DosingEntry is a validated dosing line.
type DosingEntry struct {
	FertilizerID int     `json:"fertilizer_id"`
	Tank         Tank    `json:"tank"`
	WeightGrams  float64 `json:"weight_grams"`
	VolumeLiters float64 `json:"volume_liters"`
}

// NormalizeTank maps a tank selector, including localized aliases for the
// dilution water, onto a Tank. Unrecognized selectors are returned verbatim.
func NormalizeTank(selector string) Tank {
	s := strings.TrimSpace(selector)
	if _, ok := waterAliases[s]; ok {
		return TankWater
	}
	return Tank(s)
}

// NormalizeDosing validates raw dosing lines and resolves weights and volumes.
//
// Water lines always get weight = volume = 1.0. Other lines parse their weight,
// where a blank weight means nothing was dosed (0 g). Lines for an unknown tank
// keep a zero volume and therefore contribute nothing downstream. Every invalid
// field is reported; the returned error joins one *InputError per field.
func NormalizeDosing(inputs []DosingInput, volumes TankVolumes) ([]DosingEntry, error) {
	entries := make([]DosingEntry, 0, len(inputs))
	var errs []error

	for _, in := range inputs {
		id, err := strconv.Atoi(strings.TrimSpace(in.FertilizerID))
		if err != nil {
			errs = append(errs, &InputError{Field: "fertilizer_id", Value: in.FertilizerID, Err: ErrMalformedNumericInput})
			continue
		}

		tank := NormalizeTank(in.Tank)
		entry := DosingEntry{FertilizerID: id, Tank: tank}

		if tank == TankWater {
			entry.WeightGrams = 1.0
			entry.VolumeLiters = 1.0
			entries = append(entries, entry)
			continue
		}

		weight, err := parseWeight(in.Weight)
		if err != nil {
			errs = append(errs, &InputError{Field: "weight_" + in.FertilizerID, Value: in.Weight, Err: err})
			continue
		}
		entry.WeightGrams = weight

		switch tank {
		case TankA:
			entry.VolumeLiters = volumes.A
		case TankB:
			entry.VolumeLiters = volumes.B
		default:
			entry.VolumeLiters = 0
		}
		if entry.VolumeLiters > 0 {
			if c := entry.WeightGrams * 1e6 / entry.VolumeLiters; math.IsInf(c, 0) || c > MaxLineConcentration {
				errs = append(errs, &InputError{Field: "weight_" + in.FertilizerID, Value: in.Weight, Err: ErrConcentrationOutOfRange})
				continue
			}
		}
		entries = append(entries, entry)
	}

	if err := validateVolume("volume_A", volumes.A); err != nil {
		errs = append(errs, err)
	}
	if err := validateVolume("volume_B", volumes.B); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return entries, nil
}

func parseWeight(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, ErrMalformedNumericInput
	}
	return v, nil
}

func validateVolume(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return &InputError{Field: field, Value: strconv.FormatFloat(v, 'g', -1, 64), Err: ErrMalformedNumericInput}
	}
	return nil
}
