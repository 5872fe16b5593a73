package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"gopkg.in/yaml.v3"
)

// plan is a dosing plan file. Weights are strings so a blank entry means
// nothing was dosed, exactly as in an interactive form. ph_target defaults
// to domain.DefaultPHTarget.
type plan struct {
	Dosing   []domain.DosingInput `yaml:"dosing"`
	Volumes  domain.TankVolumes   `yaml:"volumes"`
	PHTarget float64              `yaml:"ph_target"`
	Mix      domain.MixVolumes    `yaml:"mix"`
	PHModel  *domain.PHModelInput `yaml:"ph_model"`
}

func readPlan(path string) (plan, error) {
	if path == "" {
		return plan{}, errors.New("a plan file is required (--plan)")
	}
	f, err := os.Open(path)
	if err != nil {
		return plan{}, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()

	p := plan{PHTarget: domain.DefaultPHTarget}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return plan{}, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return p, nil
}

// writeOutput renders v as indented JSON or as YAML. YAML output goes through
// the JSON form so both formats share the same field names.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
