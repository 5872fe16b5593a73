package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

const planPath = "testdata/plan.yaml"

func TestTanksCmd(t *testing.T) {
	out, err := execute(t, "tanks", "-p", planPath)
	require.NoError(t, err)

	var tanks domain.TankReport
	require.NoError(t, json.Unmarshal([]byte(out), &tanks))
	assert.Len(t, tanks.Rows, 6)
	assert.Greater(t, tanks.EC[domain.TankA].Total, 0.0)
	assert.Greater(t, tanks.IonTotals[domain.TankB][domain.IonK], 0.0)
}

func TestMixCmd(t *testing.T) {
	out, err := execute(t, "mix", "-p", planPath)
	require.NoError(t, err)

	var res mixResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 5.8, res.Final.PHApplied, 1e-9)
	assert.Len(t, res.Final.Rows, 4)
	require.NotNil(t, res.PredictedPH)
	assert.InDelta(t, 6.02, *res.PredictedPH, 0.01)
}

func TestReadPlan_PHTargetDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volumes: {a: 100, b: 100}\n"), 0o600))

	p, err := readPlan(path)
	require.NoError(t, err)
	assert.InDelta(t, domain.DefaultPHTarget, p.PHTarget, 1e-9)
}

func TestOptionsLogger_Level(t *testing.T) {
	ctx := context.Background()

	debug := (&options{logLevel: "debug"}).logger()
	assert.True(t, debug.Enabled(ctx, slog.LevelDebug))

	fallback := (&options{logLevel: "loud"}).logger()
	assert.False(t, fallback.Enabled(ctx, slog.LevelInfo))
	assert.True(t, fallback.Enabled(ctx, slog.LevelWarn))
}

func TestMixCmd_YAMLOutput(t *testing.T) {
	out, err := execute(t, "mix", "-p", planPath, "-o", "yaml")
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &generic))
	final, ok := generic["final"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, final, "one_liter_ions")
}

func TestMixCmd_Errors(t *testing.T) {
	dir := t.TempDir()
	badWeight := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badWeight, []byte(`
dosing:
  - {fertilizer_id: "1", tank: A, weight: "lots"}
volumes: {a: 100, b: 100}
ph_target: 6.0
`), 0o600))
	unknownField := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknownField, []byte("dose: []\n"), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing plan flag", []string{"mix"}, "plan file is required"},
		{"missing file", []string{"mix", "-p", filepath.Join(dir, "nope.yaml")}, "open plan"},
		{"malformed weight", []string{"mix", "-p", badWeight}, "malformed numeric input"},
		{"unknown field", []string{"mix", "-p", unknownField}, "parse plan"},
		{"bad output format", []string{"mix", "-p", planPath, "-o", "toml"}, "unsupported output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExportCmd(t *testing.T) {
	dir := t.TempDir()

	xlsx := filepath.Join(dir, "mix.xlsx")
	_, err := execute(t, "export", "-p", planPath, "--out", xlsx)
	require.NoError(t, err)
	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Mix", "Tanks"}, f.GetSheetList())

	pdf := filepath.Join(dir, "mix.pdf")
	_, err = execute(t, "export", "-p", planPath, "--format", "pdf", "--out", pdf)
	require.NoError(t, err)
	data, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, err = execute(t, "export", "-p", planPath, "--format", "csv")
	require.Error(t, err)
}

func TestPHCmd(t *testing.T) {
	out, err := execute(t, "ph", "--phosphate", "0")
	require.NoError(t, err)

	var res struct {
		PredictedPH float64 `json:"predicted_ph"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 7.0, res.PredictedPH, 1e-9)
}

func TestCatalogImportThenList(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "catalog.db")

	out, err := execute(t, "catalog", "import", "--backend", "sqlite", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 7 fertilizers")

	out, err = execute(t, "catalog", "list", "--backend", "sqlite", "--dsn", dsn)
	require.NoError(t, err)
	var ferts []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &ferts))
	assert.Len(t, ferts, 7)

	out, err = execute(t, "mix", "-p", planPath, "--backend", "sqlite", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "one_liter_ions")
}

func TestCatalogImport_RequiresSQLBackend(t *testing.T) {
	_, err := execute(t, "catalog", "import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--backend sqlite or postgres")
}
