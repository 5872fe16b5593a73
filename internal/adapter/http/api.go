package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/fertigation-mix/internal/calc"
	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/couchcryptid/fertigation-mix/internal/report"
	"github.com/couchcryptid/fertigation-mix/internal/snapshot"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// Calculator runs the calculation stages.
type Calculator interface {
	ComputeTankTotals(ctx context.Context, inputs []domain.DosingInput, volumes domain.TankVolumes) (domain.TankReport, domain.Snapshot, error)
	ComputeFinalMix(ctx context.Context, snap domain.Snapshot, params calc.MixParams) (domain.FinalReport, error)
	PredictPH(in domain.PHModelInput) (float64, bool)
	Fertilizers(ctx context.Context) ([]calc.FertilizerOption, error)
}

// SnapshotCodec signs and verifies the snapshot carried between the stages.
type SnapshotCodec interface {
	Sign(snap domain.Snapshot) (string, error)
	Parse(token string) (domain.Snapshot, error)
}

// API serves the /api/v1 routes.
type API struct {
	calc   Calculator
	codec  SnapshotCodec
	logger *slog.Logger
}

// NewAPI creates the API handlers.
func NewAPI(calculator Calculator, codec SnapshotCodec, logger *slog.Logger) *API {
	return &API{calc: calculator, codec: codec, logger: logger}
}

// Register mounts the API routes on r.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/fertilizers", a.handleFertilizers).Methods(http.MethodGet)
	r.HandleFunc("/tanks", a.handleTanks).Methods(http.MethodPost)
	r.HandleFunc("/mix", a.handleMix).Methods(http.MethodPost)
	r.HandleFunc("/mix/export", a.handleExport).Methods(http.MethodPost)
	r.HandleFunc("/ph/predict", a.handlePredict).Methods(http.MethodPost)
}

type tanksRequest struct {
	Dosing  []domain.DosingInput `json:"dosing"`
	Volumes domain.TankVolumes   `json:"volumes"`
}

type tanksResponse struct {
	Report        domain.TankReport `json:"report"`
	SnapshotID    string            `json:"snapshot_id"`
	SnapshotToken string            `json:"snapshot_token"`
}

// mixRequest is the stage-two request body. An omitted ph_target means
// domain.DefaultPHTarget.
type mixRequest struct {
	SnapshotToken string `json:"snapshot_token"`
	calc.MixParams
}

type mixResponse struct {
	SnapshotID string             `json:"snapshot_id"`
	Report     domain.FinalReport `json:"report"`
}

type predictResponse struct {
	PredictedPH *float64            `json:"predicted_ph"`
	Available   bool                `json:"available"`
	Input       domain.PHModelInput `json:"input"`
}

func (a *API) handleFertilizers(w http.ResponseWriter, r *http.Request) {
	list, err := a.calc.Fertilizers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"fertilizers": list})
}

func (a *API) handleTanks(w http.ResponseWriter, r *http.Request) {
	var req tanksRequest
	if !decode(w, r, &req) {
		return
	}

	tanks, snap, err := a.calc.ComputeTankTotals(r.Context(), req.Dosing, req.Volumes)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token, err := a.codec.Sign(snap)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, tanksResponse{Report: tanks, SnapshotID: snap.ID, SnapshotToken: token})
}

func (a *API) handleMix(w http.ResponseWriter, r *http.Request) {
	snap, final, ok := a.mix(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, mixResponse{SnapshotID: snap.ID, Report: final})
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "pdf" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	_, final, ok := a.mix(w, r)
	if !ok {
		return
	}

	switch format {
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="mix.pdf"`)
		if err := report.WritePDF(w, final); err != nil {
			a.logger.Error("export failed", "format", format, "error", err)
		}
	default:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="mix.xlsx"`)
		if err := report.WriteXLSX(w, nil, final); err != nil {
			a.logger.Error("export failed", "format", format, "error", err)
		}
	}
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	in := domain.DefaultPHModelInput()
	if !decode(w, r, &in) {
		return
	}

	resp := predictResponse{Input: in}
	if ph, ok := a.calc.PredictPH(in); ok {
		resp.PredictedPH = &ph
		resp.Available = true
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

// mix verifies the snapshot token and runs stage two. It writes the error
// response itself and reports false on failure.
func (a *API) mix(w http.ResponseWriter, r *http.Request) (domain.Snapshot, domain.FinalReport, bool) {
	req := mixRequest{MixParams: calc.MixParams{PHTarget: domain.DefaultPHTarget}}
	if !decode(w, r, &req) {
		return domain.Snapshot{}, domain.FinalReport{}, false
	}

	snap, err := a.codec.Parse(req.SnapshotToken)
	if err != nil {
		a.fail(w, r, err)
		return domain.Snapshot{}, domain.FinalReport{}, false
	}
	final, err := a.calc.ComputeFinalMix(r.Context(), snap, req.MixParams)
	if err != nil {
		a.fail(w, r, err)
		return domain.Snapshot{}, domain.FinalReport{}, false
	}
	return snap, final, true
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	a.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, snapshot.ErrInvalidToken), domain.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMissingReferenceData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
