package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// MixRequest is a complete dosing plan submitted for batch evaluation.
type MixRequest struct {
	RequestID string        `json:"request_id"`
	Dosing    []DosingInput `json:"dosing"`
	Volumes   TankVolumes   `json:"volumes"`
	PHTarget  float64       `json:"ph_target"`
	Mix       MixVolumes    `json:"mix"`

	// PHModel, when set, also runs the empirical pH estimate.
	PHModel *PHModelInput `json:"ph_model,omitempty"`
}

// MixReport is the batch result for a MixRequest.
type MixReport struct {
	RequestID   string      `json:"request_id"`
	SnapshotID  string      `json:"snapshot_id"`
	Tanks       TankReport  `json:"tanks"`
	Final       FinalReport `json:"final"`
	PredictedPH *float64    `json:"predicted_ph,omitempty"`
	ProcessedAt time.Time   `json:"processed_at"`
}

// NewMixReport assembles the batch result for req, stamped with the current time.
func NewMixReport(req MixRequest, snap Snapshot, tanks TankReport, final FinalReport) MixReport {
	return MixReport{
		RequestID:   req.RequestID,
		SnapshotID:  snap.ID,
		Tanks:       tanks,
		Final:       final,
		ProcessedAt: clock.Now().UTC(),
	}
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// ParseMixRequest decodes a RawEvent's value. The message key is used as the
// request ID when the payload does not carry one, and an omitted ph_target
// means DefaultPHTarget.
func ParseMixRequest(raw RawEvent) (MixRequest, error) {
	req := MixRequest{PHTarget: DefaultPHTarget}
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return MixRequest{}, fmt.Errorf("parse mix request: %w", err)
	}
	if req.RequestID == "" {
		req.RequestID = string(raw.Key)
	}
	return req, nil
}

// SerializeMixReport marshals a report into an OutputEvent keyed by request ID.
func SerializeMixReport(report MixReport) (OutputEvent, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize mix report: %w", err)
	}
	return OutputEvent{
		Key:   []byte(report.RequestID),
		Value: data,
		Headers: map[string]string{
			"report_type":  "mix",
			"processed_at": report.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
