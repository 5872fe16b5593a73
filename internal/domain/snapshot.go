package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the immutable hand-off between the tank stage and the mix stage.
// It round-trips losslessly through JSON.
type Snapshot struct {
	ID            string            `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	ElementTotals TankElementTotals `json:"tank_element_totals"`
	IonTotals     TankIonTotals     `json:"tank_ion_totals"`
}

// NewSnapshot captures the tank totals of a stage-one report. The maps are
// copied so later changes to the report cannot leak into the snapshot.
func NewSnapshot(report TankReport) Snapshot {
	return Snapshot{
		ID:            uuid.NewString(),
		CreatedAt:     clock.Now().UTC(),
		ElementTotals: copyNested(report.ElementTotals),
		IonTotals:     copyNested(report.IonTotals),
	}
}

func copyNested[K comparable, V any](m map[Tank]map[K]V) map[Tank]map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[Tank]map[K]V, len(m))
	for tank, inner := range m {
		c := make(map[K]V, len(inner))
		for k, v := range inner {
			c[k] = v
		}
		out[tank] = c
	}
	return out
}
