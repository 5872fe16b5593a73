package catalog

import (
	"context"
	"fmt"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
)

// Memory is an immutable in-process catalog.
type Memory struct {
	tables       domain.ReferenceTables
	dissociation map[int]domain.PhosphateDissociationRow
}

// NewMemory creates a catalog over the given tables and dissociation rows.
func NewMemory(tables domain.ReferenceTables, rows []domain.PhosphateDissociationRow) *Memory {
	m := &Memory{
		tables:       tables,
		dissociation: make(map[int]domain.PhosphateDissociationRow, len(rows)),
	}
	for _, r := range rows {
		m.dissociation[domain.PHKey(r.PH)] = r
	}
	return m
}

// NewMemoryFromSeed creates a catalog from a decoded seed.
func NewMemoryFromSeed(s Seed) *Memory {
	return NewMemory(s.ReferenceTables, s.DissociationRows())
}

func (m *Memory) ReferenceTables(_ context.Context) (domain.ReferenceTables, error) {
	return m.tables, nil
}

func (m *Memory) PhosphateDissociation(_ context.Context, ph float64) (domain.PhosphateDissociationRow, error) {
	row, ok := m.dissociation[domain.PHKey(ph)]
	if !ok {
		return domain.PhosphateDissociationRow{}, missingDissociation(ph)
	}
	return row, nil
}

func missingDissociation(ph float64) error {
	return fmt.Errorf("phosphate dissociation at pH %.1f: %w", domain.RoundPH(ph), domain.ErrMissingReferenceData)
}
