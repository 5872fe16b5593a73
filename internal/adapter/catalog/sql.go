package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS fertilizers (
		id INTEGER PRIMARY KEY,
		brand TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fertilizer_components (
		seq INTEGER NOT NULL,
		fertilizer_id INTEGER NOT NULL REFERENCES fertilizers(id),
		expressed_as TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ion_conversion (
		seq INTEGER NOT NULL,
		expressed_as TEXT NOT NULL,
		ion_form TEXT NOT NULL,
		molar_mass_expressed DOUBLE PRECISION NOT NULL,
		molar_mass_ion DOUBLE PRECISION NOT NULL,
		ion_count DOUBLE PRECISION NOT NULL,
		ion_valence DOUBLE PRECISION NOT NULL,
		ion_conductivity DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS element_conversion (
		oxide_name TEXT PRIMARY KEY,
		element_symbol TEXT NOT NULL,
		element_mw DOUBLE PRECISION NOT NULL,
		oxide_mw DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS phosphate_dissociation (
		ph DOUBLE PRECISION PRIMARY KEY,
		h2po4 DOUBLE PRECISION NOT NULL,
		hpo4 DOUBLE PRECISION NOT NULL,
		po4 DOUBLE PRECISION NOT NULL
	)`,
}

// SQL is a catalog backed by PostgreSQL or SQLite.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// OpenSQL opens and pings a database for the dialect.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger) (*SQL, error) {
	if dialect != Postgres && dialect != SQLite {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// A single connection keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return NewSQL(db, dialect, logger), nil
}

// NewSQL wraps an open database.
func NewSQL(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQL {
	return &SQL{db: db, dialect: dialect, logger: logger}
}

// Close closes the underlying database.
func (s *SQL) Close() error {
	return s.db.Close()
}

// Migrate creates the catalog tables when missing.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Import replaces the catalog contents with seed in a single transaction.
func (s *SQL) Import(ctx context.Context, seed Seed) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("import rollback failed", "error", rbErr)
			}
		}
	}()

	for _, table := range []string{"fertilizer_components", "ion_conversion", "element_conversion", "phosphate_dissociation", "fertilizers"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, f := range seed.Fertilizers {
		if _, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO fertilizers (id, brand) VALUES (?, ?)`), f.ID, f.Brand); err != nil {
			return fmt.Errorf("insert fertilizer %d: %w", f.ID, err)
		}
	}
	for i, c := range seed.Components {
		if _, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO fertilizer_components (seq, fertilizer_id, expressed_as, value) VALUES (?, ?, ?, ?)`),
			i, c.FertilizerID, string(c.ExpressedAs), c.Value); err != nil {
			return fmt.Errorf("insert component %d: %w", i, err)
		}
	}
	for i, c := range seed.IonConversions {
		if _, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO ion_conversion
			(seq, expressed_as, ion_form, molar_mass_expressed, molar_mass_ion, ion_count, ion_valence, ion_conductivity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			i, string(c.ExpressedAs), string(c.IonForm), c.MolarMassExpressed, c.MolarMassIon, c.IonCount, c.IonValence, c.IonConductivity); err != nil {
			return fmt.Errorf("insert ion conversion %d: %w", i, err)
		}
	}
	for _, c := range seed.ElementConversions {
		if _, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO element_conversion (oxide_name, element_symbol, element_mw, oxide_mw) VALUES (?, ?, ?, ?)`),
			string(c.OxideName), string(c.ElementSymbol), c.ElementMW, c.OxideMW); err != nil {
			return fmt.Errorf("insert element conversion %s: %w", c.OxideName, err)
		}
	}
	for _, r := range seed.DissociationRows() {
		if _, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO phosphate_dissociation (ph, h2po4, hpo4, po4) VALUES (?, ?, ?, ?)`),
			r.PH, r.H2PO4, r.HPO4, r.PO4); err != nil {
			return fmt.Errorf("insert dissociation pH %.1f: %w", r.PH, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	s.logger.Info("catalog imported",
		"dialect", s.dialect,
		"fertilizers", len(seed.Fertilizers),
		"components", len(seed.Components),
		"ion_conversions", len(seed.IonConversions),
	)
	return nil
}

func (s *SQL) ReferenceTables(ctx context.Context) (domain.ReferenceTables, error) {
	var t domain.ReferenceTables

	rows, err := s.db.QueryContext(ctx, `SELECT id, brand FROM fertilizers ORDER BY id`)
	if err != nil {
		return t, fmt.Errorf("query fertilizers: %w", err)
	}
	if err := scanAll(rows, func() error {
		var f domain.Fertilizer
		if err := rows.Scan(&f.ID, &f.Brand); err != nil {
			return err
		}
		t.Fertilizers = append(t.Fertilizers, f)
		return nil
	}); err != nil {
		return t, fmt.Errorf("scan fertilizers: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT fertilizer_id, expressed_as, value FROM fertilizer_components ORDER BY seq`)
	if err != nil {
		return t, fmt.Errorf("query components: %w", err)
	}
	if err := scanAll(rows, func() error {
		var c domain.FertilizerComponent
		if err := rows.Scan(&c.FertilizerID, &c.ExpressedAs, &c.Value); err != nil {
			return err
		}
		t.Components = append(t.Components, c)
		return nil
	}); err != nil {
		return t, fmt.Errorf("scan components: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT expressed_as, ion_form, molar_mass_expressed, molar_mass_ion, ion_count, ion_valence, ion_conductivity
		FROM ion_conversion ORDER BY seq`)
	if err != nil {
		return t, fmt.Errorf("query ion conversions: %w", err)
	}
	if err := scanAll(rows, func() error {
		var c domain.IonConversionFactor
		if err := rows.Scan(&c.ExpressedAs, &c.IonForm, &c.MolarMassExpressed, &c.MolarMassIon, &c.IonCount, &c.IonValence, &c.IonConductivity); err != nil {
			return err
		}
		t.IonConversions = append(t.IonConversions, c)
		return nil
	}); err != nil {
		return t, fmt.Errorf("scan ion conversions: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT oxide_name, element_symbol, element_mw, oxide_mw FROM element_conversion ORDER BY oxide_name`)
	if err != nil {
		return t, fmt.Errorf("query element conversions: %w", err)
	}
	if err := scanAll(rows, func() error {
		var c domain.ElementOxideConversion
		if err := rows.Scan(&c.OxideName, &c.ElementSymbol, &c.ElementMW, &c.OxideMW); err != nil {
			return err
		}
		t.ElementConversions = append(t.ElementConversions, c)
		return nil
	}); err != nil {
		return t, fmt.Errorf("scan element conversions: %w", err)
	}

	return t, nil
}

func (s *SQL) PhosphateDissociation(ctx context.Context, ph float64) (domain.PhosphateDissociationRow, error) {
	var r domain.PhosphateDissociationRow
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT ph, h2po4, hpo4, po4 FROM phosphate_dissociation WHERE ABS(ph - ?) < 0.001`),
		domain.RoundPH(ph),
	).Scan(&r.PH, &r.H2PO4, &r.HPO4, &r.PO4)
	if errors.Is(err, sql.ErrNoRows) {
		return r, missingDissociation(ph)
	}
	if err != nil {
		return r, fmt.Errorf("query dissociation: %w", err)
	}
	return r, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func scanAll(rows *sql.Rows, scan func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := scan(); err != nil {
			return err
		}
	}
	return rows.Err()
}
