// Package store persists analysis results in a SQL database.  The sqlite driver is pure Go and
// suits single-station deployments, postgres serves a plant-wide history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BTBurke/spc/pkg/stat"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ErrNotFound is returned by Get when no record has the requested id
var ErrNotFound = errors.New("store: record not found")

// Record is one persisted analysis.  Payload holds the full result document as JSON; the other
// fields are denormalized for filtering.
type Record struct {
	ID             uuid.UUID
	Product        string
	Station        string
	Characteristic string
	CreatedAt      time.Time
	N              int
	Mean           float64
	StdDev         float64
	Cpk            stat.Index
	Classification stat.Classification
	AlertType      stat.AlertType
	Violations     int
	Payload        json.RawMessage
}

// Filter selects records in List.  Zero fields do not constrain the query.
type Filter struct {
	Product   string
	Station   string
	AlertType stat.AlertType
	Since     time.Time
	Limit     int
}

// SQL is a result store backed by database/sql
type SQL struct {
	db     *sql.DB
	driver string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		product TEXT NOT NULL,
		station TEXT NOT NULL,
		characteristic TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		n INTEGER NOT NULL,
		mean DOUBLE PRECISION NOT NULL,
		std_dev DOUBLE PRECISION NOT NULL,
		cpk DOUBLE PRECISION,
		cpk_inf SMALLINT NOT NULL DEFAULT 0,
		classification TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		violations INTEGER NOT NULL,
		payload TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_station ON analyses(product, station, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at)`,
}

// Open connects to the database and creates the schema if needed
func Open(ctx context.Context, driver string, dsn string) (*SQL, error) {
	switch driver {
	case SQLite, Postgres:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q, use %s or %s", driver, SQLite, Postgres)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	// every connection to an in-memory sqlite database sees a different database
	if driver == SQLite && (dsn == ":memory:" || strings.Contains(dsn, "mode=memory")) {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", driver, err)
	}

	s := &SQL{db: db, driver: driver}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// Save inserts a record.  A missing id or creation time is filled in and written back to r.
func (s *SQL) Save(ctx context.Context, r *Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	payload := r.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	cpk, inf := encodeIndex(r.Cpk)

	q := s.rebind(`INSERT INTO analyses
		(id, product, station, characteristic, created_at, n, mean, std_dev, cpk, cpk_inf, classification, alert_type, violations, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		r.ID.String(), r.Product, r.Station, r.Characteristic, r.CreatedAt.UnixNano(),
		r.N, r.Mean, r.StdDev, cpk, inf, string(r.Classification), string(r.AlertType),
		r.Violations, string(payload),
	)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", r.ID, err)
	}
	return nil
}

const columns = `id, product, station, characteristic, created_at, n, mean, std_dev, cpk, cpk_inf, classification, alert_type, violations, payload`

// Get returns the record with the given id or ErrNotFound
func (s *SQL) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+columns+` FROM analyses WHERE id = ?`), id.String())
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

// List returns the records matching f, newest first
func (s *SQL) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Product != "" {
		where = append(where, "product = ?")
		args = append(args, f.Product)
	}
	if f.Station != "" {
		where = append(where, "station = ?")
		args = append(args, f.Station)
	}
	if f.AlertType != "" {
		where = append(where, "alert_type = ?")
		args = append(args, string(f.AlertType))
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UnixNano())
	}

	q := `SELECT ` + columns + ` FROM analyses`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ` + strconv.Itoa(f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database
func (s *SQL) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (Record, error) {
	var (
		r       Record
		id      string
		created int64
		cpk     sql.NullFloat64
		inf     int
		class   string
		alert   string
		payload string
	)
	err := row.Scan(&id, &r.Product, &r.Station, &r.Characteristic, &created, &r.N, &r.Mean, &r.StdDev,
		&cpk, &inf, &class, &alert, &r.Violations, &payload)
	if err != nil {
		return Record{}, err
	}
	r.ID, err = uuid.Parse(id)
	if err != nil {
		return Record{}, fmt.Errorf("store: bad record id %q: %w", id, err)
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.Cpk = decodeIndex(cpk, inf)
	r.Classification = stat.Classification(class)
	r.AlertType = stat.AlertType(alert)
	r.Payload = json.RawMessage(payload)
	return r, nil
}

// encodeIndex stores infinite indices as NULL with the sign in a separate column
func encodeIndex(i stat.Index) (sql.NullFloat64, int) {
	f := i.Float()
	switch {
	case math.IsInf(f, 1):
		return sql.NullFloat64{}, 1
	case math.IsInf(f, -1):
		return sql.NullFloat64{}, -1
	default:
		return sql.NullFloat64{Float64: f, Valid: true}, 0
	}
}

func decodeIndex(v sql.NullFloat64, inf int) stat.Index {
	if v.Valid {
		return stat.Index(v.Float64)
	}
	return stat.Index(math.Inf(inf))
}

// rebind rewrites ? placeholders to $n for postgres
func (s *SQL) rebind(q string) string {
	if s.driver != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
