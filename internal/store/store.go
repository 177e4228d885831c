package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite access for raw and enriched emergency calls.
type Store struct {
	db *sql.DB
}

// ErrAlreadyEnriched is returned when an enriched row already exists for a
// raw call id. The UNIQUE index on enriched_calls.raw_call_id is the
// idempotence point: queue redelivery can re-run the pipeline, the store
// cannot double-write.
var ErrAlreadyEnriched = errors.New("enriched call already exists for raw call")

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Concurrent workers share this handle; sqlite serializes writers.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raw_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL,
			description TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			district TEXT,
			caller_gender TEXT,
			caller_age INTEGER,
			caller_name TEXT,
			caller_number TEXT,
			source TEXT NOT NULL DEFAULT 'webform',
			processed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_raw_calls_processed ON raw_calls(processed, created_at);`,
		`CREATE TABLE IF NOT EXISTS enriched_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			raw_call_id INTEGER NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			description TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			district TEXT,
			emergency_type TEXT NOT NULL,
			emergency_subtype TEXT NOT NULL,
			caller_gender TEXT,
			caller_age INTEGER,
			age_group TEXT,
			response_time INTEGER NOT NULL,
			source TEXT NOT NULL,
			processed_at TIMESTAMP NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_enriched_raw_call ON enriched_calls(raw_call_id);`,
		`CREATE INDEX IF NOT EXISTS idx_enriched_type ON enriched_calls(emergency_type, timestamp);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RawCall is one incoming report as ingested, before classification.
type RawCall struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Description  string    `json:"description"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	District     *string   `json:"district"`
	CallerGender *string   `json:"caller_gender"`
	CallerAge    *int      `json:"caller_age"`
	CallerName   *string   `json:"caller_name"`
	CallerNumber *string   `json:"caller_number"`
	Source       string    `json:"source"`
	Processed    bool      `json:"processed"`
	CreatedAt    time.Time `json:"created_at"`
}

// EnrichedCall is the analytics-ready record derived from a RawCall. The
// column names are a de facto contract with the dashboard and forecasting
// consumers; treat them as versioned API surface.
type EnrichedCall struct {
	ID               int64     `json:"id"`
	RawCallID        int64     `json:"raw_call_id"`
	Timestamp        time.Time `json:"timestamp"`
	Description      string    `json:"description"`
	Latitude         *float64  `json:"latitude"`
	Longitude        *float64  `json:"longitude"`
	District         *string   `json:"district"`
	EmergencyType    string    `json:"emergency_type"`
	EmergencySubtype string    `json:"emergency_subtype"`
	CallerGender     *string   `json:"caller_gender"`
	CallerAge        *int      `json:"caller_age"`
	AgeGroup         *string   `json:"age_group"`
	// ResponseTime is simulated per emergency type until a measured source
	// exists.
	ResponseTime int       `json:"response_time"`
	Source       string    `json:"source"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// InsertRawCall stores a new raw call and returns its assigned id.
func (s *Store) InsertRawCall(ctx context.Context, c *RawCall) (int64, error) {
	if c.Source == "" {
		c.Source = "webform"
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO raw_calls(timestamp, description, latitude, longitude, district, caller_gender, caller_age, caller_name, caller_number, source, processed, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,0,?)`,
		c.Timestamp, c.Description, c.Latitude, c.Longitude, c.District, c.CallerGender, c.CallerAge, c.CallerName, c.CallerNumber, c.Source, c.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert raw call: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

// GetRawCall fetches a raw call by id. Returns (nil, nil) when no row
// exists.
func (s *Store) GetRawCall(ctx context.Context, id int64) (*RawCall, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, timestamp, description, latitude, longitude, district, caller_gender, caller_age, caller_name, caller_number, source, processed, created_at
		FROM raw_calls WHERE id=?`, id)
	c, err := scanRawCall(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRawCall(row rowScanner) (*RawCall, error) {
	var c RawCall
	var lat, lon sql.NullFloat64
	var district, gender, name, number sql.NullString
	var age sql.NullInt64
	var processed int
	if err := row.Scan(&c.ID, &c.Timestamp, &c.Description, &lat, &lon, &district, &gender, &age, &name, &number, &c.Source, &processed, &c.CreatedAt); err != nil {
		return nil, err
	}
	if lat.Valid {
		c.Latitude = &lat.Float64
	}
	if lon.Valid {
		c.Longitude = &lon.Float64
	}
	if district.Valid {
		c.District = &district.String
	}
	if gender.Valid {
		c.CallerGender = &gender.String
	}
	if age.Valid {
		v := int(age.Int64)
		c.CallerAge = &v
	}
	if name.Valid {
		c.CallerName = &name.String
	}
	if number.Valid {
		c.CallerNumber = &number.String
	}
	c.Processed = processed != 0
	return &c, nil
}

// InsertEnriched writes the enriched row and flips the raw call's
// processed flag inside one transaction. The enriched write happens-before
// the flag update; a crash in between rolls both back so the raw call is
// retried. A second insert for the same raw call id fails the unique
// index and maps to ErrAlreadyEnriched.
func (s *Store) InsertEnriched(ctx context.Context, e *EnrichedCall) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrich tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO enriched_calls(raw_call_id, timestamp, description, latitude, longitude, district, emergency_type, emergency_subtype, caller_gender, caller_age, age_group, response_time, source, processed_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.RawCallID, e.Timestamp, e.Description, e.Latitude, e.Longitude, e.District, e.EmergencyType, e.EmergencySubtype, e.CallerGender, e.CallerAge, e.AgeGroup, e.ResponseTime, e.Source, e.ProcessedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyEnriched
		}
		return fmt.Errorf("insert enriched call: %w", err)
	}
	id, _ := res.LastInsertId()
	e.ID = id

	if _, err := tx.ExecContext(ctx, `UPDATE raw_calls SET processed=1 WHERE id=?`, e.RawCallID); err != nil {
		return fmt.Errorf("mark raw call processed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrich tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetEnrichedByRawID fetches the enriched row for a raw call id, (nil, nil)
// when absent.
func (s *Store) GetEnrichedByRawID(ctx context.Context, rawCallID int64) (*EnrichedCall, error) {
	row := s.db.QueryRowContext(ctx, enrichedSelect+` WHERE raw_call_id=?`, rawCallID)
	e, err := scanEnriched(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

const enrichedSelect = `SELECT id, raw_call_id, timestamp, description, latitude, longitude, district, emergency_type, emergency_subtype, caller_gender, caller_age, age_group, response_time, source, processed_at FROM enriched_calls`

func scanEnriched(row rowScanner) (*EnrichedCall, error) {
	var e EnrichedCall
	var lat, lon sql.NullFloat64
	var district, gender, ageGroup sql.NullString
	var age sql.NullInt64
	if err := row.Scan(&e.ID, &e.RawCallID, &e.Timestamp, &e.Description, &lat, &lon, &district, &e.EmergencyType, &e.EmergencySubtype, &gender, &age, &ageGroup, &e.ResponseTime, &e.Source, &e.ProcessedAt); err != nil {
		return nil, err
	}
	if lat.Valid {
		e.Latitude = &lat.Float64
	}
	if lon.Valid {
		e.Longitude = &lon.Float64
	}
	if district.Valid {
		e.District = &district.String
	}
	if gender.Valid {
		e.CallerGender = &gender.String
	}
	if age.Valid {
		v := int(age.Int64)
		e.CallerAge = &v
	}
	if ageGroup.Valid {
		e.AgeGroup = &ageGroup.String
	}
	return &e, nil
}

// ListEnriched returns the newest enriched calls.
func (s *Store) ListEnriched(ctx context.Context, limit int) ([]EnrichedCall, error) {
	rows, err := s.db.QueryContext(ctx, enrichedSelect+` ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EnrichedCall
	for rows.Next() {
		e, err := scanEnriched(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListUnprocessed returns raw calls still awaiting enrichment, newest
// first, for backfill.
func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]RawCall, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, description, latitude, longitude, district, caller_gender, caller_age, caller_name, caller_number, source, processed, created_at
		FROM raw_calls WHERE processed=0 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RawCall
	for rows.Next() {
		c, err := scanRawCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CountsByType aggregates enriched calls per emergency type for the stats
// endpoint.
func (s *Store) CountsByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT emergency_type, COUNT(*) FROM enriched_calls GROUP BY emergency_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
