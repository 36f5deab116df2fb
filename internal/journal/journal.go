package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hetulpatel/Gladiator/internal/models"
)

const defaultPath = "data/gladiator.db"

// Store is the durable trading journal: cycle outcomes, orders, and the
// error log the severity dispatcher writes through synchronously.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the journal database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cycles (
	cycle_id INTEGER NOT NULL,
	ticker TEXT NOT NULL,
	outcome TEXT NOT NULL,
	veto_stage TEXT,
	reason TEXT,
	wager_usd REAL,
	confidence INTEGER,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	detail_json TEXT,
	PRIMARY KEY (cycle_id)
);
CREATE INDEX IF NOT EXISTS cycles_ticker_idx ON cycles(ticker);

CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT NOT NULL,
	client_id TEXT NOT NULL,
	cycle_id INTEGER,
	ticker TEXT NOT NULL,
	side TEXT NOT NULL,
	action TEXT NOT NULL,
	count INTEGER NOT NULL,
	price_cents INTEGER NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (order_id)
);

CREATE TABLE IF NOT EXISTS error_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at TEXT NOT NULL,
	severity TEXT NOT NULL,
	component TEXT NOT NULL,
	message TEXT NOT NULL,
	detail_json TEXT
);
CREATE INDEX IF NOT EXISTS error_log_severity_idx ON error_log(severity);
`

// CreateTables ensures the journal schema exists.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropTables removes the journal schema.
func (s *Store) DropTables(ctx context.Context) error {
	stmts := []string{
		`DROP TABLE IF EXISTS cycles;`,
		`DROP TABLE IF EXISTS orders;`,
		`DROP TABLE IF EXISTS error_log;`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CycleRecord is one terminal cycle outcome for the journal.
type CycleRecord struct {
	CycleID    uint64
	Ticker     string
	Outcome    models.OutcomeKind
	Veto       *models.VetoRecord
	Reason     string
	WagerUSD   float64
	Confidence int
	StartedAt  time.Time
	FinishedAt time.Time
	Detail     any
}

// InsertCycle records a finished cycle.
func (s *Store) InsertCycle(ctx context.Context, rec CycleRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	var vetoStage, reason string
	if rec.Veto != nil {
		vetoStage = rec.Veto.Stage
		reason = rec.Veto.Reason
	}
	if rec.Reason != "" {
		reason = rec.Reason
	}
	detail, err := marshalDetail(rec.Detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO cycles (cycle_id, ticker, outcome, veto_stage, reason, wager_usd, confidence, started_at, finished_at, detail_json)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(cycle_id) DO UPDATE SET outcome=excluded.outcome, reason=excluded.reason, finished_at=excluded.finished_at`,
		rec.CycleID, rec.Ticker, string(rec.Outcome), vetoStage, reason, rec.WagerUSD, rec.Confidence,
		rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.FinishedAt.UTC().Format(time.RFC3339Nano), detail)
	return err
}

// InsertOrder records a submitted order.
func (s *Store) InsertOrder(ctx context.Context, cycleID uint64, order models.Order) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (order_id, client_id, cycle_id, ticker, side, action, count, price_cents, status, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(order_id) DO UPDATE SET status=excluded.status`,
		order.ID, order.ClientID, cycleID, order.Ticker, order.Side, order.Action,
		order.Count, order.PriceCents, order.Status, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// InsertError durably records one error event. The severity dispatcher calls
// this synchronously for high-severity events; it must not buffer.
func (s *Store) InsertError(ctx context.Context, severity, component, message string, detail any) error {
	if s == nil || s.db == nil {
		return nil
	}
	detailJSON, err := marshalDetail(detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO error_log (recorded_at, severity, component, message, detail_json)
VALUES (?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339Nano), severity, component, message, detailJSON)
	return err
}

// ErrorCount counts recorded errors for one severity.
func (s *Store) ErrorCount(ctx context.Context, severity string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM error_log WHERE severity = ?`, severity).Scan(&n)
	return n, err
}

func marshalDetail(detail any) (string, error) {
	if detail == nil {
		return "", nil
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(raw), nil
}
